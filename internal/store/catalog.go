package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dealer-portal/internal/ident"
	"dealer-portal/internal/models"

	"github.com/jmoiron/sqlx"
)

// catalogTable names a dealer-scoped table and its key column.
type catalogTable struct {
	name string
	key  string
}

var (
	brandsTable        = catalogTable{"brands", "id"}
	subBrandsTable     = catalogTable{"sub_brands", "id"}
	categoriesTable    = catalogTable{"categories", "category_id"}
	subCategoriesTable = catalogTable{"sub_categories", "id"}
	productsTable      = catalogTable{"products", "product_id"}
)

// uniqueSlug slugifies name and suffixes it past the slugs already used in
// the table by the dealer. exclude skips the row being renamed.
func (s *Store) uniqueSlug(ctx context.Context, q sqlx.QueryerContext, t catalogTable, dealerID, name string, exclude interface{}) (string, error) {
	base := ident.Slugify(name)
	if base == "" {
		base = "item"
	}

	query := "SELECT slug FROM " + t.name + " WHERE dealer_id = ? AND slug LIKE ?"
	args := []interface{}{dealerID, base + "%"}
	if exclude != nil {
		query += " AND " + t.key + " <> ?"
		args = append(args, exclude)
	}

	var existing []string
	if err := sqlx.SelectContext(ctx, q, &existing, s.q(query), args...); err != nil {
		return "", fmt.Errorf("failed to scan %s slugs: %w", t.name, err)
	}
	return ident.UniqueSlug(base, existing), nil
}

// deleteScoped deletes one row of t owned by the dealer.
func (s *Store) deleteScoped(ctx context.Context, t catalogTable, key interface{}, dealerID string) error {
	res, err := s.db.ExecContext(ctx,
		s.q("DELETE FROM "+t.name+" WHERE "+t.key+" = ? AND dealer_id = ?"), key, dealerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %v: %w", t.name, key, ErrNotFound)
	}
	return nil
}

// ownedBy returns ErrNotFound unless a row of t with key belongs to dealerID.
func (s *Store) ownedBy(ctx context.Context, q sqlx.QueryerContext, t catalogTable, key interface{}, dealerID string) error {
	var n int
	err := sqlx.GetContext(ctx, q, &n,
		s.q("SELECT COUNT(*) FROM "+t.name+" WHERE "+t.key+" = ? AND dealer_id = ?"), key, dealerID)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %v: %w", t.name, key, ErrNotFound)
	}
	return nil
}

func notFound(err error, t catalogTable, key interface{}) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %v: %w", t.name, key, ErrNotFound)
	}
	return err
}

// Brands

const brandColumns = "id, dealer_id, name, slug, COALESCE(description, '') AS description, created_at"

func (s *Store) ListBrands(ctx context.Context, dealerID string) ([]models.Brand, error) {
	out := []models.Brand{}
	err := s.db.SelectContext(ctx, &out,
		s.q("SELECT "+brandColumns+" FROM brands WHERE dealer_id = ? ORDER BY name"), dealerID)
	return out, err
}

func (s *Store) GetBrand(ctx context.Context, id int64, dealerID string) (*models.Brand, error) {
	var b models.Brand
	err := s.db.GetContext(ctx, &b,
		s.q("SELECT "+brandColumns+" FROM brands WHERE id = ? AND dealer_id = ?"), id, dealerID)
	if err != nil {
		return nil, notFound(err, brandsTable, id)
	}
	return &b, nil
}

// CreateBrand inserts a brand with a unique slug. A second brand with the
// same name for the dealer fails with ErrDuplicate.
func (s *Store) CreateBrand(ctx context.Context, b *models.Brand) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		slug, err := s.uniqueSlug(ctx, tx, brandsTable, b.DealerID, b.Name, nil)
		if err != nil {
			return err
		}
		b.Slug = slug
		b.CreatedAt = s.now()

		id, err := s.dialect.insertID(ctx, tx,
			"INSERT INTO brands (dealer_id, name, slug, description, created_at) VALUES (?, ?, ?, ?, ?)",
			b.DealerID, b.Name, b.Slug, b.Description, b.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert brand: %w", mapErr(err))
		}
		b.ID = id
		return nil
	})
}

// UpdateBrand renames a brand and regenerates its slug.
func (s *Store) UpdateBrand(ctx context.Context, b *models.Brand) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.ownedBy(ctx, tx, brandsTable, b.ID, b.DealerID); err != nil {
			return err
		}
		slug, err := s.uniqueSlug(ctx, tx, brandsTable, b.DealerID, b.Name, b.ID)
		if err != nil {
			return err
		}
		b.Slug = slug

		_, err = tx.ExecContext(ctx,
			s.q("UPDATE brands SET name = ?, slug = ?, description = ? WHERE id = ? AND dealer_id = ?"),
			b.Name, b.Slug, b.Description, b.ID, b.DealerID)
		if err != nil {
			return fmt.Errorf("failed to update brand: %w", mapErr(err))
		}
		return nil
	})
}

func (s *Store) DeleteBrand(ctx context.Context, id int64, dealerID string) error {
	return s.deleteScoped(ctx, brandsTable, id, dealerID)
}

// Sub-brands

const subBrandColumns = "id, brand_id, dealer_id, name, slug, COALESCE(description, '') AS description, created_at"

// ListSubBrands returns the dealer's sub-brands, optionally of one brand.
func (s *Store) ListSubBrands(ctx context.Context, dealerID string, brandID *int64) ([]models.SubBrand, error) {
	query := "SELECT " + subBrandColumns + " FROM sub_brands WHERE dealer_id = ?"
	args := []interface{}{dealerID}
	if brandID != nil {
		query += " AND brand_id = ?"
		args = append(args, *brandID)
	}
	out := []models.SubBrand{}
	err := s.db.SelectContext(ctx, &out, s.q(query+" ORDER BY name"), args...)
	return out, err
}

// CreateSubBrand inserts a sub-brand under one of the dealer's brands.
func (s *Store) CreateSubBrand(ctx context.Context, sb *models.SubBrand) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.ownedBy(ctx, tx, brandsTable, sb.BrandID, sb.DealerID); err != nil {
			return err
		}
		slug, err := s.uniqueSlug(ctx, tx, subBrandsTable, sb.DealerID, sb.Name, nil)
		if err != nil {
			return err
		}
		sb.Slug = slug
		sb.CreatedAt = s.now()

		id, err := s.dialect.insertID(ctx, tx,
			"INSERT INTO sub_brands (brand_id, dealer_id, name, slug, description, created_at) VALUES (?, ?, ?, ?, ?, ?)",
			sb.BrandID, sb.DealerID, sb.Name, sb.Slug, sb.Description, sb.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert sub-brand: %w", mapErr(err))
		}
		sb.ID = id
		return nil
	})
}

func (s *Store) DeleteSubBrand(ctx context.Context, id int64, dealerID string) error {
	return s.deleteScoped(ctx, subBrandsTable, id, dealerID)
}

// Categories

const categoryColumns = "category_id, dealer_id, name, slug, COALESCE(description, '') AS description, created_at"

func (s *Store) ListCategories(ctx context.Context, dealerID string) ([]models.Category, error) {
	out := []models.Category{}
	err := s.db.SelectContext(ctx, &out,
		s.q("SELECT "+categoryColumns+" FROM categories WHERE dealer_id = ? ORDER BY name"), dealerID)
	return out, err
}

func (s *Store) GetCategory(ctx context.Context, id, dealerID string) (*models.Category, error) {
	var c models.Category
	err := s.db.GetContext(ctx, &c,
		s.q("SELECT "+categoryColumns+" FROM categories WHERE category_id = ? AND dealer_id = ?"), id, dealerID)
	if err != nil {
		return nil, notFound(err, categoriesTable, id)
	}
	return &c, nil
}

// CreateCategory assigns a CTR id and a unique slug.
func (s *Store) CreateCategory(ctx context.Context, c *models.Category) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		id, err := s.nextID(ctx, tx, categoriesTable.name, categoriesTable.key,
			ident.PrefixCategory, ident.DealerNumber(c.DealerID))
		if err != nil {
			return err
		}
		slug, err := s.uniqueSlug(ctx, tx, categoriesTable, c.DealerID, c.Name, nil)
		if err != nil {
			return err
		}
		c.CategoryID = id
		c.Slug = slug
		c.CreatedAt = s.now()

		_, err = tx.ExecContext(ctx,
			s.q("INSERT INTO categories (category_id, dealer_id, name, slug, description, created_at) VALUES (?, ?, ?, ?, ?, ?)"),
			c.CategoryID, c.DealerID, c.Name, c.Slug, c.Description, c.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert category: %w", mapErr(err))
		}
		return nil
	})
}

func (s *Store) UpdateCategory(ctx context.Context, c *models.Category) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.ownedBy(ctx, tx, categoriesTable, c.CategoryID, c.DealerID); err != nil {
			return err
		}
		slug, err := s.uniqueSlug(ctx, tx, categoriesTable, c.DealerID, c.Name, c.CategoryID)
		if err != nil {
			return err
		}
		c.Slug = slug

		_, err = tx.ExecContext(ctx,
			s.q("UPDATE categories SET name = ?, slug = ?, description = ? WHERE category_id = ? AND dealer_id = ?"),
			c.Name, c.Slug, c.Description, c.CategoryID, c.DealerID)
		if err != nil {
			return fmt.Errorf("failed to update category: %w", mapErr(err))
		}
		return nil
	})
}

func (s *Store) DeleteCategory(ctx context.Context, id, dealerID string) error {
	return s.deleteScoped(ctx, categoriesTable, id, dealerID)
}

// Sub-categories

const subCategoryColumns = "id, category_id, dealer_id, name, slug, COALESCE(description, '') AS description, created_at"

// ListSubCategories returns the dealer's sub-categories, optionally of one
// category.
func (s *Store) ListSubCategories(ctx context.Context, dealerID, categoryID string) ([]models.SubCategory, error) {
	query := "SELECT " + subCategoryColumns + " FROM sub_categories WHERE dealer_id = ?"
	args := []interface{}{dealerID}
	if categoryID != "" {
		query += " AND category_id = ?"
		args = append(args, categoryID)
	}
	out := []models.SubCategory{}
	err := s.db.SelectContext(ctx, &out, s.q(query+" ORDER BY name"), args...)
	return out, err
}

func (s *Store) CreateSubCategory(ctx context.Context, sc *models.SubCategory) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.ownedBy(ctx, tx, categoriesTable, sc.CategoryID, sc.DealerID); err != nil {
			return err
		}
		slug, err := s.uniqueSlug(ctx, tx, subCategoriesTable, sc.DealerID, sc.Name, nil)
		if err != nil {
			return err
		}
		sc.Slug = slug
		sc.CreatedAt = s.now()

		id, err := s.dialect.insertID(ctx, tx,
			"INSERT INTO sub_categories (category_id, dealer_id, name, slug, description, created_at) VALUES (?, ?, ?, ?, ?, ?)",
			sc.CategoryID, sc.DealerID, sc.Name, sc.Slug, sc.Description, sc.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert sub-category: %w", mapErr(err))
		}
		sc.ID = id
		return nil
	})
}

func (s *Store) DeleteSubCategory(ctx context.Context, id int64, dealerID string) error {
	return s.deleteScoped(ctx, subCategoriesTable, id, dealerID)
}

// Products

const productColumns = `product_id, dealer_id, name, slug, COALESCE(description, '') AS description,
	price, stock, category_id, sub_category_id, brand_id, sub_brand_id, created_at`

// ProductFilter narrows ListProducts.
type ProductFilter struct {
	CategoryID string
	BrandID    *int64
}

func (s *Store) ListProducts(ctx context.Context, dealerID string, f ProductFilter) ([]models.Product, error) {
	query := "SELECT " + productColumns + " FROM products WHERE dealer_id = ?"
	args := []interface{}{dealerID}
	if f.CategoryID != "" {
		query += " AND category_id = ?"
		args = append(args, f.CategoryID)
	}
	if f.BrandID != nil {
		query += " AND brand_id = ?"
		args = append(args, *f.BrandID)
	}
	out := []models.Product{}
	err := s.db.SelectContext(ctx, &out, s.q(query+" ORDER BY created_at DESC, product_id DESC"), args...)
	return out, err
}

// GetProduct returns the product if it belongs to the dealer.
func (s *Store) GetProduct(ctx context.Context, id, dealerID string) (*models.Product, error) {
	var p models.Product
	err := s.db.GetContext(ctx, &p,
		s.q("SELECT "+productColumns+" FROM products WHERE product_id = ? AND dealer_id = ?"), id, dealerID)
	if err != nil {
		return nil, notFound(err, productsTable, id)
	}
	return &p, nil
}

// CreateProduct assigns a PRO id and a unique slug, then inserts the product
// and the notification built by notify, if any.
func (s *Store) CreateProduct(ctx context.Context, p *models.Product, notify func(*models.Product) (*models.Notification, error)) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.checkProductRefs(ctx, tx, p); err != nil {
			return err
		}
		id, err := s.nextID(ctx, tx, productsTable.name, productsTable.key,
			ident.PrefixProduct, ident.DealerNumber(p.DealerID))
		if err != nil {
			return err
		}
		slug, err := s.uniqueSlug(ctx, tx, productsTable, p.DealerID, p.Name, nil)
		if err != nil {
			return err
		}
		p.ProductID = id
		p.Slug = slug
		p.CreatedAt = s.now()

		_, err = tx.ExecContext(ctx, s.q(`
			INSERT INTO products (product_id, dealer_id, name, slug, description, price, stock,
				category_id, sub_category_id, brand_id, sub_brand_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			p.ProductID, p.DealerID, p.Name, p.Slug, p.Description, p.Price, p.Stock,
			p.CategoryID, p.SubCategoryID, p.BrandID, p.SubBrandID, p.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert product: %w", mapErr(err))
		}

		if notify == nil {
			return nil
		}
		n, err := notify(p)
		if err != nil || n == nil {
			return err
		}
		return s.insertNotification(ctx, tx, n)
	})
}

// UpdateProduct replaces the mutable fields of a product.
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.ownedBy(ctx, tx, productsTable, p.ProductID, p.DealerID); err != nil {
			return err
		}
		if err := s.checkProductRefs(ctx, tx, p); err != nil {
			return err
		}
		slug, err := s.uniqueSlug(ctx, tx, productsTable, p.DealerID, p.Name, p.ProductID)
		if err != nil {
			return err
		}
		p.Slug = slug

		_, err = tx.ExecContext(ctx, s.q(`
			UPDATE products SET name = ?, slug = ?, description = ?, price = ?, stock = ?,
				category_id = ?, sub_category_id = ?, brand_id = ?, sub_brand_id = ?
			WHERE product_id = ? AND dealer_id = ?`),
			p.Name, p.Slug, p.Description, p.Price, p.Stock,
			p.CategoryID, p.SubCategoryID, p.BrandID, p.SubBrandID,
			p.ProductID, p.DealerID)
		if err != nil {
			return fmt.Errorf("failed to update product: %w", mapErr(err))
		}
		return nil
	})
}

func (s *Store) DeleteProduct(ctx context.Context, id, dealerID string) error {
	return s.deleteScoped(ctx, productsTable, id, dealerID)
}

// checkProductRefs verifies that every referenced catalog row belongs to the
// product's dealer.
func (s *Store) checkProductRefs(ctx context.Context, tx *sqlx.Tx, p *models.Product) error {
	if p.CategoryID != nil {
		if err := s.ownedBy(ctx, tx, categoriesTable, *p.CategoryID, p.DealerID); err != nil {
			return err
		}
	}
	if p.SubCategoryID != nil {
		if err := s.ownedBy(ctx, tx, subCategoriesTable, *p.SubCategoryID, p.DealerID); err != nil {
			return err
		}
	}
	if p.BrandID != nil {
		if err := s.ownedBy(ctx, tx, brandsTable, *p.BrandID, p.DealerID); err != nil {
			return err
		}
	}
	if p.SubBrandID != nil {
		if err := s.ownedBy(ctx, tx, subBrandsTable, *p.SubBrandID, p.DealerID); err != nil {
			return err
		}
	}
	return nil
}
