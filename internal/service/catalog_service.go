package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dealer-portal/config"
	"dealer-portal/internal/ident"
	"dealer-portal/internal/metadata"
	"dealer-portal/internal/models"
	"dealer-portal/internal/store"
	"dealer-portal/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CatalogService manages brands, categories and products of a dealer
type CatalogService struct {
	store   CatalogStore
	coord   Coordinator
	lockTTL time.Duration
	logger  *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store CatalogStore, coord Coordinator, cfg config.RedisConfig) *CatalogService {
	if coord == nil {
		coord = NewLocalCoordinator()
	}
	return &CatalogService{
		store:   store,
		coord:   coord,
		lockTTL: cfg.LockTTL,
		logger:  util.GetLogger(),
	}
}

// generate serialises slug and id generation under the named lock.
func (s *CatalogService) generate(ctx context.Context, lock string, fn func() error) error {
	err := s.coord.WithLock(ctx, lock, s.lockTTL, fn)
	return translate(err, nil)
}

func slugLock(dealerID, table string) string {
	return "catalog:" + dealerID + ":" + table
}

type BrandRequest struct {
	DealerID    string `json:"dealer_id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

func (s *CatalogService) ListBrands(ctx context.Context, dealerID string) ([]models.Brand, error) {
	if dealerID == "" {
		return nil, ErrMissingDealer
	}
	return s.store.ListBrands(ctx, dealerID)
}

func (s *CatalogService) GetBrand(ctx context.Context, id int64, dealerID string) (*models.Brand, error) {
	if dealerID == "" {
		return nil, ErrMissingDealer
	}
	b, err := s.store.GetBrand(ctx, id, dealerID)
	return b, translate(err, nil)
}

func (s *CatalogService) CreateBrand(ctx context.Context, req *BrandRequest) (*models.Brand, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	b := &models.Brand{DealerID: req.DealerID, Name: strings.TrimSpace(req.Name), Description: req.Description}
	err := s.generate(ctx, slugLock(req.DealerID, "brands"), func() error {
		return s.store.CreateBrand(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Brand created", zap.String("dealer_id", b.DealerID), zap.String("slug", b.Slug))
	return b, nil
}

func (s *CatalogService) UpdateBrand(ctx context.Context, id int64, req *BrandRequest) (*models.Brand, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	b := &models.Brand{ID: id, DealerID: req.DealerID, Name: strings.TrimSpace(req.Name), Description: req.Description}
	err := s.generate(ctx, slugLock(req.DealerID, "brands"), func() error {
		return s.store.UpdateBrand(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *CatalogService) DeleteBrand(ctx context.Context, id int64, dealerID string) error {
	if dealerID == "" {
		return ErrMissingDealer
	}
	return translate(s.store.DeleteBrand(ctx, id, dealerID), nil)
}

type SubBrandRequest struct {
	DealerID    string `json:"dealer_id" validate:"required"`
	BrandID     int64  `json:"brand_id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

func (s *CatalogService) ListSubBrands(ctx context.Context, dealerID string, brandID *int64) ([]models.SubBrand, error) {
	if dealerID == "" {
		return nil, ErrMissingDealer
	}
	return s.store.ListSubBrands(ctx, dealerID, brandID)
}

func (s *CatalogService) CreateSubBrand(ctx context.Context, req *SubBrandRequest) (*models.SubBrand, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	sb := &models.SubBrand{
		BrandID:     req.BrandID,
		DealerID:    req.DealerID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
	}
	err := s.generate(ctx, slugLock(req.DealerID, "sub_brands"), func() error {
		return s.store.CreateSubBrand(ctx, sb)
	})
	if err != nil {
		return nil, err
	}
	return sb, nil
}

func (s *CatalogService) DeleteSubBrand(ctx context.Context, id int64, dealerID string) error {
	if dealerID == "" {
		return ErrMissingDealer
	}
	return translate(s.store.DeleteSubBrand(ctx, id, dealerID), nil)
}

type CategoryRequest struct {
	DealerID    string `json:"dealer_id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

func (s *CatalogService) ListCategories(ctx context.Context, dealerID string) ([]models.Category, error) {
	if dealerID == "" {
		return nil, ErrMissingDealer
	}
	return s.store.ListCategories(ctx, dealerID)
}

func (s *CatalogService) GetCategory(ctx context.Context, id, dealerID string) (*models.Category, error) {
	if dealerID == "" {
		return nil, ErrMissingDealer
	}
	c, err := s.store.GetCategory(ctx, id, dealerID)
	return c, translate(err, nil)
}

func (s *CatalogService) CreateCategory(ctx context.Context, req *CategoryRequest) (*models.Category, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	c := &models.Category{DealerID: req.DealerID, Name: strings.TrimSpace(req.Name), Description: req.Description}
	err := s.generate(ctx, idLock(ident.PrefixCategory, req.DealerID), func() error {
		return s.store.CreateCategory(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CatalogService) UpdateCategory(ctx context.Context, id string, req *CategoryRequest) (*models.Category, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	c := &models.Category{CategoryID: id, DealerID: req.DealerID, Name: strings.TrimSpace(req.Name), Description: req.Description}
	err := s.generate(ctx, idLock(ident.PrefixCategory, req.DealerID), func() error {
		return s.store.UpdateCategory(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CatalogService) DeleteCategory(ctx context.Context, id, dealerID string) error {
	if dealerID == "" {
		return ErrMissingDealer
	}
	return translate(s.store.DeleteCategory(ctx, id, dealerID), nil)
}

type SubCategoryRequest struct {
	DealerID    string `json:"dealer_id" validate:"required"`
	CategoryID  string `json:"category_id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

func (s *CatalogService) ListSubCategories(ctx context.Context, dealerID, categoryID string) ([]models.SubCategory, error) {
	if dealerID == "" {
		return nil, ErrMissingDealer
	}
	return s.store.ListSubCategories(ctx, dealerID, categoryID)
}

func (s *CatalogService) CreateSubCategory(ctx context.Context, req *SubCategoryRequest) (*models.SubCategory, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	sc := &models.SubCategory{
		CategoryID:  req.CategoryID,
		DealerID:    req.DealerID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
	}
	err := s.generate(ctx, slugLock(req.DealerID, "sub_categories"), func() error {
		return s.store.CreateSubCategory(ctx, sc)
	})
	if err != nil {
		return nil, err
	}
	return sc, nil
}

func (s *CatalogService) DeleteSubCategory(ctx context.Context, id int64, dealerID string) error {
	if dealerID == "" {
		return ErrMissingDealer
	}
	return translate(s.store.DeleteSubCategory(ctx, id, dealerID), nil)
}

type ProductRequest struct {
	DealerID      string          `json:"dealer_id" validate:"required"`
	Name          string          `json:"name" validate:"required"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	Stock         int             `json:"stock" validate:"gte=0"`
	CategoryID    *string         `json:"category_id"`
	SubCategoryID *int64          `json:"sub_category_id"`
	BrandID       *int64          `json:"brand_id"`
	SubBrandID    *int64          `json:"sub_brand_id"`
}

func (r *ProductRequest) validate() error {
	var extra []string
	if r.Price.IsNegative() {
		extra = append(extra, "price must not be negative")
	}
	return validateStruct(r, extra...)
}

func (r *ProductRequest) product() *models.Product {
	return &models.Product{
		DealerID:      r.DealerID,
		Name:          strings.TrimSpace(r.Name),
		Description:   r.Description,
		Price:         r.Price,
		Stock:         r.Stock,
		CategoryID:    r.CategoryID,
		SubCategoryID: r.SubCategoryID,
		BrandID:       r.BrandID,
		SubBrandID:    r.SubBrandID,
	}
}

func (s *CatalogService) ListProducts(ctx context.Context, dealerID string, f store.ProductFilter) ([]models.Product, error) {
	if dealerID == "" {
		return nil, ErrMissingDealer
	}
	return s.store.ListProducts(ctx, dealerID, f)
}

func (s *CatalogService) GetProduct(ctx context.Context, id, dealerID string) (*models.Product, error) {
	if dealerID == "" {
		return nil, ErrMissingDealer
	}
	p, err := s.store.GetProduct(ctx, id, dealerID)
	return p, translate(err, nil)
}

// CreateProduct inserts the product and a product_created notification.
func (s *CatalogService) CreateProduct(ctx context.Context, req *ProductRequest) (*models.Product, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	p := req.product()
	err := s.generate(ctx, idLock(ident.PrefixProduct, req.DealerID), func() error {
		return s.store.CreateProduct(ctx, p, productNotification)
	})
	if err != nil {
		return nil, err
	}
	util.NotificationsWrittenTotal.WithLabelValues(models.NotificationProductCreated).Inc()
	s.logger.Info("Product created", zap.String("product_id", p.ProductID), zap.String("dealer_id", p.DealerID))
	return p, nil
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id string, req *ProductRequest) (*models.Product, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	p := req.product()
	p.ProductID = id
	err := s.generate(ctx, idLock(ident.PrefixProduct, req.DealerID), func() error {
		return s.store.UpdateProduct(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id, dealerID string) error {
	if dealerID == "" {
		return ErrMissingDealer
	}
	return translate(s.store.DeleteProduct(ctx, id, dealerID), nil)
}

func productNotification(p *models.Product) (*models.Notification, error) {
	col, err := metadata.NewColumn(&metadata.Snapshot{
		ProductID:   metadata.FlexString(p.ProductID),
		TotalAmount: p.Price,
	})
	if err != nil {
		return nil, err
	}
	return &models.Notification{
		Type:        models.NotificationProductCreated,
		Title:       "Product created",
		Message:     fmt.Sprintf("%s (%s) was added to your catalog", p.Name, p.ProductID),
		Description: fmt.Sprintf("Price %s, stock %d", p.Price.StringFixed(2), p.Stock),
		ForDealer:   true,
		DealerID:    p.DealerID,
		Metadata:    col,
	}, nil
}
