package service

import (
	"context"
	"errors"
	"testing"

	"dealer-portal/config"
	"dealer-portal/internal/metadata"
	"dealer-portal/internal/models"
	"dealer-portal/internal/store"
	"dealer-portal/internal/util"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeCatalog records writes and returns canned errors.
type fakeCatalog struct {
	brands        []*models.Brand
	products      []*models.Product
	notifications []*models.Notification
	err           error
}

func (f *fakeCatalog) ListBrands(context.Context, string) ([]models.Brand, error) { return nil, f.err }
func (f *fakeCatalog) GetBrand(context.Context, int64, string) (*models.Brand, error) {
	return nil, store.ErrNotFound
}
func (f *fakeCatalog) CreateBrand(_ context.Context, b *models.Brand) error {
	if f.err != nil {
		return f.err
	}
	b.ID = int64(len(f.brands) + 1)
	b.Slug = "engine-oil"
	f.brands = append(f.brands, b)
	return nil
}
func (f *fakeCatalog) UpdateBrand(context.Context, *models.Brand) error { return f.err }
func (f *fakeCatalog) DeleteBrand(context.Context, int64, string) error { return store.ErrNotFound }
func (f *fakeCatalog) ListSubBrands(context.Context, string, *int64) ([]models.SubBrand, error) {
	return nil, f.err
}
func (f *fakeCatalog) CreateSubBrand(context.Context, *models.SubBrand) error { return f.err }
func (f *fakeCatalog) DeleteSubBrand(context.Context, int64, string) error    { return f.err }
func (f *fakeCatalog) ListCategories(context.Context, string) ([]models.Category, error) {
	return nil, f.err
}
func (f *fakeCatalog) GetCategory(context.Context, string, string) (*models.Category, error) {
	return nil, store.ErrNotFound
}
func (f *fakeCatalog) CreateCategory(_ context.Context, c *models.Category) error {
	c.CategoryID = "CTR11"
	return f.err
}
func (f *fakeCatalog) UpdateCategory(context.Context, *models.Category) error { return f.err }
func (f *fakeCatalog) DeleteCategory(context.Context, string, string) error   { return f.err }
func (f *fakeCatalog) ListSubCategories(context.Context, string, string) ([]models.SubCategory, error) {
	return nil, f.err
}
func (f *fakeCatalog) CreateSubCategory(context.Context, *models.SubCategory) error { return f.err }
func (f *fakeCatalog) DeleteSubCategory(context.Context, int64, string) error       { return f.err }
func (f *fakeCatalog) ListProducts(context.Context, string, store.ProductFilter) ([]models.Product, error) {
	return nil, f.err
}
func (f *fakeCatalog) GetProduct(context.Context, string, string) (*models.Product, error) {
	return nil, store.ErrNotFound
}
func (f *fakeCatalog) CreateProduct(_ context.Context, p *models.Product, notify func(*models.Product) (*models.Notification, error)) error {
	if f.err != nil {
		return f.err
	}
	p.ProductID = "PRO11"
	n, err := notify(p)
	if err != nil {
		return err
	}
	f.products = append(f.products, p)
	f.notifications = append(f.notifications, n)
	return nil
}
func (f *fakeCatalog) UpdateProduct(context.Context, *models.Product) error { return f.err }
func (f *fakeCatalog) DeleteProduct(context.Context, string, string) error  { return f.err }

func newTestCatalog(t *testing.T, f *fakeCatalog) *CatalogService {
	t.Helper()
	util.SetLogger(zaptest.NewLogger(t))
	return NewCatalogService(f, nil, config.RedisConfig{})
}

func TestCreateBrand(t *testing.T) {
	f := &fakeCatalog{}
	svc := newTestCatalog(t, f)

	b, err := svc.CreateBrand(context.Background(), &BrandRequest{DealerID: "DLR1", Name: "  Engine Oil "})
	require.NoError(t, err)
	assert.Equal(t, "Engine Oil", b.Name)
	assert.Equal(t, "engine-oil", b.Slug)
}

func TestCreateBrand_Duplicate(t *testing.T) {
	svc := newTestCatalog(t, &fakeCatalog{err: store.ErrDuplicate})

	_, err := svc.CreateBrand(context.Background(), &BrandRequest{DealerID: "DLR1", Name: "Castrol"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCreateBrand_Validation(t *testing.T) {
	svc := newTestCatalog(t, &fakeCatalog{})

	_, err := svc.CreateBrand(context.Background(), &BrandRequest{})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.ElementsMatch(t, []string{"dealer_id is required", "name is required"}, verr.Details)
}

func TestCreateProduct_WritesNotification(t *testing.T) {
	f := &fakeCatalog{}
	svc := newTestCatalog(t, f)

	p, err := svc.CreateProduct(context.Background(), &ProductRequest{
		DealerID: "DLR1",
		Name:     "Brake Pad",
		Price:    decimal.RequireFromString("12.50"),
		Stock:    4,
	})
	require.NoError(t, err)
	assert.Equal(t, "PRO11", p.ProductID)

	require.Len(t, f.notifications, 1)
	n := f.notifications[0]
	assert.Equal(t, models.NotificationProductCreated, n.Type)
	assert.Nil(t, n.OrderID)
	assert.Contains(t, n.Message, "Brake Pad (PRO11)")

	snap, err := metadata.Decode(n.Metadata)
	require.NoError(t, err)
	assert.Equal(t, metadata.FlexString("PRO11"), snap.ProductID)
	assert.Empty(t, snap.CandidateOrderIDs())
}

func TestCreateProduct_NegativePrice(t *testing.T) {
	svc := newTestCatalog(t, &fakeCatalog{})

	_, err := svc.CreateProduct(context.Background(), &ProductRequest{
		DealerID: "DLR1",
		Name:     "Brake Pad",
		Price:    decimal.NewFromInt(-1),
		Stock:    -2,
	})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Details, "price must not be negative")
	assert.Contains(t, verr.Details, "stock must be at least 0")
}

func TestCatalogNotFound(t *testing.T) {
	svc := newTestCatalog(t, &fakeCatalog{})
	ctx := context.Background()

	_, err := svc.GetBrand(ctx, 1, "DLR1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.DeleteBrand(ctx, 1, "DLR1"), ErrNotFound)
	_, err = svc.GetProduct(ctx, "PRO1", "")
	assert.ErrorIs(t, err, ErrMissingDealer)
}
