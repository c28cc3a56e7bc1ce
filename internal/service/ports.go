package service

import (
	"context"
	"sync"
	"time"

	"dealer-portal/internal/models"
	"dealer-portal/internal/store"
)

// OrderStore is the persistence the order flows need.
type OrderStore interface {
	GetDealer(ctx context.Context, dealerID string) (*models.Dealer, error)
	GetProduct(ctx context.Context, productID, dealerID string) (*models.Product, error)
	CreateOrder(ctx context.Context, order *models.Order, effects store.SideEffects) error
	GetOrder(ctx context.Context, orderID, dealerID string) (*models.Order, error)
	ListOrders(ctx context.Context, f store.OrderFilter) ([]models.Order, error)
	TransitionOrders(ctx context.Context, dealerID string, orderIDs []string, target string, effects store.SideEffects) ([]store.Transition, error)
	UpdateOrder(ctx context.Context, orderID, dealerID string, upd store.OrderUpdate, effects store.SideEffects) (*store.Transition, error)
}

// NotificationStore is the persistence of the notification log.
type NotificationStore interface {
	GetNotification(ctx context.Context, id int64, dealerID string) (*models.Notification, error)
	ListInbox(ctx context.Context, dealerID string, limit, offset int) ([]models.Notification, error)
	CountInbox(ctx context.Context, dealerID string) (store.InboxCounts, error)
	ListOrderHistory(ctx context.Context, dealerID, orderID string) ([]models.Notification, error)
	SetNotificationRead(ctx context.Context, id int64, dealerID string, read bool) error
	MarkAllRead(ctx context.Context, dealerID string) (int64, error)
	DeleteNotification(ctx context.Context, id int64, dealerID string) error
}

// DealerStore reads and creates dealer accounts.
type DealerStore interface {
	GetDealer(ctx context.Context, dealerID string) (*models.Dealer, error)
	GetDealerByEmail(ctx context.Context, email string) (*models.Dealer, error)
	CreateDealer(ctx context.Context, d *models.Dealer) error
}

// CatalogStore is the persistence of the dealer catalog.
type CatalogStore interface {
	ListBrands(ctx context.Context, dealerID string) ([]models.Brand, error)
	GetBrand(ctx context.Context, id int64, dealerID string) (*models.Brand, error)
	CreateBrand(ctx context.Context, b *models.Brand) error
	UpdateBrand(ctx context.Context, b *models.Brand) error
	DeleteBrand(ctx context.Context, id int64, dealerID string) error

	ListSubBrands(ctx context.Context, dealerID string, brandID *int64) ([]models.SubBrand, error)
	CreateSubBrand(ctx context.Context, sb *models.SubBrand) error
	DeleteSubBrand(ctx context.Context, id int64, dealerID string) error

	ListCategories(ctx context.Context, dealerID string) ([]models.Category, error)
	GetCategory(ctx context.Context, id, dealerID string) (*models.Category, error)
	CreateCategory(ctx context.Context, c *models.Category) error
	UpdateCategory(ctx context.Context, c *models.Category) error
	DeleteCategory(ctx context.Context, id, dealerID string) error

	ListSubCategories(ctx context.Context, dealerID, categoryID string) ([]models.SubCategory, error)
	CreateSubCategory(ctx context.Context, sc *models.SubCategory) error
	DeleteSubCategory(ctx context.Context, id int64, dealerID string) error

	ListProducts(ctx context.Context, dealerID string, f store.ProductFilter) ([]models.Product, error)
	GetProduct(ctx context.Context, id, dealerID string) (*models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product, notify func(*models.Product) (*models.Notification, error)) error
	UpdateProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id, dealerID string) error
}

// Coordinator provides idempotency keys and named locks shared between
// instances. redisclient.Client implements it.
type Coordinator interface {
	GetIdempotencyKey(ctx context.Context, scope, key string) (string, bool, error)
	SetIdempotencyKey(ctx context.Context, scope, key, value string, ttl time.Duration) (bool, error)
	WithLock(ctx context.Context, name string, ttl time.Duration, fn func() error) error
}

// LocalCoordinator is an in-process Coordinator for single-instance runs
// and tests. Keys do not expire.
type LocalCoordinator struct {
	mu    sync.Mutex
	keys  map[string]string
	locks map[string]*sync.Mutex
}

func NewLocalCoordinator() *LocalCoordinator {
	return &LocalCoordinator{
		keys:  make(map[string]string),
		locks: make(map[string]*sync.Mutex),
	}
}

func (c *LocalCoordinator) GetIdempotencyKey(_ context.Context, scope, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.keys[scope+":"+key]
	return v, ok, nil
}

func (c *LocalCoordinator) SetIdempotencyKey(_ context.Context, scope, key, value string, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := scope + ":" + key
	if _, ok := c.keys[k]; ok {
		return false, nil
	}
	c.keys[k] = value
	return true, nil
}

func (c *LocalCoordinator) WithLock(_ context.Context, name string, _ time.Duration, fn func() error) error {
	c.mu.Lock()
	l, ok := c.locks[name]
	if !ok {
		l = &sync.Mutex{}
		c.locks[name] = l
	}
	c.mu.Unlock()

	l.Lock()
	defer l.Unlock()
	return fn()
}
