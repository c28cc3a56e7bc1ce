package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"dealer-portal/internal/models"
	"dealer-portal/internal/store"
)

// memStore keeps orders and notifications in maps and follows the
// transition rules of the SQL store.
type memStore struct {
	mu            sync.Mutex
	dealers       map[string]*models.Dealer
	products      map[string]*models.Product
	orders        map[string]*models.Order
	notifications []*models.Notification
	outbox        []*models.OutboxEvent
	nextOrder     int
	failEffects   error
}

func newMemStore() *memStore {
	return &memStore{
		dealers: map[string]*models.Dealer{
			"DLR1": {DealerID: "DLR1", Name: "Acme Motors", Email: "acme@example.com"},
		},
		products: map[string]*models.Product{
			"PRO1": {ProductID: "PRO1", DealerID: "DLR1", Name: "Engine Oil"},
		},
		orders:    make(map[string]*models.Order),
		nextOrder: 1,
	}
}

func (m *memStore) addOrder(id, status string) *models.Order {
	o := &models.Order{
		OrderID:       id,
		DealerID:      "DLR1",
		ProductID:     "PRO1",
		ProductName:   "Engine Oil",
		Quantity:      1,
		CustomerName:  "Ravi",
		CustomerEmail: "ravi@example.com",
		OrderStatus:   status,
		PaymentStatus: models.PaymentStatusPending,
	}
	m.orders[id] = o
	return o
}

func (m *memStore) addNotification(n *models.Notification) *models.Notification {
	n.ID = int64(len(m.notifications) + 1)
	if n.DealerID == "" {
		n.DealerID = "DLR1"
	}
	m.notifications = append(m.notifications, n)
	return n
}

func (m *memStore) GetDealer(_ context.Context, dealerID string) (*models.Dealer, error) {
	d, ok := m.dealers[dealerID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return d, nil
}

func (m *memStore) GetDealerByEmail(_ context.Context, email string) (*models.Dealer, error) {
	for _, d := range m.dealers {
		if d.Email == email {
			return d, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) CreateDealer(_ context.Context, d *models.Dealer) error {
	for _, existing := range m.dealers {
		if existing.Email == d.Email {
			return store.ErrDuplicate
		}
	}
	d.DealerID = "DLR" + strings.Repeat("9", len(m.dealers)+1)
	m.dealers[d.DealerID] = d
	return nil
}

func (m *memStore) GetProduct(_ context.Context, productID, dealerID string) (*models.Product, error) {
	p, ok := m.products[productID]
	if !ok || p.DealerID != dealerID {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func (m *memStore) CreateOrder(_ context.Context, order *models.Order, effects store.SideEffects) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order.OrderID = "ORD" + strings.Repeat("1", m.nextOrder)
	m.nextOrder++
	order.OrderStatus = models.OrderStatusPending
	if order.PaymentStatus == "" {
		order.PaymentStatus = models.PaymentStatusPending
	}
	order.OrderDate = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	if err := m.apply(effects, order, ""); err != nil {
		return err
	}
	copied := *order
	m.orders[order.OrderID] = &copied
	return nil
}

func (m *memStore) GetOrder(_ context.Context, orderID, dealerID string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.DealerID != dealerID {
		return nil, store.ErrNotFound
	}
	copied := *o
	return &copied, nil
}

func (m *memStore) ListOrders(_ context.Context, f store.OrderFilter) ([]models.Order, error) {
	var out []models.Order
	for _, o := range m.orders {
		if f.DealerID != "" && o.DealerID != f.DealerID {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}

func (m *memStore) TransitionOrders(_ context.Context, dealerID string, orderIDs []string, target string, effects store.SideEffects) ([]store.Transition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := make(map[string]models.Order)
	var results []store.Transition
	for _, id := range orderIDs {
		o, ok := m.orders[id]
		if !ok || o.DealerID != dealerID {
			return nil, store.ErrNotFound
		}
		current := models.NormalizeStatus(o.OrderStatus)
		switch current {
		case target:
			results = append(results, store.Transition{Order: o, PreviousStatus: current})
		case models.OrderStatusPending:
			next := *o
			next.OrderStatus = target
			staged[id] = next
			results = append(results, store.Transition{Order: &next, PreviousStatus: current, Changed: true})
		default:
			return nil, store.ErrStatusConflict
		}
	}

	for _, r := range results {
		if !r.Changed {
			continue
		}
		if err := m.apply(effects, r.Order, r.PreviousStatus); err != nil {
			return nil, err
		}
	}
	for id, o := range staged {
		o := o
		m.orders[id] = &o
	}
	return results, nil
}

func (m *memStore) UpdateOrder(_ context.Context, orderID, dealerID string, upd store.OrderUpdate, effects store.SideEffects) (*store.Transition, error) {
	o, ok := m.orders[orderID]
	if !ok || o.DealerID != dealerID {
		return nil, store.ErrNotFound
	}
	previous := o.OrderStatus
	next := *o
	if upd.OrderStatus != nil {
		next.OrderStatus = *upd.OrderStatus
	}
	if upd.PaymentStatus != nil {
		next.PaymentStatus = *upd.PaymentStatus
	}
	changed := next.OrderStatus != previous
	if changed {
		if err := m.apply(effects, &next, previous); err != nil {
			return nil, err
		}
	}
	m.orders[orderID] = &next
	return &store.Transition{Order: &next, PreviousStatus: previous, Changed: changed}, nil
}

func (m *memStore) apply(effects store.SideEffects, order *models.Order, previous string) error {
	if m.failEffects != nil {
		return m.failEffects
	}
	if effects == nil {
		return nil
	}
	n, ev, err := effects(order, previous)
	if err != nil {
		return err
	}
	if n != nil {
		m.addNotification(n)
	}
	if ev != nil {
		m.outbox = append(m.outbox, ev)
	}
	return nil
}

func (m *memStore) GetNotification(_ context.Context, id int64, dealerID string) (*models.Notification, error) {
	for _, n := range m.notifications {
		if n.ID == id && n.DealerID == dealerID {
			return n, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) ListInbox(_ context.Context, dealerID string, limit, offset int) ([]models.Notification, error) {
	var out []models.Notification
	for i := len(m.notifications) - 1; i >= 0; i-- {
		if m.notifications[i].DealerID == dealerID {
			out = append(out, *m.notifications[i])
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) CountInbox(_ context.Context, dealerID string) (store.InboxCounts, error) {
	var c store.InboxCounts
	for _, n := range m.notifications {
		if n.DealerID != dealerID {
			continue
		}
		c.Total++
		if !n.IsRead {
			c.Unread++
		}
	}
	return c, nil
}

func (m *memStore) ListOrderHistory(_ context.Context, dealerID, orderID string) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range m.notifications {
		if n.DealerID == dealerID && n.OrderID != nil && *n.OrderID == orderID {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (m *memStore) SetNotificationRead(ctx context.Context, id int64, dealerID string, read bool) error {
	n, err := m.GetNotification(ctx, id, dealerID)
	if err != nil {
		return err
	}
	n.IsRead = read
	return nil
}

func (m *memStore) MarkAllRead(_ context.Context, dealerID string) (int64, error) {
	var count int64
	for _, n := range m.notifications {
		if n.DealerID == dealerID && !n.IsRead {
			n.IsRead = true
			count++
		}
	}
	return count, nil
}

func (m *memStore) DeleteNotification(_ context.Context, id int64, dealerID string) error {
	for i, n := range m.notifications {
		if n.ID == id && n.DealerID == dealerID {
			m.notifications = append(m.notifications[:i], m.notifications[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

// recordingCoordinator remembers the lock names it was asked for.
type recordingCoordinator struct {
	*LocalCoordinator
	mu    sync.Mutex
	locks []string
}

func newRecordingCoordinator() *recordingCoordinator {
	return &recordingCoordinator{LocalCoordinator: NewLocalCoordinator()}
}

func (c *recordingCoordinator) WithLock(ctx context.Context, name string, ttl time.Duration, fn func() error) error {
	c.mu.Lock()
	c.locks = append(c.locks, name)
	c.mu.Unlock()
	return c.LocalCoordinator.WithLock(ctx, name, ttl, fn)
}
