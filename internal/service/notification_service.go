package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dealer-portal/internal/metadata"
	"dealer-portal/internal/models"
	"dealer-portal/internal/store"
	"dealer-portal/internal/util"

	"go.uber.org/zap"
)

// Inbox paging limits.
const (
	DefaultInboxLimit = 20
	MaxInboxLimit     = 100
)

// NotificationService serves the dealer inbox and the notification-driven
// order transitions.
type NotificationService struct {
	store  NotificationStore
	orders *OrderService
	logger *zap.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(store NotificationStore, orders *OrderService) *NotificationService {
	return &NotificationService{
		store:  store,
		orders: orders,
		logger: util.GetLogger(),
	}
}

// Inbox is one page of the folded notification view
type Inbox struct {
	Notifications []models.Notification `json:"notifications"`
	Total         int64                 `json:"total"`
	Unread        int64                 `json:"unread"`
	Limit         int                   `json:"limit"`
	Offset        int                   `json:"offset"`
}

// ClampPage applies the inbox paging defaults.
func ClampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultInboxLimit
	}
	if limit > MaxInboxLimit {
		limit = MaxInboxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// List returns the latest notification per order plus the notifications
// not tied to an order, newest first.
func (s *NotificationService) List(ctx context.Context, dealerID string, limit, offset int) (*Inbox, error) {
	if dealerID == "" {
		return nil, ErrMissingDealer
	}
	limit, offset = ClampPage(limit, offset)

	items, err := s.store.ListInbox(ctx, dealerID, limit, offset)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.CountInbox(ctx, dealerID)
	if err != nil {
		return nil, err
	}
	return &Inbox{
		Notifications: items,
		Total:         counts.Total,
		Unread:        counts.Unread,
		Limit:         limit,
		Offset:        offset,
	}, nil
}

// Get returns one notification of the dealer
func (s *NotificationService) Get(ctx context.Context, id int64, dealerID string) (*models.Notification, error) {
	if dealerID == "" {
		return nil, ErrMissingDealer
	}
	n, err := s.store.GetNotification(ctx, id, dealerID)
	if err != nil {
		return nil, translate(err, ErrNotificationNotFound)
	}
	return n, nil
}

// History returns the full log of the order a notification refers to.
func (s *NotificationService) History(ctx context.Context, id int64, dealerID string) ([]models.Notification, error) {
	n, err := s.Get(ctx, id, dealerID)
	if err != nil {
		return nil, err
	}
	ids, err := ResolveOrderIDs(n, "")
	if err != nil {
		return nil, err
	}
	return s.store.ListOrderHistory(ctx, dealerID, ids[0])
}

// MarkRead sets the read flag of one notification
func (s *NotificationService) MarkRead(ctx context.Context, id int64, dealerID string, read bool) error {
	if dealerID == "" {
		return ErrMissingDealer
	}
	return translate(s.store.SetNotificationRead(ctx, id, dealerID, read), ErrNotificationNotFound)
}

// MarkAllRead marks every notification of the dealer as read
func (s *NotificationService) MarkAllRead(ctx context.Context, dealerID string) (int64, error) {
	if dealerID == "" {
		return 0, ErrMissingDealer
	}
	return s.store.MarkAllRead(ctx, dealerID)
}

// Delete removes one notification
func (s *NotificationService) Delete(ctx context.Context, id int64, dealerID string) error {
	if dealerID == "" {
		return ErrMissingDealer
	}
	return translate(s.store.DeleteNotification(ctx, id, dealerID), ErrNotificationNotFound)
}

// Accept accepts every order the notification refers to.
func (s *NotificationService) Accept(ctx context.Context, id int64, dealerID, orderID string) ([]store.Transition, error) {
	return s.transition(ctx, id, dealerID, orderID, models.OrderStatusProcessing)
}

// Reject rejects every order the notification refers to.
func (s *NotificationService) Reject(ctx context.Context, id int64, dealerID, orderID string) ([]store.Transition, error) {
	return s.transition(ctx, id, dealerID, orderID, models.OrderStatusRejected)
}

func (s *NotificationService) transition(ctx context.Context, id int64, dealerID, orderID, target string) ([]store.Transition, error) {
	ctx, span := util.StartSpan(ctx, "NotificationService.Transition")
	defer span.End()

	n, err := s.Get(ctx, id, dealerID)
	if err != nil {
		return nil, err
	}
	ids, err := ResolveOrderIDs(n, orderID)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Resolved notification orders",
		zap.Int64("notification_id", id),
		zap.Strings("order_ids", ids))
	return s.orders.TransitionOrders(ctx, dealerID, ids, target)
}

// ResolveOrderIDs collects the orders a notification refers to: the
// order_id column, then the metadata candidates, without duplicates. A
// requested order id narrows the result to that one order and must be
// among them.
func ResolveOrderIDs(n *models.Notification, requested string) ([]string, error) {
	snap, err := metadata.Decode(n.Metadata)
	if err != nil {
		if errors.Is(err, metadata.ErrMalformed) {
			return nil, fmt.Errorf("%w: notification %d", ErrMalformedMetadata, n.ID)
		}
		return nil, err
	}

	var column string
	if n.OrderID != nil {
		column = *n.OrderID
	}
	ids := metadata.MergeIDs(append([]string{column}, snap.CandidateOrderIDs()...)...)

	requested = strings.TrimSpace(requested)
	if requested != "" {
		for _, id := range ids {
			if id == requested {
				return []string{requested}, nil
			}
		}
		return nil, fmt.Errorf("%w: order %s, notification %d", ErrOrderNotReferenced, requested, n.ID)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: notification %d", ErrNoOrderID, n.ID)
	}
	return ids, nil
}
