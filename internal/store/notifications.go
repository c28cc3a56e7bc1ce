package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dealer-portal/internal/models"

	"github.com/jmoiron/sqlx"
)

const notificationColumns = `n.id, n.type, n.title, n.message, COALESCE(n.description, '') AS description,
	n.for_admin, n.for_dealer, n.for_user, n.for_vendor, n.dealer_id, n.order_id, n.is_read,
	n.metadata, n.created_at`

// inboxWhere keeps the newest row per order plus every row without an order.
const inboxWhere = ` WHERE n.dealer_id = ? AND (n.order_id IS NULL OR n.id = (
	SELECT MAX(m.id) FROM notifications m WHERE m.dealer_id = n.dealer_id AND m.order_id = n.order_id))`

// InboxCounts summarises the folded inbox of a dealer.
type InboxCounts struct {
	Total  int64 `db:"total" json:"total"`
	Unread int64 `db:"unread" json:"unread"`
}

func (s *Store) insertNotification(ctx context.Context, ext sqlx.ExtContext, n *models.Notification) error {
	n.CreatedAt = s.now()
	var orderID interface{}
	if n.OrderID != nil && *n.OrderID != "" {
		orderID = *n.OrderID
	}

	id, err := s.dialect.insertID(ctx, ext, `
		INSERT INTO notifications (type, title, message, description, for_admin, for_dealer,
			for_user, for_vendor, dealer_id, order_id, is_read, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.Type, n.Title, n.Message, n.Description, n.ForAdmin, n.ForDealer,
		n.ForUser, n.ForVendor, n.DealerID, orderID, n.IsRead, n.Metadata, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	n.ID = id
	return nil
}

// GetNotification returns the notification if it belongs to the dealer.
func (s *Store) GetNotification(ctx context.Context, id int64, dealerID string) (*models.Notification, error) {
	var n models.Notification
	err := s.db.GetContext(ctx, &n,
		s.q("SELECT "+notificationColumns+" FROM notifications n WHERE n.id = ? AND n.dealer_id = ?"),
		id, dealerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("notification %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// ListInbox returns one page of the folded inbox, newest first.
func (s *Store) ListInbox(ctx context.Context, dealerID string, limit, offset int) ([]models.Notification, error) {
	out := []models.Notification{}
	err := s.db.SelectContext(ctx, &out,
		s.q("SELECT "+notificationColumns+" FROM notifications n"+inboxWhere+" ORDER BY n.id DESC LIMIT ? OFFSET ?"),
		dealerID, limit, offset)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CountInbox counts the rows of the folded inbox.
func (s *Store) CountInbox(ctx context.Context, dealerID string) (InboxCounts, error) {
	var c InboxCounts
	err := s.db.GetContext(ctx, &c,
		s.q(`SELECT COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN n.is_read THEN 0 ELSE 1 END), 0) AS unread
			FROM notifications n`+inboxWhere),
		dealerID)
	return c, err
}

// ListOrderHistory returns every notification recorded for an order, oldest
// first.
func (s *Store) ListOrderHistory(ctx context.Context, dealerID, orderID string) ([]models.Notification, error) {
	out := []models.Notification{}
	err := s.db.SelectContext(ctx, &out,
		s.q("SELECT "+notificationColumns+" FROM notifications n WHERE n.dealer_id = ? AND n.order_id = ? ORDER BY n.id ASC"),
		dealerID, orderID)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetNotificationRead sets the read flag of one notification.
func (s *Store) SetNotificationRead(ctx context.Context, id int64, dealerID string, read bool) error {
	res, err := s.db.ExecContext(ctx,
		s.q("UPDATE notifications SET is_read = ? WHERE id = ? AND dealer_id = ?"),
		read, id, dealerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	// MySQL reports zero rows when the flag already had the value.
	_, err = s.GetNotification(ctx, id, dealerID)
	return err
}

// MarkAllRead marks every notification of the dealer as read.
func (s *Store) MarkAllRead(ctx context.Context, dealerID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		s.q("UPDATE notifications SET is_read = ? WHERE dealer_id = ? AND is_read = ?"),
		true, dealerID, false)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteNotification removes one notification.
func (s *Store) DeleteNotification(ctx context.Context, id int64, dealerID string) error {
	res, err := s.db.ExecContext(ctx,
		s.q("DELETE FROM notifications WHERE id = ? AND dealer_id = ?"), id, dealerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("notification %d: %w", id, ErrNotFound)
	}
	return nil
}
