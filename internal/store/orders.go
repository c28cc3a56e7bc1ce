package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"dealer-portal/internal/ident"
	"dealer-portal/internal/models"

	"github.com/jmoiron/sqlx"
)

// SideEffects builds the notification and outbox event recorded with an
// order change. Either may be nil.
type SideEffects func(order *models.Order, previousStatus string) (*models.Notification, *models.OutboxEvent, error)

// Transition is the outcome of a status change for one order.
type Transition struct {
	Order          *models.Order
	PreviousStatus string
	// Changed is false when the order already had the requested status.
	Changed bool
}

// OrderFilter selects orders for listing. At least one of DealerID and
// UserID should be set.
type OrderFilter struct {
	DealerID string
	UserID   string
	Status   string
	Limit    int
	Offset   int
}

// OrderUpdate holds the optional fields of the generic order update.
type OrderUpdate struct {
	OrderStatus   *string
	PaymentStatus *string
}

const orderColumns = `o.order_id, o.dealer_id, o.user_id, o.product_id, o.quantity,
	o.customer_name, o.customer_email, o.customer_phone, o.shipping_address, o.shipping_pincode,
	o.order_status, o.payment_status, o.total_amount, o.tax_amount, o.shipping_cost,
	o.discount_amount, o.payment_method, o.transaction_id, o.order_date, o.updated_at,
	COALESCE(p.name, '') AS product_name, COALESCE(p.price, 0) AS product_price`

const orderFrom = ` FROM orders o LEFT JOIN products p ON p.product_id = o.product_id`

// CreateOrder assigns the next order id for the dealer and inserts the order
// together with its side effects in one transaction.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order, effects SideEffects) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if order.OrderID == "" {
			id, err := s.nextID(ctx, tx, "orders", "order_id",
				ident.PrefixOrder, ident.DealerNumber(order.DealerID))
			if err != nil {
				return err
			}
			order.OrderID = id
		}

		now := s.now()
		order.OrderDate = now
		order.UpdatedAt = now
		if order.OrderStatus == "" {
			order.OrderStatus = models.OrderStatusPending
		}
		if order.PaymentStatus == "" {
			order.PaymentStatus = models.PaymentStatusPending
		}

		_, err := tx.ExecContext(ctx, s.q(`
			INSERT INTO orders (order_id, dealer_id, user_id, product_id, quantity,
				customer_name, customer_email, customer_phone, shipping_address, shipping_pincode,
				order_status, payment_status, total_amount, tax_amount, shipping_cost,
				discount_amount, payment_method, transaction_id, order_date, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			order.OrderID, order.DealerID, order.UserID, order.ProductID, order.Quantity,
			order.CustomerName, order.CustomerEmail, order.CustomerPhone, order.ShippingAddress, order.ShippingPincode,
			order.OrderStatus, order.PaymentStatus, order.TotalAmount, order.TaxAmount, order.ShippingCost,
			order.DiscountAmount, order.PaymentMethod, order.TransactionID, order.OrderDate, order.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert order: %w", mapErr(err))
		}

		return s.writeEffects(ctx, tx, order, "", effects)
	})
}

// GetOrder returns the order if it belongs to the dealer.
func (s *Store) GetOrder(ctx context.Context, orderID, dealerID string) (*models.Order, error) {
	return s.getOrder(ctx, s.db, orderID, dealerID)
}

func (s *Store) getOrder(ctx context.Context, q sqlx.QueryerContext, orderID, dealerID string) (*models.Order, error) {
	var order models.Order
	err := sqlx.GetContext(ctx, q, &order,
		s.q("SELECT "+orderColumns+orderFrom+" WHERE o.order_id = ? AND o.dealer_id = ?"),
		orderID, dealerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrders returns orders matching the filter, newest first.
func (s *Store) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.DealerID != "" {
		where = append(where, "o.dealer_id = ?")
		args = append(args, f.DealerID)
	}
	if f.UserID != "" {
		where = append(where, "o.user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		where = append(where, "LOWER(o.order_status) = ?")
		args = append(args, models.NormalizeStatus(f.Status))
	}

	query := "SELECT " + orderColumns + orderFrom
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY o.order_date DESC, o.order_id DESC"
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	orders := []models.Order{}
	if err := s.db.SelectContext(ctx, &orders, s.q(query), args...); err != nil {
		return nil, err
	}
	return orders, nil
}

// TransitionOrders moves every listed order from pending to target in a
// single transaction. Only the conditional UPDATE decides whether an order
// moved. Orders already at target are reported unchanged; any other status
// fails the whole batch with ErrStatusConflict.
func (s *Store) TransitionOrders(ctx context.Context, dealerID string, orderIDs []string, target string, effects SideEffects) ([]Transition, error) {
	var results []Transition
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		results = make([]Transition, 0, len(orderIDs))
		for _, id := range orderIDs {
			t, err := s.transitionOrder(ctx, tx, dealerID, id, target, effects)
			if err != nil {
				return err
			}
			results = append(results, *t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Store) transitionOrder(ctx context.Context, tx *sqlx.Tx, dealerID, orderID, target string, effects SideEffects) (*Transition, error) {
	res, err := tx.ExecContext(ctx,
		s.q("UPDATE orders SET order_status = ?, updated_at = ? WHERE order_id = ? AND dealer_id = ? AND LOWER(order_status) = ?"),
		target, s.now(), orderID, dealerID, models.OrderStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to update order %s: %w", orderID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}

	order, err := s.getOrder(ctx, tx, orderID, dealerID)
	if err != nil {
		return nil, err
	}

	if affected == 0 {
		if models.NormalizeStatus(order.OrderStatus) == target {
			return &Transition{Order: order, PreviousStatus: order.OrderStatus}, nil
		}
		return nil, fmt.Errorf("%w: order %s is %s", ErrStatusConflict, orderID, order.OrderStatus)
	}

	if err := s.writeEffects(ctx, tx, order, models.OrderStatusPending, effects); err != nil {
		return nil, err
	}
	return &Transition{Order: order, PreviousStatus: models.OrderStatusPending, Changed: true}, nil
}

// UpdateOrder writes any status or payment status. Side effects are recorded
// only when the order status actually changes.
func (s *Store) UpdateOrder(ctx context.Context, orderID, dealerID string, upd OrderUpdate, effects SideEffects) (*Transition, error) {
	var result *Transition
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var previous string
		err := tx.GetContext(ctx, &previous,
			s.q("SELECT order_status FROM orders WHERE order_id = ? AND dealer_id = ? FOR UPDATE"),
			orderID, dealerID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("order %s: %w", orderID, ErrNotFound)
		}
		if err != nil {
			return err
		}

		sets := []string{"updated_at = ?"}
		args := []interface{}{s.now()}
		if upd.OrderStatus != nil {
			sets = append(sets, "order_status = ?")
			args = append(args, *upd.OrderStatus)
		}
		if upd.PaymentStatus != nil {
			sets = append(sets, "payment_status = ?")
			args = append(args, *upd.PaymentStatus)
		}
		args = append(args, orderID, dealerID)

		_, err = tx.ExecContext(ctx,
			s.q("UPDATE orders SET "+strings.Join(sets, ", ")+" WHERE order_id = ? AND dealer_id = ?"),
			args...)
		if err != nil {
			return fmt.Errorf("failed to update order %s: %w", orderID, err)
		}

		order, err := s.getOrder(ctx, tx, orderID, dealerID)
		if err != nil {
			return err
		}

		changed := upd.OrderStatus != nil &&
			models.NormalizeStatus(*upd.OrderStatus) != models.NormalizeStatus(previous)
		if changed {
			if err := s.writeEffects(ctx, tx, order, previous, effects); err != nil {
				return err
			}
		}
		result = &Transition{Order: order, PreviousStatus: previous, Changed: changed}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) writeEffects(ctx context.Context, tx *sqlx.Tx, order *models.Order, previous string, effects SideEffects) error {
	if effects == nil {
		return nil
	}
	notification, event, err := effects(order, previous)
	if err != nil {
		return err
	}
	if notification != nil {
		if err := s.insertNotification(ctx, tx, notification); err != nil {
			return err
		}
	}
	if event != nil {
		if err := s.insertOutbox(ctx, tx, event); err != nil {
			return err
		}
	}
	return nil
}
