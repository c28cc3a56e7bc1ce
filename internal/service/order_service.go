package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dealer-portal/config"
	"dealer-portal/internal/ident"
	"dealer-portal/internal/models"
	"dealer-portal/internal/store"
	"dealer-portal/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderService handles order business logic
type OrderService struct {
	store          OrderStore
	coord          Coordinator
	idempotencyTTL time.Duration
	lockTTL        time.Duration
	logger         *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(store OrderStore, coord Coordinator, cfg config.RedisConfig) *OrderService {
	if coord == nil {
		coord = NewLocalCoordinator()
	}
	return &OrderService{
		store:          store,
		coord:          coord,
		idempotencyTTL: cfg.IdempotencyTTL,
		lockTTL:        cfg.LockTTL,
		logger:         util.GetLogger(),
	}
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	UserID          string          `json:"user_id" validate:"required"`
	DealerID        string          `json:"dealer_id" validate:"required"`
	ProductID       string          `json:"product_id" validate:"required"`
	Quantity        int             `json:"quantity" validate:"gt=0"`
	CustomerName    string          `json:"customer_name" validate:"required"`
	CustomerEmail   string          `json:"customer_email" validate:"required,email"`
	CustomerPhone   string          `json:"customer_phone"`
	ShippingAddress string          `json:"shipping_address" validate:"required"`
	ShippingPincode string          `json:"shipping_pincode" validate:"required"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	ShippingCost    decimal.Decimal `json:"shipping_cost"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	PaymentMethod   string          `json:"payment_method"`
	PaymentStatus   string          `json:"payment_status"`
	TransactionID   string          `json:"transaction_id"`
	IdempotencyKey  string          `json:"-"`
}

func (r *CreateOrderRequest) validate() error {
	var extra []string
	for name, amount := range map[string]decimal.Decimal{
		"total_amount":    r.TotalAmount,
		"tax_amount":      r.TaxAmount,
		"shipping_cost":   r.ShippingCost,
		"discount_amount": r.DiscountAmount,
	} {
		if amount.IsNegative() {
			extra = append(extra, name+" must not be negative")
		}
	}
	return validateStruct(r, extra...)
}

// CreateOrder places an order. The second return value is true when the
// idempotency key matched an earlier order, which is returned unchanged.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*models.Order, bool, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if err := req.validate(); err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_request").Inc()
		return nil, false, err
	}

	if req.IdempotencyKey == "" {
		order, err := s.createOrder(ctx, req)
		return order, false, err
	}

	// The key is claimed for the whole check-and-insert so a concurrent
	// retry waits and then finds the stored order.
	scope := "orders:" + req.DealerID
	var (
		order     *models.Order
		duplicate bool
	)
	err := s.coord.WithLock(ctx, "idempotency:"+scope+":"+req.IdempotencyKey, s.lockTTL, func() error {
		existingID, ok, err := s.coord.GetIdempotencyKey(ctx, scope, req.IdempotencyKey)
		if err != nil {
			return fmt.Errorf("failed to check idempotency: %w", err)
		}
		if ok {
			existing, err := s.store.GetOrder(ctx, existingID, req.DealerID)
			if err != nil {
				return translate(err, ErrOrderNotFound)
			}
			s.logger.Info("Duplicate order request detected",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.String("order_id", existing.OrderID))
			order, duplicate = existing, true
			return nil
		}

		created, err := s.createOrder(ctx, req)
		if err != nil {
			return err
		}
		if _, err := s.coord.SetIdempotencyKey(ctx, scope, req.IdempotencyKey, created.OrderID, s.idempotencyTTL); err != nil {
			s.logger.Warn("Failed to store idempotency key", zap.String("order_id", created.OrderID), zap.Error(err))
		}
		order = created
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return order, duplicate, nil
}

func (s *OrderService) createOrder(ctx context.Context, req *CreateOrderRequest) (*models.Order, error) {
	if _, err := s.store.GetDealer(ctx, req.DealerID); err != nil {
		return nil, translate(err, ErrNotFound)
	}
	product, err := s.store.GetProduct(ctx, req.ProductID, req.DealerID)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("unknown_product").Inc()
		return nil, translate(err, ErrNotFound)
	}

	order := &models.Order{
		DealerID:        req.DealerID,
		UserID:          req.UserID,
		ProductID:       product.ProductID,
		ProductName:     product.Name,
		ProductPrice:    product.Price,
		Quantity:        req.Quantity,
		CustomerName:    strings.TrimSpace(req.CustomerName),
		CustomerEmail:   strings.TrimSpace(req.CustomerEmail),
		CustomerPhone:   req.CustomerPhone,
		ShippingAddress: req.ShippingAddress,
		ShippingPincode: req.ShippingPincode,
		PaymentStatus:   models.NormalizeStatus(req.PaymentStatus),
		TotalAmount:     req.TotalAmount,
		TaxAmount:       req.TaxAmount,
		ShippingCost:    req.ShippingCost,
		DiscountAmount:  req.DiscountAmount,
		PaymentMethod:   req.PaymentMethod,
		TransactionID:   req.TransactionID,
	}

	err = s.coord.WithLock(ctx, idLock(ident.PrefixOrder, req.DealerID), s.lockTTL, func() error {
		return s.store.CreateOrder(ctx, order, effectsFor(models.NotificationOrderPlaced))
	})
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create order: %w", translate(err, nil))
	}

	util.OrdersPlacedTotal.Inc()
	util.NotificationsWrittenTotal.WithLabelValues(models.NotificationOrderPlaced).Inc()
	s.logger.Info("Order created",
		zap.String("order_id", order.OrderID),
		zap.String("dealer_id", order.DealerID))
	return order, nil
}

// idLock names the lock guarding id generation for prefix. Ids embed the
// dealer number, so dealers sharing a number share the lock.
func idLock(prefix, dealerID string) string {
	return "ids:" + prefix + ":" + ident.DealerNumber(dealerID)
}

// GetOrder retrieves an order of the dealer
func (s *OrderService) GetOrder(ctx context.Context, orderID, dealerID string) (*models.Order, error) {
	if dealerID == "" {
		return nil, ErrMissingDealer
	}
	order, err := s.store.GetOrder(ctx, orderID, dealerID)
	if err != nil {
		return nil, translate(err, ErrOrderNotFound)
	}
	return order, nil
}

// ListOrders lists the orders of a dealer or a user
func (s *OrderService) ListOrders(ctx context.Context, f store.OrderFilter) ([]models.Order, error) {
	if f.DealerID == "" && f.UserID == "" {
		return nil, invalid("dealer_id or user_id is required")
	}
	return s.store.ListOrders(ctx, f)
}

// Accept moves a pending order to processing.
func (s *OrderService) Accept(ctx context.Context, orderID, dealerID string) (*store.Transition, error) {
	return s.transitionOne(ctx, orderID, dealerID, models.OrderStatusProcessing)
}

// Reject moves a pending order to rejected.
func (s *OrderService) Reject(ctx context.Context, orderID, dealerID string) (*store.Transition, error) {
	return s.transitionOne(ctx, orderID, dealerID, models.OrderStatusRejected)
}

func (s *OrderService) transitionOne(ctx context.Context, orderID, dealerID, target string) (*store.Transition, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, ErrNoOrderID
	}
	results, err := s.TransitionOrders(ctx, dealerID, []string{orderID}, target)
	if err != nil {
		return nil, err
	}
	return &results[0], nil
}

// TransitionOrders is the single entry point for accept and reject. Every
// order must be pending or already at target; otherwise nothing changes.
func (s *OrderService) TransitionOrders(ctx context.Context, dealerID string, orderIDs []string, target string) ([]store.Transition, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.TransitionOrders")
	defer span.End()

	if dealerID == "" {
		return nil, ErrMissingDealer
	}
	if len(orderIDs) == 0 {
		return nil, ErrNoOrderID
	}
	kind, ok := transitionKind(target)
	if !ok {
		return nil, invalid(fmt.Sprintf("unsupported transition target %q", target))
	}

	results, err := s.store.TransitionOrders(ctx, dealerID, orderIDs, target, effectsFor(kind))
	if err != nil {
		err = translate(err, ErrOrderNotFound)
		util.OrderTransitionsTotal.WithLabelValues(target, transitionOutcome(err)).Inc()
		s.logger.Warn("Order transition refused",
			zap.String("dealer_id", dealerID),
			zap.Strings("order_ids", orderIDs),
			zap.String("target", target),
			zap.Error(err))
		return nil, err
	}

	for _, r := range results {
		if r.Changed {
			util.OrderTransitionsTotal.WithLabelValues(target, "changed").Inc()
			util.NotificationsWrittenTotal.WithLabelValues(kind).Inc()
			s.logger.Info("Order transitioned",
				zap.String("order_id", r.Order.OrderID),
				zap.String("from", r.PreviousStatus),
				zap.String("to", target))
		} else {
			util.OrderTransitionsTotal.WithLabelValues(target, "noop").Inc()
		}
	}
	return results, nil
}

func transitionOutcome(err error) string {
	switch {
	case errors.Is(err, ErrOrderNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidTransition):
		return "conflict"
	default:
		return "error"
	}
}

// UpdateOrderRequest is the body of the generic order update
type UpdateOrderRequest struct {
	OrderStatus   *string `json:"order_status"`
	PaymentStatus *string `json:"payment_status"`
}

// UpdateOrder writes any order or payment status. A changed order status
// is logged and emailed to the customer.
func (s *OrderService) UpdateOrder(ctx context.Context, orderID, dealerID string, req *UpdateOrderRequest) (*store.Transition, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateOrder")
	defer span.End()

	if dealerID == "" {
		return nil, ErrMissingDealer
	}

	var upd store.OrderUpdate
	if req.OrderStatus != nil {
		status := models.NormalizeStatus(*req.OrderStatus)
		if status == "" {
			return nil, invalid("order_status must not be empty")
		}
		upd.OrderStatus = &status
	}
	if req.PaymentStatus != nil {
		status := models.NormalizeStatus(*req.PaymentStatus)
		if status == "" {
			return nil, invalid("payment_status must not be empty")
		}
		upd.PaymentStatus = &status
	}
	if upd.OrderStatus == nil && upd.PaymentStatus == nil {
		return nil, invalid("order_status or payment_status is required")
	}

	result, err := s.store.UpdateOrder(ctx, orderID, dealerID, upd, effectsFor(models.NotificationOrderStatusUpdated))
	if err != nil {
		return nil, translate(err, ErrOrderNotFound)
	}
	if result.Changed {
		util.NotificationsWrittenTotal.WithLabelValues(models.NotificationOrderStatusUpdated).Inc()
		s.logger.Info("Order status updated",
			zap.String("order_id", orderID),
			zap.String("from", result.PreviousStatus),
			zap.String("to", result.Order.OrderStatus))
	}
	return result, nil
}
