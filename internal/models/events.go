package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types. They match the notification types of the same transition.
const (
	EventTypeOrderPlaced        = NotificationOrderPlaced
	EventTypeOrderAccepted      = NotificationOrderAccepted
	EventTypeOrderRejected      = NotificationOrderRejected
	EventTypeOrderStatusUpdated = NotificationOrderStatusUpdated
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderEvent is published for every order lifecycle change and carries what
// the customer email needs.
type OrderEvent struct {
	BaseEvent
	OrderID        string          `json:"order_id"`
	DealerID       string          `json:"dealer_id"`
	CustomerName   string          `json:"customer_name"`
	CustomerEmail  string          `json:"customer_email"`
	ProductName    string          `json:"product_name"`
	Quantity       int             `json:"quantity"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Status         string          `json:"status"`
	PreviousStatus string          `json:"previous_status,omitempty"`
}

// NewOrderEvent builds an event of eventType for order.
func NewOrderEvent(eventType string, order *Order, previousStatus string) *OrderEvent {
	return &OrderEvent{
		BaseEvent: BaseEvent{
			EventID:   uuid.New().String(),
			EventType: eventType,
			Timestamp: time.Now().UTC(),
		},
		OrderID:        order.OrderID,
		DealerID:       order.DealerID,
		CustomerName:   order.CustomerName,
		CustomerEmail:  order.CustomerEmail,
		ProductName:    order.ProductName,
		Quantity:       order.Quantity,
		TotalAmount:    order.TotalAmount,
		Status:         order.OrderStatus,
		PreviousStatus: previousStatus,
	}
}
