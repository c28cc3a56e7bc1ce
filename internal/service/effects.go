package service

import (
	"encoding/json"
	"fmt"

	"dealer-portal/internal/metadata"
	"dealer-portal/internal/models"
	"dealer-portal/internal/store"
)

// narrative is the inbox text for one notification type.
type narrative struct {
	title       string
	message     func(o *models.Order, previous string) string
	description string
	forAdmin    bool
}

var narratives = map[string]narrative{
	models.NotificationOrderPlaced: {
		title: "New order received",
		message: func(o *models.Order, _ string) string {
			return fmt.Sprintf("Order %s: %d x %s for %s from %s",
				o.OrderID, o.Quantity, productLabel(o), o.TotalAmount.StringFixed(2), o.CustomerName)
		},
		description: "A customer placed an order. Accept or reject it from your inbox.",
		forAdmin:    true,
	},
	models.NotificationOrderAccepted: {
		title: "Order accepted",
		message: func(o *models.Order, _ string) string {
			return fmt.Sprintf("You accepted order %s for %s", o.OrderID, productLabel(o))
		},
		description: "The order is now processing and the customer has been notified.",
	},
	models.NotificationOrderRejected: {
		title: "Order rejected",
		message: func(o *models.Order, _ string) string {
			return fmt.Sprintf("You rejected order %s for %s", o.OrderID, productLabel(o))
		},
		description: "The order was rejected and the customer has been notified.",
	},
	models.NotificationOrderStatusUpdated: {
		title: "Order status updated",
		message: func(o *models.Order, previous string) string {
			return fmt.Sprintf("Order %s moved from %s to %s", o.OrderID, previous, o.OrderStatus)
		},
		description: "The customer has been notified of the new status.",
	},
}

func productLabel(o *models.Order) string {
	if o.ProductName != "" {
		return o.ProductName
	}
	return o.ProductID
}

// orderNotification builds the log entry of kind for order, with a fresh
// metadata snapshot.
func orderNotification(kind string, order *models.Order, previous string) (*models.Notification, error) {
	n, ok := narratives[kind]
	if !ok {
		return nil, fmt.Errorf("no narrative for notification type %s", kind)
	}
	col, err := metadata.NewColumn(order.Snapshot())
	if err != nil {
		return nil, err
	}
	orderID := order.OrderID
	return &models.Notification{
		Type:        kind,
		Title:       n.title,
		Message:     n.message(order, previous),
		Description: n.description,
		ForAdmin:    n.forAdmin,
		ForDealer:   true,
		DealerID:    order.DealerID,
		OrderID:     &orderID,
		Metadata:    col,
	}, nil
}

// orderOutbox builds the outbox event that drives the customer email.
func orderOutbox(eventType string, order *models.Order, previous string) (*models.OutboxEvent, error) {
	ev := models.NewOrderEvent(eventType, order, previous)
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", eventType, err)
	}
	return &models.OutboxEvent{
		EventID:     ev.EventID,
		EventType:   eventType,
		AggregateID: order.OrderID,
		DealerID:    order.DealerID,
		Payload:     payload,
	}, nil
}

// effectsFor records a notification and an email event of the same type.
func effectsFor(kind string) store.SideEffects {
	return func(order *models.Order, previous string) (*models.Notification, *models.OutboxEvent, error) {
		n, err := orderNotification(kind, order, previous)
		if err != nil {
			return nil, nil, err
		}
		ev, err := orderOutbox(kind, order, previous)
		if err != nil {
			return nil, nil, err
		}
		return n, ev, nil
	}
}

// transitionKind maps a transition target to its notification type.
func transitionKind(target string) (string, bool) {
	switch target {
	case models.OrderStatusProcessing:
		return models.NotificationOrderAccepted, true
	case models.OrderStatusRejected:
		return models.NotificationOrderRejected, true
	}
	return "", false
}
