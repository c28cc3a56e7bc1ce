package models

import (
	"strings"
	"time"

	"dealer-portal/internal/metadata"

	"github.com/shopspring/decimal"
)

func init() {
	// Money is sent to clients as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// Dealer is a tenant of the portal
type Dealer struct {
	DealerID     string    `db:"dealer_id" json:"dealer_id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	Phone        string    `db:"phone" json:"phone,omitempty"`
	BusinessName string    `db:"business_name" json:"business_name,omitempty"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Brand belongs to a dealer's catalog
type Brand struct {
	ID          int64     `db:"id" json:"id"`
	DealerID    string    `db:"dealer_id" json:"dealer_id"`
	Name        string    `db:"name" json:"name"`
	Slug        string    `db:"slug" json:"slug"`
	Description string    `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// SubBrand is a brand line under a brand
type SubBrand struct {
	ID          int64     `db:"id" json:"id"`
	BrandID     int64     `db:"brand_id" json:"brand_id"`
	DealerID    string    `db:"dealer_id" json:"dealer_id"`
	Name        string    `db:"name" json:"name"`
	Slug        string    `db:"slug" json:"slug"`
	Description string    `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Category groups products
type Category struct {
	CategoryID  string    `db:"category_id" json:"category_id"`
	DealerID    string    `db:"dealer_id" json:"dealer_id"`
	Name        string    `db:"name" json:"name"`
	Slug        string    `db:"slug" json:"slug"`
	Description string    `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// SubCategory refines a category
type SubCategory struct {
	ID          int64     `db:"id" json:"id"`
	CategoryID  string    `db:"category_id" json:"category_id"`
	DealerID    string    `db:"dealer_id" json:"dealer_id"`
	Name        string    `db:"name" json:"name"`
	Slug        string    `db:"slug" json:"slug"`
	Description string    `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Product represents a product in a dealer's catalog
type Product struct {
	ProductID     string          `db:"product_id" json:"product_id"`
	DealerID      string          `db:"dealer_id" json:"dealer_id"`
	Name          string          `db:"name" json:"name"`
	Slug          string          `db:"slug" json:"slug"`
	Description   string          `db:"description" json:"description,omitempty"`
	Price         decimal.Decimal `db:"price" json:"price"`
	Stock         int             `db:"stock" json:"stock"`
	CategoryID    *string         `db:"category_id" json:"category_id,omitempty"`
	SubCategoryID *int64          `db:"sub_category_id" json:"sub_category_id,omitempty"`
	BrandID       *int64          `db:"brand_id" json:"brand_id,omitempty"`
	SubBrandID    *int64          `db:"sub_brand_id" json:"sub_brand_id,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// Order represents a customer order. One order references one product.
type Order struct {
	OrderID         string          `db:"order_id" json:"order_id"`
	DealerID        string          `db:"dealer_id" json:"dealer_id"`
	UserID          string          `db:"user_id" json:"user_id"`
	ProductID       string          `db:"product_id" json:"product_id"`
	ProductName     string          `db:"product_name" json:"product_name,omitempty"`
	ProductPrice    decimal.Decimal `db:"product_price" json:"-"`
	Quantity        int             `db:"quantity" json:"quantity"`
	CustomerName    string          `db:"customer_name" json:"customer_name"`
	CustomerEmail   string          `db:"customer_email" json:"customer_email"`
	CustomerPhone   string          `db:"customer_phone" json:"customer_phone,omitempty"`
	ShippingAddress string          `db:"shipping_address" json:"shipping_address"`
	ShippingPincode string          `db:"shipping_pincode" json:"shipping_pincode"`
	OrderStatus     string          `db:"order_status" json:"order_status"`
	PaymentStatus   string          `db:"payment_status" json:"payment_status"`
	TotalAmount     decimal.Decimal `db:"total_amount" json:"total_amount"`
	TaxAmount       decimal.Decimal `db:"tax_amount" json:"tax_amount"`
	ShippingCost    decimal.Decimal `db:"shipping_cost" json:"shipping_cost"`
	DiscountAmount  decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	PaymentMethod   string          `db:"payment_method" json:"payment_method,omitempty"`
	TransactionID   string          `db:"transaction_id" json:"transaction_id,omitempty"`
	OrderDate       time.Time       `db:"order_date" json:"order_date"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// Snapshot captures the order for a notification's metadata.
func (o *Order) Snapshot() *metadata.Snapshot {
	qty := decimal.NewFromInt(int64(o.Quantity))
	price := o.ProductPrice
	if price.IsZero() && o.Quantity > 0 {
		price = o.TotalAmount.Div(qty).Round(2)
	}
	subtotal := price.Mul(qty)
	return &metadata.Snapshot{
		Items: []metadata.Item{{
			Name:      o.ProductName,
			ProductID: metadata.FlexString(o.ProductID),
			Quantity:  metadata.FlexInt(o.Quantity),
			Price:     price,
			Subtotal:  subtotal,
		}},
		ProductID:       metadata.FlexString(o.ProductID),
		OrderID:         metadata.FlexString(o.OrderID),
		OrderDate:       metadata.FlexString(o.OrderDate.UTC().Format(time.RFC3339)),
		OrderStatus:     o.OrderStatus,
		TotalAmount:     o.TotalAmount,
		CustomerName:    o.CustomerName,
		CustomerEmail:   o.CustomerEmail,
		PaymentStatus:   o.PaymentStatus,
		ShippingAddress: o.ShippingAddress,
		ShippingPincode: o.ShippingPincode,
	}
}

// Notification is one entry of a dealer's notification log
type Notification struct {
	ID          int64           `db:"id" json:"id"`
	Type        string          `db:"type" json:"type"`
	Title       string          `db:"title" json:"title"`
	Message     string          `db:"message" json:"message"`
	Description string          `db:"description" json:"description,omitempty"`
	ForAdmin    bool            `db:"for_admin" json:"for_admin"`
	ForDealer   bool            `db:"for_dealer" json:"for_dealer"`
	ForUser     bool            `db:"for_user" json:"for_user"`
	ForVendor   bool            `db:"for_vendor" json:"for_vendor"`
	DealerID    string          `db:"dealer_id" json:"dealer_id"`
	OrderID     *string         `db:"order_id" json:"order_id,omitempty"`
	IsRead      bool            `db:"is_read" json:"is_read"`
	Metadata    metadata.Column `db:"metadata" json:"metadata"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// Order statuses. Only pending, processing and rejected take part in the
// accept/reject transitions; the rest are written by the generic update.
const (
	OrderStatusPending          = "pending"
	OrderStatusProcessing       = "processing"
	OrderStatusRejected         = "rejected"
	OrderStatusShipped          = "shipped"
	OrderStatusDelivered        = "delivered"
	OrderStatusCancelled        = "cancelled"
	OrderStatusReturnedRefunded = "returned_refunded"
	OrderStatusFailedDelivery   = "failed_delivery"
)

// NormalizeStatus lowercases and trims a status for comparison.
func NormalizeStatus(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}

// Payment statuses
const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
)

// Notification types
const (
	NotificationOrderPlaced        = "order_placed"
	NotificationOrderAccepted      = "order_accepted"
	NotificationOrderRejected      = "order_rejected"
	NotificationOrderStatusUpdated = "order_status_updated"
	NotificationProductCreated     = "product_created"
)

// Outbox statuses
const (
	OutboxStatusPending   = "pending"
	OutboxStatusPublished = "published"
	OutboxStatusDead      = "dead"
)

// OutboxEvent is a side effect persisted with the state change that caused it
type OutboxEvent struct {
	ID            int64      `db:"id" json:"id"`
	EventID       string     `db:"event_id" json:"event_id"`
	EventType     string     `db:"event_type" json:"event_type"`
	AggregateID   string     `db:"aggregate_id" json:"aggregate_id"`
	DealerID      string     `db:"dealer_id" json:"dealer_id"`
	Payload       []byte     `db:"payload" json:"-"`
	Status        string     `db:"status" json:"status"`
	Attempts      int        `db:"attempts" json:"attempts"`
	NextAttemptAt time.Time  `db:"next_attempt_at" json:"next_attempt_at"`
	LastError     string     `db:"last_error" json:"last_error,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	PublishedAt   *time.Time `db:"published_at" json:"published_at,omitempty"`
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
