package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"dealer-portal/internal/models"
)

type emailKind struct {
	subject  string
	headline string
	body     string
}

var kinds = map[string]emailKind{
	models.EventTypeOrderPlaced: {
		subject:  "Order %s received",
		headline: "Thank you for your order",
		body:     "We have received your order and the dealer will confirm it shortly.",
	},
	models.EventTypeOrderAccepted: {
		subject:  "Order %s accepted",
		headline: "Your order has been accepted",
		body:     "The dealer has accepted your order and is preparing it for shipment.",
	},
	models.EventTypeOrderRejected: {
		subject:  "Order %s could not be fulfilled",
		headline: "Your order was rejected",
		body:     "Unfortunately the dealer could not fulfil your order. Any payment made will be refunded.",
	},
	models.EventTypeOrderStatusUpdated: {
		subject:  "Order %s status update",
		headline: "Your order status has changed",
		body:     "Your order has moved to a new status.",
	},
}

var layout = template.Must(template.New("order").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222;">
  <h2>{{.Headline}}</h2>
  <p>Hi {{.CustomerName}},</p>
  <p>{{.Body}}</p>
  <table cellpadding="6" style="border-collapse: collapse;">
    <tr><td><strong>Order ID</strong></td><td>{{.OrderID}}</td></tr>
    <tr><td><strong>Product</strong></td><td>{{.ProductName}}</td></tr>
    {{- if .Quantity}}
    <tr><td><strong>Quantity</strong></td><td>{{.Quantity}}</td></tr>
    {{- end}}
    <tr><td><strong>Total</strong></td><td>{{.TotalAmount}}</td></tr>
    <tr><td><strong>Status</strong></td><td>{{.Status}}</td></tr>
  </table>
</body>
</html>
`))

type templateData struct {
	Headline     string
	Body         string
	CustomerName string
	OrderID      string
	ProductName  string
	Quantity     int
	TotalAmount  string
	Status       string
}

// Render builds the email for an order event.
func Render(ev *models.OrderEvent) (*Message, error) {
	kind, ok := kinds[ev.EventType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, ev.EventType)
	}
	if strings.TrimSpace(ev.CustomerEmail) == "" {
		return nil, fmt.Errorf("%w: order %s", ErrNoRecipient, ev.OrderID)
	}

	name := ev.CustomerName
	if name == "" {
		name = "customer"
	}
	data := templateData{
		Headline:     kind.headline,
		Body:         kind.body,
		CustomerName: name,
		OrderID:      ev.OrderID,
		ProductName:  ev.ProductName,
		Quantity:     ev.Quantity,
		TotalAmount:  ev.TotalAmount.StringFixed(2),
		Status:       ev.Status,
	}

	var buf bytes.Buffer
	if err := layout.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render %s email: %w", ev.EventType, err)
	}

	return &Message{
		To:      ev.CustomerEmail,
		Subject: fmt.Sprintf(kind.subject, ev.OrderID),
		HTML:    buf.String(),
	}, nil
}
