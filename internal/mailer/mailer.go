// Package mailer renders and sends the customer emails of the order
// lifecycle.
package mailer

import (
	"context"
	"errors"
	"fmt"

	"dealer-portal/config"
	"dealer-portal/internal/models"
	"dealer-portal/internal/util"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

var (
	// ErrNoRecipient is returned for events without a customer email.
	ErrNoRecipient = errors.New("event has no customer email")
	// ErrUnknownTemplate is returned for event types that have no email.
	ErrUnknownTemplate = errors.New("no email template for event type")
)

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// SMTPSender sends mail through an SMTP relay.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPSender creates a sender for the configured relay
func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

// LogSender writes messages to the log instead of sending them.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender() *LogSender {
	return &LogSender{logger: util.GetLogger()}
}

func (s *LogSender) Send(_ context.Context, msg *Message) error {
	s.logger.Info("Email (log transport)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("html_bytes", len(msg.HTML)))
	return nil
}

// NewSender picks the transport named by cfg.Transport.
func NewSender(cfg config.MailConfig) Sender {
	if cfg.Transport == "smtp" {
		return NewSMTPSender(cfg)
	}
	return NewLogSender()
}

// Notifier turns order events into customer emails.
type Notifier struct {
	sender Sender
	logger *zap.Logger
}

// NewNotifier creates a new notifier
func NewNotifier(sender Sender) *Notifier {
	return &Notifier{
		sender: sender,
		logger: util.GetLogger(),
	}
}

// Notify renders the email for ev and sends it.
func (n *Notifier) Notify(ctx context.Context, ev *models.OrderEvent) error {
	ctx, span := util.StartSpan(ctx, "Notifier.Notify")
	defer span.End()

	msg, err := Render(ev)
	if err != nil {
		return err
	}

	if err := n.sender.Send(ctx, msg); err != nil {
		util.EmailsFailedTotal.WithLabelValues(ev.EventType).Inc()
		return err
	}

	util.EmailsSentTotal.WithLabelValues(ev.EventType).Inc()
	n.logger.Info("Order email sent",
		zap.String("order_id", ev.OrderID),
		zap.String("event_type", ev.EventType))
	return nil
}
