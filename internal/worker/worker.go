package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dealer-portal/config"
	"dealer-portal/internal/broker"
	"dealer-portal/internal/mailer"
	"dealer-portal/internal/models"
	"dealer-portal/internal/store"
	"dealer-portal/internal/util"

	"go.uber.org/zap"
)

// OutboxStore is the part of the store the relay needs.
type OutboxStore interface {
	ProcessOutbox(ctx context.Context, limit, maxAttempts int, backoff time.Duration,
		deliver func(context.Context, *models.OutboxEvent) error) (store.OutboxResult, error)
}

// OutboxPublisher publishes one outbox event.
type OutboxPublisher interface {
	PublishOutboxEvent(ctx context.Context, ev *models.OutboxEvent) error
}

// OutboxRelay moves committed outbox events to the broker
type OutboxRelay struct {
	store     OutboxStore
	publisher OutboxPublisher
	cfg       config.OutboxConfig
	logger    *zap.Logger
}

// NewOutboxRelay creates a new outbox relay
func NewOutboxRelay(outbox OutboxStore, publisher OutboxPublisher, cfg config.OutboxConfig) *OutboxRelay {
	return &OutboxRelay{
		store:     outbox,
		publisher: publisher,
		cfg:       cfg,
		logger:    util.GetLogger(),
	}
}

// Start polls the outbox until ctx is cancelled
func (r *OutboxRelay) Start(ctx context.Context) error {
	r.logger.Info("Starting outbox relay", zap.Duration("interval", r.cfg.PollInterval))

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Stopping outbox relay")
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("Outbox relay pass failed", zap.Error(err))
			}
		}
	}
}

// RunOnce relays one batch of due events
func (r *OutboxRelay) RunOnce(ctx context.Context) (store.OutboxResult, error) {
	start := time.Now()
	defer func() {
		util.OutboxRelayLatency.Observe(time.Since(start).Seconds())
	}()

	result, err := r.store.ProcessOutbox(ctx, r.cfg.BatchSize, r.cfg.MaxAttempts, r.cfg.Backoff,
		func(ctx context.Context, ev *models.OutboxEvent) error {
			if err := r.publisher.PublishOutboxEvent(ctx, ev); err != nil {
				r.logger.Warn("Outbox delivery failed",
					zap.String("event_id", ev.EventID),
					zap.Int("attempts", ev.Attempts),
					zap.Error(err))
				return err
			}
			return nil
		})
	if err != nil {
		return result, err
	}

	util.OutboxDeliveredTotal.Add(float64(result.Published))
	util.OutboxFailedTotal.WithLabelValues("retry").Add(float64(result.Retried))
	util.OutboxFailedTotal.WithLabelValues("dead").Add(float64(result.Dead))
	if result.Dead > 0 {
		r.logger.Error("Outbox events moved to dead", zap.Int("count", result.Dead))
	}
	return result, nil
}

// ProcessedStore records handled event ids.
type ProcessedStore interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// Notifier sends the email for an order event.
type Notifier interface {
	Notify(ctx context.Context, ev *models.OrderEvent) error
}

// MailWorker consumes order events and emails customers
type MailWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	processed    ProcessedStore
	notifier     Notifier
	attempts     int
	backoff      time.Duration
	logger       *zap.Logger
}

// NewMailWorker creates a new mail worker
func NewMailWorker(consumer *broker.Consumer, processed ProcessedStore, notifier Notifier) *MailWorker {
	w := &MailWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		processed:    processed,
		notifier:     notifier,
		attempts:     3,
		backoff:      time.Second,
		logger:       util.GetLogger(),
	}
	w.eventHandler.OnOrderEvent(w.HandleOrderEvent)
	return w
}

// Start starts the worker
func (w *MailWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting mail worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *MailWorker) Stop() error {
	w.logger.Info("Stopping mail worker")
	return w.consumer.Close()
}

// HandleOrderEvent sends the email for ev once. Events already recorded in
// processed_events are skipped.
func (w *MailWorker) HandleOrderEvent(ctx context.Context, ev *models.OrderEvent) error {
	done, err := w.processed.IsEventProcessed(ctx, ev.EventID)
	if err != nil {
		return fmt.Errorf("check processed event %s: %w", ev.EventID, err)
	}
	if done {
		w.logger.Debug("Skipping processed event", zap.String("event_id", ev.EventID))
		return nil
	}

	err = w.notifyWithRetry(ctx, ev)
	switch {
	case errors.Is(err, mailer.ErrNoRecipient), errors.Is(err, mailer.ErrUnknownTemplate):
		w.logger.Warn("Order event has no email", zap.String("event_id", ev.EventID), zap.Error(err))
	case err != nil:
		return err
	}

	return w.processed.MarkEventProcessed(ctx, ev.EventID, ev.EventType)
}

func (w *MailWorker) notifyWithRetry(ctx context.Context, ev *models.OrderEvent) error {
	var err error
	for attempt := 1; attempt <= w.attempts; attempt++ {
		err = w.notifier.Notify(ctx, ev)
		if err == nil || errors.Is(err, mailer.ErrNoRecipient) || errors.Is(err, mailer.ErrUnknownTemplate) {
			return err
		}

		w.logger.Warn("Email send failed",
			zap.String("order_id", ev.OrderID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt == w.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * w.backoff):
		}
	}
	return fmt.Errorf("email for order %s failed after %d attempts: %w", ev.OrderID, w.attempts, err)
}
