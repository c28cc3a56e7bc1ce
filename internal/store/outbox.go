package store

import (
	"context"
	"fmt"
	"time"

	"dealer-portal/internal/models"

	"github.com/jmoiron/sqlx"
)

// OutboxResult counts what one relay pass did.
type OutboxResult struct {
	Published int
	Retried   int
	Dead      int
}

const outboxColumns = `id, event_id, event_type, aggregate_id, dealer_id, payload, status, attempts,
	next_attempt_at, COALESCE(last_error, '') AS last_error, created_at, published_at`

func (s *Store) insertOutbox(ctx context.Context, ext sqlx.ExtContext, ev *models.OutboxEvent) error {
	now := s.now()
	ev.Status = models.OutboxStatusPending
	ev.CreatedAt = now
	if ev.NextAttemptAt.IsZero() {
		ev.NextAttemptAt = now
	}

	id, err := s.dialect.insertID(ctx, ext, `
		INSERT INTO outbox_events (event_id, event_type, aggregate_id, dealer_id, payload,
			status, attempts, next_attempt_at, last_error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.EventID, ev.EventType, ev.AggregateID, ev.DealerID, string(ev.Payload),
		ev.Status, ev.Attempts, ev.NextAttemptAt, ev.LastError, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", mapErr(err))
	}
	ev.ID = id
	return nil
}

// ProcessOutbox hands up to limit due events to deliver, one transaction per
// batch. Rows locked by another relay are skipped. A failed delivery is
// retried after attempts*backoff and marked dead once maxAttempts is reached.
func (s *Store) ProcessOutbox(ctx context.Context, limit, maxAttempts int, backoff time.Duration,
	deliver func(context.Context, *models.OutboxEvent) error) (OutboxResult, error) {
	var result OutboxResult
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var events []models.OutboxEvent
		err := tx.SelectContext(ctx, &events,
			s.q("SELECT "+outboxColumns+" FROM outbox_events WHERE status = ? AND next_attempt_at <= ? ORDER BY id LIMIT ? FOR UPDATE SKIP LOCKED"),
			models.OutboxStatusPending, s.now(), limit)
		if err != nil {
			return fmt.Errorf("failed to select outbox events: %w", err)
		}

		for i := range events {
			ev := &events[i]
			ev.Attempts++
			if derr := deliver(ctx, ev); derr == nil {
				_, err = tx.ExecContext(ctx,
					s.q("UPDATE outbox_events SET status = ?, attempts = ?, published_at = ?, last_error = ? WHERE id = ?"),
					models.OutboxStatusPublished, ev.Attempts, s.now(), "", ev.ID)
				result.Published++
			} else {
				status := models.OutboxStatusPending
				if ev.Attempts >= maxAttempts {
					status = models.OutboxStatusDead
					result.Dead++
				} else {
					result.Retried++
				}
				next := s.now().Add(time.Duration(ev.Attempts) * backoff)
				_, err = tx.ExecContext(ctx,
					s.q("UPDATE outbox_events SET status = ?, attempts = ?, next_attempt_at = ?, last_error = ? WHERE id = ?"),
					status, ev.Attempts, next, derr.Error(), ev.ID)
			}
			if err != nil {
				return fmt.Errorf("failed to update outbox event %s: %w", ev.EventID, err)
			}
		}
		return nil
	})
	if err != nil {
		return OutboxResult{}, err
	}
	return result, nil
}

// ListOutbox returns the outbox events recorded for an order.
func (s *Store) ListOutbox(ctx context.Context, aggregateID string) ([]models.OutboxEvent, error) {
	out := []models.OutboxEvent{}
	err := s.db.SelectContext(ctx, &out,
		s.q("SELECT "+outboxColumns+" FROM outbox_events WHERE aggregate_id = ? ORDER BY id"),
		aggregateID)
	return out, err
}

// ReplayDeadOutbox puts dead events back in the queue. An empty eventID
// replays all of them.
func (s *Store) ReplayDeadOutbox(ctx context.Context, eventID string) (int64, error) {
	query := "UPDATE outbox_events SET status = ?, attempts = 0, next_attempt_at = ? WHERE status = ?"
	args := []interface{}{models.OutboxStatusPending, s.now(), models.OutboxStatusDead}
	if eventID != "" {
		query += " AND event_id = ?"
		args = append(args, eventID)
	}
	res, err := s.db.ExecContext(ctx, s.q(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
