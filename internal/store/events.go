package store

import (
	"context"
)

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		s.q("SELECT COUNT(*) FROM processed_events WHERE event_id = ?"), eventID)
	return n > 0, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		s.q(s.dialect.InsertIgnore(
			"INSERT INTO processed_events (event_id, event_type, processed_at) VALUES (?, ?, ?)",
			"event_id")),
		eventID, eventType, s.now())
	return err
}
