package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"dealer-portal/config"
	"dealer-portal/internal/mailer"
	"dealer-portal/internal/models"
	"dealer-portal/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOutbox struct {
	events []*models.OutboxEvent
	errs   []error
}

func (f *fakeOutbox) ProcessOutbox(ctx context.Context, limit, maxAttempts int, backoff time.Duration,
	deliver func(context.Context, *models.OutboxEvent) error) (store.OutboxResult, error) {
	var res store.OutboxResult
	for _, ev := range f.events {
		ev.Attempts++
		err := deliver(ctx, ev)
		f.errs = append(f.errs, err)
		switch {
		case err == nil:
			res.Published++
		case ev.Attempts >= maxAttempts:
			res.Dead++
		default:
			res.Retried++
		}
	}
	return res, nil
}

type fakePublisher struct {
	fail map[string]bool
	sent []string
}

func (f *fakePublisher) PublishOutboxEvent(_ context.Context, ev *models.OutboxEvent) error {
	if f.fail[ev.EventID] {
		return errors.New("broker unavailable")
	}
	f.sent = append(f.sent, ev.EventID)
	return nil
}

func TestOutboxRelay_RunOnce(t *testing.T) {
	outbox := &fakeOutbox{events: []*models.OutboxEvent{
		{EventID: "evt-1"},
		{EventID: "evt-2", Attempts: 2},
		{EventID: "evt-3"},
	}}
	pub := &fakePublisher{fail: map[string]bool{"evt-2": true, "evt-3": true}}
	relay := NewOutboxRelay(outbox, pub, config.OutboxConfig{BatchSize: 10, MaxAttempts: 3, Backoff: time.Second})

	res, err := relay.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, store.OutboxResult{Published: 1, Retried: 1, Dead: 1}, res)
	assert.Equal(t, []string{"evt-1"}, pub.sent)
}

type fakeProcessed struct {
	seen map[string]bool
}

func (f *fakeProcessed) IsEventProcessed(_ context.Context, id string) (bool, error) {
	return f.seen[id], nil
}

func (f *fakeProcessed) MarkEventProcessed(_ context.Context, id, _ string) error {
	f.seen[id] = true
	return nil
}

type flakyNotifier struct {
	failures int
	calls    int
	err      error
}

func (f *flakyNotifier) Notify(context.Context, *models.OrderEvent) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	if f.calls <= f.failures {
		return errors.New("smtp timeout")
	}
	return nil
}

func newTestMailWorker(n Notifier, processed ProcessedStore) *MailWorker {
	w := NewMailWorker(nil, processed, n)
	w.backoff = time.Millisecond
	return w
}

func orderEvent(id string) *models.OrderEvent {
	ev := models.NewOrderEvent(models.EventTypeOrderAccepted, &models.Order{OrderID: "ORD71"}, "pending")
	ev.EventID = id
	return ev
}

func TestMailWorker_RetriesThenMarksProcessed(t *testing.T) {
	n := &flakyNotifier{failures: 2}
	processed := &fakeProcessed{seen: map[string]bool{}}
	w := newTestMailWorker(n, processed)

	require.NoError(t, w.HandleOrderEvent(context.Background(), orderEvent("evt-1")))
	assert.Equal(t, 3, n.calls)
	assert.True(t, processed.seen["evt-1"])

	// Redelivery is a no-op.
	require.NoError(t, w.HandleOrderEvent(context.Background(), orderEvent("evt-1")))
	assert.Equal(t, 3, n.calls)
}

func TestMailWorker_LeavesEventUnprocessedAfterRetries(t *testing.T) {
	n := &flakyNotifier{failures: 10}
	processed := &fakeProcessed{seen: map[string]bool{}}
	w := newTestMailWorker(n, processed)

	err := w.HandleOrderEvent(context.Background(), orderEvent("evt-2"))
	assert.Error(t, err)
	assert.Equal(t, 3, n.calls)
	assert.False(t, processed.seen["evt-2"])
}

func TestMailWorker_SkipsEventsWithoutEmail(t *testing.T) {
	n := &flakyNotifier{err: mailer.ErrNoRecipient}
	processed := &fakeProcessed{seen: map[string]bool{}}
	w := newTestMailWorker(n, processed)

	require.NoError(t, w.HandleOrderEvent(context.Background(), orderEvent("evt-3")))
	assert.Equal(t, 1, n.calls)
	assert.True(t, processed.seen["evt-3"])
}
