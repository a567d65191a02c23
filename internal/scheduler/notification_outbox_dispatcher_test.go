package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"lead_routing_backend/internal/notification/outbox"
	"lead_routing_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type fakeOutboxClaimer struct {
	records []outbox.Record
	pending map[uuid.UUID]string
}

func (f *fakeOutboxClaimer) ClaimPending(context.Context, int) ([]outbox.Record, error) {
	records := f.records
	f.records = nil
	return records, nil
}

func (f *fakeOutboxClaimer) MarkPending(_ context.Context, id uuid.UUID, lastError *string) error {
	if f.pending == nil {
		f.pending = map[uuid.UUID]string{}
	}
	msg := ""
	if lastError != nil {
		msg = *lastError
	}
	f.pending[id] = msg
	return nil
}

func TestDispatchOnceEnqueuesClaimedRecords(t *testing.T) {
	runAt := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	firstID := uuid.New()
	repo := &fakeOutboxClaimer{records: []outbox.Record{
		{ID: firstID, RunAt: runAt},
		{ID: uuid.New(), RunAt: runAt},
	}}
	enq := &fakeEnqueuer{}
	d := &NotificationOutboxDispatcher{client: enq, queue: "routing", repo: repo, log: logger.Nop()}

	if n := d.dispatchOnce(context.Background()); n != 2 {
		t.Fatalf("enqueued = %d, want 2", n)
	}
	if len(enq.calls) != 2 {
		t.Fatalf("enqueue calls = %d", len(enq.calls))
	}

	payload, err := ParseNotificationOutboxDuePayload(enq.calls[0].task)
	if err != nil {
		t.Fatal(err)
	}
	if payload.OutboxID != firstID.String() {
		t.Fatalf("outbox id = %q, want %s", payload.OutboxID, firstID)
	}
	if got, _ := enq.calls[0].opts[asynq.ProcessAtOpt].(time.Time); !got.Equal(runAt) {
		t.Fatalf("process at = %v, want %v", got, runAt)
	}
	if got := enq.calls[0].opts[asynq.QueueOpt]; got != "routing" {
		t.Fatalf("queue = %v", got)
	}
	if len(repo.pending) != 0 {
		t.Fatalf("no record should be requeued, got %v", repo.pending)
	}
}

func TestDispatchOnceRequeuesOnEnqueueFailure(t *testing.T) {
	id := uuid.New()
	repo := &fakeOutboxClaimer{records: []outbox.Record{{ID: id, RunAt: time.Now()}}}
	d := &NotificationOutboxDispatcher{
		client: &fakeEnqueuer{err: errors.New("redis down")},
		queue:  "routing",
		repo:   repo,
		log:    logger.Nop(),
	}

	if n := d.dispatchOnce(context.Background()); n != 0 {
		t.Fatalf("enqueued = %d, want 0", n)
	}
	if repo.pending[id] != "redis down" {
		t.Fatalf("expected record requeued with error, got %v", repo.pending)
	}
}
