package scheduler

import (
	"context"
	"fmt"
	"time"

	"lead_routing_backend/internal/notification/outbox"
	"lead_routing_backend/platform/config"
	"lead_routing_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	outboxPollInterval = 2 * time.Second
	outboxClaimBatch   = 50
)

// outboxClaimer is the part of the outbox repository the dispatcher needs.
type outboxClaimer interface {
	ClaimPending(ctx context.Context, limit int) ([]outbox.Record, error)
	MarkPending(ctx context.Context, id uuid.UUID, lastError *string) error
}

type NotificationOutboxDispatcher struct {
	client enqueuer
	queue  string
	repo   outboxClaimer
	log    *logger.Logger
}

func NewNotificationOutboxDispatcher(cfg config.SchedulerConfig, pool *pgxpool.Pool, log *logger.Logger) (*NotificationOutboxDispatcher, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return &NotificationOutboxDispatcher{
		client: asynq.NewClient(opt),
		queue:  queueName(cfg),
		repo:   outbox.New(pool),
		log:    log,
	}, nil
}

func (d *NotificationOutboxDispatcher) Close() error {
	if d == nil || d.client == nil {
		return nil
	}
	return d.client.Close()
}

func (d *NotificationOutboxDispatcher) Run(ctx context.Context) {
	if d == nil || d.client == nil || d.repo == nil {
		return
	}

	ticker := time.NewTicker(outboxPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		d.dispatchOnce(ctx)
	}
}

// dispatchOnce claims due outbox rows and hands each to the worker queue.
// Rows that cannot be enqueued go back to pending.
func (d *NotificationOutboxDispatcher) dispatchOnce(ctx context.Context) int {
	records, err := d.repo.ClaimPending(ctx, outboxClaimBatch)
	if err != nil {
		d.log.Warn("outbox claim failed", "error", err)
		return 0
	}

	enqueued := 0
	for _, rec := range records {
		task, err := NewNotificationOutboxDueTask(NotificationOutboxDuePayload{
			OutboxID: rec.ID.String(),
		})
		if err != nil {
			d.requeue(ctx, rec.ID, err)
			continue
		}

		if _, err := d.client.EnqueueContext(ctx, task, asynq.ProcessAt(rec.RunAt), asynq.Queue(d.queue)); err != nil {
			d.requeue(ctx, rec.ID, err)
			continue
		}
		enqueued++
	}
	return enqueued
}

func (d *NotificationOutboxDispatcher) requeue(ctx context.Context, id uuid.UUID, cause error) {
	msg := cause.Error()
	if err := d.repo.MarkPending(ctx, id, &msg); err != nil {
		d.log.Warn("outbox requeue failed", "outbox_id", id.String(), "error", err)
	}
}
