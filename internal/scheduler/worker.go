package scheduler

import (
	"context"
	"fmt"

	"lead_routing_backend/internal/events"
	"lead_routing_backend/internal/routing/service"
	"lead_routing_backend/platform/apperr"
	"lead_routing_backend/platform/config"
	"lead_routing_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// TimerEngine is the part of the routing service the timer tasks drive.
type TimerEngine interface {
	EscalateIfExpired(ctx context.Context, leadID uuid.UUID) (service.EscalationResult, error)
	ReleaseIfDue(ctx context.Context, leadID uuid.UUID) (service.ReleaseResult, error)
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	engine TimerEngine
	bus    events.Bus
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, engine TimerEngine, bus events.Bus, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := newWorker(engine, bus, log)
	w.server = server
	return w, nil
}

func newWorker(engine TimerEngine, bus events.Bus, log *logger.Logger) *Worker {
	if log == nil {
		log = logger.Nop()
	}
	w := &Worker{
		mux:    asynq.NewServeMux(),
		engine: engine,
		bus:    bus,
		log:    log,
	}

	w.mux.HandleFunc(TaskClaimExpiry, w.handleClaimExpiry)
	w.mux.HandleFunc(TaskNightRelease, w.handleNightRelease)
	w.mux.HandleFunc(TaskNotificationOutboxDue, w.handleNotificationOutboxDue)
	return w
}

func (w *Worker) handleClaimExpiry(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseClaimExpiryPayload(task)
	if err != nil {
		return fmt.Errorf("parse claim expiry payload: %v: %w", err, asynq.SkipRetry)
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return fmt.Errorf("invalid lead id %q: %w", payload.LeadID, asynq.SkipRetry)
	}

	res, err := w.engine.EscalateIfExpired(ctx, leadID)
	if err != nil {
		return timerError(err)
	}

	w.log.Info("claim expiry handled",
		"lead_id", leadID.String(),
		"round", payload.Round,
		"outcome", string(res.Outcome),
		"reason", res.Reason,
	)
	return nil
}

func (w *Worker) handleNightRelease(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseNightReleasePayload(task)
	if err != nil {
		return fmt.Errorf("parse night release payload: %v: %w", err, asynq.SkipRetry)
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return fmt.Errorf("invalid lead id %q: %w", payload.LeadID, asynq.SkipRetry)
	}

	res, err := w.engine.ReleaseIfDue(ctx, leadID)
	if err != nil {
		return timerError(err)
	}

	w.log.Info("night release handled",
		"lead_id", leadID.String(),
		"outcome", string(res.Outcome),
	)
	return nil
}

// timerError keeps transient failures retryable and drops tasks for leads
// that no longer exist.
func timerError(err error) error {
	if apperr.Is(err, apperr.KindNotFound) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

func (w *Worker) handleNotificationOutboxDue(ctx context.Context, task *asynq.Task) error {
	if w.bus == nil {
		return nil
	}

	payload, err := ParseNotificationOutboxDuePayload(task)
	if err != nil {
		return fmt.Errorf("parse outbox payload: %v: %w", err, asynq.SkipRetry)
	}

	outboxID, err := uuid.Parse(payload.OutboxID)
	if err != nil {
		return fmt.Errorf("invalid outbox id %q: %w", payload.OutboxID, asynq.SkipRetry)
	}

	// The outbox row owns the retry schedule; asynq must not redeliver.
	if err := w.bus.PublishSync(ctx, events.NotificationOutboxDue{
		BaseEvent: events.NewBaseEvent(),
		OutboxID:  outboxID,
	}); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
