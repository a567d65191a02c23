package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"lead_routing_backend/internal/routing/ports"
	"lead_routing_backend/platform/config"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const timerMaxRetry = 10

// enqueuer is the part of *asynq.Client the scheduler uses.
type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Client schedules the routing engine's durable timers.
type Client struct {
	client enqueuer
	queue  string
}

var _ ports.TimerScheduler = (*Client)(nil)

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queueName(cfg),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// ScheduleClaimExpiry fires the escalation check for (lead, round) at at.
// Scheduling the same pair twice is a no-op.
func (c *Client) ScheduleClaimExpiry(ctx context.Context, leadID uuid.UUID, round int, at time.Time) error {
	task, err := NewClaimExpiryTask(ClaimExpiryPayload{LeadID: leadID.String(), Round: round})
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task, claimExpiryTaskID(leadID, round), at)
}

// ScheduleNightRelease fires the night-hold release for leadID at at.
func (c *Client) ScheduleNightRelease(ctx context.Context, leadID uuid.UUID, at time.Time) error {
	task, err := NewNightReleaseTask(NightReleasePayload{LeadID: leadID.String()})
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task, nightReleaseTaskID(leadID, at), at)
}

func (c *Client) enqueue(ctx context.Context, task *asynq.Task, taskID string, at time.Time) error {
	if c == nil || c.client == nil {
		return nil
	}

	_, err := c.client.EnqueueContext(ctx, task,
		asynq.TaskID(taskID),
		asynq.ProcessAt(at),
		asynq.Queue(c.queue),
		asynq.MaxRetry(timerMaxRetry),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// NopTimers is used when Redis is not configured. The database sweeper still
// picks up lapsed claim windows and night holds.
type NopTimers struct{}

func (NopTimers) ScheduleClaimExpiry(context.Context, uuid.UUID, int, time.Time) error { return nil }
func (NopTimers) ScheduleNightRelease(context.Context, uuid.UUID, time.Time) error     { return nil }

func queueName(cfg config.SchedulerConfig) string {
	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}
	return queue
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redisOptions(redisURL, tlsInsecure)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}

// NewRedisClient opens a go-redis client on the scheduler's Redis, for the
// business-hours cache.
func NewRedisClient(cfg config.SchedulerConfig) (*redis.Client, error) {
	opt, err := redisOptions(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opt), nil
}

func redisOptions(redisURL string, tlsInsecure bool) (*redis.Options, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		opt.TLSConfig = clone
	} else if tlsInsecure {
		opt.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return opt, nil
}
