package scheduler

import (
	"context"
	"time"

	"lead_routing_backend/internal/routing/service"
	"lead_routing_backend/platform/logger"
)

const defaultSweepInterval = 30 * time.Second

// DueSweeper re-drives lapsed claim windows and night holds.
type DueSweeper interface {
	SweepDue(ctx context.Context) (service.SweepStats, error)
}

// Sweeper periodically runs the routing sweep so leads still move when a
// durable timer was lost or Redis was unavailable when it should have been set.
type Sweeper struct {
	engine   DueSweeper
	interval time.Duration
	log      *logger.Logger
}

func NewSweeper(engine DueSweeper, interval time.Duration, log *logger.Logger) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Sweeper{engine: engine, interval: interval, log: log}
}

func (s *Sweeper) Run(ctx context.Context) {
	if s == nil || s.engine == nil {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s.sweepOnce(ctx)
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) service.SweepStats {
	stats, err := s.engine.SweepDue(ctx)
	if err != nil {
		s.log.Warn("routing sweep failed", "error", err)
		return stats
	}
	if stats.Escalated > 0 || stats.Released > 0 || stats.Rerouted > 0 || stats.Failed > 0 {
		s.log.Info("routing sweep",
			"escalated", stats.Escalated,
			"released", stats.Released,
			"rerouted", stats.Rerouted,
			"failed", stats.Failed,
		)
	}
	return stats
}
