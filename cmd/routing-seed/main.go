// Command routing-seed loads agents, routing rules, round rosters and business
// hours from a YAML file into the routing tables.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"lead_routing_backend/internal/routing/cache"
	"lead_routing_backend/internal/routing/repository"
	"lead_routing_backend/internal/scheduler"
	"lead_routing_backend/platform/config"
	"lead_routing_backend/platform/db"
	"lead_routing_backend/platform/logger"
)

func main() {
	path := flag.String("file", "routing-seed.yaml", "seed file")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	data, err := loadSeedFile(*path)
	if err != nil {
		log.Error("failed to read seed file", "file", *path, "error", err)
		os.Exit(1)
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	repo := repository.New(pool)
	if err := apply(ctx, repo, data); err != nil {
		log.Error("seed failed", "error", err)
		os.Exit(1)
	}

	if data.Hours != nil && cfg.GetRedisURL() != "" {
		rdb, err := scheduler.NewRedisClient(cfg)
		if err == nil {
			if err := cache.NewBusinessHours(rdb, repo, cfg.GetBusinessHoursCacheTTL(), log).Invalidate(ctx); err != nil {
				log.Warn("business hours cache not invalidated", "error", err)
			}
			_ = rdb.Close()
		}
	}

	log.Info("routing seed applied",
		"agents", len(data.Agents),
		"rules", len(data.Rules),
		"rounds", len(data.Rounds),
		"business_hours", data.Hours != nil,
	)
}

// apply writes agents first so rules and rounds can reference them.
func apply(ctx context.Context, repo *repository.Repo, data seedData) error {
	for _, a := range data.Agents {
		if err := repo.UpsertAgent(ctx, a); err != nil {
			return err
		}
	}
	for _, r := range data.Rules {
		if err := repo.UpsertRule(ctx, r); err != nil {
			return err
		}
	}
	for _, r := range data.Rounds {
		if err := repo.UpsertRoundConfig(ctx, r); err != nil {
			return err
		}
	}
	if data.Hours != nil {
		if err := repo.SetBusinessHours(ctx, *data.Hours); err != nil {
			return err
		}
	}
	return nil
}
