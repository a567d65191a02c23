// Package routing wires the lead routing engine: repository, business-hours
// cache, notifier, service and HTTP handler.
package routing

import (
	"lead_routing_backend/internal/events"
	apphttp "lead_routing_backend/internal/http"
	"lead_routing_backend/internal/routing/cache"
	"lead_routing_backend/internal/routing/handler"
	"lead_routing_backend/internal/routing/ports"
	"lead_routing_backend/internal/routing/repository"
	"lead_routing_backend/internal/routing/service"
	"lead_routing_backend/platform/config"
	"lead_routing_backend/platform/logger"
	"lead_routing_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Module is the routing bounded context implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	hours   *cache.BusinessHours
}

// NewModule builds the engine on Postgres. rdb may be nil, which disables
// the business-hours cache.
func NewModule(pool *pgxpool.Pool, rdb redis.UniversalClient, timers ports.TimerScheduler, eventBus events.Bus, val *validator.Validator, cfg config.RoutingConfig, log *logger.Logger) *Module {
	repo := repository.New(pool)
	hours := cache.NewBusinessHours(rdb, repo, cfg.GetBusinessHoursCacheTTL(), log)

	svc := service.New(service.Deps{
		Leads:    repo,
		Agents:   repo,
		Rules:    repo,
		Rounds:   repo,
		Hours:    hours,
		Timers:   timers,
		Notifier: busNotifier{bus: eventBus},
		Log:      log,
	}, service.Config{
		DefaultClaimWindowMinutes: cfg.GetDefaultClaimWindowMinutes(),
		DefaultLanguage:           cfg.GetDefaultLanguage(),
		PhoneDefaultRegion:        cfg.GetPhoneDefaultRegion(),
	})

	return &Module{
		handler: handler.New(svc, hours, val),
		service: svc,
		hours:   hours,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "routing"
}

// Service exposes the engine to the scheduler worker.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts intake, agent claim and admin trigger routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	intake := ctx.V1.Group("/leads")
	if ctx.IntakeRateLimiter != nil {
		intake.Use(ctx.IntakeRateLimiter.RateLimit())
	}
	m.handler.RegisterPublicRoutes(intake)

	m.handler.RegisterAgentRoutes(ctx.Protected.Group("/agent/leads"))
	m.handler.RegisterAdminRoutes(ctx.Admin.Group("/routing"))
}

var _ apphttp.Module = (*Module)(nil)
