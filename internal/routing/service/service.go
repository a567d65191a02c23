// Package service implements the lead routing engine: intake, the
// business-hours gate, rule matching, direct assignment, round broadcast,
// escalation, night release and agent claims. All state changes go through
// ports.LeadRecorder.
package service

import (
	"time"

	"lead_routing_backend/internal/routing/ports"
	"lead_routing_backend/platform/logger"
)

const (
	opSubmitLead   = "routing.submit_lead"
	opClaim        = "routing.claim"
	opEscalate     = "routing.escalate_if_expired"
	opRelease      = "routing.release_if_due"
	opSweep        = "routing.sweep"
	opReroute      = "routing.route_if_unrouted"
	opAssignManual = "routing.assign_manually"
	defaultSource  = "Website"
	defaultRegion  = "ES"
	sweepBatchSize = 100
	// Leads younger than this may still be mid-route in their request.
	unroutedGrace = 2 * time.Minute
)

// Config holds engine defaults.
type Config struct {
	DefaultClaimWindowMinutes int
	DefaultLanguage           string
	PhoneDefaultRegion        string
}

// Deps are the engine's collaborators.
type Deps struct {
	Leads    ports.LeadRecorder
	Agents   ports.AgentDirectory
	Rules    ports.RuleStore
	Rounds   ports.RoundConfigStore
	Hours    ports.BusinessHoursSource
	Timers   ports.TimerScheduler
	Notifier ports.Notifier
	Clock    ports.Clock
	Log      *logger.Logger
}

// Service is the routing engine.
type Service struct {
	leads    ports.LeadRecorder
	agents   ports.AgentDirectory
	rules    ports.RuleStore
	rounds   ports.RoundConfigStore
	hours    ports.BusinessHoursSource
	timers   ports.TimerScheduler
	notifier ports.Notifier
	now      ports.Clock
	log      *logger.Logger
	cfg      Config
}

// New creates the routing engine.
func New(deps Deps, cfg Config) *Service {
	if cfg.DefaultClaimWindowMinutes < 1 {
		cfg.DefaultClaimWindowMinutes = 15
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "en"
	}
	if cfg.PhoneDefaultRegion == "" {
		cfg.PhoneDefaultRegion = defaultRegion
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}

	return &Service{
		leads:    deps.Leads,
		agents:   deps.Agents,
		rules:    deps.Rules,
		rounds:   deps.Rounds,
		hours:    deps.Hours,
		timers:   deps.Timers,
		notifier: deps.Notifier,
		now:      clock,
		log:      log,
		cfg:      cfg,
	}
}
