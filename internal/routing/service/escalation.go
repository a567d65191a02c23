package service

import (
	"context"
	"errors"
	"fmt"

	"lead_routing_backend/internal/routing/domain"
	"lead_routing_backend/internal/routing/ports"
	"lead_routing_backend/platform/apperr"

	"github.com/google/uuid"
)

// EscalationOutcome describes what EscalateIfExpired did.
type EscalationOutcome string

const (
	EscalationNoop          EscalationOutcome = "noop"
	EscalationNextRound     EscalationOutcome = "escalated"
	EscalationAdminAssigned EscalationOutcome = "admin_assigned"
	EscalationManual        EscalationOutcome = "manual_assignment_required"
)

// EscalationResult is returned by EscalateIfExpired.
type EscalationResult struct {
	LeadID     uuid.UUID
	Outcome    EscalationOutcome
	Reason     string
	Round      *int
	Recipients int
	AgentID    *uuid.UUID
}

// ReleaseOutcome describes what ReleaseIfDue did.
type ReleaseOutcome string

const (
	ReleaseNoop     ReleaseOutcome = "noop"
	ReleaseNotDue   ReleaseOutcome = "not_due"
	ReleaseReleased ReleaseOutcome = "released"
)

// ReleaseResult is returned by ReleaseIfDue.
type ReleaseResult struct {
	LeadID  uuid.UUID
	Outcome ReleaseOutcome
	Routing *Outcome
}

// EscalateIfExpired moves an unclaimed lead whose claim window has elapsed to
// the next round, the admin fallback, or manual handling. It re-reads the
// lead first, so firing on a claimed, reassigned or already escalated lead
// changes nothing.
func (s *Service) EscalateIfExpired(ctx context.Context, leadID uuid.UUID) (EscalationResult, error) {
	result := EscalationResult{LeadID: leadID, Outcome: EscalationNoop}

	lead, err := s.leads.GetLead(ctx, leadID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return result, apperr.NotFound("lead not found").WithOp(opEscalate)
		}
		return result, apperr.Unavailable("lead could not be loaded", err).WithOp(opEscalate)
	}

	if !lead.AwaitingClaim() || lead.CurrentRound == nil {
		result.Reason = "lead is not awaiting a claim"
		return result, nil
	}
	if s.now().Before(*lead.ClaimWindowExpiresAt) {
		result.Reason = "claim window still open"
		result.Round = lead.CurrentRound
		return result, nil
	}

	current := *lead.CurrentRound
	next, err := s.rounds.GetNextRound(ctx, lead.Language, current)
	var d decision
	switch {
	case errors.Is(err, ports.ErrNotFound):
		d, err = s.flagManual(ctx, lead, &current, current, fmt.Sprintf("Claim window for round %d expired with no further rounds", current))
	case err != nil:
		return result, apperr.Unavailable("round configuration could not be loaded", err).WithOp(opEscalate)
	case next.IsAdminFallback:
		d, err = s.assignAdminFallback(ctx, lead, next, lead.RoutingRuleID, &current)
	default:
		d, err = s.broadcast(ctx, lead, next.RoundNumber, &next, lead.RoutingRuleID, &current)
	}
	if err != nil {
		return result, apperr.Unavailable("escalation could not be recorded", err).WithOp(opEscalate)
	}

	result.Round = d.round
	result.Recipients = d.recipients
	result.AgentID = d.agentID
	switch {
	case d.superseded:
		result.Reason = "lead changed concurrently"
	case d.method == domain.MethodAdminFallback:
		result.Outcome = EscalationAdminAssigned
	case d.parked:
		result.Outcome = EscalationManual
	default:
		result.Outcome = EscalationNextRound
	}
	return result, nil
}

// ReleaseIfDue re-runs routing for a night-held lead once its release time
// has passed. The business-hours gate is skipped.
func (s *Service) ReleaseIfDue(ctx context.Context, leadID uuid.UUID) (ReleaseResult, error) {
	result := ReleaseResult{LeadID: leadID, Outcome: ReleaseNoop}

	lead, err := s.leads.GetLead(ctx, leadID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return result, apperr.NotFound("lead not found").WithOp(opRelease)
		}
		return result, apperr.Unavailable("lead could not be loaded", err).WithOp(opRelease)
	}

	if lead.Status != domain.StatusNightHeld {
		return result, nil
	}
	now := s.now()
	if lead.ScheduledReleaseAt != nil && now.Before(*lead.ScheduledReleaseAt) {
		result.Outcome = ReleaseNotDue
		return result, nil
	}

	released, err := s.leads.ReleaseNightHold(ctx, lead.ID, now)
	if err != nil {
		return result, apperr.Unavailable("night hold could not be released", err).WithOp(opRelease)
	}
	if !released {
		return result, nil
	}
	s.appendActivity(ctx, domain.Activity{LeadID: lead.ID, Type: domain.ActivityReleased, Notes: "Released after business hours reopened"})

	lead.Status = domain.StatusNew
	lead.AssignmentMethod = domain.MethodBroadcast
	lead.ScheduledReleaseAt = nil

	d, err := s.route(ctx, lead)
	if err != nil {
		return result, apperr.Unavailable("routing decision could not be recorded", err).WithOp(opRelease)
	}

	result.Outcome = ReleaseReleased
	result.Routing = outcomeFor(lead, d)
	return result, nil
}

// SweepStats counts what one sweep pass triggered.
type SweepStats struct {
	Escalated int
	Released  int
	Rerouted  int
	Failed    int
}

// RouteIfUnrouted routes a stored lead that never reached a round or an
// owner. It reports false when the lead was already routed.
func (s *Service) RouteIfUnrouted(ctx context.Context, leadID uuid.UUID) (bool, error) {
	lead, err := s.leads.GetLead(ctx, leadID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return false, apperr.NotFound("lead not found").WithOp(opReroute)
		}
		return false, apperr.Unavailable("lead could not be loaded", err).WithOp(opReroute)
	}
	if !lead.Unrouted() {
		return false, nil
	}

	d, err := s.route(ctx, lead)
	if err != nil {
		return false, apperr.Unavailable("routing decision could not be recorded", err).WithOp(opReroute)
	}
	return !d.superseded, nil
}

// SweepDue re-drives every lead whose claim window or night hold has lapsed,
// and routes leads left unrouted by a failed submission or release. It backs
// up the durable timers: anything they already handled is a no-op.
func (s *Service) SweepDue(ctx context.Context) (SweepStats, error) {
	var stats SweepStats
	now := s.now()
	log := s.log.WithContext(ctx)

	expired, err := s.leads.ListExpiredClaimWindows(ctx, now, sweepBatchSize)
	if err != nil {
		return stats, apperr.Unavailable("expired claim windows could not be listed", err).WithOp(opSweep)
	}
	for _, id := range expired {
		res, err := s.EscalateIfExpired(ctx, id)
		if err != nil {
			stats.Failed++
			log.Warn("sweep escalation failed", "lead_id", id.String(), "error", err)
			continue
		}
		if res.Outcome != EscalationNoop {
			stats.Escalated++
		}
	}

	due, err := s.leads.ListDueNightHolds(ctx, now, sweepBatchSize)
	if err != nil {
		return stats, apperr.Unavailable("due night holds could not be listed", err).WithOp(opSweep)
	}
	for _, id := range due {
		res, err := s.ReleaseIfDue(ctx, id)
		if err != nil {
			stats.Failed++
			log.Warn("sweep release failed", "lead_id", id.String(), "error", err)
			continue
		}
		if res.Outcome == ReleaseReleased {
			stats.Released++
		}
	}

	unrouted, err := s.leads.ListUnroutedLeads(ctx, now.Add(-unroutedGrace), sweepBatchSize)
	if err != nil {
		return stats, apperr.Unavailable("unrouted leads could not be listed", err).WithOp(opSweep)
	}
	for _, id := range unrouted {
		routed, err := s.RouteIfUnrouted(ctx, id)
		if err != nil {
			stats.Failed++
			log.Warn("sweep reroute failed", "lead_id", id.String(), "error", err)
			continue
		}
		if routed {
			stats.Rerouted++
		}
	}

	return stats, nil
}
