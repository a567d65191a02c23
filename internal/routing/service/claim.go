package service

import (
	"context"
	"errors"
	"slices"

	"lead_routing_backend/internal/routing/domain"
	"lead_routing_backend/internal/routing/ports"
	"lead_routing_backend/platform/apperr"

	"github.com/google/uuid"
)

// ClaimOutcome is the result of an agent's claim attempt.
type ClaimOutcome string

const (
	ClaimClaimed        ClaimOutcome = "claimed"
	ClaimAlreadyClaimed ClaimOutcome = "already_claimed"
	ClaimNotEligible    ClaimOutcome = "not_eligible"
)

// ClaimResult is returned by Claim.
type ClaimResult struct {
	LeadID  uuid.UUID
	AgentID uuid.UUID
	Outcome ClaimOutcome
	Round   *int
}

// Claim lets an agent in the lead's current round take it. First writer wins;
// losers get ClaimAlreadyClaimed, not an error.
func (s *Service) Claim(ctx context.Context, leadID, agentID uuid.UUID) (ClaimResult, error) {
	result := ClaimResult{LeadID: leadID, AgentID: agentID, Outcome: ClaimNotEligible}

	lead, err := s.leads.GetLead(ctx, leadID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return result, apperr.NotFound("lead not found").WithOp(opClaim)
		}
		return result, apperr.Unavailable("lead could not be loaded", err).WithOp(opClaim)
	}
	result.Round = lead.CurrentRound

	if lead.Claimed || lead.Status == domain.StatusClaimed || lead.Status == domain.StatusAssigned {
		result.Outcome = ClaimAlreadyClaimed
		return result, nil
	}
	if lead.Status != domain.StatusNew || lead.CurrentRound == nil {
		return result, nil
	}

	agent, err := s.agents.GetAgent(ctx, agentID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return result, nil
		}
		return result, apperr.Unavailable("agent could not be loaded", err).WithOp(opClaim)
	}
	if !agent.Eligible() || !s.inRoundPool(ctx, lead, agent) {
		return result, nil
	}

	outcome, err := s.leads.Assign(ctx, ports.Assignment{
		LeadID:         lead.ID,
		AgentID:        agent.ID,
		Status:         domain.StatusClaimed,
		Method:         domain.MethodBroadcast,
		ClaimedBy:      agent.DisplayName(),
		At:             s.now(),
		ExpectedStatus: domain.StatusNew,
		ExpectedRound:  lead.CurrentRound,
	})
	if err != nil {
		return result, apperr.Unavailable("claim could not be recorded", err).WithOp(opClaim)
	}

	switch outcome {
	case ports.AssignLeadTaken:
		result.Outcome = ClaimAlreadyClaimed
		return result, nil
	case ports.AssignAgentFull:
		return result, nil
	}

	result.Outcome = ClaimClaimed
	s.appendActivity(ctx, domain.Activity{LeadID: lead.ID, AgentID: &agentID, Type: domain.ActivityClaimed, Notes: "Claimed in round broadcast"})
	s.log.WithContext(ctx).RoutingDecision(lead.ID.String(), string(domain.StatusClaimed), string(domain.MethodBroadcast), "agent_id", agentID.String(), "round", *lead.CurrentRound)
	return result, nil
}

// inRoundPool checks the agent belongs to the pool the lead was offered to.
func (s *Service) inRoundPool(ctx context.Context, lead domain.Lead, agent domain.Agent) bool {
	cfg, err := s.rounds.GetRoundConfig(ctx, lead.Language, *lead.CurrentRound)
	switch {
	case err == nil && cfg.IsActive && !cfg.IsAdminFallback:
		return slices.Contains(cfg.AgentIDs, agent.ID)
	case err != nil && !errors.Is(err, ports.ErrNotFound):
		s.log.WithContext(ctx).Degraded("get_round_config", lead.ID.String(), err)
	}
	return agent.Speaks(lead.Language)
}
