package service

import (
	"context"
	"errors"

	"lead_routing_backend/internal/routing/domain"
	"lead_routing_backend/internal/routing/ports"
	"lead_routing_backend/platform/apperr"
	"lead_routing_backend/platform/sanitize"

	"github.com/google/uuid"
)

// ManualAssignment is an administrator's choice of owner for a lead.
type ManualAssignment struct {
	LeadID  uuid.UUID
	AgentID uuid.UUID
	ActorID uuid.UUID
	Reason  string
}

// ManualAssignResult is returned by AssignManually.
type ManualAssignResult struct {
	LeadID        uuid.UUID
	AgentID       uuid.UUID
	PreviousRound *int
}

// AssignManually gives a new, unowned lead to the chosen agent. It serves
// leads parked for manual assignment as well as leads still in an open
// round. The agent must be active and under capacity; acceptance of new
// leads is not required.
func (s *Service) AssignManually(ctx context.Context, in ManualAssignment) (ManualAssignResult, error) {
	result := ManualAssignResult{LeadID: in.LeadID, AgentID: in.AgentID}

	lead, err := s.leads.GetLead(ctx, in.LeadID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return result, apperr.NotFound("lead not found").WithOp(opAssignManual)
		}
		return result, apperr.Unavailable("lead could not be loaded", err).WithOp(opAssignManual)
	}
	result.PreviousRound = lead.CurrentRound

	if lead.Claimed || lead.Status != domain.StatusNew {
		return result, apperr.Conflict("lead is not awaiting assignment").WithOp(opAssignManual)
	}

	agent, err := s.agents.GetAgent(ctx, in.AgentID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return result, apperr.NotFound("agent not found").WithOp(opAssignManual)
		}
		return result, apperr.Unavailable("agent could not be loaded", err).WithOp(opAssignManual)
	}
	if !agent.IsActive {
		return result, apperr.Validation("agent is not active").WithOp(opAssignManual)
	}

	outcome, err := s.leads.Assign(ctx, ports.Assignment{
		LeadID:         lead.ID,
		AgentID:        agent.ID,
		Status:         domain.StatusAssigned,
		Method:         domain.MethodManual,
		ClaimedBy:      "Manual: " + agent.DisplayName(),
		At:             s.now(),
		ExpectedStatus: domain.StatusNew,
		ExpectedRound:  lead.CurrentRound,
	})
	if err != nil {
		return result, apperr.Unavailable("assignment could not be recorded", err).WithOp(opAssignManual)
	}
	switch outcome {
	case ports.AssignLeadTaken:
		return result, apperr.Conflict("lead changed concurrently").WithOp(opAssignManual)
	case ports.AssignAgentFull:
		return result, apperr.Conflict("agent is at capacity").WithOp(opAssignManual)
	}

	notes := "Assigned manually"
	if reason := sanitize.Text(in.Reason); reason != "" {
		notes += ": " + reason
	}
	agentID := agent.ID
	s.appendActivity(ctx, domain.Activity{LeadID: lead.ID, AgentID: &agentID, Type: domain.ActivityManualAssigned, Notes: notes})
	s.notify(ctx, agent.ID, summaryOf(lead, 0, 0, ""), ports.NotifyManualAssigned)
	s.log.WithContext(ctx).RoutingDecision(lead.ID.String(), string(domain.StatusAssigned), string(domain.MethodManual),
		"agent_id", agent.ID.String(), "actor_id", in.ActorID.String())

	return result, nil
}
