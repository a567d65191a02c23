package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"lead_routing_backend/internal/routing/domain"
	"lead_routing_backend/internal/routing/ports"

	"github.com/google/uuid"
)

const adminFallbackClaimedBy = "Unclaimed - Admin Fallback"

// decision is the routing state a lead ended up in.
type decision struct {
	status      domain.LeadStatus
	method      domain.AssignmentMethod
	agentID     *uuid.UUID
	round       *int
	recipients  int
	ruleID      *uuid.UUID
	needsManual bool
	// parked is set when the lead was flagged for manual assignment.
	parked bool
	// superseded is set when another actor changed the lead first.
	superseded bool
}

// route runs the decision from the rule matcher onward for a lead that is
// new, unclaimed and not yet in a round.
func (s *Service) route(ctx context.Context, lead domain.Lead) (decision, error) {
	log := s.log.WithContext(ctx)

	rules, err := s.rules.ListActiveRules(ctx)
	if err != nil {
		log.Degraded("list_active_rules", lead.ID.String(), err)
		rules = nil
	}

	var ruleID *uuid.UUID
	if rule, ok := domain.FindMatch(lead, rules); ok {
		ruleID = &rule.ID
		if err := s.rules.RecordMatch(ctx, rule.ID, s.now()); err != nil {
			log.Degraded("record_rule_match", lead.ID.String(), err)
		}

		if !rule.FallbackToBroadcast {
			d, assigned, err := s.tryDirectAssign(ctx, lead, rule)
			if err != nil {
				return decision{}, err
			}
			if assigned {
				return d, nil
			}
		}
	}

	return s.enterFirstRound(ctx, lead, ruleID)
}

// tryDirectAssign hands the lead to the rule's agent. The bool is false when
// the agent is unavailable and the caller should fall through to broadcast.
func (s *Service) tryDirectAssign(ctx context.Context, lead domain.Lead, rule domain.RoutingRule) (decision, bool, error) {
	log := s.log.WithContext(ctx)

	agent, err := s.agents.GetAgent(ctx, rule.AssignToAgentID)
	if err != nil {
		if !errors.Is(err, ports.ErrNotFound) {
			log.Degraded("get_rule_agent", lead.ID.String(), err)
		}
		return decision{}, false, nil
	}
	if !agent.Eligible() {
		return decision{}, false, nil
	}

	outcome, err := s.leads.Assign(ctx, ports.Assignment{
		LeadID:         lead.ID,
		AgentID:        agent.ID,
		Status:         domain.StatusAssigned,
		Method:         domain.MethodRuleBased,
		ClaimedBy:      "Rule: " + rule.Name,
		RuleID:         &rule.ID,
		At:             s.now(),
		ExpectedStatus: domain.StatusNew,
		ExpectedRound:  lead.CurrentRound,
	})
	if err != nil {
		return decision{}, false, fmt.Errorf("assign by rule: %w", err)
	}

	switch outcome {
	case ports.AssignAgentFull:
		return decision{}, false, nil
	case ports.AssignLeadTaken:
		d, err := s.currentDecision(ctx, lead.ID)
		return d, true, err
	}

	agentID := agent.ID
	s.notify(ctx, agent.ID, summaryOf(lead, 0, 0, rule.Name), ports.NotifyRuleAssigned)
	s.appendActivity(ctx, domain.Activity{LeadID: lead.ID, AgentID: &agentID, Type: domain.ActivityRuleAssigned, Notes: "Assigned by rule " + rule.Name})
	log.RoutingDecision(lead.ID.String(), string(domain.StatusAssigned), string(domain.MethodRuleBased), "agent_id", agent.ID.String(), "rule_id", rule.ID.String())

	return decision{
		status:  domain.StatusAssigned,
		method:  domain.MethodRuleBased,
		agentID: &agentID,
		ruleID:  &rule.ID,
	}, true, nil
}

// enterFirstRound resolves round 1 for the lead's language. Without an
// active configuration the whole language pool competes in round 1.
func (s *Service) enterFirstRound(ctx context.Context, lead domain.Lead, ruleID *uuid.UUID) (decision, error) {
	cfg, err := s.rounds.GetRoundConfig(ctx, lead.Language, 1)
	switch {
	case err == nil && cfg.IsActive:
		if cfg.IsAdminFallback {
			return s.assignAdminFallback(ctx, lead, cfg, ruleID, nil)
		}
		return s.broadcast(ctx, lead, 1, &cfg, ruleID, nil)
	case err != nil && !errors.Is(err, ports.ErrNotFound):
		s.log.WithContext(ctx).Degraded("get_round_config", lead.ID.String(), err)
	}
	return s.broadcast(ctx, lead, 1, nil, ruleID, nil)
}

// broadcast puts the lead into round and offers it to every eligible agent.
// An empty pool still opens the round so escalation can move it on, but the
// lead is flagged for manual assignment right away.
func (s *Service) broadcast(ctx context.Context, lead domain.Lead, round int, cfg *domain.RoundConfig, ruleID *uuid.UUID, expectedRound *int) (decision, error) {
	log := s.log.WithContext(ctx)
	pool := s.resolvePool(ctx, lead, cfg)

	window := domain.RoundConfig{}.ClaimWindow(s.cfg.DefaultClaimWindowMinutes)
	if cfg != nil {
		window = cfg.ClaimWindow(s.cfg.DefaultClaimWindowMinutes)
	}
	now := s.now()
	expires := now.Add(window)
	needsManual := len(pool) == 0

	applied, err := s.leads.StartRound(ctx, ports.RoundStart{
		LeadID:         lead.ID,
		Round:          round,
		BroadcastAt:    now,
		ExpiresAt:      expires,
		RuleID:         ruleID,
		NeedsManual:    needsManual,
		ExpectedStatus: domain.StatusNew,
		ExpectedRound:  expectedRound,
	})
	if err != nil {
		return decision{}, fmt.Errorf("start round %d: %w", round, err)
	}
	if !applied {
		return s.currentDecision(ctx, lead.ID)
	}

	if err := s.timers.ScheduleClaimExpiry(ctx, lead.ID, round, expires); err != nil {
		log.Degraded("schedule_claim_expiry", lead.ID.String(), err)
	}

	summary := summaryOf(lead, round, int(window.Minutes()), "")
	for _, agent := range pool {
		s.notify(ctx, agent.ID, summary, ports.NotifyNewLeadAvailable)
	}

	activityType := domain.ActivityBroadcast
	if expectedRound != nil {
		activityType = domain.ActivityEscalated
	}
	s.appendActivity(ctx, domain.Activity{LeadID: lead.ID, Type: activityType, Notes: fmt.Sprintf("Round %d broadcast to %d agents", round, len(pool))})
	if needsManual {
		s.appendActivity(ctx, domain.Activity{LeadID: lead.ID, Type: domain.ActivityManualRequired, Notes: fmt.Sprintf("No eligible agents in round %d", round)})
		log.Warn("broadcast reached no agents", "lead_id", lead.ID.String(), "round", round, "language", lead.Language)
	}
	log.RoutingDecision(lead.ID.String(), string(domain.StatusNew), string(domain.MethodBroadcast), "round", round, "recipients", len(pool))

	r := round
	return decision{
		status:      domain.StatusNew,
		method:      domain.MethodBroadcast,
		round:       &r,
		recipients:  len(pool),
		ruleID:      ruleID,
		needsManual: needsManual,
	}, nil
}

// assignAdminFallback gives the lead to the least-loaded eligible agent of an
// admin-fallback round, without competition. When nobody can take it the
// lead is flagged for manual assignment.
func (s *Service) assignAdminFallback(ctx context.Context, lead domain.Lead, cfg domain.RoundConfig, ruleID *uuid.UUID, expectedRound *int) (decision, error) {
	log := s.log.WithContext(ctx)

	candidates, err := s.agents.ListAgentsByIDs(ctx, cfg.AgentIDs)
	if err != nil {
		log.Degraded("list_fallback_agents", lead.ID.String(), err)
		candidates = nil
	}
	candidates = slices.DeleteFunc(candidates, func(a domain.Agent) bool { return !a.Eligible() })
	slices.SortFunc(candidates, func(a, b domain.Agent) int {
		if c := cmp.Compare(a.CurrentLeadCount, b.CurrentLeadCount); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})

	for _, agent := range candidates {
		outcome, err := s.leads.Assign(ctx, ports.Assignment{
			LeadID:         lead.ID,
			AgentID:        agent.ID,
			Status:         domain.StatusAssigned,
			Method:         domain.MethodAdminFallback,
			ClaimedBy:      adminFallbackClaimedBy,
			RuleID:         ruleID,
			At:             s.now(),
			ExpectedStatus: domain.StatusNew,
			ExpectedRound:  expectedRound,
		})
		if err != nil {
			return decision{}, fmt.Errorf("assign admin fallback: %w", err)
		}
		switch outcome {
		case ports.AssignAgentFull:
			continue
		case ports.AssignLeadTaken:
			return s.currentDecision(ctx, lead.ID)
		}

		agentID := agent.ID
		s.notify(ctx, agent.ID, summaryOf(lead, cfg.RoundNumber, 0, ""), ports.NotifyAdminFallback)
		s.appendActivity(ctx, domain.Activity{LeadID: lead.ID, AgentID: &agentID, Type: domain.ActivityAdminFallback, Notes: fmt.Sprintf("Auto-assigned by admin fallback round %d", cfg.RoundNumber)})
		log.RoutingDecision(lead.ID.String(), string(domain.StatusAssigned), string(domain.MethodAdminFallback), "agent_id", agent.ID.String(), "round", cfg.RoundNumber)

		return decision{
			status:  domain.StatusAssigned,
			method:  domain.MethodAdminFallback,
			agentID: &agentID,
			ruleID:  ruleID,
		}, nil
	}

	return s.flagManual(ctx, lead, expectedRound, cfg.RoundNumber, fmt.Sprintf("Admin fallback round %d has no eligible agent", cfg.RoundNumber))
}

// flagManual parks the lead for a human to assign and alerts the admins.
func (s *Service) flagManual(ctx context.Context, lead domain.Lead, expectedRound *int, round int, reason string) (decision, error) {
	applied, err := s.leads.FlagManualAssignment(ctx, lead.ID, expectedRound, round)
	if err != nil {
		return decision{}, fmt.Errorf("flag manual assignment: %w", err)
	}
	if !applied {
		return s.currentDecision(ctx, lead.ID)
	}

	s.appendActivity(ctx, domain.Activity{LeadID: lead.ID, Type: domain.ActivityManualRequired, Notes: reason})

	admins, err := s.agents.ListAdmins(ctx)
	if err != nil {
		s.log.WithContext(ctx).Degraded("list_admins", lead.ID.String(), err)
	}
	summary := summaryOf(lead, round, 0, "")
	for _, admin := range admins {
		if admin.IsActive {
			s.notify(ctx, admin.ID, summary, ports.NotifyClaimSLABreach)
		}
	}
	s.log.WithContext(ctx).RoutingDecision(lead.ID.String(), string(domain.StatusNew), string(domain.MethodBroadcast), "needs_manual_assignment", true, "reason", reason)

	return decision{
		status:      domain.StatusNew,
		method:      domain.MethodBroadcast,
		round:       &round,
		ruleID:      lead.RoutingRuleID,
		needsManual: true,
		parked:      true,
	}, nil
}

// resolvePool returns the eligible agents for a round. Configured rosters win
// over the language pool; admins are dropped when anyone else qualifies.
func (s *Service) resolvePool(ctx context.Context, lead domain.Lead, cfg *domain.RoundConfig) []domain.Agent {
	var (
		agents []domain.Agent
		err    error
	)
	if cfg != nil {
		agents, err = s.agents.ListAgentsByIDs(ctx, cfg.AgentIDs)
	} else {
		agents, err = s.agents.ListAgentsByLanguage(ctx, lead.Language)
	}
	if err != nil {
		s.log.WithContext(ctx).Degraded("resolve_agent_pool", lead.ID.String(), err)
		return nil
	}

	eligible := slices.DeleteFunc(slices.Clone(agents), func(a domain.Agent) bool { return !a.Eligible() })
	nonAdmins := slices.DeleteFunc(slices.Clone(eligible), func(a domain.Agent) bool { return a.IsAdmin() })
	if len(nonAdmins) > 0 {
		return nonAdmins
	}
	return eligible
}

// currentDecision reloads a lead another actor changed under us.
func (s *Service) currentDecision(ctx context.Context, leadID uuid.UUID) (decision, error) {
	lead, err := s.leads.GetLead(ctx, leadID)
	if err != nil {
		return decision{}, fmt.Errorf("reload lead: %w", err)
	}
	return decision{
		status:      lead.Status,
		method:      lead.AssignmentMethod,
		agentID:     lead.AssignedAgentID,
		round:       lead.CurrentRound,
		ruleID:      lead.RoutingRuleID,
		needsManual: lead.NeedsManualAssignment,
		superseded:  true,
	}, nil
}

func (s *Service) notify(ctx context.Context, agentID uuid.UUID, summary ports.LeadSummary, kind ports.NotificationKind) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyAgent(ctx, agentID, summary, kind)
}

func (s *Service) appendActivity(ctx context.Context, activity domain.Activity) {
	if err := s.leads.AppendActivity(ctx, activity); err != nil {
		s.log.WithContext(ctx).Degraded("append_activity", activity.LeadID.String(), err)
	}
}

func summaryOf(lead domain.Lead, round, windowMinutes int, ruleName string) ports.LeadSummary {
	return ports.LeadSummary{
		LeadID:          lead.ID,
		Name:            lead.FullName(),
		Segment:         lead.Segment,
		Round:           round,
		ClaimWindowMins: windowMinutes,
		RuleName:        ruleName,
	}
}
