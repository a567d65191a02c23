package repository

import (
	"context"
	"fmt"

	"lead_routing_backend/internal/routing/domain"
)

// UpsertAgent creates or updates an agent's routing attributes. The load
// counter is left untouched on update.
func (r *Repo) UpsertAgent(ctx context.Context, a domain.Agent) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO agents (id, first_name, last_name, email, role, languages, is_active, accepts_new_leads, max_active_leads)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			email = EXCLUDED.email,
			role = EXCLUDED.role,
			languages = EXCLUDED.languages,
			is_active = EXCLUDED.is_active,
			accepts_new_leads = EXCLUDED.accepts_new_leads,
			max_active_leads = EXCLUDED.max_active_leads,
			updated_at = now()`,
		a.ID, a.FirstName, a.LastName, a.Email, a.Role, nonNil(a.Languages), a.IsActive, a.AcceptsNewLeads, a.MaxActiveLeads,
	)
	if err != nil {
		return fmt.Errorf("upsert agent %s: %w", a.ID, err)
	}
	return nil
}

// UpsertRule creates or updates a routing rule. Match counters are preserved.
func (r *Repo) UpsertRule(ctx context.Context, rule domain.RoutingRule) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO routing_rules (id, rule_name, priority, is_active,
			match_language, match_page_type, match_page_slug, match_lead_source,
			match_lead_segment, match_budget_range, match_property_type, match_timeframe,
			assign_to_agent_id, fallback_to_broadcast)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			rule_name = EXCLUDED.rule_name,
			priority = EXCLUDED.priority,
			is_active = EXCLUDED.is_active,
			match_language = EXCLUDED.match_language,
			match_page_type = EXCLUDED.match_page_type,
			match_page_slug = EXCLUDED.match_page_slug,
			match_lead_source = EXCLUDED.match_lead_source,
			match_lead_segment = EXCLUDED.match_lead_segment,
			match_budget_range = EXCLUDED.match_budget_range,
			match_property_type = EXCLUDED.match_property_type,
			match_timeframe = EXCLUDED.match_timeframe,
			assign_to_agent_id = EXCLUDED.assign_to_agent_id,
			fallback_to_broadcast = EXCLUDED.fallback_to_broadcast`,
		rule.ID, rule.Name, rule.Priority, rule.IsActive,
		nullIfEmpty(rule.MatchLanguage), nullIfEmpty(rule.MatchPageType), nullIfEmpty(rule.MatchPageSlug), nullIfEmpty(rule.MatchLeadSource),
		nullIfEmpty(rule.MatchLeadSegment), nullIfEmpty(rule.MatchBudgetRange), nullIfEmpty(rule.MatchPropertyType), nullIfEmpty(rule.MatchTimeframe),
		rule.AssignToAgentID, rule.FallbackToBroadcast,
	)
	if err != nil {
		return fmt.Errorf("upsert rule %q: %w", rule.Name, err)
	}
	return nil
}

// UpsertRoundConfig creates or replaces the roster for (language, round).
func (r *Repo) UpsertRoundConfig(ctx context.Context, rc domain.RoundConfig) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO round_robin_configs (language, round_number, agent_ids, claim_window_minutes, is_admin_fallback, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (language, round_number) DO UPDATE SET
			agent_ids = EXCLUDED.agent_ids,
			claim_window_minutes = EXCLUDED.claim_window_minutes,
			is_admin_fallback = EXCLUDED.is_admin_fallback,
			is_active = EXCLUDED.is_active`,
		rc.Language, rc.RoundNumber, rc.AgentIDs, rc.ClaimWindowMinutes, rc.IsAdminFallback, rc.IsActive,
	)
	if err != nil {
		return fmt.Errorf("upsert round %s/%d: %w", rc.Language, rc.RoundNumber, err)
	}
	return nil
}

// SetBusinessHours replaces the singleton opening window.
func (r *Repo) SetBusinessHours(ctx context.Context, hours domain.BusinessHours) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO business_hours (id, start_hour, end_hour, timezone)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			start_hour = EXCLUDED.start_hour,
			end_hour = EXCLUDED.end_hour,
			timezone = EXCLUDED.timezone,
			updated_at = now()`,
		hours.StartHour, hours.EndHour, hours.Timezone,
	)
	if err != nil {
		return fmt.Errorf("set business hours: %w", err)
	}
	return nil
}

func nullIfEmpty(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	return values
}
