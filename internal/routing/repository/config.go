package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lead_routing_backend/internal/routing/domain"
	"lead_routing_backend/internal/routing/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const ruleColumns = `id, rule_name, priority, is_active,
	COALESCE(match_language, '{}'), COALESCE(match_page_type, '{}'), COALESCE(match_page_slug, '{}'),
	COALESCE(match_lead_source, '{}'), COALESCE(match_lead_segment, '{}'), COALESCE(match_budget_range, '{}'),
	COALESCE(match_property_type, '{}'), COALESCE(match_timeframe, '{}'),
	assign_to_agent_id, fallback_to_broadcast, total_matches, last_matched_at, created_at`

// ListActiveRules returns active rules in evaluation order.
func (r *Repo) ListActiveRules(ctx context.Context) ([]domain.RoutingRule, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+ruleColumns+` FROM routing_rules
		WHERE is_active
		ORDER BY priority DESC, created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}
	rules, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.RoutingRule, error) {
		var rule domain.RoutingRule
		err := row.Scan(&rule.ID, &rule.Name, &rule.Priority, &rule.IsActive,
			&rule.MatchLanguage, &rule.MatchPageType, &rule.MatchPageSlug,
			&rule.MatchLeadSource, &rule.MatchLeadSegment, &rule.MatchBudgetRange,
			&rule.MatchPropertyType, &rule.MatchTimeframe,
			&rule.AssignToAgentID, &rule.FallbackToBroadcast, &rule.TotalMatches, &rule.LastMatchedAt, &rule.CreatedAt)
		return rule, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan rules: %w", err)
	}
	return rules, nil
}

// RecordMatch bumps the rule's match counter.
func (r *Repo) RecordMatch(ctx context.Context, ruleID uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE routing_rules
		SET total_matches = total_matches + 1, last_matched_at = $2
		WHERE id = $1`, ruleID, at)
	if err != nil {
		return fmt.Errorf("record rule match: %w", err)
	}
	return nil
}

const roundColumns = `id, language, round_number, agent_ids, claim_window_minutes, is_admin_fallback, is_active`

// GetRoundConfig loads the configuration for one round, active or not.
func (r *Repo) GetRoundConfig(ctx context.Context, language string, round int) (domain.RoundConfig, error) {
	return r.getRound(ctx, `SELECT `+roundColumns+` FROM round_robin_configs
		WHERE language = $1 AND round_number = $2`, language, round)
}

// GetNextRound returns the lowest active round above afterRound.
func (r *Repo) GetNextRound(ctx context.Context, language string, afterRound int) (domain.RoundConfig, error) {
	return r.getRound(ctx, `SELECT `+roundColumns+` FROM round_robin_configs
		WHERE language = $1 AND round_number > $2 AND is_active
		ORDER BY round_number ASC
		LIMIT 1`, language, afterRound)
}

func (r *Repo) getRound(ctx context.Context, query string, args ...any) (domain.RoundConfig, error) {
	var rc domain.RoundConfig
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&rc.ID, &rc.Language, &rc.RoundNumber, &rc.AgentIDs, &rc.ClaimWindowMinutes, &rc.IsAdminFallback, &rc.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RoundConfig{}, ports.ErrNotFound
		}
		return domain.RoundConfig{}, fmt.Errorf("get round config: %w", err)
	}
	return rc, nil
}

// GetBusinessHours reads the singleton configuration row. A missing row
// yields domain.AlwaysOpen.
func (r *Repo) GetBusinessHours(ctx context.Context) (domain.BusinessHours, error) {
	var hours domain.BusinessHours
	err := r.pool.QueryRow(ctx, `SELECT start_hour, end_hour, timezone FROM business_hours WHERE id = 1`).
		Scan(&hours.StartHour, &hours.EndHour, &hours.Timezone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AlwaysOpen, nil
		}
		return domain.BusinessHours{}, fmt.Errorf("get business hours: %w", err)
	}
	return hours, nil
}
