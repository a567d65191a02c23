// Package repository implements the routing ports on PostgreSQL via pgx.
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
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo implements every routing store on one pool.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new routing repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var (
	_ ports.LeadRecorder        = (*Repo)(nil)
	_ ports.AgentDirectory      = (*Repo)(nil)
	_ ports.RuleStore           = (*Repo)(nil)
	_ ports.RoundConfigStore    = (*Repo)(nil)
	_ ports.BusinessHoursSource = (*Repo)(nil)
)

const leadColumns = `id, created_at, first_name, last_name, phone_number, country_prefix, email,
	language, lead_source, lead_source_detail, page_url, page_type, page_title, page_slug, referrer,
	exit_point, conversation_duration, property_ref, message,
	budget_range, timeframe, property_type, location_preference, property_purpose, bedrooms_desired,
	sea_view_importance, questions_answered, intake_complete,
	lead_score, lead_segment, lead_priority, lead_status, assignment_method,
	current_round, round_broadcast_at, claim_window_expires_at, lead_claimed, claimed_by,
	assigned_agent_id, assigned_at, routing_rule_id, scheduled_release_at, needs_manual_assignment`

// CreateLead inserts a freshly scored lead with its initial routing state.
func (r *Repo) CreateLead(ctx context.Context, l domain.Lead) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO leads (`+leadColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19,
			$20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33,
			$34, $35, $36, $37, $38, $39, $40, $41, $42, $43)`,
		l.ID, l.CreatedAt, l.FirstName, l.LastName, l.Phone, l.CountryPrefix, l.Email,
		l.Language, l.Source, l.SourceDetail, l.PageURL, l.PageType, l.PageTitle, l.PageSlug, l.Referrer,
		l.ExitPoint, l.ConversationDuration, l.PropertyRef, l.Message,
		l.BudgetRange, l.Timeframe, nonNil(l.PropertyTypes), nonNil(l.LocationPreferences), l.Purpose, l.BedroomsDesired,
		l.SeaViewImportance, l.QuestionsAnswered, l.IntakeComplete,
		l.Score, string(l.Segment), string(l.Priority), string(l.Status), string(l.AssignmentMethod),
		l.CurrentRound, l.RoundBroadcastAt, l.ClaimWindowExpiresAt, l.Claimed, l.ClaimedBy,
		l.AssignedAgentID, l.AssignedAt, l.RoutingRuleID, l.ScheduledReleaseAt, l.NeedsManualAssignment,
	)
	if err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	return nil
}

// GetLead loads a lead by id.
func (r *Repo) GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Lead{}, ports.ErrNotFound
		}
		return domain.Lead{}, fmt.Errorf("get lead: %w", err)
	}
	return lead, nil
}

// Assign updates the lead and the agent's load in one transaction. The lead
// update is a compare-and-set on status, claimed flag and round; the load
// update only applies while the agent is under capacity. Any outcome other
// than AssignApplied returns before Commit, so the deferred Rollback undoes
// the lead update and a full agent leaves the lead untouched. A claim keeps
// current_round; every other status clears it.
func (r *Repo) Assign(ctx context.Context, a ports.Assignment) (ports.AssignOutcome, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return ports.AssignLeadTaken, fmt.Errorf("begin assign: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE leads SET
			lead_status = $2,
			assignment_method = $3,
			lead_claimed = true,
			claimed_by = $4,
			assigned_agent_id = $5,
			assigned_at = $6,
			routing_rule_id = COALESCE($7, routing_rule_id),
			current_round = CASE WHEN $2 = 'claimed' THEN current_round ELSE NULL END,
			claim_window_expires_at = NULL,
			needs_manual_assignment = false,
			updated_at = now()
		WHERE id = $1
		  AND lead_status = $8
		  AND lead_claimed = false
		  AND current_round IS NOT DISTINCT FROM $9`,
		a.LeadID, string(a.Status), string(a.Method), a.ClaimedBy, a.AgentID, a.At, a.RuleID,
		string(a.ExpectedStatus), a.ExpectedRound,
	)
	if err != nil {
		return ports.AssignLeadTaken, fmt.Errorf("assign lead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.AssignLeadTaken, nil
	}

	tag, err = tx.Exec(ctx, `
		UPDATE agents
		SET current_lead_count = current_lead_count + 1, updated_at = now()
		WHERE id = $1 AND current_lead_count < max_active_leads`,
		a.AgentID,
	)
	if err != nil {
		return ports.AssignLeadTaken, fmt.Errorf("increment agent load: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.AssignAgentFull, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return ports.AssignLeadTaken, fmt.Errorf("commit assign: %w", err)
	}
	return ports.AssignApplied, nil
}

// StartRound stamps the lead into a broadcast round.
func (r *Repo) StartRound(ctx context.Context, rs ports.RoundStart) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET
			lead_status = 'new',
			assignment_method = 'broadcast',
			current_round = $2,
			round_broadcast_at = $3,
			claim_window_expires_at = $4,
			routing_rule_id = COALESCE($5, routing_rule_id),
			needs_manual_assignment = $6,
			updated_at = now()
		WHERE id = $1
		  AND lead_status = $7
		  AND lead_claimed = false
		  AND current_round IS NOT DISTINCT FROM $8`,
		rs.LeadID, rs.Round, rs.BroadcastAt, rs.ExpiresAt, rs.RuleID, rs.NeedsManual,
		string(rs.ExpectedStatus), rs.ExpectedRound,
	)
	if err != nil {
		return false, fmt.Errorf("start round: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseNightHold flips a night-held lead back to new.
func (r *Repo) ReleaseNightHold(ctx context.Context, leadID uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET
			lead_status = 'new',
			assignment_method = 'broadcast',
			scheduled_release_at = NULL,
			updated_at = $2
		WHERE id = $1 AND lead_status = 'night_held'`,
		leadID, at,
	)
	if err != nil {
		return false, fmt.Errorf("release night hold: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// FlagManualAssignment parks an unclaimed lead for a human. A lead that is
// already parked is left alone so repeated calls report false.
func (r *Repo) FlagManualAssignment(ctx context.Context, leadID uuid.UUID, expectedRound *int, round int) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET
			needs_manual_assignment = true,
			current_round = $3,
			claim_window_expires_at = NULL,
			updated_at = now()
		WHERE id = $1
		  AND lead_status = 'new'
		  AND lead_claimed = false
		  AND current_round IS NOT DISTINCT FROM $2
		  AND (needs_manual_assignment = false OR claim_window_expires_at IS NOT NULL)`,
		leadID, expectedRound, round,
	)
	if err != nil {
		return false, fmt.Errorf("flag manual assignment: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListExpiredClaimWindows returns unclaimed leads whose window has lapsed.
func (r *Repo) ListExpiredClaimWindows(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	return r.listIDs(ctx, `
		SELECT id FROM leads
		WHERE lead_status = 'new' AND lead_claimed = false
		  AND claim_window_expires_at IS NOT NULL AND claim_window_expires_at <= $1
		ORDER BY claim_window_expires_at ASC
		LIMIT $2`, now, limit)
}

// ListDueNightHolds returns night-held leads whose release time has passed.
func (r *Repo) ListDueNightHolds(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	return r.listIDs(ctx, `
		SELECT id FROM leads
		WHERE lead_status = 'night_held' AND scheduled_release_at <= $1
		ORDER BY scheduled_release_at ASC
		LIMIT $2`, now, limit)
}

// ListUnroutedLeads returns new leads left without a round or an owner.
func (r *Repo) ListUnroutedLeads(ctx context.Context, before time.Time, limit int) ([]uuid.UUID, error) {
	return r.listIDs(ctx, `
		SELECT id FROM leads
		WHERE lead_status = 'new' AND lead_claimed = false
		  AND current_round IS NULL AND assigned_agent_id IS NULL
		  AND updated_at <= $1
		ORDER BY updated_at ASC
		LIMIT $2`, before, limit)
}

// AppendActivity writes one lead_activities row.
func (r *Repo) AppendActivity(ctx context.Context, a domain.Activity) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO lead_activities (lead_id, agent_id, activity_type, notes) VALUES ($1, $2, $3, $4)`,
		a.LeadID, a.AgentID, a.Type, a.Notes,
	)
	if err != nil {
		return fmt.Errorf("insert lead activity: %w", err)
	}
	return nil
}

func (r *Repo) listIDs(ctx context.Context, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list lead ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("scan lead ids: %w", err)
	}
	return ids, nil
}

func scanLead(row pgx.Row) (domain.Lead, error) {
	var (
		l                                      domain.Lead
		segment, priority, status, methodValue string
	)
	err := row.Scan(
		&l.ID, &l.CreatedAt, &l.FirstName, &l.LastName, &l.Phone, &l.CountryPrefix, &l.Email,
		&l.Language, &l.Source, &l.SourceDetail, &l.PageURL, &l.PageType, &l.PageTitle, &l.PageSlug, &l.Referrer,
		&l.ExitPoint, &l.ConversationDuration, &l.PropertyRef, &l.Message,
		&l.BudgetRange, &l.Timeframe, &l.PropertyTypes, &l.LocationPreferences, &l.Purpose, &l.BedroomsDesired,
		&l.SeaViewImportance, &l.QuestionsAnswered, &l.IntakeComplete,
		&l.Score, &segment, &priority, &status, &methodValue,
		&l.CurrentRound, &l.RoundBroadcastAt, &l.ClaimWindowExpiresAt, &l.Claimed, &l.ClaimedBy,
		&l.AssignedAgentID, &l.AssignedAt, &l.RoutingRuleID, &l.ScheduledReleaseAt, &l.NeedsManualAssignment,
	)
	if err != nil {
		return domain.Lead{}, err
	}
	l.Segment = domain.Segment(segment)
	l.Priority = domain.Priority(priority)
	l.Status = domain.LeadStatus(status)
	l.AssignmentMethod = domain.AssignmentMethod(methodValue)
	return l, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
