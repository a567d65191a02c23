package repository

import (
	"context"
	"errors"
	"fmt"

	"lead_routing_backend/internal/routing/domain"
	"lead_routing_backend/internal/routing/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const agentColumns = `id, first_name, last_name, email, role, languages, is_active, accepts_new_leads,
	current_lead_count, max_active_leads`

// GetAgent loads one agent.
func (r *Repo) GetAgent(ctx context.Context, id uuid.UUID) (domain.Agent, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = $1`, id)
	if err != nil {
		return domain.Agent{}, fmt.Errorf("get agent: %w", err)
	}
	agent, err := pgx.CollectExactlyOneRow(rows, scanAgent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Agent{}, ports.ErrNotFound
		}
		return domain.Agent{}, fmt.Errorf("get agent: %w", err)
	}
	return agent, nil
}

// ListAgentsByLanguage returns active agents that list the language.
func (r *Repo) ListAgentsByLanguage(ctx context.Context, language string) ([]domain.Agent, error) {
	return r.listAgents(ctx, `SELECT `+agentColumns+` FROM agents
		WHERE is_active AND $1 = ANY(languages)
		ORDER BY id`, language)
}

// ListAgentsByIDs returns the agents with the given ids, skipping unknown ones.
func (r *Repo) ListAgentsByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Agent, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.listAgents(ctx, `SELECT `+agentColumns+` FROM agents
		WHERE id = ANY($1)
		ORDER BY id`, ids)
}

// ListAdmins returns active admins.
func (r *Repo) ListAdmins(ctx context.Context) ([]domain.Agent, error) {
	return r.listAgents(ctx, `SELECT `+agentColumns+` FROM agents
		WHERE is_active AND role = $1
		ORDER BY id`, domain.RoleAdmin)
}

func (r *Repo) listAgents(ctx context.Context, query string, args ...any) ([]domain.Agent, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	agents, err := pgx.CollectRows(rows, scanAgent)
	if err != nil {
		return nil, fmt.Errorf("scan agents: %w", err)
	}
	return agents, nil
}

func scanAgent(row pgx.CollectableRow) (domain.Agent, error) {
	var a domain.Agent
	err := row.Scan(&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.Role, &a.Languages,
		&a.IsActive, &a.AcceptsNewLeads, &a.CurrentLeadCount, &a.MaxActiveLeads)
	return a, err
}
