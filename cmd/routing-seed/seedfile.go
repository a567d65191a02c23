package main

import (
	"fmt"
	"os"
	"strings"

	"lead_routing_backend/internal/routing/domain"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Agents        []seedAgent        `yaml:"agents"`
	Rules         []seedRule         `yaml:"rules"`
	Rounds        []seedRound        `yaml:"rounds"`
	BusinessHours *seedBusinessHours `yaml:"business_hours"`
}

type seedAgent struct {
	ID              string   `yaml:"id"`
	FirstName       string   `yaml:"first_name"`
	LastName        string   `yaml:"last_name"`
	Email           string   `yaml:"email"`
	Role            string   `yaml:"role"`
	Languages       []string `yaml:"languages"`
	Active          *bool    `yaml:"active"`
	AcceptsNewLeads *bool    `yaml:"accepts_new_leads"`
	MaxActiveLeads  int      `yaml:"max_active_leads"`
}

type seedRule struct {
	ID                  string              `yaml:"id"`
	Name                string              `yaml:"name"`
	Priority            int                 `yaml:"priority"`
	Active              *bool               `yaml:"active"`
	Match               map[string][]string `yaml:"match"`
	AssignTo            string              `yaml:"assign_to"`
	FallbackToBroadcast bool                `yaml:"fallback_to_broadcast"`
}

type seedRound struct {
	Language           string   `yaml:"language"`
	Round              int      `yaml:"round"`
	Agents             []string `yaml:"agents"`
	ClaimWindowMinutes int      `yaml:"claim_window_minutes"`
	AdminFallback      bool     `yaml:"admin_fallback"`
	Active             *bool    `yaml:"active"`
}

type seedBusinessHours struct {
	Start    int    `yaml:"start"`
	End      int    `yaml:"end"`
	Timezone string `yaml:"timezone"`
}

// seedData is a parsed, validated seed file.
type seedData struct {
	Agents []domain.Agent
	Rules  []domain.RoutingRule
	Rounds []domain.RoundConfig
	Hours  *domain.BusinessHours
}

func loadSeedFile(path string) (seedData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return seedData{}, err
	}
	return parseSeed(raw)
}

func parseSeed(raw []byte) (seedData, error) {
	var file seedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return seedData{}, fmt.Errorf("parse seed file: %w", err)
	}

	var out seedData
	for i, a := range file.Agents {
		agent, err := a.toDomain()
		if err != nil {
			return seedData{}, fmt.Errorf("agents[%d]: %w", i, err)
		}
		out.Agents = append(out.Agents, agent)
	}
	for i, r := range file.Rules {
		rule, err := r.toDomain()
		if err != nil {
			return seedData{}, fmt.Errorf("rules[%d]: %w", i, err)
		}
		out.Rules = append(out.Rules, rule)
	}
	for i, r := range file.Rounds {
		round, err := r.toDomain()
		if err != nil {
			return seedData{}, fmt.Errorf("rounds[%d]: %w", i, err)
		}
		out.Rounds = append(out.Rounds, round)
	}
	if h := file.BusinessHours; h != nil {
		if h.Start < 0 || h.End > 24 || h.Start >= h.End {
			return seedData{}, fmt.Errorf("business_hours: invalid window %d-%d", h.Start, h.End)
		}
		out.Hours = &domain.BusinessHours{StartHour: h.Start, EndHour: h.End, Timezone: h.Timezone}
	}
	return out, nil
}

func (a seedAgent) toDomain() (domain.Agent, error) {
	id, err := uuid.Parse(a.ID)
	if err != nil {
		return domain.Agent{}, fmt.Errorf("invalid id %q", a.ID)
	}
	if strings.TrimSpace(a.FirstName) == "" {
		return domain.Agent{}, fmt.Errorf("first_name is required")
	}
	role := strings.ToLower(strings.TrimSpace(a.Role))
	if role == "" {
		role = "agent"
	}
	maxLeads := a.MaxActiveLeads
	if maxLeads < 1 {
		maxLeads = 20
	}
	return domain.Agent{
		ID:              id,
		FirstName:       a.FirstName,
		LastName:        a.LastName,
		Email:           a.Email,
		Role:            role,
		Languages:       lowerAll(a.Languages),
		IsActive:        boolOr(a.Active, true),
		AcceptsNewLeads: boolOr(a.AcceptsNewLeads, true),
		MaxActiveLeads:  maxLeads,
	}, nil
}

func (r seedRule) toDomain() (domain.RoutingRule, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return domain.RoutingRule{}, fmt.Errorf("invalid id %q", r.ID)
	}
	assignTo, err := uuid.Parse(r.AssignTo)
	if err != nil {
		return domain.RoutingRule{}, fmt.Errorf("invalid assign_to %q", r.AssignTo)
	}

	rule := domain.RoutingRule{
		ID:                  id,
		Name:                r.Name,
		Priority:            r.Priority,
		IsActive:            boolOr(r.Active, true),
		AssignToAgentID:     assignTo,
		FallbackToBroadcast: r.FallbackToBroadcast,
	}
	for field, values := range r.Match {
		switch field {
		case "language":
			rule.MatchLanguage = lowerAll(values)
		case "page_type":
			rule.MatchPageType = values
		case "page_slug":
			rule.MatchPageSlug = values
		case "lead_source":
			rule.MatchLeadSource = values
		case "lead_segment":
			rule.MatchLeadSegment = values
		case "budget_range":
			rule.MatchBudgetRange = values
		case "property_type":
			rule.MatchPropertyType = values
		case "timeframe":
			rule.MatchTimeframe = values
		default:
			return domain.RoutingRule{}, fmt.Errorf("unknown match field %q", field)
		}
	}
	return rule, nil
}

func (r seedRound) toDomain() (domain.RoundConfig, error) {
	if strings.TrimSpace(r.Language) == "" {
		return domain.RoundConfig{}, fmt.Errorf("language is required")
	}
	if r.Round < 1 {
		return domain.RoundConfig{}, fmt.Errorf("round must be >= 1")
	}
	ids := make([]uuid.UUID, 0, len(r.Agents))
	for _, raw := range r.Agents {
		id, err := uuid.Parse(raw)
		if err != nil {
			return domain.RoundConfig{}, fmt.Errorf("invalid agent id %q", raw)
		}
		ids = append(ids, id)
	}
	return domain.RoundConfig{
		Language:           strings.ToLower(r.Language),
		RoundNumber:        r.Round,
		AgentIDs:           ids,
		ClaimWindowMinutes: r.ClaimWindowMinutes,
		IsAdminFallback:    r.AdminFallback,
		IsActive:           boolOr(r.Active, true),
	}, nil
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}
