// Package domain holds the routing engine's core types and pure decision rules.
package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LeadStatus is the routing state of a lead.
type LeadStatus string

const (
	StatusIncomplete LeadStatus = "incomplete"
	StatusNightHeld  LeadStatus = "night_held"
	StatusNew        LeadStatus = "new"
	StatusClaimed    LeadStatus = "claimed"
	StatusAssigned   LeadStatus = "assigned"
)

// AssignmentMethod records how a lead reached its current owner (or lack of one).
type AssignmentMethod string

const (
	MethodRuleBased     AssignmentMethod = "rule_based"
	MethodBroadcast     AssignmentMethod = "broadcast"
	MethodNightHeld     AssignmentMethod = "night_held"
	MethodIncomplete    AssignmentMethod = "incomplete_no_routing"
	MethodAdminFallback AssignmentMethod = "admin_fallback"
	MethodManual        AssignmentMethod = "manual"
)

// Segment is the coarse buyer-readiness bucket derived from the score.
type Segment string

const (
	SegmentHot  Segment = "Hot"
	SegmentWarm Segment = "Warm"
	SegmentCool Segment = "Cool"
	SegmentCold Segment = "Cold"
)

// Priority is the follow-up urgency tier.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// RoleAdmin marks agents that only receive leads when nobody else can.
const RoleAdmin = "admin"

// DefaultClaimWindowMinutes applies when a round has no usable window configured.
const DefaultClaimWindowMinutes = 15

// Qualification holds the intake answers used for scoring and rule matching.
type Qualification struct {
	BudgetRange         string
	Timeframe           string
	PropertyTypes       []string
	LocationPreferences []string
	Purpose             string
	BedroomsDesired     string
	SeaViewImportance   string
	QuestionsAnswered   int
	IntakeComplete      bool
}

// Lead is an inbound sales inquiry and its routing state.
type Lead struct {
	ID        uuid.UUID
	CreatedAt time.Time

	FirstName     string
	LastName      string
	Phone         string
	CountryPrefix string
	Email         string

	Language             string
	Source               string
	SourceDetail         string
	PageURL              string
	PageType             string
	PageTitle            string
	PageSlug             string
	Referrer             string
	ExitPoint            string
	ConversationDuration string
	PropertyRef          string
	Message              string

	Qualification

	Score    int
	Segment  Segment
	Priority Priority

	Status                LeadStatus
	AssignmentMethod      AssignmentMethod
	CurrentRound          *int
	RoundBroadcastAt      *time.Time
	ClaimWindowExpiresAt  *time.Time
	Claimed               bool
	ClaimedBy             string
	AssignedAgentID       *uuid.UUID
	AssignedAt            *time.Time
	RoutingRuleID         *uuid.UUID
	ScheduledReleaseAt    *time.Time
	NeedsManualAssignment bool
}

// HasContact reports whether the lead can be reached by phone or email.
func (l Lead) HasContact() bool {
	return strings.TrimSpace(l.Phone) != "" || strings.TrimSpace(l.Email) != ""
}

// FullName joins first and last name.
func (l Lead) FullName() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}

// AwaitingClaim reports whether the lead is in an open broadcast round.
func (l Lead) AwaitingClaim() bool {
	return l.Status == StatusNew && !l.Claimed && l.ClaimWindowExpiresAt != nil
}

// Unrouted reports whether the lead is new but never reached a round or an
// owner, which happens when routing failed after the lead was stored.
func (l Lead) Unrouted() bool {
	return l.Status == StatusNew && !l.Claimed && l.CurrentRound == nil && l.AssignedAgentID == nil
}

// Agent is a human assignee. The engine only reads it and bumps its load.
type Agent struct {
	ID               uuid.UUID
	FirstName        string
	LastName         string
	Email            string
	Role             string
	Languages        []string
	IsActive         bool
	AcceptsNewLeads  bool
	CurrentLeadCount int
	MaxActiveLeads   int
}

// Eligible reports whether the agent may receive another lead.
func (a Agent) Eligible() bool {
	return a.IsActive && a.AcceptsNewLeads && a.CurrentLeadCount < a.MaxActiveLeads
}

// Speaks reports whether the agent lists the language.
func (a Agent) Speaks(language string) bool {
	return slices.ContainsFunc(a.Languages, func(l string) bool {
		return strings.EqualFold(l, language)
	})
}

// IsAdmin reports whether the agent holds the admin role.
func (a Agent) IsAdmin() bool {
	return strings.EqualFold(a.Role, RoleAdmin)
}

// DisplayName returns the agent's name for notifications.
func (a Agent) DisplayName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// RoutingRule is a priority-ordered matcher pinned to one agent.
type RoutingRule struct {
	ID                  uuid.UUID
	Name                string
	Priority            int
	IsActive            bool
	MatchLanguage       []string
	MatchPageType       []string
	MatchPageSlug       []string
	MatchLeadSource     []string
	MatchLeadSegment    []string
	MatchBudgetRange    []string
	MatchPropertyType   []string
	MatchTimeframe      []string
	AssignToAgentID     uuid.UUID
	FallbackToBroadcast bool
	TotalMatches        int
	LastMatchedAt       *time.Time
	CreatedAt           time.Time
}

// RoundConfig is one stage of a language's escalation ladder.
type RoundConfig struct {
	ID                 uuid.UUID
	Language           string
	RoundNumber        int
	AgentIDs           []uuid.UUID
	ClaimWindowMinutes int
	IsAdminFallback    bool
	IsActive           bool
}

// ClaimWindow returns the round's claim window, or the fallback when unset.
func (r RoundConfig) ClaimWindow(fallbackMinutes int) time.Duration {
	minutes := r.ClaimWindowMinutes
	if minutes < 1 {
		minutes = fallbackMinutes
	}
	if minutes < 1 {
		minutes = DefaultClaimWindowMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// Activity is one append-only entry in a lead's routing history.
type Activity struct {
	LeadID  uuid.UUID
	AgentID *uuid.UUID
	Type    string
	Notes   string
}

// Activity types written by the engine.
const (
	ActivityNightHeld      = "night_held"
	ActivityReleased       = "night_released"
	ActivityRuleAssigned   = "rule_assigned"
	ActivityBroadcast      = "broadcast"
	ActivityEscalated      = "escalated"
	ActivityClaimed        = "claimed"
	ActivityAdminFallback  = "admin_fallback"
	ActivityManualRequired = "manual_assignment_required"
	ActivityManualAssigned = "manual_assigned"
	ActivityIncomplete     = "incomplete_contact"
)
