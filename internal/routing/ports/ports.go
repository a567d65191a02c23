// Package ports defines the interfaces the routing engine requires from
// storage, scheduling and notification infrastructure. The engine depends
// only on these; the composition root supplies the implementations.
package ports

import (
	"context"
	"errors"
	"time"

	"lead_routing_backend/internal/routing/domain"

	"github.com/google/uuid"
)

// ErrNotFound is returned by stores when the requested record does not exist.
var ErrNotFound = errors.New("not found")

// AssignOutcome is the result of a conditional assignment.
type AssignOutcome int

const (
	// AssignApplied means the lead and the agent's load were both updated.
	AssignApplied AssignOutcome = iota
	// AssignLeadTaken means the lead was no longer in the expected state.
	AssignLeadTaken
	// AssignAgentFull means the agent reached capacity; nothing was written.
	AssignAgentFull
)

// Assignment describes a single-owner transition of a lead.
type Assignment struct {
	LeadID uuid.UUID
	// AgentID receives the lead and has its load incremented in the same transaction.
	AgentID uuid.UUID
	Status  domain.LeadStatus
	Method  domain.AssignmentMethod
	// ClaimedBy is the human-readable owner descriptor.
	ClaimedBy string
	RuleID    *uuid.UUID
	At        time.Time
	// ExpectedStatus and ExpectedRound guard the update; the lead must also be
	// unclaimed. A nil ExpectedRound requires current_round to be NULL.
	ExpectedStatus domain.LeadStatus
	ExpectedRound  *int
}

// RoundStart stamps a lead into a broadcast round.
type RoundStart struct {
	LeadID         uuid.UUID
	Round          int
	BroadcastAt    time.Time
	ExpiresAt      time.Time
	RuleID         *uuid.UUID
	NeedsManual    bool
	ExpectedStatus domain.LeadStatus
	ExpectedRound  *int
}

// LeadRecorder is the single place lead and agent routing state is mutated.
// Every mutation is a compare-and-set against the lead's current state and
// reports false (or a non-applied outcome) when another actor got there first.
type LeadRecorder interface {
	CreateLead(ctx context.Context, lead domain.Lead) error
	GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	Assign(ctx context.Context, a Assignment) (AssignOutcome, error)
	StartRound(ctx context.Context, rs RoundStart) (bool, error)
	ReleaseNightHold(ctx context.Context, leadID uuid.UUID, at time.Time) (bool, error)
	// FlagManualAssignment marks an unclaimed new lead still in expectedRound
	// for manual handling, parks it in round and clears its claim window.
	FlagManualAssignment(ctx context.Context, leadID uuid.UUID, expectedRound *int, round int) (bool, error)
	ListExpiredClaimWindows(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	ListDueNightHolds(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	// ListUnroutedLeads returns new leads with no round and no owner that
	// have not been touched since before.
	ListUnroutedLeads(ctx context.Context, before time.Time, limit int) ([]uuid.UUID, error)
	AppendActivity(ctx context.Context, activity domain.Activity) error
}

// AgentDirectory reads agents. Load increments happen inside
// LeadRecorder.Assign so they commit atomically with the lead update.
type AgentDirectory interface {
	GetAgent(ctx context.Context, id uuid.UUID) (domain.Agent, error)
	ListAgentsByLanguage(ctx context.Context, language string) ([]domain.Agent, error)
	ListAgentsByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Agent, error)
	ListAdmins(ctx context.Context) ([]domain.Agent, error)
}

// RuleStore reads routing rules and records match bookkeeping.
type RuleStore interface {
	// ListActiveRules returns active rules by priority desc, created asc.
	ListActiveRules(ctx context.Context) ([]domain.RoutingRule, error)
	RecordMatch(ctx context.Context, ruleID uuid.UUID, at time.Time) error
}

// RoundConfigStore reads per-language escalation ladders.
type RoundConfigStore interface {
	GetRoundConfig(ctx context.Context, language string, round int) (domain.RoundConfig, error)
	// GetNextRound returns the lowest active round above afterRound.
	GetNextRound(ctx context.Context, language string, afterRound int) (domain.RoundConfig, error)
}

// BusinessHoursSource supplies the opening window. Implementations return
// domain.AlwaysOpen when nothing is configured.
type BusinessHoursSource interface {
	GetBusinessHours(ctx context.Context) (domain.BusinessHours, error)
}

// TimerScheduler registers durable callbacks. Scheduling the same
// lead/round twice is not an error.
type TimerScheduler interface {
	ScheduleClaimExpiry(ctx context.Context, leadID uuid.UUID, round int, at time.Time) error
	ScheduleNightRelease(ctx context.Context, leadID uuid.UUID, at time.Time) error
}

// NotificationKind categorizes agent notifications.
type NotificationKind string

const (
	NotifyNewLeadAvailable NotificationKind = "new_lead_available"
	NotifyRuleAssigned     NotificationKind = "rule_assigned"
	NotifyAdminFallback    NotificationKind = "admin_fallback"
	NotifyClaimSLABreach   NotificationKind = "claim_sla_breach"
	NotifyManualAssigned   NotificationKind = "manual_assigned"
)

// LeadSummary is what an agent notification carries about the lead.
type LeadSummary struct {
	LeadID          uuid.UUID
	Name            string
	Segment         domain.Segment
	Round           int
	ClaimWindowMins int
	RuleName        string
}

// Notifier dispatches agent notifications without blocking the caller.
type Notifier interface {
	NotifyAgent(ctx context.Context, agentID uuid.UUID, lead LeadSummary, kind NotificationKind)
}

// Clock is injectable for tests.
type Clock func() time.Time
