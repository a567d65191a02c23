package transport

import (
	"time"

	"github.com/google/uuid"
)

// SubmitLeadRequest is the public intake payload posted by the chatbot and
// web forms.
type SubmitLeadRequest struct {
	FirstName            string   `json:"firstName" validate:"notblank,max=100"`
	LastName             string   `json:"lastName" validate:"notblank,max=100"`
	Phone                string   `json:"phone,omitempty" validate:"omitempty,max=32"`
	CountryPrefix        string   `json:"countryPrefix,omitempty" validate:"omitempty,max=6"`
	Email                string   `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Language             string   `json:"language,omitempty" validate:"omitempty,max=35"`
	LeadSource           string   `json:"leadSource,omitempty" validate:"omitempty,max=100"`
	LeadSourceDetail     string   `json:"leadSourceDetail,omitempty" validate:"omitempty,max=255"`
	PageURL              string   `json:"pageUrl,omitempty" validate:"omitempty,max=2048"`
	PageType             string   `json:"pageType,omitempty" validate:"omitempty,max=100"`
	PageTitle            string   `json:"pageTitle,omitempty" validate:"omitempty,max=255"`
	PageSlug             string   `json:"pageSlug,omitempty" validate:"omitempty,max=255"`
	Referrer             string   `json:"referrer,omitempty" validate:"omitempty,max=2048"`
	QuestionsAnswered    int      `json:"questionsAnswered,omitempty" validate:"gte=0,lte=100"`
	IntakeComplete       bool     `json:"intakeComplete,omitempty"`
	ExitPoint            string   `json:"exitPoint,omitempty" validate:"omitempty,max=100"`
	ConversationDuration string   `json:"conversationDuration,omitempty" validate:"omitempty,max=50"`
	PropertyRef          string   `json:"propertyRef,omitempty" validate:"omitempty,max=100"`
	Message              string   `json:"message,omitempty" validate:"omitempty,max=5000"`
	LocationPreference   []string `json:"locationPreference,omitempty" validate:"omitempty,max=20,dive,max=100"`
	SeaViewImportance    string   `json:"seaViewImportance,omitempty" validate:"omitempty,max=50"`
	BudgetRange          string   `json:"budgetRange,omitempty" validate:"omitempty,max=100"`
	BedroomsDesired      string   `json:"bedroomsDesired,omitempty" validate:"omitempty,max=20"`
	PropertyType         []string `json:"propertyType,omitempty" validate:"omitempty,max=20,dive,max=100"`
	PropertyPurpose      string   `json:"propertyPurpose,omitempty" validate:"omitempty,max=100"`
	Timeframe            string   `json:"timeframe,omitempty" validate:"omitempty,max=100"`
}

// RoutingOutcomeResponse is returned from intake and night-hold release.
type RoutingOutcomeResponse struct {
	LeadID                  uuid.UUID  `json:"leadId"`
	Score                   int        `json:"score"`
	Segment                 string     `json:"segment"`
	Priority                string     `json:"priority"`
	Status                  string     `json:"status"`
	AssignmentMethod        string     `json:"assignmentMethod"`
	AssignedAgentID         *uuid.UUID `json:"assignedAgentId,omitempty"`
	ScheduledReleaseAt      *time.Time `json:"scheduledReleaseAt,omitempty"`
	BroadcastRecipientCount *int       `json:"broadcastRecipientCount,omitempty"`
	Round                   *int       `json:"round,omitempty"`
	RoutingRuleID           *uuid.UUID `json:"routingRuleId,omitempty"`
	NeedsManualAssignment   bool       `json:"needsManualAssignment"`
}

type ClaimResponse struct {
	LeadID  uuid.UUID `json:"leadId"`
	AgentID uuid.UUID `json:"agentId"`
	Outcome string    `json:"outcome"`
	Round   *int      `json:"round,omitempty"`
}

type EscalationResponse struct {
	LeadID     uuid.UUID  `json:"leadId"`
	Outcome    string     `json:"outcome"`
	Reason     string     `json:"reason,omitempty"`
	Round      *int       `json:"round,omitempty"`
	Recipients int        `json:"recipients"`
	AgentID    *uuid.UUID `json:"agentId,omitempty"`
}

type ManualAssignRequest struct {
	AgentID uuid.UUID `json:"agentId" validate:"required"`
	Reason  string    `json:"reason,omitempty" validate:"omitempty,max=500"`
}

type ManualAssignResponse struct {
	LeadID        uuid.UUID `json:"leadId"`
	AgentID       uuid.UUID `json:"agentId"`
	Status        string    `json:"status"`
	PreviousRound *int      `json:"previousRound,omitempty"`
}

type ReleaseResponse struct {
	LeadID  uuid.UUID               `json:"leadId"`
	Outcome string                  `json:"outcome"`
	Routing *RoutingOutcomeResponse `json:"routing,omitempty"`
}
