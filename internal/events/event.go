// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"lead_routing_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// Notification kinds carried by AgentNotificationRequested.
const (
	NotificationNewLeadAvailable = "new_lead_available"
	NotificationRuleAssigned     = "rule_assigned"
	NotificationAdminFallback    = "admin_fallback"
	NotificationClaimSLABreach   = "claim_sla_breach"
	NotificationManualAssigned   = "manual_assigned"
)

// =============================================================================
// Routing Domain Events
// =============================================================================

// AgentNotificationRequested asks the notification module to alert one agent.
type AgentNotificationRequested struct {
	BaseEvent
	AgentID          uuid.UUID `json:"agentId"`
	LeadID           uuid.UUID `json:"leadId"`
	Kind             string    `json:"kind"`
	Round            int       `json:"round,omitempty"`
	LeadName         string    `json:"leadName"`
	LeadSegment      string    `json:"leadSegment,omitempty"`
	ClaimWindowMins  int       `json:"claimWindowMinutes,omitempty"`
	AssignedRuleName string    `json:"assignedRuleName,omitempty"`
}

func (e AgentNotificationRequested) EventName() string { return "routing.agent.notification_requested" }

// =============================================================================
// Scheduler Events
// =============================================================================

// NotificationOutboxDue is published by the scheduler worker when a claimed
// outbox record is ready for delivery.
type NotificationOutboxDue struct {
	BaseEvent
	OutboxID uuid.UUID `json:"outboxId"`
}

func (e NotificationOutboxDue) EventName() string { return "notification.outbox.due" }
