package routing

import (
	"context"

	"lead_routing_backend/internal/events"
	"lead_routing_backend/internal/routing/ports"

	"github.com/google/uuid"
)

// busNotifier turns engine notifications into events. The notification
// module persists them in its outbox, so publishing never blocks routing.
type busNotifier struct {
	bus events.Bus
}

var _ ports.Notifier = busNotifier{}

func (n busNotifier) NotifyAgent(ctx context.Context, agentID uuid.UUID, lead ports.LeadSummary, kind ports.NotificationKind) {
	n.bus.Publish(ctx, events.AgentNotificationRequested{
		BaseEvent:        events.NewBaseEvent(),
		AgentID:          agentID,
		LeadID:           lead.LeadID,
		Kind:             string(kind),
		Round:            lead.Round,
		LeadName:         lead.Name,
		LeadSegment:      string(lead.Segment),
		ClaimWindowMins:  lead.ClaimWindowMins,
		AssignedRuleName: lead.RuleName,
	})
}
