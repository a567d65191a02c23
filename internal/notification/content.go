package notification

import (
	"fmt"

	"lead_routing_backend/internal/events"
)

type notificationContent struct {
	Title   string
	Message string
}

// contentFor renders the in-app title and message for a notification kind.
func contentFor(kind string, p agentNotificationPayload) (notificationContent, bool) {
	switch kind {
	case events.NotificationNewLeadAvailable:
		msg := fmt.Sprintf("%s is open for claims in round %d.", leadLabel(p), p.Round)
		if p.ClaimWindowMins > 0 {
			msg += fmt.Sprintf(" Claim within %d minutes.", p.ClaimWindowMins)
		}
		return notificationContent{Title: "New lead available", Message: msg}, true
	case events.NotificationRuleAssigned:
		msg := fmt.Sprintf("%s was assigned to you.", leadLabel(p))
		if p.RuleName != "" {
			msg = fmt.Sprintf("%s was assigned to you by rule %q.", leadLabel(p), p.RuleName)
		}
		return notificationContent{Title: "Lead assigned", Message: msg}, true
	case events.NotificationAdminFallback:
		return notificationContent{
			Title:   "Urgent: unclaimed lead assigned",
			Message: fmt.Sprintf("%s was not claimed by any agent and has been assigned to you.", leadLabel(p)),
		}, true
	case events.NotificationManualAssigned:
		return notificationContent{
			Title:   "Lead assigned",
			Message: fmt.Sprintf("%s was assigned to you by an administrator.", leadLabel(p)),
		}, true
	case events.NotificationClaimSLABreach:
		return notificationContent{
			Title:   "Lead needs manual assignment",
			Message: fmt.Sprintf("%s was not claimed after round %d and needs manual assignment.", leadLabel(p), p.Round),
		}, true
	default:
		return notificationContent{}, false
	}
}

func leadLabel(p agentNotificationPayload) string {
	name := p.LeadName
	if name == "" {
		name = "A lead"
	}
	if p.LeadSegment == "" {
		return name
	}
	return fmt.Sprintf("%s (%s)", name, p.LeadSegment)
}
