package email

import (
	"context"
	"fmt"

	"lead_routing_backend/platform/config"
)

// AgentNotification is the email view of one routing notification.
type AgentNotification struct {
	Kind            string
	AgentName       string
	LeadName        string
	LeadSegment     string
	Round           int
	ClaimWindowMins int
	RuleName        string
	ActionURL       string
}

type Sender interface {
	SendAgentNotification(ctx context.Context, toEmail string, n AgentNotification) error
}

type NoopSender struct{}

func (NoopSender) SendAgentNotification(ctx context.Context, toEmail string, n AgentNotification) error {
	return nil
}

// NewSender returns an SMTP sender, or a no-op sender when email is disabled.
func NewSender(cfg config.EmailConfig) (Sender, error) {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}, nil
	}
	if cfg.GetSMTPHost() == "" {
		return nil, fmt.Errorf("smtp host not configured")
	}
	return NewSMTPSender(
		cfg.GetSMTPHost(),
		cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(),
		cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(),
		cfg.GetEmailFromName(),
	), nil
}

// renderAgentNotification builds the subject and HTML body for n.
func renderAgentNotification(n AgentNotification) (string, string, error) {
	data := agentNotificationEmailData{
		baseEmailData: baseEmailData{
			CTALabel: "Open lead",
			CTAURL:   n.ActionURL,
		},
		AgentName:       n.AgentName,
		LeadName:        n.LeadName,
		LeadSegment:     n.LeadSegment,
		Round:           n.Round,
		ClaimWindowMins: n.ClaimWindowMins,
		RuleName:        n.RuleName,
	}

	var subject string
	switch n.Kind {
	case "new_lead_available":
		subject = fmt.Sprintf(subjectNewLeadAvailableFmt, n.LeadSegment, n.LeadName)
		data.Title = "New lead available"
		data.Heading = "A new lead is ready to claim"
		data.CTALabel = "Claim lead"
	case "rule_assigned":
		subject = fmt.Sprintf(subjectRuleAssignedFmt, n.LeadName)
		data.Title = "Lead assigned"
		data.Heading = "A lead was assigned to you"
	case "admin_fallback":
		subject = fmt.Sprintf(subjectAdminFallbackFmt, n.LeadName)
		data.Title = "Unclaimed lead assigned"
		data.Heading = "An unclaimed lead was assigned to you"
		data.Urgent = true
	case "manual_assigned":
		subject = fmt.Sprintf(subjectManualAssignedFmt, n.LeadName)
		data.Title = "Lead assigned"
		data.Heading = "An administrator assigned a lead to you"
	case "claim_sla_breach":
		subject = fmt.Sprintf(subjectClaimSLABreachFmt, n.LeadName)
		data.Title = "Lead needs manual assignment"
		data.Heading = "No agent claimed this lead"
		data.Subheading = "Assign it manually from the lead view."
		data.Urgent = true
	default:
		return "", "", fmt.Errorf("unsupported notification kind %q", n.Kind)
	}

	content, err := renderEmailTemplate("agent_notification.html", data)
	if err != nil {
		return "", "", err
	}
	return subject, content, nil
}
