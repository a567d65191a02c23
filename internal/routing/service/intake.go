package service

import (
	"context"
	"strings"
	"time"

	"lead_routing_backend/internal/routing/domain"
	"lead_routing_backend/internal/routing/scoring"
	"lead_routing_backend/platform/apperr"
	"lead_routing_backend/platform/language"
	"lead_routing_backend/platform/phone"
	"lead_routing_backend/platform/sanitize"

	"github.com/google/uuid"
)

// Intake is a raw lead submission from the chatbot or a web form.
type Intake struct {
	FirstName            string
	LastName             string
	Phone                string
	CountryPrefix        string
	Email                string
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
	domain.Qualification
}

// Outcome is the routing decision returned to the submitter.
type Outcome struct {
	LeadID                  uuid.UUID
	Score                   int
	Segment                 domain.Segment
	Priority                domain.Priority
	Status                  domain.LeadStatus
	AssignmentMethod        domain.AssignmentMethod
	AssignedAgentID         *uuid.UUID
	ScheduledReleaseAt      *time.Time
	BroadcastRecipientCount *int
	Round                   *int
	RoutingRuleID           *uuid.UUID
	NeedsManualAssignment   bool
}

// SubmitLead scores, persists and routes a new lead. Only a validation
// failure or a failed initial write returns an error; every other problem
// degrades and is logged. A lead whose routing fails after the write is
// returned as new and picked up again by SweepDue.
func (s *Service) SubmitLead(ctx context.Context, in Intake) (*Outcome, error) {
	if sanitize.Text(in.FirstName) == "" || sanitize.Text(in.LastName) == "" {
		return nil, apperr.Validation("first and last name are required").WithOp(opSubmitLead)
	}

	now := s.now()
	lead := s.buildLead(in, now)
	log := s.log.WithContext(ctx)

	if !lead.HasContact() {
		lead.Status = domain.StatusIncomplete
		lead.AssignmentMethod = domain.MethodIncomplete
		if err := s.leads.CreateLead(ctx, lead); err != nil {
			return nil, apperr.Unavailable("lead could not be stored", err).WithOp(opSubmitLead)
		}
		s.appendActivity(ctx, domain.Activity{LeadID: lead.ID, Type: domain.ActivityIncomplete, Notes: "No phone or email; routing skipped"})
		log.RoutingDecision(lead.ID.String(), string(lead.Status), string(lead.AssignmentMethod))
		return outcomeFor(lead, decision{status: lead.Status, method: lead.AssignmentMethod}), nil
	}

	open, nextOpen := domain.IsOpen(now, s.businessHours(ctx, lead.ID))
	if !open {
		lead.Status = domain.StatusNightHeld
		lead.AssignmentMethod = domain.MethodNightHeld
		lead.ScheduledReleaseAt = &nextOpen
		if err := s.leads.CreateLead(ctx, lead); err != nil {
			return nil, apperr.Unavailable("lead could not be stored", err).WithOp(opSubmitLead)
		}
		if err := s.timers.ScheduleNightRelease(ctx, lead.ID, nextOpen); err != nil {
			log.Degraded("schedule_night_release", lead.ID.String(), err)
		}
		s.appendActivity(ctx, domain.Activity{LeadID: lead.ID, Type: domain.ActivityNightHeld, Notes: "Held until " + nextOpen.Format(time.RFC3339)})
		log.RoutingDecision(lead.ID.String(), string(lead.Status), string(lead.AssignmentMethod), "scheduled_release_at", nextOpen)
		return outcomeFor(lead, decision{status: lead.Status, method: lead.AssignmentMethod}), nil
	}

	lead.Status = domain.StatusNew
	lead.AssignmentMethod = domain.MethodBroadcast
	if err := s.leads.CreateLead(ctx, lead); err != nil {
		return nil, apperr.Unavailable("lead could not be stored", err).WithOp(opSubmitLead)
	}

	d, err := s.route(ctx, lead)
	if err != nil {
		// The lead is stored; the sweep re-routes it.
		log.Degraded("route_lead", lead.ID.String(), err)
		return outcomeFor(lead, decision{status: lead.Status, method: lead.AssignmentMethod}), nil
	}
	return outcomeFor(lead, d), nil
}

func (s *Service) buildLead(in Intake, now time.Time) domain.Lead {
	source := strings.TrimSpace(in.Source)
	if source == "" {
		source = defaultSource
	}

	q := in.Qualification
	q.PropertyTypes = compact(q.PropertyTypes)
	q.LocationPreferences = compact(q.LocationPreferences)
	result := scoring.Score(q)

	return domain.Lead{
		ID:                   uuid.New(),
		CreatedAt:            now,
		FirstName:            sanitize.Text(in.FirstName),
		LastName:             sanitize.Text(in.LastName),
		Phone:                phone.NormalizeE164(in.Phone, in.CountryPrefix, s.cfg.PhoneDefaultRegion),
		CountryPrefix:        strings.TrimSpace(in.CountryPrefix),
		Email:                strings.ToLower(strings.TrimSpace(in.Email)),
		Language:             language.Normalize(in.Language, s.cfg.DefaultLanguage),
		Source:               source,
		SourceDetail:         strings.TrimSpace(in.SourceDetail),
		PageURL:              strings.TrimSpace(in.PageURL),
		PageType:             strings.TrimSpace(in.PageType),
		PageTitle:            sanitize.Text(in.PageTitle),
		PageSlug:             strings.TrimSpace(in.PageSlug),
		Referrer:             strings.TrimSpace(in.Referrer),
		ExitPoint:            strings.TrimSpace(in.ExitPoint),
		ConversationDuration: strings.TrimSpace(in.ConversationDuration),
		PropertyRef:          strings.TrimSpace(in.PropertyRef),
		Message:              sanitize.Multiline(in.Message),
		Qualification:        q,
		Score:                result.Score,
		Segment:              result.Segment,
		Priority:             result.Priority,
	}
}

func (s *Service) businessHours(ctx context.Context, leadID uuid.UUID) domain.BusinessHours {
	hours, err := s.hours.GetBusinessHours(ctx)
	if err != nil {
		s.log.WithContext(ctx).Degraded("get_business_hours", leadID.String(), err)
		return domain.AlwaysOpen
	}
	return hours
}

func outcomeFor(lead domain.Lead, d decision) *Outcome {
	out := &Outcome{
		LeadID:                lead.ID,
		Score:                 lead.Score,
		Segment:               lead.Segment,
		Priority:              lead.Priority,
		Status:                d.status,
		AssignmentMethod:      d.method,
		AssignedAgentID:       d.agentID,
		Round:                 d.round,
		RoutingRuleID:         d.ruleID,
		NeedsManualAssignment: d.needsManual,
	}
	if d.status == domain.StatusNightHeld {
		out.ScheduledReleaseAt = lead.ScheduledReleaseAt
	}
	if d.method == domain.MethodBroadcast && d.status == domain.StatusNew {
		n := d.recipients
		out.BroadcastRecipientCount = &n
	}
	return out
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
