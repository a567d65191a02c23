package handler

import (
	"lead_routing_backend/internal/routing/domain"
	"lead_routing_backend/internal/routing/service"
	"lead_routing_backend/internal/routing/transport"
)

func toIntake(req transport.SubmitLeadRequest) service.Intake {
	return service.Intake{
		FirstName:            req.FirstName,
		LastName:             req.LastName,
		Phone:                req.Phone,
		CountryPrefix:        req.CountryPrefix,
		Email:                req.Email,
		Language:             req.Language,
		Source:               req.LeadSource,
		SourceDetail:         req.LeadSourceDetail,
		PageURL:              req.PageURL,
		PageType:             req.PageType,
		PageTitle:            req.PageTitle,
		PageSlug:             req.PageSlug,
		Referrer:             req.Referrer,
		ExitPoint:            req.ExitPoint,
		ConversationDuration: req.ConversationDuration,
		PropertyRef:          req.PropertyRef,
		Message:              req.Message,
		Qualification: domain.Qualification{
			BudgetRange:         req.BudgetRange,
			Timeframe:           req.Timeframe,
			PropertyTypes:       req.PropertyType,
			LocationPreferences: req.LocationPreference,
			Purpose:             req.PropertyPurpose,
			BedroomsDesired:     req.BedroomsDesired,
			SeaViewImportance:   req.SeaViewImportance,
			QuestionsAnswered:   req.QuestionsAnswered,
			IntakeComplete:      req.IntakeComplete,
		},
	}
}

func toOutcomeResponse(out *service.Outcome) *transport.RoutingOutcomeResponse {
	return &transport.RoutingOutcomeResponse{
		LeadID:                  out.LeadID,
		Score:                   out.Score,
		Segment:                 string(out.Segment),
		Priority:                string(out.Priority),
		Status:                  string(out.Status),
		AssignmentMethod:        string(out.AssignmentMethod),
		AssignedAgentID:         out.AssignedAgentID,
		ScheduledReleaseAt:      out.ScheduledReleaseAt,
		BroadcastRecipientCount: out.BroadcastRecipientCount,
		Round:                   out.Round,
		RoutingRuleID:           out.RoutingRuleID,
		NeedsManualAssignment:   out.NeedsManualAssignment,
	}
}
