package handler

import (
	"context"
	"net/http"

	"lead_routing_backend/internal/routing/domain"
	"lead_routing_backend/internal/routing/service"
	"lead_routing_backend/internal/routing/transport"
	"lead_routing_backend/platform/apperr"
	"lead_routing_backend/platform/httpkit"
	"lead_routing_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidLeadID    = "invalid lead id"
)

// Engine is the slice of the routing service exposed over HTTP.
type Engine interface {
	SubmitLead(ctx context.Context, in service.Intake) (*service.Outcome, error)
	Claim(ctx context.Context, leadID, agentID uuid.UUID) (service.ClaimResult, error)
	EscalateIfExpired(ctx context.Context, leadID uuid.UUID) (service.EscalationResult, error)
	ReleaseIfDue(ctx context.Context, leadID uuid.UUID) (service.ReleaseResult, error)
	AssignManually(ctx context.Context, in service.ManualAssignment) (service.ManualAssignResult, error)
}

// HoursCache drops the cached business-hours window.
type HoursCache interface {
	Invalidate(ctx context.Context) error
}

type Handler struct {
	svc   Engine
	hours HoursCache
	val   *validator.Validator
}

func New(svc Engine, hours HoursCache, val *validator.Validator) *Handler {
	return &Handler{svc: svc, hours: hours, val: val}
}

// RegisterPublicRoutes mounts unauthenticated intake.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.SubmitLead)
}

// RegisterAgentRoutes mounts routes for authenticated agents.
func (h *Handler) RegisterAgentRoutes(rg *gin.RouterGroup) {
	rg.POST("/:id/claim", h.Claim)
}

// RegisterAdminRoutes mounts manual assignment and the manual triggers for
// the scheduled callbacks.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/leads/:id/assign", h.AssignManually)
	rg.POST("/leads/:id/escalate", h.Escalate)
	rg.POST("/leads/:id/release", h.Release)
	rg.POST("/business-hours/invalidate", h.InvalidateBusinessHours)
}

func (h *Handler) SubmitLead(c *gin.Context) {
	var req transport.SubmitLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	out, err := h.svc.SubmitLead(c.Request.Context(), toIntake(req))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, toOutcomeResponse(out))
}

func (h *Handler) Claim(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}

	res, err := h.svc.Claim(c.Request.Context(), leadID, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}

	body := transport.ClaimResponse{
		LeadID:  res.LeadID,
		AgentID: res.AgentID,
		Outcome: string(res.Outcome),
		Round:   res.Round,
	}
	switch res.Outcome {
	case service.ClaimAlreadyClaimed:
		httpkit.JSON(c, http.StatusConflict, body)
	case service.ClaimNotEligible:
		httpkit.JSON(c, http.StatusForbidden, body)
	default:
		httpkit.OK(c, body)
	}
}

func (h *Handler) AssignManually(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}
	var req transport.ManualAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	res, err := h.svc.AssignManually(c.Request.Context(), service.ManualAssignment{
		LeadID:  leadID,
		AgentID: req.AgentID,
		ActorID: identity.UserID(),
		Reason:  req.Reason,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ManualAssignResponse{
		LeadID:        res.LeadID,
		AgentID:       res.AgentID,
		Status:        string(domain.StatusAssigned),
		PreviousRound: res.PreviousRound,
	})
}

func (h *Handler) Escalate(c *gin.Context) {
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}

	res, err := h.svc.EscalateIfExpired(c.Request.Context(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.EscalationResponse{
		LeadID:     res.LeadID,
		Outcome:    string(res.Outcome),
		Reason:     res.Reason,
		Round:      res.Round,
		Recipients: res.Recipients,
		AgentID:    res.AgentID,
	})
}

func (h *Handler) Release(c *gin.Context) {
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}

	res, err := h.svc.ReleaseIfDue(c.Request.Context(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}

	body := transport.ReleaseResponse{LeadID: res.LeadID, Outcome: string(res.Outcome)}
	if res.Routing != nil {
		body.Routing = toOutcomeResponse(res.Routing)
	}
	httpkit.OK(c, body)
}

func (h *Handler) InvalidateBusinessHours(c *gin.Context) {
	if err := h.hours.Invalidate(c.Request.Context()); err != nil {
		httpkit.HandleError(c, apperr.Unavailable("business hours cache unavailable", err))
		return
	}
	httpkit.OK(c, gin.H{"status": "ok"})
}

func parseLeadID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidLeadID, nil)
		return uuid.Nil, false
	}
	return id, true
}
