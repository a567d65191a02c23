// Package handler serves the agent notification inbox.
package handler

import (
	"net/http"
	"strconv"

	"lead_routing_backend/internal/notification/inapp"
	"lead_routing_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// InboxHandler exposes the authenticated agent's in-app notifications.
type InboxHandler struct {
	svc *inapp.Service
}

func NewInboxHandler(svc *inapp.Service) *InboxHandler {
	return &InboxHandler{svc: svc}
}

func (h *InboxHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/unread", h.CountUnread)
	rg.PATCH("/:id/read", h.MarkRead)
	rg.PATCH("/read-all", h.MarkAllRead)
}

type inboxPage struct {
	Items []inapp.Notification `json:"items"`
	Total int                  `json:"total"`
	Page  int                  `json:"page"`
}

func (h *InboxHandler) List(c *gin.Context) {
	agentID, ok := currentAgent(c)
	if !ok {
		return
	}

	page, size := pageParams(c)
	items, total, err := h.svc.List(c.Request.Context(), agentID, page, size)
	if httpkit.HandleError(c, err) {
		return
	}
	if items == nil {
		items = []inapp.Notification{}
	}

	httpkit.OK(c, inboxPage{Items: items, Total: total, Page: page})
}

func (h *InboxHandler) CountUnread(c *gin.Context) {
	agentID, ok := currentAgent(c)
	if !ok {
		return
	}

	count, err := h.svc.CountUnread(c.Request.Context(), agentID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"count": count})
}

func (h *InboxHandler) MarkRead(c *gin.Context) {
	agentID, ok := currentAgent(c)
	if !ok {
		return
	}

	notificationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid notification id", nil)
		return
	}

	if err := h.svc.MarkRead(c.Request.Context(), agentID, notificationID); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *InboxHandler) MarkAllRead(c *gin.Context) {
	agentID, ok := currentAgent(c)
	if !ok {
		return
	}

	if err := h.svc.MarkAllRead(c.Request.Context(), agentID); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

func currentAgent(c *gin.Context) (uuid.UUID, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return uuid.Nil, false
	}
	return identity.UserID(), true
}

// pageParams reads ?page and ?limit, falling back on anything unparsable.
func pageParams(c *gin.Context) (page, size int) {
	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 1 {
		page = 1
	}
	size, err = strconv.Atoi(c.Query("limit"))
	if err != nil || size < 1 {
		size = defaultPageSize
	}
	return page, min(size, maxPageSize)
}
