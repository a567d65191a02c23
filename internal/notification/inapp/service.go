package inapp

import (
	"context"

	"lead_routing_backend/platform/apperr"
	"lead_routing_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the persistence the service needs; *Repository implements it.
type Store interface {
	Create(ctx context.Context, p CreateParams) (Notification, error)
	List(ctx context.Context, agentID uuid.UUID, limit, offset int) ([]Notification, int, error)
	CountUnread(ctx context.Context, agentID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, agentID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, agentID uuid.UUID) error
}

type Service struct {
	repo Store
	log  *logger.Logger
}

func NewService(repo Store, log *logger.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log,
	}
}

type SendParams struct {
	AgentID   uuid.UUID
	LeadID    *uuid.UUID
	Type      string
	Title     string
	Message   string
	ActionURL string
}

// Send persists the notification for the agent's inbox.
func (s *Service) Send(ctx context.Context, p SendParams) (Notification, error) {
	if s == nil || s.repo == nil {
		return Notification{}, apperr.Internal("in-app notification service not configured")
	}

	notif, err := s.repo.Create(ctx, CreateParams(p))
	if err != nil {
		if s.log != nil {
			s.log.Error("failed to persist in-app notification", "error", err, "agentId", p.AgentID)
		}
		return Notification{}, err
	}
	return notif, nil
}

func (s *Service) List(ctx context.Context, agentID uuid.UUID, page, pageSize int) ([]Notification, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	offset := (page - 1) * pageSize
	return s.repo.List(ctx, agentID, pageSize, offset)
}

func (s *Service) CountUnread(ctx context.Context, agentID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, agentID)
}

func (s *Service) MarkRead(ctx context.Context, agentID, id uuid.UUID) error {
	return s.repo.MarkRead(ctx, agentID, id)
}

func (s *Service) MarkAllRead(ctx context.Context, agentID uuid.UUID) error {
	return s.repo.MarkAllRead(ctx, agentID)
}
