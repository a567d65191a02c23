// Package notification turns routing notification requests into durable
// outbox rows and delivers due rows as in-app notifications and emails.
// Routing never talks to a delivery channel directly.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"lead_routing_backend/internal/email"
	"lead_routing_backend/internal/events"
	apphttp "lead_routing_backend/internal/http"
	notifhandler "lead_routing_backend/internal/notification/handler"
	"lead_routing_backend/internal/notification/inapp"
	notificationoutbox "lead_routing_backend/internal/notification/outbox"
	"lead_routing_backend/platform/config"
	"lead_routing_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	channelInApp = "in_app"
	channelEmail = "email"

	invalidOutboxPayloadPrefix = "invalid payload: "
	maxOutboxRetryAttempts     = 5
	outboxRetryBaseDelay       = time.Minute
	outboxRetryMaxDelay        = 60 * time.Minute
)

// OutboxStore is the outbox persistence the module needs.
type OutboxStore interface {
	Insert(ctx context.Context, p notificationoutbox.InsertParams) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (notificationoutbox.Record, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkSucceeded(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
	ScheduleRetry(ctx context.Context, id uuid.UUID, runAt time.Time, lastError string) error
}

// AgentContact is what email delivery needs to know about an agent.
type AgentContact struct {
	Name  string
	Email string
}

// AgentContactReader resolves an agent's delivery address.
type AgentContactReader interface {
	GetAgentContact(ctx context.Context, agentID uuid.UUID) (AgentContact, error)
}

// Module handles notification event subscriptions and the agent inbox routes.
type Module struct {
	outbox       OutboxStore
	inAppService *inapp.Service
	inAppHandler *notifhandler.InboxHandler
	sender       email.Sender
	contacts     AgentContactReader
	cfg          config.NotificationConfig
	log          *logger.Logger
	now          func() time.Time
}

// New creates the notification module on Postgres.
func New(pool *pgxpool.Pool, sender email.Sender, contacts AgentContactReader, cfg config.NotificationConfig, log *logger.Logger) *Module {
	return newModule(notificationoutbox.New(pool), inapp.NewRepository(pool), sender, contacts, cfg, log)
}

func newModule(outbox OutboxStore, inAppStore inapp.Store, sender email.Sender, contacts AgentContactReader, cfg config.NotificationConfig, log *logger.Logger) *Module {
	if sender == nil {
		sender = email.NoopSender{}
	}
	if log == nil {
		log = logger.Nop()
	}
	inAppSvc := inapp.NewService(inAppStore, log)
	return &Module{
		outbox:       outbox,
		inAppService: inAppSvc,
		inAppHandler: notifhandler.NewInboxHandler(inAppSvc),
		sender:       sender,
		contacts:     contacts,
		cfg:          cfg,
		log:          log,
		now:          time.Now,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "notifications"
}

// RegisterRoutes mounts the agent inbox.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.inAppHandler.RegisterRoutes(ctx.Protected.Group("/agent/notifications"))
}

var _ apphttp.Module = (*Module)(nil)

// RegisterHandlers subscribes the module to the event bus.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.AgentNotificationRequested{}.EventName(), m)
	bus.Subscribe(events.NotificationOutboxDue{}.EventName(), m)
	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.AgentNotificationRequested:
		return m.handleAgentNotificationRequested(ctx, e)
	case events.NotificationOutboxDue:
		return m.handleNotificationOutboxDue(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

type agentNotificationPayload struct {
	LeadName        string `json:"leadName"`
	LeadSegment     string `json:"leadSegment,omitempty"`
	Round           int    `json:"round,omitempty"`
	ClaimWindowMins int    `json:"claimWindowMinutes,omitempty"`
	RuleName        string `json:"ruleName,omitempty"`
}

// handleAgentNotificationRequested writes one outbox row per channel so each
// channel retries on its own.
func (m *Module) handleAgentNotificationRequested(ctx context.Context, e events.AgentNotificationRequested) error {
	payload := agentNotificationPayload{
		LeadName:        e.LeadName,
		LeadSegment:     e.LeadSegment,
		Round:           e.Round,
		ClaimWindowMins: e.ClaimWindowMins,
		RuleName:        e.AssignedRuleName,
	}
	leadID := e.LeadID

	for _, channel := range []string{channelInApp, channelEmail} {
		id, err := m.outbox.Insert(ctx, notificationoutbox.InsertParams{
			AgentID:  e.AgentID,
			LeadID:   &leadID,
			Kind:     channel,
			Template: e.Kind,
			Payload:  payload,
			RunAt:    m.now().UTC(),
		})
		if err != nil {
			m.log.Error("failed to enqueue agent notification",
				"agentId", e.AgentID, "leadId", e.LeadID, "kind", channel, "template", e.Kind, "error", err)
			return fmt.Errorf("enqueue %s notification: %w", channel, err)
		}
		m.log.Info("outbox message enqueued", "outboxId", id.String(), "kind", channel, "template", e.Kind, "agentId", e.AgentID, "leadId", e.LeadID)
	}
	return nil
}

func (m *Module) handleNotificationOutboxDue(ctx context.Context, e events.NotificationOutboxDue) error {
	rec, process, err := m.prepareOutboxRecord(ctx, e.OutboxID)
	if err != nil || !process {
		if err != nil {
			m.log.Error("failed to prepare outbox record", "outboxId", e.OutboxID, "error", err)
		}
		return err
	}

	var payload agentNotificationPayload
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		_ = m.outbox.MarkFailed(ctx, rec.ID, invalidOutboxPayloadPrefix+err.Error())
		return nil
	}
	content, ok := contentFor(rec.Template, payload)
	if !ok {
		m.markOutboxUnsupported(ctx, rec)
		return nil
	}

	var processErr error
	switch rec.Kind {
	case channelInApp:
		processErr = m.deliverInApp(ctx, rec, content)
	case channelEmail:
		processErr = m.deliverEmail(ctx, rec, payload)
	default:
		m.markOutboxUnsupported(ctx, rec)
		return nil
	}

	if processErr != nil {
		m.handleOutboxDeliveryError(ctx, rec, processErr)
		return processErr
	}
	if err := m.outbox.MarkSucceeded(ctx, rec.ID); err != nil {
		m.log.Error("failed to mark outbox record succeeded", "outboxId", rec.ID.String(), "error", err)
		return err
	}
	m.log.Info("outbox record processed successfully", "outboxId", rec.ID.String(), "kind", rec.Kind, "template", rec.Template)
	return nil
}

func (m *Module) deliverInApp(ctx context.Context, rec notificationoutbox.Record, content notificationContent) error {
	_, err := m.inAppService.Send(ctx, inapp.SendParams{
		AgentID:   rec.AgentID,
		LeadID:    rec.LeadID,
		Type:      rec.Template,
		Title:     content.Title,
		Message:   content.Message,
		ActionURL: m.actionURL(rec.LeadID),
	})
	return err
}

func (m *Module) deliverEmail(ctx context.Context, rec notificationoutbox.Record, payload agentNotificationPayload) error {
	if m.contacts == nil {
		return fmt.Errorf("agent contact reader not configured")
	}
	contact, err := m.contacts.GetAgentContact(ctx, rec.AgentID)
	if err != nil {
		return fmt.Errorf("load agent contact: %w", err)
	}
	if strings.TrimSpace(contact.Email) == "" {
		m.log.Debug("agent has no email address; skipping email", "outboxId", rec.ID.String(), "agentId", rec.AgentID)
		return nil
	}

	return m.sender.SendAgentNotification(ctx, contact.Email, email.AgentNotification{
		Kind:            rec.Template,
		AgentName:       contact.Name,
		LeadName:        payload.LeadName,
		LeadSegment:     payload.LeadSegment,
		Round:           payload.Round,
		ClaimWindowMins: payload.ClaimWindowMins,
		RuleName:        payload.RuleName,
		ActionURL:       m.actionURL(rec.LeadID),
	})
}

func (m *Module) actionURL(leadID *uuid.UUID) string {
	base := ""
	if m.cfg != nil {
		base = strings.TrimRight(m.cfg.GetAppBaseURL(), "/")
	}
	if leadID == nil || base == "" {
		return base
	}
	return base + "/leads/" + leadID.String()
}

func (m *Module) prepareOutboxRecord(ctx context.Context, outboxID uuid.UUID) (notificationoutbox.Record, bool, error) {
	rec, err := m.outbox.GetByID(ctx, outboxID)
	if err != nil {
		return notificationoutbox.Record{}, false, err
	}
	if rec.Status == notificationoutbox.StatusSucceeded || rec.Status == notificationoutbox.StatusFailed {
		m.log.Debug("outbox record already finished; skipping", "outboxId", rec.ID.String(), "status", rec.Status)
		return rec, false, nil
	}
	if err := m.outbox.MarkProcessing(ctx, rec.ID); err != nil {
		return notificationoutbox.Record{}, false, err
	}
	return rec, true, nil
}

func (m *Module) markOutboxUnsupported(ctx context.Context, rec notificationoutbox.Record) {
	_ = m.outbox.MarkFailed(ctx, rec.ID, "unsupported outbox message: "+rec.Kind+"/"+rec.Template)
	m.log.Warn("unsupported outbox message", "outboxId", rec.ID.String(), "kind", rec.Kind, "template", rec.Template)
}

func (m *Module) handleOutboxDeliveryError(ctx context.Context, rec notificationoutbox.Record, deliveryErr error) {
	attempt := rec.Attempts + 1
	if attempt >= maxOutboxRetryAttempts {
		_ = m.outbox.MarkFailed(ctx, rec.ID, deliveryErr.Error())
		m.log.Warn("notification outbox exhausted retries",
			"outboxId", rec.ID.String(),
			"kind", rec.Kind,
			"template", rec.Template,
			"attempt", attempt,
			"maxAttempts", maxOutboxRetryAttempts,
			"error", deliveryErr,
		)
		return
	}

	retryAt := m.now().UTC().Add(computeOutboxRetryDelay(attempt))
	if err := m.outbox.ScheduleRetry(ctx, rec.ID, retryAt, deliveryErr.Error()); err != nil {
		_ = m.outbox.MarkFailed(ctx, rec.ID, deliveryErr.Error())
		m.log.Error("notification outbox retry scheduling failed; marked failed",
			"outboxId", rec.ID.String(),
			"attempt", attempt,
			"error", err,
		)
		return
	}

	m.log.Warn("notification outbox scheduled retry",
		"outboxId", rec.ID.String(),
		"kind", rec.Kind,
		"template", rec.Template,
		"attempt", attempt,
		"retryAt", retryAt,
		"error", deliveryErr,
	)
}

func computeOutboxRetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := outboxRetryBaseDelay << (attempt - 1)
	if delay > outboxRetryMaxDelay {
		return outboxRetryMaxDelay
	}
	return delay
}
