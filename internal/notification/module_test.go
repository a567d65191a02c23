package notification

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"lead_routing_backend/internal/email"
	"lead_routing_backend/internal/events"
	"lead_routing_backend/internal/notification/inapp"
	notificationoutbox "lead_routing_backend/internal/notification/outbox"
	"lead_routing_backend/platform/logger"

	"github.com/google/uuid"
)

type testNotificationConfig struct{}

func (testNotificationConfig) GetAppBaseURL() string { return "https://app.example.com/" }

type memOutbox struct {
	mu      sync.Mutex
	records map[uuid.UUID]*notificationoutbox.Record
	order   []uuid.UUID
	retryAt map[uuid.UUID]time.Time
	lastErr map[uuid.UUID]string
}

func newMemOutbox() *memOutbox {
	return &memOutbox{
		records: map[uuid.UUID]*notificationoutbox.Record{},
		retryAt: map[uuid.UUID]time.Time{},
		lastErr: map[uuid.UUID]string{},
	}
}

func (o *memOutbox) Insert(_ context.Context, p notificationoutbox.InsertParams) (uuid.UUID, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	payload, err := json.Marshal(p.Payload)
	if err != nil {
		return uuid.Nil, err
	}
	id := uuid.New()
	o.records[id] = &notificationoutbox.Record{
		ID: id, AgentID: p.AgentID, LeadID: p.LeadID, Kind: p.Kind, Template: p.Template,
		Payload: payload, RunAt: p.RunAt, Status: notificationoutbox.StatusPending,
	}
	o.order = append(o.order, id)
	return id, nil
}

func (o *memOutbox) GetByID(_ context.Context, id uuid.UUID) (notificationoutbox.Record, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	rec, ok := o.records[id]
	if !ok {
		return notificationoutbox.Record{}, errors.New("no rows")
	}
	return *rec, nil
}

func (o *memOutbox) set(id uuid.UUID, status notificationoutbox.Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records[id].Status = status
}

func (o *memOutbox) MarkProcessing(_ context.Context, id uuid.UUID) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records[id].Status = notificationoutbox.StatusProcessing
	o.records[id].Attempts++
	return nil
}

func (o *memOutbox) MarkSucceeded(_ context.Context, id uuid.UUID) error {
	o.set(id, notificationoutbox.StatusSucceeded)
	return nil
}

func (o *memOutbox) MarkFailed(_ context.Context, id uuid.UUID, lastError string) error {
	o.set(id, notificationoutbox.StatusFailed)
	o.mu.Lock()
	o.lastErr[id] = lastError
	o.mu.Unlock()
	return nil
}

func (o *memOutbox) ScheduleRetry(_ context.Context, id uuid.UUID, runAt time.Time, lastError string) error {
	o.set(id, notificationoutbox.StatusPending)
	o.mu.Lock()
	o.retryAt[id] = runAt
	o.lastErr[id] = lastError
	o.mu.Unlock()
	return nil
}

func (o *memOutbox) byKind(kind string) notificationoutbox.Record {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, id := range o.order {
		if o.records[id].Kind == kind {
			return *o.records[id]
		}
	}
	return notificationoutbox.Record{}
}

type memInApp struct {
	created []inapp.CreateParams
	err     error
}

func (s *memInApp) Create(_ context.Context, p inapp.CreateParams) (inapp.Notification, error) {
	if s.err != nil {
		return inapp.Notification{}, s.err
	}
	s.created = append(s.created, p)
	return inapp.Notification{ID: uuid.New(), AgentID: p.AgentID, Title: p.Title, Message: p.Message}, nil
}

func (s *memInApp) List(context.Context, uuid.UUID, int, int) ([]inapp.Notification, int, error) {
	return nil, 0, nil
}
func (s *memInApp) CountUnread(context.Context, uuid.UUID) (int, error)  { return 0, nil }
func (s *memInApp) MarkRead(context.Context, uuid.UUID, uuid.UUID) error { return nil }
func (s *memInApp) MarkAllRead(context.Context, uuid.UUID) error         { return nil }

type testSender struct {
	sent []email.AgentNotification
	to   []string
	err  error
}

func (s *testSender) SendAgentNotification(_ context.Context, toEmail string, n email.AgentNotification) error {
	if s.err != nil {
		return s.err
	}
	s.to = append(s.to, toEmail)
	s.sent = append(s.sent, n)
	return nil
}

type testContacts map[uuid.UUID]AgentContact

func (c testContacts) GetAgentContact(_ context.Context, id uuid.UUID) (AgentContact, error) {
	contact, ok := c[id]
	if !ok {
		return AgentContact{}, errors.New("agent not found")
	}
	return contact, nil
}

type fixture struct {
	module *Module
	outbox *memOutbox
	inApp  *memInApp
	sender *testSender
	agent  uuid.UUID
	lead   uuid.UUID
}

func newFixture(contactEmail string) *fixture {
	agent := uuid.New()
	f := &fixture{
		outbox: newMemOutbox(),
		inApp:  &memInApp{},
		sender: &testSender{},
		agent:  agent,
		lead:   uuid.New(),
	}
	contacts := testContacts{agent: {Name: "Sam Reyes", Email: contactEmail}}
	f.module = newModule(f.outbox, f.inApp, f.sender, contacts, testNotificationConfig{}, logger.Nop())
	f.module.now = func() time.Time { return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) }
	return f
}

func (f *fixture) request(t *testing.T, kind string) {
	t.Helper()
	err := f.module.Handle(context.Background(), events.AgentNotificationRequested{
		BaseEvent:       events.NewBaseEvent(),
		AgentID:         f.agent,
		LeadID:          f.lead,
		Kind:            kind,
		Round:           1,
		LeadName:        "Ana Lopez",
		LeadSegment:     "Hot",
		ClaimWindowMins: 15,
	})
	if err != nil {
		t.Fatalf("request handler error = %v", err)
	}
}

func (f *fixture) due(t *testing.T, id uuid.UUID) error {
	t.Helper()
	return f.module.Handle(context.Background(), events.NotificationOutboxDue{BaseEvent: events.NewBaseEvent(), OutboxID: id})
}

func TestAgentNotificationRequestedWritesOneRowPerChannel(t *testing.T) {
	f := newFixture("sam@example.com")
	f.request(t, events.NotificationNewLeadAvailable)

	if len(f.outbox.order) != 2 {
		t.Fatalf("outbox rows = %d, want 2", len(f.outbox.order))
	}
	for _, kind := range []string{channelInApp, channelEmail} {
		rec := f.outbox.byKind(kind)
		if rec.AgentID != f.agent || rec.LeadID == nil || *rec.LeadID != f.lead {
			t.Fatalf("%s row has wrong ids: %+v", kind, rec)
		}
		if rec.Template != events.NotificationNewLeadAvailable || rec.Status != notificationoutbox.StatusPending {
			t.Fatalf("%s row = %+v", kind, rec)
		}
	}
}

func TestOutboxDueDeliversInApp(t *testing.T) {
	f := newFixture("sam@example.com")
	f.request(t, events.NotificationNewLeadAvailable)
	rec := f.outbox.byKind(channelInApp)

	if err := f.due(t, rec.ID); err != nil {
		t.Fatalf("due handler error = %v", err)
	}

	if len(f.inApp.created) != 1 {
		t.Fatalf("in-app notifications = %d, want 1", len(f.inApp.created))
	}
	got := f.inApp.created[0]
	if got.Title != "New lead available" || !strings.Contains(got.Message, "Claim within 15 minutes") {
		t.Fatalf("unexpected content: %+v", got)
	}
	if got.ActionURL != "https://app.example.com/leads/"+f.lead.String() {
		t.Fatalf("action url = %q", got.ActionURL)
	}
	if f.outbox.byKind(channelInApp).Status != notificationoutbox.StatusSucceeded {
		t.Fatal("in-app row must be marked succeeded")
	}
	if len(f.sender.sent) != 0 {
		t.Fatal("in-app row must not send email")
	}
}

func TestOutboxDueDeliversEmail(t *testing.T) {
	f := newFixture("sam@example.com")
	f.request(t, events.NotificationClaimSLABreach)

	if err := f.due(t, f.outbox.byKind(channelEmail).ID); err != nil {
		t.Fatal(err)
	}
	if len(f.sender.sent) != 1 || f.sender.to[0] != "sam@example.com" {
		t.Fatalf("emails sent = %v", f.sender.to)
	}
	if f.sender.sent[0].Kind != events.NotificationClaimSLABreach || f.sender.sent[0].AgentName != "Sam Reyes" {
		t.Fatalf("unexpected email: %+v", f.sender.sent[0])
	}
}

func TestOutboxDueSkipsEmailWithoutAddress(t *testing.T) {
	f := newFixture("")
	f.request(t, events.NotificationRuleAssigned)
	rec := f.outbox.byKind(channelEmail)

	if err := f.due(t, rec.ID); err != nil {
		t.Fatal(err)
	}
	if len(f.sender.sent) != 0 {
		t.Fatal("no email expected without an address")
	}
	if f.outbox.byKind(channelEmail).Status != notificationoutbox.StatusSucceeded {
		t.Fatal("row without address must still finish")
	}
}

func TestOutboxDueSchedulesRetryThenFails(t *testing.T) {
	f := newFixture("sam@example.com")
	f.sender.err = errors.New("smtp down")
	f.request(t, events.NotificationAdminFallback)
	id := f.outbox.byKind(channelEmail).ID

	if err := f.due(t, id); err == nil {
		t.Fatal("expected delivery error")
	}
	if f.outbox.byKind(channelEmail).Status != notificationoutbox.StatusPending {
		t.Fatal("first failure must reschedule")
	}
	wantRetry := f.module.now().UTC().Add(time.Minute)
	if got := f.outbox.retryAt[id]; !got.Equal(wantRetry) {
		t.Fatalf("retry at = %v, want %v", got, wantRetry)
	}

	for i := 1; i < maxOutboxRetryAttempts; i++ {
		_ = f.due(t, id)
	}
	if f.outbox.byKind(channelEmail).Status != notificationoutbox.StatusFailed {
		t.Fatalf("status after %d attempts = %s, want failed", maxOutboxRetryAttempts, f.outbox.byKind(channelEmail).Status)
	}
}

func TestOutboxDueSkipsFinishedAndRejectsBadRows(t *testing.T) {
	f := newFixture("sam@example.com")
	f.request(t, events.NotificationRuleAssigned)
	inAppID := f.outbox.byKind(channelInApp).ID
	f.outbox.set(inAppID, notificationoutbox.StatusSucceeded)

	if err := f.due(t, inAppID); err != nil {
		t.Fatal(err)
	}
	if len(f.inApp.created) != 0 {
		t.Fatal("succeeded row must not be delivered again")
	}

	badID, _ := f.outbox.Insert(context.Background(), notificationoutbox.InsertParams{
		AgentID: f.agent, Kind: channelInApp, Template: "sms_blast", Payload: map[string]any{},
	})
	if err := f.due(t, badID); err != nil {
		t.Fatal(err)
	}
	rec, _ := f.outbox.GetByID(context.Background(), badID)
	if rec.Status != notificationoutbox.StatusFailed {
		t.Fatalf("unsupported template status = %s, want failed", rec.Status)
	}
}

func TestComputeOutboxRetryDelayCaps(t *testing.T) {
	cases := map[int]time.Duration{0: time.Minute, 1: time.Minute, 2: 2 * time.Minute, 4: 8 * time.Minute, 10: 60 * time.Minute}
	for attempt, want := range cases {
		if got := computeOutboxRetryDelay(attempt); got != want {
			t.Errorf("attempt %d: delay = %v, want %v", attempt, got, want)
		}
	}
}
