package service

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"lead_routing_backend/internal/routing/domain"
	"lead_routing_backend/internal/routing/ports"
	"lead_routing_backend/platform/logger"

	"github.com/google/uuid"
)

// memStore is an in-memory LeadRecorder, AgentDirectory, RuleStore,
// RoundConfigStore and BusinessHoursSource with the same compare-and-set
// semantics as the Postgres repository.
type memStore struct {
	mu         sync.Mutex
	leads      map[uuid.UUID]domain.Lead
	agents     map[uuid.UUID]domain.Agent
	rules      []domain.RoutingRule
	rounds     []domain.RoundConfig
	hours      domain.BusinessHours
	activities []domain.Activity

	createErr     error
	startRoundErr error
	agentsErr     error
	hoursErr      error
}

func newMemStore() *memStore {
	return &memStore{
		leads:  make(map[uuid.UUID]domain.Lead),
		agents: make(map[uuid.UUID]domain.Agent),
		hours:  domain.AlwaysOpen,
	}
}

func (m *memStore) addAgent(a domain.Agent) domain.Agent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	m.agents[a.ID] = a
	return a
}

func (m *memStore) lead(id uuid.UUID) domain.Lead {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leads[id]
}

func (m *memStore) agent(id uuid.UUID) domain.Agent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.agents[id]
}

func (m *memStore) rule(id uuid.UUID) domain.RoutingRule {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rules {
		if r.ID == id {
			return r
		}
	}
	return domain.RoutingRule{}
}

func (m *memStore) activityTypes(leadID uuid.UUID) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var types []string
	for _, a := range m.activities {
		if a.LeadID == leadID {
			types = append(types, a.Type)
		}
	}
	return types
}

func (m *memStore) CreateLead(_ context.Context, lead domain.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.leads[lead.ID] = lead
	return nil
}

func (m *memStore) GetLead(_ context.Context, id uuid.UUID) (domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lead, ok := m.leads[id]
	if !ok {
		return domain.Lead{}, ports.ErrNotFound
	}
	return lead, nil
}

func sameRound(current, expected *int) bool {
	if current == nil || expected == nil {
		return current == nil && expected == nil
	}
	return *current == *expected
}

func (m *memStore) Assign(_ context.Context, a ports.Assignment) (ports.AssignOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lead, ok := m.leads[a.LeadID]
	if !ok || lead.Status != a.ExpectedStatus || lead.Claimed || !sameRound(lead.CurrentRound, a.ExpectedRound) {
		return ports.AssignLeadTaken, nil
	}
	agent, ok := m.agents[a.AgentID]
	if !ok || agent.CurrentLeadCount >= agent.MaxActiveLeads {
		return ports.AssignAgentFull, nil
	}

	agent.CurrentLeadCount++
	m.agents[agent.ID] = agent

	at := a.At
	agentID := a.AgentID
	lead.Status = a.Status
	lead.AssignmentMethod = a.Method
	lead.Claimed = true
	lead.ClaimedBy = a.ClaimedBy
	lead.AssignedAgentID = &agentID
	lead.AssignedAt = &at
	lead.ClaimWindowExpiresAt = nil
	lead.NeedsManualAssignment = false
	if a.RuleID != nil {
		lead.RoutingRuleID = a.RuleID
	}
	if a.Status != domain.StatusClaimed {
		lead.CurrentRound = nil
	}
	m.leads[lead.ID] = lead
	return ports.AssignApplied, nil
}

func (m *memStore) StartRound(_ context.Context, rs ports.RoundStart) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startRoundErr != nil {
		return false, m.startRoundErr
	}

	lead, ok := m.leads[rs.LeadID]
	if !ok || lead.Status != rs.ExpectedStatus || lead.Claimed || !sameRound(lead.CurrentRound, rs.ExpectedRound) {
		return false, nil
	}
	round := rs.Round
	broadcastAt, expiresAt := rs.BroadcastAt, rs.ExpiresAt
	lead.Status = domain.StatusNew
	lead.AssignmentMethod = domain.MethodBroadcast
	lead.CurrentRound = &round
	lead.RoundBroadcastAt = &broadcastAt
	lead.ClaimWindowExpiresAt = &expiresAt
	lead.NeedsManualAssignment = rs.NeedsManual
	if rs.RuleID != nil {
		lead.RoutingRuleID = rs.RuleID
	}
	m.leads[lead.ID] = lead
	return true, nil
}

func (m *memStore) ReleaseNightHold(_ context.Context, leadID uuid.UUID, _ time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lead, ok := m.leads[leadID]
	if !ok || lead.Status != domain.StatusNightHeld {
		return false, nil
	}
	lead.Status = domain.StatusNew
	lead.AssignmentMethod = domain.MethodBroadcast
	lead.ScheduledReleaseAt = nil
	m.leads[leadID] = lead
	return true, nil
}

func (m *memStore) FlagManualAssignment(_ context.Context, leadID uuid.UUID, expectedRound *int, round int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lead, ok := m.leads[leadID]
	if !ok || lead.Status != domain.StatusNew || lead.Claimed || !sameRound(lead.CurrentRound, expectedRound) {
		return false, nil
	}
	if lead.NeedsManualAssignment && lead.ClaimWindowExpiresAt == nil {
		return false, nil
	}
	r := round
	lead.CurrentRound = &r
	lead.NeedsManualAssignment = true
	lead.ClaimWindowExpiresAt = nil
	m.leads[leadID] = lead
	return true, nil
}

func (m *memStore) ListExpiredClaimWindows(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for id, lead := range m.leads {
		if lead.AwaitingClaim() && !lead.ClaimWindowExpiresAt.After(now) && len(ids) < limit {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memStore) ListDueNightHolds(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for id, lead := range m.leads {
		if lead.Status == domain.StatusNightHeld && lead.ScheduledReleaseAt != nil && !lead.ScheduledReleaseAt.After(now) && len(ids) < limit {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memStore) ListUnroutedLeads(_ context.Context, before time.Time, limit int) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for id, lead := range m.leads {
		if lead.Unrouted() && !lead.CreatedAt.After(before) && len(ids) < limit {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memStore) AppendActivity(_ context.Context, activity domain.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activities = append(m.activities, activity)
	return nil
}

func (m *memStore) GetAgent(_ context.Context, id uuid.UUID) (domain.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.agentsErr != nil {
		return domain.Agent{}, m.agentsErr
	}
	agent, ok := m.agents[id]
	if !ok {
		return domain.Agent{}, ports.ErrNotFound
	}
	return agent, nil
}

func (m *memStore) ListAgentsByLanguage(_ context.Context, language string) ([]domain.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.agentsErr != nil {
		return nil, m.agentsErr
	}
	var out []domain.Agent
	for _, a := range m.agents {
		if a.Speaks(language) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) ListAgentsByIDs(_ context.Context, ids []uuid.UUID) ([]domain.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.agentsErr != nil {
		return nil, m.agentsErr
	}
	var out []domain.Agent
	for _, id := range ids {
		if a, ok := m.agents[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) ListAdmins(_ context.Context) ([]domain.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Agent
	for _, a := range m.agents {
		if a.IsAdmin() {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) ListActiveRules(_ context.Context) ([]domain.RoutingRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	active := slices.DeleteFunc(slices.Clone(m.rules), func(r domain.RoutingRule) bool { return !r.IsActive })
	return domain.SortRules(active), nil
}

func (m *memStore) RecordMatch(_ context.Context, ruleID uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rules {
		if m.rules[i].ID == ruleID {
			m.rules[i].TotalMatches++
			m.rules[i].LastMatchedAt = &at
			return nil
		}
	}
	return ports.ErrNotFound
}

func (m *memStore) GetRoundConfig(_ context.Context, language string, round int) (domain.RoundConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rc := range m.rounds {
		if rc.Language == language && rc.RoundNumber == round {
			return rc, nil
		}
	}
	return domain.RoundConfig{}, ports.ErrNotFound
}

func (m *memStore) GetNextRound(_ context.Context, language string, afterRound int) (domain.RoundConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *domain.RoundConfig
	for i, rc := range m.rounds {
		if rc.Language != language || !rc.IsActive || rc.RoundNumber <= afterRound {
			continue
		}
		if best == nil || rc.RoundNumber < best.RoundNumber {
			best = &m.rounds[i]
		}
	}
	if best == nil {
		return domain.RoundConfig{}, ports.ErrNotFound
	}
	return *best, nil
}

func (m *memStore) GetBusinessHours(_ context.Context) (domain.BusinessHours, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hoursErr != nil {
		return domain.BusinessHours{}, m.hoursErr
	}
	return m.hours, nil
}

type scheduledTimer struct {
	LeadID uuid.UUID
	Round  int
	At     time.Time
}

type fakeTimers struct {
	mu       sync.Mutex
	expiries []scheduledTimer
	releases []scheduledTimer
	err      error
}

func (f *fakeTimers) ScheduleClaimExpiry(_ context.Context, leadID uuid.UUID, round int, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.expiries = append(f.expiries, scheduledTimer{LeadID: leadID, Round: round, At: at})
	return nil
}

func (f *fakeTimers) ScheduleNightRelease(_ context.Context, leadID uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.releases = append(f.releases, scheduledTimer{LeadID: leadID, At: at})
	return nil
}

type sentNotification struct {
	AgentID uuid.UUID
	Lead    ports.LeadSummary
	Kind    ports.NotificationKind
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (f *fakeNotifier) NotifyAgent(_ context.Context, agentID uuid.UUID, lead ports.LeadSummary, kind ports.NotificationKind) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentNotification{AgentID: agentID, Lead: lead, Kind: kind})
}

func (f *fakeNotifier) recipients(kind ports.NotificationKind) []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uuid.UUID
	for _, n := range f.sent {
		if n.Kind == kind {
			ids = append(ids, n.AgentID)
		}
	}
	return ids
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	svc      *Service
	store    *memStore
	timers   *fakeTimers
	notifier *fakeNotifier
	clock    *testClock
}

func newHarness(start time.Time) *harness {
	store := newMemStore()
	timers := &fakeTimers{}
	notifier := &fakeNotifier{}
	clock := &testClock{now: start}

	svc := New(Deps{
		Leads:    store,
		Agents:   store,
		Rules:    store,
		Rounds:   store,
		Hours:    store,
		Timers:   timers,
		Notifier: notifier,
		Clock:    clock.Now,
		Log:      logger.Nop(),
	}, Config{DefaultClaimWindowMinutes: 15, DefaultLanguage: "en", PhoneDefaultRegion: "ES"})

	return &harness{svc: svc, store: store, timers: timers, notifier: notifier, clock: clock}
}

func availableAgent(languages ...string) domain.Agent {
	return domain.Agent{
		FirstName:       "Agent",
		Role:            "agent",
		Languages:       languages,
		IsActive:        true,
		AcceptsNewLeads: true,
		MaxActiveLeads:  10,
	}
}

func englishIntake() Intake {
	return Intake{
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     "Jane.Doe@Example.com",
		Language:  "en",
		Qualification: domain.Qualification{
			BudgetRange: "€500,000 - €750,000",
			Timeframe:   "within_1_year",
		},
	}
}

var errBoom = errors.New("boom")
