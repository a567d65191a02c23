package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"lead_routing_backend/internal/routing/domain"
	"lead_routing_backend/internal/routing/service"
	"lead_routing_backend/platform/apperr"
	"lead_routing_backend/platform/httpkit"
	"lead_routing_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type fakeEngine struct {
	gotIntake  service.Intake
	submitErr  error
	claim      service.ClaimResult
	claimErr   error
	escalation service.EscalationResult
	release    service.ReleaseResult
	manual     service.ManualAssignment
	manualErr  error
}

func (f *fakeEngine) SubmitLead(_ context.Context, in service.Intake) (*service.Outcome, error) {
	f.gotIntake = in
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	n := 3
	round := 1
	return &service.Outcome{
		LeadID:                  uuid.New(),
		Score:                   72,
		Segment:                 domain.SegmentWarm,
		Priority:                domain.PriorityHigh,
		Status:                  domain.StatusNew,
		AssignmentMethod:        domain.MethodBroadcast,
		BroadcastRecipientCount: &n,
		Round:                   &round,
	}, nil
}

func (f *fakeEngine) Claim(_ context.Context, leadID, agentID uuid.UUID) (service.ClaimResult, error) {
	f.claim.LeadID, f.claim.AgentID = leadID, agentID
	return f.claim, f.claimErr
}

func (f *fakeEngine) EscalateIfExpired(_ context.Context, leadID uuid.UUID) (service.EscalationResult, error) {
	f.escalation.LeadID = leadID
	return f.escalation, nil
}

func (f *fakeEngine) ReleaseIfDue(_ context.Context, leadID uuid.UUID) (service.ReleaseResult, error) {
	f.release.LeadID = leadID
	return f.release, nil
}

func (f *fakeEngine) AssignManually(_ context.Context, in service.ManualAssignment) (service.ManualAssignResult, error) {
	f.manual = in
	if f.manualErr != nil {
		return service.ManualAssignResult{}, f.manualErr
	}
	round := 1
	return service.ManualAssignResult{LeadID: in.LeadID, AgentID: in.AgentID, PreviousRound: &round}, nil
}

type fakeCache struct {
	calls int
	err   error
}

func (f *fakeCache) Invalidate(context.Context) error {
	f.calls++
	return f.err
}

func newRouter(engine Engine, cache HoursCache, agentID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := New(engine, cache, validator.New())

	h.RegisterPublicRoutes(r.Group("/leads"))

	identify := func(c *gin.Context) {
		if agentID != uuid.Nil {
			c.Set(httpkit.ContextUserIDKey, agentID)
		}
		c.Next()
	}
	h.RegisterAgentRoutes(r.Group("/agent/leads", identify))
	h.RegisterAdminRoutes(r.Group("/admin/routing", identify))
	return r
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSubmitLeadMapsPayload(t *testing.T) {
	engine := &fakeEngine{}
	r := newRouter(engine, &fakeCache{}, uuid.Nil)

	w := do(r, http.MethodPost, "/leads", map[string]any{
		"firstName":    "Ana",
		"lastName":     "Lopez",
		"email":        "ana@example.com",
		"language":     "es-ES",
		"budgetRange":  "€500,000 - €1,000,000",
		"propertyType": []string{"villa"},
		"timeframe":    "3-6 months",
		"pageSlug":     "marbella-villas",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	if engine.gotIntake.BudgetRange != "€500,000 - €1,000,000" || engine.gotIntake.PageSlug != "marbella-villas" {
		t.Fatalf("intake not mapped: %+v", engine.gotIntake)
	}
	if len(engine.gotIntake.PropertyTypes) != 1 {
		t.Fatalf("property types not mapped: %+v", engine.gotIntake.PropertyTypes)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["assignmentMethod"] != "broadcast" || resp["broadcastRecipientCount"] != float64(3) {
		t.Fatalf("unexpected response: %v", resp)
	}
	if _, ok := resp["assignedAgentId"]; ok {
		t.Fatal("assignedAgentId must be omitted when unset")
	}
}

func TestSubmitLeadRejectsInvalidPayload(t *testing.T) {
	cases := []struct {
		name string
		body map[string]any
	}{
		{"blank first name", map[string]any{"firstName": "  ", "lastName": "Lopez"}},
		{"missing last name", map[string]any{"firstName": "Ana"}},
		{"bad email", map[string]any{"firstName": "Ana", "lastName": "Lopez", "email": "not-an-email"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := &fakeEngine{}
			w := do(newRouter(engine, &fakeCache{}, uuid.Nil), http.MethodPost, "/leads", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			if engine.gotIntake.FirstName != "" {
				t.Fatal("engine must not be called on invalid input")
			}
		})
	}
}

func TestSubmitLeadStoreFailureIs503(t *testing.T) {
	engine := &fakeEngine{submitErr: apperr.Unavailable("lead could not be stored", errors.New("dial tcp"))}
	w := do(newRouter(engine, &fakeCache{}, uuid.Nil), http.MethodPost, "/leads", map[string]any{
		"firstName": "Ana", "lastName": "Lopez", "phone": "+34600000000",
	})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestClaimStatusCodes(t *testing.T) {
	agentID := uuid.New()
	leadID := uuid.New()

	cases := []struct {
		outcome service.ClaimOutcome
		want    int
	}{
		{service.ClaimClaimed, http.StatusOK},
		{service.ClaimAlreadyClaimed, http.StatusConflict},
		{service.ClaimNotEligible, http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(string(tc.outcome), func(t *testing.T) {
			engine := &fakeEngine{claim: service.ClaimResult{Outcome: tc.outcome}}
			w := do(newRouter(engine, &fakeCache{}, agentID), http.MethodPost, "/agent/leads/"+leadID.String()+"/claim", nil)
			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d", w.Code, tc.want)
			}
			if engine.claim.AgentID != agentID || engine.claim.LeadID != leadID {
				t.Fatal("claim must use the authenticated agent and path lead id")
			}
		})
	}
}

func TestClaimRequiresIdentityAndValidID(t *testing.T) {
	engine := &fakeEngine{}
	w := do(newRouter(engine, &fakeCache{}, uuid.Nil), http.MethodPost, "/agent/leads/"+uuid.NewString()+"/claim", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	w = do(newRouter(engine, &fakeCache{}, uuid.New()), http.MethodPost, "/agent/leads/nope/claim", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestClaimUnknownLeadIs404(t *testing.T) {
	engine := &fakeEngine{claimErr: apperr.NotFound("lead not found")}
	w := do(newRouter(engine, &fakeCache{}, uuid.New()), http.MethodPost, "/agent/leads/"+uuid.NewString()+"/claim", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestAdminTriggers(t *testing.T) {
	round := 2
	engine := &fakeEngine{
		escalation: service.EscalationResult{Outcome: service.EscalationNextRound, Round: &round, Recipients: 4},
		release:    service.ReleaseResult{Outcome: service.ReleaseNotDue},
	}
	cache := &fakeCache{}
	r := newRouter(engine, cache, uuid.Nil)
	leadID := uuid.NewString()

	w := do(r, http.MethodPost, "/admin/routing/leads/"+leadID+"/escalate", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("escalate status = %d", w.Code)
	}
	var esc map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &esc)
	if esc["outcome"] != "escalated" || esc["round"] != float64(2) {
		t.Fatalf("unexpected escalate body: %v", esc)
	}

	w = do(r, http.MethodPost, "/admin/routing/leads/"+leadID+"/release", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("release status = %d", w.Code)
	}
	var rel map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &rel)
	if rel["outcome"] != "not_due" {
		t.Fatalf("unexpected release body: %v", rel)
	}
	if _, ok := rel["routing"]; ok {
		t.Fatal("routing must be omitted when nothing was released")
	}

	w = do(r, http.MethodPost, "/admin/routing/business-hours/invalidate", nil)
	if w.Code != http.StatusOK || cache.calls != 1 {
		t.Fatalf("invalidate status = %d, calls = %d", w.Code, cache.calls)
	}

	cache.err = errors.New("redis down")
	w = do(r, http.MethodPost, "/admin/routing/business-hours/invalidate", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("invalidate failure status = %d, want 503", w.Code)
	}
}

func TestAssignManually(t *testing.T) {
	adminID := uuid.New()
	agentID := uuid.New()
	leadID := uuid.New()

	cases := []struct {
		name      string
		path      string
		actor     uuid.UUID
		body      any
		engineErr error
		want      int
	}{
		{name: "assigned", path: leadID.String(), actor: adminID, body: map[string]any{"agentId": agentID, "reason": "VIP"}, want: http.StatusOK},
		{name: "no identity", path: leadID.String(), body: map[string]any{"agentId": agentID}, want: http.StatusUnauthorized},
		{name: "bad lead id", path: "nope", actor: adminID, body: map[string]any{"agentId": agentID}, want: http.StatusBadRequest},
		{name: "missing agent", path: leadID.String(), actor: adminID, body: map[string]any{"reason": "VIP"}, want: http.StatusBadRequest},
		{name: "malformed agent", path: leadID.String(), actor: adminID, body: map[string]any{"agentId": "x"}, want: http.StatusBadRequest},
		{name: "lead already owned", path: leadID.String(), actor: adminID, body: map[string]any{"agentId": agentID}, engineErr: apperr.Conflict("lead is not awaiting assignment"), want: http.StatusConflict},
		{name: "unknown lead", path: leadID.String(), actor: adminID, body: map[string]any{"agentId": agentID}, engineErr: apperr.NotFound("lead not found"), want: http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := &fakeEngine{manualErr: tc.engineErr}
			w := do(newRouter(engine, &fakeCache{}, tc.actor), http.MethodPost, "/admin/routing/leads/"+tc.path+"/assign", tc.body)
			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d, body = %s", w.Code, tc.want, w.Body.String())
			}
			if tc.want != http.StatusOK {
				return
			}
			if engine.manual.LeadID != leadID || engine.manual.AgentID != agentID || engine.manual.ActorID != adminID || engine.manual.Reason != "VIP" {
				t.Fatalf("assignment not mapped: %+v", engine.manual)
			}
			var resp map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp["status"] != "assigned" || resp["previousRound"] != float64(1) {
				t.Fatalf("unexpected response: %v", resp)
			}
		})
	}
}
