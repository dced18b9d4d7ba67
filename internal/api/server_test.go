package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"audit-orchestrator/internal/common/auth"
	apperrors "audit-orchestrator/internal/common/errors"
	"audit-orchestrator/internal/common/logger"
	"audit-orchestrator/internal/models"
	"audit-orchestrator/internal/observations"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)

type fakeQueries struct {
	gotQuery  string
	gotIntent *models.Intent
	err       error
}

func (f *fakeQueries) Process(ctx context.Context, query string, in *models.Intent) (*models.OrchestrationResult, error) {
	f.gotQuery, f.gotIntent = query, in
	if f.err != nil {
		return nil, f.err
	}
	intent := models.IntentAuditChecklist
	if in != nil {
		intent = *in
	}
	return &models.OrchestrationResult{
		RequestID:        "req-1",
		Query:            query,
		Intent:           intent,
		Response:         "answer",
		InvolvedHandlers: []models.HandlerID{models.HandlerInternalAudit},
		Timestamp:        fixedNow,
	}, nil
}

func (f *fakeQueries) LiveAuditSupport(ctx context.Context, meetingContext, topic string) (string, error) {
	if strings.TrimSpace(topic) == "" {
		return "", apperrors.NewInvalidQueryError("topic is empty")
	}
	return "ask about " + topic, nil
}

type fakeResults struct {
	saved map[string]*models.OrchestrationResult
}

func (f *fakeResults) Save(ctx context.Context, result *models.OrchestrationResult) error {
	f.saved[result.RequestID] = result
	return nil
}

func (f *fakeResults) Get(ctx context.Context, id string) (*models.OrchestrationResult, error) {
	if r, ok := f.saved[id]; ok {
		return r, nil
	}
	return nil, apperrors.NewResultNotFoundError(id)
}

type fakeObservations struct {
	created   []observations.NewObservation
	lastCall  string
	lastArg   interface{}
	statusErr error
}

func (f *fakeObservations) record(call string, arg interface{}) ([]*models.Observation, error) {
	f.lastCall, f.lastArg = call, arg
	return []*models.Observation{{ID: "obs-1", Company: "Acme Pharma", RiskLevel: models.RiskMajor}}, nil
}

func (f *fakeObservations) Create(ctx context.Context, in observations.NewObservation) (*models.Observation, error) {
	risk, err := in.Validate()
	if err != nil {
		return nil, apperrors.NewObservationInvalidError(err.Error())
	}
	f.created = append(f.created, in)
	return &models.Observation{ID: "obs-1", Company: in.Company, Area: in.Area, RiskLevel: risk,
		Status: models.ObservationOpen, PriorityLabel: risk.PriorityLabel()}, nil
}

func (f *fakeObservations) Get(ctx context.Context, id string) (*models.Observation, error) {
	if id != "obs-1" {
		return nil, apperrors.NewObservationNotFoundError(id)
	}
	return &models.Observation{ID: id}, nil
}

func (f *fakeObservations) ListByCompany(ctx context.Context, company string) ([]*models.Observation, error) {
	return f.record("company", company)
}

func (f *fakeObservations) ListByRisk(ctx context.Context, levels ...models.RiskLevel) ([]*models.Observation, error) {
	return f.record("risk", levels)
}

func (f *fakeObservations) ListByArea(ctx context.Context, area string) ([]*models.Observation, error) {
	return f.record("area", area)
}

func (f *fakeObservations) ListOpen(ctx context.Context) ([]*models.Observation, error) {
	return f.record("open", nil)
}

func (f *fakeObservations) ListOverdue(ctx context.Context, now time.Time) ([]*models.Observation, error) {
	return f.record("overdue", now)
}

func (f *fakeObservations) UpdateStatus(ctx context.Context, id string, status models.ObservationStatus) error {
	f.lastCall, f.lastArg = "status", status
	return f.statusErr
}

func (f *fakeObservations) AddCorrectiveAction(ctx context.Context, id, action string, dueDate *time.Time) error {
	f.lastCall, f.lastArg = "action", action
	return nil
}

func (f *fakeObservations) Summary(ctx context.Context, company string) (*models.ObservationSummary, error) {
	return observations.Summarize(company, nil, fixedNow), nil
}

func (f *fakeObservations) sample() []*models.Observation {
	return []*models.Observation{{
		ID: "obs-1", Company: "Acme Pharma", Area: "QC Lab", Finding: "OOS not investigated",
		RiskLevel: models.RiskCritical, PriorityLabel: models.PriorityLabelCritical,
		Status: models.ObservationOpen, CreatedAt: fixedNow,
	}}
}

func (f *fakeObservations) Report(ctx context.Context, company string, format observations.ReportFormat) (string, error) {
	f.lastCall, f.lastArg = "report", format
	return observations.RenderReport(company, f.sample(), format, fixedNow)
}

func (f *fakeObservations) Export(ctx context.Context, company string, format observations.ExportFormat, w io.Writer) error {
	f.lastCall, f.lastArg = "export", format
	if format == observations.ExportCSV {
		return observations.WriteCSV(w, f.sample())
	}
	return json.NewEncoder(w).Encode(f.sample())
}

type fakeNotifier struct {
	notified []string
}

func (f *fakeNotifier) NotifyCritical(ctx context.Context, obs *models.Observation) (*observations.Notification, error) {
	if obs.RiskLevel != models.RiskCritical {
		return &observations.Notification{}, nil
	}
	f.notified = append(f.notified, obs.ID)
	return &observations.Notification{EmailSent: true}, nil
}

type fakeValidator struct{}

func (fakeValidator) ValidateToken(ctx context.Context, token string) (*auth.TokenInfo, error) {
	if token != "good" {
		return nil, apperrors.NewAuthenticationError("token is expired, revoked or malformed")
	}
	return &auth.TokenInfo{Active: true, Username: "auditor"}, nil
}

type fixture struct {
	queries  *fakeQueries
	results  *fakeResults
	obs      *fakeObservations
	notifier *fakeNotifier
	server   *httptest.Server
}

func newFixture(t *testing.T, mutate func(*Dependencies)) *fixture {
	f := &fixture{
		queries:  &fakeQueries{},
		results:  &fakeResults{saved: map[string]*models.OrchestrationResult{}},
		obs:      &fakeObservations{},
		notifier: &fakeNotifier{},
	}
	deps := Dependencies{
		Queries:        f.queries,
		Results:        f.results,
		PersistResults: true,
		Observations:   f.obs,
		Notifier:       f.notifier,
		Now:            func() time.Time { return fixedNow },
	}
	if mutate != nil {
		mutate(&deps)
	}
	f.server = httptest.NewServer(NewServer(deps, logger.NewTestLogger(t)).Router())
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string, headers ...string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func (f *fixture) getRaw(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(f.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(raw)
}

func errorCode(body map[string]interface{}) string {
	e, _ := body["error"].(map[string]interface{})
	code, _ := e["code"].(string)
	return code
}

// ==========================
// Query Tests
// ==========================

func TestQuery_Success(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.do(t, http.MethodPost, "/api/v1/query", `{"query":"Generate a checklist for Acme Pharma"}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "req-1", body["requestId"])
	assert.Equal(t, "audit_checklist", body["intent"])
	assert.Nil(t, f.queries.gotIntent)
	assert.Contains(t, f.results.saved, "req-1")
}

func TestQuery_SuppliedIntent(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.do(t, http.MethodPost, "/api/v1/query", `{"query":"plan the day","intent":"audit_agenda"}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, f.queries.gotIntent)
	assert.Equal(t, models.IntentAuditAgenda, *f.queries.gotIntent)
	assert.Equal(t, "audit_agenda", body["intent"])
}

func TestQuery_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		processErr error
		wantStatus int
		wantCode   string
	}{
		{name: "not json", body: `{`, wantStatus: http.StatusBadRequest, wantCode: "INVALID_QUERY"},
		{name: "missing query", body: `{}`, wantStatus: http.StatusBadRequest, wantCode: "INVALID_QUERY"},
		{name: "blank query", body: `{"query":"   "}`, wantStatus: http.StatusBadRequest, wantCode: "INVALID_QUERY"},
		{name: "unknown intent", body: `{"query":"q","intent":"weather"}`, wantStatus: http.StatusBadRequest, wantCode: "INVALID_INTENT"},
		{
			name:       "synthesis failure",
			body:       `{"query":"q"}`,
			processErr: apperrors.NewSynthesisFailedError("general_audit", errors.New("gateway down")),
			wantStatus: http.StatusBadGateway,
			wantCode:   "SYNTHESIS_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.queries.err = tt.processErr

			resp, body := f.do(t, http.MethodPost, "/api/v1/query", tt.body)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantCode, errorCode(body))
			assert.Empty(t, f.results.saved)
		})
	}
}

func TestGetResult(t *testing.T) {
	f := newFixture(t, nil)
	f.results.saved["req-9"] = &models.OrchestrationResult{RequestID: "req-9", Response: "stored"}

	resp, body := f.do(t, http.MethodGet, "/api/v1/results/req-9", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "stored", body["response"])

	resp, body = f.do(t, http.MethodGet, "/api/v1/results/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "RESULT_NOT_FOUND", errorCode(body))
}

func TestGetResult_PersistenceDisabled(t *testing.T) {
	f := newFixture(t, func(d *Dependencies) { d.Results = nil })

	resp, _ := f.do(t, http.MethodGet, "/api/v1/results/req-1", "")

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestLiveSupport(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.do(t, http.MethodPost, "/api/v1/live-support", `{"meetingContext":"day 1","topic":"deviations"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ask about deviations", body["guidance"])

	resp, body = f.do(t, http.MethodPost, "/api/v1/live-support", `{"meetingContext":"day 1"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_QUERY", errorCode(body))
}

// ==========================
// Observation Tests
// ==========================

func TestCreateObservation(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.do(t, http.MethodPost, "/api/v1/observations",
		`{"company":"Acme Pharma","area":"Warehouse","finding":"Excursions","riskLevel":"critical","dueDate":"2024-07-01T00:00:00Z"}`)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	obs := body["observation"].(map[string]interface{})
	assert.Equal(t, "Critical", obs["riskLevel"])
	assert.Equal(t, models.PriorityLabelCritical, obs["priorityLabel"])
	assert.Equal(t, true, body["notification"].(map[string]interface{})["emailSent"])
	assert.Equal(t, []string{"obs-1"}, f.notifier.notified)
	require.Len(t, f.obs.created, 1)
	require.NotNil(t, f.obs.created[0].DueDate)
}

func TestCreateObservation_Invalid(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.do(t, http.MethodPost, "/api/v1/observations", `{"company":"Acme","riskLevel":"severe"}`)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "OBSERVATION_INVALID", errorCode(body))
	assert.Empty(t, f.obs.created)
}

func TestListObservations_Filters(t *testing.T) {
	tests := []struct {
		query    string
		wantCall string
		wantArg  interface{}
	}{
		{query: "?company=Acme%20Pharma", wantCall: "company", wantArg: "Acme Pharma"},
		{query: "?risk=critical,Major", wantCall: "risk", wantArg: []models.RiskLevel{models.RiskCritical, models.RiskMajor}},
		{query: "?area=lab", wantCall: "area", wantArg: "lab"},
		{query: "?overdue=true", wantCall: "overdue", wantArg: fixedNow},
		{query: "", wantCall: "open"},
	}

	for _, tt := range tests {
		t.Run(tt.wantCall, func(t *testing.T) {
			f := newFixture(t, nil)

			resp, body := f.do(t, http.MethodGet, "/api/v1/observations"+tt.query, "")

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, float64(1), body["count"])
			assert.Equal(t, tt.wantCall, f.obs.lastCall)
			if tt.wantArg != nil {
				assert.Equal(t, tt.wantArg, f.obs.lastArg)
			}
		})
	}
}

func TestListObservations_BadRisk(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.do(t, http.MethodGet, "/api/v1/observations?risk=severe", "")

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "OBSERVATION_INVALID", errorCode(body))
}

func TestObservationSummaryAndLookup(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.do(t, http.MethodGet, "/api/v1/observations/summary?company=Acme", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Acme", body["company"])
	assert.Equal(t, float64(0), body["total"])

	resp, _ = f.do(t, http.MethodGet, "/api/v1/observations/obs-1", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = f.do(t, http.MethodGet, "/api/v1/observations/obs-2", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "OBSERVATION_NOT_FOUND", errorCode(body))
}

func TestObservationReport(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		query      string
		wantFormat observations.ReportFormat
		wantText   string
	}{
		{"", observations.ReportStructured, "## 🔥 Critical Observations"},
		{"?format=summary&company=Acme", observations.ReportSummary, "- Open: 1"},
		{"?format=DETAILED", observations.ReportDetailed, "### Observation ID: obs-1"},
	}

	for _, tt := range tests {
		t.Run(string(tt.wantFormat), func(t *testing.T) {
			resp, body := f.getRaw(t, "/api/v1/observations/report"+tt.query)

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Contains(t, resp.Header.Get("Content-Type"), "text/markdown")
			assert.Equal(t, tt.wantFormat, f.obs.lastArg)
			assert.Contains(t, body, tt.wantText)
		})
	}

	resp, body := f.do(t, http.MethodGet, "/api/v1/observations/report?format=pdf", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "OBSERVATION_INVALID", errorCode(body))
}

func TestExportObservations(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.getRaw(t, "/api/v1/observations/export?format=csv")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "audit_observations.csv")
	lines := strings.Split(strings.TrimSpace(body), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ID,Company,Area,Finding"))
	assert.True(t, strings.HasPrefix(lines[1], "obs-1,Acme Pharma,QC Lab"))

	resp, body = f.getRaw(t, "/api/v1/observations/export")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Contains(t, body, `"id":"obs-1"`)

	resp, _ = f.getRaw(t, "/api/v1/observations/export?format=xml")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestObservationUpdates(t *testing.T) {
	f := newFixture(t, nil)

	resp, _ := f.do(t, http.MethodPut, "/api/v1/observations/obs-1/status", `{"status":"closed"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.ObservationClosed, f.obs.lastArg)

	resp, _ = f.do(t, http.MethodPost, "/api/v1/observations/obs-1/actions", `{"action":"Retrain staff"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Retrain staff", f.obs.lastArg)

	f.obs.statusErr = apperrors.NewObservationNotFoundError("obs-1")
	resp, _ = f.do(t, http.MethodPut, "/api/v1/observations/obs-1/status", `{"status":"closed"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// ==========================
// Health and Auth Tests
// ==========================

func TestHealthAndReady(t *testing.T) {
	f := newFixture(t, func(d *Dependencies) {
		d.Checks = map[string]ReadinessCheck{
			"postgres": func(context.Context) error { return nil },
			"zeebe":    func(context.Context) error { return errors.New("unavailable") },
		}
	})

	resp, body := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])

	resp, body = f.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "not_ready", body["status"])
	checks := body["checks"].(map[string]interface{})
	assert.Equal(t, "ok", checks["postgres"])
	assert.Equal(t, "unavailable", checks["zeebe"])

	resp, _ = f.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthMiddleware(t *testing.T) {
	f := newFixture(t, func(d *Dependencies) { d.Validator = fakeValidator{} })

	resp, _ := f.do(t, http.MethodPost, "/api/v1/query", `{"query":"q"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/v1/query", `{"query":"q"}`, "Authorization", "Bearer bad")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/v1/query", `{"query":"q"}`, "Authorization", "Bearer good")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// ==========================
// Checklist Tests
// ==========================

func TestGenerateChecklist(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.do(t, http.MethodPost, "/api/v1/checklists",
		`{"company":"Acme Pharma","auditType":"supplier","productModality":"sterile_manufacturing","customAreas":["Cold Chain"]}`)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Acme Pharma", body["company"])
	assert.Equal(t, float64(12), body["totalItems"])
	assert.Equal(t, map[string]interface{}{"Critical": float64(7), "Standard": float64(5), "Watchlist": float64(0)},
		body["priorityBreakdown"])
	items, _ := body["items"].([]interface{})
	require.Len(t, items, 12)
	first, _ := items[0].(map[string]interface{})
	assert.Equal(t, models.PriorityLabelCritical, first["priority"])
	assert.Contains(t, body["checklist"], "# Audit Checklist - Acme Pharma")
}

func TestGenerateChecklist_Markdown(t *testing.T) {
	f := newFixture(t, nil)

	resp, err := http.Post(f.server.URL+"/api/v1/checklists?format=markdown", "application/json",
		strings.NewReader(`{"company":"Acme Pharma","auditType":"internal"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/markdown; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.True(t, strings.HasPrefix(string(raw), "# Audit Checklist - Acme Pharma"))
	assert.Contains(t, string(raw), "## Evidence Requirements")
}

func TestGenerateChecklist_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing audit type", `{"company":"Acme Pharma"}`},
		{"blank company", `{"company":"   ","auditType":"supplier"}`},
		{"risk factors not a list", `{"company":"Acme","auditType":"supplier","riskFactors":"sterility"}`},
		{"not json", `checklist please`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			resp, body := f.do(t, http.MethodPost, "/api/v1/checklists", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "INVALID_QUERY", errorCode(body))
		})
	}
}
