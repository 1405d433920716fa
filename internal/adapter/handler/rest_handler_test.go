package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hive-corporation/darkguard/internal/adapter/channel"
	"github.com/hive-corporation/darkguard/internal/adapter/repository"
	"github.com/hive-corporation/darkguard/internal/adapter/source"
	"github.com/hive-corporation/darkguard/internal/core/domain"
	"github.com/hive-corporation/darkguard/internal/core/engine"
)

const testToken = "test-token"

func newTestAPI(t *testing.T) (*repository.MemoryStore, http.Handler) {
	t.Helper()

	store := repository.NewMemoryStore()
	store.AddOrganization(domain.Organization{ID: "org-1", Name: "Sentrax", IsActive: true})
	store.AddTarget(domain.Target{OrgID: "org-1", Type: domain.TargetEmail, Value: "admin@sentrax.io"})
	store.AddConnector(domain.Connector{ID: "conn-demo", OrgID: "org-1", Name: "Demo", Type: "demo", IsActive: true})
	store.AddConnector(domain.Connector{ID: "conn-off", OrgID: "org-1", Name: "Disabled", Type: "demo", IsActive: false})
	store.AddRule(domain.AlertRule{ID: "rule-1", OrgID: "org-1", Name: "All High", IsActive: true,
		Filters: domain.RuleFilters{Severities: []string{"high"}}})

	channels := channel.DefaultRegistry(channel.SMTPConfig{}, channel.TwilioConfig{})
	retry := engine.RetryConfig{MaxAttempts: 1, CallTimeout: 5 * time.Second}
	audit := engine.NewAuditRecorder(store)
	dispatcher := engine.NewDispatcher(store, store, store, channels, audit, nil, retry)
	matcher := engine.NewMatcher(store, dispatcher)
	runner := engine.NewRunner(store, store, store, store, source.DefaultRegistry(), matcher, audit, nil, retry)
	tester := engine.NewIntegrationTester(store, channels, audit)

	h := NewRestHandler(Repositories{
		Orgs: store, Targets: store, Connectors: store, Findings: store,
		Rules: store, Integrations: store, Dispatches: store, Audit: store,
	}, runner, tester)
	return store, h.Router(testToken)
}

func doRequest(t *testing.T, router http.Handler, method, path, orgID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	if orgID != "" {
		req.Header.Set("X-Org-Id", orgID)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	return body
}

func TestAuthRequired(t *testing.T) {
	_, router := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/findings", nil)
	req.Header.Set("X-Org-Id", "org-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}

	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong token, got %d", rec.Code)
	}
}

func TestHealthSkipsAuth(t *testing.T) {
	_, router := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestOrgScopeEnforced(t *testing.T) {
	_, router := newTestAPI(t)

	if rec := doRequest(t, router, http.MethodGet, "/api/v1/findings", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("missing org header must 400, got %d", rec.Code)
	}
	if rec := doRequest(t, router, http.MethodGet, "/api/v1/findings", "org-unknown"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown org must 404, got %d", rec.Code)
	}
}

func TestMetricsSummaryCountsActiveOnly(t *testing.T) {
	_, router := newTestAPI(t)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/metrics/summary", "org-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["active_connectors"] != float64(1) {
		t.Errorf("expected 1 active connector, got %v", body["active_connectors"])
	}
	if body["active_rules"] != float64(1) {
		t.Errorf("expected 1 active rule, got %v", body["active_rules"])
	}
	if body["total_findings"] != float64(0) {
		t.Errorf("expected 0 findings, got %v", body["total_findings"])
	}
}

func TestRunConnectorEndToEnd(t *testing.T) {
	store, router := newTestAPI(t)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/connectors/conn-demo/run", "org-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["status"] != "stored:1" {
		t.Errorf("expected stored:1, got %v", body["status"])
	}

	rec = doRequest(t, router, http.MethodGet, "/api/v1/findings", "org-1")
	if body := decodeBody(t, rec); body["count"] != float64(1) {
		t.Errorf("expected 1 finding visible, got %v", body["count"])
	}

	connector, _ := store.GetConnector(context.Background(), "org-1", "conn-demo")
	if connector.LastRunStatus != "stored:1" {
		t.Errorf("run status not persisted: %q", connector.LastRunStatus)
	}
}

func TestRunConnectorUnknownID(t *testing.T) {
	_, router := newTestAPI(t)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/connectors/missing/run", "org-1")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestTestIntegrationEndpoint(t *testing.T) {
	store, router := newTestAPI(t)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	store.AddIntegration(domain.Integration{
		ID:       "int-1",
		OrgID:    "org-1",
		Name:     "Ops Webhook",
		Type:     "webhook",
		Config:   map[string]string{"url": upstream.URL},
		IsActive: true,
	})

	rec := doRequest(t, router, http.MethodPost, "/api/v1/integrations/int-1/test", "org-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["status"] != domain.TestStatusSuccess {
		t.Errorf("expected success, got %v", body["status"])
	}
}

func TestExportFindingsCEF(t *testing.T) {
	_, router := newTestAPI(t)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/connectors/conn-demo/run", "org-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("run failed: %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, router, http.MethodGet, "/api/v1/findings/export?format=cef&since=1h", "org-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("unexpected content type %q", ct)
	}
	if body := rec.Body.String(); !strings.HasPrefix(body, "CEF:0|DarkGuard|ExposureMonitor|") {
		t.Errorf("expected CEF feed, got %q", body)
	}

	if rec := doRequest(t, router, http.MethodGet, "/api/v1/findings/export?format=stix", "org-1"); rec.Code != http.StatusBadRequest {
		t.Errorf("unsupported format must 400, got %d", rec.Code)
	}
	if rec := doRequest(t, router, http.MethodGet, "/api/v1/findings/export?since=soon", "org-1"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad since must 400, got %d", rec.Code)
	}
}

func TestListEndpoints(t *testing.T) {
	_, router := newTestAPI(t)

	for _, path := range []string{
		"/api/v1/targets",
		"/api/v1/connectors",
		"/api/v1/alert-rules",
		"/api/v1/integrations",
		"/api/v1/dispatches",
		"/api/v1/audit-log",
		"/api/v1/orgs",
	} {
		rec := doRequest(t, router, http.MethodGet, path, "org-1")
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}
