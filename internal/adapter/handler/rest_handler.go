package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/hive-corporation/darkguard/internal/adapter/exporter"
	"github.com/hive-corporation/darkguard/internal/core/domain"
	"github.com/hive-corporation/darkguard/internal/core/engine"
	"github.com/hive-corporation/darkguard/internal/core/ports"
)

const defaultListLimit = 100

// Repositories groups the read-side stores the API serves from. In
// practice all fields point at the same store.
type Repositories struct {
	Orgs         ports.OrganizationRepository
	Targets      ports.TargetRepository
	Connectors   ports.ConnectorRepository
	Findings     ports.FindingRepository
	Rules        ports.AlertRuleRepository
	Integrations ports.IntegrationRepository
	Dispatches   ports.DispatchRepository
	Audit        ports.AuditRepository
}

type RestHandler struct {
	repos       Repositories
	runner      *engine.Runner
	tester      *engine.IntegrationTester
	cefExporter *exporter.CEFExporter
}

func NewRestHandler(repos Repositories, runner *engine.Runner, tester *engine.IntegrationTester) *RestHandler {
	return &RestHandler{
		repos:       repos,
		runner:      runner,
		tester:      tester,
		cefExporter: exporter.NewCEFExporter(repos.Findings),
	}
}

// Router builds the full API surface. Everything under /api/v1 sits
// behind the bearer-token middleware and an explicit X-Org-Id scope.
func (h *RestHandler) Router(apiToken string) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(AuthMiddleware(apiToken))
	api.HandleFunc("/orgs", h.ListOrganizations).Methods(http.MethodGet)
	api.HandleFunc("/metrics/summary", h.MetricsSummary).Methods(http.MethodGet)
	api.HandleFunc("/targets", h.ListTargets).Methods(http.MethodGet)
	api.HandleFunc("/connectors", h.ListConnectors).Methods(http.MethodGet)
	api.HandleFunc("/connectors/{id}/run", h.RunConnector).Methods(http.MethodPost)
	api.HandleFunc("/findings", h.ListFindings).Methods(http.MethodGet)
	api.HandleFunc("/findings/export", h.ExportFindings).Methods(http.MethodGet)
	api.HandleFunc("/alert-rules", h.ListRules).Methods(http.MethodGet)
	api.HandleFunc("/integrations", h.ListIntegrations).Methods(http.MethodGet)
	api.HandleFunc("/integrations/{id}/test", h.TestIntegration).Methods(http.MethodPost)
	api.HandleFunc("/dispatches", h.ListDispatches).Methods(http.MethodGet)
	api.HandleFunc("/audit-log", h.ListAuditLog).Methods(http.MethodGet)
	return r
}

func (h *RestHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "darkguard-api",
	})
}

// scope validates the tenant header against the organization store and
// returns the org. Unknown or missing tenants are terminal here.
func (h *RestHandler) scope(w http.ResponseWriter, r *http.Request) (domain.Organization, bool) {
	id := orgID(r)
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing X-Org-Id header")
		return domain.Organization{}, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	org, err := h.repos.Orgs.GetOrganization(ctx, id)
	if errors.Is(err, ports.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown organization")
		return domain.Organization{}, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to resolve organization")
		return domain.Organization{}, false
	}
	return org, true
}

func (h *RestHandler) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	orgs, err := h.repos.Orgs.ListOrganizations(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list organizations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"organizations": orgs, "count": len(orgs)})
}

// MetricsSummary is the dashboard headline: live counts scoped to the
// tenant, counting only active connectors and rules.
func (h *RestHandler) MetricsSummary(w http.ResponseWriter, r *http.Request) {
	org, ok := h.scope(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	findings, err := h.repos.Findings.CountFindings(ctx, org.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count findings")
		return
	}
	connectors, err := h.repos.Connectors.CountActiveConnectors(ctx, org.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count connectors")
		return
	}
	rules, err := h.repos.Rules.CountActiveRules(ctx, org.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count alert rules")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"org_id":            org.ID,
		"total_findings":    findings,
		"active_connectors": connectors,
		"active_rules":      rules,
	})
}

func (h *RestHandler) ListTargets(w http.ResponseWriter, r *http.Request) {
	org, ok := h.scope(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	targets, err := h.repos.Targets.ListTargets(ctx, org.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list targets")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"targets": targets, "count": len(targets)})
}

func (h *RestHandler) ListConnectors(w http.ResponseWriter, r *http.Request) {
	org, ok := h.scope(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	connectors, err := h.repos.Connectors.ListConnectors(ctx, org.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list connectors")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"connectors": connectors, "count": len(connectors)})
}

// RunConnector triggers an on-demand run and waits for its result, so
// the caller sees the updated last-run status immediately.
func (h *RestHandler) RunConnector(w http.ResponseWriter, r *http.Request) {
	org, ok := h.scope(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	connector, err := h.repos.Connectors.GetConnector(ctx, org.ID, mux.Vars(r)["id"])
	if errors.Is(err, ports.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown connector")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load connector")
		return
	}

	result := h.runner.Run(ctx, connector)
	if result.Err != nil {
		var runErr *engine.RunError
		if errors.As(result.Err, &runErr) {
			writeJSON(w, http.StatusOK, map[string]any{
				"connector_id": connector.ID,
				"status":       domain.RunStatusError(runErr.Category),
			})
			return
		}
		writeError(w, http.StatusInternalServerError, "connector run failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"connector_id": connector.ID,
		"status":       domain.RunStatusStored(result.StoredCount),
		"stored":       result.StoredCount,
	})
}

func (h *RestHandler) ListFindings(w http.ResponseWriter, r *http.Request) {
	org, ok := h.scope(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	findings, err := h.repos.Findings.ListFindings(ctx, org.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list findings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"findings": findings, "count": len(findings)})
}

// ExportFindings serves the tenant's findings as a CEF feed for SIEM
// ingestion. The since parameter is a duration like "24h" or "7h30m".
func (h *RestHandler) ExportFindings(w http.ResponseWriter, r *http.Request) {
	org, ok := h.scope(w, r)
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	if format != "" && format != "cef" {
		writeError(w, http.StatusBadRequest, "unsupported format (use 'cef')")
		return
	}

	var sinceTime time.Time
	if since := r.URL.Query().Get("since"); since != "" {
		duration, err := time.ParseDuration(since)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid 'since' parameter (use format like '24h')")
			return
		}
		sinceTime = time.Now().Add(-duration)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	data, err := h.cefExporter.Export(ctx, org.ID, sinceTime)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to export findings")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(data)); err != nil {
		log.Printf("Error writing CEF feed response: %v", err)
	}
}

func (h *RestHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	org, ok := h.scope(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rules, err := h.repos.Rules.ListRules(ctx, org.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list alert rules")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alert_rules": rules, "count": len(rules)})
}

func (h *RestHandler) ListIntegrations(w http.ResponseWriter, r *http.Request) {
	org, ok := h.scope(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	integrations, err := h.repos.Integrations.ListIntegrations(ctx, org.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list integrations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"integrations": integrations, "count": len(integrations)})
}

func (h *RestHandler) TestIntegration(w http.ResponseWriter, r *http.Request) {
	org, ok := h.scope(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	status, err := h.tester.Test(ctx, org.ID, mux.Vars(r)["id"], actorID(r))
	if errors.Is(err, ports.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown integration")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "integration test failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": status})
}

func (h *RestHandler) ListDispatches(w http.ResponseWriter, r *http.Request) {
	org, ok := h.scope(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	attempts, err := h.repos.Dispatches.ListAttempts(ctx, org.ID, listLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list dispatch attempts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dispatches": attempts, "count": len(attempts)})
}

func (h *RestHandler) ListAuditLog(w http.ResponseWriter, r *http.Request) {
	org, ok := h.scope(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	entries, err := h.repos.Audit.ListAuditLog(ctx, org.ID, listLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list audit log")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

func listLimit(r *http.Request) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return defaultListLimit
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
