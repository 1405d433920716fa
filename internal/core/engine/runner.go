package engine

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/hive-corporation/darkguard/internal/core/domain"
	"github.com/hive-corporation/darkguard/internal/core/ports"
)

// RetryConfig bounds the exponential backoff applied to external
// calls (source fetches and channel sends). CallTimeout caps each
// individual attempt so a hung external call becomes a retryable
// failure instead of blocking a worker.
type RetryConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	CallTimeout     time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		CallTimeout:     30 * time.Second,
	}
}

// RunResult summarizes one connector run.
type RunResult struct {
	StoredCount int
	Err         error
}

// Runner executes connector runs: it fetches raw results through the
// connector's source adapter, normalizes them into candidate findings,
// submits them to the deduplicating store and hands accepted findings
// to the matcher. Each run updates the connector's last-run status
// exactly once, atomically with the findings it stored.
type Runner struct {
	orgs       ports.OrganizationRepository
	targets    ports.TargetRepository
	connectors ports.ConnectorRepository
	findings   ports.FindingRepository
	sources    ports.SourceRegistry
	matcher    *Matcher
	audit      *AuditRecorder
	bus        ports.EventPublisher
	retry      RetryConfig
}

func NewRunner(
	orgs ports.OrganizationRepository,
	targets ports.TargetRepository,
	connectors ports.ConnectorRepository,
	findings ports.FindingRepository,
	sources ports.SourceRegistry,
	matcher *Matcher,
	audit *AuditRecorder,
	bus ports.EventPublisher,
	retry RetryConfig,
) *Runner {
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	return &Runner{
		orgs:       orgs,
		targets:    targets,
		connectors: connectors,
		findings:   findings,
		sources:    sources,
		matcher:    matcher,
		audit:      audit,
		bus:        bus,
		retry:      retry,
	}
}

// RunAll runs every active connector of every active organization.
// Runs are concurrent per connector and independent: one failing
// connector never blocks the others.
func (r *Runner) RunAll(ctx context.Context) {
	connectors, err := r.connectors.ListRunnableConnectors(ctx)
	if err != nil {
		log.Printf("❌ listing runnable connectors: %v", err)
		return
	}

	var wg sync.WaitGroup
	for _, c := range connectors {
		wg.Add(1)
		go func(c domain.Connector) {
			defer wg.Done()
			r.Run(ctx, c)
		}(c)
	}
	wg.Wait()
}

// Run executes a single connector run and returns its result.
func (r *Runner) Run(ctx context.Context, c domain.Connector) RunResult {
	start := time.Now()

	org, err := r.orgs.GetOrganization(ctx, c.OrgID)
	if err != nil {
		log.Printf("❌ connector %s: organization lookup: %v", c.Name, err)
		return RunResult{Err: err}
	}
	if !org.IsActive {
		// Deactivated tenants stop ingesting without touching history.
		return RunResult{}
	}

	adapter, ok := r.sources.Get(c.Type)
	if !ok {
		return r.fail(ctx, c, domain.ErrorConfig, start, "unknown connector type")
	}

	targets, err := r.targets.ListTargets(ctx, c.OrgID)
	if err != nil {
		return r.fail(ctx, c, domain.ErrorTransient, start, "target lookup failed")
	}

	raws, err := r.fetchWithRetry(ctx, adapter, ports.FetchRequest{
		OrgID:   c.OrgID,
		Targets: targets,
		Config:  c.Config,
		Secrets: c.Secrets,
		Since:   start.Add(-24 * time.Hour),
	})
	if err != nil {
		log.Printf("❌ connector %s fetch exhausted retries: %v", c.Name, err)
		return r.fail(ctx, c, domain.ErrorTransient, start, "fetch failed after retries")
	}

	candidates := r.normalize(ctx, c, raws)

	accepted, err := r.findings.IngestRun(ctx, c.OrgID, c.ID, candidates)
	if err != nil {
		log.Printf("❌ connector %s ingest: %v", c.Name, err)
		return r.fail(ctx, c, domain.ErrorTransient, start, "ingest failed")
	}

	status := domain.RunStatusStored(len(accepted))
	recordRun(c.Type, "ok", time.Since(start))
	recordIngested(c.Type, len(accepted), len(candidates)-len(accepted))
	r.audit.System(ctx, c.OrgID, domain.ActionRunConnector, map[string]any{
		"connector": c.Name,
		"status":    status,
	})

	for _, f := range accepted {
		r.audit.System(ctx, c.OrgID, domain.ActionCreateFinding, map[string]any{
			"finding_id":     f.ID,
			"source":         f.Source,
			"matched_entity": f.MatchedEntity,
			"severity":       string(f.Severity),
		})
		if r.bus != nil {
			if err := r.bus.Publish("darkguard.finding.created", f); err != nil {
				log.Printf("⚠️  finding event publish failed: %v", err)
			}
		}
		if r.matcher != nil {
			if err := r.matcher.OnFinding(ctx, f); err != nil {
				log.Printf("⚠️  matching finding %s: %v", f.ID, err)
			}
		}
	}

	return RunResult{StoredCount: len(accepted)}
}

// fail marks the run failed with a classified status string, audits the
// run once and never exposes raw source error detail.
func (r *Runner) fail(ctx context.Context, c domain.Connector, category domain.ErrorCategory, start time.Time, reason string) RunResult {
	status := domain.RunStatusError(category)
	if err := r.connectors.UpdateRunStatus(ctx, c.OrgID, c.ID, status); err != nil {
		log.Printf("❌ connector %s status update: %v", c.Name, err)
	}
	recordRun(c.Type, status, time.Since(start))
	r.audit.System(ctx, c.OrgID, domain.ActionRunConnector, map[string]any{
		"connector": c.Name,
		"status":    status,
		"reason":    reason,
	})
	return RunResult{Err: &RunError{Category: category, Reason: reason}}
}

// RunError is the classified failure of a connector run.
type RunError struct {
	Category domain.ErrorCategory
	Reason   string
}

func (e *RunError) Error() string {
	return "connector run failed: " + string(e.Category) + ": " + e.Reason
}

func (r *Runner) fetchWithRetry(ctx context.Context, adapter ports.SourceAdapter, req ports.FetchRequest) ([]ports.RawResult, error) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = r.retry.InitialInterval
	expo.MaxInterval = r.retry.MaxInterval
	expo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(r.retry.MaxAttempts-1)), ctx)

	var raws []ports.RawResult
	operation := func() error {
		callCtx, cancel := context.WithTimeout(ctx, r.retry.CallTimeout)
		defer cancel()

		var err error
		raws, err = adapter.Fetch(callCtx, req)
		return err
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return raws, nil
}

// normalize maps raw adapter results into candidate findings. A
// malformed record is dropped and audited; the run continues.
func (r *Runner) normalize(ctx context.Context, c domain.Connector, raws []ports.RawResult) []domain.Finding {
	candidates := make([]domain.Finding, 0, len(raws))
	for _, raw := range raws {
		entity := strings.TrimSpace(raw.MatchedEntity)
		snippet := domain.SanitizeSnippet(raw.RawSnippet)
		if entity == "" || snippet == "" {
			r.audit.System(ctx, c.OrgID, domain.ActionDropRecord, map[string]any{
				"connector": c.Name,
				"reason":    domain.RunStatusError(domain.ErrorData),
			})
			continue
		}

		tags := make([]string, 0, len(raw.ExposureTypes))
		for _, t := range raw.ExposureTypes {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
				tags = append(tags, t)
			}
		}

		severity := domain.ComputeSeverity(tags)
		if hint, ok := parseSeverity(raw.SeverityHint); ok && severityRank(hint) > severityRank(severity) {
			severity = hint
		}

		candidates = append(candidates, domain.Finding{
			OrgID:         c.OrgID,
			Source:        c.Type,
			Confidence:    domain.NormalizeConfidence(raw.Confidence),
			MatchedEntity: entity,
			ExposureTypes: tags,
			RawSnippet:    snippet,
			Severity:      severity,
			DedupeHash:    domain.DedupeHash(c.OrgID, c.Type, entity, raw.RawSnippet),
			Metadata:      raw.Metadata,
		})
	}
	return candidates
}

func parseSeverity(s string) (domain.Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return domain.SeverityLow, true
	case "medium":
		return domain.SeverityMedium, true
	case "high":
		return domain.SeverityHigh, true
	default:
		return "", false
	}
}

func severityRank(s domain.Severity) int {
	switch s {
	case domain.SeverityHigh:
		return 3
	case domain.SeverityMedium:
		return 2
	default:
		return 1
	}
}
