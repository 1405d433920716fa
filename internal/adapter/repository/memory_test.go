package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hive-corporation/darkguard/internal/core/domain"
	"github.com/hive-corporation/darkguard/internal/core/ports"
)

func seedStore() *MemoryStore {
	store := NewMemoryStore()
	store.AddOrganization(domain.Organization{ID: "org-1", Name: "Sentrax", IsActive: true})
	store.AddConnector(domain.Connector{ID: "conn-1", OrgID: "org-1", Name: "HIBP", Type: "hibp", IsActive: true})
	return store
}

func candidate(orgID, entity, snippet string) domain.Finding {
	return domain.Finding{
		Source:        "hibp",
		Confidence:    90,
		MatchedEntity: entity,
		ExposureTypes: []string{"password"},
		RawSnippet:    snippet,
		Severity:      domain.SeverityHigh,
		DedupeHash:    domain.DedupeHash(orgID, "hibp", entity, snippet),
	}
}

func TestIngestRunDeduplicates(t *testing.T) {
	store := seedStore()
	ctx := context.Background()

	stored, err := store.IngestRun(ctx, "org-1", "conn-1", []domain.Finding{
		candidate("org-1", "admin@sentrax.io", "breach one"),
		candidate("org-1", "admin@sentrax.io", "breach one"), // duplicate in the same batch
		candidate("org-1", "admin@sentrax.io", "breach two"),
	})
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 accepted findings, got %d", len(stored))
	}
	for _, f := range stored {
		if f.ID == "" || f.CreatedAt.IsZero() {
			t.Errorf("accepted finding missing server fields: %+v", f)
		}
	}

	connector, _ := store.GetConnector(ctx, "org-1", "conn-1")
	if connector.LastRunStatus != "stored:2" {
		t.Errorf("expected stored:2, got %q", connector.LastRunStatus)
	}

	// A later run observing the same exposures stores nothing.
	stored, _ = store.IngestRun(ctx, "org-1", "conn-1", []domain.Finding{
		candidate("org-1", "admin@sentrax.io", "breach one"),
	})
	if len(stored) != 0 {
		t.Errorf("duplicate across runs must be dropped, got %d", len(stored))
	}
	connector, _ = store.GetConnector(ctx, "org-1", "conn-1")
	if connector.LastRunStatus != "stored:0" {
		t.Errorf("expected stored:0, got %q", connector.LastRunStatus)
	}
}

func TestIngestRunIsTenantScoped(t *testing.T) {
	store := seedStore()
	store.AddOrganization(domain.Organization{ID: "org-2", Name: "Other", IsActive: true})
	store.AddConnector(domain.Connector{ID: "conn-2", OrgID: "org-2", Name: "HIBP", Type: "hibp", IsActive: true})

	ctx := context.Background()
	store.IngestRun(ctx, "org-1", "conn-1", []domain.Finding{candidate("org-1", "admin@sentrax.io", "breach")})
	store.IngestRun(ctx, "org-2", "conn-2", []domain.Finding{candidate("org-2", "admin@sentrax.io", "breach")})

	// The same exposure observed by two tenants yields two findings.
	n1, _ := store.CountFindings(ctx, "org-1")
	n2, _ := store.CountFindings(ctx, "org-2")
	if n1 != 1 || n2 != 1 {
		t.Errorf("expected one finding per org, got %d and %d", n1, n2)
	}

	list1, _ := store.ListFindings(ctx, "org-1")
	if list1[0].OrgID != "org-1" {
		t.Errorf("cross-tenant row leaked: %+v", list1[0])
	}
}

func TestFindingsSince(t *testing.T) {
	store := seedStore()
	ctx := context.Background()

	before := time.Now().UTC().Add(-time.Second)
	store.IngestRun(ctx, "org-1", "conn-1", []domain.Finding{candidate("org-1", "a@b.io", "one")})

	since, _ := store.FindingsSince(ctx, "org-1", before, 10)
	if len(since) != 1 {
		t.Errorf("expected finding after cursor, got %d", len(since))
	}

	since, _ = store.FindingsSince(ctx, "org-1", time.Now().UTC().Add(time.Second), 10)
	if len(since) != 0 {
		t.Errorf("future cursor must return nothing, got %d", len(since))
	}
}

func TestClaimDispatch(t *testing.T) {
	store := seedStore()
	ctx := context.Background()

	claimed, err := store.ClaimDispatch(ctx, "org-1", "f-1", "rule-1")
	if err != nil || !claimed {
		t.Fatalf("first claim must succeed, got %v / %v", claimed, err)
	}
	claimed, _ = store.ClaimDispatch(ctx, "org-1", "f-1", "rule-1")
	if claimed {
		t.Error("second claim of the same pair must fail")
	}

	// Different rule on the same finding is a distinct claim.
	claimed, _ = store.ClaimDispatch(ctx, "org-1", "f-1", "rule-2")
	if !claimed {
		t.Error("distinct pair must be claimable")
	}
}

func TestClaimDispatchConcurrent(t *testing.T) {
	store := seedStore()
	ctx := context.Background()

	// Event path and sweep path can race on the same pair; exactly one
	// caller may win the claim.
	const claimers = 32
	var wg sync.WaitGroup
	var wins int64
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := store.ClaimDispatch(ctx, "org-1", "f-race", "rule-1")
			if err != nil {
				t.Errorf("claim errored: %v", err)
				return
			}
			if claimed {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("expected exactly one winning claim, got %d", wins)
	}
}

func TestAuditOrdering(t *testing.T) {
	store := seedStore()
	ctx := context.Background()

	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	for i, action := range []domain.AuditAction{domain.ActionRunConnector, domain.ActionCreateFinding, domain.ActionSendAlert} {
		store.Append(ctx, domain.AuditEntry{
			ID:        string(rune('a' + i)),
			OrgID:     "org-1",
			Action:    action,
			CreatedAt: at, // identical timestamps: seq breaks the tie
		})
	}

	entries, _ := store.ListAuditLog(ctx, "org-1", 0)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Action != domain.ActionSendAlert || entries[2].Action != domain.ActionRunConnector {
		t.Errorf("entries not in reverse insertion order: %+v", entries)
	}
}

func TestGetOrganizationNotFound(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.GetOrganization(context.Background(), "missing")
	if !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestActiveIntegrationByType(t *testing.T) {
	store := seedStore()
	store.AddIntegration(domain.Integration{ID: "int-1", OrgID: "org-1", Name: "Old Jira", Type: "jira", IsActive: false})
	store.AddIntegration(domain.Integration{ID: "int-2", OrgID: "org-1", Name: "New Jira", Type: "jira", IsActive: true})

	integration, err := store.ActiveIntegrationByType(context.Background(), "org-1", "jira")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if integration.ID != "int-2" {
		t.Errorf("expected the active integration, got %q", integration.ID)
	}

	if _, err := store.ActiveIntegrationByType(context.Background(), "org-1", "o365"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("expected ErrNotFound for absent type, got %v", err)
	}
}

func TestListRunnableConnectors(t *testing.T) {
	store := seedStore()
	store.AddOrganization(domain.Organization{ID: "org-frozen", Name: "Frozen", IsActive: false})
	store.AddConnector(domain.Connector{ID: "conn-frozen", OrgID: "org-frozen", Name: "X", Type: "demo", IsActive: true})
	store.AddConnector(domain.Connector{ID: "conn-off", OrgID: "org-1", Name: "Off", Type: "demo", IsActive: false})

	runnable, _ := store.ListRunnableConnectors(context.Background())
	if len(runnable) != 1 || runnable[0].ID != "conn-1" {
		t.Errorf("expected only conn-1 runnable, got %+v", runnable)
	}
}
