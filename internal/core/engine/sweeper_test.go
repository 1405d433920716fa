package engine

import (
	"context"
	"testing"
	"time"

	"github.com/hive-corporation/darkguard/internal/adapter/repository"
	"github.com/hive-corporation/darkguard/internal/core/domain"
)

func newSweeperEnv(channels stubChannelRegistry) (*repository.MemoryStore, *Sweeper, *Dispatcher) {
	store := repository.NewMemoryStore()
	audit := NewAuditRecorder(store)
	dispatcher := NewDispatcher(store, store, store, channels, audit, nil, testRetryConfig())
	sweeper := NewSweeper(store, store, store, dispatcher, audit, time.Minute)
	return store, sweeper, dispatcher
}

func ingestOne(t *testing.T, store *repository.MemoryStore, orgID string) domain.Finding {
	t.Helper()
	store.AddConnector(domain.Connector{ID: "conn-1", OrgID: orgID, Name: "Demo", Type: "demo", IsActive: true})
	stored, err := store.IngestRun(context.Background(), orgID, "conn-1", []domain.Finding{{
		Source:        "demo",
		Confidence:    90,
		MatchedEntity: "admin@sentrax.io",
		ExposureTypes: []string{"password"},
		RawSnippet:    "demo exposure",
		Severity:      domain.SeverityHigh,
		DedupeHash:    domain.DedupeHash(orgID, "demo", "admin@sentrax.io", "demo exposure"),
	}})
	if err != nil || len(stored) != 1 {
		t.Fatalf("seeding finding failed: %v", err)
	}
	return stored[0]
}

func TestSweepDispatchesDueRule(t *testing.T) {
	webhook := &stubChannel{typ: "webhook"}
	store, sweeper, _ := newSweeperEnv(stubChannelRegistry{"webhook": webhook})
	seedOrg(store, "org-1", true)

	rule := webhookRule("org-1")
	rule.Schedule = "* * * * *"
	rule.CreatedAt = time.Now().UTC().Add(-time.Hour)
	store.AddRule(rule)

	ingestOne(t, store, "org-1")

	now := time.Now().UTC()
	sweeper.Sweep(context.Background(), now)

	if len(webhook.sentPayloads()) != 1 {
		t.Fatalf("expected one sweep delivery, got %d", len(webhook.sentPayloads()))
	}

	rules, _ := store.ListRules(context.Background(), "org-1")
	if !rules[0].LastSweepAt.Equal(now) {
		t.Errorf("sweep cursor not advanced: %v", rules[0].LastSweepAt)
	}
}

func TestSweepDoesNotRedeliverClaimedMatch(t *testing.T) {
	webhook := &stubChannel{typ: "webhook"}
	store, sweeper, dispatcher := newSweeperEnv(stubChannelRegistry{"webhook": webhook})
	seedOrg(store, "org-1", true)

	rule := webhookRule("org-1")
	rule.Schedule = "* * * * *"
	rule.CreatedAt = time.Now().UTC().Add(-time.Hour)
	store.AddRule(rule)

	f := ingestOne(t, store, "org-1")

	// Event path dispatches first; the sweep then sees the same pair.
	if _, err := dispatcher.DispatchMatch(context.Background(), f, rule); err != nil {
		t.Fatalf("event dispatch failed: %v", err)
	}
	sweeper.Sweep(context.Background(), time.Now().UTC())

	if len(webhook.sentPayloads()) != 1 {
		t.Errorf("sweep must not redeliver a claimed pair, got %d deliveries", len(webhook.sentPayloads()))
	}
}

func TestSweepSkipsRuleNotYetDue(t *testing.T) {
	webhook := &stubChannel{typ: "webhook"}
	store, sweeper, _ := newSweeperEnv(stubChannelRegistry{"webhook": webhook})
	seedOrg(store, "org-1", true)

	rule := webhookRule("org-1")
	rule.Schedule = "0 0 1 1 *" // yearly
	rule.CreatedAt = time.Now().UTC()
	store.AddRule(rule)

	ingestOne(t, store, "org-1")
	sweeper.Sweep(context.Background(), time.Now().UTC())

	if len(webhook.sentPayloads()) != 0 {
		t.Errorf("rule not due must not dispatch, got %d deliveries", len(webhook.sentPayloads()))
	}
}

func TestSweepAuditsInvalidScheduleOnce(t *testing.T) {
	store, sweeper, _ := newSweeperEnv(stubChannelRegistry{})
	seedOrg(store, "org-1", true)

	rule := webhookRule("org-1")
	rule.Schedule = "not a cron line"
	store.AddRule(rule)

	sweeper.Sweep(context.Background(), time.Now().UTC())
	sweeper.Sweep(context.Background(), time.Now().UTC())

	if entries := auditActions(store, "org-1", domain.ActionInvalidSchedule); len(entries) != 1 {
		t.Errorf("invalid schedule must audit exactly once, got %d", len(entries))
	}
}

func TestSweepSkipsInactiveOrganization(t *testing.T) {
	webhook := &stubChannel{typ: "webhook"}
	store, sweeper, _ := newSweeperEnv(stubChannelRegistry{"webhook": webhook})
	seedOrg(store, "org-1", false)

	rule := webhookRule("org-1")
	rule.Schedule = "* * * * *"
	rule.CreatedAt = time.Now().UTC().Add(-time.Hour)
	store.AddRule(rule)

	ingestOne(t, store, "org-1")
	sweeper.Sweep(context.Background(), time.Now().UTC())

	if len(webhook.sentPayloads()) != 0 {
		t.Errorf("inactive org must not sweep, got %d deliveries", len(webhook.sentPayloads()))
	}
}
