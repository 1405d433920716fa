package engine

import (
	"context"
	"testing"

	"github.com/hive-corporation/darkguard/internal/adapter/repository"
	"github.com/hive-corporation/darkguard/internal/core/domain"
)

func TestIntegrationTester(t *testing.T) {
	tests := []struct {
		name     string
		channel  *stubChannel
		expected string
	}{
		{"healthy integration succeeds", &stubChannel{typ: "jira"}, domain.TestStatusSuccess},
		{"failing integration records failed", &stubChannel{typ: "jira", failures: 1}, domain.TestStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := repository.NewMemoryStore()
			seedOrg(store, "org-1", true)
			store.AddIntegration(domain.Integration{
				ID:       "int-1",
				OrgID:    "org-1",
				Name:     "Eng Jira",
				Type:     "jira",
				IsActive: true,
			})

			tester := NewIntegrationTester(store, stubChannelRegistry{"jira": tt.channel}, NewAuditRecorder(store))

			status, err := tester.Test(context.Background(), "org-1", "int-1", "user-7")
			if err != nil {
				t.Fatalf("test failed: %v", err)
			}
			if status != tt.expected {
				t.Errorf("expected status %q, got %q", tt.expected, status)
			}

			integration, _ := store.GetIntegration(context.Background(), "org-1", "int-1")
			if integration.LastTestStatus != tt.expected {
				t.Errorf("status not persisted: %q", integration.LastTestStatus)
			}

			entries := auditActions(store, "org-1", domain.ActionTestIntegration)
			if len(entries) != 1 || entries[0].ActorID != "user-7" {
				t.Errorf("expected one audit entry by user-7, got %+v", entries)
			}
		})
	}
}

func TestIntegrationTesterUnknownChannelType(t *testing.T) {
	store := repository.NewMemoryStore()
	seedOrg(store, "org-1", true)
	store.AddIntegration(domain.Integration{
		ID:       "int-1",
		OrgID:    "org-1",
		Name:     "Mystery",
		Type:     "nonexistent",
		IsActive: true,
	})

	tester := NewIntegrationTester(store, stubChannelRegistry{}, NewAuditRecorder(store))

	status, err := tester.Test(context.Background(), "org-1", "int-1", "user-7")
	if err != nil {
		t.Fatalf("test errored: %v", err)
	}
	if status != domain.TestStatusFailed {
		t.Errorf("unknown channel type must fail, got %q", status)
	}
}
