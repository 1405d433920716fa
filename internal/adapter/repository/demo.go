package repository

import (
	"time"

	"github.com/hive-corporation/darkguard/internal/core/domain"
)

// SeedDemo loads a self-contained tenant so the stack can be exercised
// without real source credentials. The demo connector fabricates
// findings for the seeded targets; the rule alerts on high-severity
// credential exposures.
func SeedDemo(store *MemoryStore) {
	now := time.Now().UTC()

	store.AddOrganization(domain.Organization{
		ID:        "org-sentrax",
		Name:      "Sentrax",
		IsActive:  true,
		CreatedAt: now,
	})

	store.AddTarget(domain.Target{
		OrgID: "org-sentrax",
		Type:  domain.TargetEmail,
		Value: "admin@sentrax.io",
	})
	store.AddTarget(domain.Target{
		OrgID: "org-sentrax",
		Type:  domain.TargetDomain,
		Value: "sentrax.io",
	})

	store.AddConnector(domain.Connector{
		ID:       "conn-demo",
		OrgID:    "org-sentrax",
		Name:     "Demo Feed",
		Type:     "demo",
		IsActive: true,
	})

	store.AddRule(domain.AlertRule{
		OrgID:    "org-sentrax",
		Name:     "Critical Credential Exposure",
		IsActive: true,
		Filters: domain.RuleFilters{
			Severities: []string{"high"},
		},
		RedactionPolicy: domain.RedactionPolicy{
			MaskFields: map[string]string{"raw_snippet": domain.MaskLast3},
		},
		Recipients: domain.Recipients{
			Webhooks: []string{"http://localhost:9099/alerts"},
		},
		Schedule: "*/5 * * * *",
	})

	store.AddIntegration(domain.Integration{
		OrgID:    "org-sentrax",
		Name:     "Ops Webhook",
		Type:     "webhook",
		Config:   map[string]string{"url": "http://localhost:9099/integration"},
		IsActive: true,
	})
}
