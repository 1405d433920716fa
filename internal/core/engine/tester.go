package engine

import (
	"context"
	"log"
	"time"

	"github.com/hive-corporation/darkguard/internal/core/domain"
	"github.com/hive-corporation/darkguard/internal/core/ports"
)

// IntegrationTester runs the connectivity check behind the UI's "Test
// Connection" action and records the outcome on the integration.
type IntegrationTester struct {
	integrations ports.IntegrationRepository
	channels     ports.ChannelRegistry
	audit        *AuditRecorder
	callTimeout  time.Duration
}

func NewIntegrationTester(integrations ports.IntegrationRepository, channels ports.ChannelRegistry, audit *AuditRecorder) *IntegrationTester {
	return &IntegrationTester{
		integrations: integrations,
		channels:     channels,
		audit:        audit,
		callTimeout:  10 * time.Second,
	}
}

// Test checks connectivity of one integration, updates its last-test
// status and audits the check. The returned status is "success" or
// "failed".
func (t *IntegrationTester) Test(ctx context.Context, orgID, integrationID, actorID string) (string, error) {
	integration, err := t.integrations.GetIntegration(ctx, orgID, integrationID)
	if err != nil {
		return "", err
	}

	status := domain.TestStatusSuccess
	adapter, ok := t.channels.Get(integration.Type)
	if !ok {
		status = domain.TestStatusFailed
	} else {
		callCtx, cancel := context.WithTimeout(ctx, t.callTimeout)
		defer cancel()
		if err := adapter.Test(callCtx, ports.ChannelConfig{Config: integration.Config, Secrets: integration.Secrets}); err != nil {
			log.Printf("⚠️  integration %q test failed: %v", integration.Name, err)
			status = domain.TestStatusFailed
		}
	}

	if err := t.integrations.UpdateTestStatus(ctx, orgID, integrationID, status); err != nil {
		return "", err
	}
	t.audit.Record(ctx, orgID, domain.ActionTestIntegration, actorID, map[string]any{
		"integration": integration.Name,
		"status":      status,
	})
	return status, nil
}
