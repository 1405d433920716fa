package ports

import (
	"context"
	"errors"
	"time"

	"github.com/hive-corporation/darkguard/internal/core/domain"
)

// ErrNotFound is returned by repositories when a row does not exist
// within the requested organization scope.
var ErrNotFound = errors.New("not found")

// Every repository call is parameterized by organization id; stores
// must never return cross-tenant rows regardless of the caller.

type OrganizationRepository interface {
	GetOrganization(ctx context.Context, orgID string) (domain.Organization, error)
	ListOrganizations(ctx context.Context) ([]domain.Organization, error)
}

type TargetRepository interface {
	ListTargets(ctx context.Context, orgID string) ([]domain.Target, error)
}

type ConnectorRepository interface {
	GetConnector(ctx context.Context, orgID, connectorID string) (domain.Connector, error)
	ListConnectors(ctx context.Context, orgID string) ([]domain.Connector, error)
	// ListRunnableConnectors returns every active connector of every
	// active organization, for the scheduled ingestion pass.
	ListRunnableConnectors(ctx context.Context) ([]domain.Connector, error)
	// UpdateRunStatus records a failed run. Successful runs update
	// their status through FindingRepository.IngestRun instead.
	UpdateRunStatus(ctx context.Context, orgID, connectorID, status string) error
	CountActiveConnectors(ctx context.Context, orgID string) (int, error)
}

type FindingRepository interface {
	// IngestRun is the sole write path for findings. In one atomic
	// operation it inserts each candidate unless its dedupe hash
	// already exists for the organization, and sets the connector's
	// last-run status to stored:<N> where N is the accepted count.
	// Accepted findings come back with server-assigned id/created_at.
	IngestRun(ctx context.Context, orgID, connectorID string, candidates []domain.Finding) ([]domain.Finding, error)
	ListFindings(ctx context.Context, orgID string) ([]domain.Finding, error)
	FindingsSince(ctx context.Context, orgID string, since time.Time, limit int) ([]domain.Finding, error)
	CountFindings(ctx context.Context, orgID string) (int, error)
}

type AlertRuleRepository interface {
	ListRules(ctx context.Context, orgID string) ([]domain.AlertRule, error)
	ListActiveRules(ctx context.Context, orgID string) ([]domain.AlertRule, error)
	CountActiveRules(ctx context.Context, orgID string) (int, error)
	// MarkSwept advances the rule's batch-sweep cursor.
	MarkSwept(ctx context.Context, orgID, ruleID string, at time.Time) error
}

type IntegrationRepository interface {
	GetIntegration(ctx context.Context, orgID, integrationID string) (domain.Integration, error)
	ListIntegrations(ctx context.Context, orgID string) ([]domain.Integration, error)
	// ActiveIntegrationByType resolves the tenant's active integration
	// for a recipient channel type at dispatch time.
	ActiveIntegrationByType(ctx context.Context, orgID, integrationType string) (domain.Integration, error)
	UpdateTestStatus(ctx context.Context, orgID, integrationID, status string) error
}

type DispatchRepository interface {
	// ClaimDispatch atomically claims the (finding, rule) dispatch key.
	// It returns false when the pair was already claimed, which both
	// deduplicates re-evaluation and keeps at most one attempt in
	// flight per key under concurrent matcher invocations.
	ClaimDispatch(ctx context.Context, orgID, findingID, ruleID string) (bool, error)
	RecordAttempt(ctx context.Context, attempt domain.DispatchAttempt) error
	ListAttempts(ctx context.Context, orgID string, limit int) ([]domain.DispatchAttempt, error)
}

type AuditRepository interface {
	Append(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error)
	ListAuditLog(ctx context.Context, orgID string, limit int) ([]domain.AuditEntry, error)
}

// Store is the union of every repository port, satisfied by the
// Postgres and in-memory stores. Wiring code passes one Store; engine
// components still depend only on the ports they use.
type Store interface {
	OrganizationRepository
	TargetRepository
	ConnectorRepository
	FindingRepository
	AlertRuleRepository
	IntegrationRepository
	DispatchRepository
	AuditRepository
}
