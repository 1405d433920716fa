package domain

import (
	"fmt"
	"time"
)

type TargetType string

const (
	TargetEmail   TargetType = "email"
	TargetDomain  TargetType = "domain"
	TargetCompany TargetType = "company"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Canonical exposure tags. Source adapters normalize their own
// vocabulary into these at the ingestion boundary.
const (
	ExposureEmail    = "email"
	ExposurePassword = "password"
	ExposureHash     = "hash"
	ExposurePhone    = "phone"
	ExposureAddress  = "address"
	ExposureMention  = "mention"
	ExposureUsername = "username"
)

// Organization is the tenant boundary. Every other entity belongs to
// exactly one organization. Deactivating an organization stops
// ingestion and dispatch for its children without deleting history.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Target is a monitored identity. The engine only reads targets as
// matching context; the configuration layer owns them.
type Target struct {
	ID        string            `json:"id"`
	OrgID     string            `json:"-"`
	Type      TargetType        `json:"target_type"`
	Value     string            `json:"value"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Connector is a configured data-source instance. Type selects the
// source adapter; Config and Secrets are opaque to the engine core and
// handed to the adapter as-is. LastRunStatus is mutated only by the
// runner, atomically with the findings a run stored.
type Connector struct {
	ID            string            `json:"id"`
	OrgID         string            `json:"-"`
	Name          string            `json:"name"`
	Type          string            `json:"connector_type"`
	Config        map[string]string `json:"-"`
	Secrets       map[string]string `json:"-"`
	IsActive      bool              `json:"is_active"`
	LastRunStatus string            `json:"last_run_status"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Finding is a single observed exposure. Immutable once stored; the
// dedupe hash identifies re-observations of the same exposure.
type Finding struct {
	ID            string            `json:"id"`
	OrgID         string            `json:"-"`
	Source        string            `json:"source"`
	Confidence    int               `json:"confidence"`
	MatchedEntity string            `json:"matched_entity"`
	ExposureTypes []string          `json:"exposure_types"`
	RawSnippet    string            `json:"raw_snippet"`
	Severity      Severity          `json:"severity"`
	DedupeHash    string            `json:"-"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Integration is a channel adapter instance (jira, o365, trellix,
// generic webhook). Rules reference integrations indirectly through
// the channel type, resolved at dispatch time.
type Integration struct {
	ID             string            `json:"id"`
	OrgID          string            `json:"-"`
	Name           string            `json:"name"`
	Type           string            `json:"integration_type"`
	Config         map[string]string `json:"-"`
	Secrets        map[string]string `json:"-"`
	IsActive       bool              `json:"is_active"`
	LastTestStatus string            `json:"last_test_status"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Integration test statuses.
const (
	TestStatusUntested = "untested"
	TestStatusSuccess  = "success"
	TestStatusFailed   = "failed"
)

type AuditAction string

const (
	ActionRunConnector    AuditAction = "run_connector"
	ActionCreateFinding   AuditAction = "create_finding"
	ActionSendAlert       AuditAction = "send_alert"
	ActionTestIntegration AuditAction = "test_integration"
	ActionInvalidSchedule AuditAction = "invalid_schedule"
	ActionDropRecord      AuditAction = "drop_record"
)

// SystemActor is the actor id recorded for engine-initiated actions.
const SystemActor = "system"

// AuditEntry is an append-only record. Seq is assigned by the store
// and breaks created_at ties, giving a total order per organization.
type AuditEntry struct {
	ID        string         `json:"id"`
	OrgID     string         `json:"-"`
	Action    AuditAction    `json:"action"`
	ActorID   string         `json:"actor_id,omitempty"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
	Seq       int64          `json:"-"`
}

// DispatchAttempt records the terminal outcome of delivering one
// sanitized payload to one recipient channel. Failed attempts stay
// queryable for operator remediation.
type DispatchAttempt struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"-"`
	FindingID string    `json:"finding_id"`
	RuleID    string    `json:"rule_id"`
	Channel   string    `json:"channel"`
	Recipient string    `json:"recipient,omitempty"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	DispatchStatusSent   = "sent"
	DispatchStatusFailed = "failed"
)

// ErrorCategory classifies failures for operator-visible status
// strings. Raw third-party error detail never leaves the engine.
type ErrorCategory string

const (
	ErrorTransient ErrorCategory = "transient"
	ErrorConfig    ErrorCategory = "config"
	ErrorData      ErrorCategory = "data"
	ErrorAuth      ErrorCategory = "auth"
	ErrorFatal     ErrorCategory = "fatal"
)

// Connector last-run status strings.
const RunStatusNever = "never"

func RunStatusStored(n int) string {
	return fmt.Sprintf("stored:%d", n)
}

func RunStatusError(c ErrorCategory) string {
	return "error:" + string(c)
}
