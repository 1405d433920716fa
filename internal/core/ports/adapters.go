package ports

import (
	"context"
	"errors"
	"time"

	"github.com/hive-corporation/darkguard/internal/core/domain"
)

// ErrChannelConfig marks a delivery failure caused by missing or
// invalid channel configuration. Retrying cannot fix these, so the
// dispatcher fails them immediately and records them as configuration
// errors.
var ErrChannelConfig = errors.New("invalid channel configuration")

// RawResult is the normalized shape every source adapter must be able
// to produce from one raw record. Confidence is the adapter's native
// scale (fraction or percentage); the engine converts it to the
// canonical 0-100 integer at the ingestion boundary.
type RawResult struct {
	MatchedEntity string
	ExposureTypes []string
	RawSnippet    string
	Confidence    float64
	SeverityHint  string
	Metadata      map[string]string
}

// FetchRequest carries the per-run context handed to a source adapter.
// Config and Secrets come from the connector instance and are opaque
// to the engine core.
type FetchRequest struct {
	OrgID   string
	Targets []domain.Target
	Config  map[string]string
	Secrets map[string]string
	Since   time.Time
}

// SourceAdapter is implemented once per connector type. Adding a
// connector type means adding an implementation and registering it;
// the engine never branches on the type tag.
type SourceAdapter interface {
	Name() string
	Fetch(ctx context.Context, req FetchRequest) ([]RawResult, error)
}

// SourceRegistry resolves a connector type to its adapter.
type SourceRegistry interface {
	Get(connectorType string) (SourceAdapter, bool)
}

// ChannelConfig addresses one delivery. Recipient is the direct
// address for email/webhook/sms channels; Config and Secrets carry the
// resolved integration's settings for integration-backed channels.
type ChannelConfig struct {
	Recipient string
	Config    map[string]string
	Secrets   map[string]string
}

// ChannelAdapter delivers sanitized payloads through one channel type.
// Test backs the connectivity check surfaced in the UI.
type ChannelAdapter interface {
	Type() string
	Send(ctx context.Context, payload map[string]any, cfg ChannelConfig) error
	Test(ctx context.Context, cfg ChannelConfig) error
}

// ChannelRegistry resolves a channel type to its adapter.
type ChannelRegistry interface {
	Get(channelType string) (ChannelAdapter, bool)
}

// EventPublisher mirrors engine state changes onto an external bus for
// downstream consumers. Publishing is best-effort; implementations
// must not fail the triggering operation.
type EventPublisher interface {
	Publish(subject string, payload any) error
}
