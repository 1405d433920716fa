package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hive-corporation/darkguard/internal/adapter/repository"
	"github.com/hive-corporation/darkguard/internal/core/domain"
	"github.com/hive-corporation/darkguard/internal/core/ports"
)

func testRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		CallTimeout:     time.Second,
	}
}

type stubSource struct {
	name     string
	results  []ports.RawResult
	failures int // initial calls that fail before succeeding

	mu    sync.Mutex
	calls int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(ctx context.Context, req ports.FetchRequest) ([]ports.RawResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return nil, errors.New("upstream unavailable")
	}
	return s.results, nil
}

type stubSourceRegistry map[string]ports.SourceAdapter

func (r stubSourceRegistry) Get(connectorType string) (ports.SourceAdapter, bool) {
	adapter, ok := r[connectorType]
	return adapter, ok
}

type stubChannel struct {
	typ      string
	failures int
	sendErr  error // when set, every Send returns it

	mu    sync.Mutex
	sent  []map[string]any
	calls int
}

func (c *stubChannel) Type() string { return c.typ }

func (c *stubChannel) Send(ctx context.Context, payload map[string]any, cfg ports.ChannelConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.sendErr != nil {
		return c.sendErr
	}
	if c.calls <= c.failures {
		return errors.New("delivery failed")
	}
	c.sent = append(c.sent, payload)
	return nil
}

func (c *stubChannel) Test(ctx context.Context, cfg ports.ChannelConfig) error {
	if c.failures > 0 {
		return errors.New("test failed")
	}
	return nil
}

func (c *stubChannel) sentPayloads() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]map[string]any(nil), c.sent...)
}

type stubChannelRegistry map[string]ports.ChannelAdapter

func (r stubChannelRegistry) Get(channelType string) (ports.ChannelAdapter, bool) {
	adapter, ok := r[channelType]
	return adapter, ok
}

func seedOrg(store *repository.MemoryStore, id string, active bool) {
	store.AddOrganization(domain.Organization{ID: id, Name: id, IsActive: active})
}

func auditActions(store *repository.MemoryStore, orgID string, action domain.AuditAction) []domain.AuditEntry {
	entries, _ := store.ListAuditLog(context.Background(), orgID, 0)
	var matched []domain.AuditEntry
	for _, e := range entries {
		if e.Action == action {
			matched = append(matched, e)
		}
	}
	return matched
}
