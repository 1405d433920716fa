package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hive-corporation/darkguard/internal/core/domain"
	"github.com/hive-corporation/darkguard/internal/core/ports"
)

// MemoryStore is a mutex-guarded implementation of every repository
// port. It backs the demo mode and the engine tests; semantics match
// the Postgres store, including ingest atomicity and claim uniqueness.
type MemoryStore struct {
	mu            sync.Mutex
	organizations map[string]domain.Organization
	targets       map[string][]domain.Target
	connectors    map[string][]domain.Connector
	findings      map[string][]domain.Finding
	dedupe        map[string]map[string]bool
	rules         map[string][]domain.AlertRule
	integrations  map[string][]domain.Integration
	claims        map[string]bool
	attempts      map[string][]domain.DispatchAttempt
	audit         map[string][]domain.AuditEntry
	auditSeq      int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		organizations: make(map[string]domain.Organization),
		targets:       make(map[string][]domain.Target),
		connectors:    make(map[string][]domain.Connector),
		findings:      make(map[string][]domain.Finding),
		dedupe:        make(map[string]map[string]bool),
		rules:         make(map[string][]domain.AlertRule),
		integrations:  make(map[string][]domain.Integration),
		claims:        make(map[string]bool),
		attempts:      make(map[string][]domain.DispatchAttempt),
		audit:         make(map[string][]domain.AuditEntry),
	}
}

func (s *MemoryStore) AddOrganization(org domain.Organization) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if org.CreatedAt.IsZero() {
		org.CreatedAt = time.Now().UTC()
	}
	s.organizations[org.ID] = org
}

// SetOrganizationActive flips the tenant kill switch.
func (s *MemoryStore) SetOrganizationActive(orgID string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if org, ok := s.organizations[orgID]; ok {
		org.IsActive = active
		s.organizations[orgID] = org
	}
}

func (s *MemoryStore) AddTarget(t domain.Target) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	s.targets[t.OrgID] = append(s.targets[t.OrgID], t)
}

func (s *MemoryStore) AddConnector(c domain.Connector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.LastRunStatus == "" {
		c.LastRunStatus = domain.RunStatusNever
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.connectors[c.OrgID] = append(s.connectors[c.OrgID], c)
}

func (s *MemoryStore) AddFinding(f domain.Finding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	if f.DedupeHash != "" {
		if s.dedupe[f.OrgID] == nil {
			s.dedupe[f.OrgID] = make(map[string]bool)
		}
		s.dedupe[f.OrgID][f.DedupeHash] = true
	}
	s.findings[f.OrgID] = append(s.findings[f.OrgID], f)
}

func (s *MemoryStore) AddRule(r domain.AlertRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	s.rules[r.OrgID] = append(s.rules[r.OrgID], r)
}

func (s *MemoryStore) AddIntegration(i domain.Integration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.LastTestStatus == "" {
		i.LastTestStatus = domain.TestStatusUntested
	}
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now().UTC()
	}
	s.integrations[i.OrgID] = append(s.integrations[i.OrgID], i)
}

func (s *MemoryStore) GetOrganization(ctx context.Context, orgID string) (domain.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.organizations[orgID]
	if !ok {
		return domain.Organization{}, ports.ErrNotFound
	}
	return org, nil
}

func (s *MemoryStore) ListOrganizations(ctx context.Context) ([]domain.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	orgs := make([]domain.Organization, 0, len(s.organizations))
	for _, org := range s.organizations {
		orgs = append(orgs, org)
	}
	sort.Slice(orgs, func(i, j int) bool { return orgs[i].CreatedAt.Before(orgs[j].CreatedAt) })
	return orgs, nil
}

func (s *MemoryStore) ListTargets(ctx context.Context, orgID string) ([]domain.Target, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Target(nil), s.targets[orgID]...), nil
}

func (s *MemoryStore) GetConnector(ctx context.Context, orgID, connectorID string) (domain.Connector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.connectors[orgID] {
		if c.ID == connectorID {
			return c, nil
		}
	}
	return domain.Connector{}, ports.ErrNotFound
}

func (s *MemoryStore) ListConnectors(ctx context.Context, orgID string) ([]domain.Connector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Connector(nil), s.connectors[orgID]...), nil
}

func (s *MemoryStore) ListRunnableConnectors(ctx context.Context) ([]domain.Connector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var runnable []domain.Connector
	for orgID, connectors := range s.connectors {
		org, ok := s.organizations[orgID]
		if !ok || !org.IsActive {
			continue
		}
		for _, c := range connectors {
			if c.IsActive {
				runnable = append(runnable, c)
			}
		}
	}
	sort.Slice(runnable, func(i, j int) bool { return runnable[i].CreatedAt.Before(runnable[j].CreatedAt) })
	return runnable, nil
}

func (s *MemoryStore) UpdateRunStatus(ctx context.Context, orgID, connectorID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setRunStatusLocked(orgID, connectorID, status)
}

func (s *MemoryStore) setRunStatusLocked(orgID, connectorID, status string) error {
	for i, c := range s.connectors[orgID] {
		if c.ID == connectorID {
			s.connectors[orgID][i].LastRunStatus = status
			return nil
		}
	}
	return ports.ErrNotFound
}

func (s *MemoryStore) CountActiveConnectors(ctx context.Context, orgID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.connectors[orgID] {
		if c.IsActive {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) IngestRun(ctx context.Context, orgID, connectorID string, candidates []domain.Finding) ([]domain.Finding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := s.dedupe[orgID]
	if seen == nil {
		seen = make(map[string]bool)
		s.dedupe[orgID] = seen
	}

	var stored []domain.Finding
	for _, f := range candidates {
		if seen[f.DedupeHash] {
			continue
		}
		seen[f.DedupeHash] = true
		f.ID = uuid.NewString()
		f.OrgID = orgID
		f.CreatedAt = time.Now().UTC()
		s.findings[orgID] = append(s.findings[orgID], f)
		stored = append(stored, f)
	}

	if err := s.setRunStatusLocked(orgID, connectorID, domain.RunStatusStored(len(stored))); err != nil {
		return nil, err
	}
	return stored, nil
}

func (s *MemoryStore) ListFindings(ctx context.Context, orgID string) ([]domain.Finding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	findings := append([]domain.Finding(nil), s.findings[orgID]...)
	sort.Slice(findings, func(i, j int) bool { return findings[i].CreatedAt.After(findings[j].CreatedAt) })
	return findings, nil
}

func (s *MemoryStore) FindingsSince(ctx context.Context, orgID string, since time.Time, limit int) ([]domain.Finding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var findings []domain.Finding
	for _, f := range s.findings[orgID] {
		if f.CreatedAt.After(since) {
			findings = append(findings, f)
		}
	}
	sort.Slice(findings, func(i, j int) bool { return findings[i].CreatedAt.Before(findings[j].CreatedAt) })
	if limit > 0 && len(findings) > limit {
		findings = findings[:limit]
	}
	return findings, nil
}

func (s *MemoryStore) CountFindings(ctx context.Context, orgID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.findings[orgID]), nil
}

func (s *MemoryStore) ListRules(ctx context.Context, orgID string) ([]domain.AlertRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AlertRule(nil), s.rules[orgID]...), nil
}

func (s *MemoryStore) ListActiveRules(ctx context.Context, orgID string) ([]domain.AlertRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var active []domain.AlertRule
	for _, r := range s.rules[orgID] {
		if r.IsActive {
			active = append(active, r)
		}
	}
	return active, nil
}

func (s *MemoryStore) CountActiveRules(ctx context.Context, orgID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.rules[orgID] {
		if r.IsActive {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) MarkSwept(ctx context.Context, orgID, ruleID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.rules[orgID] {
		if r.ID == ruleID {
			s.rules[orgID][i].LastSweepAt = at
			return nil
		}
	}
	return ports.ErrNotFound
}

func (s *MemoryStore) GetIntegration(ctx context.Context, orgID, integrationID string) (domain.Integration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, i := range s.integrations[orgID] {
		if i.ID == integrationID {
			return i, nil
		}
	}
	return domain.Integration{}, ports.ErrNotFound
}

func (s *MemoryStore) ListIntegrations(ctx context.Context, orgID string) ([]domain.Integration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Integration(nil), s.integrations[orgID]...), nil
}

func (s *MemoryStore) ActiveIntegrationByType(ctx context.Context, orgID, integrationType string) (domain.Integration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, i := range s.integrations[orgID] {
		if i.IsActive && i.Type == integrationType {
			return i, nil
		}
	}
	return domain.Integration{}, ports.ErrNotFound
}

func (s *MemoryStore) UpdateTestStatus(ctx context.Context, orgID, integrationID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, integration := range s.integrations[orgID] {
		if integration.ID == integrationID {
			s.integrations[orgID][i].LastTestStatus = status
			return nil
		}
	}
	return ports.ErrNotFound
}

func (s *MemoryStore) ClaimDispatch(ctx context.Context, orgID, findingID, ruleID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := findingID + "\x00" + ruleID
	if s.claims[key] {
		return false, nil
	}
	s.claims[key] = true
	return true, nil
}

func (s *MemoryStore) RecordAttempt(ctx context.Context, attempt domain.DispatchAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[attempt.OrgID] = append(s.attempts[attempt.OrgID], attempt)
	return nil
}

func (s *MemoryStore) ListAttempts(ctx context.Context, orgID string, limit int) ([]domain.DispatchAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempts := append([]domain.DispatchAttempt(nil), s.attempts[orgID]...)
	sort.Slice(attempts, func(i, j int) bool { return attempts[i].CreatedAt.After(attempts[j].CreatedAt) })
	if limit > 0 && len(attempts) > limit {
		attempts = attempts[:limit]
	}
	return attempts, nil
}

func (s *MemoryStore) Append(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditSeq++
	entry.Seq = s.auditSeq
	s.audit[entry.OrgID] = append(s.audit[entry.OrgID], entry)
	return entry, nil
}

func (s *MemoryStore) ListAuditLog(ctx context.Context, orgID string, limit int) ([]domain.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := append([]domain.AuditEntry(nil), s.audit[orgID]...)
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].Seq > entries[j].Seq
		}
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
