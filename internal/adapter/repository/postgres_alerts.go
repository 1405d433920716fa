package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hive-corporation/darkguard/internal/core/domain"
	"github.com/hive-corporation/darkguard/internal/core/ports"
)

const ruleColumns = `id, org_id, name, is_active, filters, redaction_policy, recipients, schedule, last_sweep_at, created_at`

func scanRule(row pgx.Row) (domain.AlertRule, error) {
	var r domain.AlertRule
	var lastSweep *time.Time
	err := row.Scan(&r.ID, &r.OrgID, &r.Name, &r.IsActive, &r.Filters, &r.RedactionPolicy, &r.Recipients, &r.Schedule, &lastSweep, &r.CreatedAt)
	if lastSweep != nil {
		r.LastSweepAt = *lastSweep
	}
	return r, err
}

func (s *PostgresStore) ListRules(ctx context.Context, orgID string) ([]domain.AlertRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM alert_rules WHERE org_id = $1 ORDER BY created_at`
	return s.queryRules(ctx, query, orgID)
}

func (s *PostgresStore) ListActiveRules(ctx context.Context, orgID string) ([]domain.AlertRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM alert_rules WHERE org_id = $1 AND is_active ORDER BY created_at`
	return s.queryRules(ctx, query, orgID)
}

func (s *PostgresStore) queryRules(ctx context.Context, query string, args ...any) ([]domain.AlertRule, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert rules: %w", err)
	}
	defer rows.Close()

	var rules []domain.AlertRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func (s *PostgresStore) CountActiveRules(ctx context.Context, orgID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM alert_rules WHERE org_id = $1 AND is_active`, orgID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count alert rules: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) MarkSwept(ctx context.Context, orgID, ruleID string, at time.Time) error {
	query := `UPDATE alert_rules SET last_sweep_at = $3 WHERE org_id = $1 AND id = $2`

	tag, err := s.db.Exec(ctx, query, orgID, ruleID, at)
	if err != nil {
		return fmt.Errorf("failed to mark rule swept: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}

const integrationColumns = `id, org_id, name, integration_type, config, secrets, is_active, last_test_status, created_at`

func scanIntegration(row pgx.Row) (domain.Integration, error) {
	var i domain.Integration
	err := row.Scan(&i.ID, &i.OrgID, &i.Name, &i.Type, &i.Config, &i.Secrets, &i.IsActive, &i.LastTestStatus, &i.CreatedAt)
	return i, err
}

func (s *PostgresStore) GetIntegration(ctx context.Context, orgID, integrationID string) (domain.Integration, error) {
	query := `SELECT ` + integrationColumns + ` FROM integrations WHERE org_id = $1 AND id = $2`

	i, err := scanIntegration(s.db.QueryRow(ctx, query, orgID, integrationID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Integration{}, ports.ErrNotFound
	}
	if err != nil {
		return domain.Integration{}, fmt.Errorf("failed to query integration: %w", err)
	}
	return i, nil
}

func (s *PostgresStore) ListIntegrations(ctx context.Context, orgID string) ([]domain.Integration, error) {
	query := `SELECT ` + integrationColumns + ` FROM integrations WHERE org_id = $1 ORDER BY created_at`

	rows, err := s.db.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query integrations: %w", err)
	}
	defer rows.Close()

	var integrations []domain.Integration
	for rows.Next() {
		i, err := scanIntegration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan integration: %w", err)
		}
		integrations = append(integrations, i)
	}
	return integrations, rows.Err()
}

func (s *PostgresStore) ActiveIntegrationByType(ctx context.Context, orgID, integrationType string) (domain.Integration, error) {
	query := `
		SELECT ` + integrationColumns + `
		FROM integrations
		WHERE org_id = $1 AND integration_type = $2 AND is_active
		ORDER BY created_at
		LIMIT 1
	`

	i, err := scanIntegration(s.db.QueryRow(ctx, query, orgID, integrationType))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Integration{}, ports.ErrNotFound
	}
	if err != nil {
		return domain.Integration{}, fmt.Errorf("failed to query integration by type: %w", err)
	}
	return i, nil
}

func (s *PostgresStore) UpdateTestStatus(ctx context.Context, orgID, integrationID, status string) error {
	query := `UPDATE integrations SET last_test_status = $3 WHERE org_id = $1 AND id = $2`

	tag, err := s.db.Exec(ctx, query, orgID, integrationID, status)
	if err != nil {
		return fmt.Errorf("failed to update test status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// ClaimDispatch races on the dispatch_claims primary key. Whichever
// caller inserts the row owns delivery for the pair; everyone else sees
// zero rows affected.
func (s *PostgresStore) ClaimDispatch(ctx context.Context, orgID, findingID, ruleID string) (bool, error) {
	query := `
		INSERT INTO dispatch_claims (org_id, finding_id, rule_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (finding_id, rule_id) DO NOTHING
	`

	tag, err := s.db.Exec(ctx, query, orgID, findingID, ruleID)
	if err != nil {
		return false, fmt.Errorf("failed to claim dispatch: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) RecordAttempt(ctx context.Context, attempt domain.DispatchAttempt) error {
	query := `
		INSERT INTO dispatch_attempts (id, org_id, finding_id, rule_id, channel, recipient, status, error, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.db.Exec(ctx, query,
		attempt.ID,
		attempt.OrgID,
		attempt.FindingID,
		attempt.RuleID,
		attempt.Channel,
		attempt.Recipient,
		attempt.Status,
		attempt.Error,
		attempt.Attempts,
		attempt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record dispatch attempt: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAttempts(ctx context.Context, orgID string, limit int) ([]domain.DispatchAttempt, error) {
	query := `
		SELECT id, org_id, finding_id, rule_id, channel, recipient, status, error, attempts, created_at
		FROM dispatch_attempts
		WHERE org_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.db.Query(ctx, query, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query dispatch attempts: %w", err)
	}
	defer rows.Close()

	var attempts []domain.DispatchAttempt
	for rows.Next() {
		var a domain.DispatchAttempt
		if err := rows.Scan(&a.ID, &a.OrgID, &a.FindingID, &a.RuleID, &a.Channel, &a.Recipient, &a.Status, &a.Error, &a.Attempts, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dispatch attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func (s *PostgresStore) Append(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error) {
	query := `
		INSERT INTO audit_log (id, org_id, action, actor_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING seq
	`

	err := s.db.QueryRow(ctx, query,
		entry.ID,
		entry.OrgID,
		entry.Action,
		entry.ActorID,
		entry.Payload,
		entry.CreatedAt,
	).Scan(&entry.Seq)
	if err != nil {
		return domain.AuditEntry{}, fmt.Errorf("failed to append audit entry: %w", err)
	}
	return entry, nil
}

func (s *PostgresStore) ListAuditLog(ctx context.Context, orgID string, limit int) ([]domain.AuditEntry, error) {
	query := `
		SELECT id, org_id, action, actor_id, payload, created_at, seq
		FROM audit_log
		WHERE org_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2
	`

	rows, err := s.db.Query(ctx, query, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(&e.ID, &e.OrgID, &e.Action, &e.ActorID, &e.Payload, &e.CreatedAt, &e.Seq); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
