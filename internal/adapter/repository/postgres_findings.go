package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hive-corporation/darkguard/internal/core/domain"
)

// IngestRun inserts candidates and records the connector status in one
// transaction. The unique (org_id, dedupe_hash) index makes re-observed
// exposures no-ops; ON CONFLICT DO NOTHING with RETURNING yields no row
// for duplicates, so the accepted set falls out of the insert itself.
func (s *PostgresStore) IngestRun(ctx context.Context, orgID, connectorID string, candidates []domain.Finding) ([]domain.Finding, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin ingest transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	insert := `
		INSERT INTO findings (org_id, source, confidence, matched_entity, exposure_types, raw_snippet, severity, dedupe_hash, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (org_id, dedupe_hash) DO NOTHING
		RETURNING id, created_at
	`

	var stored []domain.Finding
	for _, f := range candidates {
		err := tx.QueryRow(ctx, insert,
			orgID,
			f.Source,
			f.Confidence,
			f.MatchedEntity,
			f.ExposureTypes,
			f.RawSnippet,
			f.Severity,
			f.DedupeHash,
			f.Metadata,
		).Scan(&f.ID, &f.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to insert finding: %w", err)
		}
		f.OrgID = orgID
		stored = append(stored, f)
	}

	status := domain.RunStatusStored(len(stored))
	if _, err := tx.Exec(ctx, `UPDATE connectors SET last_run_status = $3 WHERE org_id = $1 AND id = $2`, orgID, connectorID, status); err != nil {
		return nil, fmt.Errorf("failed to record run status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit ingest: %w", err)
	}
	return stored, nil
}

const findingColumns = `id, org_id, source, confidence, matched_entity, exposure_types, raw_snippet, severity, dedupe_hash, metadata, created_at`

func scanFinding(row pgx.Row) (domain.Finding, error) {
	var f domain.Finding
	err := row.Scan(&f.ID, &f.OrgID, &f.Source, &f.Confidence, &f.MatchedEntity, &f.ExposureTypes, &f.RawSnippet, &f.Severity, &f.DedupeHash, &f.Metadata, &f.CreatedAt)
	return f, err
}

func (s *PostgresStore) ListFindings(ctx context.Context, orgID string) ([]domain.Finding, error) {
	query := `SELECT ` + findingColumns + ` FROM findings WHERE org_id = $1 ORDER BY created_at DESC`
	return s.queryFindings(ctx, query, orgID)
}

func (s *PostgresStore) FindingsSince(ctx context.Context, orgID string, since time.Time, limit int) ([]domain.Finding, error) {
	query := `
		SELECT ` + findingColumns + `
		FROM findings
		WHERE org_id = $1 AND created_at > $2
		ORDER BY created_at
		LIMIT $3
	`
	return s.queryFindings(ctx, query, orgID, since, limit)
}

func (s *PostgresStore) queryFindings(ctx context.Context, query string, args ...any) ([]domain.Finding, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer rows.Close()

	var findings []domain.Finding
	for rows.Next() {
		f, err := scanFinding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		findings = append(findings, f)
	}
	return findings, rows.Err()
}

func (s *PostgresStore) CountFindings(ctx context.Context, orgID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM findings WHERE org_id = $1`, orgID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count findings: %w", err)
	}
	return n, nil
}
