package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hive-corporation/darkguard/internal/core/domain"
	"github.com/hive-corporation/darkguard/internal/core/ports"
)

// PostgresStore implements every repository port on a pgx pool. Config,
// secrets and rule policy columns are JSONB; pgx marshals them through
// encoding/json on scan and bind.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetOrganization(ctx context.Context, orgID string) (domain.Organization, error) {
	query := `
		SELECT id, name, is_active, created_at
		FROM organizations
		WHERE id = $1
	`

	var org domain.Organization
	err := s.db.QueryRow(ctx, query, orgID).Scan(&org.ID, &org.Name, &org.IsActive, &org.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Organization{}, ports.ErrNotFound
	}
	if err != nil {
		return domain.Organization{}, fmt.Errorf("failed to query organization: %w", err)
	}
	return org, nil
}

func (s *PostgresStore) ListOrganizations(ctx context.Context) ([]domain.Organization, error) {
	query := `
		SELECT id, name, is_active, created_at
		FROM organizations
		ORDER BY created_at
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query organizations: %w", err)
	}
	defer rows.Close()

	var orgs []domain.Organization
	for rows.Next() {
		var org domain.Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.IsActive, &org.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

func (s *PostgresStore) ListTargets(ctx context.Context, orgID string) ([]domain.Target, error) {
	query := `
		SELECT id, org_id, target_type, value, metadata, created_at
		FROM targets
		WHERE org_id = $1
		ORDER BY created_at
	`

	rows, err := s.db.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query targets: %w", err)
	}
	defer rows.Close()

	var targets []domain.Target
	for rows.Next() {
		var t domain.Target
		if err := rows.Scan(&t.ID, &t.OrgID, &t.Type, &t.Value, &t.Metadata, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

const connectorColumns = `id, org_id, name, connector_type, config, secrets, is_active, last_run_status, created_at`

func scanConnector(row pgx.Row) (domain.Connector, error) {
	var c domain.Connector
	err := row.Scan(&c.ID, &c.OrgID, &c.Name, &c.Type, &c.Config, &c.Secrets, &c.IsActive, &c.LastRunStatus, &c.CreatedAt)
	return c, err
}

func (s *PostgresStore) GetConnector(ctx context.Context, orgID, connectorID string) (domain.Connector, error) {
	query := `SELECT ` + connectorColumns + ` FROM connectors WHERE org_id = $1 AND id = $2`

	c, err := scanConnector(s.db.QueryRow(ctx, query, orgID, connectorID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Connector{}, ports.ErrNotFound
	}
	if err != nil {
		return domain.Connector{}, fmt.Errorf("failed to query connector: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListConnectors(ctx context.Context, orgID string) ([]domain.Connector, error) {
	query := `SELECT ` + connectorColumns + ` FROM connectors WHERE org_id = $1 ORDER BY created_at`
	return s.queryConnectors(ctx, query, orgID)
}

func (s *PostgresStore) ListRunnableConnectors(ctx context.Context) ([]domain.Connector, error) {
	query := `
		SELECT c.id, c.org_id, c.name, c.connector_type, c.config, c.secrets, c.is_active, c.last_run_status, c.created_at
		FROM connectors c
		JOIN organizations o ON o.id = c.org_id
		WHERE c.is_active AND o.is_active
		ORDER BY c.created_at
	`
	return s.queryConnectors(ctx, query)
}

func (s *PostgresStore) queryConnectors(ctx context.Context, query string, args ...any) ([]domain.Connector, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query connectors: %w", err)
	}
	defer rows.Close()

	var connectors []domain.Connector
	for rows.Next() {
		c, err := scanConnector(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan connector: %w", err)
		}
		connectors = append(connectors, c)
	}
	return connectors, rows.Err()
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, orgID, connectorID, status string) error {
	query := `UPDATE connectors SET last_run_status = $3 WHERE org_id = $1 AND id = $2`

	tag, err := s.db.Exec(ctx, query, orgID, connectorID, status)
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CountActiveConnectors(ctx context.Context, orgID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM connectors WHERE org_id = $1 AND is_active`, orgID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count connectors: %w", err)
	}
	return n, nil
}
