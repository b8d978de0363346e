// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveSnapshot stores one account snapshot with tenant isolation.
func (r *SQLRepository) SaveSnapshot(ctx context.Context, tenantID string, snap *domain.Snapshot) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if snap == nil || snap.AccountID == "" {
		return fmt.Errorf("%w: snapshot with accountID is required", ErrInvalidInput)
	}

	record, err := json.Marshal(snap.Record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	capturedAt := snap.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO account_snapshots (
			id, tenant_id, account_id, record, captured_at, ingested_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		uuid.New().String(), tenantID, snap.AccountID,
		string(record), capturedAt, time.Now().UTC(),
	)
	return err
}

// ListSnapshots retrieves an account's snapshots ordered by capture time,
// oldest first. Ties keep insertion order via the ingestion timestamp.
func (r *SQLRepository) ListSnapshots(ctx context.Context, tenantID string, accountID string) ([]*domain.Snapshot, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT tenant_id, account_id, record, captured_at
		FROM account_snapshots
		WHERE tenant_id = ? AND account_id = ?
		ORDER BY captured_at ASC, ingested_at ASC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []*domain.Snapshot
	for rows.Next() {
		var snap domain.Snapshot
		var record string

		if err := rows.Scan(&snap.TenantID, &snap.AccountID, &record, &snap.CapturedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(record), &snap.Record); err != nil {
			return nil, fmt.Errorf("failed to parse snapshot record: %w", err)
		}

		snapshots = append(snapshots, &snap)
	}

	return snapshots, rows.Err()
}

// SaveAudit stores a completed audit with tenant isolation.
func (r *SQLRepository) SaveAudit(ctx context.Context, tenantID string, audit *domain.Audit) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	flags, _ := json.Marshal(audit.Flags)
	diagnostics, _ := json.Marshal(audit.Diagnostics)
	risk, _ := json.Marshal(audit.Risk)
	metadata, _ := json.Marshal(audit.Metadata)

	query := `
		INSERT INTO audits (
			id, tenant_id, account_id, timestamp,
			flags, diagnostics, risk, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		audit.ID, tenantID, audit.AccountID, audit.Timestamp,
		string(flags), string(diagnostics), string(risk), string(metadata),
	)
	return err
}

// GetAudit retrieves an audit by ID with tenant isolation.
func (r *SQLRepository) GetAudit(ctx context.Context, tenantID string, auditID string) (*domain.Audit, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, account_id, timestamp,
			   flags, diagnostics, risk, metadata
		FROM audits
		WHERE tenant_id = ? AND id = ?
	`

	var audit domain.Audit
	var flags, diagnostics, risk, metadata string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, auditID).Scan(
		&audit.ID, &audit.TenantID, &audit.AccountID, &audit.Timestamp,
		&flags, &diagnostics, &risk, &metadata,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(flags), &audit.Flags)
	json.Unmarshal([]byte(diagnostics), &audit.Diagnostics)
	json.Unmarshal([]byte(risk), &audit.Risk)
	json.Unmarshal([]byte(metadata), &audit.Metadata)

	return &audit, nil
}

// SaveCustomRule stores a custom rule with tenant isolation.
func (r *SQLRepository) SaveCustomRule(ctx context.Context, tenantID string, rule *domain.CustomRuleConfig) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	citations, _ := json.Marshal(rule.Citations)

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO custom_rules (
			id, tenant_id, name, description, version, expression,
			severity, explanation, citations, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			severity = excluded.severity,
			explanation = excluded.explanation,
			citations = excluded.citations,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.Name, rule.Description,
		rule.Version, rule.Expression, string(rule.Severity),
		rule.Explanation, string(citations), enabled,
		now, now,
	)
	return err
}

// GetCustomRule retrieves the highest enabled version of a custom rule with
// tenant isolation.
func (r *SQLRepository) GetCustomRule(ctx context.Context, tenantID string, ruleID string) (*domain.CustomRuleConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression,
			   severity, explanation, citations, enabled
		FROM custom_rules
		WHERE tenant_id = ? AND id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, ruleID)
	cfg, err := scanCustomRule(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return cfg, err
}

// ListCustomRules retrieves all active custom rules for a tenant.
func (r *SQLRepository) ListCustomRules(ctx context.Context, tenantID string) ([]*domain.CustomRuleConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression,
			   severity, explanation, citations, enabled
		FROM custom_rules
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectCustomRules(rows)
}

// ListEnabledCustomRules retrieves every tenant's active custom rules, used
// to warm the CEL engine at startup.
func (r *SQLRepository) ListEnabledCustomRules(ctx context.Context) ([]*domain.CustomRuleConfig, error) {
	query := `
		SELECT id, tenant_id, name, description, version, expression,
			   severity, explanation, citations, enabled
		FROM custom_rules
		WHERE enabled = 1
		ORDER BY tenant_id, name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectCustomRules(rows)
}

func collectCustomRules(rows *sql.Rows) ([]*domain.CustomRuleConfig, error) {
	var configs []*domain.CustomRuleConfig
	for rows.Next() {
		cfg, err := scanCustomRule(rows.Scan)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

func scanCustomRule(scan func(...any) error) (*domain.CustomRuleConfig, error) {
	var cfg domain.CustomRuleConfig
	var severity, citations string
	var enabled int

	err := scan(
		&cfg.ID, &cfg.TenantID, &cfg.Name, &cfg.Description,
		&cfg.Version, &cfg.Expression, &severity,
		&cfg.Explanation, &citations, &enabled,
	)
	if err != nil {
		return nil, err
	}

	cfg.Severity = domain.Severity(severity)
	cfg.Enabled = enabled == 1
	if citations != "" {
		json.Unmarshal([]byte(citations), &cfg.Citations)
	}

	return &cfg, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
