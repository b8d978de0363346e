package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Snapshot history: capture-time ordered tradeline snapshots that
	// feed the series comparator and the contextual rule pass.
	SaveSnapshot(ctx context.Context, tenantID string, snap *Snapshot) error
	ListSnapshots(ctx context.Context, tenantID string, accountID string) ([]*Snapshot, error)

	// Audit results
	SaveAudit(ctx context.Context, tenantID string, audit *Audit) error
	GetAudit(ctx context.Context, tenantID string, auditID string) (*Audit, error)

	// Custom rule configuration
	SaveCustomRule(ctx context.Context, tenantID string, rule *CustomRuleConfig) error
	GetCustomRule(ctx context.Context, tenantID string, ruleID string) (*CustomRuleConfig, error)
	ListCustomRules(ctx context.Context, tenantID string) ([]*CustomRuleConfig, error)
	ListEnabledCustomRules(ctx context.Context) ([]*CustomRuleConfig, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
