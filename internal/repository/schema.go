package repository

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL.

const schemaSnapshots = `
CREATE TABLE IF NOT EXISTS account_snapshots (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    account_id TEXT NOT NULL,
    record TEXT NOT NULL,
    captured_at TIMESTAMP NOT NULL,
    ingested_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_tenant ON account_snapshots(tenant_id);
CREATE INDEX IF NOT EXISTS idx_snapshots_account ON account_snapshots(tenant_id, account_id);
CREATE INDEX IF NOT EXISTS idx_snapshots_captured ON account_snapshots(tenant_id, account_id, captured_at);
`

const schemaAudits = `
CREATE TABLE IF NOT EXISTS audits (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    account_id TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    flags TEXT NOT NULL,
    diagnostics TEXT,
    risk TEXT NOT NULL,
    metadata TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audits_tenant ON audits(tenant_id);
CREATE INDEX IF NOT EXISTS idx_audits_account ON audits(tenant_id, account_id);
CREATE INDEX IF NOT EXISTS idx_audits_timestamp ON audits(tenant_id, timestamp);
`

// schemaCustomRules holds tenant-authored CEL rules evaluated alongside the
// builtin catalog. (id, tenant_id, version) is the identity; the highest
// enabled version wins on read.
const schemaCustomRules = `
CREATE TABLE IF NOT EXISTS custom_rules (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    severity TEXT NOT NULL,
    explanation TEXT,
    citations TEXT,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_custom_rules_tenant ON custom_rules(tenant_id);
CREATE INDEX IF NOT EXISTS idx_custom_rules_enabled ON custom_rules(tenant_id, enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaSnapshots,
		schemaAudits,
		schemaCustomRules,
	}
}
