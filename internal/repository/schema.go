package repository

// Schema definitions for the Harrier database.
// Compatible with both SQLite and PostgreSQL.

const schemaRuleSets = `
CREATE TABLE IF NOT EXISTS rule_sets (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    markets TEXT NOT NULL,
    active INTEGER NOT NULL DEFAULT 1,
    created_by TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_rule_sets_tenant ON rule_sets(tenant_id);
CREATE INDEX IF NOT EXISTS idx_rule_sets_active ON rule_sets(tenant_id, active);
`

// Rule configurations are stored as JSON text keyed by rule_type and
// decoded through the typed sum type on read.
const schemaSubRules = `
CREATE TABLE IF NOT EXISTS sub_rules (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    rule_set_id TEXT NOT NULL,
    rule_type TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 0,
    config TEXT NOT NULL,
    PRIMARY KEY (id, tenant_id),
    UNIQUE (tenant_id, rule_set_id, rule_type)
);

CREATE INDEX IF NOT EXISTS idx_sub_rules_tenant ON sub_rules(tenant_id);
CREATE INDEX IF NOT EXISTS idx_sub_rules_rule_set ON sub_rules(tenant_id, rule_set_id);
`

const schemaSignalProviders = `
CREATE TABLE IF NOT EXISTS signal_providers (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    active INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_signal_providers_tenant ON signal_providers(tenant_id);
`

// occurred_at keeps the evaluator's raw ISO-8601 string. RFC 3339 sorts
// lexicographically, so range narrowing can compare strings; exact
// semantics live in the filter pipeline.
const schemaBreachEvents = `
CREATE TABLE IF NOT EXISTS breach_events (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    occurred_at TEXT NOT NULL,
    provider_id TEXT NOT NULL,
    market TEXT NOT NULL,
    rule_set_id TEXT NOT NULL,
    sub_rule_id TEXT,
    rule_type TEXT,
    action_taken TEXT NOT NULL,
    details TEXT,
    signal_data TEXT,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_breach_events_tenant ON breach_events(tenant_id);
CREATE INDEX IF NOT EXISTS idx_breach_events_occurred ON breach_events(tenant_id, occurred_at);
CREATE INDEX IF NOT EXISTS idx_breach_events_provider ON breach_events(tenant_id, provider_id);
CREATE INDEX IF NOT EXISTS idx_breach_events_rule_set ON breach_events(tenant_id, rule_set_id);
`

const schemaActiveCooldowns = `
CREATE TABLE IF NOT EXISTS active_cooldowns (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    provider_id TEXT NOT NULL,
    market TEXT NOT NULL,
    rule_set_id TEXT NOT NULL,
    sub_rule_id TEXT,
    started_at TIMESTAMP NOT NULL,
    expires_at TIMESTAMP NOT NULL,
    status TEXT NOT NULL DEFAULT 'active',
    end_reason TEXT,
    ended_by TEXT,
    ended_at TIMESTAMP,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_active_cooldowns_tenant ON active_cooldowns(tenant_id);
CREATE INDEX IF NOT EXISTS idx_active_cooldowns_status ON active_cooldowns(tenant_id, status);
CREATE INDEX IF NOT EXISTS idx_active_cooldowns_expires ON active_cooldowns(status, expires_at);
`

const schemaProviderStatistics = `
CREATE TABLE IF NOT EXISTS provider_statistics (
    provider_id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    total_signals INTEGER NOT NULL DEFAULT 0,
    winning_signals INTEGER NOT NULL DEFAULT 0,
    win_rate TEXT NOT NULL DEFAULT '0',
    net_pips TEXT NOT NULL DEFAULT '0',
    breach_count INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (provider_id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_provider_statistics_tenant ON provider_statistics(tenant_id);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaRuleSets,
		schemaSubRules,
		schemaSignalProviders,
		schemaBreachEvents,
		schemaActiveCooldowns,
		schemaProviderStatistics,
	}
}
