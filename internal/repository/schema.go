package repository

// Schema definitions for the agencysim database.
// Compatible with both SQLite and PostgreSQL.

// schemaReports keeps the listing columns alongside the full JSON body so
// ListReports never has to decode reports.
const schemaReports = `
CREATE TABLE IF NOT EXISTS reports (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    agency_name TEXT,
    generated_at TIMESTAMP NOT NULL,
    month_count INTEGER NOT NULL,
    combined_ratio REAL NOT NULL,
    bonus_status TEXT,
    cash_warning INTEGER NOT NULL DEFAULT 0,
    body TEXT NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_reports_tenant ON reports(tenant_id);
CREATE INDEX IF NOT EXISTS idx_reports_generated ON reports(tenant_id, generated_at);
CREATE INDEX IF NOT EXISTS idx_reports_bonus ON reports(tenant_id, bonus_status);
`

const schemaScoringRules = `
CREATE TABLE IF NOT EXISTS scoring_rules (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    bands TEXT NOT NULL,
    weight REAL NOT NULL DEFAULT 1.0,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_scoring_rules_tenant ON scoring_rules(tenant_id);
CREATE INDEX IF NOT EXISTS idx_scoring_rules_enabled ON scoring_rules(tenant_id, enabled);
`

const schemaLeadScores = `
CREATE TABLE IF NOT EXISTS lead_scores (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    lead_id TEXT NOT NULL,
    phone TEXT,
    points REAL NOT NULL,
    grade TEXT NOT NULL,
    scored_at TIMESTAMP NOT NULL,
    body TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_lead_scores_tenant ON lead_scores(tenant_id);
CREATE INDEX IF NOT EXISTS idx_lead_scores_phone ON lead_scores(tenant_id, phone, scored_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaReports,
		schemaScoringRules,
		schemaLeadScores,
	}
}
