// Package domain defines the core interfaces and types for agencysim.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Report operations
	SaveReport(ctx context.Context, tenantID string, report *ComprehensiveReport) error
	GetReport(ctx context.Context, tenantID string, reportID string) (*ComprehensiveReport, error)
	ListReports(ctx context.Context, tenantID string, filter ReportFilter) ([]ReportSummary, error)

	// Scoring rule operations
	SaveScoringRule(ctx context.Context, tenantID string, rule *ScoringRule) error
	GetScoringRule(ctx context.Context, tenantID string, ruleID string) (*ScoringRule, error)
	ListScoringRules(ctx context.Context, tenantID string) ([]*ScoringRule, error)
	DeleteScoringRule(ctx context.Context, tenantID string, ruleID string) error

	// Lead score history
	SaveLeadScore(ctx context.Context, tenantID string, score *LeadScore) error
	CountLeadsByPhone(ctx context.Context, tenantID string, phone string, excludeLeadID string, since time.Time) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite", "postgres" or "pgx"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific, shared by the postgres and pgx drivers
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
