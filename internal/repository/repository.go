// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/goccy/go-json"
	"github.com/opensource-finance/agencysim/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// DefaultListLimit caps report listings that do not set a limit.
const DefaultListLimit = 100

// SQLRepository implements domain.Repository using database/sql.
// Works with SQLite and with PostgreSQL through either lib/pq or pgx.
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
	case "postgres", "pgx":
		db, err = openPostgres(cfg.Driver, cfg)
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

// SaveReport stores a report with tenant isolation. Saving the same ID
// again replaces the stored report.
func (r *SQLRepository) SaveReport(ctx context.Context, tenantID string, report *domain.ComprehensiveReport) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if report == nil || report.ID == "" {
		return fmt.Errorf("%w: report id is required", ErrInvalidInput)
	}

	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	s := report.Summary()

	query := `
		INSERT INTO reports (
			id, tenant_id, agency_name, generated_at, month_count,
			combined_ratio, bonus_status, cash_warning, body
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			agency_name = excluded.agency_name,
			generated_at = excluded.generated_at,
			month_count = excluded.month_count,
			combined_ratio = excluded.combined_ratio,
			bonus_status = excluded.bonus_status,
			cash_warning = excluded.cash_warning,
			body = excluded.body
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		report.ID, tenantID, s.AgencyName, dbTime(s.GeneratedAt), s.MonthCount,
		s.CombinedRatio, string(s.BonusStatus), boolInt(s.CashWarning), string(body),
	)
	return err
}

// GetReport retrieves a report by ID with tenant isolation.
func (r *SQLRepository) GetReport(ctx context.Context, tenantID string, reportID string) (*domain.ComprehensiveReport, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `SELECT body FROM reports WHERE tenant_id = ? AND id = ?`

	var body string
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, reportID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var report domain.ComprehensiveReport
	if err := json.Unmarshal([]byte(body), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", reportID, err)
	}
	report.TenantID = tenantID
	return &report, nil
}

// ListReports returns report summaries for a tenant, newest first.
func (r *SQLRepository) ListReports(ctx context.Context, tenantID string, filter domain.ReportFilter) ([]domain.ReportSummary, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	q := sq.Select(
		"id", "tenant_id", "agency_name", "generated_at", "month_count",
		"combined_ratio", "bonus_status", "cash_warning",
	).From("reports").Where(sq.Eq{"tenant_id": tenantID})

	if filter.BonusStatus != "" {
		q = q.Where(sq.Eq{"bonus_status": string(filter.BonusStatus)})
	}
	if filter.CashWarning != nil {
		q = q.Where(sq.Eq{"cash_warning": boolInt(*filter.CashWarning)})
	}
	if !filter.Since.IsZero() {
		q = q.Where(sq.GtOrEq{"generated_at": dbTime(filter.Since)})
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	q = q.OrderBy("generated_at DESC", "id").Limit(uint64(limit))

	if r.postgres() {
		q = q.PlaceholderFormat(sq.Dollar)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build report query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []domain.ReportSummary{}
	for rows.Next() {
		var s domain.ReportSummary
		var agency, bonus sql.NullString
		var warning int

		if err := rows.Scan(
			&s.ID, &s.TenantID, &agency, &s.GeneratedAt, &s.MonthCount,
			&s.CombinedRatio, &bonus, &warning,
		); err != nil {
			return nil, err
		}

		s.AgencyName = agency.String
		s.BonusStatus = domain.BonusStatus(bonus.String)
		s.CashWarning = warning == 1
		s.GeneratedAt = s.GeneratedAt.UTC()
		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}

// SaveScoringRule stores a scoring rule with tenant isolation.
func (r *SQLRepository) SaveScoringRule(ctx context.Context, tenantID string, rule *domain.ScoringRule) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}

	bands, err := json.Marshal(rule.Bands)
	if err != nil {
		return fmt.Errorf("failed to encode rule bands: %w", err)
	}

	version := rule.Version
	if version == "" {
		version = "1.0.0"
	}

	now := dbTime(time.Now())

	query := `
		INSERT INTO scoring_rules (
			id, tenant_id, name, description, version, expression, bands, weight, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			bands = excluded.bands,
			weight = excluded.weight,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.Name, rule.Description,
		version, rule.Expression, string(bands), rule.Weight, boolInt(rule.Enabled),
		now, now,
	)
	return err
}

// GetScoringRule retrieves the latest enabled version of a rule.
func (r *SQLRepository) GetScoringRule(ctx context.Context, tenantID string, ruleID string) (*domain.ScoringRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, bands, weight, enabled
		FROM scoring_rules
		WHERE tenant_id = ? AND id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	rule, err := scanRule(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, ruleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rule, err
}

// ListScoringRules retrieves all enabled scoring rules for a tenant.
func (r *SQLRepository) ListScoringRules(ctx context.Context, tenantID string) ([]*domain.ScoringRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, bands, weight, enabled
		FROM scoring_rules
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY name, id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ScoringRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}

	return out, rows.Err()
}

// DeleteScoringRule soft-deletes every version of a rule by setting enabled = 0.
func (r *SQLRepository) DeleteScoringRule(ctx context.Context, tenantID string, ruleID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		UPDATE scoring_rules
		SET enabled = 0, updated_at = ?
		WHERE tenant_id = ? AND id = ? AND enabled = 1
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), dbTime(time.Now()), tenantID, ruleID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// SaveLeadScore records a scored lead with tenant isolation.
func (r *SQLRepository) SaveLeadScore(ctx context.Context, tenantID string, score *domain.LeadScore) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if score == nil || score.ID == "" {
		return fmt.Errorf("%w: score id is required", ErrInvalidInput)
	}

	body, err := json.Marshal(score)
	if err != nil {
		return fmt.Errorf("failed to encode lead score: %w", err)
	}

	query := `
		INSERT INTO lead_scores (
			id, tenant_id, lead_id, phone, points, grade, scored_at, body
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		score.ID, tenantID, score.LeadID, score.Phone, score.Points,
		string(score.Grade), dbTime(score.ScoredAt), string(body),
	)
	return err
}

// CountLeadsByPhone counts distinct leads scored for phone since the given
// time. Scores of excludeLeadID are ignored so a re-scored lead is not its
// own duplicate.
func (r *SQLRepository) CountLeadsByPhone(ctx context.Context, tenantID string, phone string, excludeLeadID string, since time.Time) (int64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT COUNT(DISTINCT lead_id)
		FROM lead_scores
		WHERE tenant_id = ? AND phone = ? AND lead_id <> ? AND scored_at >= ?
	`

	var count int64
	if err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, phone, excludeLeadID, dbTime(since)).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*domain.ScoringRule, error) {
	var rule domain.ScoringRule
	var description sql.NullString
	var bands string
	var enabled int

	if err := row.Scan(
		&rule.ID, &rule.TenantID, &rule.Name, &description,
		&rule.Version, &rule.Expression, &bands, &rule.Weight, &enabled,
	); err != nil {
		return nil, err
	}

	rule.Description = description.String
	rule.Enabled = enabled == 1
	if err := json.Unmarshal([]byte(bands), &rule.Bands); err != nil {
		return nil, fmt.Errorf("failed to parse bands for rule %s: %w", rule.ID, err)
	}
	return &rule, nil
}

func (r *SQLRepository) postgres() bool {
	return r.driver == "postgres" || r.driver == "pgx"
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if !r.postgres() {
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

// dbTime normalises timestamps to whole UTC seconds so that stored values
// compare consistently as text in SQLite.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
