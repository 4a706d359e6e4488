// Package pipeline turns report requests into stored reports and alert
// decisions. The HTTP API calls it synchronously; the worker calls it for
// requests arriving on the bus.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/opensource-finance/agencysim/internal/bus"
	"github.com/opensource-finance/agencysim/internal/clock"
	"github.com/opensource-finance/agencysim/internal/domain"
	"github.com/opensource-finance/agencysim/internal/simulator"
)

// DefaultCacheTTL is how long generated reports stay cached.
const DefaultCacheTTL = 15 * time.Minute

// ReportRequest is the payload of a report request.
type ReportRequest struct {
	// ReportID is optional; async callers assign it up front so they can
	// poll for the result.
	ReportID string             `json:"reportId,omitempty"`
	TraceID  string             `json:"traceId,omitempty"`
	Scenario simulator.Scenario `json:"scenario"`
}

// ReportGenerated is published once a report is stored.
type ReportGenerated struct {
	TraceID    string               `json:"traceId,omitempty"`
	Summary    domain.ReportSummary `json:"summary"`
	Decision   Decision             `json:"decision"`
	DurationMs int64                `json:"durationMs"`
}

// Decision is the alert verdict for a report.
type Decision struct {
	Alert    bool                `json:"alert"`
	Severity domain.InsightLevel `json:"severity"`
	Reasons  []domain.Insight    `json:"reasons,omitempty"`
}

// AlertMessage is published when a report needs attention.
type AlertMessage struct {
	ReportID   string              `json:"reportId"`
	TenantID   string              `json:"tenantId"`
	AgencyName string              `json:"agencyName,omitempty"`
	Severity   domain.InsightLevel `json:"severity"`
	Reasons    []domain.Insight    `json:"reasons"`
}

// Processor generates reports and decides whether they alert.
type Processor struct {
	// AlertLevel is the lowest insight level that raises an alert on its own.
	AlertLevel domain.InsightLevel

	// CacheTTL bounds how long a generated report stays cached.
	CacheTTL time.Duration

	sim    *simulator.Simulator
	repo   domain.Repository
	cache  domain.Cache
	bus    domain.EventBus
	clock  clock.Clock
	logger *slog.Logger
}

// NewProcessor creates a processor. repo, cache and bus are optional; a
// missing collaborator skips that step.
func NewProcessor(sim *simulator.Simulator, repo domain.Repository, cache domain.Cache, eventBus domain.EventBus, clk clock.Clock, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		AlertLevel: domain.InsightCritical,
		CacheTTL:   DefaultCacheTTL,
		sim:        sim,
		repo:       repo,
		cache:      cache,
		bus:        eventBus,
		clock:      clock.OrReal(clk),
		logger:     logger,
	}
}

// Process generates, stores and announces one report.
// Storage failures are returned; cache and publish failures are logged.
func (p *Processor) Process(ctx context.Context, tenantID string, req *ReportRequest) (*domain.ComprehensiveReport, Decision, error) {
	if tenantID == "" {
		return nil, Decision{}, fmt.Errorf("tenantID is required")
	}
	if req == nil {
		return nil, Decision{}, fmt.Errorf("report request is required")
	}

	start := p.clock.Now()

	report := p.sim.Report(tenantID, req.Scenario)
	if req.ReportID != "" {
		report.ID = req.ReportID
	}
	decision := p.Decide(report)

	if p.repo != nil {
		if err := p.repo.SaveReport(ctx, tenantID, report); err != nil {
			return nil, decision, fmt.Errorf("failed to save report: %w", err)
		}
	}

	if p.cache != nil {
		if err := p.cache.SetReport(ctx, tenantID, report, p.CacheTTL); err != nil {
			p.logger.Warn("failed to cache report",
				"tenant_id", tenantID,
				"report_id", report.ID,
				"error", err,
			)
		}
	}

	if p.bus != nil {
		p.publish(ctx, tenantID, domain.TopicReportGenerated, ReportGenerated{
			TraceID:    req.TraceID,
			Summary:    report.Summary(),
			Decision:   decision,
			DurationMs: p.clock.Now().Sub(start).Milliseconds(),
		})

		if decision.Alert {
			p.publish(ctx, tenantID, domain.TopicAlert, AlertMessage{
				ReportID:   report.ID,
				TenantID:   tenantID,
				AgencyName: report.AgencyName,
				Severity:   decision.Severity,
				Reasons:    decision.Reasons,
			})
		}
	}

	p.logger.Info("report generated",
		"tenant_id", tenantID,
		"report_id", report.ID,
		"months", len(report.Months),
		"alert", decision.Alert,
		"severity", decision.Severity,
	)

	return report, decision, nil
}

// Decide aggregates a report's insights into an alert verdict. A report
// alerts when its latest month carries a cash-flow warning or an
// ineligible bonus, or when any insight reaches AlertLevel.
func (p *Processor) Decide(r *domain.ComprehensiveReport) Decision {
	d := Decision{Severity: domain.InsightInfo}

	for _, in := range r.Insights {
		if rank(in.Level) > rank(d.Severity) {
			d.Severity = in.Level
		}
		if rank(in.Level) >= rank(domain.InsightWarning) {
			d.Reasons = append(d.Reasons, in)
		}
	}

	d.Alert = r.HasAlert() || rank(d.Severity) >= rank(p.AlertLevel)
	return d
}

func (p *Processor) publish(ctx context.Context, tenantID, topic string, v any) {
	if err := bus.PublishJSON(ctx, p.bus, tenantID, topic, v); err != nil {
		p.logger.Error("failed to publish",
			"tenant_id", tenantID,
			"topic", topic,
			"error", err,
		)
	}
}

func rank(l domain.InsightLevel) int {
	switch l {
	case domain.InsightCritical:
		return 2
	case domain.InsightWarning:
		return 1
	default:
		return 0
	}
}
