// Package scoring grades inbound leads with a configurable heuristic plus
// optional CEL adjustment rules.
package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/agencysim/internal/clock"
	"github.com/opensource-finance/agencysim/internal/domain"
	"github.com/opensource-finance/agencysim/internal/rules"
	"github.com/opensource-finance/agencysim/internal/velocity"
)

// DuplicateCounter reports how many other leads share a phone number.
type DuplicateCounter interface {
	DuplicateCount(ctx context.Context, tenantID, leadID, phone string) (int64, error)
}

// Heuristic scores a lead against cfg as of now. It is a pure function of
// its arguments.
func Heuristic(cfg Config, lead *domain.Lead, now time.Time) (domain.ScoreComponents, int) {
	days := DaysOld(lead.ReceivedAt, now)

	c := domain.ScoreComponents{
		Vendor:   lookup(cfg.VendorScores, lead.NormalizedVendor(), cfg.DefaultVendorScore),
		Hour:     hourPoints(cfg, lead.ReceivedAt.Hour()),
		Weekday:  lookup(cfg.WeekdayScores, weekday(lead.ReceivedAt), 0),
		Recency:  recencyPoints(cfg, days),
		Duration: durationPoints(cfg, lead.CallDuration),
		Status:   lookup(cfg.StatusScores, lead.NormalizedStatus(), cfg.DefaultStatusScore),
	}
	return c, days
}

// DaysOld returns whole days between receivedAt and now, never negative.
func DaysOld(receivedAt, now time.Time) int {
	if receivedAt.IsZero() || !now.After(receivedAt) {
		return 0
	}
	return int(now.Sub(receivedAt).Hours() / 24)
}

// Grade buckets a point total.
func Grade(cfg Config, points float64) domain.LeadGrade {
	switch {
	case points >= cfg.HotThreshold:
		return domain.GradeHot
	case points >= cfg.WarmThreshold:
		return domain.GradeWarm
	default:
		return domain.GradeCold
	}
}

// Scorer combines the heuristic, duplicate detection and adjustment rules.
type Scorer struct {
	cfg        Config
	clock      clock.Clock
	engine     *rules.Engine
	duplicates DuplicateCounter
	logger     *slog.Logger
}

// NewScorer creates a scorer. The rule engine and duplicate counter are
// optional; a nil clock uses the system time.
func NewScorer(cfg Config, clk clock.Clock, engine *rules.Engine, duplicates DuplicateCounter, logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{
		cfg:        cfg,
		clock:      clock.OrReal(clk),
		engine:     engine,
		duplicates: duplicates,
		logger:     logger,
	}
}

// Config returns the scorer's weights.
func (s *Scorer) Config() Config {
	return s.cfg
}

// Score grades one lead. Duplicate-count failures are logged and treated as
// zero; rule failures are returned.
func (s *Scorer) Score(ctx context.Context, tenantID string, lead *domain.Lead) (*domain.LeadScore, error) {
	if lead == nil {
		return nil, fmt.Errorf("lead is required")
	}

	now := s.clock.Now()
	components, days := Heuristic(s.cfg, lead, now)

	var dupes int64
	if s.duplicates != nil && lead.Phone != "" {
		n, err := s.duplicates.DuplicateCount(ctx, tenantID, lead.ID, lead.Phone)
		if err != nil {
			s.logger.Warn("duplicate lookup failed", "tenant", tenantID, "lead", lead.ID, "error", err)
		} else {
			dupes = n
		}
	}

	base := components.Vendor + components.Hour + components.Weekday +
		components.Recency + components.Duration + components.Status

	score := &domain.LeadScore{
		ID:             uuid.New().String(),
		TenantID:       tenantID,
		LeadID:         lead.ID,
		Phone:          velocity.NormalizePhone(lead.Phone),
		DaysOld:        days,
		DuplicateCount: dupes,
		ScoredAt:       now.UTC(),
	}

	if s.engine != nil && s.engine.RulesCount() > 0 {
		results, err := s.engine.EvaluateAll(ctx, &rules.LeadInput{
			TenantID:       tenantID,
			LeadID:         lead.ID,
			Vendor:         lead.NormalizedVendor(),
			Status:         lead.NormalizedStatus(),
			Product:        strings.ToLower(lead.Product),
			State:          strings.ToUpper(lead.State),
			Hour:           lead.ReceivedAt.Hour(),
			Weekday:        weekday(lead.ReceivedAt),
			DaysOld:        days,
			CallSeconds:    lead.CallDuration,
			DuplicateCount: dupes,
			BasePoints:     base,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate scoring rules: %w", err)
		}
		score.RuleResults = results
		for _, r := range results {
			if r.Outcome == domain.RuleOutcomeError {
				s.logger.Warn("scoring rule failed", "rule", r.RuleID, "lead", lead.ID, "reason", r.Reason)
				continue
			}
			components.Rules += r.Points
			if r.Outcome == domain.RuleOutcomeBoost || r.Outcome == domain.RuleOutcomePenalty {
				score.Reasons = append(score.Reasons, r.Reason)
			}
		}
	}

	score.Components = components
	score.Points = math.Min(math.Max(base+components.Rules, 0), s.cfg.MaxPoints)
	score.Grade = Grade(s.cfg, score.Points)

	return score, nil
}

func lookup(m map[string]float64, key string, fallback float64) float64 {
	if v, ok := m[key]; ok {
		return v
	}
	return fallback
}

func weekday(t time.Time) string {
	return strings.ToLower(t.Weekday().String())
}

func hourPoints(cfg Config, hour int) float64 {
	for _, b := range cfg.HourBands {
		if hour >= b.From && hour < b.To {
			return b.Points
		}
	}
	return cfg.OffHoursPoints
}

func recencyPoints(cfg Config, days int) float64 {
	for _, b := range cfg.RecencyBands {
		if days <= b.MaxDays {
			return b.Points
		}
	}
	return cfg.StaleRecencyPoints
}

func durationPoints(cfg Config, seconds int) float64 {
	for _, b := range cfg.DurationBands {
		if seconds >= b.MinSeconds {
			return b.Points
		}
	}
	return 0
}
