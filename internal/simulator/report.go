package simulator

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/opensource-finance/agencysim/internal/domain"
)

// ReportRequest carries caller-simulated months into report generation.
type ReportRequest struct {
	TenantID        string
	AgencyName      string
	Months          []domain.MonthResult
	Customers       []domain.CustomerRecord // the current book
	MarketingBudget float64
}

// GenerateComprehensiveReport segments the current book, recommends a
// marketing split and derives advisory insights from the latest month.
// It does not simulate months itself.
func (s *Simulator) GenerateComprehensiveReport(req ReportRequest) *domain.ComprehensiveReport {
	seg := s.segments.Segment(req.Customers)

	report := &domain.ComprehensiveReport{
		ID:           uuid.New().String(),
		TenantID:     req.TenantID,
		AgencyName:   req.AgencyName,
		GeneratedAt:  s.clock.Now().UTC(),
		Months:       append([]domain.MonthResult(nil), req.Months...),
		Segmentation: seg,
		Marketing:    s.segments.AllocateBudget(req.MarketingBudget, seg),
	}

	rateIncrease := 0.0
	baseRetention := s.assumptions.BaseRetention
	if m := report.Latest(); m != nil {
		rateIncrease = m.Retention.RateIncrease
		baseRetention = m.Retention.BaseRetention
	}
	avgPremium := 0.0
	if seg.TotalCustomers > 0 {
		avgPremium = seg.TotalPremium / float64(seg.TotalCustomers)
	}
	report.LTVOutlook = s.rate.ProjectLTV(avgPremium, baseRetention, s.assumptions.LTVHorizonYears, rateIncrease)

	report.Insights = s.insights(report)
	return report
}

// insights derives the canned advisory messages. They are presentation
// strings only; nothing downstream branches on them except alerting.
func (s *Simulator) insights(r *domain.ComprehensiveReport) []domain.Insight {
	a := s.assumptions
	var out []domain.Insight
	add := func(level domain.InsightLevel, code, format string, args ...any) {
		out = append(out, domain.Insight{Level: level, Code: code, Message: fmt.Sprintf(format, args...)})
	}

	seg := r.Segmentation
	if seg.TotalCustomers > 0 {
		if share := seg.Tier(domain.TierElite).PctOfLTV + seg.Tier(domain.TierPremium).PctOfLTV; share >= a.TopTierConcentrationPct {
			add(domain.InsightInfo, "TOP_TIER_CONCENTRATION",
				"Elite and premium customers hold %.1f%% of book LTV; prioritise their annual reviews.", share)
		}
		if low := seg.Tier(domain.TierLowValue).PctOfBook; low >= a.LowValueAlertPct {
			add(domain.InsightWarning, "LOW_VALUE_HEAVY",
				"%.1f%% of customers have no active product; tighten lead qualification.", low)
		}
		if single := seg.Tier(domain.TierStandard).PctOfBook; single >= a.BundlingOpportunityPct {
			add(domain.InsightInfo, "BUNDLING_OPPORTUNITY",
				"%.1f%% of customers hold a single product; cross-selling a second line lifts expected lifetime.", single)
		}
	}

	m := r.Latest()
	if m == nil {
		return out
	}

	switch bonus := m.Profitability.Bonus; bonus.Status {
	case domain.BonusReduced, domain.BonusWarning:
		add(domain.InsightWarning, "BONUS_AT_RISK",
			"Combined ratio %.3f pays %.0f%% of bonus; review loss drivers before year end.", bonus.CombinedRatio, bonus.Multiplier*100)
	case domain.BonusIneligible:
		add(domain.InsightCritical, "BONUS_INELIGIBLE",
			"Combined ratio %.3f is above %.2f; no bonus is payable.", bonus.CombinedRatio, a.Bonus.WarningMax)
	}

	if m.CashFlow.Warning {
		add(domain.InsightWarning, "CASH_FLOW_GAP",
			"Cash flow trails accrual profit by %.2f; hold %.2f in working capital to cover the %d-month commission lag.",
			m.CashFlow.TimingGap, m.CashFlow.WorkingCapitalNeed, m.CashFlow.CommissionLagMonths)
	}

	if m.Retention.AdjustedRetention < a.RetentionFloor {
		add(domain.InsightWarning, "RETENTION_EROSION",
			"A %.1f%% rate increase drops retention to %.1f%%.", m.Retention.RateIncrease*100, m.Retention.AdjustedRetention*100)
	}

	if len(out) == 0 {
		add(domain.InsightInfo, "ON_TRACK", "All indicators are within target ranges.")
	}
	return out
}
