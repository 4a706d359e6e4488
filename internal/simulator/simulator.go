// Package simulator composes the loss-ratio, rate-environment, cash-flow
// and segmentation calculators into a month-by-month agency model.
//
// SimulateMonth is a pure transform of one month's inputs. The simulator
// holds no state between calls; callers that iterate months carry prior
// premiums and the customer book forward themselves, or use Run.
package simulator

import (
	"github.com/opensource-finance/agencysim/internal/cashflow"
	"github.com/opensource-finance/agencysim/internal/clock"
	"github.com/opensource-finance/agencysim/internal/domain"
	"github.com/opensource-finance/agencysim/internal/lossratio"
	"github.com/opensource-finance/agencysim/internal/rateenv"
	"github.com/opensource-finance/agencysim/internal/segment"
)

// Simulator is the simulation orchestrator.
type Simulator struct {
	assumptions domain.Assumptions
	clock       clock.Clock

	loss     *lossratio.Calculator
	rate     *rateenv.Calculator
	cash     *cashflow.Calculator
	segments *segment.Calculator
}

// New creates a simulator. A nil clock uses the system time.
func New(a domain.Assumptions, clk clock.Clock) *Simulator {
	return &Simulator{
		assumptions: a,
		clock:       clock.OrReal(clk),
		loss:        lossratio.New(a),
		rate:        rateenv.New(a),
		cash:        cashflow.New(a),
		segments:    segment.New(a),
	}
}

// Assumptions returns the business constants the simulator was built with.
func (s *Simulator) Assumptions() domain.Assumptions {
	return s.assumptions
}

// SimulateMonth runs every calculator on one month of inputs and merges the
// results. Zero and negative figures produce zero-valued sections rather
// than errors.
func (s *Simulator) SimulateMonth(in domain.MonthlyInputs) domain.MonthResult {
	portfolio := s.loss.Portfolio(in.ProductMix)

	baseRetention := s.assumptions.BaseRetention
	if in.BaseRetention != nil {
		baseRetention = *in.BaseRetention
	}

	// Cash flow runs on the agency's commission, not the carrier premium.
	commission := s.assumptions.CommissionRate
	cash := s.cash.Analyze(cashflow.Inputs{
		Revenue:       in.NewPremium * commission,
		Expenses:      in.MonthlyExpenses,
		RevenueOneAgo: in.PriorMonthPremium * commission,
		RevenueTwoAgo: in.TwoMonthsAgoPremium * commission,
		Cancellations: in.CancelledPremium * commission,
	})

	return domain.MonthResult{
		Month: in.Month,
		Profitability: domain.Profitability{
			Portfolio:         portfolio,
			CombinedRatio:     portfolio.CombinedRatio,
			Bonus:             portfolio.Bonus,
			CommissionRevenue: portfolio.CommissionRevenue,
			AgencyProfit:      portfolio.AgencyProfit,
		},
		Retention:       s.rate.AdjustRetention(in.RateIncrease, baseRetention),
		CashFlow:        cash,
		CustomerQuality: customerQuality(s.segments.Segment(in.NewCustomers)),
	}
}

func customerQuality(seg domain.Segmentation) domain.CustomerQuality {
	q := domain.CustomerQuality{
		TotalCustomers:  seg.TotalCustomers,
		SegmentPct:      make(map[domain.CustomerTier]float64, len(seg.Tiers)),
		LTVContribution: make(map[domain.CustomerTier]float64, len(seg.Tiers)),
		TotalLTV:        seg.TotalLTV,
		TopTierLTVShare: segment.TopTierLTVShare(seg),
	}
	for _, ts := range seg.Tiers {
		q.SegmentPct[ts.Tier] = ts.PctOfBook
		q.LTVContribution[ts.Tier] = ts.TotalLTV
	}
	return q
}
