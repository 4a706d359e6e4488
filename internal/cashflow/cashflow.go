// Package cashflow contrasts accrual-basis profit with the cash an agency
// actually collects when carriers pay commission in arrears.
package cashflow

import (
	"math"

	"github.com/opensource-finance/agencysim/internal/domain"
)

// MaxLagMonths is the longest commission lag the calculator can model,
// bounded by the two prior months of revenue callers supply.
const MaxLagMonths = 2

// Inputs is one month of revenue and cost figures.
// Any value may be zero or negative.
type Inputs struct {
	Revenue       float64 // revenue accrued this month
	Expenses      float64
	RevenueOneAgo float64 // revenue accrued one month ago
	RevenueTwoAgo float64 // revenue accrued two months ago
	Cancellations float64
}

// Calculator is the cash-flow calculator.
type Calculator struct {
	lag          int
	bufferMonths int
	warningRatio float64
}

// New creates a calculator bound to the given business constants.
// The commission lag is clamped to [0, MaxLagMonths].
func New(a domain.Assumptions) *Calculator {
	lag := a.CommissionLagMonths
	if lag < 0 {
		lag = 0
	}
	if lag > MaxLagMonths {
		lag = MaxLagMonths
	}
	return &Calculator{
		lag:          lag,
		bufferMonths: max(a.BufferMonths, 0),
		warningRatio: a.CashWarningRatio,
	}
}

// LagMonths returns the effective commission lag.
func (c *Calculator) LagMonths() int {
	return c.lag
}

// Analyze computes accrual profit, lagged cash flow and the warning flag.
func (c *Calculator) Analyze(in Inputs) domain.CashFlowReport {
	received := in.Revenue
	switch c.lag {
	case 1:
		received = in.RevenueOneAgo
	case 2:
		received = in.RevenueTwoAgo
	}

	accrual := in.Revenue - in.Cancellations - in.Expenses
	net := received - in.Cancellations - in.Expenses
	gap := accrual - net
	growth := GrowthRate(in.Revenue, in.RevenueOneAgo)

	return domain.CashFlowReport{
		Revenue:             in.Revenue,
		Expenses:            in.Expenses,
		Cancellations:       in.Cancellations,
		AccrualProfit:       accrual,
		CashReceived:        received,
		NetCashFlow:         net,
		TimingGap:           gap,
		GrowthRate:          growth,
		WorkingCapitalNeed:  c.WorkingCapitalNeed(in.Expenses, growth),
		CommissionLagMonths: c.lag,
		Warning:             gap > 0 && gap > c.warningRatio*math.Abs(accrual),
	}
}

// WorkingCapitalNeed estimates the cash buffer needed to cover expenses
// through the commission lag plus the configured buffer, scaled up by
// month-over-month growth. Shrinking books get no discount.
func (c *Calculator) WorkingCapitalNeed(expenses, growthRate float64) float64 {
	months := float64(c.lag + c.bufferMonths)
	return math.Max(expenses, 0) * months * (1 + math.Max(growthRate, 0))
}

// GrowthRate returns the month-over-month change, or zero when the prior
// month is not positive.
func GrowthRate(current, prior float64) float64 {
	if prior <= 0 {
		return 0
	}
	return (current - prior) / prior
}
