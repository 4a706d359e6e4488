// Package rateenv models how rate increases erode retention and how
// retention and rate inflation compound into customer lifetime value.
package rateenv

import (
	"math"

	"github.com/opensource-finance/agencysim/internal/domain"
)

// Calculator is the rate-environment calculator.
type Calculator struct {
	assumptions domain.Assumptions
}

// New creates a calculator bound to the given business constants.
func New(a domain.Assumptions) *Calculator {
	return &Calculator{assumptions: a}
}

// Churn returns the additional churn caused by a rate increase.
//
// The curve is linear with slope Elasticity, plus a second slope
// ShockElasticity for the part of the increase above ShockThreshold.
// Rate decreases are treated as no increase.
func (c *Calculator) Churn(rateIncrease float64) float64 {
	r := math.Max(rateIncrease, 0)
	a := c.assumptions
	return a.Elasticity*r + a.ShockElasticity*math.Max(0, r-a.ShockThreshold)
}

// AdjustRetention applies the churn curve to a base retention rate.
// The adjusted rate is clamped to [0, 1].
func (c *Calculator) AdjustRetention(rateIncrease, baseRetention float64) domain.RetentionImpact {
	churn := c.Churn(rateIncrease)
	return domain.RetentionImpact{
		RateIncrease:      rateIncrease,
		BaseRetention:     baseRetention,
		AdditionalChurn:   churn,
		AdjustedRetention: clamp(baseRetention-churn, 0, 1),
	}
}

// ProjectLTV compounds retention-weighted commission over a horizon.
//
// Year y (starting at 0) earns basePremium*(1+rate)^y of premium, survives
// with probability retention^y, pays CommissionRate of that premium and is
// discounted at DiscountRate. The retention used is the base retention
// adjusted for the annual rate increase.
func (c *Calculator) ProjectLTV(basePremium, baseRetention float64, years int, annualRateIncrease float64) domain.LTVProjection {
	retention := c.AdjustRetention(annualRateIncrease, baseRetention).AdjustedRetention

	out := domain.LTVProjection{
		BasePremium:       basePremium,
		AdjustedRetention: retention,
	}
	if years <= 0 {
		return out
	}

	out.Years = make([]domain.LTVYear, 0, years)
	for y := 0; y < years; y++ {
		premium := basePremium * math.Pow(1+annualRateIncrease, float64(y))
		survival := math.Pow(retention, float64(y))
		commission := premium * survival * c.assumptions.CommissionRate
		discounted := commission / math.Pow(1+c.assumptions.DiscountRate, float64(y))

		out.Years = append(out.Years, domain.LTVYear{
			Year:            y + 1,
			Premium:         premium,
			Survival:        survival,
			Commission:      commission,
			DiscountedValue: discounted,
		})
		out.LTV += discounted
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
