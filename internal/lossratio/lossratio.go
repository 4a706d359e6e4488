// Package lossratio computes per-product and portfolio loss ratios,
// combined ratios, agency profit and bonus eligibility.
package lossratio

import (
	"sort"
	"strings"

	"github.com/opensource-finance/agencysim/internal/domain"
	"github.com/shopspring/decimal"
)

// bracketPrecision is the number of decimal places a combined ratio is
// rounded to before it is compared against the bonus thresholds.
const bracketPrecision = 6

// Calculator is the loss-ratio calculator.
type Calculator struct {
	assumptions domain.Assumptions
}

// New creates a calculator bound to the given business constants.
func New(a domain.Assumptions) *Calculator {
	return &Calculator{assumptions: a}
}

// Product computes the metrics for a single product line.
// A product with no premium has a loss ratio of zero.
func (c *Calculator) Product(name string, in domain.ProductInput) domain.ProductMetrics {
	premium := decimal.NewFromFloat(in.Premium)
	claims := decimal.NewFromFloat(in.Claims)

	lossRatio := ratio(claims, premium)
	commission := premium.Mul(decimal.NewFromFloat(c.assumptions.CommissionRate))
	servicing := decimal.NewFromFloat(c.ServicingCost(name)).Mul(decimal.NewFromInt(int64(in.Policies)))

	return domain.ProductMetrics{
		Product:           name,
		Premium:           in.Premium,
		Claims:            in.Claims,
		Policies:          in.Policies,
		LossRatio:         lossRatio.InexactFloat64(),
		CombinedRatio:     lossRatio.Add(decimal.NewFromFloat(c.assumptions.ExpenseRatio)).InexactFloat64(),
		CommissionRevenue: commission.Round(2).InexactFloat64(),
		ServicingCost:     servicing.Round(2).InexactFloat64(),
		AgencyProfit:      commission.Sub(servicing).Round(2).InexactFloat64(),
	}
}

// Portfolio computes every product in mix and aggregates them.
// Portfolio ratios are recomputed from summed premium and claims, so each
// product is implicitly weighted by its premium.
func (c *Calculator) Portfolio(mix map[string]domain.ProductInput) domain.PortfolioReport {
	names := make([]string, 0, len(mix))
	for name := range mix {
		names = append(names, name)
	}
	sort.Strings(names)

	report := domain.PortfolioReport{
		Products: make([]domain.ProductMetrics, 0, len(names)),
	}

	premium := decimal.Zero
	claims := decimal.Zero
	commission := decimal.Zero
	servicing := decimal.Zero

	for _, name := range names {
		in := mix[name]
		m := c.Product(name, in)
		report.Products = append(report.Products, m)
		report.TotalPolicies += in.Policies

		premium = premium.Add(decimal.NewFromFloat(in.Premium))
		claims = claims.Add(decimal.NewFromFloat(in.Claims))
		commission = commission.Add(decimal.NewFromFloat(m.CommissionRevenue))
		servicing = servicing.Add(decimal.NewFromFloat(m.ServicingCost))
	}

	lossRatio := ratio(claims, premium)
	report.TotalPremium = premium.InexactFloat64()
	report.TotalClaims = claims.InexactFloat64()
	report.LossRatio = lossRatio.InexactFloat64()
	report.CombinedRatio = lossRatio.Add(decimal.NewFromFloat(c.assumptions.ExpenseRatio)).InexactFloat64()
	report.CommissionRevenue = commission.InexactFloat64()
	report.ServicingCost = servicing.InexactFloat64()
	report.AgencyProfit = commission.Sub(servicing).InexactFloat64()
	report.Bonus = c.Bonus(report.CombinedRatio)

	return report
}

// Bonus maps a combined ratio to a bonus multiplier and status.
// Each bracket's upper bound is inclusive.
func (c *Calculator) Bonus(combinedRatio float64) domain.BonusEligibility {
	b := c.assumptions.Bonus
	cr := decimal.NewFromFloat(combinedRatio).Round(bracketPrecision)

	out := domain.BonusEligibility{CombinedRatio: combinedRatio}
	switch {
	case cr.LessThanOrEqual(decimal.NewFromFloat(b.FullMax)):
		out.Multiplier, out.Status = 1.0, domain.BonusFull
	case cr.LessThanOrEqual(decimal.NewFromFloat(b.ReducedMax)):
		out.Multiplier, out.Status = 0.75, domain.BonusReduced
	case cr.LessThanOrEqual(decimal.NewFromFloat(b.WarningMax)):
		out.Multiplier, out.Status = 0.5, domain.BonusWarning
	default:
		out.Multiplier, out.Status = 0.0, domain.BonusIneligible
	}
	return out
}

// Project estimates a product line from an expected loss ratio.
// Home lines carry the catastrophe loading on top of the expected ratio;
// actuals computed by Product never do.
func (c *Calculator) Project(name string, premium, expectedLossRatio float64, policies int) domain.ProductProjection {
	load := 0.0
	if strings.EqualFold(name, domain.ProductHome) {
		load = c.assumptions.HomeCatastropheLoading
	}

	p := decimal.NewFromFloat(premium)
	lossRatio := decimal.NewFromFloat(expectedLossRatio).Add(decimal.NewFromFloat(load))
	claims := decimal.Zero
	if p.IsPositive() {
		claims = p.Mul(lossRatio)
	}

	actual := c.Product(name, domain.ProductInput{
		Premium:  premium,
		Claims:   claims.InexactFloat64(),
		Policies: policies,
	})

	return domain.ProductProjection{
		Product:           name,
		Premium:           premium,
		ExpectedLossRatio: expectedLossRatio,
		CatastropheLoad:   load,
		ProjectedClaims:   claims.Round(2).InexactFloat64(),
		CombinedRatio:     actual.CombinedRatio,
		AgencyProfit:      actual.AgencyProfit,
	}
}

// ServicingCost returns the per-policy servicing cost for a product line.
func (c *Calculator) ServicingCost(product string) float64 {
	if cost, ok := c.assumptions.ServicingCosts[strings.ToLower(product)]; ok {
		return cost
	}
	return c.assumptions.DefaultServicingCost
}

// ratio divides num by den, returning zero when den is not positive.
func ratio(num, den decimal.Decimal) decimal.Decimal {
	if !den.IsPositive() {
		return decimal.Zero
	}
	return num.Div(den)
}
