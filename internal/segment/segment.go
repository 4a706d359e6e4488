// Package segment buckets a customer book into value tiers and splits a
// marketing budget across them.
package segment

import (
	"math"

	"github.com/opensource-finance/agencysim/internal/domain"
	"github.com/shopspring/decimal"
)

// Calculator is the customer-segmentation calculator.
type Calculator struct {
	assumptions domain.Assumptions
}

// New creates a calculator bound to the given business constants.
func New(a domain.Assumptions) *Calculator {
	return &Calculator{assumptions: a}
}

// Classify returns the tier for a customer.
// Customers with no resolvable product count fall through to low value.
func Classify(c domain.CustomerRecord) domain.CustomerTier {
	switch n := c.ResolvedProductCount(); {
	case n >= 3:
		return domain.TierElite
	case n == 2:
		return domain.TierPremium
	case n == 1:
		return domain.TierStandard
	default:
		return domain.TierLowValue
	}
}

// ExpectedLifetime returns the expected tenure in years for a tier,
// 1/(1-retention) capped at MaxLifetimeYears.
func (c *Calculator) ExpectedLifetime(tier domain.CustomerTier) float64 {
	maxYears := c.assumptions.MaxLifetimeYears
	retention := c.assumptions.TierRetention[tier]
	if retention >= 1 {
		return maxYears
	}
	if retention <= 0 {
		return 1
	}
	return math.Min(1/(1-retention), maxYears)
}

// CustomerLTV is the commission a customer is expected to earn the agency
// over their tier's expected lifetime.
func (c *Calculator) CustomerLTV(cust domain.CustomerRecord) float64 {
	premium := math.Max(cust.AnnualPremium, 0)
	return premium * c.assumptions.CommissionRate * c.ExpectedLifetime(Classify(cust))
}

// Segment partitions customers into tiers. Every tier is always present in
// the result, in order from elite to low value; an empty list yields zero
// aggregates.
func (c *Calculator) Segment(customers []domain.CustomerRecord) domain.Segmentation {
	byTier := make(map[domain.CustomerTier]*domain.TierSummary, len(domain.CustomerTiers))
	for _, tier := range domain.CustomerTiers {
		byTier[tier] = &domain.TierSummary{Tier: tier}
	}

	seg := domain.Segmentation{TotalCustomers: len(customers)}
	for _, cust := range customers {
		ts := byTier[Classify(cust)]
		ltv := c.CustomerLTV(cust)

		ts.Count++
		ts.TotalPremium += cust.AnnualPremium
		ts.TotalLTV += ltv
		seg.TotalPremium += cust.AnnualPremium
		seg.TotalLTV += ltv
	}

	seg.Tiers = make([]domain.TierSummary, 0, len(domain.CustomerTiers))
	for _, tier := range domain.CustomerTiers {
		ts := byTier[tier]
		ts.PctOfBook = pct(float64(ts.Count), float64(seg.TotalCustomers))
		ts.PctOfLTV = pct(ts.TotalLTV, seg.TotalLTV)
		if ts.Count > 0 {
			ts.AveragePremium = ts.TotalPremium / float64(ts.Count)
		}
		seg.Tiers = append(seg.Tiers, *ts)
	}
	return seg
}

// TopTierLTVShare returns the percentage of LTV held by elite and premium
// customers.
func TopTierLTVShare(seg domain.Segmentation) float64 {
	return seg.Tier(domain.TierElite).PctOfLTV + seg.Tier(domain.TierPremium).PctOfLTV
}

// AllocateBudget splits total across tiers in proportion to tier weight
// times tier headcount. With an empty book the split falls back to the
// bare tier weights. Amounts are exact to the cent; any rounding remainder
// goes to the largest share.
func (c *Calculator) AllocateBudget(total float64, seg domain.Segmentation) domain.MarketingAllocation {
	out := domain.MarketingAllocation{
		TotalBudget: total,
		Allocations: make([]domain.TierAllocation, 0, len(domain.CustomerTiers)),
	}

	raw := make([]decimal.Decimal, len(domain.CustomerTiers))
	sum := decimal.Zero
	for i, tier := range domain.CustomerTiers {
		raw[i] = decimal.NewFromFloat(c.assumptions.TierWeights[tier]).Mul(decimal.NewFromInt(int64(seg.Tier(tier).Count)))
		sum = sum.Add(raw[i])
	}
	if !sum.IsPositive() {
		sum = decimal.Zero
		for i, tier := range domain.CustomerTiers {
			raw[i] = decimal.NewFromFloat(c.assumptions.TierWeights[tier])
			sum = sum.Add(raw[i])
		}
	}

	budget := decimal.NewFromFloat(math.Max(total, 0)).Round(2)
	allocated := decimal.Zero
	largest := 0
	amounts := make([]decimal.Decimal, len(raw))

	for i := range raw {
		if sum.IsPositive() {
			amounts[i] = budget.Mul(raw[i]).Div(sum).RoundFloor(2)
		} else {
			amounts[i] = decimal.Zero
		}
		allocated = allocated.Add(amounts[i])
		if raw[i].GreaterThan(raw[largest]) {
			largest = i
		}
	}
	if sum.IsPositive() {
		amounts[largest] = amounts[largest].Add(budget.Sub(allocated))
	}

	for i, tier := range domain.CustomerTiers {
		share := 0.0
		if sum.IsPositive() {
			share = raw[i].Div(sum).InexactFloat64()
		}
		out.Allocations = append(out.Allocations, domain.TierAllocation{
			Tier:   tier,
			Weight: c.assumptions.TierWeights[tier],
			Share:  share,
			Amount: amounts[i].InexactFloat64(),
		})
	}
	return out
}

func pct(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return part / whole * 100
}
