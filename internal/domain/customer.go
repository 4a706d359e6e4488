package domain

// CustomerTier is a segmentation bucket ordered by product count.
type CustomerTier string

const (
	TierElite    CustomerTier = "elite"
	TierPremium  CustomerTier = "premium"
	TierStandard CustomerTier = "standard"
	TierLowValue CustomerTier = "low_value"
)

// CustomerTiers lists every tier from most to least valuable.
var CustomerTiers = []CustomerTier{TierElite, TierPremium, TierStandard, TierLowValue}

// CustomerRecord is one customer in the book.
//
// The product count is resolved in this order: ProductCount when positive,
// then len(Products), then zero (which classifies as low value).
type CustomerRecord struct {
	ID            string   `json:"id" yaml:"id"`
	Name          string   `json:"name,omitempty" yaml:"name"`
	ProductCount  int      `json:"productCount,omitempty" yaml:"product_count"`
	Products      []string `json:"products,omitempty" yaml:"products"`
	AnnualPremium float64  `json:"annualPremium" yaml:"annual_premium"`
	TenureYears   float64  `json:"tenureYears,omitempty" yaml:"tenure_years"`
}

// ResolvedProductCount resolves the product count using the documented fallback order.
func (c CustomerRecord) ResolvedProductCount() int {
	if c.ProductCount > 0 {
		return c.ProductCount
	}
	return len(c.Products)
}

// TierSummary aggregates one tier of a segmentation.
type TierSummary struct {
	Tier           CustomerTier `json:"tier"`
	Count          int          `json:"count"`
	PctOfBook      float64      `json:"pctOfBook"`
	TotalPremium   float64      `json:"totalPremium"`
	AveragePremium float64      `json:"averagePremium"`
	TotalLTV       float64      `json:"totalLtv"`
	PctOfLTV       float64      `json:"pctOfLtv"`
}

// Segmentation is the tier breakdown of a customer list.
type Segmentation struct {
	TotalCustomers int           `json:"totalCustomers"`
	TotalPremium   float64       `json:"totalPremium"`
	TotalLTV       float64       `json:"totalLtv"`
	Tiers          []TierSummary `json:"tiers"`
}

// Tier returns the summary for t, or a zero summary when absent.
func (s Segmentation) Tier(t CustomerTier) TierSummary {
	for _, ts := range s.Tiers {
		if ts.Tier == t {
			return ts
		}
	}
	return TierSummary{Tier: t}
}

// TierAllocation is one tier's share of a marketing budget.
type TierAllocation struct {
	Tier   CustomerTier `json:"tier"`
	Weight float64      `json:"weight"`
	Share  float64      `json:"share"`
	Amount float64      `json:"amount"`
}

// MarketingAllocation splits a budget across tiers.
type MarketingAllocation struct {
	TotalBudget float64          `json:"totalBudget"`
	Allocations []TierAllocation `json:"allocations"`
}
