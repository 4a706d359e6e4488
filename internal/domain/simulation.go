package domain

import (
	"fmt"
	"time"
)

// Product line labels with dedicated servicing costs.
const (
	ProductAuto     = "auto"
	ProductHome     = "home"
	ProductUmbrella = "umbrella"
	ProductLife     = "life"
)

// ProductInput is the caller-supplied book for one product line.
type ProductInput struct {
	Premium  float64 `json:"premium" yaml:"premium"`
	Claims   float64 `json:"claims" yaml:"claims"`
	Policies int     `json:"policies" yaml:"policies"`
}

// MonthlyInputs is everything the orchestrator needs to simulate one month.
// Premium and expense values are expected to be non-negative.
type MonthlyInputs struct {
	Month               string                  `json:"month,omitempty" yaml:"month"`
	NewPremium          float64                 `json:"newPremium" yaml:"new_premium"`
	PriorMonthPremium   float64                 `json:"priorMonthPremium" yaml:"prior_month_premium"`
	TwoMonthsAgoPremium float64                 `json:"twoMonthsAgoPremium" yaml:"two_months_ago_premium"`
	MonthlyExpenses     float64                 `json:"monthlyExpenses" yaml:"monthly_expenses"`
	CancelledPremium    float64                 `json:"cancelledPremium" yaml:"cancelled_premium"`
	ProductMix          map[string]ProductInput `json:"productMix" yaml:"product_mix"`
	NewCustomers        []CustomerRecord        `json:"newCustomers,omitempty" yaml:"new_customers"` // customers segmented this month
	RateIncrease        float64                 `json:"rateIncrease" yaml:"rate_increase"`

	// BaseRetention falls back to Assumptions.BaseRetention when nil.
	BaseRetention *float64 `json:"baseRetention,omitempty" yaml:"base_retention"`

	// ExplicitPriors makes a multi-month run use both prior premiums as
	// given, zero included, instead of carrying them from earlier months.
	ExplicitPriors bool `json:"explicitPriors,omitempty" yaml:"explicit_priors"`
}

// Validate checks the non-negative premium and expense invariant. The
// calculators never call it and degrade to zero results instead; it guards
// external boundaries such as the HTTP API. Rate increases are not checked.
func (m MonthlyInputs) Validate() error {
	for name, v := range map[string]float64{
		"newPremium":          m.NewPremium,
		"priorMonthPremium":   m.PriorMonthPremium,
		"twoMonthsAgoPremium": m.TwoMonthsAgoPremium,
		"monthlyExpenses":     m.MonthlyExpenses,
		"cancelledPremium":    m.CancelledPremium,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	for product, p := range m.ProductMix {
		if p.Premium < 0 || p.Claims < 0 || p.Policies < 0 {
			return fmt.Errorf("productMix.%s values must not be negative", product)
		}
	}
	if m.BaseRetention != nil && (*m.BaseRetention < 0 || *m.BaseRetention > 1) {
		return fmt.Errorf("baseRetention must be between 0 and 1")
	}
	return nil
}

// ProductMetrics is the computed result for one product line.
type ProductMetrics struct {
	Product           string  `json:"product"`
	Premium           float64 `json:"premium"`
	Claims            float64 `json:"claims"`
	Policies          int     `json:"policies"`
	LossRatio         float64 `json:"lossRatio"`
	CombinedRatio     float64 `json:"combinedRatio"`
	CommissionRevenue float64 `json:"commissionRevenue"`
	ServicingCost     float64 `json:"servicingCost"`
	AgencyProfit      float64 `json:"agencyProfit"`
}

// PortfolioReport aggregates a product mix.
type PortfolioReport struct {
	Products          []ProductMetrics `json:"products"`
	TotalPremium      float64          `json:"totalPremium"`
	TotalClaims       float64          `json:"totalClaims"`
	TotalPolicies     int              `json:"totalPolicies"`
	LossRatio         float64          `json:"lossRatio"`
	CombinedRatio     float64          `json:"combinedRatio"`
	CommissionRevenue float64          `json:"commissionRevenue"`
	ServicingCost     float64          `json:"servicingCost"`
	AgencyProfit      float64          `json:"agencyProfit"`
	Bonus             BonusEligibility `json:"bonus"`
}

// BonusStatus tags a combined-ratio bracket.
type BonusStatus string

const (
	BonusFull       BonusStatus = "full_bonus"
	BonusReduced    BonusStatus = "reduced_bonus"
	BonusWarning    BonusStatus = "warning"
	BonusIneligible BonusStatus = "ineligible"
)

// BonusEligibility is derived from a combined ratio.
type BonusEligibility struct {
	CombinedRatio float64     `json:"combinedRatio"`
	Multiplier    float64     `json:"multiplier"`
	Status        BonusStatus `json:"status"`
}

// ProductProjection is a forward-looking estimate for one product line.
type ProductProjection struct {
	Product           string  `json:"product"`
	Premium           float64 `json:"premium"`
	ExpectedLossRatio float64 `json:"expectedLossRatio"`
	CatastropheLoad   float64 `json:"catastropheLoad"`
	ProjectedClaims   float64 `json:"projectedClaims"`
	CombinedRatio     float64 `json:"combinedRatio"`
	AgencyProfit      float64 `json:"agencyProfit"`
}

// RetentionImpact is the effect of a rate increase on retention.
type RetentionImpact struct {
	RateIncrease      float64 `json:"rateIncrease"`
	BaseRetention     float64 `json:"baseRetention"`
	AdditionalChurn   float64 `json:"additionalChurn"`
	AdjustedRetention float64 `json:"adjustedRetention"`
}

// LTVYear is one row of an LTV projection.
type LTVYear struct {
	Year            int     `json:"year"`
	Premium         float64 `json:"premium"`
	Survival        float64 `json:"survival"`
	Commission      float64 `json:"commission"`
	DiscountedValue float64 `json:"discountedValue"`
}

// LTVProjection is a retention-weighted, rate-inflated lifetime value.
type LTVProjection struct {
	BasePremium       float64   `json:"basePremium"`
	AdjustedRetention float64   `json:"adjustedRetention"`
	Years             []LTVYear `json:"years"`
	LTV               float64   `json:"ltv"`
}

// CashFlowReport contrasts accrual profit with cash actually received.
type CashFlowReport struct {
	Revenue             float64 `json:"revenue"`
	Expenses            float64 `json:"expenses"`
	Cancellations       float64 `json:"cancellations"`
	AccrualProfit       float64 `json:"accrualProfit"`
	CashReceived        float64 `json:"cashReceived"`
	NetCashFlow         float64 `json:"netCashFlow"`
	TimingGap           float64 `json:"timingGap"`
	GrowthRate          float64 `json:"growthRate"`
	WorkingCapitalNeed  float64 `json:"workingCapitalNeed"`
	CommissionLagMonths int     `json:"commissionLagMonths"`
	Warning             bool    `json:"warning"`
}

// MonthResult is the merged report for one simulated month.
// A MonthResult is created fresh per call and never mutated afterwards.
type MonthResult struct {
	Month           string          `json:"month,omitempty"`
	Profitability   Profitability   `json:"profitability"`
	Retention       RetentionImpact `json:"retention"`
	CashFlow        CashFlowReport  `json:"cashFlow"`
	CustomerQuality CustomerQuality `json:"customerQuality"`
}

// Profitability is the loss-ratio section of a MonthResult.
type Profitability struct {
	Portfolio         PortfolioReport  `json:"portfolio"`
	CombinedRatio     float64          `json:"combinedRatio"`
	Bonus             BonusEligibility `json:"bonus"`
	CommissionRevenue float64          `json:"commissionRevenue"`
	AgencyProfit      float64          `json:"agencyProfit"`
}

// CustomerQuality is the segmentation section of a MonthResult.
type CustomerQuality struct {
	TotalCustomers  int                      `json:"totalCustomers"`
	SegmentPct      map[CustomerTier]float64 `json:"segmentPct"`
	LTVContribution map[CustomerTier]float64 `json:"ltvContribution"`
	TotalLTV        float64                  `json:"totalLtv"`
	TopTierLTVShare float64                  `json:"topTierLtvShare"`
}

// InsightLevel grades a report insight.
type InsightLevel string

const (
	InsightInfo     InsightLevel = "INFO"
	InsightWarning  InsightLevel = "WARNING"
	InsightCritical InsightLevel = "CRITICAL"
)

// Insight is a canned advisory message derived by threshold comparison.
type Insight struct {
	Level   InsightLevel `json:"level"`
	Code    string       `json:"code"`
	Message string       `json:"message"`
}

// ComprehensiveReport is the multi-month advisory report.
type ComprehensiveReport struct {
	ID           string              `json:"id"`
	TenantID     string              `json:"tenantId"`
	AgencyName   string              `json:"agencyName,omitempty"`
	GeneratedAt  time.Time           `json:"generatedAt"`
	Months       []MonthResult       `json:"months"`
	Segmentation Segmentation        `json:"segmentation"`
	Marketing    MarketingAllocation `json:"marketing"`
	LTVOutlook   LTVProjection       `json:"ltvOutlook"`
	Insights     []Insight           `json:"insights"`
}

// Latest returns the most recent month, or nil for an empty report.
func (r *ComprehensiveReport) Latest() *MonthResult {
	if len(r.Months) == 0 {
		return nil
	}
	return &r.Months[len(r.Months)-1]
}

// HasAlert reports whether the latest month needs attention.
func (r *ComprehensiveReport) HasAlert() bool {
	m := r.Latest()
	if m == nil {
		return false
	}
	return m.CashFlow.Warning || m.Profitability.Bonus.Status == BonusIneligible
}

// ReportSummary is the listing view of a stored report.
type ReportSummary struct {
	ID            string      `json:"id"`
	TenantID      string      `json:"tenantId"`
	AgencyName    string      `json:"agencyName,omitempty"`
	GeneratedAt   time.Time   `json:"generatedAt"`
	MonthCount    int         `json:"monthCount"`
	CombinedRatio float64     `json:"combinedRatio"`
	BonusStatus   BonusStatus `json:"bonusStatus"`
	CashWarning   bool        `json:"cashWarning"`
}

// Summary builds the listing view of r.
func (r *ComprehensiveReport) Summary() ReportSummary {
	s := ReportSummary{
		ID:          r.ID,
		TenantID:    r.TenantID,
		AgencyName:  r.AgencyName,
		GeneratedAt: r.GeneratedAt,
		MonthCount:  len(r.Months),
	}
	if m := r.Latest(); m != nil {
		s.CombinedRatio = m.Profitability.CombinedRatio
		s.BonusStatus = m.Profitability.Bonus.Status
		s.CashWarning = m.CashFlow.Warning
	}
	return s
}

// ReportFilter narrows a report listing.
type ReportFilter struct {
	BonusStatus BonusStatus
	CashWarning *bool
	Since       time.Time
	Limit       int
}
