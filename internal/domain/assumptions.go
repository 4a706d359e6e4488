package domain

// Assumptions are the business constants used by the simulation calculators.
// Every field can be overridden from an assumptions file; the most commonly
// tuned ones can also be set from the environment.
type Assumptions struct {
	// Loss ratio and compensation
	ExpenseRatio           float64            `json:"expenseRatio" yaml:"expense_ratio"`
	CommissionRate         float64            `json:"commissionRate" yaml:"commission_rate"`
	ServicingCosts         map[string]float64 `json:"servicingCosts" yaml:"servicing_costs"`
	DefaultServicingCost   float64            `json:"defaultServicingCost" yaml:"default_servicing_cost"`
	HomeCatastropheLoading float64            `json:"homeCatastropheLoading" yaml:"home_catastrophe_loading"`
	Bonus                  BonusThresholds    `json:"bonus" yaml:"bonus"`

	// Rate environment
	BaseRetention   float64 `json:"baseRetention" yaml:"base_retention"`
	Elasticity      float64 `json:"elasticity" yaml:"elasticity"`
	ShockElasticity float64 `json:"shockElasticity" yaml:"shock_elasticity"`
	ShockThreshold  float64 `json:"shockThreshold" yaml:"shock_threshold"`
	DiscountRate    float64 `json:"discountRate" yaml:"discount_rate"`
	LTVHorizonYears int     `json:"ltvHorizonYears" yaml:"ltv_horizon_years"`

	// Cash flow
	CommissionLagMonths int     `json:"commissionLagMonths" yaml:"commission_lag_months"`
	BufferMonths        int     `json:"bufferMonths" yaml:"buffer_months"`
	CashWarningRatio    float64 `json:"cashWarningRatio" yaml:"cash_warning_ratio"`

	// Segmentation
	TierRetention    map[CustomerTier]float64 `json:"tierRetention" yaml:"tier_retention"`
	TierWeights      map[CustomerTier]float64 `json:"tierWeights" yaml:"tier_weights"`
	MaxLifetimeYears float64                  `json:"maxLifetimeYears" yaml:"max_lifetime_years"`

	// Insight thresholds, all percentages in [0,100] except RetentionFloor
	TopTierConcentrationPct float64 `json:"topTierConcentrationPct" yaml:"top_tier_concentration_pct"`
	LowValueAlertPct        float64 `json:"lowValueAlertPct" yaml:"low_value_alert_pct"`
	BundlingOpportunityPct  float64 `json:"bundlingOpportunityPct" yaml:"bundling_opportunity_pct"`
	RetentionFloor          float64 `json:"retentionFloor" yaml:"retention_floor"`
}

// BonusThresholds are the inclusive upper bounds of each combined-ratio bracket.
type BonusThresholds struct {
	FullMax    float64 `json:"fullMax" yaml:"full_max"`
	ReducedMax float64 `json:"reducedMax" yaml:"reduced_max"`
	WarningMax float64 `json:"warningMax" yaml:"warning_max"`
}

// DefaultAssumptions returns the stock business constants.
func DefaultAssumptions() Assumptions {
	return Assumptions{
		ExpenseRatio:   0.25,
		CommissionRate: 0.07,
		ServicingCosts: map[string]float64{
			ProductAuto:     45,
			ProductHome:     65,
			ProductUmbrella: 25,
			ProductLife:     40,
		},
		DefaultServicingCost:   50,
		HomeCatastropheLoading: 0.05,
		Bonus: BonusThresholds{
			FullMax:    0.95,
			ReducedMax: 1.00,
			WarningMax: 1.05,
		},

		BaseRetention:   0.85,
		Elasticity:      0.35,
		ShockElasticity: 0.5,
		ShockThreshold:  0.15,
		DiscountRate:    0.08,
		LTVHorizonYears: 10,

		CommissionLagMonths: 2,
		BufferMonths:        1,
		CashWarningRatio:    0.20,

		TierRetention: map[CustomerTier]float64{
			TierElite:    0.95,
			TierPremium:  0.91,
			TierStandard: 0.85,
			TierLowValue: 0.72,
		},
		TierWeights: map[CustomerTier]float64{
			TierElite:    3,
			TierPremium:  2,
			TierStandard: 1,
			TierLowValue: 0.5,
		},
		MaxLifetimeYears: 20,

		TopTierConcentrationPct: 60,
		LowValueAlertPct:        30,
		BundlingOpportunityPct:  40,
		RetentionFloor:          0.80,
	}
}

// Merge returns a copy of a with every non-zero field of o applied on top.
// Map fields are merged key by key.
func (a Assumptions) Merge(o Assumptions) Assumptions {
	out := a
	out.ServicingCosts = mergeFloatMap(a.ServicingCosts, o.ServicingCosts)
	out.TierRetention = mergeTierMap(a.TierRetention, o.TierRetention)
	out.TierWeights = mergeTierMap(a.TierWeights, o.TierWeights)

	setFloat(&out.ExpenseRatio, o.ExpenseRatio)
	setFloat(&out.CommissionRate, o.CommissionRate)
	setFloat(&out.DefaultServicingCost, o.DefaultServicingCost)
	setFloat(&out.HomeCatastropheLoading, o.HomeCatastropheLoading)
	setFloat(&out.Bonus.FullMax, o.Bonus.FullMax)
	setFloat(&out.Bonus.ReducedMax, o.Bonus.ReducedMax)
	setFloat(&out.Bonus.WarningMax, o.Bonus.WarningMax)
	setFloat(&out.BaseRetention, o.BaseRetention)
	setFloat(&out.Elasticity, o.Elasticity)
	setFloat(&out.ShockElasticity, o.ShockElasticity)
	setFloat(&out.ShockThreshold, o.ShockThreshold)
	setFloat(&out.DiscountRate, o.DiscountRate)
	setFloat(&out.CashWarningRatio, o.CashWarningRatio)
	setFloat(&out.MaxLifetimeYears, o.MaxLifetimeYears)
	setFloat(&out.TopTierConcentrationPct, o.TopTierConcentrationPct)
	setFloat(&out.LowValueAlertPct, o.LowValueAlertPct)
	setFloat(&out.BundlingOpportunityPct, o.BundlingOpportunityPct)
	setFloat(&out.RetentionFloor, o.RetentionFloor)
	if o.LTVHorizonYears > 0 {
		out.LTVHorizonYears = o.LTVHorizonYears
	}
	if o.CommissionLagMonths > 0 {
		out.CommissionLagMonths = o.CommissionLagMonths
	}
	if o.BufferMonths > 0 {
		out.BufferMonths = o.BufferMonths
	}
	return out
}

// Clone returns a copy of a that shares no maps with it.
func (a Assumptions) Clone() Assumptions {
	return a.Merge(Assumptions{})
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func mergeFloatMap(base, over map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

func mergeTierMap(base, over map[CustomerTier]float64) map[CustomerTier]float64 {
	out := make(map[CustomerTier]float64, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}
