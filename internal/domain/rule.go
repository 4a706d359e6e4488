package domain

// ScoringRule is a CEL adjustment rule applied on top of the heuristic lead score.
type ScoringRule struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// CEL expression to evaluate; must return bool, int or double
	Expression string `json:"expression"`

	// Outcome bands for value-to-outcome mapping
	Bands []RuleBand `json:"bands"`

	// Points added per unit of the expression value
	Weight float64 `json:"weight"`

	// Whether rule is active
	Enabled bool `json:"enabled"`
}

// RuleBand maps a value range to an outcome.
type RuleBand struct {
	LowerLimit *float64 `json:"lowerLimit,omitempty"`
	UpperLimit *float64 `json:"upperLimit,omitempty"`
	Outcome    string   `json:"outcome"` // e.g., ".boost", ".penalty", ".neutral"
	Reason     string   `json:"reason"`
}

// RuleResult is the output of a rule evaluation.
type RuleResult struct {
	RuleID    string  `json:"ruleId"`
	TenantID  string  `json:"tenantId"`
	LeadID    string  `json:"leadId"`
	Outcome   string  `json:"outcome"`
	Value     float64 `json:"value"`  // The computed expression value
	Points    float64 `json:"points"` // Value * Weight
	Reason    string  `json:"reason"`
	ProcessMs int64   `json:"processMs"`
}

// Predefined rule outcomes
const (
	RuleOutcomeBoost   = ".boost"
	RuleOutcomePenalty = ".penalty"
	RuleOutcomeNeutral = ".neutral"
	RuleOutcomeError   = ".err"
)

// GlobalTenantID owns scoring rules that apply to every tenant.
const GlobalTenantID = "*"
