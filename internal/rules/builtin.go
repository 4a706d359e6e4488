package rules

import (
	"context"
	"fmt"

	"github.com/opensource-finance/agencysim/internal/domain"
)

// DefaultRules returns the starter adjustment rules used when a tenant has
// none stored.
func DefaultRules() []*domain.ScoringRule {
	return []*domain.ScoringRule{
		{
			ID:          "duplicate-lead",
			Name:        "Duplicate Lead Penalty",
			Description: "Penalises leads whose phone was already seen in the duplicate window",
			Version:     "1.0.0",
			Expression:  "duplicate_count > 0 ? -10.0 : 0.0",
			Bands: []domain.RuleBand{
				{UpperLimit: ptr(0), Outcome: domain.RuleOutcomePenalty, Reason: "Phone seen recently"},
				{LowerLimit: ptr(0), Outcome: domain.RuleOutcomeNeutral, Reason: "First contact"},
			},
			Weight:  1.0,
			Enabled: true,
		},
		{
			ID:          "engaged-quote",
			Name:        "Engaged Quote Boost",
			Description: "Boosts fresh quoted leads that stayed on the phone",
			Version:     "1.0.0",
			Expression:  "status == 'quoted' && call_seconds >= 180 && days_old <= 3",
			Bands: []domain.RuleBand{
				{UpperLimit: ptr(1.0), Outcome: domain.RuleOutcomeNeutral, Reason: "No engagement signal"},
				{LowerLimit: ptr(1.0), Outcome: domain.RuleOutcomeBoost, Reason: "Engaged fresh quote"},
			},
			Weight:  5.0,
			Enabled: true,
		},
	}
}

func ptr(v float64) *float64 {
	return &v
}

// LoadStored replaces the engine's rules with the enabled rules stored for
// tenantID, or with DefaultRules when none are stored. It returns the
// number of rules loaded.
func LoadStored(ctx context.Context, repo domain.Repository, engine *Engine, tenantID string) (int, error) {
	stored, err := repo.ListScoringRules(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to list scoring rules: %w", err)
	}
	if len(stored) == 0 {
		stored = DefaultRules()
	}
	if err := engine.ReloadRules(stored); err != nil {
		return 0, err
	}
	return engine.RulesCount(), nil
}
