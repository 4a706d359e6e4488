package simulator

import (
	"fmt"

	"github.com/opensource-finance/agencysim/internal/domain"
)

// Scenario is a multi-month run description.
type Scenario struct {
	AgencyName          string                  `json:"agencyName" yaml:"agency_name"`
	PriorMonthPremium   float64                 `json:"priorMonthPremium" yaml:"prior_month_premium"`
	TwoMonthsAgoPremium float64                 `json:"twoMonthsAgoPremium" yaml:"two_months_ago_premium"`
	StartingCustomers   []domain.CustomerRecord `json:"startingCustomers" yaml:"starting_customers"`
	Months              []domain.MonthlyInputs  `json:"months" yaml:"months"`
	MarketingBudget     float64                 `json:"marketingBudget" yaml:"marketing_budget"`
}

// Validate checks the scenario's premiums, budget, customers and months
// for negative values.
func (sc Scenario) Validate() error {
	if sc.PriorMonthPremium < 0 || sc.TwoMonthsAgoPremium < 0 {
		return fmt.Errorf("prior premiums must not be negative")
	}
	if sc.MarketingBudget < 0 {
		return fmt.Errorf("marketingBudget must not be negative")
	}
	for i, c := range sc.StartingCustomers {
		if c.AnnualPremium < 0 || c.ProductCount < 0 {
			return fmt.Errorf("startingCustomers[%d]: premium and product count must not be negative", i)
		}
	}
	for i, m := range sc.Months {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("months[%d]: %w", i, err)
		}
	}
	return nil
}

// RunResult is the output of Run.
type RunResult struct {
	Months    []domain.MonthResult
	Customers []domain.CustomerRecord // cumulative book after the last month
}

// Run simulates each month in order. Prior-month premiums left at zero are
// filled from the months before unless the month sets ExplicitPriors, and
// each month is segmented on the cumulative customer book. Scenario inputs
// are not modified.
func (s *Simulator) Run(sc Scenario) RunResult {
	prior, twoAgo := sc.PriorMonthPremium, sc.TwoMonthsAgoPremium
	book := append([]domain.CustomerRecord(nil), sc.StartingCustomers...)

	res := RunResult{Months: make([]domain.MonthResult, 0, len(sc.Months))}
	for _, in := range sc.Months {
		if !in.ExplicitPriors {
			if in.PriorMonthPremium == 0 {
				in.PriorMonthPremium = prior
			}
			if in.TwoMonthsAgoPremium == 0 {
				in.TwoMonthsAgoPremium = twoAgo
			}
		}
		book = append(book, in.NewCustomers...)
		in.NewCustomers = book

		res.Months = append(res.Months, s.SimulateMonth(in))

		twoAgo, prior = in.PriorMonthPremium, in.NewPremium
	}

	res.Customers = book
	return res
}

// Report runs a scenario and generates the comprehensive report for it.
func (s *Simulator) Report(tenantID string, sc Scenario) *domain.ComprehensiveReport {
	res := s.Run(sc)
	return s.GenerateComprehensiveReport(ReportRequest{
		TenantID:        tenantID,
		AgencyName:      sc.AgencyName,
		Months:          res.Months,
		Customers:       res.Customers,
		MarketingBudget: sc.MarketingBudget,
	})
}
