package simulator

import (
	"math"
	"testing"
	"time"

	"github.com/opensource-finance/agencysim/internal/clock"
	"github.com/opensource-finance/agencysim/internal/domain"
)

var fixedNow = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

func newSimulator() *Simulator {
	return New(domain.DefaultAssumptions(), clock.NewFixed(fixedNow))
}

func book(counts ...int) []domain.CustomerRecord {
	out := make([]domain.CustomerRecord, len(counts))
	for i, n := range counts {
		out[i] = domain.CustomerRecord{ProductCount: n, AnnualPremium: 1200}
	}
	return out
}

func steadyMonth() domain.MonthlyInputs {
	return domain.MonthlyInputs{
		Month:               "2025-06",
		NewPremium:          100_000,
		PriorMonthPremium:   100_000,
		TwoMonthsAgoPremium: 100_000,
		MonthlyExpenses:     4_000,
		ProductMix: map[string]domain.ProductInput{
			"auto": {Premium: 1_000_000, Claims: 680_000, Policies: 500},
		},
		NewCustomers: book(3, 3, 2, 1, 1, 1),
	}
}

func TestSimulateMonth(t *testing.T) {
	s := newSimulator()

	r := s.SimulateMonth(steadyMonth())

	if r.Month != "2025-06" {
		t.Errorf("expected month label echoed, got %q", r.Month)
	}
	if math.Abs(r.Profitability.CombinedRatio-0.93) > 1e-9 {
		t.Errorf("expected combined 0.93, got %v", r.Profitability.CombinedRatio)
	}
	if r.Profitability.Bonus.Status != domain.BonusFull {
		t.Errorf("expected full bonus, got %s", r.Profitability.Bonus.Status)
	}
	if r.Profitability.AgencyProfit != 47_500 {
		t.Errorf("expected agency profit 47500, got %v", r.Profitability.AgencyProfit)
	}
	if r.Retention.AdjustedRetention != 0.85 {
		t.Errorf("expected default base retention with no increase, got %v", r.Retention.AdjustedRetention)
	}
	if math.Abs(r.CashFlow.AccrualProfit-3_000) > 1e-6 {
		t.Errorf("expected accrual 7000-4000, got %v", r.CashFlow.AccrualProfit)
	}
	if r.CashFlow.Warning {
		t.Error("expected no cash warning for a steady book")
	}
	if r.CustomerQuality.TotalCustomers != 6 {
		t.Errorf("expected 6 customers, got %d", r.CustomerQuality.TotalCustomers)
	}
	if math.Abs(r.CustomerQuality.SegmentPct[domain.TierStandard]-50) > 1e-9 {
		t.Errorf("expected 50%% standard, got %v", r.CustomerQuality.SegmentPct[domain.TierStandard])
	}
}

func TestSimulateMonthBaseRetentionOverride(t *testing.T) {
	s := newSimulator()

	in := steadyMonth()
	base := 0.9
	in.BaseRetention = &base
	in.RateIncrease = 0.10

	r := s.SimulateMonth(in)
	if math.Abs(r.Retention.AdjustedRetention-(0.9-0.035)) > 1e-9 {
		t.Errorf("expected 0.865, got %v", r.Retention.AdjustedRetention)
	}
}

func TestSimulateMonthDegenerateInputs(t *testing.T) {
	s := newSimulator()

	r := s.SimulateMonth(domain.MonthlyInputs{})

	if r.Profitability.Portfolio.LossRatio != 0 {
		t.Errorf("expected zero loss ratio, got %v", r.Profitability.Portfolio.LossRatio)
	}
	if r.CashFlow.GrowthRate != 0 {
		t.Errorf("expected zero growth, got %v", r.CashFlow.GrowthRate)
	}
	if r.CustomerQuality.TotalCustomers != 0 || r.CustomerQuality.TotalLTV != 0 {
		t.Errorf("expected empty customer quality, got %+v", r.CustomerQuality)
	}
}

func TestSimulateMonthIsPure(t *testing.T) {
	s := newSimulator()
	in := steadyMonth()

	a := s.SimulateMonth(in)
	b := s.SimulateMonth(in)

	if a.Profitability.CombinedRatio != b.Profitability.CombinedRatio ||
		a.CashFlow.NetCashFlow != b.CashFlow.NetCashFlow ||
		a.CustomerQuality.TotalLTV != b.CustomerQuality.TotalLTV {
		t.Error("expected identical results for identical inputs")
	}
}

func TestRunCarriesPremiumsForward(t *testing.T) {
	s := newSimulator()

	res := s.Run(Scenario{
		PriorMonthPremium:   50_000,
		TwoMonthsAgoPremium: 40_000,
		StartingCustomers:   book(1, 2),
		Months: []domain.MonthlyInputs{
			{Month: "m1", NewPremium: 60_000, NewCustomers: book(3)},
			{Month: "m2", NewPremium: 80_000, NewCustomers: book(1)},
			{Month: "m3", NewPremium: 90_000},
		},
	})

	if len(res.Months) != 3 {
		t.Fatalf("expected 3 months, got %d", len(res.Months))
	}

	rate := domain.DefaultAssumptions().CommissionRate
	wantReceived := []float64{40_000 * rate, 50_000 * rate, 60_000 * rate}
	wantCustomers := []int{3, 4, 4}
	for i, m := range res.Months {
		if math.Abs(m.CashFlow.CashReceived-wantReceived[i]) > 1e-6 {
			t.Errorf("%s: expected received %v, got %v", m.Month, wantReceived[i], m.CashFlow.CashReceived)
		}
		if m.CustomerQuality.TotalCustomers != wantCustomers[i] {
			t.Errorf("%s: expected %d customers, got %d", m.Month, wantCustomers[i], m.CustomerQuality.TotalCustomers)
		}
	}
	if len(res.Customers) != 4 {
		t.Errorf("expected cumulative book of 4, got %d", len(res.Customers))
	}
}

func TestRunExplicitZeroPriors(t *testing.T) {
	s := newSimulator()

	// A brand-new agency: the scenario priors describe another book.
	res := s.Run(Scenario{
		PriorMonthPremium:   50_000,
		TwoMonthsAgoPremium: 40_000,
		Months: []domain.MonthlyInputs{
			{Month: "m1", NewPremium: 60_000, ExplicitPriors: true},
			{Month: "m2", NewPremium: 80_000},
		},
	})

	m1, m2 := res.Months[0].CashFlow, res.Months[1].CashFlow
	if m1.CashReceived != 0 {
		t.Errorf("m1: expected nothing received with explicit zero priors, got %v", m1.CashReceived)
	}
	if m1.GrowthRate != 0 {
		t.Errorf("m1: expected zero growth against a zero prior, got %v", m1.GrowthRate)
	}
	if m2.CashReceived != 0 {
		t.Errorf("m2: expected the explicit zero to carry forward, got %v", m2.CashReceived)
	}
	rate := domain.DefaultAssumptions().CommissionRate
	wantGrowth := (80_000*rate - 60_000*rate) / (60_000 * rate)
	if math.Abs(m2.GrowthRate-wantGrowth) > 1e-9 {
		t.Errorf("m2: expected growth %v, got %v", wantGrowth, m2.GrowthRate)
	}
}

func TestGenerateComprehensiveReport(t *testing.T) {
	s := newSimulator()

	month := s.SimulateMonth(steadyMonth())
	report := s.GenerateComprehensiveReport(ReportRequest{
		TenantID:        "tenant-001",
		AgencyName:      "Main Street Agency",
		Months:          []domain.MonthResult{month},
		Customers:       book(3, 3, 2, 1, 1, 1),
		MarketingBudget: 10_000,
	})

	if report.ID == "" {
		t.Error("expected report ID")
	}
	if !report.GeneratedAt.Equal(fixedNow) {
		t.Errorf("expected generated-at from clock, got %v", report.GeneratedAt)
	}
	if len(report.Marketing.Allocations) != 4 {
		t.Errorf("expected 4 allocations, got %d", len(report.Marketing.Allocations))
	}
	if report.LTVOutlook.LTV <= 0 {
		t.Errorf("expected positive LTV outlook, got %v", report.LTVOutlook.LTV)
	}
	if !hasInsight(report, "TOP_TIER_CONCENTRATION") {
		t.Errorf("expected top-tier concentration insight, got %+v", report.Insights)
	}
	if !hasInsight(report, "BUNDLING_OPPORTUNITY") {
		t.Errorf("expected bundling insight, got %+v", report.Insights)
	}
	if report.HasAlert() {
		t.Error("expected no alert for a healthy month")
	}
}

func TestReportInsightsForDistressedMonth(t *testing.T) {
	s := newSimulator()

	report := s.Report("tenant-001", Scenario{
		PriorMonthPremium:   60_000,
		TwoMonthsAgoPremium: 30_000,
		Months: []domain.MonthlyInputs{{
			NewPremium:      200_000,
			MonthlyExpenses: 2_000,
			RateIncrease:    0.25,
			ProductMix: map[string]domain.ProductInput{
				"home": {Premium: 100_000, Claims: 90_000, Policies: 80},
			},
			NewCustomers: book(0, 0, 1),
		}},
	})

	for _, code := range []string{"BONUS_INELIGIBLE", "CASH_FLOW_GAP", "RETENTION_EROSION", "LOW_VALUE_HEAVY"} {
		if !hasInsight(report, code) {
			t.Errorf("expected %s insight, got %+v", code, report.Insights)
		}
	}
	if !report.HasAlert() {
		t.Error("expected report to raise an alert")
	}
	if hasInsight(report, "ON_TRACK") {
		t.Error("did not expect ON_TRACK alongside warnings")
	}
}

func TestReportEmpty(t *testing.T) {
	s := newSimulator()

	report := s.GenerateComprehensiveReport(ReportRequest{TenantID: "t"})
	if report.Latest() != nil {
		t.Error("expected no latest month")
	}
	if report.Segmentation.TotalCustomers != 0 {
		t.Errorf("expected empty segmentation, got %d", report.Segmentation.TotalCustomers)
	}
	if !hasInsight(report, "ON_TRACK") {
		t.Errorf("expected ON_TRACK insight, got %+v", report.Insights)
	}
}

func hasInsight(r *domain.ComprehensiveReport, code string) bool {
	for _, in := range r.Insights {
		if in.Code == code {
			return true
		}
	}
	return false
}

func TestScenarioValidate(t *testing.T) {
	negative := -1.0
	badRetention := 1.2

	tests := []struct {
		name    string
		mutate  func(sc *Scenario)
		wantErr bool
	}{
		{"valid", func(sc *Scenario) {}, false},
		{"negative prior premium", func(sc *Scenario) { sc.PriorMonthPremium = negative }, true},
		{"negative budget", func(sc *Scenario) { sc.MarketingBudget = negative }, true},
		{"negative customer premium", func(sc *Scenario) { sc.StartingCustomers[0].AnnualPremium = negative }, true},
		{"negative expenses", func(sc *Scenario) { sc.Months[0].MonthlyExpenses = negative }, true},
		{"negative claims", func(sc *Scenario) {
			sc.Months[0].ProductMix = map[string]domain.ProductInput{"auto": {Premium: 10, Claims: negative}}
		}, true},
		{"retention above one", func(sc *Scenario) { sc.Months[0].BaseRetention = &badRetention }, true},
		{"rate decrease allowed", func(sc *Scenario) { sc.Months[0].RateIncrease = -0.1 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := Scenario{StartingCustomers: book(1, 2), Months: []domain.MonthlyInputs{steadyMonth()}}
			tt.mutate(&sc)
			err := sc.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}
