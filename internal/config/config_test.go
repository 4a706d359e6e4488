package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/opensource-finance/agencysim/internal/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	s, err := Load(writeFile(t, "empty.env", ""))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if s.Tier != domain.TierCommunity {
		t.Errorf("expected community tier, got %s", s.Tier)
	}
	if s.Repository.Driver != "sqlite" {
		t.Errorf("expected sqlite driver, got %s", s.Repository.Driver)
	}
	if s.Assumptions.CommissionRate != 0.07 {
		t.Errorf("expected default commission rate, got %v", s.Assumptions.CommissionRate)
	}
	if s.Scoring.HotThreshold != 70 {
		t.Errorf("expected default scoring config, got hot threshold %v", s.Scoring.HotThreshold)
	}
	if s.AsyncWorker || s.Debug {
		t.Error("expected async worker and debug off by default")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("AGENCYSIM_TIER", "pro")
	t.Setenv("AGENCYSIM_PORT", "9090")
	t.Setenv("AGENCYSIM_PG_HOST", "db.internal")
	t.Setenv("AGENCYSIM_PG_USER", "agency")
	t.Setenv("AGENCYSIM_TENANTS", "tenant-a, tenant-b,,")
	t.Setenv("AGENCYSIM_DEBUG", "true")
	t.Setenv("AGENCYSIM_COMMISSION_RATE", "0.1")
	t.Setenv("AGENCYSIM_COMMISSION_LAG_MONTHS", "1")

	s, err := Load(writeFile(t, "empty.env", ""))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if s.Tier != domain.TierPro {
		t.Errorf("expected pro tier, got %s", s.Tier)
	}
	if s.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", s.Server.Port)
	}
	if s.Repository.Driver != "postgres" || s.Repository.PostgresHost != "db.internal" || s.Repository.PostgresUser != "agency" {
		t.Errorf("unexpected repository config: %+v", s.Repository)
	}
	if len(s.Tenants) != 2 || s.Tenants[0] != "tenant-a" || s.Tenants[1] != "tenant-b" {
		t.Errorf("expected 2 trimmed tenants, got %v", s.Tenants)
	}
	if !s.Debug || s.Logging.Level != "debug" {
		t.Error("expected debug logging")
	}
	if s.Assumptions.CommissionRate != 0.1 {
		t.Errorf("expected commission rate 0.1, got %v", s.Assumptions.CommissionRate)
	}
	if s.Assumptions.CommissionLagMonths != 1 {
		t.Errorf("expected lag 1, got %d", s.Assumptions.CommissionLagMonths)
	}
}

func TestLoadInvalidEnv(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port", "AGENCYSIM_PORT", "eighty"},
		{"pg port", "AGENCYSIM_PG_PORT", "5432x"},
		{"commission rate", "AGENCYSIM_COMMISSION_RATE", "seven percent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(writeFile(t, "empty.env", "")); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	t.Cleanup(func() {
		os.Unsetenv("AGENCYSIM_SQLITE_PATH")
		os.Unsetenv("AGENCYSIM_ASYNC_WORKER")
	})
	t.Setenv("AGENCYSIM_HOST", "127.0.0.1")

	envFile := writeFile(t, "test.env", "AGENCYSIM_SQLITE_PATH=/tmp/agency.db\nAGENCYSIM_ASYNC_WORKER=true\nAGENCYSIM_HOST=10.0.0.1\n")

	s, err := Load(envFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Repository.SQLitePath != "/tmp/agency.db" {
		t.Errorf("expected sqlite path from env file, got %s", s.Repository.SQLitePath)
	}
	if !s.AsyncWorker {
		t.Error("expected async worker from env file")
	}
	if s.Server.Host != "127.0.0.1" {
		t.Errorf("expected process env to win over env file, got %s", s.Server.Host)
	}
}

func TestLoadMissingEnvFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("expected error for an explicit env file that does not exist")
	}
}

func TestLoadAssumptionsFile(t *testing.T) {
	path := writeFile(t, "assumptions.yaml", `
commission_rate: 0.08
bonus:
  full_max: 0.93
tier_retention:
  low_value: 0.65
servicing_costs:
  boat: 55
`)
	t.Setenv("AGENCYSIM_ASSUMPTIONS_FILE", path)
	t.Setenv("AGENCYSIM_CASH_WARNING_RATIO", "0.3")

	s, err := Load(writeFile(t, "empty.env", ""))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	a := s.Assumptions
	if a.CommissionRate != 0.08 {
		t.Errorf("expected commission rate 0.08, got %v", a.CommissionRate)
	}
	if a.Bonus.FullMax != 0.93 || a.Bonus.ReducedMax != 1.00 {
		t.Errorf("expected merged bonus thresholds, got %+v", a.Bonus)
	}
	if a.TierRetention[domain.TierLowValue] != 0.65 || a.TierRetention[domain.TierElite] != 0.95 {
		t.Errorf("expected merged tier retention, got %v", a.TierRetention)
	}
	if a.ServicingCosts["boat"] != 55 || a.ServicingCosts[domain.ProductAuto] != 45 {
		t.Errorf("expected merged servicing costs, got %v", a.ServicingCosts)
	}
	if a.CashWarningRatio != 0.3 {
		t.Errorf("expected env to override after the file, got %v", a.CashWarningRatio)
	}
	if a.ExpenseRatio != 0.25 {
		t.Errorf("expected untouched expense ratio, got %v", a.ExpenseRatio)
	}
}

func TestReadAssumptionsHJSON(t *testing.T) {
	path := writeFile(t, "assumptions.hjson", `
{
  # tuned for a coastal book
  homeCatastropheLoading: 0.09
  bonus: {
    warningMax: 1.1
  }
  ltvHorizonYears: 15
}
`)

	a, err := ReadAssumptions(path, domain.DefaultAssumptions())
	if err != nil {
		t.Fatalf("ReadAssumptions failed: %v", err)
	}
	if a.HomeCatastropheLoading != 0.09 {
		t.Errorf("expected loading 0.09, got %v", a.HomeCatastropheLoading)
	}
	if a.Bonus.WarningMax != 1.1 {
		t.Errorf("expected warning max 1.1, got %v", a.Bonus.WarningMax)
	}
	if a.LTVHorizonYears != 15 {
		t.Errorf("expected horizon 15, got %d", a.LTVHorizonYears)
	}
	if a.Bonus.FullMax != 0.95 || a.CommissionRate != 0.07 {
		t.Errorf("expected defaults kept for absent fields, got bonus %+v commission %v", a.Bonus, a.CommissionRate)
	}
}

func TestReadAssumptionsExplicitZeros(t *testing.T) {
	files := map[string]string{
		"zeros.yaml": `
commission_lag_months: 0
home_catastrophe_loading: 0
expense_ratio: 0
buffer_months: 0
servicing_costs:
  umbrella: 0
`,
		"zeros.hjson": `
{
  commissionLagMonths: 0
  homeCatastropheLoading: 0
  expenseRatio: 0
  bufferMonths: 0
  servicingCosts: {
    umbrella: 0
  }
}
`,
	}

	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			base := domain.DefaultAssumptions()
			a, err := ReadAssumptions(writeFile(t, name, content), base)
			if err != nil {
				t.Fatalf("ReadAssumptions failed: %v", err)
			}
			if a.CommissionLagMonths != 0 {
				t.Errorf("expected lag 0, got %d", a.CommissionLagMonths)
			}
			if a.HomeCatastropheLoading != 0 {
				t.Errorf("expected catastrophe loading 0, got %v", a.HomeCatastropheLoading)
			}
			if a.ExpenseRatio != 0 {
				t.Errorf("expected expense ratio 0, got %v", a.ExpenseRatio)
			}
			if a.BufferMonths != 0 {
				t.Errorf("expected buffer months 0, got %d", a.BufferMonths)
			}
			if v, ok := a.ServicingCosts[domain.ProductUmbrella]; !ok || v != 0 {
				t.Errorf("expected umbrella servicing cost 0, got %v (present %v)", v, ok)
			}
			if a.ServicingCosts[domain.ProductAuto] != 45 || a.CommissionRate != 0.07 {
				t.Errorf("expected untouched defaults, got auto %v commission %v", a.ServicingCosts[domain.ProductAuto], a.CommissionRate)
			}
			if base.ServicingCosts[domain.ProductUmbrella] != 25 {
				t.Errorf("expected base to be left unmodified, got %v", base.ServicingCosts[domain.ProductUmbrella])
			}
		})
	}
}

func TestLoadAssumptionsFileZeroLag(t *testing.T) {
	path := writeFile(t, "assumptions.yaml", "commission_lag_months: 0\nhome_catastrophe_loading: 0\n")
	t.Setenv("AGENCYSIM_ASSUMPTIONS_FILE", path)

	s, err := Load(writeFile(t, "empty.env", ""))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Assumptions.CommissionLagMonths != 0 {
		t.Errorf("expected lag 0 from file, got %d", s.Assumptions.CommissionLagMonths)
	}
	if s.Assumptions.HomeCatastropheLoading != 0 {
		t.Errorf("expected catastrophe loading 0 from file, got %v", s.Assumptions.HomeCatastropheLoading)
	}
}

func TestReadScoring(t *testing.T) {
	path := writeFile(t, "scoring.yaml", `
vendor_scores:
  everquote: 20
  newvendor: 9
hot_threshold: 75
duration_bands:
  - min_seconds: 60
    points: 8
`)

	c, err := ReadScoring(path)
	if err != nil {
		t.Fatalf("ReadScoring failed: %v", err)
	}
	if c.VendorScores["everquote"] != 20 || c.VendorScores["newvendor"] != 9 {
		t.Errorf("expected vendor overrides, got %v", c.VendorScores)
	}
	if c.VendorScores["referral"] != 25 {
		t.Errorf("expected default vendors kept, got %v", c.VendorScores)
	}
	if c.HotThreshold != 75 || c.WarmThreshold != 45 {
		t.Errorf("expected hot 75 warm 45, got %v %v", c.HotThreshold, c.WarmThreshold)
	}
	if len(c.DurationBands) != 1 || c.DurationBands[0].MinSeconds != 60 {
		t.Errorf("expected duration bands replaced, got %+v", c.DurationBands)
	}
}

func TestReadScenario(t *testing.T) {
	yamlPath := writeFile(t, "scenario.yml", `
agency_name: Harbor Insurance
prior_month_premium: 90000
two_months_ago_premium: 80000
marketing_budget: 5000
starting_customers:
  - id: c-1
    product_count: 3
    annual_premium: 2400
  - id: c-2
    products: [auto, home]
    annual_premium: 1800
months:
  - month: "2025-06"
    new_premium: 100000
    monthly_expenses: 4000
    rate_increase: 0.05
    base_retention: 0.9
    product_mix:
      auto: {premium: 500000, claims: 320000, policies: 250}
`)

	sc, err := ReadScenario(yamlPath)
	if err != nil {
		t.Fatalf("ReadScenario failed: %v", err)
	}
	if sc.AgencyName != "Harbor Insurance" || sc.MarketingBudget != 5000 {
		t.Errorf("unexpected scenario header: %+v", sc)
	}
	if len(sc.StartingCustomers) != 2 || sc.StartingCustomers[1].ResolvedProductCount() != 2 {
		t.Errorf("unexpected customers: %+v", sc.StartingCustomers)
	}
	if len(sc.Months) != 1 {
		t.Fatalf("expected 1 month, got %d", len(sc.Months))
	}
	m := sc.Months[0]
	if m.BaseRetention == nil || math.Abs(*m.BaseRetention-0.9) > 1e-9 {
		t.Errorf("expected base retention override, got %v", m.BaseRetention)
	}
	if m.ProductMix[domain.ProductAuto].Claims != 320000 {
		t.Errorf("expected auto claims 320000, got %+v", m.ProductMix)
	}

	jsonPath := writeFile(t, "scenario.json", `{"agencyName": "Bay Agency", "months": [{"newPremium": 1000}]}`)
	sc, err = ReadScenario(jsonPath)
	if err != nil {
		t.Fatalf("ReadScenario json failed: %v", err)
	}
	if sc.AgencyName != "Bay Agency" || sc.Months[0].NewPremium != 1000 {
		t.Errorf("unexpected json scenario: %+v", sc)
	}
}

func TestDecodeFileErrors(t *testing.T) {
	t.Run("unsupported extension", func(t *testing.T) {
		_, err := ReadScenario(writeFile(t, "scenario.toml", "agency_name = 'x'"))
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("expected ErrUnsupportedFormat, got %v", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadAssumptions(filepath.Join(t.TempDir(), "nope.yaml"), domain.DefaultAssumptions())
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected not-exist error, got %v", err)
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		if _, err := ReadScoring(writeFile(t, "bad.yaml", "hot_threshold: [1, 2")); err == nil {
			t.Error("expected error for malformed yaml")
		}
	})
}
