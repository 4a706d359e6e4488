package pipeline

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/opensource-finance/agencysim/internal/bus"
	"github.com/opensource-finance/agencysim/internal/cache"
	"github.com/opensource-finance/agencysim/internal/clock"
	"github.com/opensource-finance/agencysim/internal/domain"
	"github.com/opensource-finance/agencysim/internal/repository"
	"github.com/opensource-finance/agencysim/internal/simulator"
)

var fixedNow = time.Date(2025, 6, 30, 17, 0, 0, 0, time.UTC)

func book(counts ...int) []domain.CustomerRecord {
	out := make([]domain.CustomerRecord, len(counts))
	for i, n := range counts {
		out[i] = domain.CustomerRecord{ProductCount: n, AnnualPremium: 1200}
	}
	return out
}

func steadyScenario() simulator.Scenario {
	return simulator.Scenario{
		AgencyName:          "Harbor Insurance",
		PriorMonthPremium:   100_000,
		TwoMonthsAgoPremium: 100_000,
		StartingCustomers:   book(3, 3, 2, 1, 1, 1),
		Months: []domain.MonthlyInputs{{
			Month:           "2025-06",
			NewPremium:      100_000,
			MonthlyExpenses: 4_000,
			ProductMix: map[string]domain.ProductInput{
				domain.ProductAuto: {Premium: 1_000_000, Claims: 680_000, Policies: 500},
			},
		}},
		MarketingBudget: 10_000,
	}
}

func distressedScenario() simulator.Scenario {
	return simulator.Scenario{
		AgencyName:          "Stormy Agency",
		PriorMonthPremium:   60_000,
		TwoMonthsAgoPremium: 30_000,
		StartingCustomers:   book(0, 0, 1),
		Months: []domain.MonthlyInputs{{
			NewPremium:      200_000,
			MonthlyExpenses: 2_000,
			RateIncrease:    0.25,
			ProductMix: map[string]domain.ProductInput{
				domain.ProductHome: {Premium: 100_000, Claims: 90_000, Policies: 80},
			},
		}},
	}
}

func newTestProcessor(t *testing.T) (*Processor, domain.Repository, *cache.LRUCache, *bus.ChannelBus) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "pipeline-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := repository.New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: tmpPath})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	clk := clock.NewFixed(fixedNow)
	lru := cache.NewLRUCache(100, clk)
	eventBus := bus.NewChannelBus(10)
	t.Cleanup(func() { eventBus.Close() })

	sim := simulator.New(domain.DefaultAssumptions(), clk)
	return NewProcessor(sim, repo, lru, eventBus, clk, nil), repo, lru, eventBus
}

func collect(t *testing.T, b domain.EventBus, tenantID, topic string) <-chan *domain.Message {
	t.Helper()
	ch := make(chan *domain.Message, 4)
	_, err := b.Subscribe(context.Background(), tenantID, topic, func(ctx context.Context, msg *domain.Message) error {
		ch <- msg
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	return ch
}

func TestProcess(t *testing.T) {
	proc, repo, lru, eventBus := newTestProcessor(t)
	ctx := context.Background()
	tenantID := "tenant-001"

	generated := collect(t, eventBus, tenantID, domain.TopicReportGenerated)
	alerts := collect(t, eventBus, tenantID, domain.TopicAlert)

	report, decision, err := proc.Process(ctx, tenantID, &ReportRequest{ReportID: "rpt-steady", TraceID: "trace-1", Scenario: steadyScenario()})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if report.ID != "rpt-steady" {
		t.Errorf("expected caller-assigned id, got %s", report.ID)
	}
	if decision.Alert {
		t.Errorf("steady book should not alert: %+v", decision)
	}
	if decision.Severity != domain.InsightInfo {
		t.Errorf("expected INFO severity, got %s", decision.Severity)
	}

	t.Run("Stored", func(t *testing.T) {
		stored, err := repo.GetReport(ctx, tenantID, "rpt-steady")
		if err != nil {
			t.Fatalf("GetReport failed: %v", err)
		}
		if stored.AgencyName != "Harbor Insurance" {
			t.Errorf("expected agency name, got %s", stored.AgencyName)
		}
	})

	t.Run("Cached", func(t *testing.T) {
		cached, err := lru.GetReport(ctx, tenantID, "rpt-steady")
		if err != nil || cached == nil {
			t.Fatalf("expected cached report, got %v, %v", cached, err)
		}
	})

	t.Run("Published", func(t *testing.T) {
		select {
		case msg := <-generated:
			var ev ReportGenerated
			if err := bus.Decode(msg, &ev); err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if ev.Summary.ID != "rpt-steady" || ev.TraceID != "trace-1" {
				t.Errorf("unexpected event: %+v", ev)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for report.generated")
		}

		select {
		case msg := <-alerts:
			t.Errorf("unexpected alert: %s", msg.Payload)
		case <-time.After(50 * time.Millisecond):
		}
	})
}

func TestProcessAlerts(t *testing.T) {
	proc, _, _, eventBus := newTestProcessor(t)
	ctx := context.Background()
	tenantID := "tenant-001"

	alerts := collect(t, eventBus, tenantID, domain.TopicAlert)

	report, decision, err := proc.Process(ctx, tenantID, &ReportRequest{Scenario: distressedScenario()})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if report.ID == "" {
		t.Error("expected generated report id")
	}
	if !decision.Alert || decision.Severity != domain.InsightCritical {
		t.Errorf("expected critical alert, got %+v", decision)
	}

	select {
	case msg := <-alerts:
		var alert AlertMessage
		if err := bus.Decode(msg, &alert); err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if alert.ReportID != report.ID || alert.AgencyName != "Stormy Agency" {
			t.Errorf("unexpected alert: %+v", alert)
		}
		if len(alert.Reasons) == 0 {
			t.Error("expected alert reasons")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for alert")
	}
}

func TestProcessValidation(t *testing.T) {
	proc, _, _, _ := newTestProcessor(t)
	ctx := context.Background()

	if _, _, err := proc.Process(ctx, "", &ReportRequest{}); err == nil {
		t.Error("expected error for empty tenantID")
	}
	if _, _, err := proc.Process(ctx, "tenant-001", nil); err == nil {
		t.Error("expected error for nil request")
	}
}

func TestProcessWithoutCollaborators(t *testing.T) {
	sim := simulator.New(domain.DefaultAssumptions(), clock.NewFixed(fixedNow))
	proc := NewProcessor(sim, nil, nil, nil, nil, nil)

	report, _, err := proc.Process(context.Background(), "tenant-001", &ReportRequest{Scenario: steadyScenario()})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(report.Months) != 1 {
		t.Errorf("expected 1 month, got %d", len(report.Months))
	}
}

func TestDecide(t *testing.T) {
	proc := NewProcessor(nil, nil, nil, nil, nil, nil)

	warning := domain.Insight{Level: domain.InsightWarning, Code: "RETENTION_EROSION"}
	critical := domain.Insight{Level: domain.InsightCritical, Code: "BONUS_INELIGIBLE"}
	info := domain.Insight{Level: domain.InsightInfo, Code: "ON_TRACK"}

	tests := []struct {
		name         string
		report       *domain.ComprehensiveReport
		wantAlert    bool
		wantSeverity domain.InsightLevel
		wantReasons  int
	}{
		{
			name:         "info only",
			report:       &domain.ComprehensiveReport{Insights: []domain.Insight{info}},
			wantSeverity: domain.InsightInfo,
		},
		{
			name:         "warning below alert level",
			report:       &domain.ComprehensiveReport{Insights: []domain.Insight{info, warning}},
			wantSeverity: domain.InsightWarning,
			wantReasons:  1,
		},
		{
			name:         "critical",
			report:       &domain.ComprehensiveReport{Insights: []domain.Insight{warning, critical}},
			wantAlert:    true,
			wantSeverity: domain.InsightCritical,
			wantReasons:  2,
		},
		{
			name: "cash warning alerts regardless of level",
			report: &domain.ComprehensiveReport{
				Months:   []domain.MonthResult{{CashFlow: domain.CashFlowReport{Warning: true}}},
				Insights: []domain.Insight{warning},
			},
			wantAlert:    true,
			wantSeverity: domain.InsightWarning,
			wantReasons:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := proc.Decide(tt.report)
			if d.Alert != tt.wantAlert {
				t.Errorf("expected alert %v, got %v", tt.wantAlert, d.Alert)
			}
			if d.Severity != tt.wantSeverity {
				t.Errorf("expected severity %s, got %s", tt.wantSeverity, d.Severity)
			}
			if len(d.Reasons) != tt.wantReasons {
				t.Errorf("expected %d reasons, got %d", tt.wantReasons, len(d.Reasons))
			}
		})
	}

	t.Run("lower alert level", func(t *testing.T) {
		p := NewProcessor(nil, nil, nil, nil, nil, nil)
		p.AlertLevel = domain.InsightWarning
		if !p.Decide(&domain.ComprehensiveReport{Insights: []domain.Insight{warning}}).Alert {
			t.Error("expected warning to alert at WARNING level")
		}
	})
}
