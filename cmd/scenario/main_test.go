package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/opensource-finance/agencysim/internal/domain"
)

const scenarioJSON = `{
  "agencyName": "Harbor Insurance",
  "priorMonthPremium": 100000,
  "twoMonthsAgoPremium": 100000,
  "startingCustomers": [
    {"id": "c1", "productCount": 3, "annualPremium": 2400}
  ],
  "months": [
    {
      "month": "2025-06",
      "newPremium": 100000,
      "monthlyExpenses": 4000,
      "productMix": {"auto": {"premium": 1000000, "claims": 680000, "policies": 500}}
    }
  ],
  "marketingBudget": 10000
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunUsage(t *testing.T) {
	for _, args := range [][]string{nil, {"unknown"}, {"report"}, {"leads"}} {
		err := run(context.Background(), args, io.Discard, quietLogger())
		if !errors.Is(err, errUsage) {
			t.Errorf("args %v: expected usage error, got %v", args, err)
		}
	}
}

func TestRunReport(t *testing.T) {
	dir := t.TempDir()
	scenario := writeFile(t, dir, "plan.json", scenarioJSON)
	customers := writeFile(t, dir, "book.csv", "customer_id,product_count,annual_premium\nc2,1,900\nc3,2,\"$1,500\"\n")

	t.Run("Markdown", func(t *testing.T) {
		var out bytes.Buffer
		err := run(context.Background(), []string{"report", "-scenario", scenario}, &out, quietLogger())
		if err != nil {
			t.Fatalf("report failed: %v", err)
		}
		if !strings.HasPrefix(out.String(), "# Agency Report: Harbor Insurance") {
			t.Errorf("unexpected markdown header: %q", firstLine(out.String()))
		}
	})

	t.Run("JSONWithCustomers", func(t *testing.T) {
		var out bytes.Buffer
		args := []string{"report", "-scenario", scenario, "-customers", customers, "-format", "json"}
		if err := run(context.Background(), args, &out, quietLogger()); err != nil {
			t.Fatalf("report failed: %v", err)
		}
		var rpt domain.ComprehensiveReport
		if err := json.Unmarshal(out.Bytes(), &rpt); err != nil {
			t.Fatalf("invalid json output: %v", err)
		}
		if rpt.TenantID != localTenant {
			t.Errorf("expected tenant %s, got %s", localTenant, rpt.TenantID)
		}
		if rpt.Segmentation.TotalCustomers != 3 {
			t.Errorf("expected 3 customers, got %d", rpt.Segmentation.TotalCustomers)
		}
		if len(rpt.Months) != 1 {
			t.Errorf("expected 1 month, got %d", len(rpt.Months))
		}
	})

	t.Run("HTMLToFile", func(t *testing.T) {
		outPath := filepath.Join(dir, "report.html")
		args := []string{"report", "-scenario", scenario, "-format", "html", "-out", outPath}
		if err := run(context.Background(), args, io.Discard, quietLogger()); err != nil {
			t.Fatalf("report failed: %v", err)
		}
		data, err := os.ReadFile(outPath)
		if err != nil {
			t.Fatalf("expected output file: %v", err)
		}
		if !bytes.Contains(data, []byte("<title>Agency Report - Harbor Insurance</title>")) {
			t.Error("expected html title in output")
		}
	})

	t.Run("UnknownFormat", func(t *testing.T) {
		err := run(context.Background(), []string{"report", "-scenario", scenario, "-format", "pdf"}, io.Discard, quietLogger())
		if err == nil {
			t.Error("expected error for unknown format")
		}
	})

	t.Run("InvalidScenario", func(t *testing.T) {
		bad := writeFile(t, dir, "bad.json", `{"priorMonthPremium": -1}`)
		err := run(context.Background(), []string{"report", "-scenario", bad}, io.Discard, quietLogger())
		if err == nil || !strings.Contains(err.Error(), "invalid scenario") {
			t.Errorf("expected invalid scenario error, got %v", err)
		}
	})
}

func TestRunLeads(t *testing.T) {
	dir := t.TempDir()
	leads := writeFile(t, dir, "leads.csv", strings.Join([]string{
		"lead_id,vendor,received_at,call_duration,status,phone",
		"l2,everquote,2025-06-02T10:00:00Z,4:30,quoted,(555) 123-4567",
		"l1,everquote,2025-06-01T10:00:00Z,0:45,contacted,555-123-4567",
		"l3,unknown,not-a-date,0,new,",
	}, "\n")+"\n")

	t.Run("JSON", func(t *testing.T) {
		var out bytes.Buffer
		args := []string{"leads", "-file", leads, "-format", "json"}
		if err := run(context.Background(), args, &out, quietLogger()); err != nil {
			t.Fatalf("leads failed: %v", err)
		}

		var resp struct {
			Scores   []domain.LeadScore `json:"scores"`
			Warnings []string           `json:"warnings"`
		}
		if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
			t.Fatalf("invalid json output: %v", err)
		}
		if len(resp.Scores) != 2 {
			t.Fatalf("expected 2 scores, got %d", len(resp.Scores))
		}
		if len(resp.Warnings) != 1 {
			t.Errorf("expected 1 warning, got %d", len(resp.Warnings))
		}

		// Scored oldest first, so the later lead is the duplicate.
		if resp.Scores[0].LeadID != "l1" || resp.Scores[0].DuplicateCount != 0 {
			t.Errorf("expected l1 with no duplicates, got %s with %d", resp.Scores[0].LeadID, resp.Scores[0].DuplicateCount)
		}
		if resp.Scores[1].LeadID != "l2" || resp.Scores[1].DuplicateCount != 1 {
			t.Errorf("expected l2 with 1 duplicate, got %s with %d", resp.Scores[1].LeadID, resp.Scores[1].DuplicateCount)
		}
	})

	t.Run("Table", func(t *testing.T) {
		var out bytes.Buffer
		if err := run(context.Background(), []string{"leads", "-file", leads}, &out, quietLogger()); err != nil {
			t.Fatalf("leads failed: %v", err)
		}
		if !strings.HasPrefix(out.String(), "LEAD") {
			t.Errorf("expected table header, got %q", firstLine(out.String()))
		}
		if !strings.Contains(out.String(), "warning: line 4") {
			t.Error("expected warning for the malformed row")
		}
	})

	t.Run("BadZone", func(t *testing.T) {
		err := run(context.Background(), []string{"leads", "-file", leads, "-tz", "Mars/Olympus"}, io.Discard, quietLogger())
		if err == nil {
			t.Error("expected error for invalid time zone")
		}
	})

	t.Run("MissingFile", func(t *testing.T) {
		err := run(context.Background(), []string{"leads", "-file", filepath.Join(dir, "nope.csv")}, io.Discard, quietLogger())
		if err == nil {
			t.Error("expected error for missing export")
		}
	})
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
