// Agencysim - Lead scoring benchmark
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

// Benchmark tool for replaying a labelled lead export against a running
// agencysim server. Each lead is posted to /leads/score and the returned
// grade is compared with the lead's recorded outcome.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"github.com/opensource-finance/agencysim/internal/api"
	"github.com/opensource-finance/agencysim/internal/domain"
	"github.com/opensource-finance/agencysim/internal/ingest"
)

// outcomeAliases are the header names accepted for the sale label.
var outcomeAliases = []string{"sold", "converted", "outcome", "bound"}

// LabelledLead is a lead with its recorded outcome.
type LabelledLead struct {
	Lead domain.Lead
	Sold bool
}

// Metrics tracks benchmark results.
type Metrics struct {
	TruePositives  int64 // hot and sold
	FalsePositives int64 // hot, not sold
	TrueNegatives  int64 // not hot, not sold
	FalseNegatives int64 // not hot, sold

	Hot  int64
	Warm int64
	Cold int64

	TotalProcessed int64
	TotalSold      int64
	TotalUnsold    int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

func main() {
	exportPath := flag.String("file", "", "Path to a labelled lead export (CSV or HTML)")
	baseURL := flag.String("url", "http://localhost:8080", "Agencysim base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	limit := flag.Int("limit", 10000, "Maximum leads to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	tz := flag.String("tz", "UTC", "Time zone for timestamps without an offset")
	verbose := flag.Bool("verbose", false, "Print each lead result")
	flag.Parse()

	if *exportPath == "" {
		fmt.Println("Usage: benchmark -file /path/to/leads.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	loc, err := time.LoadLocation(*tz)
	if err != nil {
		fmt.Printf("ERROR: invalid time zone %q: %v\n", *tz, err)
		os.Exit(1)
	}

	fmt.Println("+---------------------------------------------------------------+")
	fmt.Println("|            AGENCYSIM BENCHMARK - Lead Scoring                 |")
	fmt.Println("+---------------------------------------------------------------+")
	fmt.Printf("\nExport:      %s\n", *exportPath)
	fmt.Printf("Server URL:  %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Limit:       %d\n", *limit)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: agencysim not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure the server is running:")
		fmt.Println("  go run ./cmd/agencysim")
		os.Exit(1)
	}
	fmt.Println("OK server is healthy")

	fmt.Printf("\nReading leads from %s...\n", *exportPath)
	leads, warnings, err := readLabelledLeads(*exportPath, loc, *limit)
	if err != nil {
		fmt.Printf("ERROR: failed to read export: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("OK loaded %d leads (%d rows skipped)\n", len(leads), len(warnings))
	if len(leads) == 0 {
		os.Exit(0)
	}

	sold := 0
	for _, l := range leads {
		if l.Sold {
			sold++
		}
	}
	fmt.Printf("  - Sold:   %d (%.2f%%)\n", sold, 100*float64(sold)/float64(len(leads)))
	fmt.Printf("  - Unsold: %d (%.2f%%)\n", len(leads)-sold, 100*float64(len(leads)-sold)/float64(len(leads)))

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(leads, *baseURL, *tenantID, *workers, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// readLabelledLeads parses an export with the ingest package and pairs each
// lead with the outcome column of its source row.
func readLabelledLeads(path string, loc *time.Location, limit int) ([]LabelledLead, []string, error) {
	table, err := ingest.Open(path)
	if err != nil {
		return nil, nil, err
	}

	outcomeCol := -1
	leadCol := -1
	for i, name := range table.Header {
		key := strings.ToLower(strings.TrimSpace(name))
		if outcomeCol < 0 {
			for _, alias := range outcomeAliases {
				if key == alias {
					outcomeCol = i
				}
			}
		}
		if leadCol < 0 && (key == "lead_id" || key == "id") {
			leadCol = i
		}
	}
	if outcomeCol < 0 {
		return nil, nil, fmt.Errorf("missing outcome column (one of %s)", strings.Join(outcomeAliases, ", "))
	}

	outcomes := make(map[string]bool, len(table.Rows))
	for n, row := range table.Rows {
		id := fmt.Sprintf("line-%d", n+2)
		if leadCol >= 0 && leadCol < len(row) && strings.TrimSpace(row[leadCol]) != "" {
			id = strings.TrimSpace(row[leadCol])
		}
		if outcomeCol < len(row) {
			outcomes[id] = isSold(row[outcomeCol])
		}
	}

	leads, warnings, err := ingest.Leads(table, loc)
	if err != nil {
		return nil, warnings, err
	}

	out := make([]LabelledLead, 0, len(leads))
	for _, l := range leads {
		out = append(out, LabelledLead{Lead: l, Sold: outcomes[l.ID]})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, warnings, nil
}

func isSold(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "sold", "bound", "won":
		return true
	}
	return false
}

func runBenchmark(leads []LabelledLead, baseURL, tenantID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan LabelledLead, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for l := range work {
				start := time.Now()
				score, err := scoreLead(client, baseURL, tenantID, l.Lead)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", l.Lead.ID, err)
					}
					continue
				}

				if l.Sold {
					atomic.AddInt64(&metrics.TotalSold, 1)
				} else {
					atomic.AddInt64(&metrics.TotalUnsold, 1)
				}

				switch score.Grade {
				case domain.GradeHot:
					atomic.AddInt64(&metrics.Hot, 1)
				case domain.GradeWarm:
					atomic.AddInt64(&metrics.Warm, 1)
				default:
					atomic.AddInt64(&metrics.Cold, 1)
				}

				predicted := score.Grade == domain.GradeHot
				switch {
				case predicted && l.Sold:
					atomic.AddInt64(&metrics.TruePositives, 1)
				case predicted && !l.Sold:
					atomic.AddInt64(&metrics.FalsePositives, 1)
				case !predicted && !l.Sold:
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				default:
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if verbose {
					mark := "+"
					if predicted != l.Sold {
						mark = "x"
					}
					id := l.Lead.ID
					if len(id) > 12 {
						id = id[:12]
					}
					fmt.Printf("%s %-12s | Vendor: %-12s | Status: %-12s | Sold: %-5v | Grade: %-4s (%.1f) | Dupes: %d\n",
						mark,
						id,
						l.Lead.Vendor,
						l.Lead.Status,
						l.Sold,
						score.Grade,
						score.Points,
						score.DuplicateCount,
					)
				}
			}
		}()
	}

	for _, l := range leads {
		work <- l
	}
	close(work)

	wg.Wait()

	return metrics
}

func scoreLead(client *http.Client, baseURL, tenantID string, lead domain.Lead) (*domain.LeadScore, error) {
	body, err := json.Marshal(api.ScoreLeadsRequest{Leads: []domain.Lead{lead}})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/leads/score", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result api.ScoreLeadsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if len(result.Scores) != 1 || result.Scores[0] == nil {
		return nil, fmt.Errorf("expected 1 score, got %d", len(result.Scores))
	}
	return result.Scores[0], nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n+---------------------------------------------------------------+")
	fmt.Println("|                      BENCHMARK RESULTS                        |")
	fmt.Println("+---------------------------------------------------------------+")

	fmt.Printf("\nDATASET\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Total Sold:       %d\n", m.TotalSold)
	fmt.Printf("   Total Unsold:     %d\n", m.TotalUnsold)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\nGRADES\n")
	fmt.Printf("   Hot:   %d\n", m.Hot)
	fmt.Printf("   Warm:  %d\n", m.Warm)
	fmt.Printf("   Cold:  %d\n", m.Cold)

	fmt.Printf("\nCONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                     HOT      OTHER")
	fmt.Println("              +----------+----------+")
	fmt.Printf("   Actual  S  | %8d | %8d |  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              +----------+----------+")
	fmt.Printf("          NS  | %8d | %8d |  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              +----------+----------+")

	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\nGRADING METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of hot leads, how many sold)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of sales, how many were graded hot)\n", recall)
	fmt.Printf("   F1-Score:   %.4f\n", f1)
	fmt.Printf("   Accuracy:   %.4f\n", accuracy)

	fmt.Printf("\nPERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		lps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f leads/sec\n", lps)
	}

	fmt.Printf("\nINTERPRETATION\n")
	switch {
	case recall >= 0.7:
		fmt.Println("   Good recall: most sales came from hot leads")
	case recall >= 0.4:
		fmt.Println("   Moderate recall: many sales came from warm or cold leads")
	default:
		fmt.Println("   Poor recall: hot grading misses most sales, review vendor and status weights")
	}
	if precision >= 0.3 {
		fmt.Println("   Good precision: hot leads are worth the first call")
	} else {
		fmt.Println("   Low precision: hot grading is too generous")
	}

	fmt.Println()
}
