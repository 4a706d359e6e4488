// Agencysim - Offline scenario runner and lead export scorer
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

// Command scenario runs agencysim locally without a server.
//
//	scenario report -scenario plan.yaml [-customers book.csv] [-format markdown|html|json]
//	scenario leads -file leads.csv [-scoring weights.yaml] [-tz America/Chicago]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"

	"github.com/opensource-finance/agencysim/internal/cache"
	"github.com/opensource-finance/agencysim/internal/clock"
	"github.com/opensource-finance/agencysim/internal/config"
	"github.com/opensource-finance/agencysim/internal/domain"
	"github.com/opensource-finance/agencysim/internal/ingest"
	"github.com/opensource-finance/agencysim/internal/report"
	"github.com/opensource-finance/agencysim/internal/rules"
	"github.com/opensource-finance/agencysim/internal/scoring"
	"github.com/opensource-finance/agencysim/internal/simulator"
	"github.com/opensource-finance/agencysim/internal/velocity"
)

// localTenant owns everything produced by the offline runner.
const localTenant = "local"

var errUsage = errors.New("usage")

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	if err := run(context.Background(), os.Args[1:], os.Stdout, logger); err != nil {
		if errors.Is(err, errUsage) {
			printUsage(os.Stderr)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  scenario report -scenario FILE [-customers FILE] [-assumptions FILE] [-format markdown|html|json] [-out FILE]")
	fmt.Fprintln(w, "  scenario leads  -file FILE [-scoring FILE] [-tz ZONE] [-format table|json]")
}

func run(ctx context.Context, args []string, stdout io.Writer, logger *slog.Logger) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "report":
		return runReport(args[1:], stdout)
	case "leads":
		return runLeads(ctx, args[1:], stdout, logger)
	default:
		return errUsage
	}
}

func runReport(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	scenarioPath := fs.String("scenario", "", "Scenario file (YAML, HJSON or JSON)")
	customersPath := fs.String("customers", "", "Customer export appended to the starting book (CSV or HTML)")
	assumptionsPath := fs.String("assumptions", "", "Assumptions override file")
	format := fs.String("format", "markdown", "Output format: markdown, html or json")
	outPath := fs.String("out", "", "Write output to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *scenarioPath == "" {
		return errUsage
	}

	assumptions := domain.DefaultAssumptions()
	if *assumptionsPath != "" {
		var err error
		assumptions, err = config.ReadAssumptions(*assumptionsPath, assumptions)
		if err != nil {
			return err
		}
	}

	sc, err := config.ReadScenario(*scenarioPath)
	if err != nil {
		return err
	}
	if *customersPath != "" {
		customers, warnings, err := ingest.FileSource{Path: *customersPath}.Customers(context.Background())
		if err != nil {
			return fmt.Errorf("failed to read customers: %w", err)
		}
		for _, w := range warnings {
			fmt.Fprintf(os.Stderr, "warning: %s\n", w)
		}
		sc.StartingCustomers = append(sc.StartingCustomers, customers...)
	}
	if err := sc.Validate(); err != nil {
		return fmt.Errorf("invalid scenario: %w", err)
	}

	sim := simulator.New(assumptions, clock.NewReal())
	rpt := sim.Report(localTenant, sc)

	var out []byte
	switch strings.ToLower(*format) {
	case "markdown", "md":
		out = []byte(report.Markdown(rpt))
	case "html":
		out, err = report.HTML(rpt)
		if err != nil {
			return err
		}
	case "json":
		out, err = json.MarshalIndent(rpt, "", "  ")
		if err != nil {
			return err
		}
		out = append(out, '\n')
	default:
		return fmt.Errorf("unknown format %q", *format)
	}

	if *outPath != "" {
		return os.WriteFile(*outPath, out, 0o644)
	}
	_, err = stdout.Write(out)
	return err
}

func runLeads(ctx context.Context, args []string, stdout io.Writer, logger *slog.Logger) error {
	fs := flag.NewFlagSet("leads", flag.ContinueOnError)
	filePath := fs.String("file", "", "Lead export (CSV or HTML)")
	scoringPath := fs.String("scoring", "", "Scoring weights file")
	tz := fs.String("tz", "UTC", "Time zone for timestamps without an offset")
	format := fs.String("format", "table", "Output format: table or json")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *filePath == "" {
		return errUsage
	}

	loc, err := time.LoadLocation(*tz)
	if err != nil {
		return fmt.Errorf("invalid time zone %q: %w", *tz, err)
	}

	cfg := scoring.DefaultConfig()
	if *scoringPath != "" {
		cfg, err = config.ReadScoring(*scoringPath)
		if err != nil {
			return err
		}
	}

	leads, warnings, err := ingest.FileSource{Path: *filePath, Location: loc}.Leads(ctx)
	if err != nil {
		return err
	}

	engine, err := rules.NewEngine(10)
	if err != nil {
		return err
	}
	defer engine.Close()
	if err := engine.LoadRules(rules.DefaultRules()); err != nil {
		return err
	}

	clk := clock.NewReal()
	counter := cache.NewLRUCache(len(leads)+1, clk)
	defer counter.Close()
	duplicates := velocity.NewService(nil, counter, cfg.DuplicateWindow(), clk)
	scorer := scoring.NewScorer(cfg, clk, engine, duplicates, logger)

	// Oldest first so duplicates count against the earlier sighting.
	sort.SliceStable(leads, func(i, j int) bool {
		return leads[i].ReceivedAt.Before(leads[j].ReceivedAt)
	})

	scores := make([]*domain.LeadScore, 0, len(leads))
	for i := range leads {
		s, err := scorer.Score(ctx, localTenant, &leads[i])
		if err != nil {
			return fmt.Errorf("lead %s: %w", leads[i].ID, err)
		}
		scores = append(scores, s)
	}

	if strings.ToLower(*format) == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Scores   []*domain.LeadScore `json:"scores"`
			Warnings []string            `json:"warnings,omitempty"`
		}{scores, warnings})
	}

	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Points > scores[j].Points })

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LEAD\tGRADE\tPOINTS\tDAYS OLD\tDUPLICATES\tREASONS")
	for _, s := range scores {
		fmt.Fprintf(tw, "%s\t%s\t%.1f\t%d\t%d\t%s\n",
			s.LeadID, s.Grade, s.Points, s.DaysOld, s.DuplicateCount, strings.Join(s.Reasons, "; "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, w := range warnings {
		fmt.Fprintf(stdout, "warning: %s\n", w)
	}
	return nil
}
