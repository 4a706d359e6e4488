// Package report renders comprehensive reports as Markdown and HTML.
package report

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/opensource-finance/agencysim/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Markdown renders r as a GitHub-flavoured Markdown document.
func Markdown(r *domain.ComprehensiveReport) string {
	var b strings.Builder

	title := "Agency Report"
	if r.AgencyName != "" {
		title += ": " + escape(r.AgencyName)
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "Generated %s. Report `%s`.\n\n", r.GeneratedAt.UTC().Format(time.RFC1123), r.ID)

	writeInsights(&b, r.Insights)
	writeMonths(&b, r.Months)
	writeSegmentation(&b, r.Segmentation)
	writeMarketing(&b, r.Marketing)
	writeOutlook(&b, r.LTVOutlook)

	return b.String()
}

// HTML renders r as a standalone HTML page.
func HTML(r *domain.ComprehensiveReport) ([]byte, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(Markdown(r)), &body); err != nil {
		return nil, fmt.Errorf("failed to render report %s: %w", r.ID, err)
	}

	title := "Agency Report"
	if r.AgencyName != "" {
		title += " - " + r.AgencyName
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>%s</title>\n", html.EscapeString(title))
	page.WriteString("<style>body{font-family:sans-serif;max-width:960px;margin:2em auto}table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:4px 8px;text-align:right}th:first-child,td:first-child{text-align:left}</style>\n")
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}

func writeInsights(b *strings.Builder, insights []domain.Insight) {
	b.WriteString("## Insights\n\n")
	if len(insights) == 0 {
		b.WriteString("No insights.\n\n")
		return
	}
	for _, in := range insights {
		fmt.Fprintf(b, "- **%s** `%s`: %s\n", in.Level, in.Code, escape(in.Message))
	}
	b.WriteString("\n")
}

func writeMonths(b *strings.Builder, months []domain.MonthResult) {
	b.WriteString("## Monthly Performance\n\n")
	if len(months) == 0 {
		b.WriteString("No months simulated.\n\n")
		return
	}

	b.WriteString("| Month | Premium | Loss Ratio | Combined Ratio | Bonus | Commission | Agency Profit | Retention | Net Cash | Working Capital | Cash Warning |\n")
	b.WriteString("|---|---:|---:|---:|---|---:|---:|---:|---:|---:|---|\n")
	for i, m := range months {
		label := m.Month
		if label == "" {
			label = fmt.Sprintf("Month %d", i+1)
		}
		p := m.Profitability
		fmt.Fprintf(b, "| %s | %s | %s | %s | %s | %s | %s | %s | %s | %s | %s |\n",
			escape(label),
			money(p.Portfolio.TotalPremium),
			pct(p.Portfolio.LossRatio),
			pct(p.CombinedRatio),
			p.Bonus.Status,
			money(p.CommissionRevenue),
			money(p.AgencyProfit),
			pct(m.Retention.AdjustedRetention),
			money(m.CashFlow.NetCashFlow),
			money(m.CashFlow.WorkingCapitalNeed),
			yesNo(m.CashFlow.Warning),
		)
	}
	b.WriteString("\n")
}

func writeSegmentation(b *strings.Builder, seg domain.Segmentation) {
	b.WriteString("## Customer Segmentation\n\n")
	fmt.Fprintf(b, "%d customers, %s annual premium, %s lifetime commission.\n\n",
		seg.TotalCustomers, money(seg.TotalPremium), money(seg.TotalLTV))

	b.WriteString("| Tier | Customers | % of Book | Avg Premium | LTV | % of LTV |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|\n")
	for _, ts := range seg.Tiers {
		fmt.Fprintf(b, "| %s | %d | %.1f%% | %s | %s | %.1f%% |\n",
			ts.Tier, ts.Count, ts.PctOfBook, money(ts.AveragePremium), money(ts.TotalLTV), ts.PctOfLTV)
	}
	b.WriteString("\n")
}

func writeMarketing(b *strings.Builder, m domain.MarketingAllocation) {
	b.WriteString("## Marketing Allocation\n\n")
	if m.TotalBudget <= 0 {
		b.WriteString("No marketing budget supplied.\n\n")
		return
	}

	fmt.Fprintf(b, "Budget: %s.\n\n", money(m.TotalBudget))
	b.WriteString("| Tier | Weight | Share | Amount |\n")
	b.WriteString("|---|---:|---:|---:|\n")
	for _, a := range m.Allocations {
		fmt.Fprintf(b, "| %s | %g | %s | %s |\n", a.Tier, a.Weight, pct(a.Share), money(a.Amount))
	}
	b.WriteString("\n")
}

func writeOutlook(b *strings.Builder, ltv domain.LTVProjection) {
	b.WriteString("## Lifetime Value Outlook\n\n")
	fmt.Fprintf(b, "Average premium %s at %s adjusted retention: %s over %d years.\n\n",
		money(ltv.BasePremium), pct(ltv.AdjustedRetention), money(ltv.LTV), len(ltv.Years))
	if len(ltv.Years) == 0 {
		return
	}

	b.WriteString("| Year | Premium | Survival | Commission | Discounted |\n")
	b.WriteString("|---:|---:|---:|---:|---:|\n")
	for _, y := range ltv.Years {
		fmt.Fprintf(b, "| %d | %s | %s | %s | %s |\n",
			y.Year, money(y.Premium), pct(y.Survival), money(y.Commission), money(y.DiscountedValue))
	}
	b.WriteString("\n")
}

// money formats v as dollars with thousands separators.
func money(v float64) string {
	s := decimal.NewFromFloat(v).StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")

	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(r)
	}
	return sign + "$" + grouped.String() + "." + frac
}

// pct formats a fraction as a percentage.
func pct(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// escape keeps caller text from breaking table cells or injecting markup.
func escape(s string) string {
	return strings.NewReplacer("|", `\|`, "<", "&lt;", ">", "&gt;", "\n", " ").Replace(s)
}
