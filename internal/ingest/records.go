package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/opensource-finance/agencysim/internal/domain"
)

// Lead column aliases, tried in order.
var leadAliases = map[string][]string{
	"id":       {"lead_id", "id"},
	"vendor":   {"vendor", "lead_source", "source"},
	"received": {"received_at", "created_at", "timestamp", "date"},
	"duration": {"call_duration", "duration", "talk_time"},
	"status":   {"status", "disposition"},
	"phone":    {"phone", "phone_number"},
	"product":  {"product", "line"},
	"state":    {"state"},
}

// Customer column aliases, tried in order. Policy-count columns are not
// product counts: two auto policies are one product line.
var customerAliases = map[string][]string{
	"id":       {"customer_id", "id"},
	"name":     {"name", "customer_name"},
	"count":    {"product_count", "product_lines", "lines_of_business"},
	"products": {"products", "lines"},
	"premium":  {"annual_premium", "premium", "total_premium"},
	"tenure":   {"tenure_years", "tenure"},
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006 3:04 PM",
	"1/2/2006 3:04 PM",
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
}

// Leads maps a table to leads. Vendor and received-at columns are
// required. Rows that cannot be parsed are skipped with a warning.
// Timestamps without a zone are read in loc.
func Leads(t *Table, loc *time.Location) ([]domain.Lead, []string, error) {
	if loc == nil {
		loc = time.UTC
	}
	cols := mapHeaders(t.Header)
	if missing := cols.missing(leadAliases, []string{"vendor", "received"}); len(missing) > 0 {
		return nil, nil, fmt.Errorf("%w: missing required headers: %s", ErrSourceUnavailable, strings.Join(missing, ", "))
	}

	pos := make(map[string]int, len(leadAliases))
	for field, aliases := range leadAliases {
		pos[field], _ = cols.find(aliases)
	}

	var leads []domain.Lead
	var warnings []string
	for n, record := range t.Rows {
		line := n + 2
		received, err := parseTime(cell(record, pos["received"]), loc)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		duration, err := parseDuration(cell(record, pos["duration"]))
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("line %d: %v", line, err))
			continue
		}

		id := cell(record, pos["id"])
		if id == "" {
			id = fmt.Sprintf("line-%d", line)
		}
		leads = append(leads, domain.Lead{
			ID:           id,
			Vendor:       cell(record, pos["vendor"]),
			ReceivedAt:   received,
			CallDuration: duration,
			Status:       cell(record, pos["status"]),
			Phone:        cell(record, pos["phone"]),
			Product:      cell(record, pos["product"]),
			State:        cell(record, pos["state"]),
		})
	}

	if len(leads) == 0 && len(t.Rows) > 0 {
		return nil, warnings, fmt.Errorf("%w: no valid leads found", ErrSourceUnavailable)
	}
	return leads, warnings, nil
}

// Customers maps a table to customer records. Either a product-count or a
// product-list column is required. Premium falls back to zero when absent.
func Customers(t *Table) ([]domain.CustomerRecord, []string, error) {
	cols := mapHeaders(t.Header)
	_, hasCount := cols.find(customerAliases["count"])
	_, hasList := cols.find(customerAliases["products"])
	if !hasCount && !hasList {
		return nil, nil, fmt.Errorf("%w: missing required headers: product_count or products", ErrSourceUnavailable)
	}

	pos := make(map[string]int, len(customerAliases))
	for field, aliases := range customerAliases {
		pos[field], _ = cols.find(aliases)
	}

	var customers []domain.CustomerRecord
	var warnings []string
	for n, record := range t.Rows {
		line := n + 2

		count := 0
		if raw := cell(record, pos["count"]); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("line %d: invalid product count %q", line, raw))
				continue
			}
			count = v
		}
		premium, err := parseMoney(cell(record, pos["premium"]))
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("line %d: invalid premium: %v", line, err))
			continue
		}
		tenure, err := parseMoney(cell(record, pos["tenure"]))
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("line %d: invalid tenure: %v", line, err))
			continue
		}

		id := cell(record, pos["id"])
		if id == "" {
			id = fmt.Sprintf("line-%d", line)
		}
		customers = append(customers, domain.CustomerRecord{
			ID:            id,
			Name:          cell(record, pos["name"]),
			ProductCount:  count,
			Products:      splitList(cell(record, pos["products"])),
			AnnualPremium: premium,
			TenureYears:   tenure,
		})
	}

	if len(customers) == 0 && len(t.Rows) > 0 {
		return nil, warnings, fmt.Errorf("%w: no valid customers found", ErrSourceUnavailable)
	}
	return customers, warnings, nil
}

func parseTime(raw string, loc *time.Location) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("missing timestamp")
	}
	for _, layout := range timeLayouts {
		if ts, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", raw)
}

// parseDuration accepts plain seconds, mm:ss or h:mm:ss. Empty is zero.
func parseDuration(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	parts := strings.Split(raw, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid call duration %q", raw)
	}
	total := 0
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid call duration %q", raw)
		}
		total = total*60 + v
	}
	return total, nil
}

// parseMoney strips currency formatting. Empty is zero.
func parseMoney(raw string) (float64, error) {
	raw = strings.NewReplacer("$", "", ",", "", " ", "").Replace(raw)
	if raw == "" {
		return 0, nil
	}
	neg := strings.HasPrefix(raw, "(") && strings.HasSuffix(raw, ")")
	raw = strings.Trim(raw, "()")
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if neg {
		v = -v
	}
	return v, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ';' || r == ',' || r == '|' || r == '/'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			out = append(out, f)
		}
	}
	return out
}
