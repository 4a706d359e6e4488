package scoring

import "time"

// Config holds every weight the heuristic lead scorer uses.
type Config struct {
	VendorScores       map[string]float64 `json:"vendorScores" yaml:"vendor_scores"`
	DefaultVendorScore float64            `json:"defaultVendorScore" yaml:"default_vendor_score"`

	// HourBands are checked in order; From is inclusive, To exclusive.
	HourBands      []HourBand         `json:"hourBands" yaml:"hour_bands"`
	OffHoursPoints float64            `json:"offHoursPoints" yaml:"off_hours_points"`
	WeekdayScores  map[string]float64 `json:"weekdayScores" yaml:"weekday_scores"`

	// RecencyBands are checked in order; the first band whose MaxDays is at
	// least the lead's age wins.
	RecencyBands       []RecencyBand `json:"recencyBands" yaml:"recency_bands"`
	StaleRecencyPoints float64       `json:"staleRecencyPoints" yaml:"stale_recency_points"`

	// DurationBands are checked in order; the first band whose MinSeconds
	// the call reaches wins.
	DurationBands []DurationBand `json:"durationBands" yaml:"duration_bands"`

	StatusScores       map[string]float64 `json:"statusScores" yaml:"status_scores"`
	DefaultStatusScore float64            `json:"defaultStatusScore" yaml:"default_status_score"`

	HotThreshold  float64 `json:"hotThreshold" yaml:"hot_threshold"`
	WarmThreshold float64 `json:"warmThreshold" yaml:"warm_threshold"`
	MaxPoints     float64 `json:"maxPoints" yaml:"max_points"`

	DuplicateWindowHours int `json:"duplicateWindowHours" yaml:"duplicate_window_hours"`
}

// HourBand scores the hour of day a lead arrived.
type HourBand struct {
	From   int     `json:"from" yaml:"from"`
	To     int     `json:"to" yaml:"to"`
	Points float64 `json:"points" yaml:"points"`
}

// RecencyBand scores how many days old a lead is.
type RecencyBand struct {
	MaxDays int     `json:"maxDays" yaml:"max_days"`
	Points  float64 `json:"points" yaml:"points"`
}

// DurationBand scores the length of the first call.
type DurationBand struct {
	MinSeconds int     `json:"minSeconds" yaml:"min_seconds"`
	Points     float64 `json:"points" yaml:"points"`
}

// DefaultConfig returns the stock lead-scoring weights.
func DefaultConfig() Config {
	return Config{
		VendorScores: map[string]float64{
			"referral":       25,
			"everquote":      18,
			"smartfinancial": 16,
			"quotewizard":    14,
			"mediaalpha":     12,
			"insurify":       12,
		},
		DefaultVendorScore: 8,

		HourBands: []HourBand{
			{From: 8, To: 11, Points: 15},
			{From: 11, To: 14, Points: 12},
			{From: 14, To: 17, Points: 10},
			{From: 17, To: 20, Points: 6},
		},
		OffHoursPoints: 2,
		WeekdayScores: map[string]float64{
			"monday":    10,
			"tuesday":   12,
			"wednesday": 12,
			"thursday":  10,
			"friday":    7,
			"saturday":  3,
			"sunday":    2,
		},

		RecencyBands: []RecencyBand{
			{MaxDays: 0, Points: 20},
			{MaxDays: 1, Points: 16},
			{MaxDays: 3, Points: 12},
			{MaxDays: 7, Points: 8},
			{MaxDays: 30, Points: 4},
		},
		StaleRecencyPoints: 0,

		DurationBands: []DurationBand{
			{MinSeconds: 300, Points: 15},
			{MinSeconds: 120, Points: 10},
			{MinSeconds: 30, Points: 5},
		},

		StatusScores: map[string]float64{
			"quoted":         10,
			"contacted":      6,
			"new":            4,
			"voicemail":      2,
			"sold":           0,
			"not interested": -15,
			"bad number":     -20,
		},
		DefaultStatusScore: 0,

		HotThreshold:  70,
		WarmThreshold: 45,
		MaxPoints:     100,

		DuplicateWindowHours: 30 * 24,
	}
}

// DuplicateWindow returns the duplicate look-back as a duration.
func (c Config) DuplicateWindow() time.Duration {
	return time.Duration(c.DuplicateWindowHours) * time.Hour
}
