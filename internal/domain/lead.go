package domain

import (
	"strings"
	"time"
)

// Lead is one inbound lead from a vendor export.
type Lead struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenantId,omitempty"`
	Vendor       string    `json:"vendor"`
	ReceivedAt   time.Time `json:"receivedAt"`
	CallDuration int       `json:"callDurationSecs"` // seconds
	Status       string    `json:"status"`
	Phone        string    `json:"phone,omitempty"`
	Product      string    `json:"product,omitempty"`
	State        string    `json:"state,omitempty"`
}

// NormalizedVendor returns the vendor key used for score lookups.
func (l *Lead) NormalizedVendor() string {
	return strings.ToLower(strings.TrimSpace(l.Vendor))
}

// NormalizedStatus returns the status key used for score lookups.
func (l *Lead) NormalizedStatus() string {
	return strings.ToLower(strings.TrimSpace(l.Status))
}

// LeadGrade buckets a lead score.
type LeadGrade string

const (
	GradeHot  LeadGrade = "hot"
	GradeWarm LeadGrade = "warm"
	GradeCold LeadGrade = "cold"
)

// ScoreComponents is the per-factor breakdown of a lead score.
type ScoreComponents struct {
	Vendor   float64 `json:"vendor"`
	Hour     float64 `json:"hour"`
	Weekday  float64 `json:"weekday"`
	Recency  float64 `json:"recency"`
	Duration float64 `json:"duration"`
	Status   float64 `json:"status"`
	Rules    float64 `json:"rules"`
}

// LeadScore is the result of scoring one lead.
type LeadScore struct {
	ID             string          `json:"id"`
	TenantID       string          `json:"tenantId"`
	LeadID         string          `json:"leadId"`
	Phone          string          `json:"phone,omitempty"`
	Points         float64         `json:"points"`
	Grade          LeadGrade       `json:"grade"`
	Components     ScoreComponents `json:"components"`
	DaysOld        int             `json:"daysOld"`
	DuplicateCount int64           `json:"duplicateCount"`
	RuleResults    []RuleResult    `json:"ruleResults,omitempty"`
	Reasons        []string        `json:"reasons,omitempty"`
	ScoredAt       time.Time       `json:"scoredAt"`
}
