package api

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/agencysim/internal/bus"
	"github.com/opensource-finance/agencysim/internal/domain"
	"github.com/opensource-finance/agencysim/internal/ingest"
)

// maxLeadsPerRequest bounds a single scoring batch.
const maxLeadsPerRequest = 1000

// ScoreLeadsRequest is the request body for POST /leads/score.
type ScoreLeadsRequest struct {
	Leads []domain.Lead `json:"leads"`
}

// ScoreLeadsResponse is the response for lead scoring endpoints.
type ScoreLeadsResponse struct {
	Scores   []*domain.LeadScore `json:"scores"`
	Count    int                 `json:"count"`
	Warnings []string            `json:"warnings,omitempty"`
}

// ScoreLeads handles POST /leads/score.
func (h *Handler) ScoreLeads(w http.ResponseWriter, r *http.Request) {
	if h.scorer == nil {
		writeError(w, http.StatusServiceUnavailable, "lead scorer not available")
		return
	}

	var req ScoreLeadsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Leads) == 0 {
		writeError(w, http.StatusBadRequest, "at least one lead is required")
		return
	}
	for i, lead := range req.Leads {
		if lead.Vendor == "" {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("leads[%d].vendor is required", i))
			return
		}
	}

	h.respondScores(w, r, req.Leads, nil)
}

// ImportLeads handles POST /leads/import. The body is a vendor export as
// text/csv or an HTML table (text/html). The optional tz query parameter
// names the IANA zone of timestamps without an offset.
func (h *Handler) ImportLeads(w http.ResponseWriter, r *http.Request) {
	if h.scorer == nil {
		writeError(w, http.StatusServiceUnavailable, "lead scorer not available")
		return
	}

	loc := time.UTC
	if tz := r.URL.Query().Get("tz"); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown time zone: "+tz)
			return
		}
		loc = l
	}

	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var (
		table *ingest.Table
		err   error
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "text/csv", "application/csv":
		table, err = ingest.ReadCSV(body)
	case "text/html":
		table, err = ingest.ReadHTMLTable(body)
	default:
		writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be text/csv or text/html")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	leads, warnings, err := ingest.Leads(table, loc)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":    err.Error(),
			"warnings": warnings,
		})
		return
	}
	h.respondScores(w, r, leads, warnings)
}

func (h *Handler) respondScores(w http.ResponseWriter, r *http.Request, leads []domain.Lead, warnings []string) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if len(leads) > maxLeadsPerRequest {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("at most %d leads per request", maxLeadsPerRequest))
		return
	}

	scores, err := h.scoreLeads(ctx, tenantID, leads)
	if err != nil {
		slog.Error("failed to score leads", "tenant_id", tenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to score leads")
		return
	}

	writeJSON(w, http.StatusOK, ScoreLeadsResponse{
		Scores:   scores,
		Count:    len(scores),
		Warnings: warnings,
	})
}

// scoreLeads scores leads in order, storing each score before the next
// lead is scored so repeats within a batch count as duplicates.
func (h *Handler) scoreLeads(ctx context.Context, tenantID string, leads []domain.Lead) ([]*domain.LeadScore, error) {
	scores := make([]*domain.LeadScore, 0, len(leads))
	for i := range leads {
		lead := &leads[i]
		lead.TenantID = tenantID
		if lead.ID == "" {
			lead.ID = uuid.New().String()
		}

		score, err := h.scorer.Score(ctx, tenantID, lead)
		if err != nil {
			return nil, fmt.Errorf("lead %s: %w", lead.ID, err)
		}

		if h.repo != nil {
			if err := h.repo.SaveLeadScore(ctx, tenantID, score); err != nil {
				return nil, fmt.Errorf("failed to save score for lead %s: %w", lead.ID, err)
			}
		}

		if h.bus != nil {
			if err := bus.PublishJSON(ctx, h.bus, tenantID, domain.TopicLeadScored, score); err != nil {
				slog.Warn("failed to publish lead score", "lead_id", lead.ID, "error", err)
			}
		}

		scores = append(scores, score)
	}
	return scores, nil
}
