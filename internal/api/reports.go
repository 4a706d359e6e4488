package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opensource-finance/agencysim/internal/bus"
	"github.com/opensource-finance/agencysim/internal/domain"
	"github.com/opensource-finance/agencysim/internal/pipeline"
	"github.com/opensource-finance/agencysim/internal/report"
	"github.com/opensource-finance/agencysim/internal/repository"
	"github.com/opensource-finance/agencysim/internal/simulator"
)

var errRepositoryUnavailable = errors.New("repository not available")

// CreateReportResponse is the response for a synchronous POST /reports.
type CreateReportResponse struct {
	Report   *domain.ComprehensiveReport `json:"report"`
	Decision pipeline.Decision           `json:"decision"`
	TraceID  string                      `json:"traceId"`
}

// QueuedReportResponse is the response for POST /reports?async=true.
type QueuedReportResponse struct {
	ReportID string `json:"reportId"`
	Status   string `json:"status"`
	Location string `json:"location"`
	TraceID  string `json:"traceId"`
}

// CreateReport handles POST /reports. The body is a scenario. By default the
// report is generated inline; with ?async=true the request is queued for the
// worker and the caller polls GET /reports/{id}.
func (h *Handler) CreateReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var sc simulator.Scenario
	if err := decodeJSON(w, r, &sc); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := sc.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	async, _ := strconv.ParseBool(r.URL.Query().Get("async"))
	if async {
		h.queueReport(w, r, sc)
		return
	}

	if h.processor == nil {
		writeError(w, http.StatusServiceUnavailable, "report pipeline not available")
		return
	}

	rpt, decision, err := h.processor.Process(ctx, tenantID, &pipeline.ReportRequest{
		TraceID:  traceID,
		Scenario: sc,
	})
	if err != nil {
		slog.Error("failed to generate report", "tenant_id", tenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to generate report")
		return
	}

	w.Header().Set("Location", "/reports/"+rpt.ID)
	writeJSON(w, http.StatusCreated, CreateReportResponse{
		Report:   rpt,
		Decision: decision,
		TraceID:  traceID,
	})
}

func (h *Handler) queueReport(w http.ResponseWriter, r *http.Request, sc simulator.Scenario) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	if h.bus == nil {
		writeError(w, http.StatusServiceUnavailable, "event bus not available")
		return
	}

	req := pipeline.ReportRequest{
		ReportID: uuid.New().String(),
		TraceID:  traceID,
		Scenario: sc,
	}
	if err := bus.PublishJSON(ctx, h.bus, tenantID, domain.TopicReportRequested, req); err != nil {
		slog.Error("failed to queue report", "tenant_id", tenantID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "failed to queue report")
		return
	}

	location := "/reports/" + req.ReportID
	w.Header().Set("Location", location)
	writeJSON(w, http.StatusAccepted, QueuedReportResponse{
		ReportID: req.ReportID,
		Status:   "queued",
		Location: location,
		TraceID:  traceID,
	})
}

// ListReports handles GET /reports. Supported query parameters are
// bonusStatus, cashWarning, since (RFC 3339) and limit.
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, errRepositoryUnavailable.Error())
		return
	}

	filter, err := parseReportFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summaries, err := h.repo.ListReports(ctx, tenantID, filter)
	if err != nil {
		slog.Error("failed to list reports", "tenant_id", tenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"reports": summaries,
		"count":   len(summaries),
	})
}

func parseReportFilter(r *http.Request) (domain.ReportFilter, error) {
	q := r.URL.Query()
	var f domain.ReportFilter

	if v := q.Get("bonusStatus"); v != "" {
		switch s := domain.BonusStatus(v); s {
		case domain.BonusFull, domain.BonusReduced, domain.BonusWarning, domain.BonusIneligible:
			f.BonusStatus = s
		default:
			return f, errors.New("bonusStatus must be one of full_bonus, reduced_bonus, warning, ineligible")
		}
	}
	if v := q.Get("cashWarning"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, errors.New("cashWarning must be a boolean")
		}
		f.CashWarning = &b
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, errors.New("since must be an RFC 3339 timestamp")
		}
		f.Since = t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return f, errors.New("limit must be a positive integer")
		}
		f.Limit = n
	}
	return f, nil
}

// GetReport handles GET /reports/{id}.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	rpt, ok := h.reportOrError(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rpt)
}

// GetReportHTML handles GET /reports/{id}/html.
func (h *Handler) GetReportHTML(w http.ResponseWriter, r *http.Request) {
	rpt, ok := h.reportOrError(w, r)
	if !ok {
		return
	}

	page, err := report.HTML(rpt)
	if err != nil {
		slog.Error("failed to render report", "report_id", rpt.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to render report")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(page)
}

// GetReportMarkdown handles GET /reports/{id}/markdown.
func (h *Handler) GetReportMarkdown(w http.ResponseWriter, r *http.Request) {
	rpt, ok := h.reportOrError(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(report.Markdown(rpt)))
}

// reportOrError loads the {id} report and writes the error response when
// it cannot.
func (h *Handler) reportOrError(w http.ResponseWriter, r *http.Request) (*domain.ComprehensiveReport, bool) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	reportID := chi.URLParam(r, "id")

	rpt, err := h.lookupReport(ctx, tenantID, reportID)
	switch {
	case err == nil:
		return rpt, true
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "report not found")
	case errors.Is(err, errRepositoryUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		slog.Error("failed to get report", "tenant_id", tenantID, "report_id", reportID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get report")
	}
	return nil, false
}

// lookupReport reads through the cache to the repository and refills the
// cache on a miss. Cache errors are logged and treated as misses.
func (h *Handler) lookupReport(ctx context.Context, tenantID, reportID string) (*domain.ComprehensiveReport, error) {
	if h.cache != nil {
		rpt, err := h.cache.GetReport(ctx, tenantID, reportID)
		if err != nil {
			slog.Warn("report cache read failed", "report_id", reportID, "error", err)
		} else if rpt != nil {
			return rpt, nil
		}
	}

	if h.repo == nil {
		return nil, errRepositoryUnavailable
	}

	rpt, err := h.repo.GetReport(ctx, tenantID, reportID)
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		if err := h.cache.SetReport(ctx, tenantID, rpt, pipeline.DefaultCacheTTL); err != nil {
			slog.Warn("report cache write failed", "report_id", reportID, "error", err)
		}
	}
	return rpt, nil
}
