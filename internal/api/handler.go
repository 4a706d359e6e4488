package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/opensource-finance/agencysim/internal/cache"
	"github.com/opensource-finance/agencysim/internal/domain"
	"github.com/opensource-finance/agencysim/internal/pipeline"
	"github.com/opensource-finance/agencysim/internal/rules"
	"github.com/opensource-finance/agencysim/internal/scoring"
	"github.com/opensource-finance/agencysim/internal/simulator"
)

// maxBodyBytes bounds request bodies, including lead exports.
const maxBodyBytes = 8 << 20

// Handler holds dependencies for API handlers.
type Handler struct {
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	engine    *rules.Engine
	sim       *simulator.Simulator
	processor *pipeline.Processor
	scorer    *scoring.Scorer
	version   string
}

// NewHandler creates a new API handler. Only sim is required; endpoints
// whose collaborator is nil answer 503.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *rules.Engine, sim *simulator.Simulator, processor *pipeline.Processor, scorer *scoring.Scorer, version string) *Handler {
	return &Handler{
		repo:      repo,
		cache:     cache,
		bus:       bus,
		engine:    engine,
		sim:       sim,
		processor: processor,
		scorer:    scorer,
		version:   version,
	}
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	checks := map[string]string{}
	status := "healthy"

	check := func(name string, ping func() error) {
		if err := ping(); err != nil {
			slog.Warn("health check failed", "component", name, "error", err)
			checks[name] = "down"
			status = "degraded"
			return
		}
		checks[name] = "up"
	}

	if h.repo != nil {
		check("repository", func() error { return h.repo.Ping(ctx) })
	}
	if h.cache != nil {
		check("cache", func() error { return h.cache.Ping(ctx) })
	}
	if h.bus != nil {
		check("eventBus", func() error { return h.bus.Ping(ctx) })
	}

	body := map[string]any{
		"status":  status,
		"version": h.version,
		"checks":  checks,
	}
	if s, ok := h.cache.(interface{ Stats() cache.LRUStats }); ok {
		body["cache"] = s.Stats()
	}
	writeJSON(w, http.StatusOK, body)
}

// Ready reports whether the server can accept traffic. It requires a
// reachable repository when one is configured.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"ready": "false",
				"error": "repository unavailable",
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// SimulateMonth handles POST /simulate/month.
func (h *Handler) SimulateMonth(w http.ResponseWriter, r *http.Request) {
	var in domain.MonthlyInputs
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := in.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, h.sim.SimulateMonth(in))
}

// SimulateRunResponse is the response for POST /simulate/run.
type SimulateRunResponse struct {
	Months        []domain.MonthResult `json:"months"`
	CustomerCount int                  `json:"customerCount"`
}

// SimulateRun handles POST /simulate/run. Nothing is stored.
func (h *Handler) SimulateRun(w http.ResponseWriter, r *http.Request) {
	var sc simulator.Scenario
	if err := decodeJSON(w, r, &sc); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := sc.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res := h.sim.Run(sc)
	writeJSON(w, http.StatusOK, SimulateRunResponse{
		Months:        res.Months,
		CustomerCount: len(res.Customers),
	})
}

// decodeJSON decodes a bounded JSON body and rejects trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return fmt.Errorf("invalid JSON request body")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid JSON request body: unexpected trailing data")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
