package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/agencysim/internal/domain"
	"github.com/opensource-finance/agencysim/internal/repository"
	"github.com/opensource-finance/agencysim/internal/rules"
)

// CreateScoringRuleRequest is the request body for POST /scoring-rules.
type CreateScoringRuleRequest struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Version     string            `json:"version,omitempty"`
	Expression  string            `json:"expression"`
	Bands       []domain.RuleBand `json:"bands"`
	Weight      float64           `json:"weight"`
	Enabled     bool              `json:"enabled"`
}

// ListScoringRules returns the rules currently loaded in the engine.
func (h *Handler) ListScoringRules(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "rule engine not available")
		return
	}

	loaded := h.engine.GetLoadedRules()
	writeJSON(w, http.StatusOK, map[string]any{
		"rules": loaded,
		"count": len(loaded),
	})
}

// CreateScoringRule validates a rule and stores it for every tenant.
// Call POST /scoring-rules/reload to apply it.
func (h *Handler) CreateScoringRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.engine == nil || h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "rule storage not available")
		return
	}

	var req CreateScoringRuleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeError(w, http.StatusBadRequest, "id, name, and expression are required")
		return
	}

	rule := &domain.ScoringRule{
		ID:          req.ID,
		TenantID:    domain.GlobalTenantID,
		Name:        req.Name,
		Description: req.Description,
		Version:     req.Version,
		Expression:  req.Expression,
		Bands:       req.Bands,
		Weight:      req.Weight,
		Enabled:     req.Enabled,
	}
	if rule.Version == "" {
		rule.Version = "1.0.0"
	}

	if err := h.engine.ValidateRule(rule); err != nil {
		writeError(w, http.StatusBadRequest, "invalid CEL expression: "+err.Error())
		return
	}

	if err := h.repo.SaveScoringRule(ctx, domain.GlobalTenantID, rule); err != nil {
		slog.Error("failed to save scoring rule", "id", rule.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save rule")
		return
	}

	slog.Info("scoring rule created", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, map[string]any{
		"rule":    rule,
		"message": "Rule created. Call POST /scoring-rules/reload to apply changes.",
	})
}

// DeleteScoringRule disables a stored rule and reloads the engine.
func (h *Handler) DeleteScoringRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID := chi.URLParam(r, "id")

	if h.engine == nil || h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "rule storage not available")
		return
	}

	if err := h.repo.DeleteScoringRule(ctx, domain.GlobalTenantID, ruleID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "rule not found")
			return
		}
		slog.Error("failed to delete scoring rule", "id", ruleID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete rule")
		return
	}

	count, err := rules.LoadStored(ctx, h.repo, h.engine, domain.GlobalTenantID)
	if err != nil {
		slog.Error("failed to reload scoring rules after delete", "error", err)
	}

	slog.Info("scoring rule deleted", "id", ruleID)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Rule deleted and engine reloaded.",
		"count":   count,
	})
}

// ReloadScoringRules reloads stored rules into the engine without a restart.
func (h *Handler) ReloadScoringRules(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil || h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "rule storage not available")
		return
	}

	count, err := rules.LoadStored(r.Context(), h.repo, h.engine, domain.GlobalTenantID)
	if err != nil {
		slog.Error("failed to reload scoring rules", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reload rules: "+err.Error())
		return
	}

	slog.Info("scoring rules reloaded", "count", count)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "rules reloaded successfully",
		"count":   count,
	})
}
