package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/mpontes/shelfmark/internal/inventory"
	"github.com/mpontes/shelfmark/internal/logger"
	"github.com/mpontes/shelfmark/internal/observability"
)

// handleRecompute processes POST /api/v1/batches/{batchID}/recompute: an
// on-demand recomputation of a single batch, answering with the outcome and
// the resulting record.
func (a *API) handleRecompute(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	batchID, err := strconv.ParseInt(chi.URLParam(r, "batchID"), 10, 64)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INVALID_INPUT",
			Message: "batchID must be an integer",
		})
		return
	}

	outcome, err := a.runner.RunOne(r.Context(), batchID)
	if err != nil {
		if errors.Is(err, inventory.ErrBatchNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, ErrorResponse{
				Code:    "ERR_NOT_FOUND",
				Message: "Batch not found",
			})
			return
		}

		log.Error("failed to recompute batch", slog.Int64("batch_id", batchID), slog.String("error", err.Error()))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INTERNAL",
			Message: "Failed to recompute batch",
		})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, outcome)
}

// handleRulesReload processes POST /api/v1/rules/reload. A failed reload
// answers 422 and leaves the active rule set untouched.
func (a *API) handleRulesReload(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	snap, err := a.holder.Reload()
	if err != nil {
		observability.RulesReloads.WithLabelValues("rejected").Inc()
		log.Warn("rules reload rejected", slog.String("error", err.Error()))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INVALID_RULES",
			Message: "Rules document rejected: " + err.Error(),
		})
		return
	}

	observability.RulesReloads.WithLabelValues("ok").Inc()

	general, overrides := snap.RuleCount()
	log.Info("rules reloaded", slog.Int("general_rules", general), slog.Int("override_rules", overrides))
	render.Status(r, http.StatusOK)
	render.JSON(w, r, ReloadResponse{Rules: general + overrides})
}

// handleInvalidateExpired processes POST /api/v1/discounts/invalidate-expired,
// closing every active discount whose batch has already expired.
func (a *API) handleInvalidateExpired(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	n, err := a.manager.InvalidateExpired(r.Context())
	if err != nil {
		log.Error("failed to invalidate expired discounts", slog.String("error", err.Error()))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INTERNAL",
			Message: "Failed to invalidate expired discounts",
		})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, InvalidateExpiredResponse{Invalidated: n})
}
