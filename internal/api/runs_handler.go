package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/mpontes/shelfmark/internal/logger"
	"github.com/mpontes/shelfmark/internal/pipeline"
)

// decodeRunRequest reads the optional JSON body of a run trigger.
// An empty body is valid and means "use the defaults".
func decodeRunRequest(r *http.Request) (RunRequest, error) {
	var req RunRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
		return RunRequest{}, err
	}
	return req, nil
}

// handleRun processes POST /api/v1/runs: a synchronous, in-process
// recomputation run. The response carries the full run statistics.
func (a *API) handleRun(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	req, err := decodeRunRequest(r)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INVALID_JSON",
			Message: "Invalid JSON payload: " + err.Error(),
		})
		return
	}

	daysThreshold, chunkSize, errResp := req.Resolve(a.cfg)
	if errResp != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errResp)
		return
	}

	stats, err := a.runner.Run(r.Context(), daysThreshold, chunkSize)
	if err != nil {
		log.Error("run failed", slog.String("error", err.Error()))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INTERNAL",
			Message: "Recomputation run failed",
		})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, RunResponse{Stats: stats})
}

// handleDispatch processes POST /api/v1/runs/dispatch: it enqueues the run's
// chunks for the workers and answers immediately with a job id.
func (a *API) handleDispatch(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	if a.dispatcher == nil {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_DISPATCH_UNAVAILABLE",
			Message: "Asynchronous dispatch requires Redis to be configured",
		})
		return
	}

	req, err := decodeRunRequest(r)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INVALID_JSON",
			Message: "Invalid JSON payload: " + err.Error(),
		})
		return
	}

	daysThreshold, chunkSize, errResp := req.Resolve(a.cfg)
	if errResp != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errResp)
		return
	}

	jobID, chunks, err := a.dispatcher.Dispatch(r.Context(), daysThreshold, chunkSize)
	if err != nil {
		log.Error("dispatch failed", slog.String("error", err.Error()))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INTERNAL",
			Message: "Failed to dispatch run",
		})
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, DispatchResponse{JobID: jobID, Chunks: chunks})
}

// handleJobStatus processes GET /api/v1/jobs/{jobID}.
func (a *API) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	if a.dispatcher == nil {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_DISPATCH_UNAVAILABLE",
			Message: "Job tracking requires Redis to be configured",
		})
		return
	}

	jobID := chi.URLParam(r, "jobID")

	status, err := a.dispatcher.Status(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, pipeline.ErrJobNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, ErrorResponse{
				Code:    "ERR_NOT_FOUND",
				Message: "Job not found or expired",
			})
			return
		}

		log.Error("failed to read job status", slog.String("job_id", jobID), slog.String("error", err.Error()))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INTERNAL",
			Message: "Failed to read job status",
		})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, status)
}
