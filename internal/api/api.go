// Package api implements the REST control surface of the markdown service:
// triggering runs, polling dispatched jobs, recomputing single batches, and
// reloading the rules document.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/mpontes/shelfmark/internal/config"
	"github.com/mpontes/shelfmark/internal/discount"
	"github.com/mpontes/shelfmark/internal/pipeline"
	"github.com/mpontes/shelfmark/internal/rules"
)

// API holds the router and the dependencies of the control endpoints.
type API struct {
	// Router is the chi multiplexer that handles HTTP requests.
	Router *chi.Mux

	runner     *pipeline.Runner
	dispatcher *pipeline.Dispatcher
	manager    *discount.Manager
	holder     *rules.Holder
	cfg        *config.PipelineConfig
}

// NewAPI wires the control API. dispatcher may be nil when Redis is not
// configured; the dispatch and job endpoints then answer 503.
func NewAPI(runner *pipeline.Runner, dispatcher *pipeline.Dispatcher, manager *discount.Manager, holder *rules.Holder, cfg *config.PipelineConfig) *API {
	if runner == nil {
		panic("api: runner cannot be nil")
	}
	if manager == nil {
		panic("api: discount manager cannot be nil")
	}
	if holder == nil {
		panic("api: rules holder cannot be nil")
	}
	if cfg == nil {
		panic("api: pipeline config cannot be nil")
	}

	a := &API{
		Router:     chi.NewRouter(),
		runner:     runner,
		dispatcher: dispatcher,
		manager:    manager,
		holder:     holder,
		cfg:        cfg,
	}

	a.configureRoutes()
	return a
}

// configureRoutes registers the global middleware stack and API endpoints.
func (a *API) configureRoutes() {
	a.Router.Use(middleware.RequestID)
	a.Router.Use(middleware.RealIP)
	a.Router.Use(RequestLogger)
	a.Router.Use(middleware.Recoverer)
	a.Router.Use(render.SetContentType(render.ContentTypeJSON))

	a.Router.Get("/health", a.handleHealthCheck)

	a.Router.Route("/api/v1", func(r chi.Router) {
		r.Route("/runs", func(r chi.Router) {
			r.Post("/", a.handleRun)
			r.Post("/dispatch", a.handleDispatch)
		})

		r.Get("/jobs/{jobID}", a.handleJobStatus)

		r.Post("/batches/{batchID}/recompute", a.handleRecompute)

		r.Post("/rules/reload", a.handleRulesReload)

		r.Post("/discounts/invalidate-expired", a.handleInvalidateExpired)
	})
}

// handleHealthCheck reports that the HTTP server is serving. Deep dependency
// checks live on the observability server's readiness probe.
func (a *API) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"status": "ok"})
}
