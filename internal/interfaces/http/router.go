package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/turtacn/KnotWeave/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KnotWeave/internal/interfaces/http/handlers"
	"github.com/turtacn/KnotWeave/internal/interfaces/http/middleware"
)

// RouterConfig aggregates all handler and middleware dependencies required
// to construct the complete HTTP route tree.
type RouterConfig struct {
	// Handlers
	KnotHandler   *handlers.KnotHandler
	CompatHandler *handlers.CompatHandler
	HealthHandler *handlers.HealthHandler

	// Middleware
	CORS    *middleware.CORSConfig
	Logging middleware.LoggingConfig

	// Infrastructure
	Logger   logging.Logger
	Recorder middleware.RequestRecorder
	// MetricsHandler is mounted at /metrics when non-nil.
	MetricsHandler http.Handler
}

// NewRouter constructs the complete HTTP route tree from the given
// configuration.  Nil handlers leave their routes unmounted.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	// --- Global middleware (applied to every request) ---
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogging(logger, cfg.Recorder, cfg.Logging))
	r.Use(chimw.Recoverer)
	if cfg.CORS != nil {
		r.Use(middleware.CORS(*cfg.CORS))
	}

	// --- Health ---
	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Liveness)
		r.Get("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// --- API v1 ---
	r.Route("/api/v1", func(api chi.Router) {
		registerKnotRoutes(api, cfg.KnotHandler)
		registerCompatRoutes(api, cfg.CompatHandler)
	})

	return r
}

// registerKnotRoutes mounts knot endpoints under /knots.
func registerKnotRoutes(r chi.Router, h *handlers.KnotHandler) {
	if h == nil {
		return
	}
	r.Route("/knots", func(kr chi.Router) {
		kr.Post("/", h.Build)
		kr.Post("/evolve", h.Evolve)
		kr.Post("/stability", h.Stability)
	})
}

// registerCompatRoutes mounts compatibility endpoints under /compatibility.
func registerCompatRoutes(r chi.Router, h *handlers.CompatHandler) {
	if h == nil {
		return
	}
	r.Route("/compatibility", func(cr chi.Router) {
		cr.Post("/", h.Pair)
		cr.Post("/weave", h.Weave)
	})
}
