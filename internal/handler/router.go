package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"nodegraph/internal/metrics"
)

// RouterConfig holds the HTTP settings the router needs
type RouterConfig struct {
	CORSOrigins    []string
	RequestTimeout time.Duration
}

// NewRouter wires middleware and routes. metrics may be nil, in which case
// /metrics is not mounted.
func NewRouter(h *NodeHandler, cfg RouterConfig, m *metrics.Collector, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	router := chi.NewRouter()

	// Global middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(RequestLogger(logger.Named("http")))
	router.Use(middleware.Recoverer)
	if m != nil {
		router.Use(Instrument(m))
	}
	if cfg.RequestTimeout > 0 {
		router.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// Operational endpoints
	router.Get("/health", h.Health)
	router.Get("/ready", h.Ready)
	if m != nil {
		router.Method(http.MethodGet, "/metrics", m.Handler())
	}

	router.Route("/api", func(r chi.Router) {
		r.Post("/init-db", h.InitDB)
		r.Post("/drop-tables", h.DropTables)

		r.Post("/save-node", h.SaveNode)
		r.Get("/load-nodes", h.LoadNodes)
		r.Get("/node/{id}", h.GetNode)
		r.Delete("/delete-node/{id}", h.DeleteNode)

		r.Get("/export", h.Export)
		r.Post("/import", h.Import)
	})

	return router
}
