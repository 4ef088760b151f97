package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mailforge/campaign-pipeline/internal/api/handler"
	apimw "github.com/mailforge/campaign-pipeline/internal/api/middleware"
	"github.com/mailforge/campaign-pipeline/internal/queue"
	"github.com/mailforge/campaign-pipeline/internal/service"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(
	svc *service.CampaignService,
	q *queue.JobQueue,
	reg prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)          // recover panics, return 500
	r.Use(chimw.RealIP)             // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1<<20)) // 1 MB max request body
	r.Use(apimw.TraceID)            // X-Trace-ID inject / echo
	r.Use(apimw.RequestLogger(logger))

	// --- handler instances ---
	ch := handler.NewCampaignHandler(svc, logger)
	mh := handler.NewMetricsHandler(q)
	hh := handler.NewHealthHandler()

	// --- routes ---
	r.Get("/health", hh.Health)

	// Raw Prometheus scrape endpoint (for Prometheus server / Grafana)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/campaigns", ch.Create)
		r.Get("/campaigns", ch.List)
		r.Get("/campaigns/{id}", ch.GetByID)
		r.Put("/campaigns/{id}", ch.Update)
		r.Patch("/campaigns/{id}", ch.Update)
		r.Delete("/campaigns/{id}", ch.Delete)

		// Lifecycle transitions
		r.Post("/campaigns/{id}/prepare", ch.Prepare)
		r.Post("/campaigns/{id}/start", ch.Start)
		r.Get("/campaigns/{id}/status", ch.Status)
		r.Get("/campaigns/{id}/metrics", ch.Metrics)

		// JSON metrics snapshot
		r.Get("/metrics", mh.GetMetrics)
	})

	return r
}
