package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/notifyhub/hermes-dispatch/internal/api/handler"
	apimw "github.com/notifyhub/hermes-dispatch/internal/api/middleware"
	"github.com/notifyhub/hermes-dispatch/internal/metrics"
	"github.com/notifyhub/hermes-dispatch/internal/service"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
// m and ping may be nil.
func NewRouter(
	svc *service.JobService,
	m *metrics.Metrics,
	reg prometheus.Gatherer,
	ping handler.Pinger,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)          // recover panics, return 500
	r.Use(chimw.RealIP)             // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1<<20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)      // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(logger))

	// --- handler instances ---
	jh := handler.NewJobHandler(svc, logger)
	hh := handler.NewHealthHandler(ping)
	var sh *handler.StatsHandler
	if m != nil {
		sh = handler.NewStatsHandler(svc, m.ObserveStats)
	} else {
		sh = handler.NewStatsHandler(svc, nil)
	}

	// --- routes ---
	r.Get("/health", hh.Health)

	// Raw Prometheus scrape endpoint
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/jobs/batch", jh.EnqueueBatch)
		r.Post("/jobs", jh.Enqueue)
		r.Get("/stats", sh.GetStats)
	})

	return r
}
