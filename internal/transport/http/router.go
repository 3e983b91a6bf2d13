// Package httptransport assembles the HTTP surface: feature handlers behind a
// shared middleware chain, plus health and metrics endpoints.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"healthcert/internal/platform/metrics"
	"healthcert/internal/platform/middleware"
	"healthcert/pkg/platform/httputil"
)

// Handler is anything that can mount its routes on the router.
type Handler interface {
	Register(r chi.Router)
}

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	Name() string
	Healthy() bool
}

// Config carries the router's cross-cutting dependencies.
type Config struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// RequestTimeout bounds JSON endpoints. Event-stream routes are exempt:
	// they live for as long as the run they watch.
	RequestTimeout time.Duration
	Checkers       []HealthChecker
}

// NewRouter wires middleware, health, metrics, and the feature handlers.
func NewRouter(cfg Config, handlers ...Handler) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.ContentTypeJSON)
	if cfg.Metrics != nil {
		r.Use(middleware.Latency(cfg.Metrics))
	}

	r.Get("/healthz", healthHandler(cfg.Checkers))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	for _, h := range handlers {
		h.Register(r)
	}
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checkers []HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(checkers) > 0 {
			resp.Checks = make(map[string]string, len(checkers))
			for _, c := range checkers {
				if c.Healthy() {
					resp.Checks[c.Name()] = "ok"
					continue
				}
				resp.Checks[c.Name()] = "unavailable"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
			}
		}
		httputil.WriteJSON(w, status, resp)
	}
}
