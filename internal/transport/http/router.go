// Package httptransport assembles the public HTTP surface.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"taxid/internal/platform/metrics"
	"taxid/pkg/platform/circuit"
	"taxid/pkg/platform/httputil"
	"taxid/pkg/platform/middleware/request"
	"taxid/pkg/requestcontext"
)

// Registrar mounts a group of routes.
type Registrar interface {
	Register(r chi.Router)
}

// Deps are the collaborators the router needs. Breaker is nil when no
// registry credentials are configured.
type Deps struct {
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Breaker  *circuit.Breaker
	Routes   []Registrar
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Registry string `json:"registry"`
}

// NewRouter wires middleware, operational endpoints and the registered routes.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(request.Middleware)
	r.Use(deps.Metrics.Middleware)
	r.Use(accessLog(deps.Logger))

	r.Get("/health", health(deps.Breaker))
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	for _, routes := range deps.Routes {
		routes.Register(r)
	}
	return r
}

func health(breaker *circuit.Breaker) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{Status: "ok", Registry: "disabled"}
		if breaker != nil {
			resp.Registry = breaker.State().String()
		}
		httputil.WriteJSON(w, http.StatusOK, resp)
	}
}

func accessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			ctx := r.Context()
			start := requestcontext.Now(ctx)
			logger.InfoContext(ctx, "http request",
				"request_id", requestcontext.RequestID(ctx),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"client_ip", requestcontext.ClientIP(ctx),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
