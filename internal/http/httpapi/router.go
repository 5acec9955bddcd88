package httpapi

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"server/internal/http/handlers"
	"server/internal/infra"
	"server/internal/middleware"
)

// NewRouter builds the API router. The metrics gatherer is injected so the
// API and the worker can expose different registries.
func NewRouter(app *handlers.App, logger infra.Logger, gatherer prometheus.Gatherer) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimiddleware.RealIP, chimiddleware.Recoverer)
	r.Use(middleware.Logger(logger))

	r.Get("/v1/healthz", app.Health)
	if gatherer != nil {
		r.Method(stdhttp.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1/orders", func(r chi.Router) {
		r.Post("/", app.CreateOrder)
		r.Get("/{id}", app.GetOrder)
		r.Post("/{id}/cancel", app.CancelOrder)
		r.Get("/{id}/events", app.StreamOrderEvents)
		r.Get("/{id}/download", app.DownloadResult)
	})

	return r
}
