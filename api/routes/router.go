package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/orderdesk-backend/api/controllers"
	ordercontrollers "github.com/angelmondragon/orderdesk-backend/api/controllers/orders"
	"github.com/angelmondragon/orderdesk-backend/api/middleware"
	"github.com/angelmondragon/orderdesk-backend/pkg/config"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
)

// NewRouter mounts health, metrics and the admin order pricing endpoints.
// redisP is nil when edit sessions are kept in memory.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisP controllers.Pinger,
	gatherer prometheus.Gatherer,
	orderDeps ordercontrollers.Deps,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/admin/orders/{orderId}", func(r chi.Router) {
		r.Post("/recalculate", ordercontrollers.Recalculate(orderDeps, logg))
		r.Post("/manual-discount", ordercontrollers.ManualDiscount(orderDeps, logg))
		r.Post("/save", ordercontrollers.Save(orderDeps, logg))

		r.Post("/session", ordercontrollers.BeginSession(orderDeps, logg))
		r.Delete("/session", ordercontrollers.DiscardSession(orderDeps, logg))

		r.Route("/items", func(r chi.Router) {
			r.Post("/", ordercontrollers.AddItem(orderDeps, logg))
			r.Patch("/{itemId}", ordercontrollers.UpdateItem(orderDeps, logg))
			r.Delete("/{itemId}", ordercontrollers.RemoveItem(orderDeps, logg))
		})
	})

	return r
}
