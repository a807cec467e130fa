package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leftcoastfs/bridge-backend/api/controllers"
	"github.com/leftcoastfs/bridge-backend/api/middleware"
	"github.com/leftcoastfs/bridge-backend/internal/directory"
	"github.com/leftcoastfs/bridge-backend/internal/provisioning"
	"github.com/leftcoastfs/bridge-backend/internal/relay"
	"github.com/leftcoastfs/bridge-backend/pkg/config"
	"github.com/leftcoastfs/bridge-backend/pkg/logger"
)

// RouterParams carries everything the HTTP surface needs.
type RouterParams struct {
	Config       *config.Config
	Logger       *logger.Logger
	Directory    *directory.Service
	Provisioning *provisioning.Service
	Relay        *relay.Service
	ReadyChecks  map[string]controllers.Pinger
}

// NewRouter wires middleware, health probes, metrics, and the v1 API.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(params.Logger),
		middleware.RequestID(params.Logger),
		middleware.Logging(params.Logger),
	)

	r.Get("/healthz/live", controllers.HealthLive(params.Config))
	r.Get("/healthz/ready", controllers.HealthReady(params.Config, params.Logger, params.ReadyChecks))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/directory", controllers.DirectoryRegister(params.Directory, params.Logger))
		r.Post("/provisioning", controllers.Provision(params.Provisioning, params.Logger))
		r.Post("/transfers", controllers.Transfers(params.Relay, params.Logger))
	})

	return r
}
