package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pressmill-erp/pressmill-erp/internal/arrival"
	"github.com/pressmill-erp/pressmill-erp/internal/palox"
	"github.com/pressmill-erp/pressmill-erp/internal/production"
	"github.com/pressmill-erp/pressmill-erp/internal/tank"
	"github.com/pressmill-erp/pressmill-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	PaloxHandler      *palox.Handler
	ArrivalHandler    *arrival.Handler
	ProductionHandler *production.Handler
	TankHandler       *tank.Handler
	JobHandler        *jobs.Handler
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/paloxes", params.PaloxHandler.MountRoutes)
		r.Route("/arrivals", params.ArrivalHandler.MountRoutes)
		r.Route("/productions", params.ProductionHandler.MountRoutes)
		r.Route("/tanks", params.TankHandler.MountRoutes)
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
