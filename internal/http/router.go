// Package httpapi assembles the HTTP surface: middleware chain, lifecycle
// routes, health, and metrics.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	lienhandler "github.com/taxlien-online/taxlien-nft/internal/lien/handler"
	"github.com/taxlien-online/taxlien-nft/pkg/platform/httputil"
	"github.com/taxlien-online/taxlien-nft/pkg/platform/middleware/auth"
	"github.com/taxlien-online/taxlien-nft/pkg/platform/middleware/requestid"
	"github.com/taxlien-online/taxlien-nft/pkg/platform/middleware/requesttime"
)

// HealthChecker reports readiness of a backing dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// RouterConfig carries the router's collaborators.
type RouterConfig struct {
	Liens     *lienhandler.Handler
	Validator auth.TokenValidator
	Logger    *slog.Logger

	// HealthChecks run on /healthz; a nil map means always healthy.
	HealthChecks map[string]HealthChecker
}

// NewRouter wires the public endpoints. Reads are open; every mutating route
// requires a bearer token resolving to a caller account.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)

	r.Get("/healthz", healthHandler(cfg.HealthChecks, cfg.Logger))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	requireAuth := auth.RequireAuth(cfg.Validator, cfg.Logger)

	r.Group(func(r chi.Router) {
		r.Get("/registry", cfg.Liens.HandleGetRegistry)
		r.Get("/liens", cfg.Liens.HandleListLiens)
		r.Get("/liens/{lienID}", cfg.Liens.HandleGetLien)
	})

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/registry", cfg.Liens.HandleInitialize)
		r.Post("/liens", cfg.Liens.HandleCreateLien)
		r.Put("/liens/{lienID}/status", cfg.Liens.HandleUpdateStatus)
		r.Post("/liens/{lienID}/redeem", cfg.Liens.HandleRedeem)
		r.Post("/liens/{lienID}/claim", cfg.Liens.HandleClaimProperty)
	})

	return r
}

func healthHandler(checks map[string]HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check.Health(ctx); err != nil {
				logger.ErrorContext(ctx, "health check failed", "dependency", name, "error", err)
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"failed": name,
				})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
