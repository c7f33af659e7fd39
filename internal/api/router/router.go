// Package router assembles the chi mux, grounded on the teacher's
// internal/api/router.New (global middleware stack + grouped route
// registration) but retargeted to NetLedger's account/entry/apikey
// surface (spec.md §6) instead of wallet/transaction/portfolio routes.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/netledger/netledger/internal/api/handlers"
	"github.com/netledger/netledger/internal/api/middleware"
	"github.com/netledger/netledger/pkg/logger"
)

// Config holds everything the router needs to wire routes.
type Config struct {
	Logger         *logger.Logger
	AllowedOrigins []string
	AccountHandler *handlers.AccountHandler
	EntryHandler   *handlers.EntryHandler
	ApiKeyHandler  *handlers.ApiKeyHandler
	HealthHandler  *handlers.HealthHandler
	ApiKeyAuth     func(http.Handler) http.Handler
	RequireAdmin   func(http.Handler) http.Handler
}

// New builds the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(chimiddleware.Compress(5))
	r.Use(middleware.RateLimit())

	r.Get("/health", handlers.GetHealth)
	r.Get("/health/live", handlers.GetLiveness)
	if cfg.HealthHandler != nil {
		r.Get("/health/ready", cfg.HealthHandler.GetReadiness)
		r.Get("/health/detailed", cfg.HealthHandler.GetHealthDetailed)
	}

	r.Route("/v1", func(r chi.Router) {
		if cfg.ApiKeyAuth != nil {
			r.Use(cfg.ApiKeyAuth)
		}

		if cfg.AccountHandler != nil {
			r.Put("/accounts", cfg.AccountHandler.Create)
			r.Post("/accounts/enumerate", cfg.AccountHandler.Enumerate)
			r.Get("/accounts/{id}", cfg.AccountHandler.Get)
			r.Delete("/accounts/{id}", cfg.AccountHandler.Delete)
			r.Put("/accounts/{id}/credits", cfg.AccountHandler.AddCredits)
			r.Put("/accounts/{id}/debits", cfg.AccountHandler.AddDebits)
			r.Post("/accounts/{id}/commit", cfg.AccountHandler.Commit)
			r.Get("/accounts/{id}/balance", cfg.AccountHandler.GetBalance)
			r.Get("/accounts/{id}/balance/asof", cfg.AccountHandler.GetBalanceAsOf)
			r.Get("/accounts/{id}/verify", cfg.AccountHandler.Verify)
		}

		if cfg.EntryHandler != nil {
			r.Post("/accounts/{id}/entries/enumerate", cfg.EntryHandler.Enumerate)
			r.Delete("/accounts/{id}/entries/{entry}", cfg.EntryHandler.Delete)
		}

		if cfg.ApiKeyHandler != nil {
			r.Group(func(r chi.Router) {
				if cfg.RequireAdmin != nil {
					r.Use(cfg.RequireAdmin)
				}
				r.Put("/apikeys", cfg.ApiKeyHandler.Create)
				r.Delete("/apikeys/{id}", cfg.ApiKeyHandler.Delete)
			})
		}
	})

	return r
}
