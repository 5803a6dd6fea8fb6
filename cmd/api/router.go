package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/FACorreiaa/pennypilot/internal/server"
	"github.com/FACorreiaa/pennypilot/pkg/metrics"
)

// NewRouter builds the HTTP routing tree.
func NewRouter(deps *Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(server.RequestLogger(deps.Logger))
	r.Use(server.RateLimit(deps.Config.Server.RateLimitPerSecond, deps.Config.Server.RateLimitBurst))
	r.Use(metrics.Middleware(func(req *http.Request) string {
		if rctx := chi.RouteContext(req.Context()); rctx != nil {
			return rctx.RoutePattern()
		}
		return req.URL.Path
	}))
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{deps.Config.Server.BaseURL},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type", server.UserHeader},
		AllowCredentials: true,
	}).Handler)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		server.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(server.RequireUser)

		r.Route("/transactions", deps.TransactionsHandler.Routes)
		r.Route("/categories", deps.CategoriesHandler.Routes)
		r.Route("/rules", deps.RulesHandler.Routes)
		r.Route("/imports", deps.ImportHandler.Routes)
		r.Route("/recommendations", deps.RecommendationHandler.Routes)
		r.Route("/insights", deps.InsightsHandler.Routes)
	})

	return r
}
