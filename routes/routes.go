package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/upb/case-events/app"
	"github.com/upb/case-events/cognito"
	"github.com/upb/case-events/handlers"
	"github.com/upb/case-events/middleware"
	"github.com/upb/case-events/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	var db handlers.Pinger
	if deps.DB != nil {
		db = deps.DB
	}
	var status handlers.EventStatusProvider
	if deps.Events != nil {
		status = deps.Events
	}
	health := handlers.NewHealthHandler(db, status, deps.Logger)
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	if deps.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(deps.AuthMiddleware.RequireAuth)

		eventHandler := handlers.NewEventHandler(deps.Events, deps.Logger)
		r.Get("/events", eventHandler.HandleEventFeed)
		r.Post("/events/{eventID}/read", eventHandler.HandleMarkRead)
		r.Get("/cases/{caseID}/events", eventHandler.HandleCaseTimeline)
		r.Post("/cases/{caseID}/events", eventHandler.HandleEmitCaseEvent)

		// Capture administration (admin group)
		r.Route("/capture", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireGroup(cognito.AdminGroup))
			captureHandler := handlers.NewCaptureHandler(deps.CaptureStore, deps.CaptureCache, deps.Logger)
			r.Get("/catalog", captureHandler.HandleCatalog)
			r.Get("/state", captureHandler.HandleState)
			r.Put("/rules", captureHandler.HandleUpdateRules)
			r.Post("/cache/invalidate", captureHandler.HandleInvalidateCache)
			r.Get("/diagnostics", captureHandler.HandleDiagnostics)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "Endpoint not found")
	})

	return r
}
