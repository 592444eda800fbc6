// Package api provides the HTTP API for Tripwise.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/tripwise/tripwise/internal/api/handler"
	"github.com/tripwise/tripwise/internal/api/middleware"
	"github.com/tripwise/tripwise/internal/device"
	"github.com/tripwise/tripwise/internal/journey"
	"github.com/tripwise/tripwise/internal/provider/resilience"
	"github.com/tripwise/tripwise/internal/realtime"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string

	// Metrics records OpenTelemetry HTTP metrics when set.
	Metrics *middleware.Metrics

	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler

	Authenticator middleware.TokenAuthenticator
	Journeys      *journey.Service
	Devices       *device.Service
	Broker        *realtime.Broker

	Checks  []handler.DependencyCheck
	Sinks   *resilience.Registry
	Tracker handler.ActiveCounter

	// EventPingInterval overrides the SSE keepalive interval.
	EventPingInterval time.Duration

	// RequireTLS rejects plain HTTP requests forwarded by a load balancer.
	RequireTLS bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "tripwise-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Checks:    cfg.Checks,
		Sinks:     cfg.Sinks,
		Tracker:   cfg.Tracker,
	})
	journeyHandler := handler.NewJourneyHandler(cfg.Journeys, cfg.Logger)
	eventsHandler := handler.NewEventsHandler(cfg.Journeys, cfg.Broker, cfg.EventPingInterval, cfg.Logger)
	deviceHandler := handler.NewDeviceHandler(cfg.Devices)

	authMiddleware := middleware.Auth(cfg.Authenticator)

	planRateLimit := middleware.RateLimitByTraveler(middleware.PlanningRateLimit)
	locationRateLimit := middleware.RateLimitByTraveler(middleware.LocationRateLimit)
	standardRateLimit := middleware.RateLimitByTraveler(middleware.StandardRateLimit)

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(middleware.StandardRateLimit))
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(authMiddleware).Get("/status", opsHandler.SystemStatus)
		})

		// Journey endpoints (authenticated)
		r.Route("/journey", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RequireJSON)

			r.With(planRateLimit).Post("/", journeyHandler.CreateJourney)
			r.With(standardRateLimit).Get("/", journeyHandler.ListJourneys)
			r.With(standardRateLimit).Get("/active/current", journeyHandler.GetActiveJourney)

			r.Route("/{journeyId}", func(r chi.Router) {
				r.With(standardRateLimit).Get("/", journeyHandler.GetJourney)
				r.With(standardRateLimit).Post("/start", journeyHandler.StartJourney)
				r.With(locationRateLimit).Put("/location", journeyHandler.UpdateLocation)
				r.With(standardRateLimit).Put("/stop", journeyHandler.StopJourney)
				r.With(standardRateLimit).Put("/cancel", journeyHandler.CancelJourney)
				r.With(standardRateLimit).Post("/rate", journeyHandler.RateJourney)
				r.Get("/events", eventsHandler.StreamJourney)
			})
		})

		// Me endpoints (authenticated)
		r.Route("/me", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RequireJSON)
			r.Use(standardRateLimit)

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", deviceHandler.ListDevices)
				r.Post("/", deviceHandler.RegisterDevice)
				r.Delete("/{deviceId}", deviceHandler.UnregisterDevice)
			})
		})
	})

	return r
}
