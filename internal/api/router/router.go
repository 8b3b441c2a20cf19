package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/arlingtonsteamers/booking-agent/internal/http/handlers"
	httpmiddleware "github.com/arlingtonsteamers/booking-agent/internal/http/middleware"
	"github.com/arlingtonsteamers/booking-agent/internal/messaging"
	"github.com/arlingtonsteamers/booking-agent/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger            *logging.Logger
	WebhookHandler    *messaging.Handler
	AuthHandler       *handlers.AuthHandler
	AdminAppointments *handlers.AdminAppointmentsHandler
	AdminSessions     *handlers.AdminSessionsHandler

	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (webhook, health, metrics).
	r.Group(func(public chi.Router) {
		public.Get("/health", cfg.WebhookHandler.HealthCheck)
		public.Post("/whatsapp", cfg.WebhookHandler.Webhook)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Admin API. Login is public; everything else needs a JWT.
	r.Route("/api", func(api chi.Router) {
		if cfg.AuthHandler != nil {
			api.Post("/auth/login", cfg.AuthHandler.Login)
		}

		api.Group(func(protected chi.Router) {
			protected.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))

			if cfg.AdminAppointments != nil {
				protected.Route("/appointments", func(r chi.Router) {
					r.Get("/", cfg.AdminAppointments.List)
					r.Get("/stats", cfg.AdminAppointments.Stats)
					r.Get("/{id}", cfg.AdminAppointments.Get)
					r.Patch("/{id}", cfg.AdminAppointments.Update)
					r.Delete("/{id}", cfg.AdminAppointments.Delete)
				})
			}
			if cfg.AdminSessions != nil {
				protected.Route("/sessions", func(r chi.Router) {
					r.Get("/", cfg.AdminSessions.List)
					r.Delete("/{user}", cfg.AdminSessions.Delete)
				})
			}
		})
	})

	return r
}
