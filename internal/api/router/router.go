package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/wolfman30/cpr-booking-platform/internal/bookings"
	httpmiddleware "github.com/wolfman30/cpr-booking-platform/internal/http/middleware"
	"github.com/wolfman30/cpr-booking-platform/internal/intake"
	"github.com/wolfman30/cpr-booking-platform/internal/payments"
	"github.com/wolfman30/cpr-booking-platform/pkg/logging"
)

// Config holds router configuration. Nil handlers leave their routes
// unmounted.
type Config struct {
	Logger          *logging.Logger
	BookingsHandler *bookings.Handler
	IntakeHandler   *intake.Handler
	StripeWebhook   *payments.StripeWebhookHandler
	MetricsHandler  http.Handler
	HealthChecks    map[string]HealthCheck

	// AdminAuthSecret enables AdminJWT on the booking dashboard API.
	AdminAuthSecret    string
	IntakeAPIKey       string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	// Public endpoints (webhooks, health checks)
	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.HealthChecks))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.StripeWebhook != nil {
			public.Post("/webhooks/stripe", cfg.StripeWebhook.Handle)
		}
	})

	r.Route("/api/bookings", func(api chi.Router) {
		if cfg.RateLimitRPS > 0 {
			api.Use(httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
		}

		if cfg.IntakeHandler != nil {
			api.With(requireIntakeKey(cfg.IntakeAPIKey)).Post("/intake", cfg.IntakeHandler.Intake)
		}

		if cfg.BookingsHandler != nil {
			api.Group(func(admin chi.Router) {
				if cfg.AdminAuthSecret != "" {
					admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
				}
				admin.Get("/", cfg.BookingsHandler.List)
				admin.Post("/", cfg.BookingsHandler.Create)
				admin.Get("/export.xlsx", cfg.BookingsHandler.Export)
				admin.Get("/{id}", cfg.BookingsHandler.Get)
				admin.Patch("/{id}", cfg.BookingsHandler.Patch)
			})
		}
	})

	return r
}
