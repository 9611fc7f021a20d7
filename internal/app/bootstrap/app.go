package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/cpr-booking-platform/internal/api/router"
	"github.com/wolfman30/cpr-booking-platform/internal/bookings"
	appconfig "github.com/wolfman30/cpr-booking-platform/internal/config"
	"github.com/wolfman30/cpr-booking-platform/internal/intake"
	"github.com/wolfman30/cpr-booking-platform/internal/notify"
	"github.com/wolfman30/cpr-booking-platform/internal/observability/metrics"
	"github.com/wolfman30/cpr-booking-platform/internal/payments"
	"github.com/wolfman30/cpr-booking-platform/internal/simplybook"
	"github.com/wolfman30/cpr-booking-platform/pkg/logging"
)

// App is the fully wired HTTP application shared by the API server and the
// Lambda entrypoint.
type App struct {
	Handler http.Handler
	Intake  *intake.Service
	Store   bookings.Store

	pool  *pgxpool.Pool
	redis *redis.Client
}

// BuildScheduler returns the remote scheduler client, or nil when sync is
// disabled or credentials are missing.
func BuildScheduler(cfg *appconfig.Config, m *metrics.IntakeMetrics, logger *logging.Logger) intake.Scheduler {
	if !cfg.SimplyBookConfigured() {
		logger.Warn("simplybook sync disabled", "enabled", cfg.SimplyBookEnabled)
		return nil
	}
	return simplybook.NewClient(simplybook.Config{
		CompanyLogin:   cfg.SimplyBookCompanyLogin,
		APIKey:         cfg.SimplyBookAPIKey,
		LoginURL:       cfg.SimplyBookLoginURL,
		APIURL:         cfg.SimplyBookAPIURL,
		Timeout:        cfg.SimplyBookTimeout,
		ProbeRPS:       cfg.SimplyBookProbeRPS,
		StaticEventIDs: cfg.SimplyBookServiceMap,
	}, m, logger)
}

// NewApp wires stores, collaborators and routes from configuration. reg
// receives the application metrics; nil uses a fresh registry.
func NewApp(ctx context.Context, cfg *appconfig.Config, reg *prometheus.Registry, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	intakeMetrics := metrics.NewIntakeMetrics(reg)

	store, pool, err := BuildBookingStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	redisClient := BuildRedisClient(ctx, cfg, logger, true)

	confirmer := notify.NewService(BuildEmailSender(ctx, cfg, logger), notify.Config{
		BusinessName: cfg.BusinessName,
		AdminEmail:   cfg.AdminNotifyEmail,
	}, logger)

	svc := intake.NewService(store, intake.Options{
		Scheduler: BuildScheduler(cfg, intakeMetrics, logger),
		Confirmer: confirmer,
		Locker:    BuildSessionLocker(redisClient, cfg),
		Metrics:   intakeMetrics,
		Logger:    logger,
	})

	if cfg.StripeWebhookSecret == "" && !cfg.IsDevelopment() {
		logger.Warn("STRIPE_WEBHOOK_SECRET not set; stripe webhook route disabled")
	}
	var stripeHandler *payments.StripeWebhookHandler
	if cfg.StripeWebhookSecret != "" || cfg.IsDevelopment() {
		stripeHandler = payments.NewStripeWebhookHandler(cfg.StripeWebhookSecret, svc, BuildProcessedTracker(redisClient, cfg), intakeMetrics, logger)
	}

	checks := map[string]router.HealthCheck{}
	if pool != nil {
		checks["postgres"] = pool.Ping
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	handler := router.New(&router.Config{
		Logger:             logger,
		BookingsHandler:    bookings.NewHandler(store, logger),
		IntakeHandler:      intake.NewHandler(svc, logger),
		StripeWebhook:      stripeHandler,
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		HealthChecks:       checks,
		AdminAuthSecret:    cfg.AdminJWTSecret,
		IntakeAPIKey:       cfg.IntakeAPIKey,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
	})

	return &App{
		Handler: handler,
		Intake:  svc,
		Store:   store,
		pool:    pool,
		redis:   redisClient,
	}, nil
}

// Close releases database and Redis connections.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
