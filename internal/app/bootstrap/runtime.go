package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/cpr-booking-platform/internal/bookings"
	appconfig "github.com/wolfman30/cpr-booking-platform/internal/config"
	"github.com/wolfman30/cpr-booking-platform/internal/intake"
	"github.com/wolfman30/cpr-booking-platform/internal/payments"
	"github.com/wolfman30/cpr-booking-platform/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildBookingStore connects Postgres when DATABASE_URL is set and falls
// back to the in-memory store otherwise. The returned pool is nil for the
// memory store.
func BuildBookingStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (bookings.Store, *pgxpool.Pool, error) {
	if logger == nil {
		logger = logging.Default()
	}
	url := ""
	if cfg != nil {
		url = strings.TrimSpace(cfg.DatabaseURL)
	}
	if url == "" {
		logger.Warn("DATABASE_URL not set; bookings are kept in memory only")
		return bookings.NewMemoryStore(), nil, nil
	}

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	logger.Info("booking store: postgres")
	return bookings.NewPostgresStore(pool), pool, nil
}

// BuildSessionLocker serializes intakes per session across instances when
// Redis is available and within this process otherwise.
func BuildSessionLocker(redisClient *redis.Client, cfg *appconfig.Config) intake.SessionLocker {
	if redisClient == nil {
		return intake.NewMemoryLocker()
	}
	ttl := cfg.SessionLockTTL
	return intake.NewRedisLocker(redisClient, ttl, ttl)
}

// BuildProcessedTracker returns the webhook dedup store.
func BuildProcessedTracker(redisClient *redis.Client, cfg *appconfig.Config) payments.ProcessedTracker {
	if redisClient == nil {
		return payments.NewMemoryProcessedTracker(cfg.ProcessedEventTTL)
	}
	return payments.NewRedisProcessedTracker(redisClient, cfg.ProcessedEventTTL)
}
