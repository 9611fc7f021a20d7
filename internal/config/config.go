package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	LogFormat     string
	BusinessName  string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// SimplyBook (external scheduler) Configuration
	SimplyBookEnabled      bool
	SimplyBookCompanyLogin string
	SimplyBookAPIKey       string
	SimplyBookLoginURL     string
	SimplyBookAPIURL       string
	SimplyBookTimeout      time.Duration
	SimplyBookProbeRPS     float64
	SimplyBookServiceMap   map[string]int

	// Stripe webhook
	StripeWebhookSecret string

	// Email Configuration
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SendGridSandbox   bool
	SESFromEmail      string
	SESFromName       string
	AdminNotifyEmail  string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	AdminJWTSecret     string
	IntakeAPIKey       string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
	SessionLockTTL     time.Duration
	ProcessedEventTTL  time.Duration
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first when present; real env vars win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
		BusinessName:  getEnv("BUSINESS_NAME", "CPR Training"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		SimplyBookEnabled:      getEnvAsBool("SIMPLYBOOK_ENABLED", true),
		SimplyBookCompanyLogin: getEnv("SIMPLYBOOK_COMPANY_LOGIN", ""),
		SimplyBookAPIKey:       getEnv("SIMPLYBOOK_API_KEY", ""),
		SimplyBookLoginURL:     getEnv("SIMPLYBOOK_LOGIN_URL", "https://user-api.simplybook.me/login"),
		SimplyBookAPIURL:       getEnv("SIMPLYBOOK_API_URL", "https://user-api.simplybook.me"),
		SimplyBookTimeout:      getEnvAsDuration("SIMPLYBOOK_TIMEOUT", 15*time.Second),
		SimplyBookProbeRPS:     getEnvAsFloat("SIMPLYBOOK_PROBE_RPS", 5),
		SimplyBookServiceMap:   getEnvAsIntMap("SIMPLYBOOK_SERVICE_MAP_JSON"),

		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "auto"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", ""),
		SendGridSandbox:   getEnvAsBool("SENDGRID_SANDBOX", false),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		SESFromName:       getEnv("SES_FROM_NAME", ""),
		AdminNotifyEmail:  getEnv("ADMIN_NOTIFY_EMAIL", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		IntakeAPIKey:       getEnv("INTAKE_API_KEY", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),
		SessionLockTTL:     getEnvAsDuration("SESSION_LOCK_TTL", 45*time.Second),
		ProcessedEventTTL:  getEnvAsDuration("PROCESSED_EVENT_TTL", 72*time.Hour),
	}
}

// SimplyBookConfigured reports whether remote sync has credentials to run.
func (c *Config) SimplyBookConfigured() bool {
	return c.SimplyBookEnabled &&
		strings.TrimSpace(c.SimplyBookCompanyLogin) != "" &&
		strings.TrimSpace(c.SimplyBookAPIKey) != ""
}

// IsDevelopment reports whether the service runs in a local/dev environment.
func (c *Config) IsDevelopment() bool {
	switch strings.ToLower(c.Env) {
	case "development", "dev", "local", "test":
		return true
	}
	return false
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvAsIntMap parses a JSON object of name -> id. Invalid JSON yields nil.
func getEnvAsIntMap(key string) map[string]int {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return nil
	}
	var out map[string]int
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
