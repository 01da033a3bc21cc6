// Package config loads runtime configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds all runtime settings for the billing core.
type Config struct {
	Environment string
	HTTPAddr    string

	// Database
	DatabaseDriver string // postgres or sqlite
	DatabaseDSN    string

	// Payment provider webhook verification secret.
	WebhookSecret string

	// The payment-failure escalation sweep. A non-positive interval
	// disables the in-process worker; an external scheduler can still
	// trigger sweeps through the internal HTTP endpoint.
	SweepInterval time.Duration

	// Escalation timing overrides, in days/hours. Zero means default.
	GracePeriodDays     int
	RetryIntervalHours  int
	RestrictedDwellDays int
	SuspendedDwellDays  int
	MaxPaymentRetries   int

	Tracing Tracing

	Bootstrap Bootstrap
}

// Tracing configures the OTLP trace exporter.
type Tracing struct {
	Enabled       bool
	Endpoint      string
	Protocol      string
	SamplingRatio float64
}

// Bootstrap controls optional startup seeding for development.
type Bootstrap struct {
	EnsureDemoAccount bool
}

// IsProduction reports whether the service runs in production mode.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Load reads configuration from the environment. A .env file is applied
// first when present so local development matches deployment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment:         envOr("SCRAPERX_ENV", "development"),
		HTTPAddr:            envOr("HTTP_ADDR", ":8080"),
		DatabaseDriver:      envOr("DATABASE_DRIVER", "postgres"),
		DatabaseDSN:         os.Getenv("DATABASE_DSN"),
		WebhookSecret:       os.Getenv("PAYMENT_WEBHOOK_SECRET"),
		SweepInterval:       envDuration("ESCALATION_SWEEP_INTERVAL", time.Hour),
		GracePeriodDays:     envInt("ESCALATION_GRACE_DAYS", 0),
		RetryIntervalHours:  envInt("ESCALATION_RETRY_HOURS", 0),
		RestrictedDwellDays: envInt("ESCALATION_RESTRICTED_DAYS", 0),
		SuspendedDwellDays:  envInt("ESCALATION_SUSPENDED_DAYS", 0),
		MaxPaymentRetries:   envInt("PAYMENT_MAX_RETRIES", 0),
		Tracing: Tracing{
			Enabled:       envBool("OTEL_TRACING_ENABLED", false),
			Endpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Protocol:      envOr("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"),
			SamplingRatio: envFloat("OTEL_TRACES_SAMPLER_RATIO", 0.1),
		},
		Bootstrap: Bootstrap{
			EnsureDemoAccount: envBool("BOOTSTRAP_DEMO_ACCOUNT", false),
		},
	}
	return cfg, nil
}

// Module provides Config to the fx graph.
var Module = fx.Module("config",
	fx.Provide(Load),
)

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
