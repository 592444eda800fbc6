// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/tripwise/tripwise/internal/auth"
	"github.com/tripwise/tripwise/internal/database"
	"github.com/tripwise/tripwise/internal/position"
	"github.com/tripwise/tripwise/internal/realtime"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// DevSigningKey is used when JWT_SIGNING_KEY is unset in development.
const DevSigningKey = "local-dev-signing-key-change-in-production"

// Config is the full process configuration.
type Config struct {
	Port        string `env:"APP_PORT" envDefault:"8080"`
	Environment string `env:"APP_ENV" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// RequireTLS rejects requests forwarded over plain HTTP.
	RequireTLS bool `env:"REQUIRE_TLS" envDefault:"false"`

	// StoreDriver selects journey, catalog and device persistence.
	StoreDriver string `env:"STORE_DRIVER" envDefault:"memory"`

	// SeedCatalog loads the built-in Lagos catalog into the memory store.
	SeedCatalog bool `env:"SEED_CATALOG" envDefault:"true"`

	JWT      auth.JWTConfig       `envPrefix:"JWT_"`
	Database database.Config      `envPrefix:"DB_"`
	Redis    position.RedisConfig `envPrefix:"REDIS_"`

	PositionTTL time.Duration `env:"POSITION_TTL" envDefault:"30m"`

	// NATSURL enables NATS fan-out of realtime events when set.
	NATSURL string `env:"NATS_URL"`

	// PubSub enables Google Cloud Pub/Sub fan-out when a project is set.
	PubSub realtime.PubSubConfig `envPrefix:"PUBSUB_"`

	// FirebaseServiceAccount is a base64-encoded service account JSON.
	// Empty logs notifications instead of pushing them.
	FirebaseServiceAccount string `env:"FIREBASE_SERVICE_ACCOUNT"`

	Tracker TrackerConfig `envPrefix:"TRACKER_"`

	RouteMatchRadiusM float64 `env:"ROUTE_MATCH_RADIUS_M" envDefault:"1500"`

	Telemetry TelemetryConfig `envPrefix:"OTEL_"`
}

// TrackerConfig holds progress tracker timings.
type TrackerConfig struct {
	TickInterval time.Duration `env:"TICK_INTERVAL" envDefault:"10s"`
	RatingDelay  time.Duration `env:"RATING_DELAY" envDefault:"5s"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled        bool          `env:"ENABLED" envDefault:"false"`
	OTLPEndpoint   string        `env:"EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	SampleRatio    float64       `env:"TRACES_SAMPLE_RATIO" envDefault:"1"`
	ExportInterval time.Duration `env:"METRIC_EXPORT_INTERVAL" envDefault:"15s"`
}

// Load reads .env (if present) and parses the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse parses the environment without touching .env files.
func Parse() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if cfg.JWT.SigningKey == "" && cfg.IsDevelopment() {
		cfg.JWT.SigningKey = DevSigningKey
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values the environment parser cannot.
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreDriver {
	case StoreMemory, StorePostgres:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreMemory, StorePostgres, c.StoreDriver))
	}

	if c.JWT.SigningKey == "" {
		errs = append(errs, errors.New("JWT_SIGNING_KEY is required outside development"))
	}

	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	if c.Tracker.TickInterval <= 0 {
		errs = append(errs, errors.New("TRACKER_TICK_INTERVAL must be positive"))
	}
	if c.Tracker.RatingDelay < 0 {
		errs = append(errs, errors.New("TRACKER_RATING_DELAY must not be negative"))
	}
	if c.RouteMatchRadiusM <= 0 {
		errs = append(errs, errors.New("ROUTE_MATCH_RADIUS_M must be positive"))
	}

	return errors.Join(errs...)
}

// IsDevelopment reports whether the process runs in the development environment.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Level returns the configured log level, defaulting to info.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}
