package config_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripwise/tripwise/internal/config"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := config.Parse()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, config.StoreMemory, cfg.StoreDriver)
	assert.True(t, cfg.SeedCatalog)
	assert.Equal(t, config.DevSigningKey, cfg.JWT.SigningKey)
	assert.Equal(t, "tripwise-api", cfg.JWT.Audience)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Empty(t, cfg.Redis.Address)
	assert.Equal(t, 30*time.Minute, cfg.PositionTTL)
	assert.Empty(t, cfg.NATSURL)
	assert.False(t, cfg.PubSub.Enabled())
	assert.Equal(t, "tripwise-journey-events", cfg.PubSub.Topic)
	assert.Equal(t, 10*time.Second, cfg.Tracker.TickInterval)
	assert.Equal(t, 5*time.Second, cfg.Tracker.RatingDelay)
	assert.InDelta(t, 1500, cfg.RouteMatchRadiusM, 1e-9)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, zerolog.InfoLevel, cfg.Level())
}

func TestParse_Overrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("APP_ENV", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("JWT_SIGNING_KEY", "prod-secret")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6432")
	t.Setenv("REDIS_ADDRESS", "redis:6379")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("NATS_URL", "nats://nats:4222")
	t.Setenv("PUBSUB_PROJECT_ID", "tripwise-prod")
	t.Setenv("TRACKER_TICK_INTERVAL", "3s")
	t.Setenv("TRACKER_RATING_DELAY", "0s")
	t.Setenv("OTEL_ENABLED", "true")

	cfg, err := config.Parse()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, zerolog.DebugLevel, cfg.Level())
	assert.Equal(t, config.StorePostgres, cfg.StoreDriver)
	assert.Equal(t, "prod-secret", cfg.JWT.SigningKey)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6432, cfg.Database.Port)
	assert.Equal(t, "redis:6379", cfg.Redis.Address)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, "nats://nats:4222", cfg.NATSURL)
	assert.True(t, cfg.PubSub.Enabled())
	assert.Equal(t, 3*time.Second, cfg.Tracker.TickInterval)
	assert.Zero(t, cfg.Tracker.RatingDelay)
	assert.True(t, cfg.Telemetry.Enabled)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unknown store", map[string]string{"STORE_DRIVER": "sqlite"}, "STORE_DRIVER"},
		{"missing key in production", map[string]string{"APP_ENV": "production"}, "JWT_SIGNING_KEY"},
		{"bad log level", map[string]string{"LOG_LEVEL": "loud"}, "LOG_LEVEL"},
		{"zero tick", map[string]string{"TRACKER_TICK_INTERVAL": "0s"}, "TRACKER_TICK_INTERVAL"},
		{"bad duration", map[string]string{"POSITION_TTL": "soon"}, "PositionTTL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := config.Parse()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
