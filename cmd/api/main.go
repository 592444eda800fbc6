// Package main provides the entrypoint for the Tripwise API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/tripwise/tripwise/internal/api"
	"github.com/tripwise/tripwise/internal/api/handler"
	"github.com/tripwise/tripwise/internal/api/middleware"
	"github.com/tripwise/tripwise/internal/auth"
	"github.com/tripwise/tripwise/internal/config"
	"github.com/tripwise/tripwise/internal/database"
	"github.com/tripwise/tripwise/internal/device"
	"github.com/tripwise/tripwise/internal/journey"
	"github.com/tripwise/tripwise/internal/metrics"
	"github.com/tripwise/tripwise/internal/notify"
	"github.com/tripwise/tripwise/internal/position"
	"github.com/tripwise/tripwise/internal/provider/resilience"
	"github.com/tripwise/tripwise/internal/realtime"
	"github.com/tripwise/tripwise/internal/route"
	"github.com/tripwise/tripwise/internal/segment"
	"github.com/tripwise/tripwise/internal/telemetry"
	"github.com/tripwise/tripwise/internal/tracker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "tripwise-api"

// stores groups the persistence backends selected by STORE_DRIVER.
type stores struct {
	catalog  segment.Repository
	journeys journey.Repository
	devices  device.Repository
	pool     *pgxpool.Pool
}

func main() {
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	log = log.Level(cfg.Level())

	log.Info().
		Str("build_time", BuildTime).
		Str("environment", cfg.Environment).
		Str("store", cfg.StoreDriver).
		Msg("starting Tripwise API")

	if cfg.IsDevelopment() && cfg.JWT.SigningKey == config.DevSigningKey {
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}

	ctx := context.Background()

	// Initialize OpenTelemetry
	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
		ExportInterval: cfg.Telemetry.ExportInterval,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}
	sinkMetrics, err := middleware.NewSinkMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize sink metrics")
	}
	collector := metrics.NewCollector()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open stores")
	}
	if st.pool != nil {
		defer st.pool.Close()
	}

	var checks []handler.DependencyCheck
	if st.pool != nil {
		checks = append(checks, handler.DependencyCheck{Name: "postgres", Check: st.pool.Ping})
	}

	// Position cache
	var positions position.Cache
	if cfg.Redis.Address != "" {
		redisClient, err := position.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Str("address", cfg.Redis.Address).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		positions = position.NewRedisCache(redisClient, cfg.PositionTTL)
		checks = append(checks, handler.DependencyCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisPing(ctx, redisClient) },
		})
		log.Info().Str("address", cfg.Redis.Address).Msg("redis position cache enabled")
	} else {
		positions = position.NewMemoryCache(cfg.PositionTTL)
	}

	// Realtime fan-out
	broker := realtime.NewBroker()
	broadcasters := []realtime.Broadcaster{broker}

	if cfg.NATSURL != "" {
		natsPublisher, err := realtime.NewNATSPublisher(cfg.NATSURL, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsPublisher.Close()
		broadcasters = append(broadcasters, natsPublisher)
		checks = append(checks, handler.DependencyCheck{
			Name: "nats",
			Check: func(context.Context) error {
				if !natsPublisher.Connected() {
					return errors.New("not connected")
				}
				return nil
			},
		})
		log.Info().Msg("nats fan-out enabled")
	}

	if cfg.PubSub.Enabled() {
		pubsubPublisher, err := realtime.NewPubSubPublisher(ctx, cfg.PubSub, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize pubsub")
		}
		defer func() {
			if err := pubsubPublisher.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close pubsub")
			}
		}()
		broadcasters = append(broadcasters, pubsubPublisher)
		log.Info().Str("topic", cfg.PubSub.Topic).Msg("pubsub fan-out enabled")
	}

	broadcaster := realtime.NewFanout(broadcasters...)

	// Devices and push delivery
	deviceService := device.NewService(st.devices)
	sinks := resilience.NewRegistry()

	var pusher notify.Pusher
	if cfg.FirebaseServiceAccount != "" {
		messagingClient, err := notify.NewMessagingClient(ctx, cfg.FirebaseServiceAccount)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize firebase messaging")
		}
		guardCfg := resilience.DefaultGuardConfig("fcm")
		guardCfg.Registry = sinks
		guardCfg.Recorder = sinkMetrics
		pusher = notify.NewFCMPusher(notify.FCMPusherConfig{
			Sender: messagingClient,
			Tokens: deviceService,
			Guard:  resilience.NewGuard(guardCfg),
			Logger: log,
		})
		log.Info().Msg("fcm push delivery enabled")
	} else {
		pusher = notify.NewLogPusher(log)
		log.Warn().Msg("firebase not configured - notifications are logged only")
	}

	// Progress tracking
	journeyTracker := tracker.New(tracker.Config{
		Journeys:     st.journeys,
		Positions:    positions,
		Pusher:       pusher,
		Broadcaster:  broadcaster,
		Metrics:      collector,
		Logger:       log,
		TickInterval: cfg.Tracker.TickInterval,
		RatingDelay:  cfg.Tracker.RatingDelay,
	})

	journeyService := journey.NewService(journey.ServiceConfig{
		Repository: st.journeys,
		Composer:   route.NewComposer(st.catalog),
		Finder: route.NewCatalogFinder(route.FinderConfig{
			Catalog:           st.catalog,
			Logger:            log,
			MatchRadiusMeters: cfg.RouteMatchRadiusM,
		}),
		Builder:     journey.NewBuilder(),
		Positions:   positions,
		Broadcaster: broadcaster,
		Tracker:     journeyTracker,
		Logger:      log,
	})

	resumed, err := journeyTracker.Resume(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to resume journeys")
	} else {
		log.Info().Int("journeys", resumed).Msg("resumed tracking")
	}

	router := api.NewRouter(api.RouterConfig{
		Version:        Version,
		BuildTime:      BuildTime,
		Logger:         log,
		ServiceName:    serviceName,
		Metrics:        httpMetrics,
		MetricsHandler: collector.Handler(),
		Authenticator:  auth.NewJWTService(cfg.JWT),
		Journeys:       journeyService,
		Devices:        deviceService,
		Broker:         broker,
		Checks:         checks,
		Sinks:          sinks,
		Tracker:        journeyTracker,
		RequireTLS:     cfg.RequireTLS,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Tasks stop first so no tick runs against closed stores.
	journeyTracker.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func openStores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*stores, error) {
	if cfg.StoreDriver == config.StorePostgres {
		pool, err := database.Connect(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		if err := database.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info().
			Str("host", cfg.Database.Host).
			Int("port", cfg.Database.Port).
			Str("database", cfg.Database.Database).
			Msg("database connected")

		return &stores{
			catalog:  segment.NewPostgresRepository(pool),
			journeys: journey.NewPostgresRepository(pool),
			devices:  device.NewPostgresRepository(pool),
			pool:     pool,
		}, nil
	}

	catalog := segment.NewInMemoryRepository()
	if cfg.SeedCatalog {
		segment.SeedLagos(catalog)
		log.Info().Msg("seeded built-in catalog")
	}
	return &stores{
		catalog:  catalog,
		journeys: journey.NewInMemoryRepository(),
		devices:  device.NewInMemoryRepository(),
	}, nil
}

func redisPing(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}
