package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"ninja-decision-engine/config"
	"ninja-decision-engine/internal/api"
	"ninja-decision-engine/internal/database"
	"ninja-decision-engine/internal/engine"
	"ninja-decision-engine/internal/events"
	"ninja-decision-engine/internal/metrics"
	"ninja-decision-engine/internal/strategy"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg.LoggingConfig)
	logger.Info().Str("mode", cfg.Mode).Msg("Starting decision engine")

	// Database
	db, err := database.NewDB(cfg.ToDatabaseConfig(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.RunMigrations(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run migrations")
	}

	repo := database.NewRepository(db)

	// Optional Redis position mirror
	var redisClient *redis.Client
	if cfg.RedisConfig.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Address,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
		})
	}
	mirror := database.NewRedisPositionMirror(redisClient, logger)

	mirrorCtx, stopMirror := context.WithCancel(context.Background())
	defer stopMirror()
	if redisClient != nil {
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-mirrorCtx.Done():
					return
				case <-ticker.C:
					mirror.ReconnectCheck(mirrorCtx)
				}
			}
		}()
	}

	// Core services
	eventBus := events.NewEventBus()
	mets := metrics.NewMetrics()

	store := engine.NewStateStore()
	store.SetMode(cfg.Mode)

	strat := strategy.New(cfg.ToStrategyConfig())
	eng := engine.New(store, repo, strat, cfg.ToStopConfig(), cfg.ToEngineConfig(), logger)
	eng.SetFingerprintSink(repo)
	eng.SetEventBus(eventBus)
	eng.SetMetrics(mets)
	eng.SetPositionMirror(mirror)

	// HTTP API
	server := api.NewServer(api.ServerConfig{
		Host:           cfg.ServerConfig.Host,
		Port:           cfg.ServerConfig.Port,
		APIKey:         cfg.ServerConfig.APIKey,
		ProductionMode: cfg.ServerConfig.ProductionMode,
	}, repo, eng, eventBus, mets, mirror, logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error shutting down HTTP server")
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("Error closing Redis client")
		}
	}

	logger.Info().Msg("Shutdown complete")
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.JSONFormat {
		logger = zerolog.New(os.Stdout)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	return logger.Level(level).With().Timestamp().Logger()
}
