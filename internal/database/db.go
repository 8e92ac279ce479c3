package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDB creates a new database connection
func NewDB(cfg Config, log zerolog.Logger) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log.Info().Str("database", cfg.Database).Msg("connected to PostgreSQL")

	return &DB{Pool: pool, log: log.With().Str("component", "database").Logger()}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.log.Info().Msg("database connection closed")
	}
}

// RunMigrations creates the schema if missing. Candles carry a unique
// index so a terminal resending history cannot duplicate rows.
func (db *DB) RunMigrations(ctx context.Context) error {
	db.log.Info().Msg("running database migrations")

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS candles (
			id BIGSERIAL PRIMARY KEY,
			machine_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			ts_utc TIMESTAMPTZ NOT NULL,
			open DOUBLE PRECISION NOT NULL,
			high DOUBLE PRECISION NOT NULL,
			low DOUBLE PRECISION NOT NULL,
			close DOUBLE PRECISION NOT NULL,
			volume DOUBLE PRECISION NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_candles_symbol_tf_ts
			ON candles(symbol, timeframe, ts_utc)`,

		`CREATE TABLE IF NOT EXISTS heartbeats (
			id BIGSERIAL PRIMARY KEY,
			machine_id TEXT NOT NULL,
			ts_utc TIMESTAMPTZ NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS fills (
			id BIGSERIAL PRIMARY KEY,
			machine_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			qty DOUBLE PRECISION NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			ts_utc TIMESTAMPTZ NOT NULL,
			notes TEXT,
			decision_id TEXT,
			broker_order_id TEXT,
			order_type TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fills_machine_symbol
			ON fills(machine_id, symbol)`,

		`CREATE TABLE IF NOT EXISTS fingerprints (
			id BIGSERIAL PRIMARY KEY,
			decision_id TEXT NOT NULL,
			ts_utc TIMESTAMPTZ NOT NULL,
			machine_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			signal TEXT NOT NULL,
			stop_price DOUBLE PRECISION NOT NULL,
			reason TEXT NOT NULL,
			pamm_score DOUBLE PRECISION,
			direction INTEGER,
			ema9 DOUBLE PRECISION, ema21 DOUBLE PRECISION, ema50 DOUBLE PRECISION,
			rsi14 DOUBLE PRECISION, macdh DOUBLE PRECISION, adx DOUBLE PRECISION,
			relvol DOUBLE PRECISION, vwap DOUBLE PRECISION, atr DOUBLE PRECISION,
			close DOUBLE PRECISION,
			mode TEXT,
			timeframe TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fingerprints_machine_ts
			ON fingerprints(machine_id, ts_utc DESC)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	db.log.Info().Msg("database migrations completed")
	return nil
}
