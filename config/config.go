package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"ninja-decision-engine/internal/database"
	"ninja-decision-engine/internal/engine"
	"ninja-decision-engine/internal/strategy"
)

// Config is the full process configuration: base values come from an
// optional config.json, environment variables take precedence.
type Config struct {
	ServerConfig   ServerConfig   `json:"server"`
	DatabaseConfig DatabaseConfig `json:"database"`
	RedisConfig    RedisConfig    `json:"redis"`
	LoggingConfig  LoggingConfig  `json:"logging"`
	StrategyConfig StrategyConfig `json:"strategy"`
	StopConfig     StopConfig     `json:"stops"`
	RuntimeConfig  RuntimeConfig  `json:"runtime"`

	// Mode is served back to the terminal on every poll: PAPER or LIVE.
	Mode string `json:"mode"`
	// DefaultSymbol is used when the terminal omits the symbol.
	DefaultSymbol string `json:"default_symbol"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	APIKey         string `json:"api_key"`
	ProductionMode bool   `json:"production_mode"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig holds the optional position-mirror Redis settings.
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// LoggingConfig controls zerolog output.
type LoggingConfig struct {
	Level      string `json:"level"`       // debug, info, warn, error
	JSONFormat bool   `json:"json_format"` // false = console writer
}

// StrategyConfig holds the entry filter thresholds and toggles.
type StrategyConfig struct {
	PammMin     float64 `json:"pamm_min"`
	PammMax     float64 `json:"pamm_max"`
	AdxMin      float64 `json:"adx_min"`
	RelVolMin   float64 `json:"rel_vol_min"`
	RelVolMax   float64 `json:"rel_vol_max"`
	RsiLongMin  float64 `json:"rsi_long_min"`
	RsiShortMax float64 `json:"rsi_short_max"`

	UseVWAP           bool `json:"use_vwap"`
	UseRegimeFilter   bool `json:"use_regime_filter"`
	UseCandlePatterns bool `json:"use_candle_patterns"`
	UseMultiTFMACD    bool `json:"use_multi_tf_macd"`

	MinBars int `json:"min_bars"`
}

// StopConfig holds the initial stop distance and trailing ladder, in points.
type StopConfig struct {
	StopPoints   float64 `json:"stop_points"`
	Tier1Pnl     float64 `json:"trail_l1_pnl_pts"`
	Tier1LockPts float64 `json:"trail_l1_lock_pts"`
	Tier2Pnl     float64 `json:"trail_l2_pnl_pts"`
	Tier2LockPts float64 `json:"trail_l2_lock_pts"`
	Tier3Pnl     float64 `json:"trail_l3_pnl_pts"`
	TrailPts     float64 `json:"trail_l3_trail_pts"`
	MinMovePts   float64 `json:"min_stop_move_pts"`
	MaxMovePts   float64 `json:"max_stop_move_pts"`
}

// RuntimeConfig holds the position-management and risk knobs.
type RuntimeConfig struct {
	CooldownSeconds int `json:"cooldown_seconds"`

	EarlyExitMinBars  int     `json:"early_exit_min_bars"`
	EarlyExitPammSoft float64 `json:"early_exit_pamm_soft"`
	EarlyExitPammHard float64 `json:"early_exit_pamm"`
	ReversalPammGate  float64 `json:"reversal_pamm_threshold"`

	EnableAutoKillSwitch bool    `json:"enable_auto_kill_switch"`
	MaxDailyLossUSD      float64 `json:"max_daily_loss_usd"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
	CatastrophicLossUSD  float64 `json:"catastrophic_loss_usd"`
	PointValueUSD        float64 `json:"point_value_usd"`

	PendingExitGraceSeconds int `json:"pending_exit_grace_seconds"`
}

// Load reads config.json if present and applies environment overrides.
// Defaults are seeded first, so the file only overrides the keys it
// actually contains and an explicit false in the file is honored.
func Load() (*Config, error) {
	cfg := defaults()
	if err := mergeFile(cfg, "config.json"); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// defaults returns a fully populated Config mirroring the package defaults
// of strategy, stops and the engine runtime.
func defaults() *Config {
	def := strategy.DefaultConfig()
	sdef := strategy.DefaultStopConfig()
	rdef := engine.DefaultConfig()

	return &Config{
		Mode:          "PAPER",
		DefaultSymbol: "MBT",
		ServerConfig: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		DatabaseConfig: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Database: "decision_engine",
			SSLMode:  "disable",
		},
		RedisConfig: RedisConfig{
			Address: "localhost:6379",
		},
		LoggingConfig: LoggingConfig{
			Level: "info",
		},
		StrategyConfig: StrategyConfig{
			PammMin:           def.PammMin,
			PammMax:           def.PammMax,
			AdxMin:            def.AdxMin,
			RelVolMin:         def.RelVolMin,
			RelVolMax:         def.RelVolMax,
			RsiLongMin:        def.RsiLongMin,
			RsiShortMax:       def.RsiShortMax,
			UseVWAP:           def.UseVWAP,
			UseRegimeFilter:   def.UseRegimeFilter,
			UseCandlePatterns: def.UseCandlePatterns,
			UseMultiTFMACD:    def.UseMultiTFMACD,
			MinBars:           def.MinBars,
		},
		StopConfig: StopConfig{
			StopPoints:   sdef.StopPoints,
			Tier1Pnl:     sdef.Tier1Pnl,
			Tier1LockPts: sdef.Tier1LockPts,
			Tier2Pnl:     sdef.Tier2Pnl,
			Tier2LockPts: sdef.Tier2LockPts,
			Tier3Pnl:     sdef.Tier3Pnl,
			TrailPts:     sdef.TrailPts,
			MinMovePts:   sdef.MinMovePts,
			MaxMovePts:   sdef.MaxMovePts,
		},
		RuntimeConfig: RuntimeConfig{
			CooldownSeconds:         rdef.CooldownSeconds,
			EarlyExitMinBars:        rdef.EarlyExitMinBars,
			EarlyExitPammSoft:       rdef.EarlyExitPammSoft,
			EarlyExitPammHard:       rdef.EarlyExitPammHard,
			ReversalPammGate:        rdef.ReversalPammGate,
			EnableAutoKillSwitch:    rdef.EnableAutoKillSwitch,
			MaxDailyLossUSD:         rdef.MaxDailyLossUSD,
			MaxConsecutiveLosses:    rdef.MaxConsecutiveLosses,
			CatastrophicLossUSD:     rdef.CatastrophicLossUSD,
			PointValueUSD:           rdef.PointValueUSD,
			PendingExitGraceSeconds: int(rdef.PendingExitGrace / time.Second),
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	cfg.Mode = getEnvOrDefault("BOT_MODE", cfg.Mode)
	cfg.DefaultSymbol = getEnvOrDefault("DEFAULT_SYMBOL", cfg.DefaultSymbol)

	// Server
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.APIKey = getEnvOrDefault("API_KEY", cfg.ServerConfig.APIKey)
	cfg.ServerConfig.ProductionMode = getEnvBoolOrDefault("PRODUCTION_MODE", cfg.ServerConfig.ProductionMode)

	// Database
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", cfg.DatabaseConfig.Database)
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.DatabaseConfig.SSLMode)

	// Redis
	cfg.RedisConfig.Enabled = getEnvBoolOrDefault("REDIS_ENABLED", cfg.RedisConfig.Enabled)
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)

	// Logging
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.JSONFormat = getEnvBoolOrDefault("LOG_JSON", cfg.LoggingConfig.JSONFormat)

	// Strategy thresholds
	cfg.StrategyConfig.PammMin = getEnvFloatOrDefault("PAMM_MIN", cfg.StrategyConfig.PammMin)
	cfg.StrategyConfig.PammMax = getEnvFloatOrDefault("PAMM_MAX", cfg.StrategyConfig.PammMax)
	cfg.StrategyConfig.AdxMin = getEnvFloatOrDefault("ADX_MIN", cfg.StrategyConfig.AdxMin)
	cfg.StrategyConfig.RelVolMin = getEnvFloatOrDefault("REL_VOL_MIN", cfg.StrategyConfig.RelVolMin)
	cfg.StrategyConfig.RelVolMax = getEnvFloatOrDefault("REL_VOL_MAX", cfg.StrategyConfig.RelVolMax)
	cfg.StrategyConfig.RsiLongMin = getEnvFloatOrDefault("RSI_LONG_MIN", cfg.StrategyConfig.RsiLongMin)
	cfg.StrategyConfig.RsiShortMax = getEnvFloatOrDefault("RSI_SHORT_MAX", cfg.StrategyConfig.RsiShortMax)
	cfg.StrategyConfig.UseVWAP = getEnvBoolOrDefault("USE_VWAP", cfg.StrategyConfig.UseVWAP)
	cfg.StrategyConfig.UseRegimeFilter = getEnvBoolOrDefault("USE_REGIME_FILTER", cfg.StrategyConfig.UseRegimeFilter)
	cfg.StrategyConfig.UseCandlePatterns = getEnvBoolOrDefault("USE_CANDLE_PATTERNS", cfg.StrategyConfig.UseCandlePatterns)
	cfg.StrategyConfig.UseMultiTFMACD = getEnvBoolOrDefault("USE_MULTI_TF_MACD", cfg.StrategyConfig.UseMultiTFMACD)
	cfg.StrategyConfig.MinBars = getEnvIntOrDefault("MIN_BARS", cfg.StrategyConfig.MinBars)

	// Stop ladder
	cfg.StopConfig.StopPoints = getEnvFloatOrDefault("STOP_POINTS", cfg.StopConfig.StopPoints)
	cfg.StopConfig.Tier1Pnl = getEnvFloatOrDefault("TRAIL_L1_PNL_PTS", cfg.StopConfig.Tier1Pnl)
	cfg.StopConfig.Tier1LockPts = getEnvFloatOrDefault("TRAIL_L1_LOCK_PTS", cfg.StopConfig.Tier1LockPts)
	cfg.StopConfig.Tier2Pnl = getEnvFloatOrDefault("TRAIL_L2_PNL_PTS", cfg.StopConfig.Tier2Pnl)
	cfg.StopConfig.Tier2LockPts = getEnvFloatOrDefault("TRAIL_L2_LOCK_PTS", cfg.StopConfig.Tier2LockPts)
	cfg.StopConfig.Tier3Pnl = getEnvFloatOrDefault("TRAIL_L3_PNL_PTS", cfg.StopConfig.Tier3Pnl)
	cfg.StopConfig.TrailPts = getEnvFloatOrDefault("TRAIL_L3_TRAIL_PTS", cfg.StopConfig.TrailPts)
	cfg.StopConfig.MinMovePts = getEnvFloatOrDefault("MIN_STOP_MOVE_PTS", cfg.StopConfig.MinMovePts)
	cfg.StopConfig.MaxMovePts = getEnvFloatOrDefault("MAX_STOP_TIGHTEN_PER_POLL_PTS", cfg.StopConfig.MaxMovePts)

	// Runtime management
	cfg.RuntimeConfig.CooldownSeconds = getEnvIntOrDefault("COOLDOWN_SECONDS", cfg.RuntimeConfig.CooldownSeconds)
	cfg.RuntimeConfig.EarlyExitMinBars = getEnvIntOrDefault("EARLY_EXIT_MIN_BARS", cfg.RuntimeConfig.EarlyExitMinBars)
	cfg.RuntimeConfig.EarlyExitPammSoft = getEnvFloatOrDefault("EARLY_EXIT_PAMM_SOFT", cfg.RuntimeConfig.EarlyExitPammSoft)
	cfg.RuntimeConfig.EarlyExitPammHard = getEnvFloatOrDefault("EARLY_EXIT_PAMM", cfg.RuntimeConfig.EarlyExitPammHard)
	cfg.RuntimeConfig.ReversalPammGate = getEnvFloatOrDefault("REVERSAL_PAMM_THRESHOLD", cfg.RuntimeConfig.ReversalPammGate)
	cfg.RuntimeConfig.EnableAutoKillSwitch = getEnvBoolOrDefault("ENABLE_AUTO_KILL_SWITCH", cfg.RuntimeConfig.EnableAutoKillSwitch)
	cfg.RuntimeConfig.MaxDailyLossUSD = getEnvFloatOrDefault("MAX_DAILY_LOSS_USD", cfg.RuntimeConfig.MaxDailyLossUSD)
	cfg.RuntimeConfig.MaxConsecutiveLosses = getEnvIntOrDefault("MAX_CONSECUTIVE_LOSSES", cfg.RuntimeConfig.MaxConsecutiveLosses)
	cfg.RuntimeConfig.CatastrophicLossUSD = getEnvFloatOrDefault("CATASTROPHIC_LOSS_USD", cfg.RuntimeConfig.CatastrophicLossUSD)
	cfg.RuntimeConfig.PointValueUSD = getEnvFloatOrDefault("POINT_VALUE_USD", cfg.RuntimeConfig.PointValueUSD)
	cfg.RuntimeConfig.PendingExitGraceSeconds = getEnvIntOrDefault("PENDING_EXIT_GRACE_SECONDS", cfg.RuntimeConfig.PendingExitGraceSeconds)
}

// ToStrategyConfig converts to the strategy package's config type.
func (c *Config) ToStrategyConfig() strategy.Config {
	return strategy.Config{
		PammMin:           c.StrategyConfig.PammMin,
		PammMax:           c.StrategyConfig.PammMax,
		AdxMin:            c.StrategyConfig.AdxMin,
		RelVolMin:         c.StrategyConfig.RelVolMin,
		RelVolMax:         c.StrategyConfig.RelVolMax,
		RsiLongMin:        c.StrategyConfig.RsiLongMin,
		RsiShortMax:       c.StrategyConfig.RsiShortMax,
		UseVWAP:           c.StrategyConfig.UseVWAP,
		UseRegimeFilter:   c.StrategyConfig.UseRegimeFilter,
		UseCandlePatterns: c.StrategyConfig.UseCandlePatterns,
		UseMultiTFMACD:    c.StrategyConfig.UseMultiTFMACD,
		MinBars:           c.StrategyConfig.MinBars,
	}
}

// ToStopConfig converts to the strategy package's stop ladder type.
func (c *Config) ToStopConfig() strategy.StopConfig {
	return strategy.StopConfig{
		StopPoints:   c.StopConfig.StopPoints,
		Tier1Pnl:     c.StopConfig.Tier1Pnl,
		Tier1LockPts: c.StopConfig.Tier1LockPts,
		Tier2Pnl:     c.StopConfig.Tier2Pnl,
		Tier2LockPts: c.StopConfig.Tier2LockPts,
		Tier3Pnl:     c.StopConfig.Tier3Pnl,
		TrailPts:     c.StopConfig.TrailPts,
		MinMovePts:   c.StopConfig.MinMovePts,
		MaxMovePts:   c.StopConfig.MaxMovePts,
	}
}

// ToEngineConfig converts to the engine package's runtime config type.
func (c *Config) ToEngineConfig() engine.Config {
	return engine.Config{
		CooldownSeconds:      c.RuntimeConfig.CooldownSeconds,
		EarlyExitMinBars:     c.RuntimeConfig.EarlyExitMinBars,
		EarlyExitPammSoft:    c.RuntimeConfig.EarlyExitPammSoft,
		EarlyExitPammHard:    c.RuntimeConfig.EarlyExitPammHard,
		ReversalPammGate:     c.RuntimeConfig.ReversalPammGate,
		EnableAutoKillSwitch: c.RuntimeConfig.EnableAutoKillSwitch,
		MaxDailyLossUSD:      c.RuntimeConfig.MaxDailyLossUSD,
		MaxConsecutiveLosses: c.RuntimeConfig.MaxConsecutiveLosses,
		CatastrophicLossUSD:  c.RuntimeConfig.CatastrophicLossUSD,
		PointValueUSD:        c.RuntimeConfig.PointValueUSD,
		PendingExitGrace:     time.Duration(c.RuntimeConfig.PendingExitGraceSeconds) * time.Second,
	}
}

// ToDatabaseConfig converts to the database package's config type.
func (c *Config) ToDatabaseConfig() database.Config {
	return database.Config{
		Host:     c.DatabaseConfig.Host,
		Port:     c.DatabaseConfig.Port,
		User:     c.DatabaseConfig.User,
		Password: c.DatabaseConfig.Password,
		Database: c.DatabaseConfig.Database,
		SSLMode:  c.DatabaseConfig.SSLMode,
	}
}

// mergeFile unmarshals filename over cfg in place.
func mergeFile(cfg *Config, filename string) error {
	file, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(file, cfg); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "1", "true", "yes", "TRUE", "True", "YES":
			return true
		case "0", "false", "no", "FALSE", "False", "NO":
			return false
		}
	}
	return defaultValue
}
