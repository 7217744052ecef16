package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/rewired-gh/polypattern/internal/models"
	"github.com/rewired-gh/polypattern/internal/pattern"
)

// EnvPrefix prefixes every environment override, e.g. POLY_PATTERN_TELEGRAM_BOT_TOKEN.
const EnvPrefix = "POLY_PATTERN"

// Config represents the complete application configuration
type Config struct {
	Polymarket PolymarketConfig `mapstructure:"polymarket"`
	Pattern    PatternConfig    `mapstructure:"pattern"`
	Scanner    ScannerConfig    `mapstructure:"scanner"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// PolymarketConfig holds Polymarket API configuration
type PolymarketConfig struct {
	GammaAPIURL       string        `mapstructure:"gamma_api_url"`
	CLOBAPIURL        string        `mapstructure:"clob_api_url"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	Categories        []string      `mapstructure:"categories"`
	Limit             int           `mapstructure:"limit"`
	MinVolume24hr     float64       `mapstructure:"min_volume_24hr"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	// HistoryFidelity is the CLOB price-history resolution in minutes.
	HistoryFidelity int           `mapstructure:"history_fidelity"`
	HistoryLookback time.Duration `mapstructure:"history_lookback"`
}

// PatternConfig mirrors pattern.Config in file form
type PatternConfig struct {
	WindowSize            int     `mapstructure:"window_size"`
	MaxDistance           float64 `mapstructure:"max_distance"`
	TopK                  int     `mapstructure:"top_k"`
	Normalization         string  `mapstructure:"normalization"`
	DirectionThreshold    float64 `mapstructure:"direction_threshold"`
	SignificanceMinSample int     `mapstructure:"significance_min_sample"`
	LengthTolerance       float64 `mapstructure:"length_tolerance"`
	SimilarityScale       float64 `mapstructure:"similarity_scale"`
	OutcomeHorizon        string  `mapstructure:"outcome_horizon"`
	IncludePatternData    bool    `mapstructure:"include_pattern_data"`
	IncludeAlignment      bool    `mapstructure:"include_alignment"`
}

// ScannerConfig holds the periodic market scan configuration
type ScannerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// LookbackPoints is the length of the query window taken from the end
	// of each market's history.
	LookbackPoints    int           `mapstructure:"lookback_points"`
	WindowStride      int           `mapstructure:"window_stride"`
	CandidateLimit    int           `mapstructure:"candidate_limit"`
	TopK              int           `mapstructure:"top_k"`
	MinConfidence     float64       `mapstructure:"min_confidence"`
	Cooldown          time.Duration `mapstructure:"cooldown"`
	ExcludeOwnHistory bool          `mapstructure:"exclude_own_history"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken   string `mapstructure:"bot_token"`
	ChatID     string `mapstructure:"chat_id"`
	Enabled    bool   `mapstructure:"enabled"`
	MaxRetries int    `mapstructure:"max_retries"`
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	DBPath             string `mapstructure:"db_path"`
	MaxMarkets         int    `mapstructure:"max_markets"`
	MaxPointsPerMarket int    `mapstructure:"max_points_per_market"`
}

// ServerConfig holds the HTTP API configuration
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Mode    string `mapstructure:"mode"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
// A .env file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	v := viper.New()

	// Set config file
	v.SetConfigFile(path)

	// Set defaults
	setDefaults(v)

	// Enable environment variable override
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Polymarket defaults
	v.SetDefault("polymarket.gamma_api_url", "https://gamma-api.polymarket.com")
	v.SetDefault("polymarket.clob_api_url", "https://clob.polymarket.com")
	v.SetDefault("polymarket.poll_interval", "15m")
	v.SetDefault("polymarket.categories", []string{})
	v.SetDefault("polymarket.limit", 100)
	v.SetDefault("polymarket.min_volume_24hr", 10000.0)
	v.SetDefault("polymarket.timeout", "30s")
	v.SetDefault("polymarket.max_retries", 3)
	v.SetDefault("polymarket.requests_per_second", 5.0)
	v.SetDefault("polymarket.history_fidelity", 60)
	v.SetDefault("polymarket.history_lookback", "720h")

	// Pattern defaults
	d := pattern.DefaultConfig()
	v.SetDefault("pattern.window_size", d.WindowSize)
	v.SetDefault("pattern.max_distance", d.MaxDistance)
	v.SetDefault("pattern.top_k", d.TopK)
	v.SetDefault("pattern.normalization", string(d.Normalization))
	v.SetDefault("pattern.direction_threshold", d.DirectionThreshold)
	v.SetDefault("pattern.significance_min_sample", d.SignificanceMinSample)
	v.SetDefault("pattern.length_tolerance", d.LengthTolerance)
	v.SetDefault("pattern.similarity_scale", d.SimilarityScale)
	v.SetDefault("pattern.outcome_horizon", string(d.OutcomeHorizon))
	v.SetDefault("pattern.include_pattern_data", false)
	v.SetDefault("pattern.include_alignment", false)

	// Scanner defaults
	v.SetDefault("scanner.enabled", true)
	v.SetDefault("scanner.lookback_points", 24)
	v.SetDefault("scanner.window_stride", 1)
	v.SetDefault("scanner.candidate_limit", 0)
	v.SetDefault("scanner.top_k", 5)
	v.SetDefault("scanner.min_confidence", 0.9)
	v.SetDefault("scanner.cooldown", "6h")
	v.SetDefault("scanner.exclude_own_history", true)

	// Telegram defaults
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/polypattern.db")
	v.SetDefault("storage.max_markets", 500)
	v.SetDefault("storage.max_points_per_market", 5000)

	// Server defaults
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "release")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// SearchConfig converts the file form into the engine's configuration.
func (p PatternConfig) SearchConfig() pattern.Config {
	return pattern.Config{
		WindowSize:            p.WindowSize,
		MaxDistance:           p.MaxDistance,
		TopK:                  p.TopK,
		Normalization:         pattern.NormalizationMode(strings.ToLower(p.Normalization)),
		DirectionThreshold:    p.DirectionThreshold,
		SignificanceMinSample: p.SignificanceMinSample,
		LengthTolerance:       p.LengthTolerance,
		SimilarityScale:       p.SimilarityScale,
		OutcomeHorizon:        models.Horizon(p.OutcomeHorizon),
		IncludePatternData:    p.IncludePatternData,
		IncludeAlignment:      p.IncludeAlignment,
	}
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Polymarket config
	if c.Polymarket.GammaAPIURL == "" {
		return fmt.Errorf("polymarket.gamma_api_url is required")
	}
	if c.Polymarket.CLOBAPIURL == "" {
		return fmt.Errorf("polymarket.clob_api_url is required")
	}
	if c.Polymarket.PollInterval < 1*time.Minute {
		return fmt.Errorf("polymarket.poll_interval must be at least 1 minute")
	}
	if c.Polymarket.Limit < 1 {
		return fmt.Errorf("polymarket.limit must be at least 1")
	}
	if c.Polymarket.MaxRetries < 0 {
		return fmt.Errorf("polymarket.max_retries must not be negative")
	}
	if c.Polymarket.RequestsPerSecond <= 0 {
		return fmt.Errorf("polymarket.requests_per_second must be positive")
	}
	if c.Polymarket.HistoryFidelity < 1 {
		return fmt.Errorf("polymarket.history_fidelity must be at least 1 minute")
	}
	if c.Polymarket.HistoryLookback < 1*time.Hour {
		return fmt.Errorf("polymarket.history_lookback must be at least 1 hour")
	}

	// Validate Pattern config
	if err := c.Pattern.SearchConfig().Validate(); err != nil {
		return fmt.Errorf("pattern: %w", err)
	}

	// Validate Scanner config
	if c.Scanner.LookbackPoints < 2 {
		return fmt.Errorf("scanner.lookback_points must be at least 2")
	}
	if c.Scanner.WindowStride < 1 {
		return fmt.Errorf("scanner.window_stride must be at least 1")
	}
	if c.Scanner.CandidateLimit < 0 {
		return fmt.Errorf("scanner.candidate_limit must not be negative")
	}
	if c.Scanner.TopK < 1 {
		return fmt.Errorf("scanner.top_k must be at least 1")
	}
	if c.Scanner.MinConfidence < 0.0 || c.Scanner.MinConfidence > 1.0 {
		return fmt.Errorf("scanner.min_confidence must be between 0.0 and 1.0")
	}
	if c.Scanner.Cooldown < 0 {
		return fmt.Errorf("scanner.cooldown must not be negative")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Storage config
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Storage.MaxMarkets < 1 {
		return fmt.Errorf("storage.max_markets must be at least 1")
	}
	if c.Storage.MaxPointsPerMarket < c.Scanner.LookbackPoints {
		return fmt.Errorf("storage.max_points_per_market must be at least scanner.lookback_points")
	}

	// Validate Server config
	if c.Server.Enabled && c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required when the server is enabled")
	}
	validModes := map[string]bool{"debug": true, "release": true, "test": true}
	if !validModes[c.Server.Mode] {
		return fmt.Errorf("server.mode must be one of: debug, release, test")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
