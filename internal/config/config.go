// Package config loads application configuration and installs the logger.
package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Rules  RulesConfig  `yaml:"rules" mapstructure:"rules"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Batch  BatchConfig  `yaml:"batch" mapstructure:"batch"`
	Sodium SodiumConfig `yaml:"sodium" mapstructure:"sodium"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port                int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins      []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	ShutdownTimeoutSecs int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
}

// RulesConfig selects where the consensus ruleset is loaded from.
type RulesConfig struct {
	Source      string  `yaml:"source" mapstructure:"source"`
	Path        string  `yaml:"path" mapstructure:"path"`
	URL         string  `yaml:"url" mapstructure:"url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// Ruleset sources.
const (
	SourceEmbedded = "embedded"
	SourceFile     = "file"
	SourceHTTP     = "http"
	SourceStore    = "store"
)

// StoreConfig configures the ruleset version store.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// SodiumConfig configures the sodium calculator's body-water coefficient.
type SodiumConfig struct {
	TBWCoef       float64 `yaml:"tbw_coef" mapstructure:"tbw_coef"`
	UseRulesetTBW bool    `yaml:"use_ruleset_tbw" mapstructure:"use_ruleset_tbw"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ELECTROLYTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout_secs", 10)
	v.SetDefault("rules.source", SourceEmbedded)
	v.SetDefault("rules.path", "")
	v.SetDefault("rules.url", "")
	v.SetDefault("rules.timeout_secs", 15)
	v.SetDefault("rules.max_retries", 3)
	v.SetDefault("rules.rate_per_sec", 2.0)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "electrolyte.db")
	v.SetDefault("batch.max_concurrent", 4)
	v.SetDefault("sodium.tbw_coef", 0.6)
	v.SetDefault("sodium.use_ruleset_tbw", false)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on: "calc", "batch",
// "serve" or "rules".
func (c *Config) Validate(mode string) error {
	var problems []string
	bad := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	switch mode {
	case "calc", "batch", "serve", "rules":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Rules.Source {
	case SourceEmbedded:
	case SourceFile:
		if c.Rules.Path == "" {
			bad("rules.path is required for source %q", SourceFile)
		}
	case SourceHTTP:
		if !strings.HasPrefix(c.Rules.URL, "http://") && !strings.HasPrefix(c.Rules.URL, "https://") {
			bad("rules.url must be an http(s) URL for source %q", SourceHTTP)
		}
	case SourceStore:
	default:
		bad("rules.source must be one of embedded, file, http, store")
	}
	if c.Rules.TimeoutSecs <= 0 {
		bad("rules.timeout_secs must be > 0")
	}
	if c.Rules.MaxRetries < 0 {
		bad("rules.max_retries must be >= 0")
	}

	if mode == "rules" || c.Rules.Source == SourceStore {
		if !slices.Contains([]string{"sqlite", "postgres"}, c.Store.Driver) {
			bad("store.driver must be sqlite or postgres")
		}
		if c.Store.DatabaseURL == "" {
			bad("store.database_url is required")
		}
	}

	if c.Sodium.TBWCoef <= 0 || c.Sodium.TBWCoef > 1 {
		bad("sodium.tbw_coef must be in (0, 1]")
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			bad("server.port must be > 0 and <= 65535")
		}
	case "batch":
		if c.Batch.MaxConcurrent < 1 || c.Batch.MaxConcurrent > 64 {
			bad("batch.max_concurrent must be between 1 and 64")
		}
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
