// Package config loads namelink configuration from config.yaml and NAMELINK_* env vars.
package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/namelink/internal/similarity"
)

// Config holds the full application configuration.
type Config struct {
	Match  MatchConfig  `yaml:"match" mapstructure:"match"`
	Scrape ScrapeConfig `yaml:"scrape" mapstructure:"scrape"`
	Fetch  FetchConfig  `yaml:"fetch" mapstructure:"fetch"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// MatchConfig configures name matching between two datasets.
type MatchConfig struct {
	ScoreCutoff     int    `yaml:"score_cutoff" mapstructure:"score_cutoff"`
	LeftNameColumn  string `yaml:"left_name_column" mapstructure:"left_name_column"`
	RightNameColumn string `yaml:"right_name_column" mapstructure:"right_name_column"`
	Concurrency     int    `yaml:"concurrency" mapstructure:"concurrency"`
	Scorer          string `yaml:"scorer" mapstructure:"scorer"`
	CacheSize       int    `yaml:"cache_size" mapstructure:"cache_size"`
}

// ScrapeConfig configures the startup directory scraper.
type ScrapeConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	DelayMS     int    `yaml:"delay_ms" mapstructure:"delay_ms"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// FetchConfig configures retrieval of remote input datasets.
type FetchConfig struct {
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// StoreConfig configures the run store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	// Pool sizing, postgres only.
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("NAMELINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("match.score_cutoff", 90)
	v.SetDefault("match.left_name_column", "startup_name")
	v.SetDefault("match.right_name_column", "company_name")
	v.SetDefault("match.concurrency", 4)
	v.SetDefault("match.scorer", similarity.NameTokenSet)
	v.SetDefault("match.cache_size", 50000)
	v.SetDefault("scrape.base_url", "https://www.frenchcleantech.com/")
	v.SetDefault("scrape.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120 Safari/537.36")
	v.SetDefault("scrape.timeout_secs", 30)
	v.SetDefault("scrape.delay_ms", 600)
	v.SetDefault("scrape.max_retries", 3)
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.database_url", "namelink.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks the fields used by the given command mode: "match",
// "scrape", "dedup", "normalize", "serve" or "runs". Matching settings are checked in every
// mode that can run a match.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "match":
		errs = append(errs, c.validateMatch()...)
		if c.Match.LeftNameColumn == "" {
			errs = append(errs, "match.left_name_column is required")
		}
		if c.Match.RightNameColumn == "" {
			errs = append(errs, "match.right_name_column is required")
		}
		errs = append(errs, c.validateStore()...)
	case "scrape":
		if c.Scrape.BaseURL == "" {
			errs = append(errs, "scrape.base_url is required")
		}
		if c.Scrape.DelayMS < 0 {
			errs = append(errs, "scrape.delay_ms must be >= 0")
		}
		if c.Scrape.TimeoutSecs <= 0 {
			errs = append(errs, "scrape.timeout_secs must be > 0")
		}
		if c.Scrape.MaxRetries < 0 {
			errs = append(errs, "scrape.max_retries must be >= 0")
		}
		errs = append(errs, c.validateStore()...)
	case "dedup":
		errs = append(errs, c.validateStore()...)
	case "normalize":
	case "serve":
		errs = append(errs, c.validateMatch()...)
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be between 1 and 65535")
		}
		errs = append(errs, c.validateStore()...)
	case "runs":
		errs = append(errs, c.validateStore()...)
		if c.Store.Driver == DriverNone {
			errs = append(errs, "store.driver must not be none to list runs")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.New(fmt.Sprintf("config: validation failed:\n  %s", strings.Join(errs, "\n  ")))
	}
	return nil
}

func (c *Config) validateMatch() []string {
	var errs []string
	if c.Match.ScoreCutoff < 0 || c.Match.ScoreCutoff > 100 {
		errs = append(errs, fmt.Sprintf("match.score_cutoff must be between 0 and 100 (got %d)", c.Match.ScoreCutoff))
	}
	if c.Match.Concurrency < 1 || c.Match.Concurrency > 64 {
		errs = append(errs, "match.concurrency must be between 1 and 64")
	}
	if c.Match.CacheSize < 1 {
		errs = append(errs, "match.cache_size must be > 0")
	}
	if _, err := similarity.ByName(c.Match.Scorer); err != nil {
		errs = append(errs, fmt.Sprintf("match.scorer must be one of %s", strings.Join(similarity.Names(), ", ")))
	}
	return errs
}

func (c *Config) validateStore() []string {
	switch c.Store.Driver {
	case DriverNone:
		return nil
	case DriverSQLite:
		if c.Store.DatabaseURL == "" {
			return []string{"store.database_url is required"}
		}
		return nil
	case DriverPostgres:
		var errs []string
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
		if c.Store.MaxConns < 1 {
			errs = append(errs, "store.max_conns must be > 0")
		}
		if c.Store.MinConns < 0 || c.Store.MinConns > c.Store.MaxConns {
			errs = append(errs, "store.min_conns must be between 0 and store.max_conns")
		}
		return errs
	default:
		return []string{fmt.Sprintf("store.driver must be one of sqlite, postgres, none (got %q)", c.Store.Driver)}
	}
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
