package config

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Validity ValidityConfig `yaml:"validity" mapstructure:"validity"`
	Costing  CostingConfig  `yaml:"costing" mapstructure:"costing"`
	Sourcing SourcingConfig `yaml:"sourcing" mapstructure:"sourcing"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Runs     RunsConfig     `yaml:"runs" mapstructure:"runs"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// ValidityConfig holds the price freshness thresholds in days.
type ValidityConfig struct {
	MaxAgeDays     int `yaml:"max_age_days" mapstructure:"max_age_days"`
	BlockAfterDays int `yaml:"block_after_days" mapstructure:"block_after_days"`
}

// CostingConfig configures the recipe cost calculator.
type CostingConfig struct {
	HourlyRate float64 `yaml:"hourly_rate" mapstructure:"hourly_rate"`
	Currency   string  `yaml:"currency" mapstructure:"currency"`
}

// SourcingConfig configures the policy resolver.
type SourcingConfig struct {
	ServiceTag           string   `yaml:"service_tag" mapstructure:"service_tag"`
	PolicyEngineEnabled  bool     `yaml:"policy_engine_enabled" mapstructure:"policy_engine_enabled"`
	StagedRolloutEnabled bool     `yaml:"staged_rollout_enabled" mapstructure:"staged_rollout_enabled"`
	RolloutCategories    []string `yaml:"rollout_categories" mapstructure:"rollout_categories"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// BatchConfig configures batch recipe costing.
type BatchConfig struct {
	MaxConcurrentRecipes int `yaml:"max_concurrent_recipes" mapstructure:"max_concurrent_recipes"`
}

// RunsConfig configures where run artifacts are written.
type RunsConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("EVOCHIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("validity.max_age_days", 14)
	v.SetDefault("validity.block_after_days", 28)
	v.SetDefault("costing.hourly_rate", 16.0)
	v.SetDefault("costing.currency", "EUR")
	v.SetDefault("sourcing.service_tag", "CAT")
	v.SetDefault("sourcing.policy_engine_enabled", false)
	v.SetDefault("sourcing.staged_rollout_enabled", false)
	v.SetDefault("sourcing.rollout_categories", []string{})
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit_rps", 20.0)
	v.SetDefault("server.rate_limit_burst", 40)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("batch.max_concurrent_recipes", 4)
	v.SetDefault("runs.dir", "runs")
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

// Validate checks the settings a command mode depends on.
func (c *Config) Validate(mode string) error {
	var problems []string

	if c.Validity.MaxAgeDays <= 0 {
		problems = append(problems, "validity.max_age_days must be positive")
	}
	if c.Validity.BlockAfterDays < c.Validity.MaxAgeDays {
		problems = append(problems, "validity.block_after_days must be >= validity.max_age_days")
	}

	switch mode {
	case "cost":
		if c.Costing.HourlyRate < 0 {
			problems = append(problems, "costing.hourly_rate must not be negative")
		}
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be between 1 and 65535")
		}
		if c.Server.RateLimitRPS < 0 {
			problems = append(problems, "server.rate_limit_rps must not be negative")
		}
	case "store":
		switch c.Store.Driver {
		case "sqlite", "":
		case "postgres":
			if c.Store.DatabaseURL == "" {
				problems = append(problems, "store.database_url is required for postgres")
			}
		default:
			problems = append(problems, "store.driver must be sqlite or postgres")
		}
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid for %s: %s", mode, strings.Join(problems, "; "))
	}
	return nil
}

// legacyDefaults is the defaults.json document shape used by older runs.
type legacyDefaults struct {
	PriceValidity *struct {
		MaxAgeDays     *int `json:"max_age_days"`
		BlockAfterDays *int `json:"block_after_days"`
	} `json:"phase1_price_validity"`
	Costing *struct {
		HourlyRate *float64 `json:"hourly_rate"`
	} `json:"costing"`
}

// ApplyDefaultsFile overlays a legacy defaults.json document onto cfg. Only
// keys present in the document are applied.
func ApplyDefaultsFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "config: read defaults %s", path)
	}
	var doc legacyDefaults
	if err := json.Unmarshal(data, &doc); err != nil {
		return eris.Wrapf(err, "config: parse defaults %s", path)
	}

	if pv := doc.PriceValidity; pv != nil {
		if pv.MaxAgeDays != nil {
			cfg.Validity.MaxAgeDays = *pv.MaxAgeDays
		}
		if pv.BlockAfterDays != nil {
			cfg.Validity.BlockAfterDays = *pv.BlockAfterDays
		}
	}
	if doc.Costing != nil && doc.Costing.HourlyRate != nil && *doc.Costing.HourlyRate > 0 {
		cfg.Costing.HourlyRate = *doc.Costing.HourlyRate
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
