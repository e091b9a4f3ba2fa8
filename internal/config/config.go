// Package config loads docmodel settings from docmodel.yml and DOCMODEL_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Store kinds
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQL    = "sql"
)

// EnvPrefix is the prefix of environment overrides, e.g. DOCMODEL_STORE_KIND
const EnvPrefix = "DOCMODEL"

// Config represents the docmodel configuration
type Config struct {
	Store   StoreConfig   `mapstructure:"store"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// StoreConfig selects the document store
type StoreConfig struct {
	Kind        string `mapstructure:"kind"`
	URL         string `mapstructure:"url"`
	SQLDriver   string `mapstructure:"sql_driver"`
	TablePrefix string `mapstructure:"table_prefix"`
}

// RedisConfig represents Redis connection settings
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// LogConfig represents logger settings
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// MetricsConfig toggles operation metrics
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.kind", StoreMemory)
	v.SetDefault("store.url", "docmodel.db")
	v.SetDefault("store.sql_driver", "sqlite3")
	v.SetDefault("store.table_prefix", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "docmodel:")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("metrics.enabled", false)
}

// Load loads the configuration. An empty path looks for docmodel.yml in the
// working directory and falls back to defaults when it is missing; an explicit
// path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("docmodel")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	switch cfg.Store.Kind {
	case StoreMemory, StoreRedis:
	case StoreSQL:
		switch cfg.Store.SQLDriver {
		case "sqlite3", "sqlite", "pgx", "postgres", "postgresql":
		default:
			return fmt.Errorf("store.sql_driver must be sqlite3, pgx or postgres, got: %s", cfg.Store.SQLDriver)
		}
		if cfg.Store.URL == "" {
			return fmt.Errorf("store.url is required for the sql store")
		}
	default:
		return fmt.Errorf("store.kind must be memory, redis or sql, got: %s", cfg.Store.Kind)
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got: %s", cfg.Log.Level)
	}

	if cfg.Redis.DB < 0 {
		return fmt.Errorf("redis.db must not be negative, got: %d", cfg.Redis.DB)
	}
	return nil
}
