// Package config loads Iron Insights' runtime configuration from a file,
// environment variables, and built-in defaults, following the
// load/defaults/validate shape used across the corpus' viper-based
// services.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete service configuration (spec.md §6).
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Dataset DatasetConfig `mapstructure:"dataset"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Query   QueryConfig   `mapstructure:"query"`
	SQL     SQLConfig     `mapstructure:"sql"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatasetConfig struct {
	Path string `mapstructure:"path"`
	// Watch enables fsnotify-based reload when Path changes on disk.
	Watch bool `mapstructure:"watch"`
}

type CacheConfig struct {
	MaxCapacity uint64        `mapstructure:"max_capacity"`
	TTL         time.Duration `mapstructure:"ttl"`
	// SingleFlightTimeout is loaded from configuration but not read by the
	// result cache: a caller waiting on a build in progress waits until
	// that build returns, and no waiter is ever reported as Overloaded.
	SingleFlightTimeout time.Duration `mapstructure:"single_flight_timeout"`
}

type QueryConfig struct {
	SampleSize    int  `mapstructure:"sample_size"`
	HistogramBins int  `mapstructure:"histogram_bins"`
	SplitTotal    bool `mapstructure:"split_total_for_scatter"`
}

type SQLConfig struct {
	MemoryLimitBytes int64 `mapstructure:"memory_limit_bytes"`
	Threads          int   `mapstructure:"threads"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from the file at path (if it exists),
// overlays environment variables prefixed IRON_INSIGHTS_, and fills in
// defaults for anything left unset.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("IRON_INSIGHTS")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)

	v.SetDefault("dataset.path", "./data/openpowerlifting.csv")
	v.SetDefault("dataset.watch", true)

	v.SetDefault("cache.max_capacity", 1000)
	v.SetDefault("cache.ttl", "3600s")
	v.SetDefault("cache.single_flight_timeout", "30s")

	v.SetDefault("query.sample_size", 50000)
	v.SetDefault("query.histogram_bins", 50)
	v.SetDefault("query.split_total_for_scatter", true)

	v.SetDefault("sql.memory_limit_bytes", 8*1024*1024*1024)
	v.SetDefault("sql.threads", 4)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks invariants the rest of the system assumes hold.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in (0, 65535]")
	}
	if c.Cache.MaxCapacity == 0 {
		return fmt.Errorf("cache.max_capacity must be > 0")
	}
	if c.Query.SampleSize <= 0 {
		return fmt.Errorf("query.sample_size must be > 0")
	}
	if c.Query.HistogramBins <= 0 {
		return fmt.Errorf("query.histogram_bins must be > 0")
	}
	if c.SQL.Threads <= 0 {
		return fmt.Errorf("sql.threads must be > 0")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	return nil
}
