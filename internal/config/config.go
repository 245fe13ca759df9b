// Package config handles fibsim configuration loading using viper.
package config

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"

	"github.com/DuoChen-317/csds425-projs/internal/log"
)

// EnvPrefix is prepended to every environment override, e.g. FIBSIM_LOG_LEVEL.
const EnvPrefix = "FIBSIM"

// Conflict policy names accepted in simulate.conflict_policy.
const (
	PolicyAbort     = "abort"
	PolicyKeepFirst = "keep-first"
)

// Config is the top-level configuration.
type Config struct {
	Log      log.Config     `mapstructure:"log"`
	Simulate SimulateConfig `mapstructure:"simulate"`
	Stats    StatsConfig    `mapstructure:"stats"`
}

// SimulateConfig tunes the decision run.
type SimulateConfig struct {
	Workers        int    `mapstructure:"workers"`
	BatchSize      int    `mapstructure:"batch_size"`
	CacheSize      int    `mapstructure:"cache_size"` // 0 disables the lookup cache
	ConflictPolicy string `mapstructure:"conflict_policy"`
	RequireRules   bool   `mapstructure:"require_rules"`
}

// StatsConfig controls the end-of-run summary.
type StatsConfig struct {
	Print       bool   `mapstructure:"print"`
	MetricsFile string `mapstructure:"metrics_file"`
}

// New returns a viper instance with defaults and env overrides applied.
// Callers bind their flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("simulate.workers", 1)
	v.SetDefault("simulate.batch_size", 4096)
	v.SetDefault("simulate.cache_size", 0)
	v.SetDefault("simulate.conflict_policy", PolicyAbort)
	v.SetDefault("simulate.require_rules", false)

	v.SetDefault("stats.print", false)
	v.SetDefault("stats.metrics_file", "")
}

// Load reads the optional config file at path and returns the merged,
// validated configuration. An empty path skips the file.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	var result *multierror.Error

	switch c.Log.Format {
	case "text", "json":
	default:
		result = multierror.Append(result, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.Simulate.Workers < 1 {
		result = multierror.Append(result, fmt.Errorf("simulate.workers must be >= 1, got %d", c.Simulate.Workers))
	}
	if c.Simulate.BatchSize < 1 {
		result = multierror.Append(result, fmt.Errorf("simulate.batch_size must be >= 1, got %d", c.Simulate.BatchSize))
	}
	if c.Simulate.CacheSize < 0 {
		result = multierror.Append(result, fmt.Errorf("simulate.cache_size must be >= 0, got %d", c.Simulate.CacheSize))
	}
	switch c.Simulate.ConflictPolicy {
	case PolicyAbort, PolicyKeepFirst:
	default:
		result = multierror.Append(result, fmt.Errorf("simulate.conflict_policy must be %s or %s, got %q",
			PolicyAbort, PolicyKeepFirst, c.Simulate.ConflictPolicy))
	}

	return result.ErrorOrNil()
}
