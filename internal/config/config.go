package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/quantlab/verdict/internal/core"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Engine      EngineConfig      `mapstructure:"engine"`
	WalkForward WalkForwardConfig `mapstructure:"walk_forward"`
	MonteCarlo  MonteCarloConfig  `mapstructure:"monte_carlo"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// EngineConfig holds the backtest engine's scan parameters.
type EngineConfig struct {
	WarmupBars         int     `mapstructure:"warmup_bars"`
	BankruptcyFraction float64 `mapstructure:"bankruptcy_fraction"`
	DefaultTimeframe   string  `mapstructure:"default_timeframe"`
}

// WalkForwardConfig holds walk-forward validation defaults.
type WalkForwardConfig struct {
	DefaultSplits int `mapstructure:"default_splits"`
}

// MonteCarloConfig holds Monte Carlo validation defaults.
type MonteCarloConfig struct {
	DefaultIterations int     `mapstructure:"default_iterations"`
	EntryProbability  float64 `mapstructure:"entry_probability"`
}

type StorageConfig struct {
	Bars    BarStorageConfig `mapstructure:"bars"`
	Runs    RunStorageConfig `mapstructure:"runs"`
	Archive ArchiveConfig    `mapstructure:"archive"`
}

// BarStorageConfig holds the historical bar store settings.
type BarStorageConfig struct {
	Path string `mapstructure:"path"` // SQLite database file; empty means in-memory
}

// RunStorageConfig holds the run record store settings.
type RunStorageConfig struct {
	MaxRuns int `mapstructure:"max_runs"`
}

// ArchiveConfig holds cold-storage settings for run records.
type ArchiveConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Type    string   `mapstructure:"type"` // "localfs" or "s3"
	Path    string   `mapstructure:"path"` // For localfs
	S3      S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Engine: EngineConfig{
			WarmupBars:         50,
			BankruptcyFraction: 0.5,
			DefaultTimeframe:   "15m",
		},
		WalkForward: WalkForwardConfig{
			DefaultSplits: 4,
		},
		MonteCarlo: MonteCarloConfig{
			DefaultIterations: 500,
			EntryProbability:  0.05,
		},
		Storage: StorageConfig{
			Runs: RunStorageConfig{
				MaxRuns: 1000,
			},
			Archive: ArchiveConfig{
				Type: "localfs",
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Engine.WarmupBars < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("warmup_bars cannot be negative, got %d", c.Engine.WarmupBars))
	}
	if c.Engine.BankruptcyFraction <= 0 || c.Engine.BankruptcyFraction >= 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("bankruptcy_fraction must be between 0 and 1 exclusive, got %f", c.Engine.BankruptcyFraction))
	}
	if tf := core.Timeframe(c.Engine.DefaultTimeframe); !tf.IsValid() {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown default_timeframe %q", c.Engine.DefaultTimeframe))
	}

	if c.WalkForward.DefaultSplits < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("default_splits must be at least 1, got %d", c.WalkForward.DefaultSplits))
	}

	switch c.MonteCarlo.DefaultIterations {
	case 100, 500, 1000:
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("default_iterations must be 100, 500 or 1000, got %d", c.MonteCarlo.DefaultIterations))
	}
	if c.MonteCarlo.EntryProbability <= 0 || c.MonteCarlo.EntryProbability >= 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("entry_probability must be between 0 and 1 exclusive, got %f", c.MonteCarlo.EntryProbability))
	}

	if c.Storage.Runs.MaxRuns < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("max_runs must be at least 1, got %d", c.Storage.Runs.MaxRuns))
	}

	if c.Storage.Archive.Enabled {
		switch c.Storage.Archive.Type {
		case "localfs":
			if c.Storage.Archive.Path == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("archive path required when type is localfs"))
			}
		case "s3":
			if c.Storage.Archive.S3.Bucket == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("s3 bucket required when type is s3"))
			}
		default:
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("unknown archive type %q", c.Storage.Archive.Type))
		}
	}

	return nil
}
