package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/quantlab/verdict/internal/core"
)

func TestLoad_FromFile(t *testing.T) {
	content := []byte(`
engine:
  warmup_bars: 30
  bankruptcy_fraction: 0.4
  default_timeframe: "1h"

storage:
  bars:
    path: "/tmp/verdict/bars.db"
  archive:
    enabled: true
    type: localfs
    path: "/tmp/verdict/archive"
`)

	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, content, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Engine.WarmupBars != 30 {
		t.Errorf("expected warmup_bars 30, got %d", cfg.Engine.WarmupBars)
	}
	if cfg.Engine.DefaultTimeframe != "1h" {
		t.Errorf("expected 1h, got %s", cfg.Engine.DefaultTimeframe)
	}
	if cfg.Storage.Archive.Type != "localfs" {
		t.Errorf("expected localfs, got %s", cfg.Storage.Archive.Type)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("VERDICT_TEST_BUCKET", "results-bucket")

	content := []byte(`
storage:
  archive:
    type: s3
    s3:
      bucket: "${VERDICT_TEST_BUCKET}"
`)

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, content, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Storage.Archive.S3.Bucket != "results-bucket" {
		t.Errorf("expected env expansion, got %q", cfg.Storage.Archive.S3.Bucket)
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Engine.WarmupBars != 50 {
		t.Errorf("expected default warmup_bars 50, got %d", cfg.Engine.WarmupBars)
	}
	if cfg.Engine.BankruptcyFraction != 0.5 {
		t.Errorf("expected default bankruptcy_fraction 0.5, got %f", cfg.Engine.BankruptcyFraction)
	}
	if cfg.MonteCarlo.DefaultIterations != 500 {
		t.Errorf("expected default iterations 500, got %d", cfg.MonteCarlo.DefaultIterations)
	}
	if cfg.WalkForward.DefaultSplits != 4 {
		t.Errorf("expected default splits 4, got %d", cfg.WalkForward.DefaultSplits)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, core.ErrConfigInvalid},
		{"negative warmup", func(c *Config) { c.Engine.WarmupBars = -1 }, core.ErrConfigInvalid},
		{"bankruptcy fraction too high", func(c *Config) { c.Engine.BankruptcyFraction = 1.5 }, core.ErrConfigInvalid},
		{"bad timeframe", func(c *Config) { c.Engine.DefaultTimeframe = "2h" }, core.ErrConfigInvalid},
		{"zero splits", func(c *Config) { c.WalkForward.DefaultSplits = 0 }, core.ErrConfigInvalid},
		{"odd iterations", func(c *Config) { c.MonteCarlo.DefaultIterations = 250 }, core.ErrConfigInvalid},
		{"entry probability too high", func(c *Config) { c.MonteCarlo.EntryProbability = 1 }, core.ErrConfigInvalid},
		{"zero max runs", func(c *Config) { c.Storage.Runs.MaxRuns = 0 }, core.ErrConfigInvalid},
		{
			"archive localfs without path",
			func(c *Config) { c.Storage.Archive.Enabled = true; c.Storage.Archive.Path = "" },
			core.ErrConfigMissing,
		},
		{
			"archive s3 without bucket",
			func(c *Config) { c.Storage.Archive.Enabled = true; c.Storage.Archive.Type = "s3" },
			core.ErrConfigMissing,
		},
		{
			"unknown archive type",
			func(c *Config) { c.Storage.Archive.Enabled = true; c.Storage.Archive.Type = "tape" },
			core.ErrConfigInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}
