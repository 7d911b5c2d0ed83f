package main

import (
	"fmt"
	"math"
	"time"

	"github.com/quantlab/verdict/internal/backtest"
	"github.com/quantlab/verdict/internal/config"
	"github.com/quantlab/verdict/internal/core"
	"github.com/quantlab/verdict/internal/metrics"
	"github.com/quantlab/verdict/internal/service"
	"github.com/quantlab/verdict/internal/storage/archive"
	"github.com/quantlab/verdict/internal/storage/bars"
	"github.com/quantlab/verdict/internal/storage/run"
	"go.uber.org/zap"
)

// loadConfig reads the config file named by --config, falling back to
// defaults when none was given.
func loadConfig(log *zap.Logger) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.Defaults()
		log.Debug("no config file specified, using defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// appContext bundles the wired service and its owned resources.
type appContext struct {
	svc      *service.Service
	barStore bars.Store
	metrics  *metrics.Registry
	closers  []func() error
}

func (a *appContext) Close() {
	for _, c := range a.closers {
		c()
	}
}

// buildApp wires the storage, engine and service from the configuration.
func buildApp(cfg *config.Config, log *zap.Logger) (*appContext, error) {
	app := &appContext{}

	if cfg.Storage.Bars.Path != "" {
		store, err := bars.NewSQLiteStore(cfg.Storage.Bars.Path)
		if err != nil {
			return nil, fmt.Errorf("opening bar store: %w", err)
		}
		app.barStore = store
		app.closers = append(app.closers, store.Close)
	} else {
		app.barStore = bars.NewMemoryStore()
	}

	var archiver *archive.RunArchiver
	if cfg.Storage.Archive.Enabled {
		var storage archive.Storage
		var err error
		switch cfg.Storage.Archive.Type {
		case "s3":
			storage, err = archive.NewS3(archive.S3Config{
				Bucket:    cfg.Storage.Archive.S3.Bucket,
				Endpoint:  cfg.Storage.Archive.S3.Endpoint,
				Region:    cfg.Storage.Archive.S3.Region,
				AccessKey: cfg.Storage.Archive.S3.AccessKey,
				SecretKey: cfg.Storage.Archive.S3.SecretKey,
				Prefix:    cfg.Storage.Archive.S3.Prefix,
			})
		default:
			storage, err = archive.NewLocalFS(cfg.Storage.Archive.Path)
		}
		if err != nil {
			return nil, fmt.Errorf("creating archive storage: %w", err)
		}
		archiver = archive.NewRunArchiver(storage)
	}

	if cfg.Metrics.Enabled {
		app.metrics = metrics.NewRegistry()
	}

	engine := backtest.NewWithConfig(app.barStore, log, backtest.Config{
		WarmupBars:         cfg.Engine.WarmupBars,
		BankruptcyFraction: cfg.Engine.BankruptcyFraction,
	})

	app.svc = service.New(service.Options{
		Provider: app.barStore,
		Engine:   engine,
		Runs:     run.NewMemoryStore(cfg.Storage.Runs.MaxRuns),
		Archiver: archiver,
		Metrics:  app.metrics,
		Logger:   log,
	})

	return app, nil
}

func parsePeriod(from, to string) (core.Period, error) {
	start, err := time.Parse("2006-01-02", from)
	if err != nil {
		return core.Period{}, fmt.Errorf("invalid from date format (expected YYYY-MM-DD): %w", err)
	}
	end, err := time.Parse("2006-01-02", to)
	if err != nil {
		return core.Period{}, fmt.Errorf("invalid to date format (expected YYYY-MM-DD): %w", err)
	}
	if !end.After(start) {
		return core.Period{}, fmt.Errorf("end date must be after start date")
	}
	return core.Period{Start: start, End: end}, nil
}

func printSummary(s core.Summary) {
	fmt.Printf("Trades:        %d (%d won / %d lost)\n", s.TotalTrades, s.WinningTrades, s.LosingTrades)
	fmt.Printf("Win rate:      %.1f%%\n", s.WinRate*100)
	fmt.Printf("Net profit:    %.2f (%.2f%%)\n", s.NetProfit, s.NetProfitRate)
	fmt.Printf("Profit factor: %s\n", formatFactor(s.ProfitFactor))
	fmt.Printf("Max drawdown:  %.2f (%.2f%%)\n", s.MaxDrawdown, s.MaxDrawdownRate)
	if s.TotalTrades >= 2 {
		fmt.Printf("Sharpe:        %s  Sortino: %s\n", formatFactor(s.SharpeRatio), formatFactor(s.SortinoRatio))
		fmt.Printf("Significant:   %v (p=%.4f)\n", s.IsStatSignificant, s.PValue)
	}
	fmt.Printf("Confidence:    %s\n", s.ConfidenceLevel)
	if s.StoppedReason != "" {
		fmt.Printf("Stopped:       %s (capital %.2f)\n", s.StoppedReason, s.FinalCapital)
	}
}

func formatFactor(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "inf"
	case math.IsNaN(v):
		return "n/a"
	default:
		return fmt.Sprintf("%.2f", v)
	}
}
