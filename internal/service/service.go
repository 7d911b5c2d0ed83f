// Package service wires the backtest engine, the validators and storage into
// the operations exposed by the CLI and the HTTP API.
package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/quantlab/verdict/internal/analyze"
	"github.com/quantlab/verdict/internal/backtest"
	"github.com/quantlab/verdict/internal/core"
	"github.com/quantlab/verdict/internal/metrics"
	"github.com/quantlab/verdict/internal/storage/archive"
	"github.com/quantlab/verdict/internal/storage/run"
	"github.com/quantlab/verdict/internal/strategy"
	"github.com/quantlab/verdict/internal/validate/montecarlo"
	"github.com/quantlab/verdict/internal/validate/walkforward"
	"go.uber.org/zap"
)

// Options holds the service dependencies.
type Options struct {
	Provider backtest.BarProvider
	Engine   *backtest.Engine
	Runs     run.Store
	Archiver *archive.RunArchiver // nil disables archiving
	Metrics  *metrics.Registry    // nil disables recording
	Logger   *zap.Logger
}

// Service is the application orchestrator.
type Service struct {
	provider   backtest.BarProvider
	engine     *backtest.Engine
	walkFwd    *walkforward.Validator
	monteCarlo *montecarlo.Validator
	analyzer   *analyze.Analyzer
	runs       run.Store
	archiver   *archive.RunArchiver
	metrics    *metrics.Registry
	logger     *zap.Logger
}

// New creates a service. The validators and the analyzer share the engine
// and bar provider passed in.
func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		provider:   opts.Provider,
		engine:     opts.Engine,
		walkFwd:    walkforward.New(opts.Provider, opts.Engine, logger),
		monteCarlo: montecarlo.New(opts.Provider, logger),
		analyzer:   analyze.New(logger),
		runs:       opts.Runs,
		archiver:   opts.Archiver,
		metrics:    opts.Metrics,
		logger:     logger,
	}
}

// RunBacktest executes a backtest and persists its run record. The record is
// saved whether the run completed or failed; only storage problems surface as
// Go errors.
func (s *Service) RunBacktest(ctx context.Context, strat *strategy.Strategy, req backtest.Request) (*core.BacktestRun, error) {
	started := time.Now()
	result := s.engine.Run(ctx, strat, req)

	if s.metrics != nil {
		s.metrics.RecordRun(string(result.Status), strconv.Itoa(int(result.Stage)),
			time.Since(started).Seconds(), len(result.Trades))
		if result.Summary.StoppedReason == "bankruptcy" {
			s.metrics.RecordBankruptcyStop()
		}
	}

	if err := s.runs.Save(ctx, result); err != nil {
		return nil, fmt.Errorf("saving run: %w", err)
	}

	// Archiving is best effort cold storage; a failure does not fail the run.
	if s.archiver != nil && result.Status == core.RunStatusCompleted {
		if err := s.archiver.ArchiveRun(ctx, result); err != nil {
			s.logger.Warn("archiving run failed",
				zap.String("run_id", result.ID),
				zap.Error(err),
			)
		}
	}

	return result, nil
}

// GetRun retrieves a stored run by ID.
func (s *Service) GetRun(ctx context.Context, id string) (*core.BacktestRun, error) {
	return s.runs.GetByID(ctx, id)
}

// ListRuns retrieves stored runs matching the filter.
func (s *Service) ListRuns(ctx context.Context, filter run.ListFilter) ([]core.BacktestRun, error) {
	return s.runs.List(ctx, filter)
}

// RunWalkForward validates a strategy across sequential in-sample and
// out-of-sample splits.
func (s *Service) RunWalkForward(ctx context.Context, strat *strategy.Strategy, req walkforward.Request) (*walkforward.Result, error) {
	started := time.Now()
	result, err := s.walkFwd.Run(ctx, strat, req)

	if s.metrics != nil {
		s.metrics.RecordValidation("walkforward", validationStatus(err), time.Since(started).Seconds())
		if err == nil && result.OverfitWarning {
			s.metrics.RecordOverfitWarning()
		}
	}

	return result, err
}

// RunMonteCarlo compares a strategy summary against random-entry simulations
// over the same range.
func (s *Service) RunMonteCarlo(ctx context.Context, exits strategy.ExitSettings, req montecarlo.Request, actual *core.Summary) (*montecarlo.Result, error) {
	started := time.Now()
	result, err := s.monteCarlo.Run(ctx, exits, req, actual)

	if s.metrics != nil {
		s.metrics.RecordValidation("montecarlo", validationStatus(err), time.Since(started).Seconds())
		if err == nil {
			s.metrics.RecordMonteCarloSims(result.Iterations)
		}
	}

	return result, err
}

// AnalyzeFilters ranks indicator filters over a stored run's trades.
func (s *Service) AnalyzeFilters(ctx context.Context, runID string) (*analyze.Analysis, error) {
	record, bars, err := s.loadRunWithBars(ctx, runID)
	if err != nil {
		return nil, err
	}

	analysis, err := s.analyzer.Analyze(record.Trades, bars)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordFilterAnalysis()
	}
	return analysis, nil
}

// VerifyFilters replays a stored run's trades through the given filter
// predicates and reports the before/after statistics.
func (s *Service) VerifyFilters(ctx context.Context, runID string, filters []analyze.FilterPredicate, initialCapital float64) (*analyze.Verification, error) {
	record, bars, err := s.loadRunWithBars(ctx, runID)
	if err != nil {
		return nil, err
	}
	return s.analyzer.Verify(record.Trades, bars, filters, initialCapital)
}

func (s *Service) loadRunWithBars(ctx context.Context, runID string) (*core.BacktestRun, []core.Bar, error) {
	record, err := s.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, nil, err
	}

	bars, err := s.provider.Fetch(ctx, record.Symbol, record.Timeframe, record.Period.Start, record.Period.End)
	if err != nil {
		return nil, nil, core.WrapError(core.ErrDataUnavailable, err)
	}
	return record, bars, nil
}

func validationStatus(err error) string {
	if err != nil {
		return "failed"
	}
	return "completed"
}
