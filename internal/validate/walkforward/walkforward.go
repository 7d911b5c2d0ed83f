// Package walkforward detects overfitting by comparing in-sample and
// out-of-sample performance across sequential partitions of the historical
// range.
package walkforward

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/quantlab/verdict/internal/backtest"
	"github.com/quantlab/verdict/internal/core"
	"github.com/quantlab/verdict/internal/strategy"
	"go.uber.org/zap"
)

const (
	// minRecordsPerSplit is 30 in-sample plus 15 out-of-sample records.
	minRecordsPerSplit = 45
	maxSplits          = 3
	inSampleRatio      = 0.7

	// Calendar fallback minimums, used when no timestamp data exists.
	minInSampleDays    = 3
	minOutOfSampleDays = 2

	// A winRateDiff of 0.15 (15 points) maps to the maximum overfit score.
	overfitNormalizer = 0.15
	warningThreshold  = 0.4
)

// Request describes one walk-forward validation.
type Request struct {
	Symbol         string
	Period         core.Period
	Timeframe      core.Timeframe
	SplitCount     int // requested; the effective count may be lower
	InitialCapital float64
	LotSize        float64
	Leverage       float64
}

// Result is the aggregated outcome across all splits.
type Result struct {
	SplitCount     int
	Splits         []core.WalkForwardSplit
	OverfitScore   float64
	OverfitWarning bool
	Summary        core.Summary // full-period baseline, Stage 1 only
}

// Validator partitions a range and runs the backtest engine per half-split.
type Validator struct {
	provider backtest.BarProvider
	engine   *backtest.Engine
	logger   *zap.Logger
}

// New creates a walk-forward validator sharing the given engine.
func New(provider backtest.BarProvider, engine *backtest.Engine, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{provider: provider, engine: engine, logger: logger}
}

// splitPeriods is one in-sample/out-of-sample pair of sub-ranges.
type splitPeriods struct {
	inSample    core.Period
	outOfSample core.Period
}

// Run validates the strategy across sequential splits. Unlike a single
// backtest, validation fails hard: insufficient data or a failed sub-run
// returns an error instead of a failed record, because a partial split set
// would corrupt the overfit-score denominator.
func (v *Validator) Run(ctx context.Context, strat *strategy.Strategy, req Request) (*Result, error) {
	if err := strat.Validate(); err != nil {
		return nil, err
	}

	bars, err := v.provider.Fetch(ctx, req.Symbol, req.Timeframe, req.Period.Start, req.Period.End)
	if err != nil {
		return nil, core.WrapError(core.ErrDataUnavailable, err)
	}

	// Splitting on actual timestamps skips non-trading periods; the calendar
	// fallback only applies when there is no timestamp data at all.
	var periods []splitPeriods
	if len(bars) > 0 {
		periods = timestampSplits(bars, req.SplitCount, req.Period.End)
	} else {
		periods = calendarSplits(req.Period, req.SplitCount)
	}
	if len(periods) == 0 {
		return nil, core.ErrInsufficientData
	}

	splits := make([]core.WalkForwardSplit, 0, len(periods))
	for i, p := range periods {
		isRun, err := v.runHalf(ctx, strat, req, p.inSample)
		if err != nil {
			return nil, fmt.Errorf("split %d in-sample: %w", i+1, err)
		}
		oosRun, err := v.runHalf(ctx, strat, req, p.outOfSample)
		if err != nil {
			return nil, fmt.Errorf("split %d out-of-sample: %w", i+1, err)
		}

		splits = append(splits, core.WalkForwardSplit{
			SplitNumber:       i + 1,
			InSamplePeriod:    p.inSample,
			OutOfSamplePeriod: p.outOfSample,
			InSampleStats:     isRun.Summary,
			OutOfSampleStats:  oosRun.Summary,
			WinRateDiff:       isRun.Summary.WinRate - oosRun.Summary.WinRate,
		})
	}

	baseline, err := v.runHalf(ctx, strat, req, req.Period)
	if err != nil {
		return nil, fmt.Errorf("full-period baseline: %w", err)
	}

	score := overfitScore(splits)
	result := &Result{
		SplitCount:     len(splits),
		Splits:         splits,
		OverfitScore:   score,
		OverfitWarning: score >= warningThreshold,
		Summary:        baseline.Summary,
	}

	v.logger.Info("walk-forward completed",
		zap.String("symbol", req.Symbol),
		zap.Int("splits", result.SplitCount),
		zap.Float64("overfit_score", score),
		zap.Bool("warning", result.OverfitWarning),
	)
	return result, nil
}

// runHalf executes a Stage 1 only backtest over one sub-range. A failed run
// record becomes a hard error here.
func (v *Validator) runHalf(ctx context.Context, strat *strategy.Strategy, req Request, period core.Period) (*core.BacktestRun, error) {
	run := v.engine.Run(ctx, strat, backtest.Request{
		Symbol:          req.Symbol,
		Period:          period,
		Stage1Timeframe: req.Timeframe,
		RunStage2:       false,
		InitialCapital:  req.InitialCapital,
		LotSize:         req.LotSize,
		Leverage:        req.Leverage,
	})
	if run.Status == core.RunStatusFailed {
		return nil, fmt.Errorf("backtest failed: %s", run.ErrorMessage)
	}
	return run, nil
}

// timestampSplits partitions the actual bar timestamps, which skips
// non-trading periods automatically. Returns nil when the data cannot
// support a single split.
func timestampSplits(bars []core.Bar, requested int, rangeEnd time.Time) []splitPeriods {
	if len(bars) == 0 || requested <= 0 {
		return nil
	}

	effective := requested
	if byRecords := len(bars) / minRecordsPerSplit; byRecords < effective {
		effective = byRecords
	}
	if effective > maxSplits {
		effective = maxSplits
	}
	if effective == 0 {
		return nil
	}

	perSplit := len(bars) / effective
	periods := make([]splitPeriods, 0, effective)
	for i := 0; i < effective; i++ {
		start := i * perSplit
		end := start + perSplit
		if i == effective-1 {
			end = len(bars) // last split takes the remainder
		}

		isCount := int(float64(end-start) * inSampleRatio)
		oosStart := bars[start+isCount].Time

		splitEnd := rangeEnd
		if end < len(bars) {
			splitEnd = bars[end].Time
		}

		periods = append(periods, splitPeriods{
			inSample:    core.Period{Start: bars[start].Time, End: oosStart},
			outOfSample: core.Period{Start: oosStart, End: splitEnd},
		})
	}
	return periods
}

// calendarSplits divides the requested range by calendar days at the same
// 70/30 ratio. Only used when no timestamp data exists.
func calendarSplits(period core.Period, requested int) []splitPeriods {
	if requested <= 0 {
		return nil
	}

	totalDays := int(period.End.Sub(period.Start).Hours() / 24)
	minDays := minInSampleDays + minOutOfSampleDays

	effective := requested
	if byDays := totalDays / minDays; byDays < effective {
		effective = byDays
	}
	if effective > maxSplits {
		effective = maxSplits
	}
	if effective <= 0 {
		return nil
	}

	perSplit := totalDays / effective
	periods := make([]splitPeriods, 0, effective)
	for i := 0; i < effective; i++ {
		startDay := i * perSplit
		endDay := startDay + perSplit
		if i == effective-1 {
			endDay = totalDays
		}

		isDays := int(float64(endDay-startDay) * inSampleRatio)
		if isDays < minInSampleDays {
			isDays = minInSampleDays
		}
		if endDay-startDay-isDays < minOutOfSampleDays {
			continue
		}

		start := period.Start.AddDate(0, 0, startDay)
		mid := period.Start.AddDate(0, 0, startDay+isDays)
		end := period.Start.AddDate(0, 0, endDay)

		periods = append(periods, splitPeriods{
			inSample:    core.Period{Start: start, End: mid},
			outOfSample: core.Period{Start: mid, End: end},
		})
	}
	return periods
}

// overfitScore averages positive win-rate divergence over splits that traded
// on both sides, normalized to [0,1]. No usable split means no evidence of
// overfitting, which scores 0.
func overfitScore(splits []core.WalkForwardSplit) float64 {
	var sum float64
	var usable int
	for _, s := range splits {
		if s.InSampleStats.TotalTrades == 0 || s.OutOfSampleStats.TotalTrades == 0 {
			continue
		}
		sum += math.Max(0, s.WinRateDiff)
		usable++
	}
	if usable == 0 {
		return 0
	}

	score := sum / float64(usable) / overfitNormalizer
	return math.Min(1, math.Max(0, score))
}
