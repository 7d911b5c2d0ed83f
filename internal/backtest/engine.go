package backtest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/quantlab/verdict/internal/core"
	"github.com/quantlab/verdict/internal/strategy"
	"go.uber.org/zap"
)

// BarProvider is the external historical bar source. The engine fetches once
// before scanning; no I/O happens inside the bar loop.
type BarProvider interface {
	Fetch(ctx context.Context, symbol string, timeframe core.Timeframe, start, end time.Time) ([]core.Bar, error)
}

// Config holds the engine's scan parameters.
type Config struct {
	WarmupBars         int     // bars skipped for indicator warm-up
	BankruptcyFraction float64 // halt when capital falls to this fraction of initial
}

// DefaultConfig returns the standard scan parameters.
func DefaultConfig() Config {
	return Config{
		WarmupBars:         50,
		BankruptcyFraction: 0.5,
	}
}

// Request describes one backtest run.
type Request struct {
	Symbol          string
	Period          core.Period
	Stage1Timeframe core.Timeframe
	RunStage2       bool
	InitialCapital  float64
	LotSize         float64
	Leverage        float64
}

// Engine replays a strategy bar-by-bar over historical data.
type Engine struct {
	provider BarProvider
	logger   *zap.Logger
	cfg      Config
}

// New creates an engine with default scan parameters.
func New(provider BarProvider, logger *zap.Logger) *Engine {
	return NewWithConfig(provider, logger, DefaultConfig())
}

// NewWithConfig creates an engine with explicit scan parameters.
func NewWithConfig(provider BarProvider, logger *zap.Logger, cfg Config) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WarmupBars <= 0 {
		cfg.WarmupBars = 50
	}
	if cfg.BankruptcyFraction <= 0 {
		cfg.BankruptcyFraction = 0.5
	}
	return &Engine{provider: provider, logger: logger, cfg: cfg}
}

// Run executes the two-stage backtest. The returned run record is the error
// channel: strategy and data failures produce status=failed with a message
// and a zeroed summary, they are never returned as Go errors. Stage 1 runs
// on the requested coarse timeframe; when it produces at least one trade and
// refinement was requested, Stage 2 re-runs the identical algorithm on
// 1-minute bars and replaces the Stage 1 result.
func (e *Engine) Run(ctx context.Context, strat *strategy.Strategy, req Request) *core.BacktestRun {
	run := &core.BacktestRun{
		ID:        uuid.NewString(),
		Symbol:    req.Symbol,
		Period:    req.Period,
		Timeframe: req.Stage1Timeframe,
		Stage:     core.Stage1,
		Status:    core.RunStatusRunning,
		StartedAt: time.Now(),
	}

	if err := strat.Validate(); err != nil {
		return e.fail(run, err)
	}

	if err := e.runStage(ctx, run, strat, req, req.Stage1Timeframe, core.Stage1); err != nil {
		return e.fail(run, err)
	}

	if req.RunStage2 && len(run.Trades) >= 1 {
		// Stage 1 is a fast-reject filter, not a merge input: the 1-minute
		// pass replaces its result entirely.
		if err := e.runStage(ctx, run, strat, req, core.Timeframe1m, core.Stage2); err != nil {
			return e.fail(run, err)
		}
	}

	run.Status = core.RunStatusCompleted
	run.FinishedAt = time.Now()

	e.logger.Info("backtest completed",
		zap.String("run_id", run.ID),
		zap.String("symbol", req.Symbol),
		zap.Int("stage", int(run.Stage)),
		zap.Int("trades", len(run.Trades)),
		zap.Float64("net_profit", run.Summary.NetProfit),
	)
	return run
}

func (e *Engine) runStage(ctx context.Context, run *core.BacktestRun, strat *strategy.Strategy, req Request, timeframe core.Timeframe, stage core.Stage) error {
	bars, err := e.provider.Fetch(ctx, req.Symbol, timeframe, req.Period.Start, req.Period.End)
	if err != nil {
		return core.WrapError(core.ErrDataUnavailable, err)
	}
	if len(bars) == 0 {
		return core.ErrDataUnavailable
	}

	trades, stop, err := e.scan(ctx, strat, bars, timeframe, req)
	if err != nil {
		return err
	}

	summary := CalculateSummary(trades, req.InitialCapital)
	if stop.bankrupt {
		summary.StoppedReason = "bankruptcy"
		summary.FinalCapital = stop.finalCapital
	}

	run.Timeframe = timeframe
	run.Stage = stage
	run.Trades = trades
	run.Summary = summary
	return nil
}

// scanStop captures why a scan ended early.
type scanStop struct {
	bankrupt     bool
	finalCapital float64
}

// scanState is the per-run finite state threaded through the bar loop.
// Each simulation owns its own copy; nothing is shared across runs.
type scanState struct {
	inPosition     bool
	entryPrice     float64
	entryTime      time.Time
	entryIndex     int
	currentCapital float64
}

func (e *Engine) scan(ctx context.Context, strat *strategy.Strategy, bars []core.Bar, timeframe core.Timeframe, req Request) ([]core.Trade, scanStop, error) {
	evalCtx := strategy.NewContext(bars)
	st := scanState{currentCapital: req.InitialCapital}
	bankruptcyFloor := req.InitialCapital * e.cfg.BankruptcyFraction

	var trades []core.Trade

	for i := e.cfg.WarmupBars; i < len(bars); i++ {
		select {
		case <-ctx.Done():
			return nil, scanStop{}, ctx.Err()
		default:
		}

		if st.currentCapital <= bankruptcyFloor {
			// Bankruptcy stop: the run still completes, retaining the trades
			// closed so far.
			return trades, scanStop{bankrupt: true, finalCapital: st.currentCapital}, nil
		}

		if st.inPosition {
			decision := strategy.CheckExit(bars[i], st.entryPrice, strat.Side, strat.Exit, i-st.entryIndex, timeframe)
			if decision.ShouldExit {
				trade := e.closeTrade(&st, strat, bars[i].Time, decision, req)
				trades = append(trades, trade)
			}
			continue
		}

		// Entry fills at the next bar's open, never at the signal bar's price.
		if evalCtx.Evaluate(strat.Entry, i) && i+1 < len(bars) {
			st.inPosition = true
			st.entryPrice = bars[i+1].Open
			st.entryTime = bars[i+1].Time
			st.entryIndex = i + 1
		}
	}

	// A position still open at the end of the range closes at the final
	// bar's close as a signal exit.
	if st.inPosition {
		last := bars[len(bars)-1]
		decision := strategy.ExitDecision{ShouldExit: true, ExitPrice: last.Close, Reason: core.ExitSignal}
		trades = append(trades, e.closeTrade(&st, strat, last.Time, decision, req))
	}

	return trades, scanStop{}, nil
}

func (e *Engine) closeTrade(st *scanState, strat *strategy.Strategy, exitTime time.Time, decision strategy.ExitDecision, req Request) core.Trade {
	pnl := CalculatePnL(strat.Side, st.entryPrice, decision.ExitPrice, req.LotSize)

	var pnlPercent float64
	if req.Leverage > 0 && st.entryPrice > 0 && req.LotSize > 0 {
		requiredMargin := req.LotSize * st.entryPrice / req.Leverage
		pnlPercent = pnl / requiredMargin * 100
	}

	trade := core.Trade{
		ID:         uuid.NewString(),
		EntryTime:  st.entryTime,
		EntryPrice: st.entryPrice,
		ExitTime:   exitTime,
		ExitPrice:  decision.ExitPrice,
		Side:       strat.Side,
		LotSize:    req.LotSize,
		PnL:        pnl,
		PnLPercent: pnlPercent,
		ExitReason: decision.Reason,
	}

	st.currentCapital += pnl
	st.inPosition = false
	st.entryPrice = 0
	st.entryTime = time.Time{}
	st.entryIndex = 0

	return trade
}

func (e *Engine) fail(run *core.BacktestRun, err error) *core.BacktestRun {
	run.Status = core.RunStatusFailed
	run.ErrorMessage = err.Error()
	run.Trades = nil
	run.Summary = core.Summary{ConfidenceLevel: core.ConfidenceLow}
	run.FinishedAt = time.Now()

	e.logger.Warn("backtest failed",
		zap.String("run_id", run.ID),
		zap.String("symbol", run.Symbol),
		zap.Error(err),
	)
	return run
}
