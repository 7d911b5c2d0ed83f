package core

import "time"

// Timeframe identifies a bar interval.
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe30m Timeframe = "30m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

// IntervalMinutes returns the bar interval in minutes, or 0 for unknown timeframes.
func (tf Timeframe) IntervalMinutes() int {
	switch tf {
	case Timeframe1m:
		return 1
	case Timeframe5m:
		return 5
	case Timeframe15m:
		return 15
	case Timeframe30m:
		return 30
	case Timeframe1h:
		return 60
	case Timeframe4h:
		return 240
	case Timeframe1d:
		return 1440
	default:
		return 0
	}
}

// IsValid reports whether the timeframe is one of the supported intervals.
func (tf Timeframe) IsValid() bool {
	return tf.IntervalMinutes() > 0
}

// Bar represents a single OHLCV candlestick.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Side represents a trade direction.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ExitReason explains why a position was closed.
type ExitReason string

const (
	ExitTakeProfit ExitReason = "take_profit"
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTimeout    ExitReason = "timeout"
	ExitSignal     ExitReason = "signal"
)

// Trade is a single closed simulated trade. Created by the backtest engine
// (or the Monte Carlo simulator) when a position closes; immutable afterward.
type Trade struct {
	ID         string
	EntryTime  time.Time
	EntryPrice float64
	ExitTime   time.Time
	ExitPrice  float64
	Side       Side
	LotSize    float64
	PnL        float64
	PnLPercent float64
	ExitReason ExitReason
}

// IsWin reports whether the trade was profitable.
func (t Trade) IsWin() bool {
	return t.PnL > 0
}

// ConfidenceLevel grades how much statistical weight a summary carries.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// Summary aggregates a trade list into performance statistics.
// Derived strictly from the trades and initial capital; never mutated after
// creation except to attach StoppedReason/FinalCapital on a bankruptcy halt.
type Summary struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64 // fraction in [0,1], not a percentage

	NetProfit     float64
	NetProfitRate float64
	GrossProfit   float64
	GrossLoss     float64 // positive magnitude

	MaxDrawdown     float64
	MaxDrawdownRate float64

	// ProfitFactor is grossProfit/grossLoss: 0 when there is neither profit
	// nor loss, +Inf when losses are zero but profit is positive.
	ProfitFactor float64

	AverageWin      float64 // absolute per-trade amount
	AverageLoss     float64 // positive magnitude
	RiskRewardRatio float64

	MaxConsecutiveWins   int
	MaxConsecutiveLosses int

	// Statistical metrics, computed only when TotalTrades >= 2. NaN marks
	// the undefined cases (zero-variance Sharpe, no-loss Sortino).
	MeanReturn        float64
	StdDevReturn      float64
	DownsideStdDev    float64
	SharpeRatio       float64
	SortinoRatio      float64
	TStatistic        float64
	PValue            float64
	IsStatSignificant bool

	ConfidenceLevel ConfidenceLevel

	// Set only when the bankruptcy stop halted the run.
	StoppedReason string
	FinalCapital  float64
}

// RunStatus is the lifecycle state of a backtest run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Stage identifies which pass of the two-stage scan produced a result.
type Stage int

const (
	Stage1 Stage = 1 // coarse timeframe fast scan
	Stage2 Stage = 2 // 1-minute refinement
)

// Period is a half-open time range [Start, End).
type Period struct {
	Start time.Time
	End   time.Time
}

// BacktestRun is the record of one backtest execution. The run record itself
// is the error channel: failures populate ErrorMessage and Status, they are
// never raised past the run boundary.
type BacktestRun struct {
	ID        string
	Symbol    string
	Period    Period
	Timeframe Timeframe
	Stage     Stage
	Status    RunStatus
	Trades    []Trade
	Summary   Summary

	ErrorMessage string

	StartedAt  time.Time
	FinishedAt time.Time
}

// WalkForwardSplit is one in-sample/out-of-sample partition result.
// Produced only by the walk-forward validator; read-only afterward.
type WalkForwardSplit struct {
	SplitNumber       int
	InSamplePeriod    Period
	OutOfSamplePeriod Period
	InSampleStats     Summary
	OutOfSampleStats  Summary
	WinRateDiff       float64 // inSampleWinRate - outOfSampleWinRate
}

// MonteCarloRun is one random-entry simulation data point.
type MonteCarloRun struct {
	ID              int
	WinRate         float64
	ProfitFactor    float64 // capped at 10 in place of +Inf
	MaxDrawdownRate float64
	NetProfitRate   float64
	TotalTrades     int
}
