package strategy

import (
	"github.com/quantlab/verdict/internal/core"
)

// Unit says how a take-profit/stop-loss distance is expressed.
type Unit string

const (
	UnitPercent Unit = "percent"
	UnitPips    Unit = "pips"
)

// PriceTarget is a take-profit or stop-loss distance from the entry price.
type PriceTarget struct {
	Value float64
	Unit  Unit
}

// ExitSettings are a strategy's exit rules.
type ExitSettings struct {
	TakeProfit        PriceTarget
	StopLoss          PriceTarget
	MaxHoldingMinutes int // 0 disables the timeout
}

// Validate checks the exit rule invariants.
func (e ExitSettings) Validate() error {
	if e.TakeProfit.Value <= 0 || e.StopLoss.Value <= 0 {
		return core.ErrInvalidStrategyConfig
	}
	return nil
}

// ExitDecision is the outcome of checking one bar against the exit rules.
type ExitDecision struct {
	ShouldExit bool
	ExitPrice  float64
	Reason     core.ExitReason
}

// PipSize returns the pip value for a quote price. Prices above 50 are
// treated as JPY-quoted (pip = 0.01); everything else uses 0.0001. The
// asymmetry matches FX domain convention and must be preserved.
func PipSize(entryPrice float64) float64 {
	if entryPrice > 50 {
		return 0.01
	}
	return 0.0001
}

func (p PriceTarget) distance(entryPrice float64) float64 {
	if p.Unit == UnitPips {
		return p.Value * PipSize(entryPrice)
	}
	return entryPrice * p.Value / 100
}

// CheckExit decides whether an open position exits on the given bar.
//
// Take-profit is checked before stop-loss when both could trigger within
// the same bar: an optimistic fill-order simplification, kept deliberately
// rather than modeling intra-bar ordering.
func CheckExit(bar core.Bar, entryPrice float64, side core.Side, settings ExitSettings, barsHeld int, timeframe core.Timeframe) ExitDecision {
	tpDist := settings.TakeProfit.distance(entryPrice)
	slDist := settings.StopLoss.distance(entryPrice)

	var tpPrice, slPrice float64
	if side == core.SideBuy {
		tpPrice = entryPrice + tpDist
		slPrice = entryPrice - slDist
	} else {
		tpPrice = entryPrice - tpDist
		slPrice = entryPrice + slDist
	}

	if side == core.SideBuy {
		if bar.High >= tpPrice {
			return ExitDecision{ShouldExit: true, ExitPrice: tpPrice, Reason: core.ExitTakeProfit}
		}
		if bar.Low <= slPrice {
			return ExitDecision{ShouldExit: true, ExitPrice: slPrice, Reason: core.ExitStopLoss}
		}
	} else {
		if bar.Low <= tpPrice {
			return ExitDecision{ShouldExit: true, ExitPrice: tpPrice, Reason: core.ExitTakeProfit}
		}
		if bar.High >= slPrice {
			return ExitDecision{ShouldExit: true, ExitPrice: slPrice, Reason: core.ExitStopLoss}
		}
	}

	if settings.MaxHoldingMinutes > 0 && barsHeld*timeframe.IntervalMinutes() >= settings.MaxHoldingMinutes {
		return ExitDecision{ShouldExit: true, ExitPrice: bar.Close, Reason: core.ExitTimeout}
	}

	return ExitDecision{}
}
