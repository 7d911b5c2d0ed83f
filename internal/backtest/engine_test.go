package backtest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/quantlab/verdict/internal/core"
	"github.com/quantlab/verdict/internal/indicator"
	"github.com/quantlab/verdict/internal/strategy"
)

// stubProvider serves canned bars per timeframe and counts fetches.
type stubProvider struct {
	bars    map[core.Timeframe][]core.Bar
	fetches int
}

func (s *stubProvider) Fetch(ctx context.Context, symbol string, timeframe core.Timeframe, start, end time.Time) ([]core.Bar, error) {
	s.fetches++
	return s.bars[timeframe], nil
}

// flatBars builds a bar series where open equals the previous close minus
// nothing: open=high=low=close for simple, deterministic fills.
func flatBars(closes ...float64) []core.Bar {
	bars := make([]core.Bar, len(closes))
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = core.Bar{
			Time:   start.Add(time.Duration(i) * 15 * time.Minute),
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: 100,
		}
	}
	return bars
}

func decliningBars(n int, start float64) []core.Bar {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = start - float64(i)
	}
	return flatBars(closes...)
}

func alwaysTrue() *strategy.Condition {
	return &strategy.Condition{
		Type:      strategy.NodeLeaf,
		Indicator: indicator.Spec{ID: indicator.IDClose},
		Op:        strategy.CmpGT,
		Target:    strategy.Constant(0),
	}
}

func timeoutStrategy() *strategy.Strategy {
	return &strategy.Strategy{
		Name: "timeout-after-one-bar",
		Side: core.SideBuy,
		Entry: alwaysTrue(),
		Exit: strategy.ExitSettings{
			TakeProfit:        strategy.PriceTarget{Value: 1000, Unit: strategy.UnitPercent},
			StopLoss:          strategy.PriceTarget{Value: 1000, Unit: strategy.UnitPercent},
			MaxHoldingMinutes: 15,
		},
	}
}

func testRequest() Request {
	return Request{
		Symbol:          "EURUSD",
		Period:          core.Period{Start: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)},
		Stage1Timeframe: core.Timeframe15m,
		InitialCapital:  100,
		LotSize:         10,
		Leverage:        1,
	}
}

func TestRun_InvalidStrategyFailsBeforeScan(t *testing.T) {
	provider := &stubProvider{}
	engine := New(provider, nil)

	strat := &strategy.Strategy{
		Side:  core.SideBuy,
		Entry: &strategy.Condition{Type: strategy.NodeIfThen}, // no evaluable leaf
		Exit: strategy.ExitSettings{
			TakeProfit: strategy.PriceTarget{Value: 1, Unit: strategy.UnitPercent},
			StopLoss:   strategy.PriceTarget{Value: 1, Unit: strategy.UnitPercent},
		},
	}

	run := engine.Run(context.Background(), strat, testRequest())

	if run.Status != core.RunStatusFailed {
		t.Fatalf("status = %s, want failed", run.Status)
	}
	if !strings.Contains(run.ErrorMessage, "INVALID_STRATEGY_CONFIG") {
		t.Errorf("error message = %q, want invalid strategy config", run.ErrorMessage)
	}
	if provider.fetches != 0 {
		t.Errorf("provider fetched %d times, want 0: validation must precede data access", provider.fetches)
	}
	if len(run.Trades) != 0 {
		t.Error("failed run should carry an empty trade list")
	}
}

func TestRun_NoDataFails(t *testing.T) {
	provider := &stubProvider{bars: map[core.Timeframe][]core.Bar{}}
	engine := New(provider, nil)

	run := engine.Run(context.Background(), timeoutStrategy(), testRequest())

	if run.Status != core.RunStatusFailed {
		t.Fatalf("status = %s, want failed", run.Status)
	}
	if !strings.Contains(run.ErrorMessage, "DATA_UNAVAILABLE") {
		t.Errorf("error message = %q, want data unavailable", run.ErrorMessage)
	}
}

func TestRun_EntryAtNextBarOpen(t *testing.T) {
	// Signal fires on every bar after warm-up; the fill must use the next
	// bar's open, never the signal bar's price.
	bars := flatBars(10, 10, 20, 30, 40, 50, 60, 70)
	for i := range bars {
		bars[i].Open = bars[i].Close + 0.5 // make opens distinguishable
	}
	provider := &stubProvider{bars: map[core.Timeframe][]core.Bar{core.Timeframe15m: bars}}
	engine := NewWithConfig(provider, nil, Config{WarmupBars: 1, BankruptcyFraction: 0.5})

	run := engine.Run(context.Background(), timeoutStrategy(), testRequest())

	if run.Status != core.RunStatusCompleted {
		t.Fatalf("status = %s (%s), want completed", run.Status, run.ErrorMessage)
	}
	if len(run.Trades) == 0 {
		t.Fatal("expected at least one trade")
	}
	first := run.Trades[0]
	if first.EntryPrice != bars[2].Open {
		t.Errorf("entry price = %f, want next bar open %f", first.EntryPrice, bars[2].Open)
	}
	if !first.EntryTime.Equal(bars[2].Time) {
		t.Errorf("entry time = %v, want %v", first.EntryTime, bars[2].Time)
	}
}

func TestRun_NoEntryWithoutNextBar(t *testing.T) {
	// Signal on the final bar has no next open to fill at: no position.
	bars := flatBars(10, 10, 10)
	provider := &stubProvider{bars: map[core.Timeframe][]core.Bar{core.Timeframe15m: bars}}
	engine := NewWithConfig(provider, nil, Config{WarmupBars: 2, BankruptcyFraction: 0.5})

	run := engine.Run(context.Background(), timeoutStrategy(), testRequest())

	if run.Status != core.RunStatusCompleted {
		t.Fatalf("status = %s, want completed", run.Status)
	}
	if len(run.Trades) != 0 {
		t.Errorf("got %d trades, want 0", len(run.Trades))
	}
}

func TestRun_WarmupBarsSkipped(t *testing.T) {
	bars := flatBars(10, 10, 10, 10, 10, 10, 10, 10, 10, 10)
	provider := &stubProvider{bars: map[core.Timeframe][]core.Bar{core.Timeframe15m: bars}}
	engine := NewWithConfig(provider, nil, Config{WarmupBars: 5, BankruptcyFraction: 0.5})

	run := engine.Run(context.Background(), timeoutStrategy(), testRequest())

	if len(run.Trades) == 0 {
		t.Fatal("expected at least one trade")
	}
	// First possible signal is bar 5, filling at bar 6.
	if !run.Trades[0].EntryTime.Equal(bars[6].Time) {
		t.Errorf("first entry at %v, want %v", run.Trades[0].EntryTime, bars[6].Time)
	}
}

func TestRun_BankruptcyStop(t *testing.T) {
	// Declining market, always-true entry, one-bar timeout exits: each
	// trade loses lot × 1. Capital 100 hits the 50% floor mid-scan.
	provider := &stubProvider{bars: map[core.Timeframe][]core.Bar{core.Timeframe15m: decliningBars(60, 100)}}
	engine := NewWithConfig(provider, nil, Config{WarmupBars: 1, BankruptcyFraction: 0.5})

	run := engine.Run(context.Background(), timeoutStrategy(), testRequest())

	// Bankruptcy is a completed run, not a failure.
	if run.Status != core.RunStatusCompleted {
		t.Fatalf("status = %s, want completed", run.Status)
	}
	if run.Summary.StoppedReason != "bankruptcy" {
		t.Fatalf("StoppedReason = %q, want bankruptcy", run.Summary.StoppedReason)
	}

	var capital float64 = 100
	for _, tr := range run.Trades {
		capital += tr.PnL
	}
	if run.Summary.FinalCapital != capital {
		t.Errorf("FinalCapital = %f, want %f (sum of closed trades)", run.Summary.FinalCapital, capital)
	}
	if run.Summary.FinalCapital > 50 {
		t.Errorf("FinalCapital = %f, should be at or below the 50%% floor", run.Summary.FinalCapital)
	}
}

func TestRun_Stage2ReplacesStage1(t *testing.T) {
	stage1 := flatBars(10, 10, 10, 10, 10, 10)
	stage2 := flatBars(10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10)

	provider := &stubProvider{bars: map[core.Timeframe][]core.Bar{
		core.Timeframe15m: stage1,
		core.Timeframe1m:  stage2,
	}}
	engine := NewWithConfig(provider, nil, Config{WarmupBars: 1, BankruptcyFraction: 0.5})

	strat := timeoutStrategy()
	strat.Exit.MaxHoldingMinutes = 1 // one 1m bar, one 15m bar

	req := testRequest()
	req.RunStage2 = true

	run := engine.Run(context.Background(), strat, req)

	if run.Status != core.RunStatusCompleted {
		t.Fatalf("status = %s (%s), want completed", run.Status, run.ErrorMessage)
	}
	if run.Stage != core.Stage2 {
		t.Errorf("Stage = %d, want 2", run.Stage)
	}
	if run.Timeframe != core.Timeframe1m {
		t.Errorf("Timeframe = %s, want 1m", run.Timeframe)
	}
	if provider.fetches != 2 {
		t.Errorf("fetches = %d, want 2", provider.fetches)
	}
}

func TestRun_Stage2SkippedWithoutTrades(t *testing.T) {
	// Warm-up swallows every bar: stage 1 yields no trades, so no refinement.
	provider := &stubProvider{bars: map[core.Timeframe][]core.Bar{core.Timeframe15m: flatBars(10, 10, 10)}}
	engine := NewWithConfig(provider, nil, Config{WarmupBars: 10, BankruptcyFraction: 0.5})

	req := testRequest()
	req.RunStage2 = true

	run := engine.Run(context.Background(), timeoutStrategy(), req)

	if run.Stage != core.Stage1 {
		t.Errorf("Stage = %d, want 1", run.Stage)
	}
	if provider.fetches != 1 {
		t.Errorf("fetches = %d, want 1", provider.fetches)
	}
}

func TestRun_ContextCancellation(t *testing.T) {
	provider := &stubProvider{bars: map[core.Timeframe][]core.Bar{core.Timeframe15m: decliningBars(100, 1000)}}
	engine := NewWithConfig(provider, nil, Config{WarmupBars: 1, BankruptcyFraction: 0.5})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run := engine.Run(ctx, timeoutStrategy(), testRequest())

	if run.Status != core.RunStatusFailed {
		t.Errorf("status = %s, want failed on cancelled context", run.Status)
	}
}
