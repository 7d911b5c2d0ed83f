package walkforward

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quantlab/verdict/internal/backtest"
	"github.com/quantlab/verdict/internal/core"
	"github.com/quantlab/verdict/internal/indicator"
	"github.com/quantlab/verdict/internal/strategy"
)

// rangeProvider serves a fixed series filtered to the requested [start, end)
// window, the way a real store would.
type rangeProvider struct {
	bars []core.Bar
}

func (p *rangeProvider) Fetch(ctx context.Context, symbol string, timeframe core.Timeframe, start, end time.Time) ([]core.Bar, error) {
	var out []core.Bar
	for _, b := range p.bars {
		if !b.Time.Before(start) && b.Time.Before(end) {
			out = append(out, b)
		}
	}
	return out, nil
}

func series15m(n int) []core.Bar {
	bars := make([]core.Bar, n)
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		price := 100 + float64(i%7) // cycles so both halves see wins and losses
		bars[i] = core.Bar{
			Time:   start.Add(time.Duration(i) * 15 * time.Minute),
			Open:   price,
			High:   price,
			Low:    price,
			Close:  price,
			Volume: 100,
		}
	}
	return bars
}

func alwaysEnter() *strategy.Strategy {
	return &strategy.Strategy{
		Name: "always-enter",
		Side: core.SideBuy,
		Entry: &strategy.Condition{
			Type:      strategy.NodeLeaf,
			Indicator: indicator.Spec{ID: indicator.IDClose},
			Op:        strategy.CmpGT,
			Target:    strategy.Constant(0),
		},
		Exit: strategy.ExitSettings{
			TakeProfit:        strategy.PriceTarget{Value: 1000, Unit: strategy.UnitPercent},
			StopLoss:          strategy.PriceTarget{Value: 1000, Unit: strategy.UnitPercent},
			MaxHoldingMinutes: 15,
		},
	}
}

func validatorFor(bars []core.Bar) (*Validator, core.Period) {
	provider := &rangeProvider{bars: bars}
	engine := backtest.NewWithConfig(provider, nil, backtest.Config{WarmupBars: 1, BankruptcyFraction: 0.5})
	period := core.Period{
		Start: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	return New(provider, engine, nil), period
}

func split(isTrades, oosTrades int, diff float64) core.WalkForwardSplit {
	return core.WalkForwardSplit{
		InSampleStats:    core.Summary{TotalTrades: isTrades, WinRate: diff},
		OutOfSampleStats: core.Summary{TotalTrades: oosTrades},
		WinRateDiff:      diff,
	}
}

func TestTimestampSplits_Counts(t *testing.T) {
	end := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		bars      int
		requested int
		want      int
	}{
		{"record-limited", 100, 4, 2},      // 100/45 = 2
		{"capped at three", 500, 4, 3},     // hard cap
		{"requested below cap", 500, 2, 2},
		{"too few records", 44, 4, 0},
		{"exactly one split", 45, 4, 1},
		{"zero requested", 100, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := timestampSplits(series15m(tt.bars), tt.requested, end)
			if len(got) != tt.want {
				t.Errorf("got %d splits, want %d", len(got), tt.want)
			}
		})
	}
}

func TestTimestampSplits_SeventyThirtyAndRemainder(t *testing.T) {
	bars := series15m(100)
	end := bars[99].Time.Add(15 * time.Minute)

	periods := timestampSplits(bars, 2, end)
	if len(periods) != 2 {
		t.Fatalf("got %d splits, want 2", len(periods))
	}

	// First split covers records [0,50): 35 in-sample, 15 out-of-sample.
	if !periods[0].inSample.Start.Equal(bars[0].Time) {
		t.Errorf("split 1 IS start = %v, want %v", periods[0].inSample.Start, bars[0].Time)
	}
	if !periods[0].inSample.End.Equal(bars[35].Time) {
		t.Errorf("split 1 IS end = %v, want bar 35 at %v", periods[0].inSample.End, bars[35].Time)
	}
	if !periods[0].outOfSample.End.Equal(bars[50].Time) {
		t.Errorf("split 1 OOS end = %v, want bar 50 at %v", periods[0].outOfSample.End, bars[50].Time)
	}

	// Last split takes the remainder and runs to the range end.
	if !periods[1].inSample.Start.Equal(bars[50].Time) {
		t.Errorf("split 2 IS start = %v, want bar 50", periods[1].inSample.Start)
	}
	if !periods[1].outOfSample.End.Equal(end) {
		t.Errorf("split 2 OOS end = %v, want range end %v", periods[1].outOfSample.End, end)
	}
}

func TestCalendarSplits(t *testing.T) {
	period := core.Period{
		Start: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 3, 21, 0, 0, 0, 0, time.UTC), // 20 days
	}

	periods := calendarSplits(period, 4)
	// 20 days / 5-day minimum = 4, capped... 4 > 3 cap -> 3 splits.
	if len(periods) != 3 {
		t.Fatalf("got %d splits, want 3", len(periods))
	}

	for i, p := range periods {
		isDays := p.inSample.End.Sub(p.inSample.Start).Hours() / 24
		oosDays := p.outOfSample.End.Sub(p.outOfSample.Start).Hours() / 24
		if isDays < 3 {
			t.Errorf("split %d in-sample %v days, want >= 3", i+1, isDays)
		}
		if oosDays < 2 {
			t.Errorf("split %d out-of-sample %v days, want >= 2", i+1, oosDays)
		}
	}

	if got := calendarSplits(core.Period{Start: period.Start, End: period.Start.AddDate(0, 0, 4)}, 4); len(got) != 0 {
		t.Errorf("4-day range produced %d splits, want 0", len(got))
	}
}

func TestOverfitScore(t *testing.T) {
	tests := []struct {
		name   string
		splits []core.WalkForwardSplit
		want   float64
	}{
		{"no splits", nil, 0},
		{"no usable splits", []core.WalkForwardSplit{split(5, 0, 0.3), split(0, 5, 0.3)}, 0},
		{"negative diff floors at zero", []core.WalkForwardSplit{split(5, 5, -0.2)}, 0},
		{"normalized", []core.WalkForwardSplit{split(5, 5, 0.06)}, 0.4},
		{"clamped to one", []core.WalkForwardSplit{split(5, 5, 0.3)}, 1},
		{"averaged over usable only", []core.WalkForwardSplit{split(5, 5, 0.15), split(5, 0, 0.9)}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := overfitScore(tt.splits)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("overfitScore() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestRun_SplitsAndBaseline(t *testing.T) {
	v, period := validatorFor(series15m(100))

	result, err := v.Run(context.Background(), alwaysEnter(), Request{
		Symbol:         "EURUSD",
		Period:         period,
		Timeframe:      core.Timeframe15m,
		SplitCount:     4,
		InitialCapital: 1_000_000,
		LotSize:        1,
		Leverage:       1,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.SplitCount != 2 {
		t.Fatalf("SplitCount = %d, want 2", result.SplitCount)
	}
	for i, s := range result.Splits {
		if s.SplitNumber != i+1 {
			t.Errorf("split %d numbered %d", i, s.SplitNumber)
		}
		if s.InSampleStats.TotalTrades == 0 || s.OutOfSampleStats.TotalTrades == 0 {
			t.Errorf("split %d has no trades on one side", i+1)
		}
		wantDiff := s.InSampleStats.WinRate - s.OutOfSampleStats.WinRate
		if s.WinRateDiff != wantDiff {
			t.Errorf("split %d WinRateDiff = %f, want %f", i+1, s.WinRateDiff, wantDiff)
		}
	}
	if result.Summary.TotalTrades == 0 {
		t.Error("baseline summary should cover the full period")
	}
	if result.OverfitScore < 0 || result.OverfitScore > 1 {
		t.Errorf("OverfitScore = %f, want within [0,1]", result.OverfitScore)
	}
}

func TestRun_InsufficientData(t *testing.T) {
	// 20 bars cannot support a single 45-record split.
	v, period := validatorFor(series15m(20))

	_, err := v.Run(context.Background(), alwaysEnter(), Request{
		Symbol:         "EURUSD",
		Period:         period,
		Timeframe:      core.Timeframe15m,
		SplitCount:     4,
		InitialCapital: 1000,
		LotSize:        1,
		Leverage:       1,
	})
	if !errors.Is(err, core.ErrInsufficientData) {
		t.Errorf("err = %v, want InsufficientData", err)
	}
}

func TestRun_InvalidStrategy(t *testing.T) {
	v, period := validatorFor(series15m(100))

	strat := alwaysEnter()
	strat.Entry = &strategy.Condition{Type: strategy.NodeIfThen}

	_, err := v.Run(context.Background(), strat, Request{
		Symbol:         "EURUSD",
		Period:         period,
		Timeframe:      core.Timeframe15m,
		SplitCount:     2,
		InitialCapital: 1000,
		LotSize:        1,
		Leverage:       1,
	})
	if !errors.Is(err, core.ErrInvalidStrategyConfig) {
		t.Errorf("err = %v, want InvalidStrategyConfig", err)
	}
}
