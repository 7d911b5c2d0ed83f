// Package montecarlo tests whether a strategy's metrics are distinguishable
// from chance by simulating random entries over the same historical range.
package montecarlo

import (
	"context"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/quantlab/verdict/internal/backtest"
	"github.com/quantlab/verdict/internal/core"
	"github.com/quantlab/verdict/internal/strategy"
	"go.uber.org/zap"
)

const (
	DefaultIterations       = 500
	DefaultEntryProbability = 0.05

	// Stands in for +Inf so the profit factor distribution stays finite.
	profitFactorCap = 10

	minBars       = 10
	histogramBins = 10
)

// Request describes one Monte Carlo validation.
type Request struct {
	Symbol           string
	Period           core.Period
	Timeframe        core.Timeframe
	Iterations       int     // one of 100, 500, 1000; 0 selects the default
	EntryProbability float64 // per-bar; 0 selects the default
	InitialCapital   float64
	LotSize          float64
	Leverage         float64
	Seed             int64 // 0 seeds from the clock
}

// Distribution describes one metric across all simulations.
type Distribution struct {
	Mean        float64
	Median      float64
	StdDev      float64
	Min         float64
	Max         float64
	Percentiles map[int]float64 // 5, 25, 50, 75, 95
	Histogram   []HistogramBin
}

// HistogramBin is one of ten equal-width buckets over [Min, Max].
type HistogramBin struct {
	Low   float64
	High  float64
	Count int
}

// Comparison ranks a real strategy summary against the random-entry
// distribution. Ranks are raw percentiles (fraction of simulations with a
// strictly lower value); drawdown's rank is flipped when averaging, since a
// lower drawdown is the better outcome.
type Comparison struct {
	WinRateRank      float64
	ProfitFactorRank float64
	DrawdownRank     float64
	NetProfitRank    float64
	OverallScore     float64
	Tier             string
	Comment          string
}

// Result is the full validation outcome.
type Result struct {
	Iterations   int
	Runs         []core.MonteCarloRun
	WinRate      Distribution
	ProfitFactor Distribution
	Drawdown     Distribution
	NetProfit    Distribution
	Comparison   *Comparison // nil when no real summary was supplied
}

var tierComments = map[string]string{
	"excellent": "Strategy performance is far outside what random entries produce.",
	"good":      "Strategy outperforms the large majority of random-entry simulations.",
	"average":   "Strategy performance is within the typical range of random entries.",
	"poor":      "Strategy underperforms most random-entry simulations.",
	"very_poor": "Strategy performs worse than nearly all random-entry simulations.",
}

// Validator runs random-entry simulations against historical bars.
type Validator struct {
	provider backtest.BarProvider
	logger   *zap.Logger
}

// New creates a Monte Carlo validator.
func New(provider backtest.BarProvider, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{provider: provider, logger: logger}
}

// Run executes the simulations and, when actual is non-nil, compares the
// real summary against the resulting distribution. Simulations own private
// state and run in parallel across available cores.
func (v *Validator) Run(ctx context.Context, exits strategy.ExitSettings, req Request, actual *core.Summary) (*Result, error) {
	iterations := req.Iterations
	if iterations == 0 {
		iterations = DefaultIterations
	}
	if iterations != 100 && iterations != 500 && iterations != 1000 {
		return nil, core.ErrConfigInvalid
	}

	entryProb := req.EntryProbability
	if entryProb == 0 {
		entryProb = DefaultEntryProbability
	}

	bars, err := v.provider.Fetch(ctx, req.Symbol, req.Timeframe, req.Period.Start, req.Period.End)
	if err != nil {
		return nil, core.WrapError(core.ErrDataUnavailable, err)
	}
	if len(bars) < minBars {
		return nil, core.ErrInsufficientData
	}

	seed := req.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	runs := v.simulateAll(ctx, bars, exits, req, iterations, entryProb, seed)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{
		Iterations:   iterations,
		Runs:         runs,
		WinRate:      describe(collect(runs, func(r core.MonteCarloRun) float64 { return r.WinRate })),
		ProfitFactor: describe(collect(runs, func(r core.MonteCarloRun) float64 { return r.ProfitFactor })),
		Drawdown:     describe(collect(runs, func(r core.MonteCarloRun) float64 { return r.MaxDrawdownRate })),
		NetProfit:    describe(collect(runs, func(r core.MonteCarloRun) float64 { return r.NetProfitRate })),
	}
	if actual != nil {
		result.Comparison = compare(runs, actual)
	}

	v.logger.Info("monte carlo completed",
		zap.String("symbol", req.Symbol),
		zap.Int("iterations", iterations),
		zap.Float64("mean_win_rate", result.WinRate.Mean),
	)
	return result, nil
}

func (v *Validator) simulateAll(ctx context.Context, bars []core.Bar, exits strategy.ExitSettings, req Request, iterations int, entryProb float64, seed int64) []core.MonteCarloRun {
	runs := make([]core.MonteCarloRun, iterations)

	workers := runtime.GOMAXPROCS(0)
	if workers > iterations {
		workers = iterations
	}

	var wg sync.WaitGroup
	jobs := make(chan int)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				// Per-simulation source keeps results independent of worker
				// scheduling.
				rng := rand.New(rand.NewSource(seed + int64(i)))
				runs[i] = simulate(i, bars, exits, req, entryProb, rng)
			}
		}()
	}

	for i := 0; i < iterations; i++ {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return runs
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	return runs
}

// simulate replays one random-entry pass. No condition tree is evaluated;
// entries are pure noise, exits use the real strategy's settings.
func simulate(id int, bars []core.Bar, exits strategy.ExitSettings, req Request, entryProb float64, rng *rand.Rand) core.MonteCarloRun {
	var trades []core.Trade

	inPosition := false
	var entryPrice float64
	var entryIndex int
	var side core.Side

	for i := 0; i < len(bars); i++ {
		if inPosition {
			decision := strategy.CheckExit(bars[i], entryPrice, side, exits, i-entryIndex, req.Timeframe)
			if decision.ShouldExit {
				trades = append(trades, core.Trade{
					Side:       side,
					EntryPrice: entryPrice,
					ExitPrice:  decision.ExitPrice,
					LotSize:    req.LotSize,
					PnL:        backtest.CalculatePnL(side, entryPrice, decision.ExitPrice, req.LotSize),
					ExitReason: decision.Reason,
				})
				inPosition = false
			}
			continue
		}

		if rng.Float64() < entryProb && i+1 < len(bars) {
			inPosition = true
			entryPrice = bars[i+1].Open
			entryIndex = i + 1
			if rng.Float64() < 0.5 {
				side = core.SideBuy
			} else {
				side = core.SideSell
			}
		}
	}

	if inPosition {
		last := bars[len(bars)-1]
		trades = append(trades, core.Trade{
			Side:       side,
			EntryPrice: entryPrice,
			ExitPrice:  last.Close,
			LotSize:    req.LotSize,
			PnL:        backtest.CalculatePnL(side, entryPrice, last.Close, req.LotSize),
			ExitReason: core.ExitSignal,
		})
	}

	summary := backtest.CalculateSummary(trades, req.InitialCapital)

	pf := summary.ProfitFactor
	if math.IsInf(pf, 1) || pf > profitFactorCap {
		pf = profitFactorCap
	}

	return core.MonteCarloRun{
		ID:              id,
		WinRate:         summary.WinRate,
		ProfitFactor:    pf,
		MaxDrawdownRate: summary.MaxDrawdownRate,
		NetProfitRate:   summary.NetProfitRate,
		TotalTrades:     summary.TotalTrades,
	}
}

func collect(runs []core.MonteCarloRun, metric func(core.MonteCarloRun) float64) []float64 {
	values := make([]float64, len(runs))
	for i, r := range runs {
		values[i] = metric(r)
	}
	return values
}

// describe computes the distribution statistics for one metric.
func describe(values []float64) Distribution {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(len(sorted))

	var variance float64
	for _, v := range sorted {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(sorted))

	d := Distribution{
		Mean:        mean,
		Median:      percentile(sorted, 50),
		StdDev:      math.Sqrt(variance),
		Min:         sorted[0],
		Max:         sorted[len(sorted)-1],
		Percentiles: map[int]float64{},
		Histogram:   histogram(sorted),
	}
	for _, p := range []int{5, 25, 50, 75, 95} {
		d.Percentiles[p] = percentile(sorted, p)
	}
	return d
}

// percentile interpolates linearly over a sorted slice.
func percentile(sorted []float64, p int) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := float64(p) / 100 * float64(len(sorted)-1)
	lo := int(pos)
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

func histogram(sorted []float64) []HistogramBin {
	min, max := sorted[0], sorted[len(sorted)-1]
	bins := make([]HistogramBin, histogramBins)
	width := (max - min) / histogramBins

	for i := range bins {
		bins[i] = HistogramBin{Low: min + float64(i)*width, High: min + float64(i+1)*width}
	}
	if width == 0 {
		bins[0].Count = len(sorted)
		return bins
	}

	for _, v := range sorted {
		idx := int((v - min) / width)
		if idx >= histogramBins {
			idx = histogramBins - 1 // max lands in the top bin
		}
		bins[idx].Count++
	}
	return bins
}

// compare ranks the real summary against the simulated distribution. Each
// rank is the percentage of simulations with a strictly lower value; the
// drawdown rank is flipped before averaging because lower is better there.
func compare(runs []core.MonteCarloRun, actual *core.Summary) *Comparison {
	pf := actual.ProfitFactor
	if math.IsInf(pf, 1) || pf > profitFactorCap {
		pf = profitFactorCap
	}

	c := &Comparison{
		WinRateRank:      rankBelow(runs, actual.WinRate, func(r core.MonteCarloRun) float64 { return r.WinRate }),
		ProfitFactorRank: rankBelow(runs, pf, func(r core.MonteCarloRun) float64 { return r.ProfitFactor }),
		DrawdownRank:     rankBelow(runs, actual.MaxDrawdownRate, func(r core.MonteCarloRun) float64 { return r.MaxDrawdownRate }),
		NetProfitRank:    rankBelow(runs, actual.NetProfitRate, func(r core.MonteCarloRun) float64 { return r.NetProfitRate }),
	}

	c.OverallScore = (c.WinRateRank + c.ProfitFactorRank + (100 - c.DrawdownRank) + c.NetProfitRank) / 4

	switch {
	case c.OverallScore >= 90:
		c.Tier = "excellent"
	case c.OverallScore >= 75:
		c.Tier = "good"
	case c.OverallScore >= 50:
		c.Tier = "average"
	case c.OverallScore >= 25:
		c.Tier = "poor"
	default:
		c.Tier = "very_poor"
	}
	c.Comment = tierComments[c.Tier]
	return c
}

func rankBelow(runs []core.MonteCarloRun, actual float64, metric func(core.MonteCarloRun) float64) float64 {
	var below int
	for _, r := range runs {
		if metric(r) < actual {
			below++
		}
	}
	return float64(below) / float64(len(runs)) * 100
}
