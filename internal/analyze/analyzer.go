// Package analyze inspects a completed trade list against the bar series it
// was produced from, looking for indicator-based filters that separate
// winning entries from losing ones.
package analyze

import (
	"math"
	"sort"

	"github.com/quantlab/verdict/internal/backtest"
	"github.com/quantlab/verdict/internal/core"
	"github.com/quantlab/verdict/internal/indicator"
	"github.com/quantlab/verdict/internal/strategy"
	"go.uber.org/zap"
)

const (
	maxFilterPredicates = 5

	// Suggested thresholds sit 80/20 between the win and lose averages,
	// biased toward the winning side.
	thresholdWinBias = 0.8

	// Estimated win-rate improvement is a heuristic, never re-simulated,
	// and capped at 30 percentage points.
	maxImprovementPP = 30
)

// catalogue is the fixed set of indicators scanned by Analyze.
var catalogue = []indicator.Spec{
	{ID: indicator.IDSMA, Period: 20},
	{ID: indicator.IDSMA, Period: 50},
	{ID: indicator.IDRSI, Period: 14},
	{ID: indicator.IDMACDHist, Fast: 12, Slow: 26, Signal: 9},
	{ID: indicator.IDBBPercentB, Period: 20, Mult: 2},
}

// FilterPredicate is one indicator condition applied at a trade's entry bar.
type FilterPredicate struct {
	Indicator indicator.Spec
	Op        strategy.CompareOp
	Threshold float64
}

// Insight describes how well one indicator separates winners from losers.
type Insight struct {
	Indicator   indicator.Spec
	Label       string
	WinAverage  float64
	LoseAverage float64
	Difference  float64

	// SignificanceScore is |difference| scaled by the indicator's observed
	// range, as a percentage.
	SignificanceScore float64

	Suggested            FilterPredicate
	EstimatedImprovement float64 // percentage points

	WinSamples  int
	LoseSamples int
}

// Suggestion combines the top-ranked insights into one candidate filter set
// with heuristic estimates.
type Suggestion struct {
	Filters                 []FilterPredicate
	EstimatedWinRate        float64
	EstimatedProfitFactor   float64
	EstimatedTradesRetained float64 // fraction of trades expected to survive
}

// Analysis is the ranked outcome of one analyze pass.
type Analysis struct {
	Insights    []Insight
	Suggestions []Suggestion
}

// Verification compares summary metrics before and after applying filters.
type Verification struct {
	TradesBefore int
	TradesAfter  int

	WinRateBefore      float64
	WinRateAfter       float64
	ProfitFactorBefore float64
	ProfitFactorAfter  float64
	NetProfitBefore    float64
	NetProfitAfter     float64

	WinRateDelta      float64
	ProfitFactorDelta float64
	NetProfitDelta    float64
}

// Analyzer evaluates indicator filters over completed trades.
type Analyzer struct {
	logger *zap.Logger
}

// New creates an analyzer.
func New(logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{logger: logger}
}

// Analyze computes the indicator catalogue once over the bar series, splits
// trades by outcome, and ranks indicators by how strongly their entry-time
// values separate the two groups.
func (a *Analyzer) Analyze(trades []core.Trade, bars []core.Bar) (*Analysis, error) {
	if len(trades) == 0 || len(bars) == 0 {
		return nil, core.ErrInsufficientData
	}

	cache := indicator.NewCache(bars)
	index := barIndex(bars)

	var insights []Insight
	for _, spec := range catalogue {
		series := cache.Series(spec)

		var winValues, loseValues []float64
		for _, t := range trades {
			idx, ok := index[t.EntryTime.UnixNano()]
			if !ok {
				continue
			}
			v := series[idx]
			if math.IsNaN(v) {
				continue
			}
			if t.IsWin() {
				winValues = append(winValues, v)
			} else {
				loseValues = append(loseValues, v)
			}
		}
		if len(winValues) == 0 || len(loseValues) == 0 {
			continue
		}

		lo, hi := seriesRange(series)
		if hi == lo {
			continue
		}

		winAvg := mean(winValues)
		loseAvg := mean(loseValues)
		diff := winAvg - loseAvg
		significance := math.Abs(diff) / (hi - lo) * 100

		insights = append(insights, Insight{
			Indicator:            spec,
			Label:                spec.Key(),
			WinAverage:           winAvg,
			LoseAverage:          loseAvg,
			Difference:           diff,
			SignificanceScore:    significance,
			Suggested:            suggestPredicate(spec, winAvg, loseAvg),
			EstimatedImprovement: math.Min(maxImprovementPP, significance*0.3),
			WinSamples:           len(winValues),
			LoseSamples:          len(loseValues),
		})
	}

	sort.Slice(insights, func(i, j int) bool {
		return insights[i].SignificanceScore > insights[j].SignificanceScore
	})

	base := backtest.CalculateSummary(trades, 1)
	analysis := &Analysis{
		Insights:    insights,
		Suggestions: buildSuggestions(insights, base),
	}

	a.logger.Info("filter analysis completed",
		zap.Int("trades", len(trades)),
		zap.Int("insights", len(insights)),
	)
	return analysis, nil
}

// Verify re-evaluates the trade list against explicit filter predicates and
// reports the before/after metric deltas. Trades whose entry-time indicator
// value is missing or NaN are filtered out, the same as a failed predicate.
func (a *Analyzer) Verify(trades []core.Trade, bars []core.Bar, filters []FilterPredicate, initialCapital float64) (*Verification, error) {
	if len(filters) == 0 || len(filters) > maxFilterPredicates {
		return nil, core.ErrInvalidFilterCount
	}
	if len(trades) == 0 || len(bars) == 0 {
		return nil, core.ErrInsufficientData
	}

	cache := indicator.NewCache(bars)
	index := barIndex(bars)

	var kept []core.Trade
	for _, t := range trades {
		if passesAll(t, filters, cache, index) {
			kept = append(kept, t)
		}
	}

	before := backtest.CalculateSummary(trades, initialCapital)
	after := backtest.CalculateSummary(kept, initialCapital)

	return &Verification{
		TradesBefore:       len(trades),
		TradesAfter:        len(kept),
		WinRateBefore:      before.WinRate,
		WinRateAfter:       after.WinRate,
		ProfitFactorBefore: before.ProfitFactor,
		ProfitFactorAfter:  after.ProfitFactor,
		NetProfitBefore:    before.NetProfit,
		NetProfitAfter:     after.NetProfit,
		WinRateDelta:       after.WinRate - before.WinRate,
		ProfitFactorDelta:  after.ProfitFactor - before.ProfitFactor,
		NetProfitDelta:     after.NetProfit - before.NetProfit,
	}, nil
}

func passesAll(t core.Trade, filters []FilterPredicate, cache *indicator.Cache, index map[int64]int) bool {
	idx, ok := index[t.EntryTime.UnixNano()]
	if !ok {
		return false
	}
	for _, f := range filters {
		v := cache.Value(f.Indicator, idx)
		if math.IsNaN(v) {
			return false
		}
		var pass bool
		switch f.Op {
		case strategy.CmpLT:
			pass = v < f.Threshold
		case strategy.CmpLE:
			pass = v <= f.Threshold
		case strategy.CmpGT:
			pass = v > f.Threshold
		case strategy.CmpGE:
			pass = v >= f.Threshold
		case strategy.CmpEQ:
			pass = v == f.Threshold
		}
		if !pass {
			return false
		}
	}
	return true
}

// suggestPredicate builds the one-sided threshold filter implied by the
// win/lose averages.
func suggestPredicate(spec indicator.Spec, winAvg, loseAvg float64) FilterPredicate {
	threshold := thresholdWinBias*winAvg + (1-thresholdWinBias)*loseAvg
	op := strategy.CmpGE
	if winAvg < loseAvg {
		op = strategy.CmpLE
	}
	return FilterPredicate{Indicator: spec, Op: op, Threshold: threshold}
}

// buildSuggestions combines the top-1/2/3 insights. The estimates are
// heuristic extrapolations from the per-indicator improvements; only Verify
// recomputes real metrics.
func buildSuggestions(insights []Insight, base core.Summary) []Suggestion {
	var suggestions []Suggestion
	for k := 1; k <= 3 && k <= len(insights); k++ {
		filters := make([]FilterPredicate, k)
		var improvementPP float64
		for i := 0; i < k; i++ {
			filters[i] = insights[i].Suggested
			improvementPP += insights[i].EstimatedImprovement
		}
		if improvementPP > maxImprovementPP {
			improvementPP = maxImprovementPP
		}

		estWinRate := math.Min(0.95, base.WinRate+improvementPP/100)

		estPF := base.ProfitFactor
		if !math.IsInf(estPF, 1) && estPF > 0 {
			estPF *= 1 + improvementPP/100
		}

		suggestions = append(suggestions, Suggestion{
			Filters:                 filters,
			EstimatedWinRate:        estWinRate,
			EstimatedProfitFactor:   estPF,
			EstimatedTradesRetained: math.Pow(0.8, float64(k)),
		})
	}
	return suggestions
}

func barIndex(bars []core.Bar) map[int64]int {
	index := make(map[int64]int, len(bars))
	for i, b := range bars {
		index[b.Time.UnixNano()] = i
	}
	return index
}

func seriesRange(series []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range series {
		if math.IsNaN(v) {
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
