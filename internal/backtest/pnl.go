package backtest

import (
	"math"

	"github.com/quantlab/verdict/internal/core"
)

const annualizationFactor = 252 // trading days per year

// CalculatePnL converts an entry/exit price pair into realized profit.
// Buy profits when price rises, sell when it falls; the two are symmetric.
func CalculatePnL(side core.Side, entryPrice, exitPrice, lotSize float64) float64 {
	if side == core.SideSell {
		return (entryPrice - exitPrice) * lotSize
	}
	return (exitPrice - entryPrice) * lotSize
}

// CalculateSummary aggregates a trade list into a performance summary.
// Pure function: no I/O, no mutation of the input.
//
// Numeric degenerate cases surface as sentinel values, never as errors:
// an empty trade list yields an all-zero summary with low confidence, a
// loss-free profitable list reports ProfitFactor=+Inf, zero variance makes
// the Sharpe ratio NaN, and a loss-free list makes the Sortino ratio NaN.
func CalculateSummary(trades []core.Trade, initialCapital float64) core.Summary {
	summary := core.Summary{
		ConfidenceLevel: core.ConfidenceLow,
		SharpeRatio:     math.NaN(),
		SortinoRatio:    math.NaN(),
		TStatistic:      math.NaN(),
		PValue:          math.NaN(),
	}
	if len(trades) == 0 {
		return summary
	}

	var (
		grossProfit, grossLoss float64
		winStreak, lossStreak  int
	)

	capital := initialCapital
	peak := initialCapital

	for _, t := range trades {
		if t.IsWin() {
			summary.WinningTrades++
			grossProfit += t.PnL
			winStreak++
			lossStreak = 0
		} else {
			summary.LosingTrades++
			grossLoss += -t.PnL
			lossStreak++
			winStreak = 0
		}
		if winStreak > summary.MaxConsecutiveWins {
			summary.MaxConsecutiveWins = winStreak
		}
		if lossStreak > summary.MaxConsecutiveLosses {
			summary.MaxConsecutiveLosses = lossStreak
		}

		capital += t.PnL
		if capital > peak {
			peak = capital
		}
		if dd := peak - capital; dd > summary.MaxDrawdown {
			summary.MaxDrawdown = dd
		}

		summary.NetProfit += t.PnL
	}

	summary.TotalTrades = len(trades)
	summary.WinRate = float64(summary.WinningTrades) / float64(summary.TotalTrades)
	summary.GrossProfit = grossProfit
	summary.GrossLoss = grossLoss

	if initialCapital > 0 {
		summary.NetProfitRate = summary.NetProfit / initialCapital
		summary.MaxDrawdownRate = summary.MaxDrawdown / initialCapital
	}

	switch {
	case grossLoss > 0:
		summary.ProfitFactor = grossProfit / grossLoss
	case grossProfit > 0:
		summary.ProfitFactor = math.Inf(1)
	default:
		summary.ProfitFactor = 0
	}

	if summary.WinningTrades > 0 {
		summary.AverageWin = grossProfit / float64(summary.WinningTrades)
	}
	if summary.LosingTrades > 0 {
		summary.AverageLoss = grossLoss / float64(summary.LosingTrades)
	}
	if summary.AverageWin > 0 && summary.AverageLoss > 0 {
		summary.RiskRewardRatio = summary.AverageWin / summary.AverageLoss
	}

	switch {
	case summary.TotalTrades >= 30:
		summary.ConfidenceLevel = core.ConfidenceHigh
	case summary.TotalTrades >= 10:
		summary.ConfidenceLevel = core.ConfidenceMedium
	}

	if summary.TotalTrades >= 2 {
		applyStatistics(&summary, trades)
	}

	return summary
}

// applyStatistics computes the distributional metrics over per-trade
// percentage returns. Requires at least two trades.
func applyStatistics(summary *core.Summary, trades []core.Trade) {
	n := len(trades)
	returns := make([]float64, n)
	for i, t := range trades {
		returns[i] = t.PnLPercent
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(n)

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	stdDev := math.Sqrt(variance / float64(n-1))

	var downSum float64
	var downCount int
	for _, r := range returns {
		if r < 0 {
			downSum += r * r
			downCount++
		}
	}

	summary.MeanReturn = mean
	summary.StdDevReturn = stdDev

	if stdDev > 0 {
		summary.SharpeRatio = mean / stdDev * math.Sqrt(annualizationFactor)
		summary.TStatistic = mean / (stdDev / math.Sqrt(float64(n)))
		summary.PValue = tTestPValue(summary.TStatistic, n-1)
		summary.IsStatSignificant = summary.PValue < 0.05
	}

	if downCount > 0 {
		downside := math.Sqrt(downSum / float64(downCount))
		summary.DownsideStdDev = downside
		if downside > 0 {
			summary.SortinoRatio = mean / downside * math.Sqrt(annualizationFactor)
		}
	}
}
