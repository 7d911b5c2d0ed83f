package indicator

// RSI calculates the Relative Strength Index using Wilder smoothing.
func RSI(prices []float64, period int) []float64 {
	result := nanSeries(len(prices))
	if period <= 0 || len(prices) < period+1 {
		return result
	}

	n := len(prices)
	gains := make([]float64, n)
	losses := make([]float64, n)

	for i := 1; i < n; i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
	}

	// First average using SMA
	avgGain := mean(gains[1 : period+1])
	avgLoss := mean(losses[1 : period+1])
	result[period] = rsiValue(avgGain, avgLoss)

	// Subsequent values using Wilder smoothing
	for i := period + 1; i < n; i++ {
		avgGain = (avgGain*float64(period-1) + gains[i]) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + losses[i]) / float64(period)
		result[i] = rsiValue(avgGain, avgLoss)
	}

	return result
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// MACD calculates the MACD line, signal line and histogram.
func MACD(prices []float64, fast, slow, signal int) (macdLine, signalLine, histogram []float64) {
	n := len(prices)
	macdLine = nanSeries(n)
	signalLine = nanSeries(n)
	histogram = nanSeries(n)

	warmup := slow + signal - 1
	if fast <= 0 || slow <= 0 || signal <= 0 || n < warmup {
		return
	}

	fastEMA := EMA(prices, fast)
	slowEMA := EMA(prices, slow)

	for i := slow - 1; i < n; i++ {
		macdLine[i] = fastEMA[i] - slowEMA[i]
	}

	// Signal line is an EMA over the defined portion of the MACD line.
	startIdx := slow - 1
	signalEMA := EMA(macdLine[startIdx:], signal)
	for i, v := range signalEMA {
		signalLine[startIdx+i] = v
	}

	for i := warmup - 1; i < n; i++ {
		histogram[i] = macdLine[i] - signalLine[i]
	}

	return
}
