package indicator

// BollingerBands holds the three band series plus %B.
type BollingerBands struct {
	Middle   []float64
	Upper    []float64
	Lower    []float64
	PercentB []float64
}

// Bollinger calculates Bollinger Bands over a rolling window.
// %B = (price - lower) / (upper - lower), 0.5 on a zero-width band.
func Bollinger(prices []float64, period int, mult float64) BollingerBands {
	n := len(prices)
	bb := BollingerBands{
		Middle:   nanSeries(n),
		Upper:    nanSeries(n),
		Lower:    nanSeries(n),
		PercentB: nanSeries(n),
	}
	if period <= 0 || n < period {
		return bb
	}

	for i := period - 1; i < n; i++ {
		window := prices[i-period+1 : i+1]
		sma := mean(window)
		sd := stdDev(window)

		bb.Middle[i] = sma
		bb.Upper[i] = sma + mult*sd
		bb.Lower[i] = sma - mult*sd

		width := bb.Upper[i] - bb.Lower[i]
		if width != 0 {
			bb.PercentB[i] = (prices[i] - bb.Lower[i]) / width
		} else {
			bb.PercentB[i] = 0.5
		}
	}

	return bb
}
