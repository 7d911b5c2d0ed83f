package indicator

import (
	"math"
	"testing"
)

func TestSMA_Calculate(t *testing.T) {
	prices := []float64{10, 11, 12, 13, 14, 15}

	sma := SMA(prices, 3)

	if len(sma) != len(prices) {
		t.Fatalf("expected %d values, got %d", len(prices), len(sma))
	}

	// Warm-up positions are NaN
	for i := 0; i < 2; i++ {
		if !math.IsNaN(sma[i]) {
			t.Errorf("sma[%d] = %f, want NaN during warm-up", i, sma[i])
		}
	}

	// SMA(3): [2]=(10+11+12)/3=11, [3]=12, [4]=13, [5]=14
	expected := []float64{11, 12, 13, 14}
	for i, v := range expected {
		if sma[i+2] != v {
			t.Errorf("sma[%d] = %f, want %f", i+2, sma[i+2], v)
		}
	}
}

func TestSMA_NotEnoughData(t *testing.T) {
	sma := SMA([]float64{10, 11}, 5)

	if len(sma) != 2 {
		t.Fatalf("expected 2 values, got %d", len(sma))
	}
	for i, v := range sma {
		if !math.IsNaN(v) {
			t.Errorf("sma[%d] = %f, want NaN", i, v)
		}
	}
}

func TestEMA_Calculate(t *testing.T) {
	prices := []float64{10, 11, 12, 13, 14, 15}
	ema := EMA(prices, 3)

	if len(ema) != len(prices) {
		t.Fatalf("expected %d values, got %d", len(prices), len(ema))
	}

	// First defined EMA = SMA = 11
	if ema[2] != 11 {
		t.Errorf("first EMA should equal SMA, got %f", ema[2])
	}

	// Subsequent EMAs should trend upward on rising prices
	for i := 3; i < len(ema); i++ {
		if ema[i] <= ema[i-1] {
			t.Errorf("EMA should be increasing, ema[%d]=%f <= ema[%d]=%f", i, ema[i], i-1, ema[i-1])
		}
	}
}

func TestEMA_NotEnoughData(t *testing.T) {
	ema := EMA([]float64{10, 11}, 5)
	for i, v := range ema {
		if !math.IsNaN(v) {
			t.Errorf("ema[%d] = %f, want NaN", i, v)
		}
	}
}

func almostEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) < tolerance
}
