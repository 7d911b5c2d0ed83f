package backtest

import (
	"math"
	"testing"
)

// Approximation tests pin tolerances rather than exact values.

func TestNormalCDF(t *testing.T) {
	tests := []struct {
		x    float64
		want float64
	}{
		{0, 0.5},
		{1.0, 0.8413},
		{1.96, 0.9750},
		{-1.96, 0.0250},
		{3.0, 0.99865},
		{-3.0, 0.00135},
	}

	for _, tt := range tests {
		if got := normalCDF(tt.x); math.Abs(got-tt.want) > 1e-4 {
			t.Errorf("normalCDF(%v) = %v, want %v ±1e-4", tt.x, got, tt.want)
		}
	}
}

func TestLogGamma(t *testing.T) {
	tests := []struct {
		x    float64
		want float64
	}{
		{1, 0},                  // Gamma(1) = 1
		{2, 0},                  // Gamma(2) = 1
		{5, math.Log(24)},       // Gamma(5) = 24
		{0.5, math.Log(math.Sqrt(math.Pi))},
	}

	for _, tt := range tests {
		if got := logGamma(tt.x); math.Abs(got-tt.want) > 1e-8 {
			t.Errorf("logGamma(%v) = %v, want %v", tt.x, got, tt.want)
		}
	}
}

func TestIncompleteBeta(t *testing.T) {
	tests := []struct {
		a, b, x float64
		want    float64
	}{
		{1, 1, 0.3, 0.3}, // I_x(1,1) = x
		{1, 1, 0.7, 0.7},
		{2, 2, 0.5, 0.5}, // symmetric distribution, median at 0.5
		{2, 3, 0, 0},
		{2, 3, 1, 1},
	}

	for _, tt := range tests {
		if got := incompleteBeta(tt.a, tt.b, tt.x); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("incompleteBeta(%v,%v,%v) = %v, want %v", tt.a, tt.b, tt.x, got, tt.want)
		}
	}
}

func TestTTestPValue(t *testing.T) {
	// t=0 is maximally insignificant regardless of df.
	if p := tTestPValue(0, 10); math.Abs(p-1) > 1e-9 {
		t.Errorf("p(t=0, df=10) = %v, want 1", p)
	}
	if p := tTestPValue(0, 100); math.Abs(p-1) > 1e-6 {
		t.Errorf("p(t=0, df=100) = %v, want 1", p)
	}

	// Known Student-t two-sided values (small df path).
	if p := tTestPValue(2.228, 10); math.Abs(p-0.05) > 2e-3 {
		t.Errorf("p(t=2.228, df=10) = %v, want ~0.05", p)
	}

	// Normal approximation path for df >= 30.
	if p := tTestPValue(1.96, 60); math.Abs(p-0.05) > 2e-3 {
		t.Errorf("p(t=1.96, df=60) = %v, want ~0.05", p)
	}

	// Larger |t| means smaller p on both paths.
	if tTestPValue(3, 10) >= tTestPValue(2, 10) {
		t.Error("p-value should decrease as |t| grows (t path)")
	}
	if tTestPValue(3, 50) >= tTestPValue(2, 50) {
		t.Error("p-value should decrease as |t| grows (normal path)")
	}

	// Symmetric in t.
	if math.Abs(tTestPValue(2.5, 12)-tTestPValue(-2.5, 12)) > 1e-12 {
		t.Error("two-sided p-value should be symmetric in t")
	}
}
