package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/quantlab/verdict/internal/core"
)

func testBars(n int) []core.Bar {
	bars := make([]core.Bar, n)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		price := 100 + float64(i)
		bars[i] = core.Bar{
			Time:   start.Add(time.Duration(i) * time.Hour),
			Open:   price,
			High:   price + 1,
			Low:    price - 1,
			Close:  price + 0.5,
			Volume: 1000,
		}
	}
	return bars
}

func TestCache_ComputesOnce(t *testing.T) {
	cache := NewCache(testBars(30))
	spec := Spec{ID: IDSMA, Period: 5}

	first := cache.Series(spec)
	second := cache.Series(spec)

	// Same backing slice: the arena computes a spec exactly once.
	if &first[0] != &second[0] {
		t.Error("expected cached series to be reused")
	}
}

func TestCache_Value_OutOfRange(t *testing.T) {
	cache := NewCache(testBars(10))
	spec := Spec{ID: IDClose}

	if !math.IsNaN(cache.Value(spec, -1)) {
		t.Error("negative index should yield NaN")
	}
	if !math.IsNaN(cache.Value(spec, 10)) {
		t.Error("index past the end should yield NaN")
	}
	if cache.Value(spec, 3) != 103.5 {
		t.Errorf("close[3] = %f, want 103.5", cache.Value(spec, 3))
	}
}

func TestCache_UnknownIndicator(t *testing.T) {
	cache := NewCache(testBars(10))

	v := cache.Value(Spec{ID: "hilbert_transform", Period: 9}, 5)
	if !math.IsNaN(v) {
		t.Errorf("unknown indicator should yield NaN, got %f", v)
	}
}

func TestCache_PriceFields(t *testing.T) {
	cache := NewCache(testBars(5))

	tests := []struct {
		id   string
		want float64
	}{
		{IDOpen, 102},
		{IDHigh, 103},
		{IDLow, 101},
		{IDClose, 102.5},
		{IDVolume, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := cache.Value(Spec{ID: tt.id}, 2); got != tt.want {
				t.Errorf("%s[2] = %f, want %f", tt.id, got, tt.want)
			}
		})
	}
}

func TestSpec_Key(t *testing.T) {
	tests := []struct {
		spec Spec
		want string
	}{
		{Spec{ID: IDSMA, Period: 20}, "sma(20)"},
		{Spec{ID: IDMACDHist, Fast: 12, Slow: 26, Signal: 9}, "macd_hist(12,26,9)"},
		{Spec{ID: IDBBPercentB, Period: 20, Mult: 2}, "bb_percent_b(20,2.00)"},
		{Spec{ID: IDClose}, "close"},
	}

	for _, tt := range tests {
		if got := tt.spec.Key(); got != tt.want {
			t.Errorf("Key() = %s, want %s", got, tt.want)
		}
	}
}
