package indicator

import (
	"fmt"
	"math"

	"github.com/quantlab/verdict/internal/core"
)

// Indicator IDs understood by the cache.
const (
	IDSMA        = "sma"
	IDEMA        = "ema"
	IDRSI        = "rsi"
	IDMACD       = "macd"
	IDMACDSignal = "macd_signal"
	IDMACDHist   = "macd_hist"
	IDBBUpper    = "bb_upper"
	IDBBLower    = "bb_lower"
	IDBBPercentB = "bb_percent_b"

	// Raw price fields, usable wherever an indicator is expected.
	IDOpen   = "open"
	IDHigh   = "high"
	IDLow    = "low"
	IDClose  = "close"
	IDVolume = "volume"
)

// Spec identifies one indicator series by id and parameters.
// The zero value of an unused parameter is ignored by Key.
type Spec struct {
	ID     string
	Period int
	Fast   int
	Slow   int
	Signal int
	Mult   float64
}

// Key returns the canonical cache key for the spec.
func (s Spec) Key() string {
	switch s.ID {
	case IDMACD, IDMACDSignal, IDMACDHist:
		return fmt.Sprintf("%s(%d,%d,%d)", s.ID, s.Fast, s.Slow, s.Signal)
	case IDBBUpper, IDBBLower, IDBBPercentB:
		return fmt.Sprintf("%s(%d,%.2f)", s.ID, s.Period, s.Mult)
	case IDOpen, IDHigh, IDLow, IDClose, IDVolume:
		return s.ID
	default:
		return fmt.Sprintf("%s(%d)", s.ID, s.Period)
	}
}

// Cache is a per-run indicator arena: each series is computed once over the
// whole bar range and reused across all bar indices. It is owned exclusively
// by one run's evaluation context and must not be shared between runs.
type Cache struct {
	bars   []core.Bar
	closes []float64
	series map[string][]float64
}

// NewCache creates a cache over the given bar range.
func NewCache(bars []core.Bar) *Cache {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return &Cache{
		bars:   bars,
		closes: closes,
		series: make(map[string][]float64),
	}
}

// Len returns the number of bars backing the cache.
func (c *Cache) Len() int {
	return len(c.bars)
}

// Series returns the full value series for the spec, computing it on first
// use. Unknown indicator ids yield an all-NaN series so that condition
// leaves resolve to false instead of failing.
func (c *Cache) Series(spec Spec) []float64 {
	key := spec.Key()
	if s, ok := c.series[key]; ok {
		return s
	}
	s := c.compute(spec)
	c.series[key] = s
	return s
}

// Value returns the spec's value at bar index i, or NaN when the index is
// out of range or the value is unavailable.
func (c *Cache) Value(spec Spec, i int) float64 {
	s := c.Series(spec)
	if i < 0 || i >= len(s) {
		return math.NaN()
	}
	return s[i]
}

func (c *Cache) compute(spec Spec) []float64 {
	switch spec.ID {
	case IDSMA:
		return SMA(c.closes, spec.Period)
	case IDEMA:
		return EMA(c.closes, spec.Period)
	case IDRSI:
		return RSI(c.closes, spec.Period)
	case IDMACD:
		line, _, _ := MACD(c.closes, spec.Fast, spec.Slow, spec.Signal)
		return line
	case IDMACDSignal:
		_, signal, _ := MACD(c.closes, spec.Fast, spec.Slow, spec.Signal)
		return signal
	case IDMACDHist:
		_, _, hist := MACD(c.closes, spec.Fast, spec.Slow, spec.Signal)
		return hist
	case IDBBUpper:
		return Bollinger(c.closes, spec.Period, spec.Mult).Upper
	case IDBBLower:
		return Bollinger(c.closes, spec.Period, spec.Mult).Lower
	case IDBBPercentB:
		return Bollinger(c.closes, spec.Period, spec.Mult).PercentB
	case IDOpen:
		return c.field(func(b core.Bar) float64 { return b.Open })
	case IDHigh:
		return c.field(func(b core.Bar) float64 { return b.High })
	case IDLow:
		return c.field(func(b core.Bar) float64 { return b.Low })
	case IDClose:
		return c.field(func(b core.Bar) float64 { return b.Close })
	case IDVolume:
		return c.field(func(b core.Bar) float64 { return b.Volume })
	default:
		return nanSeries(len(c.bars))
	}
}

func (c *Cache) field(get func(core.Bar) float64) []float64 {
	s := make([]float64, len(c.bars))
	for i, b := range c.bars {
		s[i] = get(b)
	}
	return s
}
