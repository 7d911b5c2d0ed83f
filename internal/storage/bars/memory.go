package bars

import (
	"context"
	"sync"
	"time"

	"github.com/quantlab/verdict/internal/core"
)

type seriesKey struct {
	symbol    string
	timeframe core.Timeframe
}

// MemoryStore is an in-memory bar store, useful for tests and for running
// against pre-loaded data without a database file.
type MemoryStore struct {
	series map[seriesKey][]core.Bar
	mu     sync.RWMutex
}

// NewMemoryStore creates an empty in-memory bar store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{series: make(map[seriesKey][]core.Bar)}
}

// SaveBars appends bars for one symbol and timeframe. Bars are assumed to
// arrive in timestamp order.
func (m *MemoryStore) SaveBars(ctx context.Context, symbol string, timeframe core.Timeframe, bars []core.Bar) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := seriesKey{symbol: symbol, timeframe: timeframe}
	m.series[key] = append(m.series[key], bars...)
	return nil
}

// Fetch returns bars in [start, end) ordered by timestamp.
func (m *MemoryStore) Fetch(ctx context.Context, symbol string, timeframe core.Timeframe, start, end time.Time) ([]core.Bar, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []core.Bar
	for _, b := range m.series[seriesKey{symbol: symbol, timeframe: timeframe}] {
		if !b.Time.Before(start) && b.Time.Before(end) {
			out = append(out, b)
		}
	}
	return out, nil
}
