// internal/storage/run/memory.go
package run

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/quantlab/verdict/internal/core"
)

// MemoryStore is an in-memory run store.
type MemoryStore struct {
	runs    []core.BacktestRun
	maxSize int
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory store with max capacity.
func NewMemoryStore(maxSize int) *MemoryStore {
	return &MemoryStore{
		runs:    make([]core.BacktestRun, 0, maxSize),
		maxSize: maxSize,
	}
}

// Save adds a run to the store.
func (m *MemoryStore) Save(ctx context.Context, run *core.BacktestRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	m.runs = append(m.runs, *run)

	// Trim if over capacity (remove oldest)
	if len(m.runs) > m.maxSize {
		m.runs = m.runs[len(m.runs)-m.maxSize:]
	}

	return nil
}

// GetByID retrieves a run by ID.
func (m *MemoryStore) GetByID(ctx context.Context, id string) (*core.BacktestRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.runs {
		if m.runs[i].ID == id {
			r := m.runs[i]
			return &r, nil
		}
	}
	return nil, core.ErrRunNotFound
}

// List returns runs matching the filter.
func (m *MemoryStore) List(ctx context.Context, filter ListFilter) ([]core.BacktestRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []core.BacktestRun
	for _, r := range m.runs {
		if m.matches(r, filter) {
			result = append(result, r)
		}
	}

	// Apply offset and limit
	if filter.Offset > 0 && filter.Offset < len(result) {
		result = result[filter.Offset:]
	} else if filter.Offset >= len(result) && filter.Offset > 0 {
		return []core.BacktestRun{}, nil
	}

	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

// Count returns the count of matching runs.
func (m *MemoryStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, r := range m.runs {
		if m.matches(r, filter) {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) matches(r core.BacktestRun, filter ListFilter) bool {
	if filter.Symbol != "" && r.Symbol != filter.Symbol {
		return false
	}
	if filter.Status != "" && r.Status != filter.Status {
		return false
	}
	if filter.Stage != 0 && r.Stage != filter.Stage {
		return false
	}
	if !filter.From.IsZero() && r.StartedAt.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && r.StartedAt.After(filter.To) {
		return false
	}
	return true
}
