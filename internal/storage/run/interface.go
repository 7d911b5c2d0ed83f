// internal/storage/run/interface.go
package run

import (
	"context"
	"time"

	"github.com/quantlab/verdict/internal/core"
)

// Store defines the interface for backtest run persistence.
type Store interface {
	// Save persists a run record, assigning an ID when missing.
	Save(ctx context.Context, run *core.BacktestRun) error

	// GetByID retrieves a run by its ID.
	GetByID(ctx context.Context, id string) (*core.BacktestRun, error)

	// List retrieves runs matching the filter.
	List(ctx context.Context, filter ListFilter) ([]core.BacktestRun, error)

	// Count returns the number of runs matching the filter.
	Count(ctx context.Context, filter ListFilter) (int, error)
}

// ListFilter defines criteria for listing runs.
type ListFilter struct {
	Symbol string
	Status core.RunStatus
	Stage  core.Stage
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}
