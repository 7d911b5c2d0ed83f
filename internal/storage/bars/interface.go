// internal/storage/bars/interface.go
package bars

import (
	"context"
	"time"

	"github.com/quantlab/verdict/internal/core"
)

// Store defines the interface for historical bar persistence. Fetch matches
// the backtest engine's BarProvider signature, so any Store can feed the
// engine directly.
type Store interface {
	// SaveBars upserts a batch of bars for one symbol and timeframe.
	SaveBars(ctx context.Context, symbol string, timeframe core.Timeframe, bars []core.Bar) error

	// Fetch returns bars in [start, end) ordered by timestamp.
	Fetch(ctx context.Context, symbol string, timeframe core.Timeframe, start, end time.Time) ([]core.Bar, error)
}
