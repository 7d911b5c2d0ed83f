package bars

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/quantlab/verdict/internal/core"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "bars.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_SaveAndFetch(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	if err := store.SaveBars(ctx, "EURUSD", core.Timeframe15m, sampleBars(10, start)); err != nil {
		t.Fatalf("SaveBars failed: %v", err)
	}

	got, err := store.Fetch(ctx, "EURUSD", core.Timeframe15m, start, start.Add(5*15*time.Minute))
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(got) != 5 {
		t.Errorf("expected 5 bars, got %d", len(got))
	}
	if !got[0].Time.Equal(start) {
		t.Errorf("first bar at %v, want %v", got[0].Time, start)
	}
}

func TestSQLiteStore_UpsertDeduplicates(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	bars := sampleBars(5, start)
	store.SaveBars(ctx, "EURUSD", core.Timeframe15m, bars)
	store.SaveBars(ctx, "EURUSD", core.Timeframe15m, bars) // same batch again

	got, _ := store.Fetch(ctx, "EURUSD", core.Timeframe15m, start, start.AddDate(0, 0, 1))
	if len(got) != 5 {
		t.Errorf("expected 5 bars after duplicate save, got %d", len(got))
	}
}

func TestSQLiteStore_Freshness(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	ts, err := store.Freshness(ctx, "EURUSD", core.Timeframe15m)
	if err != nil {
		t.Fatalf("Freshness failed: %v", err)
	}
	if !ts.IsZero() {
		t.Errorf("empty store freshness = %v, want zero", ts)
	}

	store.SaveBars(ctx, "EURUSD", core.Timeframe15m, sampleBars(3, start))

	ts, err = store.Freshness(ctx, "EURUSD", core.Timeframe15m)
	if err != nil {
		t.Fatalf("Freshness failed: %v", err)
	}
	want := start.Add(2 * 15 * time.Minute)
	if !ts.Equal(want) {
		t.Errorf("freshness = %v, want %v", ts, want)
	}
}
