// internal/storage/archive/runs_test.go
package archive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quantlab/verdict/internal/core"
)

func testRun(id, symbol string) *core.BacktestRun {
	return &core.BacktestRun{
		ID:        id,
		Symbol:    symbol,
		Timeframe: core.Timeframe15m,
		Stage:     core.Stage1,
		Status:    core.RunStatusCompleted,
		Summary:   core.Summary{TotalTrades: 3, WinRate: 2.0 / 3.0},
		StartedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestRunArchiver_RoundTrip(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())
	archiver := NewRunArchiver(fs)
	ctx := context.Background()

	run := testRun("run-1", "EURUSD")
	if err := archiver.ArchiveRun(ctx, run); err != nil {
		t.Fatalf("ArchiveRun failed: %v", err)
	}

	loaded, err := archiver.LoadRun(ctx, "EURUSD", "run-1")
	if err != nil {
		t.Fatalf("LoadRun failed: %v", err)
	}
	if loaded.ID != run.ID || loaded.Symbol != run.Symbol {
		t.Errorf("loaded %s/%s, want %s/%s", loaded.Symbol, loaded.ID, run.Symbol, run.ID)
	}
	if loaded.Summary.TotalTrades != 3 {
		t.Errorf("TotalTrades = %d, want 3", loaded.Summary.TotalTrades)
	}
}

func TestRunArchiver_MissingRun(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())
	archiver := NewRunArchiver(fs)

	_, err := archiver.LoadRun(context.Background(), "EURUSD", "missing")
	if !errors.Is(err, core.ErrRunNotFound) {
		t.Errorf("err = %v, want ErrRunNotFound", err)
	}
}

func TestRunArchiver_RequiresID(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())
	archiver := NewRunArchiver(fs)

	run := testRun("", "EURUSD")
	if err := archiver.ArchiveRun(context.Background(), run); err == nil {
		t.Error("expected error archiving run without ID")
	}
}

func TestRunArchiver_ListRuns(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())
	archiver := NewRunArchiver(fs)
	ctx := context.Background()

	archiver.ArchiveRun(ctx, testRun("run-1", "EURUSD"))
	archiver.ArchiveRun(ctx, testRun("run-2", "EURUSD"))
	archiver.ArchiveRun(ctx, testRun("run-3", "USDJPY"))

	ids, err := archiver.ListRuns(ctx, "EURUSD")
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("expected 2 runs, got %d: %v", len(ids), ids)
	}
}
