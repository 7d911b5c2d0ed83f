// internal/storage/archive/runs.go
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/quantlab/verdict/internal/core"
)

// RunArchiver stores completed run records as JSON on a Storage backend,
// keyed by symbol and run ID. Failed runs are archived too; the record
// itself carries the failure.
type RunArchiver struct {
	storage Storage
}

// NewRunArchiver creates an archiver over the given backend.
func NewRunArchiver(storage Storage) *RunArchiver {
	return &RunArchiver{storage: storage}
}

func runPath(symbol, id string) string {
	return path.Join("runs", symbol, id+".json")
}

// ArchiveRun persists one run record.
func (a *RunArchiver) ArchiveRun(ctx context.Context, run *core.BacktestRun) error {
	if run.ID == "" {
		return fmt.Errorf("cannot archive a run without an ID")
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling run %s: %w", run.ID, err)
	}
	return a.storage.Write(ctx, runPath(run.Symbol, run.ID), data)
}

// LoadRun retrieves an archived run record.
func (a *RunArchiver) LoadRun(ctx context.Context, symbol, id string) (*core.BacktestRun, error) {
	data, err := a.storage.Read(ctx, runPath(symbol, id))
	if err != nil {
		return nil, core.WrapError(core.ErrRunNotFound, err)
	}

	var run core.BacktestRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("unmarshaling run %s: %w", id, err)
	}
	return &run, nil
}

// ListRuns returns the IDs of all archived runs for a symbol.
func (a *RunArchiver) ListRuns(ctx context.Context, symbol string) ([]string, error) {
	paths, err := a.storage.List(ctx, path.Join("runs", symbol))
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(paths))
	for _, p := range paths {
		base := path.Base(p)
		if ext := path.Ext(base); ext == ".json" {
			ids = append(ids, base[:len(base)-len(ext)])
		}
	}
	return ids, nil
}
