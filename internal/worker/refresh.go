// Package worker hosts background loops that run alongside the HTTP server.
package worker

import (
	"context"
	"log/slog"
	"time"
)

// SnapshotLoader defines the engine operation needed by the refresh worker.
type SnapshotLoader interface {
	Load(ctx context.Context) error
}

// LoadErrorRecorder receives the outcome of each refresh so liveness
// reporting can surface the last failure.
type LoadErrorRecorder interface {
	RecordLoadError(err error)
}

// SnapshotRefreshWorker periodically rebuilds the engine snapshot so catalog
// changes written by seeding land without an explicit reload call.
type SnapshotRefreshWorker struct {
	loader   SnapshotLoader
	recorder LoadErrorRecorder
	interval time.Duration
}

// NewSnapshotRefreshWorker creates a worker. recorder may be nil.
func NewSnapshotRefreshWorker(loader SnapshotLoader, recorder LoadErrorRecorder, interval time.Duration) *SnapshotRefreshWorker {
	return &SnapshotRefreshWorker{
		loader:   loader,
		recorder: recorder,
		interval: interval,
	}
}

// Run starts the worker loop. Blocks until ctx is cancelled.
// Does NOT run immediately on start (the server loads once at startup).
func (w *SnapshotRefreshWorker) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "snapshot-refresh",
		"interval", w.interval.String(),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "snapshot-refresh",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

// refresh executes a single reload cycle.
func (w *SnapshotRefreshWorker) refresh(ctx context.Context) {
	start := time.Now()

	err := w.loader.Load(ctx)
	if w.recorder != nil {
		w.recorder.RecordLoadError(err)
	}
	if err != nil {
		// Check for graceful shutdown
		if ctx.Err() != nil {
			return
		}
		slog.Error("snapshot refresh failed",
			"component", "worker",
			"action", "refresh_failed",
			"error", err,
		)
		return
	}

	slog.Info("snapshot refresh completed",
		"component", "worker",
		"action", "refresh_complete",
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
