package coordinator

import (
	"context"
	"log/slog"
	"time"
)

// Worker runs sync passes on an interval. Kick requests an immediate pass,
// for example right after a local edit, without waiting for the next tick.
type Worker struct {
	coordinator *Coordinator
	interval    time.Duration
	kick        chan struct{}
}

// NewWorker creates a background sync worker.
func NewWorker(c *Coordinator, interval time.Duration) *Worker {
	return &Worker{
		coordinator: c,
		interval:    interval,
		kick:        make(chan struct{}, 1),
	}
}

// Kick schedules an immediate sync pass. Safe to call from any goroutine;
// kicks coalesce while a pass is running.
func (w *Worker) Kick() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// Run loops until ctx is cancelled. Failed passes are logged and retried on
// the next tick; being offline is normal for a local-first client.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-w.kick:
		}

		if err := w.coordinator.Sync(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Debug("sync pass failed", "err", err)
		}
	}
}
