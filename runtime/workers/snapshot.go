package workers

import (
	"chat-sync/contract"
	"context"
	"log/slog"
	"time"
)

// SnapshotWorker periodically persists the engine state and saves it one
// last time when stopped.
type SnapshotWorker struct {
	log      *slog.Logger
	source   contract.SnapshotSource
	store    contract.SnapshotStore
	interval time.Duration
}

func NewSnapshotWorker(log *slog.Logger, source contract.SnapshotSource, store contract.SnapshotStore, interval time.Duration) *SnapshotWorker {
	return &SnapshotWorker{log: log, source: source, store: store, interval: interval}
}

func (w *SnapshotWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.save()
			return nil
		case <-ticker.C:
			w.save()
		}
	}
}

func (w *SnapshotWorker) save() {
	snapshot := w.source.Snapshot()
	if err := w.store.Save(snapshot); err != nil {
		w.log.Error("Unable to persist snapshot", "error", err)
		return
	}
	w.log.Debug("Snapshot persisted", "conversations", len(snapshot.Conversations))
}
