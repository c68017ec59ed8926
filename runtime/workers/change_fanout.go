package workers

import (
	"chat-sync/contract"
	"chat-sync/domain/event"
	"context"
	"log/slog"
	"time"
)

// ChangeFanout delivers change notifications to the sinks subscribed to the
// changed conversation.
//
// Delivery is best effort: a sink that fails or exceeds the timeout only
// loses that notification. Sinks are observers and read the current state
// from the engine, so a lost notification is recovered by the next one.
type ChangeFanout struct {
	log         *slog.Logger
	changes     <-chan event.Change
	registry    contract.IRegistry
	sinkTimeout time.Duration
}

func NewChangeFanout(log *slog.Logger, changes <-chan event.Change, registry contract.IRegistry, sinkTimeout time.Duration) *ChangeFanout {
	return &ChangeFanout{log: log, changes: changes, registry: registry, sinkTimeout: sinkTimeout}
}

func (w *ChangeFanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping change fan-out")
			return nil
		case change, ok := <-w.changes:
			if !ok {
				return nil
			}
			w.Fanout(ctx, change)
		}
	}
}

// Fanout hands one change to every interested sink, in subscription order
// of the registry, each call bounded by the sink timeout.
func (w *ChangeFanout) Fanout(ctx context.Context, change event.Change) {
	for _, sink := range w.registry.GetSinks(change.Key) {
		w.deliver(ctx, sink, change)
	}
}

func (w *ChangeFanout) deliver(ctx context.Context, sink contract.ChangeSink, change event.Change) {
	sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
	defer cancel()
	if err := sink.Consume(sinkCtx, change); err != nil {
		w.log.Warn("Sink failed to consume change", "conversation", change.Key, "reason", change.Reason, "error", err)
	}
}
