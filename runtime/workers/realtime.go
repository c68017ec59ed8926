package workers

import (
	"chat-sync/contract"
	"chat-sync/domain/event"
	"context"
	"log/slog"
)

// RealtimeWorker is the single consumer of the inbound event channel. Events
// reach the handler one at a time, in arrival order.
type RealtimeWorker struct {
	log     *slog.Logger
	events  <-chan event.DomainEvent
	handler contract.EventHandler
}

func NewRealtimeWorker(log *slog.Logger, events <-chan event.DomainEvent, handler contract.EventHandler) *RealtimeWorker {
	return &RealtimeWorker{log: log, events: events, handler: handler}
}

func (w *RealtimeWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping realtime dispatch")
			return nil
		case evt, ok := <-w.events:
			if !ok {
				w.log.Info("Realtime event channel closed")
				return nil
			}
			w.handler.Handle(evt)
		}
	}
}
