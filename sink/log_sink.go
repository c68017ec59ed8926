// Package sink holds change observers shipped with the engine binary.
package sink

import (
	"chat-sync/contract"
	"chat-sync/domain/event"
	"context"
	"log/slog"
)

var _ contract.ChangeSink = (*LogSink)(nil)

// LogSink traces every change notification.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(log *slog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Consume(_ context.Context, c event.Change) error {
	s.log.Debug("Conversation changed", "conversation", c.Key, "reason", c.Reason, "at", c.At)
	return nil
}
