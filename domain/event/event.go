// Package event defines the inbound events the engine reconciles and the
// change notifications it emits.
package event

import (
	"chat-sync/domain"
	"time"
)

// DomainEvent is anything delivered by the real-time channel.
type DomainEvent interface {
	Name() string
	OccurredAt() time.Time
}

const (
	MessageArrivedName   = "message.arrived"
	HistoryReplayedName  = "history.replayed"
	MessageEditedName    = "message.edited"
	MessageDeletedName   = "message.deleted"
	ReactionsChangedName = "reactions.changed"
	PeerReadName         = "read.peer"
	SelfReadSyncName     = "read.self"
)

// MessageArrived carries one message pushed in real time.
type MessageArrived struct {
	Message domain.Message
}

func (e MessageArrived) Name() string          { return MessageArrivedName }
func (e MessageArrived) OccurredAt() time.Time { return e.Message.Timestamp }

// HistoryReplayed carries the messages replayed after a reconnection.
type HistoryReplayed struct {
	Messages []domain.Message
	At       time.Time
}

func (e HistoryReplayed) Name() string          { return HistoryReplayedName }
func (e HistoryReplayed) OccurredAt() time.Time { return e.At }

// MessageEdited replaces the text of a message. ConversationKey may be empty.
type MessageEdited struct {
	ConversationKey domain.ConversationKey
	MessageID       string
	Text            string
	EditedAt        time.Time
}

func (e MessageEdited) Name() string          { return MessageEditedName }
func (e MessageEdited) OccurredAt() time.Time { return e.EditedAt }

// MessageDeleted tombstones a message. ConversationKey may be empty.
type MessageDeleted struct {
	ConversationKey domain.ConversationKey
	MessageID       string
	At              time.Time
}

func (e MessageDeleted) Name() string          { return MessageDeletedName }
func (e MessageDeleted) OccurredAt() time.Time { return e.At }

// ReactionsChanged carries the authoritative reaction state of a message.
type ReactionsChanged struct {
	ConversationKey domain.ConversationKey
	MessageID       string
	Reactions       domain.Reactions
	At              time.Time
}

func (e ReactionsChanged) Name() string          { return ReactionsChangedName }
func (e ReactionsChanged) OccurredAt() time.Time { return e.At }

// PeerRead reports that ReaderID, the counterpart of the conversation,
// has read messages up to ReadAt.
type PeerRead struct {
	ConversationKey domain.ConversationKey
	ReaderID        string
	ReadAt          time.Time
}

func (e PeerRead) Name() string          { return PeerReadName }
func (e PeerRead) OccurredAt() time.Time { return e.ReadAt }

// SelfReadSync reports that the local user read the conversation on
// another device.
type SelfReadSync struct {
	ConversationKey domain.ConversationKey
	ReadAt          time.Time
}

func (e SelfReadSync) Name() string          { return SelfReadSyncName }
func (e SelfReadSync) OccurredAt() time.Time { return e.ReadAt }
