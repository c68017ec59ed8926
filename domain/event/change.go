package event

import (
	"chat-sync/domain"
	"time"
)

type Reason string

const (
	ReasonMessageAdmitted     Reason = "message_admitted"
	ReasonHistoryLoaded       Reason = "history_loaded"
	ReasonOlderLoaded         Reason = "older_loaded"
	ReasonMessageMutated      Reason = "message_mutated"
	ReasonUnreadChanged       Reason = "unread_changed"
	ReasonLoadingChanged      Reason = "loading_changed"
	ReasonConversationAdded   Reason = "conversation_added"
	ReasonConversationRemoved Reason = "conversation_removed"
	ReasonRestored            Reason = "restored"
)

// Change notifies observers that a conversation's state moved.
// Observers read the new state from the engine; Change carries no payload.
type Change struct {
	Key    domain.ConversationKey
	Reason Reason
	At     time.Time
}
