package domain

import "time"

// ConversationView is a read-only copy of one conversation's state.
type ConversationView struct {
	Key             ConversationKey
	Messages        []Message
	Cursor          *string
	IsLoadingOlder  bool
	IsHistoryLoaded bool
	UnreadCount     int
	LastMessage     *Message
	LastActivity    time.Time
}

// HistoryPage is one page returned by a history fetch.
// A nil NextCursor means no older page exists.
type HistoryPage struct {
	Messages   []Message `json:"messages"`
	NextCursor *string   `json:"nextCursor"`
}

// ConversationSummary is one entry of the conversation list snapshot.
type ConversationSummary struct {
	PartnerID   ConversationKey `json:"partnerId"`
	UnreadCount int             `json:"unreadCount"`
	LastMessage *Message        `json:"lastMessage,omitempty"`
}

// Draft is a message composed locally, before the server assigned an id.
type Draft struct {
	Text      string         `json:"text"`
	StickerID string         `json:"stickerId,omitempty"`
	Gift      *GiftPayload   `json:"gift,omitempty"`
	Invite    *InvitePayload `json:"invite,omitempty"`
	ReplyTo   *ReplySummary  `json:"replyTo,omitempty"`
}

// Snapshot is the persisted form of the whole store.
type Snapshot struct {
	LocalUserID   string                 `json:"localUserId"`
	Conversations []ConversationSnapshot `json:"conversations"`
}

// ConversationSnapshot is the persisted state of one conversation. NeverPaged
// is set when no page was committed yet: a nil Cursor then means unknown
// rather than exhausted.
type ConversationSnapshot struct {
	Key         ConversationKey `json:"key"`
	Messages    []Message       `json:"messages"`
	Cursor      *string         `json:"cursor,omitempty"`
	NeverPaged  bool            `json:"neverPaged,omitempty"`
	UnreadCount int             `json:"unreadCount"`
	LastMessage *Message        `json:"lastMessage,omitempty"`
}
