// Package domain contains core concepts of the conversation engine.
// This file defines Message values and their mutable projection fields.
// Messages are values: every change produces a new Message.
package domain

import (
	"sort"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"
)

// DeletedText replaces the text of a tombstoned message.
const DeletedText = "This message was deleted"

// replyPreviewLength bounds the text kept in a reply summary.
const replyPreviewLength = 80

type Kind string

const (
	KindUser   Kind = "user"
	KindSystem Kind = "system"
)

// ConversationKey identifies a partner or channel timeline.
type ConversationKey string

type GiftPayload struct {
	GiftID string `json:"giftId"`
	Name   string `json:"name"`
	Value  int64  `json:"value"`
}

type InvitePayload struct {
	InviteID  string    `json:"inviteId"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ReplySummary is a snapshot of the replied-to message, not a live reference.
type ReplySummary struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	SenderName string `json:"senderName"`
}

// NewReplySummary truncates the quoted text on a rune boundary.
func NewReplySummary(id, text, senderName string) ReplySummary {
	if utf8.RuneCountInString(text) > replyPreviewLength {
		text = string([]rune(text)[:replyPreviewLength]) + "…"
	}
	return ReplySummary{ID: id, Text: text, SenderName: senderName}
}

// Reactions maps an emoji to the ids of the users who reacted with it.
// Reactor ids are kept sorted and unique.
type Reactions map[string][]string

// NormalizeReactions drops empty emojis and sorts and deduplicates reactor ids.
func NormalizeReactions(r Reactions) Reactions {
	if len(r) == 0 {
		return nil
	}
	res := make(Reactions, len(r))
	for emoji, reactors := range r {
		unique := lo.Uniq(lo.Compact(reactors))
		if emoji == "" || len(unique) == 0 {
			continue
		}
		sort.Strings(unique)
		res[emoji] = unique
	}
	if len(res) == 0 {
		return nil
	}
	return res
}

// Message represents one entry of a conversation timeline.
type Message struct {
	ID              string          `json:"id"`
	ConversationKey ConversationKey `json:"conversationKey,omitempty"`
	SenderID        string          `json:"senderId"`
	RecipientID     string          `json:"recipientId,omitempty"`
	Text            string          `json:"text"`
	Timestamp       time.Time       `json:"timestamp"`
	Kind            Kind            `json:"kind"`
	StickerID       string          `json:"stickerId,omitempty"`
	Gift            *GiftPayload    `json:"gift,omitempty"`
	Invite          *InvitePayload  `json:"invite,omitempty"`
	ReplyTo         *ReplySummary   `json:"replyTo,omitempty"`

	EditedAt  *time.Time           `json:"editedAt,omitempty"`
	Deleted   bool                 `json:"deleted,omitempty"`
	Reactions Reactions            `json:"reactions,omitempty"`
	ReadBy    map[string]time.Time `json:"readBy,omitempty"`

	// Pending marks a tentative local send awaiting server confirmation.
	Pending bool `json:"pending,omitempty"`
}

// Clone returns a copy that shares no mutable state with m.
func (m Message) Clone() Message {
	c := m
	if m.Reactions != nil {
		c.Reactions = make(Reactions, len(m.Reactions))
		for emoji, reactors := range m.Reactions {
			c.Reactions[emoji] = append([]string(nil), reactors...)
		}
	}
	if m.ReadBy != nil {
		c.ReadBy = make(map[string]time.Time, len(m.ReadBy))
		for reader, at := range m.ReadBy {
			c.ReadBy[reader] = at
		}
	}
	if m.EditedAt != nil {
		c.EditedAt = lo.ToPtr(*m.EditedAt)
	}
	return c
}

// IsFrom reports whether userID authored the message.
func (m Message) IsFrom(userID string) bool {
	return m.SenderID == userID
}

// Tombstone returns the deleted representation of m: same id and timestamp,
// content cleared.
func (m Message) Tombstone() Message {
	t := m.Clone()
	t.Deleted = true
	t.Text = DeletedText
	t.Reactions = nil
	t.ReplyTo = nil
	t.StickerID = ""
	t.Gift = nil
	t.Invite = nil
	return t
}
