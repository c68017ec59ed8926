package ws

import (
	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/errors"
	"encoding/json"
	"fmt"
	"time"
)

// Envelope types of the real-time channel.
const (
	TypeMessageNew       = "message.new"
	TypeMessageEdited    = "message.edited"
	TypeMessageDeleted   = "message.deleted"
	TypeMessageReactions = "message.reactions"
	TypeMessageRead      = "message.read"
	TypeMessagesReplay   = "messages.replay"
)

// Envelope is the wire format of every frame, in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type editedPayload struct {
	ConversationID string    `json:"conversationId"`
	MessageID      string    `json:"messageId"`
	Text           string    `json:"text"`
	EditedAt       time.Time `json:"editedAt"`
}

type deletedPayload struct {
	ConversationID string    `json:"conversationId"`
	MessageID      string    `json:"messageId"`
	DeletedAt      time.Time `json:"deletedAt"`
}

type reactionsPayload struct {
	ConversationID string           `json:"conversationId"`
	MessageID      string           `json:"messageId"`
	Reactions      domain.Reactions `json:"reactions"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

type readPayload struct {
	ConversationID string    `json:"conversationId"`
	ActorID        string    `json:"actorId"`
	ReadAt         time.Time `json:"readAt"`
}

type replayPayload struct {
	Messages []domain.Message `json:"messages"`
}

// ackPayload is sent with TypeMessageRead when the local user reads a conversation.
type ackPayload struct {
	ConversationID string `json:"conversationId"`
}

// Decoder turns envelopes into domain events for one local user.
type Decoder struct {
	localUserID string
	clock       func() time.Time
}

func NewDecoder(localUserID string) Decoder {
	return Decoder{localUserID: localUserID, clock: time.Now}
}

// Decode returns a nil event for envelope types the engine does not handle.
func (d Decoder) Decode(env Envelope) (event.DomainEvent, error) {
	switch env.Type {
	case TypeMessageNew:
		var m domain.Message
		if err := unmarshal(env, &m); err != nil {
			return nil, err
		}
		if m.ID == "" {
			return nil, fmt.Errorf("%w: %s without id", errors.ErrInvalidPayload, env.Type)
		}
		return event.MessageArrived{Message: m}, nil
	case TypeMessageEdited:
		var p editedPayload
		if err := unmarshalTarget(env, &p, func() string { return p.MessageID }); err != nil {
			return nil, err
		}
		return event.MessageEdited{
			ConversationKey: domain.ConversationKey(p.ConversationID),
			MessageID:       p.MessageID,
			Text:            p.Text,
			EditedAt:        d.orNow(p.EditedAt),
		}, nil
	case TypeMessageDeleted:
		var p deletedPayload
		if err := unmarshalTarget(env, &p, func() string { return p.MessageID }); err != nil {
			return nil, err
		}
		return event.MessageDeleted{
			ConversationKey: domain.ConversationKey(p.ConversationID),
			MessageID:       p.MessageID,
			At:              d.orNow(p.DeletedAt),
		}, nil
	case TypeMessageReactions:
		var p reactionsPayload
		if err := unmarshalTarget(env, &p, func() string { return p.MessageID }); err != nil {
			return nil, err
		}
		return event.ReactionsChanged{
			ConversationKey: domain.ConversationKey(p.ConversationID),
			MessageID:       p.MessageID,
			Reactions:       p.Reactions,
			At:              d.orNow(p.UpdatedAt),
		}, nil
	case TypeMessageRead:
		return d.decodeRead(env)
	case TypeMessagesReplay:
		var p replayPayload
		if err := unmarshal(env, &p); err != nil {
			return nil, err
		}
		return event.HistoryReplayed{Messages: p.Messages, At: d.clock()}, nil
	default:
		return nil, nil
	}
}

// decodeRead splits the single wire shape into the two read events: the
// local user reading on another device, or the counterpart reading.
func (d Decoder) decodeRead(env Envelope) (event.DomainEvent, error) {
	var p readPayload
	if err := unmarshal(env, &p); err != nil {
		return nil, err
	}
	if p.ActorID == "" {
		return nil, fmt.Errorf("%w: %s without actor", errors.ErrInvalidPayload, env.Type)
	}
	readAt := d.orNow(p.ReadAt)
	if p.ActorID == d.localUserID {
		if p.ConversationID == "" {
			return nil, fmt.Errorf("%w: own read receipt without conversation", errors.ErrInvalidPayload)
		}
		return event.SelfReadSync{ConversationKey: domain.ConversationKey(p.ConversationID), ReadAt: readAt}, nil
	}
	return event.PeerRead{
		ConversationKey: domain.ConversationKey(p.ConversationID),
		ReaderID:        p.ActorID,
		ReadAt:          readAt,
	}, nil
}

func (d Decoder) orNow(t time.Time) time.Time {
	if t.IsZero() {
		return d.clock()
	}
	return t
}

func unmarshal(env Envelope, v any) error {
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("%w: %s: %w", errors.ErrInvalidPayload, env.Type, err)
	}
	return nil
}

func unmarshalTarget(env Envelope, v any, messageID func() string) error {
	if err := unmarshal(env, v); err != nil {
		return err
	}
	if messageID() == "" {
		return fmt.Errorf("%w: %s without message id", errors.ErrInvalidPayload, env.Type)
	}
	return nil
}
