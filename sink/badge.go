package sink

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/domain/event"
	"context"
	"sync"

	"github.com/samber/lo"
)

var _ contract.ChangeSink = (*Badge)(nil)

// UnreadSource is the part of the engine the badge reads from.
type UnreadSource interface {
	UnreadCount(key domain.ConversationKey) int
}

// Badge keeps the total number of unread messages across conversations,
// for an application icon or a notification layer.
type Badge struct {
	mu       sync.RWMutex
	source   UnreadSource
	counts   map[domain.ConversationKey]int
	onChange func(total int)
}

// NewBadge calls onChange, when not nil, each time the total moves.
func NewBadge(source UnreadSource, onChange func(total int)) *Badge {
	return &Badge{source: source, counts: make(map[domain.ConversationKey]int), onChange: onChange}
}

func (b *Badge) Consume(_ context.Context, c event.Change) error {
	switch c.Reason {
	case event.ReasonUnreadChanged, event.ReasonRestored, event.ReasonConversationAdded:
		b.set(c.Key, b.source.UnreadCount(c.Key))
	case event.ReasonConversationRemoved:
		b.set(c.Key, 0)
	}
	return nil
}

func (b *Badge) set(key domain.ConversationKey, n int) {
	b.mu.Lock()
	before := b.total()
	if n == 0 {
		delete(b.counts, key)
	} else {
		b.counts[key] = n
	}
	after := b.total()
	b.mu.Unlock()
	if before != after && b.onChange != nil {
		b.onChange(after)
	}
}

func (b *Badge) Total() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.total()
}

func (b *Badge) total() int {
	return lo.Sum(lo.Values(b.counts))
}
