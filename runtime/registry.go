package runtime

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"sync"

	"github.com/google/uuid"
)

// allConversations is the registry slot of subscribers to every conversation.
const allConversations domain.ConversationKey = ""

type sinkSet map[uuid.UUID]contract.ChangeSink

// Registry maps conversations to the sinks observing them.
type Registry struct {
	mu    sync.RWMutex
	sinks map[domain.ConversationKey]sinkSet
}

func NewRegistry() *Registry {
	return &Registry{sinks: make(map[domain.ConversationKey]sinkSet)}
}

// Subscription is the handle returned by Subscribe. Unsubscribe is idempotent.
type Subscription struct {
	id       uuid.UUID
	key      domain.ConversationKey
	registry *Registry
	once     *sync.Once
}

func (s Subscription) Unsubscribe() {
	if s.registry == nil {
		return
	}
	s.once.Do(func() { s.registry.unsubscribe(s.key, s.id) })
}

// Subscribe registers sink for the changes of one conversation.
// An empty key subscribes to every conversation.
func (r *Registry) Subscribe(key domain.ConversationKey, sink contract.ChangeSink) Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.New()
	if _, ok := r.sinks[key]; !ok {
		r.sinks[key] = make(sinkSet)
	}
	r.sinks[key][id] = sink
	return Subscription{id: id, key: key, registry: r, once: &sync.Once{}}
}

func (r *Registry) SubscribeAll(sink contract.ChangeSink) Subscription {
	return r.Subscribe(allConversations, sink)
}

// unsubscribe removes one subscription and drops empty sets so keys of
// closed conversations do not pile up.
func (r *Registry) unsubscribe(key domain.ConversationKey, id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if set, ok := r.sinks[key]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(r.sinks, key)
		}
	}
}

// GetSinks returns the sinks of key followed by the sinks of every conversation.
func (r *Registry) GetSinks(key domain.ConversationKey) []contract.ChangeSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var res []contract.ChangeSink
	if key != allConversations {
		for _, sink := range r.sinks[key] {
			res = append(res, sink)
		}
	}
	for _, sink := range r.sinks[allConversations] {
		res = append(res, sink)
	}
	return res
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, set := range r.sinks {
		n += len(set)
	}
	return n
}
