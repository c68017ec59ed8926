// Package timeline holds the pure transforms over conversation timelines:
// the identity index, the merge engine and the mutation applier.
// Nothing here locks; callers commit results under their own serialization.
package timeline

import "chat-sync/domain"

// IdentityIndex records every message id ever admitted and the conversation
// that owns it. Ids are only forgotten when the session is torn down.
type IdentityIndex struct {
	owners map[string]domain.ConversationKey
}

func NewIdentityIndex() *IdentityIndex {
	return &IdentityIndex{owners: make(map[string]domain.ConversationKey)}
}

func (x *IdentityIndex) Has(id string) bool {
	_, ok := x.owners[id]
	return ok
}

func (x *IdentityIndex) Add(id string, key domain.ConversationKey) {
	x.owners[id] = key
}

// Owner returns the conversation a known id was admitted into.
func (x *IdentityIndex) Owner(id string) (domain.ConversationKey, bool) {
	key, ok := x.owners[id]
	return key, ok
}

func (x *IdentityIndex) Len() int {
	return len(x.owners)
}

func (x *IdentityIndex) Reset() {
	x.owners = make(map[string]domain.ConversationKey)
}
