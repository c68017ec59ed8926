package runtime

import (
	"chat-sync/domain"
	"chat-sync/domain/event"
	"log/slog"
	"sync"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
)

const (
	me  = "me"
	bob = "bob"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func at(seconds int) time.Time {
	return epoch.Add(time.Duration(seconds) * time.Second)
}

func testLogger() *slog.Logger {
	return logs.GetLoggerFromLevel(slog.LevelDebug)
}

func fromBob(id string, seconds int) domain.Message {
	return domain.Message{ID: id, SenderID: bob, RecipientID: me, Text: "text " + id, Timestamp: at(seconds), Kind: domain.KindUser}
}

func toBob(id string, seconds int) domain.Message {
	return domain.Message{ID: id, SenderID: me, RecipientID: bob, Text: "text " + id, Timestamp: at(seconds), Kind: domain.KindUser}
}

func ids(timeline []domain.Message) []string {
	return lo.Map(timeline, func(m domain.Message, _ int) string { return m.ID })
}

// recorder collects the changes published by a store.
type recorder struct {
	mu      sync.Mutex
	changes []event.Change
}

func (r *recorder) notify(changes ...event.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, changes...)
}

func (r *recorder) reasons(key domain.ConversationKey) []event.Reason {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.FilterMap(r.changes, func(c event.Change, _ int) (event.Reason, bool) {
		return c.Reason, c.Key == key
	})
}

func newTestStore() (*Store, *recorder) {
	rec := &recorder{}
	return NewStore(testLogger(), me, nil, rec.notify), rec
}
