//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-sync/domain"
	"chat-sync/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// HistoryFetcher returns the newest page when cursor is nil and strictly
// older messages otherwise.
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, key domain.ConversationKey, cursor *string) (domain.HistoryPage, error)
}

type ConversationLister interface {
	ListConversations(ctx context.Context) ([]domain.ConversationSummary, error)
}

// ReadAcker tells the real-time channel the local user read a conversation.
type ReadAcker interface {
	AckRead(ctx context.Context, key domain.ConversationKey) error
}

type MessageSender interface {
	SendMessage(ctx context.Context, key domain.ConversationKey, draft domain.Draft) (domain.Message, error)
}

// ChangeSink observes conversation state changes (UI, notification layer).
type ChangeSink interface {
	Consume(ctx context.Context, change event.Change) error
}

type EventHandler interface {
	Handle(evt event.DomainEvent)
}

type IRegistry interface {
	GetSinks(key domain.ConversationKey) []ChangeSink
}

type SnapshotStore interface {
	Save(snapshot domain.Snapshot) error
	Load() (domain.Snapshot, bool, error)
}

type SnapshotSource interface {
	Snapshot() domain.Snapshot
}
