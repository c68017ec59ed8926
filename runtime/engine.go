// Package runtime owns the conversation state of a session and wires the
// pure timeline transforms to the external collaborators.
package runtime

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/errors"
	"chat-sync/observability"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// tentativePrefix marks ids of local sends not yet confirmed by the server.
const tentativePrefix = "local-"

var _ contract.EventHandler = (*Engine)(nil)

// Dependencies are the collaborators of the engine. Any of them may be nil;
// the operations that need a missing one become no-ops.
type Dependencies struct {
	Fetcher contract.HistoryFetcher
	Lister  contract.ConversationLister
	Acker   contract.ReadAcker
	Sender  contract.MessageSender
}

// Engine is the queryable conversation state of one session. It is built at
// login and torn down with Logout.
type Engine struct {
	log         *slog.Logger
	localUserID string
	store       *Store
	registry    *Registry
	deps        Dependencies
	metrics     *observability.Metrics
	loads       singleflight.Group
	changes     chan event.Change
	clock       func() time.Time
}

func NewEngine(log *slog.Logger, localUserID string, deps Dependencies, metrics *observability.Metrics, bufferSize int) *Engine {
	if metrics == nil {
		metrics = observability.NewMetrics(nil)
	}
	e := &Engine{
		log:         log,
		localUserID: localUserID,
		registry:    NewRegistry(),
		deps:        deps,
		metrics:     metrics,
		changes:     make(chan event.Change, bufferSize),
		clock:       time.Now,
	}
	e.store = NewStore(log, localUserID, metrics, e.publish)
	return e
}

// publish hands changes to the fan-out without ever blocking a commit.
func (e *Engine) publish(changes ...event.Change) {
	for _, c := range changes {
		select {
		case e.changes <- c:
		default:
			e.metrics.DroppedChanges.Inc()
			e.log.Warn("Change channel full, dropping notification", "conversation", c.Key, "reason", c.Reason)
		}
	}
}

// Changes is drained by the fan-out worker.
func (e *Engine) Changes() <-chan event.Change {
	return e.changes
}

func (e *Engine) Registry() *Registry {
	return e.registry
}

func (e *Engine) LocalUserID() string {
	return e.localUserID
}

func (e *Engine) Timeline(key domain.ConversationKey) []domain.Message {
	return e.store.Timeline(key)
}

func (e *Engine) UnreadCount(key domain.ConversationKey) int {
	return e.store.UnreadCount(key)
}

func (e *Engine) Conversation(key domain.ConversationKey) (domain.ConversationView, bool) {
	return e.store.View(key)
}

func (e *Engine) Conversations() []domain.ConversationView {
	return e.store.Views()
}

func (e *Engine) Subscribe(key domain.ConversationKey, sink contract.ChangeSink) Subscription {
	return e.registry.Subscribe(key, sink)
}

func (e *Engine) SubscribeAll(sink contract.ChangeSink) Subscription {
	return e.registry.SubscribeAll(sink)
}

// Handle applies one real-time event. Nothing is returned: every failure on
// this path is absorbed and logged.
func (e *Engine) Handle(evt event.DomainEvent) {
	switch evt := evt.(type) {
	case event.MessageArrived:
		e.store.Receive(evt.Message, observability.SourceRealtime)
	case event.HistoryReplayed:
		n := e.store.ReceiveBatch(evt.Messages, observability.SourceReplay)
		e.log.Debug("Replay merged", "received", len(evt.Messages), "admitted", n)
	case event.MessageEdited:
		e.store.Edit(evt)
	case event.MessageDeleted:
		e.store.Delete(evt)
	case event.ReactionsChanged:
		e.store.SetReactions(evt)
	case event.PeerRead:
		e.store.PeerRead(evt)
	case event.SelfReadSync:
		if evt.ConversationKey == "" {
			e.log.Debug("Self read sync without conversation")
			return
		}
		e.store.ClearUnread(evt.ConversationKey)
	default:
		e.log.Debug(fmt.Sprintf("Not implemented event : %T", evt))
	}
}

// LoadHistory fetches the newest page of key once per session. Concurrent
// callers of the same session share the same fetch; later calls are no-ops.
// A caller giving up does not cancel the fetch for the others.
func (e *Engine) LoadHistory(ctx context.Context, key domain.ConversationKey) error {
	if key == "" {
		return errors.ErrEmptyConversation
	}
	flight := fmt.Sprintf("%d/%s", e.store.Generation(), key)
	res := e.loads.DoChan(flight, func() (any, error) {
		return nil, e.loadHistory(context.WithoutCancel(ctx), key)
	})
	select {
	case r := <-res:
		return r.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) loadHistory(ctx context.Context, key domain.ConversationKey) error {
	gen, ok := e.store.BeginHistory(key)
	if !ok || e.deps.Fetcher == nil {
		if ok {
			e.store.AbortHistory(key, gen)
		}
		return nil
	}
	page, err := e.deps.Fetcher.FetchHistory(ctx, key, nil)
	if err != nil {
		e.store.AbortHistory(key, gen)
		e.metrics.FetchFailures.WithLabelValues("history").Inc()
		return fmt.Errorf("%w: conversation %s: %w", errors.ErrFetchFailed, key, err)
	}
	if !e.store.CommitHistory(key, gen, page) {
		e.log.Debug("Discarding history", "conversation", key, "error", errors.ErrConversationGone)
	}
	return nil
}

// LoadOlder fetches the page before the oldest loaded message. It is a no-op
// when the cursor is exhausted or a backward fetch is already running.
func (e *Engine) LoadOlder(ctx context.Context, key domain.ConversationKey) error {
	if e.deps.Fetcher == nil {
		return nil
	}
	cursor, gen, ok := e.store.BeginOlder(key)
	if !ok {
		return nil
	}
	page, err := e.deps.Fetcher.FetchHistory(ctx, key, &cursor)
	if err != nil {
		e.store.AbortOlder(key, gen)
		e.metrics.FetchFailures.WithLabelValues("older").Inc()
		return fmt.Errorf("%w: conversation %s, cursor %s: %w", errors.ErrFetchFailed, key, cursor, err)
	}
	if !e.store.CommitOlder(key, gen, page) {
		e.log.Debug("Discarding older page", "conversation", key, "error", errors.ErrConversationGone)
	}
	return nil
}

// MarkRead clears the unread counter locally and acknowledges the read to
// the real-time channel. Only the acknowledgement can fail.
func (e *Engine) MarkRead(ctx context.Context, key domain.ConversationKey) error {
	if key == "" {
		return errors.ErrEmptyConversation
	}
	e.store.ClearUnread(key)
	if e.deps.Acker == nil {
		return nil
	}
	if err := e.deps.Acker.AckRead(ctx, key); err != nil {
		e.metrics.FetchFailures.WithLabelValues("ack").Inc()
		return fmt.Errorf("%w: conversation %s: %w", errors.ErrAckFailed, key, err)
	}
	return nil
}

// Open focuses key and marks it read.
func (e *Engine) Open(ctx context.Context, key domain.ConversationKey) error {
	if key == "" {
		return errors.ErrEmptyConversation
	}
	e.store.SetActive(key)
	return e.MarkRead(ctx, key)
}

// Close removes the focus; later arrivals count as unread again.
func (e *Engine) Close() {
	e.store.SetActive("")
}

// HydrateConversations loads the conversation list snapshot once at session start.
func (e *Engine) HydrateConversations(ctx context.Context) error {
	if e.deps.Lister == nil {
		return nil
	}
	summaries, err := e.deps.Lister.ListConversations(ctx)
	if err != nil {
		e.metrics.FetchFailures.WithLabelValues("list").Inc()
		return fmt.Errorf("%w: conversation list: %w", errors.ErrFetchFailed, err)
	}
	e.store.Hydrate(summaries)
	e.log.Info(fmt.Sprintf("%d conversations hydrated", len(summaries)))
	return nil
}

// Send applies the draft tentatively, then replaces it with the server's
// message or removes it when the send fails.
func (e *Engine) Send(ctx context.Context, key domain.ConversationKey, draft domain.Draft) (domain.Message, error) {
	if key == "" {
		return domain.Message{}, errors.ErrEmptyConversation
	}
	if e.deps.Sender == nil {
		return domain.Message{}, fmt.Errorf("%w: no sender configured", errors.ErrSendFailed)
	}
	tentative := domain.Message{
		ID:          tentativePrefix + uuid.NewString(),
		SenderID:    e.localUserID,
		RecipientID: string(key),
		Text:        draft.Text,
		Timestamp:   e.clock(),
		Kind:        domain.KindUser,
		StickerID:   draft.StickerID,
		Gift:        draft.Gift,
		Invite:      draft.Invite,
		ReplyTo:     draft.ReplyTo,
	}
	e.store.AddTentative(key, tentative)

	confirmed, err := e.deps.Sender.SendMessage(ctx, key, draft)
	if err != nil {
		e.store.Rollback(key, tentative.ID)
		return domain.Message{}, fmt.Errorf("%w: conversation %s: %w", errors.ErrSendFailed, key, err)
	}
	e.store.Confirm(key, tentative.ID, confirmed)
	return confirmed, nil
}

// Logout tears the whole session state down.
func (e *Engine) Logout() {
	e.store.Teardown()
	e.log.Info("Conversation state torn down")
}

func (e *Engine) Snapshot() domain.Snapshot {
	return e.store.Snapshot()
}

func (e *Engine) Restore(snapshot domain.Snapshot) error {
	return e.store.Restore(snapshot)
}
