package runtime

import (
	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/errors"
	"chat-sync/observability"
	"chat-sync/timeline"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
)

// Notifier receives the changes produced by a commit, after the store lock
// has been released.
type Notifier func(changes ...event.Change)

// paged is set once the cursor came from a committed older page, the first
// newest page or a restore. The newest page never moves it afterwards.
type conversation struct {
	key            domain.ConversationKey
	messages       []domain.Message
	cursor         *string
	paged          bool
	loadingHistory bool
	loadingOlder   bool
	historyLoaded  bool
	unread         Unread
	lastMessage    *domain.Message
	lastActivity   time.Time
}

// Store owns every conversation of the session and the identity index.
// Every read-modify-write runs under one lock; network I/O never does.
type Store struct {
	mu            sync.Mutex
	log           *slog.Logger
	metrics       *observability.Metrics
	notify        Notifier
	clock         func() time.Time
	localUserID   string
	index         *timeline.IdentityIndex
	conversations map[domain.ConversationKey]*conversation
	active        domain.ConversationKey
	generation    uint64
}

func NewStore(log *slog.Logger, localUserID string, metrics *observability.Metrics, notify Notifier) *Store {
	if metrics == nil {
		metrics = observability.NewMetrics(nil)
	}
	if notify == nil {
		notify = func(...event.Change) {}
	}
	return &Store{
		log:           log,
		metrics:       metrics,
		notify:        notify,
		clock:         time.Now,
		localUserID:   localUserID,
		index:         timeline.NewIdentityIndex(),
		conversations: make(map[domain.ConversationKey]*conversation),
	}
}

// commit runs fn under the lock and publishes its changes afterwards.
func (s *Store) commit(fn func() []event.Change) {
	s.mu.Lock()
	changes := fn()
	s.mu.Unlock()
	if len(changes) > 0 {
		s.notify(changes...)
	}
}

func (s *Store) change(key domain.ConversationKey, reason event.Reason) event.Change {
	return event.Change{Key: key, Reason: reason, At: s.clock()}
}

// ensure returns the conversation for key, creating it on first reference.
func (s *Store) ensure(key domain.ConversationKey) (*conversation, bool) {
	if c, ok := s.conversations[key]; ok {
		return c, false
	}
	c := &conversation{key: key}
	s.conversations[key] = c
	return c, true
}

func (s *Store) ensureWithChange(key domain.ConversationKey, changes []event.Change) (*conversation, []event.Change) {
	c, created := s.ensure(key)
	if created {
		changes = append(changes, s.change(key, event.ReasonConversationAdded))
	}
	return c, changes
}

// apply commits a merge result into c and updates the index, the preview and
// the unread counter. It returns the admitted messages.
func (s *Store) apply(c *conversation, res timeline.MergeResult, source string) []domain.Message {
	if len(res.Skipped) > 0 {
		s.metrics.Duplicates.WithLabelValues(source).Add(float64(len(res.Skipped)))
		s.log.Debug("Duplicate messages skipped", "conversation", c.key, "source", source, "ids", res.Skipped)
	}
	if len(res.Overwritten) > 0 {
		s.metrics.InvariantViolations.Add(float64(len(res.Overwritten)))
		s.log.Error("Message present in timeline but unknown to the identity index",
			"conversation", c.key, "source", source, "ids", res.Overwritten)
		for _, id := range res.Overwritten {
			s.index.Add(id, c.key)
		}
		assertInvariant(string(c.key), res.Overwritten)
	}
	if !res.Changed() {
		return nil
	}
	if !timeline.IsOrdered(res.Timeline) {
		s.metrics.InvariantViolations.Inc()
		s.log.Error("Merge produced an unordered timeline", "conversation", c.key, "source", source)
		assertInvariant(string(c.key), lo.Map(res.Admitted, func(m domain.Message, _ int) string { return m.ID }))
	}
	c.messages = res.Timeline
	for _, m := range res.Admitted {
		s.index.Add(m.ID, c.key)
	}
	s.metrics.Admitted.WithLabelValues(source).Add(float64(len(res.Admitted)))
	s.refreshPreview(c)
	return res.Admitted
}

func (s *Store) refreshPreview(c *conversation) {
	if len(c.messages) == 0 {
		return
	}
	last := c.messages[len(c.messages)-1]
	if c.lastMessage == nil || !last.Timestamp.Before(c.lastMessage.Timestamp) {
		c.lastMessage = lo.ToPtr(last.Clone())
		c.lastActivity = last.Timestamp
	}
}

// clamp keeps the unread counter within the inbound messages of the timeline
// once the counter no longer reflects a server hint about unloaded messages.
func (s *Store) clamp(c *conversation) bool {
	if c.unread.Hinted() && !c.historyLoaded {
		return false
	}
	return c.unread.Clamp(timeline.CountInbound(c.messages, s.localUserID))
}

// Receive admits one real-time message. It returns false when the message
// was dropped or was a duplicate.
func (s *Store) Receive(msg domain.Message, source string) bool {
	admitted := false
	s.commit(func() []event.Change {
		var changes []event.Change
		admitted, changes = s.receive(msg, source, changes)
		return changes
	})
	return admitted
}

// ReceiveBatch admits messages one by one through the real-time path.
func (s *Store) ReceiveBatch(msgs []domain.Message, source string) int {
	count := 0
	s.commit(func() []event.Change {
		var changes []event.Change
		for _, msg := range msgs {
			var ok bool
			ok, changes = s.receive(msg, source, changes)
			if ok {
				count++
			}
		}
		return changes
	})
	return count
}

func (s *Store) receive(msg domain.Message, source string, changes []event.Change) (bool, []event.Change) {
	key, ok := timeline.ResolveKey(msg, s.localUserID)
	if !ok {
		s.metrics.Malformed.Inc()
		s.log.Warn("Dropping message without resolvable conversation",
			"id", msg.ID, "sender", msg.SenderID, "recipient", msg.RecipientID, "error", errors.ErrUnresolvableKey)
		return false, changes
	}
	c, changes := s.ensureWithChange(key, changes)
	admitted := s.apply(c, timeline.MergeArrival(c.messages, msg, key, s.index.Has), source)
	if len(admitted) == 0 {
		return false, changes
	}
	changes = append(changes, s.change(key, event.ReasonMessageAdmitted))
	if !msg.IsFrom(s.localUserID) && s.active != key {
		c.unread.Increment()
		changes = append(changes, s.change(key, event.ReasonUnreadChanged))
	}
	return true, changes
}

// BeginHistory marks the initial fetch of key as in flight. It returns false
// when history is already loaded or loading.
func (s *Store) BeginHistory(key domain.ConversationKey) (uint64, bool) {
	var gen uint64
	proceed := false
	s.commit(func() []event.Change {
		c, changes := s.ensureWithChange(key, nil)
		if c.historyLoaded || c.loadingHistory {
			return changes
		}
		c.loadingHistory = true
		gen, proceed = s.generation, true
		return append(changes, s.change(key, event.ReasonLoadingChanged))
	})
	return gen, proceed
}

// CommitHistory merges the newest page. It returns false when the
// conversation was torn down while the fetch was in flight.
func (s *Store) CommitHistory(key domain.ConversationKey, gen uint64, page domain.HistoryPage) bool {
	applied := false
	s.commit(func() []event.Change {
		c, ok := s.conversations[key]
		if !ok || gen != s.generation {
			return nil
		}
		s.apply(c, timeline.MergePage(c.messages, page.Messages, key, s.localUserID, s.index.Has), observability.SourceHistory)
		if !c.paged {
			c.cursor = cloneCursor(page.NextCursor)
			c.paged = true
		}
		c.historyLoaded = true
		c.loadingHistory = false
		changes := []event.Change{s.change(key, event.ReasonHistoryLoaded)}
		if s.clamp(c) {
			changes = append(changes, s.change(key, event.ReasonUnreadChanged))
		}
		applied = true
		return changes
	})
	return applied
}

// AbortHistory resets the loading flag so the fetch can be retried.
func (s *Store) AbortHistory(key domain.ConversationKey, gen uint64) {
	s.commit(func() []event.Change {
		c, ok := s.conversations[key]
		if !ok || gen != s.generation || !c.loadingHistory {
			return nil
		}
		c.loadingHistory = false
		return []event.Change{s.change(key, event.ReasonLoadingChanged)}
	})
}

// BeginOlder marks a backward page fetch as in flight and returns the cursor
// to fetch from. It returns false when there is nothing to fetch or a fetch
// is already running.
func (s *Store) BeginOlder(key domain.ConversationKey) (string, uint64, bool) {
	var cursor string
	var gen uint64
	proceed := false
	s.commit(func() []event.Change {
		c, ok := s.conversations[key]
		if !ok || c.cursor == nil || c.loadingOlder {
			return nil
		}
		c.loadingOlder = true
		cursor, gen, proceed = *c.cursor, s.generation, true
		return []event.Change{s.change(key, event.ReasonLoadingChanged)}
	})
	return cursor, gen, proceed
}

// CommitOlder merges an older page and advances the cursor.
func (s *Store) CommitOlder(key domain.ConversationKey, gen uint64, page domain.HistoryPage) bool {
	applied := false
	s.commit(func() []event.Change {
		c, ok := s.conversations[key]
		if !ok || gen != s.generation {
			return nil
		}
		s.apply(c, timeline.MergePage(c.messages, page.Messages, key, s.localUserID, s.index.Has), observability.SourceOlder)
		c.cursor = cloneCursor(page.NextCursor)
		c.paged = true
		c.loadingOlder = false
		applied = true
		return []event.Change{s.change(key, event.ReasonOlderLoaded)}
	})
	return applied
}

func (s *Store) AbortOlder(key domain.ConversationKey, gen uint64) {
	s.commit(func() []event.Change {
		c, ok := s.conversations[key]
		if !ok || gen != s.generation || !c.loadingOlder {
			return nil
		}
		c.loadingOlder = false
		return []event.Change{s.change(key, event.ReasonLoadingChanged)}
	})
}

// locate finds the conversation holding id. The given key is tried first;
// otherwise the identity index tells the owner.
func (s *Store) locate(key domain.ConversationKey, id string) (*conversation, bool) {
	if c, ok := s.conversations[key]; ok && timeline.IndexOf(c.messages, id) >= 0 {
		return c, true
	}
	owner, ok := s.index.Owner(id)
	if !ok {
		return nil, false
	}
	c, ok := s.conversations[owner]
	return c, ok
}

type mutator func(messages []domain.Message) ([]domain.Message, timeline.Outcome)

// mutate applies fn to the conversation holding id. Unknown targets are
// logged and dropped.
func (s *Store) mutate(kind string, key domain.ConversationKey, id string, fn mutator) timeline.Outcome {
	outcome := timeline.NotFound
	s.commit(func() []event.Change {
		c, ok := s.locate(key, id)
		if !ok {
			s.unresolved(kind, key, id)
			return nil
		}
		var messages []domain.Message
		messages, outcome = fn(c.messages)
		switch outcome {
		case timeline.NotFound:
			s.unresolved(kind, key, id)
			return nil
		case timeline.Ignored:
			s.log.Debug("Mutation ignored", "kind", kind, "conversation", c.key, "id", id)
			return nil
		}
		c.messages = messages
		s.refreshPreviewOnMutation(c, id)
		changes := []event.Change{s.change(c.key, event.ReasonMessageMutated)}
		if s.clamp(c) {
			changes = append(changes, s.change(c.key, event.ReasonUnreadChanged))
		}
		return changes
	})
	return outcome
}

func (s *Store) refreshPreviewOnMutation(c *conversation, id string) {
	if c.lastMessage == nil || c.lastMessage.ID != id {
		return
	}
	if i := timeline.IndexOf(c.messages, id); i >= 0 {
		c.lastMessage = lo.ToPtr(c.messages[i].Clone())
	}
}

func (s *Store) unresolved(kind string, key domain.ConversationKey, id string) {
	s.metrics.Unresolved.WithLabelValues(kind).Inc()
	s.log.Debug("Mutation target not hydrated locally",
		"kind", kind, "conversation", key, "id", id, "error", errors.ErrUnknownMessage)
}

func (s *Store) Edit(evt event.MessageEdited) timeline.Outcome {
	return s.mutate("edit", evt.ConversationKey, evt.MessageID, func(m []domain.Message) ([]domain.Message, timeline.Outcome) {
		return timeline.Edit(m, evt.MessageID, evt.Text, evt.EditedAt)
	})
}

func (s *Store) Delete(evt event.MessageDeleted) timeline.Outcome {
	return s.mutate("delete", evt.ConversationKey, evt.MessageID, func(m []domain.Message) ([]domain.Message, timeline.Outcome) {
		return timeline.Delete(m, evt.MessageID)
	})
}

func (s *Store) SetReactions(evt event.ReactionsChanged) timeline.Outcome {
	return s.mutate("reaction", evt.ConversationKey, evt.MessageID, func(m []domain.Message) ([]domain.Message, timeline.Outcome) {
		return timeline.SetReactions(m, evt.MessageID, evt.Reactions)
	})
}

// PeerRead stamps the counterpart's read receipt on the local user's messages.
func (s *Store) PeerRead(evt event.PeerRead) int {
	stamped := 0
	s.commit(func() []event.Change {
		key := evt.ConversationKey
		if key == "" {
			key = domain.ConversationKey(evt.ReaderID)
		}
		c, ok := s.conversations[key]
		if !ok {
			s.metrics.Unresolved.WithLabelValues("read").Inc()
			s.log.Debug("Read receipt for a conversation not hydrated locally",
				"conversation", key, "reader", evt.ReaderID, "error", errors.ErrUnresolvableKey)
			return nil
		}
		c.messages, stamped = timeline.StampRead(c.messages, evt.ReaderID, evt.ReadAt)
		if stamped == 0 {
			return nil
		}
		return []event.Change{s.change(key, event.ReasonMessageMutated)}
	})
	return stamped
}

// ClearUnread resets the unread counter of key, creating the conversation if
// needed. Used for local reads and for reads synced from another device.
func (s *Store) ClearUnread(key domain.ConversationKey) {
	s.commit(func() []event.Change {
		c, changes := s.ensureWithChange(key, nil)
		if c.unread.Clear() {
			changes = append(changes, s.change(key, event.ReasonUnreadChanged))
		}
		return changes
	})
}

// SetActive records the focused conversation. Arrivals into it do not count
// as unread. An empty key clears the focus.
func (s *Store) SetActive(key domain.ConversationKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = key
}

func (s *Store) Active() domain.ConversationKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Hydrate applies the conversation list snapshot: server unread counts where
// no local value exists and last-message previews.
func (s *Store) Hydrate(summaries []domain.ConversationSummary) {
	s.commit(func() []event.Change {
		var changes []event.Change
		for _, summary := range summaries {
			if summary.PartnerID == "" {
				continue
			}
			var c *conversation
			c, changes = s.ensureWithChange(summary.PartnerID, changes)
			if c.unread.Hydrate(summary.UnreadCount) {
				s.clamp(c)
				changes = append(changes, s.change(c.key, event.ReasonUnreadChanged))
			}
			if last := summary.LastMessage; last != nil &&
				(c.lastMessage == nil || last.Timestamp.After(c.lastMessage.Timestamp)) {
				preview := last.Clone()
				preview.ConversationKey = c.key
				c.lastMessage = &preview
				c.lastActivity = preview.Timestamp
			}
		}
		return changes
	})
}

// AddTentative inserts a pending local message. Tentative ids are never
// admitted into the identity index.
func (s *Store) AddTentative(key domain.ConversationKey, msg domain.Message) {
	s.commit(func() []event.Change {
		c, changes := s.ensureWithChange(key, nil)
		msg.Pending = true
		msg.ConversationKey = key
		c.messages = timeline.Insert(c.messages, msg)
		s.refreshPreview(c)
		return append(changes, s.change(key, event.ReasonMessageAdmitted))
	})
}

// Confirm replaces a tentative message with the server's version. When the
// server echo already arrived through the real-time channel, the tentative
// entry is simply withdrawn.
func (s *Store) Confirm(key domain.ConversationKey, tentativeID string, confirmed domain.Message) {
	s.commit(func() []event.Change {
		c, ok := s.conversations[key]
		if !ok {
			s.log.Debug("Dropping confirmation", "conversation", key, "id", tentativeID, "error", errors.ErrConversationGone)
			return nil
		}
		var outcome timeline.Outcome
		if c.messages, outcome = timeline.Withdraw(c.messages, tentativeID); outcome != timeline.Applied {
			s.log.Debug("Confirming a withdrawn send", "conversation", key, "id", tentativeID, "error", errors.ErrUnknownTentative)
		}
		if confirmed.SenderID == "" {
			confirmed.SenderID = s.localUserID
		}
		if confirmed.RecipientID == "" {
			confirmed.RecipientID = string(key)
		}
		confirmed.Pending = false
		s.apply(c, timeline.MergeArrival(c.messages, confirmed, key, s.index.Has), observability.SourceConfirm)
		s.resetPreview(c)
		return []event.Change{s.change(key, event.ReasonMessageMutated)}
	})
}

// Rollback removes a tentative message after the send was rejected.
func (s *Store) Rollback(key domain.ConversationKey, tentativeID string) {
	s.commit(func() []event.Change {
		c, ok := s.conversations[key]
		if !ok {
			s.log.Debug("Dropping rollback", "conversation", key, "id", tentativeID, "error", errors.ErrConversationGone)
			return nil
		}
		var outcome timeline.Outcome
		c.messages, outcome = timeline.Withdraw(c.messages, tentativeID)
		if outcome != timeline.Applied {
			s.log.Debug("Dropping rollback", "conversation", key, "id", tentativeID, "error", errors.ErrUnknownTentative)
			return nil
		}
		s.resetPreview(c)
		return []event.Change{s.change(key, event.ReasonMessageMutated)}
	})
}

func (s *Store) resetPreview(c *conversation) {
	c.lastMessage = nil
	s.refreshPreview(c)
}

// Teardown drops every conversation and the identity index. In-flight fetches
// started before the teardown are discarded when they complete.
func (s *Store) Teardown() {
	s.commit(func() []event.Change {
		changes := lo.Map(lo.Keys(s.conversations), func(key domain.ConversationKey, _ int) event.Change {
			return s.change(key, event.ReasonConversationRemoved)
		})
		s.conversations = make(map[domain.ConversationKey]*conversation)
		s.index.Reset()
		s.active = ""
		s.generation++
		return changes
	})
}

// Snapshot copies the persisted part of the store.
func (s *Store) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := domain.Snapshot{LocalUserID: s.localUserID}
	for _, c := range s.sorted() {
		snapshot.Conversations = append(snapshot.Conversations, domain.ConversationSnapshot{
			Key:         c.key,
			Messages:    cloneMessages(lo.Reject(c.messages, func(m domain.Message, _ int) bool { return m.Pending })),
			Cursor:      cloneCursor(c.cursor),
			NeverPaged:  !c.paged,
			UnreadCount: c.unread.Count(),
			LastMessage: clonePtr(lo.Ternary[*domain.Message](c.lastMessage != nil && c.lastMessage.Pending, nil, c.lastMessage)),
		})
	}
	return snapshot
}

// Restore replaces the store content with a snapshot and rebuilds the
// identity index. Restored conversations are not marked as history-loaded.
func (s *Store) Restore(snapshot domain.Snapshot) error {
	if snapshot.LocalUserID != "" && snapshot.LocalUserID != s.localUserID {
		return fmt.Errorf("snapshot belongs to user %q, session is %q", snapshot.LocalUserID, s.localUserID)
	}
	s.commit(func() []event.Change {
		s.conversations = make(map[domain.ConversationKey]*conversation)
		s.index.Reset()
		s.generation++
		var changes []event.Change
		for _, cs := range snapshot.Conversations {
			if cs.Key == "" {
				continue
			}
			c, _ := s.ensure(cs.Key)
			s.apply(c, timeline.MergePage(c.messages, cs.Messages, cs.Key, s.localUserID, s.index.Has), observability.SourceRestore)
			c.cursor = cloneCursor(cs.Cursor)
			c.paged = !cs.NeverPaged || cs.Cursor != nil
			c.unread.Hint(cs.UnreadCount)
			if cs.LastMessage != nil && c.lastMessage == nil {
				c.lastMessage = clonePtr(cs.LastMessage)
				c.lastActivity = cs.LastMessage.Timestamp
			}
			changes = append(changes, s.change(cs.Key, event.ReasonRestored))
		}
		return changes
	})
	return nil
}

func (s *Store) View(key domain.ConversationKey) (domain.ConversationView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[key]
	if !ok {
		return domain.ConversationView{Key: key}, false
	}
	return s.view(c), true
}

// Views lists every conversation, most recent activity first.
func (s *Store) Views() []domain.ConversationView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Map(s.sorted(), func(c *conversation, _ int) domain.ConversationView {
		return s.view(c)
	})
}

func (s *Store) Timeline(key domain.ConversationKey) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[key]
	if !ok {
		return nil
	}
	return cloneMessages(c.messages)
}

func (s *Store) UnreadCount(key domain.ConversationKey) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[key]
	if !ok {
		return 0
	}
	return c.unread.Count()
}

// Generation changes on every teardown or restore.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Known reports whether id was ever admitted during this session.
func (s *Store) Known(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Has(id)
}

func (s *Store) view(c *conversation) domain.ConversationView {
	return domain.ConversationView{
		Key:             c.key,
		Messages:        cloneMessages(c.messages),
		Cursor:          cloneCursor(c.cursor),
		IsLoadingOlder:  c.loadingOlder,
		IsHistoryLoaded: c.historyLoaded,
		UnreadCount:     c.unread.Count(),
		LastMessage:     clonePtr(c.lastMessage),
		LastActivity:    c.lastActivity,
	}
}

func (s *Store) sorted() []*conversation {
	res := lo.Values(s.conversations)
	sort.Slice(res, func(i, j int) bool {
		if !res[i].lastActivity.Equal(res[j].lastActivity) {
			return res[i].lastActivity.After(res[j].lastActivity)
		}
		return res[i].key < res[j].key
	})
	return res
}

func cloneMessages(messages []domain.Message) []domain.Message {
	if messages == nil {
		return nil
	}
	return lo.Map(messages, func(m domain.Message, _ int) domain.Message { return m.Clone() })
}

func cloneCursor(cursor *string) *string {
	if cursor == nil {
		return nil
	}
	return lo.ToPtr(*cursor)
}

func clonePtr(m *domain.Message) *domain.Message {
	if m == nil {
		return nil
	}
	return lo.ToPtr(m.Clone())
}
