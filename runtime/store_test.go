package runtime

import (
	"bytes"
	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/errors"
	"chat-sync/observability"
	"chat-sync/timeline"
	"log/slog"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestStore_Receive_Creates_Conversation_And_Counts_Unread(t *testing.T) {
	req := require.New(t)
	store, rec := newTestStore()

	// When bob sends two messages
	req.True(store.Receive(fromBob("m1", 100), observability.SourceRealtime))
	req.True(store.Receive(fromBob("m2", 200), observability.SourceRealtime))

	// Then the conversation is keyed by bob and both are unread
	req.Equal([]string{"m1", "m2"}, ids(store.Timeline(bob)))
	req.Equal(2, store.UnreadCount(bob))
	req.Contains(rec.reasons(bob), event.ReasonConversationAdded)
	req.Contains(rec.reasons(bob), event.ReasonUnreadChanged)
}

func TestStore_Receive_Own_Message_Does_Not_Count(t *testing.T) {
	req := require.New(t)
	store, _ := newTestStore()

	store.Receive(toBob("m1", 100), observability.SourceRealtime)

	req.Equal([]string{"m1"}, ids(store.Timeline(bob)))
	req.Equal(0, store.UnreadCount(bob))
}

func TestStore_Receive_Duplicate_Is_Dropped(t *testing.T) {
	req := require.New(t)
	store, _ := newTestStore()
	store.Receive(fromBob("m1", 100), observability.SourceRealtime)

	// When the same id arrives again with another content
	dup := fromBob("m1", 300)
	dup.Text = "other"
	req.False(store.Receive(dup, observability.SourceReplay))

	// Then the first admitted version stays
	tl := store.Timeline(bob)
	req.Len(tl, 1)
	req.Equal("text m1", tl[0].Text)
	req.Equal(1, store.UnreadCount(bob))
}

func TestStore_Receive_Unresolvable_Is_Dropped(t *testing.T) {
	req := require.New(t)
	store, _ := newTestStore()

	req.False(store.Receive(domain.Message{ID: "x", SenderID: me, Timestamp: at(1)}, observability.SourceRealtime))
	req.Empty(store.Views())
	req.False(store.Known("x"))
}

func TestStore_Active_Conversation_Does_Not_Count_Unread(t *testing.T) {
	req := require.New(t)
	store, _ := newTestStore()

	// Given bob's conversation is open
	store.SetActive(bob)

	// When bob writes
	store.Receive(fromBob("m1", 100), observability.SourceRealtime)

	// Then nothing is unread
	req.Equal(0, store.UnreadCount(bob))

	// When the conversation is closed
	store.SetActive("")
	store.Receive(fromBob("m2", 200), observability.SourceRealtime)
	req.Equal(1, store.UnreadCount(bob))
}

func TestStore_History_Merges_With_Realtime_Arrivals(t *testing.T) {
	req := require.New(t)
	store, _ := newTestStore()

	// Given the initial fetch is in flight
	gen, ok := store.BeginHistory(bob)
	req.True(ok)
	view, _ := store.View(bob)
	req.False(view.IsHistoryLoaded)

	// And a second fetch is refused meanwhile
	_, again := store.BeginHistory(bob)
	req.False(again)

	// When a real-time message lands before the page
	store.Receive(fromBob("m3", 150), observability.SourceRealtime)
	req.True(store.CommitHistory(bob, gen, domain.HistoryPage{
		Messages:   []domain.Message{fromBob("m1", 100), fromBob("m2", 200)},
		NextCursor: lo.ToPtr("c1"),
	}))

	// Then the timeline is ordered and the cursor stored
	view, _ = store.View(bob)
	req.Equal([]string{"m1", "m3", "m2"}, ids(view.Messages))
	req.Equal("c1", *view.Cursor)
	req.True(view.IsHistoryLoaded)
	req.True(timeline.IsOrdered(view.Messages))

	// And history is never fetched twice
	_, again = store.BeginHistory(bob)
	req.False(again)
}

func TestStore_History_After_Teardown_Is_Discarded(t *testing.T) {
	req := require.New(t)
	store, _ := newTestStore()
	gen, ok := store.BeginHistory(bob)
	req.True(ok)

	// When the session ends before the fetch completes
	store.Teardown()

	// Then the late page is ignored
	req.False(store.CommitHistory(bob, gen, domain.HistoryPage{Messages: []domain.Message{fromBob("m1", 100)}}))
	req.Empty(store.Views())
	req.False(store.Known("m1"))
}

func TestStore_AbortHistory_Allows_Retry(t *testing.T) {
	req := require.New(t)
	store, _ := newTestStore()
	gen, _ := store.BeginHistory(bob)

	store.AbortHistory(bob, gen)

	_, ok := store.BeginHistory(bob)
	req.True(ok)
}

func TestStore_Older_Pages(t *testing.T) {
	req := require.New(t)
	store, _ := newTestStore()

	// Given no cursor yet
	_, _, ok := store.BeginOlder(bob)
	req.False(ok)

	gen, _ := store.BeginHistory(bob)
	store.CommitHistory(bob, gen, domain.HistoryPage{
		Messages:   []domain.Message{fromBob("m1", 100)},
		NextCursor: lo.ToPtr("c1"),
	})

	// When the older page is requested
	cursor, gen, ok := store.BeginOlder(bob)
	req.True(ok)
	req.Equal("c1", cursor)
	view, _ := store.View(bob)
	req.True(view.IsLoadingOlder)

	// Then a concurrent request is refused
	_, _, ok = store.BeginOlder(bob)
	req.False(ok)

	// When the last page arrives
	req.True(store.CommitOlder(bob, gen, domain.HistoryPage{Messages: []domain.Message{fromBob("m0", 50)}}))

	// Then it is prepended and pagination is exhausted
	view, _ = store.View(bob)
	req.Equal([]string{"m0", "m1"}, ids(view.Messages))
	req.Nil(view.Cursor)
	req.False(view.IsLoadingOlder)
	_, _, ok = store.BeginOlder(bob)
	req.False(ok)
}

func TestStore_Mutations_Route_Through_Identity_Index(t *testing.T) {
	req := require.New(t)
	store, _ := newTestStore()
	store.Receive(fromBob("m1", 100), observability.SourceRealtime)
	store.Receive(domain.Message{ID: "a1", SenderID: "alice", RecipientID: me, Timestamp: at(120), Text: "hi"}, observability.SourceRealtime)

	// When an edit arrives without a conversation key
	outcome := store.Edit(event.MessageEdited{MessageID: "m1", Text: "fixed", EditedAt: at(300)})

	// Then it lands in bob's conversation
	req.Equal(timeline.Applied, outcome)
	tl := store.Timeline(bob)
	req.Equal("fixed", tl[0].Text)
	req.Equal(at(300), *tl[0].EditedAt)

	// And alice's conversation is untouched
	req.Equal("hi", store.Timeline("alice")[0].Text)
}

func TestStore_Delete_Keeps_Position(t *testing.T) {
	req := require.New(t)
	store, _ := newTestStore()
	store.SetActive(bob)
	store.Receive(fromBob("m1", 100), observability.SourceRealtime)
	store.Receive(fromBob("m2", 200), observability.SourceRealtime)
	store.Receive(fromBob("m3", 300), observability.SourceRealtime)

	req.Equal(timeline.Applied, store.Delete(event.MessageDeleted{ConversationKey: bob, MessageID: "m2", At: at(400)}))

	tl := store.Timeline(bob)
	req.Equal([]string{"m1", "m2", "m3"}, ids(tl))
	req.True(tl[1].Deleted)
	req.Equal(domain.DeletedText, tl[1].Text)

	// And later edits or reactions on the tombstone are ignored
	req.Equal(timeline.Ignored, store.Edit(event.MessageEdited{MessageID: "m2", Text: "back", EditedAt: at(500)}))
	req.Equal(timeline.Ignored, store.SetReactions(event.ReactionsChanged{MessageID: "m2", Reactions: domain.Reactions{"👍": {me}}}))
	req.Equal(timeline.Ignored, store.Delete(event.MessageDeleted{MessageID: "m2"}))
	req.Equal(domain.DeletedText, store.Timeline(bob)[1].Text)
}

func TestStore_Mutation_On_Unknown_Message_Is_Dropped(t *testing.T) {
	req := require.New(t)
	store, rec := newTestStore()
	store.Receive(fromBob("m1", 100), observability.SourceRealtime)
	before := len(rec.reasons(bob))

	req.Equal(timeline.NotFound, store.Edit(event.MessageEdited{ConversationKey: bob, MessageID: "ghost", Text: "x"}))
	req.Equal(timeline.NotFound, store.Delete(event.MessageDeleted{MessageID: "ghost"}))

	req.Len(rec.reasons(bob), before)
	req.Equal("text m1", store.Timeline(bob)[0].Text)
}

func TestStore_SetReactions_Replaces_Wholesale(t *testing.T) {
	req := require.New(t)
	store, _ := newTestStore()
	store.Receive(toBob("m1", 100), observability.SourceRealtime)

	store.SetReactions(event.ReactionsChanged{MessageID: "m1", Reactions: domain.Reactions{"👍": {bob}, "❤️": {me}}})
	store.SetReactions(event.ReactionsChanged{MessageID: "m1", Reactions: domain.Reactions{"😂": {bob}}})

	req.Equal(domain.Reactions{"😂": {bob}}, store.Timeline(bob)[0].Reactions)
}

func TestStore_PeerRead_Stamps_Own_Messages(t *testing.T) {
	req := require.New(t)
	store, _ := newTestStore()
	store.Receive(toBob("m1", 100), observability.SourceRealtime)
	store.Receive(fromBob("m2", 150), observability.SourceRealtime)
	store.Receive(toBob("m3", 300), observability.SourceRealtime)

	// When bob reads up to t=200
	stamped := store.PeerRead(event.PeerRead{ReaderID: bob, ReadAt: at(200)})

	// Then only my message sent before is marked read
	req.Equal(1, stamped)
	tl := store.Timeline(bob)
	req.Equal(at(200), tl[0].ReadBy[bob])
	req.Empty(tl[1].ReadBy)
	req.Empty(tl[2].ReadBy)
	// And the unread counter of the local user is not affected
	req.Equal(1, store.UnreadCount(bob))
}

func TestStore_ClearUnread(t *testing.T) {
	req := require.New(t)
	store, rec := newTestStore()
	store.Receive(fromBob("m1", 100), observability.SourceRealtime)

	store.ClearUnread(bob)

	req.Equal(0, store.UnreadCount(bob))
	reasons := rec.reasons(bob)
	req.Equal(event.ReasonUnreadChanged, reasons[len(reasons)-1])
}

func TestStore_Hydrate(t *testing.T) {
	req := require.New(t)
	store, _ := newTestStore()

	// Given carol already wrote in real time
	store.Receive(domain.Message{ID: "c1", SenderID: "carol", RecipientID: me, Timestamp: at(10)}, observability.SourceRealtime)

	// When the conversation list arrives
	last := fromBob("m9", 900)
	store.Hydrate([]domain.ConversationSummary{
		{PartnerID: bob, UnreadCount: 4, LastMessage: &last},
		{PartnerID: "carol", UnreadCount: 7},
		{PartnerID: ""},
	})

	// Then server counts only fill conversations without local value
	req.Equal(4, store.UnreadCount(bob))
	req.Equal(1, store.UnreadCount("carol"))

	// And bob comes first with the preview
	views := store.Views()
	req.Len(views, 2)
	req.Equal(domain.ConversationKey(bob), views[0].Key)
	req.Equal("m9", views[0].LastMessage.ID)
	req.Empty(views[0].Messages)
}

func TestStore_Hinted_Unread_Is_Clamped_Once_History_Loaded(t *testing.T) {
	req := require.New(t)
	store, _ := newTestStore()
	store.Hydrate([]domain.ConversationSummary{{PartnerID: bob, UnreadCount: 5}})
	req.Equal(5, store.UnreadCount(bob))

	gen, _ := store.BeginHistory(bob)
	store.CommitHistory(bob, gen, domain.HistoryPage{Messages: []domain.Message{fromBob("m1", 1), toBob("m2", 2), fromBob("m3", 3)}})

	req.Equal(2, store.UnreadCount(bob))
}

func TestStore_Tentative_Confirm(t *testing.T) {
	req := require.New(t)
	store, _ := newTestStore()
	tentative := toBob("local-1", 100)
	store.AddTentative(bob, tentative)

	tl := store.Timeline(bob)
	req.Len(tl, 1)
	req.True(tl[0].Pending)
	req.False(store.Known("local-1"))

	// When the server confirms
	store.Confirm(bob, "local-1", domain.Message{ID: "s1", Text: "text local-1", Timestamp: at(101)})

	// Then the tentative entry is replaced
	tl = store.Timeline(bob)
	req.Equal([]string{"s1"}, ids(tl))
	req.False(tl[0].Pending)
	req.Equal(me, tl[0].SenderID)
	req.True(store.Known("s1"))
	view, _ := store.View(bob)
	req.Equal("s1", view.LastMessage.ID)
}

func TestStore_Tentative_Confirm_After_Echo(t *testing.T) {
	req := require.New(t)
	store, _ := newTestStore()
	store.AddTentative(bob, toBob("local-1", 100))

	// Given the real-time echo arrives before the send returns
	store.Receive(toBob("s1", 101), observability.SourceRealtime)

	store.Confirm(bob, "local-1", toBob("s1", 101))

	req.Equal([]string{"s1"}, ids(store.Timeline(bob)))
}

func TestStore_Tentative_Rollback(t *testing.T) {
	req := require.New(t)
	store, _ := newTestStore()
	store.Receive(fromBob("m1", 50), observability.SourceRealtime)
	store.AddTentative(bob, toBob("local-1", 100))

	store.Rollback(bob, "local-1")

	req.Equal([]string{"m1"}, ids(store.Timeline(bob)))
	view, _ := store.View(bob)
	req.Equal("m1", view.LastMessage.ID)
}

func TestStore_Snapshot_Restore(t *testing.T) {
	req := require.New(t)
	store, _ := newTestStore()
	gen, _ := store.BeginHistory(bob)
	store.CommitHistory(bob, gen, domain.HistoryPage{
		Messages:   []domain.Message{fromBob("m1", 100), toBob("m2", 200)},
		NextCursor: lo.ToPtr("c1"),
	})
	store.Receive(fromBob("m3", 300), observability.SourceRealtime)
	store.AddTentative(bob, toBob("local-1", 400))

	snapshot := store.Snapshot()
	req.Equal(me, snapshot.LocalUserID)
	req.Len(snapshot.Conversations, 1)
	// Pending messages are not persisted
	req.Equal([]string{"m1", "m2", "m3"}, ids(snapshot.Conversations[0].Messages))

	// When a new session restores it
	restored, _ := newTestStore()
	req.NoError(restored.Restore(snapshot))

	// Then the state and the identity index are back
	view, ok := restored.View(bob)
	req.True(ok)
	req.Equal([]string{"m1", "m2", "m3"}, ids(view.Messages))
	req.Equal("c1", *view.Cursor)
	req.Equal(1, view.UnreadCount)
	req.False(view.IsHistoryLoaded)
	req.True(restored.Known("m2"))
	req.False(restored.Receive(fromBob("m3", 300), observability.SourceRealtime))
}

func TestStore_History_After_Restore_Keeps_Exhausted_Cursor(t *testing.T) {
	req := require.New(t)
	store, _ := newTestStore()

	// Given a restored conversation whose older pages were all fetched
	req.NoError(store.Restore(domain.Snapshot{LocalUserID: me, Conversations: []domain.ConversationSnapshot{
		{Key: bob, Messages: []domain.Message{fromBob("m1", 100)}},
	}}))

	// When the newest page is loaded again
	gen, ok := store.BeginHistory(bob)
	req.True(ok)
	req.True(store.CommitHistory(bob, gen, domain.HistoryPage{
		Messages:   []domain.Message{fromBob("m1", 100), fromBob("m2", 200)},
		NextCursor: lo.ToPtr("c1"),
	}))

	// Then no backward fetch is issued
	_, _, proceed := store.BeginOlder(bob)
	req.False(proceed)
	view, _ := store.View(bob)
	req.Nil(view.Cursor)
	req.Equal([]string{"m1", "m2"}, ids(view.Messages))
}

func TestStore_History_After_Restore_Keeps_Older_Cursor(t *testing.T) {
	req := require.New(t)
	store, _ := newTestStore()
	req.NoError(store.Restore(domain.Snapshot{LocalUserID: me, Conversations: []domain.ConversationSnapshot{
		{Key: bob, Messages: []domain.Message{fromBob("m5", 500)}, Cursor: lo.ToPtr("c5")},
	}}))

	// Given an older page fetched from the restored cursor
	cursor, gen, ok := store.BeginOlder(bob)
	req.True(ok)
	req.Equal("c5", cursor)
	req.True(store.CommitOlder(bob, gen, domain.HistoryPage{
		Messages:   []domain.Message{fromBob("m4", 400)},
		NextCursor: lo.ToPtr("c6"),
	}))

	// When the newest page arrives afterwards
	gen, ok = store.BeginHistory(bob)
	req.True(ok)
	req.True(store.CommitHistory(bob, gen, domain.HistoryPage{
		Messages:   []domain.Message{fromBob("m9", 900)},
		NextCursor: lo.ToPtr("c1"),
	}))

	// Then the cursor still points past the oldest fetched page
	cursor, _, ok = store.BeginOlder(bob)
	req.True(ok)
	req.Equal("c6", cursor)
}

func TestStore_Restore_Never_Paged_Takes_History_Cursor(t *testing.T) {
	req := require.New(t)
	store, _ := newTestStore()
	// Only real-time messages, no page committed
	store.Receive(fromBob("m3", 300), observability.SourceRealtime)
	snapshot := store.Snapshot()
	req.True(snapshot.Conversations[0].NeverPaged)

	restored, _ := newTestStore()
	req.NoError(restored.Restore(snapshot))
	gen, _ := restored.BeginHistory(bob)
	restored.CommitHistory(bob, gen, domain.HistoryPage{
		Messages:   []domain.Message{fromBob("m2", 200), fromBob("m3", 300)},
		NextCursor: lo.ToPtr("c1"),
	})

	cursor, _, ok := restored.BeginOlder(bob)
	req.True(ok)
	req.Equal("c1", cursor)
}

func TestStore_Restored_Unread_Is_Replaced_By_Server_List(t *testing.T) {
	req := require.New(t)
	store, _ := newTestStore()

	// Given a stale count restored from the previous session
	req.NoError(store.Restore(domain.Snapshot{LocalUserID: me, Conversations: []domain.ConversationSnapshot{
		{Key: bob, Messages: []domain.Message{fromBob("m1", 100)}, UnreadCount: 4},
	}}))
	req.Equal(4, store.UnreadCount(bob))

	// When the conversation list is hydrated
	store.Hydrate([]domain.ConversationSummary{{PartnerID: bob, UnreadCount: 1}})

	// Then the server count wins
	req.Equal(1, store.UnreadCount(bob))
}

func TestStore_Restored_Unread_Moved_Locally_Is_Kept(t *testing.T) {
	req := require.New(t)
	store, _ := newTestStore()
	req.NoError(store.Restore(domain.Snapshot{LocalUserID: me, Conversations: []domain.ConversationSnapshot{
		{Key: bob, Messages: []domain.Message{fromBob("m1", 100)}, UnreadCount: 4},
	}}))

	// Given a new arrival after the restore
	store.Receive(fromBob("m2", 200), observability.SourceRealtime)

	// When the list is hydrated with an older count
	store.Hydrate([]domain.ConversationSummary{{PartnerID: bob, UnreadCount: 1}})

	// Then the local value is kept
	req.Equal(5, store.UnreadCount(bob))
}

func TestStore_Restore_Refuses_Other_User(t *testing.T) {
	req := require.New(t)
	store, _ := newTestStore()

	err := store.Restore(domain.Snapshot{LocalUserID: "someone-else"})

	req.Error(err)
}

func TestStore_Teardown(t *testing.T) {
	req := require.New(t)
	store, rec := newTestStore()
	store.Receive(fromBob("m1", 100), observability.SourceRealtime)
	store.SetActive(bob)

	store.Teardown()

	req.Empty(store.Views())
	req.False(store.Known("m1"))
	req.Equal(domain.ConversationKey(""), store.Active())
	req.Contains(rec.reasons(bob), event.ReasonConversationRemoved)

	// And the same id is admitted again in a new session
	req.True(store.Receive(fromBob("m1", 100), observability.SourceRealtime))
}

func TestStore_Views_Sorted_By_Activity(t *testing.T) {
	req := require.New(t)
	store, _ := newTestStore()
	store.Receive(fromBob("m1", 100), observability.SourceRealtime)
	store.Receive(domain.Message{ID: "a1", SenderID: "alice", RecipientID: me, Timestamp: at(200)}, observability.SourceRealtime)

	views := store.Views()

	req.Equal(domain.ConversationKey("alice"), views[0].Key)
	req.Equal(domain.ConversationKey(bob), views[1].Key)
}

func TestStore_Timeline_Returns_Copies(t *testing.T) {
	req := require.New(t)
	store, _ := newTestStore()
	store.Receive(fromBob("m1", 100), observability.SourceRealtime)

	tl := store.Timeline(bob)
	tl[0].Text = "mutated"

	req.Equal("text m1", store.Timeline(bob)[0].Text)
}

func TestStore_Dropped_Events_Log_Their_Cause(t *testing.T) {
	req := require.New(t)
	var buf bytes.Buffer
	store := NewStore(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), me, nil, nil)
	store.Receive(fromBob("m1", 100), observability.SourceRealtime)

	// When an edit targets an unknown message
	req.Equal(timeline.NotFound, store.Edit(event.MessageEdited{ConversationKey: bob, MessageID: "ghost", Text: "x", EditedAt: at(200)}))
	// And a rollback targets a send that is not there
	store.Rollback(bob, "local-ghost")
	// And a message without any resolvable conversation arrives
	req.False(store.Receive(domain.Message{ID: "m9", Timestamp: at(300)}, observability.SourceRealtime))

	// Then each drop names its cause
	logged := buf.String()
	req.Contains(logged, errors.ErrUnknownMessage.Error())
	req.Contains(logged, errors.ErrUnknownTentative.Error())
	req.Contains(logged, errors.ErrUnresolvableKey.Error())
}
