package main

import (
	"chat-sync/domain"
	"chat-sync/mocks"
	"chat-sync/runtime"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newEngine() *runtime.Engine {
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))
	return runtime.NewEngine(log, "me", runtime.Dependencies{}, nil, 8)
}

func snapshotOf(owner string) domain.Snapshot {
	return domain.Snapshot{
		LocalUserID: owner,
		Conversations: []domain.ConversationSnapshot{{
			Key:         "bob",
			UnreadCount: 2,
			Messages: []domain.Message{{
				ID:        "m1",
				SenderID:  "bob",
				Text:      "hello",
				Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				Kind:      domain.KindUser,
			}},
		}},
	}
}

func TestRestore_Same_User_Snapshot_Is_Loaded(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// Given a snapshot saved by the same user
	repository := mocks.NewMockISnapshotRepository(ctrl)
	repository.EXPECT().Load().Return(snapshotOf("me"), true, nil)
	engine := newEngine()

	// When restoring
	err := restore(log, engine, repository, "me")

	// Then the conversation is back with its unread count
	req.NoError(err)
	req.Equal(2, engine.UnreadCount("bob"))
	req.Len(engine.Timeline("bob"), 1)
}

func TestRestore_Other_User_Snapshot_Is_Cleared(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// Given a snapshot left by another user
	repository := mocks.NewMockISnapshotRepository(ctrl)
	repository.EXPECT().Load().Return(snapshotOf("alice"), true, nil)
	repository.EXPECT().Clear().Return(nil)
	engine := newEngine()

	// When restoring
	err := restore(log, engine, repository, "me")

	// Then nothing is restored
	req.NoError(err)
	req.Empty(engine.Conversations())
}

func TestRestore_Missing_Snapshot_Is_Ignored(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	repository := mocks.NewMockISnapshotRepository(ctrl)
	repository.EXPECT().Load().Return(domain.Snapshot{}, false, nil)

	req.NoError(restore(log, newEngine(), repository, "me"))
}

func TestRestore_Load_Failure_Is_Returned(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	repository := mocks.NewMockISnapshotRepository(ctrl)
	repository.EXPECT().Load().Return(domain.Snapshot{}, false, errors.New("disk"))

	req.Error(restore(log, newEngine(), repository, "me"))
}
