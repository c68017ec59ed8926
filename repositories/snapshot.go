//go:generate go run go.uber.org/mock/mockgen -source=snapshot.go -destination=../mocks/mock_snapshot_repository.go -package=mocks
package repositories

import (
	"chat-sync/domain"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

const (
	ownerKey           = "meta:owner"
	conversationPrefix = "conv:"
)

type ISnapshotRepository interface {
	Save(snapshot domain.Snapshot) error
	Load() (domain.Snapshot, bool, error)
	Clear() error
}

// SnapshotRepository persists the conversation store in BadgerDB.
// Keys:
//   - "meta:owner" holds the id of the user the snapshot belongs to
//   - "conv:{key}" holds one JSON encoded conversation
type SnapshotRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewSnapshotRepository(db *badger.DB, log *slog.Logger) SnapshotRepository {
	return SnapshotRepository{db: db, log: log}
}

// Save replaces the stored snapshot in a single transaction, so a reader
// never sees a mix of two snapshots.
func (r SnapshotRepository) Save(snapshot domain.Snapshot) error {
	return r.db.Update(func(txn *badger.Txn) error {
		stale, err := keysWithPrefix(txn, []byte(conversationPrefix))
		if err != nil {
			return err
		}
		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		if err := txn.Set([]byte(ownerKey), []byte(snapshot.LocalUserID)); err != nil {
			return err
		}
		for _, conversation := range snapshot.Conversations {
			bytes, err := json.Marshal(conversation)
			if err != nil {
				return fmt.Errorf("encoding conversation %s: %w", conversation.Key, err)
			}
			if err := txn.Set(conversationKey(conversation.Key), bytes); err != nil {
				return err
			}
		}
		r.log.Debug(fmt.Sprintf("%d conversations written", len(snapshot.Conversations)))
		return nil
	})
}

// Load returns false when nothing was ever saved.
func (r SnapshotRepository) Load() (domain.Snapshot, bool, error) {
	var snapshot domain.Snapshot
	found := false
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(ownerKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		owner, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		snapshot.LocalUserID = string(owner)
		found = true

		prefix := []byte(conversationPrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var conversation domain.ConversationSnapshot
			err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &conversation)
			})
			if err != nil {
				return fmt.Errorf("decoding %s: %w", it.Item().Key(), err)
			}
			snapshot.Conversations = append(snapshot.Conversations, conversation)
		}
		return nil
	})
	if err != nil {
		return domain.Snapshot{}, false, err
	}
	return snapshot, found, nil
}

// Clear removes every persisted conversation, used at logout.
func (r SnapshotRepository) Clear() error {
	if err := r.db.DropPrefix([]byte(conversationPrefix), []byte(ownerKey)); err != nil {
		return err
	}
	r.log.Info("Persisted conversations cleared")
	return nil
}

func conversationKey(key domain.ConversationKey) []byte {
	return []byte(conversationPrefix + string(key))
}

func keysWithPrefix(txn *badger.Txn, prefix []byte) ([][]byte, error) {
	options := badger.DefaultIteratorOptions
	options.PrefetchValues = false
	it := txn.NewIterator(options)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys, nil
}
