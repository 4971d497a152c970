// SPDX-License-Identifier: MIT

package mailsink

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// msgKeyPrefix namespaces message records. The key embeds a zero-padded
// arrival timestamp so badger's byte-ordered iteration doubles as the
// arrival order.
const msgKeyPrefix = "msg:"

// badgerStore persists captured messages on disk so the sink survives
// restarts.
type badgerStore struct {
	db        *badger.DB
	retention int

	mu sync.Mutex // serializes Save so eviction sees a stable count
}

// OpenBadgerStore opens (or creates) a persistent message store at path.
func OpenBadgerStore(path string, retention int) (Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open mailsink store: %w", err)
	}
	return &badgerStore{db: db, retention: retention}, nil
}

func (s *badgerStore) Close() error { return s.db.Close() }

func msgKey(msg *Message) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", msgKeyPrefix, msg.ReceivedAt.UnixNano(), msg.ID))
}

func (s *badgerStore) Save(msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(msgKey(msg), buf)
	})
	if err != nil {
		return err
	}
	if s.retention > 0 {
		return s.evict()
	}
	return nil
}

// evict removes the oldest messages beyond the retention bound.
func (s *badgerStore) evict() error {
	var stale [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		keys := s.collectKeys(txn)
		if excess := len(keys) - s.retention; excess > 0 {
			stale = keys[:excess]
		}
		return nil
	})
	if err != nil || len(stale) == 0 {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// collectKeys returns all message keys in arrival order.
func (s *badgerStore) collectKeys(txn *badger.Txn) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = []byte(msgKeyPrefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys
}

func (s *badgerStore) List(page, perPage int) ([]Message, int, error) {
	var out []Message
	var total int
	err := s.db.View(func(txn *badger.Txn) error {
		keys := s.collectKeys(txn)
		total = len(keys)

		start := (page - 1) * perPage
		if start >= total {
			return nil
		}
		end := start + perPage
		if end > total {
			end = total
		}

		// newest first: walk the key list backwards
		for i := total - 1 - start; i >= total-end; i-- {
			item, err := txn.Get(keys[i])
			if err != nil {
				return err
			}
			var msg Message
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			}); err != nil {
				return err
			}
			out = append(out, msg)
		}
		return nil
	})
	return out, total, err
}

func (s *badgerStore) Get(id string) (*Message, error) {
	var found *Message
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(msgKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			if !strings.HasSuffix(key, ":"+id) {
				continue
			}
			var msg Message
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			}); err != nil {
				return err
			}
			found = &msg
			return nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrMessageNotFound
	}
	return found, nil
}

func (s *badgerStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(txn *badger.Txn) error {
		keys := s.collectKeys(txn)
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}
