// SPDX-License-Identifier: MIT

package mailsink

import (
	"errors"
	"sync"
)

// ErrMessageNotFound indicates the requested message ID is unknown.
var ErrMessageNotFound = errors.New("message not found")

// Store persists captured messages. List returns newest first.
// Implementations enforce their retention bound by evicting the oldest
// messages on Save.
type Store interface {
	Save(msg *Message) error
	List(page, perPage int) ([]Message, int, error)
	Get(id string) (*Message, error)
	Clear() error
	Close() error
}

// memoryStore keeps messages in an in-process slice bounded by
// retention. The zero retention means unbounded.
type memoryStore struct {
	mu        sync.RWMutex
	messages  []Message // append order = arrival order
	retention int
}

// NewMemoryStore creates a volatile message store.
func NewMemoryStore(retention int) Store {
	return &memoryStore{retention: retention}
}

func (s *memoryStore) Save(msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, *msg)
	if s.retention > 0 && len(s.messages) > s.retention {
		drop := len(s.messages) - s.retention
		s.messages = append(s.messages[:0:0], s.messages[drop:]...)
	}
	return nil
}

func (s *memoryStore) List(page, perPage int) ([]Message, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := len(s.messages)
	start := (page - 1) * perPage
	if start >= total {
		return nil, total, nil
	}
	end := start + perPage
	if end > total {
		end = total
	}

	// newest first
	out := make([]Message, 0, end-start)
	for i := total - 1 - start; i >= total-end; i-- {
		out = append(out, s.messages[i])
	}
	return out, total, nil
}

func (s *memoryStore) Get(id string) (*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.messages {
		if s.messages[i].ID == id {
			msg := s.messages[i]
			return &msg, nil
		}
	}
	return nil, ErrMessageNotFound
}

func (s *memoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	return nil
}

func (s *memoryStore) Close() error { return nil }
