// SPDX-License-Identifier: MIT

package mailsink

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMessage(i int) *Message {
	return &Message{
		ID:         fmt.Sprintf("msg-%03d", i),
		From:       "app@example.com",
		Recipients: []string{"john@example.com"},
		ReceivedAt: time.Date(2025, 1, 1, 0, 0, i, 0, time.UTC),
		Size:       42,
		Raw:        []byte(fmt.Sprintf("Subject: test %d\r\n\r\nbody %d\r\n", i, i)),
	}
}

func runStoreTests(t *testing.T, open func(t *testing.T, retention int) Store) {
	t.Run("save and get", func(t *testing.T) {
		s := open(t, 0)
		msg := testMessage(1)
		require.NoError(t, s.Save(msg))

		got, err := s.Get(msg.ID)
		require.NoError(t, err)
		assert.Equal(t, msg.From, got.From)
		assert.Equal(t, msg.Raw, got.Raw)

		_, err = s.Get("missing")
		assert.ErrorIs(t, err, ErrMessageNotFound)
	})

	t.Run("list newest first", func(t *testing.T) {
		s := open(t, 0)
		for i := 1; i <= 5; i++ {
			require.NoError(t, s.Save(testMessage(i)))
		}

		msgs, total, err := s.List(1, 3)
		require.NoError(t, err)
		assert.Equal(t, 5, total)
		require.Len(t, msgs, 3)
		assert.Equal(t, "msg-005", msgs[0].ID)
		assert.Equal(t, "msg-003", msgs[2].ID)

		msgs, _, err = s.List(2, 3)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "msg-002", msgs[0].ID)

		msgs, _, err = s.List(3, 3)
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("retention evicts oldest", func(t *testing.T) {
		s := open(t, 3)
		for i := 1; i <= 5; i++ {
			require.NoError(t, s.Save(testMessage(i)))
		}

		msgs, total, err := s.List(1, 10)
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, msgs, 3)
		assert.Equal(t, "msg-005", msgs[0].ID)
		assert.Equal(t, "msg-003", msgs[2].ID)

		_, err = s.Get("msg-001")
		assert.ErrorIs(t, err, ErrMessageNotFound)
	})

	t.Run("clear", func(t *testing.T) {
		s := open(t, 0)
		require.NoError(t, s.Save(testMessage(1)))
		require.NoError(t, s.Clear())

		_, total, err := s.List(1, 10)
		require.NoError(t, err)
		assert.Zero(t, total)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T, retention int) Store {
		return NewMemoryStore(retention)
	})
}

func TestBadgerStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T, retention int) Store {
		s, err := OpenBadgerStore(t.TempDir(), retention)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestSummarizeParsesHeaders(t *testing.T) {
	msg := testMessage(7)
	s := msg.Summarize()
	assert.Equal(t, "test 7", s.Subject)
	assert.Equal(t, msg.ID, s.ID)

	msg.Raw = []byte("not a mime message")
	s = msg.Summarize()
	assert.Empty(t, s.Subject)
	assert.Equal(t, msg.From, s.From)
}
