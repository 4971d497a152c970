// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestNewManagerRequiresAppHandler(t *testing.T) {
	_, err := NewManager(ServerConfig{}, nil, nil)
	assert.Error(t, err)
}

func TestShutdownBeforeStart(t *testing.T) {
	m, err := NewManager(ServerConfig{Listen: "127.0.0.1:0"}, okHandler(), nil)
	require.NoError(t, err)
	assert.ErrorIs(t, m.Shutdown(context.Background()), ErrManagerNotStarted)
}

func TestStartStopsOnContextCancel(t *testing.T) {
	m, err := NewManager(ServerConfig{
		Listen:          "127.0.0.1:0",
		ShutdownTimeout: 2 * time.Second,
	}, okHandler(), nil)
	require.NoError(t, err)

	var order []string
	m.RegisterShutdownHook("first", func(context.Context) error {
		order = append(order, "first")
		return nil
	})
	m.RegisterShutdownHook("second", func(context.Context) error {
		order = append(order, "second")
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}

	// LIFO: last registered runs first
	assert.Equal(t, []string{"second", "first"}, order)
}

func TestStartReturnsServerError(t *testing.T) {
	// occupy a port so the app server fails to bind
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	m, err := NewManager(ServerConfig{
		Listen:          ln.Addr().String(),
		ShutdownTimeout: time.Second,
	}, okHandler(), nil)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- m.Start(context.Background()) }()

	select {
	case serr := <-errCh:
		require.Error(t, serr)
		assert.Contains(t, serr.Error(), "app server")
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not surface the bind failure")
	}
}

func TestShutdownHookErrorsSurface(t *testing.T) {
	m, err := NewManager(ServerConfig{
		Listen:          "127.0.0.1:0",
		ShutdownTimeout: time.Second,
	}, okHandler(), nil)
	require.NoError(t, err)

	hookErr := errors.New("close failed")
	m.RegisterShutdownHook("flaky", func(context.Context) error { return hookErr })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case serr := <-done:
		require.Error(t, serr)
		assert.ErrorIs(t, serr, hookErr)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return")
	}
}

func TestDoubleStartRejected(t *testing.T) {
	m, err := NewManager(ServerConfig{Listen: "127.0.0.1:0"}, okHandler(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = m.Start(ctx) }()
	time.Sleep(100 * time.Millisecond)
	defer cancel()

	assert.Error(t, m.Start(context.Background()))
}
