// SPDX-License-Identifier: MIT

// Package daemon owns process lifecycle: it brings up the HTTP servers,
// supervises them, and tears everything down in order on shutdown.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sozzifer/microblog/internal/log"
)

// ErrManagerNotStarted is returned by Shutdown before Start has run.
var ErrManagerNotStarted = errors.New("manager not started")

// ShutdownHook performs cleanup during graceful shutdown. Hooks run in
// reverse registration order (LIFO), so resources unwind in the
// opposite order they were built.
type ShutdownHook func(ctx context.Context) error

// ServerConfig bounds the HTTP servers the manager runs.
type ServerConfig struct {
	Listen          string
	MetricsListen   string // empty disables the metrics listener
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

func (c *ServerConfig) applyDefaults() {
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 2 * time.Minute
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 15 * time.Second
	}
}

// Manager runs the application server and the optional metrics server
// until its context is canceled or a server fails.
type Manager struct {
	cfg            ServerConfig
	appHandler     http.Handler
	metricsHandler http.Handler

	appServer     *http.Server
	metricsServer *http.Server

	mu            sync.Mutex
	started       bool
	stopping      bool
	shutdownHooks []namedHook
}

type namedHook struct {
	name string
	hook ShutdownHook
}

// NewManager creates a lifecycle manager. metricsHandler may be nil
// when metrics are disabled.
func NewManager(cfg ServerConfig, appHandler, metricsHandler http.Handler) (*Manager, error) {
	if appHandler == nil {
		return nil, fmt.Errorf("app handler is required")
	}
	cfg.applyDefaults()
	return &Manager{
		cfg:            cfg,
		appHandler:     appHandler,
		metricsHandler: metricsHandler,
	}, nil
}

// RegisterShutdownHook adds a named cleanup step. Register in build
// order; execution is reversed.
func (m *Manager) RegisterShutdownHook(name string, hook ShutdownHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownHooks = append(m.shutdownHooks, namedHook{name: name, hook: hook})
	logger := log.WithComponent("daemon")
	logger.Debug().Str("hook", name).Msg("registered shutdown hook")
}

// Start brings up the servers and blocks until ctx is canceled or a
// server fails, then shuts everything down.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("manager already started")
	}
	m.started = true
	m.mu.Unlock()

	logger := log.WithComponent("daemon")
	logger.Info().
		Str("listen", m.cfg.Listen).
		Str("metrics_listen", m.cfg.MetricsListen).
		Dur("shutdown_timeout", m.cfg.ShutdownTimeout).
		Msg("starting")

	errChan := make(chan error, 2)

	m.startAppServer(errChan)
	if m.metricsHandler != nil && m.cfg.MetricsListen != "" {
		m.startMetricsServer(errChan)
	}

	select {
	case err := <-errChan:
		logger.Error().Err(err).Msg("server error, initiating shutdown")
		// Detached but bounded: shutdown must finish even though the
		// parent may already be canceled.
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.ShutdownTimeout)
		defer cancel()
		if shutdownErr := m.Shutdown(shutdownCtx); shutdownErr != nil {
			return errors.Join(err, shutdownErr)
		}
		return err
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.ShutdownTimeout)
		defer cancel()
		return m.Shutdown(shutdownCtx)
	}
}

func (m *Manager) startAppServer(errChan chan<- error) {
	m.appServer = &http.Server{
		Addr:              m.cfg.Listen,
		Handler:           m.appHandler,
		ReadTimeout:       m.cfg.ReadTimeout,
		ReadHeaderTimeout: m.cfg.ReadTimeout / 2,
		WriteTimeout:      m.cfg.WriteTimeout,
		IdleTimeout:       m.cfg.IdleTimeout,
	}

	go func() {
		logger := log.WithComponent("daemon")
		logger.Info().
			Str("addr", m.cfg.Listen).
			Msg("app server listening")
		if err := m.appServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("app server: %w", err)
		}
	}()
}

func (m *Manager) startMetricsServer(errChan chan<- error) {
	m.metricsServer = &http.Server{
		Addr:              m.cfg.MetricsListen,
		Handler:           m.metricsHandler,
		ReadHeaderTimeout: m.cfg.ReadTimeout / 2,
	}

	go func() {
		logger := log.WithComponent("daemon")
		logger.Info().
			Str("addr", m.cfg.MetricsListen).
			Msg("metrics server listening")
		if err := m.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("metrics server: %w", err)
		}
	}()
}

// Shutdown stops the servers and runs the hooks. Safe to call once;
// subsequent calls are no-ops.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		return nil
	}
	if !m.started {
		m.mu.Unlock()
		return ErrManagerNotStarted
	}
	m.stopping = true
	hooks := make([]namedHook, len(m.shutdownHooks))
	copy(hooks, m.shutdownHooks)
	m.mu.Unlock()

	logger := log.WithComponent("daemon")
	logger.Info().Msg("shutting down")

	var errs []error

	if m.appServer != nil {
		if err := m.appServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("app server shutdown: %w", err))
		}
	}
	if m.metricsServer != nil {
		if err := m.metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		start := time.Now()
		if err := h.hook(ctx); err != nil {
			logger.Error().
				Err(err).
				Str("hook", h.name).
				Dur("duration", time.Since(start)).
				Msg("shutdown hook failed")
			errs = append(errs, fmt.Errorf("hook %s: %w", h.name, err))
			continue
		}
		logger.Debug().
			Str("hook", h.name).
			Dur("duration", time.Since(start)).
			Msg("shutdown hook completed")
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	logger.Info().Msg("stopped cleanly")
	return nil
}
