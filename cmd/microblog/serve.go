// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sozzifer/microblog/internal/auth"
	"github.com/sozzifer/microblog/internal/cache"
	"github.com/sozzifer/microblog/internal/config"
	"github.com/sozzifer/microblog/internal/daemon"
	"github.com/sozzifer/microblog/internal/health"
	mblog "github.com/sozzifer/microblog/internal/log"
	"github.com/sozzifer/microblog/internal/mailer"
	"github.com/sozzifer/microblog/internal/store"
	"github.com/sozzifer/microblog/internal/telemetry"
	"github.com/sozzifer/microblog/internal/web"
)

// runServe wires the full daemon: config -> telemetry -> store ->
// sessions -> mailer -> web server, then hands lifecycle control to the
// daemon manager.
func runServe(ctx context.Context, cfg config.Config) error {
	logger := mblog.WithComponent("serve")

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	provider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    "microblog",
		ServiceVersion: cfg.Version,
		ExporterType:   cfg.Tracing.Exporter,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	if cfg.AutoMigrate {
		applied, err := st.Migrate(ctx)
		if err != nil {
			st.Close()
			return fmt.Errorf("apply migrations: %w", err)
		}
		if applied > 0 {
			logger.Info().
				Int("applied", applied).
				Str("event", "migrate.applied").
				Msg("applied pending schema migrations")
		}
	} else {
		pending, err := st.Pending(ctx)
		if err != nil {
			st.Close()
			return fmt.Errorf("check migrations: %w", err)
		}
		if len(pending) > 0 {
			st.Close()
			return fmt.Errorf("%d schema migrations pending; run `microblog migrate` or set MICROBLOG_AUTO_MIGRATE=true", len(pending))
		}
	}

	healthMgr := health.NewManager(cfg.Version)
	healthMgr.RegisterChecker(health.NewPingChecker("sqlite", health.PingerFunc(st.Ping)))

	var sessionCache cache.Cache
	var redisCache *cache.RedisCache
	if cfg.RedisAddr != "" {
		redisCache, err = cache.NewRedisCache(cache.RedisConfig{Addr: cfg.RedisAddr}, mblog.WithComponent("cache"))
		if err != nil {
			st.Close()
			return fmt.Errorf("connect redis: %w", err)
		}
		sessionCache = redisCache
		healthMgr.RegisterChecker(health.NewPingChecker("redis", health.PingerFunc(redisCache.HealthCheck)))
	} else {
		sessionCache = cache.NewMemoryCache(10 * time.Minute)
	}

	sessions := auth.NewSessions(sessionCache, cfg.SessionTTL, cfg.RememberTTL)

	// Outbound mail is optional: without a configured server, reset
	// requests log the reset link instead of sending it.
	var outbox *mailer.Outbox
	var reset web.ResetMailer
	if cfg.Mail.Server != "" {
		smtp := mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.Mail.Server,
			Port:     cfg.Mail.Port,
			UseTLS:   cfg.Mail.UseTLS,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			Timeout:  cfg.Mail.SendTimeout,
		})
		outbox = mailer.NewOutbox(smtp, mailer.OutboxConfig{
			QueueSize:     cfg.Mail.QueueSize,
			RatePerSecond: cfg.Mail.RatePerSecond,
			SendTimeout:   cfg.Mail.SendTimeout,
		})
		outbox.Start(ctx)

		// Validation guarantees at least one admin address when a mail
		// server is configured; the first one is the sender.
		reset = mailer.NewResetSender(outbox, cfg.Mail.Admins[0])
	}

	srv, err := web.New(cfg, st, sessions, reset, healthMgr)
	if err != nil {
		st.Close()
		return fmt.Errorf("build web server: %w", err)
	}

	serverCfg := daemon.ServerConfig{Listen: cfg.Listen}
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		serverCfg.MetricsListen = cfg.Metrics.Listen
		metricsHandler = promhttp.Handler()
	}
	mgr, err := daemon.NewManager(serverCfg, srv.Routes(), metricsHandler)
	if err != nil {
		st.Close()
		return fmt.Errorf("build daemon manager: %w", err)
	}

	// Hooks run LIFO on shutdown: drain mail first, then release storage.
	mgr.RegisterShutdownHook("store", func(ctx context.Context) error {
		return st.Close()
	})
	if redisCache != nil {
		mgr.RegisterShutdownHook("redis", func(ctx context.Context) error {
			return redisCache.Close()
		})
	}
	if outbox != nil {
		mgr.RegisterShutdownHook("outbox", func(ctx context.Context) error {
			return outbox.Close(ctx)
		})
	}
	mgr.RegisterShutdownHook("telemetry", func(ctx context.Context) error {
		return provider.Shutdown(ctx)
	})

	logger.Info().
		Str("listen", cfg.Listen).
		Str("event", "daemon.starting").
		Msg("starting microblog daemon")

	return mgr.Start(ctx)
}
