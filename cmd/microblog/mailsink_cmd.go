// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	mblog "github.com/sozzifer/microblog/internal/log"
	"github.com/sozzifer/microblog/internal/mailsink"
	"github.com/sozzifer/microblog/internal/version"
)

func runMailsinkCLI(args []string) int {
	fs := flag.NewFlagSet("mailsink", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file (YAML)")
	listen := fs.String("listen", "", "SMTP listen address (overrides config)")
	httpListen := fs.String("http", "", "inspect API listen address (overrides config)")
	persist := fs.Bool("persist", false, "store messages on disk under <data_dir>/mailsink")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing mailsink flags: %v\n", err)
		return 1
	}

	cfg, err := loadCLIConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return 1
	}
	if *listen != "" {
		cfg.Sink.Listen = *listen
	}
	if *httpListen != "" {
		cfg.Sink.HTTPListen = *httpListen
	}
	if *persist && cfg.Sink.Dir == "" {
		cfg.Sink.Dir = filepath.Join(cfg.DataDir, "mailsink")
	}

	mblog.Configure(mblog.Config{
		Level:   cfg.LogLevel,
		Service: "microblog-mailsink",
		Version: version.Version,
	})
	logger := mblog.WithComponent("mailsink")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store mailsink.Store
	if cfg.Sink.Dir != "" {
		store, err = mailsink.OpenBadgerStore(cfg.Sink.Dir, cfg.Sink.Retention)
		if err != nil {
			logger.Error().Err(err).Str("dir", cfg.Sink.Dir).Msg("failed to open message store")
			return 1
		}
	} else {
		store = mailsink.NewMemoryStore(cfg.Sink.Retention)
	}
	defer store.Close()

	smtpSrv := mailsink.NewServer(mailsink.Config{
		MaxMessageBytes: cfg.Sink.MaxMessageBytes,
		MaxRecipients:   cfg.Sink.MaxRecipients,
	}, store)

	httpSrv := &http.Server{
		Addr:              cfg.Sink.HTTPListen,
		Handler:           mailsink.NewHTTPHandler(store),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info().
		Str("smtp", cfg.Sink.Listen).
		Str("http", cfg.Sink.HTTPListen).
		Bool("persistent", cfg.Sink.Dir != "").
		Msg("mail sink starting")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return smtpSrv.ListenAndServe(gctx, cfg.Sink.Listen)
	})
	g.Go(func() error {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("inspect API: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("mail sink exited with error")
		return 1
	}
	logger.Info().Msg("mail sink stopped")
	return 0
}
