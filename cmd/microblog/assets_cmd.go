// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sozzifer/microblog/internal/assets"
	"github.com/sozzifer/microblog/internal/config"
	mblog "github.com/sozzifer/microblog/internal/log"
	"github.com/sozzifer/microblog/internal/version"
)

const assetsUsage = `Usage: microblog assets <command> [flags]

Commands:
  init    write tailwind.config.js (refuses to overwrite a valid one without --force)
  build   compile the stylesheet once
  watch   rebuild whenever a template changes
`

func runAssetsCLI(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, assetsUsage)
		return 2
	}
	sub := args[0]

	fs := flag.NewFlagSet("assets "+sub, flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file (YAML)")
	force := fs.Bool("force", false, "overwrite an existing tailwind.config.js (init only)")

	if err := fs.Parse(args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing assets flags: %v\n", err)
		return 1
	}

	cfg, err := loadCLIConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return 1
	}

	mblog.Configure(mblog.Config{
		Level:   cfg.LogLevel,
		Service: "microblog-assets",
		Version: version.Version,
	})

	switch sub {
	case "init":
		return assetsInit(cfg, *force)
	case "build":
		return assetsBuild(cfg)
	case "watch":
		return assetsWatch(cfg)
	default:
		fmt.Fprintf(os.Stderr, "Unknown assets command %q\n\n%s", sub, assetsUsage)
		return 2
	}
}

func assetsInit(cfg config.Config, force bool) int {
	err := assets.InitConfig(cfg.Assets.ConfigPath, force)
	if errors.Is(err, assets.ErrConfigExists) {
		fmt.Fprintf(os.Stderr, "%s already exists and is valid; use --force to overwrite\n", cfg.Assets.ConfigPath)
		return 1
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", cfg.Assets.ConfigPath, err)
		return 1
	}
	fmt.Printf("Wrote %s\n", cfg.Assets.ConfigPath)
	return 0
}

func newAssetsRunner(cfg config.Config) *assets.Runner {
	return assets.NewRunner(
		cfg.Assets.TailwindBin,
		cfg.Assets.ConfigPath,
		cfg.Assets.InputCSS,
		cfg.Assets.OutputCSS,
		cfg.Assets.BuildTimeout,
	)
}

func assetsBuild(cfg config.Config) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := newAssetsRunner(cfg)
	if err := runner.Build(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Build failed: %v\n", err)
		if out := runner.LastOutput(); out != "" {
			fmt.Fprintln(os.Stderr, out)
		}
		return 1
	}
	fmt.Printf("Built %s\n", cfg.Assets.OutputCSS)
	return 0
}

func assetsWatch(cfg config.Config) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := mblog.WithComponent("assets")

	tcfg, err := assets.LoadConfig(cfg.Assets.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading %s: %v (run `microblog assets init` first)\n", cfg.Assets.ConfigPath, err)
		return 1
	}
	matcher := assets.NewMatcher(tcfg.Content)

	runner := newAssetsRunner(cfg)
	rebuild := func(ctx context.Context) {
		if err := runner.Build(ctx); err != nil {
			logger.Error().Err(err).Str("output", runner.LastOutput()).Msg("rebuild failed")
			return
		}
		logger.Info().Str("css", cfg.Assets.OutputCSS).Msg("stylesheet rebuilt")
	}

	// Build once up front so the watcher starts from a current stylesheet.
	rebuild(ctx)

	watcher := assets.NewWatcher(cfg.Assets.TemplatesDir, matcher, 0, rebuild)
	if err := watcher.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Watch failed: %v\n", err)
		return 1
	}
	return 0
}
