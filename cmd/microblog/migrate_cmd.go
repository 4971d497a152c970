// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sozzifer/microblog/internal/config"
	"github.com/sozzifer/microblog/internal/store"
	"github.com/sozzifer/microblog/internal/version"
)

// loadCLIConfig resolves configuration for operator subcommands with the
// same precedence as the daemon: explicit --config, else an existing
// ${MICROBLOG_DATA_DIR}/config.yaml, else env and defaults.
func loadCLIConfig(configPath string) (config.Config, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		dataDir := strings.TrimSpace(config.ParseString("MICROBLOG_DATA_DIR", "./data"))
		if dataDir != "" {
			autoPath := filepath.Join(dataDir, "config.yaml")
			if _, err := os.Stat(autoPath); err == nil {
				path = autoPath
			}
		}
	}
	loader := config.NewLoader(path, version.Version)
	return loader.Load()
}

func runMigrateCLI(args []string) int {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file (YAML)")
	status := fs.Bool("status", false, "show applied and pending migrations, change nothing")
	dryRun := fs.Bool("dry-run", false, "list pending migrations without applying them")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing migrate flags: %v\n", err)
		return 1
	}

	cfg, err := loadCLIConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database %s: %v\n", cfg.DatabasePath, err)
		return 1
	}
	defer st.Close()

	switch {
	case *status:
		return migrateStatus(ctx, st)
	case *dryRun:
		return migrateDryRun(ctx, st)
	default:
		applied, err := st.Migrate(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
			return 1
		}
		if applied == 0 {
			fmt.Println("Database schema is up to date.")
		} else {
			fmt.Printf("Applied %d migration(s).\n", applied)
		}
		return 0
	}
}

func migrateStatus(ctx context.Context, st *store.Store) int {
	history, err := st.History(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading migration history: %v\n", err)
		return 1
	}
	pending, err := st.Pending(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading pending migrations: %v\n", err)
		return 1
	}

	if len(history) == 0 {
		fmt.Println("Applied: none")
	} else {
		fmt.Println("Applied:")
		for _, m := range history {
			fmt.Printf("  %3d  %-40s %s\n", m.Version, m.Name, m.AppliedAt.Format(time.RFC3339))
		}
	}
	if len(pending) == 0 {
		fmt.Println("Pending: none")
		return 0
	}
	fmt.Println("Pending:")
	for _, m := range pending {
		fmt.Printf("  %3d  %s\n", m.Version, m.Name)
	}
	return 0
}

func migrateDryRun(ctx context.Context, st *store.Store) int {
	pending, err := st.Pending(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading pending migrations: %v\n", err)
		return 1
	}
	if len(pending) == 0 {
		fmt.Println("Database schema is up to date; nothing to apply.")
		return 0
	}
	fmt.Printf("Would apply %d migration(s):\n", len(pending))
	for _, m := range pending {
		fmt.Printf("  %3d  %s\n", m.Version, m.Name)
	}
	return 0
}
