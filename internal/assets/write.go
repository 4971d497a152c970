// SPDX-License-Identifier: MIT

package assets

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/renameio/v2"

	"github.com/sozzifer/microblog/internal/log"
)

// ErrConfigExists indicates a valid config file is already in place and
// --force was not given.
var ErrConfigExists = errors.New("tailwind config already exists")

// InitConfig writes the default tailwind.config.js to path. An existing
// file is validated instead of overwritten; force replaces it
// regardless.
func InitConfig(path string, force bool) error {
	if !force {
		if data, err := os.ReadFile(path); err == nil {
			if verr := ValidateConfigJS(data); verr != nil {
				return fmt.Errorf("%s exists but does not validate (%v); use --force to replace it", path, verr)
			}
			return fmt.Errorf("%w at %s; use --force to replace it", ErrConfigExists, path)
		}
	}
	return WriteConfig(path, DefaultConfig())
}

// WriteConfig renders cfg and writes it atomically: the file is either
// the previous version or the complete new one, never a torn write.
func WriteConfig(path string, cfg Config) error {
	data, err := cfg.RenderJS()
	if err != nil {
		return err
	}

	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending config file: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			logger := log.WithComponent("assets")
			logger.Debug().Err(err).Msg("cleanup pending config file")
		}
	}()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("write config data: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace config file: %w", err)
	}

	logger := log.WithComponent("assets")

	logger.Info().
		Str("event", "assets.config_written").
		Str("path", path).
		Msg("tailwind config written")
	return nil
}

// LoadConfig reads and parses an existing config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read tailwind config: %w", err)
	}
	return ParseConfigJS(data)
}
