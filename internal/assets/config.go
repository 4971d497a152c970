// SPDX-License-Identifier: MIT

// Package assets owns the CSS toolchain boundary: the Tailwind config
// file, the template-glob matcher that feeds it, and the wrapper around
// the external tailwindcss compiler.
package assets

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Config models tailwind.config.js. The rendered object literal is kept
// JSON-shaped so the file can be parsed back for validation.
type Config struct {
	Mode    string   `json:"mode,omitempty"`
	Content []string `json:"content"`
	Theme   Theme    `json:"theme"`
	Plugins []string `json:"plugins"`
}

// Theme carries the theme.extend block.
type Theme struct {
	Extend map[string]any `json:"extend"`
}

// DefaultConfig returns the configuration the app ships with: JIT mode
// scanning every HTML template.
func DefaultConfig() Config {
	return Config{
		Mode: "jit",
		Content: []string{
			"./templates/**/*.html",
			"./templates/**/*.htm",
		},
		Theme:   Theme{Extend: map[string]any{}},
		Plugins: []string{},
	}
}

const configHeader = "/* Generated by `microblog assets init`. Edit freely; the structure\n   must stay JSON-shaped for `microblog assets` to validate it. */\n"

// RenderJS renders the config as a CommonJS module.
func (c Config) RenderJS() ([]byte, error) {
	obj, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal tailwind config: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(configHeader)
	buf.WriteString("module.exports = ")
	buf.Write(obj)
	buf.WriteString(";\n")
	return buf.Bytes(), nil
}

// ParseConfigJS parses a config file previously rendered by RenderJS
// (or hand-edited while keeping the JSON object shape).
func ParseConfigJS(data []byte) (Config, error) {
	var cfg Config

	text := string(data)
	// drop block comments
	for {
		start := strings.Index(text, "/*")
		if start < 0 {
			break
		}
		end := strings.Index(text[start:], "*/")
		if end < 0 {
			return cfg, fmt.Errorf("unterminated comment in config")
		}
		text = text[:start] + text[start+end+2:]
	}

	idx := strings.Index(text, "module.exports")
	if idx < 0 {
		return cfg, fmt.Errorf("config has no module.exports assignment")
	}
	text = text[idx+len("module.exports"):]
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "=")
	text = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), ";"))

	if err := json.Unmarshal([]byte(text), &cfg); err != nil {
		return cfg, fmt.Errorf("parse tailwind config object: %w", err)
	}
	return cfg, nil
}

// ValidateConfigJS checks that data parses and names at least one
// content glob.
func ValidateConfigJS(data []byte) error {
	cfg, err := ParseConfigJS(data)
	if err != nil {
		return err
	}
	if len(cfg.Content) == 0 {
		return fmt.Errorf("tailwind config has no content globs")
	}
	return nil
}
