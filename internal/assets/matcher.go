// SPDX-License-Identifier: MIT

package assets

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Matcher decides whether a file path is covered by the config's
// content globs, i.e. whether changing it warrants a CSS rebuild.
type Matcher struct {
	patterns []string
}

// NewMatcher compiles the content globs. Patterns use `/` separators
// regardless of platform, matching Tailwind's own glob handling.
func NewMatcher(patterns []string) *Matcher {
	normalized := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimPrefix(filepath.ToSlash(p), "./")
		if p != "" {
			normalized = append(normalized, p)
		}
	}
	return &Matcher{patterns: normalized}
}

// Match reports whether path falls under any content glob. Paths are
// interpreted relative to the project root; absolute paths never match.
func (m *Matcher) Match(path string) bool {
	p := strings.TrimPrefix(filepath.ToSlash(filepath.Clean(path)), "./")
	if p == "" || strings.HasPrefix(p, "/") || strings.HasPrefix(p, "..") {
		return false
	}
	for _, pattern := range m.patterns {
		if ok, err := doublestar.Match(pattern, p); err == nil && ok {
			return true
		}
	}
	return false
}
