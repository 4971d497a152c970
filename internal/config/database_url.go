// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"strings"
)

// ParseDatabaseURL resolves a DATABASE_URL value to a SQLite file path.
// Accepted forms: a plain path, "sqlite:///relative/path" and
// "sqlite:////absolute/path". Other schemes are rejected.
func ParseDatabaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("database URL is empty")
	}
	if !strings.Contains(raw, "://") {
		return raw, nil
	}
	const scheme = "sqlite://"
	if !strings.HasPrefix(raw, scheme) {
		return "", fmt.Errorf("unsupported database scheme in %q (only sqlite supported)", raw)
	}
	// sqlite:///app.db -> app.db, sqlite:////var/db/app.db -> /var/db/app.db
	path := strings.TrimPrefix(strings.TrimPrefix(raw, scheme), "/")
	if strings.HasPrefix(strings.TrimPrefix(raw, scheme), "//") {
		path = "/" + strings.TrimPrefix(path, "/")
	}
	if path == "" {
		return "", fmt.Errorf("database URL %q has no path", raw)
	}
	return path, nil
}
