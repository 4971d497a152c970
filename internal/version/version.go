// SPDX-License-Identifier: MIT

// Package version carries build-time identification, populated via ldflags.
package version

var (
	// Version is the application version. Overridden by the build system
	// (ldflags); the fallback marks a source build.
	Version = "dev"

	// Commit is the git short hash of the build.
	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"
)
