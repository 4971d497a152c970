// SPDX-License-Identifier: MIT

// Package templates embeds the server-rendered HTML templates. This
// tree is also what the CSS build's content globs scan for class names.
package templates

import "embed"

// FS holds the page templates and the email bodies.
//
//go:embed *.html email/*
var FS embed.FS
