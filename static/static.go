// SPDX-License-Identifier: MIT

// Package static embeds the compiled asset bundle served under /static/.
// The css directory holds the Tailwind build output; regenerate it with
// `microblog assets build`.
package static

import "embed"

//go:embed css
var FS embed.FS
