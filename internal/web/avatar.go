// SPDX-License-Identifier: MIT

package web

import (
	"crypto/md5" // #nosec G501 -- gravatar addressing, not password hashing
	"fmt"
	"strings"
)

// AvatarURL returns the Gravatar URL for an email address. Addresses are
// lowercased before hashing so the same mailbox always maps to the same
// image regardless of how the user typed it.
func AvatarURL(email string, size int) string {
	digest := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email)))) // #nosec G401
	return fmt.Sprintf("https://www.gravatar.com/avatar/%x?d=monsterid&s=%d", digest, size)
}
