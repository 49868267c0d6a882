// Package tokenstore holds the client's short-lived access token.
//
// A Store is pure storage: it never validates tokens and never talks to the
// TrueMatch API. All backends are fail-soft. A backend that cannot be reached
// reports the token as absent on Read and logs failed writes instead of
// returning them, so callers never have to handle storage errors.
package tokenstore

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Store is the durable handle for the current access token.
type Store interface {
	// Save replaces the current token.
	Save(token string)

	// Read returns the current token and whether one is present.
	Read() (string, bool)

	// Clear removes the current token. Clearing an empty store is a no-op.
	Clear()
}

// Fingerprint returns a short, non-reversible identifier for token that is
// safe to log. It returns "" for an empty token.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	sum := blake3.Sum256([]byte(token))
	return hex.EncodeToString(sum[:6])
}
