// Package replay detects reused nonces for the signing strategies.
//
// A NonceCache remembers a key for a bounded time. Check reports whether
// the key was already seen inside that window and records it otherwise,
// atomically, so two concurrent requests carrying the same nonce cannot
// both pass.
package replay

import (
	"context"
	"errors"
	"time"
)

// ErrReplayed is returned by strategies when a nonce was already used.
var ErrReplayed = errors.New("nonce already used")

// NonceCache records nonces.
type NonceCache interface {
	// Check returns true if key was recorded within ttl before this call.
	// Otherwise it records key for ttl and returns false.
	Check(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Key builds the cache key for a nonce. Nonces are scoped per credential
// and timestamp so two clients can use the same nonce value.
func Key(credentialID, ts, nonce string) string {
	return credentialID + ":" + ts + ":" + nonce
}
