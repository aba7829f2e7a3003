// Package lockout implements the progressive per-IP authentication
// lockout: a failure counter with a sliding window, exponential
// back-off, and a pluggable key-value store.
package lockout

import (
	"context"
	"time"
)

// Store is the KV contract the lockout engine is built on. It is the
// sole mutable external store the proxy touches; only this package
// writes to it, and only under the "auth:lockout:<ip>" key schema.
type Store interface {
	// Get returns the raw value and true if the key exists and has not
	// expired. A missing key returns (nil, false, nil), never an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key with the given absolute TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete unconditionally removes key. Deleting an absent key is not
	// an error.
	Delete(ctx context.Context, key string) error
}
