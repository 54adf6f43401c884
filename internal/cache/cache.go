// Package cache provides the shared keyed TTL store used for gateway lookups.
package cache

import (
	"context"
	"time"
)

// Store is a keyed TTL cache. Values are JSON encoded so that the memory and
// redis implementations behave the same. Writes are last-writer-wins.
type Store interface {
	// Get decodes the value stored under key into dst and reports whether
	// the key was present.
	Get(ctx context.Context, key string, dst interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}
