// Package store provides the expiring key/value storage shared by the rate
// limiter and the result cache.
package store

import (
	"context"
	"time"
)

// Store is a byte store with per-key TTLs.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns (value, true, nil) on hit and (nil, false, nil) on miss or expiry.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set overwrites key with value, expiring after ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// IncrementBelow atomically increments the counter at key when its current
	// value is below limit. A missing or expired counter starts at zero with a
	// fresh window; later increments keep the first expiry.
	// It returns the counter value after the call and whether it was incremented.
	IncrementBelow(ctx context.Context, key string, limit int64, window time.Duration) (count int64, ok bool, err error)
}
