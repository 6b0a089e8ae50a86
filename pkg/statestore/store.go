// Package statestore defines the shared ephemeral state contract every engine
// depends on: JSON-valued keys with per-key expiry, counters with an atomic
// floor-checked decrement, and a sorted-set primitive for ordered queues.
package statestore

import (
	"context"
	"time"
)

// Store is the only persistence surface available to the engines. Values are
// serialized opaquely; TTL enforcement is the store's responsibility.
type Store interface {
	// Get unmarshals the value at key into dest and reports whether the key
	// was present.
	Get(ctx context.Context, key string, dest any) (bool, error)
	// Set stores the value. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)

	// Increment and Decrement adjust an integer counter, creating it at zero
	// when absent.
	Increment(ctx context.Context, key string, amount int64) (int64, error)
	Decrement(ctx context.Context, key string, amount int64) (int64, error)
	// DecrementFloor applies the decrement only when the result stays at or
	// above zero. It reports whether the decrement was applied and the
	// resulting (or unchanged) counter value. This is the primitive that
	// keeps concurrent reservations from overselling.
	DecrementFloor(ctx context.Context, key string, amount int64) (bool, int64, error)

	// Sorted-set operations used for priority queues. Lower scores sort first.
	ZAdd(ctx context.Context, key, member string, score float64) error
	ZRange(ctx context.Context, key string, start, end int64) ([]string, error)
	ZRem(ctx context.Context, key, member string) error
	ZCard(ctx context.Context, key string) (int64, error)
}
