package engineports

import (
	"context"
	"time"
)

// KVStore is the cooldown side-channel: any key-value store with TTL
// support qualifies. Entries vanish on their own once the TTL elapses.
type KVStore interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (value string, ok bool, err error)
}
