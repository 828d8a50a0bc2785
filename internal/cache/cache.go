package cache

import (
	"context"
	"time"
)

// StatCache is a read-through cache for serialized comparison reports. It is
// strictly an accelerator: the comparison service recomputes on any miss or
// error, so a cache can lose or drop entries freely.
type StatCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, report string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// StatKey builds the cache key for an ordered version pair.
func StatKey(version1ID, version2ID string) string {
	return "compare:" + version1ID + ":" + version2ID
}
