package geocode

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "geocode:addr:"

// cachedEntry wraps a result so "no match" is cacheable too; repeated
// lookups of a bad address should not hammer Nominatim.
type cachedEntry struct {
	Found  bool    `json:"found"`
	Result *Result `json:"result,omitempty"`
}

// CachedGeocoder is a Redis read-through cache in front of another Geocoder.
//
// Strategy:
//  1. Try Redis first (fast path, <1ms).
//  2. On cache miss, call the inner geocoder, then cache the outcome.
//
// Cache writes are fire-and-forget; Redis being down degrades to direct
// lookups, never to errors.
type CachedGeocoder struct {
	inner Geocoder
	redis *redis.Client
	ttl   time.Duration
}

// NewCachedGeocoder wraps a geocoder with a Redis cache.
func NewCachedGeocoder(inner Geocoder, rdb *redis.Client, ttl time.Duration) *CachedGeocoder {
	return &CachedGeocoder{inner: inner, redis: rdb, ttl: ttl}
}

// Resolve returns the cached result for the address, falling through to the
// inner geocoder on a miss.
func (c *CachedGeocoder) Resolve(ctx context.Context, address string) (*Result, error) {
	key := cacheKeyPrefix + normalizeAddress(address)

	// ── Fast path: Redis cache ──────────────────────────
	if raw, err := c.redis.Get(ctx, key).Bytes(); err == nil {
		var entry cachedEntry
		if json.Unmarshal(raw, &entry) == nil {
			return entry.Result, nil
		}
	}

	// ── Slow path: inner geocoder ───────────────────────
	result, err := c.inner.Resolve(ctx, address)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(cachedEntry{Found: result != nil, Result: result}); err == nil {
		_ = c.redis.Set(ctx, key, raw, c.ttl).Err()
	}
	return result, nil
}

func normalizeAddress(address string) string {
	return strings.ToLower(strings.Join(strings.Fields(address), " "))
}

var _ Geocoder = (*CachedGeocoder)(nil)
