package lookup

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lyzr/wkflws/pkg/event"
)

// cacheStore is the narrow subset of common/redis.Client that Cached
// needs; kept as an interface so it can be faked in tests without a
// live Redis instance.
type cacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Cached wraps a Lookup with a Redis-backed read-through cache keyed
// by initialNodeID, so a hot trigger node doesn't re-walk the
// filesystem or re-query Postgres on every firing event.
type Cached struct {
	inner Lookup
	cache cacheStore
	ttl   time.Duration
}

// NewCached wraps inner with a cache entry lifetime of ttl.
func NewCached(inner Lookup, cache cacheStore, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cached{inner: inner, cache: cache, ttl: ttl}
}

// GetWorkflows serves from cache when present; a cache miss or decode
// failure falls back to inner and repopulates the entry.
func (c *Cached) GetWorkflows(ctx context.Context, initialNodeID string, evt event.Event) ([]WorkflowExecutionData, error) {
	key := "wkflws:lookup:" + initialNodeID

	// A cache miss and a cache error are handled identically: fall
	// through to inner and repopulate. Redis being unavailable should
	// degrade lookup latency, not lookup correctness.
	if cached, err := c.cache.Get(ctx, key); err == nil {
		var out []WorkflowExecutionData
		if err := json.Unmarshal([]byte(cached), &out); err == nil {
			return out, nil
		}
	}

	workflows, err := c.inner.GetWorkflows(ctx, initialNodeID, evt)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(workflows); err == nil {
		_ = c.cache.Set(ctx, key, string(encoded), c.ttl)
	}

	return workflows, nil
}

var _ Lookup = (*Cached)(nil)
