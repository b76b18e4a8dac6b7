// Package cache holds the Redis-backed cache for the dashboard's unfiltered
// first page, the single hottest query the ledger serves.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ecoaudit/internal/audit"
	"ecoaudit/pkg/platform/sentinel"
)

const (
	keyPrefix  = "audit:recent:"
	defaultTTL = 30 * time.Second
)

// Recent caches the most recent unfiltered page per limit. Entries are
// invalidated on every append, so the TTL only bounds staleness when
// invalidation itself fails.
type Recent struct {
	client *redis.Client
	ttl    time.Duration
}

// New constructs the cache over an established Redis client.
func New(client *redis.Client, ttl time.Duration) *Recent {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Recent{client: client, ttl: ttl}
}

// GetRecent returns the cached page for the limit, or sentinel.ErrNotFound on
// a miss.
func (c *Recent) GetRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	raw, err := c.client.Get(ctx, key(limit)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get recent page: %w", err)
	}

	var events []audit.Event
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, fmt.Errorf("decode recent page: %w", err)
	}
	return events, nil
}

// SetRecent stores the page for the limit.
func (c *Recent) SetRecent(ctx context.Context, limit int, events []audit.Event) error {
	raw, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("encode recent page: %w", err)
	}
	if err := c.client.Set(ctx, key(limit), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set recent page: %w", err)
	}
	return nil
}

// Invalidate removes every cached page. Called after each append so readers
// never see a first page missing the newest event.
func (c *Recent) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan recent pages: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete recent pages: %w", err)
	}
	return nil
}

func key(limit int) string {
	return fmt.Sprintf("%s%d", keyPrefix, limit)
}
