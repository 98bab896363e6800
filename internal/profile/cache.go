package profile

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a read-through Redis decorator over another Store. Cache errors
// fall back to the underlying store; a broken cache must not fail runs.
type Cache struct {
	next   Store
	client *redis.Client
	ttl    time.Duration
}

// NewCache wraps next with a Redis cache. A zero ttl defaults to 5 minutes.
func NewCache(next Store, client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{next: next, client: client, ttl: ttl}
}

func cacheKey(id string) string {
	return "scene-validator:profile:" + id
}

// Resolve implements Store.
func (c *Cache) Resolve(ctx context.Context, id string) (*Profile, error) {
	data, err := c.client.Get(ctx, cacheKey(id)).Bytes()
	if err == nil {
		var p Profile
		if jsonErr := json.Unmarshal(data, &p); jsonErr == nil {
			return &p, nil
		}
		// Stale or corrupt entry; drop it and fall through.
		c.client.Del(ctx, cacheKey(id))
	} else if err != redis.Nil {
		log.Printf("profile cache read failed for %s: %v", id, err)
	}

	p, err := c.next.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, jsonErr := json.Marshal(p); jsonErr == nil {
		if setErr := c.client.Set(ctx, cacheKey(id), data, c.ttl).Err(); setErr != nil {
			log.Printf("profile cache write failed for %s: %v", id, setErr)
		}
	}
	return p, nil
}

// List delegates to the underlying store; listings are not cached.
func (c *Cache) List(ctx context.Context) ([]*Profile, error) {
	l, ok := c.next.(Lister)
	if !ok {
		return nil, errors.New("underlying profile store does not support listing")
	}
	return l.List(ctx)
}
