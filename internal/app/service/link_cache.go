package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mkteagle/teaglink/internal/app/model"
	"github.com/redis/go-redis/v9"
)

const (
	linkCacheTTL    = 10 * time.Minute
	linkCachePrefix = "link:"
)

// LinkCache is a read-through cache for link lookups on the redirect hot
// path. All methods are nil-receiver safe so the cache can simply be absent,
// and every error degrades to a miss.
type LinkCache struct {
	client *redis.Client
}

// NewLinkCache wraps a redis client; a nil client disables caching.
func NewLinkCache(client *redis.Client) *LinkCache {
	if client == nil {
		return nil
	}
	return &LinkCache{client: client}
}

// Get returns the cached link or nil on miss.
func (c *LinkCache) Get(ctx context.Context, id string) *model.Link {
	if c == nil {
		return nil
	}
	data, err := c.client.Get(ctx, linkCachePrefix+id).Bytes()
	if err != nil {
		return nil
	}
	var link model.Link
	if err := json.Unmarshal(data, &link); err != nil {
		return nil
	}
	return &link
}

// Set stores the link for the cache TTL.
func (c *LinkCache) Set(ctx context.Context, link *model.Link) {
	if c == nil || link == nil {
		return
	}
	data, err := json.Marshal(link)
	if err != nil {
		return
	}
	c.client.Set(ctx, linkCachePrefix+link.ID, data, linkCacheTTL)
}

// Invalidate drops the cached entry. Called on every destination or archived
// mutation and on delete.
func (c *LinkCache) Invalidate(ctx context.Context, id string) {
	if c == nil {
		return
	}
	c.client.Del(ctx, linkCachePrefix+id)
}
