package render

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/mx-space/viewblock/internal/pkg/redis"
)

const cachePrefix = "views:render:"

// Cache stores rendered directives in Redis. A Cache without a client is a no-op.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

func cacheKey(viewID uint, directive string) string {
	sum := sha256.Sum256([]byte(directive))
	return fmt.Sprintf("%s%d:%s", cachePrefix, viewID, hex.EncodeToString(sum[:16]))
}

func (c *Cache) enabled() bool { return c != nil && c.rdb != nil && c.ttl > 0 }

func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	if !c.enabled() {
		return "", false
	}
	v, ok, err := c.rdb.Get(ctx, key)
	if err != nil {
		return "", false
	}
	return v, ok
}

func (c *Cache) Set(ctx context.Context, key, html string) error {
	if !c.enabled() {
		return nil
	}
	return c.rdb.Set(ctx, key, html, c.ttl)
}

// InvalidateView drops every cached render of view id.
func (c *Cache) InvalidateView(ctx context.Context, id uint) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	_, err := c.rdb.DelPattern(ctx, fmt.Sprintf("%s%d:*", cachePrefix, id))
	return err
}

// PurgeAll drops every cached render.
func (c *Cache) PurgeAll(ctx context.Context) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	_, err := c.rdb.DelPattern(ctx, cachePrefix+"*")
	return err
}
