// ABOUTME: Redis-backed read-through cache for the feed listing.
// ABOUTME: Wraps any Store and bumps a feed version whenever a post is created.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/2389-research/chirp/internal/models"
)

const (
	// FeedCacheKey prefixes the Redis keys holding the default feed page.
	FeedCacheKey = "chirp:feed"
	// FeedVersionKey counts feed writes. Cached pages are keyed by it, so a
	// page loaded before a write lands on a key no reader asks for.
	FeedVersionKey = "chirp:feed:version"
)

// feedKey is the cache key for the feed page at version v.
func feedKey(v int64) string {
	return FeedCacheKey + ":v" + strconv.FormatInt(v, 10)
}

const redisOpTimeout = 500 * time.Millisecond

// CachedStore caches the default feed listing of the wrapped store in Redis.
// Redis failures are logged and fall through to the wrapped store.
type CachedStore struct {
	Store
	client redis.Cmdable
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedStore wraps store with a Redis feed cache.
func NewCachedStore(store Store, client redis.Cmdable, ttl time.Duration, logger zerolog.Logger) *CachedStore {
	return &CachedStore{
		Store:  store,
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "feed_cache").Logger(),
	}
}

// NewRedisClient connects to addr and verifies the connection.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// CreatePost writes through to the wrapped store and invalidates the cached feed.
func (c *CachedStore) CreatePost(ctx context.Context, post *models.Post) error {
	if err := c.Store.CreatePost(ctx, post); err != nil {
		return err
	}
	c.Invalidate(ctx)
	return nil
}

// ListPosts serves the default page from Redis when present.
func (c *CachedStore) ListPosts(ctx context.Context, opts ListPostsOptions) ([]*models.Post, error) {
	if opts.limit() != DefaultFeedLimit {
		return c.Store.ListPosts(ctx, opts)
	}

	version, ok := c.version(ctx)
	if !ok {
		return c.Store.ListPosts(ctx, opts)
	}
	key := feedKey(version)
	if posts, ok := c.get(ctx, key); ok {
		return posts, nil
	}

	posts, err := c.Store.ListPosts(ctx, opts)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, posts)
	return posts, nil
}

// Invalidate advances the feed version. Pages cached under older versions
// are never read again and expire with their TTL.
func (c *CachedStore) Invalidate(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	if err := c.client.Incr(ctx, FeedVersionKey).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("failed to invalidate feed cache")
	}
}

// version reads the current feed version. A missing counter is version 0.
func (c *CachedStore) version(ctx context.Context) (int64, bool) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	v, err := c.client.Get(ctx, FeedVersionKey).Int64()
	switch {
	case errors.Is(err, redis.Nil):
		return 0, true
	case err != nil:
		c.logger.Warn().Err(err).Msg("feed cache version read failed")
		return 0, false
	}
	return v, true
}

func (c *CachedStore) get(ctx context.Context, key string) ([]*models.Post, bool) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Msg("feed cache read failed")
		}
		return nil, false
	}

	var posts []*models.Post
	if err := json.Unmarshal(data, &posts); err != nil {
		c.logger.Warn().Err(err).Msg("discarding undecodable feed cache entry")
		return nil, false
	}
	return posts, true
}

func (c *CachedStore) set(ctx context.Context, key string, posts []*models.Post) {
	data, err := json.Marshal(posts)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("feed cache write failed")
	}
}
