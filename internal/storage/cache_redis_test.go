// ABOUTME: Tests for the Redis feed cache decorator using redismock.
// ABOUTME: Covers hits, misses, versioned invalidation on create, and fall-through on Redis errors.
package storage

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389-research/chirp/internal/models"
)

const testTTL = 30 * time.Second

// countingStore records how often the feed is read from the underlying store.
type countingStore struct {
	Store
	lists int
}

func (c *countingStore) ListPosts(ctx context.Context, opts ListPostsOptions) ([]*models.Post, error) {
	c.lists++
	return c.Store.ListPosts(ctx, opts)
}

func newCachedTestStore(t *testing.T) (*CachedStore, *countingStore, redismock.ClientMock) {
	t.Helper()
	client, mock := redismock.NewClientMock()
	inner := &countingStore{Store: newTestMDStore(t)}
	cached := NewCachedStore(inner, client, testTTL, zerolog.Nop())
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	return cached, inner, mock
}

func TestCachedStoreMissPopulates(t *testing.T) {
	ctx := context.Background()
	cached, inner, mock := newCachedTestStore(t)

	require.NoError(t, inner.Store.CreatePost(ctx, models.NewPost("user_1", "🐢")))
	want, err := inner.Store.ListPosts(ctx, ListPostsOptions{})
	require.NoError(t, err)
	data, err := json.Marshal(want)
	require.NoError(t, err)

	mock.ExpectGet(FeedVersionKey).RedisNil()
	mock.ExpectGet(feedKey(0)).RedisNil()
	mock.ExpectSet(feedKey(0), data, testTTL).SetVal("OK")

	posts, err := cached.ListPosts(ctx, ListPostsOptions{})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "🐢", posts[0].Content)
	assert.Equal(t, 1, inner.lists)
}

func TestCachedStoreHitSkipsStore(t *testing.T) {
	ctx := context.Background()
	cached, inner, mock := newCachedTestStore(t)

	cachedPosts := []*models.Post{models.NewPost("user_1", "🚀")}
	data, err := json.Marshal(cachedPosts)
	require.NoError(t, err)

	mock.ExpectGet(FeedVersionKey).SetVal("4")
	mock.ExpectGet(feedKey(4)).SetVal(string(data))

	posts, err := cached.ListPosts(ctx, ListPostsOptions{})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, cachedPosts[0].ID, posts[0].ID)
	assert.Equal(t, 0, inner.lists)
}

func TestCachedStoreRedisErrorFallsThrough(t *testing.T) {
	ctx := context.Background()
	cached, inner, mock := newCachedTestStore(t)

	mock.ExpectGet(FeedVersionKey).SetVal("2")
	mock.ExpectGet(feedKey(2)).SetErr(redis.TxFailedErr)
	mock.ExpectSet(feedKey(2), []byte("null"), testTTL).SetErr(redis.TxFailedErr)

	posts, err := cached.ListPosts(ctx, ListPostsOptions{})
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.Equal(t, 1, inner.lists)
}

func TestCachedStoreVersionErrorSkipsCache(t *testing.T) {
	ctx := context.Background()
	cached, inner, mock := newCachedTestStore(t)

	mock.ExpectGet(FeedVersionKey).SetErr(redis.TxFailedErr)

	posts, err := cached.ListPosts(ctx, ListPostsOptions{})
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.Equal(t, 1, inner.lists)
}

func TestCachedStoreNonDefaultLimitBypassesCache(t *testing.T) {
	cached, inner, _ := newCachedTestStore(t)

	_, err := cached.ListPosts(context.Background(), ListPostsOptions{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, inner.lists)
}

func TestCachedStoreCreateInvalidates(t *testing.T) {
	ctx := context.Background()
	cached, inner, mock := newCachedTestStore(t)

	mock.ExpectIncr(FeedVersionKey).SetVal(1)

	post := models.NewPost("user_1", "✨")
	require.NoError(t, cached.CreatePost(ctx, post))

	got, err := inner.Store.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "✨", got.Content)
}

func TestCachedStoreFailedCreateKeepsCache(t *testing.T) {
	ctx := context.Background()
	cached, _, mock := newCachedTestStore(t)

	post := models.NewPost("user_1", "✨")
	mock.ExpectIncr(FeedVersionKey).SetVal(1)
	require.NoError(t, cached.CreatePost(ctx, post))

	// A duplicate write fails in the store and must not touch Redis again.
	assert.ErrorIs(t, cached.CreatePost(ctx, post), ErrDuplicatePost)
}

// gatedStore holds its first feed read until released, after the list was loaded.
type gatedStore struct {
	Store
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedStore) ListPosts(ctx context.Context, opts ListPostsOptions) ([]*models.Post, error) {
	posts, err := g.Store.ListPosts(ctx, opts)
	g.once.Do(func() {
		close(g.started)
		<-g.release
	})
	return posts, err
}

func TestCachedStoreReadRacingCreateDoesNotHideNewPost(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	inner := newTestMDStore(t)
	gated := &gatedStore{Store: inner, started: make(chan struct{}), release: make(chan struct{})}
	cached := NewCachedStore(gated, client, testTTL, zerolog.Nop())

	require.NoError(t, inner.CreatePost(ctx, models.NewPost("user_1", "🐢")))
	before, err := inner.ListPosts(ctx, ListPostsOptions{})
	require.NoError(t, err)
	beforeData, err := json.Marshal(before)
	require.NoError(t, err)

	// The slow reader misses, the create bumps the version, then the reader
	// stores its old page under the version it started with.
	mock.ExpectGet(FeedVersionKey).RedisNil()
	mock.ExpectGet(feedKey(0)).RedisNil()
	mock.ExpectIncr(FeedVersionKey).SetVal(1)
	mock.ExpectSet(feedKey(0), beforeData, testTTL).SetVal("OK")

	type result struct {
		posts []*models.Post
		err   error
	}
	slow := make(chan result)
	go func() {
		posts, err := cached.ListPosts(ctx, ListPostsOptions{})
		slow <- result{posts, err}
	}()
	<-gated.started

	require.NoError(t, cached.CreatePost(ctx, models.NewPost("user_1", "✨")))
	close(gated.release)
	r := <-slow
	require.NoError(t, r.err)
	assert.Len(t, r.posts, 1)

	after, err := inner.ListPosts(ctx, ListPostsOptions{})
	require.NoError(t, err)
	require.Len(t, after, 2)
	afterData, err := json.Marshal(after)
	require.NoError(t, err)

	mock.ExpectGet(FeedVersionKey).SetVal("1")
	mock.ExpectGet(feedKey(1)).RedisNil()
	mock.ExpectSet(feedKey(1), afterData, testTTL).SetVal("OK")

	posts, err := cached.ListPosts(ctx, ListPostsOptions{})
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.ElementsMatch(t, []string{"🐢", "✨"}, []string{posts[0].Content, posts[1].Content})
	assert.NoError(t, mock.ExpectationsWereMet())
}
