// ABOUTME: Data-access facade combining the typed procedures with the client-side query cache.
// ABOUTME: Exposes the cached posts.getAll query and a posts.create mutation that invalidates it.
package rpc

import (
	"context"

	"github.com/2389-research/chirp/internal/models"
	"github.com/2389-research/chirp/internal/query"
)

// KeyAllPosts identifies the cached feed query.
const KeyAllPosts = query.Key(ProcGetAllPosts)

// Procedures is the typed surface of the chirp server. *Client implements it.
type Procedures interface {
	GetAllPosts(ctx context.Context) ([]models.PostWithAuthor, error)
	CreatePost(ctx context.Context, content string) (*models.Post, error)
	WhoAmI(ctx context.Context) (*models.Author, error)
}

// Facade serves procedures through a query cache.
type Facade struct {
	procs Procedures
	cache *query.Cache

	// AllPosts is the cached posts.getAll query.
	AllPosts *query.Query[[]models.PostWithAuthor]
}

// NewFacade wraps procs with a fresh cache.
func NewFacade(procs Procedures) *Facade {
	cache := query.NewCache()
	return &Facade{
		procs:    procs,
		cache:    cache,
		AllPosts: query.NewQuery[[]models.PostWithAuthor](cache, KeyAllPosts, procs.GetAllPosts),
	}
}

// Invalidate marks key stale, refetching it when observed.
func (f *Facade) Invalidate(ctx context.Context, key query.Key) {
	f.cache.Invalidate(ctx, key)
}

// WhoAmI resolves the current user.
func (f *Facade) WhoAmI(ctx context.Context) (*models.Author, error) {
	return f.procs.WhoAmI(ctx)
}

// CreatePost returns a posts.create mutation. The caller's callbacks run
// after the feed has been invalidated on success.
func (f *Facade) CreatePost(opts query.MutationOptions[*models.Post]) *query.Mutation[string, *models.Post] {
	return query.NewMutation(f.procs.CreatePost, query.MutationOptions[*models.Post]{
		OnSuccess: func(ctx context.Context, post *models.Post) {
			f.Invalidate(ctx, KeyAllPosts)
			if opts.OnSuccess != nil {
				opts.OnSuccess(ctx, post)
			}
		},
		OnError: opts.OnError,
	})
}
