// ABOUTME: Interface definitions for post and author storage.
// ABOUTME: Defines the contract shared by the markdown, Postgres, and cached stores.
package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/2389-research/chirp/internal/models"
)

// DefaultFeedLimit is the number of posts returned when no limit is given.
const DefaultFeedLimit = 100

var (
	// ErrPostNotFound is returned when a post ID does not exist.
	ErrPostNotFound = errors.New("post not found")

	// ErrDuplicatePost is returned when a post ID is written twice.
	ErrDuplicatePost = errors.New("duplicate post")

	// ErrAuthorNotFound is returned when a post references an unknown author.
	ErrAuthorNotFound = errors.New("author not found")
)

// ListPostsOptions configures how many posts are listed.
type ListPostsOptions struct {
	Limit int
}

// limit returns the effective limit.
func (o ListPostsOptions) limit() int {
	if o.Limit <= 0 {
		return DefaultFeedLimit
	}
	return o.Limit
}

// PostStore defines operations for post persistence.
type PostStore interface {
	// CreatePost persists a new post.
	CreatePost(ctx context.Context, post *models.Post) error

	// ListPosts returns posts newest first.
	ListPosts(ctx context.Context, opts ListPostsOptions) ([]*models.Post, error)

	// GetPost returns a single post or ErrPostNotFound.
	GetPost(ctx context.Context, id uuid.UUID) (*models.Post, error)
}

// AuthorStore defines operations for the author directory.
type AuthorStore interface {
	// UpsertAuthor records the latest projection of a user.
	UpsertAuthor(ctx context.Context, author models.Author) error

	// GetAuthors returns the known authors among ids, keyed by ID. Unknown IDs are omitted.
	GetAuthors(ctx context.Context, ids []string) (map[string]models.Author, error)
}

// Store combines post and author persistence.
type Store interface {
	PostStore
	AuthorStore

	// Close releases any resources held by the store.
	Close() error
}
