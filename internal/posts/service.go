// ABOUTME: Post procedures: list the feed with resolved authors and create emoji posts.
// ABOUTME: Returns *apierr.Error values so transports can encode failures directly.
package posts

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/2389-research/chirp/internal/apierr"
	"github.com/2389-research/chirp/internal/models"
	"github.com/2389-research/chirp/internal/storage"
)

// MsgAuthorNotFound is reported when a listed post has no author projection.
const MsgAuthorNotFound = "Author for post not found"

// Service implements the posts.* procedures over a storage.Store.
type Service struct {
	store   storage.Store
	limiter *UserLimiter
	logger  zerolog.Logger
}

// NewService creates a posts service. postsPerMinute bounds each user's create rate.
func NewService(store storage.Store, postsPerMinute int, logger zerolog.Logger) *Service {
	return &Service{
		store:   store,
		limiter: NewUserLimiter(postsPerMinute),
		logger:  logger.With().Str("component", "posts").Logger(),
	}
}

// GetAll returns the newest posts, each paired with its author.
func (s *Service) GetAll(ctx context.Context) ([]models.PostWithAuthor, error) {
	posts, err := s.store.ListPosts(ctx, storage.ListPostsOptions{Limit: storage.DefaultFeedLimit})
	if err != nil {
		return nil, apierr.Internal("failed to load posts", err)
	}

	ids := make([]string, 0, len(posts))
	seen := make(map[string]bool, len(posts))
	for _, p := range posts {
		if !seen[p.AuthorID] {
			seen[p.AuthorID] = true
			ids = append(ids, p.AuthorID)
		}
	}

	authors, err := s.store.GetAuthors(ctx, ids)
	if err != nil {
		return nil, apierr.Internal("failed to load authors", err)
	}

	out := make([]models.PostWithAuthor, 0, len(posts))
	for _, p := range posts {
		author, ok := authors[p.AuthorID]
		if !ok {
			s.logger.Error().Str("post_id", p.ID.String()).Str("author_id", p.AuthorID).Msg("post author missing")
			return nil, apierr.Internal(MsgAuthorNotFound, fmt.Errorf("%w: %s", storage.ErrAuthorNotFound, p.AuthorID))
		}
		out = append(out, models.PostWithAuthor{Post: *p, Author: author})
	}
	return out, nil
}

// Create validates content and stores a new post by caller.
func (s *Service) Create(ctx context.Context, caller *models.Author, content string) (*models.Post, error) {
	if caller == nil || caller.ID == "" {
		return nil, apierr.Unauthorized("")
	}

	if msgs := ValidateContent(content); len(msgs) > 0 {
		return nil, apierr.Validation(map[string][]string{ContentField: msgs})
	}

	if !s.limiter.Allow(caller.ID) {
		s.logger.Info().Str("user_id", caller.ID).Msg("post rate limited")
		return nil, apierr.TooManyRequests("Too many posts, slow down")
	}

	if err := s.store.UpsertAuthor(ctx, *caller); err != nil {
		return nil, apierr.Internal("failed to record author", err)
	}

	post := models.NewPost(caller.ID, content)
	if err := s.store.CreatePost(ctx, post); err != nil {
		return nil, apierr.Internal("failed to create post", err)
	}

	s.logger.Info().Str("post_id", post.ID.String()).Str("user_id", caller.ID).Msg("post created")
	return post, nil
}

// WhoAmI returns the caller's author projection.
func (s *Service) WhoAmI(caller *models.Author) (models.Author, error) {
	if caller == nil || caller.ID == "" {
		return models.Author{}, apierr.Unauthorized("")
	}
	return *caller, nil
}
