// ABOUTME: Core data models for posts and their author projections.
// ABOUTME: Provides constructor functions and the post-with-author feed shape.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Post is a single short entry in the feed. Posts are never edited once created.
type Post struct {
	ID        uuid.UUID `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	AuthorID  string    `json:"authorId"`
}

// NewPost creates a post with generated UUID and timestamp.
func NewPost(authorID, content string) *Post {
	return &Post{
		ID:        uuid.New(),
		Content:   content,
		CreatedAt: time.Now().UTC(),
		AuthorID:  authorID,
	}
}

// ShortID returns the first eight characters of the post ID.
func (p *Post) ShortID() string {
	return p.ID.String()[:8]
}

// Author is the public projection of a user, resolved server-side for every post.
type Author struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	ProfileImageURL string `json:"profileImageUrl"`
}

// Handle returns the @-prefixed username shown next to posts.
func (a Author) Handle() string {
	return "@" + a.Username
}

// PostWithAuthor is one entry of the feed as returned by posts.getAll.
type PostWithAuthor struct {
	Post   Post   `json:"post"`
	Author Author `json:"author"`
}

// NormalizeUsername lowercases a username and strips a leading @.
func NormalizeUsername(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "@")
	return strings.ToLower(name)
}
