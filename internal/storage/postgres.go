// ABOUTME: PostgreSQL-backed post and author storage using sqlx and lib/pq.
// ABOUTME: Applies per-call timeouts and maps driver errors onto storage sentinels.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/2389-research/chirp/internal/models"
)

// PostgresConfig holds connection pool settings for the Postgres store.
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	QueryTimeout    time.Duration
}

// DefaultPostgresConfig returns pool defaults for dsn.
func DefaultPostgresConfig(dsn string) PostgresConfig {
	return PostgresConfig{
		DSN:             dsn,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		QueryTimeout:    5 * time.Second,
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS authors (
	id                TEXT PRIMARY KEY,
	username          TEXT NOT NULL,
	profile_image_url TEXT NOT NULL DEFAULT '',
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS posts (
	id         UUID PRIMARY KEY,
	content    VARCHAR(280) NOT NULL,
	author_id  TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS posts_author_id_idx ON posts (author_id);
CREATE INDEX IF NOT EXISTS posts_created_at_idx ON posts (created_at DESC);`

// PostgresStore implements Store on a PostgreSQL database.
type PostgresStore struct {
	db      *sqlx.DB
	timeout time.Duration
}

type postRow struct {
	ID        uuid.UUID `db:"id"`
	Content   string    `db:"content"`
	AuthorID  string    `db:"author_id"`
	CreatedAt time.Time `db:"created_at"`
}

func (r postRow) toModel() *models.Post {
	return &models.Post{
		ID:        r.ID,
		Content:   r.Content,
		AuthorID:  r.AuthorID,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type authorRow struct {
	ID              string `db:"id"`
	Username        string `db:"username"`
	ProfileImageURL string `db:"profile_image_url"`
}

// OpenPostgres connects to Postgres, configures the pool and pings the server.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewPostgresStore(db, cfg.QueryTimeout), nil
}

// NewPostgresStore wraps an open connection.
func NewPostgresStore(db *sqlx.DB, timeout time.Duration) *PostgresStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PostgresStore{db: db, timeout: timeout}
}

// Migrate creates the tables and indexes if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// CreatePost inserts a post.
func (s *PostgresStore) CreatePost(ctx context.Context, post *models.Post) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `
		INSERT INTO posts (id, content, author_id, created_at)
		VALUES ($1, $2, $3, $4)`

	_, err := s.db.ExecContext(ctx, query, post.ID, post.Content, post.AuthorID, post.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("%w: %s", ErrDuplicatePost, post.ID)
		}
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

// ListPosts returns posts newest first.
func (s *PostgresStore) ListPosts(ctx context.Context, opts ListPostsOptions) ([]*models.Post, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `
		SELECT id, content, author_id, created_at
		FROM posts
		ORDER BY created_at DESC
		LIMIT $1`

	var rows []postRow
	if err := s.db.SelectContext(ctx, &rows, query, opts.limit()); err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}

	posts := make([]*models.Post, 0, len(rows))
	for _, r := range rows {
		posts = append(posts, r.toModel())
	}
	return posts, nil
}

// GetPost returns the post with the given ID.
func (s *PostgresStore) GetPost(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `
		SELECT id, content, author_id, created_at
		FROM posts
		WHERE id = $1`

	var row postRow
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrPostNotFound, id)
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return row.toModel(), nil
}

// UpsertAuthor inserts or refreshes an author projection.
func (s *PostgresStore) UpsertAuthor(ctx context.Context, author models.Author) error {
	if author.ID == "" {
		return fmt.Errorf("author ID is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `
		INSERT INTO authors (id, username, profile_image_url, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE
		SET username = EXCLUDED.username,
			profile_image_url = EXCLUDED.profile_image_url,
			updated_at = now()`

	if _, err := s.db.ExecContext(ctx, query, author.ID, author.Username, author.ProfileImageURL); err != nil {
		return fmt.Errorf("failed to upsert author: %w", err)
	}
	return nil
}

// GetAuthors returns the known authors among ids in a single query.
func (s *PostgresStore) GetAuthors(ctx context.Context, ids []string) (map[string]models.Author, error) {
	out := make(map[string]models.Author, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `
		SELECT id, username, profile_image_url
		FROM authors
		WHERE id = ANY($1)`

	var rows []authorRow
	if err := s.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to query authors: %w", err)
	}
	for _, r := range rows {
		out[r.ID] = models.Author{ID: r.ID, Username: r.Username, ProfileImageURL: r.ProfileImageURL}
	}
	return out, nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
