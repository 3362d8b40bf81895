// ABOUTME: Markdown-based post storage with an author directory persisted in YAML.
// ABOUTME: Stores posts as markdown files in date directories, listed newest first.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/2389-research/chirp/internal/models"
)

// MarkdownStore stores posts as markdown files in a data directory.
type MarkdownStore struct {
	dataDir string // root directory for post data
	mu      sync.RWMutex
}

// postFrontmatter is the YAML frontmatter for post files.
type postFrontmatter struct {
	ID        string `yaml:"id"`
	AuthorID  string `yaml:"author_id"`
	CreatedAt string `yaml:"created_at"`
}

// authorsFile is the YAML structure for _authors.yaml.
type authorsFile struct {
	Authors map[string]authorEntry `yaml:"authors"`
}

type authorEntry struct {
	Username        string `yaml:"username"`
	ProfileImageURL string `yaml:"profile_image_url,omitempty"`
}

// NewMarkdownStore creates a markdown store rooted at dataDir.
func NewMarkdownStore(dataDir string) (*MarkdownStore, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	return &MarkdownStore{dataDir: dataDir}, nil
}

func (s *MarkdownStore) postsDir() string {
	return filepath.Join(s.dataDir, "posts")
}

func (s *MarkdownStore) authorsPath() string {
	return filepath.Join(s.dataDir, "_authors.yaml")
}

// postPath returns the file path for a post.
func (s *MarkdownStore) postPath(post *models.Post) string {
	dateDir := post.CreatedAt.UTC().Format("2006-01-02")
	timeStr := post.CreatedAt.UTC().Format("15-04-05-000000")
	filename := timeStr + "-" + post.ShortID() + ".md"
	return filepath.Join(s.postsDir(), dateDir, filename)
}

// CreatePost persists a post to disk.
func (s *MarkdownStore) CreatePost(_ context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.postPath(post)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrDuplicatePost, post.ID)
	}

	fm := postFrontmatter{
		ID:        post.ID.String(),
		AuthorID:  post.AuthorID,
		CreatedAt: formatTime(post.CreatedAt),
	}
	content, err := renderFrontmatter(fm, post.Content+"\n")
	if err != nil {
		return fmt.Errorf("failed to render post: %w", err)
	}
	return atomicWrite(path, []byte(content))
}

// ListPosts returns posts newest first, capped at opts.Limit.
func (s *MarkdownStore) ListPosts(_ context.Context, opts ListPostsOptions) ([]*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all, err := s.readAll()
	if err != nil {
		return nil, err
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	limit := opts.limit()
	if limit > len(all) {
		limit = len(all)
	}
	return all[:limit], nil
}

// GetPost returns the post with the given ID.
func (s *MarkdownStore) GetPost(_ context.Context, id uuid.UUID) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all, err := s.readAll()
	if err != nil {
		return nil, err
	}
	for _, p := range all {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrPostNotFound, id)
}

// readAll parses every post file. Unreadable or malformed files are skipped.
func (s *MarkdownStore) readAll() ([]*models.Post, error) {
	postsDir := s.postsDir()
	if _, err := os.Stat(postsDir); os.IsNotExist(err) {
		return nil, nil
	}

	dateDirs, err := os.ReadDir(postsDir)
	if err != nil {
		return nil, err
	}

	var posts []*models.Post
	for _, dateDir := range dateDirs {
		if !dateDir.IsDir() {
			continue
		}

		dirPath := filepath.Join(postsDir, dateDir.Name())
		files, err := os.ReadDir(dirPath)
		if err != nil {
			continue
		}

		for _, file := range files {
			if file.IsDir() || !strings.HasSuffix(file.Name(), ".md") {
				continue
			}
			data, err := os.ReadFile(filepath.Join(dirPath, file.Name()))
			if err != nil {
				continue
			}
			post, err := parsePost(string(data))
			if err != nil {
				continue
			}
			posts = append(posts, post)
		}
	}
	return posts, nil
}

// UpsertAuthor records the author in _authors.yaml.
func (s *MarkdownStore) UpsertAuthor(_ context.Context, author models.Author) error {
	if author.ID == "" {
		return fmt.Errorf("author ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var f authorsFile
	if err := readYAML(s.authorsPath(), &f); err != nil {
		return fmt.Errorf("failed to read authors: %w", err)
	}
	if f.Authors == nil {
		f.Authors = make(map[string]authorEntry)
	}
	f.Authors[author.ID] = authorEntry{
		Username:        author.Username,
		ProfileImageURL: author.ProfileImageURL,
	}
	return writeYAML(s.authorsPath(), &f)
}

// GetAuthors returns the known authors among ids.
func (s *MarkdownStore) GetAuthors(_ context.Context, ids []string) (map[string]models.Author, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var f authorsFile
	if err := readYAML(s.authorsPath(), &f); err != nil {
		return nil, fmt.Errorf("failed to read authors: %w", err)
	}

	out := make(map[string]models.Author, len(ids))
	for _, id := range ids {
		if e, ok := f.Authors[id]; ok {
			out[id] = models.Author{ID: id, Username: e.Username, ProfileImageURL: e.ProfileImageURL}
		}
	}
	return out, nil
}

// Close releases any resources held by the store.
func (s *MarkdownStore) Close() error {
	return nil
}

// parsePost parses a markdown file into a Post.
func parsePost(content string) (*models.Post, error) {
	yamlStr, body := parseFrontmatter(content)
	if yamlStr == "" {
		return nil, fmt.Errorf("no frontmatter found")
	}

	var fm postFrontmatter
	if err := yaml.Unmarshal([]byte(yamlStr), &fm); err != nil {
		return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
	}

	id, err := uuid.Parse(fm.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid UUID: %w", err)
	}

	createdAt, err := parseTime(fm.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid date: %w", err)
	}

	return &models.Post{
		ID:        id,
		Content:   strings.TrimSuffix(body, "\n"),
		CreatedAt: createdAt,
		AuthorID:  fm.AuthorID,
	}, nil
}
