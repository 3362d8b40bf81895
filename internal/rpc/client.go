// ABOUTME: Typed client for the chirp remote procedures over HTTP.
// ABOUTME: Sends the session token as a bearer credential and decodes the response envelope.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/2389-research/chirp/internal/apierr"
	"github.com/2389-research/chirp/internal/models"
)

// Procedure names and the path they are served under.
const (
	PathPrefix = "/api/rpc/"

	ProcGetAllPosts = "posts.getAll"
	ProcCreatePost  = "posts.create"
	ProcWhoAmI      = "session.whoami"
)

// CreatePostInput is the body of a posts.create call.
type CreatePostInput struct {
	Content string `json:"content"`
}

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("chirp server unavailable")

// Client calls chirp procedures on a remote server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient creates a client for the server at baseURL. An empty token makes
// anonymous calls.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "chirp-rpc",
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: isTransportHealthy,
	})
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// isTransportHealthy treats caller errors (bad input, auth, rate limits) as
// healthy responses so they never trip the breaker.
func isTransportHealthy(err error) bool {
	if err == nil {
		return true
	}
	if e, ok := apierr.As(err); ok {
		return e.Code != apierr.CodeInternal
	}
	return false
}

// HasSession reports whether the client sends a session token.
func (c *Client) HasSession() bool {
	return c.token != ""
}

// GetAllPosts calls posts.getAll.
func (c *Client) GetAllPosts(ctx context.Context) ([]models.PostWithAuthor, error) {
	var out []models.PostWithAuthor
	if err := c.call(ctx, http.MethodGet, ProcGetAllPosts, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreatePost calls posts.create.
func (c *Client) CreatePost(ctx context.Context, content string) (*models.Post, error) {
	var out models.Post
	if err := c.call(ctx, http.MethodPost, ProcCreatePost, CreatePostInput{Content: content}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WhoAmI calls session.whoami.
func (c *Client) WhoAmI(ctx context.Context) (*models.Author, error) {
	var out models.Author
	if err := c.call(ctx, http.MethodGet, ProcWhoAmI, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) call(ctx context.Context, method, proc string, in, out any) error {
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.do(ctx, method, proc, in, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w", proc, ErrUnavailable)
	}
	return err
}

func (c *Client) do(ctx context.Context, method, proc string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal %s input: %w", proc, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+PathPrefix+proc, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", proc, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", proc, err)
	}

	var env apierr.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 400 {
			return apierr.Internal(fmt.Sprintf("server returned %d", resp.StatusCode), nil)
		}
		return fmt.Errorf("failed to decode %s response: %w", proc, err)
	}
	if env.Error != nil {
		return env.Error
	}
	if resp.StatusCode >= 400 {
		return apierr.Internal(fmt.Sprintf("server returned %d", resp.StatusCode), nil)
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode %s data: %w", proc, err)
	}
	return nil
}
