// ABOUTME: Tests for the RPC client against stub servers and the real chirp HTTP server.
// ABOUTME: Covers envelope decoding, bearer auth, structured errors, and the circuit breaker.
package rpc_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/2389-research/chirp/internal/apierr"
	"github.com/2389-research/chirp/internal/auth"
	"github.com/2389-research/chirp/internal/httpapi"
	"github.com/2389-research/chirp/internal/models"
	"github.com/2389-research/chirp/internal/posts"
	"github.com/2389-research/chirp/internal/rpc"
	"github.com/2389-research/chirp/internal/storage"
)

const testSecret = "test-secret"

func newChirpServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := storage.NewMarkdownStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	verifier, err := auth.NewVerifier(testSecret, "")
	if err != nil {
		t.Fatal(err)
	}
	matcher, err := auth.MatcherByName("default")
	if err != nil {
		t.Fatal(err)
	}
	srv := httpapi.NewServer(httpapi.Deps{
		Posts:    posts.NewService(store, 10, zerolog.Nop()),
		Gate:     auth.NewGate(matcher, []string{"/", "/api/rpc/posts.getAll"}, verifier, "/sign-in", zerolog.Nop()),
		Verifier: verifier,
		Logger:   zerolog.Nop(),
	})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts
}

func mint(t *testing.T) string {
	t.Helper()
	tok, err := auth.Mint(testSecret, "", models.Author{ID: "user_1", Username: "gecko"}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func TestClientRoundtrip(t *testing.T) {
	ts := newChirpServer(t)
	ctx := context.Background()
	client := rpc.NewClient(ts.URL+"/", mint(t))

	if !client.HasSession() {
		t.Fatal("expected client to carry a session")
	}

	me, err := client.WhoAmI(ctx)
	if err != nil {
		t.Fatalf("WhoAmI error: %v", err)
	}
	if me.Username != "gecko" {
		t.Errorf("Username = %q, want gecko", me.Username)
	}

	post, err := client.CreatePost(ctx, "🐢")
	if err != nil {
		t.Fatalf("CreatePost error: %v", err)
	}

	feed, err := client.GetAllPosts(ctx)
	if err != nil {
		t.Fatalf("GetAllPosts error: %v", err)
	}
	if len(feed) != 1 || feed[0].Post.ID != post.ID || feed[0].Author.Username != "gecko" {
		t.Errorf("unexpected feed: %+v", feed)
	}
}

func TestClientAnonymous(t *testing.T) {
	ts := newChirpServer(t)
	client := rpc.NewClient(ts.URL, "")

	feed, err := client.GetAllPosts(context.Background())
	if err != nil {
		t.Fatalf("GetAllPosts error: %v", err)
	}
	if len(feed) != 0 {
		t.Errorf("expected empty feed, got %d", len(feed))
	}

	_, err = client.CreatePost(context.Background(), "🐢")
	e, ok := apierr.As(err)
	if !ok || e.Code != apierr.CodeUnauthorized {
		t.Errorf("expected UNAUTHORIZED, got %v", err)
	}
}

func TestClientValidationError(t *testing.T) {
	ts := newChirpServer(t)
	client := rpc.NewClient(ts.URL, mint(t))

	_, err := client.CreatePost(context.Background(), "not emoji")
	e, ok := apierr.As(err)
	if !ok {
		t.Fatalf("expected *apierr.Error, got %T", err)
	}
	msg, ok := e.FieldError("content")
	if !ok || msg != posts.MsgOnlyEmojis {
		t.Errorf("FieldError = %q, %v", msg, ok)
	}
}

func TestClientNonEnvelopeError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := rpc.NewClient(ts.URL, "").GetAllPosts(context.Background())
	e, ok := apierr.As(err)
	if !ok || e.Code != apierr.CodeInternal {
		t.Errorf("expected internal error, got %v", err)
	}
}

func TestClientBreakerOpens(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		apierr.WriteError(w, apierr.Internal("down", nil))
	}))
	defer ts.Close()

	client := rpc.NewClient(ts.URL, "")
	for i := 0; i < 3; i++ {
		if _, err := client.GetAllPosts(context.Background()); err == nil {
			t.Fatal("expected error")
		}
	}

	_, err := client.GetAllPosts(context.Background())
	if !errors.Is(err, rpc.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable once the breaker opens, got %v", err)
	}
	if calls != 3 {
		t.Errorf("server calls = %d, want 3", calls)
	}
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apierr.WriteError(w, apierr.Validation(map[string][]string{"content": {"nope"}}))
	}))
	defer ts.Close()

	client := rpc.NewClient(ts.URL, "token")
	for i := 0; i < 5; i++ {
		_, err := client.CreatePost(context.Background(), "x")
		if errors.Is(err, rpc.ErrUnavailable) {
			t.Fatalf("breaker opened on caller errors at attempt %d", i)
		}
	}
}
