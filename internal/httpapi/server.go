// ABOUTME: HTTP server wiring the auth gate, remote procedures, pages, health, and metrics.
// ABOUTME: Routes with gorilla/mux and shuts down gracefully when its context ends.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/2389-research/chirp/internal/apierr"
	"github.com/2389-research/chirp/internal/auth"
	"github.com/2389-research/chirp/internal/posts"
	"github.com/2389-research/chirp/internal/rpc"
)

// Pinger is implemented by stores that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the server routes to.
type Deps struct {
	Posts    *posts.Service
	Gate     *auth.Gate
	Verifier *auth.Verifier
	Health   Pinger
	Logger   zerolog.Logger
}

// Server is the chirp HTTP server.
type Server struct {
	router  *mux.Router
	handler http.Handler
	posts   *posts.Service
	gate    *auth.Gate
	verify  *auth.Verifier
	health  Pinger
	metrics *Metrics
	logger  zerolog.Logger
	procs   map[string]procedure
}

// NewServer builds the router and middleware chain.
func NewServer(deps Deps) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		posts:   deps.Posts,
		gate:    deps.Gate,
		verify:  deps.Verifier,
		health:  deps.Health,
		metrics: NewMetrics(),
		logger:  deps.Logger.With().Str("component", "http").Logger(),
	}
	s.procs = s.procedures()
	s.setupRoutes()

	s.gate.Observe(s.metrics.ObserveDecision)
	var h http.Handler = s.router
	h = s.gate.Middleware(h)
	h = loggingMiddleware(s.logger)(h)
	h = requestIDMiddleware(h)
	s.handler = h
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.metrics.Instrument)

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	s.router.HandleFunc(rpc.PathPrefix+"{procedure}", s.handleRPC).Methods(http.MethodGet, http.MethodPost)

	s.router.HandleFunc("/", s.handleHome).Methods(http.MethodGet)
	s.router.HandleFunc("/", s.handleCompose).Methods(http.MethodPost)
	s.router.HandleFunc("/post/{id}", s.handlePost).Methods(http.MethodGet)
	s.router.HandleFunc("/sign-in", s.handleSignInPage).Methods(http.MethodGet)
	s.router.HandleFunc("/sign-in", s.handleSignIn).Methods(http.MethodPost)
	s.router.HandleFunc("/sign-out", s.handleSignOut).Methods(http.MethodPost)

	s.router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.handleMethodNotAllowed)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]string{"status": "ok"}
	if s.health != nil {
		if err := s.health.Ping(r.Context()); err != nil {
			s.logger.Warn().Err(err).Msg("health check failed")
			status = http.StatusServiceUnavailable
			body["status"] = "unavailable"
		}
	}
	_ = apierr.WriteData(w, status, body)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, auth.APIPrefix) {
		apierr.WriteError(w, apierr.NotFound("no such procedure"))
		return
	}
	http.NotFound(w, r)
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, auth.APIPrefix) {
		apierr.WriteError(w, apierr.BadRequest("method "+r.Method+" not allowed"))
		return
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
