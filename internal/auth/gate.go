// ABOUTME: HTTP middleware that admits, redirects, or rejects requests by session state.
// ABOUTME: Matched non-public pages redirect to sign-in; matched non-public API calls get 401.
package auth

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/2389-research/chirp/internal/apierr"
)

// Decision is the gate's verdict for one request.
type Decision int

const (
	// Bypass: the path is not matched; no session validation happens.
	Bypass Decision = iota
	// Allow: a valid session is attached to the request.
	Allow
	// Anonymous: signed out, but the route is public.
	Anonymous
	// Redirect: signed out on a protected page; send the browser to sign-in.
	Redirect
	// Reject: signed out on a protected API route; answer 401.
	Reject
)

func (d Decision) String() string {
	switch d {
	case Bypass:
		return "bypass"
	case Allow:
		return "allow"
	case Anonymous:
		return "anonymous"
	case Redirect:
		return "redirect"
	case Reject:
		return "reject"
	}
	return "unknown"
}

// SessionVerifier validates the session carried by a request.
type SessionVerifier interface {
	VerifyRequest(r *http.Request) (*Session, error)
}

// Gate decides per request path whether a session is required.
type Gate struct {
	matcher   *Matcher
	public    RouteSet
	verifier  SessionVerifier
	signInURL string
	logger    zerolog.Logger
	observe   func(Decision)
}

// NewGate creates a gate. signInURL is where signed-out page requests are sent.
func NewGate(matcher *Matcher, public []string, verifier SessionVerifier, signInURL string, logger zerolog.Logger) *Gate {
	return &Gate{
		matcher:   matcher,
		public:    RouteSet(public),
		verifier:  verifier,
		signInURL: signInURL,
		logger:    logger,
	}
}

// Observe registers fn to be called with every decision the middleware makes.
func (g *Gate) Observe(fn func(Decision)) {
	g.observe = fn
}

// Decide evaluates r without writing anything.
func (g *Gate) Decide(r *http.Request) (Decision, *Session) {
	path := r.URL.Path
	if !g.matcher.Matches(path) {
		return Bypass, nil
	}

	session, err := g.verifier.VerifyRequest(r)
	if err == nil {
		return Allow, session
	}
	if !errors.Is(err, ErrNoSession) {
		g.logger.Debug().Err(err).Str("path", path).Msg("session rejected")
	}

	if g.public.Contains(path) {
		return Anonymous, nil
	}
	if strings.HasPrefix(path, APIPrefix) {
		return Reject, nil
	}
	return Redirect, nil
}

// Middleware wraps next with the gate.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision, session := g.Decide(r)
		if g.observe != nil {
			g.observe(decision)
		}
		switch decision {
		case Allow:
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		case Bypass, Anonymous:
			next.ServeHTTP(w, r)
		case Reject:
			apierr.WriteError(w, apierr.Unauthorized(""))
		case Redirect:
			http.Redirect(w, r, g.SignInRedirect(r.URL.RequestURI()), http.StatusFound)
		}
	})
}

// SignInRedirect builds the sign-in URL carrying the page to return to.
func (g *Gate) SignInRedirect(returnTo string) string {
	u, err := url.Parse(g.signInURL)
	if err != nil {
		return g.signInURL
	}
	q := u.Query()
	q.Set("redirect_url", returnTo)
	u.RawQuery = q.Encode()
	return u.String()
}
