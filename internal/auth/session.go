// ABOUTME: Session token verification for the identity provider's signed JWTs.
// ABOUTME: Extracts the signed-in user from a request and stores it on the context.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/2389-research/chirp/internal/models"
)

// SessionCookie is the cookie the identity provider sets for browser sessions.
const SessionCookie = "__session"

// ErrNoSession is returned when a request carries no session credential at all.
var ErrNoSession = errors.New("no session credential")

// Claims are the JWT claims issued by the identity provider. Subject is the user ID.
type Claims struct {
	Username        string `json:"username"`
	ProfileImageURL string `json:"image_url,omitempty"`
	jwt.RegisteredClaims
}

// Session is a validated, signed-in user.
type Session struct {
	UserID          string
	Username        string
	ProfileImageURL string
	ExpiresAt       time.Time
}

// Author returns the public projection of the session's user.
func (s *Session) Author() models.Author {
	return models.Author{
		ID:              s.UserID,
		Username:        s.Username,
		ProfileImageURL: s.ProfileImageURL,
	}
}

// Verifier validates HS256 session tokens against a shared secret.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier creates a verifier. An empty issuer disables the issuer check.
func NewVerifier(secret, issuer string) (*Verifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("session secret is required")
	}
	return &Verifier{secret: []byte(secret), issuer: issuer}, nil
}

// Verify parses and validates a raw token.
func (v *Verifier) Verify(raw string) (*Session, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid session token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid session token")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("session token has no subject")
	}

	s := &Session{
		UserID:          claims.Subject,
		Username:        models.NormalizeUsername(claims.Username),
		ProfileImageURL: claims.ProfileImageURL,
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

// VerifyRequest validates the session carried by r, if any.
func (v *Verifier) VerifyRequest(r *http.Request) (*Session, error) {
	raw := TokenFromRequest(r)
	if raw == "" {
		return nil, ErrNoSession
	}
	return v.Verify(raw)
}

// Mint signs a session token for author. Used by `chirp dev-token` and tests
// to stand in for the identity provider.
func Mint(secret, issuer string, author models.Author, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("session secret is required")
	}
	now := time.Now()
	claims := Claims{
		Username:        author.Username,
		ProfileImageURL: author.ProfileImageURL,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   author.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// TokenFromRequest returns the bearer token, falling back to the session cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

type sessionKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the session stored on ctx, or nil when signed out.
func SessionFrom(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}
