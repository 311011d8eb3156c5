package identity

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/slanderboard/internal/config"
	"github.com/slanderboard/internal/domain"
)

// Cookie names
const (
	AccessCookie  = "slander_access"
	RefreshCookie = "slander_refresh"
)

// Session is the resolved identity of a request. A nil User is anonymous.
type Session struct {
	User *domain.User
}

// Authenticated reports whether the session has a user
func (s Session) Authenticated() bool {
	return s.User != nil
}

// UserID returns the user id, or "" when anonymous
func (s Session) UserID() string {
	if s.User == nil {
		return ""
	}
	return s.User.ID
}

// Authenticator resolves credentials to a user
type Authenticator interface {
	GetUser(ctx context.Context, creds Credentials) (*domain.User, *domain.Tokens, error)
}

// Resolver reads session cookies and resolves them through the provider
type Resolver struct {
	auth   Authenticator
	config *config.AuthConfig
	logger *slog.Logger
}

// NewResolver creates a new session resolver
func NewResolver(auth Authenticator, cfg *config.AuthConfig, logger *slog.Logger) *Resolver {
	return &Resolver{auth: auth, config: cfg, logger: logger}
}

// CredentialsFrom reads the session cookies of r
func CredentialsFrom(r *http.Request) Credentials {
	var creds Credentials
	if c, err := r.Cookie(AccessCookie); err == nil {
		creds.AccessToken = c.Value
	}
	if c, err := r.Cookie(RefreshCookie); err == nil {
		creds.RefreshToken = c.Value
	}
	return creds
}

// Resolve returns the session for r. The cookies are non-empty when the
// provider rotated the session; callers must write them to the response
// whatever the outcome of the request. Lookup failures resolve to an
// anonymous session.
func (r *Resolver) Resolve(req *http.Request) (Session, []*http.Cookie) {
	creds := CredentialsFrom(req)
	if creds.AccessToken == "" && creds.RefreshToken == "" {
		return Session{}, nil
	}

	user, tokens, err := r.auth.GetUser(req.Context(), creds)
	if err != nil {
		r.logger.Warn("session lookup failed", "error", err)
		return Session{}, nil
	}
	if tokens == nil {
		return Session{User: user}, nil
	}
	return Session{User: user}, r.SessionCookies(tokens)
}

// SessionCookies returns the cookies that carry tokens
func (r *Resolver) SessionCookies(tokens *domain.Tokens) []*http.Cookie {
	return []*http.Cookie{
		r.cookie(AccessCookie, tokens.AccessToken, tokens.AccessExpiresAt),
		r.cookie(RefreshCookie, tokens.RefreshToken, tokens.RefreshExpiresAt),
	}
}

// ClearCookies returns cookies that remove the session
func (r *Resolver) ClearCookies() []*http.Cookie {
	access := r.cookie(AccessCookie, "", time.Unix(0, 0))
	access.MaxAge = -1
	refresh := r.cookie(RefreshCookie, "", time.Unix(0, 0))
	refresh.MaxAge = -1
	return []*http.Cookie{access, refresh}
}

func (r *Resolver) cookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   r.config.CookieDomain,
		Expires:  expires,
		Secure:   r.config.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

type sessionKey struct{}

// WithSession returns a context carrying the session
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the session stored by WithSession, or an
// anonymous session.
func SessionFromContext(ctx context.Context) Session {
	s, _ := ctx.Value(sessionKey{}).(Session)
	return s
}
