// Package identity issues and verifies user sessions: magic-link sign in,
// JWT access tokens and rotating refresh tokens.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/slanderboard/internal/config"
	"github.com/slanderboard/internal/domain"
)

// SessionStore holds sign-in codes and refresh tokens
type SessionStore interface {
	SaveSignInCode(ctx context.Context, code string, signIn domain.SignInCode, ttl time.Duration) error
	TakeSignInCode(ctx context.Context, code string) (*domain.SignInCode, error)
	SaveRefreshToken(ctx context.Context, token string, user domain.User, ttl time.Duration) error
	RotateRefreshToken(ctx context.Context, token, next string, ttl, reuseWindow time.Duration) (*domain.User, string, error)
	DeleteRefreshToken(ctx context.Context, token string) error
}

// UserStore creates users on first sign in
type UserStore interface {
	EnsureUser(ctx context.Context, email string) (*domain.User, error)
}

// Mailer delivers sign-in links
type Mailer interface {
	SendSignInLink(ctx context.Context, email, link string) error
}

// Credentials are the tokens presented by a client
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// Claims are the access token claims. Subject holds the user id.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Provider is the identity provider
type Provider struct {
	sessions SessionStore
	users    UserStore
	mailer   Mailer
	config   *config.AuthConfig
	secret   []byte
	logger   *slog.Logger
	now      func() time.Time
}

// NewProvider creates a new identity provider. Without a configured secret a
// random one is generated, so sessions do not survive a restart.
func NewProvider(
	cfg *config.AuthConfig,
	sessions SessionStore,
	users UserStore,
	mailer Mailer,
	logger *slog.Logger,
) (*Provider, error) {
	secret := []byte(cfg.Secret)
	if len(secret) == 0 {
		generated, err := randomToken()
		if err != nil {
			return nil, err
		}
		secret = []byte(generated)
		logger.Warn("no auth secret configured, using an ephemeral one")
	}
	return &Provider{
		sessions: sessions,
		users:    users,
		mailer:   mailer,
		config:   cfg,
		secret:   secret,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// GetUser returns the user behind the credentials. When the access token is
// missing or expired but the refresh token is valid, the refresh token is
// rotated and a new token pair is returned alongside the user. Requests that
// present the same refresh token within the reuse window all get the pair
// from the first rotation. No usable credentials yields a nil user and no
// error.
func (p *Provider) GetUser(ctx context.Context, creds Credentials) (*domain.User, *domain.Tokens, error) {
	if creds.AccessToken != "" {
		user, err := p.verify(creds.AccessToken)
		if err == nil {
			return user, nil, nil
		}
		p.logger.Debug("access token rejected", "error", err)
	}
	if creds.RefreshToken == "" {
		return nil, nil, nil
	}

	next, err := randomToken()
	if err != nil {
		return nil, nil, err
	}
	user, refresh, err := p.sessions.RotateRefreshToken(ctx, creds.RefreshToken, next, p.config.RefreshTTL, p.config.RefreshReuseWindow)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidToken) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("refreshing session: %w", err)
	}
	tokens, err := p.issue(*user, refresh)
	if err != nil {
		return nil, nil, err
	}
	return user, tokens, nil
}

// ExchangeCode consumes a sign-in code and starts a session for its owner.
// It also returns the redirect recorded with the code.
func (p *Provider) ExchangeCode(ctx context.Context, code string) (*domain.User, *domain.Tokens, string, error) {
	if code == "" {
		return nil, nil, "", domain.ErrInvalidSignInCode
	}
	signIn, err := p.sessions.TakeSignInCode(ctx, code)
	if err != nil {
		return nil, nil, "", err
	}
	user, err := p.users.EnsureUser(ctx, signIn.Email)
	if err != nil {
		return nil, nil, "", fmt.Errorf("ensuring user: %w", err)
	}
	tokens, err := p.StartSession(ctx, *user)
	if err != nil {
		return nil, nil, "", err
	}
	p.logger.Info("user signed in", "user_id", user.ID)
	return user, tokens, signIn.Redirect, nil
}

// SignInWithEmailLink sends a one-time sign-in link to email
func (p *Provider) SignInWithEmailLink(ctx context.Context, email, redirect string) error {
	code, err := randomToken()
	if err != nil {
		return err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	signIn := domain.SignInCode{Email: email, Redirect: redirect}
	if err := p.sessions.SaveSignInCode(ctx, code, signIn, p.config.SignInCodeTTL); err != nil {
		return err
	}

	q := url.Values{"code": {code}}
	if redirect != "" {
		q.Set("redirect", redirect)
	}
	link := strings.TrimRight(p.config.BaseURL, "/") + "/auth/callback?" + q.Encode()
	if err := p.mailer.SendSignInLink(ctx, email, link); err != nil {
		return fmt.Errorf("sending sign-in link: %w", err)
	}
	return nil
}

// SignOut revokes the refresh token
func (p *Provider) SignOut(ctx context.Context, creds Credentials) error {
	if creds.RefreshToken == "" {
		return nil
	}
	return p.sessions.DeleteRefreshToken(ctx, creds.RefreshToken)
}

// StartSession mints a new access and refresh token pair for user
func (p *Provider) StartSession(ctx context.Context, user domain.User) (*domain.Tokens, error) {
	refresh, err := randomToken()
	if err != nil {
		return nil, err
	}
	if err := p.sessions.SaveRefreshToken(ctx, refresh, user, p.config.RefreshTTL); err != nil {
		return nil, err
	}
	return p.issue(user, refresh)
}

// issue signs a fresh access token to pair with a stored refresh token
func (p *Provider) issue(user domain.User, refresh string) (*domain.Tokens, error) {
	now := p.now()
	access, err := p.sign(user, now)
	if err != nil {
		return nil, err
	}
	return &domain.Tokens{
		AccessToken:      access,
		AccessExpiresAt:  now.Add(p.config.AccessTTL),
		RefreshToken:     refresh,
		RefreshExpiresAt: now.Add(p.config.RefreshTTL),
	}, nil
}

func (p *Provider) sign(user domain.User, now time.Time) (string, error) {
	claims := Claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			Issuer:    p.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.config.AccessTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return signed, nil
}

func (p *Provider) verify(tokenString string) (*domain.User, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return p.secret, nil
	},
		jwt.WithIssuer(p.config.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil || !token.Valid {
		return nil, domain.ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, domain.ErrInvalidToken
	}
	return &domain.User{ID: claims.Subject, Email: claims.Email}, nil
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
