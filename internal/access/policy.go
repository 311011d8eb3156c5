// Package access decides whether a request may proceed, must sign in, or
// must first claim a username.
package access

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Decision is the outcome of a policy evaluation
type Decision int

const (
	Allow Decision = iota
	RedirectToSignIn
	RedirectToOnboarding
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectToSignIn:
		return "signin"
	case RedirectToOnboarding:
		return "onboarding"
	default:
		return "unknown"
	}
}

// Paths that are always reachable
var publicPrefixes = []string{
	"/signin",
	"/auth/callback",
	"/onboarding",
	"/static/",
	"/assets/",
	"/favicon",
	"/api/auth/",
	"/api/health",
	"/metrics",
}

var protectedPrefixes = []string{
	"/submit",
	"/players/",
	"/api/leaderboard",
	"/api/slander/",
	"/api/profile/",
	"/api/players/",
}

var usernamePrefixes = []string{
	"/submit",
	"/players",
}

// Result is a decision plus the redirect target when there is one
type Result struct {
	Decision Decision
	Location string
}

// ProfileReader looks up a user's username
type ProfileReader interface {
	Username(ctx context.Context, userID string) (string, error)
}

// Policy evaluates access rules
type Policy struct {
	profiles ProfileReader
}

// NewPolicy creates a new access policy
func NewPolicy(profiles ProfileReader) *Policy {
	return &Policy{profiles: profiles}
}

// Evaluate decides access to path for the given user id ("" when
// anonymous). The username check reads the profile on every call.
func (p *Policy) Evaluate(ctx context.Context, path, userID string) (Result, error) {
	if IsPublic(path) || !IsProtected(path) {
		return Result{Decision: Allow}, nil
	}
	if userID == "" {
		return Result{Decision: RedirectToSignIn, Location: "/signin?redirect=" + url.QueryEscape(path)}, nil
	}
	if !RequiresUsername(path) {
		return Result{Decision: Allow}, nil
	}

	username, err := p.profiles.Username(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("looking up profile: %w", err)
	}
	if username == "" {
		return Result{Decision: RedirectToOnboarding, Location: "/onboarding?redirect=" + url.QueryEscape(path)}, nil
	}
	return Result{Decision: Allow}, nil
}

// IsPublic reports whether path bypasses session checks entirely
func IsPublic(path string) bool {
	return hasAnyPrefix(path, publicPrefixes)
}

// IsProtected reports whether path requires a signed-in user
func IsProtected(path string) bool {
	return path == "/" || hasAnyPrefix(path, protectedPrefixes)
}

// RequiresUsername reports whether path also requires a claimed username
func RequiresUsername(path string) bool {
	return path == "/" || hasAnyPrefix(path, usernamePrefixes)
}

// IsAPI reports whether path is a JSON endpoint
func IsAPI(path string) bool {
	return strings.HasPrefix(path, "/api/")
}

// SafeRedirect returns target when it is a local absolute path and "/"
// otherwise.
func SafeRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return "/"
	}
	u, err := url.Parse(target)
	if err != nil || u.IsAbs() || u.Host != "" {
		return "/"
	}
	return target
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
