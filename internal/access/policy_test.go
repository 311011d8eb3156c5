package access

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProfiles struct {
	names map[string]string
	err   error
	calls int
}

func (s *stubProfiles) Username(_ context.Context, userID string) (string, error) {
	s.calls++
	return s.names[userID], s.err
}

func TestEvaluate(t *testing.T) {
	profiles := &stubProfiles{names: map[string]string{"named": "pundit"}}
	p := NewPolicy(profiles)

	tests := []struct {
		name     string
		path     string
		userID   string
		decision Decision
		location string
	}{
		{name: "public signin", path: "/signin", decision: Allow},
		{name: "public static", path: "/static/app.js", decision: Allow},
		{name: "public api auth", path: "/api/auth/signin", decision: Allow},
		{name: "health", path: "/api/health", decision: Allow},
		{name: "unlisted path", path: "/about", decision: Allow},
		{name: "anonymous home", path: "/", decision: RedirectToSignIn, location: "/signin?redirect=%2F"},
		{name: "anonymous submit", path: "/submit", decision: RedirectToSignIn, location: "/signin?redirect=%2Fsubmit"},
		{name: "anonymous api", path: "/api/leaderboard", decision: RedirectToSignIn, location: "/signin?redirect=%2Fapi%2Fleaderboard"},
		{name: "api without username", path: "/api/slander/vote", userID: "nameless", decision: Allow},
		{name: "home without username", path: "/", userID: "nameless", decision: RedirectToOnboarding, location: "/onboarding?redirect=%2F"},
		{name: "player page without username", path: "/players/7", userID: "nameless", decision: RedirectToOnboarding, location: "/onboarding?redirect=%2Fplayers%2F7"},
		{name: "home with username", path: "/", userID: "named", decision: Allow},
		{name: "submit with username", path: "/submit", userID: "named", decision: Allow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := p.Evaluate(context.Background(), tt.path, tt.userID)
			require.NoError(t, err)
			assert.Equal(t, tt.decision, res.Decision)
			assert.Equal(t, tt.location, res.Location)
		})
	}
}

func TestEvaluateLooksUpProfileEveryTime(t *testing.T) {
	profiles := &stubProfiles{names: map[string]string{}}
	p := NewPolicy(profiles)

	for i := 0; i < 3; i++ {
		res, err := p.Evaluate(context.Background(), "/", "u1")
		require.NoError(t, err)
		assert.Equal(t, RedirectToOnboarding, res.Decision)
	}
	assert.Equal(t, 3, profiles.calls)

	profiles.names["u1"] = "pundit"
	res, err := p.Evaluate(context.Background(), "/", "u1")
	require.NoError(t, err)
	assert.Equal(t, Allow, res.Decision)
}

func TestEvaluateProfileFailure(t *testing.T) {
	p := NewPolicy(&stubProfiles{err: errors.New("db down")})

	_, err := p.Evaluate(context.Background(), "/submit", "u1")
	assert.Error(t, err)

	// public paths never consult the profile store
	res, err := p.Evaluate(context.Background(), "/signin", "u1")
	require.NoError(t, err)
	assert.Equal(t, Allow, res.Decision)
}

func TestSafeRedirect(t *testing.T) {
	tests := map[string]string{
		"":                    "/",
		"/submit":             "/submit",
		"/players/3?x=1":      "/players/3?x=1",
		"https://evil.com":    "/",
		"//evil.com":          "/",
		"/\\evil.com":         "/",
		"javascript:alert(1)": "/",
	}
	for in, want := range tests {
		assert.Equal(t, want, SafeRedirect(in), in)
	}
}

func TestIsAPI(t *testing.T) {
	assert.True(t, IsAPI("/api/leaderboard"))
	assert.False(t, IsAPI("/submit"))
}
