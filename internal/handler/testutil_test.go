package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/slanderboard/internal/access"
	"github.com/slanderboard/internal/config"
	"github.com/slanderboard/internal/domain"
	"github.com/slanderboard/internal/identity"
	"github.com/slanderboard/internal/metrics"
	"github.com/slanderboard/internal/redis"
	"github.com/slanderboard/internal/service"
	"github.com/slanderboard/internal/sqlite"
	"github.com/slanderboard/internal/validate"
)

type captureMailer struct {
	link string
}

func (m *captureMailer) SendSignInLink(_ context.Context, _, link string) error {
	m.link = link
	return nil
}

type testServer struct {
	handler  http.Handler
	store    *sqlite.Store
	provider *identity.Provider
	mailer   *captureMailer
	cfg      *config.Config
	redis    *miniredis.Miniredis
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	cfg := config.DefaultConfig()
	cfg.Auth.Secret = "test-secret"

	store, err := sqlite.New(&cfg.SQLite, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.RunMigrations(context.Background()))

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	sessions := redis.NewSessionStoreFromClient(client, logger)
	t.Cleanup(func() { _ = sessions.Close() })

	mailer := &captureMailer{}
	provider, err := identity.NewProvider(&cfg.Auth, sessions, store, mailer, logger)
	require.NoError(t, err)

	v := validate.New()
	profiles := service.NewProfileService(store, v)
	h := NewHandler(Deps{
		Config:      cfg,
		Leaderboard: service.NewLeaderboardService(store, store, &cfg.Leaderboard, logger),
		Ledger:      service.NewLedgerService(store, logger),
		Submissions: service.NewSubmissionService(store, v, logger),
		Profiles:    profiles,
		Players:     service.NewPlayerService(store, store, &cfg.Leaderboard),
		Identity:    provider,
		Resolver:    identity.NewResolver(provider, &cfg.Auth, logger),
		Policy:      access.NewPolicy(profiles),
		Validator:   v,
		Metrics:     metrics.New(),
		Database:    store,
		Redis:       sessions,
	}, logger)

	return &testServer{
		handler:  h.Router(),
		store:    store,
		provider: provider,
		mailer:   mailer,
		cfg:      cfg,
		redis:    mr,
	}
}

// signIn creates a user, optionally claims a username, and returns session
// cookies for it.
func (s *testServer) signIn(t *testing.T, email, username string) (*domain.User, []*http.Cookie) {
	t.Helper()
	ctx := context.Background()
	user, err := s.store.EnsureUser(ctx, email)
	require.NoError(t, err)
	if username != "" {
		require.NoError(t, s.store.ClaimUsername(ctx, user.ID, username))
	}
	tokens, err := s.provider.StartSession(ctx, *user)
	require.NoError(t, err)
	return user, []*http.Cookie{
		{Name: identity.AccessCookie, Value: tokens.AccessToken},
		{Name: identity.RefreshCookie, Value: tokens.RefreshToken},
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func responseCookies(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}
