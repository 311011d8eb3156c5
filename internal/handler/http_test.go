package handler

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slanderboard/internal/domain"
	"github.com/slanderboard/internal/identity"
)

type errorBody struct {
	Error string `json:"error"`
}

type fieldErrorBody struct {
	Error []domain.FieldError `json:"error"`
}

func TestAnonymousLeaderboardIsUnauthorized(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/leaderboard", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
}

func TestAnonymousPageRedirectsToSignIn(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/submit", nil, nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/signin?redirect=%2Fsubmit", rec.Header().Get("Location"))
}

func TestHomeWithoutUsernameRedirectsToOnboarding(t *testing.T) {
	s := newTestServer(t)
	_, cookies := s.signIn(t, "fan@example.com", "")

	rec := s.do(t, http.MethodGet, "/", nil, cookies)
	assert.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/onboarding", loc.Path)
	assert.Equal(t, "/", loc.Query().Get("redirect"))
}

func TestHomeServesBundle(t *testing.T) {
	s := newTestServer(t)
	_, cookies := s.signIn(t, "fan@example.com", "pundit")

	// no static directory configured
	rec := s.do(t, http.MethodGet, "/", nil, cookies)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>slanderboard</html>"), 0o600))
	s.cfg.Server.StaticDir = dir

	rec = s.do(t, http.MethodGet, "/", nil, cookies)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "slanderboard")

	rec = s.do(t, http.MethodGet, "/players/12", nil, cookies)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestVoteOutOfRangeIsValidationError(t *testing.T) {
	s := newTestServer(t)
	_, cookies := s.signIn(t, "fan@example.com", "pundit")

	rec := s.do(t, http.MethodPost, "/api/slander/vote", map[string]any{"slanderId": 1, "vote": 2}, cookies)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeBody[fieldErrorBody](t, rec)
	require.Len(t, body.Error, 1)
	assert.Equal(t, "vote", body.Error[0].Field)
}

func TestMalformedBody(t *testing.T) {
	s := newTestServer(t)
	_, cookies := s.signIn(t, "fan@example.com", "pundit")

	rec := s.do(t, http.MethodPost, "/api/slander/submit", "{not json", cookies)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSubmitVoteLeaderboardFlow(t *testing.T) {
	s := newTestServer(t)
	_, cookies := s.signIn(t, "fan@example.com", "pundit")
	_, rivalCookies := s.signIn(t, "rival@example.com", "rival")

	rec := s.do(t, http.MethodPost, "/api/slander/submit", map[string]any{
		"slander":  "Penaldo",
		"realName": "Cristiano Ronaldo",
		"league":   "SerieA",
	}, cookies)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	id := decodeBody[map[string]int64](t, rec)["slanderId"]
	require.NotZero(t, id)

	rec = s.do(t, http.MethodPost, "/api/slander/vote", map[string]any{"slanderId": id, "vote": 1}, cookies)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/slander/vote", map[string]any{"slanderId": id, "vote": 1}, rivalCookies)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/leaderboard?period=month&league=SerieA", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	board := decodeBody[itemsResponse](t, rec)
	require.Len(t, board.Items, 1)
	item := board.Items[0]
	assert.Equal(t, id, item.ID)
	assert.Equal(t, "Penaldo", item.Text)
	assert.Equal(t, int64(2), item.Score)
	assert.Equal(t, 1, item.UserVote)
	assert.Equal(t, "Cristiano Ronaldo", item.Player.FullName)
	require.NotNil(t, item.Submitter.Username)
	assert.Equal(t, "pundit", *item.Submitter.Username)

	// removing the vote
	rec = s.do(t, http.MethodPost, "/api/slander/vote", map[string]any{"slanderId": id, "vote": 0}, cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/leaderboard", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	board = decodeBody[itemsResponse](t, rec)
	require.Len(t, board.Items, 1)
	assert.Equal(t, int64(1), board.Items[0].Score)
	assert.Equal(t, 0, board.Items[0].UserVote)

	rec = s.do(t, http.MethodGet, "/api/leaderboard?league=EPL", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[]}`, rec.Body.String())
}

func TestLeaderboardValidation(t *testing.T) {
	s := newTestServer(t)
	_, cookies := s.signIn(t, "fan@example.com", "pundit")

	rec := s.do(t, http.MethodGet, "/api/leaderboard?period=decade", nil, cookies)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/leaderboard?league=MLS", nil, cookies)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	tests := []struct {
		name  string
		query string
		field string
	}{
		{name: "empty period", query: "?period=", field: "period"},
		{name: "empty league", query: "?league=", field: "league"},
		{name: "empty league with period", query: "?period=month&league=", field: "league"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, "/api/leaderboard"+tt.query, nil, cookies)
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			body := decodeBody[fieldErrorBody](t, rec)
			require.Len(t, body.Error, 1)
			assert.Equal(t, tt.field, body.Error[0].Field)
		})
	}

	rec = s.do(t, http.MethodGet, "/api/leaderboard", nil, cookies)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestVoteOnUnknownSubmission(t *testing.T) {
	s := newTestServer(t)
	_, cookies := s.signIn(t, "fan@example.com", "pundit")

	rec := s.do(t, http.MethodPost, "/api/slander/vote", map[string]any{"slanderId": 999, "vote": 1}, cookies)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"slander not found"}`, rec.Body.String())
}

func TestClaimUsername(t *testing.T) {
	s := newTestServer(t)
	_, cookies := s.signIn(t, "fan@example.com", "")
	_, otherCookies := s.signIn(t, "rival@example.com", "")

	rec := s.do(t, http.MethodPost, "/api/profile/claim-username", map[string]string{"username": "Bad Name"}, cookies)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/profile/claim-username", map[string]string{"username": "pundit"}, cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/profile/claim-username", map[string]string{"username": "pundit"}, otherCookies)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "username already taken", decodeBody[errorBody](t, rec).Error)

	rec = s.do(t, http.MethodGet, "/api/profile/me", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeBody[meResponse](t, rec)
	assert.Equal(t, "fan@example.com", me.Email)
	require.NotNil(t, me.Username)
	assert.Equal(t, "pundit", *me.Username)

	// the username now satisfies the home page
	rec = s.do(t, http.MethodGet, "/", nil, cookies)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetPlayer(t *testing.T) {
	s := newTestServer(t)
	_, cookies := s.signIn(t, "fan@example.com", "pundit")

	rec := s.do(t, http.MethodPost, "/api/slander/submit", map[string]any{
		"slander": "Slabhead", "realName": "Harry Maguire", "league": "EPL",
	}, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	id := decodeBody[map[string]int64](t, rec)["slanderId"]

	rows, err := s.store.SubmissionsByIDs(context.Background(), []int64{id})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	playerID := *rows[0].PlayerID

	rec = s.do(t, http.MethodGet, "/api/players/"+itoa(playerID), nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decodeBody[domain.PlayerPage](t, rec)
	assert.Equal(t, "Harry Maguire", page.Player.FullName)
	require.Len(t, page.Items, 1)

	rec = s.do(t, http.MethodGet, "/api/players/424242", nil, cookies)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/players/abc", nil, cookies)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRotatedCookiesAreWrittenOnEveryOutcome(t *testing.T) {
	s := newTestServer(t)
	_, cookies := s.signIn(t, "fan@example.com", "")
	refreshOnly := []*http.Cookie{cookies[1]}

	// onboarding redirect
	rec := s.do(t, http.MethodGet, "/", nil, refreshOnly)
	assert.Equal(t, http.StatusFound, rec.Code)
	rotated := responseCookies(rec)
	require.Contains(t, rotated, identity.AccessCookie)
	require.Contains(t, rotated, identity.RefreshCookie)
	assert.NotEqual(t, cookies[1].Value, rotated[identity.RefreshCookie].Value)

	// validation failure with the rotated refresh token
	next := []*http.Cookie{rotated[identity.RefreshCookie]}
	rec = s.do(t, http.MethodPost, "/api/slander/vote", map[string]any{"slanderId": 1, "vote": 5}, next)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, responseCookies(rec), identity.AccessCookie)

	// the consumed refresh token stops working once the reuse window passes
	s.redis.FastForward(s.cfg.Auth.RefreshReuseWindow + time.Second)
	rec = s.do(t, http.MethodGet, "/api/leaderboard", nil, refreshOnly)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestParallelRefreshKeepsBothRequestsSignedIn(t *testing.T) {
	s := newTestServer(t)
	_, cookies := s.signIn(t, "fan@example.com", "pundit")
	refreshOnly := []*http.Cookie{cookies[1]}

	first := s.do(t, http.MethodGet, "/api/leaderboard", nil, refreshOnly)
	second := s.do(t, http.MethodGet, "/api/profile/me", nil, refreshOnly)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t,
		responseCookies(first)[identity.RefreshCookie].Value,
		responseCookies(second)[identity.RefreshCookie].Value,
	)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"ok": true,
		"environment": "development",
		"env": {"database": true, "redis": true, "auth_secret": true}
	}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	s.do(t, http.MethodGet, "/api/health", nil, nil)
	rec := s.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `slanderboard_http_requests_total{method="GET",route="/api/health",status="200"} 1`)
}
