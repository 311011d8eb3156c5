package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.VoteApplied(1)
	m.SlanderSubmitted()
	m.LeaderboardServed(3)
	m.AccessDecision("allow")
	m.EventsPublished(2)
	m.EventsFailed(1)

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestCounters(t *testing.T) {
	m := New()
	m.VoteApplied(1)
	m.VoteApplied(1)
	m.VoteApplied(-1)
	m.SlanderSubmitted()
	m.EventsPublished(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.votes.WithLabelValues("1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.votes.WithLabelValues("-1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissions))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.eventsPublished))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/players/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", m.Handler())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/players/42", nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("/api/players/{id}", http.MethodGet, "404")))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "slanderboard_http_requests_total"))
}
