// Package metrics exposes Prometheus collectors for the service
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry         *prometheus.Registry
	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	votes            *prometheus.CounterVec
	submissions      prometheus.Counter
	leaderboardItems prometheus.Histogram
	accessDecisions  *prometheus.CounterVec
	eventsPublished  prometheus.Counter
	eventsFailed     prometheus.Counter
}

// New creates the collectors on a fresh registry
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "slanderboard_http_requests_total",
			Help: "number of HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "slanderboard_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		votes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "slanderboard_votes_total",
			Help: "number of applied votes by value",
		}, []string{"value"}),
		submissions: factory.NewCounter(prometheus.CounterOpts{
			Name: "slanderboard_submissions_total",
			Help: "number of slander names submitted",
		}),
		leaderboardItems: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "slanderboard_leaderboard_items",
			Help:    "number of items returned per leaderboard request",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
		}),
		accessDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "slanderboard_access_decisions_total",
			Help: "access policy decisions on protected paths",
		}, []string{"decision"}),
		eventsPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "slanderboard_ledger_events_published_total",
			Help: "number of ledger events published to Kafka",
		}),
		eventsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "slanderboard_ledger_events_failed_total",
			Help: "number of ledger event publish attempts that failed",
		}),
	}
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency by chi route pattern
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// VoteApplied counts an applied vote
func (m *Metrics) VoteApplied(value int) {
	if m == nil {
		return
	}
	m.votes.WithLabelValues(strconv.Itoa(value)).Inc()
}

// SlanderSubmitted counts a new submission
func (m *Metrics) SlanderSubmitted() {
	if m == nil {
		return
	}
	m.submissions.Inc()
}

// LeaderboardServed records the size of a leaderboard response
func (m *Metrics) LeaderboardServed(items int) {
	if m == nil {
		return
	}
	m.leaderboardItems.Observe(float64(items))
}

// AccessDecision counts a policy decision
func (m *Metrics) AccessDecision(decision string) {
	if m == nil {
		return
	}
	m.accessDecisions.WithLabelValues(decision).Inc()
}

// EventsPublished counts delivered ledger events
func (m *Metrics) EventsPublished(n int) {
	if m == nil {
		return
	}
	m.eventsPublished.Add(float64(n))
}

// EventsFailed counts ledger events that could not be delivered
func (m *Metrics) EventsFailed(n int) {
	if m == nil {
		return
	}
	m.eventsFailed.Add(float64(n))
}
