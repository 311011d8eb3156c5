package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/slanderboard/internal/config"
	"github.com/slanderboard/internal/domain"
	"github.com/slanderboard/internal/sqlite"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type memoryOutbox struct {
	mu        sync.Mutex
	events    []domain.LedgerEvent
	published map[int64]bool
}

func newMemoryOutbox(n int) *memoryOutbox {
	o := &memoryOutbox{published: map[int64]bool{}}
	for i := 1; i <= n; i++ {
		o.events = append(o.events, domain.LedgerEvent{ID: int64(i), Kind: domain.EventVoteCast, SlanderID: 1, Value: 1})
	}
	return o
}

func (o *memoryOutbox) PendingEvents(_ context.Context, limit int) ([]domain.LedgerEvent, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []domain.LedgerEvent
	for _, e := range o.events {
		if !o.published[e.ID] {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (o *memoryOutbox) MarkPublished(_ context.Context, ids []int64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, id := range ids {
		o.published[id] = true
	}
	return nil
}

func (o *memoryOutbox) pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.events) - len(o.published)
}

type recordingPublisher struct {
	mu   sync.Mutex
	ids  []int64
	fail error
}

func (p *recordingPublisher) Publish(_ context.Context, events []domain.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	for _, e := range events {
		p.ids = append(p.ids, e.ID)
	}
	return nil
}

type countingMetrics struct {
	published, failed int
}

func (m *countingMetrics) EventsPublished(n int) { m.published += n }
func (m *countingMetrics) EventsFailed(n int)    { m.failed += n }

func TestRunOnceDrainsInBatches(t *testing.T) {
	outbox := newMemoryOutbox(7)
	pub := &recordingPublisher{}
	m := &countingMetrics{}
	relay := NewOutboxRelay(outbox, pub, m, &config.RelayConfig{Interval: time.Hour, BatchSize: 3}, discardLogger())

	n, err := relay.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7}, pub.ids)
	assert.Equal(t, 0, outbox.pending())
	assert.Equal(t, 7, m.published)

	n, err = relay.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunOnceLeavesFailedBatchPending(t *testing.T) {
	outbox := newMemoryOutbox(2)
	pub := &recordingPublisher{fail: errors.New("broker down")}
	m := &countingMetrics{}
	relay := NewOutboxRelay(outbox, pub, m, &config.RelayConfig{Interval: time.Hour, BatchSize: 10}, discardLogger())

	n, err := relay.RunOnce(context.Background())
	require.Error(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 2, outbox.pending())
	assert.Equal(t, 2, m.failed)

	pub.fail = nil
	n, err = relay.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	outbox := newMemoryOutbox(4)
	pub := &recordingPublisher{}
	relay := NewOutboxRelay(outbox, pub, nil, &config.RelayConfig{Interval: 5 * time.Millisecond, BatchSize: 2}, discardLogger())

	require.NoError(t, relay.Start(context.Background()))
	require.NoError(t, relay.Start(context.Background()))
	assert.True(t, relay.IsRunning())

	require.Eventually(t, func() bool { return outbox.pending() == 0 }, time.Second, 5*time.Millisecond)

	require.NoError(t, relay.Stop())
	require.NoError(t, relay.Stop())
	assert.False(t, relay.IsRunning())
}

func TestStopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	relay := NewOutboxRelay(newMemoryOutbox(0), &recordingPublisher{}, nil, &config.RelayConfig{Interval: time.Hour}, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, relay.Start(ctx))
	cancel()
	require.NoError(t, relay.Stop())
}

func TestRelayFromSQLiteStore(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.New(&config.SQLiteConfig{}, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.RunMigrations(ctx))
	store.RecordLedgerEvents(true)

	user, err := store.EnsureUser(ctx, "fan@example.com")
	require.NoError(t, err)
	id, err := store.SubmitSlanderName(ctx, user.ID, "Cristiano Ronaldo", domain.LeagueSerieA, "Penaldo")
	require.NoError(t, err)
	require.NoError(t, store.CastVote(ctx, user.ID, id, 1))
	require.NoError(t, store.Unvote(ctx, user.ID, id))

	pub := &recordingPublisher{}
	relay := NewOutboxRelay(store, pub, nil, &config.RelayConfig{Interval: time.Hour, BatchSize: 2}, discardLogger())

	n, err := relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.True(t, sort.SliceIsSorted(pub.ids, func(i, j int) bool { return pub.ids[i] < pub.ids[j] }))

	pending, err := store.PendingEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
