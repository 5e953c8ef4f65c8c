package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchpulse/feedgate/internal/blob/memory"
	"github.com/matchpulse/feedgate/internal/breaker"
	"github.com/matchpulse/feedgate/internal/feed"
	"github.com/matchpulse/feedgate/internal/pace"
	"github.com/matchpulse/feedgate/internal/snapshot"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0).UTC()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// scriptClient counts transport calls and fails on demand.
type scriptClient struct {
	calls    atomic.Int32
	failWith error
	record   feed.Record
	parseErr error
}

func (c *scriptClient) FetchRaw(_ context.Context, _ feed.FetchArgs) ([]byte, error) {
	c.calls.Add(1)
	if c.failWith != nil {
		return nil, c.failWith
	}
	return []byte(`payload`), nil
}

func (c *scriptClient) Parse(_ []byte) (feed.Record, error) {
	if c.parseErr != nil {
		return feed.Record{}, c.parseErr
	}
	return c.record, nil
}

type fakeGate struct {
	allowed bool
	calls   atomic.Int32
}

func (g *fakeGate) Allowed(context.Context, string) bool {
	g.calls.Add(1)
	return g.allowed
}

type harness struct {
	orch   *Orchestrator
	client *scriptClient
	gate   *fakeGate
	store  *snapshot.Store
	clock  *fakeClock
}

func newHarness(t *testing.T, threshold int, resetTimeout time.Duration) *harness {
	t.Helper()

	clk := newFakeClock()
	client := &scriptClient{record: feed.Record{
		Shape: feed.ShapeTable,
		Rows:  []feed.Row{{"date": "2026-03-01", "home": "Arsenal", "away": "Chelsea", "odds": 1.9}},
	}}
	gate := &fakeGate{allowed: true}
	store := snapshot.NewStore(memory.New(), "oddsfeed", nil, clk)

	cfg := feed.SourceConfig{
		Name:          "oddsfeed",
		OriginURL:     "https://odds.example.com",
		MinDelay:      time.Millisecond,
		MaxRetries:    2,
		Timeout:       time.Second,
		RespectPolicy: true,
		Shape:         feed.ShapeTable,
	}
	orch := New(cfg, Deps{
		Client:  client,
		Store:   store,
		Gate:    gate,
		Pacer:   pace.New(cfg.Name, time.Millisecond),
		Circuit: breaker.New(cfg.Name, threshold, resetTimeout, clk),
		Clock:   clk,
	})
	return &harness{orch: orch, client: client, gate: gate, store: store, clock: clk}
}

func TestFetchLiveSavesSnapshot(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 5, time.Minute)
	ctx := context.Background()

	res, err := h.orch.FetchData(ctx, feed.FetchArgs{"path": "/odds/today"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, feed.ProvenanceLive, res.Provenance)
	require.Len(t, res.Record.Rows, 1)

	snap, err := h.store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Record.Rows, 1)

	m := h.orch.Metrics().Snapshot()
	assert.EqualValues(t, 1, m.RequestsTotal)
	assert.EqualValues(t, 1, m.RequestsSuccess)
}

func TestCacheHitShortCircuitsTransport(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 5, time.Minute)
	ctx := context.Background()

	// Populate the snapshot, then fetch cache-first.
	_, err := h.orch.FetchData(ctx, nil, Options{})
	require.NoError(t, err)
	require.EqualValues(t, 1, h.client.calls.Load())

	res, err := h.orch.FetchData(ctx, nil, Options{UseCache: true})
	require.NoError(t, err)
	assert.Equal(t, feed.ProvenanceCache, res.Provenance)
	assert.EqualValues(t, 1, h.client.calls.Load(), "cache hit must not touch the transport")
	assert.EqualValues(t, 1, h.orch.Metrics().Snapshot().CacheHits)
}

func TestForceRefreshBypassesCache(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 5, time.Minute)
	ctx := context.Background()

	_, err := h.orch.FetchData(ctx, nil, Options{})
	require.NoError(t, err)

	res, err := h.orch.FetchData(ctx, nil, Options{UseCache: true, ForceRefresh: true})
	require.NoError(t, err)
	assert.Equal(t, feed.ProvenanceLive, res.Provenance)
	assert.EqualValues(t, 2, h.client.calls.Load())
}

func TestFailureFallsBackToSnapshot(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 5, time.Minute)
	ctx := context.Background()

	_, err := h.orch.FetchData(ctx, nil, Options{})
	require.NoError(t, err)

	h.client.failWith = &feed.TransientError{Kind: feed.TransientServerError, Err: errors.New("status 502")}
	res, err := h.orch.FetchData(ctx, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, feed.ProvenanceCache, res.Provenance)
	require.Len(t, res.Record.Rows, 1)

	m := h.orch.Metrics().Snapshot()
	assert.EqualValues(t, 1, m.RequestsFailed)
}

func TestFailureWithoutSnapshotReturnsEmptySentinel(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 5, time.Minute)
	h.client.failWith = &feed.TransientError{Kind: feed.TransientTimeout, Err: errors.New("deadline")}

	res, err := h.orch.FetchData(context.Background(), nil, Options{})
	require.ErrorIs(t, err, feed.ErrNoData)
	assert.Equal(t, feed.ProvenanceDefault, res.Provenance)
	assert.True(t, res.Record.Empty())
	assert.Equal(t, feed.ShapeTable, res.Record.Shape)
}

func TestParseFailureCountsAsBreakerFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 1, time.Minute)
	h.client.parseErr = errors.New("unexpected shape")

	_, err := h.orch.FetchData(context.Background(), nil, Options{})
	require.ErrorIs(t, err, feed.ErrNoData)
	assert.Equal(t, breaker.Open, h.orch.CircuitState())
}

func TestBreakerScenarioFiveFailuresThenRecovery(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 5, time.Minute)
	ctx := context.Background()

	// Seed the snapshot with one good fetch.
	_, err := h.orch.FetchData(ctx, nil, Options{})
	require.NoError(t, err)
	require.EqualValues(t, 1, h.client.calls.Load())

	// Five consecutive failures open the breaker.
	h.client.failWith = &feed.TransientError{Kind: feed.TransientServerError, Err: errors.New("status 503")}
	for i := 0; i < 5; i++ {
		res, err := h.orch.FetchData(ctx, nil, Options{})
		require.NoError(t, err)
		assert.Equal(t, feed.ProvenanceCache, res.Provenance)
	}
	require.Equal(t, breaker.Open, h.orch.CircuitState())
	callsAfterFailures := h.client.calls.Load()

	// Sixth call: breaker open, zero transport calls, cached result.
	res, err := h.orch.FetchData(ctx, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, feed.ProvenanceCache, res.Provenance)
	assert.Equal(t, callsAfterFailures, h.client.calls.Load())

	// After the reset timeout the seventh call performs exactly one attempt.
	h.clock.Advance(time.Minute)
	h.client.failWith = nil
	res, err = h.orch.FetchData(ctx, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, feed.ProvenanceLive, res.Provenance)
	assert.Equal(t, callsAfterFailures+1, h.client.calls.Load())
	assert.Equal(t, breaker.Closed, h.orch.CircuitState())
}

func TestPolicyDeniedSkipsAttempt(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 5, time.Minute)
	ctx := context.Background()

	_, err := h.orch.FetchData(ctx, nil, Options{})
	require.NoError(t, err)
	require.EqualValues(t, 1, h.client.calls.Load())

	h.gate.allowed = false
	res, err := h.orch.FetchData(ctx, feed.FetchArgs{"path": "/blocked"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, feed.ProvenanceCache, res.Provenance)
	assert.EqualValues(t, 1, h.client.calls.Load(), "denied fetch must not reach the transport")

	m := h.orch.Metrics().Snapshot()
	assert.EqualValues(t, 1, m.BlockedByPolicy)
	// A denied attempt is not a source failure.
	assert.Equal(t, breaker.Closed, h.orch.CircuitState())
}

func TestFetchDataAlwaysReturnsAValue(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	for _, cachePresent := range []bool{false, true} {
		for _, transportFails := range []bool{false, true} {
			h := newHarness(t, 5, time.Minute)
			if cachePresent {
				_, err := h.orch.FetchData(ctx, nil, Options{})
				require.NoError(t, err)
			}
			if transportFails {
				h.client.failWith = &feed.TransientError{Kind: feed.TransientTimeout, Err: errors.New("deadline")}
			}
			res, err := h.orch.FetchData(ctx, nil, Options{})
			if err != nil {
				require.ErrorIs(t, err, feed.ErrNoData)
			}
			assert.NotEmpty(t, res.Provenance)
		}
	}
}

func TestMetricsReset(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 5, time.Minute)
	_, err := h.orch.FetchData(context.Background(), nil, Options{})
	require.NoError(t, err)
	require.EqualValues(t, 1, h.orch.Metrics().Snapshot().RequestsTotal)

	h.orch.Metrics().Reset()
	assert.Equal(t, MetricsSnapshot{}, h.orch.Metrics().Snapshot())
}
