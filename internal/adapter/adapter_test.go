package adapter

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchpulse/feedgate/internal/feed"
	"github.com/matchpulse/feedgate/internal/orchestrator"
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

type countingFetcher struct {
	calls  atomic.Int32
	result feed.Result
	err    error
}

func (f *countingFetcher) FetchData(context.Context, feed.FetchArgs, orchestrator.Options) (feed.Result, error) {
	f.calls.Add(1)
	return f.result, f.err
}

func liveResult() feed.Result {
	return feed.Result{
		Record:     feed.Record{Shape: feed.ShapeMap, Fields: map[string]any{"home_win": 1.85}},
		Provenance: feed.ProvenanceLive,
	}
}

func newScraped(t *testing.T, clk *fakeClock, f *countingFetcher) *Scraped {
	t.Helper()
	a, err := NewScraped(ScrapedSources{
		Odds:       f,
		TeamStats:  f,
		Historical: f,
		Live:       f,
	}, DefaultTTLs(), clk, nil)
	require.NoError(t, err)
	return a
}

func TestFetchOddsServesHotCacheWithinTTL(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	f := &countingFetcher{result: liveResult()}
	a := newScraped(t, clk, f)
	ctx := context.Background()

	_, err := a.FetchOdds(ctx, "m-100")
	require.NoError(t, err)
	_, err = a.FetchOdds(ctx, "m-100")
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.calls.Load())

	clk.Advance(31 * time.Second)
	_, err = a.FetchOdds(ctx, "m-100")
	require.NoError(t, err)
	assert.EqualValues(t, 2, f.calls.Load())
}

func TestHotCacheIsKeyedPerArgument(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	f := &countingFetcher{result: liveResult()}
	a := newScraped(t, clk, f)
	ctx := context.Background()

	_, err := a.FetchOdds(ctx, "m-100")
	require.NoError(t, err)
	_, err = a.FetchOdds(ctx, "m-200")
	require.NoError(t, err)
	assert.EqualValues(t, 2, f.calls.Load())
}

func TestCapabilitiesUseOwnTTLs(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	f := &countingFetcher{result: liveResult()}
	a := newScraped(t, clk, f)
	ctx := context.Background()

	_, err := a.FetchLive(ctx, "premier-league")
	require.NoError(t, err)

	// Live goes stale after 10s; team stats survive 5 minutes.
	_, err = a.FetchTeamStats(ctx, "arsenal")
	require.NoError(t, err)
	require.EqualValues(t, 2, f.calls.Load())

	clk.Advance(11 * time.Second)
	_, err = a.FetchLive(ctx, "premier-league")
	require.NoError(t, err)
	_, err = a.FetchTeamStats(ctx, "arsenal")
	require.NoError(t, err)
	assert.EqualValues(t, 3, f.calls.Load())
}

func TestNoDataResultIsNotCached(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	f := &countingFetcher{
		result: feed.Result{Record: feed.EmptyRecord(feed.ShapeMap), Provenance: feed.ProvenanceDefault},
		err:    feed.ErrNoData,
	}
	a := newScraped(t, clk, f)
	ctx := context.Background()

	_, err := a.FetchOdds(ctx, "m-100")
	require.ErrorIs(t, err, feed.ErrNoData)
	_, err = a.FetchOdds(ctx, "m-100")
	require.ErrorIs(t, err, feed.ErrNoData)
	assert.EqualValues(t, 2, f.calls.Load())
}

func TestPurgeCacheDropsHotTier(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	f := &countingFetcher{result: liveResult()}
	a := newScraped(t, clk, f)
	ctx := context.Background()

	_, err := a.FetchHistorical(ctx, "premier-league", "2025-26")
	require.NoError(t, err)
	a.PurgeCache()
	_, err = a.FetchHistorical(ctx, "premier-league", "2025-26")
	require.NoError(t, err)
	assert.EqualValues(t, 2, f.calls.Load())
}

func TestRegistryMemoizesAdapters(t *testing.T) {
	t.Parallel()

	var built atomic.Int32
	reg := NewRegistry()
	reg.Register("scraped", func() (Adapter, error) {
		built.Add(1)
		return newScraped(t, newFakeClock(), &countingFetcher{result: liveResult()}), nil
	})

	first, err := reg.Get("scraped")
	require.NoError(t, err)
	second, err := reg.Get("scraped")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.EqualValues(t, 1, built.Load())
}

func TestRegistryUnknownKey(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	_, err := reg.Get("licensed")
	require.Error(t, err)
}

func TestRegistryResetForcesRebuild(t *testing.T) {
	t.Parallel()

	var built atomic.Int32
	reg := NewRegistry()
	reg.Register("scraped", func() (Adapter, error) {
		built.Add(1)
		return newScraped(t, newFakeClock(), &countingFetcher{result: liveResult()}), nil
	})

	_, err := reg.Get("scraped")
	require.NoError(t, err)
	reg.Reset()
	_, err = reg.Get("scraped")
	require.NoError(t, err)
	assert.EqualValues(t, 2, built.Load())
}
