package adapter

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/matchpulse/feedgate/internal/feed"
	"github.com/matchpulse/feedgate/internal/orchestrator"
)

// SourceFetcher is the slice of the orchestrator the adapter needs.
type SourceFetcher interface {
	FetchData(ctx context.Context, args feed.FetchArgs, opts orchestrator.Options) (feed.Result, error)
}

// ScrapedSources names the per-capability orchestrators behind the scraped
// ingestion strategy.
type ScrapedSources struct {
	Odds       SourceFetcher
	TeamStats  SourceFetcher
	Historical SourceFetcher
	Live       SourceFetcher
}

// Scraped serves the capability set from scraped providers, with a
// short-TTL hot cache layered over each orchestrator's durable snapshot.
type Scraped struct {
	sources ScrapedSources
	ttls    TTLs
	cache   *ttlCache
	logger  *zap.Logger
}

// NewScraped builds the scraped-source adapter.
func NewScraped(sources ScrapedSources, ttls TTLs, clock feed.Clock, logger *zap.Logger) (*Scraped, error) {
	if sources.Odds == nil || sources.TeamStats == nil || sources.Historical == nil || sources.Live == nil {
		return nil, fmt.Errorf("every capability needs a source")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraped{
		sources: sources,
		ttls:    ttls,
		cache:   newTTLCache(clock),
		logger:  logger,
	}, nil
}

// FetchOdds returns current odds for a match.
func (a *Scraped) FetchOdds(ctx context.Context, matchID string) (feed.Result, error) {
	return a.fetch(ctx, a.sources.Odds, a.ttls.Odds,
		"odds:"+matchID,
		feed.FetchArgs{"path": "/odds", "match": matchID},
	)
}

// FetchTeamStats returns aggregate stats for a team.
func (a *Scraped) FetchTeamStats(ctx context.Context, team string) (feed.Result, error) {
	return a.fetch(ctx, a.sources.TeamStats, a.ttls.TeamStats,
		"stats:"+team,
		feed.FetchArgs{"path": "/stats", "team": team},
	)
}

// FetchHistorical returns finished results for a league season.
func (a *Scraped) FetchHistorical(ctx context.Context, league, season string) (feed.Result, error) {
	return a.fetch(ctx, a.sources.Historical, a.ttls.Historical,
		"historical:"+league+":"+season,
		feed.FetchArgs{"path": "/results", "league": league, "season": season},
	)
}

// FetchLive returns in-play scores for a league.
func (a *Scraped) FetchLive(ctx context.Context, league string) (feed.Result, error) {
	return a.fetch(ctx, a.sources.Live, a.ttls.Live,
		"live:"+league,
		feed.FetchArgs{"path": "/live", "league": league},
	)
}

// PurgeCache drops the hot tier; the durable snapshots are untouched.
func (a *Scraped) PurgeCache() {
	a.cache.Purge()
}

func (a *Scraped) fetch(ctx context.Context, src SourceFetcher, ttl time.Duration, key string, args feed.FetchArgs) (feed.Result, error) {
	if cached, ok := a.cache.Get(key); ok {
		return cached, nil
	}

	result, err := src.FetchData(ctx, args, orchestrator.Options{})
	if err != nil {
		// ErrNoData still carries the empty sentinel; never cache it.
		return result, err
	}
	a.cache.Set(key, result, ttl)
	return result, nil
}
