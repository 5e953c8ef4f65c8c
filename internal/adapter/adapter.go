// Package adapter normalizes heterogeneous source clients behind the
// small domain capability set consumed by the feature builder.
package adapter

import (
	"context"
	"time"

	"github.com/matchpulse/feedgate/internal/feed"
)

// Adapter is the capability set a feature builder consumes. Implementations
// decide which concrete sources serve each capability; swapping the
// ingestion strategy must never require call-site changes.
type Adapter interface {
	FetchOdds(ctx context.Context, matchID string) (feed.Result, error)
	FetchTeamStats(ctx context.Context, team string) (feed.Result, error)
	FetchHistorical(ctx context.Context, league, season string) (feed.Result, error)
	FetchLive(ctx context.Context, league string) (feed.Result, error)
}

// TTLs carries the hot-cache lifetime per capability.
type TTLs struct {
	Odds       time.Duration
	TeamStats  time.Duration
	Historical time.Duration
	Live       time.Duration
}

// DefaultTTLs reflect how quickly each capability goes stale: odds move in
// seconds, historical results barely move at all.
func DefaultTTLs() TTLs {
	return TTLs{
		Odds:       30 * time.Second,
		TeamStats:  5 * time.Minute,
		Historical: 24 * time.Hour,
		Live:       10 * time.Second,
	}
}
