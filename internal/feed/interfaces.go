package feed

import (
	"context"
	"time"
)

// SourceClient is the two-method contract every concrete provider client
// implements. FetchRaw performs the outbound exchange and returns the raw
// payload; Parse turns a payload into a normalized Record. Everything else
// about a provider stays behind this seam.
type SourceClient interface {
	FetchRaw(ctx context.Context, args FetchArgs) ([]byte, error)
	Parse(payload []byte) (Record, error)
}

// SnapshotStore persists the durable raw and processed tiers for one
// source. Load returns the merged view of both tiers, or ErrNoData when
// neither artifact exists.
type SnapshotStore interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, record Record) error
	SaveRaw(ctx context.Context, record Record) error
}

// PolicyGate answers whether the origin's published crawl policy permits
// fetching a URL. Implementations fail open when the policy itself cannot
// be retrieved.
type PolicyGate interface {
	Allowed(ctx context.Context, rawURL string) bool
}

// Publisher pushes record-refresh events to an event bus.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (swappable for tests).
type Clock interface {
	Now() time.Time
}
