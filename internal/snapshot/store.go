package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/matchpulse/feedgate/internal/blob"
	"github.com/matchpulse/feedgate/internal/feed"
)

const artifactContentType = "application/json"

// artifact is the on-disk envelope for one snapshot tier.
type artifact struct {
	Record     feed.Record `json:"record"`
	CapturedAt time.Time   `json:"captured_at"`
}

// Store persists the raw and processed tiers for one source through a blob
// backend (filesystem, GCS). Each source owns its own Store instance.
type Store struct {
	blobs     blob.Store
	source    string
	keyFields []string
	clock     feed.Clock
}

// NewStore builds a snapshot store for the named source. keyFields define
// the natural key used to de-duplicate table rows on merge; nil selects
// the date+home+away default.
func NewStore(blobs blob.Store, source string, keyFields []string, clock feed.Clock) *Store {
	return &Store{
		blobs:     blobs,
		source:    source,
		keyFields: keyFields,
		clock:     clock,
	}
}

// Load reads both tiers and returns the merged view. It returns
// feed.ErrNoData when neither artifact exists.
func (s *Store) Load(ctx context.Context) (feed.Snapshot, error) {
	raw, rawAt, rawErr := s.loadTier(ctx, "raw")
	if rawErr != nil && !errors.Is(rawErr, blob.ErrNotExist) {
		return feed.Snapshot{}, fmt.Errorf("load raw tier: %w", rawErr)
	}
	processed, procAt, procErr := s.loadTier(ctx, "processed")
	if procErr != nil && !errors.Is(procErr, blob.ErrNotExist) {
		return feed.Snapshot{}, fmt.Errorf("load processed tier: %w", procErr)
	}
	if rawErr != nil && procErr != nil {
		return feed.Snapshot{}, feed.ErrNoData
	}

	capturedAt := procAt
	if rawAt.After(capturedAt) {
		capturedAt = rawAt
	}
	return feed.Snapshot{
		Record:     Merge(raw, processed, s.keyFields),
		CapturedAt: capturedAt,
	}, nil
}

// Save overwrites the processed tier with record.
func (s *Store) Save(ctx context.Context, record feed.Record) error {
	return s.saveTier(ctx, "processed", record)
}

// SaveRaw overwrites the raw (bulk import) tier with record.
func (s *Store) SaveRaw(ctx context.Context, record feed.Record) error {
	return s.saveTier(ctx, "raw", record)
}

func (s *Store) loadTier(ctx context.Context, tier string) (feed.Record, time.Time, error) {
	data, err := s.blobs.Get(ctx, s.tierPath(tier))
	if err != nil {
		return feed.Record{}, time.Time{}, err
	}
	var art artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return feed.Record{}, time.Time{}, fmt.Errorf("decode %s tier: %w", tier, err)
	}
	return art.Record, art.CapturedAt, nil
}

func (s *Store) saveTier(ctx context.Context, tier string, record feed.Record) error {
	data, err := json.Marshal(artifact{Record: record, CapturedAt: s.clock.Now()})
	if err != nil {
		return fmt.Errorf("encode %s tier: %w", tier, err)
	}
	if _, err := s.blobs.Put(ctx, s.tierPath(tier), artifactContentType, data); err != nil {
		return fmt.Errorf("store %s tier: %w", tier, err)
	}
	return nil
}

func (s *Store) tierPath(tier string) string {
	return path.Join(s.source, tier+".json")
}
