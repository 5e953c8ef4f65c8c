// Package postgres provides a Postgres-backed snapshot store.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/matchpulse/feedgate/internal/feed"
	"github.com/matchpulse/feedgate/internal/snapshot"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for snapshot rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// Store keeps one row per source and tier, upserted on every save.
type Store struct {
	pool      querier
	table     string
	source    string
	keyFields []string
	clock     feed.Clock
}

// NewStore creates a Postgres-backed snapshot store for the named source.
func NewStore(ctx context.Context, cfg Config, source string, keyFields []string, clock feed.Clock) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewStoreWithPool(pool, cfg.Table, source, keyFields, clock)
}

// NewStoreWithPool constructs a store from an existing pool (primarily for
// testing with pgxmock).
func NewStoreWithPool(pool querier, table, source string, keyFields []string, clock feed.Clock) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "source_snapshots"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if source == "" {
		return nil, fmt.Errorf("source name is required")
	}
	return &Store{
		pool:      pool,
		table:     table,
		source:    source,
		keyFields: keyFields,
		clock:     clock,
	}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Load reads both tiers for the source and returns the merged view.
func (s *Store) Load(ctx context.Context) (feed.Snapshot, error) {
	query := fmt.Sprintf(
		`SELECT tier, record, captured_at FROM %s WHERE source = $1`, s.table,
	)
	rows, err := s.pool.Query(ctx, query, s.source)
	if err != nil {
		return feed.Snapshot{}, fmt.Errorf("query snapshot rows: %w", err)
	}
	defer rows.Close()

	var (
		raw, processed feed.Record
		capturedAt     time.Time
		found          bool
	)
	for rows.Next() {
		var (
			tier    string
			payload []byte
			at      time.Time
		)
		if err := rows.Scan(&tier, &payload, &at); err != nil {
			return feed.Snapshot{}, fmt.Errorf("scan snapshot row: %w", err)
		}
		var rec feed.Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			return feed.Snapshot{}, fmt.Errorf("decode %s tier: %w", tier, err)
		}
		switch tier {
		case "raw":
			raw = rec
		case "processed":
			processed = rec
		default:
			continue
		}
		found = true
		if at.After(capturedAt) {
			capturedAt = at
		}
	}
	if err := rows.Err(); err != nil {
		return feed.Snapshot{}, fmt.Errorf("iterate snapshot rows: %w", err)
	}
	if !found {
		return feed.Snapshot{}, feed.ErrNoData
	}
	return feed.Snapshot{
		Record:     snapshot.Merge(raw, processed, s.keyFields),
		CapturedAt: capturedAt,
	}, nil
}

// Save upserts the processed tier.
func (s *Store) Save(ctx context.Context, record feed.Record) error {
	return s.saveTier(ctx, "processed", record)
}

// SaveRaw upserts the raw tier.
func (s *Store) SaveRaw(ctx context.Context, record feed.Record) error {
	return s.saveTier(ctx, "raw", record)
}

func (s *Store) saveTier(ctx context.Context, tier string, record feed.Record) error {
	if s == nil || s.pool == nil {
		return errors.New("snapshot store is not configured")
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode %s tier: %w", tier, err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (source, tier, record, captured_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (source, tier)
DO UPDATE SET record = EXCLUDED.record, captured_at = EXCLUDED.captured_at`,
		s.table,
	)
	if _, err := s.pool.Exec(ctx, query, s.source, tier, payload, s.clock.Now()); err != nil {
		return fmt.Errorf("upsert %s tier: %w", tier, err)
	}
	return nil
}
