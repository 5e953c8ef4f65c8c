// Package app initializes and holds the long-lived services, acting as the
// composition root for the feedgate process.
package app

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/matchpulse/feedgate/internal/adapter"
	"github.com/matchpulse/feedgate/internal/api"
	"github.com/matchpulse/feedgate/internal/blob"
	blobgcs "github.com/matchpulse/feedgate/internal/blob/gcs"
	bloblocal "github.com/matchpulse/feedgate/internal/blob/local"
	"github.com/matchpulse/feedgate/internal/breaker"
	"github.com/matchpulse/feedgate/internal/clock/system"
	"github.com/matchpulse/feedgate/internal/config"
	"github.com/matchpulse/feedgate/internal/feed"
	"github.com/matchpulse/feedgate/internal/logging"
	"github.com/matchpulse/feedgate/internal/orchestrator"
	"github.com/matchpulse/feedgate/internal/pace"
	"github.com/matchpulse/feedgate/internal/policy/robots"
	pubsubpub "github.com/matchpulse/feedgate/internal/publisher/pubsub"
	"github.com/matchpulse/feedgate/internal/snapshot"
	snapshotpg "github.com/matchpulse/feedgate/internal/snapshot/postgres"
	"github.com/matchpulse/feedgate/internal/source/htmltable"
	"github.com/matchpulse/feedgate/internal/source/httpjson"
	"github.com/matchpulse/feedgate/internal/transport"
)

const (
	defaultFailureThreshold = 5
	defaultResetTimeout     = 60 * time.Second
)

// App wires every source's resilience stack and exposes the adapter
// registry plus the status surface the ops API serves.
type App struct {
	cfg           config.Config
	logger        *zap.Logger
	clock         feed.Clock
	orchestrators map[string]*orchestrator.Orchestrator
	registry      *adapter.Registry
	closers       []func()
}

// New builds the full service graph from configuration. It fails fast:
// any backend that cannot be initialized aborts startup.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &App{
		cfg:           cfg,
		logger:        logger,
		clock:         system.New(),
		orchestrators: make(map[string]*orchestrator.Orchestrator),
		registry:      adapter.NewRegistry(),
	}

	publisher, err := a.buildPublisher(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	storeFor, err := a.buildStoreFactory(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	byCapability := make(map[string]*orchestrator.Orchestrator)
	for name, src := range cfg.Sources {
		orch, err := a.buildSource(name, src, publisher, storeFor)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("source %q: %w", name, err)
		}
		a.orchestrators[name] = orch
		byCapability[src.Capability] = orch
	}

	a.registerAdapters(byCapability)

	logger.Info("application services initialized",
		zap.Int("sources", len(a.orchestrators)),
		zap.String("storage_backend", cfg.Storage.Backend),
	)
	return a, nil
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Registry exposes the adapter registry to commands.
func (a *App) Registry() *adapter.Registry {
	return a.registry
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Orchestrator returns the orchestrator for one configured source.
func (a *App) Orchestrator(name string) (*orchestrator.Orchestrator, bool) {
	orch, ok := a.orchestrators[name]
	return orch, ok
}

// SourceNames implements api.StatusProvider.
func (a *App) SourceNames() []string {
	names := make([]string, 0, len(a.orchestrators))
	for name := range a.orchestrators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SourceStatus implements api.StatusProvider.
func (a *App) SourceStatus(ctx context.Context, name string) (api.SourceStatus, bool) {
	orch, ok := a.orchestrators[name]
	if !ok {
		return api.SourceStatus{}, false
	}
	status := api.SourceStatus{
		Name:         name,
		CircuitState: orch.CircuitState().String(),
		Failures:     orch.CircuitFailures(),
		Counters:     orch.Metrics().Snapshot(),
	}
	if captured := orch.LastCapturedAt(ctx); !captured.IsZero() {
		status.LastCapturedAt = &captured
	}
	return status, true
}

// Close releases every held backend connection, last-created first.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func (a *App) buildPublisher(ctx context.Context) (feed.Publisher, error) {
	if !a.cfg.PubSub.Enabled {
		return nil, nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("init pubsub: %w", err)
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	a.logger.Info("pubsub notifications enabled", zap.String("topic", a.cfg.PubSub.TopicName))
	return pubsubpub.New(client), nil
}

// storeFactory builds the snapshot store for one named source.
type storeFactory func(name string, keyFields []string) (feed.SnapshotStore, error)

func (a *App) buildStoreFactory(ctx context.Context) (storeFactory, error) {
	switch a.cfg.Storage.Backend {
	case "local":
		blobs, err := bloblocal.New(bloblocal.Config{BaseDir: a.cfg.Storage.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("init local storage: %w", err)
		}
		return a.blobFactory(blobs), nil
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		blobs, err := blobgcs.New(client, blobgcs.Config{Bucket: a.cfg.Storage.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("init gcs storage: %w", err)
		}
		return a.blobFactory(blobs), nil
	case "postgres":
		pool, err := pgxpool.New(ctx, a.cfg.Storage.DSN)
		if err != nil {
			return nil, fmt.Errorf("init postgres pool: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		table := a.cfg.Storage.Table
		return func(name string, keyFields []string) (feed.SnapshotStore, error) {
			return snapshotpg.NewStoreWithPool(pool, table, name, keyFields, a.clock)
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", a.cfg.Storage.Backend)
	}
}

func (a *App) blobFactory(blobs blob.Store) storeFactory {
	return func(name string, keyFields []string) (feed.SnapshotStore, error) {
		return snapshot.NewStore(blobs, name, keyFields, a.clock), nil
	}
}

func (a *App) buildSource(name string, src config.SourceConfig, publisher feed.Publisher, storeFor storeFactory) (*orchestrator.Orchestrator, error) {
	fc := src.Feed(name)
	metrics := orchestrator.NewMetrics()

	tr := transport.New(transport.Config{
		MaxRetries:  src.MaxRetries,
		Timeout:     fc.Timeout,
		RetryUnsafe: src.RetryUnsafe,
		OnRetry:     metrics.IncRetries,
	}, a.logger)

	client, err := a.buildClient(src, tr)
	if err != nil {
		return nil, err
	}

	store, err := storeFor(name, src.KeyFields)
	if err != nil {
		return nil, err
	}

	threshold := src.FailureThresh
	if threshold <= 0 {
		threshold = defaultFailureThreshold
	}
	reset := time.Duration(src.ResetSeconds) * time.Second
	if reset <= 0 {
		reset = defaultResetTimeout
	}

	return orchestrator.New(fc, orchestrator.Deps{
		Client:    client,
		Store:     store,
		Gate:      robots.New(src.RespectPolicy, a.cfg.UserAgent, a.logger),
		Pacer:     pace.New(name, fc.MinDelay),
		Circuit:   breaker.New(name, threshold, reset, a.clock),
		Publisher: publisher,
		Topic:     a.cfg.PubSub.TopicName,
		Metrics:   metrics,
		Clock:     a.clock,
		Logger:    a.logger,
	}), nil
}

func (a *App) buildClient(src config.SourceConfig, tr *transport.Transport) (feed.SourceClient, error) {
	switch src.Kind {
	case "json":
		header := http.Header{}
		header.Set("User-Agent", a.cfg.UserAgent)
		return httpjson.New(httpjson.Config{
			BaseURL: src.OriginURL,
			Shape:   feed.Shape(src.Shape),
			Header:  header,
		}, tr)
	case "html":
		return htmltable.New(htmltable.Config{
			BaseURL:     src.OriginURL,
			UserAgent:   a.cfg.UserAgent,
			Timeout:     time.Duration(src.TimeoutSeconds) * time.Second,
			RowSelector: src.RowSelector,
			Columns:     src.Columns,
		}, tr)
	default:
		return nil, fmt.Errorf("unknown source kind %q", src.Kind)
	}
}

// registerAdapters installs the scraped strategy. Construction is lazy so
// a partially configured capability set only fails when actually used.
func (a *App) registerAdapters(byCapability map[string]*orchestrator.Orchestrator) {
	ttls := adapter.TTLs{
		Odds:       time.Duration(a.cfg.Adapter.OddsTTLSeconds) * time.Second,
		TeamStats:  time.Duration(a.cfg.Adapter.StatsTTLSeconds) * time.Second,
		Historical: time.Duration(a.cfg.Adapter.HistoricalTTLSeconds) * time.Second,
		Live:       time.Duration(a.cfg.Adapter.LiveTTLSeconds) * time.Second,
	}
	a.registry.Register("scraped", func() (adapter.Adapter, error) {
		return adapter.NewScraped(adapter.ScrapedSources{
			Odds:       fetcherOrNil(byCapability["odds"]),
			TeamStats:  fetcherOrNil(byCapability["stats"]),
			Historical: fetcherOrNil(byCapability["historical"]),
			Live:       fetcherOrNil(byCapability["live"]),
		}, ttls, a.clock, a.logger)
	})
}

// fetcherOrNil avoids storing a typed-nil orchestrator behind the
// adapter's fetcher interface.
func fetcherOrNil(orch *orchestrator.Orchestrator) adapter.SourceFetcher {
	if orch == nil {
		return nil
	}
	return orch
}
