// Package orchestrator composes the per-source resilience machinery behind
// the single public fetch operation.
package orchestrator

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matchpulse/feedgate/internal/breaker"
	"github.com/matchpulse/feedgate/internal/feed"
	"github.com/matchpulse/feedgate/internal/pace"
	"github.com/matchpulse/feedgate/internal/telemetry"
)

// Options controls cache behavior for one FetchData call.
type Options struct {
	// UseCache serves straight from the durable snapshot when one exists.
	UseCache bool
	// ForceRefresh skips the cache-first path even when UseCache is set.
	ForceRefresh bool
}

// refreshEvent is published after every successful live fetch.
type refreshEvent struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
	Rows      int       `json:"rows"`
}

// Orchestrator runs the fetch state machine for one source: rate limiting,
// policy compliance, circuit breaking, retrying transport (inside the
// client), and snapshot fallback. A transport failure never propagates to
// the caller; every path ends in a fresh record, a cached one, or the
// source's empty sentinel.
type Orchestrator struct {
	cfg       feed.SourceConfig
	client    feed.SourceClient
	store     feed.SnapshotStore
	gate      feed.PolicyGate
	pacer     *pace.Pacer
	circuit   *breaker.Breaker
	publisher feed.Publisher
	topic     string
	metrics   *Metrics
	clock     feed.Clock
	logger    *zap.Logger
}

// Deps bundles the collaborators an Orchestrator composes.
type Deps struct {
	Client    feed.SourceClient
	Store     feed.SnapshotStore
	Gate      feed.PolicyGate
	Pacer     *pace.Pacer
	Circuit   *breaker.Breaker
	Publisher feed.Publisher
	Topic     string
	Metrics   *Metrics
	Clock     feed.Clock
	Logger    *zap.Logger
}

// New constructs an Orchestrator for the given source config.
func New(cfg feed.SourceConfig, deps Deps) *Orchestrator {
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:       cfg,
		client:    deps.Client,
		store:     deps.Store,
		gate:      deps.Gate,
		pacer:     deps.Pacer,
		circuit:   deps.Circuit,
		publisher: deps.Publisher,
		topic:     deps.Topic,
		metrics:   deps.Metrics,
		clock:     deps.Clock,
		logger:    deps.Logger.With(zap.String("source", cfg.Name)),
	}
}

// FetchData is the public fetch contract. The returned error is non-nil
// only when no live fetch succeeded and no snapshot exists at all, in
// which case the record is the source's empty sentinel and the error is
// feed.ErrNoData.
func (o *Orchestrator) FetchData(ctx context.Context, args feed.FetchArgs, opts Options) (feed.Result, error) {
	if opts.UseCache && !opts.ForceRefresh {
		if snap, err := o.store.Load(ctx); err == nil {
			o.metrics.cacheHits.Add(1)
			telemetry.ObserveCacheHit(o.cfg.Name, "snapshot")
			return feed.Result{
				Record:     snap.Record,
				Provenance: feed.ProvenanceCache,
				FetchedAt:  snap.CapturedAt,
			}, nil
		}
	}

	if !o.circuit.CanAttempt() {
		o.logger.Debug("circuit open; serving fallback", zap.Error(feed.ErrCircuitOpen))
		return o.fallback(ctx)
	}

	if err := o.pacer.Wait(ctx); err != nil {
		o.logger.Debug("pacing interrupted", zap.Error(err))
		return o.fallback(ctx)
	}

	if !o.gate.Allowed(ctx, o.targetURL(args)) {
		o.metrics.blockedByPolicy.Add(1)
		telemetry.ObservePolicyDenied(o.cfg.Name)
		o.logger.Warn("fetch denied by crawl policy", zap.String("url", o.targetURL(args)))
		return o.fallback(ctx)
	}

	o.metrics.requestsTotal.Add(1)
	start := o.clock.Now()
	record, err := o.attempt(ctx, args)
	if err != nil {
		o.metrics.requestsFailed.Add(1)
		telemetry.ObserveFetch(o.cfg.Name, "failure", 0)
		o.circuit.RecordFailure()
		o.logger.Warn("live fetch failed; serving fallback", zap.Error(err))
		return o.fallback(ctx)
	}

	o.metrics.requestsSuccess.Add(1)
	telemetry.ObserveFetch(o.cfg.Name, "success", o.clock.Now().Sub(start))
	o.circuit.RecordSuccess()

	if err := o.store.Save(ctx, record); err != nil {
		// The fresh record is still good; only the fallback tier is stale.
		o.logger.Error("snapshot save failed", zap.Error(err))
	}
	o.publishRefresh(ctx, record)

	return feed.Result{
		Record:     record,
		Provenance: feed.ProvenanceLive,
		FetchedAt:  o.clock.Now(),
	}, nil
}

// Metrics returns the orchestrator's counters.
func (o *Orchestrator) Metrics() *Metrics {
	return o.metrics
}

// CircuitState reports the breaker state for the status API.
func (o *Orchestrator) CircuitState() breaker.State {
	return o.circuit.State()
}

// CircuitFailures reports the breaker's consecutive failure count.
func (o *Orchestrator) CircuitFailures() int {
	return o.circuit.Failures()
}

// Config returns the immutable source config.
func (o *Orchestrator) Config() feed.SourceConfig {
	return o.cfg
}

// LastCapturedAt reports the age marker of the current snapshot, zero when
// none exists.
func (o *Orchestrator) LastCapturedAt(ctx context.Context) time.Time {
	snap, err := o.store.Load(ctx)
	if err != nil {
		return time.Time{}
	}
	return snap.CapturedAt
}

func (o *Orchestrator) attempt(ctx context.Context, args feed.FetchArgs) (feed.Record, error) {
	payload, err := o.client.FetchRaw(ctx, args)
	if err != nil {
		return feed.Record{}, err
	}
	record, err := o.client.Parse(payload)
	if err != nil {
		return feed.Record{}, &feed.ParseError{Source: o.cfg.Name, Err: err}
	}
	return record, nil
}

// fallback serves the snapshot, or the empty sentinel with feed.ErrNoData
// when nothing was ever stored.
func (o *Orchestrator) fallback(ctx context.Context) (feed.Result, error) {
	snap, err := o.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, feed.ErrNoData) {
			o.logger.Error("snapshot load failed", zap.Error(err))
		}
		return feed.Result{
			Record:     feed.EmptyRecord(o.cfg.Shape),
			Provenance: feed.ProvenanceDefault,
			FetchedAt:  o.clock.Now(),
		}, feed.ErrNoData
	}
	o.metrics.cacheHits.Add(1)
	telemetry.ObserveCacheHit(o.cfg.Name, "fallback")
	return feed.Result{
		Record:     snap.Record,
		Provenance: feed.ProvenanceCache,
		FetchedAt:  snap.CapturedAt,
	}, nil
}

func (o *Orchestrator) publishRefresh(ctx context.Context, record feed.Record) {
	if o.publisher == nil {
		return
	}
	event := refreshEvent{
		ID:        uuid.NewString(),
		Source:    o.cfg.Name,
		FetchedAt: o.clock.Now(),
		Rows:      len(record.Rows),
	}
	if _, err := o.publisher.Publish(ctx, o.topic, event); err != nil {
		o.logger.Warn("refresh event publish failed", zap.Error(err))
	}
}

func (o *Orchestrator) targetURL(args feed.FetchArgs) string {
	base := strings.TrimSuffix(o.cfg.OriginURL, "/")
	p := args.Path()
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	target := base + p
	if _, err := url.Parse(target); err != nil {
		return o.cfg.OriginURL
	}
	return target
}
