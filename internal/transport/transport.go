// Package transport executes one logical outbound call with bounded
// retries and exponential backoff on transient failure classes.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/matchpulse/feedgate/internal/feed"
)

// Request describes one logical outbound exchange.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is the raw result of a completed exchange.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Config controls retry behavior for one source's transport.
type Config struct {
	// MaxRetries bounds the retries after the first attempt.
	MaxRetries int
	// Timeout applies per attempt, independent of the caller's deadline.
	Timeout time.Duration
	// BaseBackoff is the first retry delay; subsequent delays double.
	BaseBackoff time.Duration
	// RetryUnsafe allow-lists retries for non-idempotent methods.
	RetryUnsafe bool
	// Identities overrides the rotating client-identity pool.
	Identities []string
	// OnRetry is invoked once per retry, for metrics bookkeeping.
	OnRetry func()
}

// AttemptFunc performs a single attempt of a logical call. Transports that
// do not speak plain HTTP (e.g. a colly collector) supply their own.
type AttemptFunc func(ctx context.Context) (Response, error)

// Transport retries an attempt function on the transient allow-list only:
// timeouts, rate limiting, and the server-error class. Exhausting retries
// returns the last failure to the caller; circuit-breaker bookkeeping is
// the orchestrator's job, not this component's.
type Transport struct {
	client   *http.Client
	cfg      Config
	rotator  *identityRotator
	logger   *zap.Logger
	maxBytes int64
}

// New constructs a Transport.
func New(cfg Config, logger *zap.Logger) *Transport {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        16,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		cfg:      cfg,
		rotator:  newIdentityRotator(cfg.Identities),
		logger:   logger,
		maxBytes: 8 << 20,
	}
}

// Execute performs req with retries. Non-idempotent methods are attempted
// once unless the source allow-lists them via RetryUnsafe.
func (t *Transport) Execute(ctx context.Context, req Request) (Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	retryable := isIdempotent(req.Method) || t.cfg.RetryUnsafe
	return t.Do(ctx, retryable, func(attemptCtx context.Context) (Response, error) {
		return t.attempt(attemptCtx, req)
	})
}

// Do runs attempt with the configured retry schedule. retryable gates
// whether transient failures may be retried at all.
func (t *Transport) Do(ctx context.Context, retryable bool, attempt AttemptFunc) (Response, error) {
	schedule := backoff.NewExponentialBackOff()
	schedule.InitialInterval = t.cfg.BaseBackoff
	schedule.Multiplier = 2
	schedule.RandomizationFactor = 0

	var lastErr error
	for try := 0; ; try++ {
		attemptCtx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
		resp, err := attempt(attemptCtx)
		cancel()
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !retryable || try >= t.cfg.MaxRetries || !feed.IsTransient(err) {
			break
		}
		if ctx.Err() != nil {
			break
		}

		delay := schedule.NextBackOff()
		t.logger.Debug("retrying transient failure",
			zap.Int("attempt", try+1),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if t.cfg.OnRetry != nil {
			t.cfg.OnRetry()
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Response{}, fmt.Errorf("execute: %w", ctx.Err())
		case <-timer.C:
		}
	}
	return Response{}, lastErr
}

func (t *Transport) attempt(ctx context.Context, req Request) (Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return Response{}, fmt.Errorf("new request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", t.rotator.Next())
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return Response{}, ClassifyNetError(err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			t.logger.Debug("close response body", zap.Error(cerr))
		}
	}()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBytes))
	if err != nil {
		return Response{}, ClassifyNetError(err)
	}

	if err := ClassifyStatus(resp.StatusCode); err != nil {
		return Response{}, err
	}
	return Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       payload,
	}, nil
}

func isIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// ClassifyNetError maps a network-level failure onto the transient
// taxonomy so the retry allow-list can act on it.
func ClassifyNetError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &feed.TransientError{Kind: feed.TransientTimeout, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("attempt canceled: %w", err)
	}
	// Connection-level trouble (refused, reset) is treated as the
	// server-error class: the origin may recover shortly.
	return &feed.TransientError{Kind: feed.TransientServerError, Err: err}
}

// ClassifyStatus maps an HTTP status onto the transient taxonomy;
// 2xx returns nil and anything outside the allow-list is permanent.
func ClassifyStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests:
		return &feed.TransientError{
			Kind:   feed.TransientRateLimited,
			Status: status,
			Err:    fmt.Errorf("status %d", status),
		}
	case status >= 500:
		return &feed.TransientError{
			Kind:   feed.TransientServerError,
			Status: status,
			Err:    fmt.Errorf("status %d", status),
		}
	default:
		return fmt.Errorf("unexpected status %d", status)
	}
}
