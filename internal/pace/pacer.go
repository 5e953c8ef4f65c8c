// Package pace implements the per-source spacing gate between outbound calls.
package pace

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/matchpulse/feedgate/internal/telemetry"
)

// Pacer enforces a minimum wall-clock spacing plus random jitter between
// consecutive calls on one instance. Each source owns its own Pacer;
// instances never share state.
type Pacer struct {
	source   string
	minDelay time.Duration

	mu         sync.Mutex
	lastReturn time.Time
}

// New creates a Pacer that separates consecutive Wait returns by at least
// minDelay, plus jitter drawn from [0, minDelay/2) per turn.
func New(source string, minDelay time.Duration) *Pacer {
	if minDelay <= 0 {
		minDelay = time.Second
	}
	return &Pacer{
		source:   source,
		minDelay: minDelay,
	}
}

// Wait blocks the caller until its turn arrives, respecting the context.
// The first call on a fresh instance proceeds immediately. Each turn is
// scheduled from the time the previous Wait returned, so the jitter widens
// a gap without ever eroding the minDelay floor.
func (p *Pacer) Wait(ctx context.Context) error {
	start := time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.lastReturn.IsZero() {
		wake := p.lastReturn.Add(p.minDelay + randomJitter(p.minDelay/2))
		if err := sleep(ctx, time.Until(wake)); err != nil {
			return err
		}
	}
	p.lastReturn = time.Now()

	if waited := time.Since(start); waited > time.Millisecond {
		telemetry.ObserveRateLimitDelay(p.source, waited)
	}
	return nil
}

// MinDelay returns the configured spacing floor.
func (p *Pacer) MinDelay() time.Duration {
	return p.minDelay
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("pace wait: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
