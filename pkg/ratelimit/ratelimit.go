// Package ratelimit paces outbound scrape requests, with optional jitter and
// per-site keyed limiters.
package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Limiter controls the rate and timing of operations, incorporating optional
// jitter. It is safe for concurrent use by multiple goroutines.
type Limiter struct {
	ticker   *time.Ticker
	jitter   float64 // 0.0 to 1.0
	interval time.Duration
	ch       <-chan time.Time
}

// NewLimiter creates a new limiter with the given requests per second (rps)
// and jitter factor. Jitter must be between 0.0 and 1.0.
// If rps is <= 0, the limiter does not block.
func NewLimiter(rps float64, jitter float64) *Limiter {
	if rps <= 0 {
		return &Limiter{
			jitter: jitter,
		}
	}

	if jitter < 0 {
		jitter = 0
	} else if jitter > 1 {
		jitter = 1
	}

	interval := time.Duration(float64(time.Second) / rps)
	ticker := time.NewTicker(interval)

	return &Limiter{
		ticker:   ticker,
		jitter:   jitter,
		interval: interval,
		ch:       ticker.C,
	}
}

// Wait blocks until it is time to perform the next operation, or until the
// context is canceled. It applies jitter to the sleep time if configured.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.ch == nil {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.ch:
		if l.jitter > 0 {
			// Random jitter between +/- (jitter * interval). Negative jitter
			// means "run immediately when the ticker ticks": the ticker
			// already enforces the minimum interval.
			jitterFactor := (rand.Float64() * 2) - 1.0
			jitterDuration := time.Duration(float64(l.interval) * l.jitter * jitterFactor)

			if jitterDuration > 0 {
				select {
				case <-time.After(jitterDuration):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
	return nil
}

// Stop releases any resources associated with the limiter.
func (l *Limiter) Stop() {
	if l.ticker != nil {
		l.ticker.Stop()
	}
}

// Keyed manages one Limiter per key, so each storefront is paced
// independently of its siblings.
type Keyed struct {
	mu       sync.Mutex
	limiters map[string]*Limiter
	rps      float64
	jitter   float64
}

// NewKeyed creates a keyed limiter set where every key gets a fresh Limiter
// with the given rate settings on first use.
func NewKeyed(rps, jitter float64) *Keyed {
	return &Keyed{
		limiters: make(map[string]*Limiter),
		rps:      rps,
		jitter:   jitter,
	}
}

// Wait blocks on the limiter for key, creating it on first use.
func (k *Keyed) Wait(ctx context.Context, key string) error {
	k.mu.Lock()
	l, ok := k.limiters[key]
	if !ok {
		l = NewLimiter(k.rps, k.jitter)
		k.limiters[key] = l
	}
	k.mu.Unlock()
	return l.Wait(ctx)
}

// Stop stops all limiters in the set.
func (k *Keyed) Stop() {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, l := range k.limiters {
		l.Stop()
	}
}
