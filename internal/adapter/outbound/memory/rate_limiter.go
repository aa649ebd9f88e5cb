// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/secretgate/secretgate/internal/domain/gatewayerr"
	"github.com/secretgate/secretgate/internal/domain/ratelimit"
)

const shardCount = 32

// shard holds the sliding-window timestamps for a subset of keys,
// guarded by its own mutex so unrelated keys never contend.
type shard struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

// SlidingWindowRateLimiter implements ratelimit.Limiter with an exact
// per-timestamp sliding window, sharded across keys to bound lock
// contention under concurrent tool calls. Thread-safe for concurrent
// access. Includes background cleanup to prevent unbounded memory
// growth from abandoned keys.
type SlidingWindowRateLimiter struct {
	shards          [shardCount]*shard
	stopChan        chan struct{}
	wg              sync.WaitGroup
	once            sync.Once
	cleanupInterval time.Duration
	maxIdle         time.Duration
}

// NewRateLimiter creates a sliding-window limiter with default cleanup
// settings: a 5 minute cleanup interval and a 1 hour idle eviction.
func NewRateLimiter() *SlidingWindowRateLimiter {
	return NewRateLimiterWithConfig(5*time.Minute, 1*time.Hour)
}

// NewRateLimiterWithConfig creates a sliding-window limiter with custom
// cleanup settings. cleanupInterval controls how often the background
// sweep runs; maxIdle is how long a key's window may sit untouched
// before it is evicted.
func NewRateLimiterWithConfig(cleanupInterval, maxIdle time.Duration) *SlidingWindowRateLimiter {
	r := &SlidingWindowRateLimiter{
		stopChan:        make(chan struct{}),
		cleanupInterval: cleanupInterval,
		maxIdle:         maxIdle,
	}
	for i := range r.shards {
		r.shards[i] = &shard{windows: make(map[string][]time.Time)}
	}
	return r
}

func (r *SlidingWindowRateLimiter) shardFor(key string) *shard {
	h := xxhash.Sum64String(key)
	return r.shards[h%shardCount]
}

// CheckLimit evaluates key's sliding window at instant now: timestamps
// at or before now-windowSeconds are pruned, then the request is
// admitted and recorded if the remaining count is under cfg.Limit,
// otherwise it is denied and ResetAt names when the oldest counted
// timestamp ages out of the window.
func (r *SlidingWindowRateLimiter) CheckLimit(key string, cfg ratelimit.Config, now time.Time) (ratelimit.Result, error) {
	if cfg.Limit <= 0 || cfg.WindowSeconds <= 0 {
		return ratelimit.Result{}, gatewayerr.New(gatewayerr.InvalidRateLimit, "rate limit and window must be positive")
	}

	window := time.Duration(cfg.WindowSeconds) * time.Second
	cutoff := now.Add(-window)

	s := r.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	timestamps := s.windows[key]
	kept := timestamps[:0:0]
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= cfg.Limit {
		resetAt := kept[0].Add(window)
		s.windows[key] = kept
		return ratelimit.Result{Allowed: false, Remaining: 0, ResetAt: resetAt}, nil
	}

	kept = append(kept, now)
	s.windows[key] = kept

	remaining := cfg.Limit - len(kept)
	resetAt := kept[0].Add(window)
	return ratelimit.Result{Allowed: true, Remaining: remaining, ResetAt: resetAt}, nil
}

// StartCleanup starts the background eviction goroutine. It stops when
// ctx is cancelled or Stop is called.
func (r *SlidingWindowRateLimiter) StartCleanup(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stopChan:
				return
			case <-ticker.C:
				r.cleanup()
			}
		}
	}()
}

// cleanup evicts keys whose most recent request is older than maxIdle.
func (r *SlidingWindowRateLimiter) cleanup() {
	now := time.Now()
	cleaned := 0
	remaining := 0

	for _, s := range r.shards {
		s.mu.Lock()
		for key, timestamps := range s.windows {
			if len(timestamps) == 0 || now.Sub(timestamps[len(timestamps)-1]) > r.maxIdle {
				delete(s.windows, key)
				cleaned++
				continue
			}
			remaining++
		}
		s.mu.Unlock()
	}

	if cleaned > 0 {
		slog.Debug("rate limiter cleanup completed",
			"cleaned_keys", cleaned,
			"remaining_keys", remaining)
	}
}

// Stop gracefully stops the cleanup goroutine and waits for it to
// exit. Safe to call multiple times.
func (r *SlidingWindowRateLimiter) Stop() {
	r.once.Do(func() {
		close(r.stopChan)
	})
	r.wg.Wait()
}

// Size returns the number of keys with a non-empty window, across all
// shards. Useful for tests.
func (r *SlidingWindowRateLimiter) Size() int {
	n := 0
	for _, s := range r.shards {
		s.mu.Lock()
		n += len(s.windows)
		s.mu.Unlock()
	}
	return n
}

// Compile-time interface verification.
var _ ratelimit.Limiter = (*SlidingWindowRateLimiter)(nil)
