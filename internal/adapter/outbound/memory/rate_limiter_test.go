package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/secretgate/secretgate/internal/domain/gatewayerr"
	"github.com/secretgate/secretgate/internal/domain/ratelimit"
)

func TestRateLimiter_AllowsUnderLimit(t *testing.T) {
	t.Parallel()
	limiter := NewRateLimiter()
	cfg := ratelimit.Config{Limit: 5, WindowSeconds: 60}
	now := time.Now()

	for i := 0; i < 5; i++ {
		result, err := limiter.CheckLimit("key", cfg, now)
		if err != nil {
			t.Fatalf("CheckLimit() error: %v", err)
		}
		if !result.Allowed {
			t.Fatalf("request %d: expected allowed", i)
		}
	}
}

func TestRateLimiter_DeniesAtLimit(t *testing.T) {
	t.Parallel()
	limiter := NewRateLimiter()
	cfg := ratelimit.Config{Limit: 3, WindowSeconds: 60}
	now := time.Now()

	for i := 0; i < 3; i++ {
		if _, err := limiter.CheckLimit("key", cfg, now); err != nil {
			t.Fatalf("CheckLimit() error: %v", err)
		}
	}

	result, err := limiter.CheckLimit("key", cfg, now)
	if err != nil {
		t.Fatalf("CheckLimit() error: %v", err)
	}
	if result.Allowed {
		t.Fatal("expected denial at limit")
	}
	if result.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0", result.Remaining)
	}
	if !result.ResetAt.After(now) {
		t.Errorf("ResetAt = %v, want after %v", result.ResetAt, now)
	}
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	t.Parallel()
	limiter := NewRateLimiter()
	cfg := ratelimit.Config{Limit: 1, WindowSeconds: 10}
	t0 := time.Now()

	if result, err := limiter.CheckLimit("key", cfg, t0); err != nil || !result.Allowed {
		t.Fatalf("first request should be allowed: result=%+v err=%v", result, err)
	}

	if result, _ := limiter.CheckLimit("key", cfg, t0.Add(5*time.Second)); result.Allowed {
		t.Fatal("second request within window should be denied")
	}

	if result, err := limiter.CheckLimit("key", cfg, t0.Add(11*time.Second)); err != nil || !result.Allowed {
		t.Fatalf("request after window slides should be allowed: result=%+v err=%v", result, err)
	}
}

func TestRateLimiter_ResetAtIsOldestPlusWindow(t *testing.T) {
	t.Parallel()
	limiter := NewRateLimiter()
	cfg := ratelimit.Config{Limit: 2, WindowSeconds: 30}
	t0 := time.Now()

	limiter.CheckLimit("key", cfg, t0)
	limiter.CheckLimit("key", cfg, t0.Add(5*time.Second))

	result, _ := limiter.CheckLimit("key", cfg, t0.Add(6*time.Second))
	if result.Allowed {
		t.Fatal("expected denial")
	}
	want := t0.Add(30 * time.Second)
	if !result.ResetAt.Equal(want) {
		t.Errorf("ResetAt = %v, want %v (oldest timestamp + window)", result.ResetAt, want)
	}
}

func TestRateLimiter_KeyIsolation(t *testing.T) {
	t.Parallel()
	limiter := NewRateLimiter()
	cfg := ratelimit.Config{Limit: 1, WindowSeconds: 60}
	now := time.Now()

	if result, _ := limiter.CheckLimit("a", cfg, now); !result.Allowed {
		t.Fatal("key a should be allowed")
	}
	if result, _ := limiter.CheckLimit("b", cfg, now); !result.Allowed {
		t.Fatal("key b should be allowed independently of key a")
	}
	if result, _ := limiter.CheckLimit("a", cfg, now); result.Allowed {
		t.Fatal("key a should now be denied")
	}
}

func TestRateLimiter_InvalidConfig(t *testing.T) {
	t.Parallel()
	limiter := NewRateLimiter()
	now := time.Now()

	for _, cfg := range []ratelimit.Config{
		{Limit: 0, WindowSeconds: 60},
		{Limit: 5, WindowSeconds: 0},
		{Limit: -1, WindowSeconds: 60},
	} {
		_, err := limiter.CheckLimit("key", cfg, now)
		if err == nil {
			t.Fatalf("cfg %+v: expected error", cfg)
		}
		gwErr, ok := err.(*gatewayerr.Error)
		if !ok || gwErr.Code != gatewayerr.InvalidRateLimit {
			t.Fatalf("cfg %+v: err = %v, want invalid_rate_limit", cfg, err)
		}
	}
}

func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	t.Parallel()
	limiter := NewRateLimiter()
	cfg := ratelimit.Config{Limit: 1000, WindowSeconds: 60}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				limiter.CheckLimit("shared-key", cfg, time.Now())
			}
		}()
	}
	wg.Wait()

	if limiter.Size() != 1 {
		t.Errorf("Size() = %d, want 1", limiter.Size())
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiterWithConfig(100*time.Millisecond, 200*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	limiter.StartCleanup(ctx)
	defer limiter.Stop()

	cfg := ratelimit.Config{Limit: 5, WindowSeconds: 60}
	keys := []string{"cleanup-key-1", "cleanup-key-2", "cleanup-key-3"}
	for _, key := range keys {
		if _, err := limiter.CheckLimit(key, cfg, time.Now()); err != nil {
			t.Fatalf("CheckLimit() error for %s: %v", key, err)
		}
	}

	if got := limiter.Size(); got != len(keys) {
		t.Errorf("Size() = %d, want %d", got, len(keys))
	}

	time.Sleep(400 * time.Millisecond)

	if got := limiter.Size(); got != 0 {
		t.Errorf("Size() after cleanup = %d, want 0", got)
	}
}

func TestRateLimiterNoGoroutineLeak(t *testing.T) {
	defer goleak.VerifyNone(t)

	limiter := NewRateLimiterWithConfig(50*time.Millisecond, 100*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	limiter.StartCleanup(ctx)

	cfg := ratelimit.Config{Limit: 10, WindowSeconds: 60}
	for i := 0; i < 10; i++ {
		limiter.CheckLimit("leak-test-key", cfg, time.Now())
	}

	time.Sleep(150 * time.Millisecond)

	cancel()
	limiter.Stop()
}

func TestRateLimiterStopMultipleCalls(t *testing.T) {
	t.Parallel()
	limiter := NewRateLimiterWithConfig(time.Minute, time.Hour)
	limiter.StartCleanup(context.Background())

	limiter.Stop()
	limiter.Stop()
}
