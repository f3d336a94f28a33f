package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T) *Limiter {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewLimiter(client)
}

func TestLimiter_AllowsWithinBudget(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "wa-channel-1", 3, time.Second)
		if err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if !res.Allowed {
			t.Errorf("call %d: expected allowed, got blocked", i)
		}
	}
}

func TestLimiter_BlocksOverBudget(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := l.Allow(ctx, "wa-channel-2", 2, time.Minute); err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
	}

	res, err := l.Allow(ctx, "wa-channel-2", 2, time.Minute)
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if res.Allowed {
		t.Error("expected third call to be blocked")
	}
	if res.RetryAfter <= 0 {
		t.Error("expected a positive RetryAfter when blocked")
	}
}

func TestLimiter_IsolatesKeys(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	if _, err := l.Allow(ctx, "wa-channel-a", 1, time.Minute); err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	res, err := l.Allow(ctx, "wa-channel-b", 1, time.Minute)
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if !res.Allowed {
		t.Error("expected a distinct channel key to have its own budget")
	}
}

// TestLimiter_RefillsContinuously exercises the property a fixed-window
// counter would fail: a bucket exhausted right before a window boundary
// must not grant a second full burst right after it. Tokens must instead
// trickle back in proportion to elapsed wall-clock time, since the Lua
// script derives "now" from the Redis server's own TIME command rather
// than from any client-supplied, fast-forwardable timestamp.
func TestLimiter_RefillsContinuously(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := l.Allow(ctx, "wa-channel-refill", 2, time.Second)
		if err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("call %d: expected allowed, got blocked", i)
		}
	}

	if res, err := l.Allow(ctx, "wa-channel-refill", 2, time.Second); err == nil && res.Allowed {
		t.Fatal("expected bucket to be exhausted immediately after the burst")
	}

	time.Sleep(600 * time.Millisecond)

	res, err := l.Allow(ctx, "wa-channel-refill", 2, time.Second)
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if !res.Allowed {
		t.Error("expected at least one token to have refilled after 600ms at a 2/s rate")
	}

	res, err = l.Allow(ctx, "wa-channel-refill", 2, time.Second)
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if res.Allowed {
		t.Error("expected only a partial refill, not a full new burst, after 600ms")
	}
}
