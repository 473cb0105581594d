package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type mockRedisEvaler struct {
	lastScript string
	lastKeys   []string
	lastArgs   []interface{}
	result     int64
	err        error
}

func (m *mockRedisEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	m.lastScript = script
	m.lastKeys = keys
	m.lastArgs = args
	cmd := redis.NewCmd(ctx)
	if m.err != nil {
		cmd.SetErr(m.err)
		return cmd
	}
	cmd.SetVal(m.result)
	return cmd
}

func TestMemoryDispatchLimiter(t *testing.T) {
	t.Run("denies past max within window", func(t *testing.T) {
		l := NewDispatchLimiter(time.Minute, 3)
		for i := 0; i < 3; i++ {
			if !l.Allow("a@x.com") {
				t.Fatalf("hit %d: expected allow", i+1)
			}
		}
		if l.Allow("a@x.com") {
			t.Fatalf("expected deny after max hits")
		}
	})

	t.Run("keys are independent", func(t *testing.T) {
		l := NewDispatchLimiter(time.Minute, 1)
		if !l.Allow("a@x.com") {
			t.Fatalf("expected allow for first key")
		}
		if l.Allow("a@x.com") {
			t.Fatalf("expected deny for exhausted key")
		}
		if !l.Allow("b@x.com") {
			t.Fatalf("expected allow for fresh key")
		}
	})

	t.Run("window pruning readmits the key", func(t *testing.T) {
		l := NewDispatchLimiter(50*time.Millisecond, 1)
		if !l.Allow("a@x.com") {
			t.Fatalf("expected allow")
		}
		if l.Allow("a@x.com") {
			t.Fatalf("expected deny inside the window")
		}
		time.Sleep(80 * time.Millisecond)
		if !l.Allow("a@x.com") {
			t.Fatalf("expected allow after the window lapsed")
		}
	})

	t.Run("defaults on zero max and window", func(t *testing.T) {
		l := NewDispatchLimiter(0, 0)
		if !l.Allow("a@x.com") {
			t.Fatalf("expected at least one allow with defaults")
		}
		if l.Allow("a@x.com") {
			t.Fatalf("expected deny after the defaulted single hit")
		}
	})
}

func TestRedisDispatchLimiterAllow(t *testing.T) {
	t.Run("nil receiver fail-open", func(t *testing.T) {
		var l *redisDispatchLimiter
		if !l.Allow("user@example.com") {
			t.Fatalf("expected fail-open for nil limiter")
		}
	})

	t.Run("nil client returns nil limiter", func(t *testing.T) {
		if l := NewRedisDispatchLimiter(nil, time.Minute, 3); l != nil {
			t.Fatalf("expected nil limiter for nil client")
		}
	})

	t.Run("empty key rejected", func(t *testing.T) {
		l := &redisDispatchLimiter{
			client: &mockRedisEvaler{result: 1},
			window: time.Minute,
			max:    3,
			prefix: "verify:rl:",
		}
		if l.Allow("   ") {
			t.Fatalf("expected empty key to be rejected")
		}
	})

	t.Run("allow when count within max", func(t *testing.T) {
		mock := &mockRedisEvaler{result: 2}
		l := &redisDispatchLimiter{
			client: mock,
			window: 2 * time.Minute,
			max:    3,
			prefix: "verify:rl:",
		}
		if !l.Allow(" User@Example.com ") {
			t.Fatalf("expected allow when count <= max")
		}
		if len(mock.lastKeys) != 1 || mock.lastKeys[0] != "verify:rl:user@example.com" {
			t.Fatalf("unexpected key normalization, got %+v", mock.lastKeys)
		}
		if len(mock.lastArgs) != 1 || mock.lastArgs[0] != 120 {
			t.Fatalf("expected TTL seconds=120, got %+v", mock.lastArgs)
		}
		if mock.lastScript != redisDispatchAllowScript {
			t.Fatalf("expected script to match")
		}
	})

	t.Run("deny when count exceeds max", func(t *testing.T) {
		l := &redisDispatchLimiter{
			client: &mockRedisEvaler{result: 4},
			window: time.Minute,
			max:    3,
			prefix: "verify:rl:",
		}
		if l.Allow("user@example.com") {
			t.Fatalf("expected deny when count > max")
		}
	})

	t.Run("redis error fail-open", func(t *testing.T) {
		l := &redisDispatchLimiter{
			client: &mockRedisEvaler{err: errors.New("redis down")},
			window: time.Minute,
			max:    3,
			prefix: "verify:rl:",
		}
		if !l.Allow("user@example.com") {
			t.Fatalf("expected fail-open on redis errors")
		}
	})
}
