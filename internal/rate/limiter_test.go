package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, "test"), mr
}

func TestHitEnforcesLimit(t *testing.T) {
	l, _ := newTestLimiter(t)
	rule := Rule{Name: "auth", Limit: 3, Window: time.Minute}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := l.Hit(ctx, rule, "1.2.3.4")
		if err != nil {
			t.Fatalf("hit %d: %v", i, err)
		}
		if d.Remaining != 2-i {
			t.Fatalf("hit %d: remaining=%d", i, d.Remaining)
		}
	}

	d, err := l.Hit(ctx, rule, "1.2.3.4")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if d.Allowed || d.Remaining != 0 {
		t.Fatalf("unexpected decision %+v", d)
	}

	if _, err := l.Hit(ctx, rule, "5.6.7.8"); err != nil {
		t.Fatalf("other key should have its own window: %v", err)
	}
}

func TestWindowExpires(t *testing.T) {
	l, mr := newTestLimiter(t)
	rule := Rule{Name: "api", Limit: 1, Window: time.Minute}
	ctx := context.Background()

	if _, err := l.Hit(ctx, rule, "k"); err != nil {
		t.Fatalf("first hit: %v", err)
	}
	if _, err := l.Hit(ctx, rule, "k"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected limit, got %v", err)
	}

	mr.FastForward(61 * time.Second)
	if _, err := l.Hit(ctx, rule, "k"); err != nil {
		t.Fatalf("expected fresh window, got %v", err)
	}
}

func TestForgiveReturnsBudget(t *testing.T) {
	l, mr := newTestLimiter(t)
	rule := Rule{Name: "auth", Limit: 1, Window: time.Minute}
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := l.Hit(ctx, rule, "k"); err != nil {
			t.Fatalf("hit %d: %v", i, err)
		}
		if err := l.Forgive(ctx, rule, "k"); err != nil {
			t.Fatalf("forgive %d: %v", i, err)
		}
	}
	if mr.Exists("test:auth:k") {
		t.Fatal("expected counter to be removed when it reaches zero")
	}
}

func TestZeroRuleAlwaysAllows(t *testing.T) {
	l, _ := newTestLimiter(t)
	d, err := l.Hit(context.Background(), Rule{Name: "off"}, "k")
	if err != nil || !d.Allowed {
		t.Fatalf("expected allow, got %+v %v", d, err)
	}
}
