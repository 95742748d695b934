package cache

import (
	"context"
	"testing"
	"time"

	"github.com/referral-ledger/internal/config"
)

func TestDisabledCacheIsNoop(t *testing.T) {
	if err := InitRedis(&config.RedisConfig{Enabled: false}); err != nil {
		t.Fatalf("init disabled redis failed: %v", err)
	}
	if Enabled() || Client() != nil {
		t.Fatalf("expected cache disabled")
	}
	ctx := context.Background()
	if err := SetJSON(ctx, "referral:setting", map[string]int{"a": 1}, time.Minute); err != nil {
		t.Fatalf("disabled set should be noop: %v", err)
	}
	var dest map[string]int
	hit, err := GetJSON(ctx, "referral:setting", &dest)
	if err != nil || hit {
		t.Fatalf("disabled get want miss got hit=%v err=%v", hit, err)
	}
	if err := Del(ctx, "referral:setting"); err != nil {
		t.Fatalf("disabled del should be noop: %v", err)
	}
}

func TestBuildKey(t *testing.T) {
	if got := BuildKey(" referral:setting "); got != Prefix()+":referral:setting" {
		t.Fatalf("unexpected key: %s", got)
	}
	if got := BuildKey(""); got != Prefix() {
		t.Fatalf("empty key want prefix got %s", got)
	}
}

func TestNilVelocityCounter(t *testing.T) {
	counter := NewVelocityCounter(nil, "rl")
	if counter != nil {
		t.Fatalf("expected nil counter without client")
	}
	now := time.Now()
	if n, err := counter.Record(context.Background(), "ip:203.0.113.7", time.Hour, now); err != nil || n != 0 {
		t.Fatalf("nil record want 0 got %d err=%v", n, err)
	}
	if n, err := counter.Count(context.Background(), "ip:203.0.113.7", time.Hour, now); err != nil || n != 0 {
		t.Fatalf("nil count want 0 got %d err=%v", n, err)
	}
}
