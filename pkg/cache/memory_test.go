package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type payload struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	if err := mc.Set(ctx, "a", payload{ID: "x", Score: 0.5}, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	var got payload
	if err := mc.Get(ctx, "a", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != "x" || got.Score != 0.5 {
		t.Fatalf("unexpected value %+v", got)
	}

	if err := mc.Set(ctx, "s", "plain", 0); err != nil {
		t.Fatalf("set string: %v", err)
	}
	var s string
	if err := mc.Get(ctx, "s", &s); err != nil || s != "plain" {
		t.Fatalf("get string = %q, %v", s, err)
	}
}

func TestMemoryCacheMissAndExpiry(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	var v payload
	if err := mc.Get(ctx, "missing", &v); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss, got %v", err)
	}

	_ = mc.Set(ctx, "short", payload{ID: "y"}, time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	if err := mc.Get(ctx, "short", &v); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected expired miss, got %v", err)
	}
	if ok, _ := mc.Exists(ctx, "short"); ok {
		t.Fatalf("expired key reported as existing")
	}
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()

	_ = mc.Set(ctx, "a", 1, 0)
	time.Sleep(time.Millisecond)
	_ = mc.Set(ctx, "b", 2, 0)
	time.Sleep(time.Millisecond)
	var n int
	_ = mc.Get(ctx, "a", &n)
	time.Sleep(time.Millisecond)
	_ = mc.Set(ctx, "c", 3, 0)

	if mc.Len() != 2 {
		t.Fatalf("len = %d, want 2", mc.Len())
	}
	if ok, _ := mc.Exists(ctx, "b"); ok {
		t.Fatalf("b should have been evicted")
	}
	if ok, _ := mc.Exists(ctx, "a", "c"); !ok {
		t.Fatalf("a or c missing")
	}
}

func TestLayeredCachePromotesFromRemote(t *testing.T) {
	ctx := context.Background()
	remote := NewMemoryCache()
	lc := NewLayeredCache(remote, 10, time.Minute)
	defer lc.Close()

	_ = remote.Set(ctx, "k", payload{ID: "remote"}, 0)
	var got payload
	if err := lc.Get(ctx, "k", &got); err != nil || got.ID != "remote" {
		t.Fatalf("get = %+v, %v", got, err)
	}

	_ = remote.Delete(ctx, "k")
	got = payload{}
	if err := lc.Get(ctx, "k", &got); err != nil || got.ID != "remote" {
		t.Fatalf("expected L1 hit, got %+v, %v", got, err)
	}

	if err := lc.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := lc.Get(ctx, "k", &got); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after delete, got %v", err)
	}
}

func TestGenerateKey(t *testing.T) {
	if got := GenerateKey("runs", "abc", "trials"); got != "runs:abc:trials" {
		t.Fatalf("GenerateKey = %q", got)
	}
	if got := GenerateKey("latest"); got != "latest" {
		t.Fatalf("GenerateKey = %q", got)
	}
}
