package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type point struct {
	X int `json:"x"`
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryCleanup(0))
	defer mc.Close()

	if err := mc.Set(ctx, "a", point{X: 1}, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	var p point
	if err := mc.Get(ctx, "a", &p); err != nil || p.X != 1 {
		t.Fatalf("get: %+v err=%v", p, err)
	}
	if err := mc.Get(ctx, "missing", &p); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
}

func TestMemoryCacheMSetMGetTyped(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryCleanup(0))
	defer mc.Close()

	if err := mc.MSet(ctx, map[string]interface{}{"a": point{1}, "b": point{2}}, 0); err != nil {
		t.Fatalf("mset: %v", err)
	}
	got, err := MGetTyped[point](ctx, mc, "a", "b", "c")
	if err != nil {
		t.Fatalf("mget: %v", err)
	}
	if len(got) != 2 || got["a"].X != 1 || got["b"].X != 2 {
		t.Fatalf("unexpected %+v", got)
	}
	if err := mc.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	raw, _ := mc.MGet(ctx, "a", "b")
	if _, ok := raw["a"]; ok || raw["b"] != `{"x":2}` {
		t.Fatalf("unexpected raw %+v", raw)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryCleanup(0))
	defer mc.Close()

	if err := mc.Set(ctx, "k", "v", 10*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	var s string
	if err := mc.Get(ctx, "k", &s); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected expiry, got %q err=%v", s, err)
	}
}

func TestKey(t *testing.T) {
	if Key("delta", "IRO9") != "delta:IRO9" {
		t.Fatalf("unexpected key %s", Key("delta", "IRO9"))
	}
}
