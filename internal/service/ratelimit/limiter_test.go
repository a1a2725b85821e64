package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAllowRespectsBurstPerKey(t *testing.T) {
	l := New(0.001, 2)
	if !l.Allow("orders") || !l.Allow("orders") {
		t.Fatalf("burst of 2 must be allowed")
	}
	if l.Allow("orders") {
		t.Fatalf("third call must be limited")
	}
	if !l.Allow("quotes") {
		t.Fatalf("keys must not share a bucket")
	}
}

func TestWaitHonoursContext(t *testing.T) {
	l := New(0.001, 1)
	_ = l.Allow("k")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx, "k"); err == nil {
		t.Fatalf("expected wait to fail before a token refills")
	}
}

func TestDisabledLimiterNeverBlocks(t *testing.T) {
	l := New(0, 0)
	for i := 0; i < 100; i++ {
		if !l.Allow("k") {
			t.Fatalf("disabled limiter limited call %d", i)
		}
	}
}
