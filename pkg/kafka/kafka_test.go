package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func TestBackoffWithJitterBounds(t *testing.T) {
	min, max := 10*time.Millisecond, 80*time.Millisecond
	for attempt := 1; attempt <= 40; attempt++ {
		d := backoffWithJitter(min, max, attempt)
		if d <= 0 || d > max {
			t.Fatalf("attempt %d: backoff %s out of (0, %s]", attempt, d, max)
		}
	}
}

func TestParseCompressionDefaultsToGzip(t *testing.T) {
	if parseCompression("unknown") != kafka.Gzip {
		t.Fatalf("expected gzip fallback")
	}
	if parseCompression("zstd") != kafka.Zstd {
		t.Fatalf("expected zstd")
	}
}

func TestEncodeValue(t *testing.T) {
	b, err := encodeValue(map[string]int{"a": 1})
	if err != nil || string(b) != `{"a":1}` {
		t.Fatalf("unexpected encoding %q err=%v", b, err)
	}
	b, _ = encodeValue("raw")
	if string(b) != "raw" {
		t.Fatalf("strings must pass through, got %q", b)
	}
}

func TestConstructorsRequireBrokers(t *testing.T) {
	if _, err := NewProducer(); err == nil {
		t.Fatalf("producer without brokers must fail")
	}
	if _, err := NewConsumer(); err == nil {
		t.Fatalf("consumer without brokers must fail")
	}
}

func TestHookFuncsNilSafe(t *testing.T) {
	var h ConsumerHook = HookFuncs{}
	ctx, data, err := h.BeforeHandle(context.Background(), "t", []byte("x"))
	if ctx == nil || string(data) != "x" || err != nil {
		t.Fatalf("nil Before must pass through")
	}
	h.AfterHandle(ctx, "t", data, nil)
	h.OnError(ctx, "t", data, errors.New("boom"))
}
