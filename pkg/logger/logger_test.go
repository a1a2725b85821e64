package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	batches [][]AggregatedLogEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func (p *capturePublisher) all() []AggregatedLogEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []AggregatedLogEntry
	for _, b := range p.batches {
		out = append(out, b...)
	}
	return out
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud", Output: "stdout"})
	require.Error(t, err)
}

func TestCollectorFoldsRepeatedLines(t *testing.T) {
	pub := &capturePublisher{}
	root := Nop()
	child := root.Component("pipeline")

	// attached after the child exists
	root.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Topic: "optarb.logs", Publisher: pub})

	for i := 0; i < 3; i++ {
		child.Warn("stale quote", String("instrument", "IRO9AHRM1671"))
	}
	child.Error("fetch failed", Error(errors.New("timeout")))
	child.Info("not collected")

	root.RemoveCollector()

	entries := pub.all()
	require.Len(t, entries, 2)
	assert.Equal(t, "optarb.logs", pub.topic)
	assert.Equal(t, "stale quote", entries[0].Message)
	assert.Equal(t, 3, entries[0].Count)
	assert.Equal(t, "pipeline", entries[0].Component)
	assert.Equal(t, "warn", entries[0].Level)
	assert.Equal(t, "IRO9AHRM1671", entries[0].Fields["instrument"])
	assert.Equal(t, "timeout", entries[1].Fields["error"])
	assert.Equal(t, 1, entries[1].Count)
}

func TestCollectorFlushesOnThreshold(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 2, Publisher: pub})
	defer c.Close()

	c.Add("warn", "risk", "a", nil, "x.go:1")
	c.Add("warn", "risk", "b", nil, "x.go:2")

	require.Eventually(t, func() bool { return len(pub.all()) == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, c.Pending())
}

func TestRemoveCollectorWithoutOneIsNoop(t *testing.T) {
	l := Nop()
	l.RemoveCollector()
	l.Warn("nothing attached")
}
