package usecase

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"OptArb/internal/domain/models"
	drepo "OptArb/internal/domain/repository"
	"OptArb/pkg/logger"
)

type countingTap struct{ n atomic.Int64 }

func (c *countingTap) Broadcast(r *models.Result) { c.n.Add(1) }

func newTestPipeline(t *testing.T, expiration time.Time, history drepo.HistoryLoader, tap ResultTap) *Pipeline {
	t.Helper()
	quotes := &fakeQuotes{}
	quotes.set("UNDERLYING", book(1000, 1002))
	quotes.set(opt, book(99, 101))

	cfg := PipelineConfig{
		Underlying: "UNDERLYING",
		Analyzer: AnalyzerConfig{
			Instrument:      opt,
			Expiration:      expiration,
			Location:        time.Local,
			SessionStart:    0,
			SessionEnd:      24 * time.Hour,
			SmoothingWindow: 5,
			ZWindow:         5,
			ZThreshold:      1.5,
		},
		Gate:             GateConfig{MinDelta: 0.1},
		Dispatcher:       DispatcherConfig{Instrument: opt, Notional: 1000, MaxRetries: 1},
		Eligibility:      EligibilityConfig{Instrument: opt, Expiration: expiration, Interval: time.Millisecond},
		FetchInterval:    5 * time.Millisecond,
		BufferCapacity:   10,
		PositionInterval: 5 * time.Millisecond,
		SyncInterval:     5 * time.Millisecond,
		StaleAfter:       time.Second,
	}
	if history != nil {
		cfg.History = &drepo.HistoryQuery{Underlying: "UNDERLYING", Option: opt}
	}
	processor := NewResultProcessor(nil, nil, nil, logger.Nop(), tap, "log", 4, 10*time.Millisecond)
	return NewPipeline(cfg, PipelineDeps{
		Quotes:    quotes,
		History:   history,
		Orders:    &fakeOrders{},
		Account:   &fakeAccount{},
		Risk:      newMemRiskStore(),
		Pricer:    fakePricer{iv: 0.3, price: 100, delta: 0.5},
		Processor: processor,
	}, logger.Nop())
}

func TestPipelineRunsUntilCancelled(t *testing.T) {
	tap := &countingTap{}
	p := newTestPipeline(t, time.Now().AddDate(0, 1, 0), nil, tap)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return tap.n.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop")
	}
	assert.True(t, p.Ready())
	st := p.State()
	require.NotNil(t, st.Delta)
	assert.Equal(t, 0.5, *st.Delta)
	assert.True(t, st.SameDirectionAllowed)
}

func TestPipelineStopsItselfOnExpiry(t *testing.T) {
	p := newTestPipeline(t, time.Now(), nil, nil)

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop on expiry")
	}
	assert.True(t, p.State().Expired)
}

func TestPipelineAbortsOnUnusableHistory(t *testing.T) {
	p := newTestPipeline(t, time.Now().AddDate(0, 1, 0), &fakeHistory{}, nil)

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrHistoryUnusable)
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not abort")
	}
	assert.Equal(t, int64(0), p.Counters().BuySignals)
}
