package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"OptArb/internal/domain/models"
	"OptArb/pkg/logger"
)

func TestGateLongPositionBlocksBuyWhenSameDirectionDisallowed(t *testing.T) {
	got := Decide(GateConfig{MinDelta: 0.1},
		models.RawSignal{Signal: models.SignalBuy, Delta: 0.6},
		models.LiveState{NetExposure: 5})
	assert.Equal(t, models.SignalHold, got.Signal)
	assert.Equal(t, ReasonSameDirection, got.Reason)
}

func TestGateDecisions(t *testing.T) {
	cfg := GateConfig{MinDelta: 0.1, NeutralBand: 0.05}
	tests := []struct {
		name   string
		raw    models.RawSignal
		state  models.LiveState
		want   models.Signal
		reason string
	}{
		{"hold passes", models.RawSignal{Signal: models.SignalHold}, models.LiveState{}, models.SignalHold, ""},
		{"insufficient data holds", models.RawSignal{Signal: models.SignalInsufficientData}, models.LiveState{}, models.SignalHold, ReasonNoData},
		{"flat buy disallowed", models.RawSignal{Signal: models.SignalBuy, Delta: 0.5}, models.LiveState{}, models.SignalHold, ReasonSameDirection},
		{"short sell disallowed", models.RawSignal{Signal: models.SignalSell, Delta: 0.5}, models.LiveState{NetExposure: -3}, models.SignalHold, ReasonSameDirection},
		{"long sell reduces", models.RawSignal{Signal: models.SignalSell, Delta: 0.5}, models.LiveState{NetExposure: 5}, models.SignalSell, ""},
		{"short buy reduces", models.RawSignal{Signal: models.SignalBuy, Delta: 0.5}, models.LiveState{NetExposure: -5}, models.SignalBuy, ""},
		{"allowed but delta too small", models.RawSignal{Signal: models.SignalBuy, Delta: 0.05},
			models.LiveState{NetExposure: 5, SameDirectionAllowed: true}, models.SignalHold, ReasonMinDelta},
		{"allowed with enough delta", models.RawSignal{Signal: models.SignalBuy, Delta: -0.4},
			models.LiveState{NetExposure: 5, SameDirectionAllowed: true}, models.SignalBuy, ""},
		{"reducing trade ignores min delta", models.RawSignal{Signal: models.SignalSell, Delta: 0.01},
			models.LiveState{NetExposure: 5}, models.SignalSell, ""},
		{"buy reinforces long group skew", models.RawSignal{Signal: models.SignalBuy, Delta: 0.5},
			models.LiveState{NetExposure: -5, HedgeBias: 0.3}, models.SignalHold, ReasonHedgeSkew},
		{"sell reinforces short group skew", models.RawSignal{Signal: models.SignalSell, Delta: 0.5},
			models.LiveState{NetExposure: 5, HedgeBias: -0.3}, models.SignalHold, ReasonHedgeSkew},
		{"sell offsets long group skew", models.RawSignal{Signal: models.SignalSell, Delta: 0.5},
			models.LiveState{NetExposure: 5, HedgeBias: 0.3}, models.SignalSell, ""},
		{"bias inside band ignored", models.RawSignal{Signal: models.SignalBuy, Delta: 0.5},
			models.LiveState{NetExposure: -5, HedgeBias: 0.04}, models.SignalBuy, ""},
		{"expired always holds", models.RawSignal{Signal: models.SignalSell, Delta: 0.5},
			models.LiveState{NetExposure: 5, Expired: true}, models.SignalHold, ReasonExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(cfg, tt.raw, tt.state)
			assert.Equal(t, tt.want, got.Signal)
			assert.Equal(t, tt.reason, got.Reason)
			assert.Equal(t, tt.raw.Signal, got.Raw)
		})
	}
}

func TestGateRunReadsLatestState(t *testing.T) {
	state := NewLiveState()
	g := NewSignalGate(GateConfig{MinDelta: 0.1}, state, logger.Nop())

	in := make(chan models.RawSignal, 2)
	out := make(chan models.GatedSignal, 2)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx, in, out) }()

	state.Update(func(st *models.LiveState) { st.NetExposure = 5 })
	in <- models.RawSignal{Signal: models.SignalBuy, Delta: 0.5}
	first := <-out
	assert.Equal(t, models.SignalHold, first.Signal)

	state.Update(func(st *models.LiveState) { st.NetExposure = -5 })
	in <- models.RawSignal{Signal: models.SignalBuy, Delta: 0.5}
	second := <-out
	assert.Equal(t, models.SignalBuy, second.Signal)

	close(in)
	require.NoError(t, <-done)
}
