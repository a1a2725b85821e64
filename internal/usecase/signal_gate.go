package usecase

import (
	"context"
	"math"

	"OptArb/internal/domain/models"
	"OptArb/pkg/logger"
)

// GateConfig holds the gate's static thresholds.
type GateConfig struct {
	MinDelta    float64
	NeutralBand float64
}

// SignalGate downgrades raw signals that would breach inventory or group-hedge limits.
type SignalGate struct {
	cfg   GateConfig
	state *LiveState
	log   *logger.Logger
}

func NewSignalGate(cfg GateConfig, state *LiveState, log *logger.Logger) *SignalGate {
	return &SignalGate{cfg: cfg, state: state, log: log}
}

// Gate reasons.
const (
	ReasonPassThrough   = ""
	ReasonNoData        = "insufficient_data"
	ReasonSameDirection = "same_direction_disallowed"
	ReasonMinDelta      = "delta_below_minimum"
	ReasonHedgeSkew     = "group_hedge_skew"
	ReasonExpired       = "expired"
)

// Decide evaluates one raw signal against a snapshot of live state.
func Decide(cfg GateConfig, raw models.RawSignal, st models.LiveState) models.GatedSignal {
	out := models.GatedSignal{Time: raw.Time, Raw: raw.Signal, Signal: models.SignalHold}

	if st.Expired {
		out.Reason = ReasonExpired
		return out
	}
	side, ok := models.SideOf(raw.Signal)
	if !ok {
		if raw.Signal == models.SignalInsufficientData {
			out.Reason = ReasonNoData
		}
		return out
	}

	adds := (side == models.SideBuy && st.NetExposure >= 0) ||
		(side == models.SideSell && st.NetExposure <= 0)
	if adds && !st.SameDirectionAllowed {
		out.Reason = ReasonSameDirection
		return out
	}
	if adds && math.Abs(raw.Delta) < cfg.MinDelta {
		out.Reason = ReasonMinDelta
		return out
	}

	bias := st.HedgeBias
	if math.Abs(bias) <= cfg.NeutralBand {
		bias = 0
	}
	if bias != 0 {
		exposure := side.Sign() * raw.Delta
		if exposure != 0 && math.Signbit(exposure) == math.Signbit(bias) {
			out.Reason = ReasonHedgeSkew
			return out
		}
	}

	out.Signal = raw.Signal
	return out
}

// Run gates every raw signal until in is closed or ctx is done.
func (g *SignalGate) Run(ctx context.Context, in <-chan models.RawSignal, out chan<- models.GatedSignal) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-in:
			if !ok {
				return nil
			}
			gated := Decide(g.cfg, raw, g.state.Load())
			if gated.Signal != gated.Raw && gated.Reason != ReasonNoData {
				g.log.Debug("signal downgraded",
					logger.String("raw", string(gated.Raw)),
					logger.String("reason", gated.Reason))
			}
			select {
			case out <- gated:
			case <-ctx.Done():
				return nil
			}
		}
	}
}
