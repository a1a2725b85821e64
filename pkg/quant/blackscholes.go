// Package quant holds the pricing and rolling-statistics primitives used by the analytics stage.
// Everything here is pure: no I/O, no shared state.
package quant

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Kind is the option right.
type Kind string

const (
	Call Kind = "call"
	Put  Kind = "put"
)

// ParseKind accepts "call"/"c" and "put"/"p" in any case.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "c", "C", "call", "Call", "CALL":
		return Call, nil
	case "p", "P", "put", "Put", "PUT":
		return Put, nil
	default:
		return "", fmt.Errorf("unknown option kind %q", s)
	}
}

// Inputs describes one Black-Scholes evaluation. T is in years, Rate is continuously compounded.
type Inputs struct {
	Kind   Kind
	Spot   float64
	Strike float64
	T      float64
	Rate   float64
}

func (in Inputs) valid() bool {
	return in.Spot > 0 && in.Strike > 0 && in.T > 0 &&
		!math.IsNaN(in.Spot) && !math.IsInf(in.Spot, 0) && !math.IsNaN(in.Rate)
}

func (in Inputs) d1d2(sigma float64) (float64, float64) {
	sqrtT := math.Sqrt(in.T)
	d1 := (math.Log(in.Spot/in.Strike) + (in.Rate+0.5*sigma*sigma)*in.T) / (sigma * sqrtT)
	return d1, d1 - sigma*sqrtT
}

// Price returns the Black-Scholes premium. ok is false when inputs or sigma are out of domain.
func Price(in Inputs, sigma float64) (float64, bool) {
	if !in.valid() || !(sigma > 0) || math.IsInf(sigma, 0) {
		return 0, false
	}
	d1, d2 := in.d1d2(sigma)
	disc := in.Strike * math.Exp(-in.Rate*in.T)
	n := distuv.UnitNormal
	switch in.Kind {
	case Call:
		return in.Spot*n.CDF(d1) - disc*n.CDF(d2), true
	case Put:
		return disc*n.CDF(-d2) - in.Spot*n.CDF(-d1), true
	default:
		return 0, false
	}
}

// Delta returns dPrice/dSpot.
func Delta(in Inputs, sigma float64) (float64, bool) {
	if !in.valid() || !(sigma > 0) || math.IsInf(sigma, 0) {
		return 0, false
	}
	d1, _ := in.d1d2(sigma)
	switch in.Kind {
	case Call:
		return distuv.UnitNormal.CDF(d1), true
	case Put:
		return distuv.UnitNormal.CDF(d1) - 1, true
	default:
		return 0, false
	}
}

// Vega returns dPrice/dSigma.
func Vega(in Inputs, sigma float64) (float64, bool) {
	if !in.valid() || !(sigma > 0) {
		return 0, false
	}
	d1, _ := in.d1d2(sigma)
	return in.Spot * distuv.UnitNormal.Prob(d1) * math.Sqrt(in.T), true
}

// Bounds returns the no-arbitrage premium range for the contract.
func Bounds(in Inputs) (lo, hi float64) {
	disc := in.Strike * math.Exp(-in.Rate*in.T)
	if in.Kind == Put {
		return math.Max(0, disc-in.Spot), disc
	}
	return math.Max(0, in.Spot-disc), in.Spot
}
