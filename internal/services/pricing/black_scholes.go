package pricing

import (
	"OptArb/internal/domain/service"
	"OptArb/pkg/quant"
)

// BlackScholes prices one configured contract (right, strike, rate).
type BlackScholes struct {
	kind   quant.Kind
	strike float64
	rate   float64
}

// NewBlackScholes creates a pricer for a single contract.
func NewBlackScholes(kind quant.Kind, strike, rate float64) *BlackScholes {
	return &BlackScholes{kind: kind, strike: strike, rate: rate}
}

func (b *BlackScholes) inputs(spot, tte float64) quant.Inputs {
	return quant.Inputs{Kind: b.kind, Spot: spot, Strike: b.strike, T: tte, Rate: b.rate}
}

func (b *BlackScholes) ImpliedVol(spot, premium, tte float64) (float64, error) {
	return quant.ImpliedVolatility(b.inputs(spot, tte), premium)
}

func (b *BlackScholes) Price(spot, sigma, tte float64) (float64, bool) {
	return quant.Price(b.inputs(spot, tte), sigma)
}

func (b *BlackScholes) Delta(spot, sigma, tte float64) (float64, bool) {
	return quant.Delta(b.inputs(spot, tte), sigma)
}

var _ service.OptionPricer = (*BlackScholes)(nil)
