package service

// OptionPricer is the model the analytics stage prices against.
// tte is in years. Solver failures surface as errors, out-of-domain inputs as ok=false.
type OptionPricer interface {
	ImpliedVol(spot, premium, tte float64) (float64, error)
	Price(spot, sigma, tte float64) (float64, bool)
	Delta(spot, sigma, tte float64) (float64, bool)
}
