package quant

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrSolverFailed is returned when no volatility reproduces the premium.
	ErrSolverFailed = errors.New("implied volatility: no root")
	// ErrOutOfBounds is returned when the premium violates no-arbitrage bounds.
	ErrOutOfBounds = errors.New("implied volatility: premium outside arbitrage bounds")
)

const (
	minVol     = 1e-6
	maxVol     = 10.0
	relTol     = 1e-9
	stepTol    = 1e-10
	maxIter    = 200
	initialVol = 0.5
)

// ImpliedVolatility inverts Price for sigma with a bracketed Newton iteration that falls back
// to bisection whenever the Newton step leaves the bracket.
func ImpliedVolatility(in Inputs, premium float64) (float64, error) {
	if !in.valid() || !(premium > 0) || math.IsInf(premium, 0) {
		return 0, fmt.Errorf("%w: invalid inputs", ErrSolverFailed)
	}
	lo, hi := Bounds(in)
	if premium <= lo || premium >= hi {
		return 0, ErrOutOfBounds
	}

	f := func(sigma float64) float64 {
		p, _ := Price(in, sigma)
		return p - premium
	}

	a, b := minVol, maxVol
	fa, fb := f(a), f(b)
	if fa > 0 || fb < 0 {
		return 0, ErrSolverFailed
	}

	tol := relTol * math.Max(1, premium)
	sigma := initialVol
	for i := 0; i < maxIter; i++ {
		fs := f(sigma)
		if math.Abs(fs) < tol {
			return sigma, nil
		}
		// price is increasing in sigma
		if fs > 0 {
			b = sigma
		} else {
			a = sigma
		}
		next := math.NaN()
		if vega, ok := Vega(in, sigma); ok && vega > 1e-12 {
			next = sigma - fs/vega
		}
		if math.IsNaN(next) || next <= a || next >= b {
			next = 0.5 * (a + b)
		}
		if math.Abs(next-sigma) < stepTol {
			return next, nil
		}
		sigma = next
	}
	if b-a < 1e-6 {
		return 0.5 * (a + b), nil
	}
	return 0, ErrSolverFailed
}
