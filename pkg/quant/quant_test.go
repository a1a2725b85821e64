package quant

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func atm() Inputs {
	return Inputs{Kind: Call, Spot: 100, Strike: 100, T: 1, Rate: 0.05}
}

func TestPriceKnownValues(t *testing.T) {
	call, ok := Price(atm(), 0.2)
	require.True(t, ok)
	assert.InDelta(t, 10.4506, call, 1e-4)

	in := atm()
	in.Kind = Put
	put, ok := Price(in, 0.2)
	require.True(t, ok)
	assert.InDelta(t, 5.5735, put, 1e-4)

	// put-call parity
	assert.InDelta(t, call-put, 100-100*math.Exp(-0.05), 1e-9)
}

func TestPriceRejectsOutOfDomain(t *testing.T) {
	in := atm()
	in.T = 0
	_, ok := Price(in, 0.2)
	assert.False(t, ok)

	_, ok = Price(atm(), 0)
	assert.False(t, ok)

	_, ok = Delta(atm(), math.NaN())
	assert.False(t, ok)
}

func TestDelta(t *testing.T) {
	d, ok := Delta(atm(), 0.2)
	require.True(t, ok)
	assert.InDelta(t, 0.6368, d, 1e-4)

	in := atm()
	in.Kind = Put
	p, ok := Delta(in, 0.2)
	require.True(t, ok)
	assert.InDelta(t, d-1, p, 1e-12)
}

func TestImpliedVolatilityRoundTrip(t *testing.T) {
	for _, sigma := range []float64{0.2, 0.45, 1.3} {
		for _, kind := range []Kind{Call, Put} {
			in := Inputs{Kind: kind, Spot: 18500, Strike: 18000, T: 40.0 / 365, Rate: 0.3}
			premium, ok := Price(in, sigma)
			require.True(t, ok)
			got, err := ImpliedVolatility(in, premium)
			require.NoError(t, err, "kind=%s sigma=%v", kind, sigma)
			assert.InDelta(t, sigma, got, 1e-6)
		}
	}
}

func TestImpliedVolatilityOutOfBounds(t *testing.T) {
	in := atm()
	_, err := ImpliedVolatility(in, 150) // above spot
	assert.True(t, errors.Is(err, ErrOutOfBounds))

	_, err = ImpliedVolatility(in, 0)
	assert.True(t, errors.Is(err, ErrSolverFailed))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("c")
	require.NoError(t, err)
	assert.Equal(t, Call, k)
	k, err = ParseKind("put")
	require.NoError(t, err)
	assert.Equal(t, Put, k)
	_, err = ParseKind("x")
	assert.Error(t, err)
}

func TestWindowEvictsOldest(t *testing.T) {
	w := NewWindow(3)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		w.Push(v)
	}
	assert.True(t, w.Full())
	assert.Equal(t, []float64{3, 4, 5}, w.Values())

	m, ok := w.Mean()
	require.True(t, ok)
	assert.InDelta(t, 4, m, 1e-12)

	mean, std, ok := w.MeanStdDev()
	require.True(t, ok)
	assert.InDelta(t, 4, mean, 1e-12)
	assert.InDelta(t, 1, std, 1e-12) // sample std of 3,4,5
}

func TestWindowEmpty(t *testing.T) {
	w := NewWindow(4)
	_, ok := w.Mean()
	assert.False(t, ok)
	w.Push(1)
	_, _, ok = w.MeanStdDev()
	assert.False(t, ok)
}

func TestZScoreFlatWindow(t *testing.T) {
	assert.Equal(t, 0.0, ZScore(3, 3, 0))
	assert.InDelta(t, 2, ZScore(5, 1, 2), 1e-12)
}
