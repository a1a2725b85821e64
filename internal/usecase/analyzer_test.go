package usecase

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"OptArb/internal/domain/models"
)

type fakePricer struct {
	iv    float64
	ivErr error
	price float64
	delta float64
}

func (f fakePricer) ImpliedVol(spot, premium, tte float64) (float64, error) { return f.iv, f.ivErr }
func (f fakePricer) Price(spot, sigma, tte float64) (float64, bool)         { return f.price, true }
func (f fakePricer) Delta(spot, sigma, tte float64) (float64, bool)         { return f.delta, true }

var day = time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

func testAnalyzerConfig(window int) AnalyzerConfig {
	return AnalyzerConfig{
		Instrument:      "IRO9ABCD0001",
		Expiration:      day.AddDate(0, 1, 0),
		Location:        time.UTC,
		SessionStart:    9 * time.Hour,
		SessionEnd:      12*time.Hour + 30*time.Minute,
		SmoothingWindow: window,
		ZWindow:         window,
		ZThreshold:      1.5,
	}
}

func quote(mid float64) models.Quote {
	return models.Quote{SellSize: 10, SellPrice: mid, BuyPrice: mid, BuySize: 10}
}

func observation(k int, optionMid float64) models.Observation {
	return models.Observation{
		Timestamp:  day.Add(10*time.Hour + time.Duration(k)*time.Second),
		Underlying: quote(1000),
		Option:     quote(optionMid),
		Source:     models.SourceLive,
	}
}

func TestAnalyzerEndToEndSellSignal(t *testing.T) {
	counters := &models.Counters{}
	a := NewAnalyzer(testAnalyzerConfig(10), fakePricer{iv: 0.3, price: 100, delta: 0.6}, counters)

	spike := 5 * math.Sqrt(10.0/9.0)
	var results []*models.Result
	for k := 1; k <= 30; k++ {
		dev := 0.0
		switch {
		case k < 25 && k%2 == 0:
			dev = 1
		case k < 25:
			dev = -1
		case k == 25:
			dev = spike
		}
		res, raw, outcome := a.Evaluate(observation(k, 100+dev))
		require.Equal(t, OutcomeResult, outcome, "observation %d", k)
		require.Equal(t, res.Signal, raw.Signal)
		results = append(results, res)
	}

	for i := 0; i < 9; i++ {
		assert.Equal(t, models.SignalInsufficientData, results[i].Signal, "observation %d", i+1)
	}
	r25 := results[24]
	assert.Equal(t, models.SignalSell, r25.Signal)
	require.NotNil(t, r25.ZScore)
	assert.InDelta(t, 5.0, *r25.ZScore, 1e-6)
	assert.InDelta(t, 0.0, *r25.RollingMean, 1e-9)
	assert.InDelta(t, math.Sqrt(10.0/9.0), *r25.RollingStd, 1e-9)
	assert.Equal(t, int64(1), counters.SellSignals.Load())
}

func TestAnalyzerEstimateExcludesCurrentSample(t *testing.T) {
	ivs := []float64{0.2, 0.4, 0.9}
	a := NewAnalyzer(testAnalyzerConfig(10), nil, nil)

	var got []*float64
	for k, iv := range ivs {
		a.pricer = fakePricer{iv: iv, price: 100, delta: 0.5}
		res, _, outcome := a.Evaluate(observation(k, 100))
		require.Equal(t, OutcomeResult, outcome)
		got = append(got, res.EstimatedVol)
	}
	assert.Nil(t, got[0])
	assert.InDelta(t, 0.2, *got[1], 1e-12)
	assert.InDelta(t, 0.3, *got[2], 1e-12)
}

func TestAnalyzerDropsZeroQuoteFields(t *testing.T) {
	counters := &models.Counters{}
	a := NewAnalyzer(testAnalyzerConfig(10), fakePricer{iv: 0.3, price: 100}, counters)

	bad := []models.Quote{
		{SellSize: 0, SellPrice: 100, BuyPrice: 100, BuySize: 1},
		{SellSize: 1, SellPrice: 0, BuyPrice: 100, BuySize: 1},
		{SellSize: 1, SellPrice: 100, BuyPrice: 0, BuySize: 1},
		{SellSize: 1, SellPrice: 100, BuyPrice: 100, BuySize: 0},
	}
	for i, q := range bad {
		o := observation(i, 100)
		o.Option = q
		res, _, outcome := a.Evaluate(o)
		assert.Equal(t, OutcomeDropped, outcome)
		assert.Nil(t, res)

		o = observation(i, 100)
		o.Underlying = q
		_, _, outcome = a.Evaluate(o)
		assert.Equal(t, OutcomeDropped, outcome)
	}
	assert.Equal(t, int64(8), counters.NullData.Load())
}

func TestAnalyzerSkipsOutsideSession(t *testing.T) {
	counters := &models.Counters{}
	a := NewAnalyzer(testAnalyzerConfig(10), fakePricer{iv: 0.3, price: 100}, counters)

	o := observation(0, 100)
	o.Timestamp = day.Add(8 * time.Hour)
	_, _, outcome := a.Evaluate(o)
	assert.Equal(t, OutcomeDropped, outcome)

	o.Timestamp = day.Add(13 * time.Hour)
	_, _, outcome = a.Evaluate(o)
	assert.Equal(t, OutcomeDropped, outcome)
	assert.Equal(t, int64(2), counters.SkippedByTime.Load())
}

func TestAnalyzerExpiryIsTerminal(t *testing.T) {
	cfg := testAnalyzerConfig(10)
	cfg.Expiration = day
	a := NewAnalyzer(cfg, fakePricer{iv: 0.3, price: 100}, nil)

	_, _, outcome := a.Evaluate(observation(1, 100))
	assert.Equal(t, OutcomeTerminal, outcome)
	assert.True(t, a.Expired())

	// Earlier observations would have positive time to expiry, but the stage never resumes.
	earlier := observation(2, 100)
	earlier.Timestamp = earlier.Timestamp.AddDate(0, 0, -5)
	res, _, outcome := a.Evaluate(earlier)
	assert.Equal(t, OutcomeTerminal, outcome)
	assert.Nil(t, res)
}

func TestAnalyzerSolverFailureLeavesFieldsUndefined(t *testing.T) {
	counters := &models.Counters{}
	a := NewAnalyzer(testAnalyzerConfig(10), fakePricer{ivErr: errors.New("no root"), price: 100}, counters)

	for k := 0; k < 3; k++ {
		res, raw, outcome := a.Evaluate(observation(k, 100))
		require.Equal(t, OutcomeResult, outcome)
		assert.Nil(t, res.ImpliedVol)
		assert.Nil(t, res.EstimatedVol)
		assert.Nil(t, res.FairPrice)
		assert.Equal(t, 0.0, res.Delta)
		assert.Equal(t, models.SignalInsufficientData, raw.Signal)
	}
	assert.Equal(t, int64(3), counters.SolverFailure.Load())
}

func TestZScorerWindowProperty(t *testing.T) {
	const size = 5
	z := NewZScorer(size)
	samples := []float64{1, 2, 3, 4, 10, 6, 7}
	for k, x := range samples {
		score, ok := z.Score(x)
		if k < size-1 {
			assert.False(t, ok, "sample %d", k+1)
			continue
		}
		require.True(t, ok, "sample %d", k+1)

		lo := k - size
		if lo < 0 {
			lo = 0
		}
		prior := samples[lo:k]
		var sum float64
		for _, v := range prior {
			sum += v
		}
		assert.InDelta(t, sum/float64(len(prior)), score.Mean, 1e-12, "sample %d", k+1)
	}
}

func TestZScorerFlatWindowScoresZero(t *testing.T) {
	z := NewZScorer(3)
	z.Score(2)
	z.Score(2)
	score, ok := z.Score(7)
	require.True(t, ok)
	assert.Equal(t, 0.0, score.Z)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, models.SignalBuy, classify(-1.6, 1.5))
	assert.Equal(t, models.SignalSell, classify(1.6, 1.5))
	assert.Equal(t, models.SignalHold, classify(1.5, 1.5))
	assert.Equal(t, models.SignalHold, classify(0, 1.5))
}
