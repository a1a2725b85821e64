package usecase

import (
	"time"

	"github.com/google/uuid"

	"OptArb/internal/domain/models"
	"OptArb/internal/domain/service"
	"OptArb/pkg/quant"
	"OptArb/pkg/util"
)

// AnalyzerConfig holds the static parameters of one instrument's analytics.
type AnalyzerConfig struct {
	Instrument      string
	Expiration      time.Time
	Location        *time.Location
	SessionStart    time.Duration
	SessionEnd      time.Duration
	SmoothingWindow int
	ZWindow         int
	ZThreshold      float64
}

// Outcome classifies what Evaluate did with an observation.
type Outcome int

const (
	OutcomeResult   Outcome = iota // a Result and raw signal were produced
	OutcomeDropped                 // invalid input, counted and skipped
	OutcomeTerminal                // instrument expired, nothing more will be produced
)

// Analyzer turns observations into results. It owns the rolling windows and is
// not safe for concurrent use; the historical replay and the live loop hand it over
// through the readiness flag.
type Analyzer struct {
	cfg      AnalyzerConfig
	pricer   service.OptionPricer
	counters *models.Counters
	vols     *quant.Window
	devs     *ZScorer
	expired  bool
}

func NewAnalyzer(cfg AnalyzerConfig, pricer service.OptionPricer, counters *models.Counters) *Analyzer {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if counters == nil {
		counters = &models.Counters{}
	}
	return &Analyzer{
		cfg:      cfg,
		pricer:   pricer,
		counters: counters,
		vols:     quant.NewWindow(cfg.SmoothingWindow),
		devs:     NewZScorer(cfg.ZWindow),
	}
}

// Expired reports whether the instrument reached its terminal condition.
func (a *Analyzer) Expired() bool { return a.expired }

// InSession reports whether t falls inside the trading session window.
func (a *Analyzer) InSession(t time.Time) bool {
	c := util.ClockOf(t.In(a.cfg.Location))
	return c >= a.cfg.SessionStart && c <= a.cfg.SessionEnd
}

// TimeToExpiry returns the calendar-day distance from t to expiration in years.
func (a *Analyzer) TimeToExpiry(t time.Time) float64 {
	days := util.DaysBetween(t.In(a.cfg.Location), a.cfg.Expiration.In(a.cfg.Location))
	return float64(days) / 365
}

// Evaluate processes one observation. Once the instrument has expired every further
// call returns OutcomeTerminal.
func (a *Analyzer) Evaluate(o models.Observation) (*models.Result, models.RawSignal, Outcome) {
	if a.expired {
		return nil, models.RawSignal{}, OutcomeTerminal
	}
	if !a.InSession(o.Timestamp) {
		a.counters.SkippedByTime.Add(1)
		return nil, models.RawSignal{}, OutcomeDropped
	}
	if !o.Underlying.Valid() || !o.Option.Valid() {
		a.counters.NullData.Add(1)
		return nil, models.RawSignal{}, OutcomeDropped
	}

	tte := a.TimeToExpiry(o.Timestamp)
	if tte <= 0 {
		a.expired = true
		return nil, models.RawSignal{}, OutcomeTerminal
	}

	spot := o.Underlying.Mid()
	premium := o.Option.Mid()
	res := &models.Result{
		ID:           uuid.NewString(),
		Instrument:   a.cfg.Instrument,
		Timestamp:    o.Timestamp,
		Source:       o.Source,
		UnderlyingPx: spot,
		OptionPx:     premium,
		TTE:          models.Float(tte),
	}

	iv, err := a.pricer.ImpliedVol(spot, premium, tte)
	if err != nil {
		a.counters.SolverFailure.Add(1)
	} else {
		res.ImpliedVol = models.Float(iv)
	}

	// The estimate only sees prior samples; the current one joins afterwards.
	est, estOK := a.vols.Mean()
	if res.ImpliedVol != nil {
		a.vols.Push(iv)
	}

	if estOK {
		res.EstimatedVol = models.Float(est)
		if fair, ok := a.pricer.Price(spot, est, tte); ok {
			res.FairPrice = models.Float(fair)
			res.Deviation = models.Float(premium - fair)
		}
		if d, ok := a.pricer.Delta(spot, est, tte); ok {
			res.Delta = d
		}
	}

	res.Signal = models.SignalInsufficientData
	if res.Deviation != nil {
		score, ok := a.devs.Score(*res.Deviation)
		if ok {
			res.RollingMean = models.Float(score.Mean)
			res.RollingStd = models.Float(score.Std)
			res.ZScore = models.Float(score.Z)
			res.Signal = classify(score.Z, a.cfg.ZThreshold)
		}
	}

	switch res.Signal {
	case models.SignalInsufficientData:
		a.counters.InsufficientWindow.Add(1)
	case models.SignalBuy:
		a.counters.BuySignals.Add(1)
	case models.SignalSell:
		a.counters.SellSignals.Add(1)
	}
	res.Counters = a.counters.Snapshot()

	return res, models.RawSignal{Time: o.Timestamp, Signal: res.Signal, Delta: res.Delta}, OutcomeResult
}

func classify(z, threshold float64) models.Signal {
	switch {
	case z < -threshold:
		return models.SignalBuy
	case z > threshold:
		return models.SignalSell
	default:
		return models.SignalHold
	}
}

// Score is a z-score together with the prior-window statistics it was computed from.
type Score struct {
	Z    float64
	Mean float64
	Std  float64
}

// ZScorer scores each sample against the window of samples before it.
// It becomes ready once size-1 prior samples are held.
type ZScorer struct {
	size int
	win  *quant.Window
}

func NewZScorer(size int) *ZScorer {
	if size < 2 {
		size = 2
	}
	return &ZScorer{size: size, win: quant.NewWindow(size)}
}

// Score returns the z-score of x against prior samples, then appends x.
// ok is false until the window holds enough history.
func (z *ZScorer) Score(x float64) (Score, bool) {
	defer z.win.Push(x)
	if z.win.Len() < z.size-1 {
		return Score{}, false
	}
	mean, std, ok := z.win.MeanStdDev()
	if !ok {
		return Score{}, false
	}
	return Score{Z: quant.ZScore(x, mean, std), Mean: mean, Std: std}, true
}
