package models

import (
	"sync/atomic"
	"time"
)

// Result is the append-only record emitted for every processed observation.
// Nil pointers mark values that were undefined for this observation.
type Result struct {
	ID           string          `json:"id"`
	Instrument   string          `json:"instrument"`
	Timestamp    time.Time       `json:"ts"`
	Source       Source          `json:"source"`
	UnderlyingPx float64         `json:"underlying_mid"`
	OptionPx     float64         `json:"option_mid"`
	TTE          *float64        `json:"tte_years,omitempty"`
	ImpliedVol   *float64        `json:"implied_vol,omitempty"`
	EstimatedVol *float64        `json:"estimated_vol,omitempty"`
	FairPrice    *float64        `json:"fair_price,omitempty"`
	Deviation    *float64        `json:"deviation,omitempty"`
	RollingMean  *float64        `json:"rolling_mean,omitempty"`
	RollingStd   *float64        `json:"rolling_std,omitempty"`
	ZScore       *float64        `json:"z_score,omitempty"`
	Delta        float64         `json:"delta"`
	Signal       Signal          `json:"signal"`
	Counters     CounterSnapshot `json:"counters"`
}

// Float returns a pointer to v, for filling optional Result fields.
func Float(v float64) *float64 { return &v }

// CounterSnapshot is a point-in-time copy of the diagnostic counters.
type CounterSnapshot struct {
	NullData           int64 `json:"null_data"`
	SkippedByTime      int64 `json:"skipped_by_time"`
	SolverFailure      int64 `json:"solver_failure"`
	KeyError           int64 `json:"key_error"`
	InsufficientWindow int64 `json:"insufficient_window"`
	FetchFailure       int64 `json:"fetch_failure"`
	BufferDrop         int64 `json:"buffer_drop"`
	BuySignals         int64 `json:"buy_signals"`
	SellSignals        int64 `json:"sell_signals"`
}

// Counters are the pipeline's diagnostic counters. Safe for concurrent use.
type Counters struct {
	NullData           atomic.Int64
	SkippedByTime      atomic.Int64
	SolverFailure      atomic.Int64
	KeyError           atomic.Int64
	InsufficientWindow atomic.Int64
	FetchFailure       atomic.Int64
	BufferDrop         atomic.Int64
	BuySignals         atomic.Int64
	SellSignals        atomic.Int64
}

// Snapshot copies the current counter values.
func (c *Counters) Snapshot() CounterSnapshot {
	return CounterSnapshot{
		NullData:           c.NullData.Load(),
		SkippedByTime:      c.SkippedByTime.Load(),
		SolverFailure:      c.SolverFailure.Load(),
		KeyError:           c.KeyError.Load(),
		InsufficientWindow: c.InsufficientWindow.Load(),
		FetchFailure:       c.FetchFailure.Load(),
		BufferDrop:         c.BufferDrop.Load(),
		BuySignals:         c.BuySignals.Load(),
		SellSignals:        c.SellSignals.Load(),
	}
}
