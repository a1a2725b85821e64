package models

import "time"

// Position is the account's holding in one instrument.
// Positive NetExposure means net long.
type Position struct {
	Instrument   string  `json:"instrument"`
	NetExposure  float64 `json:"net_exposure"`
	AveragePrice float64 `json:"average_price"`
	Realized     float64 `json:"realized_value"`
}

// DeltaReport is what an instrument pipeline publishes for the risk engine.
// A nil Delta means the pipeline has no defined delta yet.
type DeltaReport struct {
	Instrument  string    `json:"instrument"`
	Delta       *float64  `json:"delta"`
	NetExposure float64   `json:"net_exposure"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HedgeBias is the group delta republished by the risk engine for one member instrument.
type HedgeBias struct {
	Instrument string    `json:"instrument"`
	Group      string    `json:"group"`
	Bias       float64   `json:"averaged_delta"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RiskRecord is the engine's per-instrument working record, rebuilt from zero every cycle.
type RiskRecord struct {
	Instrument   string   `json:"instrument"`
	Delta        *float64 `json:"delta"`
	NetExposure  float64  `json:"net_exposure"`
	AveragePrice float64  `json:"average_price"`
}

// GroupDelta is one group's outcome for a cycle.
type GroupDelta struct {
	Group   string   `json:"group"`
	Members []string `json:"members"`
	Delta   float64  `json:"weighted_average_delta"`
	Missing []string `json:"missing,omitempty"`
}

// LiveState is the small mutable state of one instrument pipeline.
// It is always replaced as a whole, never mutated in place.
type LiveState struct {
	NetExposure          float64   `json:"net_exposure"`
	TradedVolume         float64   `json:"traded_volume"`
	HedgeBias            float64   `json:"hedge_bias"`
	Delta                *float64  `json:"delta"`
	SameDirectionAllowed bool      `json:"same_direction_allowed"`
	Expired              bool      `json:"expired"`
	UpdatedAt            time.Time `json:"updated_at"`
}
