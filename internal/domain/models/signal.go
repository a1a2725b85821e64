package models

import "time"

// Signal is the trading decision for one evaluation.
type Signal string

const (
	SignalInsufficientData Signal = "insufficient_data"
	SignalBuy              Signal = "buy"
	SignalSell             Signal = "sell"
	SignalHold             Signal = "hold"
)

// Side is the order side implied by a buy or sell signal.
type Side int

const (
	SideBuy  Side = 1
	SideSell Side = 2
)

func (s Side) String() string {
	if s == SideBuy {
		return "buy"
	}
	return "sell"
}

// Sign is +1 for buy and -1 for sell.
func (s Side) Sign() float64 {
	if s == SideBuy {
		return 1
	}
	return -1
}

// SideOf maps buy/sell signals to a side; ok is false for anything else.
func SideOf(sig Signal) (Side, bool) {
	switch sig {
	case SignalBuy:
		return SideBuy, true
	case SignalSell:
		return SideSell, true
	default:
		return 0, false
	}
}

// RawSignal is what the analytics stage forwards to the gate.
type RawSignal struct {
	Time   time.Time `json:"time"`
	Signal Signal    `json:"signal"`
	Delta  float64   `json:"delta"`
}

// GatedSignal is the gate's decision handed to the dispatcher.
type GatedSignal struct {
	Time   time.Time `json:"time"`
	Raw    Signal    `json:"raw"`
	Signal Signal    `json:"signal"`
	Reason string    `json:"reason,omitempty"`
}
