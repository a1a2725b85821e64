package models

import "time"

// Quote is the top of book for one instrument at one instant.
type Quote struct {
	SellSize  float64 `json:"sell_size"`
	SellPrice float64 `json:"sell_price"`
	BuyPrice  float64 `json:"buy_price"`
	BuySize   float64 `json:"buy_size"`
}

// Valid reports whether every field is present and non-zero.
func (q Quote) Valid() bool {
	return q.SellSize != 0 && q.SellPrice != 0 && q.BuyPrice != 0 && q.BuySize != 0
}

// Mid is the midpoint of best bid and best ask.
func (q Quote) Mid() float64 {
	return (q.SellPrice + q.BuyPrice) / 2
}

// Source tells where an observation came from.
type Source string

const (
	SourceLive    Source = "live"
	SourceHistory Source = "history"
)

// Observation pairs the underlying and option quotes taken at one instant.
// It is passed by value and never mutated after creation.
type Observation struct {
	Timestamp  time.Time `json:"ts"`
	Underlying Quote     `json:"underlying"`
	Option     Quote     `json:"option"`
	Source     Source    `json:"source"`
}

// Before reports whether o happened strictly before t at second resolution,
// matching the (date, time) granularity of the quote feeds.
func (o Observation) Before(t time.Time) bool {
	return o.Timestamp.Truncate(time.Second).Before(t.Truncate(time.Second))
}
