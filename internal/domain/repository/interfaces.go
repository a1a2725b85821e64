package repository

import (
	"context"
	"errors"
	"time"

	"OptArb/internal/domain/models"
)

// ErrNotFound is returned by stores when a key has never been published.
var ErrNotFound = errors.New("not found")

// QuoteSource is a synchronous request/response source of top-of-book quotes.
type QuoteSource interface {
	Quote(ctx context.Context, instrument string) (models.Quote, error)
	TradedVolume(ctx context.Context, instrument string) (float64, error)
}

// HistoryQuery selects a historical series for one underlying/option pair.
type HistoryQuery struct {
	Underlying string
	Option     string
	From       time.Time
	To         time.Time
}

// HistoryLoader returns an ordered series of paired observations.
type HistoryLoader interface {
	LoadHistory(ctx context.Context, q HistoryQuery) ([]models.Observation, error)
}

// OrderEntry places, amends and cancels resting orders. Every call is idempotent.
type OrderEntry interface {
	PlaceOrModify(ctx context.Context, instrument string, side models.Side, price float64, size int64) error
	CancelAll(ctx context.Context, instrument string) error
}

// AccountState reads positions held by the account.
type AccountState interface {
	Position(ctx context.Context, instrument string) (models.Position, error)
	Positions(ctx context.Context) ([]models.Position, error)
}

// RiskStore is the cross-process keyed store shared by instrument pipelines and the risk engine.
// Every write replaces a whole record; readers never observe a partial record.
type RiskStore interface {
	PublishDelta(ctx context.Context, r models.DeltaReport) error
	LoadDeltas(ctx context.Context, instruments []string) (map[string]models.DeltaReport, error)
	PublishHedge(ctx context.Context, biases []models.HedgeBias) error
	LoadHedge(ctx context.Context, instrument string) (models.HedgeBias, error)
}

// ResultPublisher streams results to a message broker.
type ResultPublisher interface {
	Publish(ctx context.Context, r *models.Result) error
	PublishBatch(ctx context.Context, rs []*models.Result) error
	Close() error
}

// ResultStorage persists results for later querying.
type ResultStorage interface {
	Init(ctx context.Context) error
	Store(ctx context.Context, r *models.Result) error
	StoreBatch(ctx context.Context, rs []*models.Result) error
	Query(ctx context.Context, instrument string, from, to time.Time, limit int) ([]*models.Result, error)
	Health(ctx context.Context) error
	Close() error
}

type Metrics interface {
	RecordResult(instrument string, signal models.Signal)
	RecordError(kind string)
	RecordDrop(stage string)
	RecordLastPrice(instrument string, price float64)
	RecordGroupDelta(group string, delta float64)
	RecordLatency(op string, seconds float64)
}
