package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"OptArb/internal/domain/models"
	drepo "OptArb/internal/domain/repository"
	mid "OptArb/internal/middleware"
	"OptArb/pkg/logger"
)

// ErrHistoryUnusable is fatal for an instrument: its rolling windows cannot be seeded.
var ErrHistoryUnusable = errors.New("historical data unusable")

// HistoricalMerge runs once at start-up. It waits for the first live observation,
// loads history up to it, and replays it through the analytics stage before
// releasing the readiness flag.
type HistoricalMerge struct {
	loader   drepo.HistoryLoader
	buffer   *mid.ObservationBuffer
	ready    *mid.Readiness
	stage    *AnalyticsStage
	query    drepo.HistoryQuery
	counters *models.Counters
	log      *logger.Logger
}

func NewHistoricalMerge(
	loader drepo.HistoryLoader,
	buffer *mid.ObservationBuffer,
	ready *mid.Readiness,
	stage *AnalyticsStage,
	query drepo.HistoryQuery,
	counters *models.Counters,
	log *logger.Logger,
) *HistoricalMerge {
	return &HistoricalMerge{
		loader:   loader,
		buffer:   buffer,
		ready:    ready,
		stage:    stage,
		query:    query,
		counters: counters,
		log:      log,
	}
}

// Run performs the merge. A nil loader skips straight to ready.
// Any failure is also delivered to readiness waiters so the live stage never starts blind.
func (m *HistoricalMerge) Run(ctx context.Context) (err error) {
	defer func() {
		if err != nil && !errors.Is(err, context.Canceled) {
			m.ready.Fail(err)
		}
	}()

	if m.loader == nil {
		m.log.Info("history disabled, starting live analytics directly")
		m.ready.Set()
		return nil
	}

	first, err := m.buffer.First(ctx)
	if err != nil {
		return err
	}

	start := time.Now()
	history, err := m.loader.LoadHistory(ctx, m.query)
	if err != nil {
		return fmt.Errorf("%w: load: %v", ErrHistoryUnusable, err)
	}

	trimmed := TrimHistory(history, first.Timestamp)
	usable := 0
	for i := range trimmed {
		if trimmed[i].Timestamp.IsZero() {
			m.counters.KeyError.Add(1)
			continue
		}
		if trimmed[i].Underlying.Valid() && trimmed[i].Option.Valid() {
			usable++
		}
	}
	if usable == 0 {
		return fmt.Errorf("%w: %d entries loaded, %d before first live observation, none valid",
			ErrHistoryUnusable, len(history), len(trimmed))
	}

	replay := trimmed[:0:0]
	for _, o := range trimmed {
		if !o.Timestamp.IsZero() {
			o.Source = models.SourceHistory
			replay = append(replay, o)
		}
	}
	emitted, err := m.stage.Replay(ctx, replay)
	if err != nil {
		return fmt.Errorf("replay history: %w", err)
	}

	m.log.Info("historical merge complete",
		logger.Int("loaded", len(history)),
		logger.Int("replayed", len(replay)),
		logger.Int("results", emitted),
		logger.Time("first_live", first.Timestamp),
		logger.Duration("took", time.Since(start)))
	m.ready.Set()
	return nil
}

// TrimHistory drops every entry at or after cutoff at second resolution.
// Order is preserved; the input is not modified.
func TrimHistory(history []models.Observation, cutoff time.Time) []models.Observation {
	end := len(history)
	for end > 0 && !history[end-1].Before(cutoff) {
		end--
	}
	out := make([]models.Observation, 0, end)
	for _, o := range history[:end] {
		if o.Before(cutoff) {
			out = append(out, o)
		}
	}
	return out
}
