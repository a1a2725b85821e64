package usecase

import (
	"context"
	"errors"
	"fmt"

	"OptArb/internal/domain/models"
	drepo "OptArb/internal/domain/repository"
	mid "OptArb/internal/middleware"
	"OptArb/pkg/logger"
)

// AnalyticsStage drives the Analyzer: historical replay first, then the live buffer.
type AnalyticsStage struct {
	analyzer *Analyzer
	buffer   *mid.ObservationBuffer
	ready    *mid.Readiness
	state    *LiveState
	results  chan<- *models.Result
	signals  chan<- models.RawSignal
	metrics  drepo.Metrics
	log      *logger.Logger

	onTerminal func()
}

type StageOption func(*AnalyticsStage)

// WithTerminalHook registers fn to run once the instrument expires.
func WithTerminalHook(fn func()) StageOption {
	return func(s *AnalyticsStage) { s.onTerminal = fn }
}

func NewAnalyticsStage(
	analyzer *Analyzer,
	buffer *mid.ObservationBuffer,
	ready *mid.Readiness,
	state *LiveState,
	results chan<- *models.Result,
	signals chan<- models.RawSignal,
	metrics drepo.Metrics,
	log *logger.Logger,
	opts ...StageOption,
) *AnalyticsStage {
	s := &AnalyticsStage{
		analyzer: analyzer,
		buffer:   buffer,
		ready:    ready,
		state:    state,
		results:  results,
		signals:  signals,
		metrics:  metrics,
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Replay feeds historical observations through the analyzer to warm its windows.
// Results are emitted; raw signals are not forwarded since history is never traded.
func (s *AnalyticsStage) Replay(ctx context.Context, history []models.Observation) (int, error) {
	emitted := 0
	for _, o := range history {
		if err := ctx.Err(); err != nil {
			return emitted, err
		}
		res, _, outcome := s.analyzer.Evaluate(o)
		switch outcome {
		case OutcomeTerminal:
			return emitted, nil
		case OutcomeDropped:
			continue
		}
		s.emitResult(res)
		emitted++
	}
	return emitted, nil
}

// Run blocks on the readiness flag, then consumes live observations until ctx is done,
// the buffer closes or the instrument expires.
func (s *AnalyticsStage) Run(ctx context.Context) error {
	if err := s.ready.Wait(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("analytics wait for history: %w", err)
	}
	s.log.Info("analytics stage consuming live observations")

	for {
		o, err := s.buffer.Receive(ctx)
		if err != nil {
			if errors.Is(err, mid.ErrBufferClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("analytics receive: %w", err)
		}

		res, raw, outcome := s.analyzer.Evaluate(o)
		switch outcome {
		case OutcomeTerminal:
			s.log.Info("instrument expired, analytics stage stopping",
				logger.Time("observation", o.Timestamp))
			s.state.Update(func(st *models.LiveState) { st.Expired = true })
			if s.onTerminal != nil {
				s.onTerminal()
			}
			return nil
		case OutcomeDropped:
			s.log.Debug("observation dropped", logger.Time("ts", o.Timestamp))
			continue
		}

		delta := res.Delta
		defined := res.EstimatedVol != nil
		s.state.Update(func(st *models.LiveState) {
			if defined {
				st.Delta = models.Float(delta)
			} else {
				st.Delta = nil
			}
		})
		if s.metrics != nil {
			s.metrics.RecordResult(res.Instrument, res.Signal)
			s.metrics.RecordLastPrice(res.Instrument, res.OptionPx)
		}

		s.emitResult(res)
		select {
		case s.signals <- raw:
		case <-ctx.Done():
			return nil
		}
	}
}

// emitResult hands res to the result processor, which drains until the channel is
// closed, so results are not lost when ctx is cancelled mid-send.
func (s *AnalyticsStage) emitResult(res *models.Result) {
	s.results <- res
}
