package usecase

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"OptArb/internal/domain/models"
	drepo "OptArb/internal/domain/repository"
	mid "OptArb/internal/middleware"
	"OptArb/pkg/logger"
)

// LiveFetcher polls the quote source on a fixed cadence and pushes paired
// observations into the bounded buffer.
type LiveFetcher struct {
	source     drepo.QuoteSource
	buffer     *mid.ObservationBuffer
	underlying string
	option     string
	interval   time.Duration
	counters   *models.Counters
	metrics    drepo.Metrics
	log        *logger.Logger
	now        func() time.Time
}

func NewLiveFetcher(
	source drepo.QuoteSource,
	buffer *mid.ObservationBuffer,
	underlying, option string,
	interval time.Duration,
	counters *models.Counters,
	metrics drepo.Metrics,
	log *logger.Logger,
) *LiveFetcher {
	if interval <= 0 {
		interval = time.Second
	}
	return &LiveFetcher{
		source:     source,
		buffer:     buffer,
		underlying: underlying,
		option:     option,
		interval:   interval,
		counters:   counters,
		metrics:    metrics,
		log:        log,
		now:        time.Now,
	}
}

// Run fetches until ctx is cancelled. The ticker keeps the cadence regardless of
// how long each fetch takes; a slow fetch simply coalesces missed ticks.
func (f *LiveFetcher) Run(ctx context.Context) error {
	f.log.Info("live fetcher started",
		logger.String("underlying", f.underlying),
		logger.String("option", f.option),
		logger.Duration("interval", f.interval))
	defer f.log.Info("live fetcher stopped")

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	f.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			f.Tick(ctx)
		}
	}
}

// Tick performs one fetch. It reports whether an observation was pushed.
func (f *LiveFetcher) Tick(ctx context.Context) bool {
	start := f.now()
	var uq, oq models.Quote
	var uerr, oerr error

	// Both legs are fetched concurrently so they describe the same instant.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		uq, uerr = f.source.Quote(gctx, f.underlying)
		return nil
	})
	g.Go(func() error {
		oq, oerr = f.source.Quote(gctx, f.option)
		return nil
	})
	_ = g.Wait()

	if ctx.Err() != nil {
		return false
	}
	if uerr != nil && oerr != nil {
		f.counters.FetchFailure.Add(1)
		if f.metrics != nil {
			f.metrics.RecordError("quote_fetch")
		}
		f.log.Warn("both quotes unavailable, skipping tick",
			logger.String("underlying_err", uerr.Error()),
			logger.String("option_err", oerr.Error()))
		return false
	}
	if uerr != nil || oerr != nil {
		f.counters.FetchFailure.Add(1)
		f.log.Debug("one quote unavailable",
			logger.Any("underlying_err", uerr), logger.Any("option_err", oerr))
	}

	if f.buffer.Push(models.Observation{
		Timestamp:  start,
		Underlying: uq,
		Option:     oq,
		Source:     models.SourceLive,
	}) {
		f.counters.BufferDrop.Add(1)
	}
	if f.metrics != nil {
		f.metrics.RecordLatency("quote_fetch", f.now().Sub(start).Seconds())
	}
	return true
}
