package usecase

import (
	"context"
	"fmt"
	"time"

	"OptArb/internal/domain/models"
	drepo "OptArb/internal/domain/repository"
	"OptArb/pkg/logger"
)

// ResultTap receives a copy of every result, e.g. a websocket hub.
type ResultTap interface {
	Broadcast(r *models.Result)
}

// ResultProcessor batches results and routes them to the configured backend.
type ResultProcessor struct {
	pub     drepo.ResultPublisher
	store   drepo.ResultStorage
	metrics drepo.Metrics
	log     *logger.Logger
	tap     ResultTap
	backend string
	batchSz int
	batchTO time.Duration
}

func NewResultProcessor(
	pub drepo.ResultPublisher,
	store drepo.ResultStorage,
	metrics drepo.Metrics,
	log *logger.Logger,
	tap ResultTap,
	backend string,
	batchSz int,
	batchTO time.Duration,
) *ResultProcessor {
	if batchSz < 1 {
		batchSz = 1
	}
	if batchTO <= 0 {
		batchTO = 2 * time.Second
	}
	return &ResultProcessor{
		pub:     pub,
		store:   store,
		metrics: metrics,
		log:     log,
		tap:     tap,
		backend: backend,
		batchSz: batchSz,
		batchTO: batchTO,
	}
}

// Process routes a single result.
func (p *ResultProcessor) Process(ctx context.Context, r *models.Result) error {
	if r == nil {
		return fmt.Errorf("result is nil")
	}
	return p.ProcessBatch(ctx, []*models.Result{r})
}

// ProcessBatch routes a batch of results.
func (p *ResultProcessor) ProcessBatch(ctx context.Context, rs []*models.Result) error {
	if len(rs) == 0 {
		return nil
	}

	start := time.Now()
	var err error
	switch p.backend {
	case "kafka":
		err = p.pub.PublishBatch(ctx, rs)
	case "clickhouse":
		err = p.store.StoreBatch(ctx, rs)
	case "log":
		for _, r := range rs {
			p.log.Info("result",
				logger.String("id", r.ID),
				logger.Time("ts", r.Timestamp),
				logger.String("source", string(r.Source)),
				logger.Float64("option_mid", r.OptionPx),
				logger.Any("fair_price", r.FairPrice),
				logger.Any("z_score", r.ZScore),
				logger.Float64("delta", r.Delta),
				logger.String("signal", string(r.Signal)))
		}
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		if p.metrics != nil {
			p.metrics.RecordError("result_batch")
		}
		return fmt.Errorf("process batch: %w", err)
	}
	if p.metrics != nil {
		p.metrics.RecordLatency("result_batch", time.Since(start).Seconds())
	}
	return nil
}

// Run batches results from in until it is closed, then flushes what is left.
// Flushes are not tied to ctx cancellation so shutdown never discards results.
func (p *ResultProcessor) Run(ctx context.Context, in <-chan *models.Result) error {
	flushCtx := context.WithoutCancel(ctx)
	batch := make([]*models.Result, 0, p.batchSz)
	timer := time.NewTimer(p.batchTO)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := p.ProcessBatch(flushCtx, batch); err != nil {
			p.log.Error("result flush failed", logger.Int("size", len(batch)), logger.Error(err))
		}
		batch = make([]*models.Result, 0, p.batchSz)
	}

	for {
		select {
		case r, ok := <-in:
			if !ok {
				flush()
				return nil
			}
			if p.tap != nil {
				p.tap.Broadcast(r)
			}
			batch = append(batch, r)
			if len(batch) >= p.batchSz {
				flush()
			}
		case <-timer.C:
			flush()
			timer.Reset(p.batchTO)
		}
	}
}

// Close closes underlying resources if available.
func (p *ResultProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
