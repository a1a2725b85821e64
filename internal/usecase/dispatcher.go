package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"OptArb/internal/domain/models"
	drepo "OptArb/internal/domain/repository"
	"OptArb/pkg/logger"
)

// DispatcherConfig holds order pricing and retry parameters.
type DispatcherConfig struct {
	Instrument string
	BuyOffset  float64
	SellOffset float64
	Notional   float64
	MaxRetries int
	Backoff    time.Duration
	DryRun     bool
}

// Dispatcher turns gated signals into order intents. Whether a matching order
// already rests is left to OrderEntry, which checks the broker's open orders.
// It only cancels on the transition into hold.
type Dispatcher struct {
	cfg     DispatcherConfig
	orders  drepo.OrderEntry
	quotes  drepo.QuoteSource
	metrics drepo.Metrics
	log     *logger.Logger

	last models.Signal
}

func NewDispatcher(cfg DispatcherConfig, orders drepo.OrderEntry, quotes drepo.QuoteSource, metrics drepo.Metrics, log *logger.Logger) *Dispatcher {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	return &Dispatcher{
		cfg:     cfg,
		orders:  orders,
		quotes:  quotes,
		metrics: metrics,
		log:     log,
	}
}

// Run dispatches gated signals until in is closed or ctx is done.
func (d *Dispatcher) Run(ctx context.Context, in <-chan models.GatedSignal) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-in:
			if !ok {
				return nil
			}
			if err := d.Dispatch(ctx, sig); err != nil {
				d.log.Warn("dispatch failed",
					logger.String("signal", string(sig.Signal)),
					logger.Error(err))
			}
		}
	}
}

// Dispatch acts on a single gated signal. Failures are returned for logging only.
func (d *Dispatcher) Dispatch(ctx context.Context, sig models.GatedSignal) error {
	prev := d.last
	d.last = sig.Signal

	side, ok := models.SideOf(sig.Signal)
	if !ok {
		if prev == models.SignalHold {
			return nil
		}
		if err := d.cancelAll(ctx); err != nil {
			// retry the cancel on the next hold
			d.last = prev
			return err
		}
		return nil
	}

	var q models.Quote
	err := d.retry(ctx, "quote", func(ctx context.Context) error {
		var err error
		q, err = d.quotes.Quote(ctx, d.cfg.Instrument)
		return err
	})
	if err != nil {
		return fmt.Errorf("fetch book for %s: %w", side, err)
	}

	price, size, ok := d.Size(side, q)
	if !ok {
		d.log.Warn("non-positive limit price, skipping order",
			logger.String("side", side.String()),
			logger.Float64("bid", q.BuyPrice),
			logger.Float64("ask", q.SellPrice))
		return nil
	}

	px := price.InexactFloat64()
	if d.cfg.DryRun {
		d.log.Info("dry run order",
			logger.String("side", side.String()),
			logger.Float64("price", px),
			logger.Int64("size", size))
	} else {
		err = d.retry(ctx, "place_order", func(ctx context.Context) error {
			return d.orders.PlaceOrModify(ctx, d.cfg.Instrument, side, px, size)
		})
		if err != nil {
			return fmt.Errorf("place %s %d@%s: %w", side, size, price, err)
		}
	}
	d.log.Info("order submitted",
		logger.String("side", side.String()),
		logger.Float64("price", px),
		logger.Int64("size", size))
	return nil
}

// Size computes the limit price and order size for side from the current book.
// Buy orders join the best bid plus the buy offset, sell orders the best ask plus
// the sell offset. ok is false when the resulting price is not positive.
func (d *Dispatcher) Size(side models.Side, q models.Quote) (decimal.Decimal, int64, bool) {
	var price decimal.Decimal
	if side == models.SideBuy {
		price = decimal.NewFromFloat(q.BuyPrice).Add(decimal.NewFromFloat(d.cfg.BuyOffset))
	} else {
		price = decimal.NewFromFloat(q.SellPrice).Add(decimal.NewFromFloat(d.cfg.SellOffset))
	}
	if !price.IsPositive() {
		return decimal.Zero, 0, false
	}
	size := decimal.NewFromFloat(d.cfg.Notional).Div(price).Floor().IntPart()
	if size < 1 {
		size = 1
	}
	return price, size, true
}

func (d *Dispatcher) cancelAll(ctx context.Context) error {
	if d.cfg.DryRun {
		d.log.Info("dry run cancel all")
		return nil
	}
	err := d.retry(ctx, "cancel_all", func(ctx context.Context) error {
		return d.orders.CancelAll(ctx, d.cfg.Instrument)
	})
	if err != nil {
		return fmt.Errorf("cancel all: %w", err)
	}
	return nil
}

// retry runs fn up to MaxRetries times with a fixed backoff.
func (d *Dispatcher) retry(ctx context.Context, op string, fn func(context.Context) error) error {
	var err error
	for attempt := 1; attempt <= d.cfg.MaxRetries; attempt++ {
		start := time.Now()
		if err = fn(ctx); err == nil {
			if d.metrics != nil {
				d.metrics.RecordLatency(op, time.Since(start).Seconds())
			}
			return nil
		}
		if d.metrics != nil {
			d.metrics.RecordError(op)
		}
		d.log.Debug("attempt failed",
			logger.String("op", op),
			logger.Int("attempt", attempt),
			logger.Error(err))
		if attempt == d.cfg.MaxRetries {
			break
		}
		select {
		case <-time.After(d.cfg.Backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
