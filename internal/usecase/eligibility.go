package usecase

import (
	"context"
	"time"

	"OptArb/internal/domain/models"
	drepo "OptArb/internal/domain/repository"
	"OptArb/pkg/logger"
	"OptArb/pkg/util"
)

// EligibilityConfig controls when same-direction trading is switched on.
type EligibilityConfig struct {
	Instrument       string
	Expiration       time.Time
	MinRemainingDays int
	MinVolume        float64
	Interval         time.Duration
}

// EligibilityChecker enables same-direction trading once the contract has enough
// time left and has traded enough volume today. It exits after enabling.
type EligibilityChecker struct {
	cfg    EligibilityConfig
	quotes drepo.QuoteSource
	state  *LiveState
	log    *logger.Logger
	now    func() time.Time
}

func NewEligibilityChecker(cfg EligibilityConfig, quotes drepo.QuoteSource, state *LiveState, log *logger.Logger) *EligibilityChecker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &EligibilityChecker{cfg: cfg, quotes: quotes, state: state, log: log, now: time.Now}
}

func (e *EligibilityChecker) Run(ctx context.Context) error {
	remaining := util.DaysBetween(e.now(), e.cfg.Expiration)
	if remaining < e.cfg.MinRemainingDays {
		e.log.Info("too close to expiration, same-direction trading stays disabled",
			logger.Int("remaining_days", remaining))
		return nil
	}

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()
	for {
		if e.Check(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Check polls traded volume once and reports whether trading was enabled.
func (e *EligibilityChecker) Check(ctx context.Context) bool {
	vol, err := e.quotes.TradedVolume(ctx, e.cfg.Instrument)
	if err != nil {
		if ctx.Err() == nil {
			e.log.Warn("traded volume unavailable", logger.Error(err))
		}
		return false
	}
	enabled := vol >= e.cfg.MinVolume
	e.state.Update(func(st *models.LiveState) {
		st.TradedVolume = vol
		if enabled {
			st.SameDirectionAllowed = true
		}
	})
	if enabled {
		e.log.Info("same-direction trading enabled", logger.Float64("traded_volume", vol))
	} else {
		e.log.Debug("traded volume below threshold",
			logger.Float64("traded_volume", vol),
			logger.Float64("min_volume", e.cfg.MinVolume))
	}
	return enabled
}
