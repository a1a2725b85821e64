package usecase

import (
	"context"
	"errors"
	"time"

	"OptArb/internal/domain/models"
	drepo "OptArb/internal/domain/repository"
	"OptArb/pkg/logger"
)

// HedgeSync exchanges state with the risk engine: it publishes this instrument's
// delta and exposure, and reads back the hedge bias for the gate.
type HedgeSync struct {
	store      drepo.RiskStore
	state      *LiveState
	instrument string
	interval   time.Duration
	staleAfter time.Duration
	log        *logger.Logger
	now        func() time.Time
}

func NewHedgeSync(store drepo.RiskStore, state *LiveState, instrument string, interval, staleAfter time.Duration, log *logger.Logger) *HedgeSync {
	if interval <= 0 {
		interval = time.Second
	}
	return &HedgeSync{
		store:      store,
		state:      state,
		instrument: instrument,
		interval:   interval,
		staleAfter: staleAfter,
		log:        log,
		now:        time.Now,
	}
}

func (h *HedgeSync) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		h.Sync(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Sync performs one publish and one read. An absent or stale bias reads as 0;
// a failed read keeps the last known value.
func (h *HedgeSync) Sync(ctx context.Context) {
	st := h.state.Load()
	now := h.now()
	err := h.store.PublishDelta(ctx, models.DeltaReport{
		Instrument:  h.instrument,
		Delta:       st.Delta,
		NetExposure: st.NetExposure,
		UpdatedAt:   now,
	})
	if err != nil && ctx.Err() == nil {
		h.log.Warn("publish delta failed", logger.Error(err))
	}

	hb, err := h.store.LoadHedge(ctx, h.instrument)
	switch {
	case errors.Is(err, drepo.ErrNotFound):
		hb.Bias = 0
	case err != nil:
		if ctx.Err() == nil {
			h.log.Warn("load hedge bias failed", logger.Error(err))
		}
		return
	case h.staleAfter > 0 && now.Sub(hb.UpdatedAt) > h.staleAfter:
		h.log.Debug("stale hedge bias, reading neutral", logger.Time("updated_at", hb.UpdatedAt))
		hb.Bias = 0
	}
	bias := hb.Bias
	h.state.Update(func(st *models.LiveState) { st.HedgeBias = bias })
}
