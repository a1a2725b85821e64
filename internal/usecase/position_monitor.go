package usecase

import (
	"context"
	"time"

	"OptArb/internal/domain/models"
	drepo "OptArb/internal/domain/repository"
	"OptArb/pkg/logger"
)

// PositionMonitor keeps the live state's net exposure in step with the account.
type PositionMonitor struct {
	account    drepo.AccountState
	state      *LiveState
	instrument string
	interval   time.Duration
	log        *logger.Logger
}

func NewPositionMonitor(account drepo.AccountState, state *LiveState, instrument string, interval time.Duration, log *logger.Logger) *PositionMonitor {
	if interval <= 0 {
		interval = time.Second
	}
	return &PositionMonitor{account: account, state: state, instrument: instrument, interval: interval, log: log}
}

func (m *PositionMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		m.Poll(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Poll reads the position once. On failure the previous exposure is kept.
func (m *PositionMonitor) Poll(ctx context.Context) {
	p, err := m.account.Position(ctx, m.instrument)
	if err != nil {
		if ctx.Err() == nil {
			m.log.Warn("position unavailable", logger.Error(err))
		}
		return
	}
	m.state.Update(func(st *models.LiveState) { st.NetExposure = p.NetExposure })
}
