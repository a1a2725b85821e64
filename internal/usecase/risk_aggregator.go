package usecase

import (
	"context"
	"math"
	"sort"
	"sync/atomic"
	"time"

	"OptArb/internal/domain/models"
	drepo "OptArb/internal/domain/repository"
	"OptArb/pkg/logger"
	"OptArb/pkg/util"
)

// RiskEngineConfig holds the aggregation parameters.
type RiskEngineConfig struct {
	Instruments []string
	PrefixLen   int
	NeutralBand float64
	Interval    time.Duration
	StaleAfter  time.Duration
}

// RiskEngine computes a weighted group delta per underlying-prefix group every
// cycle and republishes it as the hedge bias of every member.
type RiskEngine struct {
	cfg     RiskEngineConfig
	groups  map[string][]string
	keys    []string
	account drepo.AccountState
	store   drepo.RiskStore
	metrics drepo.Metrics
	log     *logger.Logger
	now     func() time.Time
	last    atomic.Pointer[[]models.GroupDelta]
}

func NewRiskEngine(cfg RiskEngineConfig, account drepo.AccountState, store drepo.RiskStore, metrics drepo.Metrics, log *logger.Logger) *RiskEngine {
	if cfg.PrefixLen <= 0 {
		cfg.PrefixLen = 8
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	groups, keys := GroupInstruments(cfg.Instruments, cfg.PrefixLen)
	return &RiskEngine{
		cfg:     cfg,
		groups:  groups,
		keys:    keys,
		account: account,
		store:   store,
		metrics: metrics,
		log:     log,
		now:     time.Now,
	}
}

// GroupInstruments buckets ids by their first n characters. Keys are returned sorted.
func GroupInstruments(ids []string, n int) (map[string][]string, []string) {
	groups := make(map[string][]string)
	for _, id := range ids {
		k := util.Prefix(id, n)
		groups[k] = append(groups[k], id)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return groups, keys
}

// ComputeGroupDelta is the exposure-weighted average delta of a group:
//
//	sum(delta_i * |net_i| * avg_i) / sum(|net_i| * avg_i)
//
// Any member without a delta collapses the group to 0, as does a zero denominator.
// Results within the neutral band snap to exactly 0.
func ComputeGroupDelta(group string, members []string, records map[string]models.RiskRecord, band float64) models.GroupDelta {
	out := models.GroupDelta{Group: group, Members: members}
	for _, id := range members {
		if rec, ok := records[id]; !ok || rec.Delta == nil || math.IsNaN(*rec.Delta) {
			out.Missing = append(out.Missing, id)
		}
	}
	if len(out.Missing) > 0 {
		return out
	}

	var num, den float64
	for _, id := range members {
		rec := records[id]
		w := math.Abs(rec.NetExposure) * rec.AveragePrice
		num += *rec.Delta * w
		den += w
	}
	if den == 0 {
		return out
	}
	avg := num / den
	if math.Abs(avg) <= band {
		avg = 0
	}
	out.Delta = avg
	return out
}

// Groups returns the outcome of the most recent cycle, or nil before the first one.
func (e *RiskEngine) Groups() []models.GroupDelta {
	if p := e.last.Load(); p != nil {
		return *p
	}
	return nil
}

// Run executes a cycle every interval until ctx is cancelled.
func (e *RiskEngine) Run(ctx context.Context) error {
	e.log.Info("risk engine started",
		logger.Int("instruments", len(e.cfg.Instruments)),
		logger.Int("groups", len(e.keys)),
		logger.Duration("interval", e.cfg.Interval))
	defer e.log.Info("risk engine stopped")

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()
	for {
		if _, err := e.Cycle(ctx); err != nil && ctx.Err() == nil {
			e.log.Warn("risk cycle failed", logger.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Cycle performs one aggregation pass and publishes the resulting hedge biases.
// Read failures degrade the affected inputs to missing rather than aborting.
func (e *RiskEngine) Cycle(ctx context.Context) ([]models.GroupDelta, error) {
	start := e.now()
	records := make(map[string]models.RiskRecord, len(e.cfg.Instruments))
	for _, id := range e.cfg.Instruments {
		records[id] = models.RiskRecord{Instrument: id}
	}

	positions, err := e.account.Positions(ctx)
	if err != nil {
		e.log.Warn("positions unavailable, exposures read as zero", logger.Error(err))
		if e.metrics != nil {
			e.metrics.RecordError("risk_positions")
		}
	}
	for _, p := range positions {
		rec, ok := records[p.Instrument]
		if !ok {
			continue
		}
		rec.NetExposure = p.NetExposure
		rec.AveragePrice = p.AveragePrice
		records[p.Instrument] = rec
	}

	deltas, err := e.store.LoadDeltas(ctx, e.cfg.Instruments)
	if err != nil {
		e.log.Warn("deltas unavailable, all groups neutral", logger.Error(err))
		if e.metrics != nil {
			e.metrics.RecordError("risk_deltas")
		}
	}
	for id, rep := range deltas {
		rec, ok := records[id]
		if !ok || rep.Delta == nil {
			continue
		}
		if e.cfg.StaleAfter > 0 && start.Sub(rep.UpdatedAt) > e.cfg.StaleAfter {
			e.log.Debug("stale delta ignored",
				logger.String("instrument", id),
				logger.Time("updated_at", rep.UpdatedAt))
			continue
		}
		d := *rep.Delta
		rec.Delta = &d
		records[id] = rec
	}

	out := make([]models.GroupDelta, 0, len(e.keys))
	biases := make([]models.HedgeBias, 0, len(e.cfg.Instruments))
	for _, k := range e.keys {
		gd := ComputeGroupDelta(k, e.groups[k], records, e.cfg.NeutralBand)
		if len(gd.Missing) > 0 {
			e.log.Debug("group missing deltas, neutral",
				logger.String("group", k),
				logger.Strings("missing", gd.Missing))
		}
		if e.metrics != nil {
			e.metrics.RecordGroupDelta(k, gd.Delta)
		}
		for _, id := range gd.Members {
			biases = append(biases, models.HedgeBias{
				Instrument: id,
				Group:      k,
				Bias:       gd.Delta,
				UpdatedAt:  start,
			})
		}
		out = append(out, gd)
	}
	e.last.Store(&out)

	if err := e.store.PublishHedge(ctx, biases); err != nil {
		return out, err
	}
	if e.metrics != nil {
		e.metrics.RecordLatency("risk_cycle", e.now().Sub(start).Seconds())
	}
	return out, nil
}
