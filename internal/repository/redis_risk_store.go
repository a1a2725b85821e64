package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"OptArb/internal/domain/models"
	domrepo "OptArb/internal/domain/repository"
	"OptArb/pkg/cache"
)

const (
	deltaNamespace = "delta"
	hedgeNamespace = "hedge"
)

// RedisRiskStore keeps delta reports and hedge biases in a cache.Service,
// normally Redis. Each record is one JSON value under its own key.
type RedisRiskStore struct {
	cache cache.Service
	ttl   time.Duration
}

// NewRedisRiskStore creates the store. ttl <= 0 keeps records until overwritten.
func NewRedisRiskStore(c cache.Service, ttl time.Duration) *RedisRiskStore {
	return &RedisRiskStore{cache: c, ttl: ttl}
}

func (s *RedisRiskStore) PublishDelta(ctx context.Context, r models.DeltaReport) error {
	if r.Instrument == "" {
		return errors.New("publish delta: empty instrument")
	}
	if err := s.cache.Set(ctx, cache.Key(deltaNamespace, r.Instrument), r, s.ttl); err != nil {
		return fmt.Errorf("publish delta %s: %w", r.Instrument, err)
	}
	return nil
}

// LoadDeltas returns the reports that exist. Absent instruments are omitted.
func (s *RedisRiskStore) LoadDeltas(ctx context.Context, instruments []string) (map[string]models.DeltaReport, error) {
	keys := make([]string, len(instruments))
	for i, id := range instruments {
		keys[i] = cache.Key(deltaNamespace, id)
	}
	byKey, err := cache.MGetTyped[models.DeltaReport](ctx, s.cache, keys...)
	if err != nil {
		return nil, fmt.Errorf("load deltas: %w", err)
	}
	out := make(map[string]models.DeltaReport, len(byKey))
	for i, id := range instruments {
		if r, ok := byKey[keys[i]]; ok {
			out[id] = r
		}
	}
	return out, nil
}

// PublishHedge writes all biases in one transaction.
func (s *RedisRiskStore) PublishHedge(ctx context.Context, biases []models.HedgeBias) error {
	if len(biases) == 0 {
		return nil
	}
	values := make(map[string]interface{}, len(biases))
	for _, b := range biases {
		values[cache.Key(hedgeNamespace, b.Instrument)] = b
	}
	if err := s.cache.MSet(ctx, values, s.ttl); err != nil {
		return fmt.Errorf("publish hedge: %w", err)
	}
	return nil
}

func (s *RedisRiskStore) LoadHedge(ctx context.Context, instrument string) (models.HedgeBias, error) {
	var b models.HedgeBias
	if err := s.cache.Get(ctx, cache.Key(hedgeNamespace, instrument), &b); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return models.HedgeBias{}, domrepo.ErrNotFound
		}
		return models.HedgeBias{}, fmt.Errorf("load hedge %s: %w", instrument, err)
	}
	return b, nil
}

var _ domrepo.RiskStore = (*RedisRiskStore)(nil)
