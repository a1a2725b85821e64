package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"OptArb/internal/domain/models"
	domrepo "OptArb/internal/domain/repository"
	pkgch "OptArb/pkg/clickhouse"
	applogger "OptArb/pkg/logger"
)

const resultColumns = "id, instrument, ts, source, underlying_mid, option_mid, tte, implied_vol, estimated_vol, fair_price, deviation, rolling_mean, rolling_std, z_score, delta, signal"

// ClickHouseResultStore persists analytics results in ClickHouse.
type ClickHouseResultStore struct {
	ch    *pkgch.Client
	db    *sql.DB
	table string
	l     *applogger.Logger
}

// NewClickHouseResultStore creates the store over an open client.
func NewClickHouseResultStore(ch *pkgch.Client, l *applogger.Logger) *ClickHouseResultStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &ClickHouseResultStore{
		ch:    ch,
		db:    ch.DB(),
		table: ch.Database() + "." + pkgch.ResultsTable,
		l:     l.Component("ch_results"),
	}
}

// Init creates the database and tables if they do not exist.
func (s *ClickHouseResultStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, pkgch.Schema(s.ch.Database()))
}

func (s *ClickHouseResultStore) Store(ctx context.Context, r *models.Result) error {
	return s.StoreBatch(ctx, []*models.Result{r})
}

// StoreBatch inserts rows in multi-row VALUES chunks.
func (s *ClickHouseResultStore) StoreBatch(ctx context.Context, rs []*models.Result) error {
	const chunkSize = 2000
	start := time.Now()
	stored := 0
	for lo := 0; lo < len(rs); lo += chunkSize {
		hi := lo + chunkSize
		if hi > len(rs) {
			hi = len(rs)
		}

		values := make([]string, 0, hi-lo)
		args := make([]interface{}, 0, (hi-lo)*16)
		for _, r := range rs[lo:hi] {
			if r == nil || r.ID == "" {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				r.ID, r.Instrument, r.Timestamp, string(r.Source),
				r.UnderlyingPx, r.OptionPx,
				r.TTE, r.ImpliedVol, r.EstimatedVol, r.FairPrice,
				r.Deviation, r.RollingMean, r.RollingStd, r.ZScore,
				r.Delta, string(r.Signal),
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", s.table, resultColumns, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("insert results failed", applogger.Int("rows", len(values)), applogger.Error(err))
			return fmt.Errorf("insert results: %w", err)
		}
		stored += len(values)
	}
	s.l.Debug("results stored", applogger.Int("rows", stored), applogger.Duration("duration_ms", time.Since(start)))
	return nil
}

// Query returns the newest results first.
func (s *ClickHouseResultStore) Query(ctx context.Context, instrument string, from, to time.Time, limit int) ([]*models.Result, error) {
	q := fmt.Sprintf("SELECT %s FROM %s FINAL WHERE instrument = ? AND ts >= ? AND ts <= ? ORDER BY ts DESC LIMIT ?", resultColumns, s.table)
	rows, err := s.db.QueryContext(ctx, q, instrument, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []*models.Result
	for rows.Next() {
		var (
			r                                     models.Result
			source, signal                        string
			tte, iv, est, fair, dev, mean, std, z sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &r.Instrument, &r.Timestamp, &source, &r.UnderlyingPx, &r.OptionPx,
			&tte, &iv, &est, &fair, &dev, &mean, &std, &z, &r.Delta, &signal); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.Source = models.Source(source)
		r.Signal = models.Signal(signal)
		r.TTE, r.ImpliedVol, r.EstimatedVol, r.FairPrice = nullable(tte), nullable(iv), nullable(est), nullable(fair)
		r.Deviation, r.RollingMean, r.RollingStd, r.ZScore = nullable(dev), nullable(mean), nullable(std), nullable(z)
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *ClickHouseResultStore) Health(ctx context.Context) error {
	return s.ch.Health(ctx)
}

// Close is a no-op; the client is owned by the caller.
func (s *ClickHouseResultStore) Close() error {
	return nil
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return models.Float(v.Float64)
}

var _ domrepo.ResultStorage = (*ClickHouseResultStore)(nil)
