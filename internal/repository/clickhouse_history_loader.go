package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"OptArb/internal/domain/models"
	domrepo "OptArb/internal/domain/repository"
	pkgch "OptArb/pkg/clickhouse"
	applogger "OptArb/pkg/logger"
)

// ClickHouseHistoryLoader reads recorded quotes for both legs and pairs them on equal timestamps.
type ClickHouseHistoryLoader struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

// NewClickHouseHistoryLoader reads from table, or the default quotes table when empty.
func NewClickHouseHistoryLoader(ch *pkgch.Client, table string, l *applogger.Logger) *ClickHouseHistoryLoader {
	if table == "" {
		table = ch.Database() + "." + pkgch.QuotesTable
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &ClickHouseHistoryLoader{db: ch.DB(), table: table, l: l.Component("ch_history")}
}

func (h *ClickHouseHistoryLoader) LoadHistory(ctx context.Context, q domrepo.HistoryQuery) ([]models.Observation, error) {
	start := time.Now()
	const qtpl = `
        SELECT u.ts,
               u.sell_size, u.sell_price, u.buy_price, u.buy_size,
               o.sell_size, o.sell_price, o.buy_price, o.buy_size
        FROM (SELECT ts, sell_size, sell_price, buy_price, buy_size FROM %[1]s WHERE instrument = ? AND ts >= ? AND ts <= ?) AS u
        INNER JOIN (SELECT ts, sell_size, sell_price, buy_price, buy_size FROM %[1]s WHERE instrument = ? AND ts >= ? AND ts <= ?) AS o
        ON u.ts = o.ts
        ORDER BY u.ts ASC
    `
	rows, err := h.db.QueryContext(ctx, fmt.Sprintf(qtpl, h.table),
		q.Underlying, q.From, q.To, q.Option, q.From, q.To)
	if err != nil {
		h.l.Error("history query failed",
			applogger.String("underlying", q.Underlying),
			applogger.String("option", q.Option),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	out := make([]models.Observation, 0, 1024)
	for rows.Next() {
		o := models.Observation{Source: models.SourceHistory}
		if err := rows.Scan(&o.Timestamp,
			&o.Underlying.SellSize, &o.Underlying.SellPrice, &o.Underlying.BuyPrice, &o.Underlying.BuySize,
			&o.Option.SellSize, &o.Option.SellPrice, &o.Option.BuyPrice, &o.Option.BuySize,
		); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	h.l.Info("history loaded",
		applogger.String("underlying", q.Underlying),
		applogger.String("option", q.Option),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

var _ domrepo.HistoryLoader = (*ClickHouseHistoryLoader)(nil)
