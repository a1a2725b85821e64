package clickhouse

import "fmt"

// Table names inside the configured database.
const (
	ResultsTable = "results"
	QuotesTable  = "quotes"
)

// Schema returns the DDL for the results and quote history tables.
func Schema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    id String,
    instrument LowCardinality(String),
    ts DateTime64(3),
    source LowCardinality(String),
    underlying_mid Float64,
    option_mid Float64,
    tte Nullable(Float64),
    implied_vol Nullable(Float64),
    estimated_vol Nullable(Float64),
    fair_price Nullable(Float64),
    deviation Nullable(Float64),
    rolling_mean Nullable(Float64),
    rolling_std Nullable(Float64),
    z_score Nullable(Float64),
    delta Float64,
    signal LowCardinality(String)
) ENGINE = ReplacingMergeTree
ORDER BY (instrument, ts, id)`, database, ResultsTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    ts DateTime64(3),
    instrument LowCardinality(String),
    sell_size Float64,
    sell_price Float64,
    buy_price Float64,
    buy_size Float64
) ENGINE = ReplacingMergeTree
ORDER BY (instrument, ts)`, database, QuotesTable),
	}
}
