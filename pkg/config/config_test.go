package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pipelineYAML = `
instrument:
  underlying: IRO1AHRM0001
  option: IRO9AHRM2501
  kind: call
  strike: 12000
  expiration: 1404-06-30
  timezone: UTC
broker:
  base_url: http://broker.local/api
  market_url: http://market.local
kafka:
  brokers: [localhost:9092]
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte(pipelineYAML))
	require.NoError(t, err)

	assert.Equal(t, "development", c.Environment)
	assert.Equal(t, "info", c.Logging.Level)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 900, c.Analytics.SmoothingWindow)
	assert.Equal(t, 900, c.Analytics.ZWindow)
	assert.InDelta(t, 1.5, c.Analytics.ZThreshold, 1e-12)
	assert.Equal(t, 10, c.Analytics.BufferCapacity)
	assert.Equal(t, time.Second, c.Analytics.FetchInterval)
	assert.Equal(t, "09:15:00", c.Session.Start)
	assert.Equal(t, 7, c.Execution.MaxRetries)
	assert.Equal(t, 14, c.Eligibility.MinRemainingDays)
	assert.Equal(t, "redis", c.Risk.Store)
	assert.Equal(t, 8, c.Risk.PrefixLen)
	assert.Equal(t, "kafka", c.Results.Backend)
	assert.Equal(t, "optarb.results", c.Kafka.ResultsTopic)
	assert.Equal(t, 5, c.Broker.Burst)

	// explicit values win over defaults
	assert.Equal(t, "UTC", c.Instrument.Timezone)
	assert.Equal(t, []string{"localhost:9092"}, c.Kafka.Brokers)
}

func TestValidatePipeline(t *testing.T) {
	c, err := Parse([]byte(pipelineYAML))
	require.NoError(t, err)
	require.NoError(t, c.Validate(RolePipeline))

	exp, err := c.ExpirationDate()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.September, 21, 0, 0, 0, 0, time.UTC), exp)

	start, end, err := c.SessionWindow()
	require.NoError(t, err)
	assert.Equal(t, 9*time.Hour+15*time.Minute, start)
	assert.Equal(t, 12*time.Hour+30*time.Minute, end)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(c *Config){
		"missing option":      func(c *Config) { c.Instrument.Option = "" },
		"non-positive strike": func(c *Config) { c.Instrument.Strike = 0 },
		"bad kind":            func(c *Config) { c.Instrument.Kind = "straddle" },
		"bad expiration":      func(c *Config) { c.Instrument.Expiration = "30/06/1404" },
		"inverted session":    func(c *Config) { c.Session.Start, c.Session.End = "13:00", "12:00" },
		"history without range": func(c *Config) {
			c.History.Enabled = true
			c.ClickHouse.Host = "localhost"
		},
		"kafka backend without brokers": func(c *Config) { c.Kafka.Brokers = nil },
		"unknown backend":               func(c *Config) { c.Results.Backend = "s3" },
		"z window too small":            func(c *Config) { c.Analytics.ZWindow = 1 },
		"unknown timezone":              func(c *Config) { c.Instrument.Timezone = "Mars/Olympus" },
		"missing broker":                func(c *Config) { c.Broker.MarketURL = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c, err := Parse([]byte(pipelineYAML))
			require.NoError(t, err)
			mutate(c)
			assert.Error(t, c.Validate(RolePipeline))
		})
	}
}

func TestValidateRoles(t *testing.T) {
	c, err := Parse([]byte(pipelineYAML))
	require.NoError(t, err)

	assert.Error(t, c.Validate("collector"))

	// risk needs a registry
	assert.Error(t, c.Validate(RoleRisk))
	c.Risk.Instruments = []string{"IRO9AHRM2501", "IRO9AHRM2502"}
	assert.NoError(t, c.Validate(RoleRisk))

	// sink needs clickhouse
	assert.Error(t, c.Validate(RoleSink))
	c.ClickHouse.Host = "localhost"
	assert.NoError(t, c.Validate(RoleSink))
}

func TestRiskInstrumentsMergesRegistryFile(t *testing.T) {
	dir := t.TempDir()
	c, err := Parse([]byte(pipelineYAML))
	require.NoError(t, err)
	c.Risk.Instruments = []string{"A1", " B2 ", ""}
	c.Risk.RegistryFile = writeFile(t, dir, "registry.json", `["B2","C3"]`)

	ids, err := c.RiskInstruments()
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "B2", "C3"}, ids)

	c.Risk.RegistryFile = writeFile(t, dir, "broken.json", `{`)
	_, err = c.RiskInstruments()
	assert.Error(t, err)
}

func TestHistoryRangeCoversLastDay(t *testing.T) {
	c, err := Parse([]byte(pipelineYAML))
	require.NoError(t, err)
	c.History.From = "2025-01-01"
	c.History.To = "2025-01-03"

	from, to, err := c.HistoryRange()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2025, 1, 3, 23, 59, 59, 999999999, time.UTC), to)
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", pipelineYAML)
	t.Setenv("OPTARB_OPTION", "IRO9AHRM2599")
	t.Setenv("OPTARB_STRIKE", "15000")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("RESULTS_BACKEND", "log")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "IRO9AHRM2599", c.Instrument.Option)
	assert.InDelta(t, 15000, c.Instrument.Strike, 1e-9)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "log", c.Results.Backend)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
