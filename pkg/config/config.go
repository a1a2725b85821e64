package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"OptArb/pkg/quant"
	"OptArb/pkg/util"
)

// Roles the binary can run as.
const (
	RolePipeline = "pipeline"
	RoleRisk     = "risk"
	RoleSink     = "sink"
)

type Config struct {
	Environment string            `yaml:"environment" default:"development" validate:"oneof=development staging production test"`
	Logging     LoggingConfig     `yaml:"logging"`
	Server      ServerConfig      `yaml:"server"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Instrument  InstrumentConfig  `yaml:"instrument"`
	Session     SessionConfig     `yaml:"session"`
	Analytics   AnalyticsConfig   `yaml:"analytics"`
	History     HistoryConfig     `yaml:"history"`
	Gate        GateConfig        `yaml:"gate"`
	Execution   ExecutionConfig   `yaml:"execution"`
	Eligibility EligibilityConfig `yaml:"eligibility"`
	Risk        RiskConfig        `yaml:"risk"`
	Results     ResultsConfig     `yaml:"results"`
	Broker      BrokerConfig      `yaml:"broker"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	ClickHouse  ClickHouseConfig  `yaml:"clickhouse"`
	Redis       RedisConfig       `yaml:"redis"`
}

type LoggingConfig struct {
	Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format     string `yaml:"format" default:"console" validate:"oneof=json console"`
	Output     string `yaml:"output" default:"stdout"`
	TimeFormat string `yaml:"time_format"`
	Collect    struct {
		Enabled   bool          `yaml:"enabled"`
		Topic     string        `yaml:"topic" default:"optarb.logs"`
		Interval  time.Duration `yaml:"interval" default:"30s"`
		Threshold int           `yaml:"threshold" default:"100"`
	} `yaml:"collect"`
}

type ServerConfig struct {
	Enabled         bool          `yaml:"enabled" default:"true"`
	Port            int           `yaml:"port" default:"8080" validate:"gte=0,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	ResultsCacheTTL time.Duration `yaml:"results_cache_ttl" default:"2s"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

// InstrumentConfig describes the single contract one pipeline trades.
type InstrumentConfig struct {
	Underlying   string  `yaml:"underlying"`
	Option       string  `yaml:"option"`
	Kind         string  `yaml:"kind" default:"call"`
	Strike       float64 `yaml:"strike" validate:"gte=0"`
	Expiration   string  `yaml:"expiration"` // YYYY-MM-DD, Jalali or Gregorian
	RiskFreeRate float64 `yaml:"risk_free_rate" default:"0.3"`
	Timezone     string  `yaml:"timezone" default:"Asia/Tehran"`
}

type SessionConfig struct {
	Start string `yaml:"start" default:"09:15:00"`
	End   string `yaml:"end" default:"12:30:00"`
}

type AnalyticsConfig struct {
	SmoothingWindow int           `yaml:"smoothing_window" default:"900" validate:"gte=1"`
	ZWindow         int           `yaml:"z_window" default:"900" validate:"gte=2"`
	ZThreshold      float64       `yaml:"z_threshold" default:"1.5" validate:"gt=0"`
	BufferCapacity  int           `yaml:"buffer_capacity" default:"10" validate:"gte=1"`
	FetchInterval   time.Duration `yaml:"fetch_interval" default:"1s"`
	SignalBuffer    int           `yaml:"signal_buffer" default:"64" validate:"gte=1"`
}

type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	From    string `yaml:"from"`
	To      string `yaml:"to"`
	Table   string `yaml:"table" default:"optarb.quote_history"`
}

type GateConfig struct {
	MinDelta    float64 `yaml:"min_delta" default:"0.1" validate:"gte=0"`
	NeutralBand float64 `yaml:"neutral_band" validate:"gte=0"`
}

type ExecutionConfig struct {
	Enabled    bool          `yaml:"enabled" default:"true"`
	BuyOffset  float64       `yaml:"buy_offset" default:"-1"`
	SellOffset float64       `yaml:"sell_offset" default:"1"`
	Notional   float64       `yaml:"notional" default:"1000000" validate:"gt=0"`
	MaxRetries int           `yaml:"max_retries" default:"7" validate:"gte=1"`
	Backoff    time.Duration `yaml:"backoff" default:"1s"`
}

type EligibilityConfig struct {
	MinRemainingDays int           `yaml:"min_remaining_days" default:"14"`
	MinVolume        float64       `yaml:"min_volume" default:"40000"`
	Interval         time.Duration `yaml:"interval" default:"60s"`
}

type RiskConfig struct {
	Instruments      []string      `yaml:"instruments"`
	RegistryFile     string        `yaml:"registry_file"`
	PrefixLen        int           `yaml:"prefix_len" default:"8" validate:"gte=1"`
	NeutralBand      float64       `yaml:"neutral_band" default:"0.1" validate:"gte=0"`
	Interval         time.Duration `yaml:"interval" default:"1s"`
	StaleAfter       time.Duration `yaml:"stale_after" default:"10s"`
	Store            string        `yaml:"store" default:"redis" validate:"oneof=redis file"`
	Dir              string        `yaml:"dir" default:"risk_files"`
	TTL              time.Duration `yaml:"ttl" default:"10m"`
	SyncInterval     time.Duration `yaml:"sync_interval" default:"1s"`
	PositionInterval time.Duration `yaml:"position_interval" default:"1s"`
}

type ResultsConfig struct {
	Backend      string        `yaml:"backend" default:"kafka" validate:"oneof=kafka clickhouse log"`
	BatchSize    int           `yaml:"batch_size" default:"50" validate:"gte=1"`
	BatchTimeout time.Duration `yaml:"batch_timeout" default:"2s"`
	Buffer       int           `yaml:"buffer" default:"256" validate:"gte=1"`
}

type BrokerConfig struct {
	BaseURL    string        `yaml:"base_url"`
	MarketURL  string        `yaml:"market_url"`
	Token      string        `yaml:"token"`
	Timeout    time.Duration `yaml:"timeout" default:"10s"`
	MaxRetries int           `yaml:"max_retries" default:"3" validate:"gte=1"`
	RetryDelay time.Duration `yaml:"retry_delay" default:"500ms"`
	RatePerSec float64       `yaml:"rate_per_sec" default:"5"`
	Burst      int           `yaml:"burst" default:"5" validate:"gte=1"`
}

type KafkaConfig struct {
	Brokers      []string `yaml:"brokers"`
	ResultsTopic string   `yaml:"results_topic" default:"optarb.results"`
	RequiredAcks int      `yaml:"required_acks" default:"-1"`
	Compression  string   `yaml:"compression" default:"snappy" validate:"oneof=gzip snappy lz4 zstd"`
	Producer     struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		Linger       time.Duration `yaml:"linger" default:"200ms"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		Async        bool          `yaml:"async"`
	} `yaml:"producer"`
	Consumer struct {
		GroupID    string        `yaml:"group_id" default:"optarb-sink"`
		Workers    int           `yaml:"workers" default:"2"`
		BufferSize int           `yaml:"buffer_size" default:"100"`
		RetryMax   int           `yaml:"retry_max" default:"3"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
		DLQTopic   string        `yaml:"dlq_topic"`
		MinBytes   int           `yaml:"min_bytes" default:"1"`
		MaxBytes   int           `yaml:"max_bytes" default:"10000000"`
	} `yaml:"consumer"`
}

type ClickHouseConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"optarb"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
}

type RedisConfig struct {
	Host     string `yaml:"host" default:"localhost"`
	Port     int    `yaml:"port" default:"6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix" default:"optarb"`
	PoolSize int    `yaml:"pool_size" default:"10"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file, filling defaults first.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes into a Config with defaults applied.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads an optional .env file, then the YAML config, then applies environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv()
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("OPTARB_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("OPTARB_UNDERLYING"); v != "" {
		c.Instrument.Underlying = v
	}
	if v := os.Getenv("OPTARB_OPTION"); v != "" {
		c.Instrument.Option = v
	}
	if v := os.Getenv("OPTARB_STRIKE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Instrument.Strike = f
		}
	}
	if v := os.Getenv("OPTARB_EXPIRATION"); v != "" {
		c.Instrument.Expiration = v
	}
	if v := os.Getenv("BROKER_TOKEN"); v != "" {
		c.Broker.Token = v
	}
	if v := os.Getenv("RESULTS_BACKEND"); v != "" {
		c.Results.Backend = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
}

// Validate checks struct tags and the cross-field rules for the given role.
func (c *Config) Validate(role string) error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if c.Results.Backend == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when results.backend is kafka")
	}
	if c.Risk.Store == "redis" && c.Redis.Host == "" {
		return fmt.Errorf("redis.host is required when risk.store is redis")
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	switch role {
	case RolePipeline:
		return c.validatePipeline()
	case RoleRisk:
		ids, err := c.RiskInstruments()
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return fmt.Errorf("risk.instruments or risk.registry_file must list at least one instrument")
		}
		if c.Broker.BaseURL == "" {
			return fmt.Errorf("broker.base_url is required for the risk role")
		}
	case RoleSink:
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty for the sink role")
		}
		if c.ClickHouse.Host == "" {
			return fmt.Errorf("clickhouse.host is required for the sink role")
		}
	default:
		return fmt.Errorf("unknown role %q", role)
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Instrument.Underlying == "" || c.Instrument.Option == "" {
		return fmt.Errorf("instrument.underlying and instrument.option are required")
	}
	if c.Instrument.Strike <= 0 {
		return fmt.Errorf("instrument.strike must be positive")
	}
	if _, err := quant.ParseKind(c.Instrument.Kind); err != nil {
		return fmt.Errorf("instrument.kind: %w", err)
	}
	if _, err := c.ExpirationDate(); err != nil {
		return err
	}
	start, end, err := c.SessionWindow()
	if err != nil {
		return err
	}
	if start >= end {
		return fmt.Errorf("session.start must be before session.end")
	}
	if c.History.Enabled {
		if c.History.From == "" || c.History.To == "" {
			return fmt.Errorf("history.from and history.to are required when history is enabled")
		}
		if c.ClickHouse.Host == "" {
			return fmt.Errorf("clickhouse.host is required when history is enabled")
		}
	}
	if c.Broker.BaseURL == "" || c.Broker.MarketURL == "" {
		return fmt.Errorf("broker.base_url and broker.market_url are required")
	}
	return nil
}

// Location returns the exchange timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Instrument.Timezone)
	if err != nil {
		return nil, fmt.Errorf("instrument.timezone: %w", err)
	}
	return loc, nil
}

// ExpirationDate parses the instrument expiration at midnight exchange time.
func (c *Config) ExpirationDate() (time.Time, error) {
	loc, err := c.Location()
	if err != nil {
		return time.Time{}, err
	}
	t, err := util.ParseDate(c.Instrument.Expiration, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("instrument.expiration: %w", err)
	}
	return t, nil
}

// SessionWindow returns the trading session bounds as offsets from midnight.
func (c *Config) SessionWindow() (time.Duration, time.Duration, error) {
	start, err := util.ParseClock(c.Session.Start)
	if err != nil {
		return 0, 0, fmt.Errorf("session.start: %w", err)
	}
	end, err := util.ParseClock(c.Session.End)
	if err != nil {
		return 0, 0, fmt.Errorf("session.end: %w", err)
	}
	return start, end, nil
}

// HistoryRange parses history.from/to at exchange midnight; `to` is extended to the end of its day.
func (c *Config) HistoryRange() (time.Time, time.Time, error) {
	loc, err := c.Location()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	from, err := util.ParseDate(c.History.From, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("history.from: %w", err)
	}
	to, err := util.ParseDate(c.History.To, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("history.to: %w", err)
	}
	return from, to.Add(24*time.Hour - time.Nanosecond), nil
}

// RiskInstruments returns the static registry: inline ids plus the JSON list in registry_file.
func (c *Config) RiskInstruments() ([]string, error) {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(c.Risk.Instruments))
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range c.Risk.Instruments {
		add(id)
	}
	if c.Risk.RegistryFile != "" {
		b, err := os.ReadFile(c.Risk.RegistryFile)
		if err != nil {
			return nil, fmt.Errorf("risk.registry_file: %w", err)
		}
		var ids []string
		if err := json.Unmarshal(b, &ids); err != nil {
			return nil, fmt.Errorf("risk.registry_file: %w", err)
		}
		for _, id := range ids {
			add(id)
		}
	}
	return out, nil
}
