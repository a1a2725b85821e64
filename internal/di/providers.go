package di

import (
	"context"
	"fmt"
	"time"

	"OptArb/internal/domain/repository"
	"OptArb/internal/domain/service"
	"OptArb/internal/handler/api"
	internalrepo "OptArb/internal/repository"
	"OptArb/internal/service/broker"
	"OptArb/internal/services/pricing"
	"OptArb/internal/usecase"
	"OptArb/pkg/cache"
	pkgch "OptArb/pkg/clickhouse"
	"OptArb/pkg/config"
	xhttp "OptArb/pkg/http"
	pkgkafka "OptArb/pkg/kafka"
	applogger "OptArb/pkg/logger"
	"OptArb/pkg/metrics"
	"OptArb/pkg/quant"
	"OptArb/pkg/server"
)

// ProvideKafkaProducer creates a Kafka producer. It returns nil when no brokers are configured.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideLogger builds the process logger. Warn and error lines are folded and
// shipped to Kafka when log collection is enabled and a producer exists.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, func(), error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	if !cfg.Logging.Collect.Enabled || producer == nil {
		return l, func() {}, nil
	}
	l.AddCollector(&applogger.CollectionConfig{
		TimeInterval:   cfg.Logging.Collect.Interval,
		CountThreshold: cfg.Logging.Collect.Threshold,
		Topic:          cfg.Logging.Collect.Topic,
		Publisher:      producer,
	})
	return l, l.RemoveCollector, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and its schema. It returns
// nil when no host is configured.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if cfg.ClickHouse.Host == "" {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, pkgch.Schema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideResultStorage wraps the ClickHouse client as result storage, or nil without one.
func ProvideResultStorage(ch *pkgch.Client, log *applogger.Logger) repository.ResultStorage {
	if ch == nil {
		return nil
	}
	return internalrepo.NewClickHouseResultStore(ch, log)
}

// ProvideResultPublisher streams results to Kafka, or nil without a producer.
func ProvideResultPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.ResultPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaResultPublisher(producer, cfg.Kafka.ResultsTopic)
}

// ProvideHistoryLoader reads the snapshot table, or nil when history is off.
func ProvideHistoryLoader(ch *pkgch.Client, cfg *config.Config, log *applogger.Logger) repository.HistoryLoader {
	if ch == nil || !cfg.History.Enabled {
		return nil
	}
	return internalrepo.NewClickHouseHistoryLoader(ch, cfg.History.Table, log)
}

// ProvideRiskStore selects the shared hedge-state backend.
func ProvideRiskStore(cfg *config.Config) (repository.RiskStore, func(), error) {
	switch cfg.Risk.Store {
	case "file":
		store, err := internalrepo.NewFileRiskStore(cfg.Risk.Dir)
		if err != nil {
			return nil, nil, fmt.Errorf("file risk store: %w", err)
		}
		return store, func() {}, nil
	default:
		rc, err := cache.NewRedisCache(
			cache.WithRedisHost(cfg.Redis.Host),
			cache.WithRedisPort(cfg.Redis.Port),
			cache.WithRedisPassword(cfg.Redis.Password),
			cache.WithRedisDB(cfg.Redis.DB),
			cache.WithRedisPool(cfg.Redis.PoolSize, 2, 30*time.Second),
			cache.WithRedisPrefix(cfg.Redis.Prefix),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("redis risk store: %w", err)
		}
		return internalrepo.NewRedisRiskStore(rc, cfg.Risk.TTL), func() { _ = rc.Close() }, nil
	}
}

// ProvideResultsCache keeps recent /api/results pages in process memory.
func ProvideResultsCache() (cache.Service, func()) {
	mc := cache.NewMemoryCache(cache.WithMemoryCleanup(time.Minute))
	return mc, func() { _ = mc.Close() }
}

// ProvideBrokerClient creates the brokerage client used for quotes, orders and positions.
func ProvideBrokerClient(cfg *config.Config, log *applogger.Logger) *broker.Client {
	return broker.New(broker.Config{
		BaseURL:    cfg.Broker.BaseURL,
		MarketURL:  cfg.Broker.MarketURL,
		Token:      cfg.Broker.Token,
		Timeout:    cfg.Broker.Timeout,
		MaxRetries: cfg.Broker.MaxRetries,
		RetryDelay: cfg.Broker.RetryDelay,
		RatePerSec: cfg.Broker.RatePerSec,
		Burst:      cfg.Broker.Burst,
	}, log)
}

// ProvidePricer builds the Black-Scholes model for the configured contract.
func ProvidePricer(cfg *config.Config) (service.OptionPricer, error) {
	kind, err := quant.ParseKind(cfg.Instrument.Kind)
	if err != nil {
		return nil, fmt.Errorf("instrument.kind: %w", err)
	}
	return pricing.NewBlackScholes(kind, cfg.Instrument.Strike, cfg.Instrument.RiskFreeRate), nil
}

// ProvideResultHub creates the websocket result tap.
func ProvideResultHub(cfg *config.Config, log *applogger.Logger) (*api.ResultHub, func()) {
	hub := api.NewResultHub(log, cfg.Results.Buffer)
	return hub, hub.Close
}

// ProvideResultProcessor routes results to the configured backend and the websocket tap.
func ProvideResultProcessor(
	pub repository.ResultPublisher,
	store repository.ResultStorage,
	m repository.Metrics,
	log *applogger.Logger,
	hub *api.ResultHub,
	cfg *config.Config,
) (*usecase.ResultProcessor, error) {
	switch cfg.Results.Backend {
	case "kafka":
		if pub == nil {
			return nil, fmt.Errorf("results backend kafka needs kafka.brokers")
		}
	case "clickhouse":
		if store == nil {
			return nil, fmt.Errorf("results backend clickhouse needs clickhouse.host")
		}
	}
	var tap usecase.ResultTap
	if hub != nil {
		tap = hub
	}
	return usecase.NewResultProcessor(
		pub,
		store,
		m,
		log.Component("results"),
		tap,
		cfg.Results.Backend,
		cfg.Results.BatchSize,
		cfg.Results.BatchTimeout,
	), nil
}

// ProvidePipeline assembles the instrument pipeline from configuration.
func ProvidePipeline(
	cfg *config.Config,
	client *broker.Client,
	history repository.HistoryLoader,
	risk repository.RiskStore,
	pricer service.OptionPricer,
	processor *usecase.ResultProcessor,
	m repository.Metrics,
	log *applogger.Logger,
) (*usecase.Pipeline, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	expiry, err := cfg.ExpirationDate()
	if err != nil {
		return nil, err
	}
	start, end, err := cfg.SessionWindow()
	if err != nil {
		return nil, err
	}
	instrument := cfg.Instrument.Option

	var query *repository.HistoryQuery
	if cfg.History.Enabled {
		from, to, err := cfg.HistoryRange()
		if err != nil {
			return nil, err
		}
		query = &repository.HistoryQuery{
			Underlying: cfg.Instrument.Underlying,
			Option:     instrument,
			From:       from,
			To:         to,
		}
	}

	pc := usecase.PipelineConfig{
		Underlying: cfg.Instrument.Underlying,
		Analyzer: usecase.AnalyzerConfig{
			Instrument:      instrument,
			Expiration:      expiry,
			Location:        loc,
			SessionStart:    start,
			SessionEnd:      end,
			SmoothingWindow: cfg.Analytics.SmoothingWindow,
			ZWindow:         cfg.Analytics.ZWindow,
			ZThreshold:      cfg.Analytics.ZThreshold,
		},
		Gate: usecase.GateConfig{
			MinDelta:    cfg.Gate.MinDelta,
			NeutralBand: cfg.Gate.NeutralBand,
		},
		Dispatcher: usecase.DispatcherConfig{
			Instrument: instrument,
			BuyOffset:  cfg.Execution.BuyOffset,
			SellOffset: cfg.Execution.SellOffset,
			Notional:   cfg.Execution.Notional,
			MaxRetries: cfg.Execution.MaxRetries,
			Backoff:    cfg.Execution.Backoff,
			DryRun:     !cfg.Execution.Enabled,
		},
		Eligibility: usecase.EligibilityConfig{
			Instrument:       instrument,
			Expiration:       expiry,
			MinRemainingDays: cfg.Eligibility.MinRemainingDays,
			MinVolume:        cfg.Eligibility.MinVolume,
			Interval:         cfg.Eligibility.Interval,
		},
		History:          query,
		FetchInterval:    cfg.Analytics.FetchInterval,
		BufferCapacity:   cfg.Analytics.BufferCapacity,
		SignalBuffer:     cfg.Analytics.SignalBuffer,
		PositionInterval: cfg.Risk.PositionInterval,
		SyncInterval:     cfg.Risk.SyncInterval,
		StaleAfter:       cfg.Risk.StaleAfter,
	}
	deps := usecase.PipelineDeps{
		Quotes:    client,
		History:   history,
		Orders:    client,
		Account:   client,
		Risk:      risk,
		Pricer:    pricer,
		Processor: processor,
		Metrics:   m,
	}
	return usecase.NewPipeline(pc, deps, log.Component("pipeline")), nil
}

// ProvideRiskEngine assembles the group aggregation loop over the static registry.
func ProvideRiskEngine(
	cfg *config.Config,
	client *broker.Client,
	store repository.RiskStore,
	m repository.Metrics,
	log *applogger.Logger,
) (*usecase.RiskEngine, error) {
	ids, err := cfg.RiskInstruments()
	if err != nil {
		return nil, err
	}
	return usecase.NewRiskEngine(usecase.RiskEngineConfig{
		Instruments: ids,
		PrefixLen:   cfg.Risk.PrefixLen,
		NeutralBand: cfg.Risk.NeutralBand,
		Interval:    cfg.Risk.Interval,
		StaleAfter:  cfg.Risk.StaleAfter,
	}, client, store, m, log.Component("risk")), nil
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
// Messages that exhaust their retries are counted under sink_consume.
func ProvideKafkaConsumer(cfg *config.Config, log *applogger.Logger, m repository.Metrics) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.HookFuncs{
		Err: func(context.Context, string, []byte, error) {
			m.RecordError("sink_consume")
		},
	})
	return consumer, nil
}

// ProvideKafkaResultsHandler persists consumed results.
func ProvideKafkaResultsHandler(cfg *config.Config, store repository.ResultStorage, m repository.Metrics) (*usecase.KafkaResultsHandler, error) {
	if store == nil {
		return nil, fmt.Errorf("sink role needs clickhouse.host")
	}
	return usecase.NewKafkaResultsHandler(cfg.Kafka.ResultsTopic, store, m), nil
}

func httpServer(cfg *config.Config, log *applogger.Logger, handlers ...xhttp.Handler) *xhttp.Server {
	if !cfg.Server.Enabled {
		return nil
	}
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(log, handlers,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
	)
}

// ProvidePipelineApp creates the application for the pipeline role.
func ProvidePipelineApp(
	cfg *config.Config,
	log *applogger.Logger,
	pipeline *usecase.Pipeline,
	hub *api.ResultHub,
	results repository.ResultStorage,
	risk repository.RiskStore,
	rc cache.Service,
) *server.App {
	status := api.NewStatusHandler(log, cfg.Instrument.Option, pipeline, nil, results, risk,
		api.WithResultsCache(rc, cfg.Server.ResultsCacheTTL))
	opts := []server.Option{server.WithPipeline(pipeline)}
	if s := httpServer(cfg, log, status, hub); s != nil {
		opts = append(opts, server.WithHTTPServer(s))
	}
	return server.New(cfg, config.RolePipeline, log, opts...)
}

// ProvideRiskApp creates the application for the risk role.
func ProvideRiskApp(
	cfg *config.Config,
	log *applogger.Logger,
	engine *usecase.RiskEngine,
	risk repository.RiskStore,
) *server.App {
	status := api.NewStatusHandler(log, "", nil, engine, nil, risk)
	opts := []server.Option{server.WithRiskEngine(engine)}
	if s := httpServer(cfg, log, status); s != nil {
		opts = append(opts, server.WithHTTPServer(s))
	}
	return server.New(cfg, config.RoleRisk, log, opts...)
}

// ProvideSinkApp creates the application for the sink role.
func ProvideSinkApp(
	cfg *config.Config,
	log *applogger.Logger,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaResultsHandler,
	results repository.ResultStorage,
	rc cache.Service,
) *server.App {
	status := api.NewStatusHandler(log, "", nil, nil, results, nil,
		api.WithResultsCache(rc, cfg.Server.ResultsCacheTTL))
	opts := []server.Option{server.WithConsumer(consumer, kh)}
	if s := httpServer(cfg, log, status); s != nil {
		opts = append(opts, server.WithHTTPServer(s))
	}
	return server.New(cfg, config.RoleSink, log, opts...)
}
