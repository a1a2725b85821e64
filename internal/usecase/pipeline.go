package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"OptArb/internal/domain/models"
	drepo "OptArb/internal/domain/repository"
	"OptArb/internal/domain/service"
	mid "OptArb/internal/middleware"
	"OptArb/pkg/logger"
	"OptArb/pkg/util"
)

// PipelineConfig collects the static parameters of one instrument pipeline.
type PipelineConfig struct {
	Underlying       string
	Analyzer         AnalyzerConfig
	Gate             GateConfig
	Dispatcher       DispatcherConfig
	Eligibility      EligibilityConfig
	History          *drepo.HistoryQuery // nil disables the historical merge
	FetchInterval    time.Duration
	BufferCapacity   int
	SignalBuffer     int
	PositionInterval time.Duration
	SyncInterval     time.Duration
	StaleAfter       time.Duration
}

// PipelineDeps are the external collaborators of a pipeline.
type PipelineDeps struct {
	Quotes    drepo.QuoteSource
	History   drepo.HistoryLoader
	Orders    drepo.OrderEntry
	Account   drepo.AccountState
	Risk      drepo.RiskStore
	Pricer    service.OptionPricer
	Processor *ResultProcessor
	Metrics   drepo.Metrics
}

// Pipeline wires the stages of one instrument together and owns their lifecycle.
type Pipeline struct {
	cfg       PipelineConfig
	buffer    *mid.ObservationBuffer
	ready     *mid.Readiness
	state     *LiveState
	counters  *models.Counters
	results   chan *models.Result
	signals   chan models.RawSignal
	gated     chan models.GatedSignal
	processor *ResultProcessor
	log       *logger.Logger

	fetcher     *LiveFetcher
	merge       *HistoricalMerge
	stage       *AnalyticsStage
	gate        *SignalGate
	dispatcher  *Dispatcher
	positions   *PositionMonitor
	hedge       *HedgeSync
	eligibility *EligibilityChecker

	mu     sync.Mutex
	cancel context.CancelFunc
	now    func() time.Time
}

func NewPipeline(cfg PipelineConfig, deps PipelineDeps, log *logger.Logger) *Pipeline {
	if cfg.SignalBuffer < 1 {
		cfg.SignalBuffer = 64
	}
	if cfg.Analyzer.Location == nil {
		cfg.Analyzer.Location = time.UTC
	}
	p := &Pipeline{
		cfg:       cfg,
		buffer:    mid.NewObservationBuffer(cfg.BufferCapacity, mid.WithBufferMetrics(deps.Metrics)),
		ready:     mid.NewReadiness(),
		state:     NewLiveState(),
		counters:  &models.Counters{},
		results:   make(chan *models.Result, cfg.SignalBuffer),
		signals:   make(chan models.RawSignal, cfg.SignalBuffer),
		gated:     make(chan models.GatedSignal, cfg.SignalBuffer),
		processor: deps.Processor,
		log:       log,
		now:       time.Now,
	}
	instrument := cfg.Analyzer.Instrument

	p.fetcher = NewLiveFetcher(deps.Quotes, p.buffer, cfg.Underlying, instrument,
		cfg.FetchInterval, p.counters, deps.Metrics, log.Component("fetcher"))
	analyzer := NewAnalyzer(cfg.Analyzer, deps.Pricer, p.counters)
	p.stage = NewAnalyticsStage(analyzer, p.buffer, p.ready, p.state, p.results, p.signals,
		deps.Metrics, log.Component("analytics"), WithTerminalHook(p.Stop))

	var loader drepo.HistoryLoader
	var query drepo.HistoryQuery
	if cfg.History != nil && deps.History != nil {
		loader, query = deps.History, *cfg.History
	}
	p.merge = NewHistoricalMerge(loader, p.buffer, p.ready, p.stage, query, p.counters, log.Component("history"))

	p.gate = NewSignalGate(cfg.Gate, p.state, log.Component("gate"))
	p.dispatcher = NewDispatcher(cfg.Dispatcher, deps.Orders, deps.Quotes, deps.Metrics, log.Component("dispatcher"))
	p.positions = NewPositionMonitor(deps.Account, p.state, instrument, cfg.PositionInterval, log.Component("positions"))
	p.hedge = NewHedgeSync(deps.Risk, p.state, instrument, cfg.SyncInterval, cfg.StaleAfter, log.Component("hedge"))
	p.eligibility = NewEligibilityChecker(cfg.Eligibility, deps.Quotes, p.state, log.Component("eligibility"))
	return p
}

// State returns the current live state.
func (p *Pipeline) State() models.LiveState { return p.state.Load() }

// Counters returns a snapshot of the diagnostic counters.
func (p *Pipeline) Counters() models.CounterSnapshot { return p.counters.Snapshot() }

// Ready reports whether the historical merge has completed.
func (p *Pipeline) Ready() bool { return p.ready.IsSet() }

// Stop triggers the orderly shutdown path. Safe to call at any time.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
}

// Run starts every stage and blocks until all of them have exited. Cancellation of
// ctx, the session end and instrument expiry all take the same orderly path: stages
// finish their current item, buffered results are flushed, and a counter report is logged.
func (p *Pipeline) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()
	defer cancel()

	p.log.Info("pipeline starting",
		logger.String("instrument", p.cfg.Analyzer.Instrument),
		logger.String("underlying", p.cfg.Underlying),
		logger.Bool("history", p.cfg.History != nil))

	procDone := make(chan error, 1)
	go func() { procDone <- p.processor.Run(ctx, p.results) }()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.watchSession(gctx) })
	g.Go(func() error { return p.fetcher.Run(gctx) })
	g.Go(func() error { return p.merge.Run(gctx) })
	g.Go(func() error { return p.stage.Run(gctx) })
	g.Go(func() error { return p.gate.Run(gctx, p.signals, p.gated) })
	g.Go(func() error { return p.dispatcher.Run(gctx, p.gated) })
	g.Go(func() error { return p.positions.Run(gctx) })
	g.Go(func() error { return p.hedge.Run(gctx) })
	g.Go(func() error { return p.eligibility.Run(gctx) })

	err := g.Wait()
	p.buffer.Close()
	close(p.results)
	if perr := <-procDone; perr != nil && err == nil {
		err = perr
	}
	p.processor.Close()

	p.report(err)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// watchSession cancels the pipeline once the wall clock passes today's session end.
func (p *Pipeline) watchSession(ctx context.Context) error {
	cfg := p.cfg.Analyzer
	if cfg.SessionEnd <= 0 {
		<-ctx.Done()
		return nil
	}
	now := p.now().In(cfg.Location)
	end := util.StartOfDay(now).Add(cfg.SessionEnd)
	wait := end.Sub(now)
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
	}
	p.log.Info("trading session ended", logger.Time("session_end", end))
	p.Stop()
	return nil
}

func (p *Pipeline) report(err error) {
	c := p.counters.Snapshot()
	st := p.state.Load()
	fields := []logger.Field{
		logger.String("instrument", p.cfg.Analyzer.Instrument),
		logger.Int64("null_data", c.NullData),
		logger.Int64("skipped_by_time", c.SkippedByTime),
		logger.Int64("solver_failure", c.SolverFailure),
		logger.Int64("key_error", c.KeyError),
		logger.Int64("insufficient_window", c.InsufficientWindow),
		logger.Int64("fetch_failure", c.FetchFailure),
		logger.Int64("buffer_drop", c.BufferDrop),
		logger.Int64("buy_signals", c.BuySignals),
		logger.Int64("sell_signals", c.SellSignals),
		logger.Bool("expired", st.Expired),
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		p.log.Error("pipeline stopped with error", append(fields, logger.Error(err))...)
		return
	}
	p.log.Info("pipeline stopped", fields...)
}
