package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"OptArb/internal/usecase"
	"OptArb/pkg/config"
	xhttp "OptArb/pkg/http"
	pkgkafka "OptArb/pkg/kafka"
	applogger "OptArb/pkg/logger"
)

// App encapsulates the lifecycle of one process role.
type App struct {
	cfg        *config.Config
	role       string
	log        *applogger.Logger
	pipeline   *usecase.Pipeline
	risk       *usecase.RiskEngine
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	httpServer *xhttp.Server
}

// Option configures an App.
type Option func(*App)

// WithPipeline runs an instrument pipeline. The app exits when it finishes.
func WithPipeline(p *usecase.Pipeline) Option {
	return func(a *App) { a.pipeline = p }
}

// WithRiskEngine runs the cross-process risk aggregation loop.
func WithRiskEngine(e *usecase.RiskEngine) Option {
	return func(a *App) { a.risk = e }
}

// WithConsumer runs a Kafka consumer with the given handler.
func WithConsumer(c *pkgkafka.Consumer, h pkgkafka.MessageHandler) Option {
	return func(a *App) {
		a.consumer = c
		a.kh = h
	}
}

// WithHTTPServer serves the read-only API alongside the role.
func WithHTTPServer(s *xhttp.Server) Option {
	return func(a *App) { a.httpServer = s }
}

// New creates a new App instance for the given role.
func New(cfg *config.Config, role string, log *applogger.Logger, opts ...Option) *App {
	if log == nil {
		log = applogger.Nop()
	}
	a := &App{cfg: cfg, role: role, log: log.Component("app")}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Role returns the role this app was built for.
func (a *App) Role() string { return a.role }

// Run starts the application and blocks until interrupted or until the
// pipeline finishes on its own.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext runs every configured component until ctx is done or one of them exits.
func (a *App) RunContext(ctx context.Context) error {
	if a.pipeline == nil && a.risk == nil && a.consumer == nil {
		return fmt.Errorf("role %q has nothing to run", a.role)
	}

	if a.httpServer != nil {
		if err := a.httpServer.Start(); err != nil {
			a.log.Error("http server start error", applogger.Error(err))
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancel := context.WithCancel(gctx)
	defer cancel()

	if a.pipeline != nil {
		g.Go(func() error {
			// session end and expiry stop the process too
			defer cancel()
			return a.pipeline.Run(runCtx)
		})
	}
	if a.risk != nil {
		g.Go(func() error {
			err := a.risk.Run(runCtx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			cancel()
			_ = g.Wait()
			a.shutdown()
			return fmt.Errorf("kafka consumer: %w", err)
		}
		a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
		g.Go(func() error {
			<-runCtx.Done()
			return nil
		})
	}

	a.log.Info("started", applogger.String("role", a.role), applogger.String("env", a.cfg.Environment))

	err := g.Wait()
	if ctx.Err() != nil {
		a.log.Info("shutdown signal received")
	}
	a.shutdown()
	return err
}

// shutdown stops the inbound surfaces. Infrastructure clients are released by
// the cleanup function returned from the injector.
func (a *App) shutdown() {
	a.log.Info("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.consumer != nil && a.kh != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
		}
	}
	a.log.Info("shutdown complete")
}
