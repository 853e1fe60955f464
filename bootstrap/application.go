// Package bootstrap provides application implementation
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/najoast/worldex/config"
	"github.com/najoast/worldex/core"
	"github.com/najoast/worldex/logging"
	"github.com/najoast/worldex/world"
)

// WorldSpec supplies the code behind a configured world. Every hook is
// optional.
type WorldSpec struct {
	// Schema lists the components the world may transfer
	Schema *world.Schema

	// Setup runs before the router starts. Messages sent here are routed
	// once the exchange is running.
	Setup func(w *world.World, ch *core.Channel) error

	// Tick runs once per tick for polling worlds
	Tick core.TickFunc

	// Teardown runs on the worker goroutine after its loop has ended
	Teardown func(w *world.World)
}

// Option configures an Application
type Option func(*Application)

// WithLogger sets the logger and the level that config reloads adjust.
func WithLogger(logger *zap.Logger, level zap.AtomicLevel) Option {
	return func(app *Application) {
		app.logger = logger
		app.level = level
	}
}

// WithConfigFile watches path and applies log level changes while running.
func WithConfigFile(path string) Option {
	return func(app *Application) {
		app.configFile = path
	}
}

// WithWorld attaches spec to the configured world name.
func WithWorld(name string, spec WorldSpec) Option {
	return func(app *Application) {
		app.specs[name] = spec
	}
}

// WithFailureHandler receives every routing failure reported by the router.
func WithFailureHandler(handler func(*core.RoutingError)) Option {
	return func(app *Application) {
		app.onFailure = handler
	}
}

// WithRegistry sets the prometheus registry metrics are registered with.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(app *Application) {
		app.registry = registry
	}
}

// Application runs one exchange with a worker per configured world.
type Application struct {
	cfg        *config.Config
	configFile string

	logger *zap.Logger
	level  zap.AtomicLevel

	registry *prometheus.Registry
	metrics  *core.Metrics

	lifecycle *DefaultLifecycleManager
	exchange  *core.Exchange
	router    *RouterService
	monitor   *MonitorService
	worlds    []*WorldService

	specs     map[string]WorldSpec
	onFailure func(*core.RoutingError)

	// mutex protects concurrent access
	mutex sync.Mutex

	// ran is set once Run has been called
	ran bool
}

// NewApplication creates an application for cfg. Specs given with WithWorld
// must name configured worlds; configured worlds without a spec get an empty
// schema and no hooks.
func NewApplication(cfg *config.Config, opts ...Option) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrConfigValidateError, err)
	}

	app := &Application{
		cfg:   cfg,
		specs: make(map[string]WorldSpec),
	}
	for _, opt := range opts {
		opt(app)
	}

	for name := range app.specs {
		if _, ok := cfg.World(name); !ok {
			return nil, fmt.Errorf("world %s is not configured", name)
		}
	}

	if app.logger == nil {
		logger, level, err := logging.New(cfg.Log)
		if err != nil {
			return nil, err
		}
		app.logger, app.level = logger, level
	}
	if app.level == (zap.AtomicLevel{}) {
		app.level = zap.NewAtomicLevel()
	}
	app.logger = app.logger.With(zap.String("app", cfg.App.Name))

	if err := app.initMetrics(); err != nil {
		return nil, err
	}

	app.lifecycle = NewLifecycleManager(app.logger)
	return app, nil
}

func (app *Application) initMetrics() error {
	if !app.cfg.Monitor.Enabled {
		return nil
	}

	if app.registry == nil {
		app.registry = prometheus.NewRegistry()
		app.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	app.metrics = core.NewMetrics(app.cfg.Monitor.Namespace)
	if err := app.metrics.Register(app.registry); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	return nil
}

// build registers every configured world with a fresh exchange and
// registers the services with the lifecycle manager. Callers hold the mutex.
func (app *Application) build() error {
	app.exchange = core.NewExchange(core.ExchangeOptions{
		Logger:        app.logger,
		Metrics:       app.metrics,
		FailureBuffer: app.cfg.Exchange.FailureBuffer,
	})
	app.router = NewRouterService(app.exchange, app.logger)
	if err := app.lifecycle.Register(app.router); err != nil {
		return err
	}

	for _, wc := range app.cfg.Exchange.Worlds {
		svc, err := app.buildWorld(wc)
		if err != nil {
			return err
		}
		if err := app.lifecycle.Register(svc, ExchangeServiceName); err != nil {
			return err
		}
		app.worlds = append(app.worlds, svc)
	}

	if app.cfg.Monitor.Enabled && app.cfg.Monitor.HTTP.Enabled {
		app.monitor = NewMonitorService(app.cfg.Monitor.HTTP, app.registry, app.lifecycle.Health, app.logger)
		if err := app.lifecycle.Register(app.monitor, ExchangeServiceName); err != nil {
			return err
		}
	}

	if app.configFile != "" {
		watcher, err := NewConfigWatcherService(app.configFile, app.level, app.logger)
		if err != nil {
			return err
		}
		if err := app.lifecycle.Register(watcher); err != nil {
			return err
		}
	}

	return nil
}

func (app *Application) buildWorld(wc config.WorldConfig) (*WorldService, error) {
	ch, err := app.exchange.Register(core.WorldID(wc.Name))
	if err != nil {
		return nil, err
	}

	spec := app.specs[wc.Name]
	schema := spec.Schema
	if schema == nil {
		schema = world.NewSchema()
	}
	w := world.New(wc.Name, schema)

	if spec.Setup != nil {
		if err := spec.Setup(w, ch); err != nil {
			return nil, &ApplicationError{Operation: "setup", Service: WorldServiceName(ch.ID()), Err: err}
		}
	}

	worker, err := core.NewWorker(w, ch, core.WorkerOptions{
		Mode:         core.WorkerMode(wc.Mode),
		TickInterval: wc.TickInterval,
		ErrorPolicy:  core.ErrorPolicy(wc.ErrorPolicy),
		Tick:         spec.Tick,
		Logger:       app.logger,
		Metrics:      app.metrics,
	})
	if err != nil {
		return nil, err
	}
	return newWorldService(worker, spec), nil
}

// Run starts every service, runs the workers until ctx is done or a worker
// fails, then stops the services within the configured shutdown timeout.
// An application runs once.
func (app *Application) Run(ctx context.Context) error {
	app.mutex.Lock()
	if app.ran {
		app.mutex.Unlock()
		return fmt.Errorf("application has already run")
	}
	app.ran = true
	err := app.build()
	app.mutex.Unlock()
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	if err := app.lifecycle.Start(ctx); err != nil {
		return fmt.Errorf("failed to start services: %w", err)
	}
	app.logger.Info("application started",
		zap.Strings("worlds", app.cfg.WorldNames()),
		zap.String("environment", app.cfg.App.Environment.String()),
	)

	runErr := app.runWorlds(ctx)
	if runErr != nil {
		app.logger.Error("application stopped on error", zap.Error(runErr))
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), app.cfg.Exchange.ShutdownTimeout)
	defer cancel()
	if err := app.lifecycle.Stop(stopCtx); err != nil {
		return errors.Join(runErr, fmt.Errorf("failed to stop services: %w", err))
	}

	app.logger.Info("application stopped")
	return runErr
}

// runWorlds runs one worker per world plus the failure drain. The first
// worker error cancels the others.
func (app *Application) runWorlds(ctx context.Context) error {
	router := app.router.Router()

	g, gctx := errgroup.WithContext(ctx)
	for _, svc := range app.worlds {
		g.Go(func() error {
			return svc.run(gctx)
		})
	}

	workersDone := make(chan struct{})
	failuresDone := make(chan struct{})
	go func() {
		defer close(failuresDone)
		app.drainFailures(router, workersDone)
	}()

	err := g.Wait()
	close(workersDone)
	<-failuresDone
	return err
}

func (app *Application) drainFailures(router *core.Router, done <-chan struct{}) {
	for {
		select {
		case failure := <-router.Failures():
			if app.onFailure != nil {
				app.onFailure(failure)
			}
		case <-done:
			return
		}
	}
}

// Health returns the health of every service.
func (app *Application) Health(ctx context.Context) map[string]HealthStatus {
	return app.lifecycle.Health(ctx)
}

// Exchange returns the exchange, or nil before Run.
func (app *Application) Exchange() *core.Exchange {
	app.mutex.Lock()
	defer app.mutex.Unlock()
	return app.exchange
}

// Router returns the running router, or nil before the services start.
func (app *Application) Router() *core.Router {
	app.mutex.Lock()
	svc := app.router
	app.mutex.Unlock()
	if svc == nil {
		return nil
	}
	return svc.Router()
}

// Monitor returns the monitoring service when the HTTP server is enabled.
func (app *Application) Monitor() *MonitorService {
	app.mutex.Lock()
	defer app.mutex.Unlock()
	return app.monitor
}

// Lifecycle returns the lifecycle manager.
func (app *Application) Lifecycle() *DefaultLifecycleManager {
	return app.lifecycle
}

// Logger returns the application logger.
func (app *Application) Logger() *zap.Logger {
	return app.logger
}

// Config returns the configuration the application was built from.
func (app *Application) Config() *config.Config {
	return app.cfg
}
