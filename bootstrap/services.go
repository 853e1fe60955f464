package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/najoast/worldex/config"
	"github.com/najoast/worldex/core"
	"github.com/najoast/worldex/logging"
)

// ExchangeServiceName is the lifecycle name of the router service. Every
// world service depends on it.
const ExchangeServiceName = "exchange"

// WorldServiceName returns the lifecycle name of a world service.
func WorldServiceName(id core.WorldID) string {
	return "world:" + string(id)
}

// RouterService starts and stops the exchange router.
type RouterService struct {
	exchange *core.Exchange
	logger   *zap.Logger

	mu     sync.RWMutex
	router *core.Router
}

// NewRouterService creates a service that starts ex when started.
func NewRouterService(ex *core.Exchange, logger *zap.Logger) *RouterService {
	return &RouterService{exchange: ex, logger: logger}
}

// Name returns the service name
func (s *RouterService) Name() string {
	return ExchangeServiceName
}

// Start freezes the exchange and starts routing. The router outlives ctx,
// which only bounds the start call.
func (s *RouterService) Start(ctx context.Context) error {
	r, err := s.exchange.Start(context.WithoutCancel(ctx))
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.router = r
	s.mu.Unlock()
	return nil
}

// Stop stops the router and waits for every channel to be disconnected.
func (s *RouterService) Stop(ctx context.Context) error {
	r := s.Router()
	if r == nil {
		return nil
	}
	r.Stop()
	return r.Wait(ctx)
}

// Router returns the running router, or nil before Start.
func (s *RouterService) Router() *core.Router {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.router
}

// Health reports router statistics.
func (s *RouterService) Health(ctx context.Context) (HealthStatus, error) {
	r := s.Router()
	if r == nil {
		return HealthStatus{State: HealthStarting, LastCheck: time.Now()}, nil
	}

	stats := r.Stats()
	status := HealthStatus{
		State:     HealthHealthy,
		LastCheck: time.Now(),
		Data: map[string]interface{}{
			"worlds":  stats.Worlds,
			"live":    stats.Live,
			"routed":  stats.Routed,
			"dropped": stats.Dropped,
			"uptime":  time.Since(stats.StartedAt).String(),
		},
	}

	select {
	case <-r.Done():
		status.State = HealthStopped
	default:
	}
	return status, nil
}

// WorldService owns one world and its worker. The worker loop itself is run
// by the Application so that its error can end the run.
type WorldService struct {
	worker *core.Worker
	spec   WorldSpec

	mu      sync.RWMutex
	running bool
}

func newWorldService(worker *core.Worker, spec WorldSpec) *WorldService {
	return &WorldService{worker: worker, spec: spec}
}

// Name returns the service name
func (s *WorldService) Name() string {
	return WorldServiceName(s.worker.Channel().ID())
}

// Start marks the world ready.
func (s *WorldService) Start(ctx context.Context) error {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	return nil
}

// Stop disconnects the world from the exchange.
func (s *WorldService) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.worker.Channel().Close()
	return nil
}

// Health reports worker statistics.
func (s *WorldService) Health(ctx context.Context) (HealthStatus, error) {
	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()

	stats := s.worker.Stats()
	status := HealthStatus{
		State:     HealthHealthy,
		LastCheck: time.Now(),
		Data: map[string]interface{}{
			"executed": stats.Executed,
			"failed":   stats.Failed,
			"pending":  stats.Pending,
		},
	}

	switch {
	case !running:
		status.State = HealthStopped
	case !s.worker.Channel().Connected():
		status.State = HealthUnhealthy
		status.Message = "disconnected from exchange"
	}
	return status, nil
}

// run executes the worker loop and then the world's teardown hook on the
// same goroutine.
func (s *WorldService) run(ctx context.Context) error {
	err := s.worker.Run(ctx)
	if s.spec.Teardown != nil {
		s.spec.Teardown(s.worker.World())
	}
	if err != nil {
		return &ApplicationError{Operation: "run", Service: s.Name(), Err: err}
	}
	return nil
}

// MonitorService serves prometheus metrics and service health over HTTP.
type MonitorService struct {
	cfg      config.HTTPMonitorConfig
	gatherer prometheus.Gatherer
	health   func(ctx context.Context) map[string]HealthStatus
	logger   *zap.Logger

	mu     sync.Mutex
	server *http.Server
	addr   net.Addr
	done   chan struct{}
}

// NewMonitorService creates the monitoring HTTP service.
func NewMonitorService(cfg config.HTTPMonitorConfig, gatherer prometheus.Gatherer, health func(ctx context.Context) map[string]HealthStatus, logger *zap.Logger) *MonitorService {
	return &MonitorService{
		cfg:      cfg,
		gatherer: gatherer,
		health:   health,
		logger:   logger,
	}
}

// Name returns the service name
func (s *MonitorService) Name() string {
	return "monitor"
}

// Start listens on the configured address and serves in the background.
func (s *MonitorService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("monitor already running")
	}

	mux := http.NewServeMux()
	mux.Handle(s.cfg.MetricsPath, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc(s.cfg.HealthPath, s.serveHealth)

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.ListenAddr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddr(), err)
	}

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.addr = ln.Addr()
	s.done = make(chan struct{})

	server, done := s.server, s.done
	go func() {
		defer close(done)
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("monitor server failed", zap.Error(err))
		}
	}()

	s.logger.Info("monitor listening",
		zap.Stringer("addr", s.addr),
		zap.String("metrics", s.cfg.MetricsPath),
		zap.String("health", s.cfg.HealthPath),
	)
	return nil
}

// Stop shuts the HTTP server down.
func (s *MonitorService) Stop(ctx context.Context) error {
	s.mu.Lock()
	server, done := s.server, s.done
	s.server = nil
	s.mu.Unlock()

	if server == nil {
		return nil
	}
	err := server.Shutdown(ctx)
	<-done
	return err
}

// Addr returns the address the server listens on, or nil before Start.
func (s *MonitorService) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Health reports whether the server is running.
func (s *MonitorService) Health(ctx context.Context) (HealthStatus, error) {
	s.mu.Lock()
	running := s.server != nil
	s.mu.Unlock()

	if !running {
		return HealthStatus{State: HealthStopped, LastCheck: time.Now()}, nil
	}
	return HealthStatus{State: HealthHealthy, LastCheck: time.Now()}, nil
}

func (s *MonitorService) serveHealth(w http.ResponseWriter, r *http.Request) {
	health := s.health(r.Context())

	code := http.StatusOK
	for _, status := range health {
		if status.State == HealthUnhealthy {
			code = http.StatusServiceUnavailable
			break
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.Warn("failed to encode health", zap.Error(err))
	}
}

// ConfigWatcherService reloads the configuration file and applies what can
// change at runtime. Only the log level is applied live; the world set is
// fixed once the exchange has started.
type ConfigWatcherService struct {
	watcher *config.Watcher
	level   zap.AtomicLevel
	logger  *zap.Logger
}

// NewConfigWatcherService creates a watcher service for file.
func NewConfigWatcherService(file string, level zap.AtomicLevel, logger *zap.Logger) (*ConfigWatcherService, error) {
	watcher, err := config.NewWatcher(file, config.NewLoader(), logger)
	if err != nil {
		return nil, err
	}

	s := &ConfigWatcherService{
		watcher: watcher,
		level:   level,
		logger:  logger.Named("reload"),
	}
	watcher.OnConfigChange(s.apply)
	return s, nil
}

// Name returns the service name
func (s *ConfigWatcherService) Name() string {
	return "config-watcher"
}

// Start begins watching the file.
func (s *ConfigWatcherService) Start(ctx context.Context) error {
	return s.watcher.Start()
}

// Stop stops watching the file.
func (s *ConfigWatcherService) Stop(ctx context.Context) error {
	return s.watcher.Stop()
}

// Health reports the service as healthy while it runs.
func (s *ConfigWatcherService) Health(ctx context.Context) (HealthStatus, error) {
	return HealthStatus{
		State:     HealthHealthy,
		LastCheck: time.Now(),
		Data:      map[string]interface{}{"log_level": s.level.Level().String()},
	}, nil
}

// Watcher returns the underlying config watcher.
func (s *ConfigWatcherService) Watcher() *config.Watcher {
	return s.watcher
}

func (s *ConfigWatcherService) apply(oldConfig, newConfig *config.Config) {
	if oldConfig.Log.Level != newConfig.Log.Level {
		if err := logging.SetLevel(s.level, newConfig.Log.Level); err != nil {
			s.logger.Warn("ignoring log level", zap.Error(err))
		} else {
			s.logger.Info("log level changed",
				zap.String("from", oldConfig.Log.Level.String()),
				zap.String("to", newConfig.Log.Level.String()),
			)
		}
	}

	if !sameWorlds(oldConfig.Exchange.Worlds, newConfig.Exchange.Worlds) {
		s.logger.Warn("world configuration changed; restart to apply",
			zap.Strings("running", oldConfig.WorldNames()),
			zap.Strings("configured", newConfig.WorldNames()),
		)
	}
}

func sameWorlds(a, b []config.WorldConfig) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
