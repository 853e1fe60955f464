// Package config provides configuration management for worldex
package config

import (
	"fmt"
	"time"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// String returns the string representation of Environment
func (e Environment) String() string {
	return string(e)
}

// IsValid checks if the environment is valid
func (e Environment) IsValid() bool {
	switch e {
	case EnvDevelopment, EnvTesting, EnvStaging, EnvProduction:
		return true
	default:
		return false
	}
}

// LogLevel represents the logging level
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
	LogLevelFatal LogLevel = "fatal"
)

// String returns the string representation of LogLevel
func (l LogLevel) String() string {
	return string(l)
}

// IsValid checks if the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelTrace, LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError, LogLevelFatal:
		return true
	default:
		return false
	}
}

// Worker modes and error policies accepted in WorldConfig
const (
	ModeBlocking = "blocking"
	ModePolling  = "polling"

	PolicyContinue = "continue"
	PolicyAbort    = "abort"
)

// Config represents the complete worldex configuration
type Config struct {
	// Application configuration
	App AppConfig `yaml:"app" json:"app"`

	// Logging configuration
	Log LogConfig `yaml:"log" json:"log"`

	// World exchange configuration
	Exchange ExchangeConfig `yaml:"exchange" json:"exchange"`

	// Monitoring configuration
	Monitor MonitorConfig `yaml:"monitor" json:"monitor"`

	// Custom holds free-form settings read by world hooks; the demo reads "map"
	Custom map[string]interface{} `yaml:"custom,omitempty" json:"custom,omitempty"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	// Application name
	Name string `yaml:"name" json:"name"`

	// Application version
	Version string `yaml:"version" json:"version"`

	// Deployment environment
	Environment Environment `yaml:"environment" json:"environment"`

	// Debug mode
	Debug bool `yaml:"debug" json:"debug"`

	// Application description
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	// Log level
	Level LogLevel `yaml:"level" json:"level"`

	// Log format (json, text)
	Format string `yaml:"format" json:"format"`

	// Output destination (stdout, stderr, file path)
	Output string `yaml:"output" json:"output"`

	// Enable colored output
	Color bool `yaml:"color" json:"color"`

	// Fields to include in log output
	Fields map[string]interface{} `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// ExchangeConfig describes the worlds joined by the exchange
type ExchangeConfig struct {
	// Worlds to register, in registration order
	Worlds []WorldConfig `yaml:"worlds" json:"worlds"`

	// Capacity of the routing failure channel
	FailureBuffer int `yaml:"failure_buffer" json:"failure_buffer"`

	// Time allowed for workers and services to stop
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// WorldConfig describes one world and its worker
type WorldConfig struct {
	// World identifier, unique across the exchange
	Name string `yaml:"name" json:"name"`

	// Worker mode (blocking, polling)
	Mode string `yaml:"mode" json:"mode"`

	// Tick interval for polling workers
	TickInterval time.Duration `yaml:"tick_interval" json:"tick_interval"`

	// What the worker does when a message fails (continue, abort)
	ErrorPolicy string `yaml:"error_policy" json:"error_policy"`
}

// MonitorConfig contains monitoring configuration
type MonitorConfig struct {
	// Enable monitoring
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Metrics namespace
	Namespace string `yaml:"namespace" json:"namespace"`

	// HTTP server for metrics
	HTTP HTTPMonitorConfig `yaml:"http" json:"http"`
}

// HTTPMonitorConfig contains HTTP monitoring server settings
type HTTPMonitorConfig struct {
	// Enable HTTP monitoring server
	Enabled bool `yaml:"enabled" json:"enabled"`

	// HTTP server address
	Address string `yaml:"address" json:"address"`

	// HTTP server port
	Port int `yaml:"port" json:"port"`

	// Metrics endpoint path
	MetricsPath string `yaml:"metrics_path" json:"metrics_path"`

	// Health endpoint path
	HealthPath string `yaml:"health_path" json:"health_path"`
}

// ListenAddr returns the host:port the monitoring server listens on
func (h HTTPMonitorConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", h.Address, h.Port)
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "worldex",
			Version:     "1.0.0",
			Environment: EnvDevelopment,
			Debug:       true,
			Description: "worldex world exchange",
		},
		Log: LogConfig{
			Level:  LogLevelInfo,
			Format: "text",
			Output: "stdout",
			Color:  true,
		},
		Exchange: ExchangeConfig{
			FailureBuffer:   100,
			ShutdownTimeout: 10 * time.Second,
		},
		Monitor: MonitorConfig{
			Enabled:   true,
			Namespace: "worldex",
			HTTP: HTTPMonitorConfig{
				Enabled:     false,
				Address:     "0.0.0.0",
				Port:        9090,
				MetricsPath: "/metrics",
				HealthPath:  "/health",
			},
		},
		Custom: make(map[string]interface{}),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate app config
	if c.App.Name == "" {
		return ErrInvalidAppName
	}
	if !c.App.Environment.IsValid() {
		return ErrInvalidEnvironment
	}

	// Validate log config
	if !c.Log.Level.IsValid() {
		return ErrInvalidLogLevel
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Log.Format)
	}

	// Validate exchange config
	if c.Exchange.FailureBuffer <= 0 {
		return ErrInvalidFailureBuffer
	}
	if c.Exchange.ShutdownTimeout <= 0 {
		return ErrInvalidShutdownTimeout
	}
	seen := make(map[string]bool, len(c.Exchange.Worlds))
	for i, w := range c.Exchange.Worlds {
		if err := w.Validate(); err != nil {
			return fmt.Errorf("exchange.worlds[%d]: %w", i, err)
		}
		if seen[w.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateWorld, w.Name)
		}
		seen[w.Name] = true
	}

	// Validate monitor config
	if c.Monitor.HTTP.Enabled {
		if c.Monitor.HTTP.Port <= 0 || c.Monitor.HTTP.Port > 65535 {
			return ErrInvalidPort
		}
		if c.Monitor.HTTP.MetricsPath == c.Monitor.HTTP.HealthPath {
			return fmt.Errorf("%w: metrics and health share %q", ErrInvalidMonitorPath, c.Monitor.HTTP.MetricsPath)
		}
	}

	return nil
}

// Validate validates a single world entry
func (w WorldConfig) Validate() error {
	if w.Name == "" {
		return ErrInvalidWorldName
	}
	switch w.Mode {
	case "", ModeBlocking:
	case ModePolling:
		if w.TickInterval <= 0 {
			return fmt.Errorf("%w: world %s", ErrInvalidTickInterval, w.Name)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidWorkerMode, w.Mode)
	}
	switch w.ErrorPolicy {
	case "", PolicyContinue, PolicyAbort:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidErrorPolicy, w.ErrorPolicy)
	}
	return nil
}

// WorldNames returns the configured world names in order
func (c *Config) WorldNames() []string {
	names := make([]string, len(c.Exchange.Worlds))
	for i, w := range c.Exchange.Worlds {
		names[i] = w.Name
	}
	return names
}

// World returns the configuration of the named world
func (c *Config) World(name string) (WorldConfig, bool) {
	for _, w := range c.Exchange.Worlds {
		if w.Name == name {
			return w, true
		}
	}
	return WorldConfig{}, false
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == EnvDevelopment
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}

// GetLogLevel returns the log level
func (c *Config) GetLogLevel() LogLevel {
	return c.Log.Level
}

// IsDebugEnabled returns true if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.App.Environment == EnvDevelopment
}
