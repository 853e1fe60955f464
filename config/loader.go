// Package config provides configuration loading and parsing functionality
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFormat represents the configuration file format
type ConfigFormat string

const (
	FormatYAML ConfigFormat = "yaml"
	FormatJSON ConfigFormat = "json"
)

// Loader handles configuration loading from various sources
type Loader struct {
	// Configuration search paths
	searchPaths []string

	// Environment variable prefix
	envPrefix string

	// Default configuration
	defaultConfig *Config
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		searchPaths: []string{
			".",
			"./config",
			"./configs",
			"/etc/worldex",
			os.Getenv("HOME") + "/.worldex",
		},
		envPrefix:     "WORLDEX",
		defaultConfig: DefaultConfig(),
	}
}

// SetSearchPaths sets the configuration file search paths
func (l *Loader) SetSearchPaths(paths []string) *Loader {
	l.searchPaths = paths
	return l
}

// SetEnvPrefix sets the environment variable prefix
func (l *Loader) SetEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// SetDefaultConfig sets the default configuration
func (l *Loader) SetDefaultConfig(config *Config) *Loader {
	l.defaultConfig = config
	return l
}

// Load loads configuration from the specified file. An empty filename
// searches the configured paths instead.
func (l *Loader) Load(filename string) (*Config, error) {
	if filename == "" {
		return l.AutoLoad()
	}

	config, err := l.loadFromFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from file %s: %w", filename, err)
	}
	return l.finish(config)
}

// LoadFromReader loads configuration from an io.Reader. Fields missing from
// the data keep their default values.
func (l *Loader) LoadFromReader(reader io.Reader, format ConfigFormat) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration data: %w", err)
	}

	config, err := l.parseConfig(data, format)
	if err != nil {
		return nil, err
	}
	return l.finish(config)
}

// AutoLoad automatically discovers and loads configuration
func (l *Loader) AutoLoad() (*Config, error) {
	configFile, err := l.findConfigFile()
	if errors.Is(err, ErrConfigFileNotFound) {
		// No config file, run on defaults plus environment
		return l.finish(l.defaults())
	}
	if err != nil {
		return nil, err
	}

	config, err := l.loadFromFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from file %s: %w", configFile, err)
	}
	return l.finish(config)
}

// finish applies environment overrides and validates the result
func (l *Loader) finish(config *Config) (*Config, error) {
	if err := l.loadFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigValidateError, err)
	}

	return config, nil
}

func (l *Loader) defaults() *Config {
	if l.defaultConfig == nil {
		return DefaultConfig()
	}
	return l.defaultConfig.Clone()
}

// findConfigFile searches for configuration files in search paths
func (l *Loader) findConfigFile() (string, error) {
	filenames := []string{
		"worldex.yaml", "worldex.yml",
		"config.yaml", "config.yml",
		"worldex.json", "config.json",
	}

	for _, searchPath := range l.searchPaths {
		for _, filename := range filenames {
			fullPath := filepath.Join(searchPath, filename)
			if _, err := os.Stat(fullPath); err == nil {
				return fullPath, nil
			}
		}
	}

	return "", ErrConfigFileNotFound
}

// formatOf determines the configuration format from a file extension
func formatOf(filename string) (ConfigFormat, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported config file format: %s", ext)
	}
}

// loadFromFile reads and parses a configuration file over the defaults
func (l *Loader) loadFromFile(filename string) (*Config, error) {
	format, err := formatOf(filename)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigFileNotFound, filename)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return l.parseConfig(data, format)
}

// parseConfig parses configuration data on top of the defaults
func (l *Loader) parseConfig(data []byte, format ConfigFormat) (*Config, error) {
	config := l.defaults()

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("%w: YAML: %w", ErrConfigParseError, err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("%w: JSON: %w", ErrConfigParseError, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", format)
	}

	return config, nil
}

// loadFromEnv loads configuration overrides from environment variables
func (l *Loader) loadFromEnv(config *Config) error {
	// App configuration
	if val := l.env("APP_NAME"); val != "" {
		config.App.Name = val
	}
	if val := l.env("APP_VERSION"); val != "" {
		config.App.Version = val
	}
	if val := l.env("APP_ENVIRONMENT"); val != "" {
		config.App.Environment = Environment(val)
	}
	if val := l.env("APP_DEBUG"); val != "" {
		config.App.Debug = strings.ToLower(val) == "true"
	}

	// Log configuration
	if val := l.env("LOG_LEVEL"); val != "" {
		config.Log.Level = LogLevel(val)
	}
	if val := l.env("LOG_FORMAT"); val != "" {
		config.Log.Format = val
	}
	if val := l.env("LOG_OUTPUT"); val != "" {
		config.Log.Output = val
	}

	// Exchange configuration
	if val := l.env("EXCHANGE_FAILURE_BUFFER"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("%w: %s_EXCHANGE_FAILURE_BUFFER: %w", ErrEnvironmentVarError, l.envPrefix, err)
		}
		config.Exchange.FailureBuffer = n
	}
	if val := l.env("EXCHANGE_SHUTDOWN_TIMEOUT"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("%w: %s_EXCHANGE_SHUTDOWN_TIMEOUT: %w", ErrEnvironmentVarError, l.envPrefix, err)
		}
		config.Exchange.ShutdownTimeout = d
	}

	// Monitor configuration
	if val := l.env("MONITOR_ENABLED"); val != "" {
		config.Monitor.Enabled = strings.ToLower(val) == "true"
	}
	if val := l.env("MONITOR_HTTP_ENABLED"); val != "" {
		config.Monitor.HTTP.Enabled = strings.ToLower(val) == "true"
	}
	if val := l.env("MONITOR_PORT"); val != "" {
		port, err := parsePort(val)
		if err != nil {
			return fmt.Errorf("%w: %s_MONITOR_PORT: %w", ErrEnvironmentVarError, l.envPrefix, err)
		}
		config.Monitor.HTTP.Port = port
	}

	return nil
}

func (l *Loader) env(key string) string {
	return os.Getenv(l.envPrefix + "_" + key)
}

// Helper function to parse port number
func parsePort(val string) (int, error) {
	port, err := strconv.Atoi(val)
	if err != nil {
		return 0, err
	}
	if port <= 0 || port > 65535 {
		return 0, fmt.Errorf("invalid port number: %d", port)
	}
	return port, nil
}

// Clone returns a deep copy of the configuration
func (c *Config) Clone() *Config {
	clone := *c

	clone.Exchange.Worlds = append([]WorldConfig(nil), c.Exchange.Worlds...)
	if c.Log.Fields != nil {
		clone.Log.Fields = make(map[string]interface{}, len(c.Log.Fields))
		for k, v := range c.Log.Fields {
			clone.Log.Fields[k] = v
		}
	}
	if c.Custom != nil {
		clone.Custom = make(map[string]interface{}, len(c.Custom))
		for k, v := range c.Custom {
			clone.Custom[k] = v
		}
	}

	return &clone
}
