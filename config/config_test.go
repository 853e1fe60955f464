package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// TestDefaultConfig tests that the defaults validate
func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	require.NoError(t, config.Validate())

	assert.Equal(t, "worldex", config.App.Name)
	assert.Equal(t, LogLevelInfo, config.GetLogLevel())
	assert.True(t, config.IsDevelopment())
	assert.False(t, config.IsProduction())
	assert.Empty(t, config.Exchange.Worlds)
	assert.Equal(t, "0.0.0.0:9090", config.Monitor.HTTP.ListenAddr())
}

// TestConfigValidation tests configuration validation
func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{
			name: "valid worlds",
			mutate: func(c *Config) {
				c.Exchange.Worlds = []WorldConfig{
					{Name: "filesystem", Mode: ModeBlocking},
					{Name: "game", Mode: ModePolling, TickInterval: 16 * time.Millisecond, ErrorPolicy: PolicyAbort},
				}
			},
		},
		{
			name:    "invalid app name",
			mutate:  func(c *Config) { c.App.Name = "" },
			wantErr: ErrInvalidAppName,
		},
		{
			name:    "invalid environment",
			mutate:  func(c *Config) { c.App.Environment = "moon" },
			wantErr: ErrInvalidEnvironment,
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Log.Level = "loud" },
			wantErr: ErrInvalidLogLevel,
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: ErrInvalidLogFormat,
		},
		{
			name:    "invalid failure buffer",
			mutate:  func(c *Config) { c.Exchange.FailureBuffer = 0 },
			wantErr: ErrInvalidFailureBuffer,
		},
		{
			name:    "invalid shutdown timeout",
			mutate:  func(c *Config) { c.Exchange.ShutdownTimeout = 0 },
			wantErr: ErrInvalidShutdownTimeout,
		},
		{
			name:    "unnamed world",
			mutate:  func(c *Config) { c.Exchange.Worlds = []WorldConfig{{}} },
			wantErr: ErrInvalidWorldName,
		},
		{
			name: "duplicate world",
			mutate: func(c *Config) {
				c.Exchange.Worlds = []WorldConfig{{Name: "game"}, {Name: "game"}}
			},
			wantErr: ErrDuplicateWorld,
		},
		{
			name:    "unknown mode",
			mutate:  func(c *Config) { c.Exchange.Worlds = []WorldConfig{{Name: "game", Mode: "lazy"}} },
			wantErr: ErrInvalidWorkerMode,
		},
		{
			name:    "polling without tick",
			mutate:  func(c *Config) { c.Exchange.Worlds = []WorldConfig{{Name: "game", Mode: ModePolling}} },
			wantErr: ErrInvalidTickInterval,
		},
		{
			name:    "unknown policy",
			mutate:  func(c *Config) { c.Exchange.Worlds = []WorldConfig{{Name: "game", ErrorPolicy: "shrug"}} },
			wantErr: ErrInvalidErrorPolicy,
		},
		{
			name: "invalid port",
			mutate: func(c *Config) {
				c.Monitor.HTTP.Enabled = true
				c.Monitor.HTTP.Port = -1
			},
			wantErr: ErrInvalidPort,
		},
		{
			name: "shared monitor path",
			mutate: func(c *Config) {
				c.Monitor.HTTP.Enabled = true
				c.Monitor.HTTP.HealthPath = c.Monitor.HTTP.MetricsPath
			},
			wantErr: ErrInvalidMonitorPath,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)

			err := config.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// TestLoader tests YAML configuration loading
func TestLoader(t *testing.T) {
	path := writeFile(t, "worldex.yaml", `
app:
  name: test-app
  environment: staging
log:
  level: debug
exchange:
  worlds:
    - name: filesystem
    - name: game
      mode: polling
      tick_interval: 16ms
      error_policy: abort
  shutdown_timeout: 3s
`)

	config, err := NewLoader().Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test-app", config.App.Name)
	assert.Equal(t, EnvStaging, config.App.Environment)
	assert.Equal(t, LogLevelDebug, config.Log.Level)
	assert.Equal(t, "text", config.Log.Format, "missing fields keep defaults")
	assert.Equal(t, 100, config.Exchange.FailureBuffer)
	assert.Equal(t, 3*time.Second, config.Exchange.ShutdownTimeout)
	assert.True(t, config.Monitor.Enabled)

	assert.Equal(t, []string{"filesystem", "game"}, config.WorldNames())
	game, ok := config.World("game")
	require.True(t, ok)
	assert.Equal(t, ModePolling, game.Mode)
	assert.Equal(t, 16*time.Millisecond, game.TickInterval)
	assert.Equal(t, PolicyAbort, game.ErrorPolicy)

	_, ok = config.World("render")
	assert.False(t, ok)
}

// TestLoaderJSON tests JSON configuration loading
func TestLoaderJSON(t *testing.T) {
	path := writeFile(t, "worldex.json", `{
	"app": {"name": "json-app", "environment": "production"},
	"log": {"level": "warn", "format": "json"},
	"exchange": {"worlds": [{"name": "render", "mode": "polling", "tick_interval": 1000000}]}
}`)

	config, err := NewLoader().Load(path)
	require.NoError(t, err)

	assert.Equal(t, "json-app", config.App.Name)
	assert.True(t, config.IsProduction())
	assert.Equal(t, "json", config.Log.Format)
	assert.Equal(t, time.Millisecond, config.Exchange.Worlds[0].TickInterval)
}

func TestLoaderErrors(t *testing.T) {
	_, err := NewLoader().Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrConfigFileNotFound)

	_, err = NewLoader().Load(writeFile(t, "worldex.toml", ""))
	assert.Error(t, err)

	_, err = NewLoader().Load(writeFile(t, "broken.yaml", "app: [unclosed"))
	assert.ErrorIs(t, err, ErrConfigParseError)

	_, err = NewLoader().Load(writeFile(t, "invalid.yaml", "log:\n  level: loud\n"))
	assert.ErrorIs(t, err, ErrConfigValidateError)
	assert.ErrorIs(t, err, ErrInvalidLogLevel)
}

func TestLoadFromReader(t *testing.T) {
	config, err := NewLoader().LoadFromReader(strings.NewReader("app:\n  name: reader-app\n"), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, "reader-app", config.App.Name)
}

// TestEnvironmentOverrides tests environment variable overrides
func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("WORLDEX_APP_NAME", "env-app")
	t.Setenv("WORLDEX_LOG_LEVEL", "error")
	t.Setenv("WORLDEX_EXCHANGE_FAILURE_BUFFER", "7")
	t.Setenv("WORLDEX_EXCHANGE_SHUTDOWN_TIMEOUT", "2s")
	t.Setenv("WORLDEX_MONITOR_HTTP_ENABLED", "true")
	t.Setenv("WORLDEX_MONITOR_PORT", "7777")

	path := writeFile(t, "worldex.yaml", "app:\n  name: base-app\n")

	config, err := NewLoader().Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-app", config.App.Name)
	assert.Equal(t, LogLevelError, config.Log.Level)
	assert.Equal(t, 7, config.Exchange.FailureBuffer)
	assert.Equal(t, 2*time.Second, config.Exchange.ShutdownTimeout)
	assert.True(t, config.Monitor.HTTP.Enabled)
	assert.Equal(t, 7777, config.Monitor.HTTP.Port)
}

func TestEnvironmentOverrideErrors(t *testing.T) {
	t.Setenv("WORLDEX_MONITOR_PORT", "not-a-port")

	_, err := NewLoader().SetSearchPaths(nil).AutoLoad()
	assert.ErrorIs(t, err, ErrEnvironmentVarError)
}

// TestAutoLoad tests automatic configuration discovery
func TestAutoLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "worldex.yml"), []byte("app:\n  name: auto-app\n"), 0o644))

	config, err := NewLoader().SetSearchPaths([]string{dir}).AutoLoad()
	require.NoError(t, err)
	assert.Equal(t, "auto-app", config.App.Name)

	config, err = NewLoader().SetSearchPaths([]string{t.TempDir()}).AutoLoad()
	require.NoError(t, err)
	assert.Equal(t, "worldex", config.App.Name)
}

func TestDefaultsNotShared(t *testing.T) {
	defaults := DefaultConfig()
	loader := NewLoader().SetDefaultConfig(defaults)

	path := writeFile(t, "worldex.yaml", "custom:\n  seed: 42\nexchange:\n  worlds:\n    - name: game\n")
	config, err := loader.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 42, config.Custom["seed"])
	assert.Empty(t, defaults.Custom)
	assert.Empty(t, defaults.Exchange.Worlds)
}

// TestWatcher tests configuration file watching
func TestWatcher(t *testing.T) {
	path := writeFile(t, "worldex.yaml", "log:\n  level: info\n")

	watcher, err := NewWatcher(path, NewLoader(), zaptest.NewLogger(t))
	require.NoError(t, err)
	watcher.SetDebounce(10 * time.Millisecond)
	defer watcher.Stop()

	assert.Equal(t, LogLevelInfo, watcher.GetConfig().Log.Level)

	changed := make(chan LogLevel, 1)
	watcher.OnConfigChange(func(oldConfig, newConfig *Config) {
		assert.Equal(t, LogLevelInfo, oldConfig.Log.Level)
		changed <- newConfig.Log.Level
	})

	require.NoError(t, watcher.Start())
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o644))

	select {
	case level := <-changed:
		assert.Equal(t, LogLevelDebug, level)
	case <-time.After(3 * time.Second):
		t.Fatal("configuration change was not detected")
	}
	assert.Equal(t, LogLevelDebug, watcher.GetConfig().Log.Level)
}

func TestWatcherKeepsConfigOnInvalidReload(t *testing.T) {
	path := writeFile(t, "worldex.yaml", "log:\n  level: warn\n")

	watcher, err := NewWatcher(path, nil, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: loud\n"), 0o644))
	assert.Error(t, watcher.Reload())
	assert.Equal(t, LogLevelWarn, watcher.GetConfig().Log.Level)
}
