// Package config provides error definitions for configuration management
package config

import "errors"

// Configuration validation errors
var (
	ErrInvalidAppName         = errors.New("invalid application name")
	ErrInvalidEnvironment     = errors.New("invalid environment")
	ErrInvalidLogLevel        = errors.New("invalid log level")
	ErrInvalidLogFormat       = errors.New("invalid log format")
	ErrInvalidPort            = errors.New("invalid port number")
	ErrInvalidMonitorPath     = errors.New("invalid monitor path")
	ErrInvalidFailureBuffer   = errors.New("invalid failure buffer")
	ErrInvalidShutdownTimeout = errors.New("invalid shutdown timeout")
	ErrInvalidWorldName       = errors.New("invalid world name")
	ErrDuplicateWorld         = errors.New("duplicate world")
	ErrInvalidWorkerMode      = errors.New("invalid worker mode")
	ErrInvalidTickInterval    = errors.New("invalid tick interval")
	ErrInvalidErrorPolicy     = errors.New("invalid error policy")
)

// Configuration loading errors
var (
	ErrConfigFileNotFound  = errors.New("configuration file not found")
	ErrConfigParseError    = errors.New("configuration parse error")
	ErrConfigValidateError = errors.New("configuration validation error")
	ErrEnvironmentVarError = errors.New("environment variable error")
	ErrConfigWatchError    = errors.New("configuration watch error")
)
