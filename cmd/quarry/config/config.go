// Package config loads the quarry server configuration from the
// environment.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// DatabaseConfig describes the database endpoint and credentials.
type DatabaseConfig struct {
	DSN      string
	User     string
	Password string
	Host     string
	Port     int
	Protocol string
}

// PoolConfig describes connection pool sizing and checkout behaviour.
type PoolConfig struct {
	InitialConnections int
	MaxIdle            int
	MaxTotal           int
	BlockOnExhaustion  bool
	DeepHealthCheck    bool
	AcquireTimeout     time.Duration
	ShutdownTimeout    time.Duration
}

// ServerConfig describes the MCP transport.
type ServerConfig struct {
	Transport string
	HTTPHost  string
	HTTPPort  int
	LogLevel  string
}

// Config is the complete server configuration.
type Config struct {
	Database     DatabaseConfig
	Pool         PoolConfig
	Server       ServerConfig
	MetricsAddr  string
	ReadyBackoff time.Duration
}

// Load reads the configuration from the environment, applies defaults, and
// validates the result.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("DB_PORT", 1360)
	v.SetDefault("DB_PROTOCOL", "tcp")
	v.SetDefault("DB_POOL_INITIAL_CON", 0)
	v.SetDefault("DB_POOL_MAX_UNUSED", 0)
	v.SetDefault("DB_POOL_MAX_CON", 0)
	v.SetDefault("DB_POOL_BLOCK", false)
	v.SetDefault("DB_POOL_DEEP_HEALTH_CHECK", true)
	v.SetDefault("DB_POOL_ACQUIRE_TIMEOUT", "30s")
	v.SetDefault("DB_POOL_SHUTDOWN_TIMEOUT", "30s")
	v.SetDefault("DB_READY_BACKOFF", "2s")
	v.SetDefault("MCP_TRANSPORT", "stdio")
	v.SetDefault("MCP_HTTP_HOST", "0.0.0.0")
	v.SetDefault("MCP_HTTP_PORT", 3333)
	v.SetDefault("MCP_LOG_LEVEL", "INFO")
	v.SetDefault("METRICS_ADDR", "")
	v.AutomaticEnv()

	cfg := &Config{
		Database: DatabaseConfig{
			DSN:      v.GetString("DB_DSN"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetInt("DB_PORT"),
			Protocol: v.GetString("DB_PROTOCOL"),
		},
		Pool: PoolConfig{
			InitialConnections: v.GetInt("DB_POOL_INITIAL_CON"),
			MaxIdle:            v.GetInt("DB_POOL_MAX_UNUSED"),
			MaxTotal:           v.GetInt("DB_POOL_MAX_CON"),
			BlockOnExhaustion:  v.GetBool("DB_POOL_BLOCK"),
			DeepHealthCheck:    v.GetBool("DB_POOL_DEEP_HEALTH_CHECK"),
			AcquireTimeout:     v.GetDuration("DB_POOL_ACQUIRE_TIMEOUT"),
			ShutdownTimeout:    v.GetDuration("DB_POOL_SHUTDOWN_TIMEOUT"),
		},
		Server: ServerConfig{
			Transport: v.GetString("MCP_TRANSPORT"),
			HTTPHost:  v.GetString("MCP_HTTP_HOST"),
			HTTPPort:  v.GetInt("MCP_HTTP_PORT"),
			LogLevel:  v.GetString("MCP_LOG_LEVEL"),
		},
		MetricsAddr:  v.GetString("METRICS_ADDR"),
		ReadyBackoff: v.GetDuration("DB_READY_BACKOFF"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for missing required values and
// unsupported selections.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}

	switch c.Server.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("Unknown MCP_TRANSPORT: %s", c.Server.Transport)
	}

	if _, err := ParseLevel(c.Server.LogLevel); err != nil {
		return err
	}
	return nil
}

// HTTPAddr returns the listen address for the HTTP transport.
func (c *Config) HTTPAddr() string {
	return net.JoinHostPort(c.Server.HTTPHost, strconv.Itoa(c.Server.HTTPPort))
}

// MetricsEnabled reports whether the ops endpoint should be served.
func (c *Config) MetricsEnabled() bool {
	return c.MetricsAddr != ""
}

// ParseLevel maps a configured level name to a zerolog level. Names match
// the usual operational levels and are case-insensitive.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zerolog.DebugLevel, nil
	case "INFO":
		return zerolog.InfoLevel, nil
	case "WARNING":
		return zerolog.WarnLevel, nil
	case "ERROR":
		return zerolog.ErrorLevel, nil
	case "CRITICAL":
		return zerolog.FatalLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf(
			"Invalid log level: %s. Must be one of: DEBUG, INFO, WARNING, ERROR, CRITICAL", level)
	}
}
