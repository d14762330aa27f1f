// Package main provides the entry point for the quarry MCP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/quarryhq/quarry/cmd/quarry/config"
	pkgerrors "github.com/quarryhq/quarry/pkg/errors"
	"github.com/quarryhq/quarry/pkg/infrastructure/metrics"
	"github.com/quarryhq/quarry/pkg/pool"
	"github.com/quarryhq/quarry/pkg/server"
)

var (
	// Version information (set by build flags)
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "quarry",
	Short: "Read-only MySQL access for tool-calling agents",
	Long: `quarry exposes a relational database to MCP clients as a fixed set of
read-only tools: schema discovery, SELECT execution, and stored procedures
declared READS SQL DATA.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the quarry MCP server",
	Long: `Start the quarry MCP server with configuration read from the environment.

Example:
  DB_DSN=bank DB_USER=reader DB_PASSWORD=secret DB_HOST=localhost quarry serve
  MCP_TRANSPORT=http MCP_HTTP_PORT=3333 quarry serve`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("quarry MCP server\n")
			fmt.Printf("Version:    %s\n", version)
			fmt.Printf("Commit:     %s\n", commit)
			fmt.Printf("Build Date: %s\n", buildDate)
		},
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogging(cfg.Server.LogLevel)
	logger.Info().
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Str("transport", cfg.Server.Transport).
		Msg("Starting quarry MCP server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-shutdownCh
		logger.Info().Msg("Received shutdown signal")
		cancel()
	}()

	// Ops endpoint and metrics collector
	var poolReady atomic.Bool
	var metricsCollector metrics.Collector
	var opsServer *metrics.OpsServer
	if cfg.MetricsEnabled() {
		metricsCollector = metrics.NewPrometheusCollector()
		opsServer = metrics.NewOpsServer(cfg.MetricsAddr, func(context.Context) error {
			if !poolReady.Load() {
				return pkgerrors.ErrPoolNotReady
			}
			return nil
		}, logger)
		go func() {
			if err := opsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("Ops server terminated")
			}
		}()
	} else {
		metricsCollector = metrics.NewNoOpCollector()
	}

	factory := pool.NewMySQLFactory(pool.ConnectionConfig{
		Database:       cfg.Database.DSN,
		User:           cfg.Database.User,
		Password:       cfg.Database.Password,
		Host:           cfg.Database.Host,
		Port:           cfg.Database.Port,
		Protocol:       cfg.Database.Protocol,
		ConnectTimeout: 10 * time.Second,
	}, logger)

	p := pool.New(factory, pool.Config{
		InitialConnections: cfg.Pool.InitialConnections,
		MaxIdle:            cfg.Pool.MaxIdle,
		MaxTotal:           cfg.Pool.MaxTotal,
		BlockOnExhaustion:  cfg.Pool.BlockOnExhaustion,
		DeepHealthCheck:    cfg.Pool.DeepHealthCheck,
		AcquireTimeout:     cfg.Pool.AcquireTimeout,
		ShutdownTimeout:    cfg.Pool.ShutdownTimeout,
	}, logger)

	if err := waitForDatabase(ctx, factory, cfg.ReadyBackoff, logger); err != nil {
		logger.Info().Msg("Shutdown requested before the database became ready")
		if opsServer != nil {
			_ = opsServer.Stop()
		}
		return nil
	}

	if err := p.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize connection pool: %w", err)
	}
	poolReady.Store(true)

	srv := server.New(p, logger, metricsCollector, version)

	var serveErr error
	switch cfg.Server.Transport {
	case "http":
		serveErr = srv.ServeHTTP(ctx, cfg.HTTPAddr())
	default:
		serveErr = srv.ServeStdio(ctx)
	}

	// Graceful shutdown
	logger.Info().Dur("timeout", cfg.Pool.ShutdownTimeout).Msg("Starting graceful shutdown")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Pool.ShutdownTimeout)
	defer cancelShutdown()
	if err := p.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error during connection pool shutdown")
	}

	if opsServer != nil {
		if err := opsServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping ops server")
		}
	}

	logger.Info().Msg("Server shutdown complete")

	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		return serveErr
	}
	return nil
}

// waitForDatabase blocks until the database answers the probe query,
// retrying on a fixed backoff. Only ctx cancellation stops the retries.
func waitForDatabase(ctx context.Context, factory pool.Factory, backoff time.Duration, logger zerolog.Logger) error {
	for {
		err := probeDatabase(ctx, factory)
		if err == nil {
			logger.Info().Msg("Database is ready")
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn().Err(err).Dur("retry_in", backoff).Msg("Database is not ready")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func probeDatabase(ctx context.Context, factory pool.Factory) error {
	conn, err := factory.Connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	var one int
	return conn.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}

func setupLogging(level string) zerolog.Logger {
	// Configure zerolog
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond

	logLevel, err := config.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}

	// stdout carries the stdio transport, so all logging goes to stderr.
	var out io.Writer = os.Stderr
	if logLevel == zerolog.DebugLevel {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339Nano}
		zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
			short := file
			for i := len(file) - 1; i > 0; i-- {
				if file[i] == '/' {
					short = file[i+1:]
					break
				}
			}
			return fmt.Sprintf("%s:%d", short, line)
		}
	}

	logger := zerolog.New(out).
		Level(logLevel).
		With().
		Timestamp().
		Str("service", "quarry")

	if logLevel == zerolog.DebugLevel {
		logger = logger.Caller()
	}

	return logger.Logger()
}
