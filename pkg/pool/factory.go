// Package pool implements explicit connection lifecycle management for the
// quarry server: dedicated database connections with checkout/return
// semantics, health validation on reuse, and bounded growth.
package pool

import (
	"context"
	"database/sql"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"

	pkgerrors "github.com/quarryhq/quarry/pkg/errors"
)

// Conn is the subset of database operations a pooled connection exposes.
// *sql.DB satisfies it.
type Conn interface {
	PingContext(ctx context.Context) error
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	Close() error
}

var _ Conn = (*sql.DB)(nil)

// Factory establishes physical database connections for the pool.
type Factory interface {
	// Connect dials a new physical connection and verifies it is usable.
	Connect(ctx context.Context) (Conn, error)
}

// ConnectionConfig describes the database endpoint.
type ConnectionConfig struct {
	Database       string        `json:"database"`
	User           string        `json:"user"`
	Password       string        `json:"-"`
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	Protocol       string        `json:"protocol"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
}

// Addr returns the host:port endpoint string.
func (c ConnectionConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// MySQLFactory creates dedicated MySQL connections.
//
// Each physical connection is a *sql.DB capped at a single underlying
// connection. That binds session state (user variables set while reading
// OUT parameters back from CALL statements) to one wire connection, and
// lets a health probe observe the same connection a caller will use.
type MySQLFactory struct {
	cfg    ConnectionConfig
	logger zerolog.Logger
}

// NewMySQLFactory creates a factory for the configured endpoint.
func NewMySQLFactory(cfg ConnectionConfig, logger zerolog.Logger) *MySQLFactory {
	if cfg.Protocol == "" {
		cfg.Protocol = "tcp"
	}
	return &MySQLFactory{
		cfg:    cfg,
		logger: logger.With().Str("component", "connection_factory").Logger(),
	}
}

// Connect dials the endpoint and pings it before handing the connection out.
func (f *MySQLFactory) Connect(ctx context.Context) (Conn, error) {
	mycfg := mysql.NewConfig()
	mycfg.User = f.cfg.User
	mycfg.Passwd = f.cfg.Password
	mycfg.Net = f.cfg.Protocol
	mycfg.Addr = f.cfg.Addr()
	mycfg.DBName = f.cfg.Database
	mycfg.Timeout = f.cfg.ConnectTimeout
	mycfg.ParseTime = true

	db, err := sql.Open("mysql", mycfg.FormatDSN())
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeConfiguration, "invalid database configuration")
	}

	// One wire connection per pooled slot; lifetime is managed by the pool,
	// not by database/sql.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeUnavailable, "database connection failed").
			WithDetail("addr", f.cfg.Addr()).
			WithDetail("database", f.cfg.Database)
	}

	f.logger.Debug().
		Str("addr", f.cfg.Addr()).
		Str("database", f.cfg.Database).
		Str("user", f.cfg.User).
		Msg("Established database connection")

	return db, nil
}
