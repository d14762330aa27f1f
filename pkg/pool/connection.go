package pool

import (
	"context"
	"database/sql"
	"sync/atomic"
	"time"
)

// probeQuery is the statement used to validate a connection before reuse.
const probeQuery = "SELECT 1"

// State tracks where a pooled connection sits in its lifecycle.
type State int32

const (
	// StateIdle means the connection is parked in the pool, ready for checkout.
	StateIdle State = iota
	// StateCheckedOut means a caller currently holds the connection.
	StateCheckedOut
	// StateInvalid means the connection failed validation or was discarded
	// and is about to be closed.
	StateInvalid
	// StateClosed means the physical connection has been closed.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCheckedOut:
		return "checked_out"
	case StateInvalid:
		return "invalid"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// PooledConnection wraps a physical connection together with its pool
// bookkeeping. Callers obtain one from Pool.Acquire and must hand it back
// with Pool.Release or Pool.Discard exactly once; Pool.With does the
// pairing automatically.
type PooledConnection struct {
	id        string
	conn      Conn
	state     atomic.Int32
	createdAt time.Time
	lastUsed  time.Time // guarded by the owning pool's mutex
}

// ID returns the connection's pool-unique identifier.
func (c *PooledConnection) ID() string {
	return c.id
}

// State returns the connection's current lifecycle state.
func (c *PooledConnection) State() State {
	return State(c.state.Load())
}

// CreatedAt returns when the physical connection was established.
func (c *PooledConnection) CreatedAt() time.Time {
	return c.createdAt
}

// QueryContext runs a query on the underlying connection.
func (c *PooledConnection) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return c.conn.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a single-row query on the underlying connection.
func (c *PooledConnection) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return c.conn.QueryRowContext(ctx, query, args...)
}

// ExecContext runs a statement on the underlying connection.
func (c *PooledConnection) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return c.conn.ExecContext(ctx, query, args...)
}

// PingContext checks liveness of the underlying connection.
func (c *PooledConnection) PingContext(ctx context.Context) error {
	return c.conn.PingContext(ctx)
}

// probe runs the validation query and drains its result.
func (c *PooledConnection) probe(ctx context.Context) error {
	rows, err := c.conn.QueryContext(ctx, probeQuery)
	if err != nil {
		return err
	}
	defer rows.Close()

	var one int
	if rows.Next() {
		if err := rows.Scan(&one); err != nil {
			return err
		}
	}
	return rows.Err()
}
