package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	pkgerrors "github.com/quarryhq/quarry/pkg/errors"
)

// Config controls pool sizing and checkout behaviour.
type Config struct {
	// InitialConnections is the number of connections dialed eagerly by
	// Initialize before the pool serves its first checkout.
	InitialConnections int `json:"initial_connections"`
	// MaxIdle bounds how many returned connections are retained for reuse.
	// Zero keeps every returned connection.
	MaxIdle int `json:"max_idle"`
	// MaxTotal caps live connections, checked out and idle combined.
	// Zero means unbounded.
	MaxTotal int `json:"max_total"`
	// BlockOnExhaustion makes Acquire wait for a returned connection when
	// the pool is at MaxTotal instead of failing fast.
	BlockOnExhaustion bool `json:"block_on_exhaustion"`
	// DeepHealthCheck probes reused connections with a query before
	// handing them out. When false, reuse trusts the release-path checks.
	DeepHealthCheck bool `json:"deep_health_check"`
	// AcquireTimeout bounds how long a blocking Acquire waits. Zero waits
	// until the caller's context expires.
	AcquireTimeout time.Duration `json:"acquire_timeout"`
	// ShutdownTimeout bounds how long Shutdown waits for checked-out
	// connections to come back before force-closing them.
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

// Stats is a point-in-time snapshot of pool occupancy.
type Stats struct {
	Idle         int           `json:"idle"`
	CheckedOut   int           `json:"checked_out"`
	Total        int           `json:"total"`
	Waiting      int           `json:"waiting"`
	MaxTotal     int           `json:"max_total"`
	WaitCount    int64         `json:"wait_count"`
	WaitDuration time.Duration `json:"wait_duration"`
}

// Pool hands out dedicated database connections with explicit checkout and
// return. Unlike database/sql's built-in pooling it exposes each physical
// connection as a first-class object, so a caller keeps the same session
// for a sequence of statements and the pool can validate, retire, and
// count connections individually.
type Pool struct {
	factory Factory
	config  Config
	logger  zerolog.Logger

	mu          sync.Mutex
	idle        []*PooledConnection
	checkedOut  map[string]*PooledConnection
	waiters     []chan *PooledConnection
	total       int
	initialized bool
	closed      bool
	drained     chan struct{}

	waitCount    atomic.Int64
	waitDuration atomic.Int64
}

// New creates a connection pool around factory. Call Initialize before the
// first Acquire to honour the configured warm start.
func New(factory Factory, cfg Config, logger zerolog.Logger) *Pool {
	if cfg.InitialConnections < 0 {
		cfg.InitialConnections = 0
	}
	if cfg.MaxIdle < 0 {
		cfg.MaxIdle = 0
	}
	if cfg.MaxTotal < 0 {
		cfg.MaxTotal = 0
	}
	return &Pool{
		factory:    factory,
		config:     cfg,
		logger:     logger.With().Str("component", "connection_pool").Logger(),
		checkedOut: make(map[string]*PooledConnection),
	}
}

// Initialize dials the configured number of initial connections and parks
// them idle. A dial failure during warm-up is logged and skipped, so the
// pool may start smaller than requested. Calling Initialize a second time
// is a configuration error.
func (p *Pool) Initialize(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return pkgerrors.ErrPoolClosed
	}
	if p.initialized {
		p.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeConfiguration, "connection pool is already initialized")
	}
	p.initialized = true
	p.mu.Unlock()

	n := p.config.InitialConnections
	if p.config.MaxTotal > 0 && n > p.config.MaxTotal {
		n = p.config.MaxTotal
	}

	warmed := 0
	for i := 0; i < n; i++ {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return pkgerrors.ErrPoolClosed
		}
		p.total++
		p.mu.Unlock()

		c, err := p.connect(ctx)
		if err != nil {
			p.logger.Warn().
				Err(err).
				Int("connection", i+1).
				Int("requested", n).
				Msg("Failed to establish initial connection")
			continue
		}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			p.destroy(c, "pool closed during initialization")
			return pkgerrors.ErrPoolClosed
		}
		c.state.Store(int32(StateIdle))
		c.lastUsed = time.Now()
		p.idle = append(p.idle, c)
		p.mu.Unlock()
		warmed++
	}

	p.logger.Info().
		Int("connections", warmed).
		Int("requested", n).
		Int("max_total", p.config.MaxTotal).
		Int("max_idle", p.config.MaxIdle).
		Bool("block_on_exhaustion", p.config.BlockOnExhaustion).
		Bool("deep_health_check", p.config.DeepHealthCheck).
		Msg("Connection pool initialized")
	return nil
}

// Acquire checks out a connection. Idle connections are reused newest
// first; when none are idle and the pool is below MaxTotal a new one is
// dialed. At the cap, Acquire either fails fast with a pool-exhausted
// error or, with BlockOnExhaustion, waits for a return in FIFO order.
func (p *Pool) Acquire(ctx context.Context) (*PooledConnection, error) {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return nil, pkgerrors.Wrap(err, pkgerrors.CodeCanceled, "connection acquire cancelled")
		}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, pkgerrors.ErrPoolClosed
		}

		// Reuse the most recently returned idle connection.
		if n := len(p.idle); n > 0 {
			c := p.idle[n-1]
			p.idle[n-1] = nil
			p.idle = p.idle[:n-1]
			c.state.Store(int32(StateCheckedOut))
			c.lastUsed = time.Now()
			p.checkedOut[c.id] = c
			p.mu.Unlock()

			if err := p.validate(ctx, c); err != nil {
				p.drop(c, "failed health check", err)
				continue
			}
			return c, nil
		}

		// Dial a new connection while below the cap.
		if p.config.MaxTotal == 0 || p.total < p.config.MaxTotal {
			p.total++
			p.mu.Unlock()

			c, err := p.connect(ctx)
			if err != nil {
				return nil, err
			}

			p.mu.Lock()
			if p.closed {
				p.total--
				p.mu.Unlock()
				p.destroy(c, "pool closed during dial")
				return nil, pkgerrors.ErrPoolClosed
			}
			c.state.Store(int32(StateCheckedOut))
			c.lastUsed = time.Now()
			p.checkedOut[c.id] = c
			p.mu.Unlock()
			return c, nil
		}

		// At the cap.
		if !p.config.BlockOnExhaustion {
			inUse := len(p.checkedOut)
			p.mu.Unlock()
			return nil, pkgerrors.Newf(pkgerrors.CodePoolExhausted,
				"connection pool exhausted (%d of %d connections in use)", inUse, p.config.MaxTotal).
				WithDetail("max_total", p.config.MaxTotal)
		}

		w := make(chan *PooledConnection, 1)
		p.waiters = append(p.waiters, w)
		p.mu.Unlock()

		if timer == nil && p.config.AcquireTimeout > 0 {
			timer = time.NewTimer(p.config.AcquireTimeout)
		}
		var timeout <-chan time.Time
		if timer != nil {
			timeout = timer.C
		}

		p.waitCount.Add(1)
		waitStart := time.Now()

		select {
		case c, ok := <-w:
			p.waitDuration.Add(int64(time.Since(waitStart)))
			if !ok {
				return nil, pkgerrors.ErrPoolClosed
			}
			if c == nil {
				// Capacity opened up without a direct handoff; retry.
				continue
			}
			if err := p.validate(ctx, c); err != nil {
				p.drop(c, "failed health check", err)
				continue
			}
			return c, nil
		case <-ctx.Done():
			p.waitDuration.Add(int64(time.Since(waitStart)))
			p.cancelWait(w)
			return nil, pkgerrors.Wrap(ctx.Err(), pkgerrors.CodeCanceled,
				"connection acquire cancelled while waiting for a free connection")
		case <-timeout:
			p.waitDuration.Add(int64(time.Since(waitStart)))
			p.cancelWait(w)
			return nil, pkgerrors.Newf(pkgerrors.CodePoolExhausted,
				"timed out after %s waiting for a free connection", p.config.AcquireTimeout).
				WithDetail("max_total", p.config.MaxTotal)
		}
	}
}

// Release returns a checked-out connection to the pool. The connection is
// handed directly to the oldest waiter when one is queued, otherwise it is
// parked idle, or closed when the idle set is already at MaxIdle.
// Returning a connection that is not checked out is a caller bug and is
// logged and ignored.
func (p *Pool) Release(c *PooledConnection) {
	p.mu.Lock()
	if c.State() != StateCheckedOut {
		p.mu.Unlock()
		p.logger.Warn().
			Str("connection_id", c.id).
			Str("state", c.State().String()).
			Msg("Ignoring release of a connection that is not checked out")
		return
	}
	delete(p.checkedOut, c.id)
	closeIt := p.stashLocked(c)
	p.mu.Unlock()

	if closeIt {
		p.destroy(c, "released")
	}
}

// Discard removes a checked-out connection from the pool and closes it.
// Use it when the connection's session state is suspect, for example after
// a cancelled call sequence.
func (p *Pool) Discard(c *PooledConnection) {
	p.mu.Lock()
	if c.State() != StateCheckedOut {
		p.mu.Unlock()
		p.logger.Warn().
			Str("connection_id", c.id).
			Str("state", c.State().String()).
			Msg("Ignoring discard of a connection that is not checked out")
		return
	}
	p.dropLocked(c)
	p.mu.Unlock()

	p.destroy(c, "discarded")
}

// With acquires a connection, runs fn, and returns the connection. When fn
// fails because the context was cancelled the connection is discarded
// instead of reused, since an interrupted statement sequence may leave
// session state behind.
func (p *Pool) With(ctx context.Context, fn func(conn *PooledConnection) error) error {
	c, err := p.Acquire(ctx)
	if err != nil {
		return err
	}

	err = fn(c)
	if err != nil && (ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		p.Discard(c)
		return err
	}
	p.Release(c)
	return err
}

// Stats reports current pool occupancy.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Idle:         len(p.idle),
		CheckedOut:   len(p.checkedOut),
		Total:        p.total,
		Waiting:      len(p.waiters),
		MaxTotal:     p.config.MaxTotal,
		WaitCount:    p.waitCount.Load(),
		WaitDuration: time.Duration(p.waitDuration.Load()),
	}
}

// Shutdown closes the pool. Idle connections are closed immediately,
// queued waiters are failed, and checked-out connections are drained until
// ctx expires, after which the stragglers are force-closed.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	for _, w := range p.waiters {
		close(w)
	}
	p.waiters = nil
	idle := p.idle
	p.idle = nil
	p.total -= len(idle)
	p.drained = make(chan struct{})
	if len(p.checkedOut) == 0 {
		close(p.drained)
	}
	drained := p.drained
	outstanding := len(p.checkedOut)
	p.mu.Unlock()

	for _, c := range idle {
		p.destroy(c, "pool shutdown")
	}

	if outstanding > 0 {
		p.logger.Info().
			Int("checked_out", outstanding).
			Msg("Waiting for checked-out connections to drain")
	}

	select {
	case <-drained:
		p.logger.Info().Msg("Connection pool closed")
		return nil
	case <-ctx.Done():
		p.mu.Lock()
		remaining := make([]*PooledConnection, 0, len(p.checkedOut))
		for _, c := range p.checkedOut {
			remaining = append(remaining, c)
		}
		p.checkedOut = make(map[string]*PooledConnection)
		p.total -= len(remaining)
		p.mu.Unlock()

		for _, c := range remaining {
			p.destroy(c, "pool shutdown timeout")
		}
		p.logger.Warn().
			Int("force_closed", len(remaining)).
			Msg("Connection pool closed before all connections were returned")
		return pkgerrors.Wrapf(ctx.Err(), pkgerrors.CodeUnavailable,
			"pool shutdown timed out with %d connections still checked out", len(remaining))
	}
}

// connect dials a new physical connection. The caller must already hold a
// slot reservation in p.total; on failure the reservation is returned and
// one waiter is woken to retry.
func (p *Pool) connect(ctx context.Context) (*PooledConnection, error) {
	start := time.Now()
	conn, err := p.factory.Connect(ctx)
	if err != nil {
		p.mu.Lock()
		p.total--
		p.signalWaiterLocked()
		p.mu.Unlock()
		return nil, err
	}

	c := &PooledConnection{
		id:        uuid.NewString(),
		conn:      conn,
		createdAt: time.Now(),
	}
	c.state.Store(int32(StateCheckedOut))

	p.logger.Debug().
		Str("connection_id", c.id).
		Dur("dial_time", time.Since(start)).
		Msg("Established pooled connection")
	return c, nil
}

// validate checks a connection before reuse. Deep validation runs the
// probe query; shallow validation trusts the release-path filtering that
// keeps broken connections out of the idle set.
func (p *Pool) validate(ctx context.Context, c *PooledConnection) error {
	if !p.config.DeepHealthCheck {
		return nil
	}
	return c.probe(ctx)
}

// stashLocked places a returned connection: direct handoff to the oldest
// waiter, else idle, else closed when MaxIdle is reached. Caller holds
// p.mu and has removed c from checkedOut. Returns true when the caller
// must close the connection after unlocking.
func (p *Pool) stashLocked(c *PooledConnection) bool {
	if p.closed {
		p.total--
		p.maybeDrainedLocked()
		return true
	}
	if w := p.popWaiterLocked(); w != nil {
		c.lastUsed = time.Now()
		p.checkedOut[c.id] = c
		w <- c
		return false
	}
	if p.config.MaxIdle > 0 && len(p.idle) >= p.config.MaxIdle {
		p.total--
		p.signalWaiterLocked()
		return true
	}
	c.state.Store(int32(StateIdle))
	c.lastUsed = time.Now()
	p.idle = append(p.idle, c)
	return false
}

// drop removes a checked-out connection from the books and closes it.
func (p *Pool) drop(c *PooledConnection, reason string, err error) {
	p.logger.Warn().
		Err(err).
		Str("connection_id", c.id).
		Msg("Retiring connection that " + reason)

	p.mu.Lock()
	p.dropLocked(c)
	p.mu.Unlock()

	p.destroy(c, reason)
}

// dropLocked frees the slot held by a checked-out connection. Caller holds
// p.mu.
func (p *Pool) dropLocked(c *PooledConnection) {
	delete(p.checkedOut, c.id)
	c.state.Store(int32(StateInvalid))
	p.total--
	p.signalWaiterLocked()
	p.maybeDrainedLocked()
}

// destroy closes the physical connection and marks it closed.
func (p *Pool) destroy(c *PooledConnection, reason string) {
	if err := c.conn.Close(); err != nil {
		p.logger.Warn().
			Err(err).
			Str("connection_id", c.id).
			Msg("Error closing connection")
	}
	c.state.Store(int32(StateClosed))
	p.logger.Debug().
		Str("connection_id", c.id).
		Str("reason", reason).
		Msg("Closed pooled connection")
}

// popWaiterLocked removes and returns the oldest waiter, or nil.
func (p *Pool) popWaiterLocked() chan *PooledConnection {
	if len(p.waiters) == 0 {
		return nil
	}
	w := p.waiters[0]
	p.waiters[0] = nil
	p.waiters = p.waiters[1:]
	return w
}

// signalWaiterLocked wakes one waiter to retry after capacity opened up.
func (p *Pool) signalWaiterLocked() {
	if w := p.popWaiterLocked(); w != nil {
		w <- nil
	}
}

// cancelWait withdraws a waiter that gave up. When the waiter was already
// signalled, whatever was sent is re-routed so neither a connection nor a
// wakeup is lost.
func (p *Pool) cancelWait(w chan *PooledConnection) {
	p.mu.Lock()
	for i, q := range p.waiters {
		if q == w {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			p.mu.Unlock()
			return
		}
	}

	// Not queued anymore: a handoff, retry signal, or close already
	// happened. Sends occur under p.mu, so the channel is ready now.
	var closeIt bool
	var conn *PooledConnection
	select {
	case c, ok := <-w:
		switch {
		case !ok:
			// Pool shut down; nothing to recover.
		case c == nil:
			p.signalWaiterLocked()
		default:
			delete(p.checkedOut, c.id)
			conn = c
			closeIt = p.stashLocked(c)
		}
	default:
	}
	p.mu.Unlock()

	if closeIt {
		p.destroy(conn, "waiter cancelled")
	}
}

// maybeDrainedLocked signals Shutdown once the last checked-out connection
// is gone. Caller holds p.mu.
func (p *Pool) maybeDrainedLocked() {
	if !p.closed || p.drained == nil || len(p.checkedOut) != 0 {
		return
	}
	select {
	case <-p.drained:
	default:
		close(p.drained)
	}
}
