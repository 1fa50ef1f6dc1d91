package topology

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sokol111/mongosession/pkg/session"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// ConnectionProvider hands out a connection for a new checkout. It may
// return ErrConnectionReplaced to signal a reshuffle the caller should
// retry.
type ConnectionProvider func(ctx context.Context) (session.Connection, error)

// Pool is a bulkhead-limited, ServerSession-recycling implementation of
// Topology; each checkout takes a fresh connection from its provider. It does not attempt to be a faithful driver-grade connection
// pool; it exists to give the Session Manager a concrete collaborator
// that exercises the reshuffle-and-retry discipline checkout requires.
type Pool struct {
	sem         *semaphore.Weighted
	timeout     time.Duration
	connProvide ConnectionProvider
	driver      session.Driver
	wireVersion atomic.Uint32
	log         *zap.Logger

	mu       sync.Mutex
	recycled []session.ServerSession
}

// NewPool creates a Pool with the given checkout concurrency limit and
// acquisition timeout. Call SetWireVersion once connectivity is established
// (the server's maxWireVersion is only knowable after a handshake).
func NewPool(connProvide ConnectionProvider, driver session.Driver, limit int, timeout time.Duration, log *zap.Logger) *Pool {
	if log == nil {
		log = zap.NewNop()
	}
	log.Info("session pool initialized",
		zap.Int("checkout-limit", limit),
		zap.Duration("checkout-timeout", timeout),
	)
	return &Pool{
		sem:         semaphore.NewWeighted(int64(limit)),
		timeout:     timeout,
		connProvide: connProvide,
		driver:      driver,
		log:         log,
	}
}

// SetWireVersion records the server's maxWireVersion, consulted by every
// subsequent checkout to decide whether bind_session applies.
func (p *Pool) SetWireVersion(v uint32) {
	p.wireVersion.Store(v)
	p.log.Info("session pool wire version updated", zap.Uint32("wire-version", v))
}

func (p *Pool) CheckoutSession(ctx context.Context, kind Kind, marker Marker, opts session.Options) (*session.SSM, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.sem.Acquire(timeoutCtx, 1); err != nil {
		p.log.Warn("session checkout bulkhead acquisition failed", zap.Error(err))
		return nil, err
	}
	defer p.sem.Release(1)

	conn, err := p.connProvide(ctx)
	if err != nil {
		return nil, err
	}

	ss := p.takeServerSession()
	implicit := marker == Implicit
	ssm := session.NewSSM(conn, ss, p.wireVersion.Load(), implicit, opts.CausalConsistency, opts, p.driver, p.log)

	p.log.Debug("session checked out",
		zap.String("session-id", ss.ID.String()),
		zap.Bool("implicit", implicit),
		zap.Bool("write", kind == WriteSession),
	)
	return ssm, nil
}

func (p *Pool) CheckinSession(_ context.Context, ss session.ServerSession) error {
	p.mu.Lock()
	p.recycled = append(p.recycled, ss)
	p.mu.Unlock()
	p.log.Debug("session checked in", zap.String("session-id", ss.ID.String()))
	return nil
}

// takeServerSession reuses a recycled ServerSession (mirroring the server
// session pool MongoDB's own driver keeps) or mints a fresh one.
func (p *Pool) takeServerSession() session.ServerSession {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := len(p.recycled); n > 0 {
		ss := p.recycled[n-1]
		p.recycled = p.recycled[:n-1]
		return ss
	}
	return session.NewServerSession()
}
