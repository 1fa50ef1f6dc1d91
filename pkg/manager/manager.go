// Package manager implements the Session Manager facade: stateless helpers
// that acquire sessions from a topology collaborator, run a user function
// inside a guaranteed-cleanup transaction, and release sessions back to
// the pool.
package manager

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sokol111/mongosession/pkg/session"
	"github.com/Sokol111/mongosession/pkg/topology"
	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// TxFunc is the user function run inside WithTransaction. opts carries the
// checked-out session so the function can pass it on to repository calls.
type TxFunc func(ctx context.Context, opts session.Options) (any, error)

// Manager is the Session Manager facade.
type Manager struct {
	topo       topology.Topology
	log        *zap.Logger
	tracer     trace.Tracer
	committed  metric.Int64Counter
	aborted    metric.Int64Counter
	maxRetries uint64
}

// New builds a Manager backed by topo. maxRetries bounds the number of
// checkout retries on topology.ErrConnectionReplaced rather than retrying
// unconditionally.
func New(topo topology.Topology, log *zap.Logger, tp trace.TracerProvider, mp metric.MeterProvider, maxRetries uint64) (*Manager, error) {
	if log == nil {
		log = zap.NewNop()
	}
	meter := mp.Meter("github.com/Sokol111/mongosession")
	committed, err := meter.Int64Counter("mongosession.transactions.committed")
	if err != nil {
		return nil, fmt.Errorf("manager: create committed counter: %w", err)
	}
	aborted, err := meter.Int64Counter("mongosession.transactions.aborted")
	if err != nil {
		return nil, fmt.Errorf("manager: create aborted counter: %w", err)
	}

	return &Manager{
		topo:       topo,
		log:        log,
		tracer:     tp.Tracer("github.com/Sokol111/mongosession"),
		committed:  committed,
		aborted:    aborted,
		maxRetries: maxRetries,
	}, nil
}

// StartSession checks out an explicit session.
func (m *Manager) StartSession(ctx context.Context, kind topology.Kind, opts session.Options) (*session.SSM, error) {
	return m.checkout(ctx, kind, topology.Explicit, opts)
}

// StartImplicitSession returns opts.Session verbatim if already set —
// an explicit session subsumes an implicit one — otherwise checks out an
// implicit session.
func (m *Manager) StartImplicitSession(ctx context.Context, kind topology.Kind, opts session.Options) (*session.SSM, error) {
	if opts.Session != nil {
		return opts.Session, nil
	}
	return m.checkout(ctx, kind, topology.Implicit, opts)
}

func (m *Manager) checkout(ctx context.Context, kind topology.Kind, marker topology.Marker, opts session.Options) (*session.SSM, error) {
	var ssm *session.SSM

	op := func() error {
		s, err := m.topo.CheckoutSession(ctx, kind, marker, opts)
		if err != nil {
			if errors.Is(err, topology.ErrConnectionReplaced) {
				m.log.Debug("checkout signalled connection replaced, retrying")
				return err
			}
			return backoff.Permanent(err)
		}
		ssm = s
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), m.maxRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, fmt.Errorf("manager: checkout session: %w", err)
	}
	return ssm, nil
}

// WithTransaction acquires a new write session, starts a transaction,
// invokes fn, and guarantees commit-or-abort plus check-in on every path,
// including a panic inside fn.
func (m *Manager) WithTransaction(ctx context.Context, fn TxFunc, opts session.Options) (result any, err error) {
	ctx, span := m.tracer.Start(ctx, "mongosession.WithTransaction")
	defer span.End()

	ssm, err := m.StartSession(ctx, topology.WriteSession, opts)
	if err != nil {
		return nil, fmt.Errorf("manager: with transaction: %w", err)
	}

	defer func() {
		if _, endErr := m.EndSession(context.WithoutCancel(ctx), ssm); endErr != nil {
			m.log.Warn("failed to end session after transaction", zap.Error(endErr))
		}
	}()

	if err := ssm.StartTransaction(ctx); err != nil {
		return nil, fmt.Errorf("manager: start transaction: %w", err)
	}

	result, fnErr := m.runUserFunction(ctx, ssm, fn, opts)
	if fnErr != nil {
		if abortErr := ssm.AbortTransaction(context.WithoutCancel(ctx)); abortErr != nil {
			m.log.Warn("abort after failed transaction function also failed", zap.Error(abortErr))
		}
		m.aborted.Add(ctx, 1)
		return nil, fnErr
	}

	if commitErr := ssm.CommitTransaction(context.WithoutCancel(ctx)); commitErr != nil {
		return nil, fmt.Errorf("manager: commit transaction: %w", commitErr)
	}
	m.committed.Add(ctx, 1)
	return result, nil
}

// runUserFunction converts a panic inside fn into an error, so the deferred
// abort/commit-and-checkin in WithTransaction always runs regardless of
// how fn fails.
func (m *Manager) runUserFunction(ctx context.Context, ssm *session.SSM, fn TxFunc, opts session.Options) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("manager: transaction function panicked: %v", r)
		}
	}()

	withSession := opts
	withSession.Session = ssm
	return fn(ctx, withSession)
}

// EndSession stops ssm's SSM and checks the recovered ServerSession back
// into the topology pool.
func (m *Manager) EndSession(ctx context.Context, ssm *session.SSM) (session.ServerSession, error) {
	ss, err := ssm.EndSession(ctx)
	if err != nil {
		return ss, fmt.Errorf("manager: end session: %w", err)
	}
	if err := m.topo.CheckinSession(ctx, ss); err != nil {
		return ss, fmt.Errorf("manager: checkin session: %w", err)
	}
	return ss, nil
}

// EndImplicitSession stops ssm only if it was created implicitly; on an
// explicit session it is an idempotent no-op.
func (m *Manager) EndImplicitSession(ctx context.Context, ssm *session.SSM) error {
	ss, handled, err := ssm.EndImplicitSession(ctx)
	if err != nil {
		return fmt.Errorf("manager: end implicit session: %w", err)
	}
	if !handled {
		return nil
	}
	if err := m.topo.CheckinSession(ctx, ss); err != nil {
		return fmt.Errorf("manager: checkin session: %w", err)
	}
	return nil
}
