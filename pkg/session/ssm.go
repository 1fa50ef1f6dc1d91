package session

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

// opKind is the closed set of requests the SSM mailbox accepts.
type opKind int

const (
	opStartTransaction opKind = iota
	opBindSession
	opCommitTransaction
	opAbortTransaction
	opConnection
	opServerSession
	opEndSession
	opEndImplicitSession
)

// message is a single mailbox entry: one request, served to completion
// before the next is read.
type message struct {
	kind  opKind
	cmd   Doc
	reply chan result
}

// result carries whichever of the operation's possible outputs applies;
// unused fields are left zero.
type result struct {
	err           error
	cmd           Doc
	conn          Connection
	serverSession ServerSession
	implicit      bool
	handled       bool // for end_implicit_session's noop reply
}

// SSM is the per-session state machine actor: a single goroutine owning
// one ServerSession, serving requests from its mailbox one at a time.
// There is no other synchronization primitive — callers never touch the
// fields below directly.
type SSM struct {
	mailbox    chan message
	advanceCh  chan bson.Timestamp
	stoppedCh  chan struct{}
	log        *zap.Logger

	// Owned exclusively by the mailbox goroutine.
	conn              Connection
	serverSession     ServerSession
	wireVersion       uint32
	implicit          bool
	causalConsistency bool
	operationTime     *bson.Timestamp
	opts              Options
	driver            Driver
	state             State
}

// NewSSM starts a new session state machine actor and returns it. The
// returned SSM owns ss exclusively until a later end_session/
// end_implicit_session hands it back.
func NewSSM(conn Connection, ss ServerSession, wireVersion uint32, implicit bool, causalConsistency bool, opts Options, driver Driver, log *zap.Logger) *SSM {
	if log == nil {
		log = zap.NewNop()
	}
	s := &SSM{
		mailbox:           make(chan message, 16),
		advanceCh:         make(chan bson.Timestamp, 1),
		stoppedCh:         make(chan struct{}),
		log:               log,
		conn:              conn,
		serverSession:     ss,
		wireVersion:       wireVersion,
		implicit:          implicit,
		causalConsistency: causalConsistency,
		opts:              opts,
		driver:            driver,
		state:             NoTransaction,
	}
	go s.loop()
	return s
}

func (s *SSM) loop() {
	defer close(s.stoppedCh)
	for {
		select {
		case m, ok := <-s.mailbox:
			if !ok {
				return
			}
			stop := s.handle(m)
			if stop {
				return
			}
		case t := <-s.advanceCh:
			s.doAdvanceOperationTime(t)
		}
	}
}

// send delivers m to the mailbox and waits for either a reply, the caller's
// context to end, or the SSM to have already stopped.
func (s *SSM) send(ctx context.Context, m message) (result, error) {
	select {
	case <-s.stoppedCh:
		return result{}, ErrSessionEnded
	default:
	}

	select {
	case s.mailbox <- m:
	case <-s.stoppedCh:
		return result{}, ErrSessionEnded
	case <-ctx.Done():
		return result{}, ctx.Err()
	}

	select {
	case r := <-m.reply:
		return r, nil
	case <-s.stoppedCh:
		return result{}, ErrSessionEnded
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
}

func (s *SSM) handle(m message) (stop bool) {
	switch m.kind {
	case opStartTransaction:
		m.reply <- s.doStartTransaction()
		return false

	case opBindSession:
		m.reply <- s.doBindSession(m.cmd)
		return false

	case opCommitTransaction:
		m.reply <- s.doCommitTransaction()
		return false

	case opAbortTransaction:
		m.reply <- s.doAbortTransaction()
		return false

	case opConnection:
		m.reply <- result{conn: s.conn}
		return false

	case opServerSession:
		m.reply <- result{serverSession: s.serverSession, implicit: s.implicit}
		return false

	case opEndSession:
		r := s.doEnd()
		m.reply <- r
		return true

	case opEndImplicitSession:
		if !s.implicit {
			m.reply <- result{handled: false}
			return false
		}
		r := s.doEnd()
		r.handled = true
		m.reply <- r
		return true

	default:
		m.reply <- result{err: fmt.Errorf("%w: unrecognized operation", ErrProtocolMisuse)}
		return false
	}
}

func (s *SSM) doStartTransaction() result {
	if !canStartTransaction(s.state) {
		return result{err: fmt.Errorf("%w: cannot start transaction from %s", ErrProtocolMisuse, s.state)}
	}
	s.serverSession = s.serverSession.NextTxnNum()
	s.state = StartingTransaction
	return result{}
}

func (s *SSM) doBindSession(cmd Doc) result {
	out, next := bindSession(cmd, s.wireVersion, s.state, s.serverSession.ID, s.serverSession.TxnNum, s.causalConsistency, s.operationTime)
	s.state = next
	return result{cmd: out, conn: s.conn}
}

func (s *SSM) doCommitTransaction() result {
	switch s.state {
	case StartingTransaction:
		s.state = TransactionCommitted
		return result{}

	case TransactionInProgress:
		err := s.runCommitOrAbort("commitTransaction", buildCommitCommand(s.serverSession.ID, s.serverSession.TxnNum, s.opts))
		s.state = TransactionCommitted
		return result{err: err}

	default:
		return result{err: ErrNoTransactionStarted}
	}
}

func (s *SSM) doAbortTransaction() result {
	switch s.state {
	case StartingTransaction:
		s.state = TransactionAborted
		return result{}

	case TransactionInProgress:
		err := s.runCommitOrAbort("abortTransaction", buildAbortCommand(s.serverSession.ID, s.serverSession.TxnNum, s.opts))
		s.state = TransactionAborted
		return result{err: err}

	default:
		return result{err: ErrNoTransactionStarted}
	}
}

func (s *SSM) runCommitOrAbort(op string, cmd Doc) error {
	s.log.Info("Running "+fieldName(op), zap.String("op", op))
	_, err := s.driver.ExecCommand(context.Background(), s.conn, cmd, AdminDatabase)
	if err != nil {
		return &WireError{Op: op, Err: err}
	}
	return nil
}

func fieldName(op string) string {
	switch op {
	case "commitTransaction":
		return "commit transaction"
	case "abortTransaction":
		return "abort transaction"
	default:
		return op
	}
}

// doEnd performs the abnormal/normal termination cleanup: a synchronous
// abort is issued iff the SSM is mid-transaction.
func (s *SSM) doEnd() result {
	if s.state == TransactionInProgress {
		s.log.Debug("ending session while transaction in progress, issuing abort")
		if err := s.runCommitOrAbort("abortTransaction", buildAbortCommand(s.serverSession.ID, s.serverSession.TxnNum, s.opts)); err != nil {
			s.log.Debug("cleanup abort failed", zap.Error(err))
		}
		s.state = TransactionAborted
	}
	return result{serverSession: s.serverSession}
}

func (s *SSM) doAdvanceOperationTime(t bson.Timestamp) {
	if s.operationTime == nil || operationTimeAfter(t, *s.operationTime) {
		ts := t
		s.operationTime = &ts
	}
}

// --- Public contract ---

// StartTransaction begins a new transaction.
func (s *SSM) StartTransaction(ctx context.Context) error {
	r, err := s.send(ctx, message{kind: opStartTransaction, reply: make(chan result, 1)})
	if err != nil {
		return err
	}
	return r.err
}

// BindSession decorates cmd with session metadata appropriate to the
// current wire version and state.
func (s *SSM) BindSession(ctx context.Context, cmd Doc) (Connection, Doc, error) {
	r, err := s.send(ctx, message{kind: opBindSession, cmd: cmd, reply: make(chan result, 1)})
	if err != nil {
		return nil, nil, err
	}
	return r.conn, r.cmd, r.err
}

// CommitTransaction commits the current transaction.
func (s *SSM) CommitTransaction(ctx context.Context) error {
	r, err := s.send(ctx, message{kind: opCommitTransaction, reply: make(chan result, 1)})
	if err != nil {
		return err
	}
	return r.err
}

// AbortTransaction aborts the current transaction.
func (s *SSM) AbortTransaction(ctx context.Context) error {
	r, err := s.send(ctx, message{kind: opAbortTransaction, reply: make(chan result, 1)})
	if err != nil {
		return err
	}
	return r.err
}

// Connection returns the stored connection handle.
func (s *SSM) Connection(ctx context.Context) (Connection, error) {
	r, err := s.send(ctx, message{kind: opConnection, reply: make(chan result, 1)})
	if err != nil {
		return nil, err
	}
	return r.conn, nil
}

// ServerSessionInfo returns the current ServerSession and whether this SSM
// is implicit.
func (s *SSM) ServerSessionInfo(ctx context.Context) (ServerSession, bool, error) {
	r, err := s.send(ctx, message{kind: opServerSession, reply: make(chan result, 1)})
	if err != nil {
		return ServerSession{}, false, err
	}
	return r.serverSession, r.implicit, nil
}

// AdvanceOperationTime is a fire-and-forget cast: it updates operation_time
// iff t is strictly greater than the current value, and never blocks the
// caller waiting for the mailbox.
func (s *SSM) AdvanceOperationTime(t bson.Timestamp) {
	select {
	case s.advanceCh <- t:
	case <-s.stoppedCh:
	default:
		go func() {
			select {
			case s.advanceCh <- t:
			case <-s.stoppedCh:
			}
		}()
	}
}

// EndSession stops the SSM unconditionally, issuing an abort first if a
// transaction is in progress, and hands the owned ServerSession back to the
// caller for check-in.
func (s *SSM) EndSession(ctx context.Context) (ServerSession, error) {
	r, err := s.send(ctx, message{kind: opEndSession, reply: make(chan result, 1)})
	if err != nil {
		if err == ErrSessionEnded {
			return ServerSession{}, nil
		}
		return ServerSession{}, err
	}
	return r.serverSession, r.err
}

// EndImplicitSession stops the SSM only if it was created implicitly;
// called on an explicit session it is a no-op (handled=false) and may be
// called repeatedly without check-in.
func (s *SSM) EndImplicitSession(ctx context.Context) (ss ServerSession, handled bool, err error) {
	r, sendErr := s.send(ctx, message{kind: opEndImplicitSession, reply: make(chan result, 1)})
	if sendErr != nil {
		if sendErr == ErrSessionEnded {
			return ServerSession{}, false, nil
		}
		return ServerSession{}, false, sendErr
	}
	return r.serverSession, r.handled, r.err
}
