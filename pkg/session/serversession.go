package session

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// ServerSession is the client-side record of a server-issued logical session
// identifier and the transaction-number counter associated with it. It holds
// no connection and performs no I/O: every operation is a pure function over
// the value.
type ServerSession struct {
	// ID is the server-recognized session identifier, generated once and
	// immutable for the lifetime of the ServerSession.
	ID uuid.UUID

	// TxnNum is the last transaction number allocated on this session.
	// Strictly monotonically increasing; zero before any transaction starts.
	TxnNum int64
}

// NewServerSession generates a fresh ServerSession with a cryptographically
// random identifier and a zeroed transaction-number counter.
func NewServerSession() ServerSession {
	return ServerSession{ID: uuid.New(), TxnNum: 0}
}

// NextTxnNum returns a copy of s with TxnNum incremented by one. It never
// wraps: a 64-bit counter reaching its maximum is treated as a fatal
// programmer error rather than a recoverable condition.
func (s ServerSession) NextTxnNum() ServerSession {
	if s.TxnNum == math.MaxInt64 {
		panic(fmt.Sprintf("session: txn_num overflow for session %s", s.ID))
	}
	s.TxnNum++
	return s
}
