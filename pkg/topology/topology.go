// Package topology provides the topology collaborator consumed by the
// session core. Checking sessions in and out of a connection pool, and
// the pool's own balancing/reshuffling logic, are out of scope for the
// session core itself — only this interface is required.
package topology

import (
	"context"
	"errors"

	"github.com/Sokol111/mongosession/pkg/session"
)

// Kind distinguishes a write-capable checkout from a read-only one, the
// "type" parameter of checkout_session.
type Kind int

const (
	AnySession Kind = iota
	WriteSession
)

// Marker distinguishes sessions opened by user code from those created
// automatically on behalf of a single operation.
type Marker int

const (
	Explicit Marker = iota
	Implicit
)

// ErrConnectionReplaced is the recoverable "connection replaced" signal:
// the pool reshuffled underneath the caller and checkout must be retried.
var ErrConnectionReplaced = errors.New("topology: connection replaced, retry checkout")

// Topology is the collaborator the Session Manager checks sessions out of
// and back into.
type Topology interface {
	// CheckoutSession acquires a session from the pool, binding it to a
	// connection and wrapping it in a running SSM. Returns
	// ErrConnectionReplaced when the caller should retry.
	CheckoutSession(ctx context.Context, kind Kind, marker Marker, opts session.Options) (*session.SSM, error)

	// CheckinSession returns a ServerSession recovered from a terminated
	// SSM back to the pool for reuse.
	CheckinSession(ctx context.Context, ss session.ServerSession) error
}
