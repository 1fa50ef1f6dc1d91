package session

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// AdminDatabase is the database commit/abort commands are always issued
// against.
const AdminDatabase = "admin"

// Connection is the shared, read-only handle to a connection usable by the
// wire driver. The session core never executes commands on it directly
// except for its own commit/abort calls; ordinary operation execution is
// the caller's responsibility, performed by the wire driver's own pooled,
// thread-safe machinery.
type Connection interface {
	// ID identifies the underlying connection for logging/diagnostics.
	ID() string
}

// Driver is the wire/connection collaborator the session core depends on.
// Its implementation — connection pooling, retries, BSON wire encoding — is
// deliberately out of scope for this package; only this shape is required.
type Driver interface {
	ExecCommand(ctx context.Context, conn Connection, cmd Doc, database string) (bson.Raw, error)
}
