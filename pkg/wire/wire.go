// Package wire provides implementations of the session package's Driver and
// Connection collaborators. The wire/connection driver itself — encoding,
// pooling, retries at the socket level — is out of scope for this module;
// this package only supplies the thin shim the session core calls through.
package wire

import (
	"context"
	"fmt"

	"github.com/Sokol111/mongosession/pkg/session"
	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
)

// Connection is the real, mongo-driver-backed implementation of
// session.Connection. It wraps the *mongo.Client the SSM's commands are
// eventually run against.
type Connection struct {
	id     string
	client *mongodriver.Client
}

// NewConnection wraps client as a session.Connection identified by id.
func NewConnection(id string, client *mongodriver.Client) *Connection {
	return &Connection{id: id, client: client}
}

func (c *Connection) ID() string { return c.id }

// Driver runs session.Doc commands against a *mongo.Client's admin database,
// implementing session.Driver.
type Driver struct {
	client *mongodriver.Client
}

// NewDriver wraps client as a session.Driver.
func NewDriver(client *mongodriver.Client) *Driver {
	return &Driver{client: client}
}

func (d *Driver) ExecCommand(ctx context.Context, conn session.Connection, cmd session.Doc, database string) (bson.Raw, error) {
	c, ok := conn.(*Connection)
	if !ok {
		return nil, fmt.Errorf("wire: unrecognized connection type %T", conn)
	}
	if c.client != d.client {
		return nil, fmt.Errorf("wire: connection does not belong to this driver")
	}

	raw, err := d.client.Database(database).RunCommand(ctx, cmd).Raw()
	if err != nil {
		return nil, fmt.Errorf("wire: exec command against %s: %w", database, err)
	}
	return raw, nil
}
