package wire

import (
	"context"
	"sync"

	"github.com/Sokol111/mongosession/pkg/session"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// FakeConnection is an in-memory session.Connection used by tests and the
// sessiondemo CLI, standing in for a real pooled socket.
type FakeConnection struct {
	id string
}

// NewFakeConnection returns a FakeConnection identified by id.
func NewFakeConnection(id string) *FakeConnection { return &FakeConnection{id: id} }

func (c *FakeConnection) ID() string { return c.id }

// FakeDriver records every command it is asked to execute and replays a
// scripted reply, without touching a network. It implements session.Driver.
type FakeDriver struct {
	mu       sync.Mutex
	Commands []FakeExecution
	Reply    bson.Raw
	Err      error
}

// FakeExecution is one recorded call to ExecCommand.
type FakeExecution struct {
	Database string
	Cmd      session.Doc
}

// NewFakeDriver returns a FakeDriver that replies with a nil document and
// no error until Reply or Err is set.
func NewFakeDriver() *FakeDriver {
	return &FakeDriver{}
}

func (d *FakeDriver) ExecCommand(_ context.Context, _ session.Connection, cmd session.Doc, database string) (bson.Raw, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Commands = append(d.Commands, FakeExecution{Database: database, Cmd: cmd})
	if d.Err != nil {
		return nil, d.Err
	}
	return d.Reply, nil
}

// Executions returns a snapshot of every command run so far.
func (d *FakeDriver) Executions() []FakeExecution {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]FakeExecution, len(d.Commands))
	copy(out, d.Commands)
	return out
}
