package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/Sokol111/mongosession/pkg/session"
	"github.com/Sokol111/mongosession/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func newTestSSM(t *testing.T, wireVersion uint32, causal bool) (*session.SSM, *wire.FakeDriver) {
	t.Helper()
	driver := wire.NewFakeDriver()
	conn := wire.NewFakeConnection("test-conn")
	ssm := session.NewSSM(conn, session.NewServerSession(), wireVersion, false, causal, session.Options{}, driver, nil)
	return ssm, driver
}

func TestHappyPathTransaction(t *testing.T) {
	ctx := context.Background()
	ssm, driver := newTestSSM(t, 13, false)

	require.NoError(t, ssm.StartTransaction(ctx))

	_, cmd, err := ssm.BindSession(ctx, session.Doc{{Key: "insert", Value: "orders"}})
	require.NoError(t, err)
	startTxn, _ := cmdGet(cmd, "startTransaction")
	assert.Equal(t, true, startTxn)

	require.NoError(t, ssm.CommitTransaction(ctx))

	execs := driver.Executions()
	require.Len(t, execs, 1)
	assert.Equal(t, session.AdminDatabase, execs[0].Database)
	assert.Equal(t, "commitTransaction", execs[0].Cmd[0].Key)
}

func TestAbortInProgressTransaction(t *testing.T) {
	ctx := context.Background()
	ssm, driver := newTestSSM(t, 13, false)

	require.NoError(t, ssm.StartTransaction(ctx))
	_, _, err := ssm.BindSession(ctx, session.Doc{{Key: "insert", Value: "orders"}})
	require.NoError(t, err)

	require.NoError(t, ssm.AbortTransaction(ctx))

	execs := driver.Executions()
	require.Len(t, execs, 1)
	assert.Equal(t, "abortTransaction", execs[0].Cmd[0].Key)
}

func TestAbortBeforeFirstStatementSkipsNetwork(t *testing.T) {
	ctx := context.Background()
	ssm, driver := newTestSSM(t, 13, false)

	require.NoError(t, ssm.StartTransaction(ctx))
	require.NoError(t, ssm.AbortTransaction(ctx))

	assert.Empty(t, driver.Executions(), "aborting before any statement bound sends no command")
}

func TestCommitWithoutTransactionIsProtocolMisuse(t *testing.T) {
	ctx := context.Background()
	ssm, _ := newTestSSM(t, 13, false)

	err := ssm.CommitTransaction(ctx)
	assert.ErrorIs(t, err, session.ErrNoTransactionStarted)
	assert.ErrorIs(t, err, session.ErrProtocolMisuse)
}

func TestStartTransactionTwiceIsProtocolMisuse(t *testing.T) {
	ctx := context.Background()
	ssm, _ := newTestSSM(t, 13, false)

	require.NoError(t, ssm.StartTransaction(ctx))
	err := ssm.StartTransaction(ctx)
	assert.ErrorIs(t, err, session.ErrProtocolMisuse)
}

func TestBindSessionGatedByWireVersion(t *testing.T) {
	ctx := context.Background()
	ssm, _ := newTestSSM(t, 4, false)

	cmd := session.Doc{{Key: "find", Value: "orders"}}
	_, out, err := ssm.BindSession(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, cmd, out, "below wire version 6, bind_session is a no-op")
}

func TestCausalConsistencyPinsReadConcernAfterAdvance(t *testing.T) {
	ctx := context.Background()
	ssm, driver := newTestSSM(t, 13, true)
	driver.Reply = marshal(t, session.Doc{
		{Key: "ok", Value: 1},
		{Key: "operationTime", Value: bson.Timestamp{T: 42, I: 1}},
	})

	_, cmd, err := ssm.BindSession(ctx, session.Doc{{Key: "find", Value: "orders"}})
	require.NoError(t, err)
	_, idx := cmdGet(cmd, "readConcern")
	assert.Equal(t, -1, idx, "no operation time observed yet")

	reply := session.UpdateSession(ssm, driver.Reply, session.Options{})
	assert.NotNil(t, reply)

	// AdvanceOperationTime is a fire-and-forget cast; give it a moment to land
	// before asserting on the next bound command.
	require.Eventually(t, func() bool {
		_, cmd, err := ssm.BindSession(ctx, session.Doc{{Key: "find", Value: "orders"}})
		if err != nil {
			return false
		}
		_, idx := cmdGet(cmd, "readConcern")
		return idx != -1
	}, time.Second, 5*time.Millisecond)

	_, cmd, err = ssm.BindSession(ctx, session.Doc{{Key: "find", Value: "orders"}})
	require.NoError(t, err)
	rc, idx := cmdGet(cmd, "readConcern")
	require.NotEqual(t, -1, idx)
	acTime, _ := cmdGet(rc.(session.Doc), "afterClusterTime")
	assert.Equal(t, bson.Timestamp{T: 42, I: 1}, acTime)
}

func TestEndSessionAbortsInProgressTransaction(t *testing.T) {
	ctx := context.Background()
	ssm, driver := newTestSSM(t, 13, false)

	require.NoError(t, ssm.StartTransaction(ctx))
	_, _, err := ssm.BindSession(ctx, session.Doc{{Key: "insert", Value: "orders"}})
	require.NoError(t, err)

	_, err = ssm.EndSession(ctx)
	require.NoError(t, err)

	execs := driver.Executions()
	require.Len(t, execs, 1)
	assert.Equal(t, "abortTransaction", execs[0].Cmd[0].Key)
}

func TestEndImplicitSessionNoopOnExplicitSession(t *testing.T) {
	ctx := context.Background()
	driver := wire.NewFakeDriver()
	conn := wire.NewFakeConnection("test-conn")
	ssm := session.NewSSM(conn, session.NewServerSession(), 13, false, false, session.Options{}, driver, nil)

	_, handled, err := ssm.EndImplicitSession(ctx)
	require.NoError(t, err)
	assert.False(t, handled, "end_implicit_session is a no-op on an explicit session")

	// the SSM is still alive: an explicit operation still succeeds
	require.NoError(t, ssm.StartTransaction(ctx))
}

func TestEndImplicitSessionStopsImplicitSession(t *testing.T) {
	ctx := context.Background()
	driver := wire.NewFakeDriver()
	conn := wire.NewFakeConnection("test-conn")
	ssm := session.NewSSM(conn, session.NewServerSession(), 13, true, false, session.Options{}, driver, nil)

	_, handled, err := ssm.EndImplicitSession(ctx)
	require.NoError(t, err)
	assert.True(t, handled)

	err = ssm.StartTransaction(ctx)
	assert.ErrorIs(t, err, session.ErrSessionEnded)
}

// A message can still be sitting in the buffered mailbox when a concurrent
// caller's end_session is served first and stops the loop. The waiting
// caller must be woken with ErrSessionEnded rather than left blocked on a
// reply that will never arrive.
func TestBindSessionAbandonedByConcurrentEndSessionDoesNotHang(t *testing.T) {
	ctx := context.Background()
	driver := wire.NewFakeDriver()
	conn := wire.NewFakeConnection("test-conn")
	ssm := session.NewSSM(conn, session.NewServerSession(), 13, false, false, session.Options{}, driver, nil)

	done := make(chan error, 1)
	go func() {
		_, _, err := ssm.BindSession(ctx, session.Doc{{Key: "insert", Value: "orders"}})
		done <- err
	}()

	_, err := ssm.EndSession(ctx)
	require.NoError(t, err)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, session.ErrSessionEnded)
	case <-time.After(2 * time.Second):
		t.Fatal("BindSession hung after a concurrent EndSession stopped the SSM")
	}
}

func cmdGet(d session.Doc, key string) (any, int) {
	for i, e := range d {
		if e.Key == key {
			return e.Value, i
		}
	}
	return nil, -1
}

func marshal(t *testing.T, d session.Doc) bson.Raw {
	t.Helper()
	raw, err := bson.Marshal(d)
	require.NoError(t, err)
	return raw
}
