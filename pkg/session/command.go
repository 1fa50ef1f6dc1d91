package session

import (
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Doc is the ordered key/value association MongoDB command documents
// require (the first key names the command verb). bson.D already preserves
// insertion order through merge, drop and null-filter operations, which is
// exactly what the decoration logic in this file needs.
type Doc = bson.D

const uuidBinarySubtype = 0x04

// lsidValue builds the {id: <UUID>} subdocument tagged as BSON binary
// subtype 4.
func lsidValue(id uuid.UUID) Doc {
	return Doc{{Key: "id", Value: bson.Binary{Subtype: uuidBinarySubtype, Data: append([]byte(nil), id[:]...)}}}
}

// docGet returns the value and index of key in d, or (nil, -1) if absent.
func docGet(d Doc, key string) (any, int) {
	for i, e := range d {
		if e.Key == key {
			return e.Value, i
		}
	}
	return nil, -1
}

// docSet replaces key's value in place if present, otherwise appends a new
// entry, preserving the position of every other key.
func docSet(d Doc, key string, value any) Doc {
	for i, e := range d {
		if e.Key == key {
			d[i].Value = value
			return d
		}
	}
	return append(d, bson.E{Key: key, Value: value})
}

// docWithout drops every entry whose key is in keys, preserving the order
// of what remains.
func docWithout(d Doc, keys ...string) Doc {
	return lo.Filter(d, func(e bson.E, _ int) bool {
		for _, k := range keys {
			if e.Key == k {
				return false
			}
		}
		return true
	})
}

// filterAbsentValues strips entries whose value is nil, so the wire driver
// never sees a placeholder entry.
func filterAbsentValues(d Doc) Doc {
	return lo.Filter(d, func(e bson.E, _ int) bool { return e.Value != nil })
}

// isEmptyReadConcern reports whether v, a readConcern value of any
// supported shape, carries no fields.
func isEmptyReadConcern(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case Doc:
		return len(t) == 0
	case bson.M:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}

// applyCausalConsistency sets afterClusterTime on rc, preserving rc's other
// fields and its concrete type shape. A nil rc becomes a fresh Doc
// containing only afterClusterTime.
func applyCausalConsistency(rc any, causal bool, opTime *bson.Timestamp) any {
	if !causal || opTime == nil {
		return rc
	}
	switch v := rc.(type) {
	case Doc:
		return docSet(append(Doc{}, v...), "afterClusterTime", *opTime)
	case bson.M:
		out := make(bson.M, len(v)+1)
		for k, val := range v {
			out[k] = val
		}
		out["afterClusterTime"] = *opTime
		return out
	case map[string]any:
		out := make(map[string]any, len(v)+1)
		for k, val := range v {
			out[k] = val
		}
		out["afterClusterTime"] = *opTime
		return out
	case nil:
		return Doc{{Key: "afterClusterTime", Value: *opTime}}
	default:
		return rc
	}
}

// applyReadConcern merges causal-consistency pinning into cmd's readConcern
// field, dropping the key entirely if the merge produces an empty value.
func applyReadConcern(cmd Doc, causal bool, opTime *bson.Timestamp) Doc {
	rc, idx := docGet(cmd, "readConcern")
	merged := applyCausalConsistency(rc, causal, opTime)
	if isEmptyReadConcern(merged) {
		if idx >= 0 {
			return docWithout(cmd, "readConcern")
		}
		return cmd
	}
	return docSet(cmd, "readConcern", merged)
}

// bindSession is the pure decoration function behind the SSM's bind_session
// operation. It returns the decorated command and the state the SSM
// should transition to.
func bindSession(cmd Doc, wireVersion uint32, state State, sessionID uuid.UUID, txnNum int64, causal bool, opTime *bson.Timestamp) (Doc, State) {
	if wireVersion < 6 {
		return cmd, state
	}

	out := append(Doc{}, cmd...)

	switch state {
	case NoTransaction, TransactionCommitted, TransactionAborted:
		out = docSet(out, "lsid", lsidValue(sessionID))
		out = applyReadConcern(out, causal, opTime)
		return filterAbsentValues(out), state

	case StartingTransaction:
		out = docWithout(out, "writeConcern")
		out = docSet(out, "lsid", lsidValue(sessionID))
		out = docSet(out, "txnNumber", txnNum)
		out = docSet(out, "startTransaction", true)
		out = docSet(out, "autocommit", false)
		out = applyReadConcern(out, causal, opTime)
		return filterAbsentValues(out), TransactionInProgress

	case TransactionInProgress:
		out = docWithout(out, "readConcern", "writeConcern")
		out = docSet(out, "lsid", lsidValue(sessionID))
		out = docSet(out, "txnNumber", txnNum)
		out = docSet(out, "autocommit", false)
		return filterAbsentValues(out), state

	default:
		return filterAbsentValues(out), state
	}
}

// buildWriteConcern assembles the writeConcern subdocument from the w,
// wtimeout and j option fields, or returns (nil, false) if none were
// configured.
func buildWriteConcern(opts Options) (Doc, bool) {
	if !opts.HasWriteConcern() {
		return nil, false
	}
	var wc Doc
	if opts.W != nil {
		wc = docSet(wc, "w", opts.W)
	}
	if opts.WTimeoutMS != 0 {
		wc = docSet(wc, "wtimeout", opts.WTimeoutMS)
	}
	if opts.J != nil {
		wc = docSet(wc, "j", *opts.J)
	}
	return wc, true
}

// buildCommitCommand assembles the commitTransaction command, dropping
// writeConcern/maxTimeMS when unset.
func buildCommitCommand(sessionID uuid.UUID, txnNum int64, opts Options) Doc {
	cmd := Doc{
		{Key: "commitTransaction", Value: int32(1)},
		{Key: "lsid", Value: lsidValue(sessionID)},
		{Key: "txnNumber", Value: txnNum},
		{Key: "autocommit", Value: false},
	}
	if wc, ok := buildWriteConcern(opts); ok {
		cmd = docSet(cmd, "writeConcern", wc)
	}
	if timeout := opts.maxCommitTimeout(); timeout > 0 {
		cmd = docSet(cmd, "maxTimeMS", opts.MaxCommitTimeMS)
	}
	return filterAbsentValues(cmd)
}

// buildAbortCommand assembles the abortTransaction command, dropping
// writeConcern when unset.
func buildAbortCommand(sessionID uuid.UUID, txnNum int64, opts Options) Doc {
	cmd := Doc{
		{Key: "abortTransaction", Value: int32(1)},
		{Key: "lsid", Value: lsidValue(sessionID)},
		{Key: "txnNumber", Value: txnNum},
		{Key: "autocommit", Value: false},
	}
	if wc, ok := buildWriteConcern(opts); ok {
		cmd = docSet(cmd, "writeConcern", wc)
	}
	return filterAbsentValues(cmd)
}
