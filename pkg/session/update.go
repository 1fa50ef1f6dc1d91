package session

import "go.mongodb.org/mongo-driver/v2/bson"

// acknowledged reports whether opts' write concern acknowledges writes.
// Only an explicit w:0 makes a write unacknowledged; everything else
// (including the zero-value Options) is acknowledged by default.
func acknowledged(opts Options) bool {
	switch w := opts.W.(type) {
	case int:
		return w != 0
	case int32:
		return w != 0
	case int64:
		return w != 0
	default:
		return true
	}
}

// UpdateSession extracts operationTime from a command reply and advances
// ssm's operation time, but only when the caller's write concern is
// acknowledged — unacknowledged writes carry no causal guarantee. It
// returns doc unchanged and is idempotent under replay of the same
// timestamp.
func UpdateSession(ssm *SSM, doc bson.Raw, opts Options) bson.Raw {
	if ssm == nil || !acknowledged(opts) {
		return doc
	}

	ts, ok := lookupOperationTime(doc)
	if !ok {
		return doc
	}

	ssm.AdvanceOperationTime(ts)
	return doc
}

// lookupOperationTime tolerates replies without an operationTime field,
// returning (zero, false) silently rather than erroring.
func lookupOperationTime(doc bson.Raw) (bson.Timestamp, bool) {
	if doc == nil {
		return bson.Timestamp{}, false
	}
	val, err := doc.LookupErr("operationTime")
	if err != nil {
		return bson.Timestamp{}, false
	}
	t, i, ok := val.TimestampOK()
	if !ok {
		return bson.Timestamp{}, false
	}
	return bson.Timestamp{T: t, I: i}, true
}
