package session

import "go.mongodb.org/mongo-driver/v2/bson"

// operationTimeAfter reports whether a is strictly greater than b under the
// lexicographic ordering on (seconds, increment) MongoDB cluster times use.
func operationTimeAfter(a, b bson.Timestamp) bool {
	if a.T != b.T {
		return a.T > b.T
	}
	return a.I > b.I
}
