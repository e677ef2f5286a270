// Package fragment defines the atomic storage unit the log-as-storage engine
// reads and writes: a single log line belonging to one record write.
package fragment

import "time"

// Op identifies which record operation emitted a fragment.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpRead   Op = "read"
	OpDelete Op = "delete"
)

// Kind records the structural shape of the value a fragment (or the
// sub-chunking it heads) was carved from. Storing this explicitly on the
// wire, rather than inferring array-vs-mapping from a chunkId token by
// regular expression, is what lets the reassembler stay a straightforward
// tree walk instead of a string-parsing exercise.
type Kind string

const (
	KindLeaf    Kind = "leaf"
	KindArray   Kind = "array"
	KindMapping Kind = "mapping"
)

// Fragment is one physical unit of a record write: a slice of a string, a
// bucket of packed array elements or mapping entries, or a whole leaf value
// that fit under the chunk-size limit on its own.
type Fragment struct {
	RID string `json:"__id"`
	Op  Op     `json:"operation"`

	// CID is the dotted structural path locating this fragment within the
	// reconstructed value, e.g. "root0.attachments.c2".
	CID string `json:"chunkId"`

	// Idx is this fragment's ordinal among all fragments emitted for
	// (RID, Op); Total is the size of that write group.
	Idx   int `json:"index"`
	Total int `json:"total"`

	// Seq is a per-process monotonic tie-breaker recorded alongside the
	// platform's own receipt timestamp, so that write-group ordering stays
	// well-defined even on log backends with coarse timestamp resolution.
	Seq uint64 `json:"seq"`

	Encrypted bool `json:"encrypted"`
	Kind      Kind `json:"kind"`
	Data      any  `json:"data"`

	// Timestamp is populated on ingest from the log-search backend's
	// per-line receipt timestamp; it is not meaningful (and is left zero) on
	// a fragment that hasn't round-tripped through search yet.
	Timestamp time.Time `json:"-"`
}

// IsTombstone reports whether f is a delete write's sole fragment.
func (f Fragment) IsTombstone() bool {
	return f.Op == OpDelete
}
