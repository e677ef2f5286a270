package record

// DefaultMaxFragmentsPerWrite bounds fan-out for a single create/update
// write when the caller's configuration leaves it unset.
const DefaultMaxFragmentsPerWrite = 10_000
