package testutil

// IDAllocator hands out deterministic identifiers for tests that need
// predictable ids instead of record.Store's uuid.NewString() minting, e.g.
// pre-computing the rids a fixture's backboard entries should carry.
type IDAllocator struct {
	nextID uint64
}

// NewIDAllocator creates a new test ID allocator starting at startID
func NewIDAllocator(startID uint64) *IDAllocator {
	return &IDAllocator{nextID: startID}
}

// Next returns the next ID and increments the counter
func (m *IDAllocator) Next() uint64 {
	id := m.nextID
	m.nextID++
	return id
}

// Peek returns the next ID without incrementing
func (m *IDAllocator) Peek() uint64 {
	return m.nextID
}

// SetNext sets the next ID to be returned. A value below 1 or below the
// current next ID is ignored; the returned error is always nil.
func (m *IDAllocator) SetNext(next uint64) error {
	// Invalid or regressing values are ignored rather than reported, for
	// simplicity in tests. Callers can extend this type for more complex behavior
	if next < 1 {
		return nil // Simplified for test utility
	}
	if next < m.nextID {
		return nil // Simplified for test utility
	}
	m.nextID = next
	return nil
}
