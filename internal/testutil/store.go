package testutil

import (
	"testing"

	"github.com/logcar/logcar/internal/logcar/record"
)

// NewTestStore builds a record.Store wired to a fresh FakeSink and a
// LoopbackBackboard over it: everything a test needs to drive
// Create/Read/Update/Delete/List end to end with no real network or
// filesystem dependency.
func NewTestStore(t *testing.T, cfg record.Config) (*record.Store, *FakeSink) {
	t.Helper()
	store, sink, _ := NewTestStoreWithBackboard(t, cfg)
	return store, sink
}

// NewTestStoreWithBackboard is NewTestStore plus the LoopbackBackboard
// itself, for tests that need to override replayed receipt timestamps
// (via SetTimestamps) to simulate writes landing out of seq order across
// processes.
func NewTestStoreWithBackboard(t *testing.T, cfg record.Config) (*record.Store, *FakeSink, *LoopbackBackboard) {
	t.Helper()
	sink := NewFakeSink()
	lb := NewLoopbackBackboard(sink)
	return record.New(cfg, sink, lb, nil), sink, lb
}
