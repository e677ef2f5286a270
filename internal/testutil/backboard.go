package testutil

import (
	"context"
	"encoding/json"

	"github.com/logcar/logcar/internal/backboard"
)

const defaultLoopbackTimestamp = "2024-01-01T00:00:00Z"

// LoopbackBackboard replays every line a FakeSink has captured back as
// search results, so a record.Store built on the pair round-trips writes
// through reads exactly like the real emit-then-search pipeline does, with
// no network or filesystem dependency.
//
// Every line receives the same receipt timestamp by default, matching a
// single burst of writes from one process. Tests that need to simulate
// writes landing out of process-seq order (a later write from a different
// process carrying a lower seq) should call SetTimestamps to stamp specific
// lines independently of their position or seq.
type LoopbackBackboard struct {
	sink       *FakeSink
	timestamps map[int]string
}

// NewLoopbackBackboard builds a LoopbackBackboard reading from sink.
func NewLoopbackBackboard(sink *FakeSink) *LoopbackBackboard {
	return &LoopbackBackboard{sink: sink}
}

// SetTimestamps overrides the receipt timestamp for specific captured lines
// by index, leaving every other line at defaultLoopbackTimestamp.
func (b *LoopbackBackboard) SetTimestamps(byIndex map[int]string) {
	b.timestamps = byIndex
}

// Search ignores opts and returns every captured line as one log entry,
// leaving query.BuildFilter's translation untested here; that's covered
// directly in the search package's own tests.
func (b *LoopbackBackboard) Search(_ context.Context, _ backboard.SearchOpts) ([]backboard.LogEntry, error) {
	lines := b.sink.Lines()
	entries := make([]backboard.LogEntry, 0, len(lines))
	for i, line := range lines {
		var raw map[string]any
		if err := json.Unmarshal(line, &raw); err != nil {
			continue
		}
		attrs := make([]backboard.Attribute, 0, len(raw))
		for k, v := range raw {
			enc, err := json.Marshal(v)
			if err != nil {
				continue
			}
			attrs = append(attrs, backboard.Attribute{Key: k, Value: string(enc)})
		}
		ts := defaultLoopbackTimestamp
		if override, ok := b.timestamps[i]; ok {
			ts = override
		}
		entries = append(entries, backboard.LogEntry{Attributes: attrs, Timestamp: ts})
	}
	return entries, nil
}
