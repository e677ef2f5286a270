// Package search implements the log-search protocol: translating a query
// into the platform's filter language, over-fetching to improve the odds of
// a complete chunk group landing in one round-trip, repairing incomplete
// groups with a targeted secondary fetch, and reducing surviving groups down
// to one materialized state per record id, keeping only the newest write
// group.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/logcar/logcar/internal/backboard"
	"github.com/logcar/logcar/internal/logcar/fragment"
	"github.com/logcar/logcar/internal/logcar/reassemble"
	"github.com/logcar/logcar/internal/logger"
)

// Backboard is the subset of *backboard.Client the search protocol depends
// on, narrow enough to fake in tests without spinning up an HTTP server.
type Backboard interface {
	Search(ctx context.Context, opts backboard.SearchOpts) ([]backboard.LogEntry, error)
}

// Record is one reduced, decrypt-pending result of a search: either a live
// value or a tombstone.
type Record struct {
	RID        string
	Op         fragment.Op
	Value      any
	Encrypted  bool
	Incomplete bool
	Deleted    bool
	Timestamp  time.Time
}

// Searcher runs the search protocol against one Backboard client.
type Searcher struct {
	client            Backboard
	maxLogRequestSize int
	logger            logger.Logger
}

// NewSearcher creates a Searcher. A non-positive maxLogRequestSize falls
// back to the platform default of 5000; a nil logger falls back to a no-op
// logger.
func NewSearcher(client Backboard, maxLogRequestSize int, lg logger.Logger) *Searcher {
	if maxLogRequestSize <= 0 {
		maxLogRequestSize = 5000
	}
	if lg == nil {
		lg = logger.NoOpLogger{}
	}
	return &Searcher{client: client, maxLogRequestSize: maxLogRequestSize, logger: lg}
}

type writeGroup struct {
	RID   string
	Op    fragment.Op
	Frags []fragment.Fragment
}

// Search runs spec against the backboard, repairs incomplete groups, and
// returns up to spec.Limit records, newest write group per rid first.
func (s *Searcher) Search(ctx context.Context, spec Spec) ([]Record, error) {
	filter := BuildFilter(spec)
	fetchLimit := FetchLimit(spec.Limit, s.maxLogRequestSize)

	entries, err := s.client.Search(ctx, backboard.SearchOpts{Filter: filter, Limit: fetchLimit})
	if err != nil {
		if errors.Is(err, backboard.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return nil, wrapTimeoutErr("search", spec.RID, err)
		}
		return nil, wrapErr("search", spec.RID, err)
	}

	frags := s.parseEntries(entries)
	groups := groupByWriteGroup(frags)

	for i := range groups {
		if err := s.completeGroup(ctx, &groups[i]); err != nil {
			s.logger.Warn("completion pass failed", "rid", groups[i].RID, "op", string(groups[i].Op), "error", err.Error())
		}
	}

	sort.SliceStable(groups, func(i, j int) bool {
		ti, tj := latestTimestamp(groups[i].Frags), latestTimestamp(groups[j].Frags)
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return maxSeq(groups[i].Frags) > maxSeq(groups[j].Frags)
	})

	seenRID := map[string]bool{}
	var records []Record
	for _, g := range groups {
		if seenRID[g.RID] {
			continue
		}
		seenRID[g.RID] = true

		rec, err := reduceGroup(g, s.logger)
		if err != nil {
			s.logger.Warn("dropping unreassemblable write group", "rid", g.RID, "op", string(g.Op), "error", err.Error())
			continue
		}
		records = append(records, rec)
		if spec.Limit > 0 && len(records) >= spec.Limit {
			break
		}
	}
	return records, nil
}

// DataFromID fetches a record's current state, excluding read audit
// fragments so they never mask the real state.
func (s *Searcher) DataFromID(ctx context.Context, rid string) (*Record, error) {
	records, err := s.Search(ctx, DataFromID(rid))
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

func (s *Searcher) parseEntries(entries []backboard.LogEntry) []fragment.Fragment {
	frags := make([]fragment.Fragment, 0, len(entries))
	for _, e := range entries {
		f, err := parseEntry(e)
		if err != nil {
			s.logger.Warn("dropping malformed log entry", "error", err.Error())
			continue
		}
		frags = append(frags, f)
	}
	return frags
}

func parseEntry(e backboard.LogEntry) (fragment.Fragment, error) {
	flat, err := backboard.Flatten(e)
	if err != nil {
		return fragment.Fragment{}, err
	}
	return fragmentFromAttributes(flat, e.Timestamp)
}

func fragmentFromAttributes(attrs map[string]any, ts string) (fragment.Fragment, error) {
	rid, _ := attrs["__id"].(string)
	if rid == "" {
		return fragment.Fragment{}, fmt.Errorf("missing __id attribute")
	}
	op, _ := attrs["operation"].(string)
	cid, _ := attrs["chunkId"].(string)
	idx, _ := attrs["index"].(float64)
	total, _ := attrs["total"].(float64)
	encrypted, _ := attrs["encrypted"].(bool)
	kind, _ := attrs["kind"].(string)
	seq, _ := attrs["seq"].(float64)

	var parsedTS time.Time
	if ts != "" {
		parsedTS, _ = time.Parse(time.RFC3339Nano, ts)
	}

	return fragment.Fragment{
		RID:       rid,
		Op:        fragment.Op(op),
		CID:       cid,
		Idx:       int(idx),
		Total:     int(total),
		Seq:       uint64(seq),
		Encrypted: encrypted,
		Kind:      fragment.Kind(kind),
		Data:      attrs["data"],
		Timestamp: parsedTS,
	}, nil
}

// groupByWriteGroup partitions frags into per-rid write groups. Within a
// rid, fragments are ordered by (seq, idx) and split into a new group
// whenever the op or declared total changes, or whenever an index repeats,
// the signature of a second, later write group sharing the same shape.
func groupByWriteGroup(frags []fragment.Fragment) []writeGroup {
	byRID := map[string][]fragment.Fragment{}
	for _, f := range frags {
		byRID[f.RID] = append(byRID[f.RID], f)
	}

	rids := make([]string, 0, len(byRID))
	for rid := range byRID {
		rids = append(rids, rid)
	}
	sort.Strings(rids)

	var groups []writeGroup
	for _, rid := range rids {
		fs := byRID[rid]
		sort.SliceStable(fs, func(i, j int) bool {
			if fs[i].Seq != fs[j].Seq {
				return fs[i].Seq < fs[j].Seq
			}
			return fs[i].Idx < fs[j].Idx
		})

		var cur []fragment.Fragment
		var curOp fragment.Op
		curTotal := -1
		seenIdx := map[int]bool{}

		flush := func() {
			if len(cur) > 0 {
				groups = append(groups, writeGroup{RID: rid, Op: curOp, Frags: cur})
			}
			cur = nil
			seenIdx = map[int]bool{}
		}

		for _, f := range fs {
			if f.Op != curOp || f.Total != curTotal || seenIdx[f.Idx] {
				flush()
				curOp = f.Op
				curTotal = f.Total
			}
			cur = append(cur, f)
			seenIdx[f.Idx] = true
		}
		flush()
	}
	return groups
}

// completeGroup runs the targeted secondary fetch for a group whose
// declared total exceeds the fragments already present, merging in any
// unique-by-idx fragments the repair query turns up.
func (s *Searcher) completeGroup(ctx context.Context, g *writeGroup) error {
	if len(g.Frags) == 0 {
		return nil
	}
	total := g.Frags[0].Total
	if len(g.Frags) >= total {
		return nil
	}

	filter := BuildFilter(Spec{Predicate: Predicate{RID: g.RID, Op: string(g.Op)}})
	entries, err := s.client.Search(ctx, backboard.SearchOpts{Filter: filter, Limit: 2 * total})
	if err != nil {
		return wrapErr("complete", g.RID, err)
	}

	have := map[int]bool{}
	for _, f := range g.Frags {
		have[f.Idx] = true
	}
	for _, e := range entries {
		f, err := parseEntry(e)
		if err != nil {
			continue
		}
		if f.RID != g.RID || f.Op != g.Op || f.Total != total || have[f.Idx] {
			continue
		}
		g.Frags = append(g.Frags, f)
		have[f.Idx] = true
	}
	return nil
}

func reduceGroup(g writeGroup, lg logger.Logger) (Record, error) {
	if len(g.Frags) == 0 {
		return Record{}, fmt.Errorf("empty write group for rid %q", g.RID)
	}
	if g.Frags[0].IsTombstone() {
		return Record{RID: g.RID, Op: g.Op, Deleted: true, Timestamp: latestTimestamp(g.Frags)}, nil
	}
	if g.Frags[0].Total == 1 {
		f := g.Frags[0]
		return Record{RID: g.RID, Op: g.Op, Value: f.Data, Encrypted: f.Encrypted, Timestamp: f.Timestamp}, nil
	}

	value, incomplete, err := reassemble.ReassembleTolerant(g.RID, g.Frags, lg)
	if err != nil {
		return Record{}, wrapErr("reassemble", g.RID, err)
	}
	if incomplete {
		lg.Warn("surfacing incomplete write group", "rid", g.RID, "op", string(g.Op), "have", len(g.Frags), "total", g.Frags[0].Total)
	}
	return Record{
		RID:        g.RID,
		Op:         g.Op,
		Value:      value,
		Encrypted:  g.Frags[0].Encrypted,
		Incomplete: incomplete,
		Timestamp:  latestTimestamp(g.Frags),
	}, nil
}

func maxSeq(frags []fragment.Fragment) uint64 {
	var max uint64
	for _, f := range frags {
		if f.Seq > max {
			max = f.Seq
		}
	}
	return max
}

func latestTimestamp(frags []fragment.Fragment) time.Time {
	var latest time.Time
	for _, f := range frags {
		if f.Timestamp.After(latest) {
			latest = f.Timestamp
		}
	}
	return latest
}
