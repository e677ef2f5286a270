// Package chunk splits an arbitrarily large JSON-like value into
// log-line-sized fragments while recording enough structural metadata
// (chunkId, kind, index/total) that the reassemble package can rebuild the
// original value from them, in any order.
package chunk

import (
	"fmt"
	"sort"

	"github.com/logcar/logcar/internal/logcar/fragment"
	"github.com/logcar/logcar/internal/logcar/logcarerr"
	"github.com/logcar/logcar/internal/logcar/sizeest"
)

// DefaultMaxChunkLength is the per-fragment maximum virtual length used when
// a Chunker is not given an explicit one.
const DefaultMaxChunkLength = 60000

// Chunker splits values into fragments bounded by MaxLen. MaxFragments, when
// positive, caps the number of fragments a single write may produce, so one
// oversized value can't fan a write out into an unbounded number of log
// lines.
type Chunker struct {
	MaxLen       int
	MaxFragments int
}

// New creates a Chunker with the given bounds. A non-positive maxLen falls
// back to DefaultMaxChunkLength.
func New(maxLen, maxFragments int) *Chunker {
	if maxLen <= 0 {
		maxLen = DefaultMaxChunkLength
	}
	return &Chunker{MaxLen: maxLen, MaxFragments: maxFragments}
}

// piece is the pre-index form of a fragment: everything but Idx/Total/RID/Op,
// which the caller (Chunk) fills in once the full ordered sequence is known.
type piece struct {
	CID  string
	Kind fragment.Kind
	Data any
}

// Chunk splits value into an ordered, contiguous sequence of fragments for
// one (rid, op) write group. A delete write always yields exactly one
// tombstone fragment carrying no data, regardless of value.
func (c *Chunker) Chunk(rid string, op fragment.Op, value any) ([]fragment.Fragment, error) {
	if op == fragment.OpDelete {
		return []fragment.Fragment{{RID: rid, Op: op, Total: 1, Idx: 0}}, nil
	}

	maxLen := c.MaxLen
	if maxLen <= 0 {
		maxLen = DefaultMaxChunkLength
	}

	pieces := buildValue("root0", value, maxLen)
	total := len(pieces)
	if total == 0 {
		pieces = []piece{{CID: "root0", Kind: fragment.KindLeaf, Data: nil}}
		total = 1
	}

	if c.MaxFragments > 0 && total > c.MaxFragments {
		return nil, wrapErr("chunk", logcarerr.ErrFragmentBudgetExceeded, rid,
			fmt.Errorf("chunk would produce %d fragments, budget is %d", total, c.MaxFragments))
	}

	frags := make([]fragment.Fragment, total)
	for i, p := range pieces {
		frags[i] = fragment.Fragment{
			RID:   rid,
			Op:    op,
			CID:   p.CID,
			Idx:   i,
			Total: total,
			Kind:  p.Kind,
			Data:  p.Data,
		}
	}
	return frags, nil
}

// buildValue dispatches on value's JSON kind and returns the ordered pieces
// for it, rooted at path.
func buildValue(path string, value any, maxLen int) []piece {
	switch v := value.(type) {
	case string:
		return buildLeafString(path, v, maxLen)
	case []any:
		return buildArray(path, v, maxLen)
	case map[string]any:
		return buildMapping(path, v, maxLen)
	default:
		if sizeest.VirtualLength(value) <= maxLen {
			return []piece{{CID: path, Kind: fragment.KindLeaf, Data: value}}
		}
		// Downgrade an oversized scalar to its string form and chunk that;
		// the original type is not recoverable from the fragments alone.
		return buildLeafString(path, sizeest.StringForm(value), maxLen)
	}
}

// buildLeafString splits s into ceil(len(s)/maxLen) rune-bounded pieces.
func buildLeafString(path, s string, maxLen int) []piece {
	runes := []rune(s)
	if maxLen <= 0 {
		maxLen = DefaultMaxChunkLength
	}
	if len(runes) <= maxLen {
		return []piece{{CID: path, Kind: fragment.KindLeaf, Data: s}}
	}

	var pieces []piece
	for start, k := 0, 0; start < len(runes); start, k = start+maxLen, k+1 {
		end := start + maxLen
		if end > len(runes) {
			end = len(runes)
		}
		pieces = append(pieces, piece{
			CID:  fmt.Sprintf("%s.c%d", path, k),
			Kind: fragment.KindLeaf,
			Data: string(runes[start:end]),
		})
	}
	return pieces
}

// arrayItem is one element of the ordered bucket/nested-element sequence
// built while packing an array.
type arrayItem struct {
	nested       bool
	bucket       []any
	nestedPieces []piece
}

// buildArray greedily packs elements into buckets bounded by maxLen. An
// individually oversized element is pulled out and recursively chunked
// under an ".eK" path segment instead of being packed into a bucket; K is
// the element's position in this array's sequence of buckets and extracted
// elements, shared with the bucket counter so that array order survives
// reassembly.
func buildArray(path string, arr []any, maxLen int) []piece {
	if len(arr) == 0 {
		return []piece{{CID: path, Kind: fragment.KindArray, Data: []any{}}}
	}

	var items []arrayItem
	var curBucket []any
	curLen := 0

	flush := func() {
		if len(curBucket) == 0 {
			return
		}
		items = append(items, arrayItem{bucket: curBucket})
		curBucket = nil
		curLen = 0
	}

	for _, elem := range arr {
		elemLen := sizeest.VirtualLength(elem)
		if elemLen > maxLen {
			flush()
			k := len(items)
			sub := buildValue(fmt.Sprintf("%s.e%d", path, k), elem, maxLen)
			items = append(items, arrayItem{nested: true, nestedPieces: sub})
			continue
		}
		if curLen+elemLen > maxLen && len(curBucket) > 0 {
			flush()
		}
		curBucket = append(curBucket, elem)
		curLen += elemLen
	}
	flush()

	total := len(items)
	var pieces []piece
	for k, it := range items {
		if it.nested {
			pieces = append(pieces, it.nestedPieces...)
			continue
		}
		cid := path
		if total != 1 {
			cid = fmt.Sprintf("%s.c%d", path, k)
		}
		pieces = append(pieces, piece{CID: cid, Kind: fragment.KindArray, Data: it.bucket})
	}
	return pieces
}

// mapItem is one element of the ordered bucket/named-field sequence built
// while packing a mapping.
type mapItem struct {
	named  bool
	sub    []piece // set when named: the recursively chunked value under ".<key>"
	bucket map[string]any
}

// buildMapping greedily packs entries into buckets bounded by maxLen, keyed
// alphabetically for a deterministic left-to-right traversal (the same
// ordering encoding/json applies to map keys). An entry whose value alone
// exceeds maxLen is extracted and recursively chunked under its own
// ".<key>" path segment instead of being packed into a bucket.
func buildMapping(path string, m map[string]any, maxLen int) []piece {
	keys := sortedKeys(m)
	if len(keys) == 0 {
		return []piece{{CID: path, Kind: fragment.KindMapping, Data: map[string]any{}}}
	}

	var items []mapItem
	curBucket := map[string]any{}
	curLen := 0

	flush := func() {
		if len(curBucket) == 0 {
			return
		}
		items = append(items, mapItem{bucket: curBucket})
		curBucket = map[string]any{}
		curLen = 0
	}

	for _, key := range keys {
		val := m[key]
		valLen := sizeest.VirtualLength(val)
		if valLen > maxLen {
			flush()
			sub := buildValue(path+"."+key, val, maxLen)
			items = append(items, mapItem{named: true, sub: sub})
			continue
		}
		weight := len([]rune(key)) + valLen
		if curLen+weight > maxLen && len(curBucket) > 0 {
			flush()
		}
		curBucket[key] = val
		curLen += weight
	}
	flush()

	total := len(items)
	var pieces []piece
	bucketIdx := 0
	for _, it := range items {
		if it.named {
			pieces = append(pieces, it.sub...)
			continue
		}
		cid := path
		if total != 1 {
			cid = fmt.Sprintf("%s.c%d", path, bucketIdx)
		}
		pieces = append(pieces, piece{CID: cid, Kind: fragment.KindMapping, Data: it.bucket})
		bucketIdx++
	}
	return pieces
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
