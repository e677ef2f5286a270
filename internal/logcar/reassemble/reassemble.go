// Package reassemble rebuilds the value a chunk.Chunker split apart, from an
// unordered, already-deduplicated set of fragments belonging to one write
// group.
package reassemble

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/logcar/logcar/internal/logcar/fragment"
	"github.com/logcar/logcar/internal/logcar/logcarerr"
	"github.com/logcar/logcar/internal/logger"
)

const rootToken = "root0"

var (
	cTokenRE = regexp.MustCompile(`^c(\d+)$`)
	eTokenRE = regexp.MustCompile(`^e(\d+)$`)
)

// node is one point in the chunkId trie: either a terminal fragment (frag
// set, no children) or an internal branch point (children set, frag nil).
type node struct {
	frag     *fragment.Fragment
	children map[string]*node
}

// Reassemble reconstructs the value written for rid from a complete set of
// fragments belonging to a single write group (same rid, op and total). The
// caller is responsible for having already deduplicated by index and
// selected the winning write group; Reassemble only validates internal
// consistency of the group it's given. It fails on any missing fragment;
// ReassembleTolerant is the partial-result counterpart the search protocol's
// default incompleteness policy relies on.
func Reassemble(rid string, frags []fragment.Fragment) (any, error) {
	v, _, err := reassemble(rid, frags, false, logger.NoOpLogger{})
	return v, err
}

// ReassembleTolerant reassembles frags the same way Reassemble does, but
// never fails on a short fragment set: the value is rebuilt from the
// fragments present, missing fragments are simply absent from it, and the
// second return value reports whether the group was incomplete. A single fragment whose chunkId is incompatible with
// the shape implied by its siblings (an element token where a named mapping
// key is expected, a bucket that doesn't reconstruct to the kind its parent
// expects) is dropped with a warning through lg rather than failing the
// whole group; it still fails on genuine structural corruption (out-of-range
// or duplicate idx, a total mismatch, a chunkId that doesn't descend from
// the write group root). A nil lg falls back to a no-op logger.
func ReassembleTolerant(rid string, frags []fragment.Fragment, lg logger.Logger) (any, bool, error) {
	if lg == nil {
		lg = logger.NoOpLogger{}
	}
	return reassemble(rid, frags, true, lg)
}

func reassemble(rid string, frags []fragment.Fragment, tolerant bool, lg logger.Logger) (any, bool, error) {
	if len(frags) == 0 {
		return nil, false, wrapErr("reassemble", logcarerr.ErrEmptyFragmentSet, rid, nil)
	}

	if frags[0].IsTombstone() {
		return nil, false, nil
	}

	total := frags[0].Total
	seen := make(map[int]bool, len(frags))
	for _, f := range frags {
		if f.Total != total {
			return nil, false, wrapErr("reassemble", logcarerr.ErrFragmentSequenceError, rid,
				fmt.Errorf("fragment idx %d has total %d, group total is %d", f.Idx, f.Total, total))
		}
		if f.Idx < 0 || f.Idx >= total {
			return nil, false, wrapErr("reassemble", logcarerr.ErrFragmentSequenceError, rid,
				fmt.Errorf("fragment idx %d out of range [0,%d)", f.Idx, total))
		}
		if seen[f.Idx] {
			return nil, false, wrapErr("reassemble", logcarerr.ErrFragmentSequenceError, rid,
				fmt.Errorf("duplicate fragment idx %d", f.Idx))
		}
		seen[f.Idx] = true
	}
	incomplete := len(frags) != total
	if incomplete && !tolerant {
		return nil, false, wrapErr("reassemble", logcarerr.ErrIncompleteFragmentSet, rid,
			fmt.Errorf("have %d of %d fragments", len(frags), total))
	}

	root := &node{}
	for i := range frags {
		f := &frags[i]
		if f.CID == rootToken || f.CID == "" {
			root.frag = f
			continue
		}
		if !strings.HasPrefix(f.CID, rootToken+".") {
			return nil, false, wrapErr("reassemble", logcarerr.ErrFragmentSequenceError, rid,
				fmt.Errorf("chunkId %q does not descend from %q", f.CID, rootToken))
		}
		segments := strings.Split(strings.TrimPrefix(f.CID, rootToken+"."), ".")
		cur := root
		for _, seg := range segments {
			if cur.children == nil {
				cur.children = map[string]*node{}
			}
			child, ok := cur.children[seg]
			if !ok {
				child = &node{}
				cur.children[seg] = child
			}
			cur = child
		}
		cur.frag = f
	}

	v, err := reconstruct(rid, root, tolerant, lg)
	return v, incomplete, err
}

// dropFragment warns that a single fragment's chunkId is incompatible with
// the shape implied by its siblings and excludes it from the result,
// instead of failing the whole write group over one ambiguous fragment.
func dropFragment(rid string, lg logger.Logger, reason string, args ...any) {
	lg.Warn("dropping fragment with incompatible chunkId", "rid", rid, "reason", fmt.Sprintf(reason, args...))
}

func reconstruct(rid string, n *node, tolerant bool, lg logger.Logger) (any, error) {
	if len(n.children) == 0 {
		if n.frag == nil {
			if tolerant {
				return nil, nil
			}
			return nil, wrapErr("reassemble", logcarerr.ErrFragmentSequenceError, rid,
				fmt.Errorf("internal chunkId node has neither data nor children"))
		}
		return n.frag.Data, nil
	}

	var namedKeys []string
	numeric := map[string]*node{}
	for tok, child := range n.children {
		if cTokenRE.MatchString(tok) || eTokenRE.MatchString(tok) {
			numeric[tok] = child
		} else {
			namedKeys = append(namedKeys, tok)
		}
	}

	if len(namedKeys) > 0 {
		sort.Strings(namedKeys)
		result := map[string]any{}
		for _, k := range namedKeys {
			v, err := reconstruct(rid, n.children[k], tolerant, lg)
			if err != nil {
				return nil, err
			}
			result[k] = v
		}
		for tok, child := range numeric {
			if !cTokenRE.MatchString(tok) {
				dropFragment(rid, lg, "array element token %q cannot appear alongside named mapping fields", tok)
				continue
			}
			v, err := reconstruct(rid, child, tolerant, lg)
			if err != nil {
				return nil, err
			}
			bucket, ok := v.(map[string]any)
			if !ok {
				dropFragment(rid, lg, "bucket %q merged into a mapping was not itself a mapping", tok)
				continue
			}
			for kk, vv := range bucket {
				result[kk] = vv
			}
		}
		return result, nil
	}

	kind, err := representativeKind(rid, numeric)
	if err != nil {
		return nil, err
	}

	tokens := sortNumericTokens(numeric)

	switch kind {
	case fragment.KindArray:
		var result []any
		for _, tok := range tokens {
			v, err := reconstruct(rid, numeric[tok], tolerant, lg)
			if err != nil {
				return nil, err
			}
			if cTokenRE.MatchString(tok) {
				elems, ok := v.([]any)
				if !ok {
					dropFragment(rid, lg, "array bucket %q did not reconstruct to an array", tok)
					continue
				}
				result = append(result, elems...)
			} else {
				result = append(result, v)
			}
		}
		if result == nil {
			result = []any{}
		}
		return result, nil

	case fragment.KindMapping:
		result := map[string]any{}
		for _, tok := range tokens {
			if !cTokenRE.MatchString(tok) {
				dropFragment(rid, lg, "array element token %q is not valid under a mapping", tok)
				continue
			}
			v, err := reconstruct(rid, numeric[tok], tolerant, lg)
			if err != nil {
				return nil, err
			}
			bucket, ok := v.(map[string]any)
			if !ok {
				dropFragment(rid, lg, "mapping bucket %q did not reconstruct to a mapping", tok)
				continue
			}
			for kk, vv := range bucket {
				result[kk] = vv
			}
		}
		return result, nil

	default: // fragment.KindLeaf
		var sb strings.Builder
		for _, tok := range tokens {
			if !cTokenRE.MatchString(tok) {
				dropFragment(rid, lg, "array element token %q is not valid under a leaf split", tok)
				continue
			}
			v, err := reconstruct(rid, numeric[tok], tolerant, lg)
			if err != nil {
				return nil, err
			}
			s, ok := v.(string)
			if !ok {
				dropFragment(rid, lg, "leaf piece %q did not reconstruct to a string", tok)
				continue
			}
			sb.WriteString(s)
		}
		return sb.String(), nil
	}
}

// representativeKind determines the combination rule for a node whose
// children are all numeric (c/e) tokens, by reading the Kind of any direct
// "cK" sibling fragment: bucket pieces are always terminal, so their Kind
// is authoritative. A node with only "eK" children (every array element
// individually overflowed) has no bucket to read a Kind from, and defaults
// to array, since "eK" is only ever produced for array elements.
func representativeKind(rid string, numeric map[string]*node) (fragment.Kind, error) {
	for tok, child := range numeric {
		if !cTokenRE.MatchString(tok) {
			continue
		}
		if child.frag == nil {
			return "", wrapErr("reassemble", logcarerr.ErrFragmentSequenceError, rid,
				fmt.Errorf("bucket token %q has no terminal fragment", tok))
		}
		return child.frag.Kind, nil
	}
	return fragment.KindArray, nil
}

func sortNumericTokens(numeric map[string]*node) []string {
	tokens := make([]string, 0, len(numeric))
	for tok := range numeric {
		tokens = append(tokens, tok)
	}
	sort.Slice(tokens, func(i, j int) bool {
		return numericSuffix(tokens[i]) < numericSuffix(tokens[j])
	})
	return tokens
}

func numericSuffix(tok string) int {
	digits := tok[1:]
	n, _ := strconv.Atoi(digits)
	return n
}
