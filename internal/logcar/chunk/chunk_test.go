package chunk

import (
	"testing"

	"github.com/logcar/logcar/internal/logcar/fragment"
)

func TestChunkStringSplit(t *testing.T) {
	c := New(4, 0)
	frags, err := c.Chunk("rid-1", fragment.OpCreate, "abcdefghij")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frags) != 3 {
		t.Fatalf("expected 3 fragments, got %d", len(frags))
	}
	want := []string{"abcd", "efgh", "ij"}
	for i, f := range frags {
		if f.Total != 3 || f.Idx != i {
			t.Fatalf("fragment %d: idx/total mismatch: %+v", i, f)
		}
		if f.Data != want[i] {
			t.Fatalf("fragment %d: expected %q, got %v", i, want[i], f.Data)
		}
		if f.Kind != fragment.KindLeaf {
			t.Fatalf("fragment %d: expected leaf kind, got %v", i, f.Kind)
		}
	}
	if frags[0].CID != "root0.c0" || frags[2].CID != "root0.c2" {
		t.Fatalf("unexpected cids: %q, %q", frags[0].CID, frags[2].CID)
	}
}

func TestChunkMappingWithNestedValue(t *testing.T) {
	c := New(4, 0)
	value := map[string]any{
		"a": "XXXXXXXXXX", // 10 chars, overflows maxLen=4, extracted as nested
		"b": float64(1),
	}
	frags, err := c.Chunk("rid-2", fragment.OpCreate, value)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var nested []fragment.Fragment
	var bucket *fragment.Fragment
	for i := range frags {
		f := frags[i]
		if f.CID == "root0.a" || f.CID == "root0.a.c0" || f.CID == "root0.a.c1" || f.CID == "root0.a.c2" {
			nested = append(nested, f)
			continue
		}
		if f.CID == "root0" {
			bucket = &frags[i]
		}
	}
	if len(nested) != 3 {
		t.Fatalf("expected 3 nested fragments under root0.a, got %d: %+v", len(nested), frags)
	}
	if bucket == nil {
		t.Fatalf("expected a bare-cid bucket fragment holding key b, got %+v", frags)
	}
	if bucket.Kind != fragment.KindMapping {
		t.Fatalf("expected mapping bucket, got %v", bucket.Kind)
	}
	b, ok := bucket.Data.(map[string]any)
	if !ok || b["b"] != float64(1) {
		t.Fatalf("expected bucket to hold key b, got %+v", bucket.Data)
	}
}

func TestChunkSingleFragmentShortCircuit(t *testing.T) {
	c := New(4096, 0)
	frags, err := c.Chunk("rid-3", fragment.OpCreate, map[string]any{"hello": "world"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frags) != 1 {
		t.Fatalf("expected 1 fragment, got %d", len(frags))
	}
	if frags[0].CID != "root0" {
		t.Fatalf("expected bare root cid, got %q", frags[0].CID)
	}
	if frags[0].Total != 1 || frags[0].Idx != 0 {
		t.Fatalf("expected total=1 idx=0, got %+v", frags[0])
	}
}

func TestChunkArrayWithOversizedElement(t *testing.T) {
	c := New(4, 0)
	value := []any{"a", "bbbbbbbbbb", "c"}
	frags, err := c.Chunk("rid-4", fragment.OpCreate, value)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sawNested, sawBucket bool
	for _, f := range frags {
		switch {
		case len(f.CID) >= len("root0.e1") && f.CID[:len("root0.e1")] == "root0.e1":
			sawNested = true
		case f.Kind == fragment.KindArray && f.CID != "":
			sawBucket = true
		}
	}
	if !sawNested {
		t.Fatalf("expected an oversized element extracted under root0.e1, got %+v", frags)
	}
	if !sawBucket {
		t.Fatalf("expected at least one array bucket fragment, got %+v", frags)
	}
}

func TestChunkEmptyContainers(t *testing.T) {
	c := New(60000, 0)

	frags, err := c.Chunk("rid-5", fragment.OpCreate, []any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frags) != 1 || frags[0].CID != "root0" || frags[0].Kind != fragment.KindArray {
		t.Fatalf("expected single empty array fragment, got %+v", frags)
	}

	frags, err = c.Chunk("rid-6", fragment.OpCreate, map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frags) != 1 || frags[0].CID != "root0" || frags[0].Kind != fragment.KindMapping {
		t.Fatalf("expected single empty mapping fragment, got %+v", frags)
	}
}

func TestChunkDeleteIsTombstone(t *testing.T) {
	c := New(4, 0)
	frags, err := c.Chunk("rid-7", fragment.OpDelete, "irrelevant")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frags) != 1 || !frags[0].IsTombstone() || frags[0].Data != nil {
		t.Fatalf("expected a single tombstone fragment, got %+v", frags)
	}
}

func TestChunkFragmentBudgetExceeded(t *testing.T) {
	c := New(1, 2)
	_, err := c.Chunk("rid-8", fragment.OpCreate, "abcdefghij")
	if err == nil {
		t.Fatalf("expected fragment budget error")
	}
}
