package reassemble

import (
	"reflect"
	"testing"

	"github.com/logcar/logcar/internal/logcar/chunk"
	"github.com/logcar/logcar/internal/logcar/fragment"
)

func roundTrip(t *testing.T, maxLen int, value any) any {
	t.Helper()
	c := chunk.New(maxLen, 0)
	frags, err := c.Chunk("rid", fragment.OpCreate, value)
	if err != nil {
		t.Fatalf("chunk error: %v", err)
	}
	got, err := Reassemble("rid", frags)
	if err != nil {
		t.Fatalf("reassemble error: %v", err)
	}
	return got
}

func TestRoundTripStringSplit(t *testing.T) {
	got := roundTrip(t, 4, "abcdefghij")
	if got != "abcdefghij" {
		t.Fatalf("expected round trip, got %v", got)
	}
}

func TestRoundTripNestedMapping(t *testing.T) {
	value := map[string]any{
		"a": "XXXXXXXXXX",
		"b": float64(1),
	}
	got := roundTrip(t, 4, value)
	if !reflect.DeepEqual(got, value) {
		t.Fatalf("expected %+v, got %+v", value, got)
	}
}

func TestRoundTripArrayWithOversizedElement(t *testing.T) {
	value := []any{"a", "bbbbbbbbbb", "c"}
	got := roundTrip(t, 4, value)
	if !reflect.DeepEqual(got, value) {
		t.Fatalf("expected %+v, got %+v", value, got)
	}
}

func TestRoundTripDeepNesting(t *testing.T) {
	value := map[string]any{
		"items": []any{
			map[string]any{"id": float64(1), "note": "this note is quite long indeed"},
			map[string]any{"id": float64(2), "note": "short"},
		},
		"meta": map[string]any{"owner": "alice", "count": float64(2)},
	}
	got := roundTrip(t, 12, value)
	if !reflect.DeepEqual(got, value) {
		t.Fatalf("expected %+v, got %+v", value, got)
	}
}

func TestRoundTripEmptyContainers(t *testing.T) {
	if got := roundTrip(t, 60000, []any{}); !reflect.DeepEqual(got, []any{}) {
		t.Fatalf("expected empty array, got %+v", got)
	}
	if got := roundTrip(t, 60000, map[string]any{}); !reflect.DeepEqual(got, map[string]any{}) {
		t.Fatalf("expected empty mapping, got %+v", got)
	}
}

func TestReassembleEmptyFragmentSet(t *testing.T) {
	if _, err := Reassemble("rid", nil); err == nil {
		t.Fatalf("expected error for empty fragment set")
	}
}

func TestReassembleIncompleteFragmentSet(t *testing.T) {
	frags := []fragment.Fragment{
		{RID: "rid", Op: fragment.OpCreate, CID: "root0.c0", Idx: 0, Total: 2, Kind: fragment.KindLeaf, Data: "abcd"},
	}
	if _, err := Reassemble("rid", frags); err == nil {
		t.Fatalf("expected incomplete fragment set error")
	}
}

func TestReassembleDuplicateIdx(t *testing.T) {
	frags := []fragment.Fragment{
		{RID: "rid", Op: fragment.OpCreate, CID: "root0.c0", Idx: 0, Total: 2, Kind: fragment.KindLeaf, Data: "abcd"},
		{RID: "rid", Op: fragment.OpCreate, CID: "root0.c1", Idx: 0, Total: 2, Kind: fragment.KindLeaf, Data: "efgh"},
	}
	if _, err := Reassemble("rid", frags); err == nil {
		t.Fatalf("expected duplicate idx error")
	}
}

func TestReassembleTombstone(t *testing.T) {
	frags := []fragment.Fragment{{RID: "rid", Op: fragment.OpDelete, Total: 1, Idx: 0}}
	got, err := Reassemble("rid", frags)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil value for tombstone, got %v", got)
	}
}

func TestReassembleTolerantReturnsPartialValue(t *testing.T) {
	frags := []fragment.Fragment{
		{RID: "rid", Op: fragment.OpCreate, CID: "root0.name", Idx: 0, Total: 2, Kind: fragment.KindLeaf, Data: "x"},
	}
	v, incomplete, err := ReassembleTolerant("rid", frags, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !incomplete {
		t.Fatalf("expected incomplete=true")
	}
	m, ok := v.(map[string]any)
	if !ok || m["name"] != "x" {
		t.Fatalf("expected partial mapping with name=x, got %+v", v)
	}
}

func TestReassembleDropsFragmentWithElementTokenUnderMapping(t *testing.T) {
	frags := []fragment.Fragment{
		{RID: "rid", Op: fragment.OpCreate, CID: "root0.name", Idx: 0, Total: 2, Kind: fragment.KindLeaf, Data: "x"},
		{RID: "rid", Op: fragment.OpCreate, CID: "root0.e0", Idx: 1, Total: 2, Kind: fragment.KindLeaf, Data: "y"},
	}
	v, err := Reassemble("rid", frags)
	if err != nil {
		t.Fatalf("expected the ambiguous fragment to be dropped rather than fail the group: %v", err)
	}
	m, ok := v.(map[string]any)
	if !ok || m["name"] != "x" {
		t.Fatalf("expected the mapping with only the well-formed fragment, got %+v", v)
	}
}
