package emit

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/logcar/logcar/internal/logcar/fragment"
)

func TestEmitWritesOneLinePerFragment(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(NewWriterSink(&buf), nil)

	frags := []fragment.Fragment{
		{RID: "rid-1", Op: fragment.OpCreate, CID: "root0.c0", Idx: 0, Total: 2, Kind: fragment.KindLeaf, Data: "abcd"},
		{RID: "rid-1", Op: fragment.OpCreate, CID: "root0.c1", Idx: 1, Total: 2, Kind: fragment.KindLeaf, Data: "efgh"},
	}
	if err := e.Emit(frags); err != nil {
		t.Fatalf("emit error: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}

	var first LogLine
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if first.RID != "rid-1" || first.CID != "root0.c0" || first.Idx != 0 || first.Total != 2 {
		t.Fatalf("unexpected first line: %+v", first)
	}
	if first.Timestamp == "" || first.Level == "" || first.Message != "create" {
		t.Fatalf("expected envelope fields to be set, got %+v", first)
	}
	if first.Seq == 0 {
		t.Fatalf("expected a nonzero seq assigned by the emitter")
	}
}

func TestEmitAssignsIncreasingSeq(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(NewWriterSink(&buf), nil)

	frags := []fragment.Fragment{
		{RID: "rid-1", Op: fragment.OpCreate, CID: "root0.c0", Idx: 0, Total: 2, Kind: fragment.KindLeaf, Data: "a"},
		{RID: "rid-1", Op: fragment.OpCreate, CID: "root0.c1", Idx: 1, Total: 2, Kind: fragment.KindLeaf, Data: "b"},
	}
	if err := e.Emit(frags); err != nil {
		t.Fatalf("emit error: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	var a, b LogLine
	json.Unmarshal([]byte(lines[0]), &a)
	json.Unmarshal([]byte(lines[1]), &b)
	if !(a.Seq < b.Seq) {
		t.Fatalf("expected increasing seq, got %d then %d", a.Seq, b.Seq)
	}
}

type failingSink struct{}

func (failingSink) Emit([]byte) error { return errBoom }
func (failingSink) Flush() error      { return nil }

var errBoom = &boomErr{}

type boomErr struct{}

func (*boomErr) Error() string { return "boom" }

func TestEmitPropagatesSinkFailure(t *testing.T) {
	e := NewEmitter(failingSink{}, nil)
	frags := []fragment.Fragment{
		{RID: "rid-1", Op: fragment.OpCreate, CID: "root0", Idx: 0, Total: 1, Kind: fragment.KindLeaf, Data: "x"},
	}
	if err := e.Emit(frags); err == nil {
		t.Fatalf("expected error from failing sink")
	}
}

func TestEmitDeleteTombstone(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(NewWriterSink(&buf), nil)
	frags := []fragment.Fragment{{RID: "rid-1", Op: fragment.OpDelete, Total: 1, Idx: 0}}
	if err := e.Emit(frags); err != nil {
		t.Fatalf("emit error: %v", err)
	}
	var line LogLine
	if err := json.Unmarshal(bytes.TrimRight(buf.Bytes(), "\n"), &line); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if line.Op != fragment.OpDelete || line.Data != nil {
		t.Fatalf("expected tombstone line, got %+v", line)
	}
	if line.Level != "warn" {
		t.Fatalf("expected warn level for delete, got %q", line.Level)
	}
}
