package sizeest

import "testing"

func TestVirtualLengthString(t *testing.T) {
	if got := VirtualLength("hello"); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
}

func TestVirtualLengthArray(t *testing.T) {
	got := VirtualLength([]any{"ab", "cde", "f"})
	if got != 6 {
		t.Fatalf("expected 6, got %d", got)
	}
}

func TestVirtualLengthMapping(t *testing.T) {
	got := VirtualLength(map[string]any{"a": "X"})
	// key "a" (1) + value "X" (1) = 2
	if got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
}

func TestVirtualLengthScalar(t *testing.T) {
	if got := VirtualLength(true); got != 4 {
		t.Fatalf("expected 4 for %q, got %d", "true", got)
	}
	if got := VirtualLength(nil); got != 4 {
		t.Fatalf("expected 4 for %q, got %d", "null", got)
	}
	if got := VirtualLength(float64(123)); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
}

func TestVirtualLengthNested(t *testing.T) {
	v := map[string]any{
		"name":  "widget",
		"tags":  []any{"a", "bb", "ccc"},
		"count": float64(7),
	}
	// name(4)+widget(6) + tags(4)+(1+2+3) + count(5)+7(1) = 10+10+6 = 26
	if got := VirtualLength(v); got != 26 {
		t.Fatalf("expected 26, got %d", got)
	}
}
