// Package errorutil holds positional context shared by the error types of
// the logcar package tree, adapted from the WAL's segment/offset/txn
// coordinate formatting to the record/op/index coordinates the log-as-storage
// engine deals in.
package errorutil

import "fmt"

// Coordinates holds positional information (record id, operation, fragment
// index) used in error formatting across the chunk/reassemble/emit/search
// packages.
type Coordinates struct {
	// RID is the record id the error concerns.
	RID *string

	// Op is the write-group operation ("create", "update", "read", "delete").
	Op *string

	// Idx is the fragment index within its write group.
	Idx *int
}

// FormatCoordinates returns a formatted string representation of the error
// coordinates, including only the non-nil fields, in the form
// "rid=X op=Y idx=Z". Returns an empty string if all fields are nil.
func (c *Coordinates) FormatCoordinates() string {
	if c == nil {
		return ""
	}

	var parts []string

	if c.RID != nil {
		parts = append(parts, fmt.Sprintf("rid=%s", *c.RID))
	}
	if c.Op != nil {
		parts = append(parts, fmt.Sprintf("op=%s", *c.Op))
	}
	if c.Idx != nil {
		parts = append(parts, fmt.Sprintf("idx=%d", *c.Idx))
	}

	if len(parts) == 0 {
		return ""
	}

	result := ""
	for i, part := range parts {
		if i > 0 {
			result += " "
		}
		result += part
	}
	return result
}

// String implements the Stringer interface for Coordinates.
func (c *Coordinates) String() string {
	return c.FormatCoordinates()
}

// RIDCoords is a convenience constructor for the common rid-only case.
func RIDCoords(rid string) *Coordinates {
	return &Coordinates{RID: &rid}
}

// RIDOpCoords is a convenience constructor for the rid+op case.
func RIDOpCoords(rid, op string) *Coordinates {
	return &Coordinates{RID: &rid, Op: &op}
}

// RIDOpIdxCoords is a convenience constructor for the full rid+op+idx case,
// used where a failure concerns one fragment within a write group.
func RIDOpIdxCoords(rid, op string, idx int) *Coordinates {
	return &Coordinates{RID: &rid, Op: &op, Idx: &idx}
}
