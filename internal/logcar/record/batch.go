package record

import (
	"context"

	"github.com/logcar/logcar/internal/logcar/fragment"
)

// BatchOp is one operation queued in a Batch: a create (RID is minted at
// run time and ignored here), an update, or a delete.
type BatchOp struct {
	Kind  fragment.Op
	RID   string
	Value any
	Opts  []Option
}

// Batch collects Create/Update/Delete calls to run against a Store as one
// ordered sequence before a single RunBatch call applies them.
type Batch struct {
	ops []BatchOp
}

// NewBatch creates an empty Batch.
func NewBatch() *Batch {
	return &Batch{}
}

// Create queues a record creation.
func (b *Batch) Create(value any, opts ...Option) *Batch {
	b.ops = append(b.ops, BatchOp{Kind: fragment.OpCreate, Value: value, Opts: opts})
	return b
}

// Update queues an update to an existing rid.
func (b *Batch) Update(rid string, value any, opts ...Option) *Batch {
	b.ops = append(b.ops, BatchOp{Kind: fragment.OpUpdate, RID: rid, Value: value, Opts: opts})
	return b
}

// Delete queues a tombstone for rid.
func (b *Batch) Delete(rid string) *Batch {
	b.ops = append(b.ops, BatchOp{Kind: fragment.OpDelete, RID: rid})
	return b
}

// Ops returns the queued operations in the order they were added.
func (b *Batch) Ops() []BatchOp {
	return b.ops
}

// RunBatch applies batch's operations in order against s, stopping at the
// first failure. It returns one Record per op that produced one (a Delete
// contributes a Record carrying only its rid), covering every op that ran
// successfully before any failure.
func (s *Store) RunBatch(_ context.Context, batch *Batch) ([]Record, error) {
	results := make([]Record, 0, len(batch.ops))
	for _, op := range batch.ops {
		switch op.Kind {
		case fragment.OpCreate:
			rec, err := s.Create(op.Value, op.Opts...)
			if err != nil {
				return results, err
			}
			results = append(results, rec)
		case fragment.OpUpdate:
			rec, err := s.Update(op.RID, op.Value, op.Opts...)
			if err != nil {
				return results, err
			}
			results = append(results, rec)
		case fragment.OpDelete:
			if err := s.Delete(op.RID); err != nil {
				return results, err
			}
			results = append(results, Record{RID: op.RID, Op: fragment.OpDelete})
		}
	}
	return results, nil
}
