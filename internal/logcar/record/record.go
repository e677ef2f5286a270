// Package record is the public record façade (C7): it ties the size
// estimator, chunker, cipher, emit protocol, and search protocol together
// into Create/Read/Update/Delete/List operations over one logical record
// store.
package record

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/logcar/logcar/internal/logcar/chunk"
	"github.com/logcar/logcar/internal/logcar/cipher"
	"github.com/logcar/logcar/internal/logcar/emit"
	"github.com/logcar/logcar/internal/logcar/fragment"
	"github.com/logcar/logcar/internal/logcar/logcarerr"
	"github.com/logcar/logcar/internal/logcar/search"
	"github.com/logcar/logcar/internal/logger"
)

// Config bounds one Store: the chunk/fragment-budget/fetch sizing knobs and
// the encryption and platform-scope settings a deployment supplies.
type Config struct {
	MaxChunkLength       int
	MaxFragmentsPerWrite int
	MaxLogRequestSize    int
	EncryptionEnabled    bool
	EncryptionKey        string
	DeploymentID         string
}

// Record is one façade-level result: a record's current value, or a
// tombstone/incompleteness flag describing why it might not be trustworthy
// as-is.
type Record struct {
	RID        string
	Op         fragment.Op
	Value      any
	Incomplete bool
}

// Store is the record façade tying the chunker, emitter and searcher to one
// emit sink and one search backend.
type Store struct {
	cfg      Config
	chunker  *chunk.Chunker
	emitter  *emit.Emitter
	searcher *search.Searcher
	logger   logger.Logger
}

// New builds a Store. sink receives every emitted log line; backboard
// answers search queries. A nil logger falls back to a no-op logger.
func New(cfg Config, sink emit.Sink, backboard search.Backboard, lg logger.Logger) *Store {
	if lg == nil {
		lg = logger.NoOpLogger{}
	}
	maxLen := cfg.MaxChunkLength
	if maxLen <= 0 {
		maxLen = chunk.DefaultMaxChunkLength
	}
	maxFrag := cfg.MaxFragmentsPerWrite
	if maxFrag <= 0 {
		maxFrag = DefaultMaxFragmentsPerWrite
	}
	return &Store{
		cfg:      cfg,
		chunker:  chunk.New(maxLen, maxFrag),
		emitter:  emit.NewEmitter(sink, lg),
		searcher: search.NewSearcher(backboard, cfg.MaxLogRequestSize, lg),
		logger:   lg,
	}
}

// Create mints a fresh rid, optionally encrypts value, chunks it, and emits
// the write group tagged op=create.
func (s *Store) Create(value any, opts ...Option) (Record, error) {
	return s.write(uuid.NewString(), fragment.OpCreate, value, opts)
}

// Update appends a new write group for an existing rid, tagged op=update.
func (s *Store) Update(rid string, value any, opts ...Option) (Record, error) {
	if rid == "" {
		return Record{}, wrapErr("update", logcarerr.ErrFragmentSequenceError, rid, fmt.Errorf("empty rid"))
	}
	return s.write(rid, fragment.OpUpdate, value, opts)
}

func (s *Store) write(rid string, op fragment.Op, value any, opts []Option) (Record, error) {
	o := applyOptions(opts)

	payload := value
	encrypted := false
	if keyInput := s.resolveKey(o); keyInput != "" {
		blob, err := cipher.New(keyInput).Seal(rid, value)
		if err != nil {
			return Record{}, wrapErr(string(op), logcarerr.ErrDecryptionError, rid, err)
		}
		payload = blob
		encrypted = true
	}

	frags, err := s.chunker.Chunk(rid, op, payload)
	if err != nil {
		return Record{}, wrapErr(string(op), logcarerr.ErrFragmentBudgetExceeded, rid, err)
	}
	if encrypted {
		for i := range frags {
			frags[i].Encrypted = true
		}
	}

	if err := s.emitter.Emit(frags); err != nil {
		return Record{}, wrapErr(string(op), logcarerr.ErrEmitFailed, rid, err)
	}

	return Record{RID: rid, Op: op, Value: value}, nil
}

// Delete emits a single tombstone fragment, masking rid's prior state from
// subsequent reads.
func (s *Store) Delete(rid string) error {
	if rid == "" {
		return wrapErr("delete", logcarerr.ErrFragmentSequenceError, rid, fmt.Errorf("empty rid"))
	}
	frags, err := s.chunker.Chunk(rid, fragment.OpDelete, nil)
	if err != nil {
		return wrapErr("delete", logcarerr.ErrFragmentBudgetExceeded, rid, err)
	}
	if err := s.emitter.Emit(frags); err != nil {
		return wrapErr("delete", logcarerr.ErrEmitFailed, rid, err)
	}
	return nil
}

// Read fetches rid's current state, decrypting it if needed, and emits a
// best-effort op=read audit fragment (a failure to record the audit line
// is logged but does not fail the read). Requires a configured deployment
// scope; returns ErrRecordNotFound if rid was never written or was deleted.
func (s *Store) Read(ctx context.Context, rid string, opts ...Option) (Record, error) {
	if rid == "" {
		return Record{}, wrapErr("read", logcarerr.ErrFragmentSequenceError, rid, fmt.Errorf("empty rid"))
	}
	if s.cfg.DeploymentID == "" {
		return Record{}, wrapErr("read", logcarerr.ErrMissingDeploymentID, rid, nil)
	}

	rec, err := s.searcher.DataFromID(ctx, rid)
	if err != nil {
		if errors.Is(err, logcarerr.ErrTimeout) {
			return Record{}, wrapErr("read", logcarerr.ErrTimeout, rid, err)
		}
		return Record{}, wrapErr("read", logcarerr.ErrSearchBackendError, rid, err)
	}
	if rec == nil || rec.Deleted {
		return Record{}, wrapErr("read", logcarerr.ErrRecordNotFound, rid, nil)
	}

	value := rec.Value
	if rec.Encrypted {
		o := applyOptions(opts)
		keyInput := s.resolveKey(o)
		if keyInput == "" {
			return Record{}, wrapErr("read", logcarerr.ErrDecryptionError, rid, fmt.Errorf("record is encrypted but no key is configured"))
		}
		blob, ok := value.(string)
		if !ok {
			return Record{}, wrapErr("read", logcarerr.ErrDecryptionError, rid, fmt.Errorf("encrypted record value is not a string"))
		}
		v, err := cipher.New(keyInput).Open(rid, blob)
		if err != nil {
			return Record{}, wrapErr("read", logcarerr.ErrDecryptionError, rid, err)
		}
		value = v
	}

	s.emitReadAudit(rid)

	return Record{RID: rid, Op: rec.Op, Value: value, Incomplete: rec.Incomplete}, nil
}

func (s *Store) emitReadAudit(rid string) {
	audit := []fragment.Fragment{{
		RID: rid, Op: fragment.OpRead, CID: "root0",
		Idx: 0, Total: 1, Kind: fragment.KindLeaf,
	}}
	if err := s.emitter.Emit(audit); err != nil {
		s.logger.Warn("failed to emit read audit fragment", "rid", rid, "error", err.Error())
	}
}

// List runs a search directly, exposing C6's query translation for callers
// that need more than Read's single-rid lookup. Encrypted records that
// cannot be decrypted with the configured key are dropped with a warning
// rather than failing the whole call; deleted records are omitted.
func (s *Store) List(ctx context.Context, spec search.Spec) ([]Record, error) {
	results, err := s.searcher.Search(ctx, spec)
	if err != nil {
		if errors.Is(err, logcarerr.ErrTimeout) {
			return nil, wrapErr("list", logcarerr.ErrTimeout, spec.RID, err)
		}
		return nil, wrapErr("list", logcarerr.ErrSearchBackendError, spec.RID, err)
	}

	records := make([]Record, 0, len(results))
	for _, r := range results {
		if r.Deleted {
			continue
		}
		value := r.Value
		if r.Encrypted {
			if s.cfg.EncryptionKey == "" {
				s.logger.Warn("dropping encrypted record with no configured key", "rid", r.RID)
				continue
			}
			blob, ok := value.(string)
			if !ok {
				s.logger.Warn("dropping encrypted record with non-string payload", "rid", r.RID)
				continue
			}
			v, err := cipher.New(s.cfg.EncryptionKey).Open(r.RID, blob)
			if err != nil {
				s.logger.Warn("dropping record that failed to decrypt", "rid", r.RID, "error", err.Error())
				continue
			}
			value = v
		}
		records = append(records, Record{RID: r.RID, Op: r.Op, Value: value, Incomplete: r.Incomplete})
	}
	return records, nil
}

func (s *Store) resolveKey(o callOptions) string {
	if o.key != "" {
		return o.key
	}
	if s.cfg.EncryptionEnabled {
		return s.cfg.EncryptionKey
	}
	return ""
}
