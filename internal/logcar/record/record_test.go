package record

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/logcar/logcar/internal/backboard"
	"github.com/logcar/logcar/internal/logcar/cipher"
	"github.com/logcar/logcar/internal/logcar/emit"
	"github.com/logcar/logcar/internal/logcar/logcarerr"
	"github.com/logcar/logcar/internal/logcar/search"
)

func sealForTest(key string, value any) (string, error) {
	return cipher.New(key).Seal("test", value)
}

func searchSpecAll() search.Spec {
	return search.Spec{Limit: 10}
}

type fakeBackboard struct {
	entries []backboard.LogEntry
	err     error
}

func (f *fakeBackboard) Search(_ context.Context, _ backboard.SearchOpts) ([]backboard.LogEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.entries, nil
}

func mkEntry(ts string, attrs map[string]any) backboard.LogEntry {
	list := make([]backboard.Attribute, 0, len(attrs))
	for k, v := range attrs {
		b, err := json.Marshal(v)
		if err != nil {
			panic(err)
		}
		list = append(list, backboard.Attribute{Key: k, Value: string(b)})
	}
	return backboard.LogEntry{Attributes: list, Timestamp: ts}
}

func newTestStore(cfg Config, sink emit.Sink, fb *fakeBackboard) *Store {
	if fb == nil {
		fb = &fakeBackboard{}
	}
	return New(cfg, sink, fb, nil)
}

func TestCreateEmitsFragments(t *testing.T) {
	var buf bytes.Buffer
	s := newTestStore(Config{}, emit.NewWriterSink(&buf), nil)

	rec, err := s.Create(map[string]any{"hello": "world"})
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if rec.RID == "" {
		t.Fatalf("expected a minted rid")
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 emitted line, got %d", len(lines))
	}
	var line map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &line); err != nil {
		t.Fatalf("unmarshal line: %v", err)
	}
	if line["operation"] != "create" || line["__id"] != rec.RID {
		t.Fatalf("unexpected line contents: %+v", line)
	}
}

func TestCreateWithEncryptionProducesCiphertext(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{EncryptionEnabled: true, EncryptionKey: strings.Repeat("00", 32)}
	s := newTestStore(cfg, emit.NewWriterSink(&buf), nil)

	rec, err := s.Create([]any{float64(1), float64(2), float64(3)})
	if err != nil {
		t.Fatalf("create error: %v", err)
	}

	var line map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &line); err != nil {
		t.Fatalf("unmarshal line: %v", err)
	}
	if line["encrypted"] != true {
		t.Fatalf("expected encrypted=true, got %+v", line)
	}
	data, ok := line["data"].(string)
	if !ok || strings.Count(data, ":") != 2 {
		t.Fatalf("expected salt:iv:ciphertext data, got %+v", line["data"])
	}
	if rec.Value == nil {
		t.Fatalf("expected façade to still return the plaintext caller value")
	}
}

func TestUpdateEmptyRidRejected(t *testing.T) {
	var buf bytes.Buffer
	s := newTestStore(Config{}, emit.NewWriterSink(&buf), nil)
	if _, err := s.Update("", "value"); err == nil {
		t.Fatalf("expected error for empty rid")
	}
}

func TestDeleteEmitsTombstone(t *testing.T) {
	var buf bytes.Buffer
	s := newTestStore(Config{}, emit.NewWriterSink(&buf), nil)

	if err := s.Delete("rid-1"); err != nil {
		t.Fatalf("delete error: %v", err)
	}
	var line map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &line); err != nil {
		t.Fatalf("unmarshal line: %v", err)
	}
	if line["operation"] != "delete" {
		t.Fatalf("expected delete tombstone, got %+v", line)
	}
}

func TestDeleteEmptyRidRejected(t *testing.T) {
	var buf bytes.Buffer
	s := newTestStore(Config{}, emit.NewWriterSink(&buf), nil)
	if err := s.Delete(""); err == nil {
		t.Fatalf("expected error for empty rid")
	}
}

func TestReadRequiresDeploymentID(t *testing.T) {
	var buf bytes.Buffer
	s := newTestStore(Config{}, emit.NewWriterSink(&buf), nil)
	if _, err := s.Read(context.Background(), "rid-1"); !errors.Is(err, logcarerr.ErrMissingDeploymentID) {
		t.Fatalf("expected ErrMissingDeploymentID, got %v", err)
	}
}

func TestReadReturnsValueAndEmitsAudit(t *testing.T) {
	var buf bytes.Buffer
	fb := &fakeBackboard{entries: []backboard.LogEntry{
		mkEntry("2026-01-01T00:00:00Z", map[string]any{
			"__id": "rid-1", "operation": "create", "chunkId": "root0",
			"index": 0, "total": 1, "seq": 1, "kind": "leaf", "data": "hello",
		}),
	}}
	s := newTestStore(Config{DeploymentID: "prod"}, emit.NewWriterSink(&buf), fb)

	rec, err := s.Read(context.Background(), "rid-1")
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if rec.Value != "hello" {
		t.Fatalf("expected value hello, got %+v", rec)
	}

	var line map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &line); err != nil {
		t.Fatalf("unmarshal audit line: %v", err)
	}
	if line["operation"] != "read" {
		t.Fatalf("expected a read audit line, got %+v", line)
	}
}

func TestReadNotFoundAfterDelete(t *testing.T) {
	var buf bytes.Buffer
	fb := &fakeBackboard{entries: []backboard.LogEntry{
		mkEntry("2026-01-01T00:00:00Z", map[string]any{
			"__id": "rid-1", "operation": "delete", "chunkId": "root0",
			"index": 0, "total": 1, "seq": 1,
		}),
	}}
	s := newTestStore(Config{DeploymentID: "prod"}, emit.NewWriterSink(&buf), fb)

	if _, err := s.Read(context.Background(), "rid-1"); !errors.Is(err, logcarerr.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestReadEncryptedRequiresKey(t *testing.T) {
	key := strings.Repeat("11", 32)
	sealed, err := sealForTest(key, "secret value")
	if err != nil {
		t.Fatalf("seal error: %v", err)
	}

	var buf bytes.Buffer
	fb := &fakeBackboard{entries: []backboard.LogEntry{
		mkEntry("2026-01-01T00:00:00Z", map[string]any{
			"__id": "rid-1", "operation": "create", "chunkId": "root0",
			"index": 0, "total": 1, "seq": 1, "kind": "leaf",
			"data": sealed, "encrypted": true,
		}),
	}}

	s := newTestStore(Config{DeploymentID: "prod"}, emit.NewWriterSink(&buf), fb)
	if _, err := s.Read(context.Background(), "rid-1"); !errors.Is(err, logcarerr.ErrDecryptionError) {
		t.Fatalf("expected ErrDecryptionError with no key configured, got %v", err)
	}

	rec, err := s.Read(context.Background(), "rid-1", WithKey(key))
	if err != nil {
		t.Fatalf("read with key error: %v", err)
	}
	if rec.Value != "secret value" {
		t.Fatalf("expected decrypted value, got %+v", rec.Value)
	}
}

func TestListDropsUndecryptableRecords(t *testing.T) {
	key := strings.Repeat("22", 32)
	sealed, err := sealForTest(key, "protected")
	if err != nil {
		t.Fatalf("seal error: %v", err)
	}

	var buf bytes.Buffer
	fb := &fakeBackboard{entries: []backboard.LogEntry{
		mkEntry("2026-01-01T00:00:00Z", map[string]any{
			"__id": "rid-1", "operation": "create", "chunkId": "root0",
			"index": 0, "total": 1, "seq": 1, "kind": "leaf", "data": "plain",
		}),
		mkEntry("2026-01-01T00:00:01Z", map[string]any{
			"__id": "rid-2", "operation": "create", "chunkId": "root0",
			"index": 0, "total": 1, "seq": 2, "kind": "leaf",
			"data": sealed, "encrypted": true,
		}),
	}}
	s := newTestStore(Config{DeploymentID: "prod"}, emit.NewWriterSink(&buf), fb)

	records, err := s.List(context.Background(), searchSpecAll())
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if len(records) != 1 || records[0].RID != "rid-1" {
		t.Fatalf("expected only the plaintext record, got %+v", records)
	}
}

func TestReadPreservesTimeoutInsteadOfSearchBackendError(t *testing.T) {
	var buf bytes.Buffer
	fb := &fakeBackboard{err: backboard.ErrTimeout}
	s := newTestStore(Config{DeploymentID: "prod"}, emit.NewWriterSink(&buf), fb)

	_, err := s.Read(context.Background(), "rid-1")
	if !errors.Is(err, logcarerr.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if errors.Is(err, logcarerr.ErrSearchBackendError) {
		t.Fatalf("timeout must not also match ErrSearchBackendError: %v", err)
	}
}

func TestListPreservesTimeoutInsteadOfSearchBackendError(t *testing.T) {
	var buf bytes.Buffer
	fb := &fakeBackboard{err: backboard.ErrTimeout}
	s := newTestStore(Config{DeploymentID: "prod"}, emit.NewWriterSink(&buf), fb)

	_, err := s.List(context.Background(), searchSpecAll())
	if !errors.Is(err, logcarerr.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestRunBatchAppliesOpsInOrder(t *testing.T) {
	var buf bytes.Buffer
	s := newTestStore(Config{}, emit.NewWriterSink(&buf), nil)

	batch := NewBatch().Create("first").Create("second")
	results, err := s.RunBatch(context.Background(), batch)
	if err != nil {
		t.Fatalf("run batch error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Value != "first" || results[1].Value != "second" {
		t.Fatalf("unexpected batch results: %+v", results)
	}
}

func TestRunBatchStopsAtFirstFailure(t *testing.T) {
	var buf bytes.Buffer
	s := newTestStore(Config{}, emit.NewWriterSink(&buf), nil)

	batch := NewBatch().Create("ok").Update("", "should fail: empty rid").Create("never reached")
	results, err := s.RunBatch(context.Background(), batch)
	if err == nil {
		t.Fatalf("expected an error from the empty-rid update")
	}
	if len(results) != 1 {
		t.Fatalf("expected only the first op's result, got %d", len(results))
	}
}
