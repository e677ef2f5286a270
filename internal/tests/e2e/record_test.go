package e2e_test

import (
	"context"
	"strings"
	"testing"

	tst "github.com/julianstephens/go-utils/tests"

	"github.com/logcar/logcar/internal/logcar/record"
	"github.com/logcar/logcar/internal/logcar/search"
	"github.com/logcar/logcar/internal/testutil"
)

func TestCreateReadUpdateDeleteLifecycle(t *testing.T) {
	store, _ := testutil.NewTestStore(t, record.Config{DeploymentID: "prod"})

	created, err := store.Create(map[string]any{"name": "widget", "count": float64(3)})
	tst.RequireNoError(t, err)
	tst.AssertTrue(t, created.RID != "", "expected a minted rid")

	ctx := context.Background()
	got, err := store.Read(ctx, created.RID)
	tst.RequireNoError(t, err)
	tst.AssertDeepEqual(t, created.Value, got.Value)
	tst.AssertFalse(t, got.Incomplete, "freshly written record should not be incomplete")

	updated, err := store.Update(created.RID, map[string]any{"name": "widget", "count": float64(4)})
	tst.RequireNoError(t, err)
	tst.AssertEqual(t, created.RID, updated.RID)

	got, err = store.Read(ctx, created.RID)
	tst.RequireNoError(t, err)
	m, ok := got.Value.(map[string]any)
	tst.AssertTrue(t, ok, "expected value to decode as a mapping")
	tst.AssertEqual(t, float64(4), m["count"].(float64))

	tst.RequireNoError(t, store.Delete(created.RID))

	_, err = store.Read(ctx, created.RID)
	tst.AssertNotNil(t, err, "expected read after delete to fail")
}

func TestCreateWithEncryptionRoundTripsThroughSink(t *testing.T) {
	cfg := record.Config{
		DeploymentID:      "prod",
		EncryptionEnabled: true,
		EncryptionKey:     "correct horse battery staple",
	}
	store, sink := testutil.NewTestStore(t, cfg)

	created, err := store.Create("a secret value")
	tst.RequireNoError(t, err)

	for _, line := range sink.Lines() {
		tst.AssertFalse(t, strings.Contains(string(line), "a secret value"), "plaintext must not appear in any emitted line")
	}

	got, err := store.Read(context.Background(), created.RID)
	tst.RequireNoError(t, err)
	tst.AssertEqual(t, "a secret value", got.Value.(string))
}

func TestListSurfacesMultipleRecordsNewestWriteWins(t *testing.T) {
	store, _ := testutil.NewTestStore(t, record.Config{DeploymentID: "prod"})

	first, err := store.Create("v1")
	tst.RequireNoError(t, err)
	_, err = store.Update(first.RID, "v2")
	tst.RequireNoError(t, err)

	second, err := store.Create("other")
	tst.RequireNoError(t, err)

	records, err := store.List(context.Background(), search.Spec{Limit: 10})
	tst.RequireNoError(t, err)
	tst.AssertEqual(t, 2, len(records))

	byRID := map[string]record.Record{}
	for _, r := range records {
		byRID[r.RID] = r
	}
	tst.AssertEqual(t, "v2", byRID[first.RID].Value.(string))
	tst.AssertEqual(t, "other", byRID[second.RID].Value.(string))
}

func TestListOrdersByTimestampNotSeqAcrossProcesses(t *testing.T) {
	store, _, lb := testutil.NewTestStoreWithBackboard(t, record.Config{DeploymentID: "prod"})

	first, err := store.Create("v1")
	tst.RequireNoError(t, err)
	_, err = store.Update(first.RID, "v2")
	tst.RequireNoError(t, err)

	// The update carries a higher seq (same process, monotonic counter),
	// but stamp the create with the later receipt timestamp to simulate
	// it actually landing after the update from a separate process.
	// Timestamp must decide the winner, not seq: the create should win.
	lb.SetTimestamps(map[int]string{
		0: "2026-01-01T00:00:05Z",
		1: "2026-01-01T00:00:01Z",
	})

	records, err := store.List(context.Background(), search.Spec{Limit: 10})
	tst.RequireNoError(t, err)
	tst.AssertEqual(t, 1, len(records))
	tst.AssertEqual(t, "v1", records[0].Value.(string))
}

func TestLargeValueChunksAndReassemblesAcrossManyFragments(t *testing.T) {
	store, sink := testutil.NewTestStore(t, record.Config{DeploymentID: "prod", MaxChunkLength: 64})

	big := strings.Repeat("x", 5000)
	created, err := store.Create(big)
	tst.RequireNoError(t, err)
	tst.AssertGreaterThan(t, len(sink.Lines()), 5, "expected the large value to split across many fragments")

	got, err := store.Read(context.Background(), created.RID)
	tst.RequireNoError(t, err)
	tst.AssertEqual(t, big, got.Value.(string))
}
