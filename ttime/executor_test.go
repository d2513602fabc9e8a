package ttime

import (
	"os"
	"testing"

	. "github.com/fulldump/biff"
	"github.com/google/uuid"

	"github.com/fulldump/temporaldb/collection"
	"github.com/fulldump/temporaldb/oplog"
)

func newTestExecutor(t *testing.T) (*Executor, func()) {
	filename := "test_ttime_" + uuid.New().String() + ".json"
	col, err := collection.OpenCollection(filename, true)
	if err != nil {
		t.Fatal(err)
	}
	sink := oplog.NewMemorySink()
	executor := NewExecutor("test.collection", col, NewMonotonicClock(), sink)
	return executor, func() {
		col.Close()
		os.Remove(filename)
	}
}

// Scenario 1: insert then update, exactly one current and two total.
func TestExecutor_InsertThenPatch(t *testing.T) {
	executor, cleanup := newTestExecutor(t)
	defer cleanup()

	inserted, err := executor.Insert(map[string]any{"_id": "doc-1", "a": float64(0)})
	AssertNil(err)
	AssertEqual(inserted["a"], float64(0))

	n, err := executor.Patch(map[string]any{"_id._id": "doc-1"}, map[string]any{"a": float64(1)}, PatchOptions{})
	AssertNil(err)
	AssertEqual(n, 1)

	current, err := executor.Find(map[string]any{"_id._id": "doc-1"})
	AssertNil(err)
	AssertEqual(len(current), 1)
	AssertEqual(current[0]["a"], float64(1))

	all, err := executor.Find(map[string]any{
		"_id._id":     "doc-1",
		"transaction": map[string]any{"all": true},
	})
	AssertNil(err)
	AssertEqual(len(all), 2)
}

// Scenario 2: second insert of the same id fails with duplicate-key because
// the live-index predicate (id, null) is taken.
func TestExecutor_InsertDuplicateCurrentFails(t *testing.T) {
	executor, cleanup := newTestExecutor(t)
	defer cleanup()

	_, err := executor.Insert(map[string]any{"_id": "7", "x": "a"})
	AssertNil(err)

	_, err = executor.Insert(map[string]any{"_id": "7", "x": "b"})
	AssertNotNil(err)
}

// Scenario 3: a point-in-time read returns exactly the historical version
// whose interval contains it.
func TestExecutor_FindAt_ReturnsHistoricalVersion(t *testing.T) {
	executor, cleanup := newTestExecutor(t)
	defer cleanup()

	_, err := executor.Insert(map[string]any{"_id": "doc-1", "a": float64(0)})
	AssertNil(err)

	_, err = executor.Patch(map[string]any{"_id._id": "doc-1"}, map[string]any{"a": float64(1)}, PatchOptions{})
	AssertNil(err)

	all, err := executor.Find(map[string]any{
		"_id._id":     "doc-1",
		"transaction": map[string]any{"all": true},
	})
	AssertNil(err)
	AssertEqual(len(all), 2)

	var historicalEnd Timestamp
	for _, doc := range all {
		if doc["transaction_end"] != nil {
			historicalEnd = asTimestamp(doc["transaction_end"])
		}
	}
	AssertNotNil(historicalEnd)

	at, err := executor.Find(map[string]any{
		"_id._id":     "doc-1",
		"transaction": map[string]any{"at": historicalEnd - 1},
	})
	AssertNil(err)
	AssertEqual(len(at), 1)
	AssertEqual(at[0]["a"], float64(0))
}

// Scenario 4: multi-update on several matching docs closes and succeeds
// each exactly once.
func TestExecutor_MultiPatch_ExactlyOncePerDoc(t *testing.T) {
	executor, cleanup := newTestExecutor(t)
	defer cleanup()

	for _, id := range []string{"a", "b", "c"} {
		_, err := executor.Insert(map[string]any{"_id": id, "kind": "widget"})
		AssertNil(err)
	}

	n, err := executor.Patch(map[string]any{"kind": "widget"}, map[string]any{"kind": "gadget"}, PatchOptions{})
	AssertNil(err)
	AssertEqual(n, 3)

	all, err := executor.Find(map[string]any{
		"transaction": map[string]any{"all": true},
	})
	AssertNil(err)
	AssertEqual(len(all), 6)

	current, err := executor.Find(map[string]any{"kind": "gadget"})
	AssertNil(err)
	AssertEqual(len(current), 3)
}

// Scenario 5: delete closes the current version and leaves one historical
// record behind.
func TestExecutor_Remove(t *testing.T) {
	executor, cleanup := newTestExecutor(t)
	defer cleanup()

	_, err := executor.Insert(map[string]any{"_id": "doc-1", "a": float64(0)})
	AssertNil(err)

	n, err := executor.Remove(map[string]any{"_id._id": "doc-1"})
	AssertNil(err)
	AssertEqual(n, 1)

	current, err := executor.Find(map[string]any{"_id._id": "doc-1"})
	AssertNil(err)
	AssertEqual(len(current), 0)

	all, err := executor.Find(map[string]any{
		"_id._id":     "doc-1",
		"transaction": map[string]any{"all": true},
	})
	AssertNil(err)
	AssertEqual(len(all), 1)
	AssertNotNil(all[0]["transaction_end"])
}

func TestExecutor_Insert_RejectsOversizedDocument(t *testing.T) {
	executor, cleanup := newTestExecutor(t)
	defer cleanup()

	huge := make([]byte, MaxDocumentBytes+1)
	_, err := executor.Insert(map[string]any{"_id": "doc-1", "blob": string(huge)})
	AssertNotNil(err)
}

// Scenario 6: a selector pinning a specific historical transaction_end is
// rejected with invariant-violation before any mutation.
func TestExecutor_Patch_RejectsHistoricalPin(t *testing.T) {
	executor, cleanup := newTestExecutor(t)
	defer cleanup()

	_, err := executor.Insert(map[string]any{"_id": "doc-1", "a": float64(0)})
	AssertNil(err)

	_, err = executor.Patch(map[string]any{"transaction_end": Timestamp(123)}, map[string]any{"a": float64(9)}, PatchOptions{})
	AssertNotNil(err)
}

// Scenario 7: upsert builds a fresh document from the selector's equality
// predicates plus the patch's fields when nothing matches.
func TestExecutor_Patch_UpsertInsertsWhenNoMatch(t *testing.T) {
	executor, cleanup := newTestExecutor(t)
	defer cleanup()

	n, err := executor.Patch(
		map[string]any{"_id._id": "doc-1", "kind": "widget"},
		map[string]any{"a": float64(1)},
		PatchOptions{Upsert: true},
	)
	AssertNil(err)
	AssertEqual(n, 1)

	current, err := executor.Find(map[string]any{"_id._id": "doc-1"})
	AssertNil(err)
	AssertEqual(len(current), 1)
	AssertEqual(current[0]["kind"], "widget")
	AssertEqual(current[0]["a"], float64(1))
}

// Without Upsert, a non-matching selector patches nothing rather than
// inserting.
func TestExecutor_Patch_NoUpsertIsNoopWhenNoMatch(t *testing.T) {
	executor, cleanup := newTestExecutor(t)
	defer cleanup()

	n, err := executor.Patch(map[string]any{"_id._id": "doc-1"}, map[string]any{"a": float64(1)}, PatchOptions{})
	AssertNil(err)
	AssertEqual(n, 0)

	current, err := executor.Find(map[string]any{"_id._id": "doc-1"})
	AssertNil(err)
	AssertEqual(len(current), 0)
}

// A multi-update upsert against a replacement-style patch (one naming its
// own _id) is rejected rather than silently seeding one document.
func TestExecutor_Patch_MultiUpsertRejectsReplacementStyle(t *testing.T) {
	executor, cleanup := newTestExecutor(t)
	defer cleanup()

	_, err := executor.Patch(
		map[string]any{"kind": "widget"},
		map[string]any{"_id": "doc-1", "a": float64(1)},
		PatchOptions{Upsert: true, Multi: true},
	)
	AssertNotNil(err)
}

// A no-op modifier set still closes the predecessor and inserts an
// identical successor, but suppresses the oplog pair that would otherwise
// replicate a "clear record" under empty rewrites.
func TestExecutor_Patch_NoopModifierSuppressesOplog(t *testing.T) {
	executor, cleanup := newTestExecutor(t)
	defer cleanup()

	_, err := executor.Insert(map[string]any{"_id": "doc-1", "a": float64(0)})
	AssertNil(err)

	sink := executor.Sink().(*oplog.MemorySink)
	before := sink.Len()

	n, err := executor.Patch(map[string]any{"_id._id": "doc-1"}, map[string]any{}, PatchOptions{})
	AssertNil(err)
	AssertEqual(n, 1)

	AssertEqual(sink.Len(), before)

	all, err := executor.Find(map[string]any{
		"_id._id":     "doc-1",
		"transaction": map[string]any{"all": true},
	})
	AssertNil(err)
	AssertEqual(len(all), 2)
}
