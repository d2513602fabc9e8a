package database

import (
	"testing"

	. "github.com/fulldump/biff"
)

func TestDatabase_CreateTemporalCollection_WiresExecutor(t *testing.T) {

	db := NewDatabase(&Config{Dir: t.TempDir()})
	AssertNil(db.Load())

	_, err := db.CreateCollection("events", true)
	AssertNil(err)

	executor := db.GetExecutor("events")
	AssertNotNil(executor)

	_, err = executor.Insert(map[string]any{"_id": "doc-1"})
	AssertNil(err)

	AssertNil(db.Stop())
}

func TestDatabase_CreateNonTemporalCollection_NoExecutor(t *testing.T) {

	db := NewDatabase(&Config{Dir: t.TempDir()})
	AssertNil(db.Load())

	_, err := db.CreateCollection("plain", false)
	AssertNil(err)

	AssertNil(db.GetExecutor("plain"))

	AssertNil(db.Stop())
}

// A restart must not resurrect the oplog file alongside a temporal
// collection as a bogus second collection.
func TestDatabase_Restart_SkipsOplogFile(t *testing.T) {

	dir := t.TempDir()

	db := NewDatabase(&Config{Dir: dir})
	AssertNil(db.Load())

	_, err := db.CreateCollection("events", true)
	AssertNil(err)
	AssertNil(db.Stop())

	db2 := NewDatabase(&Config{Dir: dir})
	AssertNil(db2.Load())
	defer db2.Stop()

	_, exists := db2.Collections["events"]
	AssertTrue(exists)

	_, exists = db2.Collections["events.oplog"]
	AssertTrue(!exists)

	AssertNotNil(db2.GetExecutor("events"))
}

func TestDatabase_DropCollection_ClosesExecutorSink(t *testing.T) {

	db := NewDatabase(&Config{Dir: t.TempDir()})
	AssertNil(db.Load())

	_, err := db.CreateCollection("events", true)
	AssertNil(err)

	AssertNil(db.DropCollection("events"))

	_, exists := db.Executors["events"]
	AssertTrue(!exists)
}
