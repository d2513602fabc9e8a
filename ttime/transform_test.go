package ttime

import (
	"testing"

	. "github.com/fulldump/biff"
)

func TestWrap_ShapesDocument(t *testing.T) {
	clock := NewMonotonicClock()

	wrapped, err := Wrap(map[string]any{
		"_id": "user-1",
		"x":   "a",
	}, nil, clock)

	AssertNil(err)

	idField, ok := wrapped["_id"].(map[string]any)
	AssertTrue(ok)
	AssertEqual(idField["_id"], "user-1")
	AssertNotNil(idField["transaction_start"])
	AssertNil(wrapped["transaction_end"])
	AssertEqual(wrapped["x"], "a")
}

func TestWrap_GeneratesIdentifierWhenAbsent(t *testing.T) {
	clock := NewMonotonicClock()

	wrapped, err := Wrap(map[string]any{"x": "a"}, nil, clock)
	AssertNil(err)

	idField := wrapped["_id"].(map[string]any)
	AssertNotNil(idField["_id"])
}

// P3: wrap ∘ wrap = wrap
func TestWrap_Idempotent(t *testing.T) {
	clock := NewMonotonicClock()

	once, err := Wrap(map[string]any{"_id": "user-1", "x": "a"}, nil, clock)
	AssertNil(err)

	twice, err := Wrap(once, nil, clock)
	AssertNil(err)

	AssertEqualJson(once, twice)
}

func TestClose_StampsTransactionEnd(t *testing.T) {
	clock := NewMonotonicClock()

	wrapped, _ := Wrap(map[string]any{"_id": "user-1"}, nil, clock)

	closed, err := Close(wrapped, clock)
	AssertNil(err)
	AssertNotNil(closed["transaction_end"])
}

func TestClose_RejectsAlreadyHistoric(t *testing.T) {
	clock := NewMonotonicClock()

	wrapped, _ := Wrap(map[string]any{"_id": "user-1"}, nil, clock)
	closed, _ := Close(wrapped, clock)

	_, err := Close(closed, clock)
	AssertNotNil(err)
}

func TestClose_RejectsNonVersionRecord(t *testing.T) {
	clock := NewMonotonicClock()

	_, err := Close(map[string]any{"x": "a"}, clock)
	AssertNotNil(err)
}

// I4: the successor's transaction_start equals the predecessor's
// transaction_end.
func TestSucceed_ChainContinuity(t *testing.T) {
	clock := NewMonotonicClock()

	wrapped, _ := Wrap(map[string]any{"_id": "user-1", "a": 0}, nil, clock)
	closed, err := Close(wrapped, clock)
	AssertNil(err)

	successor, err := Succeed(map[string]any{"a": 1}, closed)
	AssertNil(err)

	successorID := successor["_id"].(map[string]any)
	AssertEqual(successorID["_id"], "user-1")
	AssertEqual(successorID["transaction_start"], closed["transaction_end"])
	AssertNil(successor["transaction_end"])
}

func TestSucceed_RejectsUnclosedPredecessor(t *testing.T) {
	clock := NewMonotonicClock()

	wrapped, _ := Wrap(map[string]any{"_id": "user-1"}, nil, clock)

	_, err := Succeed(map[string]any{"a": 1}, wrapped)
	AssertNotNil(err)
}
