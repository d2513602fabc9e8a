package ttime

import (
	"fmt"

	"github.com/google/uuid"
)

// Wrap shapes a user document into version-record form: {_id: {_id,
// transaction_start}, transaction_end: null, ...fields}. Idempotent on a
// document that already carries _id.transaction_start (P3): wrap∘wrap =
// wrap.
func Wrap(doc map[string]any, start *Timestamp, clock Clock) (map[string]any, error) {
	if idField, ok := doc["_id"].(map[string]any); ok {
		if _, hasStart := idField["transaction_start"]; hasStart {
			return doc, nil
		}
	}

	userID := doc["_id"]
	if userID == nil {
		userID = uuid.NewString()
	}

	var startTS Timestamp
	if start != nil {
		startTS = *start
	} else {
		startTS = clock.Now()
	}

	out := cloneShallow(doc)
	delete(out, "_id")
	out["_id"] = map[string]any{
		"_id":               userID,
		"transaction_start": startTS,
	}
	out["transaction_end"] = nil

	return out, nil
}

// Close stamps transaction_end on a current version record. Fails loudly
// (I5) if the record is already historical or not version-shaped.
func Close(doc map[string]any, clock Clock) (map[string]any, error) {
	if _, ok := doc["_id"].(map[string]any); !ok {
		return nil, fmt.Errorf("%w: close of a non version record", ErrInvariantViolation)
	}

	end, hasEnd := doc["transaction_end"]
	if !hasEnd {
		return nil, fmt.Errorf("%w: record has no transaction_end field", ErrInvariantViolation)
	}
	if end != nil {
		return nil, fmt.Errorf("%w: close of an already historic record", ErrInvariantViolation)
	}

	out := cloneShallow(doc)
	out["transaction_end"] = clock.Now()
	return out, nil
}

// Succeed builds the record that picks up right where a just-closed
// predecessor left off: transaction_start equals the predecessor's
// transaction_end (I4), and _id._id is carried over unchanged.
func Succeed(newUserDoc map[string]any, predecessor map[string]any) (map[string]any, error) {
	idField, ok := predecessor["_id"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: predecessor is not a version record", ErrInvariantViolation)
	}

	end, ok := predecessor["transaction_end"].(Timestamp)
	if !ok {
		return nil, fmt.Errorf("%w: predecessor has not been closed", ErrInvariantViolation)
	}

	out := cloneShallow(newUserDoc)
	out["_id"] = idField["_id"]

	return Wrap(out, &end, discardingClock{})
}

// discardingClock satisfies Wrap's Clock parameter for Succeed's call,
// where the start timestamp is always explicit and Now() is never reached.
type discardingClock struct{}

func (discardingClock) Now() Timestamp {
	panic("ttime: Succeed must always supply an explicit start timestamp")
}

func cloneShallow(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

// LogicalID returns the string form of a version record's _id._id, used as
// the key for head-tracking and per-id locking. Not part of the persisted
// shape — a convenience for in-memory bookkeeping.
func LogicalID(doc map[string]any) (string, error) {
	idField, ok := doc["_id"].(map[string]any)
	if !ok {
		return "", fmt.Errorf("%w: not a version record", ErrInvariantViolation)
	}
	return fmt.Sprintf("%v", idField["_id"]), nil
}
