// Package ttime implements the transaction-time versioning layer: the
// clock, the document-shape transform, the query and index rewriters, the
// TTL helper, and the update executor that ties them together over a
// collection.Collection.
package ttime

import (
	"sync"
	"time"
)

// Timestamp is a strictly increasing (sec, inc) pair, encoded as a single
// int64 so it travels through JSON as a plain number and connor's $gte/$lte
// operators compare it like any other numeric field. The low 6 decimal
// digits are the per-second counter; the rest is wall-clock seconds.
type Timestamp int64

const incScale = 1_000_000

func newTimestamp(sec int64, inc int64) Timestamp {
	return Timestamp(sec*incScale + inc)
}

// Sec returns the wall-clock seconds component.
func (t Timestamp) Sec() int64 { return int64(t) / incScale }

// Inc returns the per-second counter component.
func (t Timestamp) Inc() int64 { return int64(t) % incScale }

// Clock produces strictly increasing timestamps. A single process-wide
// instance must be shared by every Executor touching temporal collections,
// since transaction_start values are totally ordered even across logical
// documents (spec.md §5).
type Clock interface {
	Now() Timestamp
}

// MonotonicClock serialises timestamp issuance behind a mutex, bumping the
// counter within the same wall-clock second so two calls never collide.
type MonotonicClock struct {
	mu   sync.Mutex
	last Timestamp
}

func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{}
}

func (c *MonotonicClock) Now() Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := newTimestamp(time.Now().Unix(), 0)
	if ts <= c.last {
		ts = c.last + 1
	}
	c.last = ts
	return ts
}
