package ttime

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/SierraSoftworks/connor"

	"github.com/fulldump/temporaldb/collection"
	"github.com/fulldump/temporaldb/oplog"
)

// MaxDocumentBytes bounds a single version record's encoded size, mirroring
// MongoDB's own per-document cap (16MiB) since this layer inherits that
// document model.
const MaxDocumentBytes = 16 * 1024 * 1024

// Executor is the update executor (C5): it owns the close-old-then-insert
// new flow for one temporal collection, the per-id head tracking that
// enforces I3, and oplog emission. One Executor is built per temporal
// collection and shared by every request that touches it — unlike the
// host's one-executor-per-connection model, this server keeps collections
// as long-lived singletons (database.Database.Collections), so the head
// index and id locks live here instead of being rebuilt per connection.
type Executor struct {
	Namespace string
	clock     Clock
	sink      oplog.Sink
	col       *collection.Collection

	idLocks sync.Map // map[string]*sync.Mutex
	heads   sync.Map // map[string]*collection.Row, current head row per logical id
}

// NewExecutor builds an Executor and rebuilds its head index from whatever
// is already on disk, so restarting the process does not lose I3
// enforcement.
func NewExecutor(namespace string, col *collection.Collection, clock Clock, sink oplog.Sink) *Executor {
	e := &Executor{
		Namespace: namespace,
		clock:     clock,
		sink:      sink,
		col:       col,
	}

	col.TraverseRows(func(row *collection.Row) bool {
		doc := map[string]any{}
		if err := json.Unmarshal(row.Payload, &doc); err != nil {
			return true
		}
		if doc["transaction_end"] != nil {
			return true
		}
		id, err := LogicalID(doc)
		if err != nil {
			return true
		}
		e.heads.Store(id, row)
		return true
	})

	return e
}

// Sink exposes the oplog sink so callers managing the executor's lifecycle
// (database.Database.Stop) can close it if it supports that.
func (e *Executor) Sink() oplog.Sink {
	return e.sink
}

func (e *Executor) lockFor(id string) *sync.Mutex {
	lock, _ := e.idLocks.LoadOrStore(id, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// Insert creates the first version of a logical document. Fails with
// ErrDuplicateKey if a current version already exists for the same id —
// scenario 2 of spec.md §8.
func (e *Executor) Insert(doc map[string]any) (map[string]any, error) {
	wrapped, err := Wrap(doc, nil, e.clock)
	if err != nil {
		return nil, err
	}

	id, err := LogicalID(wrapped)
	if err != nil {
		return nil, err
	}

	if err := checkDocumentSize(wrapped); err != nil {
		return nil, err
	}

	lock := e.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	if _, exists := e.heads.Load(id); exists {
		return nil, fmt.Errorf("%w: id %s already has a current version", ErrDuplicateKey, id)
	}

	row, err := e.col.Insert(wrapped)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateKey, err.Error())
	}

	e.heads.Store(id, row)
	e.emitInsert(wrapped)

	return wrapped, nil
}

// Find rewrites a read selector through AddTemporalCriteria and returns
// every matching version record, historical or current.
func (e *Executor) Find(query map[string]any) ([]map[string]any, error) {
	rewritten, err := AddTemporalCriteria(query)
	if err != nil {
		return nil, err
	}

	var (
		results []map[string]any
		matchErr error
	)
	e.col.TraverseRows(func(row *collection.Row) bool {
		doc := map[string]any{}
		if err := json.Unmarshal(row.Payload, &doc); err != nil {
			return true
		}
		ok, err := matchSelector(rewritten, doc)
		if err != nil {
			matchErr = fmt.Errorf("match: %w", err)
			return false
		}
		if ok {
			results = append(results, doc)
		}
		return true
	})
	if matchErr != nil {
		return nil, matchErr
	}

	return results, nil
}

// normalizeForMatch converts any Timestamp leaf value in a selector into
// float64, the numeric type json.Unmarshal always produces for a decoded
// document's fields. query.go and ttl.go build selectors with genuine
// Timestamp values so their own tests stay typed; this conversion happens
// only here, at the connor.Match boundary, where both sides of a numeric
// comparison need to agree in type.
func normalizeForMatch(v any) any {
	switch vv := v.(type) {
	case Timestamp:
		return float64(vv)
	case map[string]any:
		out := make(map[string]any, len(vv))
		for k, val := range vv {
			out[k] = normalizeForMatch(val)
		}
		return out
	case []any:
		out := make([]any, len(vv))
		for i, val := range vv {
			out[i] = normalizeForMatch(val)
		}
		return out
	default:
		return v
	}
}

// matchSelector matches doc against selector. "_id._id" is resolved
// directly against the nested _id field rather than handed to connor as a
// dotted path, since every other selector key this codebase builds is a
// flat top-level field name; everything but that one key still goes
// through connor.Match.
func matchSelector(selector map[string]any, doc map[string]any) (bool, error) {
	rest := selector
	if rawID, ok := selector["_id._id"]; ok {
		var actual any
		if idField, ok := doc["_id"].(map[string]any); ok {
			actual = idField["_id"]
		}
		if fmt.Sprintf("%v", actual) != fmt.Sprintf("%v", rawID) {
			return false, nil
		}
		rest = make(map[string]any, len(selector))
		for k, v := range selector {
			if k != "_id._id" {
				rest[k] = v
			}
		}
	}

	if len(rest) == 0 {
		return true, nil
	}

	normalized := normalizeForMatch(rest).(map[string]any)
	return connor.Match(normalized, doc)
}

type rowMatch struct {
	row *collection.Row
	doc map[string]any
}

func (e *Executor) matchCurrent(selector map[string]any) ([]rowMatch, error) {
	normalized, err := AddCurrentVersionCriterion(selector)
	if err != nil {
		return nil, err
	}

	var (
		matches  []rowMatch
		matchErr error
	)
	e.col.TraverseRows(func(row *collection.Row) bool {
		doc := map[string]any{}
		if err := json.Unmarshal(row.Payload, &doc); err != nil {
			return true
		}
		ok, err := matchSelector(normalized, doc)
		if err != nil {
			matchErr = fmt.Errorf("match: %w", err)
			return false
		}
		if ok {
			matches = append(matches, rowMatch{row: row, doc: doc})
		}
		return true
	})
	if matchErr != nil {
		return nil, matchErr
	}

	return matches, nil
}

// PatchOptions controls the edge behaviour of Patch beyond the ordinary
// close-then-succeed path.
type PatchOptions struct {
	// Upsert inserts a fresh document, built from selector's equality
	// predicates plus patch's fields, when selector matches nothing
	// (spec.md §4.5 "Upserts").
	Upsert bool
	// Multi marks the request as a multi-document update. Combined with
	// Upsert and a replacement-style patch (one that carries a literal
	// "_id"), the request is rejected with ErrInvalidOp: a multi-update
	// upsert only makes sense for an operator-style (partial) update,
	// since a replacement document can only ever seed one document.
	Multi bool
}

// Patch applies a merge patch (RFC7396, same semantics collection.Patch
// already persists with) to every current version matching selector,
// closing each predecessor and inserting its successor. The seen set
// guards against an update re-processing a record it just inserted; our
// traversal is a single snapshot taken before any mutation, which already
// rules that out structurally, but the explicit check keeps the executor's
// behaviour legible and correct even if a future caller replaces the
// traversal with something that yields mid-scan.
func (e *Executor) Patch(selector map[string]any, patch map[string]any, opts PatchOptions) (int, error) {
	matches, err := e.matchCurrent(selector)
	if err != nil {
		return 0, err
	}

	if len(matches) == 0 {
		if !opts.Upsert {
			return 0, nil
		}
		if opts.Multi && isReplacementStyle(patch) {
			return 0, fmt.Errorf("%w: multi-update upsert requires an operator-style update", ErrInvalidOp)
		}
		return e.upsert(selector, patch)
	}

	seen := map[*collection.Row]bool{}
	count := 0

	for _, m := range matches {
		if seen[m.row] {
			continue
		}
		seen[m.row] = true

		id, err := LogicalID(m.doc)
		if err != nil {
			return count, err
		}
		lock := e.lockFor(id)
		lock.Lock()
		n, err := e.closeAndSucceedIfStillHead(m, patch, id)
		lock.Unlock()
		if err != nil {
			return count, err
		}
		count += n
	}

	return count, nil
}

// isReplacementStyle reports whether patch looks like a full replacement
// document (one that names its own "_id") rather than a partial,
// operator-style update. This codebase has no separate replace verb —
// Patch always applies RFC7396 merge semantics — so a caller's patch
// naming "_id" is the only signal available that it intends to assert a
// document's whole identity rather than touch a few fields.
func isReplacementStyle(patch map[string]any) bool {
	_, has := patch["_id"]
	return has
}

// upsert builds an initial document from selector's equality predicates
// plus patch's fields, passes it through Insert (which itself calls Wrap),
// and inserts it as the first version of a logical document that selector
// failed to match (spec.md §4.5 "Upserts").
func (e *Executor) upsert(selector map[string]any, patch map[string]any) (int, error) {
	initial := initialDocFromSelector(selector)
	for k, v := range patch {
		if k == "_id" || k == "transaction_end" || k == "transaction_start" {
			continue
		}
		initial[k] = v
	}

	if _, err := e.Insert(initial); err != nil {
		return 0, err
	}

	return 1, nil
}

// initialDocFromSelector extracts the equality predicates a selector names
// (skipping operators, temporal criteria and anything that is not a plain
// equality match) to seed an upserted document's identity and fields.
func initialDocFromSelector(selector map[string]any) map[string]any {
	out := map[string]any{}
	for k, v := range selector {
		if strings.HasPrefix(k, "$") || k == "transaction" || k == "transaction_end" || k == "transaction_start" {
			continue
		}
		if _, isOperator := v.(map[string]any); isOperator {
			continue
		}
		if k == "_id._id" {
			k = "_id"
		}
		out[k] = v
	}
	return out
}

// closeAndSucceedIfStillHead re-validates, under the per-id lock, that m.row
// is still the current head for id before acting on it. matchCurrent takes
// its snapshot of "current" rows without holding any lock, so by the time a
// concurrent Patch/Remove call reaches here another call on the same id may
// already have closed m.row and installed a successor — acting on m.row
// regardless would re-close an already-historical row (violating I5) and
// leave two current-looking records behind (violating I3). If the head has
// moved on, this match is stale and is skipped rather than counted.
func (e *Executor) closeAndSucceedIfStillHead(m rowMatch, patch map[string]any, id string) (int, error) {
	head, ok := e.heads.Load(id)
	if !ok || head.(*collection.Row) != m.row {
		return 0, nil
	}
	return e.closeAndSucceed(m, patch, id)
}

func (e *Executor) closeAndSucceed(m rowMatch, patch map[string]any, id string) (int, error) {
	closed, err := Close(m.doc, e.clock)
	if err != nil {
		return 0, err
	}

	if err := e.col.Patch(m.row, map[string]any{"transaction_end": closed["transaction_end"]}); err != nil {
		return 0, fmt.Errorf("close predecessor: %w", err)
	}

	if patch == nil {
		// delete: no successor, and never a no-op, so always replicated
		e.emitClose(m.doc, closed)
		e.heads.Delete(id)
		return 1, nil
	}

	merged, changed, err := collection.ApplyMergePatchValue(userFields(m.doc), patch)
	if err != nil {
		return 0, fmt.Errorf("apply patch: %w", err)
	}
	mergedMap, _ := merged.(map[string]any)
	if mergedMap == nil {
		mergedMap = map[string]any{}
	}

	successor, err := Succeed(mergedMap, closed)
	if err != nil {
		return 0, err
	}

	if err := checkDocumentSize(successor); err != nil {
		return 0, err
	}

	row, err := e.col.Insert(successor)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrDuplicateKey, err.Error())
	}
	e.heads.Store(id, row)

	// a no-op modifier set still produces a closed predecessor and a
	// successor record, but the oplog pair is suppressed to avoid
	// replicating a "clear record" under empty rewrites (spec.md §4.5
	// point 4).
	if changed {
		e.emitClose(m.doc, closed)
		e.emitInsert(successor)
	}

	return 1, nil
}

// Remove closes every current version matching selector without inserting
// a successor (spec.md §4.5 "Deletes").
func (e *Executor) Remove(selector map[string]any) (int, error) {
	matches, err := e.matchCurrent(selector)
	if err != nil {
		return 0, err
	}

	seen := map[*collection.Row]bool{}
	count := 0

	for _, m := range matches {
		if seen[m.row] {
			continue
		}
		seen[m.row] = true

		id, err := LogicalID(m.doc)
		if err != nil {
			return count, err
		}
		lock := e.lockFor(id)
		lock.Lock()
		n, err := e.closeAndSucceedIfStillHead(m, nil, id)
		lock.Unlock()
		if err != nil {
			return count, err
		}
		count += n
	}

	return count, nil
}

// userFields strips the system fields (_id, transaction_end) from a decoded
// version record, leaving only what the caller's patch/replacement should
// be merged against.
func userFields(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == "_id" || k == "transaction_end" {
			continue
		}
		out[k] = v
	}
	return out
}

func checkDocumentSize(doc map[string]any) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	if len(payload) > MaxDocumentBytes {
		return fmt.Errorf("%w: %d bytes exceeds %d byte limit", ErrTooLarge, len(payload), MaxDocumentBytes)
	}
	return nil
}

func (e *Executor) emitInsert(doc map[string]any) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return
	}
	e.sink.Emit(oplog.Entry{
		Op: oplog.OpInsert,
		Ns: e.Namespace,
		O:  payload,
	})
}

func (e *Executor) emitClose(predecessor map[string]any, closed map[string]any) {
	idPattern, err := json.Marshal(predecessor["_id"])
	if err != nil {
		return
	}
	delta, err := json.Marshal(map[string]any{"transaction_end": closed["transaction_end"]})
	if err != nil {
		return
	}
	e.sink.Emit(oplog.Entry{
		Op: oplog.OpUpdate,
		Ns: e.Namespace,
		O:  delta,
		O2: idPattern,
	})
}
