package ttime

import "fmt"

// AddTemporalCriteria translates a top-level `transaction` selector into
// predicates over transaction_start/transaction_end (spec.md §4.3). The
// transaction key never survives into the output (P4).
func AddTemporalCriteria(query map[string]any) (map[string]any, error) {
	out := cloneShallow(query)
	raw, has := out["transaction"]
	delete(out, "transaction")

	if !has {
		out["transaction_end"] = nil
		return out, nil
	}

	spec, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: transaction selector must be an object", ErrMalformedQuery)
	}

	if v, has := spec["current"]; has {
		b, isBool := v.(bool)
		if !isBool || !b {
			return nil, fmt.Errorf("%w: transaction.current must be true", ErrMalformedQuery)
		}
		out["transaction_end"] = nil
		return out, nil
	}

	if v, has := spec["inrange"]; has {
		arr, isArr := v.([]any)
		if !isArr || len(arr) != 2 {
			return nil, fmt.Errorf("%w: transaction.inrange must be a 2-element array", ErrMalformedQuery)
		}
		if arr[0] == nil && arr[1] == nil {
			return nil, fmt.Errorf("%w: transaction.inrange bounds cannot both be null", ErrMalformedQuery)
		}
		return addInRange(out, arr[0], arr[1]), nil
	}

	if v, has := spec["at"]; has {
		if v == nil {
			return nil, fmt.Errorf("%w: transaction.at cannot be null", ErrMalformedQuery)
		}
		return addInRange(out, v, v), nil
	}

	if v, has := spec["all"]; has {
		b, isBool := v.(bool)
		if !isBool || !b {
			return nil, fmt.Errorf("%w: transaction.all must be true", ErrMalformedQuery)
		}
		return out, nil
	}

	return nil, fmt.Errorf("%w: unrecognised transaction selector", ErrMalformedQuery)
}

// addInRange appends the half-open overlap predicate for [a, b], omitting
// whichever half has a null bound.
func addInRange(out map[string]any, a, b any) map[string]any {
	if a != nil {
		out["$or"] = []any{
			map[string]any{"transaction_end": map[string]any{"$gte": a}},
			map[string]any{"transaction_end": nil},
		}
	}
	if b != nil {
		out["transaction_start"] = map[string]any{"$lte": b}
	}
	return out
}

// AddCurrentVersionCriterion is the primitive writes use to normalise a
// selector before matching: it pins transaction_end to null and refuses a
// selector that explicitly names a non-null transaction_end, which would
// otherwise let an update or delete mutate a historical record (I5/I6).
func AddCurrentVersionCriterion(query map[string]any) (map[string]any, error) {
	if v, has := query["transaction_end"]; has && v != nil {
		return nil, fmt.Errorf("%w: selector pins a historical transaction_end", ErrInvariantViolation)
	}

	out := cloneShallow(query)
	delete(out, "transaction")
	out["transaction_end"] = nil
	return out, nil
}

// AddTemporalOrder replaces a sort key named `transaction` with
// `transaction_end`, preserving direction. Idempotent (P5): a second pass
// finds no `transaction` key left to rename.
func AddTemporalOrder(sort map[string]any) map[string]any {
	out := cloneShallow(sort)
	if v, has := out["transaction"]; has {
		delete(out, "transaction")
		out["transaction_end"] = v
	}
	return out
}
