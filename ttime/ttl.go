package ttime

// TTLQuery builds a disjunctive predicate matching an expiring field
// whether it was stored as a millisecond epoch (a plain number) or as a
// Timestamp value (spec.md §4.7). Pure function, no state: the caller
// supplies "now" so tests can pin it.
func TTLQuery(field string, nowMillis int64, ttlMillis int64, now Timestamp, ttlSeconds int64) map[string]any {
	cutoffMillis := nowMillis - ttlMillis
	cutoffTimestamp := newTimestamp(now.Sec()-ttlSeconds, 0)

	return map[string]any{
		"$or": []any{
			map[string]any{field: map[string]any{"$lt": cutoffMillis}},
			map[string]any{field: map[string]any{"$lt": cutoffTimestamp}},
		},
	}
}
