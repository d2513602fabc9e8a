package ttime

import (
	"testing"

	. "github.com/fulldump/biff"
)

func TestTTLQuery_SpansBothEncodings(t *testing.T) {
	query := TTLQuery("expiresAt", 10_000, 5_000, newTimestamp(100, 0), 50)

	or, ok := query["$or"].([]any)
	AssertTrue(ok)
	AssertEqual(len(or), 2)
}
