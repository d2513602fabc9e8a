package ttime

import (
	"testing"

	. "github.com/fulldump/biff"
)

// P6: after modify_transaction_time_index, the first key entry is either
// transaction_end or the user explicitly opted out.
func TestModifyTransactionTimeIndex_Prepends(t *testing.T) {
	out := ModifyTransactionTimeIndex([]string{"name"})
	AssertEqual(out[0], "transaction_end")
	AssertEqual(out[1], "name")
}

func TestModifyTransactionTimeIndex_AlreadyPresentUnchanged(t *testing.T) {
	out := ModifyTransactionTimeIndex([]string{"transaction_end", "name"})
	AssertEqual(len(out), 2)
	AssertEqual(out[0], "transaction_end")
}

func TestModifyTransactionTimeIndex_RenamesTransactionEntry(t *testing.T) {
	out := ModifyTransactionTimeIndex([]string{"transaction", "name"})
	AssertEqual(out[0], "transaction_end")
	AssertEqual(out[1], "name")
}

func TestModifyTransactionTimeIndex_RenamesReversedTransactionEntry(t *testing.T) {
	out := ModifyTransactionTimeIndex([]string{"-transaction"})
	AssertEqual(out[0], "-transaction_end")
}

func TestModifyTransactionTimeIndex_OptOut(t *testing.T) {
	out := ModifyTransactionTimeIndex([]string{"!transaction", "name"})
	AssertEqual(len(out), 1)
	AssertEqual(out[0], "name")
}
