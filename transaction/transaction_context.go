package transaction

import (
	"sync/atomic"

	"mit.edu/dsg/joindb/common"
)

// TransactionContext holds the runtime state of a single transaction.
//
// Query operators run synchronously on the transaction's goroutine, but the transaction may be aborted from
// anywhere (a deadlock detector, a client cancelling its session). The abort is recorded in an atomic flag
// that every blocking point of an operator polls through CheckAborted.
type TransactionContext struct {
	id      common.TransactionID
	aborted atomic.Bool
}

// ID returns the transaction id.
func (txn *TransactionContext) ID() common.TransactionID {
	return txn.id
}

// IsAborted reports whether the transaction has been aborted.
func (txn *TransactionContext) IsAborted() bool {
	return txn.aborted.Load()
}

// CheckAborted returns a TransactionAbortedError once the transaction has been aborted, and nil otherwise.
// A nil context never aborts, which lets operators run outside a transaction in tests and tools.
func (txn *TransactionContext) CheckAborted() error {
	if txn == nil || !txn.aborted.Load() {
		return nil
	}
	return common.NewGoDBError(common.TransactionAbortedError, "transaction %d was aborted", txn.id)
}

// markAborted flips the abort flag. It returns false if the transaction was already aborted.
func (txn *TransactionContext) markAborted() bool {
	return txn.aborted.CompareAndSwap(false, true)
}
