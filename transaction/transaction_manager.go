package transaction

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
	"mit.edu/dsg/joindb/common"
)

// TransactionManager tracks the lifecycle of transactions. It is safe for concurrent use: transactions are
// begun and finished on their own goroutines while Abort may be called from any other.
type TransactionManager struct {
	// activeTxns maps TransactionIDs to their runtime context
	activeTxns *xsync.MapOf[common.TransactionID, *TransactionContext]
	nextTxnID  atomic.Uint64
}

// NewTransactionManager initializes the transaction manager.
func NewTransactionManager() *TransactionManager {
	tm := &TransactionManager{
		activeTxns: xsync.NewMapOf[common.TransactionID, *TransactionContext](),
	}
	tm.nextTxnID.Store(uint64(common.InvalidTransactionID))
	return tm
}

// Begin starts a new transaction and returns the initialized context.
func (tm *TransactionManager) Begin() *TransactionContext {
	tid := common.TransactionID(tm.nextTxnID.Add(1))
	txn := &TransactionContext{id: tid}
	tm.activeTxns.Store(tid, txn)
	return txn
}

// Commit completes a transaction. Committing an aborted transaction fails with TransactionAbortedError.
func (tm *TransactionManager) Commit(txn *TransactionContext) error {
	if err := txn.CheckAborted(); err != nil {
		return err
	}
	tm.activeTxns.Delete(txn.id)
	return nil
}

// Abort marks the transaction as aborted. Operators running under it observe the signal at their next
// blocking point and fail with TransactionAbortedError.
func (tm *TransactionManager) Abort(txn *TransactionContext) {
	txn.markAborted()
	tm.activeTxns.Delete(txn.id)
}

// AbortByID aborts an active transaction by id, typically from a goroutine other than the one running it.
// It returns false if no such transaction is active.
func (tm *TransactionManager) AbortByID(tid common.TransactionID) bool {
	txn, ok := tm.activeTxns.LoadAndDelete(tid)
	if !ok {
		return false
	}
	return txn.markAborted()
}

// ActiveTransactions returns a snapshot of currently active transaction IDs.
func (tm *TransactionManager) ActiveTransactions() []common.TransactionID {
	var activeIDs []common.TransactionID
	tm.activeTxns.Range(func(tid common.TransactionID, _ *TransactionContext) bool {
		activeIDs = append(activeIDs, tid)
		return true
	})
	return activeIDs
}
