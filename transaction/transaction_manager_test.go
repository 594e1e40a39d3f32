package transaction

import (
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mit.edu/dsg/joindb/common"
)

func TestTransactionLifecycle(t *testing.T) {
	tm := NewTransactionManager()
	t1 := tm.Begin()
	t2 := tm.Begin()
	assert.NotEqual(t, common.InvalidTransactionID, t1.ID())
	assert.NotEqual(t, t1.ID(), t2.ID())
	assert.ElementsMatch(t, []common.TransactionID{t1.ID(), t2.ID()}, tm.ActiveTransactions())

	require.NoError(t, tm.Commit(t1))
	assert.Equal(t, []common.TransactionID{t2.ID()}, tm.ActiveTransactions())

	tm.Abort(t2)
	assert.Empty(t, tm.ActiveTransactions())
	assert.True(t, errors.Is(t2.CheckAborted(), common.ErrTransactionAborted))
	assert.True(t, errors.Is(tm.Commit(t2), common.ErrTransactionAborted))
}

func TestNilContextNeverAborts(t *testing.T) {
	var txn *TransactionContext
	assert.NoError(t, txn.CheckAborted())
}

func TestAbortByIDConcurrently(t *testing.T) {
	tm := NewTransactionManager()
	txns := make([]*TransactionContext, 16)
	for i := range txns {
		txns[i] = tm.Begin()
	}

	var wg sync.WaitGroup
	for _, txn := range txns {
		wg.Add(1)
		go func(tid common.TransactionID) {
			defer wg.Done()
			tm.AbortByID(tid)
		}(txn.ID())
	}
	wg.Wait()

	for _, txn := range txns {
		assert.True(t, txn.IsAborted())
	}
	assert.Empty(t, tm.ActiveTransactions())
	assert.False(t, tm.AbortByID(txns[0].ID()), "already aborted")
}
