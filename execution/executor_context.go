package execution

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
	"mit.edu/dsg/joindb/transaction"
)

// DefaultOperatorMemory is the per-operator memory budget, in bytes, used when none is configured.
const DefaultOperatorMemory = 1 << 15

// ExecutorContext holds all the state and resources required for query execution.
// It is passed to every Executor when it is opened.
type ExecutorContext struct {
	txn              *transaction.TransactionContext
	operatorMemLimit int
	queryID          uuid.UUID
	logger           *zap.Logger
}

// NewExecutorContext creates a context for one query. txn may be nil for queries that run outside a
// transaction. operatorMemLimit is the number of bytes each memory-hungry operator may buffer; values <= 0
// select DefaultOperatorMemory.
func NewExecutorContext(txn *transaction.TransactionContext, operatorMemLimit int) *ExecutorContext {
	if operatorMemLimit <= 0 {
		operatorMemLimit = DefaultOperatorMemory
	}
	return &ExecutorContext{
		txn:              txn,
		operatorMemLimit: operatorMemLimit,
		queryID:          uuid.New(),
		logger:           zap.NewNop(),
	}
}

// WithLogger sets the logger used by the operators of this query. Every entry is tagged with the query id
// and, when present, the transaction id.
func (ctx *ExecutorContext) WithLogger(logger *zap.Logger) *ExecutorContext {
	fields := []zap.Field{zap.Stringer("query", ctx.queryID)}
	if ctx.txn != nil {
		fields = append(fields, zap.Uint64("txn", uint64(ctx.txn.ID())))
	}
	ctx.logger = logger.With(fields...)
	return ctx
}

func (ctx *ExecutorContext) GetTransaction() *transaction.TransactionContext {
	return ctx.txn
}

// MemoryBudget returns the number of bytes an operator may buffer.
func (ctx *ExecutorContext) MemoryBudget() int {
	return ctx.operatorMemLimit
}

// QueryID identifies the query in logs.
func (ctx *ExecutorContext) QueryID() uuid.UUID {
	return ctx.queryID
}

func (ctx *ExecutorContext) Logger() *zap.Logger {
	return ctx.logger
}

// CheckAborted fails with TransactionAbortedError once the query's transaction has been aborted.
// Queries without a transaction never abort.
func (ctx *ExecutorContext) CheckAborted() error {
	return ctx.txn.CheckAborted()
}
