package execution

import (
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"mit.edu/dsg/joindb/common"
	"mit.edu/dsg/joindb/planner"
	"mit.edu/dsg/joindb/storage"
)

// JoinAlgorithm selects how a JoinExecutor computes its result. Every algorithm produces the same multiset
// of tuples; only the output order and the amount of work differ.
type JoinAlgorithm int

const (
	// SimpleNestedLoop rescans the inner child once per outer tuple. Output is in outer-major order.
	SimpleNestedLoop JoinAlgorithm = iota
	// PageNestedLoop buffers a page worth of outer tuples and rescans the inner child once per page.
	PageNestedLoop
	// BlockNestedLoop buffers as many outer tuples as the operator memory budget allows.
	BlockNestedLoop
	// SortMergeJoin merges two children already sorted on their join keys. Equality predicates only.
	SortMergeJoin
	// HashJoin builds a hash table on the smaller child and probes it with the other. Equality predicates only.
	HashJoin
)

// equiJoinAlgorithms can only evaluate equality predicates.
var equiJoinAlgorithms = mapset.NewSet(SortMergeJoin, HashJoin)

func (a JoinAlgorithm) String() string {
	switch a {
	case SimpleNestedLoop:
		return "snl"
	case PageNestedLoop:
		return "pnl"
	case BlockNestedLoop:
		return "bnl"
	case SortMergeJoin:
		return "smj"
	case HashJoin:
		return "hj"
	}
	return "unknown"
}

// ParseJoinAlgorithm maps the short names printed by JoinAlgorithm.String back to algorithms.
func ParseJoinAlgorithm(name string) (JoinAlgorithm, error) {
	for _, a := range []JoinAlgorithm{SimpleNestedLoop, PageNestedLoop, BlockNestedLoop, SortMergeJoin, HashJoin} {
		if strings.EqualFold(name, a.String()) {
			return a, nil
		}
	}
	return 0, common.NewGoDBError(common.QueryExecutionError, "unknown join algorithm %q", name)
}

// joinStrategy is the private state machine of one join algorithm. A strategy is created on Open and owns
// everything it buffers; the children belong to the joinCore.
type joinStrategy interface {
	// step produces the next joined tuple, or ok == false at the end of the result.
	step() (t storage.Tuple, ok bool, err error)
	// reset discards all progress. It is called after both children have been rewound.
	reset()
	// release drops buffered state on Close.
	release()
}

// JoinExecutor joins an outer and an inner child on a JoinPredicate. Each output tuple is the concatenation
// of all outer fields followed by all inner fields; duplicate join columns are kept.
type JoinExecutor struct {
	*BufferedExecutor
	core *joinCore
}

// NewJoinExecutor creates a join of outer and inner. The children are not opened until the join is.
func NewJoinExecutor(pred *planner.JoinPredicate, outer, inner Executor) *JoinExecutor {
	core := &joinCore{
		pred:   pred,
		outer:  outer,
		inner:  inner,
		schema: storage.Combine(outer.Schema(), inner.Schema()),
		hash:   murmurHash,
	}
	return &JoinExecutor{
		BufferedExecutor: NewBufferedExecutor(core),
		core:             core,
	}
}

// SetJoinAlgorithm selects the algorithm used by the next Open. It fails while the join is open.
func (e *JoinExecutor) SetJoinAlgorithm(alg JoinAlgorithm) error {
	if e.IsOpen() {
		return common.NewGoDBError(common.QueryExecutionError, "cannot change join algorithm while the join is open")
	}
	if alg < SimpleNestedLoop || alg > HashJoin {
		return common.NewGoDBError(common.QueryExecutionError, "unknown join algorithm %d", alg)
	}
	e.core.algorithm = alg
	return nil
}

// JoinAlgorithm returns the selected algorithm.
func (e *JoinExecutor) JoinAlgorithm() JoinAlgorithm {
	return e.core.algorithm
}

// Predicate returns the join predicate.
func (e *JoinExecutor) Predicate() *planner.JoinPredicate {
	return e.core.pred
}

// MatchCount returns the number of predicate evaluations that succeeded since the last Open.
func (e *JoinExecutor) MatchCount() int {
	return e.core.matches
}

// ComparisonCount returns the number of predicate evaluations since the last Open.
func (e *JoinExecutor) ComparisonCount() int {
	return e.core.comparisons
}

// RescanCount returns the number of times the algorithm restarted a child's scan since the last Open.
// Rewinds requested by the consumer of the join are not included.
func (e *JoinExecutor) RescanCount() int {
	return e.core.rescans
}

// BufferedBytes returns the largest number of tuple bytes the algorithm held in memory at once since the
// last Open. An external spill strategy compares it with the context's MemoryBudget.
func (e *JoinExecutor) BufferedBytes() int {
	return e.core.peakBuffered
}

// joinCore is the TupleProducer behind a JoinExecutor.
type joinCore struct {
	pred         *planner.JoinPredicate
	outer, inner Executor
	schema       *storage.TupleDesc
	algorithm    JoinAlgorithm
	hash         HashFunc // key hash used by the hash join

	// Runtime state
	strategy     joinStrategy
	ctx          *ExecutorContext
	logger       *zap.Logger
	matches      int
	comparisons  int
	rescans      int
	peakBuffered int
	overBudget   bool
	abortErr     error // set once an abort has torn down the children
}

func (j *joinCore) Schema() *storage.TupleDesc {
	return j.schema
}

func (j *joinCore) Open(ctx *ExecutorContext) error {
	if err := ctx.CheckAborted(); err != nil {
		return err
	}
	if err := j.pred.Validate(j.outer.Schema(), j.inner.Schema()); err != nil {
		return err
	}
	if equiJoinAlgorithms.Contains(j.algorithm) && !j.pred.IsEquality() {
		return common.NewGoDBError(common.QueryExecutionError,
			"%s join requires an equality predicate, got %s", j.algorithm, j.pred)
	}

	j.ctx = ctx
	j.logger = ctx.Logger().With(zap.Stringer("algorithm", j.algorithm), zap.Stringer("predicate", j.pred))
	j.matches, j.comparisons, j.rescans, j.peakBuffered = 0, 0, 0, 0
	j.overBudget = false
	j.abortErr = nil

	if err := j.outer.Open(ctx); err != nil {
		return openFailure(err, "outer")
	}
	if err := j.inner.Open(ctx); err != nil {
		if cerr := j.outer.Close(); cerr != nil {
			j.logger.Warn("closing outer child after failed open", zap.Error(cerr))
		}
		return openFailure(err, "inner")
	}

	j.strategy = j.newStrategy()
	j.logger.Debug("join opened", zap.Stringer("schema", j.schema))
	return nil
}

// openFailure reports a child that failed to open as a query execution error. Aborts pass through
// unchanged so the executor can tell them apart from usage errors.
func openFailure(err error, side string) error {
	if errors.Is(err, common.ErrTransactionAborted) {
		return err
	}
	return common.WrapGoDBError(err, common.QueryExecutionError, "opening %s child of join", side)
}

func (j *joinCore) newStrategy() joinStrategy {
	switch j.algorithm {
	case SimpleNestedLoop:
		return newSimpleNestedLoop(j)
	case PageNestedLoop:
		return newBlockNestedLoop(j, common.PageSize)
	case BlockNestedLoop:
		return newBlockNestedLoop(j, j.ctx.MemoryBudget())
	case SortMergeJoin:
		return newSortMergeJoin(j)
	case HashJoin:
		return newHashJoin(j, j.hash)
	}
	panic("unknown join algorithm")
}

func (j *joinCore) ReadNext() (storage.Tuple, bool, error) {
	if j.abortErr != nil {
		return storage.Tuple{}, false, j.abortErr
	}
	if err := j.ctx.CheckAborted(); err != nil {
		j.abandon(err)
		return storage.Tuple{}, false, err
	}
	t, ok, err := j.strategy.step()
	if err != nil && errors.Is(err, common.ErrTransactionAborted) {
		j.abandon(err)
	}
	return t, ok, err
}

// abandon stops the join after its transaction aborted: buffers are dropped and both children are closed
// right away instead of waiting for the consumer's Close.
func (j *joinCore) abandon(err error) {
	j.abortErr = err
	j.logger.Debug("transaction aborted, closing join children", zap.Error(err))
	// closeChildren logs its own failures; the abort is the error the caller sees
	_ = j.closeChildren()
}

func (j *joinCore) Rewind() error {
	if j.abortErr != nil {
		return j.abortErr
	}
	if err := j.outer.Rewind(); err != nil {
		return err
	}
	if err := j.inner.Rewind(); err != nil {
		return err
	}
	j.strategy.reset()
	return nil
}

// Close closes outer then inner. Both are always attempted; the first failure is returned.
func (j *joinCore) Close() error {
	err := j.closeChildren()
	j.logger.Debug("join closed",
		zap.Int("matches", j.matches),
		zap.Int("comparisons", j.comparisons),
		zap.Int("rescans", j.rescans),
		zap.Int("peakBufferedBytes", j.peakBuffered))
	return err
}

// closeChildren releases the strategy and closes both children. Children that are already closed are
// skipped by their own Close, so this is safe to call twice.
func (j *joinCore) closeChildren() error {
	if j.strategy != nil {
		j.strategy.release()
		j.strategy = nil
	}
	err := j.outer.Close()
	if err != nil {
		j.logger.Warn("closing outer child", zap.Error(err))
	}
	if innerErr := j.inner.Close(); innerErr != nil {
		j.logger.Warn("closing inner child", zap.Error(innerErr))
		if err == nil {
			err = innerErr
		}
	}
	return err
}

// test evaluates the predicate on one (outer, inner) pair and updates the counters.
func (j *joinCore) test(outer, inner storage.Tuple) (bool, error) {
	j.comparisons++
	ok, err := j.pred.Filter(outer, inner)
	if err != nil {
		return false, err
	}
	if ok {
		j.matches++
	}
	return ok, nil
}

func (j *joinCore) concat(outer, inner storage.Tuple) storage.Tuple {
	return storage.Concat(j.schema, outer, inner)
}

// rescan restarts a child as part of the algorithm.
func (j *joinCore) rescan(child Executor) error {
	j.rescans++
	return child.Rewind()
}

// noteBuffered records the current footprint of an algorithm's buffers. Spilling is not implemented here;
// crossing the memory budget is logged once per Open.
func (j *joinCore) noteBuffered(bytes int) {
	if bytes > j.peakBuffered {
		j.peakBuffered = bytes
	}
	if !j.overBudget && bytes > j.ctx.MemoryBudget() {
		j.overBudget = true
		j.logger.Warn("join buffers exceed operator memory budget",
			zap.Int("bufferedBytes", bytes),
			zap.Int("budget", j.ctx.MemoryBudget()))
	}
}
