package execution

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mit.edu/dsg/joindb/common"
	"mit.edu/dsg/joindb/planner"
	"mit.edu/dsg/joindb/storage"
)

// setupTestTable creates a table with columns (id int, name string) and populates it with 'n' tuples.
func setupTestTable(t *testing.T, n int) *storage.MemTable {
	desc := storage.NewTupleDesc(
		storage.FieldDesc{Name: "id", Type: common.IntType},
		storage.FieldDesc{Name: "name", Type: common.StringType},
	)
	table := storage.NewMemTable(1, desc)
	for i := 0; i < n; i++ {
		_, err := table.Insert(common.NewIntValue(int64(i)), common.NewStringValue(fmt.Sprintf("row-%d", i)))
		require.NoError(t, err)
	}
	return table
}

// intTable creates an all-integer relation with one tuple per row.
func intTable(t *testing.T, oid common.ObjectID, width int, rows ...[]int64) *storage.MemTable {
	types := make([]common.Type, width)
	for i := range types {
		types[i] = common.IntType
	}
	table := storage.NewMemTable(oid, storage.NewTupleDescFromTypes(types...))
	for _, row := range rows {
		_, err := table.InsertInts(row...)
		require.NoError(t, err)
	}
	return table
}

// collect drains an open executor and returns the string form of every tuple.
func collect(t *testing.T, e Executor) []string {
	var out []string
	require.NoError(t, drain(e, func(tup storage.Tuple) error {
		out = append(out, tup.String())
		return nil
	}))
	return out
}

func TestBasicExecutor_SeqScan(t *testing.T) {
	table := setupTestTable(t, 10)
	scanExec := NewSeqScanExecutor(table)
	ctx := NewExecutorContext(nil, 0)

	require.NoError(t, scanExec.Open(ctx))

	count1 := 0
	for {
		ok, err := scanExec.HasNext()
		require.NoError(t, err)
		if !ok {
			break
		}
		tup, err := scanExec.Next()
		require.NoError(t, err)

		// Verify ID Column (Index 0)
		valID, set := tup.GetField(0)
		require.True(t, set)
		assert.Equal(t, int64(count1), valID.IntValue(), "Pass 1: Tuple ID mismatch at row %d", count1)

		// Verify Name Column (Index 1)
		valName, _ := tup.GetField(1)
		assert.Equal(t, fmt.Sprintf("row-%d", count1), valName.StringValue(), "Pass 1: Tuple Name mismatch at row %d", count1)

		require.NotNil(t, tup.RecordID())
		assert.Equal(t, table.Oid(), tup.RecordID().Oid)
		count1++
	}
	assert.Equal(t, 10, count1, "Pass 1: SeqScan failed to return all tuples")

	// Rewind should reset the cursor and scan again
	require.NoError(t, scanExec.Rewind())
	assert.Len(t, collect(t, scanExec), 10, "Pass 2: rewound SeqScan failed to return all tuples")
	require.NoError(t, scanExec.Close())
}

func TestBasicExecutor_SeqScanTuplesAreCopies(t *testing.T) {
	table := intTable(t, 1, 2, []int64{1, 2})
	scanExec := NewSeqScanExecutor(table)
	require.NoError(t, scanExec.Open(NewExecutorContext(nil, 0)))

	tup, err := scanExec.Next()
	require.NoError(t, err)
	require.NoError(t, tup.SetField(0, common.NewIntValue(7)))

	require.NoError(t, scanExec.Rewind())
	assert.Equal(t, []string{"1\t2\n"}, collect(t, scanExec), "writes to a scanned tuple do not reach the table")
	require.NoError(t, scanExec.Close())
}

func TestBasicExecutor_OpenRequiresContext(t *testing.T) {
	table := intTable(t, 1, 1, []int64{1})
	scanExec := NewSeqScanExecutor(table)
	err := scanExec.Open(nil)
	assert.True(t, errors.Is(err, common.ErrQueryExecution), "got %v", err)
	assert.False(t, scanExec.IsOpen())

	join := NewJoinExecutor(planner.NewJoinPredicate(0, planner.Equal, 0), NewSeqScanExecutor(table), scanExec)
	err = join.Open(nil)
	assert.True(t, errors.Is(err, common.ErrQueryExecution), "got %v", err)
	assert.False(t, join.IsOpen())

	// a valid context still opens the executor afterwards
	require.NoError(t, scanExec.Open(NewExecutorContext(nil, 0)))
	assert.Equal(t, []string{"1\n"}, collect(t, scanExec))
	require.NoError(t, scanExec.Close())
}

func TestBasicExecutor_Protocol(t *testing.T) {
	table := intTable(t, 1, 1, []int64{1})
	scanExec := NewSeqScanExecutor(table)
	ctx := NewExecutorContext(nil, 0)

	assert.Equal(t, "(c0:int)", scanExec.Schema().String(), "schema is available before Open")

	_, err := scanExec.HasNext()
	assert.True(t, errors.Is(err, common.ErrQueryExecution), "HasNext before Open")
	_, err = scanExec.Next()
	assert.True(t, errors.Is(err, common.ErrQueryExecution), "Next before Open")
	assert.True(t, errors.Is(scanExec.Rewind(), common.ErrQueryExecution), "Rewind before Open")
	assert.NoError(t, scanExec.Close(), "closing an unopened executor is a no-op")

	require.NoError(t, scanExec.Open(ctx))
	assert.True(t, errors.Is(scanExec.Open(ctx), common.ErrQueryExecution), "double Open")

	// HasNext is idempotent and does not consume
	for i := 0; i < 3; i++ {
		ok, err := scanExec.HasNext()
		require.NoError(t, err)
		assert.True(t, ok)
	}
	tup, err := scanExec.Next()
	require.NoError(t, err)
	assert.Equal(t, "1\n", tup.String())

	ok, err := scanExec.HasNext()
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = scanExec.Next()
	assert.True(t, errors.Is(err, common.ErrIterationExhausted))
	_, err = scanExec.Next()
	assert.True(t, errors.Is(err, common.ErrIterationExhausted), "exhaustion is stable")

	require.NoError(t, scanExec.Close())
	_, err = scanExec.HasNext()
	assert.True(t, errors.Is(err, common.ErrQueryExecution), "HasNext after Close")

	// An executor can be opened again after Close
	require.NoError(t, scanExec.Open(ctx))
	assert.Equal(t, []string{"1\n"}, collect(t, scanExec))
	require.NoError(t, scanExec.Close())
}

// failingProducer produces failAfter tuples and then fails. It records how its lifecycle methods were used.
type failingProducer struct {
	desc      *storage.TupleDesc
	failAfter int
	openErr   error
	closeErr  error

	produced int
	opened   bool
	closed   int
}

var errBrokenChild = errors.New("broken child")

func newFailingProducer(failAfter int) *failingProducer {
	return &failingProducer{desc: storage.NewTupleDescFromTypes(common.IntType), failAfter: failAfter}
}

func (f *failingProducer) Schema() *storage.TupleDesc { return f.desc }

func (f *failingProducer) Open(*ExecutorContext) error {
	if f.openErr != nil {
		return f.openErr
	}
	f.opened = true
	f.produced = 0
	return nil
}

func (f *failingProducer) ReadNext() (storage.Tuple, bool, error) {
	if f.produced >= f.failAfter {
		return storage.Tuple{}, false, errBrokenChild
	}
	f.produced++
	tup, err := storage.FromValues(f.desc, common.NewIntValue(int64(f.produced)))
	return tup, err == nil, err
}

func (f *failingProducer) Rewind() error {
	f.produced = 0
	return nil
}

func (f *failingProducer) Close() error {
	f.closed++
	return f.closeErr
}

func TestBasicExecutor_StickyError(t *testing.T) {
	producer := newFailingProducer(1)
	e := NewBufferedExecutor(producer)
	require.NoError(t, e.Open(NewExecutorContext(nil, 0)))

	_, err := e.Next()
	require.NoError(t, err)

	_, err = e.HasNext()
	assert.ErrorIs(t, err, errBrokenChild)
	_, err = e.Next()
	assert.ErrorIs(t, err, errBrokenChild, "the failure is reported again, not turned into end of stream")

	require.NoError(t, e.Rewind())
	ok, err := e.HasNext()
	require.NoError(t, err)
	assert.True(t, ok, "Rewind clears the error")
	require.NoError(t, e.Close())
	assert.Equal(t, 1, producer.closed)
}

func TestBasicExecutor_Projection(t *testing.T) {
	table := setupTestTable(t, 5)

	// Project: [name, id, id]
	projExec := NewProjectionExecutor(NewSeqScanExecutor(table), 1, 0, 0)
	assert.Equal(t, "(name:string, id:int, id:int)", projExec.Schema().String())
	require.NoError(t, projExec.Open(NewExecutorContext(nil, 0)))

	count := 0
	require.NoError(t, drain(projExec, func(tup storage.Tuple) error {
		require.Equal(t, 3, tup.NumFields())
		v0, _ := tup.GetField(0)
		assert.Contains(t, v0.StringValue(), "row-")
		v1, _ := tup.GetField(1)
		v2, _ := tup.GetField(2)
		assert.Equal(t, v1.IntValue(), v2.IntValue())
		assert.Nil(t, tup.RecordID())
		count++
		return nil
	}))
	assert.Equal(t, 5, count)
	require.NoError(t, projExec.Close())
}

func TestBasicExecutor_Limit(t *testing.T) {
	table := setupTestTable(t, 10)
	ctx := NewExecutorContext(nil, 0)

	limitExec := NewLimitExecutor(NewSeqScanExecutor(table), 5)
	require.NoError(t, limitExec.Open(ctx))
	assert.Len(t, collect(t, limitExec), 5)
	require.NoError(t, limitExec.Close())

	limitExec0 := NewLimitExecutor(NewSeqScanExecutor(table), 0)
	require.NoError(t, limitExec0.Open(ctx))
	ok, err := limitExec0.HasNext()
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, limitExec0.Close())

	limitExecMax := NewLimitExecutor(NewSeqScanExecutor(table), 100)
	require.NoError(t, limitExecMax.Open(ctx))
	assert.Len(t, collect(t, limitExecMax), 10)
	require.NoError(t, limitExecMax.Close())
}

func TestBasicExecutor_Restart(t *testing.T) {
	table := setupTestTable(t, 10)
	limitExec := NewLimitExecutor(NewSeqScanExecutor(table), 2)
	ctx := NewExecutorContext(nil, 0)

	// Run 1
	require.NoError(t, limitExec.Open(ctx))
	first := collect(t, limitExec)
	assert.Len(t, first, 2)

	// Run 2 after Rewind
	require.NoError(t, limitExec.Rewind())
	assert.Equal(t, first, collect(t, limitExec))
	require.NoError(t, limitExec.Close())
}

func TestBasicExecutor_Sort(t *testing.T) {
	table := intTable(t, 1, 2, []int64{3, 0}, []int64{1, 1}, []int64{3, 2}, []int64{2, 3}, []int64{1, 4})
	sortExec := NewSortExecutor(NewSeqScanExecutor(table), 0)
	require.NoError(t, sortExec.Open(NewExecutorContext(nil, 0)))

	expected := []string{"1\t1\n", "1\t4\n", "2\t3\n", "3\t0\n", "3\t2\n"}
	assert.Equal(t, expected, collect(t, sortExec), "ascending, ties keep input order")

	require.NoError(t, sortExec.Rewind())
	assert.Equal(t, expected, collect(t, sortExec))
	require.NoError(t, sortExec.Close())
}

func TestBasicExecutor_SortNullsFirst(t *testing.T) {
	table := storage.NewMemTable(1, storage.NewTupleDescFromTypes(common.IntType))
	for _, v := range []common.Value{common.NewIntValue(2), common.NewNullInt(), common.NewIntValue(1)} {
		_, err := table.Insert(v)
		require.NoError(t, err)
	}
	sortExec := NewSortExecutor(NewSeqScanExecutor(table), 0)
	require.NoError(t, sortExec.Open(NewExecutorContext(nil, 0)))
	assert.Equal(t, []string{"NULL\n", "1\n", "2\n"}, collect(t, sortExec))
	require.NoError(t, sortExec.Close())
}

// countingProducer counts how often its child is rewound.
type countingProducer struct {
	TupleProducer
	rewinds int
}

func (c *countingProducer) Rewind() error {
	c.rewinds++
	return c.TupleProducer.Rewind()
}

func TestBasicExecutor_Materialize(t *testing.T) {
	table := setupTestTable(t, 4)
	child := &countingProducer{TupleProducer: &seqScan{table: table}}
	matExec := NewMaterializeExecutor(NewBufferedExecutor(child))
	require.NoError(t, matExec.Open(NewExecutorContext(nil, 0)))

	first := collect(t, matExec)
	require.Len(t, first, 4)
	for i := 0; i < 3; i++ {
		require.NoError(t, matExec.Rewind())
		assert.Equal(t, first, collect(t, matExec))
	}
	assert.Equal(t, 0, child.rewinds, "a fully read child is never rescanned")
	require.NoError(t, matExec.Close())
}

func TestBasicExecutor_MaterializePartialRewind(t *testing.T) {
	table := setupTestTable(t, 4)
	child := &countingProducer{TupleProducer: &seqScan{table: table}}
	matExec := NewMaterializeExecutor(NewBufferedExecutor(child))
	require.NoError(t, matExec.Open(NewExecutorContext(nil, 0)))

	_, err := matExec.Next()
	require.NoError(t, err)
	require.NoError(t, matExec.Rewind())
	assert.Equal(t, 1, child.rewinds)
	assert.Len(t, collect(t, matExec), 4)
	require.NoError(t, matExec.Close())
}

func TestBasicExecutor_BasicPipeline(t *testing.T) {
	table := setupTestTable(t, 20)

	// 1. Sort by name, which orders lexicographically: row-0, row-1, row-10, row-11, ...
	sortExec := NewSortExecutor(NewSeqScanExecutor(table), 1)

	// 2. Project: (id)
	projExec := NewProjectionExecutor(sortExec, 0)

	// 3. Limit: 4
	limitExec := NewLimitExecutor(projExec, 4)

	require.NoError(t, limitExec.Open(NewExecutorContext(nil, 0)))
	assert.Equal(t, []string{"0\n", "1\n", "10\n", "11\n"}, collect(t, limitExec))
	require.NoError(t, limitExec.Close())
}
