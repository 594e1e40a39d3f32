package execution

import (
	"mit.edu/dsg/joindb/common"
	"mit.edu/dsg/joindb/storage"
)

// limitProducer limits the number of tuples returned by the child executor.
type limitProducer struct {
	child Executor
	limit int

	numEmitted int
}

// NewLimitExecutor creates an executor that produces at most limit tuples of child.
func NewLimitExecutor(child Executor, limit int) *BufferedExecutor {
	common.Assert(limit >= 0, "limit must not be negative")
	return NewBufferedExecutor(&limitProducer{child: child, limit: limit})
}

func (l *limitProducer) Schema() *storage.TupleDesc {
	return l.child.Schema()
}

func (l *limitProducer) Open(ctx *ExecutorContext) error {
	l.numEmitted = 0
	return l.child.Open(ctx)
}

func (l *limitProducer) ReadNext() (storage.Tuple, bool, error) {
	if l.numEmitted >= l.limit {
		return storage.Tuple{}, false, nil
	}
	t, ok, err := pull(l.child)
	if err != nil || !ok {
		return storage.Tuple{}, false, err
	}
	l.numEmitted++
	return t, true, nil
}

func (l *limitProducer) Rewind() error {
	l.numEmitted = 0
	return l.child.Rewind()
}

func (l *limitProducer) Close() error {
	return l.child.Close()
}
