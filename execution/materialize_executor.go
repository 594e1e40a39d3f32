package execution

import (
	"mit.edu/dsg/joindb/storage"
)

// materializeProducer acts as a pipeline barrier for rescans.
// It stores every tuple its child produces during the first pass. Once the child is exhausted, Rewind
// replays the stored tuples instead of rewinding the child, which makes it a cheap inner child for the
// nested loop joins when the real child is expensive to rescan.
type materializeProducer struct {
	child Executor

	// Runtime state
	tuples       []storage.Tuple
	complete     bool // the child has been read to the end
	currentIndex int
	ctx          *ExecutorContext
}

// NewMaterializeExecutor creates an executor that caches the output of child.
func NewMaterializeExecutor(child Executor) *BufferedExecutor {
	return NewBufferedExecutor(&materializeProducer{child: child})
}

func (m *materializeProducer) Schema() *storage.TupleDesc {
	return m.child.Schema()
}

func (m *materializeProducer) Open(ctx *ExecutorContext) error {
	m.ctx = ctx
	m.tuples = m.tuples[:0]
	m.complete = false
	m.currentIndex = 0
	return m.child.Open(ctx)
}

func (m *materializeProducer) ReadNext() (storage.Tuple, bool, error) {
	if err := m.ctx.CheckAborted(); err != nil {
		return storage.Tuple{}, false, err
	}
	if m.currentIndex < len(m.tuples) {
		t := m.tuples[m.currentIndex]
		m.currentIndex++
		return t, true, nil
	}
	if m.complete {
		return storage.Tuple{}, false, nil
	}
	t, ok, err := pull(m.child)
	if err != nil {
		return storage.Tuple{}, false, err
	}
	if !ok {
		m.complete = true
		return storage.Tuple{}, false, nil
	}
	m.tuples = append(m.tuples, t)
	m.currentIndex++
	return t, true, nil
}

func (m *materializeProducer) Rewind() error {
	if err := m.ctx.CheckAborted(); err != nil {
		return err
	}
	m.currentIndex = 0
	if m.complete {
		return nil
	}
	// A partial cache would skip the tuples the child has not produced yet, so start over.
	m.tuples = m.tuples[:0]
	return m.child.Rewind()
}

func (m *materializeProducer) Close() error {
	m.tuples = nil
	m.complete = false
	return m.child.Close()
}
