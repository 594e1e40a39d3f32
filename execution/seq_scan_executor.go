package execution

import (
	"mit.edu/dsg/joindb/storage"
)

// seqScan implements a sequential scan over an in-memory relation.
type seqScan struct {
	table *storage.MemTable

	// Runtime state
	cursor int
	ctx    *ExecutorContext
}

// NewSeqScanExecutor creates an executor that produces the tuples of table in insertion order.
func NewSeqScanExecutor(table *storage.MemTable) *BufferedExecutor {
	return NewBufferedExecutor(&seqScan{table: table})
}

func (s *seqScan) Schema() *storage.TupleDesc {
	return s.table.Desc()
}

func (s *seqScan) Open(ctx *ExecutorContext) error {
	if err := ctx.CheckAborted(); err != nil {
		return err
	}
	s.ctx = ctx
	s.cursor = 0
	return nil
}

func (s *seqScan) ReadNext() (storage.Tuple, bool, error) {
	if err := s.ctx.CheckAborted(); err != nil {
		return storage.Tuple{}, false, err
	}
	if s.cursor >= s.table.Len() {
		return storage.Tuple{}, false, nil
	}
	t := s.table.Get(s.cursor)
	s.cursor++
	return t, true, nil
}

func (s *seqScan) Rewind() error {
	if err := s.ctx.CheckAborted(); err != nil {
		return err
	}
	s.cursor = 0
	return nil
}

func (s *seqScan) Close() error {
	s.ctx = nil
	return nil
}
