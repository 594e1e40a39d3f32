package execution

import (
	"github.com/tidwall/btree"
	"mit.edu/dsg/joindb/common"
	"mit.edu/dsg/joindb/storage"
)

type sortItem struct {
	key   common.Value
	seq   uint64 // insertion order, breaks ties so equal keys keep their input order
	tuple storage.Tuple
}

func sortItemLess(a, b sortItem) bool {
	cmp, err := a.key.Compare(b.key)
	common.Assert(err == nil, "sort keys of one column must share a type")
	if cmp != 0 {
		return cmp < 0
	}
	return a.seq < b.seq
}

// sortProducer sorts the tuples of its child in ascending order of one field.
// It is a blocking operator but uses lazy evaluation (sorts on the first ReadNext). The sorted run is kept in
// a B-tree until Close, so Rewind replays it without reading the child again.
type sortProducer struct {
	child    Executor
	keyField int

	// Runtime state
	tree    *btree.BTreeG[sortItem]
	iter    btree.IterG[sortItem]
	started bool
	hasMore bool
	ctx     *ExecutorContext
}

// NewSortExecutor creates an executor that produces the tuples of child ordered by keyField, NULLs first.
// Tuples with equal keys keep the order in which the child produced them.
func NewSortExecutor(child Executor, keyField int) *BufferedExecutor {
	common.Assert(keyField >= 0 && keyField < child.Schema().NumFields(), "sort key %d out of range", keyField)
	return NewBufferedExecutor(&sortProducer{child: child, keyField: keyField})
}

func (s *sortProducer) Schema() *storage.TupleDesc {
	return s.child.Schema()
}

func (s *sortProducer) Open(ctx *ExecutorContext) error {
	s.ctx = ctx
	s.tree = nil
	s.started = false
	return s.child.Open(ctx)
}

func (s *sortProducer) sortAllRows() error {
	tree := btree.NewBTreeG(sortItemLess)
	var seq uint64
	err := drain(s.child, func(t storage.Tuple) error {
		key, ok := t.GetField(s.keyField)
		if !ok {
			return common.NewGoDBError(common.QueryExecutionError, "sort key field %d is not set", s.keyField)
		}
		tree.Set(sortItem{key: key, seq: seq, tuple: t})
		seq++
		return nil
	})
	if err != nil {
		return err
	}
	s.tree = tree
	return nil
}

func (s *sortProducer) ReadNext() (storage.Tuple, bool, error) {
	if err := s.ctx.CheckAborted(); err != nil {
		return storage.Tuple{}, false, err
	}
	if s.tree == nil {
		if err := s.sortAllRows(); err != nil {
			return storage.Tuple{}, false, err
		}
	}
	if !s.started {
		s.iter = s.tree.Iter()
		s.hasMore = s.iter.First()
		s.started = true
	} else if s.hasMore {
		s.hasMore = s.iter.Next()
	}
	if !s.hasMore {
		return storage.Tuple{}, false, nil
	}
	return s.iter.Item().tuple, true, nil
}

func (s *sortProducer) Rewind() error {
	if err := s.ctx.CheckAborted(); err != nil {
		return err
	}
	s.releaseIter()
	if s.tree == nil {
		// Materialization never finished, so the child may be partway through its stream.
		return s.child.Rewind()
	}
	return nil
}

func (s *sortProducer) Close() error {
	s.releaseIter()
	s.tree = nil
	return s.child.Close()
}

func (s *sortProducer) releaseIter() {
	if s.started {
		s.iter.Release()
		s.started = false
	}
}
