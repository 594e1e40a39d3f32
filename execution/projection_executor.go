package execution

import (
	"mit.edu/dsg/joindb/common"
	"mit.edu/dsg/joindb/storage"
)

// projectionProducer keeps a subset of its child's fields, in a given order. Placed above a join, it drops
// the duplicated key column of an equi-join.
type projectionProducer struct {
	child  Executor
	fields []int
	schema *storage.TupleDesc
}

// NewProjectionExecutor creates an executor whose tuples hold the given fields of child's tuples. A field may
// be listed more than once.
func NewProjectionExecutor(child Executor, fields ...int) *BufferedExecutor {
	childDesc := child.Schema()
	descs := make([]storage.FieldDesc, len(fields))
	for i, f := range fields {
		common.Assert(f >= 0 && f < childDesc.NumFields(), "projected field %d out of range for %s", f, childDesc)
		descs[i] = storage.FieldDesc{Name: childDesc.FieldName(f), Type: childDesc.FieldType(f)}
	}
	return NewBufferedExecutor(&projectionProducer{
		child:  child,
		fields: append([]int(nil), fields...),
		schema: storage.NewTupleDesc(descs...),
	})
}

func (p *projectionProducer) Schema() *storage.TupleDesc {
	return p.schema
}

func (p *projectionProducer) Open(ctx *ExecutorContext) error {
	return p.child.Open(ctx)
}

func (p *projectionProducer) ReadNext() (storage.Tuple, bool, error) {
	childTuple, ok, err := pull(p.child)
	if err != nil || !ok {
		return storage.Tuple{}, false, err
	}
	out := storage.NewTuple(p.schema)
	for i, f := range p.fields {
		v, set := childTuple.GetField(f)
		if !set {
			continue
		}
		if err := out.SetField(i, v); err != nil {
			return storage.Tuple{}, false, err
		}
	}
	return out, true, nil
}

func (p *projectionProducer) Rewind() error {
	return p.child.Rewind()
}

func (p *projectionProducer) Close() error {
	return p.child.Close()
}
