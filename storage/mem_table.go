package storage

import (
	"mit.edu/dsg/joindb/common"
)

// MemTable is an in-memory relation: a schema and an append-only list of tuples. Every inserted tuple is
// assigned a record id (page number and slot) as if it were laid out in fixed-size heap pages, so scans
// over a MemTable produce tuples with valid locators like a table heap would.
type MemTable struct {
	oid    common.ObjectID
	desc   *TupleDesc
	tuples []Tuple

	tuplesPerPage int
}

// NewMemTable creates an empty relation with the given object id and schema.
func NewMemTable(oid common.ObjectID, desc *TupleDesc) *MemTable {
	common.Assert(oid != common.InvalidObjectID, "memtable needs a valid object id")
	return &MemTable{
		oid:           oid,
		desc:          desc,
		tuplesPerPage: max(1, common.PageSize/desc.BytesPerTuple()),
	}
}

// Oid returns the object id of the relation.
func (mt *MemTable) Oid() common.ObjectID {
	return mt.oid
}

// Desc returns the schema of the relation.
func (mt *MemTable) Desc() *TupleDesc {
	return mt.desc
}

// Len returns the number of tuples in the relation.
func (mt *MemTable) Len() int {
	return len(mt.tuples)
}

// Insert appends a row built from values and returns its record id.
func (mt *MemTable) Insert(values ...common.Value) (common.RecordID, error) {
	t, err := FromValues(mt.desc, values...)
	if err != nil {
		return common.RecordID{}, err
	}
	n := len(mt.tuples)
	rid := common.RecordID{
		PageID: common.PageID{Oid: mt.oid, PageNum: int32(n / mt.tuplesPerPage)},
		Slot:   int32(n % mt.tuplesPerPage),
	}
	t.SetRecordID(&rid)
	mt.tuples = append(mt.tuples, t)
	return rid, nil
}

// InsertInts is a convenience for all-integer relations.
func (mt *MemTable) InsertInts(vals ...int64) (common.RecordID, error) {
	values := make([]common.Value, len(vals))
	for i, v := range vals {
		values[i] = common.NewIntValue(v)
	}
	return mt.Insert(values...)
}

// Get returns a copy of the tuple at position i in insertion order. Writes to the copy do not reach the table.
func (mt *MemTable) Get(i int) Tuple {
	return mt.tuples[i].Clone()
}
