package storage

import (
	"fmt"
	"strings"

	"mit.edu/dsg/joindb/common"
)

// FieldDesc is a single (name, type) slot of a schema.
type FieldDesc struct {
	Name string
	Type common.Type
}

// TupleDesc describes the schema of a tuple: an ordered list of named, typed slots.
// A TupleDesc is immutable once built and is shared by every tuple that conforms to it.
type TupleDesc struct {
	fields      []FieldDesc
	bytesPerRow int // Fixed size of the tuple in bytes, used for memory accounting
}

// NewTupleDesc creates a descriptor for the given list of fields. A descriptor must have at least one field.
func NewTupleDesc(fields ...FieldDesc) *TupleDesc {
	common.Assert(len(fields) > 0, "a tuple descriptor needs at least one field")
	size := 0
	for _, f := range fields {
		switch f.Type {
		case common.IntType, common.StringType:
			size += f.Type.Size()
		default:
			common.Assert(false, "unknown field type for column %q", f.Name)
		}
	}
	return &TupleDesc{
		fields:      append([]FieldDesc(nil), fields...),
		bytesPerRow: common.Align8(size),
	}
}

// NewTupleDescFromTypes creates a descriptor with generated column names (c0, c1, ...).
func NewTupleDescFromTypes(types ...common.Type) *TupleDesc {
	fields := make([]FieldDesc, len(types))
	for i, t := range types {
		fields[i] = FieldDesc{Name: fmt.Sprintf("c%d", i), Type: t}
	}
	return NewTupleDesc(fields...)
}

// Combine returns a new descriptor holding the fields of left followed by the fields of right.
// This is the schema of any join result.
func Combine(left, right *TupleDesc) *TupleDesc {
	fields := make([]FieldDesc, 0, len(left.fields)+len(right.fields))
	fields = append(fields, left.fields...)
	fields = append(fields, right.fields...)
	return &TupleDesc{
		fields:      fields,
		bytesPerRow: left.bytesPerRow + right.bytesPerRow,
	}
}

func (desc *TupleDesc) String() string {
	parts := make([]string, len(desc.fields))
	for i, f := range desc.fields {
		parts[i] = fmt.Sprintf("%s:%s", f.Name, f.Type)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// NumFields returns the number of fields in the schema.
func (desc *TupleDesc) NumFields() int {
	return len(desc.fields)
}

// BytesPerTuple returns the fixed size in bytes of a tuple of this schema.
func (desc *TupleDesc) BytesPerTuple() int {
	return desc.bytesPerRow
}

// FieldType returns the type of the field at index i.
func (desc *TupleDesc) FieldType(i int) common.Type {
	return desc.fields[i].Type
}

// FieldName returns the name of the field at index i.
func (desc *TupleDesc) FieldName(i int) string {
	return desc.fields[i].Name
}

func (desc *TupleDesc) FieldTypes() []common.Type {
	types := make([]common.Type, len(desc.fields))
	for i, f := range desc.fields {
		types[i] = f.Type
	}
	return types
}

// FieldIndex returns the index of the first field with the given name, or -1.
func (desc *TupleDesc) FieldIndex(name string) int {
	for i, f := range desc.fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Equals reports whether two descriptors have the same field types in the same order. Names are ignored.
func (desc *TupleDesc) Equals(other *TupleDesc) bool {
	if len(desc.fields) != len(other.fields) {
		return false
	}
	for i := range desc.fields {
		if desc.fields[i].Type != other.fields[i].Type {
			return false
		}
	}
	return true
}

// Tuple is the row exchanged between query operators. It references exactly one schema and holds one slot
// per schema field. A slot stays unset until it is explicitly written.
//
// Tuples handed out by an operator belong to the caller; operators never mutate a tuple they received,
// they only read from it and write into freshly allocated tuples.
type Tuple struct {
	desc   *TupleDesc
	values []common.Value
	set    Bitmap // which slots have been written

	// rid identifies the permanent location of this tuple in storage.
	// It is nil for virtual tuples and intermediate results such as join output.
	rid *common.RecordID
}

// NewTuple creates a tuple of the given schema with every slot unset.
func NewTuple(desc *TupleDesc) Tuple {
	return Tuple{
		desc:   desc,
		values: make([]common.Value, desc.NumFields()),
		set:    NewBitmap(desc.NumFields()),
	}
}

// FromValues creates a tuple of the given schema with all slots written, in order.
func FromValues(desc *TupleDesc, values ...common.Value) (Tuple, error) {
	if len(values) != desc.NumFields() {
		return Tuple{}, common.NewGoDBError(common.SchemaMismatchError,
			"schema %s has %d fields, got %d values", desc, desc.NumFields(), len(values))
	}
	t := NewTuple(desc)
	for i, v := range values {
		if err := t.SetField(i, v); err != nil {
			return Tuple{}, err
		}
	}
	return t, nil
}

// IsNil checks if the tuple is uninitialized.
func (t *Tuple) IsNil() bool {
	return t.desc == nil
}

// Desc returns the schema of the tuple.
func (t *Tuple) Desc() *TupleDesc {
	return t.desc
}

// NumFields returns the number of slots in the tuple.
func (t *Tuple) NumFields() int {
	return len(t.values)
}

// SetField writes v into slot i. The value must have the type declared by the schema for that slot.
func (t *Tuple) SetField(i int, v common.Value) error {
	if i < 0 || i >= len(t.values) {
		return common.NewGoDBError(common.SchemaMismatchError, "field index %d out of range for %s", i, t.desc)
	}
	if v.Type() != t.desc.FieldType(i) {
		return common.NewGoDBError(common.SchemaMismatchError,
			"field %d (%s) expects %s, got %s", i, t.desc.FieldName(i), t.desc.FieldType(i), v.Type())
	}
	t.values[i] = v
	t.set.SetBit(i, true)
	return nil
}

// GetField returns the value in slot i and whether the slot has been written.
func (t *Tuple) GetField(i int) (common.Value, bool) {
	if i < 0 || i >= len(t.values) || !t.set.LoadBit(i) {
		return common.Value{}, false
	}
	return t.values[i], true
}

// RecordID returns the storage location of the tuple, or nil if it has none.
func (t *Tuple) RecordID() *common.RecordID {
	return t.rid
}

// SetRecordID records the storage location of the tuple.
func (t *Tuple) SetRecordID(rid *common.RecordID) {
	t.rid = rid
}

// String renders the tuple as its fields separated by tabs and terminated by a newline.
// Unset slots render as "-".
func (t *Tuple) String() string {
	var sb strings.Builder
	for i := range t.values {
		if i > 0 {
			sb.WriteByte('\t')
		}
		if t.set.LoadBit(i) {
			sb.WriteString(t.values[i].String())
		} else {
			sb.WriteByte('-')
		}
	}
	sb.WriteByte('\n')
	return sb.String()
}

// Concat allocates a new tuple of schema desc holding all fields of left followed by all fields of right.
// desc must be the combination of the two tuples' schemas. The result carries no record id.
func Concat(desc *TupleDesc, left, right Tuple) Tuple {
	common.Assert(left.NumFields()+right.NumFields() == desc.NumFields(), "tuple descriptor mismatch")
	out := Tuple{
		desc:   desc,
		values: make([]common.Value, desc.NumFields()),
		set:    left.set.Append(&right.set),
	}
	n := copy(out.values, left.values)
	copy(out.values[n:], right.values)
	return out
}

// Clone returns a copy of the tuple that shares no slot storage with t. The record id is copied too.
func (t *Tuple) Clone() Tuple {
	out := Tuple{
		desc:   t.desc,
		values: append([]common.Value(nil), t.values...),
		set:    t.set.Clone(),
	}
	if t.rid != nil {
		rid := *t.rid
		out.rid = &rid
	}
	return out
}

// Values returns a copy of the tuple's slot values. Unset slots are returned as nil Values.
func (t *Tuple) Values() []common.Value {
	return append([]common.Value(nil), t.values...)
}
