package common

import (
	"encoding/binary"
	"fmt"
	"strconv"
)

const (
	PageSize     int = 4096
	IntSize      int = 8
	StringLength int = 32
)

type Type int8

const (
	// For uninitialized Values
	DefaultType Type = iota
	IntType
	StringType
)

// Size returns the fixed-width storage size of the type in bytes
func (t Type) Size() int {
	switch t {
	case IntType:
		return IntSize
	case StringType:
		return StringLength
	default:
		panic("unknown type")
	}
}

func (t Type) String() string {
	switch t {
	case IntType:
		return "int"
	case StringType:
		return "string"
	}
	return "unknown"
}

// ObjectID is a unique identifier for a table/index/etc. in the database.
type ObjectID uint32

const InvalidObjectID ObjectID = 0

// PageID uniquely identifies a page within the database.
type PageID struct {
	Oid     ObjectID
	PageNum int32
}

func (p *PageID) String() string {
	return fmt.Sprintf("Page(%d, %d)", p.Oid, p.PageNum)
}

// IsNil checks if the PageID is valid.
func (p *PageID) IsNil() bool {
	return p.Oid == 0
}

// RecordID identifies a specific tuple (row) in the database via its PageID and Slot index.
type RecordID struct {
	PageID
	Slot int32
}

// IsNil checks if the RecordID refers to a valid page.
func (r *RecordID) IsNil() bool {
	return r.PageID.IsNil()
}

func (r *RecordID) String() string {
	return fmt.Sprintf("rid(%s, %d)", r.PageID.String(), r.Slot)
}

type TransactionID uint64

const InvalidTransactionID TransactionID = 0

// Value represents a single typed field of a tuple. Values are immutable once constructed.
// A Value may be NULL; NULL is distinct from an unset tuple slot, which has no Value at all.
type Value struct {
	t                Type
	null             bool
	underlyingInt    int64
	underlyingString string
}

// IsNil returns true if the Value is nil and uninitialized. This is NOT to be confused with NULL values.
func (v Value) IsNil() bool {
	return v.t == DefaultType
}

// NewIntValue creates a new integer Value.
func NewIntValue(v int64) Value {
	return Value{
		t:             IntType,
		underlyingInt: v,
	}
}

// NewStringValue creates a new string Value.
func NewStringValue(v string) Value {
	Assert(len(v) <= StringLength, "string too long: %d bytes", len(v))
	return Value{
		t:                StringType,
		underlyingString: v,
	}
}

// NewNullInt creates a NULL integer Value.
func NewNullInt() Value {
	return Value{
		t:    IntType,
		null: true,
	}
}

// NewNullString creates a NULL string Value.
func NewNullString() Value {
	return Value{
		t:    StringType,
		null: true,
	}
}

// Type returns the type of the Value.
func (v Value) Type() Type {
	return v.t
}

// IsNull returns true if the Value is NULL.
func (v Value) IsNull() bool {
	return v.null
}

// IntValue returns the underlying (non-NULL) integer.
func (v Value) IntValue() int64 {
	Assert(v.t == IntType, "type mismatch in IntValue")
	Assert(!v.null, "accessing value of NULL int")
	return v.underlyingInt
}

// StringValue returns the underlying (non-NULL) string.
func (v Value) StringValue() string {
	Assert(v.t == StringType, "type mismatch in StringValue")
	Assert(!v.null, "accessing value of NULL string")
	return v.underlyingString
}

// SizeInBytes returns the serialization size (fixed width).
func (v Value) SizeInBytes() int {
	return v.t.Size()
}

// WriteTo serializes the Value into its fixed-width storage format.
// Int: math.MinInt64 represents NULL. String: a byte of 0xFF at index 0 represents NULL.
func (v Value) WriteTo(data []byte) {
	Assert(len(data) >= v.SizeInBytes(), "buffer too small")

	if v.null {
		switch v.t {
		case IntType:
			binary.LittleEndian.PutUint64(data, 0x8000000000000000)
		case StringType:
			data[0] = 0xFF
			for i := 1; i < StringLength; i++ {
				data[i] = 0
			}
		}
		return
	}

	switch v.t {
	case IntType:
		binary.LittleEndian.PutUint64(data, uint64(v.underlyingInt))
	case StringType:
		n := copy(data, v.underlyingString)
		for i := n; i < StringLength; i++ {
			data[i] = 0
		}
	}
}

// Compare compares two Values of the same type.
// Returns -1 if v < other, 0 if v == other, 1 if v > other.
// NULL is considered less than non-NULL values. Comparing values of different types is a TypeMismatchError.
func (v Value) Compare(other Value) (int, error) {
	if v.t != other.t {
		return 0, NewGoDBError(TypeMismatchError, "cannot compare %s with %s", v.t, other.t)
	}

	if v.null && other.null {
		return 0, nil
	}
	if v.null {
		return -1, nil
	}
	if other.null {
		return 1, nil
	}

	switch v.t {
	case IntType:
		if v.underlyingInt < other.underlyingInt {
			return -1, nil
		}
		if v.underlyingInt > other.underlyingInt {
			return 1, nil
		}
		return 0, nil
	case StringType:
		if v.underlyingString < other.underlyingString {
			return -1, nil
		}
		if v.underlyingString > other.underlyingString {
			return 1, nil
		}
		return 0, nil
	}
	return 0, NewGoDBError(TypeMismatchError, "cannot compare values of type %s", v.t)
}

// Equals reports whether two non-NULL values of the same type hold the same datum.
func (v Value) Equals(other Value) (bool, error) {
	cmp, err := v.Compare(other)
	if err != nil {
		return false, err
	}
	return cmp == 0 && !v.null && !other.null, nil
}

// String returns the canonical text form of the value.
func (v Value) String() string {
	if v.null {
		return "NULL"
	}
	switch v.t {
	case IntType:
		return strconv.FormatInt(v.underlyingInt, 10)
	case StringType:
		return v.underlyingString
	}
	return "<nil>"
}
