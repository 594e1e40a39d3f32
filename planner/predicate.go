package planner

import (
	"fmt"

	"mit.edu/dsg/joindb/common"
	"mit.edu/dsg/joindb/storage"
)

type ComparisonType int

const (
	Equal ComparisonType = iota
	NotEqual
	GreaterThan
	LessThan
	GreaterThanOrEqual
	LessThanOrEqual
)

func (c ComparisonType) String() string {
	switch c {
	case Equal:
		return "="
	case NotEqual:
		return "!="
	case GreaterThan:
		return ">"
	case LessThan:
		return "<"
	case GreaterThanOrEqual:
		return ">="
	case LessThanOrEqual:
		return "<="
	}
	return "???"
}

// holds reports whether a three-way comparison result satisfies the operator.
func (c ComparisonType) holds(cmp int) bool {
	switch c {
	case Equal:
		return cmp == 0
	case NotEqual:
		return cmp != 0
	case GreaterThan:
		return cmp > 0
	case LessThan:
		return cmp < 0
	case GreaterThanOrEqual:
		return cmp >= 0
	case LessThanOrEqual:
		return cmp <= 0
	}
	panic("unknown comparison type")
}

// JoinPredicate compares one field of an outer tuple with one field of an inner tuple.
// It is stateless and may be evaluated any number of times.
type JoinPredicate struct {
	LeftField  int
	RightField int
	Op         ComparisonType
}

func NewJoinPredicate(leftField int, op ComparisonType, rightField int) *JoinPredicate {
	return &JoinPredicate{
		LeftField:  leftField,
		RightField: rightField,
		Op:         op,
	}
}

// IsEquality reports whether the predicate is an equi-join condition.
func (p *JoinPredicate) IsEquality() bool {
	return p.Op == Equal
}

// Validate checks that both field indices exist and that the two fields can be compared.
func (p *JoinPredicate) Validate(outer, inner *storage.TupleDesc) error {
	if p.LeftField < 0 || p.LeftField >= outer.NumFields() {
		return common.NewGoDBError(common.QueryExecutionError,
			"join predicate %s: left field out of range for %s", p, outer)
	}
	if p.RightField < 0 || p.RightField >= inner.NumFields() {
		return common.NewGoDBError(common.QueryExecutionError,
			"join predicate %s: right field out of range for %s", p, inner)
	}
	if lt, rt := outer.FieldType(p.LeftField), inner.FieldType(p.RightField); lt != rt {
		return common.NewGoDBError(common.TypeMismatchError,
			"join predicate %s compares %s with %s", p, lt, rt)
	}
	return nil
}

// Filter evaluates outer[LeftField] <op> inner[RightField].
// A NULL on either side never satisfies the predicate. An unset slot, an index outside the tuple, or a
// type mismatch is an error; it is never reported as a non-match.
func (p *JoinPredicate) Filter(outer, inner storage.Tuple) (bool, error) {
	lv, ok := outer.GetField(p.LeftField)
	if !ok {
		return false, common.NewGoDBError(common.QueryExecutionError,
			"join predicate %s: outer field %d is not set", p, p.LeftField)
	}
	rv, ok := inner.GetField(p.RightField)
	if !ok {
		return false, common.NewGoDBError(common.QueryExecutionError,
			"join predicate %s: inner field %d is not set", p, p.RightField)
	}
	cmp, err := lv.Compare(rv)
	if err != nil {
		return false, err
	}
	if lv.IsNull() || rv.IsNull() {
		return false, nil
	}
	return p.Op.holds(cmp), nil
}

// LeftKey extracts the outer join key from t.
func (p *JoinPredicate) LeftKey(t storage.Tuple) (common.Value, error) {
	return key(t, p.LeftField)
}

// RightKey extracts the inner join key from t.
func (p *JoinPredicate) RightKey(t storage.Tuple) (common.Value, error) {
	return key(t, p.RightField)
}

func key(t storage.Tuple, i int) (common.Value, error) {
	v, ok := t.GetField(i)
	if !ok {
		return common.Value{}, common.NewGoDBError(common.QueryExecutionError, "join key field %d is not set", i)
	}
	return v, nil
}

func (p *JoinPredicate) String() string {
	return fmt.Sprintf("(outer.%d %s inner.%d)", p.LeftField, p.Op, p.RightField)
}
