package common

import (
	"fmt"

	"github.com/pkg/errors"
)

type GoDBErrorCode int

const (
	// QueryExecutionError indicates invalid operator usage: calling Next before Open, running an
	// equality-only join algorithm over a non-equality predicate, or a predicate that does not fit the
	// schemas it is evaluated against.
	QueryExecutionError GoDBErrorCode = iota
	// TransactionAbortedError is raised when the transaction an operator runs under has been aborted.
	// It is fatal to the query and must be propagated as-is.
	TransactionAbortedError
	// IterationExhaustedError is returned by Next when no further tuple exists. Callers are expected
	// to check HasNext first.
	IterationExhaustedError
	// TypeMismatchError indicates a comparison between two values of different declared types.
	TypeMismatchError
	// SchemaMismatchError indicates a value that does not fit the slot it is written to.
	SchemaMismatchError
)

func (ec GoDBErrorCode) String() string {
	switch ec {
	case QueryExecutionError:
		return "QueryExecutionError"
	case TransactionAbortedError:
		return "TransactionAbortedError"
	case IterationExhaustedError:
		return "IterationExhaustedError"
	case TypeMismatchError:
		return "TypeMismatchError"
	case SchemaMismatchError:
		return "SchemaMismatchError"
	}
	return "unknown"
}

// GoDBError is the custom error type for the database engine.
// It wraps a specific GoDBErrorCode with a detailed message, and optionally the lower-level error that
// caused it.
//
// Two GoDBErrors match under errors.Is when their codes are equal, so callers test for a class of failure
// with the sentinels below (e.g. errors.Is(err, common.ErrTransactionAborted)) regardless of the message.
type GoDBError struct {
	Code      GoDBErrorCode
	ErrString string
	Cause     error
}

var (
	ErrQueryExecution     = GoDBError{Code: QueryExecutionError}
	ErrTransactionAborted = GoDBError{Code: TransactionAbortedError}
	ErrIterationExhausted = GoDBError{Code: IterationExhaustedError}
	ErrTypeMismatch       = GoDBError{Code: TypeMismatchError}
	ErrSchemaMismatch     = GoDBError{Code: SchemaMismatchError}
)

// NewGoDBError creates a GoDBError with a formatted message.
func NewGoDBError(code GoDBErrorCode, format string, args ...any) GoDBError {
	return GoDBError{Code: code, ErrString: fmt.Sprintf(format, args...)}
}

// WrapGoDBError attaches a code and message to an underlying error. The cause stays reachable through
// errors.Unwrap, so errors.Is and errors.As see through it.
func WrapGoDBError(cause error, code GoDBErrorCode, format string, args ...any) GoDBError {
	return GoDBError{Code: code, ErrString: fmt.Sprintf(format, args...), Cause: errors.WithStack(cause)}
}

func (e GoDBError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("err: %s; msg: %s; cause: %v", e.Code.String(), e.ErrString, e.Cause)
	}
	return fmt.Sprintf("err: %s; msg: %s", e.Code.String(), e.ErrString)
}

func (e GoDBError) Unwrap() error {
	return e.Cause
}

func (e GoDBError) Is(target error) bool {
	var other GoDBError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// ErrorCode reports the code of the outermost GoDBError in err's chain.
func ErrorCode(err error) (GoDBErrorCode, bool) {
	var e GoDBError
	if errors.As(err, &e) {
		return e.Code, true
	}
	return 0, false
}
