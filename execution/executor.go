package execution

import (
	"mit.edu/dsg/joindb/common"
	"mit.edu/dsg/joindb/storage"
)

// Executor is the pull-iterator protocol that every physical execution node implements. A consumer opens
// the executor, alternates HasNext and Next until HasNext reports false, and finally closes it. Executors
// compose: an operator is the consumer of its children and a producer for its parent.
type Executor interface {
	// Schema returns the schema of the tuples the executor produces. It may be called before Open.
	Schema() *storage.TupleDesc

	// Open binds the executor to an execution context and opens its children. ctx must not be nil.
	Open(ctx *ExecutorContext) error

	// HasNext reports whether another tuple is available.
	HasNext() (bool, error)

	// Next returns the next tuple. It fails with IterationExhaustedError if HasNext would report false.
	Next() (storage.Tuple, error)

	// Rewind resets the enumeration to the beginning.
	Rewind() error

	// Close releases the resources held by the executor and closes its children.
	Close() error
}

// TupleProducer is the primitive an operator provides: produce the next tuple, or signal the end of the
// stream with ok == false. BufferedExecutor turns a TupleProducer into a full Executor.
type TupleProducer interface {
	Schema() *storage.TupleDesc
	Open(ctx *ExecutorContext) error
	ReadNext() (t storage.Tuple, ok bool, err error)
	Rewind() error
	Close() error
}

type executorState int

const (
	stateUnopened executorState = iota
	stateOpen
	stateClosed
)

func (s executorState) String() string {
	switch s {
	case stateUnopened:
		return "unopened"
	case stateOpen:
		return "open"
	case stateClosed:
		return "closed"
	}
	return "unknown"
}

// BufferedExecutor implements the Executor contract once for every operator: the open/closed state machine,
// one tuple of lookahead so HasNext can be answered without losing a tuple, and the exhaustion error.
//
// An error returned by the producer is sticky: it is returned by every HasNext and Next until Rewind or a
// new Open, so a failure can never be mistaken for the end of the stream.
type BufferedExecutor struct {
	producer TupleProducer
	state    executorState

	lookahead    storage.Tuple
	hasLookahead bool
	exhausted    bool
	err          error
}

// NewBufferedExecutor wraps a producer.
func NewBufferedExecutor(producer TupleProducer) *BufferedExecutor {
	return &BufferedExecutor{producer: producer}
}

func (e *BufferedExecutor) Schema() *storage.TupleDesc {
	return e.producer.Schema()
}

func (e *BufferedExecutor) Open(ctx *ExecutorContext) error {
	if e.state == stateOpen {
		return common.NewGoDBError(common.QueryExecutionError, "executor is already open")
	}
	if ctx == nil {
		return common.NewGoDBError(common.QueryExecutionError, "executor opened without an execution context")
	}
	e.resetLookahead()
	if err := e.producer.Open(ctx); err != nil {
		return err
	}
	e.state = stateOpen
	return nil
}

func (e *BufferedExecutor) HasNext() (bool, error) {
	if err := e.checkOpen("HasNext"); err != nil {
		return false, err
	}
	if e.err != nil {
		return false, e.err
	}
	if e.hasLookahead {
		return true, nil
	}
	if e.exhausted {
		return false, nil
	}
	t, ok, err := e.producer.ReadNext()
	if err != nil {
		e.err = err
		return false, err
	}
	if !ok {
		e.exhausted = true
		return false, nil
	}
	e.lookahead = t
	e.hasLookahead = true
	return true, nil
}

func (e *BufferedExecutor) Next() (storage.Tuple, error) {
	ok, err := e.HasNext()
	if err != nil {
		return storage.Tuple{}, err
	}
	if !ok {
		return storage.Tuple{}, common.NewGoDBError(common.IterationExhaustedError, "no more tuples")
	}
	t := e.lookahead
	e.lookahead = storage.Tuple{}
	e.hasLookahead = false
	return t, nil
}

func (e *BufferedExecutor) Rewind() error {
	if err := e.checkOpen("Rewind"); err != nil {
		return err
	}
	e.resetLookahead()
	if err := e.producer.Rewind(); err != nil {
		e.err = err
		return err
	}
	return nil
}

// Close closes the producer. Closing an executor that was never opened is a no-op, which lets a parent
// close all of its children on an error path without tracking which ones were opened.
func (e *BufferedExecutor) Close() error {
	if e.state != stateOpen {
		return nil
	}
	e.state = stateClosed
	e.resetLookahead()
	return e.producer.Close()
}

// IsOpen reports whether the executor is between Open and Close.
func (e *BufferedExecutor) IsOpen() bool {
	return e.state == stateOpen
}

func (e *BufferedExecutor) checkOpen(op string) error {
	if e.state != stateOpen {
		return common.NewGoDBError(common.QueryExecutionError, "%s called on %s executor", op, e.state)
	}
	return nil
}

func (e *BufferedExecutor) resetLookahead() {
	e.lookahead = storage.Tuple{}
	e.hasLookahead = false
	e.exhausted = false
	e.err = nil
}

// drain reads every remaining tuple of child, calling fn for each one.
func drain(child Executor, fn func(storage.Tuple) error) error {
	for {
		ok, err := child.HasNext()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		t, err := child.Next()
		if err != nil {
			return err
		}
		if err := fn(t); err != nil {
			return err
		}
	}
}

// pull returns the next tuple of child, or ok == false at the end of the stream.
func pull(child Executor) (storage.Tuple, bool, error) {
	ok, err := child.HasNext()
	if err != nil || !ok {
		return storage.Tuple{}, false, err
	}
	t, err := child.Next()
	if err != nil {
		return storage.Tuple{}, false, err
	}
	return t, true, nil
}
