package core

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the data-access layer and its callers.
var (
	ErrConnection          = errors.New("store connection error")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrDecode              = errors.New("decode error")
	ErrTransactionState    = errors.New("transaction state error")
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
)

// DecodeError reports a stored value that could not be mapped onto a record.
type DecodeError struct {
	Column string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("decode row: %v", e.Err)
	}
	return fmt.Sprintf("decode column %q: %v", e.Column, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// NewDecodeError wraps err as a decode failure on column.
func NewDecodeError(column string, err error) *DecodeError {
	return &DecodeError{Column: column, Err: err}
}

// TransactionStateError is returned for operations on a scope that already
// reached a terminal state.
type TransactionStateError struct {
	Op    string
	State string
}

func (e *TransactionStateError) Error() string {
	return fmt.Sprintf("transaction state error: cannot %s a %s scope", e.Op, e.State)
}

func (e *TransactionStateError) Is(target error) bool { return target == ErrTransactionState }

// ConnectionError wraps a transport or pool failure.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrConnection, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

// NewConnectionError wraps err as a connection failure during op.
func NewConnectionError(op string, err error) *ConnectionError {
	return &ConnectionError{Op: op, Err: err}
}
