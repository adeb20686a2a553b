package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation        ErrorKind = "VALIDATION"
	KindInvalidTransition ErrorKind = "INVALID_TRANSITION"
	KindConflict          ErrorKind = "CONFLICT"
	KindNotFound          ErrorKind = "NOT_FOUND"
	KindPersistence       ErrorKind = "PERSISTENCE"
)

// Sentinels for errors.Is matching. Only the Kind is compared.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrPersistence       = &Error{Kind: KindPersistence}
)

// Error is the single error type surfaced by the loan ledger.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Message == "" && t.Err == nil
}

func NewValidationError(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

func NewInvalidTransitionError(op string, from, to LoanStatus) error {
	return &Error{
		Kind:    KindInvalidTransition,
		Op:      op,
		Message: fmt.Sprintf("cannot move loan from %s to %s", from, to),
	}
}

func NewConflictError(op, format string, args ...any) error {
	return &Error{Kind: KindConflict, Op: op, Message: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(op, entity string, id any) error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf("%s %v not found", entity, id)}
}

func NewPersistenceError(op string, err error) error {
	return &Error{Kind: KindPersistence, Op: op, Message: "storage failure", Err: err}
}

// KindOf reports the kind of a ledger error, or "" for foreign errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
