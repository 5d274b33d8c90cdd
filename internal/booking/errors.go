package booking

import (
	"errors"
	"fmt"

	"github.com/iliyamo/showtime-booking/internal/repository"
)

// Error kinds.  Every error returned by the engine matches exactly one of
// them with errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrAllocation   = errors.New("allocation failed")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrForbidden    = errors.New("forbidden")
	ErrStore        = errors.New("store failure")
)

// Error is the engine's error value.  Msg is safe to show to a customer;
// Err keeps the underlying cause and is never rendered.
type Error struct {
	Kind error
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return e.Kind.Error()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// classify turns a failure from the store into an *Error.  Engine errors
// raised inside a transaction pass through untouched.
func classify(op string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return &Error{Kind: ErrNotFound, Op: op, Msg: "not found", Err: err}
	case errors.Is(err, repository.ErrConflict):
		return &Error{Kind: ErrConflict, Op: op, Msg: "conflicting update, please retry", Err: err}
	case errors.Is(err, repository.ErrForbidden):
		return &Error{Kind: ErrForbidden, Op: op, Msg: "forbidden", Err: err}
	}
	return &Error{Kind: ErrStore, Op: op, Msg: "internal storage error", Err: err}
}
