// Package apperr defines the error taxonomy shared by the stores, handlers and the
// central error translator.
package apperr

import (
	"errors"

	goerrors "github.com/go-errors/errors"
)

// Kind classifies an error for translation into an HTTP status.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a tagged application error. Message is safe to show to clients,
// except for KindInternal where it may be replaced in production.
type Error struct {
	Kind    Kind
	Message string
	Err     error

	stack *goerrors.Error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Stack returns the stack trace captured when the error was created.
func (e *Error) Stack() string {
	if e.stack == nil {
		return ""
	}
	return e.stack.ErrorStack()
}

// skip 0 is newError itself, 1 the exported constructor, 2 its caller.
func newError(kind Kind, message string, err error, skip int) *Error {
	var cause any = message
	if err != nil {
		cause = err
	}
	return &Error{
		Kind:    kind,
		Message: message,
		Err:     err,
		stack:   goerrors.Wrap(cause, skip),
	}
}

func Validation(message string) *Error {
	return newError(KindValidation, message, nil, 2)
}

func Unauthenticated(message string) *Error {
	return newError(KindUnauthenticated, message, nil, 2)
}

func Forbidden(message string) *Error {
	return newError(KindForbidden, message, nil, 2)
}

func NotFound(message string) *Error {
	return newError(KindNotFound, message, nil, 2)
}

func Conflict(message string) *Error {
	return newError(KindConflict, message, nil, 2)
}

// Internal wraps an unexpected failure.
func Internal(message string, err error) *Error {
	return newError(KindInternal, message, err, 2)
}

// Wrap returns err unchanged if it already carries a Kind, otherwise it is
// wrapped as an internal error with a stack trace taken at the call site.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	return newError(KindInternal, message, err, 2)
}

// KindOf reports the Kind of err, KindInternal for untagged errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}
