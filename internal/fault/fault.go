package fault

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the closed set of expected, recoverable outcomes. Anything else
// surfaces as a 500.
type Kind string

const (
	KindForbidden         Kind = "forbidden"
	KindNotFound          Kind = "not_found"
	KindInvalidState      Kind = "invalid_state"
	KindPrerequisiteUnmet Kind = "prerequisite_unmet"
	KindAlreadyExists     Kind = "already_exists"
	KindDuplicateAttempt  Kind = "duplicate_attempt"
	KindInternal          Kind = "internal"
)

type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Message }

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...any) *Error {
	return New(KindForbidden, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

func InvalidState(format string, args ...any) *Error {
	return New(KindInvalidState, format, args...)
}

func PrerequisiteUnmet(format string, args ...any) *Error {
	return New(KindPrerequisiteUnmet, format, args...)
}

func AlreadyExists(format string, args ...any) *Error {
	return New(KindAlreadyExists, format, args...)
}

func DuplicateAttempt(format string, args ...any) *Error {
	return New(KindDuplicateAttempt, format, args...)
}

// KindOf returns the Kind of err, or KindInternal for anything that is not a
// *fault.Error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

// HTTPStatus maps a Kind to the status the API layer serves.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidState, KindPrerequisiteUnmet, KindAlreadyExists, KindDuplicateAttempt:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
