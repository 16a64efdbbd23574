package services

import (
	"errors"
	"fmt"
)

// ErrorKind is the machine-readable tag of a workflow error.
type ErrorKind string

const (
	KindValidation            ErrorKind = "ValidationError"
	KindNotFound              ErrorKind = "NotFound"
	KindSchedulingConflict    ErrorKind = "SchedulingConflict"
	KindInvalidTransition     ErrorKind = "InvalidTransition"
	KindNoQualifiedTechnician ErrorKind = "NoQualifiedTechnician"
	KindAlreadyCompleted      ErrorKind = "AlreadyCompleted"
	KindConflictingUpdate     ErrorKind = "ConflictingUpdate"
	KindForbidden             ErrorKind = "Forbidden"
	KindInternal              ErrorKind = "Internal"
)

// Error is returned by every service operation. Details carries data the
// caller can act on, such as the conflicting slot or the current status.
type Error struct {
	Kind    ErrorKind
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err is a service error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

func validationError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func notFound(what, id string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found", what),
		Details: map[string]interface{}{"id": id},
	}
}

func forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

func internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}
