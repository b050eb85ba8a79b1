// Package errs defines the typed failures returned by folio's domain services.
//
// Services never produce user-facing text. They return an *Error carrying a
// Kind and the operation that failed; the HTTP layer maps kinds to status
// codes (see httputil.WriteDomainError).
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a domain failure.
type Kind uint8

const (
	Other Kind = iota
	PermissionDenied
	NotFound
	SubmissionsClosed
	InvalidTransition
	Validation
	Conflict
	QuotaExceeded
)

func (k Kind) String() string {
	switch k {
	case PermissionDenied:
		return "permission_denied"
	case NotFound:
		return "not_found"
	case SubmissionsClosed:
		return "submissions_closed"
	case InvalidTransition:
		return "invalid_transition"
	case Validation:
		return "validation_error"
	case Conflict:
		return "conflict"
	case QuotaExceeded:
		return "quota_exceeded"
	default:
		return "internal"
	}
}

// Sentinels for errors.Is comparisons.
var (
	ErrPermissionDenied  = &Error{Kind: PermissionDenied}
	ErrNotFound          = &Error{Kind: NotFound}
	ErrSubmissionsClosed = &Error{Kind: SubmissionsClosed}
	ErrInvalidTransition = &Error{Kind: InvalidTransition}
	ErrValidation        = &Error{Kind: Validation}
	ErrConflict          = &Error{Kind: Conflict}
	ErrQuotaExceeded     = &Error{Kind: QuotaExceeded}
)

// Error is a domain failure. Field names the violated input or entity when
// one applies.
type Error struct {
	Kind  Kind
	Op    string
	Field string
	Err   error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Field != "" {
		msg += " (" + e.Field + ")"
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

// Is matches any *Error of the same Kind, so callers can compare against the
// package sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Denied reports that the actor lacks the role, permission or tenant for op.
func Denied(op string) error {
	return &Error{Kind: PermissionDenied, Op: op}
}

// NotFoundf reports a missing entity.
func NotFoundf(op, entity string) error {
	return &Error{Kind: NotFound, Op: op, Field: entity}
}

// Closed reports that a journal is not accepting submissions.
func Closed(op string) error {
	return &Error{Kind: SubmissionsClosed, Op: op}
}

// Invalid reports a missing or malformed input field.
func Invalid(op, field string) error {
	return &Error{Kind: Validation, Op: op, Field: field}
}

// Transition reports a status change rejected by strict transition rules.
func Transition(op, from, to string) error {
	return &Error{Kind: InvalidTransition, Op: op, Field: fmt.Sprintf("%s->%s", from, to)}
}

// Conflicting reports a uniqueness violation.
func Conflicting(op, field string) error {
	return &Error{Kind: Conflict, Op: op, Field: field}
}

// KindOf returns the Kind of the first *Error in err's chain, or Other.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Other
}
