// Package apperr defines the error kinds surfaced by the social core and
// their mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"net/http"
)

// Kind is a stable, machine-readable error category.
type Kind string

const (
	KindInternal         Kind = "internal"
	KindValidation       Kind = "validation"
	KindUnauthorized     Kind = "unauthorized"
	KindForbidden        Kind = "forbidden"
	KindNotFound         Kind = "not_found"
	KindConflict         Kind = "conflict"
	KindDuplicateRequest Kind = "duplicate_request"
	KindAlreadyFriends   Kind = "already_friends"
	KindInvalidOperation Kind = "invalid_operation"
	KindPartialFailure   Kind = "partial_failure"
)

// Error carries a Kind, a human-readable message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind, so that
// errors.Is(err, apperr.NotFound("")) style checks work.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap builds an error of the given kind around a cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func Validation(msg string) *Error       { return New(KindValidation, msg) }
func Unauthorized(msg string) *Error     { return New(KindUnauthorized, msg) }
func Forbidden(msg string) *Error        { return New(KindForbidden, msg) }
func NotFound(msg string) *Error         { return New(KindNotFound, msg) }
func Conflict(msg string) *Error         { return New(KindConflict, msg) }
func DuplicateRequest(msg string) *Error { return New(KindDuplicateRequest, msg) }
func AlreadyFriends(msg string) *Error   { return New(KindAlreadyFriends, msg) }
func InvalidOperation(msg string) *Error { return New(KindInvalidOperation, msg) }

// PartialFailure reports a two-document change whose second write never
// landed. The cause is kept for logs.
func PartialFailure(msg string, err error) *Error { return Wrap(KindPartialFailure, msg, err) }

// Internal wraps an unexpected failure from a collaborator.
func Internal(msg string, err error) *Error { return Wrap(KindInternal, msg, err) }

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HasKind reports whether err is an *Error of the given kind.
func HasKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps a kind onto its response status.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindInvalidOperation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindDuplicateRequest, KindAlreadyFriends:
		return http.StatusConflict
	case KindPartialFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
