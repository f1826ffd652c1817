package usecase

import (
	"errors"
	"fmt"

	"clinic-booking/internal/repository"
)

type ErrorCode string

const (
	ErrorInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrorUnauthenticated ErrorCode = "UNAUTHENTICATED"
	ErrorForbidden       ErrorCode = "FORBIDDEN"
	ErrorNotFound        ErrorCode = "NOT_FOUND"
	ErrorConflict        ErrorCode = "CONFLICT"
	ErrorUpstream        ErrorCode = "UPSTREAM_ERROR"
	ErrorInternal        ErrorCode = "INTERNAL_ERROR"
)

// Error is the failure type of every service. Message, when set, is a localized
// text meant for the end user.
type Error struct {
	Code    ErrorCode
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

func (e *Error) withMessage(msg string) *Error {
	e.Message = msg
	return e
}

// storeError classifies a repository failure. Missing documents map to
// NOT_FOUND and failed write conditions to CONFLICT, both tagged with reason;
// anything else is an internal store error.
func storeError(reason string, err error) *Error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return newError(ErrorNotFound, reason, err)
	case errors.Is(err, repository.ErrConditionFailed):
		return newError(ErrorConflict, reason, err)
	}
	return newError(ErrorInternal, "store_error", err)
}
