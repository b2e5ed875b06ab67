package usecase

import "fmt"

type ErrorCode string

const (
	ErrorStore    ErrorCode = "STORE_ERROR"
	ErrorProvider ErrorCode = "PROVIDER_ERROR"
	ErrorInternal ErrorCode = "INTERNAL_ERROR"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
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

// Detail is the caller-facing description of the failure.
func (e *Error) Detail() string {
	if e == nil {
		return ""
	}
	cause := e.Reason
	if e.Err != nil {
		cause = e.Err.Error()
	}
	switch e.Code {
	case ErrorStore:
		return "store unavailable: " + cause
	case ErrorProvider:
		return "failed to create provider thread: " + cause
	default:
		return "internal error: " + cause
	}
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}
