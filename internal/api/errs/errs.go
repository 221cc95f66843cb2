// Package errs provides types and support related to web error functionality.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrCode represents an error code in the system.
type ErrCode struct {
	value int
}

// Value returns the integer value of the error code.
func (ec ErrCode) Value() int { return ec.value }

// String returns the string representation of the error code.
func (ec ErrCode) String() string { return codeNames[ec] }

// MarshalText implements the encoding.TextMarshaler interface so response
// bodies carry the code's name rather than an opaque struct.
func (ec ErrCode) MarshalText() ([]byte, error) { return []byte(ec.String()), nil }

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (ec *ErrCode) UnmarshalText(data []byte) error {
	name := string(data)
	for code, codeName := range codeNames {
		if codeName == name {
			*ec = code
			return nil
		}
	}
	return fmt.Errorf("unknown error code %q", name)
}

// A set of error codes covering the orchestration error taxonomy.
var (
	OK                 = ErrCode{value: 0}
	InvalidArgument    = ErrCode{value: 1} // validation failure, no side effects
	Unauthenticated    = ErrCode{value: 2} // missing or unusable caller identity
	PermissionDenied   = ErrCode{value: 3} // caller does not own the resource, or bad signature
	NotFound           = ErrCode{value: 4} // resource does not exist
	AlreadyExists      = ErrCode{value: 5} // uniqueness conflict
	FailedPrecondition = ErrCode{value: 6} // resource state forbids the operation
	Unavailable        = ErrCode{value: 7} // upstream unreachable; retryable
	DeadlineExceeded   = ErrCode{value: 8} // upstream timed out; retryable
	Internal           = ErrCode{value: 9} // everything else
)

var codeNames = map[ErrCode]string{
	OK:                 "ok",
	InvalidArgument:    "invalid_argument",
	Unauthenticated:    "unauthenticated",
	PermissionDenied:   "permission_denied",
	NotFound:           "not_found",
	AlreadyExists:      "already_exists",
	FailedPrecondition: "failed_precondition",
	Unavailable:        "unavailable",
	DeadlineExceeded:   "deadline_exceeded",
	Internal:           "internal",
}

var httpStatus = map[ErrCode]int{
	OK:                 http.StatusOK,
	InvalidArgument:    http.StatusUnprocessableEntity,
	Unauthenticated:    http.StatusUnauthorized,
	PermissionDenied:   http.StatusForbidden,
	NotFound:           http.StatusNotFound,
	AlreadyExists:      http.StatusConflict,
	FailedPrecondition: http.StatusConflict,
	Unavailable:        http.StatusBadGateway,
	DeadlineExceeded:   http.StatusGatewayTimeout,
	Internal:           http.StatusInternalServerError,
}

// Error represents an error in the system carrying a taxonomy code.
type Error struct {
	Code    ErrCode `json:"code"`
	Message string  `json:"message"`
}

// New constructs an error based on an app error.
func New(code ErrCode, err error) *Error {
	return &Error{Code: code, Message: err.Error()}
}

// Newf constructs an error based on a error message.
func Newf(code ErrCode, format string, v ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, v...)}
}

// Error implements the error interface.
func (e *Error) Error() string { return e.Message }

// HTTPStatus returns the HTTP status code for the error's code.
func (e *Error) HTTPStatus() int {
	if status, ok := httpStatus[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// IsError tests the concrete error is of the Error type.
func IsError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// GetError returns a copy of the Error pointer, or an Internal error wrapping
// err when it is not one.
func GetError(err error) *Error {
	var e *Error
	if !errors.As(err, &e) {
		return New(Internal, err)
	}
	return e
}
