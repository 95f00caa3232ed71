// Package errs defines the error taxonomy shared by the resolver, the fix
// engine and the assembler.
//
// Every failure that callers are expected to branch on carries a Code. The
// package exposes one sentinel per code so call sites can use errors.Is
// without caring which dataset reference or time window produced the error:
//
//	if errors.Is(err, errs.ErrTimeRangeNotFound) { ... }
package errs

import (
	"errors"
	"fmt"
)

// Code identifies a class of failure.
type Code string

const (
	CodeUnrecognizedReference Code = "UNRECOGNIZED_REFERENCE_FORMAT"
	CodeFixResolution         Code = "FIX_RESOLUTION_FAILED"
	CodeDatasetNotFound       Code = "DATASET_NOT_FOUND"
	CodeTimeRangeNotFound     Code = "TIME_RANGE_NOT_FOUND"
	CodeEmptyTimeRange        Code = "EMPTY_TIME_RANGE"
	CodeStoreUnavailable      Code = "STORE_UNAVAILABLE"
)

// Sentinels for errors.Is. They carry no reference or cause.
var (
	ErrUnrecognizedReference = &Error{Code: CodeUnrecognizedReference}
	ErrFixResolution         = &Error{Code: CodeFixResolution}
	ErrDatasetNotFound       = &Error{Code: CodeDatasetNotFound}
	ErrTimeRangeNotFound     = &Error{Code: CodeTimeRangeNotFound}
	ErrEmptyTimeRange        = &Error{Code: CodeEmptyTimeRange}
	ErrStoreUnavailable      = &Error{Code: CodeStoreUnavailable}
)

// Error is a coded error tied to the dataset reference that caused it.
type Error struct {
	Code    Code
	Ref     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Ref != "" {
		msg = fmt.Sprintf("%s: %s", e.Ref, msg)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New builds a coded error for ref.
func New(code Code, ref, format string, args ...any) *Error {
	return &Error{Code: code, Ref: ref, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a coded error for ref around cause.
func Wrap(cause error, code Code, ref, format string, args ...any) *Error {
	return &Error{Code: code, Ref: ref, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
