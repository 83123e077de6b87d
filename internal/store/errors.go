package store

import (
	"errors"
	"fmt"
)

// Code categorizes storage failures.
type Code string

const (
	CodeDatabase        Code = "DATABASE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeIntegrityFailed Code = "INTEGRITY_FAILED"
	CodeSerialization   Code = "SERIALIZATION"
	CodeDeserialization Code = "DESERIALIZATION"
	CodeIO              Code = "IO"
)

// Error is returned by every Backend method that fails.
type Error struct {
	Code Code
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code Code, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// CodeOf returns the storage code of err, or "" if err is not a storage error.
func CodeOf(err error) Code {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsNotFound returns true if err is a NOT_FOUND storage error.
func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}

// IsIntegrityError returns true if err is an INTEGRITY_FAILED storage error.
func IsIntegrityError(err error) bool {
	return CodeOf(err) == CodeIntegrityFailed
}
