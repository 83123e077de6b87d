package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/chainledger/internal/core"
)

// ErrorKind categorizes engine errors.
//
// Kinds:
//   - Validation: malformed record, request context or batch
//   - ChainIntegrity: hash, link or timestamp violation in a chain
//   - ModuleLifecycle: module init or start failed
//   - ModuleHook: a module rejected a record
//   - AccessControl: requester lacks a grant, or the ACL backend failed
//   - Storage: backend failure of any storage code
//   - Configuration: bad ledger config or a call the config does not allow
type ErrorKind string

const (
	KindValidation      ErrorKind = "VALIDATION"
	KindChainIntegrity  ErrorKind = "CHAIN_INTEGRITY"
	KindModuleLifecycle ErrorKind = "MODULE_LIFECYCLE"
	KindModuleHook      ErrorKind = "MODULE_HOOK"
	KindAccessControl   ErrorKind = "ACCESS_CONTROL"
	KindStorage         ErrorKind = "STORAGE"
	KindConfiguration   ErrorKind = "CONFIGURATION"
)

var (
	// ErrACLDisabled is wrapped by Configuration errors from ACL calls on
	// an engine built without an ACL backend.
	ErrACLDisabled = errors.New("access control is not enabled")

	// ErrAccessDenied is wrapped by AccessControl errors for a missing grant.
	ErrAccessDenied = errors.New("access denied")

	// ErrClosed is returned by operations on a shut down engine.
	ErrClosed = errors.New("engine is shut down")
)

// Error is the only error type returned by Engine methods.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error

	// Verification is set for ChainIntegrity errors.
	Verification *core.VerificationResult
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func newErrorf(kind ErrorKind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// integrityError wraps a failed verification.
func integrityError(op string, result core.VerificationResult) *Error {
	return &Error{
		Kind:         KindChainIntegrity,
		Op:           op,
		Err:          result.Err(),
		Verification: &result,
	}
}

// KindOf returns the kind of err, or "" if err is not an engine error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind returns true if err is an engine error of kind k.
// Uses errors.As to handle wrapped errors.
func IsKind(err error, k ErrorKind) bool {
	return KindOf(err) == k
}

// IsAccessDenied reports whether err is an AccessControl error for a
// missing grant, as opposed to a failing ACL backend.
func IsAccessDenied(err error) bool {
	return IsKind(err, KindAccessControl) && errors.Is(err, ErrAccessDenied)
}
