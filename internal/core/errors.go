package core

import (
	"errors"
	"fmt"
	"strings"
)

// Validation sentinels. Every *ValidationError unwraps to one of these.
var (
	ErrInvalidRecord    = errors.New("invalid record")
	ErrRequesterMissing = errors.New("requester oid missing")
	ErrInvalidOID       = errors.New("invalid oid")
	ErrClockSkew        = errors.New("timestamp too far in the future")
	ErrInvalidAnchor    = errors.New("invalid anchor")
)

// ValidationError reports a malformed required field.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %s", e.Err, e.Field)
	}
	return fmt.Sprintf("%s: %s %s", e.Err, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidationError returns true if err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ChainErrorKind categorizes a chain verification failure.
type ChainErrorKind string

const (
	// HashMismatch: recomputed hash differs from the stored hash.
	HashMismatch ChainErrorKind = "hash_mismatch"
	// BrokenLink: prev_hash does not point at the preceding entry.
	BrokenLink ChainErrorKind = "broken_link"
	// TimestampOrder: timestamp decreased relative to the preceding entry.
	TimestampOrder ChainErrorKind = "timestamp_order"
)

// ChainError describes one integrity violation at a position in a chain.
type ChainError struct {
	Kind     ChainErrorKind
	Index    int
	Expected string
	Actual   string
}

func (e *ChainError) Error() string {
	switch e.Kind {
	case HashMismatch:
		return fmt.Sprintf("entry %d: hash mismatch: expected %s, got %s", e.Index, e.Expected, e.Actual)
	case BrokenLink:
		return fmt.Sprintf("entry %d: broken link: expected prev %s, got %s", e.Index, e.Expected, e.Actual)
	case TimestampOrder:
		return fmt.Sprintf("entry %d: timestamp order: %s is before previous %s", e.Index, e.Actual, e.Expected)
	default:
		return fmt.Sprintf("entry %d: %s", e.Index, e.Kind)
	}
}

// IntegrityError is returned when a chain fails verification.
// It carries the full verification result for inspection.
type IntegrityError struct {
	Result VerificationResult
}

func (e *IntegrityError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "chain integrity failed: %d error(s) in %d entries (hash=%d link=%d timestamp=%d)",
		len(e.Result.Errors), e.Result.EntriesChecked,
		e.Result.HashMismatches, e.Result.ChainLinkErrors, e.Result.TimestampErrors)
	if len(e.Result.Errors) > 0 {
		b.WriteString(": ")
		b.WriteString(e.Result.Errors[0].Error())
	}
	return b.String()
}

func (e *IntegrityError) Unwrap() []error {
	errs := make([]error, len(e.Result.Errors))
	for i, ce := range e.Result.Errors {
		errs[i] = ce
	}
	return errs
}

// AsIntegrityError extracts an *IntegrityError from err's chain.
func AsIntegrityError(err error) (*IntegrityError, bool) {
	var ie *IntegrityError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}
