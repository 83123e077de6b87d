package module

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateModule = errors.New("duplicate module id")
	ErrUnknownModule   = errors.New("unknown module id")
	ErrMissingField    = errors.New("required payload field missing")
	ErrInvalidConfig   = errors.New("invalid module config")
)

// LifecycleError reports a failed init or start.
type LifecycleError struct {
	ModuleID string
	Phase    string
	Err      error
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("module %q %s failed: %v", e.ModuleID, e.Phase, e.Err)
}

func (e *LifecycleError) Unwrap() error {
	return e.Err
}

// HookError reports a rejected or failed per-record hook.
type HookError struct {
	ModuleID string
	Hook     string
	Err      error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("module %q %s: %v", e.ModuleID, e.Hook, e.Err)
}

func (e *HookError) Unwrap() error {
	return e.Err
}

// IsLifecycleError returns true if err wraps a *LifecycleError.
func IsLifecycleError(err error) bool {
	var le *LifecycleError
	return errors.As(err, &le)
}

// IsHookError returns true if err wraps a *HookError.
func IsHookError(err error) bool {
	var he *HookError
	return errors.As(err, &he)
}
