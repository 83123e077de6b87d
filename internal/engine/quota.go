package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/chainledger/internal/core"
)

// ErrCapacityExceeded is wrapped by the Validation error returned when an
// append would grow the ledger past Options.MaxEntries.
var ErrCapacityExceeded = errors.New("ledger capacity exceeded")

// ErrDuplicateRecordID is wrapped by the Validation error returned for a
// repeated record id under Options.StrictValidation.
var ErrDuplicateRecordID = errors.New("duplicate record id")

// ErrDuplicateEntry is wrapped by the Validation error returned for a
// record whose hash is already in the ledger. Storage keys entries by
// hash, so a repeat could never be persisted.
var ErrDuplicateEntry = errors.New("duplicate entry")

// CapacityError reports how far an append would overshoot MaxEntries.
type CapacityError struct {
	Current int
	Adding  int
	Limit   int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%v: %d + %d > %d", ErrCapacityExceeded, e.Current, e.Adding, e.Limit)
}

func (e *CapacityError) Unwrap() error {
	return ErrCapacityExceeded
}

// checkCapacity fails when adding entries to current would exceed limit.
// A limit of zero is unlimited.
func checkCapacity(current, adding, limit int) error {
	if limit <= 0 || current+adding <= limit {
		return nil
	}
	return &CapacityError{Current: current, Adding: adding, Limit: limit}
}

// checkDuplicateIDs rejects ids already in the ledger and ids repeated
// within ids itself.
func (e *Engine) checkDuplicateIDs(ids []string) error {
	seen := make(map[string]bool, len(ids))
	for i, id := range ids {
		if e.state.HasID(id) || seen[id] {
			return fmt.Errorf("records[%d]: %w: %q", i, ErrDuplicateRecordID, id)
		}
		seen[id] = true
	}
	return nil
}

// checkDuplicateEntry rejects h when the ledger or seen already holds it.
func (e *Engine) checkDuplicateEntry(h core.Hash, seen map[core.Hash]bool) error {
	if _, ok := e.state.ByHash(h); ok || seen[h] {
		return fmt.Errorf("%w: %s", ErrDuplicateEntry, h)
	}
	return nil
}
