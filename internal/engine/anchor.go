package engine

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/chainledger/internal/core"
)

var (
	// ErrEmptyLedger is wrapped by the Validation error from Anchor on a
	// ledger with no entries.
	ErrEmptyLedger = errors.New("ledger is empty")

	// ErrAnchorMismatch is wrapped by ChainIntegrity errors from VerifyAnchor.
	ErrAnchorMismatch = errors.New("anchor does not match chain")
)

// Anchor checkpoints the current tip under id. The timestamp is taken
// from the engine clock in milliseconds.
func (e *Engine) Anchor(id string) (core.Anchor, error) {
	const op = "anchor"

	tip, ok := e.state.Latest()
	if !ok {
		return core.Anchor{}, newError(KindValidation, op, ErrEmptyLedger)
	}
	a := core.Anchor{
		ID:         id,
		Hash:       tip.Hash,
		Timestamp:  core.NowMillis(e.now()),
		EntryCount: uint64(e.state.Len()),
	}
	if err := a.Validate(); err != nil {
		return core.Anchor{}, newError(KindValidation, op, err)
	}
	e.logger.Debug("anchor taken",
		zap.String("anchor", a.ID),
		zap.Stringer("hash", a.Hash),
		zap.Uint64("entries", a.EntryCount),
	)
	return a, nil
}

// VerifyAnchor checks that the entry at the anchor's position still
// carries the anchored hash. Entries appended after the anchor do not
// affect the result.
func (e *Engine) VerifyAnchor(a core.Anchor) error {
	const op = "verify anchor"

	if err := a.Validate(); err != nil {
		return newError(KindValidation, op, err)
	}
	n := uint64(e.state.Len())
	if a.EntryCount > n {
		return newError(KindChainIntegrity, op,
			fmt.Errorf("%w: %d entries anchored, ledger has %d", ErrAnchorMismatch, a.EntryCount, n))
	}
	got := e.state.Entries()[a.EntryCount-1].Hash
	if got != a.Hash {
		return newError(KindChainIntegrity, op,
			fmt.Errorf("%w: entry %d is %s, anchor has %s", ErrAnchorMismatch, a.EntryCount-1, got, a.Hash))
	}
	return nil
}
