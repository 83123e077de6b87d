package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/chainledger/internal/core"
)

// Loading a Persisted Ledger
//
// Persisted bytes are never trusted. On construction the engine:
//
//	[Initialize] → [LoadAllEntries] → [VerifyChain] → [State.Append ...]
//
// LoadAllEntries returns entries in insertion order, which is append
// order, so replaying them into State rebuilds the exact tip and indexes
// the previous process had. Stored hashes are carried through unchanged,
// so any edit to a persisted record, hash or link shows up as a
// verification error here and construction fails.

// hydrate loads and verifies the persisted chain, then replays it into
// state.
func (e *Engine) hydrate(ctx context.Context) error {
	const op = "load ledger"
	start := time.Now()

	if err := e.storage.Initialize(ctx); err != nil {
		return newError(KindStorage, op, err)
	}
	entries, err := e.storage.LoadAllEntries(ctx)
	if err != nil {
		return newError(KindStorage, op, err)
	}

	if len(entries) > 0 {
		result := core.VerifyChain(entries)
		e.metrics.verified(result.Valid)
		if !result.Valid {
			e.logger.Error("persisted chain failed verification",
				zap.Int("entries", result.EntriesChecked),
				zap.Int("hash_mismatches", result.HashMismatches),
				zap.Int("chain_link_errors", result.ChainLinkErrors),
				zap.Int("timestamp_errors", result.TimestampErrors),
			)
			return integrityError(op, result)
		}
	}

	for _, entry := range entries {
		e.state.Append(entry)
	}
	e.metrics.loaded(e.state.Len())
	e.logger.Info("ledger loaded",
		zap.Int("entries", len(entries)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}
