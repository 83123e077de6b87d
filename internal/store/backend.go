package store

import (
	"context"

	"github.com/roach88/chainledger/internal/core"
)

// Backend persists chain entries and reloads them in append order.
//
// Loaded entries are never trusted: callers run core.VerifyChain over
// them (VerifyIntegrity does exactly that).
type Backend interface {
	// Initialize creates the schema. Safe to call repeatedly.
	Initialize(ctx context.Context) error
	// SaveEntry upserts by hash; saving the same entry twice is a no-op.
	SaveEntry(ctx context.Context, entry core.ChainEntry) error
	// SaveEntries saves all entries in one transaction, or none.
	SaveEntries(ctx context.Context, entries []core.ChainEntry) error
	LoadEntry(ctx context.Context, hash core.Hash) (core.ChainEntry, bool, error)
	// LoadAllEntries returns entries in insertion order.
	LoadAllEntries(ctx context.Context) ([]core.ChainEntry, error)
	// LoadEntriesRange returns up to limit entries starting at from
	// (inclusive). A nil from starts at the beginning; limit <= 0 means
	// no limit. An unknown from hash is a NOT_FOUND error.
	LoadEntriesRange(ctx context.Context, from *core.Hash, limit int) ([]core.ChainEntry, error)
	EntryCount(ctx context.Context) (int, error)
	// LatestHash returns nil for an empty store.
	LatestHash(ctx context.Context) (*core.Hash, error)
	// VerifyIntegrity reloads everything and verifies the chain. An
	// invalid chain is an INTEGRITY_FAILED error wrapping *core.IntegrityError.
	VerifyIntegrity(ctx context.Context) error
	Close() error
}

// verifyIntegrity is shared by every backend.
func verifyIntegrity(ctx context.Context, b Backend) error {
	entries, err := b.LoadAllEntries(ctx)
	if err != nil {
		return err
	}
	if err := core.VerifyChain(entries).Err(); err != nil {
		return newError(CodeIntegrityFailed, "verify integrity", err)
	}
	return nil
}
