package core

import (
	"fmt"
	"strconv"
)

// ChainEntry links a record to its predecessor.
//
// Invariant: Hash == ComputeHash(Record). PrevHash is nil only for the
// genesis entry.
type ChainEntry struct {
	Record   Record `json:"record" yaml:"record"`
	Hash     Hash   `json:"hash" yaml:"hash"`
	PrevHash *Hash  `json:"prev_hash,omitempty" yaml:"prev_hash,omitempty"`
}

// NewChainEntry validates record, hashes it, and links it to prev.
func NewChainEntry(record Record, prev *Hash) (ChainEntry, error) {
	if err := record.Validate(); err != nil {
		return ChainEntry{}, err
	}
	h, err := ComputeHash(record)
	if err != nil {
		return ChainEntry{}, err
	}
	var link *Hash
	if prev != nil {
		link = prev.Ptr()
	}
	return ChainEntry{Record: record, Hash: h, PrevHash: link}, nil
}

// Genesis builds the first entry of a chain.
func Genesis(record Record) (ChainEntry, error) {
	return NewChainEntry(record, nil)
}

// IsGenesis reports whether e has no predecessor.
func (e ChainEntry) IsGenesis() bool {
	return e.PrevHash == nil
}

// VerifyHash recomputes the record hash and compares it to the stored one.
func (e ChainEntry) VerifyHash() error {
	if err := e.verifyHashAt(0); err != nil {
		return err
	}
	return nil
}

func (e ChainEntry) verifyHashAt(index int) *ChainError {
	computed, err := ComputeHash(e.Record)
	if err != nil {
		return &ChainError{Kind: HashMismatch, Index: index, Expected: e.Hash.String(), Actual: fmt.Sprintf("unhashable: %v", err)}
	}
	if computed != e.Hash {
		return &ChainError{Kind: HashMismatch, Index: index, Expected: e.Hash.String(), Actual: computed.String()}
	}
	return nil
}

// VerificationResult summarises a VerifyChain run.
type VerificationResult struct {
	Valid           bool          `json:"valid" yaml:"valid"`
	EntriesChecked  int           `json:"entries_checked" yaml:"entries_checked"`
	Errors          []*ChainError `json:"-" yaml:"-"`
	HashMismatches  int           `json:"hash_mismatches" yaml:"hash_mismatches"`
	ChainLinkErrors int           `json:"chain_link_errors" yaml:"chain_link_errors"`
	TimestampErrors int           `json:"timestamp_errors" yaml:"timestamp_errors"`
}

// Err returns nil for a valid result and an *IntegrityError otherwise.
func (r VerificationResult) Err() error {
	if r.Valid {
		return nil
	}
	return &IntegrityError{Result: r}
}

func (r *VerificationResult) add(err *ChainError) {
	r.Errors = append(r.Errors, err)
	switch err.Kind {
	case HashMismatch:
		r.HashMismatches++
	case BrokenLink:
		r.ChainLinkErrors++
	case TimestampOrder:
		r.TimestampErrors++
	}
}

// VerifyChain checks every entry for hash integrity, linkage to the
// previous entry's stored hash, and non-decreasing timestamps. All checks
// run for every entry; errors accumulate. An empty chain is valid.
func VerifyChain(entries []ChainEntry) VerificationResult {
	result := VerificationResult{Errors: []*ChainError{}}

	for i, entry := range entries {
		result.EntriesChecked++

		if err := entry.verifyHashAt(i); err != nil {
			result.add(err)
		}

		if i == 0 {
			if entry.PrevHash != nil {
				result.add(&ChainError{Kind: BrokenLink, Index: i, Expected: "none", Actual: entry.PrevHash.String()})
			}
			continue
		}

		prev := entries[i-1]
		if entry.PrevHash == nil {
			result.add(&ChainError{Kind: BrokenLink, Index: i, Expected: prev.Hash.String(), Actual: "none"})
		} else if *entry.PrevHash != prev.Hash {
			result.add(&ChainError{Kind: BrokenLink, Index: i, Expected: prev.Hash.String(), Actual: entry.PrevHash.String()})
		}

		if entry.Record.Timestamp < prev.Record.Timestamp {
			result.add(&ChainError{
				Kind:     TimestampOrder,
				Index:    i,
				Expected: strconv.FormatUint(prev.Record.Timestamp, 10),
				Actual:   strconv.FormatUint(entry.Record.Timestamp, 10),
			})
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}
