package engine

import "github.com/roach88/chainledger/internal/core"

// State is the in-memory view of the chain: entries in append order
// plus indexes by hash and by record id.
//
// INVARIANTS:
//   - entries only grow; nothing is ever removed
//   - tip is the hash of the last entry, nil while empty
//   - byID is last write wins: a repeated id points at its latest entry
//
// State is owned by one Engine and is not safe for concurrent use.
type State struct {
	entries []core.ChainEntry
	byHash  map[core.Hash]int
	byID    map[string]int
	tip     *core.Hash
}

// NewState returns an empty state.
func NewState() *State {
	return &State{
		byHash: make(map[core.Hash]int),
		byID:   make(map[string]int),
	}
}

// Append adds an entry and advances the tip. The caller guarantees the
// entry is linked to the current tip.
func (s *State) Append(entry core.ChainEntry) {
	idx := len(s.entries)
	s.entries = append(s.entries, entry)
	s.byHash[entry.Hash] = idx
	s.byID[entry.Record.ID] = idx
	s.tip = entry.Hash.Ptr()
}

func (s *State) ByHash(h core.Hash) (core.ChainEntry, bool) {
	idx, ok := s.byHash[h]
	if !ok {
		return core.ChainEntry{}, false
	}
	return s.entries[idx], true
}

func (s *State) ByID(id string) (core.ChainEntry, bool) {
	idx, ok := s.byID[id]
	if !ok {
		return core.ChainEntry{}, false
	}
	return s.entries[idx], true
}

func (s *State) HasID(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// Tip returns a copy of the latest hash, nil for an empty chain.
func (s *State) Tip() *core.Hash {
	if s.tip == nil {
		return nil
	}
	return s.tip.Ptr()
}

func (s *State) Latest() (core.ChainEntry, bool) {
	if len(s.entries) == 0 {
		return core.ChainEntry{}, false
	}
	return s.entries[len(s.entries)-1], true
}

// Entries returns the backing slice. Callers must not modify it.
func (s *State) Entries() []core.ChainEntry {
	return s.entries
}

func (s *State) Len() int {
	return len(s.entries)
}

func (s *State) IsEmpty() bool {
	return len(s.entries) == 0
}

// ByStream returns the entries on stream in append order.
func (s *State) ByStream(stream string) []core.ChainEntry {
	var out []core.ChainEntry
	for _, e := range s.entries {
		if e.Record.Stream == stream {
			out = append(out, e)
		}
	}
	return out
}

// Range returns entries[start:end], clamped to the chain bounds.
func (s *State) Range(start, end int) []core.ChainEntry {
	if start < 0 {
		start = 0
	}
	if end > len(s.entries) {
		end = len(s.entries)
	}
	if start >= end {
		return nil
	}
	return s.entries[start:end]
}
