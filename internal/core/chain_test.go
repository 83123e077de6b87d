package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildChain returns n correctly linked entries with increasing timestamps.
func buildChain(t *testing.T, n int) []ChainEntry {
	t.Helper()

	entries := make([]ChainEntry, 0, n)
	var prev *Hash
	for i := 0; i < n; i++ {
		e, err := NewChainEntry(testRecord(string(rune('a'+i)), uint64(1000+i)), prev)
		require.NoError(t, err)
		entries = append(entries, e)
		prev = e.Hash.Ptr()
	}
	return entries
}

func TestGenesis(t *testing.T) {
	e, err := Genesis(testRecord("r1", 1))
	require.NoError(t, err)

	assert.True(t, e.IsGenesis())
	assert.Equal(t, MustComputeHash(e.Record), e.Hash)
	assert.NoError(t, e.VerifyHash())
}

func TestNewChainEntryRejectsInvalidRecord(t *testing.T) {
	_, err := NewChainEntry(testRecord("", 1), nil)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestNewChainEntryCopiesPrev(t *testing.T) {
	prev := SumBytes([]byte("prev"))
	e, err := NewChainEntry(testRecord("r1", 1), &prev)
	require.NoError(t, err)

	prev[0] ^= 0xff
	assert.NotEqual(t, prev, *e.PrevHash)
}

func TestVerifyHashDetectsTampering(t *testing.T) {
	e, err := Genesis(testRecord("r1", 1))
	require.NoError(t, err)

	e.Record.Payload = map[string]any{"n": 2}
	err = e.VerifyHash()
	require.Error(t, err)

	var ce *ChainError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, HashMismatch, ce.Kind)
}

func TestVerifyChainEmpty(t *testing.T) {
	result := VerifyChain(nil)
	assert.True(t, result.Valid)
	assert.Zero(t, result.EntriesChecked)
	assert.NoError(t, result.Err())
}

func TestVerifyChainValid(t *testing.T) {
	entries := buildChain(t, 6)

	result := VerifyChain(entries)
	assert.True(t, result.Valid)
	assert.Equal(t, 6, result.EntriesChecked)
	assert.Empty(t, result.Errors)
	assert.NoError(t, result.Err())
}

func TestVerifyChainHashMismatch(t *testing.T) {
	for k := 0; k < 4; k++ {
		entries := buildChain(t, 4)
		entries[k].Hash = SumBytes([]byte("corrupt"))
		if k+1 < len(entries) {
			// keep the successor pointing at the stored (corrupted) hash
			entries[k+1].PrevHash = entries[k].Hash.Ptr()
		}

		result := VerifyChain(entries)
		assert.False(t, result.Valid)
		assert.Equal(t, 4, result.EntriesChecked)
		assert.Equal(t, 1, result.HashMismatches, "k=%d", k)
		assert.Zero(t, result.ChainLinkErrors, "k=%d", k)
		assert.Equal(t, k, result.Errors[0].Index)
	}
}

func TestVerifyChainBrokenLink(t *testing.T) {
	entries := buildChain(t, 5)
	entries[3].PrevHash = SumBytes([]byte("wrong")).Ptr()

	result := VerifyChain(entries)
	assert.False(t, result.Valid)
	assert.Equal(t, 1, result.ChainLinkErrors)
	assert.Zero(t, result.HashMismatches)
	assert.Equal(t, BrokenLink, result.Errors[0].Kind)
	assert.Equal(t, 3, result.Errors[0].Index)
}

func TestVerifyChainGenesisWithPrev(t *testing.T) {
	entries := buildChain(t, 2)
	entries[0].PrevHash = SumBytes([]byte("phantom")).Ptr()

	result := VerifyChain(entries)
	assert.Equal(t, 1, result.ChainLinkErrors)
}

func TestVerifyChainMissingLink(t *testing.T) {
	entries := buildChain(t, 3)
	entries[2].PrevHash = nil

	result := VerifyChain(entries)
	assert.Equal(t, 1, result.ChainLinkErrors)
}

func TestVerifyChainTimestampOrder(t *testing.T) {
	first, err := Genesis(testRecord("a", 2000))
	require.NoError(t, err)
	second, err := NewChainEntry(testRecord("b", 1000), first.Hash.Ptr())
	require.NoError(t, err)
	third, err := NewChainEntry(testRecord("c", 1000), second.Hash.Ptr())
	require.NoError(t, err)

	result := VerifyChain([]ChainEntry{first, second, third})
	assert.False(t, result.Valid)
	assert.Equal(t, 1, result.TimestampErrors, "equal timestamps are allowed")
	assert.Zero(t, result.HashMismatches)
	assert.Zero(t, result.ChainLinkErrors)
}

func TestVerifyChainAccumulatesWithoutShortCircuit(t *testing.T) {
	entries := buildChain(t, 4)
	// hash mismatch at 1, link break at 2
	entries[1].Hash = SumBytes([]byte("corrupt"))
	// hash mismatch, timestamp order and link break at 3
	entries[3].Record.Timestamp = 1
	entries[3].PrevHash = SumBytes([]byte("also wrong")).Ptr()

	result := VerifyChain(entries)
	assert.False(t, result.Valid)
	assert.Equal(t, 4, result.EntriesChecked)
	assert.Equal(t, 2, result.HashMismatches)
	assert.Equal(t, 2, result.ChainLinkErrors)
	assert.Equal(t, 1, result.TimestampErrors)
	assert.Len(t, result.Errors, 5)

	err := result.Err()
	ie, ok := AsIntegrityError(err)
	require.True(t, ok)
	assert.Equal(t, 5, len(ie.Result.Errors))
	assert.Contains(t, err.Error(), "hash=2 link=2 timestamp=1")

	var ce *ChainError
	assert.ErrorAs(t, err, &ce)
}
