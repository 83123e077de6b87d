package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/roach88/chainledger/internal/core"
)

// createTestStore opens an initialized SQLite store in a temp directory.
func createTestStore(t *testing.T) *SQLite {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}
	return s
}

func testRecord(id string, ts uint64) core.Record {
	return core.Record{
		ID:        id,
		Stream:    "proofs",
		Timestamp: ts,
		Payload: map[string]any{
			"subject_oid": "oid:onoal:user:" + id,
			"issuer_oid":  "oid:onoal:org:acme",
			"level":       int64(ts % 7),
		},
	}
}

// buildChain returns n correctly linked entries.
func buildChain(t *testing.T, n int) []core.ChainEntry {
	t.Helper()
	entries := make([]core.ChainEntry, 0, n)
	var prev *core.Hash
	for i := 0; i < n; i++ {
		e, err := core.NewChainEntry(testRecord(fmt.Sprintf("rec-%03d", i), uint64(1000+i)), prev)
		if err != nil {
			t.Fatalf("NewChainEntry(%d) failed: %v", i, err)
		}
		entries = append(entries, e)
		prev = &e.Hash
	}
	return entries
}

func saveAll(t *testing.T, s Backend, entries []core.ChainEntry) {
	t.Helper()
	for i, e := range entries {
		if err := s.SaveEntry(context.Background(), e); err != nil {
			t.Fatalf("SaveEntry(%d) failed: %v", i, err)
		}
	}
}

func hashesOf(entries []core.ChainEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Hash.String()
	}
	return out
}
