package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chainledger/internal/core"
)

func TestLoadEntry(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	entries := buildChain(t, 3)
	saveAll(t, s, entries)

	got, ok, err := s.LoadEntry(ctx, entries[1].Hash)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, entries[1].Hash, got.Hash)
	assert.True(t, core.HashEqual(entries[1].PrevHash, got.PrevHash))
	assert.Equal(t, entries[1].Record.ID, got.Record.ID)
	assert.NoError(t, got.VerifyHash())
}

func TestLoadEntry_Missing(t *testing.T) {
	s := createTestStore(t)

	_, ok, err := s.LoadEntry(context.Background(), core.SumBytes([]byte("nope")))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadEntry_PreservesMeta(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := testRecord("with-meta", 10)
	rec.Meta = map[string]any{"source": "import", "tags": []any{"a", "b"}}
	entry, err := core.Genesis(rec)
	require.NoError(t, err)
	require.NoError(t, s.SaveEntry(ctx, entry))

	got, ok, err := s.LoadEntry(ctx, entry.Hash)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, got.Record.Meta)
	assert.Equal(t, core.MustCanonicalize(rec.Meta), core.MustCanonicalize(got.Record.Meta))
	assert.NoError(t, got.VerifyHash())
}

func TestLoadAllEntries_Empty(t *testing.T) {
	s := createTestStore(t)

	entries, err := s.LoadAllEntries(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestLoadAllEntries_InsertionOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	entries := buildChain(t, 10)
	saveAll(t, s, entries)

	loaded, err := s.LoadAllEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, hashesOf(entries), hashesOf(loaded))
	assert.True(t, core.VerifyChain(loaded).Valid)
}

func TestEntryCountAndLatestHash(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	latest, err := s.LatestHash(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	entries := buildChain(t, 4)
	saveAll(t, s, entries)

	n, err := s.EntryCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	latest, err = s.LatestHash(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, entries[3].Hash, *latest)
}

func TestLoadEntriesRange(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	entries := buildChain(t, 6)
	saveAll(t, s, entries)
	all := hashesOf(entries)

	tests := []struct {
		name  string
		from  *core.Hash
		limit int
		want  []string
	}{
		{"from start unbounded", nil, 0, all},
		{"from start limited", nil, 2, all[:2]},
		{"from middle", &entries[3].Hash, 0, all[3:]},
		{"from middle limited", &entries[1].Hash, 3, all[1:4]},
		{"from last", &entries[5].Hash, 10, all[5:]},
		{"negative limit", &entries[4].Hash, -5, all[4:]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.LoadEntriesRange(ctx, tt.from, tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, hashesOf(got))
		})
	}
}

func TestLoadEntriesRange_UnknownHash(t *testing.T) {
	s := createTestStore(t)
	saveAll(t, s, buildChain(t, 2))

	missing := core.SumBytes([]byte("missing"))
	_, err := s.LoadEntriesRange(context.Background(), &missing, 10)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}
