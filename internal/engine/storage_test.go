package engine

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chainledger/internal/core"
)

func sqliteConfig(path string) LedgerConfig {
	cfg := testConfig("proof", "asset")
	cfg.Storage = StorageConfig{Kind: StorageSQLite, Path: path}
	return cfg
}

func TestStorage_RoundTripAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "ledger.db")
	ctx := context.Background()

	recs := []core.Record{
		proofRecord("p1", 1000),
		assetRecord("a1", 1001, alice),
		proofRecord("p2", 1002),
	}

	e1, err := New(ctx, sqliteConfig(path))
	require.NoError(t, err)
	require.True(t, e1.HasStorage())
	for _, rec := range recs {
		_, err := e1.AppendRecord(ctx, rec, requestAs(alice))
		require.NoError(t, err)
	}
	tip := *e1.LatestHash()
	require.NoError(t, e1.Close())

	e2, _ := newTestEngine(t, sqliteConfig(path))
	assert.Equal(t, 3, e2.Len())
	assert.Equal(t, tip, *e2.LatestHash())
	for _, rec := range recs {
		got, ok := e2.GetRecordByID(rec.ID)
		require.True(t, ok, "record %s", rec.ID)
		assert.Equal(t, core.MustComputeHash(rec), core.MustComputeHash(got))
	}
	require.NoError(t, e2.Verify())

	ok, err := e2.VerifyStorage(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	// appends continue the reloaded chain
	h, err := e2.AppendRecord(ctx, proofRecord("p3", 1003), requestAs(alice))
	require.NoError(t, err)
	entry, _ := e2.GetEntry(h)
	assert.Equal(t, tip, *entry.PrevHash)
}

func TestStorage_CorruptedChainFailsClosed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	e1, err := New(ctx, sqliteConfig(path))
	require.NoError(t, err)
	hashes, err := e1.AppendBatch(ctx, proofRecords(4), requestAs(alice))
	require.NoError(t, err)
	require.NoError(t, e1.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(
		`UPDATE entries SET serialized = REPLACE(serialized, 'acme', 'evil') WHERE hash = ?`,
		hashes[1].String(),
	)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = New(ctx, sqliteConfig(path))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindChainIntegrity), "got %v", err)

	var ee *Error
	require.ErrorAs(t, err, &ee)
	require.NotNil(t, ee.Verification)
	assert.False(t, ee.Verification.Valid)
	assert.Equal(t, 4, ee.Verification.EntriesChecked)
	assert.Equal(t, 1, ee.Verification.HashMismatches)

	_, ok := core.AsIntegrityError(err)
	assert.True(t, ok)
}

func TestStorage_VerifyStorageDetectsLaterTampering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	e, _ := newTestEngine(t, sqliteConfig(path))
	hashes, err := e.AppendBatch(ctx, proofRecords(3), requestAs(alice))
	require.NoError(t, err)

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`UPDATE entries SET prev_hash = NULL WHERE hash = ?`, hashes[2].String())
	require.NoError(t, err)

	ok, err := e.VerifyStorage(ctx)
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, IsKind(err, KindChainIntegrity))

	// the in-memory chain is unaffected
	assert.NoError(t, e.Verify())
}

func TestStorage_NoBackend(t *testing.T) {
	e, _ := newTestEngine(t, testConfig())

	ok, err := e.VerifyStorage(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStorage_InjectedBackendIsClosed(t *testing.T) {
	fs := newFlakyStore(t)
	e, err := New(context.Background(), testConfig(), WithStorage(fs))
	require.NoError(t, err)
	require.NoError(t, e.Close())

	require.NoError(t, e.Close())
	assert.Equal(t, 1, fs.closes)
}

func TestStorage_RepeatedRecordIsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	e1, err := New(ctx, sqliteConfig(path))
	require.NoError(t, err)

	h, err := e1.AppendRecord(ctx, proofRecord("p1", 1000), requestAs(alice))
	require.NoError(t, err)

	_, err = e1.AppendRecord(ctx, proofRecord("p1", 1000), requestAs(alice))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindValidation))
	assert.ErrorIs(t, err, ErrDuplicateEntry)

	_, err = e1.AppendBatch(ctx, []core.Record{proofRecord("p2", 1001), proofRecord("p2", 1001)}, requestAs(alice))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateEntry)

	_, err = e1.AppendBatch(ctx, []core.Record{proofRecord("p3", 1002), proofRecord("p1", 1000)}, requestAs(alice))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateEntry)

	assert.Equal(t, 1, e1.Len())
	assert.Equal(t, h, *e1.LatestHash())
	require.NoError(t, e1.Close())

	e2, _ := newTestEngine(t, sqliteConfig(path))
	assert.Equal(t, 1, e2.Len())
	assert.Equal(t, h, *e2.LatestHash())
}
