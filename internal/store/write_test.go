package store

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chainledger/internal/core"
)

func TestSaveEntry_Basic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	entry := buildChain(t, 1)[0]

	if err := s.SaveEntry(ctx, entry); err != nil {
		t.Fatalf("SaveEntry() failed: %v", err)
	}

	var hash, recordID, stream, payload string
	var prev *string
	var ts int64
	err := s.db.QueryRow(`
		SELECT hash, prev_hash, record_id, stream, timestamp, payload
		FROM entries
		WHERE hash = ?
	`, entry.Hash.String()).Scan(&hash, &prev, &recordID, &stream, &ts, &payload)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}

	if recordID != entry.Record.ID {
		t.Errorf("record_id = %q, want %q", recordID, entry.Record.ID)
	}
	if stream != "proofs" {
		t.Errorf("stream = %q, want %q", stream, "proofs")
	}
	if ts != int64(entry.Record.Timestamp) {
		t.Errorf("timestamp = %d, want %d", ts, entry.Record.Timestamp)
	}
	if prev != nil {
		t.Errorf("prev_hash = %q, want NULL for genesis", *prev)
	}
	want := string(core.MustCanonicalize(entry.Record.Payload))
	if payload != want {
		t.Errorf("payload = %s, want %s", payload, want)
	}
}

func TestSaveEntry_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	entry := buildChain(t, 1)[0]

	for i := 0; i < 3; i++ {
		if err := s.SaveEntry(ctx, entry); err != nil {
			t.Fatalf("SaveEntry() iteration %d failed: %v", i, err)
		}
	}

	n, err := s.EntryCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSaveEntry_UnencodablePayload(t *testing.T) {
	s := createTestStore(t)
	entry := buildChain(t, 1)[0]
	entry.Record.Payload = map[string]any{"ch": make(chan int)}

	err := s.SaveEntry(context.Background(), entry)
	require.Error(t, err)
	assert.Equal(t, CodeSerialization, CodeOf(err))
}

func TestSaveEntries_Batch(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	entries := buildChain(t, 5)

	require.NoError(t, s.SaveEntries(ctx, entries))

	loaded, err := s.LoadAllEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, hashesOf(entries), hashesOf(loaded))
}

func TestSaveEntries_Empty(t *testing.T) {
	s := createTestStore(t)
	require.NoError(t, s.SaveEntries(context.Background(), nil))
}

func TestSaveEntries_SerializationFailureWritesNothing(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	entries := buildChain(t, 3)
	entries[2].Record.Payload = map[string]any{"bad": func() {}}

	err := s.SaveEntries(ctx, entries)
	require.Error(t, err)
	assert.Equal(t, CodeSerialization, CodeOf(err))

	n, err := s.EntryCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSaveEntries_RollsBackOnCancel(t *testing.T) {
	s := createTestStore(t)
	entries := buildChain(t, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, s.SaveEntries(ctx, entries))

	n, err := s.EntryCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

var insertPattern = regexp.QuoteMeta("INSERT INTO entries")

func newMockStore(t *testing.T) (*SQLite, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLiteFromDB(db), mock
}

func TestSaveEntries_DatabaseFailures(t *testing.T) {
	boom := errors.New("boom")
	entries := buildChain(t, 2)

	tests := []struct {
		name   string
		expect func(mock sqlmock.Sqlmock)
		op     string
	}{
		{
			name: "begin fails",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin().WillReturnError(boom)
			},
			op: "begin transaction",
		},
		{
			name: "second insert fails",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(insertPattern).WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectExec(insertPattern).WillReturnError(boom)
				mock.ExpectRollback()
			},
			op: "save entries",
		},
		{
			name: "commit fails",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(insertPattern).WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectExec(insertPattern).WillReturnResult(sqlmock.NewResult(2, 1))
				mock.ExpectCommit().WillReturnError(boom)
			},
			op: "commit entries",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)
			tt.expect(mock)

			err := s.SaveEntries(context.Background(), entries)
			require.Error(t, err)
			assert.ErrorIs(t, err, boom)

			var se *Error
			require.ErrorAs(t, err, &se)
			assert.Equal(t, CodeDatabase, se.Code)
			assert.Equal(t, tt.op, se.Op)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSaveEntry_DatabaseFailure(t *testing.T) {
	s, mock := newMockStore(t)
	entry := buildChain(t, 1)[0]

	mock.ExpectExec(insertPattern).WillReturnError(errors.New("disk full"))

	err := s.SaveEntry(context.Background(), entry)
	require.Error(t, err)
	assert.Equal(t, CodeDatabase, CodeOf(err))
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}
