package store

import (
	"context"

	"github.com/roach88/chainledger/internal/core"
)

const insertEntrySQL = `
	INSERT INTO entries (` + entryColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(hash) DO NOTHING
`

// SaveEntry inserts an entry. Uses ON CONFLICT(hash) DO NOTHING so
// repeated saves of the same entry are silently ignored.
func (s *SQLite) SaveEntry(ctx context.Context, entry core.ChainEntry) error {
	row, err := toRow(entry)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, insertEntrySQL, rowArgs(row)...); err != nil {
		return newError(CodeDatabase, "save entry", err)
	}
	return nil
}

// SaveEntries inserts all entries in a single transaction. Any failure
// rolls back every insert of the call.
func (s *SQLite) SaveEntries(ctx context.Context, entries []core.ChainEntry) error {
	if len(entries) == 0 {
		return nil
	}

	rows := make([]entryRow, len(entries))
	for i, e := range entries {
		row, err := toRow(e)
		if err != nil {
			return err
		}
		rows[i] = row
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return newError(CodeDatabase, "begin transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, row := range rows {
		if _, err := tx.ExecContext(ctx, insertEntrySQL, rowArgs(row)...); err != nil {
			return newError(CodeDatabase, "save entries", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return newError(CodeDatabase, "commit entries", err)
	}
	return nil
}

func rowArgs(r entryRow) []any {
	return []any{r.Hash, r.PrevHash, r.RecordID, r.Stream, r.Timestamp, r.Payload, r.Meta, r.Serialized}
}
