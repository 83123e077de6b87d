package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/roach88/chainledger/internal/core"
)

// LoadEntry returns the entry stored under hash.
func (s *SQLite) LoadEntry(ctx context.Context, hash core.Hash) (core.ChainEntry, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM entries
		WHERE hash = ?
	`, hash.String())

	r, err := scanEntryRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ChainEntry{}, false, nil
	}
	if err != nil {
		return core.ChainEntry{}, false, newError(CodeDatabase, "load entry", err)
	}

	entry, err := r.toEntry()
	if err != nil {
		return core.ChainEntry{}, false, err
	}
	return entry, true, nil
}

// LoadAllEntries returns every entry ordered by insertion (seq ASC).
// Returns an empty slice (not nil) for an empty store.
func (s *SQLite) LoadAllEntries(ctx context.Context) ([]core.ChainEntry, error) {
	return s.queryEntries(ctx, "load all entries", `
		SELECT `+entryColumns+`
		FROM entries
		ORDER BY seq ASC
	`)
}

// EntryCount returns the number of stored entries.
func (s *SQLite) EntryCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries").Scan(&n); err != nil {
		return 0, newError(CodeDatabase, "count entries", err)
	}
	return n, nil
}

// LatestHash returns the hash of the most recently inserted entry.
func (s *SQLite) LatestHash(ctx context.Context) (*core.Hash, error) {
	var hex string
	err := s.db.QueryRowContext(ctx, "SELECT hash FROM entries ORDER BY seq DESC LIMIT 1").Scan(&hex)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, newError(CodeDatabase, "latest hash", err)
	}
	h, err := core.ParseHash(hex)
	if err != nil {
		return nil, newError(CodeDeserialization, "latest hash", err)
	}
	return &h, nil
}

func (s *SQLite) queryEntries(ctx context.Context, op, query string, args ...any) ([]core.ChainEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, newError(CodeDatabase, op, err)
	}
	defer rows.Close()

	entries := []core.ChainEntry{}
	for rows.Next() {
		r, err := scanEntryRow(rows)
		if err != nil {
			return nil, newError(CodeDatabase, op, err)
		}
		entry, err := r.toEntry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, newError(CodeDatabase, op, err)
	}
	return entries, nil
}
