package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/chainledger/internal/core"
)

// LoadEntriesRange returns up to limit entries in insertion order, starting
// at from (inclusive). Used to replay a suffix of the chain without loading
// everything.
func (s *SQLite) LoadEntriesRange(ctx context.Context, from *core.Hash, limit int) ([]core.ChainEntry, error) {
	// SQLite treats a negative LIMIT as unbounded.
	sqlLimit := limit
	if sqlLimit <= 0 {
		sqlLimit = -1
	}

	if from == nil {
		return s.queryEntries(ctx, "load entries range", `
			SELECT `+entryColumns+`
			FROM entries
			ORDER BY seq ASC
			LIMIT ?
		`, sqlLimit)
	}

	var startSeq int64
	err := s.db.QueryRowContext(ctx, "SELECT seq FROM entries WHERE hash = ?", from.String()).Scan(&startSeq)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, newError(CodeNotFound, "load entries range", fmt.Errorf("no entry with hash %s", from))
	}
	if err != nil {
		return nil, newError(CodeDatabase, "load entries range", err)
	}

	return s.queryEntries(ctx, "load entries range", `
		SELECT `+entryColumns+`
		FROM entries
		WHERE seq >= ?
		ORDER BY seq ASC
		LIMIT ?
	`, startSeq, sqlLimit)
}
