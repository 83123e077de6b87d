package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/roach88/chainledger/internal/core"
)

//go:embed schema_postgres.sql
var postgresSchemaSQL string

const pgInsertEntrySQL = `
	INSERT INTO entries (` + entryColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb, $8)
	ON CONFLICT (hash) DO NOTHING
`

// pgEntryColumns casts the JSONB columns back to text so rows scan like SQLite's.
const pgEntryColumns = `hash, prev_hash, record_id, stream, timestamp, payload::text, meta::text, serialized`

// Postgres is a Backend on a PostgreSQL server, for ledgers whose storage
// lives outside the process.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgres wraps an existing pool. Close closes the pool.
func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) *Postgres {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Postgres{pool: pool, logger: logger}
}

// OpenPostgres connects to dsn and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string, logger *zap.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, newError(CodeDatabase, "open postgres", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, newError(CodeDatabase, "connect to postgres", err)
	}
	return NewPostgres(pool, logger), nil
}

func (p *Postgres) Initialize(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, postgresSchemaSQL); err != nil {
		return newError(CodeDatabase, "apply schema", err)
	}
	return nil
}

func (p *Postgres) SaveEntry(ctx context.Context, entry core.ChainEntry) error {
	row, err := toRow(entry)
	if err != nil {
		return err
	}
	if _, err := p.pool.Exec(ctx, pgInsertEntrySQL, rowArgs(row)...); err != nil {
		return newError(CodeDatabase, "save entry", err)
	}
	p.logger.Debug("entry saved", zap.String("hash", row.Hash), zap.String("stream", row.Stream))
	return nil
}

func (p *Postgres) SaveEntries(ctx context.Context, entries []core.ChainEntry) error {
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

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return newError(CodeDatabase, "begin transaction", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, row := range rows {
		if _, err := tx.Exec(ctx, pgInsertEntrySQL, rowArgs(row)...); err != nil {
			return newError(CodeDatabase, "save entries", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return newError(CodeDatabase, "commit entries", err)
	}
	p.logger.Debug("entries saved", zap.Int("count", len(rows)))
	return nil
}

func (p *Postgres) LoadEntry(ctx context.Context, hash core.Hash) (core.ChainEntry, bool, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+pgEntryColumns+` FROM entries WHERE hash = $1`, hash.String())

	r, err := scanEntryRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
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

func (p *Postgres) LoadAllEntries(ctx context.Context) ([]core.ChainEntry, error) {
	return p.queryEntries(ctx, "load all entries",
		`SELECT `+pgEntryColumns+` FROM entries ORDER BY seq ASC`)
}

func (p *Postgres) LoadEntriesRange(ctx context.Context, from *core.Hash, limit int) ([]core.ChainEntry, error) {
	// LIMIT NULL is unbounded in PostgreSQL.
	var sqlLimit *int
	if limit > 0 {
		sqlLimit = &limit
	}

	if from == nil {
		return p.queryEntries(ctx, "load entries range",
			`SELECT `+pgEntryColumns+` FROM entries ORDER BY seq ASC LIMIT $1`, sqlLimit)
	}

	var startSeq int64
	err := p.pool.QueryRow(ctx, "SELECT seq FROM entries WHERE hash = $1", from.String()).Scan(&startSeq)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, newError(CodeNotFound, "load entries range", fmt.Errorf("no entry with hash %s", from))
	}
	if err != nil {
		return nil, newError(CodeDatabase, "load entries range", err)
	}

	return p.queryEntries(ctx, "load entries range",
		`SELECT `+pgEntryColumns+` FROM entries WHERE seq >= $1 ORDER BY seq ASC LIMIT $2`, startSeq, sqlLimit)
}

func (p *Postgres) EntryCount(ctx context.Context) (int, error) {
	var n int
	if err := p.pool.QueryRow(ctx, "SELECT COUNT(*) FROM entries").Scan(&n); err != nil {
		return 0, newError(CodeDatabase, "count entries", err)
	}
	return n, nil
}

func (p *Postgres) LatestHash(ctx context.Context) (*core.Hash, error) {
	var hex string
	err := p.pool.QueryRow(ctx, "SELECT hash FROM entries ORDER BY seq DESC LIMIT 1").Scan(&hex)
	if errors.Is(err, pgx.ErrNoRows) {
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

func (p *Postgres) VerifyIntegrity(ctx context.Context) error {
	return verifyIntegrity(ctx, p)
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) queryEntries(ctx context.Context, op, query string, args ...any) ([]core.ChainEntry, error) {
	rows, err := p.pool.Query(ctx, query, args...)
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

var _ Backend = (*Postgres)(nil)
