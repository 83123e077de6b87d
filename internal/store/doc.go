// Package store persists chain entries and reloads them for verification.
//
// Backends:
//   - SQLite: embedded file database (mattn/go-sqlite3), the reference backend
//   - Postgres: external server (pgx), same table layout
//
// # Persisted Layout
//
// One table, entries, one row per chain entry:
//   - hash: hex SHA-256, UNIQUE; inserts use ON CONFLICT DO NOTHING
//   - prev_hash: hex, NULL for genesis
//   - record_id, stream, timestamp, payload, meta: denormalized for queries
//   - serialized: canonical record JSON, the only source used to rebuild
//   - seq: monotonic insertion marker, the only ordering key on load
//
// Stored hashes are carried back unchanged. Nothing loaded from a backend
// is trusted until core.VerifyChain has run over it.
//
// # SQLite Configuration
//
//   - WAL mode
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - schema version tracked in PRAGMA user_version
package store
