package store

import (
	"database/sql"
	"fmt"

	"github.com/roach88/chainledger/internal/core"
)

// entryRow is the persisted form of a chain entry. The denormalized
// record columns exist for ad-hoc queries; serialized is the canonical
// record and the only column used to rebuild the entry.
type entryRow struct {
	Hash       string
	PrevHash   sql.NullString
	RecordID   string
	Stream     string
	Timestamp  int64
	Payload    string
	Meta       sql.NullString
	Serialized string
}

// entryColumns lists columns in scan order.
const entryColumns = `hash, prev_hash, record_id, stream, timestamp, payload, meta, serialized`

// toRow serializes an entry with canonical JSON.
func toRow(entry core.ChainEntry) (entryRow, error) {
	serialized, err := core.CanonicalRecord(entry.Record)
	if err != nil {
		return entryRow{}, newError(CodeSerialization, "encode record", err)
	}
	payload, err := core.Canonicalize(entry.Record.Payload)
	if err != nil {
		return entryRow{}, newError(CodeSerialization, "encode payload", err)
	}

	row := entryRow{
		Hash:       entry.Hash.String(),
		RecordID:   entry.Record.ID,
		Stream:     entry.Record.Stream,
		Timestamp:  int64(entry.Record.Timestamp),
		Payload:    string(payload),
		Serialized: string(serialized),
	}
	if entry.PrevHash != nil {
		row.PrevHash = sql.NullString{String: entry.PrevHash.String(), Valid: true}
	}
	if entry.Record.Meta != nil {
		meta, err := core.Canonicalize(entry.Record.Meta)
		if err != nil {
			return entryRow{}, newError(CodeSerialization, "encode meta", err)
		}
		row.Meta = sql.NullString{String: string(meta), Valid: true}
	}
	return row, nil
}

// toEntry rebuilds an entry from its row. The stored hash is carried
// through unchanged so the verifier can detect tampering.
func (r entryRow) toEntry() (core.ChainEntry, error) {
	hash, err := core.ParseHash(r.Hash)
	if err != nil {
		return core.ChainEntry{}, newError(CodeDeserialization, "decode hash", err)
	}

	var prev *core.Hash
	if r.PrevHash.Valid {
		p, err := core.ParseHash(r.PrevHash.String)
		if err != nil {
			return core.ChainEntry{}, newError(CodeDeserialization, "decode prev_hash", err)
		}
		prev = &p
	}

	record, err := core.DecodeRecord([]byte(r.Serialized))
	if err != nil {
		return core.ChainEntry{}, newError(CodeDeserialization, fmt.Sprintf("decode record %s", r.Hash), err)
	}
	return core.ChainEntry{Record: record, Hash: hash, PrevHash: prev}, nil
}

// scanner is satisfied by *sql.Row, *sql.Rows and pgx.Row.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntryRow(s scanner) (entryRow, error) {
	var r entryRow
	err := s.Scan(&r.Hash, &r.PrevHash, &r.RecordID, &r.Stream, &r.Timestamp, &r.Payload, &r.Meta, &r.Serialized)
	return r, err
}
