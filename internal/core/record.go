package core

import (
	"encoding/json"
	"fmt"
	"math"
)

// MaxTimestamp is the largest accepted record timestamp. Storage
// backends keep timestamps in signed 64-bit columns.
const MaxTimestamp uint64 = math.MaxInt64

// Record is the atomic unit of the ledger.
//
// Payload must be a map or list. Meta is optional; nil means absent,
// and a present Meta participates in hashing.
type Record struct {
	ID        string `json:"id" yaml:"id"`
	Stream    string `json:"stream" yaml:"stream"`
	Timestamp uint64 `json:"timestamp" yaml:"timestamp"`
	Payload   any    `json:"payload" yaml:"payload"`
	Meta      any    `json:"meta,omitempty" yaml:"meta,omitempty"`
}

// Validate checks required fields.
func (r Record) Validate() error {
	if r.ID == "" {
		return &ValidationError{Field: "id", Reason: "is empty", Err: ErrInvalidRecord}
	}
	if r.Stream == "" {
		return &ValidationError{Field: "stream", Reason: "is empty", Err: ErrInvalidRecord}
	}
	if r.Timestamp == 0 {
		return &ValidationError{Field: "timestamp", Reason: "is zero", Err: ErrInvalidRecord}
	}
	if r.Timestamp > MaxTimestamp {
		return &ValidationError{
			Field:  "timestamp",
			Reason: fmt.Sprintf("exceeds %d", MaxTimestamp),
			Err:    ErrInvalidRecord,
		}
	}
	switch r.Payload.(type) {
	case map[string]any, []any:
	default:
		return &ValidationError{
			Field:  "payload",
			Reason: fmt.Sprintf("must be an object or array, got %T", r.Payload),
			Err:    ErrInvalidRecord,
		}
	}
	return nil
}

// PayloadField returns the top-level payload value under key.
func (r Record) PayloadField(key string) (any, bool) {
	obj, ok := r.Payload.(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := obj[key]
	return v, ok
}

// PayloadString returns a string payload field; ok is false if the
// field is missing or not a string.
func (r Record) PayloadString(key string) (string, bool) {
	v, ok := r.PayloadField(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Clone returns a deep copy so callers and hooks never share maps.
func (r Record) Clone() Record {
	r.Payload = cloneValue(r.Payload)
	r.Meta = cloneValue(r.Meta)
	return r
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// hashable is the exact field set that defines a record's identity.
func (r Record) hashable() map[string]any {
	obj := map[string]any{
		"id":        r.ID,
		"stream":    r.Stream,
		"timestamp": r.Timestamp,
		"payload":   r.Payload,
	}
	if r.Meta != nil {
		obj["meta"] = r.Meta
	}
	return obj
}

// CanonicalRecord returns the canonical bytes that ComputeHash digests.
func CanonicalRecord(r Record) ([]byte, error) {
	b, err := Canonicalize(r.hashable())
	if err != nil {
		return nil, fmt.Errorf("canonical record %q: %w", r.ID, err)
	}
	return b, nil
}

// ComputeHash returns SHA-256 over the canonical form of
// {id, stream, timestamp, payload[, meta]}.
func ComputeHash(r Record) (Hash, error) {
	b, err := CanonicalRecord(r)
	if err != nil {
		return Hash{}, err
	}
	return SumBytes(b), nil
}

// MustComputeHash is like ComputeHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustComputeHash(r Record) Hash {
	h, err := ComputeHash(r)
	if err != nil {
		panic(err)
	}
	return h
}

// UnmarshalJSON decodes numbers as json.Number so a record decoded from
// its own JSON hashes to the same value.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID        string          `json:"id"`
		Stream    string          `json:"stream"`
		Timestamp uint64          `json:"timestamp"`
		Payload   json.RawMessage `json:"payload"`
		Meta      json.RawMessage `json:"meta"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := Record{ID: raw.ID, Stream: raw.Stream, Timestamp: raw.Timestamp}
	if len(raw.Payload) > 0 {
		p, err := decodeJSON(raw.Payload)
		if err != nil {
			return fmt.Errorf("payload: %w", err)
		}
		out.Payload = p
	}
	if len(raw.Meta) > 0 && string(raw.Meta) != "null" {
		m, err := decodeJSON(raw.Meta)
		if err != nil {
			return fmt.Errorf("meta: %w", err)
		}
		out.Meta = m
	}
	*r = out
	return nil
}

// DecodeRecord parses a record from its canonical (or any JSON) form.
func DecodeRecord(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	return r, nil
}
