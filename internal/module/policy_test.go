package module

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chainledger/internal/core"
)

func TestProofModule(t *testing.T) {
	m, err := NewProof(Config{ID: ProofID, Version: "1.0.0"})
	require.NoError(t, err)
	assert.Equal(t, "proof", m.ID())
	assert.Equal(t, "1.0.0", m.Version())

	tests := []struct {
		name    string
		record  core.Record
		wantErr bool
	}{
		{
			name: "complete proof",
			record: core.Record{ID: "p", Stream: "proofs", Timestamp: 1, Payload: map[string]any{
				"subject_oid": "oid:onoal:human:alice",
				"issuer_oid":  "oid:onoal:org:example",
			}},
		},
		{
			name:    "missing issuer",
			record:  core.Record{ID: "p", Stream: "proofs", Timestamp: 1, Payload: map[string]any{"subject_oid": "x"}},
			wantErr: true,
		},
		{
			name:    "missing subject",
			record:  core.Record{ID: "p", Stream: "proofs", Timestamp: 1, Payload: map[string]any{"issuer_oid": "x"}},
			wantErr: true,
		},
		{
			name:    "list payload on proofs",
			record:  core.Record{ID: "p", Stream: "proofs", Timestamp: 1, Payload: []any{"subject_oid"}},
			wantErr: true,
		},
		{
			name:   "other stream ignored",
			record: core.Record{ID: "p", Stream: "assets", Timestamp: 1, Payload: map[string]any{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tt.record
			beforeErr := m.BeforeAppend(context.Background(), &rec)
			validateErr := m.Validate(tt.record)
			if tt.wantErr {
				assert.ErrorIs(t, beforeErr, ErrMissingField)
				assert.ErrorIs(t, validateErr, ErrMissingField)
				return
			}
			assert.NoError(t, beforeErr)
			assert.NoError(t, validateErr)
		})
	}
}

func TestAssetModule(t *testing.T) {
	m, err := NewAsset(Config{ID: AssetID})
	require.NoError(t, err)

	ok := core.Record{ID: "a", Stream: "assets", Timestamp: 1, Payload: map[string]any{"owner_oid": "o"}}
	bad := core.Record{ID: "a", Stream: "assets", Timestamp: 1, Payload: map[string]any{"name": "car"}}
	other := core.Record{ID: "a", Stream: "proofs", Timestamp: 1, Payload: map[string]any{}}

	assert.NoError(t, m.Validate(ok))
	assert.ErrorIs(t, m.Validate(bad), ErrMissingField)
	assert.NoError(t, m.Validate(other))
	assert.NoError(t, m.AfterAppend(context.Background(), core.ChainEntry{Record: ok}))
}

func TestFieldPolicyQuery(t *testing.T) {
	m, err := NewProof(Config{})
	require.NoError(t, err)

	records := []core.Record{
		{ID: "p1", Stream: "proofs", Payload: map[string]any{"subject_oid": "s1", "issuer_oid": "i1"}},
		{ID: "p2", Stream: "proofs", Payload: map[string]any{"subject_oid": "s1", "issuer_oid": "i2"}},
		{ID: "p3", Stream: "proofs", Payload: map[string]any{"subject_oid": "s2", "issuer_oid": "i1"}},
		{ID: "x1", Stream: "other", Payload: map[string]any{"subject_oid": "s1", "issuer_oid": "i1"}},
	}

	ids := func(rs []core.Record) []string {
		out := make([]string, len(rs))
		for i, r := range rs {
			out[i] = r.ID
		}
		return out
	}

	assert.Equal(t, []string{"p1", "p2"}, ids(m.Query(records, map[string]any{"subject_oid": "s1"})))
	assert.Equal(t, []string{"p1"}, ids(m.Query(records, map[string]any{"subject_oid": "s1", "issuer_oid": "i1"})))
	assert.Equal(t, []string{"p1", "p3"}, ids(m.Query(records, map[string]any{"issuer_oid": "i1"})))
	assert.Empty(t, m.Query(records, map[string]any{"subject_oid": "nobody"}))
	assert.Len(t, m.Query(records, map[string]any{}), 4, "no matching keys passes through")
	assert.Len(t, m.Query(records, map[string]any{"subject_oid": 7}), 4, "non-string filter values are ignored")
}
