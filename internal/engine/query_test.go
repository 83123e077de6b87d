package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chainledger/internal/core"
)

func u64(v uint64) *uint64 { return &v }

// seedQueryLedger appends 6 proofs (ts 1000..1005) and 4 assets
// (ts 2000..2003, alternating owners alice and bob).
func seedQueryLedger(t *testing.T) *Engine {
	t.Helper()
	e, _ := newTestEngine(t, testConfig("proof", "asset"))

	recs := proofRecords(6)
	for i := 0; i < 4; i++ {
		owner := alice
		if i%2 == 1 {
			owner = bob
		}
		recs = append(recs, assetRecord(fmt.Sprintf("asset-%d", i), uint64(2000+i), owner))
	}
	_, err := e.AppendBatch(context.Background(), recs, requestAs(alice))
	require.NoError(t, err)
	return e
}

func ids(records []core.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestQuery(t *testing.T) {
	e := seedQueryLedger(t)

	tests := []struct {
		name    string
		filters QueryFilters
		want    []string
		total   int
		hasMore bool
	}{
		{
			name:    "no filters",
			filters: QueryFilters{},
			total:   10,
			want: []string{"proof-0", "proof-1", "proof-2", "proof-3", "proof-4", "proof-5",
				"asset-0", "asset-1", "asset-2", "asset-3"},
		},
		{
			name:    "by stream",
			filters: QueryFilters{Stream: "assets"},
			want:    []string{"asset-0", "asset-1", "asset-2", "asset-3"},
			total:   4,
		},
		{
			name:    "by id",
			filters: QueryFilters{ID: "proof-3"},
			want:    []string{"proof-3"},
			total:   1,
		},
		{
			name:    "timestamp range inclusive",
			filters: QueryFilters{TimestampFrom: u64(1004), TimestampTo: u64(2000)},
			want:    []string{"proof-4", "proof-5", "asset-0"},
			total:   3,
		},
		{
			name:    "module filter narrows to matching stream",
			filters: QueryFilters{ModuleFilters: map[string]any{"owner_oid": bob}},
			want:    []string{"asset-1", "asset-3"},
			total:   2,
		},
		{
			name:    "unrelated module filter passes everything",
			filters: QueryFilters{Stream: "proofs", ModuleFilters: map[string]any{"color": "red"}},
			want:    []string{"proof-0", "proof-1", "proof-2", "proof-3", "proof-4", "proof-5"},
			total:   6,
		},
		{
			name:    "first page",
			filters: QueryFilters{Stream: "proofs", Limit: 4},
			want:    []string{"proof-0", "proof-1", "proof-2", "proof-3"},
			total:   6,
			hasMore: true,
		},
		{
			name:    "middle page",
			filters: QueryFilters{Stream: "proofs", Offset: 2, Limit: 2},
			want:    []string{"proof-2", "proof-3"},
			total:   6,
			hasMore: true,
		},
		{
			name:    "last page",
			filters: QueryFilters{Stream: "proofs", Offset: 4, Limit: 4},
			want:    []string{"proof-4", "proof-5"},
			total:   6,
		},
		{
			name:    "offset past end",
			filters: QueryFilters{Stream: "proofs", Offset: 10},
			want:    []string{},
			total:   6,
		},
		{
			name:    "no match",
			filters: QueryFilters{Stream: "missing"},
			want:    []string{},
			total:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Query(tt.filters)
			assert.Equal(t, tt.want, ids(res.Records))
			assert.Equal(t, tt.total, res.Total)
			assert.Equal(t, tt.hasMore, res.HasMore)
		})
	}
}

func TestQuery_ReturnsCopies(t *testing.T) {
	e := seedQueryLedger(t)

	res := e.Query(QueryFilters{ID: "asset-0"})
	require.Len(t, res.Records, 1)
	res.Records[0].Payload.(map[string]any)["owner_oid"] = "oid:onoal:user:mallory"

	assert.NoError(t, e.Verify())
}
