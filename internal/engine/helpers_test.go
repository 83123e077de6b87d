package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/roach88/chainledger/internal/core"
	"github.com/roach88/chainledger/internal/module"
	"github.com/roach88/chainledger/internal/store"
)

const (
	alice = "oid:onoal:user:alice"
	bob   = "oid:onoal:user:bob"
)

var t0 = time.UnixMilli(1_700_000_000_000).UTC()

func testConfig(modules ...string) LedgerConfig {
	cfg := LedgerConfig{ID: "test-ledger"}
	for _, id := range modules {
		cfg.Modules = append(cfg.Modules, module.Config{ID: id})
	}
	return cfg
}

// newTestEngine builds an engine on a fixed clock and shuts it down at
// cleanup.
func newTestEngine(t *testing.T, cfg LedgerConfig, opts ...Option) (*Engine, *FixedClock) {
	t.Helper()
	clock := NewFixedClock(t0)
	base := []Option{WithLogger(zaptest.NewLogger(t)), WithClock(clock.Now)}
	e, err := New(context.Background(), cfg, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e, clock
}

func requestAs(requester string) core.RequestContext {
	return core.RequestContext{RequesterOID: requester, Timestamp: core.NowMillis(t0)}
}

func proofRecord(id string, ts uint64) core.Record {
	return core.Record{
		ID:        id,
		Stream:    module.ProofStream,
		Timestamp: ts,
		Payload: map[string]any{
			"subject_oid": "oid:onoal:user:" + id,
			"issuer_oid":  "oid:onoal:org:acme",
		},
	}
}

func assetRecord(id string, ts uint64, owner string) core.Record {
	return core.Record{
		ID:        id,
		Stream:    module.AssetStream,
		Timestamp: ts,
		Payload:   map[string]any{"owner_oid": owner},
	}
}

func proofRecords(n int) []core.Record {
	recs := make([]core.Record, n)
	for i := range recs {
		recs[i] = proofRecord(fmt.Sprintf("proof-%d", i), uint64(1000+i))
	}
	return recs
}

// hookModule counts hook calls and fails the hooks it is told to fail.
type hookModule struct {
	module.Base
	before, after, stops int
	failBefore           error
	failAfter            error
	failInit             error
	failStart            error
	failStop             error
	mutate               func(*core.Record)
}

func newHookModule(id string) *hookModule {
	return &hookModule{Base: module.NewBase(id, "0.0.1")}
}

func (m *hookModule) Init(context.Context, module.Context) error  { return m.failInit }
func (m *hookModule) Start(context.Context, module.Context) error { return m.failStart }

func (m *hookModule) Stop(context.Context, module.Context) error {
	m.stops++
	return m.failStop
}

func (m *hookModule) BeforeAppend(_ context.Context, r *core.Record) error {
	m.before++
	if m.failBefore != nil {
		return m.failBefore
	}
	if m.mutate != nil {
		m.mutate(r)
	}
	return nil
}

func (m *hookModule) AfterAppend(context.Context, core.ChainEntry) error {
	m.after++
	return m.failAfter
}

// withModules registers fixed module instances under their ids.
func withModules(mods ...*hookModule) Option {
	f := module.DefaultFactories()
	for _, m := range mods {
		m := m
		f[m.ID()] = func(module.Config) (module.Module, error) { return m, nil }
	}
	return WithFactories(f)
}

// flakyStore wraps a backend and fails writes on demand.
type flakyStore struct {
	store.Backend
	failWrites bool
	saves      int
	closes     int
}

var errDiskFull = errors.New("disk full")

func (f *flakyStore) SaveEntry(ctx context.Context, e core.ChainEntry) error {
	f.saves++
	if f.failWrites {
		return errDiskFull
	}
	return f.Backend.SaveEntry(ctx, e)
}

func (f *flakyStore) SaveEntries(ctx context.Context, es []core.ChainEntry) error {
	f.saves++
	if f.failWrites {
		return errDiskFull
	}
	return f.Backend.SaveEntries(ctx, es)
}

func (f *flakyStore) Close() error {
	f.closes++
	return f.Backend.Close()
}

func newFlakyStore(t *testing.T) *flakyStore {
	t.Helper()
	s, err := store.OpenSQLite(":memory:")
	require.NoError(t, err)
	return &flakyStore{Backend: s}
}
