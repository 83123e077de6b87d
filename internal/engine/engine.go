package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/roach88/chainledger/internal/acl"
	"github.com/roach88/chainledger/internal/core"
	"github.com/roach88/chainledger/internal/module"
	"github.com/roach88/chainledger/internal/store"
)

// WriteAction is the action checked against the ledger resource on append.
const WriteAction = "write"

// Engine is the single point of orchestration for one ledger. It owns the
// in-memory state, the module registry, and the optional storage and ACL
// backends.
//
// Thread-safety model: an Engine has exactly one owner at a time. Callers
// that share one across goroutines serialize access themselves.
//
// INVARIANTS:
//   - state only changes after storage accepted the new entries
//   - append order is call order and equals link order
//   - modules run in registration order
type Engine struct {
	cfg      LedgerConfig
	logger   *zap.Logger
	now      func() time.Time
	state    *State
	registry *module.Registry
	storage  store.Backend
	acl      acl.Backend
	metrics  *Metrics
	gatherer prometheus.Gatherer
	closed   bool
}

type engineOptions struct {
	logger     *zap.Logger
	now        func() time.Time
	factories  module.Factories
	storage    store.Backend
	acl        acl.Backend
	registerer prometheus.Registerer
}

// Option configures New.
type Option func(*engineOptions)

// WithLogger sets the engine logger. Default: zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(o *engineOptions) {
		o.logger = l
	}
}

// WithClock sets the wall clock used for context skew checks and grant
// expiry. Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *engineOptions) {
		o.now = now
	}
}

// WithFactories replaces the module constructors. Default:
// module.DefaultFactories().
func WithFactories(f module.Factories) Option {
	return func(o *engineOptions) {
		o.factories = f
	}
}

// WithStorage supplies an already-open backend, overriding the storage
// section of the config. The engine takes ownership and closes it.
func WithStorage(b store.Backend) Option {
	return func(o *engineOptions) {
		o.storage = b
	}
}

// WithACL supplies an ACL backend, overriding the acl section of the
// config. The engine takes ownership and closes it.
func WithACL(b acl.Backend) Option {
	return func(o *engineOptions) {
		o.acl = b
	}
}

// WithMetricsRegisterer registers engine metrics on reg.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(o *engineOptions) {
		o.registerer = reg
	}
}

// New builds an engine from cfg.
//
// Construction order:
//  1. validate cfg
//  2. resolve, init and start modules
//  3. open storage, load every entry and verify the chain
//  4. open the ACL backend
//
// A chain that fails verification aborts construction with a
// ChainIntegrity error: a corrupted ledger is never served.
func New(ctx context.Context, cfg LedgerConfig, opts ...Option) (*Engine, error) {
	o := engineOptions{
		logger:    zap.NewNop(),
		now:       time.Now,
		factories: module.DefaultFactories(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := o.logger.With(zap.String("ledger", cfg.ID))
	e := &Engine{
		cfg:      cfg,
		logger:   logger,
		now:      o.now,
		state:    NewState(),
		registry: module.NewRegistry(cfg.ID, o.factories, logger),
		storage:  o.storage,
		acl:      o.acl,
	}

	if err := e.registry.LoadFromConfig(cfg.Modules); err != nil {
		e.closeBackends()
		return nil, newError(KindConfiguration, "load modules", err)
	}
	if err := e.registry.InitAll(ctx); err != nil {
		e.closeBackends()
		return nil, newError(KindModuleLifecycle, "init modules", err)
	}
	if err := e.registry.StartAll(ctx); err != nil {
		e.abort(ctx)
		return nil, newError(KindModuleLifecycle, "start modules", err)
	}

	if err := e.setupMetrics(o.registerer); err != nil {
		e.abort(ctx)
		return nil, err
	}

	if e.storage == nil {
		backend, err := openStorage(ctx, cfg.Storage, logger)
		if err != nil {
			e.abort(ctx)
			return nil, err
		}
		e.storage = backend
	}
	if e.storage != nil {
		if err := e.hydrate(ctx); err != nil {
			e.abort(ctx)
			return nil, err
		}
	}

	if e.acl == nil {
		backend, err := openACL(ctx, cfg.ACL, o.now)
		if err != nil {
			e.abort(ctx)
			return nil, err
		}
		e.acl = backend
	}

	logger.Info("ledger ready",
		zap.Int("entries", e.state.Len()),
		zap.Strings("modules", e.registry.IDs()),
		zap.Bool("storage", e.storage != nil),
		zap.Bool("acl", e.acl != nil),
	)
	return e, nil
}

func (e *Engine) setupMetrics(reg prometheus.Registerer) error {
	if reg == nil {
		if !e.cfg.Options.EnableMetrics {
			return nil
		}
		r := prometheus.NewRegistry()
		reg = r
	}
	m, err := NewMetrics(reg, e.cfg.ID)
	if err != nil {
		return newError(KindConfiguration, "register metrics", err)
	}
	e.metrics = m
	if g, ok := reg.(prometheus.Gatherer); ok {
		e.gatherer = g
	}
	return nil
}

func openStorage(ctx context.Context, cfg StorageConfig, logger *zap.Logger) (store.Backend, error) {
	switch cfg.Kind {
	case StorageSQLite:
		s, err := store.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, newError(KindStorage, "open storage", err)
		}
		return s, nil
	case StoragePostgres:
		p, err := store.OpenPostgres(ctx, cfg.DSN, logger)
		if err != nil {
			return nil, newError(KindStorage, "open storage", err)
		}
		return p, nil
	default:
		return nil, nil
	}
}

func openACL(ctx context.Context, cfg ACLConfig, now func() time.Time) (acl.Backend, error) {
	switch cfg.Kind {
	case ACLMemory:
		return acl.NewMemory(acl.WithClock(now)), nil
	case ACLRedis:
		opts := []acl.RedisOption{acl.WithRedisClock(now)}
		if cfg.RedisPrefix != "" {
			opts = append(opts, acl.WithRedisPrefix(cfg.RedisPrefix))
		}
		r, err := acl.DialRedis(ctx, cfg.RedisAddr, cfg.RedisDB, opts...)
		if err != nil {
			return nil, newError(KindConfiguration, "open acl", err)
		}
		return r, nil
	default:
		return nil, nil
	}
}

// abort undoes a partial construction.
func (e *Engine) abort(ctx context.Context) {
	e.registry.StopAll(ctx)
	e.closeBackends()
}

func (e *Engine) closeBackends() error {
	var errs []error
	if e.acl != nil {
		if err := e.acl.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close acl: %w", err))
		}
	}
	if e.storage != nil {
		if err := e.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	return errors.Join(errs...)
}

// ID returns the ledger id.
func (e *Engine) ID() string {
	return e.cfg.ID
}

// Config returns the configuration the engine was built from.
func (e *Engine) Config() LedgerConfig {
	return e.cfg
}

// Gatherer returns the registry metrics were registered on, or nil when
// metrics are disabled or the registerer cannot gather.
func (e *Engine) Gatherer() prometheus.Gatherer {
	return e.gatherer
}

// AppendRecord appends one record and returns its hash.
//
// Steps, each failing before any later one runs:
//  1. request context
//  2. write access to the ledger resource
//  3. record structure, module validation, strict checks
//  4. before-append hooks in registration order
//  5. chain entry linked to the current tip, rejected if its hash is
//     already in the ledger
//  6. storage
//  7. after-append hooks
//  8. state
//
// If an after-append hook fails, the entry is already durable, so it is
// still added to state. The hash is returned alongside the ModuleHook error.
func (e *Engine) AppendRecord(ctx context.Context, rec core.Record, rc core.RequestContext) (core.Hash, error) {
	const op = "append record"

	if err := e.gate(ctx, op, rc, []core.Record{rec}); err != nil {
		return core.Hash{}, e.reject(op, err)
	}

	rec = rec.Clone()
	if err := e.registry.RunBefore(ctx, &rec); err != nil {
		return core.Hash{}, e.reject(op, newError(KindModuleHook, op, err))
	}

	entry, err := core.NewChainEntry(rec, e.state.Tip())
	if err != nil {
		return core.Hash{}, e.reject(op, recordError(op, err))
	}
	if err := e.checkDuplicateEntry(entry.Hash, nil); err != nil {
		return core.Hash{}, e.reject(op, newError(KindValidation, op, err))
	}

	if e.storage != nil {
		if err := e.storage.SaveEntry(ctx, entry); err != nil {
			return core.Hash{}, e.reject(op, newError(KindStorage, op, err))
		}
	}

	hookErr := e.registry.RunAfter(ctx, entry)
	if hookErr != nil && e.storage == nil {
		return core.Hash{}, e.reject(op, newError(KindModuleHook, op, hookErr))
	}

	e.state.Append(entry)
	e.metrics.appendedN(1, e.state.Len())
	e.logger.Debug("record appended",
		zap.String("hash", entry.Hash.String()),
		zap.String("id", entry.Record.ID),
		zap.String("stream", entry.Record.Stream),
	)

	if hookErr != nil {
		return entry.Hash, e.reject(op, newError(KindModuleHook, op, hookErr))
	}
	return entry.Hash, nil
}

// AppendBatch appends records atomically: either every record is appended
// or none is.
//
// All gates run for every record before any hook. Hooks then run per
// record while entries are chained to a running tip. Every entry is
// persisted in one storage transaction, and only then added to state.
func (e *Engine) AppendBatch(ctx context.Context, recs []core.Record, rc core.RequestContext) ([]core.Hash, error) {
	const op = "append batch"

	if len(recs) == 0 {
		return []core.Hash{}, nil
	}
	if err := e.gate(ctx, op, rc, recs); err != nil {
		return nil, e.reject(op, err)
	}

	tip := e.state.Tip()
	seen := make(map[core.Hash]bool, len(recs))
	entries := make([]core.ChainEntry, 0, len(recs))
	for i, original := range recs {
		rec := original.Clone()
		if err := e.registry.RunBefore(ctx, &rec); err != nil {
			return nil, e.reject(op, newError(KindModuleHook, op, fmt.Errorf("records[%d]: %w", i, err)))
		}
		entry, err := core.NewChainEntry(rec, tip)
		if err != nil {
			return nil, e.reject(op, recordError(op, fmt.Errorf("records[%d]: %w", i, err)))
		}
		if err := e.checkDuplicateEntry(entry.Hash, seen); err != nil {
			return nil, e.reject(op, newError(KindValidation, op, fmt.Errorf("records[%d]: %w", i, err)))
		}
		seen[entry.Hash] = true
		if err := e.registry.RunAfter(ctx, entry); err != nil {
			return nil, e.reject(op, newError(KindModuleHook, op, fmt.Errorf("records[%d]: %w", i, err)))
		}
		entries = append(entries, entry)
		tip = entry.Hash.Ptr()
	}

	if e.storage != nil {
		if err := e.storage.SaveEntries(ctx, entries); err != nil {
			return nil, e.reject(op, newError(KindStorage, op, err))
		}
	}

	hashes := make([]core.Hash, len(entries))
	for i, entry := range entries {
		e.state.Append(entry)
		hashes[i] = entry.Hash
	}
	e.metrics.appendedN(len(entries), e.state.Len())
	e.logger.Debug("batch appended",
		zap.Int("count", len(entries)),
		zap.String("tip", hashes[len(hashes)-1].String()),
	)
	return hashes, nil
}

// gate runs the checks that must pass for every record before any module
// hook or write happens.
func (e *Engine) gate(ctx context.Context, op string, rc core.RequestContext, recs []core.Record) error {
	if e.closed {
		return newError(KindConfiguration, op, ErrClosed)
	}
	if err := rc.Validate(e.now()); err != nil {
		return newError(KindValidation, op, err)
	}
	if err := e.authorizeWrite(ctx, op, rc.RequesterOID); err != nil {
		return err
	}

	for i, rec := range recs {
		if err := rec.Validate(); err != nil {
			return newError(KindValidation, op, indexed(len(recs), i, err))
		}
		if err := e.registry.RunValidate(rec); err != nil {
			return newError(KindModuleHook, op, indexed(len(recs), i, err))
		}
	}

	opts := e.cfg.Options
	if opts.StrictValidation {
		ids := make([]string, len(recs))
		for i, rec := range recs {
			ids[i] = rec.ID
		}
		if err := e.checkDuplicateIDs(ids); err != nil {
			return newError(KindValidation, op, err)
		}
		if err := e.checkTimestamps(recs); err != nil {
			return newError(KindValidation, op, err)
		}
	}
	if err := checkCapacity(e.state.Len(), len(recs), opts.MaxEntries); err != nil {
		return newError(KindValidation, op, err)
	}
	return nil
}

func (e *Engine) authorizeWrite(ctx context.Context, op, requester string) error {
	if e.acl == nil {
		return nil
	}
	resource := e.cfg.ResourceOID()
	allowed, err := e.acl.Check(ctx, requester, resource, WriteAction)
	if err != nil {
		return aclError(op, err)
	}
	if !allowed {
		return &Error{
			Kind:    KindAccessControl,
			Op:      op,
			Message: fmt.Sprintf("%s may not %s %s", requester, WriteAction, resource),
			Err:     ErrAccessDenied,
		}
	}
	return nil
}

// checkTimestamps rejects records older than the tip or than the record
// before them, which would fail chain verification.
func (e *Engine) checkTimestamps(recs []core.Record) error {
	var last uint64
	if latest, ok := e.state.Latest(); ok {
		last = latest.Record.Timestamp
	}
	for i, rec := range recs {
		if rec.Timestamp < last {
			return fmt.Errorf("records[%d]: timestamp %d precedes %d", i, rec.Timestamp, last)
		}
		last = rec.Timestamp
	}
	return nil
}

func indexed(n, i int, err error) error {
	if n == 1 {
		return err
	}
	return fmt.Errorf("records[%d]: %w", i, err)
}

// recordError classifies a chain entry construction failure.
func recordError(op string, err error) *Error {
	if core.IsValidationError(err) {
		return newError(KindValidation, op, err)
	}
	return newError(KindModuleHook, op, err)
}

// aclError maps backend failures to AccessControl and malformed grants to
// Validation.
func aclError(op string, err error) *Error {
	if errors.Is(err, acl.ErrInvalidGrant) {
		return newError(KindValidation, op, err)
	}
	return newError(KindAccessControl, op, err)
}

// reject counts and logs a failed append.
func (e *Engine) reject(op string, err error) error {
	kind := KindOf(err)
	e.metrics.failed(kind)
	e.logger.Info("append rejected",
		zap.String("op", op),
		zap.String("kind", string(kind)),
		zap.Error(err),
	)
	return err
}

// GetRecord returns a copy of the record stored under h.
func (e *Engine) GetRecord(h core.Hash) (core.Record, bool) {
	entry, ok := e.state.ByHash(h)
	if !ok {
		return core.Record{}, false
	}
	return entry.Record.Clone(), true
}

// GetRecordByID returns a copy of the latest record with id.
func (e *Engine) GetRecordByID(id string) (core.Record, bool) {
	entry, ok := e.state.ByID(id)
	if !ok {
		return core.Record{}, false
	}
	return entry.Record.Clone(), true
}

// GetEntry returns the chain entry stored under h.
func (e *Engine) GetEntry(h core.Hash) (core.ChainEntry, bool) {
	entry, ok := e.state.ByHash(h)
	if !ok {
		return core.ChainEntry{}, false
	}
	entry.Record = entry.Record.Clone()
	entry.PrevHash = clonePtr(entry.PrevHash)
	return entry, true
}

func clonePtr(h *core.Hash) *core.Hash {
	if h == nil {
		return nil
	}
	return h.Ptr()
}

// Verify re-runs chain verification over the in-memory entries.
func (e *Engine) Verify() error {
	result := core.VerifyChain(e.state.Entries())
	e.metrics.verified(result.Valid)
	if !result.Valid {
		e.logger.Warn("in-memory chain failed verification", zap.Int("errors", len(result.Errors)))
		return integrityError("verify", result)
	}
	return nil
}

// Len returns the number of entries.
func (e *Engine) Len() int {
	return e.state.Len()
}

func (e *Engine) IsEmpty() bool {
	return e.state.IsEmpty()
}

// LatestHash returns the tip hash, nil for an empty ledger.
func (e *Engine) LatestHash() *core.Hash {
	return e.state.Tip()
}

// HasStorage reports whether entries are persisted.
func (e *Engine) HasStorage() bool {
	return e.storage != nil
}

// VerifyStorage reloads the persisted chain and verifies it. Without
// storage it returns false and no error.
func (e *Engine) VerifyStorage(ctx context.Context) (bool, error) {
	const op = "verify storage"

	if e.storage == nil {
		return false, nil
	}
	err := e.storage.VerifyIntegrity(ctx)
	if err == nil {
		e.metrics.verified(true)
		return true, nil
	}
	if ie, ok := core.AsIntegrityError(err); ok {
		e.metrics.verified(false)
		return false, integrityError(op, ie.Result)
	}
	return false, newError(KindStorage, op, err)
}

// ModuleIDs returns module ids in registration order.
func (e *Engine) ModuleIDs() []string {
	return e.registry.IDs()
}

// ModuleMetadata returns id, version and state of every module.
func (e *Engine) ModuleMetadata() []module.Meta {
	return e.registry.Meta()
}

// ModuleState returns the lifecycle state of module id.
func (e *Engine) ModuleState(id string) (module.State, bool) {
	return e.registry.State(id)
}

// Shutdown stops modules and closes the ACL and storage backends. Module
// stop failures are logged, never returned. Calling Shutdown again is a
// no-op.
func (e *Engine) Shutdown(ctx context.Context) error {
	if e.closed {
		return nil
	}
	e.closed = true

	e.registry.StopAll(ctx)
	if err := e.closeBackends(); err != nil {
		e.logger.Warn("shutdown incomplete", zap.Error(err))
		return newError(KindStorage, "shutdown", err)
	}
	e.logger.Info("ledger shut down", zap.Int("entries", e.state.Len()))
	return nil
}

// Close is Shutdown with a background context.
func (e *Engine) Close() error {
	return e.Shutdown(context.Background())
}
