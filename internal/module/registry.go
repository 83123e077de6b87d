package module

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/chainledger/internal/core"
)

type registered struct {
	module Module
	state  State
	config map[string]any
}

// Registry holds the modules of one ledger in registration order and
// drives their lifecycle.
//
// INVARIANTS:
//   - order never changes after registration, so hooks run deterministically
//   - states only move forward
//   - per-record hooks only reach Started modules
//
// A Registry belongs to one engine. It is not safe for concurrent use.
type Registry struct {
	ledgerID  string
	factories Factories
	logger    *zap.Logger

	order []*registered
	byID  map[string]*registered
}

// NewRegistry creates an empty registry. A nil factories map means
// LoadFromConfig can resolve nothing; a nil logger is replaced by a no-op.
func NewRegistry(ledgerID string, factories Factories, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		ledgerID:  ledgerID,
		factories: factories,
		logger:    logger,
		byID:      make(map[string]*registered),
	}
}

// Register adds a module in the Registered state.
func (r *Registry) Register(m Module) error {
	return r.register(m, nil)
}

func (r *Registry) register(m Module, cfg map[string]any) error {
	id := m.ID()
	if _, exists := r.byID[id]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateModule, id)
	}
	if cfg == nil {
		cfg = map[string]any{}
	}
	entry := &registered{module: m, state: StateRegistered, config: cfg}
	r.order = append(r.order, entry)
	r.byID[id] = entry
	return nil
}

// LoadFromConfig constructs and registers one module per config, in order.
// An id with no factory is an error, not a skip.
func (r *Registry) LoadFromConfig(configs []Config) error {
	for _, cfg := range configs {
		factory, ok := r.factories[cfg.ID]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownModule, cfg.ID)
		}
		m, err := factory(cfg)
		if err != nil {
			return fmt.Errorf("construct module %q: %w", cfg.ID, err)
		}
		if err := r.register(m, cfg.Config); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) moduleContext(entry *registered) Context {
	return Context{
		LedgerID: r.ledgerID,
		Config:   entry.config,
		Logger:   r.logger.With(zap.String("module", entry.module.ID())),
	}
}

// InitAll moves every Registered module to Initialized. The first
// failure aborts the remaining modules.
func (r *Registry) InitAll(ctx context.Context) error {
	for _, entry := range r.order {
		if entry.state != StateRegistered {
			continue
		}
		if err := entry.module.Init(ctx, r.moduleContext(entry)); err != nil {
			return &LifecycleError{ModuleID: entry.module.ID(), Phase: "init", Err: err}
		}
		entry.state = StateInitialized
	}
	return nil
}

// StartAll moves every Initialized module to Started, fail-fast.
func (r *Registry) StartAll(ctx context.Context) error {
	for _, entry := range r.order {
		if entry.state != StateInitialized {
			continue
		}
		if err := entry.module.Start(ctx, r.moduleContext(entry)); err != nil {
			return &LifecycleError{ModuleID: entry.module.ID(), Phase: "start", Err: err}
		}
		entry.state = StateStarted
	}
	return nil
}

// StopAll moves every Started module to Stopped. Failures are logged
// and the module is still marked Stopped; StopAll always completes.
func (r *Registry) StopAll(ctx context.Context) {
	for _, entry := range r.order {
		if entry.state != StateStarted {
			continue
		}
		if err := entry.module.Stop(ctx, r.moduleContext(entry)); err != nil {
			r.logger.Warn("module stop failed",
				zap.String("module", entry.module.ID()),
				zap.Error(err),
			)
		}
		entry.state = StateStopped
	}
}

// RunBefore invokes BeforeAppend on every started module in order.
func (r *Registry) RunBefore(ctx context.Context, record *core.Record) error {
	for _, entry := range r.order {
		if entry.state != StateStarted {
			continue
		}
		if err := entry.module.BeforeAppend(ctx, record); err != nil {
			return &HookError{ModuleID: entry.module.ID(), Hook: "before_append", Err: err}
		}
	}
	return nil
}

// RunAfter invokes AfterAppend on every started module in order.
func (r *Registry) RunAfter(ctx context.Context, entry core.ChainEntry) error {
	for _, reg := range r.order {
		if reg.state != StateStarted {
			continue
		}
		if err := reg.module.AfterAppend(ctx, entry); err != nil {
			return &HookError{ModuleID: reg.module.ID(), Hook: "after_append", Err: err}
		}
	}
	return nil
}

// RunValidate invokes Validate on every started module in order.
func (r *Registry) RunValidate(record core.Record) error {
	for _, entry := range r.order {
		if entry.state != StateStarted {
			continue
		}
		if err := entry.module.Validate(record); err != nil {
			return &HookError{ModuleID: entry.module.ID(), Hook: "validate", Err: err}
		}
	}
	return nil
}

// RunQuery passes records through every started module's Query in order,
// each free to narrow the result further.
func (r *Registry) RunQuery(records []core.Record, filter map[string]any) []core.Record {
	for _, entry := range r.order {
		if entry.state != StateStarted {
			continue
		}
		records = entry.module.Query(records, filter)
	}
	return records
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	return len(r.order)
}

// All returns modules in registration order.
func (r *Registry) All() []Module {
	out := make([]Module, len(r.order))
	for i, entry := range r.order {
		out[i] = entry.module
	}
	return out
}

// Get returns the module registered under id.
func (r *Registry) Get(id string) (Module, bool) {
	entry, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return entry.module, true
}

// IDs returns module ids in registration order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.order))
	for i, entry := range r.order {
		ids[i] = entry.module.ID()
	}
	return ids
}

// Meta returns id, version and state for every module.
func (r *Registry) Meta() []Meta {
	out := make([]Meta, len(r.order))
	for i, entry := range r.order {
		out[i] = Meta{ID: entry.module.ID(), Version: entry.module.Version(), State: entry.state}
	}
	return out
}

// State returns the lifecycle state of a module.
func (r *Registry) State(id string) (State, bool) {
	entry, ok := r.byID[id]
	if !ok {
		return "", false
	}
	return entry.state, true
}
