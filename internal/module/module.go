package module

import (
	"context"

	"go.uber.org/zap"

	"github.com/roach88/chainledger/internal/core"
)

// Module is a pluggable policy that observes and gates record appends.
//
// Hooks are only invoked on modules in the Started state. Lifecycle
// methods are called once each, in order, by the Registry.
type Module interface {
	ID() string
	Version() string

	Init(ctx context.Context, mc Context) error
	Start(ctx context.Context, mc Context) error
	Stop(ctx context.Context, mc Context) error

	// BeforeAppend may mutate the record or reject it.
	BeforeAppend(ctx context.Context, record *core.Record) error
	// AfterAppend runs once the entry is durable. Notification only.
	AfterAppend(ctx context.Context, entry core.ChainEntry) error
	// Validate checks a record without mutating it.
	Validate(record core.Record) error
	// Query narrows records using module-specific filter keys.
	Query(records []core.Record, filter map[string]any) []core.Record
}

// Config is the static identity and free-form configuration of a module.
type Config struct {
	ID      string         `json:"id" yaml:"id" mapstructure:"id"`
	Version string         `json:"version" yaml:"version" mapstructure:"version"`
	Config  map[string]any `json:"config,omitempty" yaml:"config,omitempty" mapstructure:"config"`
}

// Context is handed to lifecycle hooks.
type Context struct {
	LedgerID string
	Config   map[string]any
	Logger   *zap.Logger
}

// State is a module's position in its lifecycle.
type State string

const (
	StateRegistered  State = "registered"
	StateInitialized State = "initialized"
	StateStarted     State = "started"
	StateStopped     State = "stopped"
)

// Meta is the observed identity and state of a registered module.
type Meta struct {
	ID      string `json:"id" yaml:"id"`
	Version string `json:"version" yaml:"version"`
	State   State  `json:"state" yaml:"state"`
}

// Base supplies identity and no-op hooks. Embed it and override what
// the module needs.
type Base struct {
	id      string
	version string
}

// NewBase returns a Base with the given identity.
func NewBase(id, version string) Base {
	return Base{id: id, version: version}
}

func (b Base) ID() string      { return b.id }
func (b Base) Version() string { return b.version }

func (Base) Init(context.Context, Context) error  { return nil }
func (Base) Start(context.Context, Context) error { return nil }
func (Base) Stop(context.Context, Context) error  { return nil }

func (Base) BeforeAppend(context.Context, *core.Record) error   { return nil }
func (Base) AfterAppend(context.Context, core.ChainEntry) error { return nil }
func (Base) Validate(core.Record) error                         { return nil }

func (Base) Query(records []core.Record, _ map[string]any) []core.Record {
	return records
}

// DefaultVersion is used when a module config omits its version.
const DefaultVersion = "1.0.0"

func versionOr(cfg Config) string {
	if cfg.Version == "" {
		return DefaultVersion
	}
	return cfg.Version
}
