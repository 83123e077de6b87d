package engine

import (
	"fmt"

	"github.com/roach88/chainledger/internal/module"
)

// StorageKind selects the storage backend.
type StorageKind string

const (
	StorageNone     StorageKind = "none"
	StorageSQLite   StorageKind = "sqlite"
	StoragePostgres StorageKind = "postgres"
)

// ACLKind selects the access control backend.
type ACLKind string

const (
	ACLNone   ACLKind = "none"
	ACLMemory ACLKind = "memory"
	ACLRedis  ACLKind = "redis"
)

// StorageConfig describes where entries are persisted. An empty Kind
// means StorageNone.
type StorageConfig struct {
	Kind StorageKind `json:"kind" yaml:"kind" mapstructure:"kind"`
	Path string      `json:"path,omitempty" yaml:"path,omitempty" mapstructure:"path"`
	DSN  string      `json:"dsn,omitempty" yaml:"dsn,omitempty" mapstructure:"dsn"`
}

// ACLConfig describes where grants live. An empty Kind means ACLNone.
type ACLConfig struct {
	Kind        ACLKind `json:"kind" yaml:"kind" mapstructure:"kind"`
	RedisAddr   string  `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty" mapstructure:"redis_addr"`
	RedisPrefix string  `json:"redis_prefix,omitempty" yaml:"redis_prefix,omitempty" mapstructure:"redis_prefix"`
	RedisDB     int     `json:"redis_db,omitempty" yaml:"redis_db,omitempty" mapstructure:"redis_db"`
}

// Options tune engine behavior.
type Options struct {
	// StrictValidation rejects records whose id is already in the ledger.
	StrictValidation bool `json:"strict_validation" yaml:"strict_validation" mapstructure:"strict_validation"`

	// MaxEntries caps the ledger length. Zero means unlimited.
	MaxEntries int `json:"max_entries" yaml:"max_entries" mapstructure:"max_entries"`

	// EnableMetrics registers collectors on a fresh registry when no
	// registerer is supplied through WithMetricsRegisterer.
	EnableMetrics bool `json:"enable_metrics" yaml:"enable_metrics" mapstructure:"enable_metrics"`
}

// LedgerConfig defines one ledger.
type LedgerConfig struct {
	ID      string          `json:"id" yaml:"id" mapstructure:"id"`
	Modules []module.Config `json:"modules" yaml:"modules" mapstructure:"modules"`
	Storage StorageConfig   `json:"storage" yaml:"storage" mapstructure:"storage"`
	ACL     ACLConfig       `json:"acl" yaml:"acl" mapstructure:"acl"`
	Options Options         `json:"options" yaml:"options" mapstructure:"options"`
}

// ResourceOID is the resource every write to the ledger is checked against.
func (c LedgerConfig) ResourceOID() string {
	return "ledger:" + c.ID
}

// Validate reports the first configuration problem as a Configuration error.
func (c LedgerConfig) Validate() error {
	const op = "validate config"

	if c.ID == "" {
		return newErrorf(KindConfiguration, op, "ledger id is empty")
	}

	seen := make(map[string]bool, len(c.Modules))
	for i, m := range c.Modules {
		if m.ID == "" {
			return newErrorf(KindConfiguration, op, "modules[%d]: id is empty", i)
		}
		if seen[m.ID] {
			return newError(KindConfiguration, op, fmt.Errorf("%w: %q", module.ErrDuplicateModule, m.ID))
		}
		seen[m.ID] = true
	}

	switch c.Storage.Kind {
	case "", StorageNone:
	case StorageSQLite:
		if c.Storage.Path == "" {
			return newErrorf(KindConfiguration, op, "storage.path is required for sqlite")
		}
	case StoragePostgres:
		if c.Storage.DSN == "" {
			return newErrorf(KindConfiguration, op, "storage.dsn is required for postgres")
		}
	default:
		return newErrorf(KindConfiguration, op, "unknown storage kind %q", c.Storage.Kind)
	}

	switch c.ACL.Kind {
	case "", ACLNone, ACLMemory:
	case ACLRedis:
		if c.ACL.RedisAddr == "" {
			return newErrorf(KindConfiguration, op, "acl.redis_addr is required for redis")
		}
	default:
		return newErrorf(KindConfiguration, op, "unknown acl kind %q", c.ACL.Kind)
	}

	if c.Options.MaxEntries < 0 {
		return newErrorf(KindConfiguration, op, "options.max_entries must not be negative")
	}
	return nil
}
