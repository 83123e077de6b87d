package module

import (
	"context"

	"github.com/roach88/chainledger/internal/core"
)

const (
	AssetID     = "asset"
	AssetStream = "assets"
)

// Asset requires owner_oid on records in the assets stream.
type Asset struct {
	Base
	policy fieldPolicy
}

func NewAsset(cfg Config) (Module, error) {
	return &Asset{
		Base:   NewBase(AssetID, versionOr(cfg)),
		policy: fieldPolicy{stream: AssetStream, required: []string{"owner_oid"}},
	}, nil
}

func (a *Asset) BeforeAppend(_ context.Context, record *core.Record) error {
	return a.policy.check(*record)
}

func (a *Asset) Validate(record core.Record) error {
	return a.policy.check(record)
}

func (a *Asset) Query(records []core.Record, filter map[string]any) []core.Record {
	return a.policy.filter(records, filter)
}
