package module

import (
	"context"

	"github.com/roach88/chainledger/internal/core"
)

const (
	ProofID     = "proof"
	ProofStream = "proofs"
)

// Proof requires subject_oid and issuer_oid on records in the proofs stream.
type Proof struct {
	Base
	policy fieldPolicy
}

// NewProof builds the proof module from its config.
func NewProof(cfg Config) (Module, error) {
	return &Proof{
		Base:   NewBase(ProofID, versionOr(cfg)),
		policy: fieldPolicy{stream: ProofStream, required: []string{"subject_oid", "issuer_oid"}},
	}, nil
}

func (p *Proof) BeforeAppend(_ context.Context, record *core.Record) error {
	return p.policy.check(*record)
}

func (p *Proof) Validate(record core.Record) error {
	return p.policy.check(record)
}

// Query matches subject_oid and issuer_oid filter keys.
func (p *Proof) Query(records []core.Record, filter map[string]any) []core.Record {
	return p.policy.filter(records, filter)
}
