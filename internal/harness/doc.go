// Package harness runs scripted ledger scenarios and compares their traces
// with golden files.
//
// # Scenario Format
//
//	name: proof_issuance
//	description: "What this scenario checks"
//	ledger:                      # engine.LedgerConfig, id defaults to name
//	  modules: [{id: proof}]
//	  acl: {kind: memory}
//	setup:                       # must succeed
//	  - op: grant
//	    grant: {subject_oid: ..., resource_oid: ledger:proof_issuance, action: write, granted_by: ...}
//	flow:
//	  - op: append
//	    as: oid:onoal:org:acme
//	    record: {id: p1, stream: proofs, timestamp: 1000, payload: {...}}
//	  - op: append
//	    as: oid:onoal:org:acme
//	    record: {...}
//	    expect: {error: MODULE_HOOK}
//	  - op: advance
//	    by: 2m
//	assertions:
//	  - type: length
//	    count: 1
//
// Ops are append, batch, grant, revoke, advance and verify. A flow step
// without expect must succeed.
//
// Assertion types are length, record_exists, record_absent, query_count,
// chain_valid, access and tip.
//
// # Determinism
//
// Every run starts a fresh engine on a FixedClock at Epoch, so record
// hashes and the trace are stable. Golden snapshots are canonical JSON
// under testdata/golden and are regenerated with:
//
//	go test ./internal/harness -update
package harness
