// Package module defines the pluggable hook contract for ledger policies,
// the per-ledger Registry that drives module lifecycles, and the built-in
// proof, asset and publish modules.
//
// Lifecycle: Registered → Initialized → Started → Stopped, forward only.
// InitAll and StartAll are fail-fast; StopAll logs failures and always
// completes.
package module
