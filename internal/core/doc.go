// Package core provides the value types of the ledger: canonical encoding,
// hashes, records, chain entries, and the chain verifier.
//
// All other internal packages import core; core imports nothing internal.
//
// Key constraints:
//   - Canonicalize is the ONLY serialization used for content addressing
//   - A record's hash covers id, stream, timestamp, payload and, only when
//     present, meta
//   - Hashes are never trusted from storage without VerifyChain
//   - Timestamps are unix milliseconds
package core
