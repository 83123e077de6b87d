// Package engine implements the ledger engine.
//
// The engine owns one ledger: an append-only chain of records held in
// memory, optionally persisted, gated by modules and an optional ACL.
//
// ARCHITECTURE:
//
// Single Owner:
// An Engine is used by one caller at a time. There are no locks and no
// goroutines inside it. Append order is call order and link order.
//
// Append Flow:
//  1. Request context and ACL write check
//  2. Record validation, module Validate, strict and capacity checks
//  3. Module BeforeAppend hooks (may rewrite the record)
//  4. Chain entry linked to the current tip
//  5. Storage (one transaction per batch)
//  6. Module AfterAppend hooks
//  7. In-memory state
//
// A batch runs the gates of step 1-2 for every record before any hook,
// so an invalid record aborts the batch with no side effects.
//
// Load Flow:
// Construction with storage reloads every entry and verifies the chain
// before serving anything. A chain that fails verification is a
// ChainIntegrity error and no engine is returned.
//
// Errors:
// Every failure is an *Error carrying an ErrorKind. The underlying
// core, module, store and acl errors stay reachable through errors.Is
// and errors.As.
package engine
