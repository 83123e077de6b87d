// Package acl gates ledger writes by (subject, resource, action) grants.
//
// Keys match exactly: no wildcards, no hierarchy. Expiry is evaluated at
// read time against the backend's clock.
package acl
