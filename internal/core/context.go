package core

import (
	"strings"
	"time"
)

// OIDPrefix is the namespace every requester OID must start with.
const OIDPrefix = "oid:onoal:"

// MaxClockSkew is how far into the future a request timestamp may be.
const MaxClockSkew = 5 * time.Minute

// RequestContext identifies who is asking for an operation.
type RequestContext struct {
	RequesterOID string         `json:"requester_oid"`
	Timestamp    uint64         `json:"timestamp"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// NewRequestContext returns a context stamped with the current time.
func NewRequestContext(requesterOID string) RequestContext {
	return RequestContext{
		RequesterOID: requesterOID,
		Timestamp:    NowMillis(time.Now()),
	}
}

// Validate checks the requester OID shape and that the timestamp is not
// more than MaxClockSkew ahead of now.
func (c RequestContext) Validate(now time.Time) error {
	if c.RequesterOID == "" {
		return &ValidationError{Field: "requester_oid", Reason: "is empty", Err: ErrRequesterMissing}
	}
	if err := ValidateOID(c.RequesterOID); err != nil {
		return err
	}
	if c.Timestamp > NowMillis(now.Add(MaxClockSkew)) {
		return &ValidationError{Field: "timestamp", Reason: "exceeds allowed clock skew", Err: ErrClockSkew}
	}
	return nil
}

// ValidateOID checks that oid looks like oid:onoal:{type}:{id}.
func ValidateOID(oid string) error {
	if !strings.HasPrefix(oid, OIDPrefix) {
		return &ValidationError{Field: "requester_oid", Reason: "must start with " + OIDPrefix, Err: ErrInvalidOID}
	}
	if len(strings.Split(oid, ":")) < 4 {
		return &ValidationError{Field: "requester_oid", Reason: "must have at least 4 segments", Err: ErrInvalidOID}
	}
	return nil
}

// NowMillis converts t to unix milliseconds.
func NowMillis(t time.Time) uint64 {
	ms := t.UnixMilli()
	if ms < 0 {
		return 0
	}
	return uint64(ms)
}
