package acl

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrInvalidGrant is returned for grants missing a key field.
var ErrInvalidGrant = errors.New("invalid grant")

// Backend stores grants keyed by (subject, resource, action).
//
// Check never errors on absence: no grant means deny. Revoke of a missing
// grant is not an error. Expired grants are invisible to Check and
// ListGrants but stay stored until revoked or replaced.
type Backend interface {
	Grant(ctx context.Context, g Grant) error
	Check(ctx context.Context, requesterOID, resourceOID, action string) (bool, error)
	Revoke(ctx context.Context, subjectOID, resourceOID, action string) error
	ListGrants(ctx context.Context, subjectOID string) ([]Grant, error)
	Clear(ctx context.Context) error
	Close() error
}

// Grant permits a subject to perform an action on a resource.
// Times are unix seconds.
type Grant struct {
	SubjectOID  string         `json:"subject_oid" yaml:"subject_oid"`
	ResourceOID string         `json:"resource_oid" yaml:"resource_oid"`
	Action      string         `json:"action" yaml:"action"`
	GrantedBy   string         `json:"granted_by" yaml:"granted_by"`
	GrantedAt   int64          `json:"granted_at" yaml:"granted_at"`
	ExpiresAt   *int64         `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Validate checks that the grant key is complete.
func (g Grant) Validate() error {
	switch {
	case g.SubjectOID == "":
		return fmt.Errorf("%w: subject_oid is empty", ErrInvalidGrant)
	case g.ResourceOID == "":
		return fmt.Errorf("%w: resource_oid is empty", ErrInvalidGrant)
	case g.Action == "":
		return fmt.Errorf("%w: action is empty", ErrInvalidGrant)
	}
	return nil
}

// ActiveAt reports whether the grant has not expired at now.
// A grant expiring exactly at now is still active.
func (g Grant) ActiveAt(now time.Time) bool {
	return g.ExpiresAt == nil || *g.ExpiresAt >= now.Unix()
}

// ExpiresIn returns a pointer to now+d in unix seconds, for building grants.
func ExpiresIn(now time.Time, d time.Duration) *int64 {
	exp := now.Add(d).Unix()
	return &exp
}

type key struct {
	subject, resource, action string
}

func (g Grant) key() key {
	return key{g.SubjectOID, g.ResourceOID, g.Action}
}

func sortGrants(grants []Grant) {
	sort.Slice(grants, func(i, j int) bool {
		if grants[i].ResourceOID != grants[j].ResourceOID {
			return grants[i].ResourceOID < grants[j].ResourceOID
		}
		return grants[i].Action < grants[j].Action
	})
}
