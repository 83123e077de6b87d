package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/roach88/chainledger/internal/acl"
)

// Grant stores g, replacing any grant with the same key. A zero GrantedAt
// is stamped with the engine clock.
func (e *Engine) Grant(ctx context.Context, g acl.Grant) error {
	const op = "grant"
	if e.acl == nil {
		return newError(KindConfiguration, op, ErrACLDisabled)
	}
	if g.GrantedAt == 0 {
		g.GrantedAt = e.now().Unix()
	}
	if err := e.acl.Grant(ctx, g); err != nil {
		return aclError(op, err)
	}
	e.logger.Info("access granted",
		zap.String("subject", g.SubjectOID),
		zap.String("resource", g.ResourceOID),
		zap.String("action", g.Action),
	)
	return nil
}

// CheckAccess reports whether requester may perform action on resource.
// Without an ACL backend everything is permitted.
func (e *Engine) CheckAccess(ctx context.Context, requester, resource, action string) (bool, error) {
	if e.acl == nil {
		return true, nil
	}
	ok, err := e.acl.Check(ctx, requester, resource, action)
	if err != nil {
		return false, aclError("check access", err)
	}
	return ok, nil
}

// Revoke deletes the exact-key grant. Revoking a missing grant succeeds.
func (e *Engine) Revoke(ctx context.Context, subject, resource, action string) error {
	const op = "revoke"
	if e.acl == nil {
		return newError(KindConfiguration, op, ErrACLDisabled)
	}
	if err := e.acl.Revoke(ctx, subject, resource, action); err != nil {
		return aclError(op, err)
	}
	e.logger.Info("access revoked",
		zap.String("subject", subject),
		zap.String("resource", resource),
		zap.String("action", action),
	)
	return nil
}

// ListGrants returns the unexpired grants of subject.
func (e *Engine) ListGrants(ctx context.Context, subject string) ([]acl.Grant, error) {
	const op = "list grants"
	if e.acl == nil {
		return nil, newError(KindConfiguration, op, ErrACLDisabled)
	}
	grants, err := e.acl.ListGrants(ctx, subject)
	if err != nil {
		return nil, aclError(op, err)
	}
	return grants, nil
}

// HasACL reports whether an ACL backend is configured.
func (e *Engine) HasACL() bool {
	return e.acl != nil
}
