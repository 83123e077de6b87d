package acl

import (
	"context"
	"time"
)

// Memory is an in-process Backend. It is not safe for concurrent use.
type Memory struct {
	grants map[key]Grant
	now    func() time.Time
}

// MemoryOption configures a Memory backend.
type MemoryOption func(*Memory)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

// NewMemory returns an empty in-memory backend.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		grants: make(map[key]Grant),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Grant(_ context.Context, g Grant) error {
	if err := g.Validate(); err != nil {
		return err
	}
	m.grants[g.key()] = g
	return nil
}

func (m *Memory) Check(_ context.Context, requesterOID, resourceOID, action string) (bool, error) {
	g, ok := m.grants[key{requesterOID, resourceOID, action}]
	if !ok {
		return false, nil
	}
	return g.ActiveAt(m.now()), nil
}

func (m *Memory) Revoke(_ context.Context, subjectOID, resourceOID, action string) error {
	delete(m.grants, key{subjectOID, resourceOID, action})
	return nil
}

func (m *Memory) ListGrants(_ context.Context, subjectOID string) ([]Grant, error) {
	now := m.now()
	out := []Grant{}
	for k, g := range m.grants {
		if k.subject == subjectOID && g.ActiveAt(now) {
			out = append(out, g)
		}
	}
	sortGrants(out)
	return out, nil
}

func (m *Memory) Clear(context.Context) error {
	m.grants = make(map[key]Grant)
	return nil
}

// Len returns the number of stored grants, expired ones included.
func (m *Memory) Len() int {
	return len(m.grants)
}

func (m *Memory) Close() error {
	return nil
}
