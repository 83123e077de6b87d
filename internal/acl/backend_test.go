package acl

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice  = "oid:onoal:human:alice"
	bob    = "oid:onoal:human:bob"
	admin  = "oid:onoal:system:admin"
	ledger = "ledger:X"
)

// fixedClock is a settable time source.
type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

type backendFactory func(t *testing.T, clock *fixedClock) Backend

// runBackendSuite checks the Backend contract against any implementation.
func runBackendSuite(t *testing.T, newBackend backendFactory) {
	ctx := context.Background()
	start := time.Unix(1_700_000_000, 0)

	t.Run("grant check revoke", func(t *testing.T) {
		b := newBackend(t, &fixedClock{t: start})

		require.NoError(t, b.Grant(ctx, Grant{SubjectOID: alice, ResourceOID: ledger, Action: "write", GrantedBy: admin, GrantedAt: start.Unix()}))

		ok, err := b.Check(ctx, alice, ledger, "write")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = b.Check(ctx, bob, ledger, "write")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = b.Check(ctx, alice, ledger, "read")
		require.NoError(t, err)
		assert.False(t, ok, "action must match exactly")

		require.NoError(t, b.Revoke(ctx, alice, ledger, "write"))
		ok, err = b.Check(ctx, alice, ledger, "write")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("revoke missing is not an error", func(t *testing.T) {
		b := newBackend(t, &fixedClock{t: start})
		assert.NoError(t, b.Revoke(ctx, alice, ledger, "write"))
	})

	t.Run("expired grant denies immediately", func(t *testing.T) {
		b := newBackend(t, &fixedClock{t: start})
		past := start.Unix() - 1

		require.NoError(t, b.Grant(ctx, Grant{SubjectOID: alice, ResourceOID: ledger, Action: "write", ExpiresAt: &past}))

		ok, err := b.Check(ctx, alice, ledger, "write")
		require.NoError(t, err)
		assert.False(t, ok)

		grants, err := b.ListGrants(ctx, alice)
		require.NoError(t, err)
		assert.Empty(t, grants)
	})

	t.Run("expiry boundary is inclusive", func(t *testing.T) {
		clock := &fixedClock{t: start}
		b := newBackend(t, clock)

		require.NoError(t, b.Grant(ctx, Grant{SubjectOID: alice, ResourceOID: ledger, Action: "write", ExpiresAt: ExpiresIn(start, 10*time.Second)}))

		clock.t = start.Add(10 * time.Second)
		ok, err := b.Check(ctx, alice, ledger, "write")
		require.NoError(t, err)
		assert.True(t, ok)

		clock.t = start.Add(11 * time.Second)
		ok, err = b.Check(ctx, alice, ledger, "write")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("regrant replaces", func(t *testing.T) {
		b := newBackend(t, &fixedClock{t: start})
		past := start.Unix() - 100

		require.NoError(t, b.Grant(ctx, Grant{SubjectOID: alice, ResourceOID: ledger, Action: "write", ExpiresAt: &past}))
		require.NoError(t, b.Grant(ctx, Grant{SubjectOID: alice, ResourceOID: ledger, Action: "write", GrantedBy: "second"}))

		grants, err := b.ListGrants(ctx, alice)
		require.NoError(t, err)
		require.Len(t, grants, 1)
		assert.Equal(t, "second", grants[0].GrantedBy)
		assert.Nil(t, grants[0].ExpiresAt)
	})

	t.Run("list grants for subject", func(t *testing.T) {
		b := newBackend(t, &fixedClock{t: start})

		for _, g := range []Grant{
			{SubjectOID: alice, ResourceOID: "ledger:B", Action: "write"},
			{SubjectOID: alice, ResourceOID: "ledger:A", Action: "write", Metadata: map[string]any{"reason": "audit"}},
			{SubjectOID: alice, ResourceOID: "ledger:A", Action: "read"},
			{SubjectOID: bob, ResourceOID: "ledger:A", Action: "write"},
		} {
			require.NoError(t, b.Grant(ctx, g))
		}

		grants, err := b.ListGrants(ctx, alice)
		require.NoError(t, err)
		require.Len(t, grants, 3)
		assert.Equal(t, "ledger:A", grants[0].ResourceOID)
		assert.Equal(t, "read", grants[0].Action)
		assert.Equal(t, "write", grants[1].Action)
		assert.Equal(t, "audit", grants[1].Metadata["reason"])
		assert.Equal(t, "ledger:B", grants[2].ResourceOID)

		none, err := b.ListGrants(ctx, "oid:onoal:human:nobody")
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})

	t.Run("clear", func(t *testing.T) {
		b := newBackend(t, &fixedClock{t: start})
		require.NoError(t, b.Grant(ctx, Grant{SubjectOID: alice, ResourceOID: ledger, Action: "write"}))
		require.NoError(t, b.Grant(ctx, Grant{SubjectOID: bob, ResourceOID: ledger, Action: "write"}))

		require.NoError(t, b.Clear(ctx))

		for _, s := range []string{alice, bob} {
			ok, err := b.Check(ctx, s, ledger, "write")
			require.NoError(t, err)
			assert.False(t, ok)
		}
	})

	t.Run("invalid grant rejected", func(t *testing.T) {
		b := newBackend(t, &fixedClock{t: start})
		for _, g := range []Grant{
			{ResourceOID: ledger, Action: "write"},
			{SubjectOID: alice, Action: "write"},
			{SubjectOID: alice, ResourceOID: ledger},
		} {
			assert.ErrorIs(t, b.Grant(ctx, g), ErrInvalidGrant)
		}
	})
}

func TestMemoryBackend(t *testing.T) {
	runBackendSuite(t, func(t *testing.T, clock *fixedClock) Backend {
		return NewMemory(WithClock(clock.Now))
	})
}

func TestMemoryKeepsExpiredUntilRevoked(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	past := time.Now().Add(-time.Hour).Unix()

	require.NoError(t, m.Grant(ctx, Grant{SubjectOID: alice, ResourceOID: ledger, Action: "write", ExpiresAt: &past}))
	assert.Equal(t, 1, m.Len())

	require.NoError(t, m.Revoke(ctx, alice, ledger, "write"))
	assert.Equal(t, 0, m.Len())
	assert.NoError(t, m.Close())
}

func TestRedisBackend(t *testing.T) {
	addr := os.Getenv("CHAINLEDGER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CHAINLEDGER_TEST_REDIS_ADDR not set")
	}

	n := 0
	runBackendSuite(t, func(t *testing.T, clock *fixedClock) Backend {
		n++
		prefix := fmt.Sprintf("chainledger-test:%d:%d:", time.Now().UnixNano(), n)
		r, err := DialRedis(context.Background(), addr, 0, WithRedisPrefix(prefix), WithRedisClock(clock.Now))
		require.NoError(t, err)
		t.Cleanup(func() {
			_ = r.Clear(context.Background())
			_ = r.Close()
		})
		return r
	})
}
