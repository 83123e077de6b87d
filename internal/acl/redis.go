package acl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces every key the Redis backend writes.
const DefaultRedisPrefix = "chainledger:acl:"

// Redis stores grants in one hash per subject, field "resource\x00action",
// plus a set of known subjects so Clear can find every hash.
type Redis struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// RedisOption configures a Redis backend.
type RedisOption func(*Redis)

// WithRedisClock overrides the time source used for expiry checks.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(r *Redis) {
		r.now = now
	}
}

// WithRedisPrefix overrides DefaultRedisPrefix.
func WithRedisPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// NewRedis wraps an existing client. Close closes the client.
func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	r := &Redis{client: client, prefix: DefaultRedisPrefix, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DialRedis connects to addr and verifies the connection with PING.
func DialRedis(ctx context.Context, addr string, db int, opts ...RedisOption) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return NewRedis(client, opts...), nil
}

func (r *Redis) subjectKey(subject string) string {
	return r.prefix + "grants:" + subject
}

func (r *Redis) subjectsKey() string {
	return r.prefix + "subjects"
}

func field(resource, action string) string {
	return resource + "\x00" + action
}

func (r *Redis) Grant(ctx context.Context, g Grant) error {
	if err := g.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("encode grant: %w", err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.subjectKey(g.SubjectOID), field(g.ResourceOID, g.Action), data)
		pipe.SAdd(ctx, r.subjectsKey(), g.SubjectOID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis grant: %w", err)
	}
	return nil
}

func (r *Redis) Check(ctx context.Context, requesterOID, resourceOID, action string) (bool, error) {
	data, err := r.client.HGet(ctx, r.subjectKey(requesterOID), field(resourceOID, action)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis check: %w", err)
	}
	var g Grant
	if err := json.Unmarshal(data, &g); err != nil {
		return false, fmt.Errorf("decode grant: %w", err)
	}
	return g.ActiveAt(r.now()), nil
}

func (r *Redis) Revoke(ctx context.Context, subjectOID, resourceOID, action string) error {
	if err := r.client.HDel(ctx, r.subjectKey(subjectOID), field(resourceOID, action)).Err(); err != nil {
		return fmt.Errorf("redis revoke: %w", err)
	}
	return nil
}

func (r *Redis) ListGrants(ctx context.Context, subjectOID string) ([]Grant, error) {
	values, err := r.client.HVals(ctx, r.subjectKey(subjectOID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list grants: %w", err)
	}
	now := r.now()
	out := make([]Grant, 0, len(values))
	for _, v := range values {
		var g Grant
		if err := json.Unmarshal([]byte(v), &g); err != nil {
			return nil, fmt.Errorf("decode grant: %w", err)
		}
		if g.ActiveAt(now) {
			out = append(out, g)
		}
	}
	sortGrants(out)
	return out, nil
}

func (r *Redis) Clear(ctx context.Context) error {
	subjects, err := r.client.SMembers(ctx, r.subjectsKey()).Result()
	if err != nil {
		return fmt.Errorf("redis clear: %w", err)
	}
	keys := make([]string, 0, len(subjects)+1)
	for _, s := range subjects {
		keys = append(keys, r.subjectKey(s))
	}
	keys = append(keys, r.subjectsKey())
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis clear: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
