package module

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roach88/chainledger/internal/core"
)

type fakeWriter struct {
	messages []kafka.Message
	writeErr error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.writeErr != nil {
		return w.writeErr
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func startedPublish(t *testing.T, cfg map[string]any) (*Publish, *fakeWriter) {
	t.Helper()

	m, err := NewPublish(Config{ID: PublishID})
	require.NoError(t, err)
	p := m.(*Publish)

	w := &fakeWriter{}
	p.newWriter = func(PublishSettings, *zap.Logger) MessageWriter { return w }

	mc := Context{LedgerID: "audit", Config: cfg, Logger: zap.NewNop()}
	ctx := context.Background()
	require.NoError(t, p.Init(ctx, mc))
	require.NoError(t, p.Start(ctx, mc))
	return p, w
}

func TestParsePublishSettings(t *testing.T) {
	s, err := ParsePublishSettings(map[string]any{
		"brokers":       []any{"k1:9092", "k2:9092"},
		"topic":         "ledger-entries",
		"streams":       []any{"proofs"},
		"required_acks": "all",
		"write_timeout": "2s",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, s.Brokers)
	assert.Equal(t, "ledger-entries", s.Topic)
	assert.True(t, s.Streams["proofs"])
	assert.Equal(t, kafka.RequireAll, s.RequiredAcks)
	assert.Equal(t, 2*time.Second, s.WriteTimeout)

	defaults, err := ParsePublishSettings(map[string]any{"brokers": "k:9092", "topic": "t"})
	require.NoError(t, err)
	assert.Equal(t, kafka.RequireOne, defaults.RequiredAcks)
	assert.Equal(t, 5*time.Second, defaults.WriteTimeout)
	assert.Empty(t, defaults.Streams)
}

func TestParsePublishSettingsErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  map[string]any
	}{
		{"no brokers", map[string]any{"topic": "t"}},
		{"no topic", map[string]any{"brokers": []any{"k"}}},
		{"bad broker type", map[string]any{"brokers": []any{1}, "topic": "t"}},
		{"bad acks", map[string]any{"brokers": "k", "topic": "t", "required_acks": "some"}},
		{"bad timeout", map[string]any{"brokers": "k", "topic": "t", "write_timeout": "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePublishSettings(tt.cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestPublishInitFailsOnBadConfig(t *testing.T) {
	m, err := NewPublish(Config{})
	require.NoError(t, err)

	err = m.Init(context.Background(), Context{Config: map[string]any{}})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestPublishAfterAppendWritesEntry(t *testing.T) {
	genesis := core.Record{ID: "r0", Stream: "proofs", Timestamp: 4, Payload: map[string]any{}}
	genesisHash := core.MustComputeHash(genesis)

	tests := []struct {
		name string
		prev *core.Hash
	}{
		{"genesis", nil},
		{"linked", genesisHash.Ptr()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, w := startedPublish(t, map[string]any{"brokers": "k:9092", "topic": "t"})

			rec := core.Record{ID: "r1", Stream: "proofs", Timestamp: 5, Payload: map[string]any{"n": json.Number("1")}}
			entry, err := core.NewChainEntry(rec, tt.prev)
			require.NoError(t, err)
			require.NoError(t, p.AfterAppend(context.Background(), entry))

			require.Len(t, w.messages, 1)
			msg := w.messages[0]
			assert.Equal(t, "proofs", string(msg.Key))

			var got PublishedEntry
			require.NoError(t, json.Unmarshal(msg.Value, &got))
			assert.Equal(t, "audit", got.LedgerID)
			assert.Equal(t, entry.Hash, got.Hash)
			assert.Equal(t, tt.prev, got.PrevHash)
			assert.Equal(t, entry.Hash, core.MustComputeHash(got.Record), "published record hashes identically")

			var raw map[string]any
			require.NoError(t, json.Unmarshal(msg.Value, &raw))
			_, hasPrev := raw["prev_hash"]
			assert.Equal(t, tt.prev != nil, hasPrev)

			headers := map[string]string{}
			for _, hd := range msg.Headers {
				headers[hd.Key] = string(hd.Value)
			}
			assert.Equal(t, entry.Hash.String(), headers["hash"])
			assert.Equal(t, "audit", headers["ledger"])
		})
	}
}

func TestPublishStreamAllowList(t *testing.T) {
	p, w := startedPublish(t, map[string]any{"brokers": "k", "topic": "t", "streams": []any{"assets"}})

	rec := core.Record{ID: "r1", Stream: "proofs", Timestamp: 5, Payload: map[string]any{}}
	require.NoError(t, p.AfterAppend(context.Background(), core.ChainEntry{Record: rec, Hash: core.MustComputeHash(rec)}))
	assert.Empty(t, w.messages)
}

func TestPublishWriteFailureSurfaces(t *testing.T) {
	p, w := startedPublish(t, map[string]any{"brokers": "k", "topic": "t"})
	w.writeErr = errors.New("broker down")

	rec := core.Record{ID: "r1", Stream: "s", Timestamp: 5, Payload: map[string]any{}}
	err := p.AfterAppend(context.Background(), core.ChainEntry{Record: rec, Hash: core.MustComputeHash(rec)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestPublishStopClosesWriter(t *testing.T) {
	p, w := startedPublish(t, map[string]any{"brokers": "k", "topic": "t"})

	require.NoError(t, p.Stop(context.Background(), Context{}))
	assert.True(t, w.closed)
	require.NoError(t, p.Stop(context.Background(), Context{}), "second stop is a no-op")

	rec := core.Record{ID: "r1", Stream: "s", Timestamp: 5, Payload: map[string]any{}}
	assert.Error(t, p.AfterAppend(context.Background(), core.ChainEntry{Record: rec}))
}
