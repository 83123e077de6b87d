package module

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/roach88/chainledger/internal/core"
)

const PublishID = "publish"

// MessageWriter is the subset of *kafka.Writer the publish module needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PublishSettings is the parsed publish module config.
type PublishSettings struct {
	Brokers      []string
	Topic        string
	Streams      map[string]bool // empty means all streams
	RequiredAcks kafka.RequiredAcks
	WriteTimeout time.Duration
}

// Publish forwards every appended entry to a Kafka topic.
//
// Config keys: brokers (list, required), topic (required), streams
// (optional allow-list), required_acks (none|one|all, default one),
// write_timeout (duration string, default 5s).
type Publish struct {
	Base
	newWriter func(PublishSettings, *zap.Logger) MessageWriter

	ledgerID string
	settings PublishSettings
	writer   MessageWriter
	logger   *zap.Logger
}

// PublishedEntry is the JSON value of each Kafka message.
type PublishedEntry struct {
	LedgerID string      `json:"ledger_id"`
	Hash     core.Hash   `json:"hash"`
	PrevHash *core.Hash  `json:"prev_hash,omitempty"`
	Record   core.Record `json:"record"`
}

// NewPublish builds the publish module. The Kafka writer is created on Start.
func NewPublish(cfg Config) (Module, error) {
	return &Publish{
		Base:      NewBase(PublishID, versionOr(cfg)),
		newWriter: newKafkaWriter,
		logger:    zap.NewNop(),
	}, nil
}

func newKafkaWriter(s PublishSettings, logger *zap.Logger) MessageWriter {
	return &kafka.Writer{
		Addr:         kafka.TCP(s.Brokers...),
		Topic:        s.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: s.RequiredAcks,
		WriteTimeout: s.WriteTimeout,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Sugar().Errorf("kafka writer: "+msg, args...)
		}),
	}
}

// ParsePublishSettings validates the free-form module config.
func ParsePublishSettings(cfg map[string]any) (PublishSettings, error) {
	s := PublishSettings{
		Streams:      map[string]bool{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: 5 * time.Second,
	}

	brokers, err := stringList(cfg["brokers"])
	if err != nil {
		return s, fmt.Errorf("%w: brokers: %v", ErrInvalidConfig, err)
	}
	if len(brokers) == 0 {
		return s, fmt.Errorf("%w: brokers is required", ErrInvalidConfig)
	}
	s.Brokers = brokers

	topic, _ := cfg["topic"].(string)
	if topic == "" {
		return s, fmt.Errorf("%w: topic is required", ErrInvalidConfig)
	}
	s.Topic = topic

	streams, err := stringList(cfg["streams"])
	if err != nil {
		return s, fmt.Errorf("%w: streams: %v", ErrInvalidConfig, err)
	}
	for _, st := range streams {
		s.Streams[st] = true
	}

	switch acks, _ := cfg["required_acks"].(string); acks {
	case "", "one":
	case "none":
		s.RequiredAcks = kafka.RequireNone
	case "all":
		s.RequiredAcks = kafka.RequireAll
	default:
		return s, fmt.Errorf("%w: required_acks %q", ErrInvalidConfig, acks)
	}

	if raw, ok := cfg["write_timeout"].(string); ok && raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return s, fmt.Errorf("%w: write_timeout: %v", ErrInvalidConfig, err)
		}
		s.WriteTimeout = d
	}
	return s, nil
}

func stringList(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return val, nil
	case []any:
		out := make([]string, 0, len(val))
		for i, e := range val {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("element %d is %T, want string", i, e)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		return []string{val}, nil
	default:
		return nil, fmt.Errorf("got %T, want list of strings", v)
	}
}

func (p *Publish) Init(_ context.Context, mc Context) error {
	settings, err := ParsePublishSettings(mc.Config)
	if err != nil {
		return err
	}
	p.settings = settings
	p.ledgerID = mc.LedgerID
	if mc.Logger != nil {
		p.logger = mc.Logger
	}
	return nil
}

func (p *Publish) Start(context.Context, Context) error {
	p.writer = p.newWriter(p.settings, p.logger)
	p.logger.Info("publishing entries",
		zap.Strings("brokers", p.settings.Brokers),
		zap.String("topic", p.settings.Topic),
	)
	return nil
}

func (p *Publish) Stop(context.Context, Context) error {
	if p.writer == nil {
		return nil
	}
	err := p.writer.Close()
	p.writer = nil
	return err
}

func (p *Publish) AfterAppend(ctx context.Context, entry core.ChainEntry) error {
	if len(p.settings.Streams) > 0 && !p.settings.Streams[entry.Record.Stream] {
		return nil
	}
	if p.writer == nil {
		return errors.New("publish writer not started")
	}

	value, err := json.Marshal(PublishedEntry{
		LedgerID: p.ledgerID,
		Hash:     entry.Hash,
		PrevHash: entry.PrevHash,
		Record:   entry.Record,
	})
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(entry.Record.Stream),
		Value: value,
		Headers: []kafka.Header{
			{Key: "ledger", Value: []byte(p.ledgerID)},
			{Key: "hash", Value: []byte(entry.Hash.String())},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write to kafka: %w", err)
	}
	return nil
}
