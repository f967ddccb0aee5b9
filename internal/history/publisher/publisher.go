// Package publisher fans history records out to Kafka.
//
// Publishing is best-effort: the wrapped store is the source of truth, and a
// broker failure is logged without failing the verification that produced
// the record.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"procverify/internal/history"
)

const DefaultTopic = "procverify.decisions"

// Producer is the subset of *kgo.Client the publisher uses.
type Producer interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
	Flush(ctx context.Context) error
}

// PublishingStore decorates a history.Store, publishing every appended record.
type PublishingStore struct {
	next     history.Store
	producer Producer
	topic    string
	logger   *slog.Logger
	metrics  *Metrics
}

type Option func(*PublishingStore)

func WithTopic(topic string) Option {
	return func(s *PublishingStore) {
		if topic != "" {
			s.topic = topic
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *PublishingStore) {
		s.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *PublishingStore) {
		s.metrics = m
	}
}

func New(next history.Store, producer Producer, opts ...Option) *PublishingStore {
	s := &PublishingStore{
		next:     next,
		producer: producer,
		topic:    DefaultTopic,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append persists r, then enqueues it for Kafka keyed by process number.
func (s *PublishingStore) Append(ctx context.Context, r history.Record) error {
	if err := s.next.Append(ctx, r); err != nil {
		return err
	}

	payload, err := json.Marshal(r)
	if err != nil {
		s.logger.ErrorContext(ctx, "encode history record for kafka failed",
			"record_id", r.ID,
			"error", err,
		)
		s.metrics.IncPublishFailures()
		return nil
	}

	rec := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(r.ProcessNumber),
		Value: payload,
	}
	// The request context ends before the broker acks.
	s.producer.Produce(context.WithoutCancel(ctx), rec, func(_ *kgo.Record, err error) {
		if err != nil {
			s.metrics.IncPublishFailures()
			s.logger.WarnContext(ctx, "publish history record failed",
				"record_id", r.ID,
				"process_number", r.ProcessNumber,
				"topic", s.topic,
				"error", err,
			)
			return
		}
		s.metrics.IncPublished()
	})
	return nil
}

func (s *PublishingStore) ListByProcess(ctx context.Context, processNumber string) ([]history.Record, error) {
	return s.next.ListByProcess(ctx, processNumber)
}

func (s *PublishingStore) ListAll(ctx context.Context) ([]history.Record, error) {
	return s.next.ListAll(ctx)
}

// Flush waits for buffered records to be acknowledged.
func (s *PublishingStore) Flush(ctx context.Context) error {
	return s.producer.Flush(ctx)
}

// NewClient builds a producer for topic. Connections are opened lazily, so an
// unreachable broker surfaces on the first produce, not here.
func NewClient(brokers []string, topic string) (*kgo.Client, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerLinger(0),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return client, nil
}

// EnsureTopic creates topic with one partition, tolerating an existing one.
func EnsureTopic(ctx context.Context, adm *kadm.Client, topic string) error {
	resps, err := adm.CreateTopics(ctx, 1, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, r := range resps {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}
