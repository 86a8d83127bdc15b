package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaConfig configures a KafkaSink.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
}

// producer is the subset of *kgo.Client used by KafkaSink.
type producer interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
	Flush(ctx context.Context) error
	Close()
}

// KafkaSink produces one JSON record per event, keyed by the record key.
// Produces are asynchronous; the first delivery error is reported by the
// next Record, Flush or Close call.
type KafkaSink struct {
	client producer
	topic  string

	mu     sync.Mutex
	err    error
	closed bool
}

// NewKafkaSink connects to the seed brokers.
func NewKafkaSink(cfg KafkaConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("audit: at least one kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("audit: kafka topic is required")
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
	}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("audit: create kafka client: %w", err)
	}
	return newKafkaSink(client, cfg.Topic), nil
}

func newKafkaSink(client producer, topic string) *KafkaSink {
	return &KafkaSink{client: client, topic: topic}
}

func (s *KafkaSink) takeErr() error {
	err := s.err
	s.err = nil
	return err
}

func (s *KafkaSink) Record(ctx context.Context, ev Event) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("audit: kafka sink is closed")
	}
	prev := s.takeErr()
	s.mu.Unlock()

	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("audit: encode event: %w", err)
	}

	s.client.Produce(ctx, &kgo.Record{
		Topic: s.topic,
		Key:   []byte(ev.Key),
		Value: value,
	}, func(r *kgo.Record, err error) {
		if err == nil {
			return
		}
		s.mu.Lock()
		if s.err == nil {
			s.err = fmt.Errorf("audit: produce to %s: %w", r.Topic, err)
		}
		s.mu.Unlock()
	})
	return prev
}

// Flush waits for buffered records to be acknowledged.
func (s *KafkaSink) Flush(ctx context.Context) error {
	if err := s.client.Flush(ctx); err != nil {
		return fmt.Errorf("audit: kafka flush: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.takeErr()
}

// Close flushes and closes the client.
func (s *KafkaSink) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.Flush(ctx)
	s.client.Close()
	return err
}

var _ Sink = (*KafkaSink)(nil)
