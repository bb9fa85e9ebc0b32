package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/tphakala/eas-monitor/internal/errors"
)

// kafkaWriter is the subset of *kafka.Writer the sink uses.
type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink produces the JSON payload of each alert, keyed by source so
// that one source's alerts stay ordered within a partition.
type KafkaSink struct {
	writer kafkaWriter
	topic  string
}

// NewKafkaSink creates a producer for topic on brokers.
func NewKafkaSink(brokers []string, topic string, writeTimeout time.Duration) (*KafkaSink, error) {
	if len(brokers) == 0 {
		return nil, errors.Newf("kafka sink requires at least one broker").
			Component(componentAlert).
			Category(errors.CategoryConfiguration).
			Build()
	}
	if topic == "" {
		return nil, errors.Newf("kafka sink requires a topic").
			Component(componentAlert).
			Category(errors.CategoryConfiguration).
			Build()
	}
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		WriteTimeout:           writeTimeout,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &KafkaSink{writer: w, topic: topic}, nil
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Deliver(ctx context.Context, a Alert) error {
	value, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(a.SourceID),
		Value: value,
		Time:  a.Received,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(a.Kind)},
			{Key: "event", Value: []byte(a.Event())},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return errors.New(err).
			Component(componentAlert).
			Category(errors.CategoryNetwork).
			Context("topic", s.topic).
			Build()
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
