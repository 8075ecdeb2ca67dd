// Package events publishes classification outcomes to downstream
// consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"triage/internal/models"
)

// Publisher sends ClassifiedEvents downstream.
type Publisher interface {
	PublishClassified(ctx context.Context, event models.ClassifiedEvent) error
	Close() error
}

// MessageWriter is the subset of *kafka.Writer used by KafkaPublisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON to a Kafka topic, keyed by
// customer id so a customer's events stay ordered within a partition.
type KafkaPublisher struct {
	writer MessageWriter
}

// NewKafkaPublisher creates a publisher for topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return NewKafkaPublisherWithWriter(newWriter(brokers, topic))
}

// newWriter hashes message keys onto partitions. Events are published one
// per request, so the batch timeout is kept short.
func newWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
	}
}

// NewKafkaPublisherWithWriter wires an existing writer, e.g. a test double.
func NewKafkaPublisherWithWriter(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) PublishClassified(ctx context.Context, event models.ClassifiedEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode classified event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.CustomerID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("message.classified")},
			{Key: "message_type", Value: []byte(event.MessageType)},
		},
		Time: event.OccurredAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write classified event: %w", err)
	}

	log.Debugf("Sent classified event %s to Kafka", event.EventID)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher drops events. Used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishClassified(ctx context.Context, event models.ClassifiedEvent) error {
	return nil
}

func (NoopPublisher) Close() error { return nil }

var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = NoopPublisher{}
)
