package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer used by KafkaDispatcher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaDispatcher publishes events as JSON to a Kafka topic, keyed by subject
// id so a subject's events stay ordered within a partition.
type KafkaDispatcher struct {
	writer MessageWriter
}

// NewKafkaDispatcher returns a dispatcher writing to topic on brokers, or nil
// when either is empty. Call Close when shutting down.
func NewKafkaDispatcher(brokers []string, topic string) *KafkaDispatcher {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	return NewKafkaDispatcherWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	})
}

// NewKafkaDispatcherWithWriter wraps an existing writer.
func NewKafkaDispatcherWithWriter(w MessageWriter) *KafkaDispatcher {
	return &KafkaDispatcher{writer: w}
}

func (k *KafkaDispatcher) Dispatch(ctx context.Context, e Event) error {
	if k == nil || k.writer == nil {
		return nil
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.SubjectID),
		Value: payload,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
		},
	})
}

// Close closes the writer. Safe on a nil dispatcher.
func (k *KafkaDispatcher) Close() error {
	if k == nil || k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
