package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// DefaultEdgesTopic is the topic edges are published to when the
// configuration does not name one.
const DefaultEdgesTopic = "squirrel.graph.edges"

// MessageWriter abstracts kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaLogger publishes discovery edges as JSON messages. Messages are
// keyed by parent so that every edge of one crawl lands on the same
// partition in order.
type KafkaLogger struct {
	writer MessageWriter
	clock  func() time.Time
}

// NewKafkaLogger connects a logger to the given brokers and topic. An
// empty topic selects DefaultEdgesTopic.
func NewKafkaLogger(brokers []string, topic string) *KafkaLogger {
	if topic == "" {
		topic = DefaultEdgesTopic
	}
	return NewKafkaLoggerWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	})
}

// NewKafkaLoggerWithWriter wraps an existing writer. Tests use this to
// substitute a fake.
func NewKafkaLoggerWithWriter(w MessageWriter) *KafkaLogger {
	return &KafkaLogger{writer: w, clock: time.Now}
}

// LogDiscovery publishes one message per child.
func (l *KafkaLogger) LogDiscovery(ctx context.Context, parent string, children []string) error {
	if len(children) == 0 {
		return nil
	}
	now := l.clock().UTC()
	msgs := make([]kafka.Message, 0, len(children))
	for _, child := range children {
		payload, err := json.Marshal(Edge{Parent: parent, Child: child, DiscoveredAt: now})
		if err != nil {
			return fmt.Errorf("graph: marshal edge: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(parent),
			Value: payload,
			Time:  now,
		})
	}
	if err := l.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("graph: publish edges: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (l *KafkaLogger) Close() error {
	return l.writer.Close()
}
