// Package queue publishes AERIS's lifecycle events — ingestion completed,
// UPES grid refreshed, alert triggered — to Kafka for external subscribers
// (e.g. the n8n alert-webhook relay) and the worker's own on-demand
// consumer. Alert events are keyed by route ID so all events for one route
// land on the same partition; ingestion and UPES events are keyed by their
// window-end timestamp.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"time"

	"github.com/segmentio/kafka-go"
)

// EventType names an AERIS lifecycle event published on the event topic.
type EventType string

const (
	EventIngestionCompleted = EventType("ingestion_completed")
	EventUPESReady          = EventType("upes_ready")
	EventAlertTriggered     = EventType("alert_triggered")
)

// Event is the envelope published for every lifecycle event.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// IngestionCompletedPayload reports one hourly ingestion pass.
type IngestionCompletedPayload struct {
	WindowStart   time.Time `json:"window_start"`
	WindowEnd     time.Time `json:"window_end"`
	TotalInserted int       `json:"total_inserted"`
}

// UPESReadyPayload reports one completed UPES computation.
type UPESReadyPayload struct {
	WindowEnd    time.Time `json:"window_end"`
	PresentCells int       `json:"present_cells"`
}

// AlertTriggeredPayload reports one fired alert.
type AlertTriggeredPayload struct {
	UserID    string  `json:"user_id"`
	RouteID   string  `json:"route_id"`
	AlertType string  `json:"alert_type"`
	ScoreAfter float64 `json:"score_after"`
}

// Producer wraps a Kafka producer for the event topic.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a new Kafka producer.
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
	}
}

// Publish marshals an event envelope and sends it, partitioned by key
// (typically a route or user ID).
func (p *Producer) Publish(ctx context.Context, key string, eventType EventType, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("queue: marshal payload: %w", err)
	}
	envelope, err := json.Marshal(Event{Type: eventType, Timestamp: time.Now().UTC(), Payload: raw})
	if err != nil {
		return fmt.Errorf("queue: marshal envelope: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: envelope}); err != nil {
		return fmt.Errorf("queue: write message: %w", err)
	}
	return nil
}

// Close closes the producer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Consumer wraps a Kafka consumer for the event topic.
type Consumer struct {
	reader *kafka.Reader
}

// NewConsumer creates a new Kafka consumer.
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			Topic:          topic,
			GroupID:        groupID,
			MinBytes:       1,
			MaxBytes:       10e6,
			CommitInterval: 0,
			StartOffset:    kafka.LastOffset,
		}),
	}
}

// Consume reads and decodes the next event.
func (c *Consumer) Consume(ctx context.Context) (Event, kafka.Message, error) {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return Event{}, kafka.Message{}, fmt.Errorf("queue: fetch message: %w", err)
	}
	var evt Event
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return Event{}, msg, fmt.Errorf("queue: decode event: %w", err)
	}
	return evt, msg, nil
}

// Commit commits the message offset.
func (c *Consumer) Commit(ctx context.Context, msg kafka.Message) error {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		return fmt.Errorf("queue: commit offset: %w", err)
	}
	return nil
}

// Close closes the consumer.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// PartitionForRoute returns a stable partition index for a route ID, so all
// events for one route land on the same partition and are consumed in order.
func PartitionForRoute(routeID string, numPartitions int) int {
	hash := crc32.ChecksumIEEE([]byte(routeID))
	return int(hash % uint32(numPartitions))
}

// CreateTopic creates a Kafka topic with the given partition and replication
// counts, dialing the cluster controller directly. Safe to call on every
// startup; an already-existing topic is reported as an error by the broker
// and should be treated as a no-op by the caller.
func CreateTopic(brokers []string, topic string, numPartitions, replicationFactor int) error {
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("queue: dial broker: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("queue: get controller: %w", err)
	}

	controllerConn, err := kafka.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		return fmt.Errorf("queue: dial controller: %w", err)
	}
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     numPartitions,
		ReplicationFactor: replicationFactor,
	})
	if err != nil {
		return fmt.Errorf("queue: create topic %s: %w", topic, err)
	}
	return nil
}
