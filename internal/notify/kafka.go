// Package notify publishes history capture events to Kafka.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/jbt95/trenes/internal/history"
)

const writeTimeout = 10 * time.Second

// CapturedEvent is the message value published for each capture
type CapturedEvent struct {
	ID           string `json:"id"`
	Timestamp    int64  `json:"timestamp"`
	Filename     string `json:"filename"`
	VehicleCount int    `json:"vehicleCount"`
	AlertCount   int    `json:"alertCount"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher implements history.Notifier on a kafka-go writer
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

// NewKafkaPublisher creates a synchronous publisher. Messages are keyed by
// entry id so one entry always lands on the same partition.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("brokers cannot be empty")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		WriteTimeout:           writeTimeout,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}

	log.Printf("Notify: publishing captures to Kafka topic %s via %v", topic, brokers)
	return &KafkaPublisher{writer: writer, topic: topic}, nil
}

func newMessage(entry history.IndexEntry) (kafka.Message, error) {
	event := CapturedEvent{
		ID:           entry.ResolvedID(),
		Timestamp:    entry.Timestamp,
		Filename:     entry.Filename,
		VehicleCount: entry.Vehicles(),
		AlertCount:   entry.Alerts(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal capture event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(event.ID),
		Value: payload,
		Time:  time.Unix(event.Timestamp, 0),
	}, nil
}

// NotifyCaptured publishes one CapturedEvent and waits for the leader ack
func (p *KafkaPublisher) NotifyCaptured(ctx context.Context, entry history.IndexEntry) error {
	msg, err := newMessage(entry)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to topic %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
