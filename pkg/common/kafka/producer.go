package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/KashishBagga/pamm/pkg/common/logger"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// AuditEvent is the wire shape published to the compliance stream. The
// database row written by the audit repository stays authoritative; this
// copy exists so downstream SIEM tooling can consume the trail without
// polling the store.
type AuditEvent struct {
	ID              string                 `json:"id"`
	Action          string                 `json:"action"`
	PerformedBy     string                 `json:"performed_by"`
	PatientRecordID string                 `json:"patient_record_id,omitempty"`
	Details         string                 `json:"details,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	ClientIP        string                 `json:"client_ip,omitempty"`
	Timestamp       time.Time              `json:"timestamp"`
}

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{writer: writer}
}

func (p *Producer) PublishAuditEvent(ctx context.Context, event AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(event.PerformedBy),
		Value: eventBytes,
		Headers: []kafka.Header{
			{Key: "action", Value: []byte(event.Action)},
		},
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"event_id": event.ID,
			"action":   event.Action,
		}).Error("Failed to publish audit event")
		return err
	}

	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
