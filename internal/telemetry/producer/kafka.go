package producer

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	auditdomain "customer-panel/backend/internal/audit/domain"
)

// KafkaProducer implements Producer using segmentio/kafka-go.
type KafkaProducer struct {
	writer *kafka.Writer
	topic  string
}

// NewKafkaProducer creates a Kafka producer that writes audit records to the given topic.
// It returns nil when brokers or topic are empty, which disables export. Call Close when shutting down.
func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
	return &KafkaProducer{writer: writer, topic: topic}
}

// Emit writes rec as JSON. Records of one service share a key so they land on one partition in order.
func (p *KafkaProducer) Emit(ctx context.Context, rec *auditdomain.Record) error {
	if p == nil || p.writer == nil || rec == nil {
		return nil
	}
	msg, err := encodeMessage(rec)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.writer.WriteMessages(writeCtx, msg)
}

// Close closes the Kafka writer. Safe to call on a nil producer.
func (p *KafkaProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func encodeMessage(rec *auditdomain.Record) (kafka.Message, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return kafka.Message{}, err
	}
	key := rec.ServiceID
	if key == "" {
		key = "_panel"
	}
	return kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "audit-id", Value: []byte(strconv.FormatInt(rec.ID, 10))},
			{Key: "audit-action", Value: []byte(rec.Action)},
		},
		Time: time.Unix(rec.Timestamp, 0).UTC(),
	}, nil
}
