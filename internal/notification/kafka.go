package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

// NewKafkaProducer dials brokers and returns a synchronous producer that waits
// for all in-sync replicas.
func NewKafkaProducer(brokers []string, clientID string, timeout time.Duration) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	cfg.Version = sarama.V2_8_0_0
	if timeout > 0 {
		cfg.Producer.Timeout = timeout
		cfg.Net.DialTimeout = timeout
		cfg.Net.ReadTimeout = timeout
		cfg.Net.WriteTimeout = timeout
	}
	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// KafkaNotifier publishes notifications as JSON records keyed by user id, so
// every event of one saver lands on the same partition in order.
type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaNotifier wraps an existing producer.
func NewKafkaNotifier(producer sarama.SyncProducer, topic string) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic}
}

// Send publishes message and blocks until the broker acknowledges it.
func (n *KafkaNotifier) Send(ctx context.Context, message Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if message.OccurredAt.IsZero() {
		message.OccurredAt = time.Now().UTC()
	}
	value, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	record := &sarama.ProducerMessage{
		Topic: n.topic,
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("kind"), Value: []byte(message.Kind)},
		},
	}
	if message.UserID != "" {
		record.Key = sarama.StringEncoder(message.UserID)
	}
	if _, _, err := n.producer.SendMessage(record); err != nil {
		return fmt.Errorf("publish %s: %w", message.Kind, err)
	}
	return nil
}

// Close releases the underlying producer.
func (n *KafkaNotifier) Close() error {
	return n.producer.Close()
}
