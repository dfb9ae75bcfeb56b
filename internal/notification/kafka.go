package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic" default:"trading-events"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes notifications as JSON, keyed by thread key so a symbol's
// events stay on one partition
type KafkaNotifier struct {
	config KafkaConfig
	writer messageWriter
}

// NewKafkaNotifier creates a Kafka notifier
func NewKafkaNotifier(config KafkaConfig) *KafkaNotifier {
	k := &KafkaNotifier{config: config}
	if len(config.Brokers) > 0 {
		k.writer = &kafka.Writer{
			Addr:         kafka.TCP(config.Brokers...),
			Topic:        config.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Compression:  kafka.Gzip,
			MaxAttempts:  3,
			WriteTimeout: 10 * time.Second,
			BatchTimeout: 100 * time.Millisecond,
		}
	}
	return k
}

func (k *KafkaNotifier) Name() string {
	return "kafka"
}

func (k *KafkaNotifier) IsEnabled() bool {
	return k.config.Enabled && k.writer != nil && k.config.Topic != ""
}

func (k *KafkaNotifier) Send(ctx context.Context, n *Notification) error {
	if !k.IsEnabled() {
		return nil
	}
	value, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	key := n.ThreadKey
	if key == "" {
		key = string(n.Type)
	}
	msg := kafka.Message{Key: []byte(key), Value: value, Time: n.Timestamp}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write failed: %w", err)
	}
	return nil
}

// Close flushes and closes the writer
func (k *KafkaNotifier) Close() error {
	if k.writer != nil {
		return k.writer.Close()
	}
	return nil
}
