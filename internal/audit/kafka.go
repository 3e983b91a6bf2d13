package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaMirror publishes audit events to a Kafka topic so downstream
// compliance consumers can subscribe without touching the primary store.
type KafkaMirror struct {
	client *kgo.Client
	topic  string
}

// NewKafkaMirror connects to the given brokers. Returns nil when no brokers
// are configured so wiring stays unconditional in main.
func NewKafkaMirror(brokers []string, topic string) (*KafkaMirror, error) {
	if len(brokers) == 0 {
		return nil, nil
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaMirror{client: client, topic: topic}, nil
}

func (m *KafkaMirror) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: m.topic,
		Key:   []byte(event.SubjectID),
		Value: value,
	}
	if err := m.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

func (m *KafkaMirror) Close() {
	m.client.Close()
}
