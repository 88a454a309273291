// Package events publishes domain events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Publisher sends a JSON payload to a named stream.
type Publisher interface {
	Publish(ctx context.Context, stream, key string, payload interface{}) error
	Close()
}

// KafkaPublisher produces records through a franz-go client. Stream names
// are prefixed, so "orders" becomes "<prefix>.orders".
type KafkaPublisher struct {
	client *kgo.Client
	prefix string
}

// NewKafkaPublisher connects to brokers.
func NewKafkaPublisher(brokers []string, prefix string) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &KafkaPublisher{client: client, prefix: prefix}, nil
}

// Topic returns the full topic name for stream.
func (p *KafkaPublisher) Topic(stream string) string {
	return TopicName(p.prefix, stream)
}

// TopicName joins prefix and stream.
func TopicName(prefix, stream string) string {
	if prefix == "" {
		return stream
	}
	return prefix + "." + stream
}

func (p *KafkaPublisher) Publish(ctx context.Context, stream, key string, payload interface{}) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	record := &kgo.Record{Topic: p.Topic(stream), Key: []byte(key), Value: value}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", record.Topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}

// Noop discards events. It stands in when no brokers are configured.
type Noop struct{}

func (Noop) Publish(ctx context.Context, stream, key string, payload interface{}) error {
	return nil
}

func (Noop) Close() {}
