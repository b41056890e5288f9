package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"warish/internal/platform/config"
	"warish/internal/warish/ports"
)

// message is the wire form of a notification record value.
type message struct {
	Recipient string            `json:"recipient"`
	Event     string            `json:"event"`
	Payload   map[string]string `json:"payload,omitempty"`
	SentAt    time.Time         `json:"sent_at"`
}

// KafkaNotifier publishes notifications as JSON records keyed by recipient,
// so one recipient's messages stay ordered within a partition.
type KafkaNotifier struct {
	client *kgo.Client
	topic  string
	now    func() time.Time
}

// NewKafka connects to the brokers and makes sure the topic exists.
func NewKafka(ctx context.Context, cfg config.Kafka) (*KafkaNotifier, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(5*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka: create client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka: ping brokers: %w", err)
	}
	if err := ensureTopic(ctx, kadm.NewClient(client), cfg); err != nil {
		client.Close()
		return nil, err
	}
	return &KafkaNotifier{client: client, topic: cfg.Topic, now: time.Now}, nil
}

func ensureTopic(ctx context.Context, adm *kadm.Client, cfg config.Kafka) error {
	resp, err := adm.CreateTopic(ctx, cfg.Partitions, cfg.ReplicationFactor, nil, cfg.Topic)
	if err == nil {
		err = resp.Err
	}
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("kafka: create topic %s: %w", cfg.Topic, err)
	}
	return nil
}

func (k *KafkaNotifier) Notify(ctx context.Context, n ports.Notification) error {
	value, err := json.Marshal(message{
		Recipient: n.Recipient,
		Event:     string(n.Event),
		Payload:   n.Payload,
		SentAt:    k.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("kafka: encode notification: %w", err)
	}
	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(n.Recipient),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event", Value: []byte(n.Event)},
		},
	}
	if err := k.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("kafka: produce: %w", err)
	}
	return nil
}

// Close flushes buffered records and closes the client.
func (k *KafkaNotifier) Close(ctx context.Context) error {
	err := k.client.Flush(ctx)
	k.client.Close()
	return err
}
