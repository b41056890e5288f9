//go:build integration

package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"warish/internal/platform/config"
	"warish/internal/warish/ports"
	"warish/pkg/testutil/containers"
)

func TestKafkaNotifierPublishesKeyedRecord(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rp := containers.GetManager().GetRedpanda(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := config.Kafka{
		Brokers:           []string{rp.Broker},
		Topic:             "warish.notifications.test",
		Partitions:        1,
		ReplicationFactor: 1,
	}
	notifier, err := NewKafka(ctx, cfg)
	require.NoError(t, err)
	defer notifier.Close(ctx)

	require.NoError(t, notifier.Notify(ctx, sample(ports.EventCertificateIssued)))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Broker),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.Empty(t, fetches.Errors())
	records := fetches.Records()
	require.NotEmpty(t, records)

	var msg message
	require.NoError(t, json.Unmarshal(records[0].Value, &msg))
	assert.Equal(t, "staff-1", string(records[0].Key))
	assert.Equal(t, string(ports.EventCertificateIssued), msg.Event)
	assert.Equal(t, "WAR-2026-ABCDEFGH", msg.Payload["ack_code"])
}
