package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/twmb/franz-go/pkg/kgo"
)

// ConsumerGroup identifies the stream-processor group; offsets are
// committed automatically on the default interval.
const ConsumerGroup = "stream-processor-group"

// HandlerFunc is called once per consumed record value.
type HandlerFunc func(ctx context.Context, value []byte)

// Consumer reads trade frames as part of the processor group.
type Consumer struct {
	client *kgo.Client
}

// NewConsumer joins the consumer group on the given topic. New groups
// start at the latest offset: the processor is a realtime pipeline and
// never replays history.
func NewConsumer(brokers []string, topic string) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(ConsumerGroup),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
		kgo.FetchMaxWait(500*time.Millisecond),
		kgo.SessionTimeout(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("stream: consumer client: %w", err)
	}
	return &Consumer{client: client}, nil
}

// Run polls until ctx is cancelled, passing every record value to handle.
func (c *Consumer) Run(ctx context.Context, handle HandlerFunc) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			log.Error().Err(err).Str("topic", topic).Int32("partition", partition).Msg("fetch error")
		})
		fetches.EachRecord(func(record *kgo.Record) {
			handle(ctx, record.Value)
		})
	}
}

// Close leaves the group and releases the client.
func (c *Consumer) Close() {
	c.client.Close()
}
