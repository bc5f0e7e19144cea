// Package stream wraps the Kafka transport between the ingester and the
// stream processor.
package stream

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/marketpipe/marketpipe/internal/metrics"
)

// Producer publishes encoded trade frames to one topic.
type Producer struct {
	client *kgo.Client
	topic  string
}

// NewProducer connects a producer to the given brokers and topic.
func NewProducer(brokers []string, topic string) (*Producer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("stream: producer client: %w", err)
	}
	return &Producer{client: client, topic: topic}, nil
}

// Publish sends one frame without waiting for the broker. Frames are
// unkeyed; delivery failures are logged and counted but never block or
// stop the ingest loop.
func (p *Producer) Publish(ctx context.Context, frame []byte) {
	record := &kgo.Record{Topic: p.topic, Value: frame}
	p.client.Produce(ctx, record, func(r *kgo.Record, err error) {
		if err != nil {
			metrics.FramesDropped.WithLabelValues("produce_error").Inc()
			log.Error().Err(err).Str("topic", r.Topic).Msg("produce failed")
			return
		}
		metrics.FramesPublished.Inc()
	})
}

// Close flushes pending records and releases the client.
func (p *Producer) Close(ctx context.Context) {
	if err := p.client.Flush(ctx); err != nil {
		log.Error().Err(err).Msg("flush on close failed")
	}
	p.client.Close()
}
