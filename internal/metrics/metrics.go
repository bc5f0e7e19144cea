// Package metrics exposes the pipeline's Prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesPublished counts envelopes published to the log topic.
	FramesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketpipe_frames_published_total",
		Help: "Envelopes published to the log topic",
	})

	// FramesDropped counts inbound frames dropped before publish, by reason.
	FramesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketpipe_frames_dropped_total",
		Help: "Inbound frames dropped before publish",
	}, []string{"reason"})

	// TradesProcessed counts trades persisted by the stream processor.
	TradesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketpipe_trades_processed_total",
		Help: "Trades persisted to the wide-column store",
	})

	// QueueDropped counts trades dropped because the batch queue was full.
	QueueDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketpipe_batch_queue_dropped_total",
		Help: "Trades dropped on a full batch queue",
	})

	// BatchFlushes counts KV pipeline flushes.
	BatchFlushes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketpipe_batch_flushes_total",
		Help: "Batches flushed to the KV store",
	})

	// Promotions counts KV-to-wide-column promotion passes.
	Promotions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketpipe_promotions_total",
		Help: "Daily-aggregate promotion passes",
	})

	// NewsStored counts news items written by the news ingester.
	NewsStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketpipe_news_stored_total",
		Help: "News items written to the wide-column store",
	})
)
