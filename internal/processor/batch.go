package processor

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/marketpipe/marketpipe/internal/metrics"
	"github.com/marketpipe/marketpipe/internal/storage/redisagg"
)

// drainWait is how long the batch worker blocks on an empty queue before
// re-checking the flush deadline.
const drainWait = 100 * time.Millisecond

// runBatchWorker accumulates trade deltas and flushes them to the KV store
// when the batch fills or the interval elapses. A final flush runs on
// shutdown so accepted deltas are not lost.
func (p *Processor) runBatchWorker(ctx context.Context) {
	interval := time.Duration(p.cfg.BatchIntervalSec) * time.Second

	var batch []redisagg.TradeDelta
	lastFlush := p.now()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		p.flushBatch(ctx, batch)
		batch = nil
		lastFlush = p.now()
	}

	for {
		select {
		case <-ctx.Done():
			p.flushBatch(context.Background(), batch)
			return
		case d := <-p.queue:
			batch = append(batch, d)
			if len(batch) >= p.cfg.BatchSize {
				flush()
			}
		case <-time.After(drainWait):
		}
		if len(batch) > 0 && p.now().Sub(lastFlush) >= interval {
			flush()
		}
	}
}

func (p *Processor) flushBatch(ctx context.Context, batch []redisagg.TradeDelta) {
	if len(batch) == 0 {
		return
	}
	if err := p.aggs.ApplyBatch(ctx, batch); err != nil {
		log.Error().Err(err).Int("size", len(batch)).Msg("batch flush failed")
		return
	}
	metrics.BatchFlushes.Inc()
	log.Debug().Int("size", len(batch)).Msg("flushed batch to KV store")
}
