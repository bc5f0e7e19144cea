package processor

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/marketpipe/marketpipe/internal/metrics"
	"github.com/marketpipe/marketpipe/internal/storage/cassandra"
	"github.com/marketpipe/marketpipe/internal/storage/redisagg"
)

// promoteCheckInterval is the promotion worker's wake cadence; the actual
// promotion interval comes from configuration.
const promoteCheckInterval = 30 * time.Second

func (p *Processor) runPromotionWorker(ctx context.Context) {
	interval := time.Duration(p.cfg.PersistIntervalSec) * time.Second
	lastRun := p.now()

	ticker := time.NewTicker(promoteCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.now().Sub(lastRun) < interval {
				continue
			}
			p.Promote(ctx)
			lastRun = p.now()
		}
	}
}

// Promote copies every daily aggregate from the KV store into the
// wide-column store. A bad key or failed upsert skips that key only.
func (p *Processor) Promote(ctx context.Context) {
	keys, err := p.aggs.Keys(ctx)
	if err != nil {
		log.Error().Err(err).Msg("promotion scan failed")
		return
	}

	promoted := 0
	for _, key := range keys {
		if err := p.promoteKey(ctx, key); err != nil {
			log.Error().Err(err).Str("key", key).Msg("promotion failed for key")
			continue
		}
		promoted++
	}
	metrics.Promotions.Inc()
	log.Info().Int("promoted", promoted).Int("keys", len(keys)).Msg("persisted daily aggregates")
}

func (p *Processor) promoteKey(ctx context.Context, key string) error {
	agg, err := p.aggs.Read(ctx, key)
	if err != nil {
		return err
	}
	if agg == nil {
		return nil
	}
	row, err := aggregateRow(agg, p.now())
	if err != nil {
		return err
	}
	return p.trades.UpsertDailyAggregate(ctx, row)
}

// aggregateRow converts a KV aggregate into its wide-column form.
func aggregateRow(agg *redisagg.Aggregate, now time.Time) (cassandra.DailyAggregate, error) {
	date, err := time.Parse(redisagg.DateLayout, agg.Date)
	if err != nil {
		return cassandra.DailyAggregate{}, err
	}
	first, err := time.Parse(redisagg.TradeTimeLayout, agg.FirstTradeTime)
	if err != nil {
		return cassandra.DailyAggregate{}, err
	}
	last, err := time.Parse(redisagg.TradeTimeLayout, agg.LastTradeTime)
	if err != nil {
		return cassandra.DailyAggregate{}, err
	}
	return cassandra.DailyAggregate{
		Symbol:         agg.Symbol,
		TradeDate:      date,
		TotalVolume:    agg.TotalVolume,
		TotalAmount:    agg.TotalAmount,
		TradeCount:     agg.TradeCount,
		FirstTradeTime: first,
		LastTradeTime:  last,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}
