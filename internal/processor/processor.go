// Package processor consumes trade frames from the log topic, persists raw
// trades, maintains short rolling windows, and feeds the daily-aggregate
// batch and promotion workers.
package processor

import (
	"context"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"github.com/rs/zerolog/log"

	"github.com/marketpipe/marketpipe/internal/config"
	"github.com/marketpipe/marketpipe/internal/metrics"
	"github.com/marketpipe/marketpipe/internal/storage/cassandra"
	"github.com/marketpipe/marketpipe/internal/storage/redisagg"
	"github.com/marketpipe/marketpipe/internal/wire"
)

// queueCapacity bounds the batch queue; the hot path drops deltas rather
// than block when the batch worker falls behind.
const queueCapacity = 10000

// TradeStore is the wide-column side of the processor.
type TradeStore interface {
	InsertTrade(ctx context.Context, t cassandra.Trade) error
	InsertRunningAverage(ctx context.Context, a cassandra.RunningAverage) error
	UpsertDailyAggregate(ctx context.Context, d cassandra.DailyAggregate) error
	DailyAggregate(ctx context.Context, symbol string, date time.Time) (*cassandra.DailyAggregate, error)
}

// AggregateStore is the KV side of the processor.
type AggregateStore interface {
	ApplyBatch(ctx context.Context, batch []redisagg.TradeDelta) error
	Keys(ctx context.Context) ([]string, error)
	Read(ctx context.Context, key string) (*redisagg.Aggregate, error)
	ReadAggregate(ctx context.Context, symbol, date string) (*redisagg.Aggregate, error)
}

// Processor is the stream-processing core. HandleFrame is the consumer
// callback; Start launches the batch and promotion workers.
type Processor struct {
	cfg     config.Processor
	trades  TradeStore
	aggs    AggregateStore
	windows *windowSet
	queue   chan redisagg.TradeDelta

	lastAverages time.Time
	now          func() time.Time
}

// New wires a processor over its two stores.
func New(cfg config.Processor, trades TradeStore, aggs AggregateStore) *Processor {
	p := &Processor{
		cfg:     cfg,
		trades:  trades,
		aggs:    aggs,
		windows: newWindowSet(averageWindow),
		queue:   make(chan redisagg.TradeDelta, queueCapacity),
		now:     time.Now,
	}
	p.lastAverages = p.now()
	return p
}

// Start launches the background workers. They stop when ctx is cancelled.
func (p *Processor) Start(ctx context.Context) {
	go p.runBatchWorker(ctx)
	go p.runPromotionWorker(ctx)
}

// HandleFrame decodes one frame and processes each trade it carries. A
// frame that fails to decode is dropped; the consumer keeps going.
func (p *Processor) HandleFrame(ctx context.Context, value []byte) {
	env, err := wire.Decode(value)
	if err != nil {
		log.Error().Err(err).Msg("dropping undecodable frame")
		return
	}
	for _, trade := range env.Data {
		p.processTrade(ctx, trade)
	}
	p.maybeEmitAverages(ctx)
}

func (p *Processor) processTrade(ctx context.Context, t wire.Trade) {
	tradeTime := time.UnixMilli(t.Timestamp).UTC()
	now := p.now()

	row := cassandra.Trade{
		ID:             gocql.TimeUUID(),
		Symbol:         t.Symbol,
		Conditions:     formatConditions(t.Conditions),
		Price:          t.Price,
		Volume:         t.Volume,
		TradeTimestamp: tradeTime,
		IngestedAt:     now,
	}
	if err := p.trades.InsertTrade(ctx, row); err != nil {
		log.Error().Err(err).Str("symbol", t.Symbol).Msg("trade insert failed")
	} else {
		metrics.TradesProcessed.Inc()
	}

	delta := redisagg.TradeDelta{
		Symbol:    t.Symbol,
		Date:      tradeTime.Format(redisagg.DateLayout),
		Volume:    t.Volume,
		Amount:    t.Price * t.Volume,
		TradeTime: tradeTime.Format(redisagg.TradeTimeLayout),
	}
	select {
	case p.queue <- delta:
	default:
		metrics.QueueDropped.Inc()
		log.Warn().Str("symbol", t.Symbol).Msg("batch queue full, dropping trade")
	}

	p.windows.Add(t.Symbol, t.Price, t.Volume, tradeTime, now)
}

// formatConditions renders the condition codes as a literal list, the form
// the trades table has always stored.
func formatConditions(conditions []string) string {
	if len(conditions) == 0 {
		return "[]"
	}
	var b strings.Builder
	b.WriteString("[")
	for i, c := range conditions {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("'")
		b.WriteString(c)
		b.WriteString("'")
	}
	b.WriteString("]")
	return b.String()
}

// maybeEmitAverages writes one running-average row per active symbol at
// most once per cadence.
func (p *Processor) maybeEmitAverages(ctx context.Context) {
	now := p.now()
	if now.Sub(p.lastAverages) < averageCadence {
		return
	}
	for symbol, mean := range p.windows.Means(now) {
		row := cassandra.RunningAverage{
			ID:                  gocql.TimeUUID(),
			Symbol:              symbol,
			PriceVolumeMultiply: mean,
			IngestedAt:          now,
		}
		if err := p.trades.InsertRunningAverage(ctx, row); err != nil {
			log.Error().Err(err).Str("symbol", symbol).Msg("running average insert failed")
		}
	}
	p.lastAverages = now
}
