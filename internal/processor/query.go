package processor

import (
	"context"
	"time"

	"github.com/marketpipe/marketpipe/internal/storage/redisagg"
)

// Aggregate sources, in lookup order.
const (
	SourceRedis     = "redis"
	SourceCassandra = "cassandra"
)

// DailyAggregateResult is the query-path view of one daily aggregate.
type DailyAggregateResult struct {
	Symbol         string  `json:"symbol"`
	TradeDate      string  `json:"trade_date"`
	TotalVolume    float64 `json:"total_volume"`
	TotalAmount    float64 `json:"total_amount"`
	TradeCount     int64   `json:"trade_count"`
	FirstTradeTime string  `json:"first_trade_time"`
	LastTradeTime  string  `json:"last_trade_time"`
	Source         string  `json:"source"`
}

// DailyAggregate reads one aggregate, hot store first. nil means the
// aggregate exists in neither store.
func (p *Processor) DailyAggregate(ctx context.Context, symbol, date string) (*DailyAggregateResult, error) {
	agg, err := p.aggs.ReadAggregate(ctx, symbol, date)
	if err != nil {
		return nil, err
	}
	if agg != nil {
		return &DailyAggregateResult{
			Symbol:         agg.Symbol,
			TradeDate:      agg.Date,
			TotalVolume:    agg.TotalVolume,
			TotalAmount:    agg.TotalAmount,
			TradeCount:     agg.TradeCount,
			FirstTradeTime: agg.FirstTradeTime,
			LastTradeTime:  agg.LastTradeTime,
			Source:         SourceRedis,
		}, nil
	}

	day, err := time.Parse(redisagg.DateLayout, date)
	if err != nil {
		return nil, err
	}
	row, err := p.trades.DailyAggregate(ctx, symbol, day)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return &DailyAggregateResult{
		Symbol:         row.Symbol,
		TradeDate:      row.TradeDate.Format(redisagg.DateLayout),
		TotalVolume:    row.TotalVolume,
		TotalAmount:    row.TotalAmount,
		TradeCount:     row.TradeCount,
		FirstTradeTime: row.FirstTradeTime.Format(redisagg.TradeTimeLayout),
		LastTradeTime:  row.LastTradeTime.Format(redisagg.TradeTimeLayout),
		Source:         SourceCassandra,
	}, nil
}
