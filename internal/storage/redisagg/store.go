// Package redisagg is the KV adapter for hot daily aggregates, stored as
// hashes under `daily_agg:{symbol}:{YYYY-MM-DD}` with a 30-day TTL.
package redisagg

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/marketpipe/marketpipe/internal/config"
)

const (
	keyPrefix = "daily_agg:"

	// TTL refreshed on every write; idle keys expire after 30 days.
	TTL = 30 * 24 * time.Hour

	// TradeTimeLayout is the fixed-width timestamp form stored in
	// first_trade_time/last_trade_time. Fixed width keeps lexicographic
	// HSetNX/HSet min-max semantics equal to temporal min-max.
	TradeTimeLayout = "2006-01-02T15:04:05.000000-07:00"

	// DateLayout is the date part of the aggregate key.
	DateLayout = "2006-01-02"
)

// TradeDelta is one trade's contribution to its daily aggregate.
type TradeDelta struct {
	Symbol    string
	Date      string // DateLayout
	Volume    float64
	Amount    float64 // price * volume
	TradeTime string  // TradeTimeLayout
}

// Aggregate is the hash content of one daily-aggregate key.
type Aggregate struct {
	Symbol         string
	Date           string
	TotalVolume    float64
	TotalAmount    float64
	TradeCount     int64
	FirstTradeTime string
	LastTradeTime  string
}

// Store wraps a Redis client. It accepts the Cmdable interface so tests can
// substitute a mock client.
type Store struct {
	rdb redis.Cmdable
}

// Connect opens a Redis client against the configured address.
func Connect(cfg config.Redis) (*Store, *redis.Client) {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr()})
	return New(client), client
}

// New wraps an existing client.
func New(rdb redis.Cmdable) *Store {
	return &Store{rdb: rdb}
}

// Key renders the aggregate key for a symbol and date.
func Key(symbol, date string) string {
	return keyPrefix + symbol + ":" + date
}

// ParseKey splits `daily_agg:{symbol}:{date}` back into its parts.
func ParseKey(key string) (symbol, date string, err error) {
	rest, ok := strings.CutPrefix(key, keyPrefix)
	if !ok {
		return "", "", fmt.Errorf("redisagg: key %q lacks prefix", key)
	}
	i := strings.LastIndex(rest, ":")
	if i <= 0 || i == len(rest)-1 {
		return "", "", fmt.Errorf("redisagg: malformed key %q", key)
	}
	symbol, date = rest[:i], rest[i+1:]
	if _, perr := time.Parse(DateLayout, date); perr != nil {
		return "", "", fmt.Errorf("redisagg: key %q date: %w", key, perr)
	}
	return symbol, date, nil
}

// ApplyBatch applies one batch of trade deltas in a single pipelined
// round-trip. first_trade_time is first-write-wins, last_trade_time
// last-write-wins, the counters monotone non-decreasing.
func (s *Store) ApplyBatch(ctx context.Context, batch []TradeDelta) error {
	if len(batch) == 0 {
		return nil
	}
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, d := range batch {
			key := Key(d.Symbol, d.Date)
			pipe.HIncrByFloat(ctx, key, "total_volume", d.Volume)
			pipe.HIncrByFloat(ctx, key, "total_amount", d.Amount)
			pipe.HIncrBy(ctx, key, "trade_count", 1)
			pipe.HSetNX(ctx, key, "first_trade_time", d.TradeTime)
			pipe.HSet(ctx, key, "last_trade_time", d.TradeTime)
			pipe.Expire(ctx, key, TTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redisagg: apply batch of %d: %w", len(batch), err)
	}
	return nil
}

// Keys scans all daily-aggregate keys.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		page, next, err := s.rdb.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redisagg: scan: %w", err)
		}
		keys = append(keys, page...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

// Read returns the aggregate stored under key, or nil when the hash is
// absent or empty.
func (s *Store) Read(ctx context.Context, key string) (*Aggregate, error) {
	symbol, date, err := ParseKey(key)
	if err != nil {
		return nil, err
	}
	fields, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redisagg: read %s: %w", key, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	agg := &Aggregate{
		Symbol:         symbol,
		Date:           date,
		FirstTradeTime: fields["first_trade_time"],
		LastTradeTime:  fields["last_trade_time"],
	}
	if agg.TotalVolume, err = parseFloatField(fields, "total_volume"); err != nil {
		return nil, fmt.Errorf("redisagg: %s: %w", key, err)
	}
	if agg.TotalAmount, err = parseFloatField(fields, "total_amount"); err != nil {
		return nil, fmt.Errorf("redisagg: %s: %w", key, err)
	}
	count, err := parseFloatField(fields, "trade_count")
	if err != nil {
		return nil, fmt.Errorf("redisagg: %s: %w", key, err)
	}
	agg.TradeCount = int64(count)
	return agg, nil
}

// ReadAggregate looks an aggregate up by symbol and date.
func (s *Store) ReadAggregate(ctx context.Context, symbol, date string) (*Aggregate, error) {
	return s.Read(ctx, Key(symbol, date))
}

func parseFloatField(fields map[string]string, name string) (float64, error) {
	raw, ok := fields[name]
	if !ok || raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("field %s=%q: %w", name, raw, err)
	}
	return v, nil
}
