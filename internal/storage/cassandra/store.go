// Package cassandra is the wide-column adapter for the `market` keyspace.
package cassandra

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"github.com/marketpipe/marketpipe/internal/config"
)

// Trade is one row of the `trades` table. Conditions carries the literal
// textual rendering of the trade-conditions list; downstream readers treat
// the column as an opaque string.
type Trade struct {
	ID             gocql.UUID
	Symbol         string
	Conditions     string
	Price          float64
	Volume         float64
	TradeTimestamp time.Time
	IngestedAt     time.Time
}

// RunningAverage is one row of `running_averages_15_sec`.
type RunningAverage struct {
	ID                  gocql.UUID
	Symbol              string
	PriceVolumeMultiply float64
	IngestedAt          time.Time
}

// News is one row of the `news` table. Symbol carries the vendor's
// `related` field verbatim, which may be a comma-separated list.
type News struct {
	ID         gocql.UUID
	Symbol     string
	Category   string
	Datetime   time.Time
	Headline   string
	NewsID     int64
	Image      string
	Source     string
	Summary    string
	URL        string
	IngestedAt time.Time
}

// DailyAggregate is one row of `daily_aggregates`, keyed (symbol, trade_date).
type DailyAggregate struct {
	Symbol         string
	TradeDate      time.Time
	TotalVolume    float64
	TotalAmount    float64
	TradeCount     int64
	FirstTradeTime time.Time
	LastTradeTime  time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

const (
	insertTradeCQL = `INSERT INTO trades (uuid, symbol, trade_conditions, price, volume,
		trade_timestamp, ingest_timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)`
	insertAverageCQL = `INSERT INTO running_averages_15_sec (uuid, symbol, price_volume_multiply,
		ingest_timestamp) VALUES (?, ?, ?, ?)`
	upsertDailyAggregateCQL = `INSERT INTO daily_aggregates (symbol, trade_date, total_volume,
		total_amount, trade_count, first_trade_time, last_trade_time, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	insertNewsCQL = `INSERT INTO news (uuid, symbol, category, datetime, headline,
		news_id, image, source, summary, url, ingest_timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	selectDailyAggregateCQL = `SELECT symbol, trade_date, total_volume, total_amount, trade_count,
		first_trade_time, last_trade_time, created_at, updated_at
		FROM daily_aggregates WHERE symbol = ? AND trade_date = ?`
)

// Store wraps a gocql session. The driver prepares statements on first use
// and keeps them cached, so the hot-path inserts run prepared.
type Store struct {
	session *gocql.Session
}

// Connect opens a session against the configured cluster and keyspace.
func Connect(cfg config.Cassandra) (*Store, error) {
	cluster := gocql.NewCluster(cfg.Host)
	cluster.Keyspace = cfg.Keyspace
	cluster.Authenticator = gocql.PasswordAuthenticator{
		Username: cfg.Username,
		Password: cfg.Password,
	}
	cluster.Consistency = gocql.LocalQuorum
	cluster.Timeout = 10 * time.Second

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("cassandra: connect %s/%s: %w", cfg.Host, cfg.Keyspace, err)
	}
	return &Store{session: session}, nil
}

// Close shuts the session down.
func (s *Store) Close() {
	s.session.Close()
}

// InsertTrade writes one raw trade row.
func (s *Store) InsertTrade(ctx context.Context, t Trade) error {
	err := s.session.Query(insertTradeCQL,
		t.ID, t.Symbol, t.Conditions, t.Price, t.Volume, t.TradeTimestamp, t.IngestedAt).
		WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("cassandra: insert trade %s: %w", t.Symbol, err)
	}
	return nil
}

// InsertRunningAverage writes one 15-second running-average row.
func (s *Store) InsertRunningAverage(ctx context.Context, a RunningAverage) error {
	err := s.session.Query(insertAverageCQL,
		a.ID, a.Symbol, a.PriceVolumeMultiply, a.IngestedAt).
		WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("cassandra: insert running average %s: %w", a.Symbol, err)
	}
	return nil
}

// UpsertDailyAggregate writes the promoted daily aggregate. Cassandra
// INSERT overwrites by primary key, which is the upsert the promotion
// contract needs.
func (s *Store) UpsertDailyAggregate(ctx context.Context, d DailyAggregate) error {
	err := s.session.Query(upsertDailyAggregateCQL,
		d.Symbol, d.TradeDate, d.TotalVolume, d.TotalAmount, d.TradeCount,
		d.FirstTradeTime, d.LastTradeTime, d.CreatedAt, d.UpdatedAt).
		WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("cassandra: upsert daily aggregate %s/%s: %w",
			d.Symbol, d.TradeDate.Format("2006-01-02"), err)
	}
	return nil
}

// InsertNews writes one news row.
func (s *Store) InsertNews(ctx context.Context, n News) error {
	err := s.session.Query(insertNewsCQL,
		n.ID, n.Symbol, n.Category, n.Datetime, n.Headline, n.NewsID,
		n.Image, n.Source, n.Summary, n.URL, n.IngestedAt).
		WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("cassandra: insert news %q: %w", n.Headline, err)
	}
	return nil
}

// DailyAggregate reads one promoted row; nil when absent.
func (s *Store) DailyAggregate(ctx context.Context, symbol string, date time.Time) (*DailyAggregate, error) {
	var d DailyAggregate
	err := s.session.Query(selectDailyAggregateCQL, symbol, date).
		WithContext(ctx).
		Scan(&d.Symbol, &d.TradeDate, &d.TotalVolume, &d.TotalAmount, &d.TradeCount,
			&d.FirstTradeTime, &d.LastTradeTime, &d.CreatedAt, &d.UpdatedAt)
	if err == gocql.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cassandra: read daily aggregate %s: %w", symbol, err)
	}
	return &d, nil
}
