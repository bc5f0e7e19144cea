package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/gocql/gocql"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/marketpipe/marketpipe/internal/config"
	"github.com/marketpipe/marketpipe/internal/metrics"
	"github.com/marketpipe/marketpipe/internal/storage/cassandra"
)

// NewsStore persists incoming news items.
type NewsStore interface {
	InsertNews(ctx context.Context, n cassandra.News) error
}

// NewsIngester subscribes to the vendor's news stream and writes items
// straight to the wide-column store; there is no throttle and no log topic
// on this path.
type NewsIngester struct {
	cfg   config.News
	store NewsStore
}

// NewNewsIngester wires a news ingester.
func NewNewsIngester(cfg config.News, store NewsStore) *NewsIngester {
	return &NewsIngester{cfg: cfg, store: store}
}

// Run blocks until ctx is cancelled, re-dialing after every failure.
func (n *NewsIngester) Run(ctx context.Context) error {
	log.Info().Strs("tickers", n.cfg.Tickers).Msg("monitoring news")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := n.runConn(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("news websocket session ended")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

func (n *NewsIngester) runConn(ctx context.Context) error {
	u := url.URL{Scheme: "wss", Host: n.cfg.WebSocketHost, RawQuery: "token=" + url.QueryEscape(n.cfg.APIToken)}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("ingest: dial %s: %w", n.cfg.WebSocketHost, err)
	}
	defer conn.Close()

	for _, ticker := range n.cfg.Tickers {
		if err := conn.WriteJSON(subscribeMsg{Type: "subscribe-news", Symbol: ticker}); err != nil {
			return fmt.Errorf("ingest: subscribe news %s: %w", ticker, err)
		}
		log.Info().Str("ticker", ticker).Msg("subscribed to news")
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("ingest: read: %w", err)
		}
		n.handleMessage(ctx, raw)
	}
}

type newsMessage struct {
	Type string     `json:"type"`
	Data []newsItem `json:"data"`
}

type newsItem struct {
	Related  string `json:"related"`
	Category string `json:"category"`
	Datetime int64  `json:"datetime"` // milliseconds since epoch
	Headline string `json:"headline"`
	ID       int64  `json:"id"`
	Image    string `json:"image"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

// handleMessage stores every item of a news frame. A bad frame or a failed
// insert is logged and skipped; the stream keeps running.
func (n *NewsIngester) handleMessage(ctx context.Context, raw []byte) {
	var msg newsMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Error().Err(err).Msg("dropping undecodable news frame")
		return
	}
	if msg.Type != "news" {
		return
	}
	for _, item := range msg.Data {
		row := cassandra.News{
			ID:         gocql.TimeUUID(),
			Symbol:     item.Related,
			Category:   item.Category,
			Datetime:   time.UnixMilli(item.Datetime),
			Headline:   item.Headline,
			NewsID:     item.ID,
			Image:      item.Image,
			Source:     item.Source,
			Summary:    item.Summary,
			URL:        item.URL,
			IngestedAt: time.Now(),
		}
		if err := n.store.InsertNews(ctx, row); err != nil {
			log.Error().Err(err).Str("headline", item.Headline).Msg("news insert failed")
			continue
		}
		metrics.NewsStored.Inc()
		log.Info().Str("symbol", item.Related).Str("headline", item.Headline).Msg("stored news")
	}
}
