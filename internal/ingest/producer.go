// Package ingest connects to the vendor's trade WebSocket and publishes
// throttled, Avro-encoded frames to the log topic.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/marketpipe/marketpipe/internal/config"
	"github.com/marketpipe/marketpipe/internal/metrics"
	"github.com/marketpipe/marketpipe/internal/wire"
)

const (
	// reconnectDelay is the pause between a dropped socket and the next dial.
	reconnectDelay = 5 * time.Second

	// subscribeInterval paces subscribe messages so the vendor does not
	// reject the initial burst on large watchlists.
	subscribeInterval = 500 * time.Millisecond

	// emitInterval is the throttle period: at most one frame per second
	// reaches the log topic.
	emitInterval = time.Second

	// pollInterval is the throttle worker's wake cadence.
	pollInterval = 100 * time.Millisecond
)

// Publisher sends one encoded frame downstream.
type Publisher interface {
	Publish(ctx context.Context, frame []byte)
}

// Validator checks a ticker against the vendor before subscribing.
type Validator interface {
	Validate(ctx context.Context, ticker string) (bool, error)
}

// Producer owns the socket lifecycle: dial, subscribe, read, reconnect.
type Producer struct {
	cfg       config.Ingest
	publisher Publisher
	lookup    Validator
	slot      latestSlot
	pace      *rate.Limiter
	now       func() time.Time
}

// NewProducer wires a producer. lookup may be nil when validation is off.
func NewProducer(cfg config.Ingest, publisher Publisher, lookup Validator) *Producer {
	return &Producer{
		cfg:       cfg,
		publisher: publisher,
		lookup:    lookup,
		pace:      rate.NewLimiter(rate.Every(subscribeInterval), 1),
		now:       time.Now,
	}
}

// Run blocks until ctx is cancelled. The socket is re-dialed after every
// failure; the throttle worker runs for the whole lifetime so frames
// buffered across a reconnect are still emitted.
func (p *Producer) Run(ctx context.Context) error {
	go p.throttleLoop(ctx)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.runConn(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("websocket session ended")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

func (p *Producer) socketURL() string {
	u := url.URL{Scheme: "wss", Host: p.cfg.WebSocketHost, RawQuery: "token=" + url.QueryEscape(p.cfg.APIToken)}
	return u.String()
}

func (p *Producer) runConn(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, p.socketURL(), nil)
	if err != nil {
		return fmt.Errorf("ingest: dial %s: %w", p.cfg.WebSocketHost, err)
	}
	defer conn.Close()
	log.Info().Str("host", p.cfg.WebSocketHost).Msg("websocket connected")

	if err := p.subscribe(ctx, conn); err != nil {
		return err
	}

	// Unblock ReadMessage when ctx is cancelled.
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
		p.slot.Store(raw)
	}
}

type subscribeMsg struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

func (p *Producer) subscribe(ctx context.Context, conn *websocket.Conn) error {
	for _, ticker := range p.cfg.Tickers {
		if err := p.pace.Wait(ctx); err != nil {
			return err
		}
		if p.cfg.ValidateTickers && p.lookup != nil {
			ok, err := p.lookup.Validate(ctx, ticker)
			if err != nil {
				log.Error().Err(err).Str("ticker", ticker).Msg("ticker validation failed")
				continue
			}
			if !ok {
				log.Warn().Str("ticker", ticker).Msg("ticker not found, skipping subscription")
				continue
			}
		}
		if err := conn.WriteJSON(subscribeMsg{Type: "subscribe", Symbol: ticker}); err != nil {
			return fmt.Errorf("ingest: subscribe %s: %w", ticker, err)
		}
		log.Info().Str("ticker", ticker).Msg("subscribed")
	}
	return nil
}

// throttleLoop wakes every pollInterval and, at most once per emitInterval,
// encodes and publishes the latest buffered frame.
func (p *Producer) throttleLoop(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var lastEmit time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			lastEmit = p.emitLatest(ctx, lastEmit)
		}
	}
}

// emitLatest publishes the buffered frame when the throttle period has
// elapsed and returns the updated last-emit time. lastEmit only advances
// on a publish, so an empty slot never consumes the emit budget.
func (p *Producer) emitLatest(ctx context.Context, lastEmit time.Time) time.Time {
	now := p.now()
	if now.Sub(lastEmit) < emitInterval {
		return lastEmit
	}
	raw, ok := p.slot.Take()
	if !ok {
		return lastEmit
	}
	frame, err := encodeFrame(raw)
	if err != nil {
		metrics.FramesDropped.WithLabelValues("decode_error").Inc()
		log.Error().Err(err).Msg("dropping undecodable frame")
		return lastEmit
	}
	p.publisher.Publish(ctx, frame)
	return now
}

// encodeFrame converts one raw socket message to the wire encoding.
func encodeFrame(raw []byte) ([]byte, error) {
	var env wire.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("ingest: decode socket frame: %w", err)
	}
	return wire.Encode(&env), nil
}
