package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketpipe/marketpipe/internal/config"
	"github.com/marketpipe/marketpipe/internal/wire"
)

type capturePublisher struct {
	frames [][]byte
}

func (c *capturePublisher) Publish(_ context.Context, frame []byte) {
	c.frames = append(c.frames, frame)
}

func TestLatestSlotKeepsNewestFrame(t *testing.T) {
	var slot latestSlot

	_, ok := slot.Take()
	assert.False(t, ok)

	slot.Store([]byte(`{"type":"trade","data":[{"s":"AAPL","p":100,"v":1,"t":1}]}`))
	slot.Store([]byte(`{"type":"trade","data":[{"s":"AAPL","p":101,"v":1,"t":2}]}`))
	slot.Store([]byte(`{"type":"trade","data":[{"s":"AAPL","p":102,"v":1,"t":3}]}`))

	raw, ok := slot.Take()
	require.True(t, ok)

	frame, err := encodeFrame(raw)
	require.NoError(t, err)
	env, err := wire.Decode(frame)
	require.NoError(t, err)
	require.Len(t, env.Data, 1)
	assert.Equal(t, 102.0, env.Data[0].Price)

	_, ok = slot.Take()
	assert.False(t, ok, "take drains the slot")
}

func TestEncodeFrameRoundTrip(t *testing.T) {
	raw := []byte(`{"type":"trade","data":[
		{"c":["1","12"],"p":261.74,"s":"AAPL","t":1582641900000,"v":50},
		{"c":null,"p":42.5,"s":"MSFT","t":1582641900500,"v":10}
	]}`)

	frame, err := encodeFrame(raw)
	require.NoError(t, err)

	env, err := wire.Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, "trade", env.Type)
	require.Len(t, env.Data, 2)
	assert.Equal(t, []string{"1", "12"}, env.Data[0].Conditions)
	assert.Equal(t, "AAPL", env.Data[0].Symbol)
	assert.Equal(t, int64(1582641900000), env.Data[0].Timestamp)
	assert.Empty(t, env.Data[1].Conditions)
}

func TestEncodeFrameRejectsGarbage(t *testing.T) {
	_, err := encodeFrame([]byte(`not json`))
	assert.Error(t, err)
}

func TestEmitLatestThrottlesToOnePerSecond(t *testing.T) {
	pub := &capturePublisher{}
	p := NewProducer(config.Ingest{}, pub, nil)

	base := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	clock := base
	p.now = func() time.Time { return clock }

	ctx := context.Background()
	var lastEmit time.Time

	// Three frames arrive inside one second; only the first tick with a
	// buffered frame publishes.
	for i, offset := range []time.Duration{0, 300 * time.Millisecond, 600 * time.Millisecond} {
		p.slot.Store([]byte(`{"type":"trade","data":[{"s":"AAPL","p":10` + string(rune('0'+i)) + `,"v":1,"t":1}]}`))
		clock = base.Add(offset)
		lastEmit = p.emitLatest(ctx, lastEmit)
	}
	require.Len(t, pub.frames, 1)

	// Once the period has elapsed the buffered latest frame goes out.
	clock = base.Add(1100 * time.Millisecond)
	lastEmit = p.emitLatest(ctx, lastEmit)
	require.Len(t, pub.frames, 2)

	env, err := wire.Decode(pub.frames[1])
	require.NoError(t, err)
	require.Len(t, env.Data, 1)
	assert.Equal(t, 102.0, env.Data[0].Price, "latest frame wins")

	// Empty slot: the emit budget is untouched.
	clock = base.Add(3 * time.Second)
	next := p.emitLatest(ctx, lastEmit)
	assert.Equal(t, lastEmit, next)
	assert.Len(t, pub.frames, 2)
}
