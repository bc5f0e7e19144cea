package wire

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	env := &Envelope{
		Type: "trade",
		Data: []Trade{
			{Conditions: []string{"1", "12"}, Price: 100.25, Symbol: "AAPL", Timestamp: 1704207845123, Volume: 3.5},
			{Conditions: nil, Price: 101, Symbol: "MSFT", Timestamp: 1704207846001, Volume: 2},
		},
	}

	decoded, err := Decode(Encode(env))
	require.NoError(t, err)
	assert.Equal(t, env.Type, decoded.Type)
	require.Len(t, decoded.Data, 2)
	assert.Equal(t, env.Data[0], decoded.Data[0])
	// nil and empty condition lists are the same on the wire
	assert.Empty(t, decoded.Data[1].Conditions)
	assert.Equal(t, env.Data[1].Price, decoded.Data[1].Price)
	assert.Equal(t, env.Data[1].Symbol, decoded.Data[1].Symbol)
	assert.Equal(t, env.Data[1].Timestamp, decoded.Data[1].Timestamp)
	assert.Equal(t, env.Data[1].Volume, decoded.Data[1].Volume)
}

func TestEncodeDeterministic(t *testing.T) {
	env := &Envelope{Type: "trade", Data: []Trade{{Price: 1, Symbol: "X", Volume: 2}}}
	assert.Equal(t, Encode(env), Encode(env))
}

func TestEncodeEmptyEnvelope(t *testing.T) {
	// "ping" frames carry no trades: string "ping" then a zero array count.
	got := Encode(&Envelope{Type: "ping"})
	want := []byte{0x08, 'p', 'i', 'n', 'g', 0x00}
	assert.Equal(t, want, got)

	decoded, err := Decode(got)
	require.NoError(t, err)
	assert.Equal(t, "ping", decoded.Type)
	assert.Empty(t, decoded.Data)
}

func TestDecodeZeroValues(t *testing.T) {
	env := &Envelope{Type: "trade", Data: []Trade{{Symbol: "TSLA", Price: 244.4, Volume: 1}}}
	decoded, err := Decode(Encode(env))
	require.NoError(t, err)
	assert.Empty(t, decoded.Data[0].Conditions)
	assert.Zero(t, decoded.Data[0].Timestamp)
}

func TestDecodeTrailingBytes(t *testing.T) {
	raw := Encode(&Envelope{Type: "trade"})
	_, err := Decode(append(raw, 0x01))
	assert.ErrorIs(t, err, ErrTrailingBytes)
}

func TestDecodeTruncated(t *testing.T) {
	raw := Encode(&Envelope{Type: "trade", Data: []Trade{{Symbol: "AMZN", Price: 1, Volume: 1}}})
	for i := 1; i < len(raw); i++ {
		_, err := Decode(raw[:i])
		assert.Error(t, err, "prefix of length %d should not decode", i)
	}
}

func TestDecodeRejectsOversizedLengths(t *testing.T) {
	// A corrupt frame may claim any length or count; none of these may
	// panic, they must come back as errors.
	huge := appendLong(nil, math.MaxInt64)

	// String length far beyond the input.
	_, err := Decode(append(huge, 'x'))
	assert.ErrorIs(t, err, ErrTruncated)

	// Array count far beyond the input, at the envelope level.
	buf := appendString(nil, "trade")
	_, err = Decode(appendLong(buf, math.MaxInt64))
	assert.ErrorIs(t, err, ErrTruncated)

	// And inside a trade's conditions array.
	buf = appendString(nil, "trade")
	buf = appendLong(buf, 1)
	_, err = Decode(appendLong(buf, math.MaxInt64))
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestDecodeNegativeBlockCount(t *testing.T) {
	// A writer may emit a negative block count followed by the block byte
	// size; the decoder accepts that form even though Encode never emits it.
	var buf []byte
	buf = appendString(buf, "trade")
	buf = appendLong(buf, -1) // one item, size-prefixed block
	inner := appendTrade(nil, &Trade{Symbol: "NVDA", Price: 5, Volume: 7})
	buf = appendLong(buf, int64(len(inner)))
	buf = append(buf, inner...)
	buf = append(buf, 0)

	decoded, err := Decode(buf)
	require.NoError(t, err)
	require.Len(t, decoded.Data, 1)
	assert.Equal(t, "NVDA", decoded.Data[0].Symbol)
}
