// Package wire implements the binary codec for the trade envelope exchanged
// between the realtime producer and the stream processor.
//
// The format is Avro binary encoding of the fixed schema
//
//	record Envelope {
//	  string type;
//	  array<record Trade { array<string> c; double p; string s; long t; double v; }> data;
//	}
//
// The schema never evolves, so the codec is written directly against the
// Avro spec: zig-zag varints for longs and lengths, little-endian IEEE 754
// for doubles, arrays as blocked sequences terminated by a zero count.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Trade is a single trade as carried on the wire. The JSON tags match the
// vendor WebSocket field names so inbound frames unmarshal directly.
type Trade struct {
	Conditions []string `json:"c"`
	Price      float64  `json:"p"`
	Symbol     string   `json:"s"`
	Timestamp  int64    `json:"t"` // ms since epoch
	Volume     float64  `json:"v"`
}

// Envelope is the wire frame {type, data[]}.
type Envelope struct {
	Type string  `json:"type"`
	Data []Trade `json:"data"`
}

var (
	// ErrTrailingBytes reports input that continues past the envelope.
	ErrTrailingBytes = errors.New("wire: trailing bytes after envelope")
	// ErrTruncated reports input that ends inside the envelope.
	ErrTruncated = errors.New("wire: truncated input")
)

// Encode renders the envelope in its canonical binary form. Encoding is
// deterministic: each array is written as a single block.
func Encode(env *Envelope) []byte {
	buf := make([]byte, 0, 32+len(env.Data)*48)
	buf = appendString(buf, env.Type)
	if len(env.Data) > 0 {
		buf = appendLong(buf, int64(len(env.Data)))
		for i := range env.Data {
			buf = appendTrade(buf, &env.Data[i])
		}
	}
	buf = append(buf, 0) // array terminator
	return buf
}

// Decode is the inverse of Encode. Any bytes beyond the envelope are an
// error; a valid envelope with absent optional content decodes to zero
// values (empty conditions, zero timestamp).
func Decode(data []byte) (*Envelope, error) {
	d := decoder{buf: data}
	env := &Envelope{}
	var err error
	if env.Type, err = d.readString(); err != nil {
		return nil, fmt.Errorf("wire: envelope type: %w", err)
	}
	for {
		n, err := d.readLong()
		if err != nil {
			return nil, fmt.Errorf("wire: data block count: %w", err)
		}
		if n == 0 {
			break
		}
		if n < 0 {
			// Negative block count precedes a block byte size; skip it.
			if _, err := d.readLong(); err != nil {
				return nil, fmt.Errorf("wire: data block size: %w", err)
			}
			n = -n
		}
		// Every item takes at least one byte, so a count beyond the
		// remaining input is corrupt.
		if n > int64(len(d.buf)-d.pos) {
			return nil, fmt.Errorf("wire: data block count: %w", ErrTruncated)
		}
		for i := int64(0); i < n; i++ {
			t, err := d.readTrade()
			if err != nil {
				return nil, fmt.Errorf("wire: trade %d: %w", len(env.Data), err)
			}
			env.Data = append(env.Data, t)
		}
	}
	if d.pos != len(d.buf) {
		return nil, ErrTrailingBytes
	}
	return env, nil
}

func appendTrade(buf []byte, t *Trade) []byte {
	if len(t.Conditions) > 0 {
		buf = appendLong(buf, int64(len(t.Conditions)))
		for _, c := range t.Conditions {
			buf = appendString(buf, c)
		}
	}
	buf = append(buf, 0)
	buf = appendDouble(buf, t.Price)
	buf = appendString(buf, t.Symbol)
	buf = appendLong(buf, t.Timestamp)
	buf = appendDouble(buf, t.Volume)
	return buf
}

func appendLong(buf []byte, n int64) []byte {
	u := uint64(n<<1) ^ uint64(n>>63) // zig-zag
	for u >= 0x80 {
		buf = append(buf, byte(u)|0x80)
		u >>= 7
	}
	return append(buf, byte(u))
}

func appendString(buf []byte, s string) []byte {
	buf = appendLong(buf, int64(len(s)))
	return append(buf, s...)
}

func appendDouble(buf []byte, f float64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(f))
	return append(buf, b[:]...)
}

type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) readLong() (int64, error) {
	var u uint64
	var shift uint
	for {
		if d.pos >= len(d.buf) {
			return 0, ErrTruncated
		}
		if shift > 63 {
			return 0, errors.New("varint overflow")
		}
		b := d.buf[d.pos]
		d.pos++
		u |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
	}
	return int64(u>>1) ^ -int64(u&1), nil
}

func (d *decoder) readString() (string, error) {
	n, err := d.readLong()
	if err != nil {
		return "", err
	}
	// Compare in int64 so a huge claimed length cannot wrap negative.
	if n < 0 || n > int64(len(d.buf)-d.pos) {
		return "", ErrTruncated
	}
	s := string(d.buf[d.pos : d.pos+int(n)])
	d.pos += int(n)
	return s, nil
}

func (d *decoder) readDouble() (float64, error) {
	if d.pos+8 > len(d.buf) {
		return 0, ErrTruncated
	}
	f := math.Float64frombits(binary.LittleEndian.Uint64(d.buf[d.pos:]))
	d.pos += 8
	return f, nil
}

func (d *decoder) readTrade() (Trade, error) {
	var t Trade
	for {
		n, err := d.readLong()
		if err != nil {
			return t, err
		}
		if n == 0 {
			break
		}
		if n < 0 {
			if _, err := d.readLong(); err != nil {
				return t, err
			}
			n = -n
		}
		if n > int64(len(d.buf)-d.pos) {
			return t, ErrTruncated
		}
		for i := int64(0); i < n; i++ {
			c, err := d.readString()
			if err != nil {
				return t, err
			}
			t.Conditions = append(t.Conditions, c)
		}
	}
	var err error
	if t.Price, err = d.readDouble(); err != nil {
		return t, err
	}
	if t.Symbol, err = d.readString(); err != nil {
		return t, err
	}
	if t.Timestamp, err = d.readLong(); err != nil {
		return t, err
	}
	if t.Volume, err = d.readDouble(); err != nil {
		return t, err
	}
	return t, nil
}
