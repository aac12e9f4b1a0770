// Package snowflake packs a millisecond timestamp and a random salt into a
// single fixed-width unsigned integer.
//
// Layout (most significant bits first):
//
//	┌──────────────────────────┬──────────────┐
//	│ timestamp (ms, wrapping) │ random salt  │
//	└──────────────────────────┴──────────────┘
//
// Three widths are supported:
//
//	64 bits: 42-bit timestamp, 22-bit salt
//	52 bits: 42-bit timestamp, 10-bit salt (safe as a JavaScript number)
//	32 bits: 30-bit timestamp,  2-bit salt
//
// The timestamp field is masked to its width, so the 32-bit tier wraps around
// roughly every 12 days. IDs minted in the same millisecond are distinguished
// only by the salt.
package snowflake

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"
)

// BitSize is the total width of an identifier.
type BitSize int

const (
	Bits64 BitSize = 64
	Bits52 BitSize = 52
	Bits32 BitSize = 32
)

// saltWidths maps each supported tier to its fixed salt width.
var saltWidths = map[BitSize]uint{
	Bits64: 22,
	Bits52: 10,
	Bits32: 2,
}

// ErrUnsupportedBitSize is returned for widths outside the supported tiers.
var ErrUnsupportedBitSize = errors.New("bit size must be one of: 64, 52, 32")

// Supported reports whether bits is a known tier.
func Supported(bits BitSize) bool {
	_, ok := saltWidths[bits]
	return ok
}

// Codec encodes and decodes identifiers of a single width.
// A Codec is immutable after construction and safe for concurrent use.
type Codec struct {
	bits     BitSize
	saltBits uint
	tsBits   uint
	now      func() time.Time
	random   io.Reader
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock overrides the wall clock used by Encode.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// WithRandom overrides the salt source. Defaults to crypto/rand.
func WithRandom(r io.Reader) Option {
	return func(c *Codec) {
		if r != nil {
			c.random = r
		}
	}
}

// NewCodec creates a codec for the given width.
func NewCodec(bits BitSize, opts ...Option) (*Codec, error) {
	saltBits, ok := saltWidths[bits]
	if !ok {
		return nil, fmt.Errorf("%w (got %d)", ErrUnsupportedBitSize, bits)
	}

	c := &Codec{
		bits:     bits,
		saltBits: saltBits,
		tsBits:   uint(bits) - saltBits,
		now:      time.Now,
		random:   rand.Reader,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Bits returns the total identifier width.
func (c *Codec) Bits() BitSize { return c.bits }

// SaltBits returns the width of the salt field.
func (c *Codec) SaltBits() uint { return c.saltBits }

// TimestampBits returns the width of the timestamp field.
func (c *Codec) TimestampBits() uint { return c.tsBits }

// Encode mints a new identifier from the current time and a random salt.
// It only fails if the random source does.
func (c *Codec) Encode() (uint64, error) {
	salt, err := c.drawSalt()
	if err != nil {
		return 0, err
	}
	return c.Pack(c.now().UnixMilli(), salt), nil
}

// Pack combines a millisecond timestamp and a salt. Both are masked to their
// field widths.
func (c *Codec) Pack(timestampMs int64, salt uint64) uint64 {
	ts := uint64(timestampMs) & mask(c.tsBits)
	return ts<<c.saltBits | salt&mask(c.saltBits)
}

// Decode splits an identifier into its timestamp and salt fields.
// Callers must not pass values wider than the codec's tier.
func (c *Codec) Decode(id uint64) (timestampMs int64, salt uint64) {
	return int64(id >> c.saltBits), id & mask(c.saltBits)
}

// Time returns the timestamp field of id as a UTC time.
func (c *Codec) Time(id uint64) time.Time {
	ts, _ := c.Decode(id)
	return time.UnixMilli(ts).UTC()
}

// Fits reports whether id is representable in the codec's width.
func (c *Codec) Fits(id uint64) bool {
	return c.bits == 64 || id>>uint(c.bits) == 0
}

// ParseID parses a decimal identifier and checks it fits the codec's width.
func (c *Codec) ParseID(s string) (uint64, error) {
	id, err := Parse(s)
	if err != nil {
		return 0, err
	}
	if !c.Fits(id) {
		return 0, fmt.Errorf("identifier %d exceeds %d bits", id, c.bits)
	}
	return id, nil
}

// Parse parses a decimal identifier of any supported width.
func Parse(s string) (uint64, error) {
	if s == "" {
		return 0, errors.New("empty identifier")
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid identifier %q: must be an unsigned decimal integer", s)
	}
	return id, nil
}

func (c *Codec) drawSalt() (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(c.random, buf[:]); err != nil {
		return 0, fmt.Errorf("failed to read random salt: %w", err)
	}
	return binary.BigEndian.Uint64(buf[:]) & mask(c.saltBits), nil
}

func mask(width uint) uint64 {
	return 1<<width - 1
}
