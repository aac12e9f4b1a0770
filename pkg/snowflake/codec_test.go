package snowflake

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func TestNewCodec(t *testing.T) {
	t.Run("accepts supported tiers", func(t *testing.T) {
		tests := []struct {
			bits     BitSize
			saltBits uint
			tsBits   uint
		}{
			{Bits64, 22, 42},
			{Bits52, 10, 42},
			{Bits32, 2, 30},
		}
		for _, tt := range tests {
			c, err := NewCodec(tt.bits)
			require.NoError(t, err)
			assert.Equal(t, tt.bits, c.Bits())
			assert.Equal(t, tt.saltBits, c.SaltBits())
			assert.Equal(t, tt.tsBits, c.TimestampBits())
		}
	})

	t.Run("rejects other widths", func(t *testing.T) {
		for _, bits := range []BitSize{0, 16, 48, 63, 128} {
			c, err := NewCodec(bits)
			assert.Nil(t, c)
			assert.ErrorIs(t, err, ErrUnsupportedBitSize)
			assert.False(t, Supported(bits))
		}
	})
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	now := time.Now().UnixMilli()
	for _, bits := range []BitSize{Bits64, Bits52, Bits32} {
		c, err := NewCodec(bits, WithClock(fixedClock(now)))
		require.NoError(t, err)

		for i := 0; i < 200; i++ {
			id, err := c.Encode()
			require.NoError(t, err)
			assert.True(t, c.Fits(id), "id %d does not fit %d bits", id, bits)

			ts, salt := c.Decode(id)
			assert.Less(t, salt, uint64(1)<<c.SaltBits())
			assert.Equal(t, now&int64(mask(c.TimestampBits())), ts)
			assert.Equal(t, id, uint64(ts)<<c.SaltBits()|salt)
		}
	}
}

func TestPack(t *testing.T) {
	c, err := NewCodec(Bits52)
	require.NoError(t, err)

	id := c.Pack(1700000000000, 5)
	assert.Equal(t, uint64(1700000000000)<<10|5, id)

	ts, salt := c.Decode(id)
	assert.Equal(t, int64(1700000000000), ts)
	assert.Equal(t, uint64(5), salt)

	t.Run("masks oversized salt", func(t *testing.T) {
		id := c.Pack(1, 1<<10|3)
		_, salt := c.Decode(id)
		assert.Equal(t, uint64(3), salt)
	})
}

func TestThirtyTwoBitTierWraps(t *testing.T) {
	now := int64(1700000000123)
	c, err := NewCodec(Bits32, WithClock(fixedClock(now)), WithRandom(bytes.NewReader(make([]byte, 8))))
	require.NoError(t, err)

	id, err := c.Encode()
	require.NoError(t, err)
	assert.Less(t, id, uint64(1)<<32)

	ts, salt := c.Decode(id)
	assert.Equal(t, now%(1<<30), ts)
	assert.Equal(t, uint64(0), salt)
}

func TestSaltComesFromRandomSource(t *testing.T) {
	c, err := NewCodec(Bits64,
		WithClock(fixedClock(1000)),
		WithRandom(bytes.NewReader([]byte{0, 0, 0, 0, 0, 0x12, 0x34, 0x56})))
	require.NoError(t, err)

	id, err := c.Encode()
	require.NoError(t, err)

	ts, salt := c.Decode(id)
	assert.Equal(t, int64(1000), ts)
	assert.Equal(t, uint64(0x123456)&(1<<22-1), salt)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestEncodeRandomFailure(t *testing.T) {
	c, err := NewCodec(Bits64, WithRandom(failingReader{}))
	require.NoError(t, err)

	_, err = c.Encode()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read random salt")
}

func TestParse(t *testing.T) {
	id, err := Parse("7312345678901")
	require.NoError(t, err)
	assert.Equal(t, uint64(7312345678901), id)

	for _, bad := range []string{"", "-1", "12a", "1.5", "18446744073709551616"} {
		_, err := Parse(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestParseIDChecksWidth(t *testing.T) {
	c, err := NewCodec(Bits32)
	require.NoError(t, err)

	_, err = c.ParseID("4294967295")
	assert.NoError(t, err)

	_, err = c.ParseID("4294967296")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds 32 bits")

	c64, err := NewCodec(Bits64)
	require.NoError(t, err)
	_, err = c64.ParseID("18446744073709551615")
	assert.NoError(t, err)
}

func TestTime(t *testing.T) {
	c, err := NewCodec(Bits64)
	require.NoError(t, err)

	when := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	id := c.Pack(when.UnixMilli(), 42)
	assert.True(t, when.Equal(c.Time(id)))
}
