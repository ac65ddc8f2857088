package protocol

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarInt(t *testing.T) {
	tests := []struct {
		value int32
		wire  []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{255, []byte{0xff, 0x01}},
		{25565, []byte{0xdd, 0xc7, 0x01}},
		{2097151, []byte{0xff, 0xff, 0x7f}},
		{2147483647, []byte{0xff, 0xff, 0xff, 0xff, 0x07}},
		{-1, []byte{0xff, 0xff, 0xff, 0xff, 0x0f}},
		{-2147483648, []byte{0x80, 0x80, 0x80, 0x80, 0x08}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.wire, AppendVarInt(nil, tt.value), "value %d", tt.value)
		assert.Equal(t, len(tt.wire), VarIntSize(tt.value), "value %d", tt.value)

		v, n, err := ReadVarInt(tt.wire)
		require.NoError(t, err)
		assert.Equal(t, tt.value, v)
		assert.Equal(t, len(tt.wire), n)
	}
}

func TestReadVarIntErrors(t *testing.T) {
	_, _, err := ReadVarInt([]byte{0x80, 0x80})
	assert.ErrorIs(t, err, ErrIncompleteFrame)

	_, _, err = ReadVarInt([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01})
	assert.ErrorIs(t, err, ErrVarIntTooBig)
	assert.ErrorIs(t, err, ErrMalformed)

	r := NewReader([]byte{0x80})
	r.VarInt()
	assert.ErrorIs(t, r.Err(), ErrMalformed)
}

func TestReaderWriterFields(t *testing.T) {
	id := uuid.MustParse("b50ad385-829d-3141-a216-7e7d7539ba7f")

	buf := &bytes.Buffer{}
	w := NewWriter(buf)
	w.Byte(0xab)
	w.Bool(true)
	w.Uint16(25565)
	w.Int16(-2)
	w.Int32(-123456)
	w.Int64(1 << 40)
	w.VarInt(300)
	w.VarLong(-1)
	w.String("héllo")
	w.ByteArray([]byte{1, 2, 3})
	w.ShortByteArray([]byte{4, 5})
	w.UUID(id)
	w.Bytes([]byte{9, 9})

	r := NewReader(buf.Bytes())
	assert.Equal(t, byte(0xab), r.Byte())
	assert.True(t, r.Bool())
	assert.Equal(t, uint16(25565), r.Uint16())
	assert.Equal(t, int16(-2), r.Int16())
	assert.Equal(t, int32(-123456), r.Int32())
	assert.Equal(t, int64(1<<40), r.Int64())
	assert.Equal(t, int32(300), r.VarInt())
	assert.Equal(t, int64(-1), r.VarLong())
	assert.Equal(t, "héllo", r.String(16))
	assert.Equal(t, []byte{1, 2, 3}, r.ByteArray(16))
	assert.Equal(t, []byte{4, 5}, r.ShortByteArray(16))
	assert.Equal(t, id, r.UUID())
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []byte{9, 9}, r.Remaining())
	assert.NoError(t, r.Finish())
}

func TestReaderStringLimits(t *testing.T) {
	buf := &bytes.Buffer{}
	NewWriter(buf).String(strings.Repeat("a", 17))

	r := NewReader(buf.Bytes())
	assert.Empty(t, r.String(16))
	assert.ErrorIs(t, r.Err(), ErrMalformed)

	// Multi-byte characters are counted as characters rather than bytes.
	buf.Reset()
	NewWriter(buf).String(strings.Repeat("é", 16))
	r = NewReader(buf.Bytes())
	assert.Equal(t, strings.Repeat("é", 16), r.String(16))
	assert.NoError(t, r.Finish())
}

func TestReaderStickyError(t *testing.T) {
	r := NewReader([]byte{0x00, 0x01})
	assert.Equal(t, int32(0), r.Int32())
	require.ErrorIs(t, r.Err(), ErrMalformed)

	// Every read after the first failure returns a zero value and keeps the first error.
	first := r.Err()
	assert.Equal(t, byte(0), r.Byte())
	assert.Empty(t, r.String(16))
	assert.Equal(t, first, r.Err())
	assert.Equal(t, first, r.Finish())
}

func TestReaderTrailingData(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02})
	r.Byte()
	err := r.Finish()
	assert.ErrorIs(t, err, ErrTrailingData)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestReaderByteArrayLimit(t *testing.T) {
	buf := &bytes.Buffer{}
	NewWriter(buf).ByteArray(make([]byte, 10))
	r := NewReader(buf.Bytes())
	assert.Nil(t, r.ByteArray(5))
	assert.ErrorIs(t, r.Err(), ErrMalformed)

	r = NewReader([]byte{0xff, 0xff})
	assert.Nil(t, r.ShortByteArray(5))
	assert.ErrorIs(t, r.Err(), ErrMalformed)
}

func TestForgeByteArray(t *testing.T) {
	tests := []struct {
		length int
		prefix []byte
	}{
		{7, []byte{0x00, 0x07}},
		{1<<15 - 1, []byte{0x7f, 0xff}},
		{40000, []byte{0x9c, 0x40, 0x01}},
	}
	for _, tt := range tests {
		data := bytes.Repeat([]byte{0xaa}, tt.length)
		buf := &bytes.Buffer{}
		NewWriter(buf).ForgeByteArray(data)
		assert.Equal(t, tt.prefix, buf.Bytes()[:len(tt.prefix)], "length %d", tt.length)

		r := NewReader(buf.Bytes())
		assert.Equal(t, data, r.ForgeByteArray())
		assert.NoError(t, r.Finish())
	}

	r := NewReader([]byte{0xff, 0xff, 0xff})
	assert.Nil(t, r.ForgeByteArray())
	assert.ErrorIs(t, r.Err(), ErrMalformed)
}
