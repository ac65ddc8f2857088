package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
)

// DefaultMaxStringSize is the maximum amount of characters a string may hold unless a packet states
// a tighter limit.
const DefaultMaxStringSize = 65536

// Reader reads packet fields from the payload of a single frame. The first error encountered is
// retained and every following read returns a zero value, so packets may decode all of their fields
// and check Err once.
type Reader struct {
	buf []byte
	off int
	err error
}

// NewReader creates a Reader over the payload passed.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Err returns the first error encountered while reading.
func (r *Reader) Err() error {
	return r.err
}

// Len returns the amount of unread bytes.
func (r *Reader) Len() int {
	return len(r.buf) - r.off
}

// Finish returns the first read error, or ErrTrailingData if any bytes were left unread.
func (r *Reader) Finish() error {
	if r.err != nil {
		return r.err
	}
	if n := r.Len(); n > 0 {
		return fmt.Errorf("%w: %w: %d bytes left", ErrMalformed, ErrTrailingData, n)
	}
	return nil
}

func (r *Reader) fail(format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: "+format, append([]any{ErrMalformed}, args...)...)
	}
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.Len() < n {
		r.fail("need %d bytes, have %d", n, r.Len())
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

// Byte ...
func (r *Reader) Byte() byte {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// Bool ...
func (r *Reader) Bool() bool {
	return r.Byte() != 0
}

// Uint16 reads a big endian unsigned short.
func (r *Reader) Uint16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

// Int16 reads a big endian short.
func (r *Reader) Int16() int16 {
	return int16(r.Uint16())
}

// Int32 reads a big endian int.
func (r *Reader) Int32() int32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(b))
}

// Int64 reads a big endian long.
func (r *Reader) Int64() int64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

// VarInt reads a VarInt of at most 5 bytes.
func (r *Reader) VarInt() int32 {
	if r.err != nil {
		return 0
	}
	v, n, err := ReadVarInt(r.buf[r.off:])
	if errors.Is(err, ErrIncompleteFrame) {
		r.fail("truncated varint")
		return 0
	} else if err != nil {
		r.err = err
		return 0
	}
	r.off += n
	return v
}

// VarLong reads a VarLong of at most 10 bytes.
func (r *Reader) VarLong() int64 {
	var v uint64
	for i := 0; i < 10; i++ {
		b := r.Byte()
		if r.err != nil {
			return 0
		}
		v |= uint64(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return int64(v)
		}
	}
	r.fail("%w", ErrVarIntTooBig)
	return 0
}

// String reads a VarInt length prefixed UTF-8 string holding at most max characters.
func (r *Reader) String(max int) string {
	length := int(r.VarInt())
	if r.err != nil {
		return ""
	}
	if length < 0 || length > max*utf8.UTFMax {
		r.fail("string length %d exceeds maximum of %d characters", length, max)
		return ""
	}
	b := r.take(length)
	if r.err != nil {
		return ""
	}
	if count := utf8.RuneCount(b); count > max {
		r.fail("string of %d characters exceeds maximum of %d", count, max)
		return ""
	}
	return string(b)
}

// ByteArray reads a VarInt length prefixed byte array of at most max bytes.
func (r *Reader) ByteArray(max int) []byte {
	length := int(r.VarInt())
	if r.err != nil {
		return nil
	}
	if length < 0 || length > max {
		r.fail("byte array length %d exceeds maximum of %d", length, max)
		return nil
	}
	return append([]byte(nil), r.take(length)...)
}

// ShortByteArray reads a byte array prefixed with a big endian short, as used by 1.7 clients.
func (r *Reader) ShortByteArray(max int) []byte {
	length := int(r.Int16())
	if r.err != nil {
		return nil
	}
	if length < 0 || length > max {
		r.fail("byte array length %d exceeds maximum of %d", length, max)
		return nil
	}
	return append([]byte(nil), r.take(length)...)
}

// MaxForgeByteArrayLength is the largest array ForgeByteArray accepts.
const MaxForgeByteArrayLength = 0x1fff9a

// ForgeByteArray reads a byte array prefixed with the extended short of Forge for 1.7 clients: when
// the top bit of the short is set, a following byte carries bits 15 to 22 of the length.
func (r *Reader) ForgeByteArray() []byte {
	low := int(r.Uint16())
	high := 0
	if low&0x8000 != 0 {
		low &= 0x7fff
		high = int(r.Byte())
	}
	if r.err != nil {
		return nil
	}
	length := high<<15 | low
	if length > MaxForgeByteArrayLength {
		r.fail("byte array length %d exceeds maximum of %d", length, MaxForgeByteArrayLength)
		return nil
	}
	return append([]byte(nil), r.take(length)...)
}

// UUID reads a UUID encoded as two big endian longs.
func (r *Reader) UUID() uuid.UUID {
	var id uuid.UUID
	copy(id[:], r.take(16))
	return id
}

// Remaining reads every unread byte of the payload.
func (r *Reader) Remaining() []byte {
	return append([]byte(nil), r.take(r.Len())...)
}

// ReadVarInt decodes a VarInt from the start of b and returns it with the amount of bytes it used.
// ErrIncompleteFrame is returned if b ends before the VarInt does.
func ReadVarInt(b []byte) (int32, int, error) {
	var v uint32
	for i := 0; i < 5; i++ {
		if i >= len(b) {
			return 0, 0, ErrIncompleteFrame
		}
		v |= uint32(b[i]&0x7f) << (7 * i)
		if b[i]&0x80 == 0 {
			return int32(v), i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("%w: %w", ErrMalformed, ErrVarIntTooBig)
}
