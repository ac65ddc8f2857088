package protocol

import (
	"bytes"
	"encoding/binary"

	"github.com/google/uuid"
)

// Writer writes packet fields into a buffer. Writing to a bytes.Buffer cannot fail, so none of its
// methods return errors.
type Writer struct {
	buf     *bytes.Buffer
	scratch [binary.MaxVarintLen64]byte
}

// NewWriter creates a Writer appending to the buffer passed.
func NewWriter(buf *bytes.Buffer) *Writer {
	return &Writer{buf: buf}
}

// Byte ...
func (w *Writer) Byte(b byte) {
	w.buf.WriteByte(b)
}

// Bool ...
func (w *Writer) Bool(b bool) {
	if b {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}

// Uint16 writes a big endian unsigned short.
func (w *Writer) Uint16(v uint16) {
	binary.BigEndian.PutUint16(w.scratch[:2], v)
	w.buf.Write(w.scratch[:2])
}

// Int16 writes a big endian short.
func (w *Writer) Int16(v int16) {
	w.Uint16(uint16(v))
}

// Int32 writes a big endian int.
func (w *Writer) Int32(v int32) {
	binary.BigEndian.PutUint32(w.scratch[:4], uint32(v))
	w.buf.Write(w.scratch[:4])
}

// Int64 writes a big endian long.
func (w *Writer) Int64(v int64) {
	binary.BigEndian.PutUint64(w.scratch[:8], uint64(v))
	w.buf.Write(w.scratch[:8])
}

// VarInt ...
func (w *Writer) VarInt(v int32) {
	w.buf.Write(AppendVarInt(w.scratch[:0], v))
}

// VarLong ...
func (w *Writer) VarLong(v int64) {
	x := uint64(v)
	n := 0
	for x >= 0x80 {
		w.scratch[n] = byte(x) | 0x80
		x >>= 7
		n++
	}
	w.scratch[n] = byte(x)
	w.buf.Write(w.scratch[:n+1])
}

// String writes a VarInt length prefixed UTF-8 string.
func (w *Writer) String(s string) {
	w.VarInt(int32(len(s)))
	w.buf.WriteString(s)
}

// ByteArray writes a VarInt length prefixed byte array.
func (w *Writer) ByteArray(b []byte) {
	w.VarInt(int32(len(b)))
	w.buf.Write(b)
}

// ShortByteArray writes a byte array prefixed with a big endian short, as used by 1.7 clients.
func (w *Writer) ShortByteArray(b []byte) {
	w.Int16(int16(len(b)))
	w.buf.Write(b)
}

// ForgeByteArray writes a byte array prefixed with the extended short of Forge. Lengths of 32768
// bytes or more set the top bit of the short and append the remaining bits as a byte.
func (w *Writer) ForgeByteArray(b []byte) {
	low := len(b) & 0x7fff
	high := (len(b) & 0x7f8000) >> 15
	if high != 0 {
		low |= 0x8000
	}
	w.Uint16(uint16(low))
	if high != 0 {
		w.Byte(byte(high))
	}
	w.buf.Write(b)
}

// UUID writes a UUID as two big endian longs.
func (w *Writer) UUID(id uuid.UUID) {
	w.buf.Write(id[:])
}

// Bytes writes b without any prefix.
func (w *Writer) Bytes(b []byte) {
	w.buf.Write(b)
}

// AppendVarInt appends the VarInt encoding of v to dst. Negative values always use 5 bytes.
func AppendVarInt(dst []byte, v int32) []byte {
	x := uint32(v)
	for x >= 0x80 {
		dst = append(dst, byte(x)|0x80)
		x >>= 7
	}
	return append(dst, byte(x))
}

// VarIntSize returns the amount of bytes the VarInt encoding of v uses.
func VarIntSize(v int32) int {
	x := uint32(v)
	n := 1
	for x >= 0x80 {
		x >>= 7
		n++
	}
	return n
}
