package protocol

import (
	"fmt"
	"io"

	"github.com/cooldogedev/lumen/internal"
)

const (
	// frameLengthBytes is the maximum width of the VarInt prefixing every frame.
	frameLengthBytes = 3
	// DefaultMaxFrameSize is the largest length a 3 byte VarInt can declare.
	DefaultMaxFrameSize = 1<<21 - 1
)

// FrameReader accumulates bytes read from a connection and splits them into frames. It never
// blocks: ReadFrame returns ErrIncompleteFrame until a whole frame has been written to it, after
// which the caller may resume once more bytes are available.
type FrameReader struct {
	buf          []byte
	off          int
	maxFrameSize int
}

// NewFrameReader creates a FrameReader rejecting frames larger than maxFrameSize bytes.
func NewFrameReader(maxFrameSize int) *FrameReader {
	if maxFrameSize <= 0 || maxFrameSize > DefaultMaxFrameSize {
		maxFrameSize = DefaultMaxFrameSize
	}
	return &FrameReader{maxFrameSize: maxFrameSize}
}

// Write appends p to the buffered bytes. It never fails.
func (r *FrameReader) Write(p []byte) (int, error) {
	if r.off > 0 && r.off >= len(r.buf)/2 {
		n := copy(r.buf, r.buf[r.off:])
		r.buf = r.buf[:n]
		r.off = 0
	}
	r.buf = append(r.buf, p...)
	return len(p), nil
}

// ReadFrame returns the payload of the next complete frame. The payload is a copy and remains valid
// after further writes.
func (r *FrameReader) ReadFrame() ([]byte, error) {
	for {
		available := r.buf[r.off:]
		length, n, err := readFrameLength(available)
		if err != nil {
			return nil, err
		}
		if length > r.maxFrameSize {
			return nil, fmt.Errorf("%w: declared %d bytes, maximum is %d", ErrFrameTooLarge, length, r.maxFrameSize)
		}
		if length == 0 {
			r.off += n
			continue
		}
		if len(available) < n+length {
			return nil, ErrIncompleteFrame
		}

		frame := append([]byte(nil), available[n:n+length]...)
		r.off += n + length
		return frame, nil
	}
}

// Buffered returns the bytes written but not yet consumed. The slice is only valid until the next
// call to Write.
func (r *FrameReader) Buffered() []byte {
	return r.buf[r.off:]
}

// Discard drops the first n buffered bytes.
func (r *FrameReader) Discard(n int) {
	r.off = min(r.off+n, len(r.buf))
}

// Transform applies fn to every unread byte in place. It is used to decrypt bytes that arrived
// together with the packet enabling encryption.
func (r *FrameReader) Transform(fn func(b []byte)) {
	if b := r.buf[r.off:]; len(b) > 0 {
		fn(b)
	}
}

// Reset drops every buffered byte, including partially received frames.
func (r *FrameReader) Reset() {
	r.buf = nil
	r.off = 0
}

func readFrameLength(b []byte) (int, int, error) {
	var v int
	for i := 0; i < frameLengthBytes; i++ {
		if i >= len(b) {
			return 0, 0, ErrIncompleteFrame
		}
		v |= int(b[i]&0x7f) << (7 * i)
		if b[i]&0x80 == 0 {
			return v, i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("%w: frame length %w", ErrMalformed, ErrVarIntTooBig)
}

// AppendFrame appends payload prefixed with its VarInt length to dst.
func AppendFrame(dst, payload []byte) []byte {
	dst = AppendVarInt(dst, int32(len(payload)))
	return append(dst, payload...)
}

// FrameWriter writes length prefixed frames to an underlying writer, one write per frame.
type FrameWriter struct {
	w io.Writer
}

// NewFrameWriter ...
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// Write writes data as a single frame.
func (w *FrameWriter) Write(data []byte) (err error) {
	buf := internal.GetBuffer()
	defer internal.PutBuffer(buf)

	var prefix [5]byte
	buf.Write(AppendVarInt(prefix[:0], int32(len(data))))
	buf.Write(data)
	_, err = w.w.Write(buf.Bytes())
	return
}
