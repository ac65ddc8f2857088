package compression

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/klauspost/compress/zlib"
)

// minDeflateCapacity is the smallest destination Deflate starts out with.
const minDeflateCapacity = 64

var errShortBuffer = errors.New("compression: destination too small")

// Zlib is a Compressor producing zlib streams, the format used by Minecraft: Java Edition. Its
// inflate and deflate contexts are guarded separately, so a connection may read and write
// concurrently, while Dispose waits for both.
type Zlib struct {
	inflateMu sync.Mutex
	inflater  io.ReadCloser
	source    bytes.Reader

	deflateMu sync.Mutex
	deflater  *zlib.Writer
	sink      limitedBuffer

	maxSize  int
	disposed atomic.Bool
}

// NewZlib creates a Zlib compressor with the level passed. Levels above zlib's best compression are
// clamped to it. maxSize bounds the output of Deflate; zero or less selects DefaultMaxSize. The
// uncompressed size accepted by Inflate is always bounded by DefaultMaxSize.
func NewZlib(level, maxSize int) (*Zlib, error) {
	level, err := normaliseLevel(level)
	if err != nil {
		return nil, err
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	deflater, err := zlib.NewWriterLevel(io.Discard, min(level, zlib.BestCompression))
	if err != nil {
		return nil, fmt.Errorf("create deflater: %w", err)
	}
	return &Zlib{deflater: deflater, maxSize: maxSize}, nil
}

// ZlibFactory returns a Factory creating Zlib compressors bounded by maxSize.
func ZlibFactory(maxSize int) Factory {
	return func(level int) (Compressor, error) {
		return NewZlib(level, maxSize)
	}
}

// Inflate ...
func (z *Zlib) Inflate(src, dst []byte, uncompressedSize int) ([]byte, error) {
	z.inflateMu.Lock()
	defer z.inflateMu.Unlock()
	if z.disposed.Load() {
		return dst, ErrDisposed
	}
	if uncompressedSize < 0 || uncompressedSize > DefaultMaxSize {
		return dst, fmt.Errorf("%w: declared size %d out of bounds", ErrDataFormat, uncompressedSize)
	}

	z.source.Reset(src)
	defer z.source.Reset(nil)
	if err := z.resetInflater(); err != nil {
		return dst, fmt.Errorf("%w: %w", ErrDataFormat, err)
	}

	start := len(dst)
	dst = slices.Grow(dst, uncompressedSize)[:start+uncompressedSize]
	if _, err := io.ReadFull(z.inflater, dst[start:]); err != nil {
		return dst[:start], fmt.Errorf("%w: expected %d bytes: %w", ErrDataFormat, uncompressedSize, err)
	}

	// The stream has to end exactly at the declared size. Reading past it also verifies the checksum.
	var probe [1]byte
	if n, err := z.inflater.Read(probe[:]); n > 0 {
		return dst[:start], fmt.Errorf("%w: stream inflates past declared size %d", ErrDataFormat, uncompressedSize)
	} else if err != io.EOF {
		if err == nil {
			err = io.ErrNoProgress
		}
		return dst[:start], fmt.Errorf("%w: %w", ErrDataFormat, err)
	}
	return dst, nil
}

func (z *Zlib) resetInflater() error {
	if z.inflater == nil {
		r, err := zlib.NewReader(&z.source)
		if err != nil {
			return err
		}
		z.inflater = r
		return nil
	}
	return z.inflater.(zlib.Resetter).Reset(&z.source, nil)
}

// Deflate compresses src into dst. When dst runs out of room its capacity is doubled and
// compression restarts from the beginning of src, until the output fits or would exceed the
// maximum size.
func (z *Zlib) Deflate(src, dst []byte) ([]byte, error) {
	z.deflateMu.Lock()
	defer z.deflateMu.Unlock()
	if z.disposed.Load() {
		return dst, ErrDisposed
	}
	defer func() {
		z.sink.buf = nil
		z.deflater.Reset(io.Discard)
	}()

	capacity := min(max(cap(dst)-len(dst), minDeflateCapacity), z.maxSize)
	for {
		z.sink.buf = slices.Grow(dst, capacity)
		z.sink.limit = len(dst) + capacity
		z.deflater.Reset(&z.sink)

		_, err := z.deflater.Write(src)
		if err == nil {
			err = z.deflater.Close()
		}
		if err == nil {
			return z.sink.buf, nil
		}
		if !errors.Is(err, errShortBuffer) {
			return dst, err
		}
		if capacity >= z.maxSize {
			return dst, fmt.Errorf("%w: %d input bytes do not compress below %d bytes", ErrTooLarge, len(src), z.maxSize)
		}
		capacity = min(capacity*2, z.maxSize)
	}
}

// Dispose ...
func (z *Zlib) Dispose() {
	z.inflateMu.Lock()
	z.deflateMu.Lock()
	defer func() {
		z.deflateMu.Unlock()
		z.inflateMu.Unlock()
	}()
	if z.disposed.Swap(true) {
		return
	}

	if z.inflater != nil {
		_ = z.inflater.Close()
		z.inflater = nil
	}
	z.deflater = nil
}

// PreferredBufferType ...
func (z *Zlib) PreferredBufferType() BufferPreference {
	return BufferHeap
}

// limitedBuffer is an io.Writer appending to a slice that refuses to grow past limit.
type limitedBuffer struct {
	buf   []byte
	limit int
}

// Write ...
func (b *limitedBuffer) Write(p []byte) (int, error) {
	if len(b.buf)+len(p) > b.limit {
		return 0, errShortBuffer
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}
