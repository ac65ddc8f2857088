// Package compression provides the compressors used once a connection has negotiated compression.
// A Compressor owns its compression contexts exclusively and must be disposed exactly once, after
// which it refuses to be used again.
package compression

import (
	"errors"
	"fmt"
)

const (
	// DefaultLevel is the level used when a level of -1 is requested.
	DefaultLevel = 6
	// MinLevel ...
	MinLevel = 1
	// MaxLevel ...
	MaxLevel = 12
	// DefaultMaxSize bounds the output of Deflate unless a different maximum is configured.
	DefaultMaxSize = 8 * 1024 * 1024
)

var (
	// ErrInvalidLevel is returned when a compressor is created with a level outside [1,12].
	ErrInvalidLevel = errors.New("compression: invalid level")
	// ErrDisposed is returned when a compressor is used after Dispose was called.
	ErrDisposed = errors.New("compression: compressor already disposed")
	// ErrDataFormat is returned when compressed data is corrupt or does not inflate to the size
	// declared for it.
	ErrDataFormat = errors.New("compression: bad data format")
	// ErrTooLarge is returned when compressed output would exceed the configured maximum size.
	ErrTooLarge = errors.New("compression: output exceeds maximum size")
)

// BufferPreference describes the kind of buffers a Compressor works with, so that callers can
// allocate compatible buffers up front.
type BufferPreference uint8

const (
	// BufferHeap means ordinary Go slices are expected.
	BufferHeap BufferPreference = iota
	// BufferDirectPreferred means off-heap memory is preferred but not required.
	BufferDirectPreferred
	// BufferDirectRequired means only off-heap memory may be passed.
	BufferDirectRequired
)

// String implements fmt.Stringer.
func (p BufferPreference) String() string {
	switch p {
	case BufferHeap:
		return "heap"
	case BufferDirectPreferred:
		return "direct-preferred"
	case BufferDirectRequired:
		return "direct-required"
	}
	return "unknown"
}

// Compressor compresses and decompresses packet bodies for a single connection.
type Compressor interface {
	// Inflate decompresses src, which must inflate to exactly uncompressedSize bytes, and appends the
	// result to dst. The grown slice is returned.
	Inflate(src, dst []byte, uncompressedSize int) ([]byte, error)
	// Deflate compresses src and appends the result to dst. The grown slice is returned.
	Deflate(src, dst []byte) ([]byte, error)
	// Dispose releases the compression contexts. It may be called any number of times.
	Dispose()
	// PreferredBufferType returns the kind of buffers the compressor works with.
	PreferredBufferType() BufferPreference
}

// Factory creates a Compressor using the level passed. A level of -1 selects DefaultLevel.
type Factory func(level int) (Compressor, error)

// normaliseLevel validates a requested level before any context is allocated.
func normaliseLevel(level int) (int, error) {
	if level == -1 {
		level = DefaultLevel
	}
	if level < MinLevel || level > MaxLevel {
		return 0, fmt.Errorf("%w: %d", ErrInvalidLevel, level)
	}
	return level, nil
}
