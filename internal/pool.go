package internal

import (
	"bytes"
	"sync"
)

// maxPooledBufferSize is the largest capacity of a buffer returned to the pool. Buffers grown by
// large packets are left to the garbage collector.
const maxPooledBufferSize = 1 << 16

var bufferPool = sync.Pool{
	New: func() any {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// GetBuffer returns an empty buffer from the pool.
func GetBuffer() *bytes.Buffer {
	return bufferPool.Get().(*bytes.Buffer)
}

// PutBuffer resets buf and returns it to the pool.
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() > maxPooledBufferSize {
		return
	}
	buf.Reset()
	bufferPool.Put(buf)
}
