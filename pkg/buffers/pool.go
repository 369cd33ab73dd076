package buffers

import (
	"sync"
)

const (
	// DefaultBufferSize is the default size for payload staging buffers.
	// Large enough for the payloads the bench and API paths shuttle around.
	DefaultBufferSize = 64 * 1024

	// ScratchBufferSize covers small intermediate work like line assembly.
	ScratchBufferSize = 4096
)

// BufferPool maintains a pool of byte slices to reduce GC pressure
type BufferPool struct {
	pool sync.Pool
	size int
}

// NewBufferPool creates a new buffer pool with the specified buffer size
func NewBufferPool(size int) *BufferPool {
	return &BufferPool{
		pool: sync.Pool{
			New: func() interface{} {
				buf := make([]byte, size)
				return &buf
			},
		},
		size: size,
	}
}

// Get retrieves a buffer from the pool
func (p *BufferPool) Get() []byte {
	buffer := *(p.pool.Get().(*[]byte))

	if cap(buffer) < p.size {
		// Unlikely but possible if the buffer was resized
		buffer = make([]byte, p.size)
	} else {
		buffer = buffer[:p.size]
		// No need to zero the buffer - the caller should only read/write
		// the portions they explicitly fill
	}

	return buffer
}

// Put returns a buffer to the pool
func (p *BufferPool) Put(buffer []byte) {
	if buffer == nil || cap(buffer) < p.size {
		return // Don't keep undersized buffers
	}

	buffer = buffer[:p.size]
	p.pool.Put(&buffer)
}

// Global pool instances for common sizes
var (
	// PayloadBufferPool for transform payload staging
	PayloadBufferPool = NewBufferPool(DefaultBufferSize)

	// ScratchBufferPool for small intermediate buffers
	ScratchBufferPool = NewBufferPool(ScratchBufferSize)
)
