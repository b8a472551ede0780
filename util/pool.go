package util

import "sync"

// BufPool hands out fixed-size byte buffers for socket reads, reducing
// GC pressure on the per-connection read loops.
type BufPool struct {
	size int
	pool sync.Pool
}

// NewBufPool returns a pool of buffers of exactly size bytes.
func NewBufPool(size int) *BufPool {
	p := &BufPool{size: size}
	p.pool.New = func() interface{} {
		buf := make([]byte, size)
		return &buf
	}
	return p
}

// Size is the length of every buffer in the pool.
func (p *BufPool) Size() int { return p.size }

// Get retrieves a buffer from the pool.  Callers must return it
// with [BufPool.Put] when finished.
func (p *BufPool) Get() *[]byte {
	return p.pool.Get().(*[]byte)
}

// Put returns a buffer to the pool for reuse.
func (p *BufPool) Put(buf *[]byte) {
	if buf == nil || len(*buf) != p.size {
		return
	}
	p.pool.Put(buf)
}
