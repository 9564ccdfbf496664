// Package bufpool provides pooled byte slices for FRU raw and read-assembly
// buffers, adapted from the teacher's internal/queue/pool.go. FRU images
// are small (typically 64 bytes to a few KB) compared to block-I/O
// payloads, so the bucket sizes are rescaled accordingly.
package bufpool

import "sync"

const (
	size64b  = 64
	size256b = 256
	size4k   = 4 * 1024
	size64k  = 64 * 1024
)

var globalPool = struct {
	pool64b  sync.Pool
	pool256b sync.Pool
	pool4k   sync.Pool
	pool64k  sync.Pool
}{
	pool64b:  sync.Pool{New: func() any { b := make([]byte, size64b); return &b }},
	pool256b: sync.Pool{New: func() any { b := make([]byte, size256b); return &b }},
	pool4k:   sync.Pool{New: func() any { b := make([]byte, size4k); return &b }},
	pool64k:  sync.Pool{New: func() any { b := make([]byte, size64k); return &b }},
}

// Get returns a pooled, zero-filled buffer of at least the requested size.
// Caller must call Put when done.
func Get(size int) []byte {
	var buf []byte
	switch {
	case size <= size64b:
		buf = (*globalPool.pool64b.Get().(*[]byte))[:size]
	case size <= size256b:
		buf = (*globalPool.pool256b.Get().(*[]byte))[:size]
	case size <= size4k:
		buf = (*globalPool.pool4k.Get().(*[]byte))[:size]
	case size <= size64k:
		buf = (*globalPool.pool64k.Get().(*[]byte))[:size]
	default:
		return make([]byte, size)
	}
	for i := range buf {
		buf[i] = 0
	}
	return buf
}

// Put returns a buffer obtained from Get back to its pool. Buffers not
// obtained from Get (non-standard capacity) are silently dropped.
func Put(buf []byte) {
	c := cap(buf)
	buf = buf[:c]
	switch c {
	case size64b:
		globalPool.pool64b.Put(&buf)
	case size256b:
		globalPool.pool256b.Put(&buf)
	case size4k:
		globalPool.pool4k.Put(&buf)
	case size64k:
		globalPool.pool64k.Put(&buf)
	}
}
