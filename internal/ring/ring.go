// Package ring implements a fixed-capacity byte ring buffer: a single
// writer (the session's PTY read pump) and any number of readers that take
// a point-in-time snapshot on attach.
package ring

import "sync"

const defaultCapacity = 64 * 1024

// Buffer is a thread-safe, fixed-capacity ring holding its contents as a
// plain byte slice in logical (oldest-first) order. A write larger than
// capacity keeps only its final capacity bytes; any other write drops
// oldest bytes first to make room.
type Buffer struct {
	mu   sync.Mutex
	data []byte
	cap  int
}

// New creates a Buffer of the given capacity. A non-positive capacity falls
// back to the 64 KiB default.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Buffer{cap: capacity}
}

// Write appends b, overwriting the oldest bytes once capacity is exceeded.
func (r *Buffer) Write(b []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(b) >= r.cap {
		r.data = append(r.data[:0:0], b[len(b)-r.cap:]...)
		return
	}

	total := len(r.data) + len(b)
	if total <= r.cap {
		r.data = append(r.data, b...)
		return
	}

	drop := total - r.cap
	r.data = append(r.data[:0], r.data[drop:]...)
	r.data = append(r.data, b...)
}

// Snapshot returns a copy of the current contents in logical order.
func (r *Buffer) Snapshot() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]byte, len(r.data))
	copy(out, r.data)
	return out
}

// Clear empties the buffer.
func (r *Buffer) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = r.data[:0]
}

// Len reports the number of bytes currently held.
func (r *Buffer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data)
}
