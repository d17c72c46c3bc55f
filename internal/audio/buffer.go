package audio

import (
	"context"
	"sync"
	"time"
)

// Buffer accumulates audio chunks between a device stream and a single
// consumer.
//
// Thread Safety: AddChunk may be called from any goroutine. GetAndReset
// is intended for one consumer at a time; concurrent calls each observe
// at-most-once semantics but split the stream arbitrarily.
type Buffer struct {
	settle     time.Duration
	popTimeout time.Duration
	maxChunks  int

	mu     sync.Mutex
	chunks [][]byte
	notify chan struct{}
}

// NewBuffer creates a buffer.
//
// Parameters:
//   - settle: How long GetAndReset waits before draining, so chunks
//     already in flight from the device can arrive
//   - popTimeout: How long a drain waits for the next chunk before
//     concluding the stream has ended
//   - maxChunks: Hard cap on chunks per assembled recording
func NewBuffer(settle, popTimeout time.Duration, maxChunks int) *Buffer {
	return &Buffer{
		settle:     settle,
		popTimeout: popTimeout,
		maxChunks:  maxChunks,
		notify:     make(chan struct{}),
	}
}

// AddChunk appends one chunk. Non-blocking; never fails.
func (b *Buffer) AddChunk(data []byte) {
	b.mu.Lock()
	b.chunks = append(b.chunks, data)
	close(b.notify)
	b.notify = make(chan struct{})
	b.mu.Unlock()
}

// Len returns the number of chunks currently buffered.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}

// GetAndReset assembles and returns everything buffered, then resets.
//
// It first sleeps the settle delay, then pops chunks until the per-pop
// timeout fires, the chunk cap is reached, or ctx is cancelled. The
// buffer is emptied as part of this call regardless of how the drain
// ends; chunks beyond the cap are discarded, not carried over.
func (b *Buffer) GetAndReset(ctx context.Context) []byte {
	select {
	case <-time.After(b.settle):
	case <-ctx.Done():
	}

	var parts [][]byte

drain:
	for len(parts) < b.maxChunks {
		b.mu.Lock()
		if len(b.chunks) > 0 {
			parts = append(parts, b.chunks[0])
			b.chunks = b.chunks[1:]
			b.mu.Unlock()
			continue
		}
		ch := b.notify
		b.mu.Unlock()

		select {
		case <-ch:
		case <-time.After(b.popTimeout):
			break drain
		case <-ctx.Done():
			break drain
		}
	}

	b.mu.Lock()
	b.chunks = nil
	b.mu.Unlock()

	total := 0
	for _, p := range parts {
		total += len(p)
	}
	out := make([]byte, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
