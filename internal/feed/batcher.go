package feed

import (
	"context"
	"io"
	"sync"
	"time"
)

// DefaultDebounceWindow is how long the batcher waits for the feed to go
// quiet before flushing the pending events as one batch.
const DefaultDebounceWindow = 100 * time.Millisecond

// Batcher absorbs bursty event arrival and hands the reconciliation loop
// coalesced batches instead of one call per event.
//
// Every Add re-arms a debounce timer; when it fires the pending list is
// swapped out atomically and appended to a FIFO queue of batches. The
// queue is unbounded so no event is ever dropped when the consumer is
// still busy with an earlier batch.
type Batcher struct {
	window time.Duration

	mu      sync.Mutex
	pending []RawEvent
	queue   [][]RawEvent
	timer   *time.Timer
	closed  bool
	notify  chan struct{}
}

// NewBatcher creates a batcher with the given debounce window.
// A non-positive window selects DefaultDebounceWindow.
func NewBatcher(window time.Duration) *Batcher {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Batcher{
		window: window,
		notify: make(chan struct{}, 1),
	}
}

// Add appends an event to the pending list and re-arms the debounce timer.
func (b *Batcher) Add(ev RawEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.pending = append(b.pending, ev)
	if b.timer == nil {
		b.timer = time.AfterFunc(b.window, b.flushTimer)
	} else {
		b.timer.Reset(b.window)
	}
}

func (b *Batcher) flushTimer() {
	b.mu.Lock()
	b.flushLocked()
	b.mu.Unlock()
}

// Flush moves any pending events into the batch queue immediately.
func (b *Batcher) Flush() {
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
	}
	b.flushLocked()
	b.mu.Unlock()
}

// flushLocked swaps the pending list into the queue. Caller holds the lock.
func (b *Batcher) flushLocked() {
	if len(b.pending) == 0 {
		return
	}
	b.queue = append(b.queue, b.pending)
	b.pending = nil
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Next blocks until a batch is available and pops it in FIFO order.
// After Close, remaining batches are still drained; once the queue is
// empty Next returns io.EOF.
func (b *Batcher) Next(ctx context.Context) ([]RawEvent, error) {
	for {
		b.mu.Lock()
		if len(b.queue) > 0 {
			batch := b.queue[0]
			b.queue = b.queue[1:]
			b.mu.Unlock()
			return batch, nil
		}
		closed := b.closed
		b.mu.Unlock()

		if closed {
			return nil, io.EOF
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-b.notify:
		}
	}
}

// Close flushes pending events and marks the batcher closed. Add becomes
// a no-op; Next drains what remains and then reports io.EOF.
func (b *Batcher) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	if b.timer != nil {
		b.timer.Stop()
	}
	b.flushLocked()
	b.closed = true
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
}
