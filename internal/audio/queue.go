package audio

import "sync/atomic"

// FrameQueue is the single-producer/single-consumer hand-off between the
// capture callback and the analysis loop. When the consumer falls behind
// the oldest frame is dropped so the loop always sees recent audio.
type FrameQueue struct {
	ch      chan Frame
	dropped atomic.Uint64
	closed  atomic.Bool
}

// NewFrameQueue creates a queue holding at most depth frames.
func NewFrameQueue(depth int) *FrameQueue {
	if depth < 1 {
		depth = 1
	}
	return &FrameQueue{ch: make(chan Frame, depth)}
}

// Push enqueues f without blocking. It reports false when an older frame
// had to be discarded to make room.
func (q *FrameQueue) Push(f Frame) bool {
	if q.closed.Load() {
		return false
	}
	select {
	case q.ch <- f:
		return true
	default:
	}

	select {
	case <-q.ch:
		q.dropped.Add(1)
	default:
	}
	select {
	case q.ch <- f:
	default:
		q.dropped.Add(1)
	}
	return false
}

// Frames returns the consumer side of the queue.
func (q *FrameQueue) Frames() <-chan Frame {
	return q.ch
}

// Dropped returns how many frames were discarded so far.
func (q *FrameQueue) Dropped() uint64 {
	return q.dropped.Load()
}

// Close ends the stream. Only the producer may call it.
func (q *FrameQueue) Close() {
	if q.closed.CompareAndSwap(false, true) {
		close(q.ch)
	}
}
