// Package queue implements the bounded single-producer/single-consumer
// ring buffer used to hand frame packet sets from the producer to the
// network worker without either side ever blocking on the other.
package queue

import "sync/atomic"

// FramePacketSet is the unit of hand-off between producer and worker:
// one frame's data packets and XOR parity packets, plus its id.
type FramePacketSet struct {
	FrameID int32
	Data    [][]byte
	Parity  [][]byte
}

// SPSC is a fixed-capacity ring buffer safe for exactly one producer
// goroutine calling TryPush and exactly one consumer goroutine calling
// TryPop concurrently. Both operations are non-blocking.
type SPSC struct {
	buf  []FramePacketSet
	mask uint64
	head atomic.Uint64 // next slot the consumer will read
	tail atomic.Uint64 // next slot the producer will write
}

// New creates a ring buffer whose capacity is rounded up to the next
// power of two (required for the mask-based index wrap).
func New(capacity int) *SPSC {
	if capacity <= 0 {
		panic("queue: capacity must be positive")
	}
	size := 1
	for size < capacity {
		size <<= 1
	}
	return &SPSC{
		buf:  make([]FramePacketSet, size),
		mask: uint64(size - 1),
	}
}

// TryPush enqueues a set. It returns false without blocking if the ring
// is full; the caller (producer) is expected to treat that as "pause
// naturally" per the pacing design, not as an error.
func (q *SPSC) TryPush(set FramePacketSet) bool {
	head := q.head.Load()
	tail := q.tail.Load()
	if tail-head >= uint64(len(q.buf)) {
		return false
	}
	q.buf[tail&q.mask] = set
	q.tail.Store(tail + 1)
	return true
}

// TryPop dequeues the oldest set. It returns false without blocking if
// the ring is empty.
func (q *SPSC) TryPop() (FramePacketSet, bool) {
	head := q.head.Load()
	tail := q.tail.Load()
	if head == tail {
		return FramePacketSet{}, false
	}
	set := q.buf[head&q.mask]
	q.buf[head&q.mask] = FramePacketSet{}
	q.head.Store(head + 1)
	return set, true
}

// Len reports the number of sets currently queued. It is advisory: the
// producer and consumer may race with it, which is fine since it is
// only used for diagnostics.
func (q *SPSC) Len() int {
	return int(q.tail.Load() - q.head.Load())
}
