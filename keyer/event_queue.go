package keyer

/*------------------------------------------------------------------
 *
 * Purpose:	Bounded lock-free single-producer/single-consumer FIFO
 *		of PaddleEvents over a 256-slot ring. One slot always
 *		stays empty to tell a full ring from an empty one, so at
 *		most 255 events are queued at once; the 256th enqueue
 *		without a dequeue is dropped. Sized for worst-case
 *		contact bounce (spec.md §4.2).
 *
 * Description:	One atomic head (consumer-owned), one atomic tail
 *		(producer-owned). Overflow drops the newest event and
 *		increments dropped_count, rather than overwriting: the
 *		producer here is the paddle input callback and losing
 *		the newest bounce edge is strictly safer for keying
 *		timing than losing an already-queued one.
 *
 *---------------------------------------------------------------*/

import "sync/atomic"

const eventQueueCapacity = 256

// EventQueue is a lock-free SPSC ring buffer of PaddleEvent.
type EventQueue struct {
	buf     [eventQueueCapacity]PaddleEvent
	head    atomic.Uint32 // consumer reads here
	tail    atomic.Uint32 // producer writes here
	dropped atomic.Uint64
}

func NewEventQueue() *EventQueue {
	return &EventQueue{}
}

// Enqueue is called from the paddle input callback (ISR-equivalent
// context). It never blocks and never allocates.
func (q *EventQueue) Enqueue(evt PaddleEvent) {
	head := q.head.Load()
	tail := q.tail.Load()
	next := (tail + 1) % eventQueueCapacity
	if next == head {
		// Full: drop the newest event, keep what's already queued.
		q.dropped.Add(1)
		return
	}
	q.buf[tail] = evt
	q.tail.Store(next)
}

// Dequeue is called from the main task. Returns false if empty.
func (q *EventQueue) Dequeue() (PaddleEvent, bool) {
	head := q.head.Load()
	tail := q.tail.Load()
	if head == tail {
		return PaddleEvent{}, false
	}
	evt := q.buf[head]
	q.head.Store((head + 1) % eventQueueCapacity)
	return evt, true
}

// DrainInto calls fn for every currently queued event, in FIFO order,
// without blocking.
func (q *EventQueue) DrainInto(fn func(PaddleEvent)) {
	for {
		evt, ok := q.Dequeue()
		if !ok {
			return
		}
		fn(evt)
	}
}

// DroppedCount is monotonic non-decreasing.
func (q *EventQueue) DroppedCount() uint64 { return q.dropped.Load() }

// Len returns the approximate number of queued events. Approximate
// because head/tail may move concurrently with a non-owning caller;
// safe to call from either context for diagnostics only.
func (q *EventQueue) Len() int {
	head := q.head.Load()
	tail := q.tail.Load()
	return int((tail - head + eventQueueCapacity) % eventQueueCapacity)
}
