package capture

import "sync"

// EventQueue is a fixed-capacity, drop-oldest queue decoupling the PTY read
// loop from ingestion I/O. Push never blocks: under sustained backpressure
// the oldest queued event is evicted, never the newest, and an overflow
// counter is bumped for surfacing as a warning.
type EventQueue struct {
	mu      sync.Mutex
	buf     []CommandEvent
	head    int
	size    int
	dropped uint64

	notify chan struct{}
}

// NewEventQueue creates a queue with the given capacity.
func NewEventQueue(capacity int) *EventQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &EventQueue{
		buf:    make([]CommandEvent, capacity),
		notify: make(chan struct{}, 1),
	}
}

// Push enqueues an event, evicting the oldest when full. Returns true if an
// event was dropped.
func (q *EventQueue) Push(ev CommandEvent) bool {
	q.mu.Lock()
	var droppedNow bool
	if q.size == len(q.buf) {
		q.buf[q.head] = ev
		q.head = (q.head + 1) % len(q.buf)
		q.dropped++
		droppedNow = true
	} else {
		q.buf[(q.head+q.size)%len(q.buf)] = ev
		q.size++
	}
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return droppedNow
}

// Pop dequeues the oldest event without blocking.
func (q *EventQueue) Pop() (CommandEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == 0 {
		return CommandEvent{}, false
	}
	ev := q.buf[q.head]
	q.buf[q.head] = CommandEvent{}
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	return ev, true
}

// Len returns the number of queued events.
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Dropped returns how many events have been evicted since creation.
func (q *EventQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Notify signals when events may be available. Consumers drain with Pop
// until it reports empty, then wait on Notify again.
func (q *EventQueue) Notify() <-chan struct{} {
	return q.notify
}
