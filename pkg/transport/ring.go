package transport

import "github.com/aegish/aegish/pkg/protocol"

// replayRing is a fixed-capacity drop-oldest buffer of ingest requests
// awaiting delivery. Not safe for concurrent use; the client guards it with
// its own mutex.
type replayRing struct {
	buf     []*protocol.IngestRequest
	head    int
	size    int
	dropped uint64
}

func newReplayRing(capacity int) *replayRing {
	if capacity <= 0 {
		capacity = 1
	}
	return &replayRing{buf: make([]*protocol.IngestRequest, capacity)}
}

// push appends a request, evicting the oldest entry when full.
// Returns true if an entry was dropped.
func (r *replayRing) push(req *protocol.IngestRequest) bool {
	if r.size == len(r.buf) {
		r.buf[r.head] = req
		r.head = (r.head + 1) % len(r.buf)
		r.dropped++
		return true
	}
	r.buf[(r.head+r.size)%len(r.buf)] = req
	r.size++
	return false
}

// pop removes and returns the oldest request, or nil when empty.
func (r *replayRing) pop() *protocol.IngestRequest {
	if r.size == 0 {
		return nil
	}
	req := r.buf[r.head]
	r.buf[r.head] = nil
	r.head = (r.head + 1) % len(r.buf)
	r.size--
	return req
}

// unpop pushes a request back onto the front, used when a send fails after
// the entry was already dequeued. Evicts the newest entry when full.
func (r *replayRing) unpop(req *protocol.IngestRequest) {
	if r.size == len(r.buf) {
		r.size--
		r.dropped++
	}
	r.head = (r.head - 1 + len(r.buf)) % len(r.buf)
	r.buf[r.head] = req
	r.size++
}

func (r *replayRing) len() int {
	return r.size
}
