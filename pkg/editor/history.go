package editor

import "sync"

// HistoryEntry is one submitted command line.
type HistoryEntry struct {
	Seq  uint64
	Text string
}

// History is a bounded append-only ring of submitted command lines with a
// navigation cursor for arrow-key recall. When full, appending evicts the
// oldest entry.
//
// Safe for concurrent use: the interceptor appends on submit while the
// completion engine reads entries from its request goroutines.
type History struct {
	mu       sync.Mutex
	entries  []HistoryEntry
	capacity int
	nextSeq  uint64

	// nav is the recall position: len(entries) means "not navigating".
	nav   int
	stash string // in-progress line saved when navigation starts
}

// NewHistory creates a history ring with the given capacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 1
	}
	return &History{capacity: capacity}
}

// Append records a submitted line and resets navigation.
func (h *History) Append(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if text == "" {
		h.resetNavLocked()
		return
	}
	h.nextSeq++
	h.entries = append(h.entries, HistoryEntry{Seq: h.nextSeq, Text: text})
	if len(h.entries) > h.capacity {
		h.entries = h.entries[1:]
	}
	h.resetNavLocked()
}

// Len returns the number of stored entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Entries returns a copy of the stored entries, oldest first.
func (h *History) Entries() []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Prev steps navigation one entry back, stashing current on first use.
// At the oldest entry it stays put.
func (h *History) Prev(current string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == 0 {
		return "", false
	}
	if !h.navigatingLocked() {
		h.stash = current
		h.nav = len(h.entries)
	}
	if h.nav > 0 {
		h.nav--
	}
	return h.entries[h.nav].Text, true
}

// Next steps navigation one entry forward. Past the newest entry it returns
// the stashed in-progress line and stops navigating.
func (h *History) Next() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.navigatingLocked() {
		return "", false
	}
	h.nav++
	if h.nav >= len(h.entries) {
		stash := h.stash
		h.resetNavLocked()
		return stash, true
	}
	return h.entries[h.nav].Text, true
}

// ResetNav leaves navigation mode.
func (h *History) ResetNav() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resetNavLocked()
}

func (h *History) resetNavLocked() {
	h.nav = len(h.entries)
	h.stash = ""
}

func (h *History) navigatingLocked() bool {
	return h.nav < len(h.entries)
}
