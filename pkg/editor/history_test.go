package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHistoryAppendAndBound(t *testing.T) {
	h := NewHistory(3)
	h.Append("one")
	h.Append("two")
	h.Append("three")
	h.Append("four")

	assert.Equal(t, 3, h.Len())
	entries := h.Entries()
	assert.Equal(t, "two", entries[0].Text)
	assert.Equal(t, "four", entries[2].Text)

	// Sequence numbers keep increasing past eviction.
	assert.Equal(t, uint64(4), entries[2].Seq)
}

func TestHistoryIgnoresEmpty(t *testing.T) {
	h := NewHistory(3)
	h.Append("")
	assert.Equal(t, 0, h.Len())
}

func TestHistoryNavigation(t *testing.T) {
	h := NewHistory(10)
	h.Append("first")
	h.Append("second")

	text, ok := h.Prev("in-progress")
	assert.True(t, ok)
	assert.Equal(t, "second", text)

	text, ok = h.Prev("")
	assert.True(t, ok)
	assert.Equal(t, "first", text)

	// At the oldest entry Prev stays put.
	text, ok = h.Prev("")
	assert.True(t, ok)
	assert.Equal(t, "first", text)

	text, ok = h.Next()
	assert.True(t, ok)
	assert.Equal(t, "second", text)

	// Walking past the newest entry restores the stashed line.
	text, ok = h.Next()
	assert.True(t, ok)
	assert.Equal(t, "in-progress", text)

	_, ok = h.Next()
	assert.False(t, ok)
}

// Run with -race: the completion engine reads entries from its request
// goroutines while Enter appends on the interceptor's path.
func TestHistoryConcurrentAppendAndEntries(t *testing.T) {
	h := NewHistory(64)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			h.Append("git status")
		}
	}()
	for i := 0; i < 500; i++ {
		for _, e := range h.Entries() {
			_ = e.Text
		}
	}
	<-done

	assert.Equal(t, 64, h.Len())
}

func TestHistoryNavResetOnAppend(t *testing.T) {
	h := NewHistory(10)
	h.Append("first")
	h.Prev("")
	h.Append("second")

	text, ok := h.Prev("")
	assert.True(t, ok)
	assert.Equal(t, "second", text)
}
