package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects interceptor effects for assertions.
type recorder struct {
	forwarded []byte
	echoed    []byte
	queries   []string
	requests  []string
	nextReq   uint64
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		Forward:     func(p []byte) { r.forwarded = append(r.forwarded, p...) },
		Echo:        func(p []byte) { r.echoed = append(r.echoed, p...) },
		SubmitQuery: func(q string) { r.queries = append(r.queries, q) },
		RequestCompletion: func(prefix string) uint64 {
			r.requests = append(r.requests, prefix)
			r.nextReq++
			return r.nextReq
		},
	}
}

func TestNoBytesForwardedWithoutEnter(t *testing.T) {
	rec := &recorder{}
	in := NewInterceptor(10, rec.handlers())

	// Editing keystrokes of every kind, but never Enter.
	in.ProcessInput([]byte("ls -la"))
	in.ProcessInput([]byte{0x01, 0x05, 0x0b, 0x15, 0x17, 0x7f})
	in.ProcessInput([]byte("\x1b[D\x1b[C\x1b[A\x1b[B"))
	in.ProcessInput([]byte("echo hi"))

	assert.Empty(t, rec.forwarded)
	assert.NotEmpty(t, rec.echoed)
}

func TestEnterFlushesLineVerbatim(t *testing.T) {
	rec := &recorder{}
	in := NewInterceptor(10, rec.handlers())

	in.ProcessInput([]byte("ls -la\r"))

	assert.Equal(t, "ls -la\r", string(rec.forwarded))
	assert.Equal(t, "", in.Buffer())
	require.Equal(t, 1, in.History().Len())
	assert.Equal(t, "ls -la", in.History().Entries()[0].Text)
}

func TestQueryPrefixRoutesToOrchestrator(t *testing.T) {
	rec := &recorder{}
	in := NewInterceptor(10, rec.handlers())

	in.ProcessInput([]byte("!how do I use nmap\r"))

	assert.Empty(t, rec.forwarded)
	require.Len(t, rec.queries, 1)
	assert.Equal(t, "how do I use nmap", rec.queries[0])
	// Queries are not shell history.
	assert.Equal(t, 0, in.History().Len())
}

func TestRawModePassthrough(t *testing.T) {
	rec := &recorder{}
	in := NewInterceptor(10, rec.handlers())

	in.ObserveOutput([]byte("\x1b[?1049h")) // vim takes over
	assert.Equal(t, ModeRaw, in.Mode())

	in.ProcessInput([]byte(":q\r"))
	assert.Equal(t, ":q\r", string(rec.forwarded))

	in.ObserveOutput([]byte("\x1b[?1049l"))
	assert.Equal(t, ModeLine, in.Mode())

	rec.forwarded = nil
	in.ProcessInput([]byte("echo"))
	assert.Empty(t, rec.forwarded)
}

func TestModeTransitionFlushesPartialSequence(t *testing.T) {
	rec := &recorder{}
	in := NewInterceptor(10, rec.handlers())

	// Half an escape sequence is pending when a full-screen app starts.
	in.ProcessInput([]byte{0x1b, '['})
	assert.Empty(t, rec.forwarded)

	in.ObserveOutput([]byte("\x1b[?1049h"))
	assert.Equal(t, []byte{0x1b, '['}, rec.forwarded)
}

func TestStaleSuggestionNeverRenders(t *testing.T) {
	rec := &recorder{}
	in := NewInterceptor(10, rec.handlers())

	in.ProcessInput([]byte("g"))
	require.Len(t, rec.requests, 1)
	firstID := rec.nextReq

	in.ProcessInput([]byte("i"))
	require.Len(t, rec.requests, 2)

	// The first request's result arrives late; it must be discarded.
	in.ApplySuggestion(Suggestion{RequestID: firstID, Text: "git status"})

	echoedBefore := len(rec.echoed)
	in.ProcessInput([]byte("\t")) // no ghost to accept: issues a new request
	assert.Equal(t, "gi", in.Buffer())
	assert.Len(t, rec.requests, 3)
	assert.GreaterOrEqual(t, len(rec.echoed), echoedBefore)
}

func TestGhostAcceptOnTab(t *testing.T) {
	rec := &recorder{}
	in := NewInterceptor(10, rec.handlers())

	in.ProcessInput([]byte("gi"))
	currentID := rec.nextReq
	in.ApplySuggestion(Suggestion{RequestID: currentID, Text: "git status"})

	in.ProcessInput([]byte("\t"))
	assert.Equal(t, "git status", in.Buffer())
	assert.Empty(t, rec.forwarded)
}

func TestKeystrokeInvalidatesGhost(t *testing.T) {
	rec := &recorder{}
	in := NewInterceptor(10, rec.handlers())

	in.ProcessInput([]byte("gi"))
	in.ApplySuggestion(Suggestion{RequestID: rec.nextReq, Text: "git status"})

	// A further keystroke drops the ghost; Tab then requests afresh
	// instead of accepting stale text.
	in.ProcessInput([]byte("x"))
	in.ProcessInput([]byte("\t"))
	assert.Equal(t, "gix", in.Buffer())
}

func TestHistoryRecallWithArrows(t *testing.T) {
	rec := &recorder{}
	in := NewInterceptor(10, rec.handlers())

	in.ProcessInput([]byte("first\r"))
	in.ProcessInput([]byte("second\r"))
	rec.forwarded = nil

	in.ProcessInput([]byte("\x1b[A"))
	assert.Equal(t, "second", in.Buffer())
	in.ProcessInput([]byte("\x1b[A"))
	assert.Equal(t, "first", in.Buffer())
	in.ProcessInput([]byte("\x1b[B"))
	assert.Equal(t, "second", in.Buffer())
	assert.Empty(t, rec.forwarded)
}

func TestCtrlCClearsAndForwards(t *testing.T) {
	rec := &recorder{}
	in := NewInterceptor(10, rec.handlers())

	in.ProcessInput([]byte("sleep 100"))
	in.ProcessInput([]byte{0x03})

	assert.Equal(t, "", in.Buffer())
	assert.Equal(t, []byte{0x03}, rec.forwarded)
}
