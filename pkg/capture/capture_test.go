package capture

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func markerC(cmd string) string { return "\x1b]133;C;" + cmd + "\x07" }
func markerD(code int) string   { return fmt.Sprintf("\x1b]133;D;%d\x07", code) }

func drain(q *EventQueue) []CommandEvent {
	var out []CommandEvent
	for {
		ev, ok := q.Pop()
		if !ok {
			return out
		}
		out = append(out, ev)
	}
}

func TestCommandEmittedExactlyOnce(t *testing.T) {
	q := NewEventQueue(64)
	c := NewCapturer(q)

	c.ProcessOutput([]byte(markerC("ls -la")))
	c.ProcessOutput([]byte("total 8\r\ndrwxr-xr-x  2 op op 4096 .\r\n"))
	c.ProcessOutput([]byte(markerD(0)))

	events := drain(q)
	require.Len(t, events, 1)
	assert.Equal(t, "ls -la", events[0].Command)
	assert.Equal(t, 0, events[0].ExitCode)
	assert.Contains(t, events[0].Output, "total 8")
	assert.False(t, events[0].FinishedAt.Before(events[0].StartedAt))
}

func TestNonZeroExitCode(t *testing.T) {
	q := NewEventQueue(4)
	c := NewCapturer(q)

	c.ProcessOutput([]byte(markerC("false") + markerD(1)))

	events := drain(q)
	require.Len(t, events, 1)
	assert.Equal(t, 1, events[0].ExitCode)
}

func TestMarkerSplitAcrossReads(t *testing.T) {
	q := NewEventQueue(4)
	c := NewCapturer(q)

	full := markerC("echo hi") + "hi\r\n" + markerD(0)
	for i := 0; i < len(full); i++ {
		c.ProcessOutput([]byte{full[i]})
	}

	events := drain(q)
	require.Len(t, events, 1)
	assert.Equal(t, "echo hi", events[0].Command)
	assert.Equal(t, "hi\r\n", events[0].Output)
	assert.Equal(t, 0, events[0].ExitCode)
}

func TestMarkersStrippedFromOutput(t *testing.T) {
	q := NewEventQueue(4)
	c := NewCapturer(q)

	c.ProcessOutput([]byte(markerC("pwd") + "/home/op\r\n" + markerD(0)))

	events := drain(q)
	require.Len(t, events, 1)
	assert.NotContains(t, events[0].Output, "133;")
}

func TestPromptBeforeAnyCommandIgnored(t *testing.T) {
	q := NewEventQueue(4)
	c := NewCapturer(q)

	// Shell startup emits D before the first C.
	c.ProcessOutput([]byte(markerD(0)))
	assert.Equal(t, 0, q.Len())
}

func TestNewCommandClosesUnfinishedPredecessor(t *testing.T) {
	q := NewEventQueue(4)
	c := NewCapturer(q)

	c.ProcessOutput([]byte(markerC("sleep 100")))
	c.ProcessOutput([]byte(markerC("echo next") + markerD(0)))

	events := drain(q)
	require.Len(t, events, 2)
	assert.Equal(t, "sleep 100", events[0].Command)
	assert.Equal(t, ExitCodeUnknown, events[0].ExitCode)
	assert.Equal(t, "echo next", events[1].Command)
	assert.Equal(t, 0, events[1].ExitCode)
}

func TestOutputCapped(t *testing.T) {
	q := NewEventQueue(4)
	c := NewCapturer(q)

	c.ProcessOutput([]byte(markerC("yes")))
	big := make([]byte, maxOutputBytes*2)
	for i := range big {
		big[i] = 'y'
	}
	c.ProcessOutput(big)
	c.ProcessOutput([]byte(markerD(0)))

	events := drain(q)
	require.Len(t, events, 1)
	assert.Len(t, events[0].Output, maxOutputBytes)
}

func TestSequenceNumbersMonotonic(t *testing.T) {
	q := NewEventQueue(8)
	c := NewCapturer(q)

	for i := 0; i < 3; i++ {
		c.ProcessOutput([]byte(markerC(fmt.Sprintf("cmd%d", i)) + markerD(0)))
	}

	events := drain(q)
	require.Len(t, events, 3)
	for i, ev := range events {
		assert.Equal(t, uint64(i+1), ev.Seq)
	}
}

func TestPromptHeuristicClosesCommand(t *testing.T) {
	q := NewEventQueue(4)
	c := NewCapturer(q, WithPromptHeuristic())

	c.NoteSubmitted("uname")
	c.ProcessOutput([]byte("Linux\r\nop@host:~$ "))
	// Pad past the partial-marker tail hold-back.
	c.ProcessOutput([]byte("        "))

	events := drain(q)
	require.Len(t, events, 1)
	assert.Equal(t, "uname", events[0].Command)
	assert.Equal(t, ExitCodeUnknown, events[0].ExitCode)
	assert.Contains(t, events[0].Output, "Linux")
	assert.NotContains(t, events[0].Output, "op@host")
}

func TestQueueOverflowDropsOldestKeepsNewestInOrder(t *testing.T) {
	const capacity = 64
	const extra = 10
	q := NewEventQueue(capacity)
	c := NewCapturer(q)

	for i := 0; i < capacity+extra; i++ {
		c.ProcessOutput([]byte(markerC(fmt.Sprintf("cmd%d", i)) + markerD(0)))
	}

	assert.Equal(t, uint64(extra), q.Dropped())

	events := drain(q)
	require.Len(t, events, capacity)
	for i, ev := range events {
		assert.Equal(t, fmt.Sprintf("cmd%d", extra+i), ev.Command)
	}
}

func TestOverflowRaisesWarning(t *testing.T) {
	q := NewEventQueue(1)
	var warnings []string
	c := NewCapturer(q, WithWarnFunc(func(format string, args ...interface{}) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}))

	c.ProcessOutput([]byte(markerC("a") + markerD(0)))
	c.ProcessOutput([]byte(markerC("b") + markerD(0)))

	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "dropped")
}
