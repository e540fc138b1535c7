// Package capture turns the child shell's raw output stream into structured
// command events without cooperation from the commands themselves.
//
// With shell integration installed, OSC 133 sequences bracket every command:
// "133;C;<cmd>" at execution start and "133;D;<exit>" at the next prompt.
// Without hooks a prompt heuristic closes commands opened by the line
// editor's submissions, with the exit code unknown.
package capture

import (
	"bytes"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aegish/aegish/pkg/logging"
)

// CommandEvent is one completed command. Immutable once emitted; never
// created for a still-running command.
type CommandEvent struct {
	Seq        uint64
	Command    string
	Output     string
	ExitCode   int
	StartedAt  time.Time
	FinishedAt time.Time
}

// ExitCodeUnknown marks events closed by the prompt heuristic, which sees
// the prompt return but not the status.
const ExitCodeUnknown = -1

const (
	oscPrefix = "\x1b]133;"

	// maxOutputBytes caps captured per-command output. Oldest output is
	// kept; runaway commands lose their tail.
	maxOutputBytes = 4096

	// maxScanBytes caps the boundary-scan buffer. An unterminated OSC
	// sequence larger than this is treated as plain output.
	maxScanBytes = 8192
)

// Option configures a Capturer.
type Option func(*Capturer)

// WithPromptHeuristic enables closing commands on prompt-looking output,
// for shells without integration hooks.
func WithPromptHeuristic() Option {
	return func(c *Capturer) {
		c.promptHeuristic = true
	}
}

// WithWarnFunc sets the sink for overflow warnings.
func WithWarnFunc(fn func(format string, args ...interface{})) Option {
	return func(c *Capturer) {
		c.warn = fn
	}
}

// WithClock overrides time lookup, used by tests.
func WithClock(now func() time.Time) Option {
	return func(c *Capturer) {
		c.now = now
	}
}

// Capturer observes the PTY output stream and emits command events onto a
// bounded queue. ProcessOutput is called from the read loop and never
// blocks on downstream consumers.
type Capturer struct {
	queue  *EventQueue
	warn   func(format string, args ...interface{})
	logger *logging.Logger
	now    func() time.Time

	promptHeuristic bool

	mu        sync.Mutex
	scan      []byte
	inCommand bool
	command   string
	output    bytes.Buffer
	startedAt time.Time
	seq       uint64
}

// NewCapturer creates a capturer emitting onto queue.
func NewCapturer(queue *EventQueue, opts ...Option) *Capturer {
	logger, _ := logging.NewLogger("capture")

	c := &Capturer{
		queue:  queue,
		warn:   func(format string, args ...interface{}) {},
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NoteSubmitted records a line-editor submission as the running command.
// Only meaningful in prompt-heuristic mode; with hooks installed the OSC C
// marker carries the authoritative command text.
func (c *Capturer) NoteSubmitted(command string) {
	if !c.promptHeuristic {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inCommand {
		// The previous command never showed a prompt; close it blind.
		c.emitLocked(ExitCodeUnknown)
	}
	c.beginLocked(command)
}

// ProcessOutput scans an output chunk for command boundaries. Called from
// the PTY read path; must stay cheap and non-blocking.
func (c *Capturer) ProcessOutput(p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.scan = append(c.scan, p...)

	for {
		idx := bytes.Index(c.scan, []byte(oscPrefix))
		if idx < 0 {
			c.consumePlainLocked()
			return
		}

		// Everything before the marker is plain command output.
		c.appendOutputLocked(c.scan[:idx])
		c.scan = c.scan[idx:]

		payload, advance, ok := cutOSC(c.scan)
		if !ok {
			if len(c.scan) > maxScanBytes {
				// Unterminated garbage; stop treating it as a marker.
				c.appendOutputLocked(c.scan)
				c.scan = c.scan[:0]
			}
			return
		}
		c.handleMarkerLocked(payload)
		c.scan = c.scan[advance:]
	}
}

// cutOSC extracts the payload of a leading OSC 133 sequence terminated by
// BEL or ST. Returns ok=false while the terminator has not arrived.
func cutOSC(scan []byte) (payload string, advance int, ok bool) {
	body := scan[len(oscPrefix):]

	bel := bytes.IndexByte(body, 0x07)
	st := bytes.Index(body, []byte("\x1b\\"))

	switch {
	case bel >= 0 && (st < 0 || bel < st):
		return string(body[:bel]), len(oscPrefix) + bel + 1, true
	case st >= 0:
		return string(body[:st]), len(oscPrefix) + st + 2, true
	default:
		return "", 0, false
	}
}

func (c *Capturer) handleMarkerLocked(payload string) {
	kind, rest, _ := strings.Cut(payload, ";")
	switch kind {
	case "C":
		if c.inCommand {
			// A new command started before the old one reported; close
			// the old one blind rather than mixing outputs.
			c.emitLocked(ExitCodeUnknown)
		}
		c.beginLocked(rest)

	case "D":
		if !c.inCommand {
			return // prompt before any command, e.g. shell startup
		}
		code := ExitCodeUnknown
		if parsed, err := strconv.Atoi(strings.TrimSpace(rest)); err == nil {
			code = parsed
		}
		c.emitLocked(code)

	default:
		c.logger.Debugf("ignoring OSC 133;%s", kind)
	}
}

func (c *Capturer) beginLocked(command string) {
	c.inCommand = true
	c.command = command
	c.output.Reset()
	c.startedAt = c.now()
}

func (c *Capturer) emitLocked(exitCode int) {
	c.seq++
	ev := CommandEvent{
		Seq:        c.seq,
		Command:    c.command,
		Output:     c.output.String(),
		ExitCode:   exitCode,
		StartedAt:  c.startedAt,
		FinishedAt: c.now(),
	}
	c.inCommand = false
	c.command = ""
	c.output.Reset()

	if c.queue.Push(ev) {
		c.warn("event queue full, oldest command event dropped")
		c.logger.Warnf("event queue overflow (%d dropped total)", c.queue.Dropped())
	}
}

// consumePlainLocked moves scanned bytes into the command output, keeping a
// small tail in case a marker is split across reads.
func (c *Capturer) consumePlainLocked() {
	keep := len(oscPrefix) - 1
	if len(c.scan) <= keep {
		return
	}

	cut := len(c.scan) - keep
	if tail := lastPartialMarker(c.scan); tail >= 0 && tail < cut {
		cut = tail
	}

	c.appendOutputLocked(c.scan[:cut])
	c.scan = append(c.scan[:0], c.scan[cut:]...)

	if c.promptHeuristic && c.inCommand && looksLikePrompt(c.output.Bytes()) {
		c.trimPromptLocked()
		c.emitLocked(ExitCodeUnknown)
	}
}

// lastPartialMarker finds a trailing prefix of the OSC marker, or -1.
func lastPartialMarker(scan []byte) int {
	max := len(oscPrefix) - 1
	if max > len(scan) {
		max = len(scan)
	}
	for n := max; n > 0; n-- {
		if bytes.HasSuffix(scan, []byte(oscPrefix[:n])) {
			return len(scan) - n
		}
	}
	return -1
}

func (c *Capturer) appendOutputLocked(p []byte) {
	if !c.inCommand || len(p) == 0 {
		return
	}
	room := maxOutputBytes - c.output.Len()
	if room <= 0 {
		return
	}
	if len(p) > room {
		p = p[:room]
	}
	c.output.Write(p)
}

// looksLikePrompt reports whether the output tail resembles a shell prompt
// waiting for input.
func looksLikePrompt(output []byte) bool {
	tail := output
	if len(tail) > 64 {
		tail = tail[len(tail)-64:]
	}
	s := string(tail)

	idx := strings.LastIndexByte(s, '\n')
	lastLine := s[idx+1:]

	trimmed := strings.TrimRight(lastLine, " ")
	if trimmed == "" || trimmed == lastLine {
		return false // prompts end with a space after the sigil
	}
	switch trimmed[len(trimmed)-1] {
	case '$', '#', '%', '>':
		return true
	}
	return false
}

// trimPromptLocked removes the trailing prompt line from captured output.
func (c *Capturer) trimPromptLocked() {
	out := c.output.Bytes()
	idx := bytes.LastIndexByte(out, '\n')
	if idx < 0 {
		c.output.Reset()
		return
	}
	c.output.Truncate(idx + 1)
}
