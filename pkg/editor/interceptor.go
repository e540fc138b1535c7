package editor

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
)

// QueryPrefix routes a line to the reasoning layer instead of the shell.
const QueryPrefix = "!"

// Handlers receive the interceptor's effects. All funcs must be non-nil.
type Handlers struct {
	// Forward writes bytes to the child shell.
	Forward func(p []byte)

	// Echo writes rendering bytes to the outer terminal.
	Echo func(p []byte)

	// SubmitQuery routes a QueryPrefix-ed line to the orchestrator.
	SubmitQuery func(text string)

	// RequestCompletion asks for a suggestion for the current prefix and
	// returns the monotonic request id tagged to it.
	RequestCompletion func(prefix string) uint64
}

// Suggestion is a completion result tagged with its originating request.
type Suggestion struct {
	RequestID uint64
	Text      string
}

// Interceptor sits in front of the PTY on the input side. It owns the edit
// buffer, history ring, and ghost text state.
type Interceptor struct {
	mu sync.Mutex

	mode     Mode
	detector modeDetector
	decoder  keyDecoder

	buffer  *EditBuffer
	history *History

	handlers Handlers

	// ghost is the rendered, uncommitted suggestion; pendingReq tags the
	// newest completion request. Only a suggestion matching pendingReq may
	// render.
	ghost      string
	pendingReq uint64

	// lastRendered tracks what the local echo last drew, for redraws.
	lastRenderedLen    int
	lastRenderedCursor int
}

// NewInterceptor creates an interceptor in line-editing mode.
func NewInterceptor(historyCapacity int, handlers Handlers) *Interceptor {
	return &Interceptor{
		mode:     ModeLine,
		buffer:   NewEditBuffer(),
		history:  NewHistory(historyCapacity),
		handlers: handlers,
	}
}

// Mode returns the current input mode.
func (i *Interceptor) Mode() Mode {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.mode
}

// Buffer returns the current line contents.
func (i *Interceptor) Buffer() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.buffer.String()
}

// History exposes the history ring to the completion engine.
func (i *Interceptor) History() *History {
	return i.history
}

// ObserveOutput watches child output for full-screen mode transitions.
// Called from the PTY read path.
func (i *Interceptor) ObserveOutput(p []byte) {
	i.mu.Lock()
	defer i.mu.Unlock()

	mode := i.detector.Observe(p)
	if mode == i.mode {
		return
	}

	// Flush bytes in flight so the transition drops nothing.
	if mode == ModeRaw {
		if tail := i.decoder.Flush(); len(tail) > 0 {
			i.handlers.Forward(tail)
		}
		i.clearGhostLocked()
		i.buffer.Reset()
		i.resetRenderLocked()
	}
	i.mode = mode
}

// ProcessInput consumes operator keystrokes.
func (i *Interceptor) ProcessInput(p []byte) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.mode == ModeRaw {
		i.handlers.Forward(p)
		return
	}

	for _, key := range i.decoder.Feed(p) {
		i.handleKeyLocked(key)
	}
}

// ApplySuggestion renders a completion result as ghost text if it is still
// current. Stale results are discarded regardless of arrival order.
func (i *Interceptor) ApplySuggestion(s Suggestion) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if s.RequestID != i.pendingReq || i.mode == ModeRaw {
		return
	}
	if !strings.HasPrefix(s.Text, i.buffer.String()) || s.Text == i.buffer.String() {
		return
	}
	i.ghost = s.Text[len(i.buffer.String()):]
	i.renderLocked()
}

func (i *Interceptor) handleKeyLocked(key Key) {
	switch key.Kind {
	case KeyRune:
		i.buffer.Insert(key.Rune)
		i.invalidateCompletionLocked()
		i.renderLocked()
		i.requestCompletionLocked()

	case KeyEnter:
		i.submitLocked()

	case KeyBackspace:
		i.buffer.Backspace()
		i.invalidateCompletionLocked()
		i.renderLocked()

	case KeyTab:
		if i.ghost != "" {
			i.acceptGhostLocked()
			return
		}
		i.requestCompletionLocked()

	case KeyRight:
		if i.ghost != "" && i.buffer.AtEnd() {
			i.acceptGhostLocked()
			return
		}
		i.buffer.MoveRight()
		i.renderLocked()

	case KeyLeft:
		i.buffer.MoveLeft()
		i.invalidateCompletionLocked()
		i.renderLocked()

	case KeyUp:
		if text, ok := i.history.Prev(i.buffer.String()); ok {
			i.buffer.Set(text)
			i.invalidateCompletionLocked()
			i.renderLocked()
		}

	case KeyDown:
		if text, ok := i.history.Next(); ok {
			i.buffer.Set(text)
			i.invalidateCompletionLocked()
			i.renderLocked()
		}

	case KeyCtrlA:
		i.buffer.Home()
		i.renderLocked()

	case KeyCtrlE:
		i.buffer.End()
		i.renderLocked()

	case KeyCtrlU:
		i.buffer.KillToStart()
		i.invalidateCompletionLocked()
		i.renderLocked()

	case KeyCtrlK:
		i.buffer.KillToEnd()
		i.invalidateCompletionLocked()
		i.renderLocked()

	case KeyCtrlW:
		i.buffer.KillPrevWord()
		i.invalidateCompletionLocked()
		i.renderLocked()

	case KeyCtrlC:
		// Clear the local line and let the shell handle the interrupt.
		i.buffer.Reset()
		i.history.ResetNav()
		i.invalidateCompletionLocked()
		i.resetRenderLocked()
		i.handlers.Forward(key.Raw)

	case KeyCtrlD:
		if i.buffer.Len() == 0 {
			i.handlers.Forward(key.Raw)
			return
		}
		// Ignore mid-line EOF; shells treat it as delete-char, which the
		// local buffer does not implement.

	case KeyEscape:
		i.clearGhostLocked()
		i.renderLocked()

	case KeyOther:
		// Unhandled sequences while a line is in progress are dropped to
		// keep the zero-forwarding property; an empty buffer forwards them
		// so shell bindings still work.
		if i.buffer.Len() == 0 && i.ghost == "" {
			i.handlers.Forward(key.Raw)
		}
	}
}

// submitLocked flushes the line: queries go to the orchestrator, everything
// else verbatim to the shell followed by carriage return.
func (i *Interceptor) submitLocked() {
	line := i.buffer.String()
	i.buffer.Reset()
	i.clearGhostLocked()
	i.invalidateCompletionLocked()
	i.resetRenderLocked()

	if strings.HasPrefix(line, QueryPrefix) {
		query := strings.TrimSpace(strings.TrimPrefix(line, QueryPrefix))
		// Erase the typed query; the overlay owns the screen next.
		i.handlers.Echo([]byte("\r\x1b[K"))
		if query != "" {
			i.handlers.SubmitQuery(query)
		}
		return
	}

	i.history.Append(line)
	// The shell echoes the submitted line itself; remove the local echo
	// first so it is not shown twice.
	i.handlers.Echo([]byte("\r\x1b[K"))
	i.handlers.Forward([]byte(line + "\r"))
}

func (i *Interceptor) acceptGhostLocked() {
	i.buffer.InsertString(i.ghost)
	i.ghost = ""
	i.pendingReq = 0
	i.renderLocked()
}

// invalidateCompletionLocked makes any in-flight request stale and drops
// visible ghost text. Every edit keystroke lands here.
func (i *Interceptor) invalidateCompletionLocked() {
	i.pendingReq = 0
	i.ghost = ""
}

func (i *Interceptor) clearGhostLocked() {
	i.ghost = ""
}

func (i *Interceptor) requestCompletionLocked() {
	if i.handlers.RequestCompletion == nil {
		return
	}
	prefix := i.buffer.String()
	if prefix == "" || strings.HasPrefix(prefix, QueryPrefix) {
		return
	}
	i.pendingReq = i.handlers.RequestCompletion(prefix)
}

// renderLocked redraws the local line: cursor back to line start, erase,
// buffer text, dim ghost text, cursor repositioned.
func (i *Interceptor) renderLocked() {
	var out bytes.Buffer

	if i.lastRenderedCursor > 0 {
		fmt.Fprintf(&out, "\x1b[%dD", i.lastRenderedCursor)
	}
	out.WriteString("\x1b[K")
	out.WriteString(i.buffer.String())
	if i.ghost != "" {
		fmt.Fprintf(&out, "\x1b[2m%s\x1b[22m", i.ghost)
		fmt.Fprintf(&out, "\x1b[%dD", len([]rune(i.ghost)))
	}
	if tail := i.buffer.Len() - i.buffer.Cursor(); tail > 0 {
		fmt.Fprintf(&out, "\x1b[%dD", tail)
	}

	i.lastRenderedLen = i.buffer.Len()
	i.lastRenderedCursor = i.buffer.Cursor()
	i.handlers.Echo(out.Bytes())
}

func (i *Interceptor) resetRenderLocked() {
	i.lastRenderedLen = 0
	i.lastRenderedCursor = 0
}
