package editor

import "bytes"

// Mode is the interceptor's input handling mode.
type Mode int

const (
	// ModeLine buffers keystrokes locally until Enter.
	ModeLine Mode = iota
	// ModeRaw forwards every byte immediately with no interpretation.
	ModeRaw
)

var (
	// Sequences a full-screen program emits when taking over the terminal.
	rawEnterSeqs = [][]byte{
		[]byte("\x1b[?1049h"), // alternate screen
		[]byte("\x1b[?1047h"),
		[]byte("\x1b[?47h"),
	}
	rawExitSeqs = [][]byte{
		[]byte("\x1b[?1049l"),
		[]byte("\x1b[?1047l"),
		[]byte("\x1b[?47l"),
	}
)

// modeDetector watches the child's output stream for terminal-mode escape
// sequences indicating that a full-screen program has taken over (or given
// back) the terminal. A small tail is kept so sequences split across reads
// are still seen.
type modeDetector struct {
	raw  bool
	tail []byte
}

const detectorTail = 16

// Observe scans an output chunk and returns the current mode.
func (m *modeDetector) Observe(p []byte) Mode {
	window := append(m.tail, p...)

	// The last matching toggle in the chunk wins.
	lastEnter := lastIndexAny(window, rawEnterSeqs)
	lastExit := lastIndexAny(window, rawExitSeqs)

	if lastEnter > lastExit {
		m.raw = true
	} else if lastExit > lastEnter {
		m.raw = false
	}

	if len(window) > detectorTail {
		window = window[len(window)-detectorTail:]
	}
	m.tail = append(m.tail[:0], window...)

	if m.raw {
		return ModeRaw
	}
	return ModeLine
}

func lastIndexAny(window []byte, seqs [][]byte) int {
	last := -1
	for _, seq := range seqs {
		if idx := bytes.LastIndex(window, seq); idx > last {
			last = idx
		}
	}
	return last
}
