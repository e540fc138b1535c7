// Package complete produces ranked command-line completions under a strict
// latency budget. Requests carry monotonically increasing ids; a newer
// request cancels the previous one, and late results for superseded ids are
// simply never delivered ("last request wins").
package complete

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aegish/aegish/pkg/editor"
	"github.com/aegish/aegish/pkg/llm"
	"github.com/aegish/aegish/pkg/logging"
)

// DefaultBudget bounds a completion request. Overruns are silent discards;
// a suggestion that cannot make it in time is worthless.
const DefaultBudget = 45 * time.Millisecond

// Option configures an Engine.
type Option func(*Engine)

// WithBudget overrides the per-request latency budget.
func WithBudget(d time.Duration) Option {
	return func(e *Engine) {
		e.budget = d
	}
}

// WithProvider enables model-derived suggestions. Without a provider the
// engine runs fully local.
func WithProvider(p llm.Provider) Option {
	return func(e *Engine) {
		e.provider = p
	}
}

// WithWorkdirFunc overrides working-directory lookup for the filesystem
// source.
func WithWorkdirFunc(fn func() string) Option {
	return func(e *Engine) {
		e.workdir = fn
	}
}

// WithIgnorePatterns replaces the filesystem ignore globs.
func WithIgnorePatterns(patterns []string) Option {
	return func(e *Engine) {
		e.fs = newFSSource(patterns)
	}
}

// Engine is the autocompletion engine. One suggestion at most is delivered
// per request, on the Results channel, tagged with the request id.
type Engine struct {
	history  *editor.History
	fs       *fsSource
	provider llm.Provider
	budget   time.Duration
	workdir  func() string
	logger   *logging.Logger

	mu     sync.Mutex
	nextID uint64
	cancel context.CancelFunc

	results chan editor.Suggestion
}

// NewEngine creates an engine backed by the interceptor's history ring.
func NewEngine(history *editor.History, opts ...Option) *Engine {
	logger, _ := logging.NewLogger("complete")

	e := &Engine{
		history: history,
		fs:      newFSSource(defaultIgnorePatterns),
		budget:  DefaultBudget,
		workdir: defaultWorkdir,
		logger:  logger,
		results: make(chan editor.Suggestion, 8),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Results delivers suggestions as they are produced. Consumers must check
// the request id against the latest issued before rendering.
func (e *Engine) Results() <-chan editor.Suggestion {
	return e.results
}

// Request issues an asynchronous completion request for prefix and returns
// its id. The previous in-flight request is canceled first.
func (e *Engine) Request(prefix string) uint64 {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	e.nextID++
	id := e.nextID
	ctx, cancel := context.WithTimeout(context.Background(), e.budget)
	e.cancel = cancel
	e.mu.Unlock()

	go e.run(ctx, id, prefix)
	return id
}

// Close cancels any in-flight request.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.mu.Unlock()
	e.logger.Close()
}

// run gathers, ranks, and delivers the best candidate for one request.
func (e *Engine) run(ctx context.Context, id uint64, prefix string) {
	candidates := e.gather(ctx, prefix)
	if len(candidates) == 0 {
		return
	}

	if ctx.Err() != nil {
		// Budget exceeded or superseded: discard silently.
		return
	}

	// Non-blocking send; a full channel means the consumer is behind and
	// this suggestion is already stale.
	select {
	case e.results <- editor.Suggestion{RequestID: id, Text: candidates[0].text}:
	default:
		e.logger.Debugf("request %d: result channel full, suggestion dropped", id)
	}
}

// sourceRank orders candidate classes. History outranks filesystem, which
// outranks model output.
type sourceRank int

const (
	rankHistory sourceRank = iota
	rankFilesystem
	rankModel
)

type candidate struct {
	text    string
	source  sourceRank
	recency uint64 // newest history seq containing this text
	freq    int
}

// gather collects candidates from all sources and sorts them.
func (e *Engine) gather(ctx context.Context, prefix string) []candidate {
	candidates := historyCandidates(e.history, prefix)
	candidates = append(candidates, e.fs.candidates(e.workdir(), prefix)...)

	if e.provider != nil && ctx.Err() == nil {
		if text, ok := e.modelCandidate(ctx, prefix); ok {
			candidates = append(candidates, candidate{text: text, source: rankModel})
		}
	}

	sortCandidates(candidates)
	return dedupe(candidates)
}

// sortCandidates orders by source class, then recency (newest first), then
// frequency, with ties broken by shortest suggestion.
func sortCandidates(candidates []candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.source != b.source {
			return a.source < b.source
		}
		if a.recency != b.recency {
			return a.recency > b.recency
		}
		if a.freq != b.freq {
			return a.freq > b.freq
		}
		return len(a.text) < len(b.text)
	})
}

func dedupe(candidates []candidate) []candidate {
	seen := make(map[string]bool, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		if seen[c.text] {
			continue
		}
		seen[c.text] = true
		out = append(out, c)
	}
	return out
}

// historyCandidates returns exact-prefix matches from the history ring with
// recency and frequency populated.
func historyCandidates(history *editor.History, prefix string) []candidate {
	if history == nil {
		return nil
	}

	byText := make(map[string]*candidate)
	var order []string
	for _, entry := range history.Entries() {
		if !strings.HasPrefix(entry.Text, prefix) || entry.Text == prefix {
			continue
		}
		c, ok := byText[entry.Text]
		if !ok {
			byText[entry.Text] = &candidate{text: entry.Text, source: rankHistory, recency: entry.Seq, freq: 1}
			order = append(order, entry.Text)
			continue
		}
		c.freq++
		if entry.Seq > c.recency {
			c.recency = entry.Seq
		}
	}

	out := make([]candidate, 0, len(order))
	for _, text := range order {
		out = append(out, *byText[text])
	}
	return out
}
