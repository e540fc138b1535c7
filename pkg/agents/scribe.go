package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/aegish/aegish/pkg/llm"
	"github.com/aegish/aegish/pkg/memory"
	"github.com/aegish/aegish/pkg/sanitize"
	"github.com/aegish/aegish/pkg/types"
)

const (
	scribeTopK       = 6
	scribeHistoryLen = 10
	snippetRunes     = 160
)

const scribePrompt = `You write short session reports for a terminal operator. Ground every claim in the transcript excerpts provided; do not invent commands or output. Refer to excerpts by their [n] marker. Structure: what was done, what the results were, anything left unresolved.`

// ScribeAgent writes reports about the current session, grounded in the
// retrieval store. Every answer carries citations pointing back at the
// command events its chunks came from.
type ScribeAgent struct {
	provider  llm.Provider
	store     *memory.Store
	sanitizer *sanitize.Sanitizer
}

// NewScribeAgent creates the scribe. With a nil provider it still answers,
// falling back to a deterministic transcript digest.
func NewScribeAgent(provider llm.Provider, store *memory.Store, sanitizer *sanitize.Sanitizer) *ScribeAgent {
	return &ScribeAgent{provider: provider, store: store, sanitizer: sanitizer}
}

func (a *ScribeAgent) Kind() Kind { return KindScribe }

func (a *ScribeAgent) Respond(ctx context.Context, req Request) (<-chan *types.StreamEvent, error) {
	return streamEvents(ctx, KindScribe, func(ctx context.Context, em *emitter) error {
		results := a.store.Search(req.SessionID, req.Query, scribeTopK)
		citations := toCitations(results)

		if a.provider == nil {
			for _, part := range a.digest(req, results) {
				if !em.Token(part) {
					return nil
				}
			}
			em.Citations(citations)
			return nil
		}

		user := a.buildPrompt(req, results)
		stream, err := a.provider.StreamCompletion(ctx, []*types.Message{
			types.NewSystemMessage(scribePrompt),
			types.NewUserMessage(a.sanitizer.Clean(user)),
		})
		if err != nil {
			return fmt.Errorf("report query failed: %w", err)
		}
		if err := forwardStream(stream, em); err != nil {
			return err
		}
		em.Citations(citations)
		return nil
	}), nil
}

func (a *ScribeAgent) buildPrompt(req Request, results []memory.Result) string {
	var sb strings.Builder
	sb.WriteString(req.Query)
	sb.WriteString("\n\nRecent commands:\n")
	for _, cmd := range a.store.History(req.SessionID, scribeHistoryLen) {
		fmt.Fprintf(&sb, "  $ %s\n", cmd)
	}
	if len(results) > 0 {
		sb.WriteString("\nTranscript excerpts:\n")
		for i, r := range results {
			fmt.Fprintf(&sb, "[%d] (command: %s)\n%s\n\n", i+1, r.Chunk.Command, r.Chunk.Text)
		}
	}
	return sb.String()
}

// digest is the offline fallback: a factual summary built straight from
// the store, no model involved.
func (a *ScribeAgent) digest(req Request, results []memory.Result) []string {
	history := a.store.History(req.SessionID, scribeHistoryLen)
	if len(history) == 0 && len(results) == 0 {
		return []string{"Nothing captured for this session yet.\n"}
	}

	parts := []string{"Session digest (no model configured):\n"}
	if len(history) > 0 {
		parts = append(parts, "Recent commands:\n")
		for _, cmd := range history {
			parts = append(parts, fmt.Sprintf("  $ %s\n", cmd))
		}
	}
	if len(results) > 0 {
		parts = append(parts, "Most relevant transcript excerpts:\n")
		for i, r := range results {
			parts = append(parts, fmt.Sprintf("[%d] %s: %s\n", i+1, r.Chunk.Command, snippet(r.Chunk.Text)))
		}
	}
	return parts
}

func toCitations(results []memory.Result) []types.Citation {
	out := make([]types.Citation, 0, len(results))
	for _, r := range results {
		out = append(out, types.Citation{
			EventSeq: r.Chunk.EventSeq,
			ChunkID:  r.Chunk.ID,
			Snippet:  snippet(r.Chunk.Text),
		})
	}
	return out
}

func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) > snippetRunes {
		return string(runes[:snippetRunes]) + "..."
	}
	return text
}
