package agents

import (
	"context"
	"fmt"

	"github.com/aegish/aegish/pkg/llm"
	"github.com/aegish/aegish/pkg/sanitize"
	"github.com/aegish/aegish/pkg/types"
)

const generalPrompt = `You are a terminal assistant. Answer briefly and practically; when a shell command is the answer, give the command.`

// GeneralAgent handles queries none of the specialists claim.
type GeneralAgent struct {
	provider  llm.Provider
	sanitizer *sanitize.Sanitizer
}

// NewGeneralAgent creates the fallback agent. provider may be nil, in
// which case Respond fails with ErrNoProvider.
func NewGeneralAgent(provider llm.Provider, sanitizer *sanitize.Sanitizer) *GeneralAgent {
	return &GeneralAgent{provider: provider, sanitizer: sanitizer}
}

func (a *GeneralAgent) Kind() Kind { return KindGeneral }

func (a *GeneralAgent) Respond(ctx context.Context, req Request) (<-chan *types.StreamEvent, error) {
	if a.provider == nil {
		return nil, fmt.Errorf("assistant unavailable: %w", ErrNoProvider)
	}

	return streamEvents(ctx, KindGeneral, func(ctx context.Context, em *emitter) error {
		stream, err := a.provider.StreamCompletion(ctx, []*types.Message{
			types.NewSystemMessage(generalPrompt),
			types.NewUserMessage(a.sanitizer.Clean(req.Query)),
		})
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		return forwardStream(stream, em)
	}), nil
}
