// Package agents holds the daemon's answer-producing components. The set
// of agents is closed: each carries one of the Kind tags below, and the
// orchestrator routes to exactly one per query.
package agents

import (
	"context"

	"github.com/aegish/aegish/pkg/types"
)

// Kind tags an agent. The set is fixed; routing, display badges, and wire
// payloads all key off these values.
type Kind string

const (
	// KindSyntax answers command syntax questions offline.
	KindSyntax Kind = "syntax"
	// KindResearcher answers questions needing live web content.
	KindResearcher Kind = "researcher"
	// KindScribe writes reports grounded in the session transcript.
	KindScribe Kind = "scribe"
	// KindGeneral handles everything the specialists do not claim.
	KindGeneral Kind = "general"
)

// Valid reports whether k is a member of the closed set.
func (k Kind) Valid() bool {
	switch k {
	case KindSyntax, KindResearcher, KindScribe, KindGeneral:
		return true
	}
	return false
}

// Request is one routed query.
type Request struct {
	SessionID string
	Query     string
}

// Agent produces a streamed answer for a request. Respond returns quickly;
// events arrive on the channel, which closes after a terminal event. A
// canceled context stops the stream.
type Agent interface {
	Kind() Kind
	Respond(ctx context.Context, req Request) (<-chan *types.StreamEvent, error)
}

// emitter tags and delivers events for one response stream. Its methods
// report false once the consumer is gone.
type emitter struct {
	ctx   context.Context
	agent string
	out   chan *types.StreamEvent
}

func (e *emitter) send(ev *types.StreamEvent) bool {
	select {
	case e.out <- ev:
		return true
	case <-e.ctx.Done():
		return false
	}
}

func (e *emitter) Token(text string) bool {
	return e.send(types.NewTokenEvent(e.agent, text))
}

func (e *emitter) Citations(citations []types.Citation) bool {
	return e.send(types.NewCitationsEvent(e.agent, citations))
}

// streamEvents runs produce in a goroutine and closes the stream with a
// done or error event depending on its outcome.
func streamEvents(ctx context.Context, kind Kind, produce func(ctx context.Context, em *emitter) error) <-chan *types.StreamEvent {
	out := make(chan *types.StreamEvent, 16)
	em := &emitter{ctx: ctx, agent: string(kind), out: out}

	go func() {
		defer close(out)
		if err := produce(ctx, em); err != nil {
			em.send(types.NewErrorEvent(em.agent, err))
			return
		}
		em.send(types.NewDoneEvent(em.agent))
	}()
	return out
}
