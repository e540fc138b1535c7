// Package orchestrator routes operator queries to the agent best placed
// to answer them and enforces one in-flight query per session.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aegish/aegish/pkg/agents"
	"github.com/aegish/aegish/pkg/logging"
	"github.com/aegish/aegish/pkg/memory"
	"github.com/aegish/aegish/pkg/protocol"
	"github.com/aegish/aegish/pkg/types"
)

// intentKeywords score a query toward a specialist. Substring matching on
// the lowercased query; the highest score wins, ties resolve in the
// precedence order below, and a zero score falls through to general.
var intentKeywords = map[agents.Kind][]string{
	agents.KindSyntax: {
		"how do i", "syntax", "usage", "command", "option",
		"flag", "argument", "example", "man page",
	},
	agents.KindResearcher: {
		"cve", "vulnerability", "exploit", "advisory", "look up",
		"search", "latest", "release notes", "http://", "https://",
	},
	agents.KindScribe: {
		"report", "summary", "summarize", "recap", "history",
		"what did i", "document", "write up",
	},
}

// kindPrecedence breaks score ties deterministically.
var kindPrecedence = []agents.Kind{agents.KindSyntax, agents.KindResearcher, agents.KindScribe}

// Orchestrator implements the daemon's request handling: ingest feeds the
// retrieval store, chat routes to an agent and streams its answer back.
type Orchestrator struct {
	store  *memory.Store
	logger *logging.Logger

	mu     sync.Mutex
	agents map[agents.Kind]agents.Agent
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithAgent registers or replaces the agent for its kind.
func WithAgent(agent agents.Agent) Option {
	return func(o *Orchestrator) {
		o.agents[agent.Kind()] = agent
	}
}

// New creates an orchestrator over the given store. Agents are supplied
// via WithAgent; a query routed to an unregistered kind falls back to
// general, and fails if general is missing too.
func New(store *memory.Store, opts ...Option) *Orchestrator {
	logger, _ := logging.NewLogger("orchestrator")
	o := &Orchestrator{
		store:  store,
		logger: logger,
		agents: make(map[agents.Kind]agents.Agent),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Classify maps a query to the kind of agent that should answer it.
func Classify(query string) agents.Kind {
	lower := strings.ToLower(query)

	best := agents.KindGeneral
	bestScore := 0
	for _, kind := range kindPrecedence {
		score := 0
		for _, kw := range intentKeywords[kind] {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = kind, score
		}
	}
	return best
}

// HandleIngest indexes one captured command event.
func (o *Orchestrator) HandleIngest(ctx context.Context, req *protocol.IngestRequest) (*protocol.IngestAck, error) {
	if req.SessionID == "" {
		return nil, fmt.Errorf("ingest event %d has no session id", req.Seq)
	}
	chunks := o.store.Add(req.SessionID, req.Seq, req.Command, req.Stdout)
	return &protocol.IngestAck{Seq: req.Seq, Chunks: chunks}, nil
}

// HandleChat routes the query and relays the agent's stream through send.
// Per-session single flight is enforced by the transport layer, which
// cancels ctx when a newer query arrives for the same session.
func (o *Orchestrator) HandleChat(ctx context.Context, req *protocol.ChatRequest, send func(protocol.ChatChunk) error) error {
	kind := Classify(req.Query)
	agent := o.agentFor(kind)
	if agent == nil {
		return fmt.Errorf("no agent available for %q queries", kind)
	}

	o.logger.Infof("session %s query %d routed to %s", req.SessionID, req.Seq, agent.Kind())

	events, err := agent.Respond(ctx, agents.Request{SessionID: req.SessionID, Query: req.Query})
	if err != nil {
		return err
	}

	var citations []protocol.Citation
	for ev := range events {
		switch ev.Type {
		case types.EventTypeToken:
			if err := send(protocol.ChatChunk{Token: ev.Token, Agent: ev.Agent}); err != nil {
				return err
			}
		case types.EventTypeCitations:
			citations = toWireCitations(ev.Citations)
		case types.EventTypeDone:
			return send(protocol.ChatChunk{Agent: ev.Agent, Final: true, Citations: citations})
		case types.EventTypeError:
			return ev.Err
		}
	}
	// Stream closed without a terminal event; treat as done.
	return send(protocol.ChatChunk{Agent: string(agent.Kind()), Final: true, Citations: citations})
}

func toWireCitations(in []types.Citation) []protocol.Citation {
	out := make([]protocol.Citation, len(in))
	for i, c := range in {
		out[i] = protocol.Citation{EventSeq: c.EventSeq, ChunkID: c.ChunkID, Snippet: c.Snippet}
	}
	return out
}

// HandleCancel logs the explicit cancel; the transport already tore down
// the chat context.
func (o *Orchestrator) HandleCancel(ctx context.Context, req *protocol.CancelRequest) {
	o.logger.Infof("session %s canceled query %d", req.SessionID, req.Seq)
}

func (o *Orchestrator) agentFor(kind agents.Kind) agents.Agent {
	o.mu.Lock()
	defer o.mu.Unlock()
	if a, ok := o.agents[kind]; ok {
		return a
	}
	return o.agents[agents.KindGeneral]
}
