package overlay

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/aegish/aegish/pkg/transport"
)

// AskFunc starts one query stream. The context is canceled when the query
// is superseded or the overlay closes.
type AskFunc func(ctx context.Context, query string) (<-chan transport.ChatEvent, error)

// Run displays the overlay for a query and any follow-ups, pumping chat
// events into it until the operator closes the view. Returns the last
// answer text.
func Run(query string, ask AskFunc, opts ...tea.ProgramOption) (string, error) {
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)

	submissions := make(chan Query, 1)
	p := tea.NewProgram(New(query, submissions), opts...)

	pumpCtx, stopPump := context.WithCancel(context.Background())
	defer stopPump()
	go pump(pumpCtx, p, ask, Query{Gen: 1, Query: query}, submissions)

	final, err := p.Run()
	if err != nil {
		return "", err
	}
	m, ok := final.(Model)
	if !ok {
		return "", nil
	}
	return m.Answer(), nil
}

// pump runs query streams one generation at a time. A new submission
// cancels the previous stream's context before starting the next.
func pump(ctx context.Context, p *tea.Program, ask AskFunc, first Query, submissions <-chan Query) {
	var cancel context.CancelFunc
	defer func() {
		if cancel != nil {
			cancel()
		}
	}()

	start := func(q Query) {
		if cancel != nil {
			cancel()
		}
		var streamCtx context.Context
		streamCtx, cancel = context.WithCancel(ctx)

		events, err := ask(streamCtx, q.Query)
		if err != nil {
			p.Send(ErrMsg{Gen: q.Gen, Err: err})
			return
		}
		go relay(p, q.Gen, events)
	}

	start(first)
	for {
		select {
		case <-ctx.Done():
			return
		case q := <-submissions:
			start(q)
		}
	}
}

// relay forwards one stream's events. Stale generations are filtered by
// the model, so a superseded relay can finish out harmlessly.
func relay(p *tea.Program, gen int, events <-chan transport.ChatEvent) {
	for ev := range events {
		switch {
		case ev.Err != nil:
			p.Send(ErrMsg{Gen: gen, Err: ev.Err})
			return
		case ev.Chunk.Final:
			p.Send(DoneMsg{Gen: gen, Agent: ev.Chunk.Agent, Citations: ev.Chunk.Citations})
			return
		case ev.Chunk.Token != "":
			p.Send(TokenMsg{Gen: gen, Agent: ev.Chunk.Agent, Token: ev.Chunk.Token})
		}
	}
	p.Send(DoneMsg{Gen: gen})
}
