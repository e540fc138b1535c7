package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegish/aegish/pkg/agents"
	"github.com/aegish/aegish/pkg/memory"
	"github.com/aegish/aegish/pkg/protocol"
	"github.com/aegish/aegish/pkg/types"
)

// stubAgent streams a fixed reply, optionally stalling until canceled.
type stubAgent struct {
	kind  agents.Kind
	reply string
	stall bool

	gotQuery string
}

func (a *stubAgent) Kind() agents.Kind { return a.kind }

func (a *stubAgent) Respond(ctx context.Context, req agents.Request) (<-chan *types.StreamEvent, error) {
	a.gotQuery = req.Query
	out := make(chan *types.StreamEvent, 4)
	go func() {
		defer close(out)
		if a.stall {
			<-ctx.Done()
			out <- types.NewErrorEvent(string(a.kind), ctx.Err())
			return
		}
		out <- types.NewTokenEvent(string(a.kind), a.reply)
		out <- types.NewDoneEvent(string(a.kind))
	}()
	return out, nil
}

func TestClassify(t *testing.T) {
	cases := map[string]agents.Kind{
		"how do i use tar flags":                 agents.KindSyntax,
		"what is the syntax for rsync":           agents.KindSyntax,
		"look up CVE-2024-3094 details":          agents.KindResearcher,
		"search for the latest openssl advisory": agents.KindResearcher,
		"summarize https://example.com/notes":    agents.KindResearcher,
		"write a report of this session":         agents.KindScribe,
		"give me a summary of what did i run":    agents.KindScribe,
		"why is my disk full":                    agents.KindGeneral,
		"":                                       agents.KindGeneral,
	}
	for query, want := range cases {
		assert.Equal(t, want, Classify(query), "query %q", query)
	}
}

func TestHandleIngestIndexesEvent(t *testing.T) {
	store := memory.NewStore()
	o := New(store)

	ack, err := o.HandleIngest(context.Background(), &protocol.IngestRequest{
		SessionID: "sess",
		Seq:       7,
		Command:   "df -h",
		Stdout:    "/dev/sda1 80% /",
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(7), ack.Seq)
	assert.Greater(t, ack.Chunks, 0)
	assert.Equal(t, ack.Chunks, store.Len("sess"))
}

func TestHandleIngestRejectsMissingSession(t *testing.T) {
	o := New(memory.NewStore())
	_, err := o.HandleIngest(context.Background(), &protocol.IngestRequest{Seq: 1, Command: "ls"})
	assert.Error(t, err)
}

func TestHandleChatRoutesAndStreams(t *testing.T) {
	syntax := &stubAgent{kind: agents.KindSyntax, reply: "tar explained"}
	o := New(memory.NewStore(), WithAgent(syntax))

	var chunks []protocol.ChatChunk
	err := o.HandleChat(context.Background(),
		&protocol.ChatRequest{SessionID: "sess", Seq: 1, Query: "how do i use tar flags"},
		func(c protocol.ChatChunk) error {
			chunks = append(chunks, c)
			return nil
		})
	require.NoError(t, err)

	require.Len(t, chunks, 2)
	assert.Equal(t, "tar explained", chunks[0].Token)
	assert.Equal(t, string(agents.KindSyntax), chunks[0].Agent)
	assert.True(t, chunks[1].Final)
}

func TestHandleChatFallsBackToGeneral(t *testing.T) {
	general := &stubAgent{kind: agents.KindGeneral, reply: "answered"}
	o := New(memory.NewStore(), WithAgent(general))

	err := o.HandleChat(context.Background(),
		&protocol.ChatRequest{SessionID: "sess", Seq: 1, Query: "how do i use tar flags"},
		func(protocol.ChatChunk) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, "how do i use tar flags", general.gotQuery)
}

func TestHandleChatNoAgentsIsError(t *testing.T) {
	o := New(memory.NewStore())
	err := o.HandleChat(context.Background(),
		&protocol.ChatRequest{SessionID: "sess", Query: "anything"},
		func(protocol.ChatChunk) error { return nil })
	assert.Error(t, err)
}

func TestHandleChatStopsOnCancel(t *testing.T) {
	stalled := &stubAgent{kind: agents.KindGeneral, stall: true}
	o := New(memory.NewStore(), WithAgent(stalled))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- o.HandleChat(ctx,
			&protocol.ChatRequest{SessionID: "sess", Query: "slow question"},
			func(protocol.ChatChunk) error { return nil })
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("chat did not stop on cancel")
	}
}

func TestHandleChatPropagatesAgentError(t *testing.T) {
	o := New(memory.NewStore(), WithAgent(&failingAgent{}))

	err := o.HandleChat(context.Background(),
		&protocol.ChatRequest{SessionID: "sess", Query: "anything"},
		func(protocol.ChatChunk) error { return nil })
	assert.ErrorContains(t, err, "boom")
}

type failingAgent struct{}

func (a *failingAgent) Kind() agents.Kind { return agents.KindGeneral }

func (a *failingAgent) Respond(ctx context.Context, req agents.Request) (<-chan *types.StreamEvent, error) {
	return nil, errors.New("boom")
}
