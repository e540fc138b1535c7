package complete

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegish/aegish/pkg/editor"
	"github.com/aegish/aegish/pkg/llm"
	"github.com/aegish/aegish/pkg/types"
)

// slowProvider answers after a fixed delay, to exercise the budget.
type slowProvider struct {
	delay  time.Duration
	answer string
}

func (p *slowProvider) StreamCompletion(ctx context.Context, messages []*types.Message) (<-chan *llm.StreamChunk, error) {
	ch := make(chan *llm.StreamChunk, 2)
	go func() {
		defer close(ch)
		select {
		case <-ctx.Done():
			ch <- &llm.StreamChunk{Error: ctx.Err()}
		case <-time.After(p.delay):
			ch <- &llm.StreamChunk{Role: "assistant", Content: p.answer}
			ch <- &llm.StreamChunk{Finished: true}
		}
	}()
	return ch, nil
}

func (p *slowProvider) Complete(ctx context.Context, messages []*types.Message) (*types.Message, error) {
	stream, err := p.StreamCompletion(ctx, messages)
	if err != nil {
		return nil, err
	}
	var content string
	for chunk := range stream {
		if chunk.IsError() {
			return nil, chunk.Error
		}
		content += chunk.Content
	}
	return types.NewAssistantMessage(content), nil
}

func (p *slowProvider) GetModelInfo() *types.ModelInfo { return &types.ModelInfo{Name: "slow"} }
func (p *slowProvider) GetModel() string               { return "slow" }
func (p *slowProvider) GetBaseURL() string             { return "" }
func (p *slowProvider) GetAPIKey() string              { return "" }

func historyWith(lines ...string) *editor.History {
	h := editor.NewHistory(100)
	for _, line := range lines {
		h.Append(line)
	}
	return h
}

func awaitSuggestion(t *testing.T, e *Engine) editor.Suggestion {
	t.Helper()
	select {
	case s := <-e.Results():
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no suggestion arrived")
		return editor.Suggestion{}
	}
}

func TestHistoryMatchRankedByRecency(t *testing.T) {
	h := historyWith("git status", "git stash", "ls")
	e := NewEngine(h, WithBudget(500*time.Millisecond))
	defer e.Close()

	id := e.Request("git st")
	s := awaitSuggestion(t, e)
	assert.Equal(t, id, s.RequestID)
	// "git stash" is more recent than "git status".
	assert.Equal(t, "git stash", s.Text)
}

func TestFrequencyBreaksRecencyTieAcrossDistinctLines(t *testing.T) {
	// status appears twice, most recently before stash; stash is newer.
	h := historyWith("git status", "git stash", "git status")
	e := NewEngine(h, WithBudget(500*time.Millisecond))
	defer e.Close()

	e.Request("git st")
	s := awaitSuggestion(t, e)
	assert.Equal(t, "git status", s.Text)
}

func TestShortestWinsOnTies(t *testing.T) {
	candidates := []candidate{
		{text: "git checkout main", source: rankHistory, recency: 5, freq: 1},
		{text: "git checkout", source: rankHistory, recency: 5, freq: 1},
	}
	sortCandidates(candidates)
	assert.Equal(t, "git checkout", candidates[0].text)
}

func TestHistoryOutranksModel(t *testing.T) {
	h := historyWith("make test")
	e := NewEngine(h,
		WithBudget(500*time.Millisecond),
		WithProvider(&slowProvider{delay: 10 * time.Millisecond, answer: "make testify"}))
	defer e.Close()

	e.Request("make te")
	s := awaitSuggestion(t, e)
	assert.Equal(t, "make test", s.Text)
}

func TestModelSuggestionUsedWhenHistoryEmpty(t *testing.T) {
	e := NewEngine(historyWith(),
		WithBudget(500*time.Millisecond),
		WithWorkdirFunc(func() string { return t.TempDir() }),
		WithProvider(&slowProvider{delay: 10 * time.Millisecond, answer: "tar -xzf archive.tgz"}))
	defer e.Close()

	e.Request("tar -x")
	s := awaitSuggestion(t, e)
	assert.Equal(t, "tar -xzf archive.tgz", s.Text)
}

func TestBudgetOverrunDiscardsSilently(t *testing.T) {
	e := NewEngine(historyWith(),
		WithBudget(30*time.Millisecond),
		WithWorkdirFunc(func() string { return t.TempDir() }),
		WithProvider(&slowProvider{delay: time.Second, answer: "never arrives"}))
	defer e.Close()

	e.Request("some prefix")

	select {
	case s := <-e.Results():
		t.Fatalf("expected silence, got %q", s.Text)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestNewerRequestWins(t *testing.T) {
	h := historyWith("git status")
	e := NewEngine(h, WithBudget(500*time.Millisecond))
	defer e.Close()

	id1 := e.Request("gi")
	id2 := e.Request("git ")
	require.Greater(t, id2, id1)

	// Both may deliver in either order; the consumer filters by latest id.
	// At minimum the newest request's result must arrive, correctly tagged.
	var got []editor.Suggestion
	timeout := time.After(2 * time.Second)
collect:
	for len(got) < 2 {
		select {
		case s := <-e.Results():
			got = append(got, s)
		case <-timeout:
			break collect // the older request having been canceled is fine
		}
	}

	var sawLatest bool
	for _, s := range got {
		if s.RequestID == id2 {
			sawLatest = true
			assert.Equal(t, "git status", s.Text)
		}
	}
	assert.True(t, sawLatest, "newest request delivered no result")
}

// Run with -race: Tab issues a request while Enter appends within the same
// budget window; the engine's request goroutine must read a stable snapshot.
func TestRequestConcurrentWithHistoryAppend(t *testing.T) {
	h := historyWith("git status")
	e := NewEngine(h, WithBudget(5*time.Millisecond))
	defer e.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			h.Append("git stash pop")
		}
	}()
	for i := 0; i < 200; i++ {
		e.Request("git")
	}
	<-done
}
