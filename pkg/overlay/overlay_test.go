package overlay

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegish/aegish/pkg/protocol"
)

func newModel(query string) (Model, chan Query) {
	submissions := make(chan Query, 4)
	m := New(query, submissions)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return updated.(Model), submissions
}

func apply(m Model, msgs ...tea.Msg) Model {
	for _, msg := range msgs {
		updated, _ := m.Update(msg)
		m = updated.(Model)
	}
	return m
}

func typeText(m Model, text string) Model {
	for _, r := range text {
		m = apply(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func TestTokensAccumulateInOrder(t *testing.T) {
	m, _ := newModel("how do I tar")
	m = apply(m,
		TokenMsg{Gen: 1, Agent: "syntax", Token: "tar "},
		TokenMsg{Gen: 1, Agent: "syntax", Token: "-xzf"},
	)

	assert.Equal(t, "tar -xzf", m.Answer())
	assert.False(t, m.Done())
	assert.Contains(t, m.View(), "tar -xzf")
}

func TestDoneRendersCitations(t *testing.T) {
	m, _ := newModel("report")
	m = apply(m,
		TokenMsg{Gen: 1, Agent: "scribe", Token: "Session went fine."},
		DoneMsg{Gen: 1, Agent: "scribe", Citations: []protocol.Citation{
			{EventSeq: 3, ChunkID: "c1", Snippet: "make test passed"},
		}},
	)

	require.True(t, m.Done())
	view := m.View()
	assert.Contains(t, view, "Sources:")
	assert.Contains(t, view, "command #3")
	assert.Contains(t, view, "make test passed")
}

func TestErrorShownInBody(t *testing.T) {
	m, _ := newModel("query")
	m = apply(m, ErrMsg{Gen: 1, Err: errors.New("daemon unreachable")})

	assert.True(t, m.Done())
	assert.Contains(t, m.View(), "daemon unreachable")
}

func TestEscQuits(t *testing.T) {
	m, _ := newModel("q")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestAgentBadgeShown(t *testing.T) {
	m, _ := newModel("q")
	m = apply(m, TokenMsg{Gen: 1, Agent: "researcher", Token: "x"})
	assert.Contains(t, m.View(), "researcher")
}

func TestFollowUpSupersedesStream(t *testing.T) {
	m, submissions := newModel("first question")
	m = apply(m, TokenMsg{Gen: 1, Agent: "general", Token: "partial"})

	m = typeText(m, "second question")
	m = apply(m, tea.KeyMsg{Type: tea.KeyEnter})

	require.Equal(t, 2, m.Generation())
	select {
	case q := <-submissions:
		assert.Equal(t, Query{Gen: 2, Query: "second question"}, q)
	default:
		t.Fatal("follow-up was not submitted")
	}

	// Late chunks from the superseded stream must not leak into the new
	// answer.
	m = apply(m, TokenMsg{Gen: 1, Agent: "general", Token: " stale"})
	assert.Empty(t, m.Answer())

	m = apply(m, TokenMsg{Gen: 2, Agent: "general", Token: "fresh"})
	assert.Equal(t, "fresh", m.Answer())

	// The first exchange stays visible in the transcript.
	assert.Contains(t, m.View(), "first question")
	assert.Contains(t, m.View(), "partial")
}

func TestEmptyFollowUpIgnored(t *testing.T) {
	m, submissions := newModel("q")
	m = apply(m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, 1, m.Generation())
	select {
	case <-submissions:
		t.Fatal("empty follow-up submitted")
	default:
	}
}

func TestStaleDoneIgnored(t *testing.T) {
	m, _ := newModel("q")
	m = typeText(m, "next")
	m = apply(m, tea.KeyMsg{Type: tea.KeyEnter})

	m = apply(m, DoneMsg{Gen: 1, Agent: "general"})
	assert.False(t, m.Done())
}

func TestViewBeforeSizeDoesNotPanic(t *testing.T) {
	submissions := make(chan Query, 1)
	m := New("q", submissions)
	updated, _ := m.Update(TokenMsg{Gen: 1, Agent: "general", Token: "early"})
	assert.NotEmpty(t, updated.(Model).View())
}
