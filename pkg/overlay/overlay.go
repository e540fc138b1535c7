// Package overlay renders streamed answers in a full-screen view layered
// over the wrapped shell. The shell's own output is paused while the
// overlay owns the terminal and resumes untouched when it closes.
//
// Follow-up queries are typed into the overlay itself; submitting one
// supersedes the in-flight stream. Stream messages carry the generation
// they belong to, and the model ignores anything from an older generation.
package overlay

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aegish/aegish/pkg/protocol"
)

// Query is one generation-tagged submission handed to the stream pump.
type Query struct {
	Gen   int
	Query string
}

// Messages delivered into the overlay as an answer streams in.
type (
	// TokenMsg appends answer text.
	TokenMsg struct {
		Gen   int
		Agent string
		Token string
	}
	// DoneMsg ends a stream, carrying any citations.
	DoneMsg struct {
		Gen       int
		Agent     string
		Citations []protocol.Citation
	}
	// ErrMsg ends a stream with a failure.
	ErrMsg struct {
		Gen int
		Err error
	}
)

var (
	queryStyle  = lipgloss.NewStyle().Bold(true)
	helpStyle   = lipgloss.NewStyle().Faint(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	citeStyle   = lipgloss.NewStyle().Faint(true)
	copiedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))

	badgeStyles = map[string]lipgloss.Style{
		"syntax":     badge("4"),
		"researcher": badge("5"),
		"scribe":     badge("6"),
		"general":    badge("8"),
	}
)

func badge(color string) lipgloss.Style {
	return lipgloss.NewStyle().
		Background(lipgloss.Color(color)).
		Foreground(lipgloss.Color("15")).
		Padding(0, 1)
}

// exchange is one completed or in-flight question and answer.
type exchange struct {
	query     string
	agent     string
	answer    string
	citations []protocol.Citation
	err       error
	done      bool
}

// Model is the bubbletea model for the answer overlay.
type Model struct {
	viewport viewport.Model
	spinner  spinner.Model
	input    textarea.Model

	// submissions receives follow-up queries for the stream pump.
	submissions chan<- Query

	gen     int
	history []exchange
	current exchange
	copied  bool
	ready   bool
}

// New creates an overlay with the first query already in flight as
// generation 1. Follow-ups are delivered on submissions.
func New(query string, submissions chan<- Query) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	ta := textarea.New()
	ta.Placeholder = "follow-up question"
	ta.SetHeight(1)
	ta.ShowLineNumbers = false
	ta.Focus()

	return Model{
		spinner:     sp,
		input:       ta,
		submissions: submissions,
		gen:         1,
		current:     exchange{query: query},
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, textarea.Blink)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "ctrl+c":
			return m, tea.Quit
		case "ctrl+y":
			if err := clipboard.WriteAll(m.current.answer); err == nil {
				m.copied = true
			}
			return m, nil
		case "enter":
			return m.submit()
		case "pgup", "pgdown", "up", "down":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		bodyHeight := msg.Height - 4
		if bodyHeight < 1 {
			bodyHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, bodyHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = bodyHeight
		}
		m.input.SetWidth(msg.Width - 2)
		m.refreshContent()
		return m, nil

	case TokenMsg:
		if msg.Gen != m.gen {
			return m, nil
		}
		m.current.agent = msg.Agent
		m.current.answer += msg.Token
		m.copied = false
		m.refreshContent()
		m.viewport.GotoBottom()
		return m, nil

	case DoneMsg:
		if msg.Gen != m.gen {
			return m, nil
		}
		if msg.Agent != "" {
			m.current.agent = msg.Agent
		}
		m.current.citations = msg.Citations
		m.current.done = true
		m.refreshContent()
		return m, nil

	case ErrMsg:
		if msg.Gen != m.gen {
			return m, nil
		}
		m.current.err = msg.Err
		m.current.done = true
		m.refreshContent()
		return m, nil

	case spinner.TickMsg:
		if m.current.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// submit starts a new generation for the typed follow-up, superseding any
// stream still in flight.
func (m Model) submit() (Model, tea.Cmd) {
	query := strings.TrimSpace(m.input.Value())
	if query == "" {
		return m, nil
	}

	m.history = append(m.history, m.current)
	m.gen++
	m.current = exchange{query: query}
	m.input.Reset()
	m.copied = false

	select {
	case m.submissions <- Query{Gen: m.gen, Query: query}:
	default:
		// Pump gone; the overlay keeps rendering what it has.
	}

	m.refreshContent()
	m.viewport.GotoBottom()
	return m, m.spinner.Tick
}

func (m *Model) refreshContent() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.transcriptView())
}

func (m Model) transcriptView() string {
	var sb strings.Builder
	for _, ex := range m.history {
		sb.WriteString(renderExchange(ex))
		sb.WriteString("\n\n")
	}
	sb.WriteString(renderExchange(m.current))
	return sb.String()
}

func renderExchange(ex exchange) string {
	var sb strings.Builder

	badgeStyle, ok := badgeStyles[ex.agent]
	if !ok {
		badgeStyle = badgeStyles["general"]
	}
	label := ex.agent
	if label == "" {
		label = "..."
	}
	sb.WriteString(badgeStyle.Render(label))
	sb.WriteString(" ")
	sb.WriteString(queryStyle.Render(ex.query))
	sb.WriteString("\n")
	sb.WriteString(ex.answer)

	if ex.err != nil {
		if ex.answer != "" {
			sb.WriteString("\n")
		}
		sb.WriteString(errorStyle.Render(fmt.Sprintf("error: %v", ex.err)))
	}

	if len(ex.citations) > 0 {
		sb.WriteString("\n")
		sb.WriteString(citeStyle.Render("Sources:"))
		for i, c := range ex.citations {
			sb.WriteString("\n")
			sb.WriteString(citeStyle.Render(fmt.Sprintf("  [%d] command #%d: %s", i+1, c.EventSeq, c.Snippet)))
		}
	}
	return sb.String()
}

func (m Model) View() string {
	if !m.ready {
		return m.statusView()
	}
	return m.viewport.View() + "\n" + m.statusView() + "\n" + m.input.View()
}

func (m Model) statusView() string {
	var status string
	if !m.current.done {
		status = m.spinner.View() + " "
	}
	help := "esc close  ctrl+y copy  enter ask again"
	if m.copied {
		return status + copiedStyle.Render("copied to clipboard") + "  " + helpStyle.Render(help)
	}
	return status + helpStyle.Render(help)
}

// Answer returns the current exchange's accumulated answer text.
func (m Model) Answer() string {
	return m.current.answer
}

// Done reports whether the current stream reached a terminal state.
func (m Model) Done() bool {
	return m.current.done
}

// Generation returns the active stream generation.
func (m Model) Generation() int {
	return m.gen
}
