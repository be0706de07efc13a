// Package tui is a terminal chat over the retrieval QA chain.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docqa/internal/domain"
)

// Answerer is the TUI-facing subset of the QA use case.
type Answerer interface {
	Answer(ctx context.Context, question string) (*domain.QAResult, error)
}

type answerMsg struct {
	result  *domain.QAResult
	err     error
	elapsed time.Duration
}

// exchange is one question with its outcome.
type exchange struct {
	question string
	result   *domain.QAResult
	err      error
	elapsed  time.Duration
}

// Model is the Bubble Tea model for the chat UI.
type Model struct {
	ctx      context.Context
	qa       Answerer
	input    textinput.Model
	viewport viewport.Model
	history  []exchange
	summary  string
	status   string
	timing   bool
	busy     bool
	ready    bool
}

// New creates a chat model. summary is shown under the header.
func New(ctx context.Context, qa Answerer, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = `Ask a question (\q to quit, \timing to toggle timings)`
	ti.Focus()
	ti.CharLimit = 0
	return Model{
		ctx:      ctx,
		qa:       qa,
		input:    ti,
		viewport: viewport.New(0, 0),
		summary:  summary,
		status:   "Ready.",
		timing:   true,
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := historyBoxStyle.GetFrameSize()
		_, qh := inputBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header, summary, status, input
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.refresh()
		return m, nil

	case answerMsg:
		m.busy = false
		last := &m.history[len(m.history)-1]
		last.result, last.err, last.elapsed = msg.result, msg.err, msg.elapsed
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.status = "Ready."
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			return m.submit()
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if _, ok := msg.(tea.KeyMsg); !ok {
		var vcmd tea.Cmd
		m.viewport, vcmd = m.viewport.Update(msg)
		cmd = tea.Batch(cmd, vcmd)
	}
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	q := strings.TrimSpace(m.input.Value())
	switch {
	case q == "":
		return m, nil
	case q == `\q`:
		return m, tea.Quit
	case q == `\timing`:
		m.timing = !m.timing
		m.input.Reset()
		if m.timing {
			m.status = "Timing is on."
		} else {
			m.status = "Timing is off."
		}
		m.refresh()
		return m, nil
	case m.busy:
		m.status = "Still answering the previous question..."
		return m, nil
	}

	m.input.Reset()
	m.busy = true
	m.status = "Thinking..."
	m.history = append(m.history, exchange{question: q})
	m.refresh()
	return m, m.ask(q)
}

func (m Model) ask(q string) tea.Cmd {
	ctx, qa := m.ctx, m.qa
	return func() tea.Msg {
		start := time.Now()
		res, err := qa.Answer(ctx, q)
		return answerMsg{result: res, err: err, elapsed: time.Since(start)}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("docqa")
	summary := summaryStyle.Render(m.summary)
	history := historyBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + summary + "\n" + history + "\n" + input + "\n" + status
}

func (m Model) renderHistory() string {
	if len(m.history) == 0 {
		return "No questions yet."
	}

	var b strings.Builder
	for i, ex := range m.history {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(questionStyle.Render("Q: " + ex.question))
		b.WriteString("\n")

		switch {
		case ex.err != nil:
			b.WriteString(errorStyle.Render("Error: " + ex.err.Error()))
			b.WriteString("\n")
		case ex.result == nil:
			b.WriteString("...\n")
		default:
			b.WriteString("Answer: " + ex.result.Answer + "\n")
			for j, doc := range ex.result.Sources {
				b.WriteString(sourceStyle.Render(fmt.Sprintf("  [%d] %s p.%s", j+1, doc.Source(), doc.Page())))
				b.WriteString("\n")
			}
			if m.timing {
				b.WriteString(summaryStyle.Render(fmt.Sprintf("Time to retrieve response: %s", ex.elapsed)))
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

// Run starts the chat UI and blocks until the user quits.
func Run(ctx context.Context, qa Answerer, summary string) error {
	_, err := tea.NewProgram(New(ctx, qa, summary), tea.WithAltScreen()).Run()
	return err
}

var (
	headerStyle     = lipgloss.NewStyle().Bold(true)
	summaryStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	questionStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	sourceStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	historyBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
