package shell

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/pickle-host/interp"
)

var (
	okStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// scrollback is the number of transcript lines kept on screen.
const scrollback = 200

type evalMsg struct {
	exit   *interp.ExitError
	text   string
	status int
}

// Model is the bubbletea model of an interactive session.
type Model struct {
	ctx     context.Context
	in      *interp.Interp
	exit    *interp.ExitError
	prompt  string
	lines   []string
	history []string
	input   textinput.Model
	status  int
	histIdx int
	busy    bool
}

// NewModel returns a session model evaluating into in.
func NewModel(ctx context.Context, in *interp.Interp, prompt string) *Model {
	if prompt == "" {
		prompt = DefaultPrompt
	}
	ti := textinput.New()
	ti.Focus()
	m := &Model{ctx: ctx, in: in, prompt: prompt, input: ti}
	m.input.Prompt = m.promptText()
	return m
}

// Exit returns the exit request that ended the session, if any.
func (m *Model) Exit() *interp.ExitError { return m.exit }

// Status returns the status of the last evaluated line.
func (m *Model) Status() int { return m.status }

// Transcript returns the lines echoed so far.
func (m *Model) Transcript() []string { return append([]string(nil), m.lines...) }

func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.busy {
			return m, nil
		}
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			return m, tea.Quit

		case tea.KeyEnter:
			line := m.input.Value()
			if line == "" {
				return m, tea.Quit
			}
			m.append(m.promptText() + line)
			m.history = append(m.history, line)
			m.histIdx = len(m.history)
			m.input.Reset()
			m.busy = true
			return m, m.eval(line)

		case tea.KeyUp:
			if m.histIdx > 0 {
				m.histIdx--
				m.input.SetValue(m.history[m.histIdx])
				m.input.CursorEnd()
			}
			return m, nil

		case tea.KeyDown:
			if m.histIdx < len(m.history)-1 {
				m.histIdx++
				m.input.SetValue(m.history[m.histIdx])
				m.input.CursorEnd()
			} else {
				m.histIdx = len(m.history)
				m.input.Reset()
			}
			return m, nil
		}

	case evalMsg:
		m.busy = false
		if msg.exit != nil {
			m.exit = msg.exit
			return m, tea.Quit
		}
		m.status = msg.status
		if msg.text != "" {
			style := resultStyle
			if msg.status == 1 {
				style = errorStyle
			}
			for _, l := range strings.Split(msg.text, "\n") {
				m.append(style.Render(l))
			}
		}
		m.input.Prompt = m.promptText()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) eval(line string) tea.Cmd {
	return func() tea.Msg {
		text, status, err := evalLine(m.ctx, m.in, line)
		var exit *interp.ExitError
		if stderrors.As(err, &exit) {
			return evalMsg{exit: exit}
		}
		return evalMsg{text: text, status: status}
	}
}

func (m *Model) append(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > scrollback {
		m.lines = m.lines[len(m.lines)-scrollback:]
	}
}

func (m *Model) promptText() string {
	style := okStyle
	if m.status == 1 {
		style = errorStyle
	}
	return style.Render(Prompt(m.status, m.prompt))
}

func (m *Model) View() string {
	var b strings.Builder
	for _, l := range m.lines {
		b.WriteString(l)
		b.WriteString("\n")
	}
	if m.busy {
		b.WriteString(helpStyle.Render("evaluating..."))
		return b.String()
	}
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓ history • enter eval • empty line or ctrl+d quit"))
	return b.String()
}

// RunTUI runs an interactive session on a terminal.
func RunTUI(ctx context.Context, in *interp.Interp, opts Options) error {
	opts.defaults()
	m := NewModel(ctx, in, opts.Prompt)
	p := tea.NewProgram(m, tea.WithInput(opts.Input), tea.WithOutput(opts.Output), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return err
	}
	if m.exit != nil {
		return m.exit
	}
	return nil
}
