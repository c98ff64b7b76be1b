package shell

import (
	"bytes"
	"context"
	stderrors "errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/wippyai/pickle-host/interp"
)

func exitCmd(_ context.Context, _ *interp.Interp, argv []string, _ any) (string, error) {
	return "", &interp.ExitError{Code: len(argv) - 1}
}

func newInterp(t *testing.T) *interp.Interp {
	t.Helper()
	in := interp.New()
	if err := in.RegisterCommand("exit", exitCmd, nil); err != nil {
		t.Fatal(err)
	}
	return in
}

func TestPrompt(t *testing.T) {
	if got := Prompt(0, "psh>"); got != "[0] psh> " {
		t.Errorf("Prompt = %q", got)
	}
	if got := Prompt(1, "%"); got != "[1] % " {
		t.Errorf("Prompt = %q", got)
	}
}

func TestRunLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", "[0] psh> "},
		{"value", "set x 1\n", "[0] psh> 1\n[0] psh> "},
		{"no trailing newline", "set x 2", "[0] psh> 2\n[0] psh> "},
		{
			"error status",
			"set y\nset x 3\n",
			"[0] psh> [eval] not found \"y\": no such variable\n[1] psh> 3\n[0] psh> ",
		},
		{"empty line stops", "set x 1\n\nset x 2\n", "[0] psh> 1\n[0] psh> "},
		{"break status", "break\n", "[0] psh> " + interp.ErrBreak.Error() + "\n[3] psh> "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := RunLines(context.Background(), newInterp(t), Options{Input: strings.NewReader(tt.input), Output: &out})
			if err != nil {
				t.Fatalf("RunLines failed: %v", err)
			}
			if out.String() != tt.want {
				t.Errorf("output = %q, want %q", out.String(), tt.want)
			}
		})
	}
}

func TestRunLines_Exit(t *testing.T) {
	var out bytes.Buffer
	in := newInterp(t)
	err := RunLines(context.Background(), in, Options{Input: strings.NewReader("exit a b\nset x 1\n"), Output: &out})
	var exit *interp.ExitError
	if !stderrors.As(err, &exit) || exit.Code != 2 {
		t.Fatalf("expected exit 2, got %v", err)
	}
	if _, ok := in.Var("x"); ok {
		t.Error("lines after exit should not run")
	}
}

func TestRun_NotTerminal(t *testing.T) {
	var out bytes.Buffer
	if IsTerminal(strings.NewReader(""), &out) {
		t.Fatal("buffers are not terminals")
	}
	if err := Run(context.Background(), newInterp(t), Options{Input: strings.NewReader("set x 1\n"), Output: &out, Prompt: "%"}); err != nil {
		t.Fatal(err)
	}
	if out.String() != "[0] % 1\n[0] % " {
		t.Errorf("output = %q", out.String())
	}
}

// press drives m through one key press, executing the returned command the
// way the program loop would.
func press(m *Model, msg tea.KeyMsg) tea.Cmd {
	_, cmd := m.Update(msg)
	if cmd == nil {
		return nil
	}
	if ev, ok := cmd().(evalMsg); ok {
		_, cmd = m.Update(ev)
	}
	return cmd
}

func typeLine(m *Model, line string) tea.Cmd {
	m.input.SetValue(line)
	return press(m, tea.KeyMsg{Type: tea.KeyEnter})
}

func TestModel(t *testing.T) {
	in := newInterp(t)
	m := NewModel(context.Background(), in, "")

	typeLine(m, "set x 42")
	if m.Status() != 0 {
		t.Errorf("status = %d", m.Status())
	}
	typeLine(m, "set nope")
	if m.Status() != 1 {
		t.Errorf("status after error = %d", m.Status())
	}

	lines := m.Transcript()
	if len(lines) != 4 {
		t.Fatalf("transcript = %q", lines)
	}
	if !strings.Contains(lines[0], "[0] psh>") || !strings.Contains(lines[0], "set x 42") {
		t.Errorf("echo = %q", lines[0])
	}
	if !strings.Contains(lines[1], "42") {
		t.Errorf("result = %q", lines[1])
	}
	if !strings.Contains(lines[3], "no such variable") {
		t.Errorf("error = %q", lines[3])
	}
	if !strings.Contains(m.View(), "[1] psh>") {
		t.Errorf("view should show the error status:\n%s", m.View())
	}

	press(m, tea.KeyMsg{Type: tea.KeyUp})
	if m.input.Value() != "set nope" {
		t.Errorf("history up = %q", m.input.Value())
	}
	press(m, tea.KeyMsg{Type: tea.KeyUp})
	if m.input.Value() != "set x 42" {
		t.Errorf("history up twice = %q", m.input.Value())
	}
	press(m, tea.KeyMsg{Type: tea.KeyDown})
	press(m, tea.KeyMsg{Type: tea.KeyDown})
	if m.input.Value() != "" {
		t.Errorf("history past end = %q", m.input.Value())
	}
}

func TestModel_Quit(t *testing.T) {
	m := NewModel(context.Background(), newInterp(t), "")
	cmd := typeLine(m, "")
	if cmd == nil {
		t.Fatal("empty line should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}

	m = NewModel(context.Background(), newInterp(t), "")
	cmd = typeLine(m, "exit 1")
	if m.Exit() == nil || m.Exit().Code != 1 {
		t.Fatalf("exit = %v", m.Exit())
	}
	if cmd == nil {
		t.Fatal("exit should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg after exit")
	}
}
