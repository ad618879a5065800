package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tgienger/depplan/internal/ui/styles"
)

var errPromptCanceled = errors.New("canceled")

// promptModel asks for a single line, masked when secret
type promptModel struct {
	input    textinput.Model
	label    string
	done     bool
	canceled bool
}

func newPromptModel(label string, secret bool) promptModel {
	ti := textinput.New()
	ti.Prompt = ""
	ti.CharLimit = 256
	ti.Width = 40
	if secret {
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '•'
	}
	ti.Focus()
	return promptModel{input: ti, label: label}
}

func (m promptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.Type {
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		case tea.KeyCtrlC, tea.KeyEsc:
			m.canceled = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m promptModel) View() string {
	if m.done || m.canceled {
		return ""
	}
	s := styles.NewStyles()
	return s.HelpKey.Render(m.label+": ") + m.input.View() + "\n"
}

// prompt reads one line interactively
func prompt(label string, secret bool) (string, error) {
	final, err := tea.NewProgram(newPromptModel(label, secret)).Run()
	if err != nil {
		return "", fmt.Errorf("prompt: %w", err)
	}
	m := final.(promptModel)
	if m.canceled {
		return "", errPromptCanceled
	}
	return m.input.Value(), nil
}

// readSecret takes the first line of r, for piping a password in
func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
