package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// promptField is one variable the user is asked to fill in.
type promptField struct {
	envVar      string
	description string
	sensitive   bool
	input       textinput.Model
}

func newPromptField(envVar, description string, sensitive bool) promptField {
	in := textinput.New()
	in.Prompt = "> "
	if sensitive {
		in.EchoMode = textinput.EchoPassword
	}
	return promptField{envVar: envVar, description: description, sensitive: sensitive, input: in}
}

// promptModel walks the user through the fields one at a time. Enter
// accepts the current value, an empty value skips the variable, and
// ctrl+c abandons the whole prompt.
type promptModel struct {
	fields    []promptField
	index     int
	cancelled bool
}

func newPromptModel(fields []promptField) promptModel {
	m := promptModel{fields: fields}
	if len(m.fields) > 0 {
		m.fields[0].input.Focus()
	}
	return m
}

func (m promptModel) Init() tea.Cmd { return textinput.Blink }

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.done() {
		return m, tea.Quit
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelled = true
			return m, tea.Quit
		case tea.KeyEnter:
			m.fields[m.index].input.Blur()
			m.index++
			if m.done() {
				return m, tea.Quit
			}
			m.fields[m.index].input.Focus()
			return m, textinput.Blink
		}
	}

	var cmd tea.Cmd
	m.fields[m.index].input, cmd = m.fields[m.index].input.Update(msg)
	return m, cmd
}

func (m promptModel) View() string {
	if m.cancelled || m.done() {
		return ""
	}

	f := m.fields[m.index]

	header := promptVarStyle.Render(f.envVar)
	if f.description != "" {
		header = fmt.Sprintf("%s  %s", header, promptDescStyle.Render(f.description))
	}

	sections := []string{
		promptTitleStyle.Render(fmt.Sprintf("Project variables · %d of %d", m.index+1, len(m.fields))),
		header,
		f.input.View(),
		promptHelpStyle.Render("enter accepts · empty skips · ctrl+c stops asking"),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m promptModel) done() bool { return m.index >= len(m.fields) }

// values returns what the user typed, skipping fields left empty.
func (m promptModel) values() map[string]string {
	out := make(map[string]string)
	for _, f := range m.fields {
		if v := f.input.Value(); v != "" {
			out[f.envVar] = v
		}
	}
	return out
}
