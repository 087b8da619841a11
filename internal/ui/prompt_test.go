package ui

import (
	"testing"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func update(t *testing.T, m promptModel, msg tea.Msg) promptModel {
	t.Helper()
	updated, _ := m.Update(msg)
	next, ok := updated.(promptModel)
	require.True(t, ok)
	return next
}

func typeRunes(t *testing.T, m promptModel, s string) promptModel {
	t.Helper()
	for _, r := range s {
		m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func pressEnter(t *testing.T, m promptModel) promptModel {
	t.Helper()
	return update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
}

func TestPromptWalksThroughFields(t *testing.T) {
	t.Parallel()

	m := newPromptModel([]promptField{
		newPromptField("FIRST", "", false),
		newPromptField("SECOND", "", false),
	})

	m = typeRunes(t, m, "alpha")
	m = pressEnter(t, m)
	m = typeRunes(t, m, "beta")
	m = pressEnter(t, m)

	require.True(t, m.done())
	assert.False(t, m.cancelled)
	assert.Equal(t, map[string]string{"FIRST": "alpha", "SECOND": "beta"}, m.values())
}

func TestPromptSkipsFieldsLeftEmpty(t *testing.T) {
	t.Parallel()

	m := newPromptModel([]promptField{
		newPromptField("SKIPPED", "", false),
		newPromptField("FILLED", "", false),
	})

	m = pressEnter(t, m)
	m = typeRunes(t, m, "kept")
	m = pressEnter(t, m)

	require.True(t, m.done())
	assert.Equal(t, map[string]string{"FILLED": "kept"}, m.values())
}

func TestPromptCancelAbandonsTheRun(t *testing.T) {
	t.Parallel()

	m := newPromptModel([]promptField{newPromptField("ONLY", "", false)})
	m = typeRunes(t, m, "half typed")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})

	assert.True(t, m.cancelled)
	assert.Empty(t, m.View())
}

func TestPromptMasksSensitiveInput(t *testing.T) {
	t.Parallel()

	f := newPromptField("PREFLIGHT_MASTER_PASSWORD", "", true)
	require.Equal(t, textinput.EchoPassword, f.input.EchoMode)

	m := newPromptModel([]promptField{f})
	m = typeRunes(t, m, "hunter2")

	assert.NotContains(t, m.View(), "hunter2")
	assert.Equal(t, map[string]string{"PREFLIGHT_MASTER_PASSWORD": "hunter2"}, m.values())
}

func TestPromptViewShowsTheCurrentField(t *testing.T) {
	t.Parallel()

	m := newPromptModel([]promptField{
		newPromptField("DB_HOST", "where the database lives", false),
		newPromptField("DB_NAME", "", false),
	})

	view := m.View()
	assert.Contains(t, view, "1 of 2")
	assert.Contains(t, view, "DB_HOST")
	assert.Contains(t, view, "where the database lives")
	assert.NotContains(t, view, "DB_NAME")

	m = pressEnter(t, m)
	assert.Contains(t, m.View(), "2 of 2")
	assert.Contains(t, m.View(), "DB_NAME")
}
