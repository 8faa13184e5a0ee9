package tui

import (
	"bytes"
	"errors"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderMatchStatusKeepsLabel(t *testing.T) {
	s := NewStyles()
	for _, status := range []string{"Good", "Medium", "Weak", "None"} {
		assert.Contains(t, s.RenderMatchStatus(status), status)
	}
}

func TestRenderStatus(t *testing.T) {
	s := NewStyles()
	assert.Contains(t, s.RenderStatus(true, "Signed in"), "✓ Signed in")
	assert.Contains(t, s.RenderStatus(false, "Failed"), "✗ Failed")
}

func TestSpinnerRunsInlineWithoutTerminal(t *testing.T) {
	var buf bytes.Buffer
	sp := NewSpinner("Analyzing", &buf)
	assert.False(t, sp.Enabled())

	got, err := sp.Run(func() (string, error) { return "done", nil })
	require.NoError(t, err)
	assert.Equal(t, "done", got)
	assert.Empty(t, buf.String())

	boom := errors.New("boom")
	_, err = sp.Run(func() (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)
}

func TestSpinnerModel(t *testing.T) {
	m := newSpinnerModel("Analyzing", NewStyles())
	assert.Contains(t, m.View(), "Analyzing")

	next, cmd := m.Update(spinnerDoneMsg{result: "Analysis complete"})
	require.NotNil(t, cmd)
	assert.Contains(t, next.View(), "Analysis complete")

	next, _ = m.Update(spinnerDoneMsg{err: errors.New("boom")})
	assert.Contains(t, next.View(), "✗ Analyzing")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.Empty(t, next.View())

	_, cmd = m.Update(spinner.TickMsg{})
	_ = cmd
}
