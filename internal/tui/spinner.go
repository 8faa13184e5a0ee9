package tui

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/term"
)

// ErrInterrupted is returned when the user quits a running spinner.
var ErrInterrupted = errors.New("interrupted")

type spinnerModel struct {
	spinner  spinner.Model
	message  string
	done     bool
	result   string
	err      error
	styles   *Styles
	quitting bool
}

func newSpinnerModel(message string, styles *Styles) spinnerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Spinner
	return spinnerModel{spinner: s, message: message, styles: styles}
}

func (m spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

type spinnerDoneMsg struct {
	result string
	err    error
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
	case spinnerDoneMsg:
		m.done = true
		m.result = msg.result
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m spinnerModel) View() string {
	switch {
	case m.quitting:
		return ""
	case m.done && m.err != nil:
		return m.styles.RenderStatus(false, m.message) + "\n"
	case m.done:
		return m.styles.RenderStatus(true, m.result) + "\n"
	}
	return fmt.Sprintf("%s %s\n", m.spinner.View(), m.message)
}

// Spinner shows progress on a terminal while a function runs.
type Spinner struct {
	message string
	out     io.Writer
	styles  *Styles
}

// NewSpinner creates a spinner that draws on out.
func NewSpinner(message string, out io.Writer) *Spinner {
	return &Spinner{message: message, out: out, styles: NewStyles()}
}

// Enabled reports whether out is a terminal. Run draws nothing otherwise.
func (s *Spinner) Enabled() bool {
	f, ok := s.out.(*os.File)
	return ok && term.IsTerminal(f.Fd())
}

// Run executes fn while displaying the spinner and returns fn's result.
// The result string is shown as the completion line.
func (s *Spinner) Run(fn func() (string, error)) (string, error) {
	if !s.Enabled() {
		return fn()
	}

	p := tea.NewProgram(newSpinnerModel(s.message, s.styles),
		tea.WithOutput(s.out),
		tea.WithInput(nil),
	)

	go func() {
		result, err := fn()
		p.Send(spinnerDoneMsg{result: result, err: err})
	}()

	finalModel, err := p.Run()
	if err != nil {
		return "", err
	}

	final := finalModel.(spinnerModel) //nolint:errcheck // type assertion always succeeds here
	if final.quitting {
		return "", ErrInterrupted
	}
	return final.result, final.err
}
