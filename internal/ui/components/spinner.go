package components

import (
	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/coursetape/internal/ui/theme"
)

// Spinner wraps bubbles/spinner with Coursetape styling, shown while a
// lesson's media is loading.
type Spinner struct {
	Model spinner.Model
	Label string
}

// NewSpinner creates a new styled spinner.
func NewSpinner(label string) Spinner {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Primary)
	return Spinner{Model: sp, Label: label}
}

// Init returns the spinner's tick command.
func (s Spinner) Init() tea.Cmd {
	return s.Model.Tick
}

// Update handles spinner tick messages.
func (s Spinner) Update(msg tea.Msg) (Spinner, tea.Cmd) {
	var cmd tea.Cmd
	s.Model, cmd = s.Model.Update(msg)
	return s, cmd
}

// View renders the spinner with its label.
func (s Spinner) View() string {
	return s.Model.View() + " " + theme.Hint.Render(s.Label)
}
