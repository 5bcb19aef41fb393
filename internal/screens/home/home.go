package home

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/coursetape/internal/engine"
	"github.com/abhisek/coursetape/internal/router"
	"github.com/abhisek/coursetape/internal/screen"
	"github.com/abhisek/coursetape/internal/screens/player"
	"github.com/abhisek/coursetape/internal/ui/components"
	"github.com/abhisek/coursetape/internal/ui/theme"
)

// HomeScreen lists the library's courses with their listening progress.
type HomeScreen struct {
	session *engine.Session
	menu    components.Menu
}

var _ screen.Screen = (*HomeScreen)(nil)

// New creates a new HomeScreen.
func New(session *engine.Session) *HomeScreen {
	h := &HomeScreen{session: session}
	h.menu = components.NewMenu(h.buildItems())
	return h
}

// buildItems derives the menu from the catalog and current progress.
// Rebuilt on every update so details stay fresh after a listening
// session pops back to this screen.
func (h *HomeScreen) buildItems() []components.MenuItem {
	courses := h.session.Catalog.Courses()
	items := make([]components.MenuItem, 0, len(courses)+1)

	for _, c := range courses {
		c := c
		detail := "not started"
		if rec, ok := h.session.Progress.CourseProgressFor(c.ID); ok {
			switch {
			case h.session.Progress.IsInReviewMode(c.ID):
				detail = "100% · review mode"
			case rec.ProgressPercentage > 0:
				detail = fmt.Sprintf("%d%% listened", int(rec.ProgressPercentage))
			}
		}
		if !c.AccessGranted {
			items = append(items, components.MenuItem{
				Label:    c.Title,
				Detail:   "no access",
				Disabled: true,
			})
			continue
		}
		items = append(items, components.MenuItem{
			Label:  c.Title,
			Detail: detail,
			Action: func() tea.Cmd {
				return func() tea.Msg {
					return router.PushScreenMsg{Screen: player.New(h.session, c.ID)}
				}
			},
		})
	}

	items = append(items, components.MenuItem{
		Label: "Quit",
		Action: func() tea.Cmd {
			return tea.Quit
		},
	})
	return items
}

func (h *HomeScreen) Init() tea.Cmd {
	return nil
}

func (h *HomeScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	selected := h.menu.Selected
	h.menu = components.NewMenu(h.buildItems())
	if selected < len(h.menu.Items) {
		h.menu.Selected = selected
	}

	var cmd tea.Cmd
	h.menu, cmd = h.menu.Update(msg)
	return h, cmd
}

func (h *HomeScreen) View(width, height int) string {
	title := theme.Title.Width(width).Render("COURSETAPE")
	subtitle := theme.Subtitle.Width(width).Render("sequential audio courses, one lesson at a time")

	menu := lipgloss.NewStyle().
		Width(width).
		Align(lipgloss.Center).
		Render(theme.Card.Render(h.menu.View()))

	sections := []string{title, subtitle, "", menu}
	content := strings.Join(sections, "\n")

	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		AlignVertical(lipgloss.Center).
		Render(content)
}

func (h *HomeScreen) Title() string {
	return "Library"
}
