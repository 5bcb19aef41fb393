package player

import (
	"fmt"
	"strings"
	"time"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/coursetape/internal/playback"
	"github.com/abhisek/coursetape/internal/ui/components"
	"github.com/abhisek/coursetape/internal/ui/theme"
)

func (p *PlayerScreen) View(width, height int) string {
	if p.showModal {
		return p.renderModal(width, height)
	}

	statuses := p.statuses()
	currentID := p.ctrl.CurrentLessonID()

	var rows []string
	for i, lessonID := range p.seq {
		lesson, ok := p.session.Catalog.Lesson(lessonID)
		if !ok {
			continue
		}
		st := statuses[lessonID]

		marker := "○"
		style := theme.Unselected
		switch {
		case st.IsCompleted:
			marker = "✓"
			style = theme.Done
		case st.IsLocked:
			marker = "·"
			style = theme.LockedItem
		}
		if lessonID == currentID {
			if p.ctrl.State() == playback.StatePlaying {
				marker = "▶"
			} else {
				marker = "‖"
			}
			style = theme.Playing
		}

		line := fmt.Sprintf("%s  %s", marker, lesson.Title)
		if st.IsLocked {
			line += "  " + theme.Hint.Render("locked")
		}

		prefix := "   "
		if i == p.cursor {
			prefix = " ▸ "
			if !st.IsLocked {
				style = theme.Selected
			}
		}
		rows = append(rows, style.Render(prefix+line))
	}
	list := strings.Join(rows, "\n")

	transport := p.renderTransport(width - 8)

	notice := ""
	if p.notice != "" {
		notice = lipgloss.NewStyle().Foreground(theme.Error).Render(p.notice)
	}

	inner := list + "\n\n" + transport
	if notice != "" {
		inner += "\n\n" + notice
	}

	card := theme.Card.Width(min(width-4, 76)).Render(inner)

	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		Align(lipgloss.Center).
		AlignVertical(lipgloss.Center).
		Render(card)
}

// renderTransport draws the now-playing block: title line, timeline,
// state line.
func (p *PlayerScreen) renderTransport(width int) string {
	currentID := p.ctrl.CurrentLessonID()
	if currentID == "" {
		return theme.Hint.Render("Select a lesson and press Enter to start listening.")
	}
	lesson, ok := p.session.Catalog.Lesson(currentID)
	if !ok {
		return ""
	}

	pos, dur := p.ctrl.DisplayPosition()
	pct := 0.0
	if dur > 0 {
		pct = float64(pos) / float64(dur)
	}
	timeline := components.Timeline(stamp(pos), stamp(dur), pct, width)

	var state string
	switch p.ctrl.State() {
	case playback.StateLoading:
		state = p.spin.View()
	case playback.StatePlaying:
		state = theme.Playing.Render("Playing")
	case playback.StateEnded:
		state = theme.Done.Render("Finishing…")
	default:
		if err := p.ctrl.Err(); err != nil {
			state = lipgloss.NewStyle().Foreground(theme.Error).Render("Playback error — press Enter to retry")
		} else {
			state = theme.Hint.Render("Paused")
		}
	}

	title := theme.Body.Bold(true).Render(lesson.Title)
	return title + "\n" + timeline + "\n" + state
}

func (p *PlayerScreen) renderModal(width, height int) string {
	course, _ := p.session.Catalog.Course(p.courseID)
	body := theme.Title.Render("COURSE COMPLETE!") + "\n\n" +
		theme.Body.Render("You finished every lesson of") + "\n" +
		theme.Playing.Render(course.Title) + "\n\n" +
		theme.Hint.Render("All lessons stay open in review mode.\nPress any key to continue.")

	box := theme.Card.
		BorderForeground(theme.Primary).
		Padding(2, 4).
		Render(body)

	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		Align(lipgloss.Center).
		AlignVertical(lipgloss.Center).
		Render(box)
}

// stamp formats a duration as mm:ss (or h:mm:ss past the hour).
func stamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second).Seconds())
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

func itoaPct(pct float64) string {
	return fmt.Sprintf("%d%%", int(pct))
}
