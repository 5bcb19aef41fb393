// Package player is the listening screen: the lesson list with unlock
// markers on top, the transport timeline below, driven by a tick loop.
package player

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/coursetape/internal/catalog"
	"github.com/abhisek/coursetape/internal/engine"
	"github.com/abhisek/coursetape/internal/playback"
	"github.com/abhisek/coursetape/internal/progress"
	"github.com/abhisek/coursetape/internal/screen"
	"github.com/abhisek/coursetape/internal/ui/components"
	"github.com/abhisek/coursetape/internal/ui/layout"
	"github.com/abhisek/coursetape/internal/unlock"
)

const seekStep = 10 * time.Second

// noticeHold is how long a transient notice stays visible.
const noticeHold = 4 * time.Second

// PlayerScreen plays one course.
type PlayerScreen struct {
	session  *engine.Session
	courseID string
	ctrl     *playback.Controller
	seq      catalog.Sequence

	cursor    int
	spin      components.Spinner
	notice    string
	noticeSeq int
	showModal bool

	// set from controller and store callbacks, which run off the
	// update loop; drained on the next tick
	courseDone    atomic.Bool
	pendingMu     sync.Mutex
	pendingNotice string
}

var _ screen.Screen = (*PlayerScreen)(nil)
var _ screen.KeyHintProvider = (*PlayerScreen)(nil)
var _ screen.StatusProvider = (*PlayerScreen)(nil)

// New creates the player for courseID.
func New(session *engine.Session, courseID string) *PlayerScreen {
	p := &PlayerScreen{
		session:  session,
		courseID: courseID,
		seq:      session.Catalog.Sequence(courseID),
		spin:     components.NewSpinner("loading lesson…"),
	}
	p.ctrl = session.Controller(courseID, playback.NewClockTransport())
	p.ctrl.OnCourseCompleted(func(string) {
		p.courseDone.Store(true)
	})

	// Start the cursor on the frontier: the first unlocked lesson not
	// yet completed. A fully finished course starts at the top.
	statuses := p.statuses()
	for i, id := range p.seq {
		st := statuses[id]
		if !st.IsCompleted && !st.IsLocked {
			p.cursor = i
			break
		}
	}
	return p
}

func (p *PlayerScreen) statuses() map[string]unlock.Status {
	return p.session.LessonStatuses(p.courseID, p.ctrl.CurrentLessonID())
}

// Init claims the store's notice sink. Registration happens here
// rather than in New so that mounting a player always routes notices
// to the screen the user is actually looking at, never to one that was
// constructed earlier and left behind.
func (p *PlayerScreen) Init() tea.Cmd {
	p.session.Progress.SetNotifier(func(n progress.Notice) {
		p.pendingMu.Lock()
		p.pendingNotice = n.Message
		p.pendingMu.Unlock()
	})
	return tea.Batch(p.spin.Init(), p.tickCmd())
}

func (p *PlayerScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		return p.handleTick()

	case noticeMsg:
		p.notice = msg.text
		p.noticeSeq++
		seq := p.noticeSeq
		return p, tea.Tick(noticeHold, func(time.Time) tea.Msg {
			return clearNoticeMsg{seq: seq}
		})

	case clearNoticeMsg:
		if msg.seq == p.noticeSeq {
			p.notice = ""
		}
		return p, nil

	case tea.KeyMsg:
		return p.handleKey(msg)
	}

	var cmd tea.Cmd
	p.spin, cmd = p.spin.Update(msg)
	return p, cmd
}

func (p *PlayerScreen) handleTick() (screen.Screen, tea.Cmd) {
	if p.courseDone.CompareAndSwap(true, false) {
		p.showModal = true
	}
	if err := p.ctrl.ReportProgress(context.Background()); err != nil {
		p.session.Log.Warn("report progress", "err", err)
	}

	p.pendingMu.Lock()
	pending := p.pendingNotice
	p.pendingNotice = ""
	p.pendingMu.Unlock()
	if pending != "" {
		return p, tea.Batch(p.tickCmd(), p.noticeCmd(pending))
	}
	return p, p.tickCmd()
}

func (p *PlayerScreen) handleKey(msg tea.KeyMsg) (screen.Screen, tea.Cmd) {
	if p.showModal {
		// Any key dismisses the completion modal.
		p.showModal = false
		return p, nil
	}

	switch msg.String() {
	case "up", "k":
		if p.cursor > 0 {
			p.cursor--
		}
	case "down", "j":
		if p.cursor < len(p.seq)-1 {
			p.cursor++
		}
	case "enter":
		return p.selectCursor()
	case " ", "p":
		if p.ctrl.CurrentLessonID() == "" {
			return p.selectCursor()
		}
		if err := p.ctrl.TogglePlay(); err != nil {
			return p, p.noticeCmd(err.Error())
		}
	case "left", "h":
		p.seekBy(-seekStep)
	case "right", "l":
		p.seekBy(seekStep)
	}
	return p, nil
}

func (p *PlayerScreen) selectCursor() (screen.Screen, tea.Cmd) {
	if p.cursor < 0 || p.cursor >= len(p.seq) {
		return p, nil
	}
	lessonID := p.seq[p.cursor]
	err := p.ctrl.SelectLesson(context.Background(), lessonID)
	switch {
	case errors.Is(err, playback.ErrLessonLocked):
		return p, p.noticeCmd("That lesson is locked — finish the previous ones first.")
	case err != nil:
		return p, p.noticeCmd(err.Error())
	}
	if p.ctrl.State() == playback.StateReady {
		if err := p.ctrl.Play(); err != nil {
			return p, p.noticeCmd(err.Error())
		}
	}
	return p, nil
}

func (p *PlayerScreen) seekBy(delta time.Duration) {
	if p.ctrl.CurrentLessonID() == "" {
		return
	}
	pos, dur := p.ctrl.DisplayPosition()
	target := pos + delta
	if target < 0 {
		target = 0
	}
	if target > dur {
		target = dur
	}
	if err := p.ctrl.Seek(target); err != nil {
		p.session.Log.Warn("seek", "err", err)
	}
}

func (p *PlayerScreen) noticeCmd(text string) tea.Cmd {
	return func() tea.Msg { return noticeMsg{text: text} }
}

func (p *PlayerScreen) tickCmd() tea.Cmd {
	interval := p.session.Config.TickInterval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (p *PlayerScreen) Title() string {
	if c, ok := p.session.Catalog.Course(p.courseID); ok {
		return c.Title
	}
	return "Player"
}

// Status feeds the header's right slot.
func (p *PlayerScreen) Status() string {
	rec, ok := p.session.Progress.CourseProgressFor(p.courseID)
	if !ok {
		return ""
	}
	if p.session.Progress.IsInReviewMode(p.courseID) {
		return "REVIEW MODE"
	}
	return itoaPct(rec.ProgressPercentage) + " listened"
}

// KeyHints provides the footer bindings.
func (p *PlayerScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "↑↓", Description: "Lesson"},
		{Key: "Enter", Description: "Play"},
		{Key: "Space", Description: "Pause"},
		{Key: "←→", Description: "Seek"},
		{Key: "Esc", Description: "Back"},
	}
}
