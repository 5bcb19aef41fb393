package player

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/coursetape/internal/config"
	"github.com/abhisek/coursetape/internal/engine"
	"github.com/abhisek/coursetape/internal/logging"
	"github.com/abhisek/coursetape/internal/playback"
	"github.com/abhisek/coursetape/internal/progress"
	"github.com/abhisek/coursetape/internal/screen"
)

func keyPress(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}

func specialKey(code rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: code}
}

func newTestPlayer(t *testing.T) (*PlayerScreen, *engine.Session) {
	t.Helper()
	cfg := config.Config{DBPath: ":memory:", UserID: "u1", TickInterval: 250 * time.Millisecond}
	session, err := engine.Open(context.Background(), cfg, logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })

	courseID := session.Catalog.Courses()[0].ID
	return New(session, courseID), session
}

func TestCursorStartsOnFrontier(t *testing.T) {
	p, session := newTestPlayer(t)
	assert.Equal(t, 0, p.cursor, "fresh course starts at the first lesson")

	courseID := session.Catalog.Courses()[0].ID
	seq := session.Catalog.Sequence(courseID)
	require.NoError(t, session.Progress.UpdateLessonProgress(
		context.Background(), seq[0], courseID, progress.Completed()))

	p2 := New(session, courseID)
	assert.Equal(t, 1, p2.cursor, "reopening lands on the first incomplete lesson")
}

func TestSelectingLockedLessonShowsNotice(t *testing.T) {
	p, _ := newTestPlayer(t)

	var scr screen.Screen = p
	scr, _ = scr.Update(specialKey(tea.KeyDown))
	scr, cmd := scr.Update(specialKey(tea.KeyEnter))
	require.NotNil(t, cmd)

	msg := cmd()
	notice, ok := msg.(noticeMsg)
	require.True(t, ok, "locked selection must produce a notice, got %T", msg)
	assert.Contains(t, notice.text, "locked")

	scr, _ = scr.Update(notice)
	view := scr.View(100, 30)
	assert.Contains(t, view, "locked")
	assert.Equal(t, playback.StateIdle, p.ctrl.State())
}

func TestEnterPlaysFirstLesson(t *testing.T) {
	p, _ := newTestPlayer(t)

	var scr screen.Screen = p
	scr, _ = scr.Update(specialKey(tea.KeyEnter))

	assert.Equal(t, playback.StatePlaying, p.ctrl.State())
	view := scr.View(100, 30)
	assert.Contains(t, view, "Playing")
}

func TestViewMarksCompletedLessons(t *testing.T) {
	p, session := newTestPlayer(t)
	courseID := session.Catalog.Courses()[0].ID
	seq := session.Catalog.Sequence(courseID)

	require.NoError(t, session.Progress.UpdateLessonProgress(
		context.Background(), seq[0], courseID, progress.Completed()))

	view := p.View(100, 30)
	assert.Contains(t, view, "✓")
	// The now-unlocked second lesson must not carry the locked tag.
	lines := strings.Split(view, "\n")
	second, _ := session.Catalog.Lesson(seq[1])
	for _, line := range lines {
		if strings.Contains(line, second.Title) {
			assert.NotContains(t, line, "locked")
		}
	}
}

func TestLatestMountedPlayerReceivesNotices(t *testing.T) {
	p1, session := newTestPlayer(t)
	_ = p1.Init()

	courseID := session.Catalog.Courses()[0].ID
	p2 := New(session, courseID)
	_ = p2.Init()

	// Force a failing completion write; the store surfaces it as a
	// notice, which must reach the screen mounted last, not the one
	// left behind.
	require.NoError(t, session.Close())
	seq := session.Catalog.Sequence(courseID)
	_ = session.Progress.UpdateLessonProgress(
		context.Background(), seq[0], courseID, progress.Completed())

	p2.pendingMu.Lock()
	got := p2.pendingNotice
	p2.pendingMu.Unlock()
	assert.Contains(t, got, "save")

	p1.pendingMu.Lock()
	stale := p1.pendingNotice
	p1.pendingMu.Unlock()
	assert.Empty(t, stale, "a superseded screen must not receive notices")
}

func TestCompletionModalShowsAndDismisses(t *testing.T) {
	p, _ := newTestPlayer(t)
	p.courseDone.Store(true)

	var scr screen.Screen = p
	scr, _ = scr.Update(tickMsg(time.Now()))
	view := scr.View(100, 30)
	assert.Contains(t, view, "COURSE COMPLETE")

	scr, _ = scr.Update(keyPress(' '))
	view = scr.View(100, 30)
	assert.NotContains(t, view, "COURSE COMPLETE")
}

func TestStamp(t *testing.T) {
	assert.Equal(t, "00:00", stamp(0))
	assert.Equal(t, "01:05", stamp(65*time.Second))
	assert.Equal(t, "1:01:05", stamp(3665*time.Second))
	assert.Equal(t, "00:00", stamp(-time.Second))
}
