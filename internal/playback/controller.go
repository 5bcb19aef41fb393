package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/abhisek/coursetape/internal/catalog"
	"github.com/abhisek/coursetape/internal/logging"
	"github.com/abhisek/coursetape/internal/progress"
	"github.com/abhisek/coursetape/internal/unlock"
)

// State is the controller's transport-level state.
type State int

const (
	StateIdle    State = iota // no lesson selected
	StateLoading              // lesson selected, media not yet ready
	StateReady                // loaded, paused
	StatePlaying
	StateEnded // end of lesson reached, completion sequence running
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StateEnded:
		return "ended"
	}
	return "unknown"
}

var (
	// ErrLessonLocked is returned when a locked lesson is selected.
	ErrLessonLocked = errors.New("lesson is locked")

	// ErrUnknownLesson is returned for lessons outside the course.
	ErrUnknownLesson = errors.New("unknown lesson")

	// ErrNoLesson is returned by transport operations with nothing
	// selected.
	ErrNoLesson = errors.New("no lesson selected")
)

// TransitionSnapshot pins the displayed position at full duration while
// the completion sequence runs, so the UI never flickers back to a
// lower value between lesson end and the next lesson's load. Held
// across at most one lesson boundary.
type TransitionSnapshot struct {
	LessonID    string
	CurrentTime time.Duration
	Duration    time.Duration
}

// StatusFunc supplies the current unlock statuses for the active
// course given the controller's current lesson.
type StatusFunc func(currentLessonID string) map[string]unlock.Status

// RefreshFunc is the "lessons refreshed" callback. It is awaited after
// every completion write so the unlock machine observes the completed
// lesson before the auto-advance decision.
type RefreshFunc func(ctx context.Context) error

// Controller owns the single active transport for one course.
type Controller struct {
	log       *logging.Logger
	transport Transport
	cat       *catalog.Catalog
	store     *progress.Store
	courseID  string
	statuses  StatusFunc

	mu           sync.Mutex
	state        State
	currentID    string
	generation   uint64
	endedGen     uint64
	snapshot     *TransitionSnapshot
	lastErr      error
	onRefreshed  RefreshFunc
	onLessonDone func(lessonID string)
	onCourseEnd  func(courseID string)
}

// NewController creates a controller for one course.
func NewController(transport Transport, cat *catalog.Catalog, store *progress.Store, courseID string, statuses StatusFunc, log *logging.Logger) *Controller {
	return &Controller{
		log:       log.With("component", "playback", "course", courseID),
		transport: transport,
		cat:       cat,
		store:     store,
		courseID:  courseID,
		statuses:  statuses,
	}
}

// OnLessonsRefreshed registers the refresh callback.
func (c *Controller) OnLessonsRefreshed(fn RefreshFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRefreshed = fn
}

// OnLessonCompleted registers a callback fired each time a lesson
// reaches its end and its completion is recorded.
func (c *Controller) OnLessonCompleted(fn func(lessonID string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onLessonDone = fn
}

// OnCourseCompleted registers the callback fired once when the last
// lesson of the course completes. Gated by CompletionModalShown so it
// never fires twice for the same course.
func (c *Controller) OnCourseCompleted(fn func(courseID string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onCourseEnd = fn
}

// State returns the current transport state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentLessonID returns the selected lesson, or "".
func (c *Controller) CurrentLessonID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentID
}

// Err returns the last transport error, cleared on the next successful
// load.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Snapshot returns the active transition snapshot, or nil.
func (c *Controller) Snapshot() *TransitionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// DisplayPosition returns the position the UI should show: the pinned
// snapshot value during a lesson transition, the live transport
// position otherwise.
func (c *Controller) DisplayPosition() (pos, dur time.Duration) {
	c.mu.Lock()
	snap := c.snapshot
	c.mu.Unlock()
	if snap != nil {
		return snap.CurrentTime, snap.Duration
	}
	return c.transport.Position(), c.transport.Duration()
}

// SelectLesson makes lessonID the active lesson. Selecting the already
// loaded lesson toggles play state without reloading the media.
// Selecting a locked lesson fails with ErrLessonLocked. A completed
// lesson always loads positioned at the start; an incomplete one
// resumes from its stored position.
func (c *Controller) SelectLesson(ctx context.Context, lessonID string) error {
	c.mu.Lock()
	if lessonID == c.currentID && c.state != StateIdle && c.state != StateLoading {
		c.mu.Unlock()
		return c.TogglePlay()
	}

	st, ok := c.statuses(c.currentID)[lessonID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownLesson, lessonID)
	}
	if !st.CanPlay {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrLessonLocked, lessonID)
	}
	lesson, ok := c.cat.Lesson(lessonID)
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownLesson, lessonID)
	}

	// A new generation invalidates any in-flight completion sequence's
	// advance step (the completion write itself still finishes).
	c.generation++
	gen := c.generation
	c.transport.SetOnEnded(nil)
	c.state = StateLoading
	c.currentID = lessonID
	c.mu.Unlock()

	if err := c.transport.Load(ctx, lesson.AudioRef, lesson.Duration); err != nil {
		c.mu.Lock()
		if c.generation == gen {
			c.state = StateReady
			c.lastErr = err
		}
		c.mu.Unlock()
		return fmt.Errorf("load lesson media: %w", err)
	}

	rec, hasRec := c.store.LessonProgressFor(lessonID)
	switch {
	case hasRec && rec.IsCompleted:
		// A finished lesson replays from the start, never from a
		// stale position.
		_ = c.transport.Seek(0)
	case hasRec && rec.CurrentPosition > 0:
		resume := time.Duration(rec.CurrentPosition / 100 * float64(lesson.Duration))
		_ = c.transport.Seek(resume)
	}

	c.transport.SetOnEnded(func() { c.completeAndAdvance(gen) })

	c.mu.Lock()
	if c.generation == gen {
		c.state = StateReady
		c.lastErr = nil
		c.snapshot = nil // previous transition has stabilized
	}
	c.mu.Unlock()
	c.log.Debug("lesson selected", "lesson", lessonID)
	return nil
}

// Play starts playback of the selected lesson.
func (c *Controller) Play() error {
	c.mu.Lock()
	if c.currentID == "" || c.state == StateIdle {
		c.mu.Unlock()
		return ErrNoLesson
	}
	// While loading there is nothing to start yet; while the completion
	// sequence runs the media sits at its end and restarting it would
	// only produce another end event for a lesson already completed.
	if c.state == StateLoading || c.state == StateEnded {
		c.mu.Unlock()
		return nil
	}
	lessonID := c.currentID
	c.mu.Unlock()

	// A completed lesson sitting at its end would end instantly;
	// rewind before starting.
	if rec, ok := c.store.LessonProgressFor(lessonID); ok && rec.IsCompleted {
		if c.transport.Position() >= c.transport.Duration() {
			_ = c.transport.Seek(0)
		}
	}

	if err := c.transport.Play(); err != nil {
		c.mu.Lock()
		c.state = StateReady
		c.lastErr = err
		c.mu.Unlock()
		return fmt.Errorf("start playback: %w", err)
	}
	c.mu.Lock()
	c.state = StatePlaying
	c.lastErr = nil
	c.mu.Unlock()
	return nil
}

// Pause pauses playback.
func (c *Controller) Pause() error {
	c.mu.Lock()
	if c.state != StatePlaying {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	if err := c.transport.Pause(); err != nil {
		return fmt.Errorf("pause playback: %w", err)
	}
	c.mu.Lock()
	c.state = StateReady
	c.mu.Unlock()
	return nil
}

// TogglePlay flips between playing and paused.
func (c *Controller) TogglePlay() error {
	if c.State() == StatePlaying {
		return c.Pause()
	}
	return c.Play()
}

// Seek moves the transport position.
func (c *Controller) Seek(pos time.Duration) error {
	if c.CurrentLessonID() == "" {
		return ErrNoLesson
	}
	return c.transport.Seek(pos)
}

// ReportProgress forwards the transport position to the reconciliation
// store as percentage telemetry. The store throttles persistence and
// suppresses review-mode and completed-lesson writes.
func (c *Controller) ReportProgress(ctx context.Context) error {
	c.mu.Lock()
	lessonID := c.currentID
	playing := c.state == StatePlaying
	c.mu.Unlock()
	if lessonID == "" || !playing {
		return nil
	}
	dur := c.transport.Duration()
	if dur <= 0 {
		return nil
	}
	pct := float64(c.transport.Position()) / float64(dur) * 100
	lesson, ok := c.cat.Lesson(lessonID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLesson, lessonID)
	}
	return c.store.UpdateLessonProgress(ctx, lessonID, lesson.CourseID, progress.Position(pct))
}

// completeAndAdvance is the end-of-lesson sequence. The steps are
// deliberately sequential: the completion write must be durable and the
// refresh observed before the next lesson is chosen, or auto-advance
// could step into a lesson the unlock machine still considers locked.
// A generation mismatch at the advance step means the user selected
// another lesson while the sequence was in flight; the sequence then
// becomes a no-op instead of reverting their choice.
//
// The sequence runs at most once per generation: endedGen records which
// generation already ended, so a duplicate end event for the same
// selection (the media sitting at its end and ending again) cannot
// fire the completion side effects twice.
func (c *Controller) completeAndAdvance(gen uint64) {
	ctx := context.Background()

	c.mu.Lock()
	if c.generation != gen || c.endedGen == gen {
		c.mu.Unlock()
		return
	}
	c.endedGen = gen
	lessonID := c.currentID
	lesson, ok := c.cat.Lesson(lessonID)
	if !ok {
		c.mu.Unlock()
		return
	}
	c.state = StateEnded
	c.snapshot = &TransitionSnapshot{
		LessonID:    lessonID,
		CurrentTime: lesson.Duration,
		Duration:    lesson.Duration,
	}
	onRefreshed := c.onRefreshed
	onLessonDone := c.onLessonDone
	c.mu.Unlock()

	// 1. Durable completion. Failures keep local completion; the store
	// surfaces them and unlock proceeds on the optimistic state.
	if err := c.store.UpdateLessonProgress(ctx, lessonID, lesson.CourseID, progress.Completed()); err != nil {
		c.log.Error("completion write failed", "lesson", lessonID, "err", err)
	}
	if onLessonDone != nil {
		onLessonDone(lessonID)
	}

	// 2. Let the unlock machine see the completion before advancing.
	if onRefreshed != nil {
		if err := onRefreshed(ctx); err != nil {
			c.log.Warn("lessons refresh failed", "lesson", lessonID, "err", err)
		}
	}

	// 3. Course progress bookkeeping.
	c.recordCourseProgress(ctx, lesson.CourseID)

	// 4. Stale-selection check before touching the transport again.
	c.mu.Lock()
	if c.generation != gen || c.currentID != lessonID {
		c.mu.Unlock()
		c.log.Debug("advance superseded by newer selection", "lesson", lessonID)
		return
	}
	c.mu.Unlock()

	next := c.cat.Sequence(lesson.CourseID).NextAfter(lessonID)
	if next == "" {
		c.finishCourse(ctx, lesson.CourseID)
		c.clearSnapshot()
		return
	}

	if err := c.SelectLesson(ctx, next); err != nil {
		c.log.Warn("auto-advance blocked", "next", next, "err", err)
		c.mu.Lock()
		if c.generation == gen {
			c.state = StateReady
		}
		c.mu.Unlock()
		c.clearSnapshot()
		return
	}
	if err := c.Play(); err != nil {
		c.log.Warn("auto-advance play failed", "next", next, "err", err)
	}
}

// recordCourseProgress recomputes the course percentage from the
// completion set and persists it.
func (c *Controller) recordCourseProgress(ctx context.Context, courseID string) {
	seq := c.cat.Sequence(courseID)
	if len(seq) == 0 {
		return
	}
	completed := c.store.CompletedByLesson()
	done := 0
	for _, id := range seq {
		if completed[id] {
			done++
		}
	}
	pct := float64(done) / float64(len(seq)) * 100
	now := time.Now().UTC()
	upd := progress.CourseUpdate{ProgressPercentage: &pct, LastListenedAt: &now}
	if err := c.store.UpdateCourseProgress(ctx, courseID, upd); err != nil {
		c.log.Error("course progress write failed", "course", courseID, "err", err)
	}
}

// finishCourse stops playback at the end of the last lesson and marks
// the course fully complete, firing the completion callback at most
// once per course.
func (c *Controller) finishCourse(ctx context.Context, courseID string) {
	_ = c.transport.Pause()
	c.mu.Lock()
	c.state = StateReady
	onCourseEnd := c.onCourseEnd
	c.mu.Unlock()

	rec, _ := c.store.CourseProgressFor(courseID)
	firstTime := !rec.CompletionModalShown

	pct := 100.0
	completedFlag := true
	shown := true
	upd := progress.CourseUpdate{
		ProgressPercentage:   &pct,
		IsCompleted:          &completedFlag,
		CompletionModalShown: &shown,
	}
	if err := c.store.UpdateCourseProgress(ctx, courseID, upd); err != nil {
		c.log.Error("course completion write failed", "course", courseID, "err", err)
	}

	if firstTime && onCourseEnd != nil {
		onCourseEnd(courseID)
	}
	c.log.Info("course completed", "course", courseID)
}

func (c *Controller) clearSnapshot() {
	c.mu.Lock()
	c.snapshot = nil
	c.mu.Unlock()
}
