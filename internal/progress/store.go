package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abhisek/coursetape/internal/logging"
	"github.com/abhisek/coursetape/internal/notify"
)

// Config tunes the reconciliation store.
type Config struct {
	// ThrottleInterval bounds persisted position telemetry to one write
	// per lesson per interval. The in-memory value updates on every
	// call regardless.
	ThrottleInterval time.Duration

	// WriteTimeout bounds background fire-and-forget writes.
	WriteTimeout time.Duration
}

// DefaultConfig returns the store defaults. 3s keeps the durable record
// close enough behind the optimistic view that an abrupt session end
// loses at most a few seconds of position.
func DefaultConfig() Config {
	return Config{
		ThrottleInterval: 3 * time.Second,
		WriteTimeout:     10 * time.Second,
	}
}

// Store holds the authoritative in-memory progress collections and is
// the single writer for them. Reads are broadcast widely; mutation goes
// only through the Update methods.
type Store struct {
	log      *logging.Logger
	db       Persistence
	registry *notify.Registry
	userID   string
	cfg      Config
	notifyFn Notifier

	mu          sync.Mutex
	lessons     map[string]LessonProgress
	courses     map[string]CourseProgress
	lastPersist map[string]time.Time
	releases    []func()

	// background writes in flight, so Close can drain them
	wg sync.WaitGroup
}

// NewStore creates a reconciliation store for one user.
func NewStore(db Persistence, registry *notify.Registry, userID string, cfg Config, log *logging.Logger) *Store {
	if cfg.ThrottleInterval <= 0 {
		cfg.ThrottleInterval = DefaultConfig().ThrottleInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}
	return &Store{
		log:         log.With("component", "progress-store", "user", userID),
		db:          db,
		registry:    registry,
		userID:      userID,
		cfg:         cfg,
		lessons:     make(map[string]LessonProgress),
		courses:     make(map[string]CourseProgress),
		lastPersist: make(map[string]time.Time),
	}
}

// SetNotifier registers the user-facing notice sink.
func (s *Store) SetNotifier(fn Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifyFn = fn
}

// Load replaces the in-memory collections with the remote store's
// current state. Called on session start and after reconnect; the
// remote store is the source of truth at that boundary.
func (s *Store) Load(ctx context.Context) error {
	var (
		lessons []LessonProgress
		courses []CourseProgress
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lessons, err = s.db.ReadLessonProgress(gctx, s.userID)
		return err
	})
	g.Go(func() error {
		var err error
		courses, err = s.db.ReadCourseProgress(gctx, s.userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("load progress: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lessons = make(map[string]LessonProgress, len(lessons))
	for _, rec := range lessons {
		normalizeLesson(&rec)
		s.lessons[rec.LessonID] = rec
	}
	s.courses = make(map[string]CourseProgress, len(courses))
	for _, rec := range courses {
		normalizeCourse(&rec)
		s.courses[rec.CourseID] = rec
	}
	s.log.Debug("progress loaded", "lessons", len(lessons), "courses", len(courses))
	return nil
}

// StartSync subscribes to remote change notifications for this user's
// progress tables. Events echo through the same reconciliation path as
// local writes. Safe to call more than once; the registry deduplicates.
func (s *Store) StartSync(ctx context.Context) error {
	channel := "user:" + s.userID
	filter := "user_id=" + s.userID

	for _, table := range []string{notify.TableLessonProgress, notify.TableCourseProgress} {
		key := notify.Key{Channel: channel, Table: table, Filter: filter}
		release, err := s.registry.Subscribe(ctx, key, s.applyRemote)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", table, err)
		}
		s.mu.Lock()
		s.releases = append(s.releases, release)
		s.mu.Unlock()
	}
	return nil
}

// StopSync releases this store's subscriptions and waits for in-flight
// background writes.
func (s *Store) StopSync() {
	s.mu.Lock()
	releases := s.releases
	s.releases = nil
	s.mu.Unlock()
	for _, release := range releases {
		release()
	}
	s.wg.Wait()
}

// UpdateLessonProgress merges a partial update into the lesson's record,
// applies it optimistically, and persists it. Completion-class updates
// (completing the lesson, or a position at/past 100) are awaited so
// downstream unlock decisions never race ahead of durable state; plain
// position telemetry persists in the background on the throttle.
//
// Two suppression rules run before anything is applied: position-only
// updates for an already-completed lesson are dropped (a replay listen
// must not move the recorded position), and position-only regressions
// are dropped while the course is in review mode.
func (s *Store) UpdateLessonProgress(ctx context.Context, lessonID, courseID string, upd LessonUpdate) error {
	now := time.Now().UTC()

	s.mu.Lock()
	existing, exists := s.lessons[lessonID]

	positionOnly := upd.IsCompleted == nil
	if positionOnly && exists && existing.IsCompleted {
		s.mu.Unlock()
		s.log.Debug("suppress position write for completed lesson", "lesson", lessonID)
		return nil
	}
	if positionOnly && upd.CurrentPosition != nil && *upd.CurrentPosition < CompletePosition && s.reviewModeLocked(courseID) {
		s.mu.Unlock()
		s.log.Debug("suppress position write in review mode", "lesson", lessonID, "course", courseID)
		return nil
	}

	merged := existing
	if !exists {
		merged = LessonProgress{UserID: s.userID, LessonID: lessonID, CourseID: courseID}
	}
	if upd.IsCompleted != nil {
		merged.IsCompleted = *upd.IsCompleted
	}
	if upd.CurrentPosition != nil {
		merged.CurrentPosition = *upd.CurrentPosition
	}
	merged.UpdatedAt = now
	normalizeLesson(&merged)

	// Optimistic apply: a reader immediately after this call sees the
	// effect, whatever the remote write does.
	s.lessons[lessonID] = merged

	completionClass := merged.IsCompleted
	var due bool
	if !completionClass {
		due = now.Sub(s.lastPersist[lessonID]) >= s.cfg.ThrottleInterval
		if due {
			s.lastPersist[lessonID] = now
		}
	}
	s.mu.Unlock()

	if completionClass {
		if err := s.db.UpsertLessonProgress(ctx, merged); err != nil {
			s.failedWrite("lesson completion", err)
		}
		return nil
	}
	if due {
		s.persistLessonAsync(merged)
	}
	return nil
}

// UpdateCourseProgress merges a partial update into the course record.
// Writes that complete the course (or drive it to 100%) are awaited;
// the rest persist in the background.
func (s *Store) UpdateCourseProgress(ctx context.Context, courseID string, upd CourseUpdate) error {
	now := time.Now().UTC()

	s.mu.Lock()
	merged, exists := s.courses[courseID]
	if !exists {
		merged = CourseProgress{UserID: s.userID, CourseID: courseID}
	}
	if upd.ProgressPercentage != nil {
		merged.ProgressPercentage = *upd.ProgressPercentage
	}
	if upd.IsCompleted != nil {
		merged.IsCompleted = *upd.IsCompleted
	}
	if upd.IsSaved != nil {
		merged.IsSaved = *upd.IsSaved
	}
	if upd.CompletionModalShown != nil {
		merged.CompletionModalShown = *upd.CompletionModalShown
	}
	if upd.LastListenedAt != nil {
		merged.LastListenedAt = *upd.LastListenedAt
	}
	merged.UpdatedAt = now
	normalizeCourse(&merged)
	s.courses[courseID] = merged

	completionClass := (upd.IsCompleted != nil && *upd.IsCompleted) ||
		(upd.ProgressPercentage != nil && *upd.ProgressPercentage >= 100)
	s.mu.Unlock()

	if completionClass {
		if err := s.db.UpsertCourseProgress(ctx, merged); err != nil {
			s.failedWrite("course completion", err)
		}
		return nil
	}
	s.persistCourseAsync(merged)
	return nil
}

// IsInReviewMode reports whether the course was previously finished at
// 100%. A missing record is never treated as finished.
func (s *Store) IsInReviewMode(courseID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reviewModeLocked(courseID)
}

func (s *Store) reviewModeLocked(courseID string) bool {
	c, ok := s.courses[courseID]
	return ok && c.IsCompleted && c.ProgressPercentage == 100
}

// LessonProgressFor returns the lesson's current record.
func (s *Store) LessonProgressFor(lessonID string) (LessonProgress, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.lessons[lessonID]
	return rec, ok
}

// CourseProgressFor returns the course's current record.
func (s *Store) CourseProgressFor(courseID string) (CourseProgress, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.courses[courseID]
	return rec, ok
}

// CompletedByLesson snapshots the completion set, the unlock machine's
// input.
func (s *Store) CompletedByLesson() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.lessons))
	for id, rec := range s.lessons {
		if rec.IsCompleted {
			out[id] = true
		}
	}
	return out
}

// applyRemote reconciles a remote echo into the local collections:
// last writer wins by UpdatedAt, the completion invariant is re-applied,
// and a locally-completed lesson never regresses.
func (s *Store) applyRemote(ev notify.Event) {
	switch ev.Table {
	case notify.TableLessonProgress:
		var rec LessonProgress
		if err := json.Unmarshal(ev.Payload, &rec); err != nil {
			s.log.Warn("drop undecodable lesson echo", "key", ev.Key, "err", err)
			return
		}
		s.reconcileLesson(rec)
	case notify.TableCourseProgress:
		var rec CourseProgress
		if err := json.Unmarshal(ev.Payload, &rec); err != nil {
			s.log.Warn("drop undecodable course echo", "key", ev.Key, "err", err)
			return
		}
		s.reconcileCourse(rec)
	}
}

func (s *Store) reconcileLesson(rec LessonProgress) {
	normalizeLesson(&rec)
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.lessons[rec.LessonID]
	if ok {
		if rec.UpdatedAt.Before(cur.UpdatedAt) {
			return
		}
		if cur.IsCompleted {
			rec.IsCompleted = true
			rec.CurrentPosition = CompletePosition
		}
	}
	normalizeLesson(&rec)
	s.lessons[rec.LessonID] = rec
}

func (s *Store) reconcileCourse(rec CourseProgress) {
	normalizeCourse(&rec)
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.courses[rec.CourseID]
	if ok && rec.UpdatedAt.Before(cur.UpdatedAt) {
		return
	}
	s.courses[rec.CourseID] = rec
}

// persistLessonAsync issues a fire-and-forget write. Failures are
// reported but never roll back the optimistic apply; position telemetry
// is best-effort.
func (s *Store) persistLessonAsync(rec LessonProgress) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout)
		defer cancel()
		if err := s.db.UpsertLessonProgress(ctx, rec); err != nil {
			s.failedWrite("lesson position", err)
		}
	}()
}

func (s *Store) persistCourseAsync(rec CourseProgress) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout)
		defer cancel()
		if err := s.db.UpsertCourseProgress(ctx, rec); err != nil {
			s.failedWrite("course progress", err)
		}
	}()
}

func (s *Store) failedWrite(what string, err error) {
	s.log.Error("remote write failed", "what", what, "err", err)
	s.mu.Lock()
	fn := s.notifyFn
	s.mu.Unlock()
	if fn != nil {
		fn(Notice{
			Level:   NoticeWarn,
			Message: fmt.Sprintf("Couldn't save %s — your progress is kept locally and will retry.", what),
		})
	}
}
