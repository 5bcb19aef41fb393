// Package progress owns the in-memory progress collections for a
// session. Updates apply optimistically and synchronously, then persist
// through the remote store; remote echoes reconcile through the same
// merge and normalization path, so local and remote views converge
// regardless of arrival order.
package progress

import (
	"context"
	"time"
)

// CompletePosition is the normalized position of a finished lesson.
// Positions are percentages in [0, 100].
const CompletePosition = 100.0

// LessonProgress is the persisted per (user, lesson) record.
//
// Invariant: CurrentPosition >= 100 implies IsCompleted == true and
// CurrentPosition == 100. Enforced by normalizeLesson on every write
// path, local or remote.
type LessonProgress struct {
	UserID          string
	LessonID        string
	CourseID        string
	IsCompleted     bool
	CurrentPosition float64
	UpdatedAt       time.Time
}

// CourseProgress is the persisted per (user, course) record. Review
// mode is IsCompleted && ProgressPercentage == 100.
type CourseProgress struct {
	UserID               string
	CourseID             string
	ProgressPercentage   float64
	IsCompleted          bool
	IsSaved              bool
	CompletionModalShown bool
	LastListenedAt       time.Time
	UpdatedAt            time.Time
}

// LessonUpdate is a partial lesson-progress mutation. Nil fields are
// left unchanged by the merge.
type LessonUpdate struct {
	IsCompleted     *bool
	CurrentPosition *float64
}

// CourseUpdate is a partial course-progress mutation.
type CourseUpdate struct {
	ProgressPercentage   *float64
	IsCompleted          *bool
	IsSaved              *bool
	CompletionModalShown *bool
	LastListenedAt       *time.Time
}

// Completed is a convenience LessonUpdate marking a lesson finished.
func Completed() LessonUpdate {
	done := true
	pos := CompletePosition
	return LessonUpdate{IsCompleted: &done, CurrentPosition: &pos}
}

// Position is a convenience LessonUpdate carrying only telemetry.
func Position(pct float64) LessonUpdate {
	return LessonUpdate{CurrentPosition: &pct}
}

// Persistence is the external record store boundary. Upserts are keyed
// by the compound (user, lesson|course) constraint server-side.
type Persistence interface {
	ReadLessonProgress(ctx context.Context, userID string) ([]LessonProgress, error)
	ReadCourseProgress(ctx context.Context, userID string) ([]CourseProgress, error)
	UpsertLessonProgress(ctx context.Context, rec LessonProgress) error
	UpsertCourseProgress(ctx context.Context, rec CourseProgress) error
}

// NoticeLevel classifies user-facing notices.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeWarn
)

// Notice is a non-blocking user-facing notification emitted when a
// remote write fails. The optimistic state is never rolled back.
type Notice struct {
	Level   NoticeLevel
	Message string
}

// Notifier receives notices; the presentation layer decides rendering.
type Notifier func(Notice)

// normalizeLesson enforces the completion invariant: a position at or
// past the end pins the record to exactly 100 and completed, and a
// completed record never reports a position past 100.
func normalizeLesson(p *LessonProgress) {
	if p.CurrentPosition < 0 {
		p.CurrentPosition = 0
	}
	if p.CurrentPosition >= CompletePosition {
		p.CurrentPosition = CompletePosition
		p.IsCompleted = true
	}
}

// normalizeCourse clamps the percentage and couples 100% to completion.
func normalizeCourse(c *CourseProgress) {
	if c.ProgressPercentage < 0 {
		c.ProgressPercentage = 0
	}
	if c.ProgressPercentage >= 100 {
		c.ProgressPercentage = 100
		c.IsCompleted = true
	}
}
