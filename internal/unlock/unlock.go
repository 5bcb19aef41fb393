// Package unlock computes per-lesson playability from the course
// structure and per-lesson completion state. ComputeStatuses is pure
// and deterministic; it is safe to call on every input change.
package unlock

import (
	"github.com/abhisek/coursetape/internal/catalog"
)

// Status is the derived, per-recomputation state of one lesson. It is
// never persisted.
type Status struct {
	LessonID          string
	IsCompleted       bool
	IsLocked          bool
	IsCurrent         bool
	CanPlay           bool
	IsFirstInSequence bool
	Position          int // index within the course sequence
	NextLessonID      string
	PreviousLessonID  string
}

// ComputeStatuses maps the ordered lessons, the completion set and the
// course review flag to a per-lesson Status.
//
// Unlock walks the module-ordered sequence: the first lesson is always
// unlocked, and lesson i+1 unlocks only when lesson i is completed.
// Unlocking stops at the first incomplete lesson — completing a later
// lesson never skips the gap. Review mode unlocks everything.
func ComputeStatuses(
	lessons []catalog.Lesson,
	modules []catalog.Module,
	currentLessonID string,
	completed map[string]bool,
	reviewMode bool,
) map[string]Status {
	statuses := make(map[string]Status)
	if len(lessons) == 0 || len(modules) == 0 {
		return statuses
	}

	seq := catalog.Flatten(modules)
	known := make(map[string]bool, len(lessons))
	for _, l := range lessons {
		known[l.ID] = true
	}

	unlocked := make(map[string]bool, len(seq))
	for i, id := range seq {
		if i == 0 {
			unlocked[id] = true
		} else if !unlocked[seq[i-1]] || !completed[seq[i-1]] {
			break
		} else {
			unlocked[id] = true
		}
	}

	for i, id := range seq {
		if !known[id] {
			continue
		}
		done := completed[id]
		locked := !unlocked[id] && !done && !reviewMode
		statuses[id] = Status{
			LessonID:          id,
			IsCompleted:       done,
			IsLocked:          locked,
			IsCurrent:         id == currentLessonID,
			CanPlay:           !locked || id == currentLessonID,
			IsFirstInSequence: i == 0,
			Position:          i,
			NextLessonID:      seq.NextAfter(id),
			PreviousLessonID:  seq.PreviousOf(id),
		}
	}
	return statuses
}
