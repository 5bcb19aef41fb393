package unlock

import (
	"fmt"
	"testing"

	"github.com/abhisek/coursetape/internal/catalog"
)

func courseFixture() ([]catalog.Lesson, []catalog.Module) {
	lessons := []catalog.Lesson{
		{ID: "l1", ModuleID: "m1", CourseID: "c1"},
		{ID: "l2", ModuleID: "m1", CourseID: "c1"},
		{ID: "l3", ModuleID: "m1", CourseID: "c1"},
	}
	modules := []catalog.Module{
		{ID: "m1", CourseID: "c1", Position: 1, LessonIDs: []string{"l1", "l2", "l3"}},
	}
	return lessons, modules
}

func TestFirstLessonPlayableRestLocked(t *testing.T) {
	lessons, modules := courseFixture()

	statuses := ComputeStatuses(lessons, modules, "", nil, false)

	if s := statuses["l1"]; s.IsLocked || !s.CanPlay || !s.IsFirstInSequence {
		t.Errorf("l1 = %+v, want unlocked, playable, first", s)
	}
	if !statuses["l2"].IsLocked {
		t.Error("l2 should be locked")
	}
	if !statuses["l3"].IsLocked {
		t.Error("l3 should be locked")
	}
}

func TestCompletingUnlocksOnlyNext(t *testing.T) {
	lessons, modules := courseFixture()

	statuses := ComputeStatuses(lessons, modules, "", map[string]bool{"l1": true}, false)

	if statuses["l2"].IsLocked {
		t.Error("l2 should unlock after l1 completes")
	}
	if !statuses["l3"].IsLocked {
		t.Error("l3 should stay locked until l2 completes")
	}
}

func TestStrictSequentialGating(t *testing.T) {
	lessons, modules := courseFixture()

	// l1 and l3 done, l2 not: l3 keeps completed status but nothing
	// past the gap unlocks.
	statuses := ComputeStatuses(lessons, modules, "", map[string]bool{"l1": true, "l3": true}, false)

	if statuses["l2"].IsLocked {
		t.Error("l2 should be unlocked (follows completed l1)")
	}
	if s := statuses["l3"]; s.IsLocked || !s.IsCompleted {
		t.Errorf("completed l3 must not be locked: %+v", s)
	}
}

func TestReviewModeUnlocksEverything(t *testing.T) {
	lessons, modules := courseFixture()

	statuses := ComputeStatuses(lessons, modules, "", nil, true)

	for id, s := range statuses {
		if s.IsLocked || !s.CanPlay {
			t.Errorf("%s locked in review mode: %+v", id, s)
		}
	}
}

func TestCurrentLessonStaysPlayable(t *testing.T) {
	lessons, modules := courseFixture()

	// l3 is current even though a recomputation would lock it.
	statuses := ComputeStatuses(lessons, modules, "l3", nil, false)

	s := statuses["l3"]
	if !s.IsCurrent || !s.CanPlay {
		t.Errorf("current lesson must stay playable: %+v", s)
	}
	if !s.IsLocked {
		t.Errorf("current lesson is still locked for unlock purposes: %+v", s)
	}
}

func TestNextPreviousLinks(t *testing.T) {
	lessons, modules := courseFixture()

	statuses := ComputeStatuses(lessons, modules, "", nil, false)

	if got := statuses["l1"].NextLessonID; got != "l2" {
		t.Errorf("l1 next = %q, want l2", got)
	}
	if got := statuses["l2"].PreviousLessonID; got != "l1" {
		t.Errorf("l2 previous = %q, want l1", got)
	}
	if got := statuses["l3"].NextLessonID; got != "" {
		t.Errorf("l3 next = %q, want empty", got)
	}
}

func TestEmptyInputs(t *testing.T) {
	if got := ComputeStatuses(nil, nil, "", nil, false); len(got) != 0 {
		t.Errorf("expected empty status map, got %v", got)
	}
	lessons, _ := courseFixture()
	if got := ComputeStatuses(lessons, nil, "", nil, false); len(got) != 0 {
		t.Errorf("expected empty status map without modules, got %v", got)
	}
}

func TestMemoReturnsCachedForSameInputs(t *testing.T) {
	lessons, modules := courseFixture()
	var memo Memo

	first := memo.Compute(lessons, modules, "", map[string]bool{"l1": true}, false)
	second := memo.Compute(lessons, modules, "", map[string]bool{"l1": true}, false)

	// Same content hash: the cached map is returned, not a new one.
	if fmt.Sprintf("%p", first) != fmt.Sprintf("%p", second) {
		t.Error("expected memoized map for identical inputs")
	}

	// Changed completion set must recompute.
	third := memo.Compute(lessons, modules, "", map[string]bool{"l1": true, "l2": true}, false)
	if third["l3"].IsLocked {
		t.Error("memo served stale result after input change")
	}
}
