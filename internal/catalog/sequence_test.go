package catalog

import "testing"

func twoModuleFixture() []Module {
	return []Module{
		{ID: "m2", CourseID: "c1", Position: 2, LessonIDs: []string{"l3", "l4"}},
		{ID: "m1", CourseID: "c1", Position: 1, LessonIDs: []string{"l1", "l2"}},
	}
}

func TestFlattenOrdersByModuleThenLesson(t *testing.T) {
	seq := Flatten(twoModuleFixture())

	want := []string{"l1", "l2", "l3", "l4"}
	if len(seq) != len(want) {
		t.Fatalf("sequence length = %d, want %d", len(seq), len(want))
	}
	for i, id := range want {
		if seq[i] != id {
			t.Errorf("seq[%d] = %q, want %q", i, seq[i], id)
		}
	}
}

func TestFlattenEmpty(t *testing.T) {
	seq := Flatten(nil)
	if len(seq) != 0 {
		t.Errorf("expected empty sequence, got %v", seq)
	}
	if seq.First() != "" {
		t.Errorf("First() = %q, want empty", seq.First())
	}
}

func TestSequenceNavigation(t *testing.T) {
	seq := Flatten(twoModuleFixture())

	tests := []struct {
		lesson string
		next   string
		prev   string
	}{
		{"l1", "l2", ""},
		{"l2", "l3", "l1"},
		{"l4", "", "l3"},
		{"unknown", "", ""},
	}
	for _, tt := range tests {
		if got := seq.NextAfter(tt.lesson); got != tt.next {
			t.Errorf("NextAfter(%q) = %q, want %q", tt.lesson, got, tt.next)
		}
		if got := seq.PreviousOf(tt.lesson); got != tt.prev {
			t.Errorf("PreviousOf(%q) = %q, want %q", tt.lesson, got, tt.prev)
		}
	}
}

func TestCatalogPrecomputesSequences(t *testing.T) {
	courses := []Course{{ID: "c1", Title: "Go Basics", ModuleIDs: []string{"m1", "m2"}, AccessGranted: true}}
	modules := twoModuleFixture()
	lessons := []Lesson{
		{ID: "l1", ModuleID: "m1", CourseID: "c1", Title: "Intro"},
		{ID: "l2", ModuleID: "m1", CourseID: "c1", Title: "Setup"},
		{ID: "l3", ModuleID: "m2", CourseID: "c1", Title: "Types"},
		{ID: "l4", ModuleID: "m2", CourseID: "c1", Title: "Funcs"},
	}

	cat := New(courses, modules, lessons)

	seq := cat.Sequence("c1")
	if seq.First() != "l1" {
		t.Errorf("first lesson = %q, want l1", seq.First())
	}
	ordered := cat.CourseLessons("c1")
	if len(ordered) != 4 || ordered[2].ID != "l3" {
		t.Errorf("CourseLessons out of order: %+v", ordered)
	}
	if got := cat.Sequence("missing"); len(got) != 0 {
		t.Errorf("unknown course sequence = %v, want empty", got)
	}
}
