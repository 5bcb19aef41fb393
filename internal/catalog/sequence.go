package catalog

import "sort"

// Sequence is the flattened, ordered list of lesson IDs for a course:
// module order first, then intra-module order.
type Sequence []string

// Flatten builds a Sequence from modules. Modules are sorted by their
// course position; lesson IDs within each module are taken in the order
// the module declares them. Empty input yields an empty sequence.
func Flatten(modules []Module) Sequence {
	if len(modules) == 0 {
		return Sequence{}
	}
	sorted := make([]Module, len(modules))
	copy(sorted, modules)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Position < sorted[j].Position
	})

	var seq Sequence
	for _, m := range sorted {
		seq = append(seq, m.LessonIDs...)
	}
	return seq
}

// IndexOf returns the position of a lesson in the sequence, or -1.
func (s Sequence) IndexOf(lessonID string) int {
	for i, id := range s {
		if id == lessonID {
			return i
		}
	}
	return -1
}

// First returns the first lesson ID, or "" for an empty sequence.
func (s Sequence) First() string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

// NextAfter returns the lesson following the given one, or "" if the
// lesson is last or unknown.
func (s Sequence) NextAfter(lessonID string) string {
	i := s.IndexOf(lessonID)
	if i < 0 || i+1 >= len(s) {
		return ""
	}
	return s[i+1]
}

// PreviousOf returns the lesson preceding the given one, or "" if the
// lesson is first or unknown.
func (s Sequence) PreviousOf(lessonID string) string {
	i := s.IndexOf(lessonID)
	if i <= 0 {
		return ""
	}
	return s[i-1]
}
