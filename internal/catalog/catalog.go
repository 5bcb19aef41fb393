// Package catalog holds the immutable course structure: courses contain
// ordered modules, modules contain ordered lessons. The flattened module
// order — not catalog insertion order — is the authoritative sequence
// used for next/previous navigation and sequential unlock.
package catalog

import (
	"sort"
	"time"
)

// Lesson is the atomic playable unit.
type Lesson struct {
	ID       string
	ModuleID string
	CourseID string
	Title    string
	AudioRef string
	Duration time.Duration
	Position int // ordering within the module
}

// Module is an ordered group of lessons within a course.
type Module struct {
	ID        string
	CourseID  string
	Title     string
	Position  int // ordering within the course
	LessonIDs []string
}

// Course is an ordered collection of modules.
type Course struct {
	ID            string
	Title         string
	Author        string
	ModuleIDs     []string
	AccessGranted bool
}

// Catalog is the loaded course structure for a session. Immutable once
// built.
type Catalog struct {
	courses map[string]Course
	modules map[string]Module
	lessons map[string]Lesson

	// sequence per course, derived once at build time
	sequences map[string]Sequence
}

// New builds a catalog from loaded records and precomputes the lesson
// sequence for every course.
func New(courses []Course, modules []Module, lessons []Lesson) *Catalog {
	c := &Catalog{
		courses:   make(map[string]Course, len(courses)),
		modules:   make(map[string]Module, len(modules)),
		lessons:   make(map[string]Lesson, len(lessons)),
		sequences: make(map[string]Sequence, len(courses)),
	}
	for _, course := range courses {
		c.courses[course.ID] = course
	}
	for _, m := range modules {
		c.modules[m.ID] = m
	}
	for _, l := range lessons {
		c.lessons[l.ID] = l
	}
	for _, course := range courses {
		c.sequences[course.ID] = Flatten(c.CourseModules(course.ID))
	}
	return c
}

// Course returns the course record, or false if unknown.
func (c *Catalog) Course(id string) (Course, bool) {
	course, ok := c.courses[id]
	return course, ok
}

// Courses returns all courses in title order.
func (c *Catalog) Courses() []Course {
	out := make([]Course, 0, len(c.courses))
	for _, course := range c.courses {
		out = append(out, course)
	}
	sortCourses(out)
	return out
}

// Lesson returns the lesson record, or false if unknown.
func (c *Catalog) Lesson(id string) (Lesson, bool) {
	l, ok := c.lessons[id]
	return l, ok
}

// CourseModules returns the course's modules in course order.
func (c *Catalog) CourseModules(courseID string) []Module {
	course, ok := c.courses[courseID]
	if !ok {
		return nil
	}
	out := make([]Module, 0, len(course.ModuleIDs))
	for _, mid := range course.ModuleIDs {
		if m, ok := c.modules[mid]; ok {
			out = append(out, m)
		}
	}
	return out
}

// CourseLessons returns the course's lessons in sequence order.
func (c *Catalog) CourseLessons(courseID string) []Lesson {
	seq := c.sequences[courseID]
	out := make([]Lesson, 0, len(seq))
	for _, id := range seq {
		if l, ok := c.lessons[id]; ok {
			out = append(out, l)
		}
	}
	return out
}

// Sequence returns the authoritative lesson ordering for a course.
func (c *Catalog) Sequence(courseID string) Sequence {
	return c.sequences[courseID]
}

func sortCourses(courses []Course) {
	sort.Slice(courses, func(i, j int) bool {
		return courses[i].Title < courses[j].Title
	})
}
