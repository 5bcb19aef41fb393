package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/abhisek/coursetape/internal/catalog"
)

// CatalogRepo loads the course catalog from the database.
type CatalogRepo struct {
	db *gorm.DB
}

// LoadCatalog reads all courses, modules and lessons and assembles the
// in-memory catalog.
func (r *CatalogRepo) LoadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	var courseRows []CourseRow
	if err := r.db.WithContext(ctx).Order("created_at").Find(&courseRows).Error; err != nil {
		return nil, fmt.Errorf("read courses: %w", err)
	}
	var moduleRows []ModuleRow
	if err := r.db.WithContext(ctx).Order("position").Find(&moduleRows).Error; err != nil {
		return nil, fmt.Errorf("read modules: %w", err)
	}
	var lessonRows []LessonRow
	if err := r.db.WithContext(ctx).Order("position").Find(&lessonRows).Error; err != nil {
		return nil, fmt.Errorf("read lessons: %w", err)
	}

	lessonsByModule := make(map[string][]string)
	lessons := make([]catalog.Lesson, len(lessonRows))
	for i, row := range lessonRows {
		lessons[i] = catalog.Lesson{
			ID:       row.ID,
			ModuleID: row.ModuleID,
			CourseID: row.CourseID,
			Title:    row.Title,
			AudioRef: row.AudioRef,
			Duration: time.Duration(row.DurationMs) * time.Millisecond,
			Position: row.Position,
		}
		lessonsByModule[row.ModuleID] = append(lessonsByModule[row.ModuleID], row.ID)
	}

	modulesByCourse := make(map[string][]string)
	modules := make([]catalog.Module, len(moduleRows))
	for i, row := range moduleRows {
		modules[i] = catalog.Module{
			ID:        row.ID,
			CourseID:  row.CourseID,
			Title:     row.Title,
			Position:  row.Position,
			LessonIDs: lessonsByModule[row.ID],
		}
		modulesByCourse[row.CourseID] = append(modulesByCourse[row.CourseID], row.ID)
	}

	courses := make([]catalog.Course, len(courseRows))
	for i, row := range courseRows {
		courses[i] = catalog.Course{
			ID:            row.ID,
			Title:         row.Title,
			Author:        row.Author,
			ModuleIDs:     modulesByCourse[row.ID],
			AccessGranted: row.AccessGranted,
		}
	}

	return catalog.New(courses, modules, lessons), nil
}

// Empty reports whether the catalog has no courses yet.
func (r *CatalogRepo) Empty(ctx context.Context) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&CourseRow{}).Count(&n).Error; err != nil {
		return false, fmt.Errorf("count courses: %w", err)
	}
	return n == 0, nil
}

// Seed inserts the built-in demo course. Idempotent in effect when
// guarded by Empty; callers decide whether to seed.
func (r *CatalogRepo) Seed(ctx context.Context) error {
	courseID := uuid.NewString()
	type seedLesson struct {
		title string
		audio string
		dur   time.Duration
	}
	seedModules := []struct {
		title   string
		lessons []seedLesson
	}{
		{
			title: "Getting Started",
			lessons: []seedLesson{
				{"Welcome", "demo/welcome.mp3", 90 * time.Second},
				{"How Listening Works", "demo/listening.mp3", 4 * time.Minute},
				{"Your First Session", "demo/first-session.mp3", 6 * time.Minute},
			},
		},
		{
			title: "Building the Habit",
			lessons: []seedLesson{
				{"Daily Practice", "demo/daily-practice.mp3", 5 * time.Minute},
				{"Staying Consistent", "demo/consistency.mp3", 7 * time.Minute},
				{"Wrapping Up", "demo/wrap-up.mp3", 3 * time.Minute},
			},
		},
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		course := CourseRow{
			ID:            courseID,
			Title:         "Deep Listening: A Starter Course",
			Author:        "Coursetape",
			AccessGranted: true,
			CreatedAt:     time.Now().UTC(),
		}
		if err := tx.Create(&course).Error; err != nil {
			return fmt.Errorf("seed course: %w", err)
		}
		for mi, m := range seedModules {
			moduleID := uuid.NewString()
			row := ModuleRow{
				ID:       moduleID,
				CourseID: courseID,
				Title:    m.title,
				Position: mi + 1,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("seed module: %w", err)
			}
			for li, l := range m.lessons {
				lrow := LessonRow{
					ID:         uuid.NewString(),
					ModuleID:   moduleID,
					CourseID:   courseID,
					Title:      l.title,
					AudioRef:   l.audio,
					DurationMs: l.dur.Milliseconds(),
					Position:   li + 1,
				}
				if err := tx.Create(&lrow).Error; err != nil {
					return fmt.Errorf("seed lesson: %w", err)
				}
			}
		}
		return nil
	})
}

// ResetProgress deletes all progress rows for userID. Catalog rows are
// left alone.
func (s *Store) ResetProgress(ctx context.Context, userID string) error {
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&LessonProgressRow{}).Error; err != nil {
		return fmt.Errorf("reset lesson progress: %w", err)
	}
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&CourseProgressRow{}).Error; err != nil {
		return fmt.Errorf("reset course progress: %w", err)
	}
	return nil
}
