package store

import "time"

// LessonProgressRow is the persisted per (user, lesson) progress record.
// The compound unique index backs the upsert's conflict target.
type LessonProgressRow struct {
	ID              uint   `gorm:"primaryKey"`
	UserID          string `gorm:"size:64;not null;uniqueIndex:idx_lesson_progress_user_lesson,priority:1"`
	LessonID        string `gorm:"size:64;not null;uniqueIndex:idx_lesson_progress_user_lesson,priority:2"`
	CourseID        string `gorm:"size:64;not null;index"`
	IsCompleted     bool   `gorm:"not null"`
	CurrentPosition float64
	UpdatedAt       time.Time
}

// TableName keeps the table aligned with the notification table name.
func (LessonProgressRow) TableName() string { return "lesson_progress" }

// CourseProgressRow is the persisted per (user, course) progress record.
type CourseProgressRow struct {
	ID                   uint   `gorm:"primaryKey"`
	UserID               string `gorm:"size:64;not null;uniqueIndex:idx_course_progress_user_course,priority:1"`
	CourseID             string `gorm:"size:64;not null;uniqueIndex:idx_course_progress_user_course,priority:2"`
	ProgressPercentage   float64
	IsCompleted          bool `gorm:"not null"`
	IsSaved              bool `gorm:"not null"`
	CompletionModalShown bool `gorm:"not null"`
	LastListenedAt       time.Time
	UpdatedAt            time.Time
}

func (CourseProgressRow) TableName() string { return "course_progress" }

// CourseRow, ModuleRow and LessonRow hold the course catalog. The
// catalog is read-mostly; rows are written only by seeding.
type CourseRow struct {
	ID            string `gorm:"primaryKey;size:64"`
	Title         string `gorm:"not null"`
	Author        string
	AccessGranted bool `gorm:"not null"`
	CreatedAt     time.Time
}

func (CourseRow) TableName() string { return "courses" }

type ModuleRow struct {
	ID       string `gorm:"primaryKey;size:64"`
	CourseID string `gorm:"size:64;not null;index"`
	Title    string `gorm:"not null"`
	Position int    `gorm:"not null"`
}

func (ModuleRow) TableName() string { return "modules" }

type LessonRow struct {
	ID         string `gorm:"primaryKey;size:64"`
	ModuleID   string `gorm:"size:64;not null;index"`
	CourseID   string `gorm:"size:64;not null;index"`
	Title      string `gorm:"not null"`
	AudioRef   string `gorm:"not null"`
	DurationMs int64  `gorm:"not null"`
	Position   int    `gorm:"not null"`
}

func (LessonRow) TableName() string { return "lessons" }
