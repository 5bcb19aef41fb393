package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/abhisek/coursetape/internal/logging"
	"github.com/abhisek/coursetape/internal/notify"
	"github.com/abhisek/coursetape/internal/progress"
)

// ProgressRepo reads and upserts progress records. Every successful
// upsert publishes a change event on the user's channel; the publishing
// session receives its own echo back through the same path as writes
// made elsewhere, which is what keeps reconciliation honest.
type ProgressRepo struct {
	db     *gorm.DB
	broker notify.Broker
	log    *logging.Logger
}

var _ progress.Persistence = (*ProgressRepo)(nil)

// ReadLessonProgress returns all lesson progress rows for userID.
func (r *ProgressRepo) ReadLessonProgress(ctx context.Context, userID string) ([]progress.LessonProgress, error) {
	var rows []LessonProgressRow
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("read lesson progress: %w", err)
	}
	out := make([]progress.LessonProgress, len(rows))
	for i, row := range rows {
		out[i] = lessonFromRow(row)
	}
	return out, nil
}

// ReadCourseProgress returns all course progress rows for userID.
func (r *ProgressRepo) ReadCourseProgress(ctx context.Context, userID string) ([]progress.CourseProgress, error) {
	var rows []CourseProgressRow
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("read course progress: %w", err)
	}
	out := make([]progress.CourseProgress, len(rows))
	for i, row := range rows {
		out[i] = courseFromRow(row)
	}
	return out, nil
}

// UpsertLessonProgress writes rec keyed on (user_id, lesson_id) and
// publishes the change.
func (r *ProgressRepo) UpsertLessonProgress(ctx context.Context, rec progress.LessonProgress) error {
	row := lessonToRow(rec)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "lesson_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"course_id",
				"is_completed",
				"current_position",
				"updated_at",
			}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert lesson progress: %w", err)
	}
	r.publish(ctx, notify.TableLessonProgress, rec.UserID, rec.LessonID, rec.UpdatedAt, rec)
	return nil
}

// UpsertCourseProgress writes rec keyed on (user_id, course_id) and
// publishes the change.
func (r *ProgressRepo) UpsertCourseProgress(ctx context.Context, rec progress.CourseProgress) error {
	row := courseToRow(rec)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"progress_percentage",
				"is_completed",
				"is_saved",
				"completion_modal_shown",
				"last_listened_at",
				"updated_at",
			}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert course progress: %w", err)
	}
	r.publish(ctx, notify.TableCourseProgress, rec.UserID, rec.CourseID, rec.UpdatedAt, rec)
	return nil
}

// publish is best-effort: a lost change event degrades freshness for
// other sessions, never correctness of the write itself.
func (r *ProgressRepo) publish(ctx context.Context, table, userID, key string, at time.Time, rec any) {
	if r.broker == nil {
		return
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		r.log.Warn("encode change event", "table", table, "key", key, "err", err)
		return
	}
	ev := notify.Event{
		Table:   table,
		UserID:  userID,
		Key:     key,
		At:      at,
		Payload: payload,
	}
	if err := r.broker.Publish(ctx, "user:"+userID, ev); err != nil {
		r.log.Warn("publish change event", "table", table, "key", key, "err", err)
	}
}

func lessonToRow(rec progress.LessonProgress) LessonProgressRow {
	return LessonProgressRow{
		UserID:          rec.UserID,
		LessonID:        rec.LessonID,
		CourseID:        rec.CourseID,
		IsCompleted:     rec.IsCompleted,
		CurrentPosition: rec.CurrentPosition,
		UpdatedAt:       rec.UpdatedAt,
	}
}

func lessonFromRow(row LessonProgressRow) progress.LessonProgress {
	return progress.LessonProgress{
		UserID:          row.UserID,
		LessonID:        row.LessonID,
		CourseID:        row.CourseID,
		IsCompleted:     row.IsCompleted,
		CurrentPosition: row.CurrentPosition,
		UpdatedAt:       row.UpdatedAt,
	}
}

func courseToRow(rec progress.CourseProgress) CourseProgressRow {
	return CourseProgressRow{
		UserID:               rec.UserID,
		CourseID:             rec.CourseID,
		ProgressPercentage:   rec.ProgressPercentage,
		IsCompleted:          rec.IsCompleted,
		IsSaved:              rec.IsSaved,
		CompletionModalShown: rec.CompletionModalShown,
		LastListenedAt:       rec.LastListenedAt,
		UpdatedAt:            rec.UpdatedAt,
	}
}

func courseFromRow(row CourseProgressRow) progress.CourseProgress {
	return progress.CourseProgress{
		UserID:               row.UserID,
		CourseID:             row.CourseID,
		ProgressPercentage:   row.ProgressPercentage,
		IsCompleted:          row.IsCompleted,
		IsSaved:              row.IsSaved,
		CompletionModalShown: row.CompletionModalShown,
		LastListenedAt:       row.LastListenedAt,
		UpdatedAt:            row.UpdatedAt,
	}
}
