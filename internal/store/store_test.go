package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/coursetape/internal/logging"
	"github.com/abhisek/coursetape/internal/notify"
	"github.com/abhisek/coursetape/internal/progress"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertLessonProgressInsertsThenUpdates(t *testing.T) {
	s := openTestStore(t)
	repo := s.ProgressRepo(nil)
	ctx := context.Background()

	rec := progress.LessonProgress{
		UserID:          "u1",
		LessonID:        "l1",
		CourseID:        "c1",
		CurrentPosition: 40,
		UpdatedAt:       time.Now().UTC(),
	}
	require.NoError(t, repo.UpsertLessonProgress(ctx, rec))

	rec.CurrentPosition = 100
	rec.IsCompleted = true
	rec.UpdatedAt = rec.UpdatedAt.Add(time.Second)
	require.NoError(t, repo.UpsertLessonProgress(ctx, rec))

	got, err := repo.ReadLessonProgress(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1, "conflict on (user_id, lesson_id) must update, not insert")
	assert.True(t, got[0].IsCompleted)
	assert.Equal(t, 100.0, got[0].CurrentPosition)
	assert.Equal(t, "c1", got[0].CourseID)
}

func TestUpsertCourseProgressRoundTrip(t *testing.T) {
	s := openTestStore(t)
	repo := s.ProgressRepo(nil)
	ctx := context.Background()

	rec := progress.CourseProgress{
		UserID:               "u1",
		CourseID:             "c1",
		ProgressPercentage:   100,
		IsCompleted:          true,
		CompletionModalShown: true,
		LastListenedAt:       time.Now().UTC(),
		UpdatedAt:            time.Now().UTC(),
	}
	require.NoError(t, repo.UpsertCourseProgress(ctx, rec))

	got, err := repo.ReadCourseProgress(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsCompleted)
	assert.True(t, got[0].CompletionModalShown)
	assert.Equal(t, 100.0, got[0].ProgressPercentage)
}

func TestProgressRowsAreScopedByUser(t *testing.T) {
	s := openTestStore(t)
	repo := s.ProgressRepo(nil)
	ctx := context.Background()

	for _, user := range []string{"u1", "u2"} {
		rec := progress.LessonProgress{UserID: user, LessonID: "l1", CourseID: "c1", UpdatedAt: time.Now().UTC()}
		require.NoError(t, repo.UpsertLessonProgress(ctx, rec))
	}

	got, err := repo.ReadLessonProgress(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "u1", got[0].UserID)
}

func TestUpsertPublishesChangeEvent(t *testing.T) {
	s := openTestStore(t)
	broker := notify.NewMemoryBroker()
	repo := s.ProgressRepo(broker)
	ctx := context.Background()

	var events []notify.Event
	release, err := broker.Subscribe(ctx, "user:u1", func(ev notify.Event) {
		events = append(events, ev)
	})
	require.NoError(t, err)
	defer release()

	rec := progress.LessonProgress{
		UserID:          "u1",
		LessonID:        "l1",
		CourseID:        "c1",
		CurrentPosition: 55,
		UpdatedAt:       time.Now().UTC(),
	}
	require.NoError(t, repo.UpsertLessonProgress(ctx, rec))

	require.Len(t, events, 1)
	assert.Equal(t, notify.TableLessonProgress, events[0].Table)
	assert.Equal(t, "u1", events[0].UserID)
	assert.Equal(t, "l1", events[0].Key)
	assert.NotEmpty(t, events[0].Payload)
}

func TestSeedAndLoadCatalog(t *testing.T) {
	s := openTestStore(t)
	repo := s.CatalogRepo()
	ctx := context.Background()

	empty, err := repo.Empty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)

	require.NoError(t, repo.Seed(ctx))

	empty, err = repo.Empty(ctx)
	require.NoError(t, err)
	assert.False(t, empty)

	cat, err := repo.LoadCatalog(ctx)
	require.NoError(t, err)
	courses := cat.Courses()
	require.Len(t, courses, 1)
	assert.True(t, courses[0].AccessGranted)

	seq := cat.Sequence(courses[0].ID)
	require.Len(t, seq, 6)

	// Sequence order follows module position then lesson position.
	first, ok := cat.Lesson(seq[0])
	require.True(t, ok)
	assert.Equal(t, "Welcome", first.Title)
	last, ok := cat.Lesson(seq[5])
	require.True(t, ok)
	assert.Equal(t, "Wrapping Up", last.Title)
}

func TestResetProgressClearsOnlyTargetUser(t *testing.T) {
	s := openTestStore(t)
	repo := s.ProgressRepo(nil)
	ctx := context.Background()

	for _, user := range []string{"u1", "u2"} {
		lrec := progress.LessonProgress{UserID: user, LessonID: "l1", CourseID: "c1", UpdatedAt: time.Now().UTC()}
		require.NoError(t, repo.UpsertLessonProgress(ctx, lrec))
		crec := progress.CourseProgress{UserID: user, CourseID: "c1", UpdatedAt: time.Now().UTC()}
		require.NoError(t, repo.UpsertCourseProgress(ctx, crec))
	}

	require.NoError(t, s.ResetProgress(ctx, "u1"))

	got, err := repo.ReadLessonProgress(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = repo.ReadLessonProgress(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	courses, err := repo.ReadCourseProgress(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, courses, 1)
}
