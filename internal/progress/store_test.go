package progress

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/coursetape/internal/logging"
	"github.com/abhisek/coursetape/internal/notify"
)

// fakeDB records upserts and serves canned reads.
type fakeDB struct {
	mu            sync.Mutex
	lessons       []LessonProgress
	courses       []CourseProgress
	lessonWrites  []LessonProgress
	courseWrites  []CourseProgress
	failNextWrite error
}

func (f *fakeDB) ReadLessonProgress(ctx context.Context, userID string) ([]LessonProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]LessonProgress(nil), f.lessons...), nil
}

func (f *fakeDB) ReadCourseProgress(ctx context.Context, userID string) ([]CourseProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]CourseProgress(nil), f.courses...), nil
}

func (f *fakeDB) UpsertLessonProgress(ctx context.Context, rec LessonProgress) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNextWrite != nil {
		err := f.failNextWrite
		f.failNextWrite = nil
		return err
	}
	f.lessonWrites = append(f.lessonWrites, rec)
	return nil
}

func (f *fakeDB) UpsertCourseProgress(ctx context.Context, rec CourseProgress) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNextWrite != nil {
		err := f.failNextWrite
		f.failNextWrite = nil
		return err
	}
	f.courseWrites = append(f.courseWrites, rec)
	return nil
}

func (f *fakeDB) lessonWriteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.lessonWrites)
}

func newTestStore(t *testing.T, db *fakeDB) *Store {
	t.Helper()
	reg := notify.NewRegistry(notify.NewMemoryBroker(), logging.Nop())
	s := NewStore(db, reg, "u1", DefaultConfig(), logging.Nop())
	require.NoError(t, s.Load(context.Background()))
	t.Cleanup(s.StopSync)
	return s
}

func TestCompletionNormalization(t *testing.T) {
	db := &fakeDB{}
	s := newTestStore(t, db)
	ctx := context.Background()

	// Position past the end normalizes to exactly 100 and completed.
	require.NoError(t, s.UpdateLessonProgress(ctx, "l1", "c1", Position(104)))

	rec, ok := s.LessonProgressFor("l1")
	require.True(t, ok)
	assert.True(t, rec.IsCompleted)
	assert.Equal(t, 100.0, rec.CurrentPosition)

	// Normalization made it completion-class: the write was awaited.
	require.Equal(t, 1, db.lessonWriteCount())
	assert.True(t, db.lessonWrites[0].IsCompleted)
	assert.Equal(t, 100.0, db.lessonWrites[0].CurrentPosition)
}

func TestOptimisticApplyVisibleImmediately(t *testing.T) {
	db := &fakeDB{}
	s := newTestStore(t, db)

	require.NoError(t, s.UpdateLessonProgress(context.Background(), "l1", "c1", Position(40)))

	rec, ok := s.LessonProgressFor("l1")
	require.True(t, ok)
	assert.Equal(t, 40.0, rec.CurrentPosition)
	assert.False(t, rec.IsCompleted)
}

func TestMarkCompletedUnlocksViaCompletionSet(t *testing.T) {
	db := &fakeDB{}
	s := newTestStore(t, db)

	require.NoError(t, s.UpdateLessonProgress(context.Background(), "l1", "c1", Completed()))

	done := s.CompletedByLesson()
	assert.True(t, done["l1"])
	require.Equal(t, 1, db.lessonWriteCount(), "completion writes are awaited, not throttled")
}

func TestReviewModeSuppressesPositionWrites(t *testing.T) {
	db := &fakeDB{
		courses: []CourseProgress{{UserID: "u1", CourseID: "c1", IsCompleted: true, ProgressPercentage: 100}},
		lessons: []LessonProgress{{UserID: "u1", LessonID: "l2", CourseID: "c1", CurrentPosition: 100, IsCompleted: true}},
	}
	s := newTestStore(t, db)

	require.True(t, s.IsInReviewMode("c1"))

	require.NoError(t, s.UpdateLessonProgress(context.Background(), "l2", "c1", Position(40)))

	rec, _ := s.LessonProgressFor("l2")
	assert.Equal(t, 100.0, rec.CurrentPosition, "review replay must not move stored position")
	assert.True(t, rec.IsCompleted)
	assert.Equal(t, 0, db.lessonWriteCount())
}

func TestReviewModeAllowsExplicitCompletion(t *testing.T) {
	db := &fakeDB{
		courses: []CourseProgress{{UserID: "u1", CourseID: "c1", IsCompleted: true, ProgressPercentage: 100}},
	}
	s := newTestStore(t, db)

	require.NoError(t, s.UpdateLessonProgress(context.Background(), "l9", "c1", Completed()))
	require.Equal(t, 1, db.lessonWriteCount())
}

func TestCompletedLessonReplayKeepsPosition(t *testing.T) {
	db := &fakeDB{
		lessons: []LessonProgress{{UserID: "u1", LessonID: "l3", CourseID: "c1", CurrentPosition: 100, IsCompleted: true}},
	}
	s := newTestStore(t, db)

	// Replay listen reports 20% mid-playback.
	require.NoError(t, s.UpdateLessonProgress(context.Background(), "l3", "c1", Position(20)))

	rec, _ := s.LessonProgressFor("l3")
	assert.True(t, rec.IsCompleted)
	assert.Equal(t, 100.0, rec.CurrentPosition)
	assert.Equal(t, 0, db.lessonWriteCount())
}

func TestPositionWritesAreThrottled(t *testing.T) {
	db := &fakeDB{}
	reg := notify.NewRegistry(notify.NewMemoryBroker(), logging.Nop())
	cfg := Config{ThrottleInterval: time.Hour, WriteTimeout: time.Second}
	s := NewStore(db, reg, "u1", cfg, logging.Nop())
	require.NoError(t, s.Load(context.Background()))
	ctx := context.Background()

	for pct := 1.0; pct <= 20; pct++ {
		require.NoError(t, s.UpdateLessonProgress(ctx, "l1", "c1", Position(pct)))
	}
	s.StopSync() // drains background writes

	assert.Equal(t, 1, db.lessonWriteCount(), "one persisted write per interval")
	rec, _ := s.LessonProgressFor("l1")
	assert.Equal(t, 20.0, rec.CurrentPosition, "optimistic value tracks every report")
}

func TestFailedWriteKeepsOptimisticStateAndNotifies(t *testing.T) {
	db := &fakeDB{failNextWrite: errors.New("network down")}
	s := newTestStore(t, db)

	var notices []Notice
	s.SetNotifier(func(n Notice) { notices = append(notices, n) })

	require.NoError(t, s.UpdateLessonProgress(context.Background(), "l1", "c1", Completed()))

	rec, _ := s.LessonProgressFor("l1")
	assert.True(t, rec.IsCompleted, "local completion is retained on write failure")
	require.Len(t, notices, 1)
	assert.Equal(t, NoticeWarn, notices[0].Level)
}

func TestRemoteEchoConvergence(t *testing.T) {
	db := &fakeDB{}
	broker := notify.NewMemoryBroker()
	reg := notify.NewRegistry(broker, logging.Nop())
	s := NewStore(db, reg, "u1", DefaultConfig(), logging.Nop())
	ctx := context.Background()
	require.NoError(t, s.Load(ctx))
	require.NoError(t, s.StartSync(ctx))
	defer s.StopSync()

	require.NoError(t, s.UpdateLessonProgress(ctx, "l1", "c1", Completed()))
	local, _ := s.LessonProgressFor("l1")

	// A stale echo of an earlier position write arrives out of order.
	stale := LessonProgress{
		UserID: "u1", LessonID: "l1", CourseID: "c1",
		CurrentPosition: 55, UpdatedAt: local.UpdatedAt.Add(-time.Minute),
	}
	publishLesson(t, broker, stale)

	rec, _ := s.LessonProgressFor("l1")
	assert.True(t, rec.IsCompleted, "stale echo must not regress completion")
	assert.Equal(t, 100.0, rec.CurrentPosition)

	// A newer echo from another device still cannot undo completion.
	newer := LessonProgress{
		UserID: "u1", LessonID: "l1", CourseID: "c1",
		CurrentPosition: 70, UpdatedAt: local.UpdatedAt.Add(time.Minute),
	}
	publishLesson(t, broker, newer)

	rec, _ = s.LessonProgressFor("l1")
	assert.True(t, rec.IsCompleted)
	assert.Equal(t, 100.0, rec.CurrentPosition)
}

func TestRemoteEchoAppliesNormalization(t *testing.T) {
	db := &fakeDB{}
	broker := notify.NewMemoryBroker()
	reg := notify.NewRegistry(broker, logging.Nop())
	s := NewStore(db, reg, "u1", DefaultConfig(), logging.Nop())
	ctx := context.Background()
	require.NoError(t, s.Load(ctx))
	require.NoError(t, s.StartSync(ctx))
	defer s.StopSync()

	publishLesson(t, broker, LessonProgress{
		UserID: "u1", LessonID: "l4", CourseID: "c1",
		CurrentPosition: 120, UpdatedAt: time.Now().UTC(),
	})

	rec, ok := s.LessonProgressFor("l4")
	require.True(t, ok)
	assert.True(t, rec.IsCompleted)
	assert.Equal(t, 100.0, rec.CurrentPosition)
}

func TestCourseCompletionAwaited(t *testing.T) {
	db := &fakeDB{}
	s := newTestStore(t, db)

	pct := 100.0
	done := true
	require.NoError(t, s.UpdateCourseProgress(context.Background(), "c1", CourseUpdate{
		ProgressPercentage: &pct,
		IsCompleted:        &done,
	}))

	require.Len(t, db.courseWrites, 1)
	assert.True(t, s.IsInReviewMode("c1"))
}

func TestReviewModeFalseWithoutRecord(t *testing.T) {
	db := &fakeDB{}
	s := newTestStore(t, db)
	assert.False(t, s.IsInReviewMode("never-started"))
}

func publishLesson(t *testing.T, broker notify.Broker, rec LessonProgress) {
	t.Helper()
	payload, err := json.Marshal(rec)
	require.NoError(t, err)
	err = broker.Publish(context.Background(), "user:"+rec.UserID, notify.Event{
		Table:   notify.TableLessonProgress,
		UserID:  rec.UserID,
		Key:     rec.LessonID,
		At:      time.Now(),
		Payload: payload,
	})
	require.NoError(t, err)
}
